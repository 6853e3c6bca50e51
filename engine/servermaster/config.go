// Copyright 2024 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package servermaster

import (
	"bytes"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/jobop"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"go.uber.org/zap"
)

const (
	defaultAddr               = "127.0.0.1:5801"
	defaultWorkerTTL          = "10s"
	defaultCheckInterval      = "1s"
	defaultRPCTimeout         = "3s"
	defaultJobStopTimeout     = "10s"
	defaultMaxRestarts        = 3
	defaultRestartBackoffBase = "1s"
	defaultRestartBackoffMax  = "30s"
	defaultMetricInterval     = 15 * time.Second
)

// Config is the configuration of the master.
type Config struct {
	LogConf logutil.Config `toml:"log" json:"log"`

	Addr          string `toml:"addr" json:"addr"`
	AdvertiseAddr string `toml:"advertise-addr" json:"advertise-addr"`
	// HTTPAddr serves the open API on a dedicated address. When empty the
	// open API shares Addr with gRPC.
	HTTPAddr string `toml:"http-addr" json:"http-addr"`

	// WorkerTTL is how long a worker stays alive without heartbeat.
	WorkerTTLStr      string `toml:"worker-ttl" json:"worker-ttl"`
	CheckIntervalStr  string `toml:"check-interval" json:"check-interval"`
	RPCTimeoutStr     string `toml:"rpc-timeout" json:"rpc-timeout"`
	JobStopTimeoutStr string `toml:"job-stop-timeout" json:"job-stop-timeout"`

	// MaxRestarts bounds the continuous restarts of a job after worker loss.
	MaxRestarts           int    `toml:"max-restarts" json:"max-restarts"`
	RestartBackoffBaseStr string `toml:"restart-backoff-base" json:"restart-backoff-base"`
	RestartBackoffMaxStr  string `toml:"restart-backoff-max" json:"restart-backoff-max"`

	CheckpointStorage checkpoint.Config `toml:"checkpoint-storage" json:"checkpoint-storage"`

	WorkerTTL          time.Duration `toml:"-" json:"-"`
	CheckInterval      time.Duration `toml:"-" json:"-"`
	RPCTimeout         time.Duration `toml:"-" json:"-"`
	StopTimeout        time.Duration `toml:"-" json:"-"`
	RestartBackoffBase time.Duration `toml:"-" json:"-"`
	RestartBackoffMax  time.Duration `toml:"-" json:"-"`
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		log.L().Error("marshal to json", zap.Reflect("master config", c), zap.Error(err))
	}
	return string(cfg)
}

// Toml returns TOML format representation of config.
func (c *Config) Toml() (string, error) {
	var b bytes.Buffer
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return "", errors.Trace(err)
	}
	return b.String(), nil
}

// Adjust adjusts the master configuration
func (c *Config) Adjust() (err error) {
	if c.AdvertiseAddr == "" {
		c.AdvertiseAddr = c.Addr
	}
	if c.WorkerTTL, err = parseDuration("worker-ttl", c.WorkerTTLStr); err != nil {
		return err
	}
	if c.CheckInterval, err = parseDuration("check-interval", c.CheckIntervalStr); err != nil {
		return err
	}
	if c.RPCTimeout, err = parseDuration("rpc-timeout", c.RPCTimeoutStr); err != nil {
		return err
	}
	if c.StopTimeout, err = parseDuration("job-stop-timeout", c.JobStopTimeoutStr); err != nil {
		return err
	}
	if c.RestartBackoffBase, err = parseDuration("restart-backoff-base", c.RestartBackoffBaseStr); err != nil {
		return err
	}
	if c.RestartBackoffMax, err = parseDuration("restart-backoff-max", c.RestartBackoffMaxStr); err != nil {
		return err
	}
	if c.CheckInterval > c.WorkerTTL {
		return errors.ErrInvalidArgument.GenWithStackByArgs("check-interval must not exceed worker-ttl")
	}
	if c.RestartBackoffMax < c.RestartBackoffBase {
		return errors.ErrInvalidArgument.GenWithStackByArgs("restart-backoff-max must not be less than restart-backoff-base")
	}
	if c.MaxRestarts < 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("max-restarts must not be negative")
	}
	return c.CheckpointStorage.Adjust()
}

func parseDuration(item, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.WrapError(errors.ErrInvalidArgument, err, item+" "+s)
	}
	if d <= 0 {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs(item + " must be positive")
	}
	return d, nil
}

func (c *Config) jobMasterConfig() jobMasterConfig {
	restart := jobop.NewDefaultBackoffConfig()
	restart.InitialInterval = c.RestartBackoffBase
	restart.MaxInterval = c.RestartBackoffMax
	restart.MaxTryTime = c.MaxRestarts
	cfg := jobMasterConfig{
		StopTimeout: c.StopTimeout,
		Restart:     *restart,
	}
	cfg.adjust()
	return cfg
}

// ConfigFromFile loads config from file and merges items into Config.
func (c *Config) ConfigFromFile(path string) error {
	metaData, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.WrapError(errors.ErrDecodeConfigFile, err)
	}
	return checkUndecodedItems(metaData)
}

func (c *Config) configFromString(data string) error {
	metaData, err := toml.Decode(data, c)
	if err != nil {
		return errors.WrapError(errors.ErrDecodeConfigFile, err)
	}
	return checkUndecodedItems(metaData)
}

// GetDefaultMasterConfig returns a default master config
func GetDefaultMasterConfig() *Config {
	return &Config{
		LogConf: logutil.Config{
			Level: "info",
			File:  "",
		},
		Addr:                  defaultAddr,
		WorkerTTLStr:          defaultWorkerTTL,
		CheckIntervalStr:      defaultCheckInterval,
		RPCTimeoutStr:         defaultRPCTimeout,
		JobStopTimeoutStr:     defaultJobStopTimeout,
		MaxRestarts:           defaultMaxRestarts,
		RestartBackoffBaseStr: defaultRestartBackoffBase,
		RestartBackoffMaxStr:  defaultRestartBackoffMax,
		CheckpointStorage: checkpoint.Config{
			Type: checkpoint.TypeMemory,
		},
	}
}

func checkUndecodedItems(metaData toml.MetaData) error {
	undecoded := metaData.Undecoded()
	if len(undecoded) > 0 {
		var undecodedItems []string
		for _, item := range undecoded {
			undecodedItems = append(undecodedItems, item.String())
		}
		return errors.ErrConfigUnknownItem.GenWithStackByArgs(strings.Join(undecodedItems, ","))
	}
	return nil
}
