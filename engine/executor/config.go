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

package executor

import (
	"bytes"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/slot"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/worker"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/retry"
	"github.com/quanzhian/incubator-seatunnel/pkg/util"
	"go.uber.org/zap"
)

const (
	defaultAddr                   = "127.0.0.1:5802"
	defaultJoin                   = "127.0.0.1:5801"
	defaultSlotNum                = 2
	defaultHeartbeatInterval      = "2s"
	defaultHeartbeatRetryTimes    = slot.DefaultHeartbeatRetryTimes
	defaultHeartbeatRetryInterval = "2s"
	defaultReportInterval         = "1s"
	defaultRPCTimeout             = "3s"
)

// SlotConfig is the capacity of the executor and how it is carved into
// slots. Empty cpu and memory are detected from the node.
type SlotConfig struct {
	DynamicSlot bool    `toml:"dynamic-slot" json:"dynamic-slot"`
	SlotNum     int     `toml:"slot-num" json:"slot-num"`
	CPU         float64 `toml:"cpu" json:"cpu"`
	// Memory is a human readable size such as "4GiB".
	MemoryStr string `toml:"memory" json:"memory"`

	Memory model.Memory `toml:"-" json:"-"`
}

// Config is the configuration of an executor.
type Config struct {
	Name          string         `toml:"name" json:"name"`
	LogConf       logutil.Config `toml:"log" json:"log"`
	Addr          string         `toml:"addr" json:"addr"`
	AdvertiseAddr string         `toml:"advertise-addr" json:"advertise-addr"`
	// Join is the address of the master.
	Join string     `toml:"join" json:"join"`
	Slot SlotConfig `toml:"slot" json:"slot"`

	HeartbeatIntervalStr      string `toml:"heartbeat-interval" json:"heartbeat-interval"`
	HeartbeatRetryTimes       int    `toml:"heartbeat-retry-times" json:"heartbeat-retry-times"`
	HeartbeatRetryIntervalStr string `toml:"heartbeat-retry-interval" json:"heartbeat-retry-interval"`
	ReportIntervalStr         string `toml:"report-interval" json:"report-interval"`
	RPCTimeoutStr             string `toml:"rpc-timeout" json:"rpc-timeout"`

	HeartbeatInterval      time.Duration `toml:"-" json:"-"`
	HeartbeatRetryInterval time.Duration `toml:"-" json:"-"`
	ReportInterval         time.Duration `toml:"-" json:"-"`
	RPCTimeout             time.Duration `toml:"-" json:"-"`
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		log.L().Error("marshal to json", zap.Reflect("executor config", c), zap.Error(err))
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

// Adjust parses the string items and fills node capacity defaults.
func (c *Config) Adjust() (err error) {
	if c.AdvertiseAddr == "" {
		c.AdvertiseAddr = c.Addr
	}
	if c.Name == "" {
		c.Name = c.AdvertiseAddr
	}
	if c.HeartbeatInterval, err = parseDuration("heartbeat-interval", c.HeartbeatIntervalStr); err != nil {
		return err
	}
	if c.HeartbeatRetryInterval, err = parseDuration("heartbeat-retry-interval", c.HeartbeatRetryIntervalStr); err != nil {
		return err
	}
	if c.ReportInterval, err = parseDuration("report-interval", c.ReportIntervalStr); err != nil {
		return err
	}
	if c.RPCTimeout, err = parseDuration("rpc-timeout", c.RPCTimeoutStr); err != nil {
		return err
	}
	if c.HeartbeatRetryTimes <= 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("heartbeat-retry-times must be positive")
	}
	return c.Slot.adjust()
}

func (c *SlotConfig) adjust() error {
	if !c.DynamicSlot && c.SlotNum <= 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("slot-num must be positive")
	}
	if c.CPU < 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("cpu must not be negative")
	}
	if c.CPU == 0 {
		cores, err := util.GetCPUCores()
		if err != nil {
			return err
		}
		c.CPU = float64(cores)
	}
	if c.MemoryStr == "" {
		limit, err := util.GetMemoryLimit()
		if err != nil {
			return err
		}
		c.Memory = model.Memory(limit)
		return nil
	}
	size, err := units.RAMInBytes(c.MemoryStr)
	if err != nil {
		return errors.WrapError(errors.ErrInvalidArgument, err, "memory "+c.MemoryStr)
	}
	if size <= 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("memory must be positive")
	}
	c.Memory = model.Memory(size)
	return nil
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

// SlotServiceConfig builds the config of the slot service.
func (c *Config) SlotServiceConfig() slot.Config {
	mode := slot.FixedPool
	if c.Slot.DynamicSlot {
		mode = slot.DynamicPool
	}
	return slot.Config{
		Mode:              mode,
		SlotNumber:        c.Slot.SlotNum,
		Total:             model.NewResourceProfile(model.CPUCores(c.Slot.CPU), c.Slot.Memory),
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatRetry: retry.Policy{
			MaxAttempts: c.HeartbeatRetryTimes,
			Delay:       c.HeartbeatRetryInterval,
		},
	}
}

// TaskServiceConfig builds the config of the task runtime.
func (c *Config) TaskServiceConfig() worker.Config {
	return worker.Config{ReportInterval: c.ReportInterval}
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

// GetDefaultExecutorConfig returns a default executor config.
func GetDefaultExecutorConfig() *Config {
	return &Config{
		LogConf: logutil.Config{
			Level: "info",
			File:  "",
		},
		Addr: defaultAddr,
		Join: defaultJoin,
		Slot: SlotConfig{
			SlotNum: defaultSlotNum,
		},
		HeartbeatIntervalStr:      defaultHeartbeatInterval,
		HeartbeatRetryTimes:       defaultHeartbeatRetryTimes,
		HeartbeatRetryIntervalStr: defaultHeartbeatRetryInterval,
		ReportIntervalStr:         defaultReportInterval,
		RPCTimeoutStr:             defaultRPCTimeout,
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
