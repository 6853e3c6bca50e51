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

package master

import (
	"github.com/fatih/color"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `master` command.
type options struct {
	masterConfig         *servermaster.Config
	masterConfigFilePath string
}

// newOptions creates new options for the `master` command.
func newOptions() *options {
	return &options{
		masterConfig: servermaster.GetDefaultMasterConfig(),
	}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.masterConfig.Addr, "addr", o.masterConfig.Addr, "Set the listening address for server master")
	cmd.Flags().StringVar(&o.masterConfig.AdvertiseAddr, "advertise-addr", o.masterConfig.AdvertiseAddr, "Set the advertise listening address for client communication")
	cmd.Flags().StringVar(&o.masterConfig.HTTPAddr, "http-addr", o.masterConfig.HTTPAddr, "Serve the open API on a dedicated address")
	cmd.Flags().IntVar(&o.masterConfig.MaxRestarts, "max-restarts", o.masterConfig.MaxRestarts, "continuous restarts allowed for a job after worker loss")

	cmd.Flags().StringVar(&o.masterConfig.CheckpointStorage.Type, "checkpoint-storage", o.masterConfig.CheckpointStorage.Type, "checkpoint storage type (etc: memory|etcd)")
	cmd.Flags().StringVar(&o.masterConfig.CheckpointStorage.EtcdEndpoints, "etcd-endpoints", o.masterConfig.CheckpointStorage.EtcdEndpoints, "comma separated etcd client urls of the checkpoint storage")

	cmd.Flags().StringVar(&o.masterConfigFilePath, "config", "", "Path of the configuration file")
	cmd.Flags().StringVar(&o.masterConfig.LogConf.File, "log-file", o.masterConfig.LogConf.File, "log file path")
	cmd.Flags().StringVar(&o.masterConfig.LogConf.Level, "log-level", o.masterConfig.LogConf.Level, "log level (etc: debug|info|warn|error)")
}

// run runs the master cmd.
func (o *options) run(cmd *cobra.Command) error {
	return util.RunServer(cmd, "master", &o.masterConfig.LogConf, o.masterConfig,
		func() (util.Server, error) {
			return servermaster.NewServer(o.masterConfig)
		})
}

// complete adapts from the command line args and config file to the data required.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := servermaster.GetDefaultMasterConfig()

	if len(o.masterConfigFilePath) > 0 {
		if err := cfg.ConfigFromFile(o.masterConfigFilePath); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "addr":
			cfg.Addr = o.masterConfig.Addr
		case "advertise-addr":
			cfg.AdvertiseAddr = o.masterConfig.AdvertiseAddr
		case "http-addr":
			cfg.HTTPAddr = o.masterConfig.HTTPAddr
		case "max-restarts":
			cfg.MaxRestarts = o.masterConfig.MaxRestarts
		case "checkpoint-storage":
			cfg.CheckpointStorage.Type = o.masterConfig.CheckpointStorage.Type
		case "etcd-endpoints":
			cfg.CheckpointStorage.EtcdEndpoints = o.masterConfig.CheckpointStorage.EtcdEndpoints
		case "config":
			// do nothing
		case "log-file":
			cfg.LogConf.File = o.masterConfig.LogConf.File
		case "log-level":
			cfg.LogConf.Level = o.masterConfig.LogConf.Level
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})

	if err := cfg.Adjust(); err != nil {
		return errors.Trace(err)
	}
	if cfg.CheckpointStorage.Type == checkpoint.TypeMemory {
		cmd.Printf(color.HiYellowString("[WARN] checkpoints are kept in master memory. " +
			"Jobs cannot be restored after the master restarts, " +
			"use --checkpoint-storage=etcd to keep them.\n"))
	}

	o.masterConfig = cfg

	return nil
}

// NewCmdMaster creates the `master` command.
func NewCmdMaster() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "master",
		Short: "Start a seatunnel engine master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := o.complete(cmd)
			if err != nil {
				return err
			}
			err = o.run(cmd)
			cobra.CheckErr(err)
			return nil
		},
	}

	o.addFlags(command)

	return command
}
