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
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/executor"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// options defines flags for the `executor` command.
type options struct {
	executorConfig         *executor.Config
	executorConfigFilePath string
}

// newOptions creates new options for the `executor` command.
func newOptions() *options {
	return &options{
		executorConfig: executor.GetDefaultExecutorConfig(),
	}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *options) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.executorConfig.Name, "name", o.executorConfig.Name, "human readable name for executor")
	cmd.Flags().StringVar(&o.executorConfig.Addr, "addr", o.executorConfig.Addr, "Set the listening address for executor")
	cmd.Flags().StringVar(&o.executorConfig.AdvertiseAddr, "advertise-addr", o.executorConfig.AdvertiseAddr, "Set the address the master uses to reach this executor")
	cmd.Flags().StringVar(&o.executorConfig.Join, "join", o.executorConfig.Join, "address of the master to register to")

	cmd.Flags().IntVar(&o.executorConfig.Slot.SlotNum, "slot-num", o.executorConfig.Slot.SlotNum, "number of static slots")
	cmd.Flags().BoolVar(&o.executorConfig.Slot.DynamicSlot, "dynamic-slot", o.executorConfig.Slot.DynamicSlot, "carve slots on demand instead of a fixed slot number")
	cmd.Flags().Float64Var(&o.executorConfig.Slot.CPU, "cpu", o.executorConfig.Slot.CPU, "cpu cores offered to jobs, detected from the node when zero")
	cmd.Flags().StringVar(&o.executorConfig.Slot.MemoryStr, "memory", o.executorConfig.Slot.MemoryStr, "memory offered to jobs (etc: 4GiB), detected from the node when empty")

	cmd.Flags().StringVar(&o.executorConfigFilePath, "config", "", "Path of the configuration file")
	cmd.Flags().StringVar(&o.executorConfig.LogConf.File, "log-file", o.executorConfig.LogConf.File, "log file path")
	cmd.Flags().StringVar(&o.executorConfig.LogConf.Level, "log-level", o.executorConfig.LogConf.Level, "log level (etc: debug|info|warn|error)")
}

// run runs the executor cmd.
func (o *options) run(cmd *cobra.Command) error {
	return util.RunServer(cmd, "executor", &o.executorConfig.LogConf, o.executorConfig,
		func() (util.Server, error) {
			return executor.NewServer(o.executorConfig)
		})
}

// complete adapts from the command line args and config file to the data required.
func (o *options) complete(cmd *cobra.Command) error {
	cfg := executor.GetDefaultExecutorConfig()

	if len(o.executorConfigFilePath) > 0 {
		if err := cfg.ConfigFromFile(o.executorConfigFilePath); err != nil {
			return err
		}
	}

	cmd.Flags().Visit(func(flag *pflag.Flag) {
		switch flag.Name {
		case "name":
			cfg.Name = o.executorConfig.Name
		case "addr":
			cfg.Addr = o.executorConfig.Addr
		case "advertise-addr":
			cfg.AdvertiseAddr = o.executorConfig.AdvertiseAddr
		case "join":
			cfg.Join = o.executorConfig.Join
		case "slot-num":
			cfg.Slot.SlotNum = o.executorConfig.Slot.SlotNum
		case "dynamic-slot":
			cfg.Slot.DynamicSlot = o.executorConfig.Slot.DynamicSlot
		case "cpu":
			cfg.Slot.CPU = o.executorConfig.Slot.CPU
		case "memory":
			cfg.Slot.MemoryStr = o.executorConfig.Slot.MemoryStr
		case "config":
			// do nothing
		case "log-file":
			cfg.LogConf.File = o.executorConfig.LogConf.File
		case "log-level":
			cfg.LogConf.Level = o.executorConfig.LogConf.Level
		default:
			log.Panic("unknown flag, please report a bug", zap.String("flagName", flag.Name))
		}
	})

	if err := cfg.Adjust(); err != nil {
		return errors.Trace(err)
	}

	o.executorConfig = cfg

	return nil
}

// NewCmdExecutor creates the `executor` command.
func NewCmdExecutor() *cobra.Command {
	o := newOptions()

	command := &cobra.Command{
		Use:   "executor",
		Short: "Start a seatunnel engine executor",
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
