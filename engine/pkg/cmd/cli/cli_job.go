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

package cli

import (
	"context"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
)

const defaultMasterAddr = "127.0.0.1:5801"

// jobGeneralOptions defines some general options of job management
type jobGeneralOptions struct {
	masterAddr string
	rpcTimeout time.Duration

	client *client.SeaTunnelClient
}

func newJobGeneralOptions() *jobGeneralOptions {
	return &jobGeneralOptions{}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *jobGeneralOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}

	cmd.PersistentFlags().StringVar(&o.masterAddr, "master-addr", defaultMasterAddr, "server master address")
	cmd.PersistentFlags().DurationVar(&o.rpcTimeout, "rpc-timeout", 0, "timeout of each rpc to the master, 0 means no timeout")
}

// validate checks that the provided job options are valid.
func (o *jobGeneralOptions) validate(ctx context.Context) error {
	if o.masterAddr == "" {
		return errors.ErrInvalidArgument.GenWithStackByArgs("master-addr can't be empty")
	}
	if o.client != nil {
		return nil
	}
	cli, err := client.NewSeaTunnelClient(ctx, client.ClientConfig{
		MasterAddr: o.masterAddr,
		RPCTimeout: o.rpcTimeout,
	})
	if err != nil {
		return err
	}
	o.client = cli
	return nil
}

func (o *jobGeneralOptions) close() {
	if o.client != nil {
		o.client.Close()
		o.client = nil
	}
}

// jobIDOptions is shared by the subcommands that target one job.
type jobIDOptions struct {
	generalOpts *jobGeneralOptions

	jobID model.JobID
}

func (o *jobIDOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&o.jobID, "job-id", 0, "job id")
	_ = cmd.MarkFlagRequired("job-id")
}

// newCmdJobAction creates a subcommand that runs fn against one job.
func newCmdJobAction(
	generalOpts *jobGeneralOptions,
	use, short string,
	fn func(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error,
) *cobra.Command {
	o := &jobIDOptions{generalOpts: generalOpts}

	command := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := util.GetDefaultContext()
			if err := o.generalOpts.validate(ctx); err != nil {
				return err
			}
			defer o.generalOpts.close()
			return fn(ctx, cmd, o.generalOpts.client, o.jobID)
		},
	}

	o.addFlags(command)

	return command
}

// newCmdJob creates the `cli job` command.
func newCmdJob() *cobra.Command {
	o := newJobGeneralOptions()

	cmds := &cobra.Command{
		Use:   "job",
		Short: "Manage job",
		Args:  cobra.NoArgs,
	}

	o.addFlags(cmds)
	cmds.AddCommand(newCmdSubmitJob(o))
	cmds.AddCommand(newCmdListJob(o))
	cmds.AddCommand(newCmdJobAction(o, "status", "Query the status of a job", runJobStatus))
	cmds.AddCommand(newCmdJobAction(o, "detail", "Query the status of a job and its tasks", runJobDetail))
	cmds.AddCommand(newCmdJobAction(o, "metrics", "Query the metrics of a job", runJobMetrics))
	cmds.AddCommand(newCmdJobAction(o, "info", "Query the DAG of a job", runJobInfo))
	cmds.AddCommand(newCmdJobAction(o, "cancel", "Cancel a job", runCancelJob))
	cmds.AddCommand(newCmdJobAction(o, "savepoint", "Stop a job with a savepoint", runSavePointJob))

	return cmds
}
