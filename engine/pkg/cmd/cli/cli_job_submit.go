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

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// jobSubmitOptions defines flags for job submit.
type jobSubmitOptions struct {
	generalOpts *jobGeneralOptions

	configPath   string
	name         string
	parallelism  int
	restoreJobID model.JobID
	async        bool
}

// newJobSubmitOptions creates new job submit options.
func newJobSubmitOptions(generalOpts *jobGeneralOptions) *jobSubmitOptions {
	return &jobSubmitOptions{generalOpts: generalOpts}
}

// addFlags receives a *cobra.Command reference and binds
// flags related to template printing to it.
func (o *jobSubmitOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "path of the pipeline config file")
	cmd.Flags().StringVarP(&o.name, "name", "n", "", "job name, overrides env.job.name of the pipeline")
	cmd.Flags().IntVarP(&o.parallelism, "parallelism", "p", 0, "job parallelism, overrides env.parallelism of the pipeline")
	cmd.Flags().Int64VarP(&o.restoreJobID, "restore", "r", 0, "restore the job with this id from its last checkpoint")
	cmd.Flags().BoolVar(&o.async, "async", false, "return once the job is submitted")
	_ = cmd.MarkFlagRequired("config")
}

// validate checks that the provided job options are valid.
func (o *jobSubmitOptions) validate(ctx context.Context) error {
	if o.configPath == "" {
		return errors.ErrInvalidArgument.GenWithStackByArgs("config can't be empty")
	}
	if o.parallelism < 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("parallelism can't be negative")
	}
	if o.restoreJobID < 0 {
		return errors.ErrInvalidArgument.GenWithStackByArgs("restore job id can't be negative")
	}
	return o.generalOpts.validate(ctx)
}

// run the `cli job submit` command.
func (o *jobSubmitOptions) run(ctx context.Context, cmd *cobra.Command) error {
	cli := o.generalOpts.client
	cfg := &model.JobConfig{Name: o.name, Parallelism: o.parallelism}

	var env *client.JobExecutionEnvironment
	if o.restoreJobID > 0 {
		env = cli.RestoreExecutionContext(o.configPath, cfg, o.restoreJobID)
	} else {
		env = cli.CreateExecutionContext(o.configPath, cfg)
	}
	proxy, err := env.Execute(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("job %d submitted\n", proxy.JobID())
	if o.async {
		return nil
	}

	status, err := proxy.WaitForJobComplete(ctx)
	if err != nil {
		return err
	}
	summary, err := cli.GetJobMetricsSummary(ctx, proxy.JobID())
	if err != nil {
		log.Warn("failed to get job metrics", zap.Int64("job-id", proxy.JobID()), zap.Error(err))
	}
	cmd.Printf("job %d is %s\n", proxy.JobID(), status)
	if err := util.JSONPrint(cmd, summary); err != nil {
		return err
	}
	if status == model.JobStatusFailed {
		return errors.ErrJobFailed.GenWithStackByArgs(proxy.JobID(), "see the job detail for the failure")
	}
	return nil
}

// newCmdSubmitJob creates the `cli job submit` command.
func newCmdSubmitJob(generalOpts *jobGeneralOptions) *cobra.Command {
	o := newJobSubmitOptions(generalOpts)

	command := &cobra.Command{
		Use:   "submit",
		Short: "Submit a pipeline as a new job, or restore a stopped one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := util.GetDefaultContext()
			if err := o.validate(ctx); err != nil {
				return err
			}
			defer o.generalOpts.close()
			return o.run(ctx, cmd)
		},
	}

	o.addFlags(command)

	return command
}
