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

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/cmd/util"
	"github.com/spf13/cobra"
)

// newCmdListJob creates the `cli job list` command.
func newCmdListJob(generalOpts *jobGeneralOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs known by the master",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := util.GetDefaultContext()
			if err := generalOpts.validate(ctx); err != nil {
				return err
			}
			defer generalOpts.close()
			jobs, err := generalOpts.client.ListJobStatus(ctx)
			if err != nil {
				return err
			}
			cmd.Println(jobs)
			return nil
		},
	}
}

func runJobStatus(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	status, err := cli.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	cmd.Println(status.String())
	return nil
}

func runJobDetail(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	detail, err := cli.GetJobDetailStatus(ctx, jobID)
	if err != nil {
		return err
	}
	cmd.Println(detail)
	return nil
}

func runJobMetrics(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	raw, err := cli.GetJobMetrics(ctx, jobID)
	if err != nil {
		return err
	}
	return util.JSONPrint(cmd, struct {
		Summary model.JobMetricsSummary `json:"summary"`
		Raw     string                  `json:"raw"`
	}{
		Summary: client.ParseJobMetricsSummary(raw),
		Raw:     raw,
	})
}

func runJobInfo(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	info, err := cli.GetJobInfo(ctx, jobID)
	if err != nil {
		return err
	}
	return util.JSONPrint(cmd, info)
}

func runCancelJob(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	if err := cli.CancelJob(ctx, jobID); err != nil {
		return err
	}
	cmd.Printf("cancel of job %d requested\n", jobID)
	return nil
}

func runSavePointJob(ctx context.Context, cmd *cobra.Command, cli *client.SeaTunnelClient, jobID model.JobID) error {
	if err := cli.SavePointJob(ctx, jobID); err != nil {
		return err
	}
	cmd.Printf("savepoint of job %d requested\n", jobID)
	return nil
}
