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

package client

import (
	"context"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/pipeline"
	"go.uber.org/zap"
)

// JobExecutionEnvironment is a pending submission of one pipeline file.
type JobExecutionEnvironment struct {
	client  *SeaTunnelClient
	path    string
	cfg     model.JobConfig
	jobID   model.JobID
	restore bool
}

func newJobExecutionEnvironment(
	client *SeaTunnelClient, path string, cfg *model.JobConfig, jobID model.JobID, restore bool,
) *JobExecutionEnvironment {
	env := &JobExecutionEnvironment{
		client:  client,
		path:    path,
		jobID:   jobID,
		restore: restore,
	}
	if cfg != nil {
		env.cfg = *cfg
	}
	return env
}

// Execute parses the pipeline file and submits the job. It returns once the
// master has accepted the job.
func (e *JobExecutionEnvironment) Execute(ctx context.Context) (*ClientJobProxy, error) {
	p, err := pipeline.Parse(e.path)
	if err != nil {
		return nil, err
	}
	if err := pipeline.ApplyEnv(&e.cfg, p); err != nil {
		return nil, err
	}
	e.cfg.Adjust()

	jobID, err := e.client.submitJob(ctx, &enginepb.SubmitJobRequest{
		JobID:    e.jobID,
		Restore:  e.restore,
		Config:   e.cfg,
		Pipeline: *p,
	})
	if err != nil {
		return nil, err
	}
	log.Info("job submitted",
		zap.Int64("job-id", jobID),
		zap.String("name", e.cfg.Name),
		zap.Bool("restore", e.restore),
		zap.String("pipeline", pipeline.Describe(p)))
	return e.client.NewJobProxy(jobID), nil
}
