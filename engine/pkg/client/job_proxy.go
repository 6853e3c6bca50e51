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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

const (
	pollInitialInterval = 100 * time.Millisecond
	pollMaxInterval     = 2 * time.Second
)

// ClientJobProxy is bound to one submitted job.
type ClientJobProxy struct {
	client *SeaTunnelClient
	jobID  model.JobID
}

// JobID returns the id of the job.
func (p *ClientJobProxy) JobID() model.JobID {
	return p.jobID
}

// GetJobStatus returns the current status of the job.
func (p *ClientJobProxy) GetJobStatus(ctx context.Context) (model.JobStatus, error) {
	return p.client.GetJobStatus(ctx, p.jobID)
}

// CancelJob cancels the job.
func (p *ClientJobProxy) CancelJob(ctx context.Context) error {
	return p.client.CancelJob(ctx, p.jobID)
}

// SavePointJob stops the job with a savepoint.
func (p *ClientJobProxy) SavePointJob(ctx context.Context) error {
	return p.client.SavePointJob(ctx, p.jobID)
}

// WaitForJobComplete polls the status of the job until it is terminal. It
// never gives up on its own; cancel ctx to stop waiting.
func (p *ClientJobProxy) WaitForJobComplete(ctx context.Context) (model.JobStatus, error) {
	bo := newPollBackoff()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	last := model.JobStatusUnknowable
	for {
		status, err := p.GetJobStatus(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return last, errors.Trace(ctx.Err())
			}
			return last, err
		}
		if status.IsTerminal() {
			return status, nil
		}
		last = status
		timer.Reset(bo.NextBackOff())
		select {
		case <-ctx.Done():
			return last, errors.Trace(ctx.Err())
		case <-timer.C:
		}
	}
}

func newPollBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = pollInitialInterval
	bo.MaxInterval = pollMaxInterval
	// 0 means never stop
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// ParseJobMetricsSummary sums the source and sink counters of a metrics
// document. An empty or undecodable document gives a zero summary.
func ParseJobMetricsSummary(raw string) model.JobMetricsSummary {
	var summary model.JobMetricsSummary
	if raw == "" {
		return summary
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return summary
	}
	summary.SourceReadCount = sumMetricValues(doc[model.MetricSourceReceivedCount])
	summary.SinkWriteCount = sumMetricValues(doc[model.MetricSinkWriteCount])
	return summary
}

// sumMetricValues returns 0 for an absent or malformed series.
func sumMetricValues(series json.RawMessage) int64 {
	if len(series) == 0 {
		return 0
	}
	var values []struct {
		Value int64 `json:"value"`
	}
	if err := json.Unmarshal(series, &values); err != nil {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v.Value
	}
	return sum
}
