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

	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ClientConfig configures a SeaTunnelClient.
type ClientConfig struct {
	MasterAddr string
	// RPCTimeout bounds each call to the master. Zero leaves the deadline to
	// the caller's context.
	RPCTimeout time.Duration
}

// SeaTunnelClient talks to the master on behalf of a user. Every call is a
// single round trip; failures are returned to the caller and never retried.
type SeaTunnelClient struct {
	cfg  ClientConfig
	conn *grpc.ClientConn
	cli  enginepb.MasterClient
}

// NewSeaTunnelClient creates a client of the master at cfg.MasterAddr. The
// connection is established lazily, so an unreachable master is only
// reported by the first call.
func NewSeaTunnelClient(_ context.Context, cfg ClientConfig) (*SeaTunnelClient, error) {
	if cfg.MasterAddr == "" {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("master address is empty")
	}
	if cfg.RPCTimeout < 0 {
		return nil, errors.ErrInvalidArgument.GenWithStackByArgs("negative rpc timeout " + cfg.RPCTimeout.String())
	}
	conn, err := rpcutil.NewClientConn(cfg.MasterAddr)
	if err != nil {
		return nil, err
	}
	return &SeaTunnelClient{
		cfg:  cfg,
		conn: conn,
		cli:  enginepb.NewMasterClient(conn),
	}, nil
}

// CreateExecutionContext prepares the submission of the pipeline defined in
// path. No I/O is performed until Execute.
func (c *SeaTunnelClient) CreateExecutionContext(path string, cfg *model.JobConfig) *JobExecutionEnvironment {
	return newJobExecutionEnvironment(c, path, cfg, 0, false)
}

// RestoreExecutionContext prepares the restore of jobID, which resumes from
// the last checkpoint stored by the master.
func (c *SeaTunnelClient) RestoreExecutionContext(
	path string, cfg *model.JobConfig, jobID model.JobID,
) *JobExecutionEnvironment {
	return newJobExecutionEnvironment(c, path, cfg, jobID, true)
}

// NewJobProxy binds a proxy to a job that was submitted earlier.
func (c *SeaTunnelClient) NewJobProxy(jobID model.JobID) *ClientJobProxy {
	return &ClientJobProxy{client: c, jobID: jobID}
}

// callContext bounds one call by RPCTimeout, if set.
func (c *SeaTunnelClient) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.RPCTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.cfg.RPCTimeout)
}

func (c *SeaTunnelClient) submitJob(ctx context.Context, req *enginepb.SubmitJobRequest) (model.JobID, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.cli.SubmitJob(ctx, req)
	if err != nil {
		return 0, c.convertErr(err, "submit job")
	}
	return resp.JobID, nil
}

// GetJobStatus returns the status of jobID.
func (c *SeaTunnelClient) GetJobStatus(ctx context.Context, jobID model.JobID) (model.JobStatus, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.cli.GetJobStatus(ctx, &enginepb.JobRequest{JobID: jobID})
	if err != nil {
		return model.JobStatusUnknowable, c.convertErr(err, "get job status")
	}
	return resp.Status, nil
}

// GetJobDetailStatus returns the detail status of jobID as a JSON document.
func (c *SeaTunnelClient) GetJobDetailStatus(ctx context.Context, jobID model.JobID) (string, error) {
	return c.payload(ctx, c.cli.GetJobDetailStatus, &enginepb.JobRequest{JobID: jobID}, "get job detail status")
}

// ListJobStatus returns the brief status of every job known to the master
// as a JSON document.
func (c *SeaTunnelClient) ListJobStatus(ctx context.Context) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.cli.ListJobStatus(ctx, &enginepb.Empty{})
	if err != nil {
		return "", c.convertErr(err, "list job status")
	}
	return resp.Payload, nil
}

// GetJobMetrics returns the raw metrics document of jobID.
func (c *SeaTunnelClient) GetJobMetrics(ctx context.Context, jobID model.JobID) (string, error) {
	return c.payload(ctx, c.cli.GetJobMetrics, &enginepb.JobRequest{JobID: jobID}, "get job metrics")
}

// GetJobMetricsSummary returns the aggregated row counters of jobID.
func (c *SeaTunnelClient) GetJobMetricsSummary(ctx context.Context, jobID model.JobID) (model.JobMetricsSummary, error) {
	raw, err := c.GetJobMetrics(ctx, jobID)
	if err != nil {
		return model.JobMetricsSummary{}, err
	}
	return ParseJobMetricsSummary(raw), nil
}

// GetJobInfo returns the logical plan of jobID.
func (c *SeaTunnelClient) GetJobInfo(ctx context.Context, jobID model.JobID) (*model.JobDAGInfo, error) {
	raw, err := c.payload(ctx, c.cli.GetJobInfo, &enginepb.JobRequest{JobID: jobID}, "get job info")
	if err != nil {
		return nil, err
	}
	dag := &model.JobDAGInfo{}
	if err := json.Unmarshal([]byte(raw), dag); err != nil {
		return nil, errors.WrapError(errors.ErrMasterRPCFailed, err, "decode job info")
	}
	return dag, nil
}

// CancelJob asks the master to cancel jobID. It returns once the master has
// acknowledged the request.
func (c *SeaTunnelClient) CancelJob(ctx context.Context, jobID model.JobID) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	_, err := c.cli.CancelJob(ctx, &enginepb.JobRequest{JobID: jobID})
	return c.convertErr(err, "cancel job")
}

// SavePointJob asks the master to stop jobID with a savepoint. It returns
// once the master has acknowledged the request.
func (c *SeaTunnelClient) SavePointJob(ctx context.Context, jobID model.JobID) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	_, err := c.cli.SavePointJob(ctx, &enginepb.JobRequest{JobID: jobID})
	return c.convertErr(err, "savepoint job")
}

// PrintMessageToMaster makes the master log msg and returns its echo.
func (c *SeaTunnelClient) PrintMessageToMaster(ctx context.Context, msg string) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := c.cli.PrintMessage(ctx, &enginepb.PrintMessageRequest{Message: msg})
	if err != nil {
		return "", c.convertErr(err, "print message")
	}
	return resp.Message, nil
}

// Close closes the connection to the master.
func (c *SeaTunnelClient) Close() {
	if err := c.conn.Close(); err != nil {
		log.L().Warn("failed to close client", zap.Error(err))
	}
}

func (c *SeaTunnelClient) payload(
	ctx context.Context,
	f func(context.Context, *enginepb.JobRequest, ...grpc.CallOption) (*enginepb.PayloadResponse, error),
	req *enginepb.JobRequest,
	method string,
) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	resp, err := f(ctx, req)
	if err != nil {
		return "", c.convertErr(err, method)
	}
	return resp.Payload, nil
}

// convertErr turns a failure of the channel into ErrMasterRPCFailed and
// restores the normalized error returned by the master otherwise.
func (c *SeaTunnelClient) convertErr(err error, method string) error {
	if err == nil {
		return nil
	}
	if rpcutil.IsTransportError(err) {
		return errors.WrapError(errors.ErrMasterRPCFailed, err, method)
	}
	return rpcutil.FromGRPCError(err)
}
