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
	"context"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/slot"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/worker"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"google.golang.org/grpc"
)

// masterClient is the executor side of the master service. Every call is
// bounded by the rpc timeout.
type masterClient struct {
	conn    *grpc.ClientConn
	cli     enginepb.MasterClient
	timeout time.Duration
}

var (
	_ slot.HeartbeatSender = (*masterClient)(nil)
	_ worker.TaskReporter  = (*masterClient)(nil)
)

func newMasterClient(addr string, timeout time.Duration) (*masterClient, error) {
	conn, err := rpcutil.NewClientConn(addr)
	if err != nil {
		return nil, err
	}
	return &masterClient{
		conn:    conn,
		cli:     enginepb.NewMasterClient(conn),
		timeout: timeout,
	}, nil
}

// SendHeartbeat implements slot.HeartbeatSender.
func (c *masterClient) SendHeartbeat(ctx context.Context, profile *model.WorkerProfile) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.cli.WorkerHeartbeat(ctx, &enginepb.HeartbeatRequest{Profile: *profile})
	return rpcutil.FromGRPCError(err)
}

// ReportTaskStatus implements worker.TaskReporter.
func (c *masterClient) ReportTaskStatus(ctx context.Context, reports []model.TaskReport) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.cli.ReportTaskStatus(ctx, &enginepb.ReportTaskStatusRequest{Reports: reports})
	return rpcutil.FromGRPCError(err)
}

func (c *masterClient) Close() error {
	return errors.Trace(c.conn.Close())
}
