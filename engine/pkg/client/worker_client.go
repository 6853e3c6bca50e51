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

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client/internal"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// WorkerClient is the master side client of one executor.
// For a client to a group of executors, refer to WorkerGroup.
type WorkerClient interface {
	// RequestSlot asks the worker for a slot. A nil slot means the request
	// was denied; the returned profile is up to date in both cases.
	RequestSlot(ctx context.Context, jobID model.JobID, resource model.ResourceProfile) (
		*model.WorkerProfile, *model.SlotProfile, error)
	// ReleaseSlot returns a slot owned by jobID.
	ReleaseSlot(ctx context.Context, jobID model.JobID, slot model.SlotProfile) error
	// DeployTask runs task in slot.
	DeployTask(ctx context.Context, slot model.SlotProfile, task *model.TaskDeployment) error
	// CancelTasks stops every task of jobID on the worker.
	CancelTasks(ctx context.Context, jobID model.JobID, savepoint bool) error
	// ResetSlots drops every assignment of the worker.
	ResetSlots(ctx context.Context) error
	// GetWorkerProfile fetches the latest profile.
	GetWorkerProfile(ctx context.Context) (*model.WorkerProfile, error)

	// Close closes the gRPC connection used to create the client.
	Close()
}

type workerClientImpl struct {
	cli     enginepb.WorkerClient
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewWorkerClient creates a new worker client.
// Note that conn will be closed if the returned client is closed.
func NewWorkerClient(conn *grpc.ClientConn, timeout time.Duration) WorkerClient {
	return &workerClientImpl{
		cli:     enginepb.NewWorkerClient(conn),
		conn:    conn,
		timeout: timeout,
	}
}

func (c *workerClientImpl) RequestSlot(
	ctx context.Context, jobID model.JobID, resource model.ResourceProfile,
) (*model.WorkerProfile, *model.SlotProfile, error) {
	// a lost response may have granted a slot, never resend
	call := internal.NewCall(c.cli.RequestSlot,
		&enginepb.RequestSlotRequest{JobID: jobID, Resource: resource},
		internal.WithForceNoRetry(), internal.WithTimeout(c.timeout))
	resp, err := call.Do(ctx)
	if err != nil {
		return nil, nil, err
	}
	return &resp.Profile, resp.Slot, nil
}

func (c *workerClientImpl) ReleaseSlot(ctx context.Context, jobID model.JobID, slot model.SlotProfile) error {
	call := internal.NewCall(c.cli.ReleaseSlot,
		&enginepb.ReleaseSlotRequest{JobID: jobID, Slot: slot},
		internal.WithForceNoRetry(), internal.WithTimeout(c.timeout))
	_, err := call.Do(ctx)
	return err
}

func (c *workerClientImpl) DeployTask(ctx context.Context, slot model.SlotProfile, task *model.TaskDeployment) error {
	call := internal.NewCall(c.cli.DeployTask,
		&enginepb.DeployTaskRequest{Slot: slot, Task: *task},
		internal.WithForceNoRetry(), internal.WithTimeout(c.timeout))
	_, err := call.Do(ctx)
	return err
}

func (c *workerClientImpl) CancelTasks(ctx context.Context, jobID model.JobID, savepoint bool) error {
	call := internal.NewCall(c.cli.CancelTasks,
		&enginepb.CancelTasksRequest{JobID: jobID, Savepoint: savepoint},
		internal.WithTimeout(c.timeout))
	_, err := call.Do(ctx)
	return err
}

func (c *workerClientImpl) ResetSlots(ctx context.Context) error {
	call := internal.NewCall(c.cli.ResetSlots, &enginepb.Empty{}, internal.WithTimeout(c.timeout))
	_, err := call.Do(ctx)
	return err
}

func (c *workerClientImpl) GetWorkerProfile(ctx context.Context) (*model.WorkerProfile, error) {
	call := internal.NewCall(c.cli.GetWorkerProfile, &enginepb.Empty{}, internal.WithTimeout(c.timeout))
	resp, err := call.Do(ctx)
	if err != nil {
		return nil, err
	}
	return &resp.Profile, nil
}

// Close closes the gRPC connection maintained by the client.
func (c *workerClientImpl) Close() {
	if err := c.conn.Close(); err != nil {
		log.L().Warn("failed to close client", zap.Error(err))
	}
}

type workerClientFactory interface {
	NewWorkerClient(addr string) (WorkerClient, error)
}

type workerClientFactoryImpl struct {
	timeout time.Duration
}

func (f *workerClientFactoryImpl) NewWorkerClient(addr string) (WorkerClient, error) {
	// Note that we should not use a blocking dial here, which would increase
	// the risk of deadlocking if the caller is holding a lock.
	conn, err := rpcutil.NewClientConn(addr)
	if err != nil {
		return nil, err
	}
	return NewWorkerClient(conn, f.timeout), nil
}
