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

package enginepb

import (
	"context"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"google.golang.org/grpc"
)

// WorkerServiceName is the gRPC service name of a worker.
const WorkerServiceName = "enginepb.Worker"

// RequestSlotRequest asks a worker for a slot.
type RequestSlotRequest struct {
	JobID    model.JobID           `json:"job-id"`
	Resource model.ResourceProfile `json:"resource"`
}

// RequestSlotResponse carries the granted slot, nil if denied, and the
// profile of the worker after the request.
type RequestSlotResponse struct {
	Profile model.WorkerProfile `json:"profile"`
	Slot    *model.SlotProfile  `json:"slot,omitempty"`
}

// ReleaseSlotRequest returns a slot to a worker.
type ReleaseSlotRequest struct {
	JobID model.JobID       `json:"job-id"`
	Slot  model.SlotProfile `json:"slot"`
}

// DeployTaskRequest runs a task in an assigned slot.
type DeployTaskRequest struct {
	Slot model.SlotProfile    `json:"slot"`
	Task model.TaskDeployment `json:"task"`
}

// CancelTasksRequest stops all tasks of a job on a worker. With Savepoint
// set, tasks commit their pending output before stopping.
type CancelTasksRequest struct {
	JobID     model.JobID `json:"job-id"`
	Savepoint bool        `json:"savepoint"`
}

// WorkerProfileResponse carries the profile of a worker.
type WorkerProfileResponse struct {
	Profile model.WorkerProfile `json:"profile"`
}

// WorkerServer is the server API of a worker.
type WorkerServer interface {
	RequestSlot(context.Context, *RequestSlotRequest) (*RequestSlotResponse, error)
	ReleaseSlot(context.Context, *ReleaseSlotRequest) (*Empty, error)
	DeployTask(context.Context, *DeployTaskRequest) (*Empty, error)
	CancelTasks(context.Context, *CancelTasksRequest) (*Empty, error)
	ResetSlots(context.Context, *Empty) (*Empty, error)
	GetWorkerProfile(context.Context, *Empty) (*WorkerProfileResponse, error)
}

// WorkerServiceDesc is the grpc.ServiceDesc of a worker.
var WorkerServiceDesc = grpc.ServiceDesc{
	ServiceName: WorkerServiceName,
	HandlerType: (*WorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(WorkerServiceName, "RequestSlot", WorkerServer.RequestSlot),
		unaryMethod(WorkerServiceName, "ReleaseSlot", WorkerServer.ReleaseSlot),
		unaryMethod(WorkerServiceName, "DeployTask", WorkerServer.DeployTask),
		unaryMethod(WorkerServiceName, "CancelTasks", WorkerServer.CancelTasks),
		unaryMethod(WorkerServiceName, "ResetSlots", WorkerServer.ResetSlots),
		unaryMethod(WorkerServiceName, "GetWorkerProfile", WorkerServer.GetWorkerProfile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "engine/enginepb/worker.go",
}

// RegisterWorkerServer registers srv on s.
func RegisterWorkerServer(s grpc.ServiceRegistrar, srv WorkerServer) {
	s.RegisterService(&WorkerServiceDesc, srv)
}

// WorkerClient is the client API of a worker.
type WorkerClient interface {
	RequestSlot(ctx context.Context, in *RequestSlotRequest, opts ...grpc.CallOption) (*RequestSlotResponse, error)
	ReleaseSlot(ctx context.Context, in *ReleaseSlotRequest, opts ...grpc.CallOption) (*Empty, error)
	DeployTask(ctx context.Context, in *DeployTaskRequest, opts ...grpc.CallOption) (*Empty, error)
	CancelTasks(ctx context.Context, in *CancelTasksRequest, opts ...grpc.CallOption) (*Empty, error)
	ResetSlots(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error)
	GetWorkerProfile(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*WorkerProfileResponse, error)
}

type workerClient struct {
	cc grpc.ClientConnInterface
}

// NewWorkerClient creates a WorkerClient on cc.
func NewWorkerClient(cc grpc.ClientConnInterface) WorkerClient {
	return &workerClient{cc: cc}
}

func (c *workerClient) RequestSlot(ctx context.Context, in *RequestSlotRequest, opts ...grpc.CallOption) (*RequestSlotResponse, error) {
	return invoke[RequestSlotResponse](ctx, c.cc, WorkerServiceName, "RequestSlot", in, opts...)
}

func (c *workerClient) ReleaseSlot(ctx context.Context, in *ReleaseSlotRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, WorkerServiceName, "ReleaseSlot", in, opts...)
}

func (c *workerClient) DeployTask(ctx context.Context, in *DeployTaskRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, WorkerServiceName, "DeployTask", in, opts...)
}

func (c *workerClient) CancelTasks(ctx context.Context, in *CancelTasksRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, WorkerServiceName, "CancelTasks", in, opts...)
}

func (c *workerClient) ResetSlots(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, WorkerServiceName, "ResetSlots", in, opts...)
}

func (c *workerClient) GetWorkerProfile(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*WorkerProfileResponse, error) {
	return invoke[WorkerProfileResponse](ctx, c.cc, WorkerServiceName, "GetWorkerProfile", in, opts...)
}
