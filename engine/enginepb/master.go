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

// MasterServiceName is the gRPC service name of the master.
const MasterServiceName = "enginepb.Master"

// SubmitJobRequest submits a new job, or restores JobID when Restore is set.
type SubmitJobRequest struct {
	JobID    model.JobID     `json:"job-id"`
	Restore  bool            `json:"restore"`
	Config   model.JobConfig `json:"config"`
	Pipeline model.Pipeline  `json:"pipeline"`
}

// SubmitJobResponse carries the id of the submitted job.
type SubmitJobResponse struct {
	JobID model.JobID `json:"job-id"`
}

// JobRequest addresses one job.
type JobRequest struct {
	JobID model.JobID `json:"job-id"`
}

// GetJobStatusResponse carries the status of a job.
type GetJobStatusResponse struct {
	Status model.JobStatus `json:"status"`
}

// PayloadResponse carries a JSON document produced by the master.
type PayloadResponse struct {
	Payload string `json:"payload"`
}

// PrintMessageRequest asks the master to log a message.
type PrintMessageRequest struct {
	Message string `json:"message"`
}

// PrintMessageResponse echoes the printed message.
type PrintMessageResponse struct {
	Message string `json:"message"`
}

// HeartbeatRequest pushes the profile of a worker.
type HeartbeatRequest struct {
	Profile model.WorkerProfile `json:"profile"`
}

// HeartbeatResponse acknowledges a heartbeat.
type HeartbeatResponse struct {
	// TTLInMs is the time after which the master considers the worker lost.
	TTLInMs int64 `json:"ttl-ms"`
}

// ReportTaskStatusRequest carries task reports of one worker.
type ReportTaskStatusRequest struct {
	Reports []model.TaskReport `json:"reports"`
}

// MasterServer is the server API of the master.
type MasterServer interface {
	SubmitJob(context.Context, *SubmitJobRequest) (*SubmitJobResponse, error)
	CancelJob(context.Context, *JobRequest) (*Empty, error)
	SavePointJob(context.Context, *JobRequest) (*Empty, error)
	GetJobStatus(context.Context, *JobRequest) (*GetJobStatusResponse, error)
	GetJobDetailStatus(context.Context, *JobRequest) (*PayloadResponse, error)
	ListJobStatus(context.Context, *Empty) (*PayloadResponse, error)
	GetJobMetrics(context.Context, *JobRequest) (*PayloadResponse, error)
	GetJobInfo(context.Context, *JobRequest) (*PayloadResponse, error)
	PrintMessage(context.Context, *PrintMessageRequest) (*PrintMessageResponse, error)
	WorkerHeartbeat(context.Context, *HeartbeatRequest) (*HeartbeatResponse, error)
	ReportTaskStatus(context.Context, *ReportTaskStatusRequest) (*Empty, error)
}

// MasterServiceDesc is the grpc.ServiceDesc of the master.
var MasterServiceDesc = grpc.ServiceDesc{
	ServiceName: MasterServiceName,
	HandlerType: (*MasterServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MasterServiceName, "SubmitJob", MasterServer.SubmitJob),
		unaryMethod(MasterServiceName, "CancelJob", MasterServer.CancelJob),
		unaryMethod(MasterServiceName, "SavePointJob", MasterServer.SavePointJob),
		unaryMethod(MasterServiceName, "GetJobStatus", MasterServer.GetJobStatus),
		unaryMethod(MasterServiceName, "GetJobDetailStatus", MasterServer.GetJobDetailStatus),
		unaryMethod(MasterServiceName, "ListJobStatus", MasterServer.ListJobStatus),
		unaryMethod(MasterServiceName, "GetJobMetrics", MasterServer.GetJobMetrics),
		unaryMethod(MasterServiceName, "GetJobInfo", MasterServer.GetJobInfo),
		unaryMethod(MasterServiceName, "PrintMessage", MasterServer.PrintMessage),
		unaryMethod(MasterServiceName, "WorkerHeartbeat", MasterServer.WorkerHeartbeat),
		unaryMethod(MasterServiceName, "ReportTaskStatus", MasterServer.ReportTaskStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "engine/enginepb/master.go",
}

// RegisterMasterServer registers srv on s.
func RegisterMasterServer(s grpc.ServiceRegistrar, srv MasterServer) {
	s.RegisterService(&MasterServiceDesc, srv)
}

// MasterClient is the client API of the master.
type MasterClient interface {
	SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error)
	CancelJob(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*Empty, error)
	SavePointJob(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*Empty, error)
	GetJobStatus(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*GetJobStatusResponse, error)
	GetJobDetailStatus(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error)
	ListJobStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PayloadResponse, error)
	GetJobMetrics(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error)
	GetJobInfo(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error)
	PrintMessage(ctx context.Context, in *PrintMessageRequest, opts ...grpc.CallOption) (*PrintMessageResponse, error)
	WorkerHeartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error)
	ReportTaskStatus(ctx context.Context, in *ReportTaskStatusRequest, opts ...grpc.CallOption) (*Empty, error)
}

type masterClient struct {
	cc grpc.ClientConnInterface
}

// NewMasterClient creates a MasterClient on cc.
func NewMasterClient(cc grpc.ClientConnInterface) MasterClient {
	return &masterClient{cc: cc}
}

func (c *masterClient) SubmitJob(ctx context.Context, in *SubmitJobRequest, opts ...grpc.CallOption) (*SubmitJobResponse, error) {
	return invoke[SubmitJobResponse](ctx, c.cc, MasterServiceName, "SubmitJob", in, opts...)
}

func (c *masterClient) CancelJob(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MasterServiceName, "CancelJob", in, opts...)
}

func (c *masterClient) SavePointJob(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MasterServiceName, "SavePointJob", in, opts...)
}

func (c *masterClient) GetJobStatus(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*GetJobStatusResponse, error) {
	return invoke[GetJobStatusResponse](ctx, c.cc, MasterServiceName, "GetJobStatus", in, opts...)
}

func (c *masterClient) GetJobDetailStatus(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error) {
	return invoke[PayloadResponse](ctx, c.cc, MasterServiceName, "GetJobDetailStatus", in, opts...)
}

func (c *masterClient) ListJobStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*PayloadResponse, error) {
	return invoke[PayloadResponse](ctx, c.cc, MasterServiceName, "ListJobStatus", in, opts...)
}

func (c *masterClient) GetJobMetrics(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error) {
	return invoke[PayloadResponse](ctx, c.cc, MasterServiceName, "GetJobMetrics", in, opts...)
}

func (c *masterClient) GetJobInfo(ctx context.Context, in *JobRequest, opts ...grpc.CallOption) (*PayloadResponse, error) {
	return invoke[PayloadResponse](ctx, c.cc, MasterServiceName, "GetJobInfo", in, opts...)
}

func (c *masterClient) PrintMessage(ctx context.Context, in *PrintMessageRequest, opts ...grpc.CallOption) (*PrintMessageResponse, error) {
	return invoke[PrintMessageResponse](ctx, c.cc, MasterServiceName, "PrintMessage", in, opts...)
}

func (c *masterClient) WorkerHeartbeat(ctx context.Context, in *HeartbeatRequest, opts ...grpc.CallOption) (*HeartbeatResponse, error) {
	return invoke[HeartbeatResponse](ctx, c.cc, MasterServiceName, "WorkerHeartbeat", in, opts...)
}

func (c *masterClient) ReportTaskStatus(ctx context.Context, in *ReportTaskStatusRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MasterServiceName, "ReportTaskStatus", in, opts...)
}
