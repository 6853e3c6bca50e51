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

package servermaster

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/resource"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/scheduler"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/tcpserver"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	// registers the built-in connectors
	_ "github.com/quanzhian/incubator-seatunnel/engine/pkg/connector/fake"
)

// Server is the master of the cluster: it tracks the workers, schedules
// slots and drives every job.
type Server struct {
	cfg    *Config
	logger *zap.Logger

	storage       checkpoint.Storage
	workerGroup   *client.DefaultWorkerGroup
	workerManager *resource.WorkerManager
	jobManager    *JobManagerImpl
	grpcSrv       *grpc.Server
}

var (
	_ enginepb.MasterServer   = (*Server)(nil)
	_ resource.WorkerResetter = (*Server)(nil)
)

// NewServer creates a master server from an adjusted config.
func NewServer(cfg *Config) (*Server, error) {
	storage, err := checkpoint.NewStorage(&cfg.CheckpointStorage)
	if err != nil {
		return nil, err
	}
	logger := logutil.WithComponent("server-master")
	clk := clock.New()

	s := &Server{
		cfg:         cfg,
		logger:      logger,
		storage:     storage,
		workerGroup: client.NewWorkerGroup(cfg.RPCTimeout, logger),
	}
	s.workerManager = resource.NewWorkerManager(cfg.WorkerTTL, cfg.CheckInterval, s, resource.WithClock(clk))
	s.jobManager = NewJobManagerImpl(&jobMasterDeps{
		scheduler: scheduler.NewScheduler(s.workerManager),
		workers:   s.workerManager,
		group:     s.workerGroup,
		storage:   storage,
		clock:     clk,
		cfg:       cfg.jobMasterConfig(),
	}, connector.GlobalRegistry())
	s.workerManager.RegisterLostListener(s.onWorkerLost)
	return s, nil
}

func (s *Server) onWorkerLost(addr string) {
	s.jobManager.OnWorkerLost(addr)
	s.workerGroup.RemoveWorker(addr)
}

// ResetWorker implements resource.WorkerResetter.
func (s *Server) ResetWorker(ctx context.Context, addr string) error {
	cli, err := s.workerGroup.GetWorkerClient(addr)
	if err != nil {
		return err
	}
	return cli.ResetSlots(ctx)
}

// Run serves until ctx is done or a component fails.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		s.workerGroup.Close()
		if err := s.storage.Close(); err != nil {
			s.logger.Warn("failed to close checkpoint storage", zap.Error(err))
		}
	}()

	tcpServer, err := tcpserver.NewTCPServer(s.cfg.Addr)
	if err != nil {
		return err
	}
	httpLis := tcpServer.HTTP1Listener()
	if s.cfg.HTTPAddr != "" {
		httpLis, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			return errors.Annotate(multierr.Append(err, tcpServer.Close()), "listen http-addr")
		}
	}

	s.grpcSrv = rpcutil.NewServer("SubmitJob", "CancelJob", "SavePointJob")
	enginepb.RegisterMasterServer(s.grpcSrv, s)
	httpSrv := &http.Server{
		Handler:           newHTTPHandler(NewOpenAPI(s.jobManager, s.workerManager)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return tcpServer.Run(ctx)
	})

	wg.Go(func() error {
		err := s.grpcSrv.Serve(tcpServer.GrpcListener())
		if err != nil && !tcpserver.IsErrNetClosing(err) {
			return errors.Trace(err)
		}
		return nil
	})

	wg.Go(func() error {
		err := httpSrv.Serve(httpLis)
		if err != nil && !tcpserver.IsErrNetClosing(err) && err != http.ErrServerClosed {
			log.Error("http server returned", zap.Error(err))
			return errors.Trace(err)
		}
		return nil
	})

	wg.Go(func() error {
		return s.workerManager.Run(ctx)
	})

	wg.Go(func() error {
		return s.jobManager.Run(ctx)
	})

	wg.Go(func() error {
		return s.collectMetricLoop(ctx, defaultMetricInterval)
	})

	wg.Go(func() error {
		<-ctx.Done()
		s.grpcSrv.Stop()
		if err := httpSrv.Close(); err != nil {
			log.Warn("failed to close http server", zap.Error(err))
		}
		return nil
	})

	s.logger.Info("master started",
		zap.String("addr", s.cfg.Addr),
		zap.String("advertise-addr", s.cfg.AdvertiseAddr),
		zap.String("http-addr", s.cfg.HTTPAddr),
		zap.String("checkpoint-storage", s.cfg.CheckpointStorage.Type))
	err = wg.Wait()
	s.logger.Info("master exited", zap.Error(err))
	return err
}

func (s *Server) collectMetricLoop(ctx context.Context, tickInterval time.Duration) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		collectMetrics(s.workerManager.WorkerCount(), s.jobManager)
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
		}
	}
}

// SubmitJob passes request onto "JobManager".
func (s *Server) SubmitJob(ctx context.Context, req *enginepb.SubmitJobRequest) (*enginepb.SubmitJobResponse, error) {
	jobID, err := s.jobManager.SubmitJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return &enginepb.SubmitJobResponse{JobID: jobID}, nil
}

// CancelJob implements enginepb.MasterServer.
func (s *Server) CancelJob(ctx context.Context, req *enginepb.JobRequest) (*enginepb.Empty, error) {
	if err := s.jobManager.CancelJob(ctx, req.JobID); err != nil {
		return nil, err
	}
	return &enginepb.Empty{}, nil
}

// SavePointJob implements enginepb.MasterServer.
func (s *Server) SavePointJob(ctx context.Context, req *enginepb.JobRequest) (*enginepb.Empty, error) {
	if err := s.jobManager.SavePointJob(ctx, req.JobID); err != nil {
		return nil, err
	}
	return &enginepb.Empty{}, nil
}

// GetJobStatus implements enginepb.MasterServer.
func (s *Server) GetJobStatus(_ context.Context, req *enginepb.JobRequest) (*enginepb.GetJobStatusResponse, error) {
	status, err := s.jobManager.GetJobStatus(req.JobID)
	if err != nil {
		return nil, err
	}
	return &enginepb.GetJobStatusResponse{Status: status}, nil
}

// GetJobDetailStatus implements enginepb.MasterServer.
func (s *Server) GetJobDetailStatus(_ context.Context, req *enginepb.JobRequest) (*enginepb.PayloadResponse, error) {
	detail, err := s.jobManager.GetJobDetailStatus(req.JobID)
	if err != nil {
		return nil, err
	}
	return newPayloadResponse(detail)
}

// ListJobStatus implements enginepb.MasterServer.
func (s *Server) ListJobStatus(context.Context, *enginepb.Empty) (*enginepb.PayloadResponse, error) {
	return newPayloadResponse(s.jobManager.ListJobStatus())
}

// GetJobMetrics implements enginepb.MasterServer.
func (s *Server) GetJobMetrics(_ context.Context, req *enginepb.JobRequest) (*enginepb.PayloadResponse, error) {
	raw, err := s.jobManager.GetJobMetrics(req.JobID)
	if err != nil {
		return nil, err
	}
	return &enginepb.PayloadResponse{Payload: raw}, nil
}

// GetJobInfo implements enginepb.MasterServer.
func (s *Server) GetJobInfo(_ context.Context, req *enginepb.JobRequest) (*enginepb.PayloadResponse, error) {
	dag, err := s.jobManager.GetJobInfo(req.JobID)
	if err != nil {
		return nil, err
	}
	return newPayloadResponse(dag)
}

// PrintMessage implements enginepb.MasterServer.
func (s *Server) PrintMessage(_ context.Context, req *enginepb.PrintMessageRequest) (*enginepb.PrintMessageResponse, error) {
	s.logger.Info("print message", zap.String("message", req.Message))
	return &enginepb.PrintMessageResponse{Message: req.Message}, nil
}

// WorkerHeartbeat implements enginepb.MasterServer.
func (s *Server) WorkerHeartbeat(_ context.Context, req *enginepb.HeartbeatRequest) (*enginepb.HeartbeatResponse, error) {
	if err := s.workerManager.HandleHeartbeat(&req.Profile); err != nil {
		return nil, err
	}
	return &enginepb.HeartbeatResponse{TTLInMs: s.workerManager.TTL().Milliseconds()}, nil
}

// ReportTaskStatus implements enginepb.MasterServer.
func (s *Server) ReportTaskStatus(_ context.Context, req *enginepb.ReportTaskStatusRequest) (*enginepb.Empty, error) {
	s.jobManager.OnTaskReports(req.Reports)
	return &enginepb.Empty{}, nil
}

func newPayloadResponse(v any) (*enginepb.PayloadResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &enginepb.PayloadResponse{Payload: string(data)}, nil
}
