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
	"net/http"
	"net/http/pprof"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/slot"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/worker"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/tcpserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	// registers the built-in connectors
	_ "github.com/quanzhian/incubator-seatunnel/engine/pkg/connector/fake"
)

// Server is an executor: it owns the slots of the node, runs the tasks
// deployed into them and keeps the master informed.
type Server struct {
	cfg    *Config
	logger *zap.Logger

	masterCli   *masterClient
	taskService *worker.Service
	slotService *slot.Service
	grpcSrv     *grpc.Server
}

var _ enginepb.WorkerServer = (*Server)(nil)

// NewServer creates an executor server from an adjusted config.
func NewServer(cfg *Config) (*Server, error) {
	masterCli, err := newMasterClient(cfg.Join, cfg.RPCTimeout)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:       cfg,
		logger:    logutil.NewLogger4Worker(cfg.AdvertiseAddr),
		masterCli: masterCli,
	}
	s.taskService = worker.NewService(cfg.AdvertiseAddr, cfg.TaskServiceConfig(),
		connector.GlobalRegistry(), masterCli, worker.WithTaskStoppedHook(s.onTaskStopped))
	s.slotService = slot.NewService(cfg.AdvertiseAddr, cfg.SlotServiceConfig(), s.taskService, masterCli)
	return s, nil
}

// Run serves until ctx is done or a component fails.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		if err := s.masterCli.Close(); err != nil {
			s.logger.Warn("failed to close master client", zap.Error(err))
		}
	}()

	tcpServer, err := tcpserver.NewTCPServer(s.cfg.Addr)
	if err != nil {
		return err
	}
	s.grpcSrv = rpcutil.NewServer("DeployTask", "CancelTasks", "ResetSlots")
	enginepb.RegisterWorkerServer(s.grpcSrv, s)

	s.slotService.Init()
	defer s.slotService.Close()

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		return s.taskService.Run(ctx)
	})

	wg.Go(func() error {
		return tcpServer.Run(ctx)
	})

	wg.Go(func() error {
		return s.collectMetricLoop(ctx, defaultMetricInterval)
	})

	wg.Go(func() error {
		err := s.grpcSrv.Serve(tcpServer.GrpcListener())
		if err != nil && !tcpserver.IsErrNetClosing(err) {
			return errors.Trace(err)
		}
		return nil
	})

	httpSrv := &http.Server{Handler: newHTTPHandler()}
	wg.Go(func() error {
		err := httpSrv.Serve(tcpServer.HTTP1Listener())
		if err != nil && !tcpserver.IsErrNetClosing(err) && err != http.ErrServerClosed {
			log.Error("http server returned", zap.Error(err))
			return errors.Trace(err)
		}
		return nil
	})

	wg.Go(func() error {
		<-ctx.Done()
		s.grpcSrv.Stop()
		if err := httpSrv.Close(); err != nil {
			log.Warn("failed to close http server", zap.Error(err))
		}
		return nil
	})

	s.logger.Info("executor started",
		zap.String("addr", s.cfg.Addr),
		zap.String("advertise-addr", s.cfg.AdvertiseAddr),
		zap.String("join", s.cfg.Join))
	err = wg.Wait()
	s.logger.Info("executor exited", zap.Error(err))
	return err
}

func newHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.Handle("/metrics", promutil.HTTPHandlerForMetric())
	return mux
}

// onTaskStopped unbinds a stopped task from its slot. The slot may have been
// released already.
func (s *Server) onTaskStopped(slotID model.SlotID, taskID model.TaskID) {
	sctx, err := s.slotService.GetSlotContext(&model.SlotProfile{SlotID: slotID})
	if err != nil {
		return
	}
	sctx.RemoveTask(taskID)
}

// RequestSlot implements enginepb.WorkerServer.
func (s *Server) RequestSlot(_ context.Context, req *enginepb.RequestSlotRequest) (*enginepb.RequestSlotResponse, error) {
	profile, granted, err := s.slotService.RequestSlot(req.JobID, req.Resource)
	if err != nil {
		return nil, err
	}
	return &enginepb.RequestSlotResponse{Profile: *profile, Slot: granted}, nil
}

// ReleaseSlot implements enginepb.WorkerServer.
func (s *Server) ReleaseSlot(_ context.Context, req *enginepb.ReleaseSlotRequest) (*enginepb.Empty, error) {
	if err := s.slotService.ReleaseSlot(req.JobID, &req.Slot); err != nil {
		return nil, err
	}
	return &enginepb.Empty{}, nil
}

// DeployTask implements enginepb.WorkerServer.
func (s *Server) DeployTask(ctx context.Context, req *enginepb.DeployTaskRequest) (*enginepb.Empty, error) {
	sctx, err := s.slotService.GetSlotContext(&req.Slot)
	if err != nil {
		return nil, err
	}
	if sctx.JobID() != req.Task.JobID {
		return nil, errors.ErrWrongTargetSlot.GenWithStackByArgs(req.Slot.SlotID,
			"slot is not owned by the job of the task")
	}
	if err := sctx.DeployTask(ctx, &req.Task); err != nil {
		return nil, err
	}
	return &enginepb.Empty{}, nil
}

// CancelTasks implements enginepb.WorkerServer.
func (s *Server) CancelTasks(_ context.Context, req *enginepb.CancelTasksRequest) (*enginepb.Empty, error) {
	for _, sctx := range s.slotService.SlotContextsOfJob(req.JobID) {
		sctx.CancelTasks(req.Savepoint)
	}
	return &enginepb.Empty{}, nil
}

// ResetSlots implements enginepb.WorkerServer.
func (s *Server) ResetSlots(context.Context, *enginepb.Empty) (*enginepb.Empty, error) {
	s.slotService.Reset()
	return &enginepb.Empty{}, nil
}

// GetWorkerProfile implements enginepb.WorkerServer.
func (s *Server) GetWorkerProfile(context.Context, *enginepb.Empty) (*enginepb.WorkerProfileResponse, error) {
	profile := s.slotService.WorkerProfile()
	if profile == nil {
		return nil, errors.ErrSlotServiceNotInit.GenWithStackByArgs(s.cfg.AdvertiseAddr)
	}
	return &enginepb.WorkerProfileResponse{Profile: *profile}, nil
}
