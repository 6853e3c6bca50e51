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

package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/executor/slot"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultQueueSize      = 1024
	defaultReportInterval = time.Second
)

// TaskReporter sends task reports to the master.
type TaskReporter interface {
	ReportTaskStatus(ctx context.Context, reports []model.TaskReport) error
}

// Config is the configuration of the task runtime.
type Config struct {
	QueueSize      int
	ReportInterval time.Duration
}

func (c *Config) adjust() {
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.ReportInterval <= 0 {
		c.ReportInterval = defaultReportInterval
	}
}

// Option customizes a Service.
type Option func(*Service)

// WithTaskStoppedHook sets a function called after a task stopped and its
// final status was recorded.
func WithTaskStoppedHook(hook func(slotID model.SlotID, taskID model.TaskID)) Option {
	return func(s *Service) {
		s.onTaskStopped = hook
	}
}

// WithClock sets the clock driving the report loop.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// Service runs pipeline tasks on behalf of slots and reports their status.
type Service struct {
	address  string
	cfg      Config
	registry *connector.Registry
	reporter TaskReporter
	runner   *TaskRunner
	clock    clock.Clock
	logger   *zap.Logger

	onTaskStopped func(slotID model.SlotID, taskID model.TaskID)

	mu    sync.Mutex
	tasks map[model.TaskID]*PipelineTask
	// latest status change or checkpoint of each task, not yet delivered
	pending map[model.TaskID]model.TaskReport

	notifyCh     chan struct{}
	reportWarnRL *rate.Limiter
}

var _ slot.TaskExecutionService = (*Service)(nil)

// NewService creates a task runtime for the worker at address.
func NewService(
	address string, cfg Config, registry *connector.Registry, reporter TaskReporter, opts ...Option,
) *Service {
	cfg.adjust()
	s := &Service{
		address:      address,
		cfg:          cfg,
		registry:     registry,
		reporter:     reporter,
		clock:        clock.New(),
		logger:       logutil.NewLogger4Worker(address).With(zap.String("component", "task-runtime")),
		tasks:        make(map[model.TaskID]*PipelineTask),
		pending:      make(map[model.TaskID]model.TaskReport),
		notifyCh:     make(chan struct{}, 1),
		reportWarnRL: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = NewTaskRunner(cfg.QueueSize, s.onRunnerStopped)
	return s
}

// Run runs the task runner and the report loop until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.runner.Run(gctx)
	})
	g.Go(func() error {
		return s.reportLoop(gctx)
	})
	return g.Wait()
}

// DeployTask implements slot.TaskExecutionService.
func (s *Service) DeployTask(_ context.Context, slotID model.SlotID, deployment *model.TaskDeployment) error {
	s.mu.Lock()
	if _, ok := s.tasks[deployment.TaskID]; ok {
		s.mu.Unlock()
		return errors.ErrTaskAlreadyExists.GenWithStackByArgs(deployment.TaskID)
	}
	task := NewPipelineTask(deployment, slotID, s.address, s.registry, s.onReport)
	s.tasks[deployment.TaskID] = task
	s.mu.Unlock()

	if err := s.runner.AddTask(task); err != nil {
		s.mu.Lock()
		delete(s.tasks, deployment.TaskID)
		s.mu.Unlock()
		return err
	}
	s.logger.Info("task deployed",
		zap.String("task-id", deployment.TaskID),
		zap.Int64("slot-id", slotID),
		zap.Bool("restore", deployment.Restore != nil))
	return nil
}

// CancelTask implements slot.TaskExecutionService.
func (s *Service) CancelTask(taskID model.TaskID, savepoint bool) {
	s.mu.Lock()
	task, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return
	}
	task.RequestStop(savepoint)
	if !savepoint {
		// interrupts a source blocked in PollNext
		s.runner.CancelTask(taskID)
	}
}

// TaskCount returns the number of running tasks.
func (s *Service) TaskCount() int64 {
	return s.runner.TaskCount()
}

// TaskReports returns the current reports of all known tasks, sorted by id.
func (s *Service) TaskReports() []model.TaskReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	reports := make([]model.TaskReport, 0, len(s.tasks))
	for _, task := range s.tasks {
		reports = append(reports, task.Report())
	}
	sortReports(reports)
	return reports
}

func (s *Service) onReport(report model.TaskReport) {
	s.mu.Lock()
	s.pending[report.TaskID] = report
	s.mu.Unlock()
	if report.Status.IsTerminal() {
		select {
		case s.notifyCh <- struct{}{}:
		default:
		}
	}
}

func (s *Service) onRunnerStopped(id RunnableID, err error) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if !task.Status().IsTerminal() {
		// never launched
		task.Fail(err)
	}
	if s.onTaskStopped != nil {
		s.onTaskStopped(task.SlotID(), id)
	}
}

func (s *Service) reportLoop(ctx context.Context) error {
	ticker := s.clock.Ticker(s.cfg.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
		case <-s.notifyCh:
		}
		s.flush(ctx)
	}
}

// flush sends pending reports plus a snapshot of every running task. Pending
// reports that fail to be sent are kept unless superseded.
func (s *Service) flush(ctx context.Context) {
	s.mu.Lock()
	sent := s.pending
	s.pending = make(map[model.TaskID]model.TaskReport)
	reports := make([]model.TaskReport, 0, len(sent)+len(s.tasks))
	for _, r := range sent {
		reports = append(reports, r)
	}
	for id, task := range s.tasks {
		if _, ok := sent[id]; !ok {
			reports = append(reports, task.Report())
		}
	}
	s.mu.Unlock()

	if len(reports) == 0 {
		return
	}
	sortReports(reports)
	if err := s.reporter.ReportTaskStatus(ctx, reports); err != nil {
		s.mu.Lock()
		for id, r := range sent {
			if _, newer := s.pending[id]; !newer {
				s.pending[id] = r
			}
		}
		s.mu.Unlock()
		if s.reportWarnRL.Allow() {
			s.logger.Warn("failed to report task status", zap.Int("reports", len(reports)), zap.Error(err))
		}
	}
}

func sortReports(reports []model.TaskReport) {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TaskID < reports[j].TaskID
	})
}
