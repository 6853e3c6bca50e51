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

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type stopMode = int32

const (
	stopNone stopMode = iota
	stopCancel
	stopSavepoint
)

// PipelineTask runs one parallel instance of a pipeline: rows polled from
// the source go through the transforms into every sink. Sink output is
// committed every CheckpointInterval rows, at the end of input and on
// savepoint; it is aborted on cancel and failure.
type PipelineTask struct {
	deployment *model.TaskDeployment
	slotID     model.SlotID
	worker     string
	registry   *connector.Registry
	listener   func(model.TaskReport)
	logger     *zap.Logger

	source     connector.SourceReader
	sourceIdx  int
	transforms []connector.Transform
	sinks      []connector.SinkWriter
	batch      []connector.Row

	// only accessed by the goroutine running the task
	// offset counts the rows consumed from the current source
	offset          int64
	sinceCheckpoint int
	pollErr         error
	finalStatus     model.TaskStatus

	sourceReceived atomic.Int64
	sinkWrite      atomic.Int64
	status         atomic.Int32
	stop           atomic.Int32
	checkpoint     atomic.Pointer[model.TaskCheckpoint]
	errMsg         atomic.String
}

// NewPipelineTask creates a task for deployment running in slotID. listener
// receives a report on every status change and checkpoint.
func NewPipelineTask(
	deployment *model.TaskDeployment,
	slotID model.SlotID,
	worker string,
	registry *connector.Registry,
	listener func(model.TaskReport),
) *PipelineTask {
	t := &PipelineTask{
		deployment: deployment,
		slotID:     slotID,
		worker:     worker,
		registry:   registry,
		listener:   listener,
		logger: logutil.NewLogger4Task(deployment.JobID, deployment.TaskIndex).
			With(zap.String("task-id", deployment.TaskID)),
	}
	t.status.Store(int32(model.TaskStatusDeploying))
	if cp := deployment.Restore; cp != nil {
		t.sourceIdx = cp.SourceIndex
		t.offset = cp.Offset
		t.sourceReceived.Store(cp.SourceReceived)
		t.sinkWrite.Store(cp.CommittedRows)
		t.checkpoint.Store(cp)
	}
	return t
}

// ID implements Runnable.
func (t *PipelineTask) ID() RunnableID {
	return t.deployment.TaskID
}

// SlotID returns the slot the task runs in.
func (t *PipelineTask) SlotID() model.SlotID {
	return t.slotID
}

// Status returns the current status.
func (t *PipelineTask) Status() model.TaskStatus {
	return model.TaskStatus(t.status.Load())
}

// RequestStop asks the task to stop at the next poll. With savepoint the
// pending output is committed first. The first request wins.
func (t *PipelineTask) RequestStop(savepoint bool) {
	mode := stopCancel
	if savepoint {
		mode = stopSavepoint
	}
	t.stop.CompareAndSwap(stopNone, mode)
}

// Init implements Runnable.
func (t *PipelineTask) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			t.pollErr = err
		}
	}()

	p := t.deployment.Pipeline
	if p == nil {
		return errors.ErrPipelineInvalid.GenWithStackByArgs("task has no pipeline")
	}
	if t.sourceIdx >= len(p.Sources) {
		return errors.ErrPipelineInvalid.GenWithStackByArgs("restored source index out of range")
	}
	for _, cfg := range p.Transforms {
		tr, err := t.registry.NewTransform(cfg.PluginName, cfg.Options)
		if err != nil {
			return err
		}
		t.transforms = append(t.transforms, tr)
	}
	sctx := connector.SinkContext{JobID: t.deployment.JobID, TaskIndex: t.deployment.TaskIndex}
	for _, cfg := range p.Sinks {
		w, err := t.registry.NewSink(cfg.PluginName, sctx, cfg.Options)
		if err != nil {
			return err
		}
		t.sinks = append(t.sinks, w)
	}
	if err := t.openSource(ctx); err != nil {
		return err
	}

	t.logger.Info("task started",
		zap.Int("source-index", t.sourceIdx),
		zap.Int64("start-offset", t.offset),
		zap.Int64("slot-id", t.slotID))
	t.setStatus(model.TaskStatusRunning, nil)
	return nil
}

// Collect implements connector.Collector.
func (t *PipelineTask) Collect(row connector.Row) {
	t.batch = append(t.batch, row)
}

// Poll implements Runnable.
func (t *PipelineTask) Poll(ctx context.Context) error {
	switch t.stop.Load() {
	case stopSavepoint:
		if err := t.doCheckpoint(); err != nil {
			return t.fail(err)
		}
		t.finalStatus = model.TaskStatusSavepointDone
		return ErrFinished
	case stopCancel:
		t.finalStatus = model.TaskStatusCanceled
		return ErrFinished
	}

	t.batch = t.batch[:0]
	more, err := t.source.PollNext(ctx, t)
	if err != nil {
		return t.fail(err)
	}
	for _, row := range t.batch {
		if err := t.process(row); err != nil {
			return t.fail(err)
		}
		if t.sinceCheckpoint >= t.deployment.CheckpointInterval {
			if err := t.doCheckpoint(); err != nil {
				return t.fail(err)
			}
		}
	}
	if more {
		return nil
	}
	if t.sourceIdx+1 < len(t.deployment.Pipeline.Sources) {
		if err := t.source.Close(); err != nil {
			return t.fail(errors.Trace(err))
		}
		t.source = nil
		t.sourceIdx++
		t.offset = 0
		if err := t.openSource(ctx); err != nil {
			return t.fail(err)
		}
		return nil
	}
	if err := t.doCheckpoint(); err != nil {
		return t.fail(err)
	}
	t.finalStatus = model.TaskStatusFinished
	return ErrFinished
}

func (t *PipelineTask) openSource(ctx context.Context) error {
	cfg := t.deployment.Pipeline.Sources[t.sourceIdx]
	source, err := t.registry.NewSource(cfg.PluginName, cfg.Options)
	if err != nil {
		return err
	}
	t.source = source
	err = source.Open(ctx, connector.SourceContext{
		JobID:       t.deployment.JobID,
		TaskIndex:   t.deployment.TaskIndex,
		Parallelism: t.deployment.Parallelism,
		StartOffset: t.offset,
	})
	return errors.Trace(err)
}

func (t *PipelineTask) process(row connector.Row) error {
	t.offset++
	t.sinceCheckpoint++
	t.sourceReceived.Inc()
	for _, tr := range t.transforms {
		var (
			keep bool
			err  error
		)
		row, keep, err = tr.Map(row)
		if err != nil {
			return errors.Trace(err)
		}
		if !keep {
			return nil
		}
	}
	for _, sink := range t.sinks {
		if err := sink.Write(row); err != nil {
			return errors.Trace(err)
		}
		t.sinkWrite.Inc()
	}
	return nil
}

// doCheckpoint commits the sinks and records the source offset. Sinks are
// committed only after all of them prepared successfully.
func (t *PipelineTask) doCheckpoint() error {
	infos := make([]connector.CommitInfo, 0, len(t.sinks))
	for _, sink := range t.sinks {
		info, err := sink.PrepareCommit()
		if err != nil {
			return errors.Trace(err)
		}
		infos = append(infos, info)
	}
	for i, sink := range t.sinks {
		if err := sink.Commit(infos[i]); err != nil {
			return errors.Trace(err)
		}
	}
	t.sinceCheckpoint = 0
	t.checkpoint.Store(&model.TaskCheckpoint{
		JobID:          t.deployment.JobID,
		TaskIndex:      t.deployment.TaskIndex,
		SourceIndex:    t.sourceIdx,
		Offset:         t.offset,
		SourceReceived: t.sourceReceived.Load(),
		CommittedRows:  t.sinkWrite.Load(),
	})
	t.listener(t.Report())
	return nil
}

func (t *PipelineTask) fail(err error) error {
	t.pollErr = err
	return err
}

// Close implements Runnable. It settles the final status and reports it.
func (t *PipelineTask) Close(context.Context) error {
	status := t.finalStatus
	var cause error
	if status == model.TaskStatusUnknown {
		switch {
		case t.stop.Load() != stopNone && t.pollErr == nil,
			errors.IsContextCanceledError(t.pollErr):
			status = model.TaskStatusCanceled
		case t.pollErr != nil:
			status, cause = model.TaskStatusFailed, t.pollErr
		default:
			// the runner stopped before the first poll
			status = model.TaskStatusCanceled
		}
	}

	var errs error
	if status == model.TaskStatusCanceled || status == model.TaskStatusFailed {
		for _, sink := range t.sinks {
			errs = multierr.Append(errs, sink.Abort())
		}
	}
	for _, sink := range t.sinks {
		errs = multierr.Append(errs, sink.Close())
	}
	if t.source != nil {
		errs = multierr.Append(errs, t.source.Close())
	}
	if errs != nil {
		t.logger.Warn("failed to close task", zap.Error(errs))
	}

	t.setStatus(status, cause)
	t.logger.Info("task stopped",
		zap.Stringer("status", status),
		zap.Int64("source-received", t.sourceReceived.Load()),
		zap.Int64("sink-write", t.sinkWrite.Load()),
		zap.Error(cause))
	return errors.Trace(errs)
}

// Fail marks a task that never ran as failed.
func (t *PipelineTask) Fail(err error) {
	t.setStatus(model.TaskStatusFailed, err)
}

func (t *PipelineTask) setStatus(status model.TaskStatus, cause error) {
	if cause != nil {
		t.errMsg.Store(cause.Error())
	}
	t.status.Store(int32(status))
	t.listener(t.Report())
}

// Report returns the current report of the task.
func (t *PipelineTask) Report() model.TaskReport {
	return model.TaskReport{
		TaskID:              t.deployment.TaskID,
		JobID:               t.deployment.JobID,
		TaskIndex:           t.deployment.TaskIndex,
		WorkerAddress:       t.worker,
		SlotID:              t.slotID,
		Status:              t.Status(),
		Error:               t.errMsg.Load(),
		SourceReceivedCount: t.sourceReceived.Load(),
		SinkWriteCount:      t.sinkWrite.Load(),
		Checkpoint:          t.checkpoint.Load(),
	}
}
