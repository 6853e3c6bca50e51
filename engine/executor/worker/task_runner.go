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
	"sync"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/executor/worker/internal"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Re-export types for public use
type (
	// Runnable alias internal.Runnable
	Runnable = internal.Runnable
	// RunnableID alias internal.RunnableID
	RunnableID = internal.RunnableID
)

// ErrFinished is returned by Runnable.Poll on normal completion.
var ErrFinished = internal.ErrFinished

// StopCallback is called once for every launched task after it stopped.
type StopCallback func(id RunnableID, err error)

// TaskRunner receives runnables in a FIFO way, and runs them in
// independent background goroutines.
type TaskRunner struct {
	inQueue chan *internal.RunnableContainer
	tasks   sync.Map
	wg      sync.WaitGroup

	cancelMu sync.RWMutex
	canceled bool

	taskCount atomic.Int64

	clock     clock.Clock
	onStopped StopCallback
}

type taskEntry struct {
	*internal.RunnableContainer
	cancel context.CancelFunc
}

// NewTaskRunner creates a new TaskRunner instance.
func NewTaskRunner(inQueueSize int, onStopped StopCallback) *TaskRunner {
	if onStopped == nil {
		onStopped = func(RunnableID, error) {}
	}
	return &TaskRunner{
		inQueue:   make(chan *internal.RunnableContainer, inQueueSize),
		clock:     clock.New(),
		onStopped: onStopped,
	}
}

// AddTask enqueues a task. It never blocks and fails when the queue is full.
func (r *TaskRunner) AddTask(task Runnable) error {
	r.cancelMu.RLock()
	canceled := r.canceled
	r.cancelMu.RUnlock()
	if canceled {
		return errors.ErrRuntimeClosed.GenWithStackByArgs()
	}

	wrapped := internal.WrapRunnable(task, r.clock.Mono())
	select {
	case r.inQueue <- wrapped:
		return nil
	default:
	}
	return errors.ErrRuntimeIncomingQueueFull.GenWithStackByArgs()
}

// Run runs until ctx is canceled, launching every queued task. All running
// tasks are canceled and waited for before it returns.
func (r *TaskRunner) Run(ctx context.Context) error {
	defer r.cancelAll()

	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case task := <-r.inQueue:
			if err := r.onNewTask(task); err != nil {
				log.Warn("failed to launch task",
					zap.String("id", task.ID()),
					zap.Error(err))
				r.onStopped(task.ID(), err)
			}
		}
	}
}

// TaskCount returns the number of running tasks.
func (r *TaskRunner) TaskCount() int64 {
	return r.taskCount.Load()
}

// CancelTask cancels the context of a running task. It returns false if the
// task is not running.
func (r *TaskRunner) CancelTask(id RunnableID) bool {
	v, ok := r.tasks.Load(id)
	if !ok {
		return false
	}
	v.(*taskEntry).cancel()
	return true
}

func (r *TaskRunner) cancelAll() {
	r.cancelMu.Lock()
	if r.canceled {
		r.cancelMu.Unlock()
		return
	}
	r.canceled = true

	r.tasks.Range(func(key, value interface{}) bool {
		log.Info("cancelling task", zap.String("id", key.(RunnableID)))
		value.(*taskEntry).cancel()
		return true
	})
	r.cancelMu.Unlock()

	r.wg.Wait()
}

func (r *TaskRunner) onNewTask(task *internal.RunnableContainer) (ret error) {
	defer func() {
		if r := recover(); r != nil {
			ret = errors.Trace(errors.Errorf("panic: %v", r))
		}
	}()

	taskCtx, cancel := context.WithCancel(context.Background())
	entry := &taskEntry{
		RunnableContainer: task,
		cancel:            cancel,
	}

	r.cancelMu.RLock()
	defer r.cancelMu.RUnlock()

	if r.canceled {
		cancel()
		return errors.ErrRuntimeClosed.GenWithStackByArgs()
	}

	if _, exists := r.tasks.LoadOrStore(task.ID(), entry); exists {
		cancel()
		log.Warn("duplicate task id", zap.String("id", task.ID()))
		return errors.ErrTaskAlreadyExists.GenWithStackByArgs(task.ID())
	}

	r.launchTask(taskCtx, entry)
	return nil
}

func (r *TaskRunner) launchTask(ctx context.Context, entry *taskEntry) {
	r.wg.Add(1)
	r.taskCount.Inc()

	go func() {
		defer r.wg.Done()
		defer r.taskCount.Dec()
		defer entry.cancel()

		var err error
		defer func() {
			if r2 := recover(); r2 != nil {
				err = errors.Trace(errors.Errorf("panic: %v", r2))
				log.Error("task panicked", zap.String("id", entry.ID()), zap.Error(err))
			}
			entry.OnStopped()
			r.tasks.Delete(entry.ID())
			log.Info("task closed",
				zap.String("id", entry.ID()),
				zap.Error(err),
				zap.Duration("since-submit", r.clock.Mono().Sub(entry.Info().SubmitTime)),
				zap.Int64("runtime-task-count", r.taskCount.Load()-1))
			r.onStopped(entry.ID(), err)
		}()

		entry.OnLaunched()
		log.Info("launching task",
			zap.String("id", entry.ID()),
			zap.Int64("runtime-task-count", r.taskCount.Load()))

		err = entry.Run(ctx)
	}()
}
