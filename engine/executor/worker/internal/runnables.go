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

package internal

import (
	"context"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// RunnableID identifies a Runnable inside one TaskRunner.
type RunnableID = string

// ErrFinished is returned by Poll when the runnable completed normally.
var ErrFinished = errors.New("runnable finished")

// Runnable is a unit of work driven by the task runner: Init once, Poll until
// it returns an error, then Close.
type Runnable interface {
	Init(ctx context.Context) error
	Poll(ctx context.Context) error
	ID() RunnableID
	Close(ctx context.Context) error
}

// RunnableStatus is the lifecycle state of a RunnableContainer.
type RunnableStatus = int32

// RunnableStatus values.
const (
	TaskSubmitted = RunnableStatus(iota + 1)
	TaskRunning
	TaskClosing
)

// RuntimeInfo records runtime facts about a runnable.
type RuntimeInfo struct {
	SubmitTime clock.MonotonicTime
}

// RunnableContainer wraps a Runnable with its status and submit time.
type RunnableContainer struct {
	Runnable
	status atomic.Int32
	info   RuntimeInfo
}

// WrapRunnable wraps runnable, recording submitTime.
func WrapRunnable(runnable Runnable, submitTime clock.MonotonicTime) *RunnableContainer {
	c := &RunnableContainer{
		Runnable: runnable,
		info:     RuntimeInfo{SubmitTime: submitTime},
	}
	c.status.Store(TaskSubmitted)
	return c
}

// Status returns the current status.
func (c *RunnableContainer) Status() RunnableStatus {
	return c.status.Load()
}

// Info returns the runtime info.
func (c *RunnableContainer) Info() RuntimeInfo {
	return c.info
}

// OnLaunched marks the runnable as running.
func (c *RunnableContainer) OnLaunched() {
	if old := c.status.Swap(TaskRunning); old != TaskSubmitted {
		log.Panic("unexpected status", zap.Int32("status", old))
	}
}

// OnStopped marks the runnable as closing.
func (c *RunnableContainer) OnStopped() {
	if old := c.status.Swap(TaskClosing); old != TaskRunning && old != TaskSubmitted {
		log.Panic("unexpected status", zap.Int32("status", old))
	}
}

// Run drives the runnable until Poll fails or ctx is done. A normal finish
// returns nil. Close is always called, with a context that is not canceled.
func (c *RunnableContainer) Run(ctx context.Context) (err error) {
	defer func() {
		closeErr := c.Close(context.Background())
		err = multierr.Append(err, closeErr)
	}()

	if err := c.Init(ctx); err != nil {
		return errors.Trace(err)
	}
	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		default:
		}
		if err := c.Poll(ctx); err != nil {
			if errors.Cause(err) == ErrFinished {
				return nil
			}
			return err
		}
	}
}
