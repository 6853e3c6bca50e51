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

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/atomic"
)

type dummyWorker struct {
	id RunnableID

	needQuit  atomic.Bool
	panicPoll atomic.Bool
	closed    atomic.Bool
}

func newDummyWorker(id RunnableID) *dummyWorker {
	return &dummyWorker{id: id}
}

func (d *dummyWorker) Init(ctx context.Context) error {
	return nil
}

func (d *dummyWorker) Poll(ctx context.Context) error {
	if d.panicPoll.Load() {
		panic("poll panicked")
	}
	if d.needQuit.Load() {
		return ErrFinished
	}
	return nil
}

func (d *dummyWorker) ID() RunnableID {
	return d.id
}

func (d *dummyWorker) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return errors.New("closed twice")
	}
	return nil
}

func (d *dummyWorker) SetFinished() {
	d.needQuit.Store(true)
}
