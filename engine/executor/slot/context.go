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

package slot

import (
	"context"
	"sort"
	"sync"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// TaskExecutionService runs tasks on behalf of slots.
type TaskExecutionService interface {
	// DeployTask starts task in the given slot. It must not block on the
	// execution of the task.
	DeployTask(ctx context.Context, slotID model.SlotID, task *model.TaskDeployment) error
	// CancelTask asks a running task to stop. With savepoint set the task
	// commits its pending output first. It must not block.
	CancelTask(taskID model.TaskID, savepoint bool)
}

// SlotContext binds the task runtime to one assigned slot. It lives from the
// allocation of the slot to its release.
type SlotContext struct {
	slotID  model.SlotID
	jobID   model.JobID
	runtime TaskExecutionService

	mu     sync.Mutex
	closed bool
	tasks  map[model.TaskID]struct{}
}

func newSlotContext(slotID model.SlotID, jobID model.JobID, runtime TaskExecutionService) *SlotContext {
	return &SlotContext{
		slotID:  slotID,
		jobID:   jobID,
		runtime: runtime,
		tasks:   make(map[model.TaskID]struct{}),
	}
}

// SlotID returns the id of the slot.
func (c *SlotContext) SlotID() model.SlotID {
	return c.slotID
}

// JobID returns the job owning the slot.
func (c *SlotContext) JobID() model.JobID {
	return c.jobID
}

// DeployTask hands task to the runtime, bound to this slot.
func (c *SlotContext) DeployTask(ctx context.Context, task *model.TaskDeployment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrWrongTargetSlot.GenWithStackByArgs(c.slotID, "slot has been released")
	}
	if _, ok := c.tasks[task.TaskID]; ok {
		return errors.ErrTaskAlreadyExists.GenWithStackByArgs(task.TaskID)
	}
	if err := c.runtime.DeployTask(ctx, c.slotID, task); err != nil {
		return err
	}
	c.tasks[task.TaskID] = struct{}{}
	return nil
}

// RemoveTask forgets a task that has stopped.
func (c *SlotContext) RemoveTask(taskID model.TaskID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tasks, taskID)
}

// CancelTasks asks every task of the slot to stop.
func (c *SlotContext) CancelTasks(savepoint bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.tasks {
		c.runtime.CancelTask(id, savepoint)
	}
}

// TaskIDs returns the tasks deployed to the slot, sorted.
func (c *SlotContext) TaskIDs() []model.TaskID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]model.TaskID, 0, len(c.tasks))
	for id := range c.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *SlotContext) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id := range c.tasks {
		c.runtime.CancelTask(id, false)
	}
	c.tasks = make(map[model.TaskID]struct{})
}
