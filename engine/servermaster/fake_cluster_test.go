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
	"sort"
	"sync"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// fakeCluster is an in-memory set of workers. It serves as the worker
// group, the profile store and the profile provider of job masters.
type fakeCluster struct {
	mu      sync.Mutex
	workers map[string]*fakeWorker
	dead    map[string]bool
	sink    func([]model.TaskReport)
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{
		workers: make(map[string]*fakeWorker),
		dead:    make(map[string]bool),
	}
}

func (c *fakeCluster) setSink(sink func([]model.TaskReport)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sink = sink
}

func (c *fakeCluster) report(reports ...model.TaskReport) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	if sink != nil && len(reports) > 0 {
		sink(reports)
	}
}

func (c *fakeCluster) addWorker(addr string, slots int, slotMemory model.Memory) *fakeWorker {
	w := &fakeWorker{
		addr:    addr,
		cluster: c,
		tasks:   make(map[model.TaskID]*model.TaskDeployment),
	}
	for i := 0; i < slots; i++ {
		w.slots = append(w.slots, model.NewSlotProfile(int64(i+1), addr,
			model.ResourceProfile{HeapMemory: slotMemory}))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workers[addr] = w
	delete(c.dead, addr)
	return w
}

// kill makes addr unreachable and drops its tasks silently.
func (c *fakeCluster) kill(addr string) {
	c.mu.Lock()
	w := c.workers[addr]
	c.dead[addr] = true
	c.mu.Unlock()
	w.mu.Lock()
	w.tasks = make(map[model.TaskID]*model.TaskDeployment)
	w.mu.Unlock()
}

func (c *fakeCluster) worker(addr string) *fakeWorker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workers[addr]
}

func (c *fakeCluster) WorkerProfiles() []model.WorkerProfile {
	c.mu.Lock()
	workers := make([]*fakeWorker, 0, len(c.workers))
	for addr, w := range c.workers {
		if !c.dead[addr] {
			workers = append(workers, w)
		}
	}
	c.mu.Unlock()

	ret := make([]model.WorkerProfile, 0, len(workers))
	for _, w := range workers {
		ret = append(ret, *w.profile())
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Address < ret[j].Address
	})
	return ret
}

func (c *fakeCluster) UpdateProfile(*model.WorkerProfile) {}

func (c *fakeCluster) IsAlive(addr string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.workers[addr]
	return ok && !c.dead[addr]
}

func (c *fakeCluster) GetWorkerClient(addr string) (client.WorkerClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.workers[addr]
	if !ok {
		return nil, errors.ErrWorkerNotFound.GenWithStackByArgs(addr)
	}
	if c.dead[addr] {
		return &deadWorker{addr: addr}, nil
	}
	return w, nil
}

func (c *fakeCluster) RemoveWorker(string) {}

func (c *fakeCluster) Close() {}

// fakeWorker grants slots and plays the task lifecycle. A deployed task
// reports RUNNING, and FINISHED right away when autoFinish is set.
type fakeWorker struct {
	addr    string
	cluster *fakeCluster

	mu         sync.Mutex
	slots      []*model.SlotProfile
	tasks      map[model.TaskID]*model.TaskDeployment
	deployed   []model.TaskDeployment
	requests   int
	deny       bool
	autoFinish bool
	failTask   int
	failMsg    string
}

var _ client.WorkerClient = (*fakeWorker)(nil)

func (w *fakeWorker) setAutoFinish(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.autoFinish = v
}

func (w *fakeWorker) deployments() []model.TaskDeployment {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.TaskDeployment(nil), w.deployed...)
}

func (w *fakeWorker) requestCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.requests
}

func (w *fakeWorker) assignedSlots() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, s := range w.slots {
		if s.Assigned {
			n++
		}
	}
	return n
}

func (w *fakeWorker) profile() *model.WorkerProfile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.profileLocked()
}

func (w *fakeWorker) profileLocked() *model.WorkerProfile {
	var (
		total, assigned     model.ResourceProfile
		assignedSlots, free []*model.SlotProfile
	)
	for _, s := range w.slots {
		total = total.Merge(s.Resource)
		if s.Assigned {
			assigned = assigned.Merge(s.Resource)
			assignedSlots = append(assignedSlots, s)
		} else {
			free = append(free, s)
		}
	}
	p := model.NewWorkerProfile(w.addr, false, total, assigned, total.Subtract(assigned), assignedSlots, free)
	p.InstanceID = "instance-" + w.addr
	return p
}

func (w *fakeWorker) RequestSlot(
	_ context.Context, jobID model.JobID, resource model.ResourceProfile,
) (*model.WorkerProfile, *model.SlotProfile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if w.deny {
		return w.profileLocked(), nil, nil
	}
	for _, s := range w.slots {
		if !s.Assigned && s.Resource.EnoughThan(resource) {
			_ = s.Assign(jobID)
			return w.profileLocked(), s.Clone(), nil
		}
	}
	return w.profileLocked(), nil, nil
}

func (w *fakeWorker) ReleaseSlot(_ context.Context, jobID model.JobID, slot model.SlotProfile) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		if s.SlotID == slot.SlotID && s.Assigned && s.OwnerJobID == jobID {
			s.Unassign()
			return nil
		}
	}
	return errors.ErrWrongTargetSlot.GenWithStackByArgs(slot.SlotID, "slot is not owned by the job")
}

func (w *fakeWorker) DeployTask(_ context.Context, _ model.SlotProfile, task *model.TaskDeployment) error {
	w.mu.Lock()
	w.deployed = append(w.deployed, *task)
	reports := []model.TaskReport{w.reportLocked(task, model.TaskStatusRunning, nil)}
	switch {
	case w.failTask == task.TaskIndex && w.failMsg != "":
		r := w.reportLocked(task, model.TaskStatusFailed, nil)
		r.Error = w.failMsg
		reports = append(reports, r)
	case w.autoFinish:
		reports = append(reports, w.reportLocked(task, model.TaskStatusFinished, checkpointAfterRows(task, 10)))
	default:
		w.tasks[task.TaskID] = task
	}
	w.mu.Unlock()
	w.cluster.report(reports...)
	return nil
}

func (w *fakeWorker) CancelTasks(_ context.Context, jobID model.JobID, savepoint bool) error {
	w.mu.Lock()
	var reports []model.TaskReport
	for id, task := range w.tasks {
		if task.JobID != jobID {
			continue
		}
		delete(w.tasks, id)
		if savepoint {
			reports = append(reports, w.reportLocked(task, model.TaskStatusSavepointDone, checkpointAfterRows(task, 5)))
		} else {
			reports = append(reports, w.reportLocked(task, model.TaskStatusCanceled, nil))
		}
	}
	w.mu.Unlock()
	w.cluster.report(reports...)
	return nil
}

func (w *fakeWorker) ResetSlots(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.slots {
		s.Unassign()
	}
	return nil
}

func (w *fakeWorker) GetWorkerProfile(context.Context) (*model.WorkerProfile, error) {
	return w.profile(), nil
}

func (w *fakeWorker) Close() {}

func (w *fakeWorker) reportLocked(
	task *model.TaskDeployment, status model.TaskStatus, cp *model.TaskCheckpoint,
) model.TaskReport {
	r := model.TaskReport{
		TaskID:        task.TaskID,
		JobID:         task.JobID,
		TaskIndex:     task.TaskIndex,
		WorkerAddress: w.addr,
		Status:        status,
		Checkpoint:    cp,
	}
	if cp != nil {
		r.SourceReceivedCount = cp.SourceReceived
		r.SinkWriteCount = cp.CommittedRows
	}
	return r
}

// checkpointAfterRows is the checkpoint of task after it consumed rows more
// rows than its restore point.
func checkpointAfterRows(task *model.TaskDeployment, rows int64) *model.TaskCheckpoint {
	cp := &model.TaskCheckpoint{JobID: task.JobID, TaskIndex: task.TaskIndex}
	if task.Restore != nil {
		*cp = *task.Restore
	}
	cp.Offset += rows
	cp.SourceReceived += rows
	cp.CommittedRows += rows
	return cp
}

// deadWorker fails every call like an unreachable executor.
type deadWorker struct {
	addr string
}

func (d *deadWorker) err() error {
	return errors.ErrWorkerRPCFailed.GenWithStackByArgs(d.addr)
}

func (d *deadWorker) RequestSlot(context.Context, model.JobID, model.ResourceProfile) (
	*model.WorkerProfile, *model.SlotProfile, error,
) {
	return nil, nil, d.err()
}

func (d *deadWorker) ReleaseSlot(context.Context, model.JobID, model.SlotProfile) error {
	return d.err()
}

func (d *deadWorker) DeployTask(context.Context, model.SlotProfile, *model.TaskDeployment) error {
	return d.err()
}

func (d *deadWorker) CancelTasks(context.Context, model.JobID, bool) error {
	return d.err()
}

func (d *deadWorker) ResetSlots(context.Context) error {
	return d.err()
}

func (d *deadWorker) GetWorkerProfile(context.Context) (*model.WorkerProfile, error) {
	return nil, d.err()
}

func (d *deadWorker) Close() {}
