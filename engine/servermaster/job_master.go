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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/jobop"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/scheduler"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultStopTimeout   = 10 * time.Second
	defaultSlotRetryBase = 100 * time.Millisecond
	defaultSlotRetryMax  = 5 * time.Second
	waitSlotLogInterval  = 10 * time.Second
)

// workerProfileStore is the view of the worker manager used by job masters.
type workerProfileStore interface {
	UpdateProfile(profile *model.WorkerProfile)
	WorkerProfiles() []model.WorkerProfile
	IsAlive(addr string) bool
}

type jobMasterConfig struct {
	// StopTimeout bounds the wait for the final reports of stopping tasks.
	StopTimeout   time.Duration
	SlotRetryBase time.Duration
	SlotRetryMax  time.Duration
	Restart       jobop.BackoffConfig
}

func (c *jobMasterConfig) adjust() {
	if c.StopTimeout <= 0 {
		c.StopTimeout = defaultStopTimeout
	}
	if c.SlotRetryBase <= 0 {
		c.SlotRetryBase = defaultSlotRetryBase
	}
	if c.SlotRetryMax < c.SlotRetryBase {
		c.SlotRetryMax = defaultSlotRetryMax
	}
	if c.Restart.InitialInterval <= 0 {
		c.Restart = *jobop.NewDefaultBackoffConfig()
	}
}

// jobMasterDeps are the cluster services shared by every job master.
type jobMasterDeps struct {
	scheduler scheduler.Scheduler
	workers   workerProfileStore
	group     client.WorkerGroup
	storage   checkpoint.Storage
	clock     clock.Clock
	cfg       jobMasterConfig
}

type jobCommand struct {
	savepoint bool
	errCh     chan error
}

type taskState struct {
	index  int
	taskID model.TaskID
	worker string
	slot   *model.SlotProfile
	status model.TaskStatus
	err    string
}

// jobMaster drives one job through its lifecycle. Every field below mu is
// written only by the run goroutine; queries read them under mu. Other
// goroutines talk to the run goroutine through cmdCh and the inbox.
type jobMaster struct {
	id       model.JobID
	cfg      model.JobConfig
	pipeline *model.Pipeline
	deps     *jobMasterDeps
	logger   *zap.Logger
	backoff  *jobop.JobBackoff

	cmdCh  chan *jobCommand
	doneCh chan struct{}

	inboxMu  sync.Mutex
	inReport []model.TaskReport
	inLost   []string
	notifyCh chan struct{}

	waitSlotRL  *rate.Limiter
	checkpoints map[int]model.TaskCheckpoint
	storeErr    error

	mu       sync.RWMutex
	info     model.JobStatusInfo
	restarts int
	attempt  int
	errMsg   string
	tasks    []*taskState
	reports  map[int]model.TaskReport
}

func newJobMaster(
	id model.JobID,
	cfg model.JobConfig,
	p *model.Pipeline,
	firstAttempt int,
	deps *jobMasterDeps,
) *jobMaster {
	return &jobMaster{
		id:         id,
		cfg:        cfg,
		pipeline:   p,
		deps:       deps,
		logger:     logutil.NewLogger4Job(id),
		backoff:    jobop.NewJobBackoff(id, deps.clock, &deps.cfg.Restart),
		cmdCh:      make(chan *jobCommand),
		doneCh:     make(chan struct{}),
		notifyCh:   make(chan struct{}, 1),
		waitSlotRL: rate.NewLimiter(rate.Every(waitSlotLogInterval), 1),
		info: model.JobStatusInfo{
			JobID:      id,
			Name:       cfg.Name,
			Status:     model.JobStatusCreated,
			SubmitTime: deps.clock.Now(),
		},
		attempt: firstAttempt,
		reports: make(map[int]model.TaskReport),
	}
}

// onReports queues task reports for the run goroutine.
func (jm *jobMaster) onReports(reports []model.TaskReport) {
	jm.inboxMu.Lock()
	jm.inReport = append(jm.inReport, reports...)
	jm.inboxMu.Unlock()
	jm.notify()
}

// onWorkerLost queues a lost worker for the run goroutine.
func (jm *jobMaster) onWorkerLost(addr string) {
	jm.inboxMu.Lock()
	jm.inLost = append(jm.inLost, addr)
	jm.inboxMu.Unlock()
	jm.notify()
}

func (jm *jobMaster) notify() {
	select {
	case jm.notifyCh <- struct{}{}:
	default:
	}
}

func (jm *jobMaster) drainInbox() ([]model.TaskReport, []string) {
	jm.inboxMu.Lock()
	defer jm.inboxMu.Unlock()
	reports, lost := jm.inReport, jm.inLost
	jm.inReport, jm.inLost = nil, nil
	return reports, lost
}

// stop asks the job to cancel, or to stop with a savepoint. It returns once
// the job master acknowledged the request.
func (jm *jobMaster) stop(ctx context.Context, savepoint bool) error {
	cmd := &jobCommand{savepoint: savepoint, errCh: make(chan error, 1)}
	select {
	case jm.cmdCh <- cmd:
	case <-jm.doneCh:
		return errors.ErrJobNotRunning.GenWithStackByArgs(jm.id, jm.status())
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
	select {
	case err := <-cmd.errCh:
		return err
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// done is closed when the job master exits.
func (jm *jobMaster) done() <-chan struct{} {
	return jm.doneCh
}

func (jm *jobMaster) status() model.JobStatus {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.info.Status
}

func (jm *jobMaster) statusInfo() model.JobStatusInfo {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.info
}

func (jm *jobMaster) lastAttempt() int {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	return jm.attempt
}

func (jm *jobMaster) detail() model.JobDetailStatus {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	ret := model.JobDetailStatus{
		JobStatusInfo: jm.info,
		Restarts:      jm.restarts,
		Error:         jm.errMsg,
		Tasks:         make([]model.TaskStatusInfo, 0, len(jm.tasks)),
	}
	for _, t := range jm.tasks {
		info := model.TaskStatusInfo{
			TaskIndex:     t.index,
			Status:        t.status,
			WorkerAddress: t.worker,
			Error:         t.err,
		}
		if t.slot != nil {
			info.SlotID = t.slot.SlotID
		}
		ret.Tasks = append(ret.Tasks, info)
	}
	return ret
}

// taskReports returns the latest report of every task, in task order.
func (jm *jobMaster) taskReports() []model.TaskReport {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	ret := make([]model.TaskReport, 0, len(jm.reports))
	for _, r := range jm.reports {
		ret = append(ret, r)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].TaskIndex < ret[j].TaskIndex
	})
	return ret
}

func (jm *jobMaster) dag() *model.JobDAGInfo {
	return model.BuildDAG(jm.id, jm.pipeline, jm.cfg.Parallelism)
}

func (jm *jobMaster) setStatus(status model.JobStatus) {
	jm.mu.Lock()
	old := jm.info.Status
	jm.info.Status = status
	jm.mu.Unlock()
	if old != status {
		jm.logger.Info("job status changed",
			zap.Stringer("from", old), zap.Stringer("to", status))
	}
}

func (jm *jobMaster) setError(err error) {
	if err == nil {
		return
	}
	jm.mu.Lock()
	jm.errMsg = err.Error()
	jm.mu.Unlock()
}

func (jm *jobMaster) updateTask(t *taskState, fn func(t *taskState)) {
	jm.mu.Lock()
	fn(t)
	jm.mu.Unlock()
}

// run is the goroutine of the job master.
func (jm *jobMaster) run(ctx context.Context) {
	defer close(jm.doneCh)

	jm.logger.Info("job master started",
		zap.String("name", jm.cfg.Name),
		zap.Int("parallelism", jm.cfg.Parallelism),
		zap.Stringer("task-resource", jm.cfg.TaskResource))
	status, err := jm.execute(ctx)
	if ctx.Err() != nil && !status.IsTerminal() {
		// the master is shutting down, leave nothing running behind
		cleanCtx, cancel := context.WithTimeout(context.Background(), jm.deps.cfg.StopTimeout)
		defer cancel()
		jm.stopTasks(cleanCtx, false)
		jm.releaseSlots(cleanCtx)
		jm.logger.Info("job master exited", zap.Stringer("status", jm.status()))
		return
	}
	jm.finish(ctx, status, err)
}

func (jm *jobMaster) execute(ctx context.Context) (model.JobStatus, error) {
	cps, err := jm.deps.storage.Load(ctx, jm.id)
	if err != nil {
		return model.JobStatusFailed, err
	}
	jm.checkpoints = cps
	if len(cps) > 0 {
		jm.logger.Info("job restores from checkpoint", zap.Int("tasks", len(cps)))
	}

	for {
		jm.newAttempt()
		jm.setStatus(model.JobStatusScheduled)
		cmd, err := jm.allocateSlots(ctx)
		if err != nil {
			return model.JobStatusUnknowable, err
		}
		if cmd != nil {
			// nothing is deployed yet, the stored checkpoints stay valid
			jm.releaseSlots(ctx)
			cmd.errCh <- nil
			if cmd.savepoint {
				return model.JobStatusSavepointDone, nil
			}
			return model.JobStatusCanceled, nil
		}

		var cause error
		if err := jm.deployTasks(ctx); err != nil {
			cause = err
		} else {
			jm.setStatus(model.JobStatusRunning)
			jm.backoff.Success()
			res := jm.watch(ctx)
			switch {
			case res.ctxDone:
				return model.JobStatusRunning, errors.Trace(ctx.Err())
			case res.finished:
				jm.releaseSlots(ctx)
				return model.JobStatusFinished, nil
			case res.cmd != nil:
				return jm.stopJob(ctx, res.cmd)
			case res.taskErr != nil:
				jm.setStatus(model.JobStatusFailing)
				jm.setError(res.taskErr)
				jm.stopTasks(ctx, false)
				jm.waitTasksStopped(ctx)
				jm.releaseSlots(ctx)
				return model.JobStatusFailed, res.taskErr
			default:
				cause = res.lostErr
			}
		}

		status, restart, err := jm.failover(ctx, cause)
		if !restart {
			return status, err
		}
	}
}

// newAttempt resets the task table. Reports of older attempts are ignored
// from now on.
func (jm *jobMaster) newAttempt() {
	jm.drainInbox()
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if jm.tasks != nil {
		jm.attempt++
	}
	jm.tasks = make([]*taskState, jm.cfg.Parallelism)
	for i := range jm.tasks {
		jm.tasks[i] = &taskState{
			index:  i,
			taskID: model.NewTaskID(jm.id, i, jm.attempt),
		}
	}
}

func (jm *jobMaster) newSlotBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = jm.deps.cfg.SlotRetryBase
	b.MaxInterval = jm.deps.cfg.SlotRetryMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// allocateSlots gets one slot per task. It returns a non nil command if the
// job is stopped before every slot is allocated.
func (jm *jobMaster) allocateSlots(ctx context.Context) (*jobCommand, error) {
	for _, t := range jm.tasks {
		if cmd, err := jm.allocateSlot(ctx, t); cmd != nil || err != nil {
			return cmd, err
		}
	}
	return nil, nil
}

func (jm *jobMaster) allocateSlot(ctx context.Context, t *taskState) (*jobCommand, error) {
	b := jm.newSlotBackoff()
	exclude := make(map[string]struct{})
	for {
		addr, slot := jm.tryAllocate(ctx, exclude)
		if slot != nil {
			jm.updateTask(t, func(t *taskState) {
				t.worker = addr
				t.slot = slot
			})
			return nil, nil
		}

		timer := jm.deps.clock.Timer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Trace(ctx.Err())
		case cmd := <-jm.cmdCh:
			timer.Stop()
			return cmd, nil
		case <-timer.C:
		}
	}
}

// tryAllocate sends the slot request to each candidate in turn. Workers that
// fail the RPC are excluded until no other worker qualifies.
func (jm *jobMaster) tryAllocate(ctx context.Context, exclude map[string]struct{}) (string, *model.SlotProfile) {
	candidates, err := jm.deps.scheduler.ScheduleSlot(ctx, &scheduler.Request{
		JobID:    jm.id,
		Resource: jm.cfg.TaskResource,
		Exclude:  exclude,
	})
	if err != nil {
		for addr := range exclude {
			delete(exclude, addr)
		}
		if jm.waitSlotRL.Allow() {
			jm.logger.Info("waiting for a worker to allocate slot", zap.Error(err))
		}
		return "", nil
	}

	for _, addr := range candidates {
		cli, err := jm.deps.group.GetWorkerClient(addr)
		if err != nil {
			exclude[addr] = struct{}{}
			continue
		}
		profile, slot, err := cli.RequestSlot(ctx, jm.id, jm.cfg.TaskResource)
		if err != nil {
			jm.logger.Warn("failed to request slot",
				zap.String("worker", addr), zap.Error(err))
			exclude[addr] = struct{}{}
			continue
		}
		if profile != nil {
			jm.deps.workers.UpdateProfile(profile)
		}
		if slot == nil {
			jm.logger.Debug("slot request denied", zap.String("worker", addr))
			continue
		}
		return addr, slot
	}
	return "", nil
}

func (jm *jobMaster) deployTasks(ctx context.Context) error {
	for _, t := range jm.tasks {
		deployment := &model.TaskDeployment{
			TaskID:             t.taskID,
			JobID:              jm.id,
			TaskIndex:          t.index,
			Parallelism:        jm.cfg.Parallelism,
			CheckpointInterval: jm.cfg.CheckpointInterval,
			Pipeline:           jm.pipeline,
		}
		if cp, ok := jm.checkpoints[t.index]; ok {
			cp := cp
			deployment.Restore = &cp
		}
		cli, err := jm.deps.group.GetWorkerClient(t.worker)
		if err == nil {
			err = cli.DeployTask(ctx, *t.slot, deployment)
		}
		if err != nil {
			jm.logger.Warn("failed to deploy task",
				zap.String("task-id", t.taskID), zap.String("worker", t.worker), zap.Error(err))
			return errors.Annotate(err, fmt.Sprintf("deploy task %d", t.index))
		}
		jm.updateTask(t, func(t *taskState) {
			t.status = model.TaskStatusDeploying
		})
	}
	return nil
}

type watchResult struct {
	ctxDone  bool
	finished bool
	cmd      *jobCommand
	taskErr  error
	lostErr  error
}

// watch follows the running tasks until they all finish, one of them fails,
// a worker is lost, or the job is stopped.
func (jm *jobMaster) watch(ctx context.Context) watchResult {
	for {
		select {
		case <-ctx.Done():
			return watchResult{ctxDone: true}
		case cmd := <-jm.cmdCh:
			return watchResult{cmd: cmd}
		case <-jm.notifyCh:
		}

		reports, lost := jm.drainInbox()
		jm.handleReports(ctx, reports)
		for _, addr := range lost {
			if n := jm.markWorkerLost(addr); n > 0 {
				return watchResult{lostErr: errors.Errorf("worker %s is lost with %d running tasks", addr, n)}
			}
		}
		for _, t := range jm.tasks {
			if t.status == model.TaskStatusFailed {
				return watchResult{taskErr: errors.ErrJobFailed.GenWithStackByArgs(jm.id,
					fmt.Sprintf("task %d: %s", t.index, t.err))}
			}
		}
		if jm.allTasksStopped() {
			return watchResult{finished: true}
		}
	}
}

func (jm *jobMaster) handleReports(ctx context.Context, reports []model.TaskReport) {
	for _, r := range reports {
		if r.TaskIndex < 0 || r.TaskIndex >= len(jm.tasks) {
			continue
		}
		t := jm.tasks[r.TaskIndex]
		if t.taskID != r.TaskID || t.status.IsTerminal() {
			continue
		}
		if r.Checkpoint != nil {
			jm.storeCheckpoint(ctx, *r.Checkpoint)
		}
		jm.mu.Lock()
		t.status = r.Status
		t.err = r.Error
		jm.reports[r.TaskIndex] = r
		jm.mu.Unlock()
	}
}

func (jm *jobMaster) storeCheckpoint(ctx context.Context, cp model.TaskCheckpoint) {
	if old, ok := jm.checkpoints[cp.TaskIndex]; ok && !checkpointAfter(cp, old) {
		return
	}
	jm.checkpoints[cp.TaskIndex] = cp
	if err := jm.deps.storage.Store(ctx, cp); err != nil {
		jm.logger.Warn("failed to store checkpoint",
			zap.Int("task-index", cp.TaskIndex), zap.Error(err))
		jm.storeErr = err
	}
}

func checkpointAfter(cp, old model.TaskCheckpoint) bool {
	if cp.SourceIndex != old.SourceIndex {
		return cp.SourceIndex > old.SourceIndex
	}
	return cp.Offset > old.Offset
}

// markWorkerLost fails the unfinished tasks of addr and returns their count.
func (jm *jobMaster) markWorkerLost(addr string) int {
	n := 0
	jm.mu.Lock()
	defer jm.mu.Unlock()
	for _, t := range jm.tasks {
		if t.worker == addr && !t.status.IsTerminal() {
			t.status = model.TaskStatusFailed
			t.err = "worker " + addr + " is lost"
			n++
		}
	}
	return n
}

func (jm *jobMaster) allTasksStopped() bool {
	for _, t := range jm.tasks {
		if !t.status.IsTerminal() {
			return false
		}
	}
	return true
}

// stopTasks asks every worker hosting an unfinished task to stop the tasks
// of the job. Tasks on dead workers are marked as lost.
func (jm *jobMaster) stopTasks(ctx context.Context, savepoint bool) {
	workers := make(map[string]struct{})
	for _, t := range jm.tasks {
		if t.worker != "" && t.status != model.TaskStatusUnknown && !t.status.IsTerminal() {
			workers[t.worker] = struct{}{}
		}
	}
	for addr := range workers {
		if !jm.deps.workers.IsAlive(addr) {
			jm.markWorkerLost(addr)
			continue
		}
		cli, err := jm.deps.group.GetWorkerClient(addr)
		if err == nil {
			err = cli.CancelTasks(ctx, jm.id, savepoint)
		}
		if err != nil {
			jm.logger.Warn("failed to cancel tasks",
				zap.String("worker", addr), zap.Bool("savepoint", savepoint), zap.Error(err))
		}
	}
}

// waitTasksStopped consumes reports until every deployed task stopped or the
// stop timeout elapses. Tasks that did not report in time are marked failed.
func (jm *jobMaster) waitTasksStopped(ctx context.Context) {
	timer := jm.deps.clock.Timer(jm.deps.cfg.StopTimeout)
	defer timer.Stop()
	for {
		pending := false
		for _, t := range jm.tasks {
			if t.status != model.TaskStatusUnknown && !t.status.IsTerminal() {
				pending = true
				break
			}
		}
		if !pending {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			jm.mu.Lock()
			for _, t := range jm.tasks {
				if t.status != model.TaskStatusUnknown && !t.status.IsTerminal() {
					t.status = model.TaskStatusFailed
					t.err = "task did not stop in time"
				}
			}
			jm.mu.Unlock()
			jm.logger.Warn("tasks did not stop in time", zap.Duration("timeout", jm.deps.cfg.StopTimeout))
			return
		case <-jm.notifyCh:
			reports, lost := jm.drainInbox()
			jm.handleReports(ctx, reports)
			for _, addr := range lost {
				jm.markWorkerLost(addr)
			}
		}
	}
}

type slotKey struct {
	worker string
	slotID model.SlotID
}

// releaseSlots returns every slot of the job: the slots held by the tasks,
// plus any slot the workers report as owned by the job, such as a slot
// granted by a request whose response was lost.
func (jm *jobMaster) releaseSlots(ctx context.Context) {
	released := make(map[slotKey]struct{})
	release := func(addr string, slot model.SlotProfile) {
		key := slotKey{worker: addr, slotID: slot.SlotID}
		if _, ok := released[key]; ok {
			return
		}
		released[key] = struct{}{}
		if !jm.deps.workers.IsAlive(addr) {
			return
		}
		cli, err := jm.deps.group.GetWorkerClient(addr)
		if err == nil {
			err = cli.ReleaseSlot(ctx, jm.id, slot)
		}
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrWrongTargetSlot):
			jm.logger.Debug("slot already released", zap.String("worker", addr), zap.Int64("slot-id", slot.SlotID))
		default:
			jm.logger.Warn("failed to release slot",
				zap.String("worker", addr), zap.Int64("slot-id", slot.SlotID), zap.Error(err))
		}
	}

	for _, t := range jm.tasks {
		if t.slot != nil {
			release(t.worker, *t.slot)
		}
	}
	for _, profile := range jm.deps.workers.WorkerProfiles() {
		for _, slot := range profile.SlotsOfJob(jm.id) {
			release(profile.Address, slot)
		}
	}
	jm.mu.Lock()
	for _, t := range jm.tasks {
		t.slot = nil
	}
	jm.mu.Unlock()
}

// stopJob handles a cancel or savepoint request of a running job.
func (jm *jobMaster) stopJob(ctx context.Context, cmd *jobCommand) (model.JobStatus, error) {
	if cmd.savepoint {
		jm.setStatus(model.JobStatusDoingSavepoint)
	} else {
		jm.setStatus(model.JobStatusCanceling)
	}
	jm.stopTasks(ctx, cmd.savepoint)
	cmd.errCh <- nil
	jm.waitTasksStopped(ctx)
	jm.releaseSlots(ctx)
	if ctx.Err() != nil {
		return model.JobStatusUnknowable, errors.Trace(ctx.Err())
	}

	if !cmd.savepoint {
		return model.JobStatusCanceled, nil
	}
	for _, t := range jm.tasks {
		if t.status != model.TaskStatusSavepointDone && t.status != model.TaskStatusFinished {
			return model.JobStatusFailed, errors.ErrJobFailed.GenWithStackByArgs(jm.id,
				fmt.Sprintf("savepoint of task %d ended with %s %s", t.index, t.status, t.err))
		}
	}
	if jm.storeErr != nil {
		return model.JobStatusFailed, errors.WrapError(errors.ErrCheckpointStorage, jm.storeErr)
	}
	return model.JobStatusSavepointDone, nil
}

// failover stops what is left of the current attempt and decides whether the
// job restarts from its checkpoints.
func (jm *jobMaster) failover(ctx context.Context, cause error) (model.JobStatus, bool, error) {
	jm.setStatus(model.JobStatusFailing)
	jm.setError(cause)
	jm.logger.Warn("job fails over", zap.Error(cause))

	// surviving tasks commit what they have, so the restart replays less
	jm.stopTasks(ctx, true)
	jm.waitTasksStopped(ctx)
	jm.releaseSlots(ctx)
	if ctx.Err() != nil {
		return model.JobStatusUnknowable, false, errors.Trace(ctx.Err())
	}

	jm.backoff.Fail()
	if jm.backoff.Terminate() {
		jm.logger.Warn("job reached max restarts", zap.Int("restarts", jm.restarts))
		return model.JobStatusFailed, false, errors.ErrJobFailed.GenWithStackByArgs(jm.id, cause.Error())
	}

	wait := jm.backoff.RemainingWait()
	jm.logger.Info("job will restart", zap.Duration("wait", wait), zap.Int("restarts", jm.restarts))
	timer := jm.deps.clock.Timer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return model.JobStatusUnknowable, false, errors.Trace(ctx.Err())
	case cmd := <-jm.cmdCh:
		cmd.errCh <- nil
		if cmd.savepoint {
			return model.JobStatusSavepointDone, false, nil
		}
		return model.JobStatusCanceled, false, nil
	case <-timer.C:
	}

	jm.mu.Lock()
	jm.restarts++
	jm.mu.Unlock()
	return model.JobStatusScheduled, true, nil
}

// finish records the final status. Checkpoints of a finished or canceled job
// are dropped, the others are kept for restore.
func (jm *jobMaster) finish(ctx context.Context, status model.JobStatus, err error) {
	if status == model.JobStatusFinished || status == model.JobStatusCanceled {
		if err := jm.deps.storage.Delete(ctx, jm.id); err != nil {
			jm.logger.Warn("failed to delete checkpoints", zap.Error(err))
		}
	}
	jm.setError(err)
	jm.mu.Lock()
	jm.info.FinishTime = jm.deps.clock.Now()
	jm.mu.Unlock()
	jm.setStatus(status)
	jm.logger.Info("job master exited",
		zap.Stringer("status", status),
		zap.Int("restarts", jm.restarts),
		zap.Error(err))
}
