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
	"testing"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/jobop"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/scheduler"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

const (
	testJobID   = model.JobID(1)
	waitTimeout = 10 * time.Second
	waitTick    = 10 * time.Millisecond
	gib         = model.Memory(1 << 30)
)

func testPipeline() *model.Pipeline {
	return &model.Pipeline{
		Sources: []model.PluginConfig{{PluginName: "FakeSource", Options: map[string]string{"row.num": "100"}}},
		Sinks:   []model.PluginConfig{{PluginName: "Console"}},
	}
}

func newTestDeps(cluster *fakeCluster, storage checkpoint.Storage, maxTry int) *jobMasterDeps {
	return &jobMasterDeps{
		scheduler: scheduler.NewScheduler(cluster),
		workers:   cluster,
		group:     cluster,
		storage:   storage,
		clock:     clock.New(),
		cfg: jobMasterConfig{
			StopTimeout:   2 * time.Second,
			SlotRetryBase: 5 * time.Millisecond,
			SlotRetryMax:  20 * time.Millisecond,
			Restart: jobop.BackoffConfig{
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     20 * time.Millisecond,
				Multiplier:      2,
				ResetInterval:   time.Minute,
				MaxTryTime:      maxTry,
			},
		},
	}
}

// startJobMaster runs a job master of testJobID and routes the reports of
// cluster to it.
func startJobMaster(
	t *testing.T, cluster *fakeCluster, deps *jobMasterDeps, parallelism int,
) *jobMaster {
	cfg := model.JobConfig{Parallelism: parallelism}
	cfg.Adjust()
	jm := newJobMaster(testJobID, cfg, testPipeline(), 0, deps)
	cluster.setSink(jm.onReports)

	ctx, cancel := context.WithCancel(context.Background())
	go jm.run(ctx)
	t.Cleanup(func() {
		cancel()
		<-jm.done()
	})
	return jm
}

func waitJobStatus(t *testing.T, jm *jobMaster, status model.JobStatus) {
	require.Eventually(t, func() bool {
		return jm.status() == status
	}, waitTimeout, waitTick, "job status is %s", jm.status())
}

func waitTasksRunning(t *testing.T, jm *jobMaster) {
	require.Eventually(t, func() bool {
		detail := jm.detail()
		if detail.Status != model.JobStatusRunning {
			return false
		}
		for _, task := range detail.Tasks {
			if task.Status != model.TaskStatusRunning {
				return false
			}
		}
		return true
	}, waitTimeout, waitTick)
}

func TestJobMasterFinish(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w1 := cluster.addWorker("w-1", 2, gib)
	w2 := cluster.addWorker("w-2", 2, gib)
	w1.setAutoFinish(true)
	w2.setAutoFinish(true)
	storage := checkpoint.NewMemoryStorage()

	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 2), 2)
	waitJobStatus(t, jm, model.JobStatusFinished)
	<-jm.done()

	// tasks are spread over the workers with the most free memory
	require.Len(t, w1.deployments(), 1)
	require.Len(t, w2.deployments(), 1)
	require.Equal(t, 0, w1.assignedSlots())
	require.Equal(t, 0, w2.assignedSlots())

	detail := jm.detail()
	require.Equal(t, 0, detail.Restarts)
	require.Empty(t, detail.Error)
	require.False(t, detail.FinishTime.IsZero())
	for _, task := range detail.Tasks {
		require.Equal(t, model.TaskStatusFinished, task.Status)
	}
	reports := jm.taskReports()
	require.Len(t, reports, 2)
	require.Equal(t, int64(10), reports[0].SinkWriteCount)

	// checkpoints of a finished job are dropped
	cps, err := storage.Load(context.Background(), testJobID)
	require.NoError(t, err)
	require.Empty(t, cps)

	err = jm.stop(context.Background(), false)
	require.True(t, errors.Is(err, errors.ErrJobNotRunning))
}

func TestJobMasterSlotDenied(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	// w-1 looks best to the scheduler but denies every request
	w1 := cluster.addWorker("w-1", 1, 2*gib)
	w1.deny = true
	w2 := cluster.addWorker("w-2", 1, gib)
	w2.setAutoFinish(true)

	jm := startJobMaster(t, cluster, newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), 1)
	waitJobStatus(t, jm, model.JobStatusFinished)

	require.GreaterOrEqual(t, w1.requestCount(), 1)
	require.Empty(t, w1.deployments())
	require.Len(t, w2.deployments(), 1)
}

func TestJobMasterWaitsForWorker(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	jm := startJobMaster(t, cluster, newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), 1)
	waitJobStatus(t, jm, model.JobStatusScheduled)

	// the job keeps waiting without a worker
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, model.JobStatusScheduled, jm.status())

	w := cluster.addWorker("w-1", 1, gib)
	w.setAutoFinish(true)
	waitJobStatus(t, jm, model.JobStatusFinished)
	require.Len(t, w.deployments(), 1)
}

func TestJobMasterCancelWhileScheduling(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	storage := checkpoint.NewMemoryStorage()
	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 2), 1)
	waitJobStatus(t, jm, model.JobStatusScheduled)

	require.NoError(t, jm.stop(context.Background(), false))
	waitJobStatus(t, jm, model.JobStatusCanceled)
	<-jm.done()
}

func TestJobMasterCancelRunning(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 2, gib)
	jm := startJobMaster(t, cluster, newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), 2)
	waitTasksRunning(t, jm)
	require.Equal(t, 2, w.assignedSlots())

	require.NoError(t, jm.stop(context.Background(), false))
	waitJobStatus(t, jm, model.JobStatusCanceled)
	<-jm.done()
	require.Equal(t, 0, w.assignedSlots())
	for _, task := range jm.detail().Tasks {
		require.Equal(t, model.TaskStatusCanceled, task.Status)
	}
}

func TestJobMasterSavepoint(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 2, gib)
	storage := checkpoint.NewMemoryStorage()
	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 2), 2)
	waitTasksRunning(t, jm)

	require.NoError(t, jm.stop(context.Background(), true))
	waitJobStatus(t, jm, model.JobStatusSavepointDone)
	<-jm.done()
	require.Equal(t, 0, w.assignedSlots())

	cps, err := storage.Load(context.Background(), testJobID)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	for i := 0; i < 2; i++ {
		require.Equal(t, int64(5), cps[i].Offset)
	}
}

func TestJobMasterTaskFailure(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 2, gib)
	w.failTask = 1
	w.failMsg = "connector crashed"
	jm := startJobMaster(t, cluster, newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), 2)

	waitJobStatus(t, jm, model.JobStatusFailed)
	<-jm.done()
	detail := jm.detail()
	require.Contains(t, detail.Error, "connector crashed")
	require.Equal(t, 0, detail.Restarts)
	require.Equal(t, model.TaskStatusCanceled, detail.Tasks[0].Status)
	require.Equal(t, model.TaskStatusFailed, detail.Tasks[1].Status)
	require.Equal(t, 0, w.assignedSlots())
}

func TestJobMasterFailover(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w1 := cluster.addWorker("w-1", 2, gib)
	cluster.addWorker("w-2", 2, gib)
	storage := checkpoint.NewMemoryStorage()
	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 2), 2)
	waitTasksRunning(t, jm)
	require.Equal(t, "w-1", jm.detail().Tasks[0].WorkerAddress)
	require.Equal(t, "w-2", jm.detail().Tasks[1].WorkerAddress)

	w1.setAutoFinish(true)
	cluster.kill("w-2")
	jm.onWorkerLost("w-2")

	waitJobStatus(t, jm, model.JobStatusFinished)
	<-jm.done()
	detail := jm.detail()
	require.Equal(t, 1, detail.Restarts)
	require.Contains(t, detail.Error, "w-2")

	// the survivor stopped with a savepoint and both tasks moved to w-1
	deployments := w1.deployments()
	require.Len(t, deployments, 3)
	restarted := deployments[1:]
	for _, d := range restarted {
		require.Equal(t, model.NewTaskID(testJobID, d.TaskIndex, 1), d.TaskID)
		if d.TaskIndex == 0 {
			require.NotNil(t, d.Restore)
			require.Equal(t, int64(5), d.Restore.Offset)
		} else {
			require.Nil(t, d.Restore)
		}
	}
	require.Equal(t, 0, w1.assignedSlots())
}

func TestJobMasterMaxRestarts(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	cluster.addWorker("w-1", 1, gib)
	cluster.addWorker("w-2", 1, gib)
	storage := checkpoint.NewMemoryStorage()
	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 0), 2)
	waitTasksRunning(t, jm)

	cluster.kill("w-2")
	jm.onWorkerLost("w-2")

	waitJobStatus(t, jm, model.JobStatusFailed)
	<-jm.done()
	require.Equal(t, 0, jm.detail().Restarts)

	// checkpoints of a failed job are kept for restore
	cps, err := storage.Load(context.Background(), testJobID)
	require.NoError(t, err)
	require.Contains(t, cps, 0)
}

func TestJobMasterStaleReport(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	cluster.addWorker("w-1", 1, gib)
	jm := startJobMaster(t, cluster, newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), 1)
	waitTasksRunning(t, jm)

	// a report of an older attempt does not finish the task
	jm.onReports([]model.TaskReport{{
		TaskID:    model.NewTaskID(testJobID, 0, 7),
		JobID:     testJobID,
		TaskIndex: 0,
		Status:    model.TaskStatusFinished,
	}})
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, model.JobStatusRunning, jm.status())
	require.Equal(t, model.TaskStatusRunning, jm.detail().Tasks[0].Status)
}

func TestJobMasterRestoreFromStorage(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 1, gib)
	w.setAutoFinish(true)
	storage := checkpoint.NewMemoryStorage()
	require.NoError(t, storage.Store(context.Background(), model.TaskCheckpoint{
		JobID: testJobID, TaskIndex: 0, Offset: 40, SourceReceived: 40, CommittedRows: 40,
	}))

	jm := startJobMaster(t, cluster, newTestDeps(cluster, storage, 2), 1)
	waitJobStatus(t, jm, model.JobStatusFinished)
	deployments := w.deployments()
	require.Len(t, deployments, 1)
	require.NotNil(t, deployments[0].Restore)
	require.Equal(t, int64(40), deployments[0].Restore.Offset)
	require.Equal(t, int64(50), jm.taskReports()[0].SinkWriteCount)
}

func TestJobMasterConfigAdjust(t *testing.T) {
	t.Parallel()

	cfg := jobMasterConfig{SlotRetryBase: time.Second, SlotRetryMax: time.Millisecond}
	cfg.adjust()
	require.Equal(t, defaultStopTimeout, cfg.StopTimeout)
	require.Equal(t, defaultSlotRetryMax, cfg.SlotRetryMax)
	require.Equal(t, *jobop.NewDefaultBackoffConfig(), cfg.Restart)
}
