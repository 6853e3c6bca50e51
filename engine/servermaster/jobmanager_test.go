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

	"github.com/goccy/go-json"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"

	_ "github.com/quanzhian/incubator-seatunnel/engine/pkg/connector/fake"
)

func newTestJobManager(t *testing.T, cluster *fakeCluster, storage checkpoint.Storage) *JobManagerImpl {
	m := NewJobManagerImpl(newTestDeps(cluster, storage, 2), connector.GlobalRegistry())
	cluster.setSink(m.OnTaskReports)
	t.Cleanup(m.Close)
	return m
}

func submitRequest(parallelism int) *enginepb.SubmitJobRequest {
	return &enginepb.SubmitJobRequest{
		Config:   model.JobConfig{Name: "test-job", Parallelism: parallelism},
		Pipeline: *testPipeline(),
	}
}

func waitManagedJob(t *testing.T, m *JobManagerImpl, jobID model.JobID, status model.JobStatus) {
	require.Eventually(t, func() bool {
		s, err := m.GetJobStatus(jobID)
		return err == nil && s == status
	}, waitTimeout, waitTick)
}

func TestJobManagerSubmitAndQuery(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 4, gib)
	w.setAutoFinish(true)
	m := newTestJobManager(t, cluster, checkpoint.NewMemoryStorage())

	ctx := context.Background()
	id1, err := m.SubmitJob(ctx, submitRequest(2))
	require.NoError(t, err)
	id2, err := m.SubmitJob(ctx, submitRequest(1))
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	waitManagedJob(t, m, id1, model.JobStatusFinished)
	waitManagedJob(t, m, id2, model.JobStatusFinished)
	require.Equal(t, 2, m.JobCount(model.JobStatusFinished))

	list := m.ListJobStatus()
	require.Len(t, list, 2)
	require.Equal(t, id1, list[0].JobID)
	require.Equal(t, "test-job", list[0].Name)

	detail, err := m.GetJobDetailStatus(id1)
	require.NoError(t, err)
	require.Len(t, detail.Tasks, 2)

	raw, err := m.GetJobMetrics(id1)
	require.NoError(t, err)
	var metrics model.JobMetrics
	require.NoError(t, json.Unmarshal([]byte(raw), &metrics))
	require.Len(t, metrics[model.MetricSinkWriteCount], 2)
	require.Equal(t, int64(10), metrics[model.MetricSinkWriteCount][0].Value)

	dag, err := m.GetJobInfo(id2)
	require.NoError(t, err)
	require.Equal(t, id2, dag.JobID)
	require.Len(t, dag.Vertices, 2)
	require.Len(t, dag.Edges, 1)

	err = m.CancelJob(ctx, id1)
	require.True(t, errors.Is(err, errors.ErrJobNotRunning), err)
}

func TestJobManagerRejectsBadRequests(t *testing.T) {
	t.Parallel()

	m := newTestJobManager(t, newFakeCluster(), checkpoint.NewMemoryStorage())
	ctx := context.Background()

	req := submitRequest(1)
	req.Pipeline.Sinks = nil
	_, err := m.SubmitJob(ctx, req)
	require.True(t, errors.Is(err, errors.ErrPipelineInvalid), err)

	req = submitRequest(1)
	req.Pipeline.Sources[0].PluginName = "NoSuchSource"
	_, err = m.SubmitJob(ctx, req)
	require.True(t, errors.Is(err, errors.ErrPluginNotFound), err)

	req = submitRequest(1)
	req.Restore = true
	_, err = m.SubmitJob(ctx, req)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)

	req = submitRequest(1)
	req.Config.TaskResource = model.NewResourceProfile(0, -gib)
	_, err = m.SubmitJob(ctx, req)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)
	require.Regexp(t, "negative task resource", err.Error())

	_, err = m.GetJobStatus(42)
	require.True(t, errors.Is(err, errors.ErrJobNotFound), err)
	err = m.CancelJob(ctx, 42)
	require.True(t, errors.Is(err, errors.ErrJobNotFound), err)
	_, err = m.GetJobMetrics(42)
	require.True(t, errors.Is(err, errors.ErrJobNotFound), err)
	require.Empty(t, m.ListJobStatus())
}

func TestJobManagerSavepointAndRestore(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 2, gib)
	storage := checkpoint.NewMemoryStorage()
	m := newTestJobManager(t, cluster, storage)
	ctx := context.Background()

	jobID, err := m.SubmitJob(ctx, submitRequest(2))
	require.NoError(t, err)
	waitManagedJob(t, m, jobID, model.JobStatusRunning)
	require.Eventually(t, func() bool {
		detail, err := m.GetJobDetailStatus(jobID)
		if err != nil {
			return false
		}
		for _, task := range detail.Tasks {
			if task.Status != model.TaskStatusRunning {
				return false
			}
		}
		return true
	}, waitTimeout, waitTick)

	// a running job cannot be restored
	req := submitRequest(2)
	req.JobID, req.Restore = jobID, true
	_, err = m.SubmitJob(ctx, req)
	require.True(t, errors.Is(err, errors.ErrJobAlreadyRunning), err)

	require.NoError(t, m.SavePointJob(ctx, jobID))
	waitManagedJob(t, m, jobID, model.JobStatusSavepointDone)

	w.setAutoFinish(true)
	restoredID, err := m.SubmitJob(ctx, req)
	require.NoError(t, err)
	require.Equal(t, jobID, restoredID)
	waitManagedJob(t, m, jobID, model.JobStatusFinished)

	deployments := w.deployments()
	require.Len(t, deployments, 4)
	for _, d := range deployments[2:] {
		require.Equal(t, model.NewTaskID(jobID, d.TaskIndex, 1), d.TaskID)
		require.NotNil(t, d.Restore)
		require.Equal(t, int64(5), d.Restore.Offset)
	}

	// a new job gets a fresh id after the restored one
	nextID, err := m.SubmitJob(ctx, submitRequest(1))
	require.NoError(t, err)
	require.Greater(t, nextID, jobID)
}

func TestJobManagerClose(t *testing.T) {
	t.Parallel()

	cluster := newFakeCluster()
	w := cluster.addWorker("w-1", 1, gib)
	m := NewJobManagerImpl(newTestDeps(cluster, checkpoint.NewMemoryStorage(), 2), connector.GlobalRegistry())
	cluster.setSink(m.OnTaskReports)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Run(ctx)
	}()

	jobID, err := m.SubmitJob(context.Background(), submitRequest(1))
	require.NoError(t, err)
	waitManagedJob(t, m, jobID, model.JobStatusRunning)
	require.Equal(t, 1, w.assignedSlots())

	cancel()
	err = <-errCh
	require.True(t, errors.IsContextCanceledError(err), err)
	// the job master cleaned up before Run returned
	require.Equal(t, 0, w.assignedSlots())

	_, err = m.SubmitJob(context.Background(), submitRequest(1))
	require.Error(t, err)
}
