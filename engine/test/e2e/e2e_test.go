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

package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/client"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector/fake"
	"github.com/quanzhian/incubator-seatunnel/engine/test"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/stretchr/testify/require"
)

const (
	executorNum = 3
	rowNum      = 300
	testTimeout = time.Minute
	waitTick    = 20 * time.Millisecond
)

func init() {
	err := logutil.InitLogger(&logutil.Config{Level: "warn"})
	if err != nil {
		panic(err)
	}
}

func writePipeline(t *testing.T, collector string, sleepMs int) string {
	content := fmt.Sprintf(`
[env]
job.name = "%s"
parallelism = 3
checkpoint.interval = 10

[[source]]
plugin_name = "FakeSource"
row_num = %d
sleep_ms = %d

[[sink]]
plugin_name = "FakeSink"
collector = "%s"
`, collector, rowNum, sleepMs, collector)
	path := filepath.Join(t.TempDir(), collector+".conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func prepareCluster(t *testing.T, ctx context.Context, maxRestarts int) (*test.Cluster, *client.SeaTunnelClient) {
	cluster, err := test.NewCluster(test.ClusterConfig{
		ExecutorNum: executorNum,
		SlotNum:     2,
		MaxRestarts: maxRestarts,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, cluster.Close())
	})
	require.NoError(t, cluster.WaitExecutors(ctx, executorNum))

	cli, err := client.NewSeaTunnelClient(ctx, client.ClientConfig{MasterAddr: cluster.MasterAddr})
	require.NoError(t, err)
	t.Cleanup(cli.Close)
	return cluster, cli
}

func getJobDetail(ctx context.Context, cli *client.SeaTunnelClient, jobID model.JobID) (*model.JobDetailStatus, error) {
	raw, err := cli.GetJobDetailStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	detail := &model.JobDetailStatus{}
	if err := json.Unmarshal([]byte(raw), detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func waitAllTasksRunning(t *testing.T, ctx context.Context, cli *client.SeaTunnelClient, jobID model.JobID) *model.JobDetailStatus {
	var detail *model.JobDetailStatus
	require.Eventually(t, func() bool {
		d, err := getJobDetail(ctx, cli, jobID)
		if err != nil || d.Status != model.JobStatusRunning || len(d.Tasks) != 3 {
			return false
		}
		for _, task := range d.Tasks {
			if task.Status != model.TaskStatusRunning {
				return false
			}
		}
		detail = d
		return true
	}, testTimeout, waitTick)
	return detail
}

func requireAllRowsCommitted(t *testing.T, collector string) {
	rows := fake.Collected(collector)
	require.Len(t, rows, rowNum)
	for i, row := range rows {
		require.Equal(t, int64(i), row.Fields[0])
	}
}

func TestJobSurvivesExecutorLoss(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	const collector = "e2e_executor_loss"
	fake.ResetCollection(collector)

	cluster, cli := prepareCluster(t, ctx, 3)
	proxy, err := cli.CreateExecutionContext(writePipeline(t, collector, 20), &model.JobConfig{}).Execute(ctx)
	require.NoError(t, err)

	detail := waitAllTasksRunning(t, ctx, cli, proxy.JobID())
	require.Eventually(t, func() bool {
		return fake.CollectedStats(collector).Committed > 0
	}, testTimeout, waitTick)
	victim := detail.Tasks[0].WorkerAddress
	require.NoError(t, cluster.KillExecutor(victim))

	status, err := proxy.WaitForJobComplete(ctx)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFinished, status)

	detail, err = getJobDetail(ctx, cli, proxy.JobID())
	require.NoError(t, err)
	require.GreaterOrEqual(t, detail.Restarts, 1)
	for _, task := range detail.Tasks {
		require.NotEqual(t, victim, task.WorkerAddress)
	}
	requireAllRowsCommitted(t, collector)

	summary, err := cli.GetJobMetricsSummary(ctx, proxy.JobID())
	require.NoError(t, err)
	require.Equal(t, int64(rowNum), summary.SourceReadCount)

	// the survivors end up with consistent and fully released slots
	require.Eventually(t, func() bool {
		workers, err := cluster.ListWorkers(ctx)
		if err != nil || len(workers) != 2 {
			return false
		}
		for i := range workers {
			w := &workers[i]
			if w.Address == victim || w.Validate() != nil || len(w.AssignedSlots) != 0 {
				return false
			}
		}
		return true
	}, testTimeout, waitTick)
}

func TestSavepointThenRestore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	const collector = "e2e_savepoint_restore"
	fake.ResetCollection(collector)

	_, cli := prepareCluster(t, ctx, 3)
	path := writePipeline(t, collector, 10)
	proxy, err := cli.CreateExecutionContext(path, &model.JobConfig{}).Execute(ctx)
	require.NoError(t, err)
	jobID := proxy.JobID()

	waitAllTasksRunning(t, ctx, cli, jobID)
	require.Eventually(t, func() bool {
		return fake.CollectedStats(collector).Committed > 0
	}, testTimeout, waitTick)
	require.NoError(t, proxy.SavePointJob(ctx))
	status, err := proxy.WaitForJobComplete(ctx)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusSavepointDone, status)

	before := fake.CollectedStats(collector)
	require.Less(t, before.Committed, int64(rowNum))

	// the stopped job resumes under the same id from its savepoint
	restored, err := cli.RestoreExecutionContext(path, &model.JobConfig{}, jobID).Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, jobID, restored.JobID())
	status, err = restored.WaitForJobComplete(ctx)
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFinished, status)

	requireAllRowsCommitted(t, collector)
	after := fake.CollectedStats(collector)
	require.Equal(t, int64(rowNum), after.Committed)
	require.Zero(t, after.Duplicates)

	summary, err := cli.GetJobMetricsSummary(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, int64(rowNum), summary.SinkWriteCount)
	require.Equal(t, int64(rowNum), summary.SourceReadCount)
}
