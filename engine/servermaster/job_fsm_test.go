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
	"testing"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/stretchr/testify/require"
)

func TestJobFsmDispatchAndReplace(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(newFakeCluster(), checkpoint.NewMemoryStorage(), 2)
	cfg := model.JobConfig{}
	cfg.Adjust()

	fsm := NewJobFsm(defaultJobHistorySize)
	require.Nil(t, fsm.QueryJob(1))

	jm3 := newJobMaster(3, cfg, testPipeline(), 0, deps)
	jm1 := newJobMaster(1, cfg, testPipeline(), 0, deps)
	fsm.JobDispatched(jm3)
	fsm.JobDispatched(jm1)
	require.Same(t, jm1, fsm.QueryJob(1))
	require.Equal(t, 2, fsm.JobCount(model.JobStatusCreated))
	require.Equal(t, 0, fsm.JobCount(model.JobStatusRunning))

	var ids []model.JobID
	fsm.IterJobs(func(jm *jobMaster) {
		ids = append(ids, jm.id)
	})
	require.Equal(t, []model.JobID{1, 3}, ids)

	// a restored job replaces its terminated master
	jm1.setStatus(model.JobStatusSavepointDone)
	fsm.JobTerminated(jm1)
	require.Same(t, jm1, fsm.QueryJob(1))
	require.Equal(t, 1, fsm.JobCount(model.JobStatusSavepointDone))
	restored := newJobMaster(1, cfg, testPipeline(), jm1.lastAttempt()+1, deps)
	fsm.JobDispatched(restored)
	require.Same(t, restored, fsm.QueryJob(1))
	require.Equal(t, 0, fsm.JobCount(model.JobStatusSavepointDone))
	require.Equal(t, 2, fsm.JobCount(model.JobStatusCreated))

	// the replaced master ending late leaves the restored one in place
	fsm.JobTerminated(jm1)
	require.Same(t, restored, fsm.QueryJob(1))
}

func TestJobFsmHistoryEviction(t *testing.T) {
	t.Parallel()

	deps := newTestDeps(newFakeCluster(), checkpoint.NewMemoryStorage(), 2)
	cfg := model.JobConfig{}
	cfg.Adjust()

	fsm := NewJobFsm(2)
	masters := make([]*jobMaster, 0, 3)
	for id := model.JobID(1); id <= 3; id++ {
		jm := newJobMaster(id, cfg, testPipeline(), 0, deps)
		fsm.JobDispatched(jm)
		masters = append(masters, jm)
	}
	// running jobs are never evicted
	require.Equal(t, 3, fsm.JobCount(model.JobStatusCreated))

	for _, jm := range masters {
		jm.setStatus(model.JobStatusFinished)
	}
	fsm.JobTerminated(masters[0])
	fsm.JobTerminated(masters[1])
	// touch job 1 so that job 2 is the least recently used
	require.NotNil(t, fsm.QueryJob(1))
	fsm.JobTerminated(masters[2])

	require.Nil(t, fsm.QueryJob(2))
	require.Same(t, masters[0], fsm.QueryJob(1))
	require.Same(t, masters[2], fsm.QueryJob(3))
	require.Equal(t, 2, fsm.JobCount(model.JobStatusFinished))

	var ids []model.JobID
	fsm.IterJobs(func(jm *jobMaster) {
		ids = append(ids, jm.id)
	})
	require.Equal(t, []model.JobID{1, 3}, ids)
}
