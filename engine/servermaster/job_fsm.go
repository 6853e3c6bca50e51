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
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"go.uber.org/zap"
)

// defaultJobHistorySize is the number of terminated jobs kept for queries.
const defaultJobHistorySize = 1024

// JobStats defines a statistics interface for JobFsm
type JobStats interface {
	JobCount(status model.JobStatus) int
}

// JobFsm holds the job masters of this server. Running jobs are kept until
// they end. A terminated job master moves to a bounded history, so that the
// job can still be queried, and is replaced when the job is restored. The
// least recently queried terminated jobs are forgotten first.
//
//	         SubmitJob                   job ends
//	(none) -------------> running ------------------> history ----> (evicted)
//	                         ^                            |
//	                         |     SubmitJob(restore)     |
//	                         `----------------------------'
type JobFsm struct {
	jobsMu  sync.RWMutex
	running map[model.JobID]*jobMaster
	// history holds terminated job masters keyed by job id.
	history *lru.Cache
}

// NewJobFsm creates a new job fsm keeping at most historySize terminated jobs.
func NewJobFsm(historySize int) *JobFsm {
	history, err := lru.NewWithEvict(historySize, func(key, _ interface{}) {
		log.Info("terminated job evicted from history", zap.Any("job-id", key))
	})
	if err != nil {
		log.Panic("invalid job history size", zap.Int("size", historySize), zap.Error(err))
	}
	return &JobFsm{
		running: make(map[model.JobID]*jobMaster),
		history: history,
	}
}

// QueryJob returns the job master of jobID, nil if the job is unknown.
func (fsm *JobFsm) QueryJob(jobID model.JobID) *jobMaster {
	fsm.jobsMu.RLock()
	defer fsm.jobsMu.RUnlock()
	if jm, ok := fsm.running[jobID]; ok {
		return jm
	}
	if v, ok := fsm.history.Get(jobID); ok {
		return v.(*jobMaster)
	}
	return nil
}

// JobDispatched records a new job master, replacing the terminated master
// of a restored job.
func (fsm *JobFsm) JobDispatched(jm *jobMaster) {
	fsm.jobsMu.Lock()
	defer fsm.jobsMu.Unlock()
	old, ok := fsm.running[jm.id]
	if !ok {
		if v, found := fsm.history.Peek(jm.id); found {
			old, ok = v.(*jobMaster), true
			fsm.history.Remove(jm.id)
		}
	}
	if ok {
		log.Info("job master replaced",
			zap.Int64("job-id", jm.id), zap.Stringer("old-status", old.status()))
	}
	fsm.running[jm.id] = jm
}

// JobTerminated moves jm to the history. It is a no-op when jm has already
// been replaced by a restored job master.
func (fsm *JobFsm) JobTerminated(jm *jobMaster) {
	fsm.jobsMu.Lock()
	defer fsm.jobsMu.Unlock()
	if fsm.running[jm.id] != jm {
		return
	}
	delete(fsm.running, jm.id)
	fsm.history.Add(jm.id, jm)
}

// IterJobs calls fn on every job master in job id order.
func (fsm *JobFsm) IterJobs(fn func(jm *jobMaster)) {
	for _, jm := range fsm.allJobs() {
		fn(jm)
	}
}

func (fsm *JobFsm) allJobs() []*jobMaster {
	fsm.jobsMu.RLock()
	jobs := make([]*jobMaster, 0, len(fsm.running)+fsm.history.Len())
	for _, jm := range fsm.running {
		jobs = append(jobs, jm)
	}
	for _, key := range fsm.history.Keys() {
		if v, ok := fsm.history.Peek(key); ok {
			jobs = append(jobs, v.(*jobMaster))
		}
	}
	fsm.jobsMu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].id < jobs[j].id
	})
	return jobs
}

// JobCount queries job count based on job status
func (fsm *JobFsm) JobCount(status model.JobStatus) int {
	n := 0
	for _, jm := range fsm.allJobs() {
		if jm.status() == status {
			n++
		}
	}
	return n
}
