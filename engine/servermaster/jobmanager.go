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
	"sync"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/pipeline"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
)

// JobManager defines manager of job masters.
type JobManager interface {
	JobStats

	// SubmitJob starts a new job, or restores the job of req.JobID from its
	// checkpoints when req.Restore is set. It returns the job id.
	SubmitJob(ctx context.Context, req *enginepb.SubmitJobRequest) (model.JobID, error)
	CancelJob(ctx context.Context, jobID model.JobID) error
	SavePointJob(ctx context.Context, jobID model.JobID) error
	GetJobStatus(jobID model.JobID) (model.JobStatus, error)
	GetJobDetailStatus(jobID model.JobID) (model.JobDetailStatus, error)
	ListJobStatus() []model.JobStatusInfo
	GetJobMetrics(jobID model.JobID) (string, error)
	GetJobInfo(jobID model.JobID) (*model.JobDAGInfo, error)

	// OnTaskReports routes reports pushed by executors to their jobs.
	OnTaskReports(reports []model.TaskReport)
	// OnWorkerLost tells every running job that addr is gone.
	OnWorkerLost(addr string)

	// Run blocks until ctx is done, then stops every job master.
	Run(ctx context.Context) error
}

// JobManagerImpl owns one job master per job.
type JobManagerImpl struct {
	*JobFsm

	deps     *jobMasterDeps
	registry *connector.Registry

	// submitMu serializes submissions so that a job id is dispatched once.
	submitMu  sync.Mutex
	lastJobID model.JobID

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ JobManager = (*JobManagerImpl)(nil)

// NewJobManagerImpl creates a JobManagerImpl. Job ids start from the current
// unix time in milliseconds, so that they do not collide with the ids of a
// previous run of the master whose checkpoints are still stored.
func NewJobManagerImpl(deps *jobMasterDeps, registry *connector.Registry) *JobManagerImpl {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManagerImpl{
		JobFsm:    NewJobFsm(defaultJobHistorySize),
		deps:      deps,
		registry:  registry,
		lastJobID: deps.clock.Now().UnixMilli(),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SubmitJob implements JobManager.
func (m *JobManagerImpl) SubmitJob(ctx context.Context, req *enginepb.SubmitJobRequest) (model.JobID, error) {
	p := req.Pipeline
	if err := p.Validate(); err != nil {
		return 0, err
	}
	if err := pipeline.CheckPlugins(&p, m.registry); err != nil {
		return 0, err
	}
	cfg := req.Config
	cfg.Adjust()
	if cfg.TaskResource.IsNegative() {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs(
			"negative task resource " + cfg.TaskResource.String())
	}

	m.submitMu.Lock()
	defer m.submitMu.Unlock()
	if err := m.ctx.Err(); err != nil {
		return 0, errors.Trace(err)
	}

	var (
		jobID        model.JobID
		firstAttempt int
	)
	if req.Restore {
		if req.JobID <= 0 {
			return 0, errors.ErrInvalidArgument.GenWithStackByArgs("restore requires a job id")
		}
		jobID = req.JobID
		if old := m.QueryJob(jobID); old != nil {
			if !old.status().IsTerminal() {
				return 0, errors.ErrJobAlreadyRunning.GenWithStackByArgs(jobID)
			}
			// the old master may still be releasing its slots
			select {
			case <-old.done():
			case <-ctx.Done():
				return 0, errors.Trace(ctx.Err())
			}
			firstAttempt = old.lastAttempt() + 1
		}
		if jobID > m.lastJobID {
			m.lastJobID = jobID
		}
	} else {
		m.lastJobID++
		jobID = m.lastJobID
		// a fresh job never inherits checkpoints
		if err := m.deps.storage.Delete(ctx, jobID); err != nil {
			return 0, err
		}
	}

	jm := newJobMaster(jobID, cfg, &p, firstAttempt, m.deps)
	m.JobDispatched(jm)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		jm.run(m.ctx)
		m.JobTerminated(jm)
	}()
	log.Info("job submitted",
		zap.Int64("job-id", jobID),
		zap.String("name", cfg.Name),
		zap.Bool("restore", req.Restore),
		zap.String("pipeline", pipeline.Describe(&p)))
	return jobID, nil
}

func (m *JobManagerImpl) getJob(jobID model.JobID) (*jobMaster, error) {
	jm := m.QueryJob(jobID)
	if jm == nil {
		return nil, errors.ErrJobNotFound.GenWithStackByArgs(jobID)
	}
	return jm, nil
}

func (m *JobManagerImpl) stopJob(ctx context.Context, jobID model.JobID, savepoint bool) error {
	jm, err := m.getJob(jobID)
	if err != nil {
		return err
	}
	if status := jm.status(); status.IsTerminal() {
		return errors.ErrJobNotRunning.GenWithStackByArgs(jobID, status)
	}
	return jm.stop(ctx, savepoint)
}

// CancelJob implements JobManager.
func (m *JobManagerImpl) CancelJob(ctx context.Context, jobID model.JobID) error {
	return m.stopJob(ctx, jobID, false)
}

// SavePointJob implements JobManager.
func (m *JobManagerImpl) SavePointJob(ctx context.Context, jobID model.JobID) error {
	return m.stopJob(ctx, jobID, true)
}

// GetJobStatus implements JobManager.
func (m *JobManagerImpl) GetJobStatus(jobID model.JobID) (model.JobStatus, error) {
	jm, err := m.getJob(jobID)
	if err != nil {
		return model.JobStatusUnknowable, err
	}
	return jm.status(), nil
}

// GetJobDetailStatus implements JobManager.
func (m *JobManagerImpl) GetJobDetailStatus(jobID model.JobID) (model.JobDetailStatus, error) {
	jm, err := m.getJob(jobID)
	if err != nil {
		return model.JobDetailStatus{}, err
	}
	return jm.detail(), nil
}

// ListJobStatus implements JobManager.
func (m *JobManagerImpl) ListJobStatus() []model.JobStatusInfo {
	ret := make([]model.JobStatusInfo, 0)
	m.IterJobs(func(jm *jobMaster) {
		ret = append(ret, jm.statusInfo())
	})
	return ret
}

// GetJobMetrics implements JobManager.
func (m *JobManagerImpl) GetJobMetrics(jobID model.JobID) (string, error) {
	jm, err := m.getJob(jobID)
	if err != nil {
		return "", err
	}
	return model.NewJobMetrics(jm.taskReports()).Encode()
}

// GetJobInfo implements JobManager.
func (m *JobManagerImpl) GetJobInfo(jobID model.JobID) (*model.JobDAGInfo, error) {
	jm, err := m.getJob(jobID)
	if err != nil {
		return nil, err
	}
	return jm.dag(), nil
}

// OnTaskReports implements JobManager.
func (m *JobManagerImpl) OnTaskReports(reports []model.TaskReport) {
	byJob := make(map[model.JobID][]model.TaskReport)
	for _, r := range reports {
		byJob[r.JobID] = append(byJob[r.JobID], r)
	}
	for jobID, rs := range byJob {
		jm := m.QueryJob(jobID)
		if jm == nil || isDone(jm) {
			log.Debug("drop reports of inactive job", zap.Int64("job-id", jobID), zap.Int("reports", len(rs)))
			continue
		}
		jm.onReports(rs)
	}
}

// OnWorkerLost implements JobManager.
func (m *JobManagerImpl) OnWorkerLost(addr string) {
	m.IterJobs(func(jm *jobMaster) {
		if !isDone(jm) {
			jm.onWorkerLost(addr)
		}
	})
}

// Run implements JobManager.
func (m *JobManagerImpl) Run(ctx context.Context) error {
	<-ctx.Done()
	m.Close()
	return errors.Trace(ctx.Err())
}

// Close stops every job master and waits for them to exit.
func (m *JobManagerImpl) Close() {
	m.submitMu.Lock()
	m.cancel()
	m.submitMu.Unlock()
	m.wg.Wait()
}

func isDone(jm *jobMaster) bool {
	select {
	case <-jm.done():
		return true
	default:
		return false
	}
}
