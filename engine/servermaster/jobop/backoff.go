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

package jobop

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"go.uber.org/zap"
)

const (
	defaultBackoffInitInterval  = 1 * time.Second
	defaultBackoffMaxInterval   = 30 * time.Second
	defaultBackoffMultiplier    = 2.0
	defaultBackoffResetInterval = 10 * time.Minute
	defaultBackoffMaxTryTime    = 3
)

// BackoffConfig configures the restart backoff of a job.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// ResetInterval is how long a job must run without failure before its
	// failure history is forgotten.
	ResetInterval time.Duration
	// MaxTryTime is the number of continuous failures after which the job
	// is terminated.
	MaxTryTime int
}

// NewDefaultBackoffConfig creates a default BackoffConfig.
func NewDefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		InitialInterval: defaultBackoffInitInterval,
		MaxInterval:     defaultBackoffMaxInterval,
		Multiplier:      defaultBackoffMultiplier,
		ResetInterval:   defaultBackoffResetInterval,
		MaxTryTime:      defaultBackoffMaxTryTime,
	}
}

// NewJobBackoff creates the restart backoff of one job.
func NewJobBackoff(jobID model.JobID, clocker clock.Clock, config *BackoffConfig) *JobBackoff {
	errBackoff := backoff.NewExponentialBackOff()
	errBackoff.InitialInterval = config.InitialInterval
	errBackoff.MaxInterval = config.MaxInterval
	errBackoff.Multiplier = config.Multiplier
	// never stop on elapsed time, MaxTryTime terminates the job
	errBackoff.MaxElapsedTime = 0
	errBackoff.Reset()

	return &JobBackoff{
		jobID:      jobID,
		clocker:    clocker,
		config:     config,
		errBackoff: errBackoff,
	}
}

// JobBackoff decides whether and when a job that lost tasks is restarted.
// Every failure pushes the next restart further by an exponential interval.
// A job that has been fully running for ResetInterval when the next event
// arrives starts over with a clean failure history.
//
// It is owned by the goroutine of one job and is not thread safe.
type JobBackoff struct {
	jobID   model.JobID
	clocker clock.Clock
	config  *BackoffConfig

	errBackoff *backoff.ExponentialBackOff
	interval   time.Duration

	failures    int
	lastFailure time.Time
	running     bool
	runningFrom time.Time
}

// Terminate reports whether the job failed more than MaxTryTime times in a row.
func (b *JobBackoff) Terminate() bool {
	return b.failures > b.config.MaxTryTime
}

// Allow returns whether the job can be restarted now.
func (b *JobBackoff) Allow() bool {
	return b.RemainingWait() <= 0
}

// RemainingWait returns how long the job must wait before being restarted.
func (b *JobBackoff) RemainingWait() time.Duration {
	if b.failures == 0 {
		return 0
	}
	return b.interval - b.clocker.Since(b.lastFailure)
}

// Success is called when all tasks of the job are running.
func (b *JobBackoff) Success() {
	b.maybeForget()
	b.running = true
	b.runningFrom = b.clocker.Now()
}

// Fail is called when the job loses a task.
func (b *JobBackoff) Fail() {
	b.maybeForget()
	b.running = false
	b.failures++
	b.lastFailure = b.clocker.Now()

	old := b.interval
	b.interval = b.errBackoff.NextBackOff()
	log.Info("job restart backoff changed",
		zap.Int64("job-id", b.jobID),
		zap.Int("failures", b.failures),
		zap.Duration("old-interval", old),
		zap.Duration("new-interval", b.interval))
}

// Failures returns the number of failures since the history was last forgotten.
func (b *JobBackoff) Failures() int {
	return b.failures
}

func (b *JobBackoff) maybeForget() {
	if !b.running || b.clocker.Since(b.runningFrom) < b.config.ResetInterval {
		return
	}
	if b.failures > 0 {
		log.Info("job has been stable, forget its failures",
			zap.Int64("job-id", b.jobID), zap.Int("failures", b.failures))
	}
	b.failures = 0
	b.interval = 0
	b.errBackoff.Reset()
}
