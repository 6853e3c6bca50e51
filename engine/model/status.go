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

package model

import (
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// JobStatus is the lifecycle state of a job. It is encoded by name on the wire.
type JobStatus int32

// JobStatus values. The numeric values are stable but never leave the process.
const (
	JobStatusUnknowable JobStatus = iota
	JobStatusInitializing
	JobStatusCreated
	JobStatusScheduled
	JobStatusRunning
	JobStatusFailing
	JobStatusFailed
	JobStatusDoingSavepoint
	JobStatusSavepointDone
	JobStatusCanceling
	JobStatusCanceled
	JobStatusFinished
)

var jobStatusNames = map[JobStatus]string{
	JobStatusUnknowable:     "UNKNOWABLE",
	JobStatusInitializing:   "INITIALIZING",
	JobStatusCreated:        "CREATED",
	JobStatusScheduled:      "SCHEDULED",
	JobStatusRunning:        "RUNNING",
	JobStatusFailing:        "FAILING",
	JobStatusFailed:         "FAILED",
	JobStatusDoingSavepoint: "DOING_SAVEPOINT",
	JobStatusSavepointDone:  "SAVEPOINT_DONE",
	JobStatusCanceling:      "CANCELING",
	JobStatusCanceled:       "CANCELED",
	JobStatusFinished:       "FINISHED",
}

var jobStatusValues = func() map[string]JobStatus {
	m := make(map[string]JobStatus, len(jobStatusNames))
	for k, v := range jobStatusNames {
		m[v] = k
	}
	return m
}()

func (s JobStatus) String() string {
	if name, ok := jobStatusNames[s]; ok {
		return name
	}
	return jobStatusNames[JobStatusUnknowable]
}

// IsTerminal returns true if the job will never change its status again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusFailed, JobStatusCanceled, JobStatusFinished, JobStatusSavepointDone:
		return true
	default:
		return false
	}
}

// ParseJobStatus parses the name of a JobStatus.
func ParseJobStatus(name string) (JobStatus, error) {
	if s, ok := jobStatusValues[name]; ok {
		return s, nil
	}
	return JobStatusUnknowable, errors.ErrInvalidArgument.GenWithStackByArgs("job status " + name)
}

// MarshalText implements encoding.TextMarshaler.
func (s JobStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *JobStatus) UnmarshalText(text []byte) error {
	status, err := ParseJobStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// TaskStatus is the state of one parallel task of a job.
type TaskStatus int32

// TaskStatus values.
const (
	TaskStatusUnknown TaskStatus = iota
	TaskStatusDeploying
	TaskStatusRunning
	TaskStatusFinished
	TaskStatusFailed
	TaskStatusCanceled
	TaskStatusSavepointDone
)

var taskStatusNames = map[TaskStatus]string{
	TaskStatusUnknown:       "UNKNOWN",
	TaskStatusDeploying:     "DEPLOYING",
	TaskStatusRunning:       "RUNNING",
	TaskStatusFinished:      "FINISHED",
	TaskStatusFailed:        "FAILED",
	TaskStatusCanceled:      "CANCELED",
	TaskStatusSavepointDone: "SAVEPOINT_DONE",
}

func (s TaskStatus) String() string {
	if name, ok := taskStatusNames[s]; ok {
		return name
	}
	return taskStatusNames[TaskStatusUnknown]
}

// IsTerminal returns true if the task has stopped.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusFinished, TaskStatusFailed, TaskStatusCanceled, TaskStatusSavepointDone:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TaskStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TaskStatus) UnmarshalText(text []byte) error {
	for k, v := range taskStatusNames {
		if v == string(text) {
			*s = k
			return nil
		}
	}
	return errors.ErrInvalidArgument.GenWithStackByArgs("task status " + string(text))
}
