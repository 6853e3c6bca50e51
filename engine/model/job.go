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
	"fmt"
	"time"
)

// JobID is the cluster wide identity of a job.
type JobID = int64

const (
	// DefaultJobName is used when a job is submitted without a name.
	DefaultJobName = "seatunnel_job"
	// DefaultCheckpointInterval is the number of rows between checkpoints.
	DefaultCheckpointInterval = 1000
	// DefaultTaskMemory is the heap memory requested by each task.
	DefaultTaskMemory = Memory(64 << 20)
)

// JobConfig is the client side configuration of a job.
type JobConfig struct {
	Name               string            `json:"name"`
	Parallelism        int               `json:"parallelism"`
	TaskResource       ResourceProfile   `json:"task-resource"`
	CheckpointInterval int               `json:"checkpoint-interval"`
	Env                map[string]string `json:"env,omitempty"`
}

// Adjust fills zero values with defaults.
func (c *JobConfig) Adjust() {
	if c.Name == "" {
		c.Name = DefaultJobName
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 1
	}
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = DefaultCheckpointInterval
	}
	if c.TaskResource.IsZero() {
		c.TaskResource = ResourceProfile{HeapMemory: DefaultTaskMemory}
	}
}

// JobStatusInfo is the brief status of a job returned by list queries.
type JobStatusInfo struct {
	JobID      JobID     `json:"job-id"`
	Name       string    `json:"name"`
	Status     JobStatus `json:"status"`
	SubmitTime time.Time `json:"submit-time"`
	FinishTime time.Time `json:"finish-time,omitempty"`
}

// TaskStatusInfo is the status of one task in JobDetailStatus.
type TaskStatusInfo struct {
	TaskIndex     int        `json:"task-index"`
	Status        TaskStatus `json:"status"`
	WorkerAddress string     `json:"worker-address"`
	SlotID        SlotID     `json:"slot-id"`
	Error         string     `json:"error,omitempty"`
}

// JobDetailStatus is the full status of a job.
type JobDetailStatus struct {
	JobStatusInfo
	Restarts int              `json:"restarts"`
	Error    string           `json:"error,omitempty"`
	Tasks    []TaskStatusInfo `json:"tasks"`
}

// TaskID identifies one attempt of one parallel task of a job.
type TaskID = string

// NewTaskID builds the TaskID of the given attempt.
func NewTaskID(jobID JobID, taskIndex int, attempt int) TaskID {
	return fmt.Sprintf("job-%d-task-%d-attempt-%d", jobID, taskIndex, attempt)
}

// TaskCheckpoint is the last committed position of one task. Sources of a
// pipeline are read in turn: SourceIndex is the source being read and Offset
// the rows already consumed from it.
type TaskCheckpoint struct {
	JobID          JobID `json:"job-id"`
	TaskIndex      int   `json:"task-index"`
	SourceIndex    int   `json:"source-index"`
	Offset         int64 `json:"offset"`
	SourceReceived int64 `json:"source-received"`
	CommittedRows  int64 `json:"committed-rows"`
}

// TaskDeployment is everything a worker needs to run one task.
type TaskDeployment struct {
	TaskID             TaskID          `json:"task-id"`
	JobID              JobID           `json:"job-id"`
	TaskIndex          int             `json:"task-index"`
	Parallelism        int             `json:"parallelism"`
	CheckpointInterval int             `json:"checkpoint-interval"`
	Pipeline           *Pipeline       `json:"pipeline"`
	Restore            *TaskCheckpoint `json:"restore,omitempty"`
}

// TaskReport is sent by a worker to the master when a task changes status,
// and periodically while it runs.
type TaskReport struct {
	TaskID              TaskID          `json:"task-id"`
	JobID               JobID           `json:"job-id"`
	TaskIndex           int             `json:"task-index"`
	WorkerAddress       string          `json:"worker-address"`
	SlotID              SlotID          `json:"slot-id"`
	Status              TaskStatus      `json:"status"`
	Error               string          `json:"error,omitempty"`
	SourceReceivedCount int64           `json:"source-received-count"`
	SinkWriteCount      int64           `json:"sink-write-count"`
	Checkpoint          *TaskCheckpoint `json:"checkpoint,omitempty"`
}
