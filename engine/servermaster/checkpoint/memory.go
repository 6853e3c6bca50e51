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

package checkpoint

import (
	"context"
	"sync"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
)

// MemoryStorage keeps checkpoints in the master process. They are lost
// when the master restarts.
type MemoryStorage struct {
	mu   sync.RWMutex
	jobs map[model.JobID]map[int]model.TaskCheckpoint
}

// NewMemoryStorage creates a MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{jobs: make(map[model.JobID]map[int]model.TaskCheckpoint)}
}

// Store implements Storage.
func (s *MemoryStorage) Store(_ context.Context, cp model.TaskCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := s.jobs[cp.JobID]
	if !ok {
		tasks = make(map[int]model.TaskCheckpoint)
		s.jobs[cp.JobID] = tasks
	}
	tasks[cp.TaskIndex] = cp
	return nil
}

// Load implements Storage.
func (s *MemoryStorage) Load(_ context.Context, jobID model.JobID) (map[int]model.TaskCheckpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make(map[int]model.TaskCheckpoint, len(s.jobs[jobID]))
	for idx, cp := range s.jobs[jobID] {
		ret[idx] = cp
	}
	return ret, nil
}

// Delete implements Storage.
func (s *MemoryStorage) Delete(_ context.Context, jobID model.JobID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, jobID)
	return nil
}

// Close implements Storage.
func (s *MemoryStorage) Close() error {
	return nil
}
