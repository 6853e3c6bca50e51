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

package scheduler

import (
	"context"
	"sort"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// ProfileProvider provides the latest profiles of the live workers.
type ProfileProvider interface {
	WorkerProfiles() []model.WorkerProfile
}

// Request describes the slot a job master needs.
type Request struct {
	JobID    model.JobID
	Resource model.ResourceProfile
	// Exclude lists workers that must not be chosen, typically those that
	// just denied the same request.
	Exclude map[string]struct{}
}

// Scheduler chooses the workers a slot request is sent to.
type Scheduler interface {
	// ScheduleSlot returns the candidate worker addresses, best first.
	// ErrNoQualifiedWorker is returned if there is none.
	ScheduleSlot(ctx context.Context, request *Request) ([]string, error)
}

// DefaultScheduler prefers the worker with the most unassigned memory.
type DefaultScheduler struct {
	provider ProfileProvider
	filters  []filter
}

var _ Scheduler = (*DefaultScheduler)(nil)

// NewScheduler creates a new DefaultScheduler instance.
func NewScheduler(provider ProfileProvider) *DefaultScheduler {
	return &DefaultScheduler{
		provider: provider,
		filters: []filter{
			excludeFilter{},
			capacityFilter{},
		},
	}
}

// ScheduleSlot implements Scheduler.
func (s *DefaultScheduler) ScheduleSlot(ctx context.Context, request *Request) ([]string, error) {
	candidates, err := s.chainFilter(ctx, request)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		mi, mj := candidates[i].UnassignedResource.HeapMemory, candidates[j].UnassignedResource.HeapMemory
		if mi != mj {
			return mi > mj
		}
		return candidates[i].Address < candidates[j].Address
	})
	ret := make([]string, 0, len(candidates))
	for _, p := range candidates {
		ret = append(ret, p.Address)
	}
	return ret, nil
}

// chainFilter runs the filter chain and returns a final candidate list.
func (s *DefaultScheduler) chainFilter(
	ctx context.Context, request *Request,
) ([]model.WorkerProfile, error) {
	candidates := s.provider.WorkerProfiles()
	for _, f := range s.filters {
		candidates = f.GetEligibleWorkers(ctx, request, candidates)
		if len(candidates) == 0 {
			return nil, errors.ErrNoQualifiedWorker.GenWithStackByArgs(request.Resource.String())
		}
	}
	return candidates, nil
}
