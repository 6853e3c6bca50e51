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
	"sort"

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// WorkerProfile is a snapshot of the capacity and allocation state of one
// worker, pushed to the master by heartbeats.
type WorkerProfile struct {
	Address            string          `json:"address"`
	InstanceID         string          `json:"instance-id"`
	Dynamic            bool            `json:"dynamic"`
	Total              ResourceProfile `json:"total"`
	AssignedResource   ResourceProfile `json:"assigned-resource"`
	UnassignedResource ResourceProfile `json:"unassigned-resource"`
	AssignedSlots      []SlotProfile   `json:"assigned-slots"`
	UnassignedSlots    []SlotProfile   `json:"unassigned-slots"`
}

// NewWorkerProfile builds a snapshot from the given slot sets. Slots are
// copied and sorted by id.
func NewWorkerProfile(
	address string,
	dynamic bool,
	total, assigned, unassigned ResourceProfile,
	assignedSlots, unassignedSlots []*SlotProfile,
) *WorkerProfile {
	return &WorkerProfile{
		Address:            address,
		Dynamic:            dynamic,
		Total:              total,
		AssignedResource:   assigned,
		UnassignedResource: unassigned,
		AssignedSlots:      copySlots(assignedSlots),
		UnassignedSlots:    copySlots(unassignedSlots),
	}
}

func copySlots(slots []*SlotProfile) []SlotProfile {
	ret := make([]SlotProfile, 0, len(slots))
	for _, s := range slots {
		ret = append(ret, *s)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].SlotID < ret[j].SlotID
	})
	return ret
}

// Validate checks the resource accounting invariant of the snapshot. Any
// violation is reported as ErrInconsistentWorkerProfile.
func (p *WorkerProfile) Validate() error {
	if p.AssignedResource.Merge(p.UnassignedResource) != p.Total {
		return p.inconsistent("assigned %s plus unassigned %s does not equal total %s",
			p.AssignedResource, p.UnassignedResource, p.Total)
	}
	seen := make(map[SlotID]struct{}, len(p.AssignedSlots)+len(p.UnassignedSlots))
	var assignedSum ResourceProfile
	for _, s := range p.AssignedSlots {
		if !s.Assigned {
			return p.inconsistent("slot %d is in the assigned set but not assigned", s.SlotID)
		}
		if _, ok := seen[s.SlotID]; ok {
			return p.inconsistent("duplicated slot %d", s.SlotID)
		}
		seen[s.SlotID] = struct{}{}
		assignedSum = assignedSum.Merge(s.Resource)
	}
	for _, s := range p.UnassignedSlots {
		if s.Assigned {
			return p.inconsistent("slot %d is in the unassigned set but assigned", s.SlotID)
		}
		if _, ok := seen[s.SlotID]; ok {
			return p.inconsistent("duplicated slot %d", s.SlotID)
		}
		seen[s.SlotID] = struct{}{}
	}
	if assignedSum != p.AssignedResource {
		return p.inconsistent("assigned slots sum to %s but assigned resource is %s",
			assignedSum, p.AssignedResource)
	}
	return nil
}

func (p *WorkerProfile) inconsistent(format string, args ...any) error {
	return errors.ErrInconsistentWorkerProfile.GenWithStackByArgs(p.Address, fmt.Sprintf(format, args...))
}

// CanSatisfy reports whether the worker could grant a slot for the request
// given this snapshot.
func (p *WorkerProfile) CanSatisfy(req ResourceProfile) bool {
	if p.Dynamic {
		return p.UnassignedResource.EnoughThan(req)
	}
	for _, s := range p.UnassignedSlots {
		if s.Resource.EnoughThan(req) {
			return true
		}
	}
	return false
}

// SlotsOfJob returns the assigned slots owned by jobID.
func (p *WorkerProfile) SlotsOfJob(jobID JobID) []SlotProfile {
	var ret []SlotProfile
	for _, s := range p.AssignedSlots {
		if s.OwnerJobID == jobID {
			ret = append(ret, s)
		}
	}
	return ret
}
