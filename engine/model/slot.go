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

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// SlotID identifies a slot within one worker.
type SlotID = int64

// SlotProfile describes one unit of allocatable capacity on a worker.
type SlotProfile struct {
	SlotID        SlotID          `json:"slot-id"`
	WorkerAddress string          `json:"worker-address"`
	Resource      ResourceProfile `json:"resource"`
	OwnerJobID    JobID           `json:"owner-job-id"`
	Assigned      bool            `json:"assigned"`
}

// NewSlotProfile creates an unassigned slot.
func NewSlotProfile(id SlotID, workerAddress string, resource ResourceProfile) *SlotProfile {
	return &SlotProfile{
		SlotID:        id,
		WorkerAddress: workerAddress,
		Resource:      resource,
	}
}

// Assign marks the slot as owned by jobID.
func (s *SlotProfile) Assign(jobID JobID) error {
	if s.Assigned {
		return errors.ErrSlotAlreadyAssigned.GenWithStackByArgs(s.SlotID, s.OwnerJobID)
	}
	s.Assigned = true
	s.OwnerJobID = jobID
	return nil
}

// Unassign returns the slot to the free state.
func (s *SlotProfile) Unassign() {
	s.Assigned = false
	s.OwnerJobID = 0
}

// Clone returns a copy that shares nothing with s.
func (s *SlotProfile) Clone() *SlotProfile {
	cloned := *s
	return &cloned
}

func (s *SlotProfile) String() string {
	if s.Assigned {
		return fmt.Sprintf("slot(%d@%s, %s, job=%d)", s.SlotID, s.WorkerAddress, s.Resource, s.OwnerJobID)
	}
	return fmt.Sprintf("slot(%d@%s, %s)", s.SlotID, s.WorkerAddress, s.Resource)
}
