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

package slot

import (
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"go.uber.org/atomic"
)

// Mode selects how a worker carves its capacity into slots.
type Mode int

const (
	// FixedPool pre-creates a fixed number of equally sized slots.
	FixedPool Mode = iota
	// DynamicPool creates a slot sized exactly to each granted request.
	DynamicPool
)

func (m Mode) String() string {
	if m == DynamicPool {
		return "dynamic"
	}
	return "fixed"
}

// pool is the mode specific part of slot allocation. It is only accessed
// under the lock of Service.
type pool interface {
	// initialSlots returns the slots that exist right after init.
	initialSlots(address string, total model.ResourceProfile) []*model.SlotProfile
	// selectSlot picks the slot to grant for req, or returns nil.
	selectSlot(req model.ResourceProfile, unassigned model.ResourceProfile,
		free map[model.SlotID]*model.SlotProfile) *model.SlotProfile
	// keepOnRelease reports whether a released slot goes back to the free set.
	keepOnRelease() bool
}

type fixedPool struct {
	address    string
	slotNumber int
}

func (p *fixedPool) initialSlots(address string, total model.ResourceProfile) []*model.SlotProfile {
	if p.slotNumber <= 0 {
		return nil
	}
	// CPU is not accounted per slot in fixed mode.
	per := model.ResourceProfile{HeapMemory: total.HeapMemory / model.Memory(p.slotNumber)}
	slots := make([]*model.SlotProfile, 0, p.slotNumber)
	for i := 0; i < p.slotNumber; i++ {
		slots = append(slots, model.NewSlotProfile(model.SlotID(i), address, per))
	}
	return slots
}

// selectSlot is a best fit: the sufficient slot with the least memory, then
// the least CPU, then the lowest id.
func (p *fixedPool) selectSlot(
	req model.ResourceProfile, _ model.ResourceProfile, free map[model.SlotID]*model.SlotProfile,
) *model.SlotProfile {
	var best *model.SlotProfile
	for _, slot := range free {
		if !slot.Resource.EnoughThan(req) {
			continue
		}
		if best == nil || betterFit(slot, best) {
			best = slot
		}
	}
	return best
}

func betterFit(a, b *model.SlotProfile) bool {
	if a.Resource.HeapMemory != b.Resource.HeapMemory {
		return a.Resource.HeapMemory < b.Resource.HeapMemory
	}
	if a.Resource.CPU != b.Resource.CPU {
		return a.Resource.CPU < b.Resource.CPU
	}
	return a.SlotID < b.SlotID
}

func (p *fixedPool) keepOnRelease() bool {
	return true
}

type dynamicPool struct {
	address string
	// shared with the Service so ids are never reused across resets
	idGen *atomic.Int64
}

func (p *dynamicPool) initialSlots(string, model.ResourceProfile) []*model.SlotProfile {
	return nil
}

func (p *dynamicPool) selectSlot(
	req model.ResourceProfile, unassigned model.ResourceProfile, _ map[model.SlotID]*model.SlotProfile,
) *model.SlotProfile {
	if !unassigned.EnoughThan(req) {
		return nil
	}
	return model.NewSlotProfile(p.idGen.Inc(), p.address, req)
}

func (p *dynamicPool) keepOnRelease() bool {
	return false
}

func newPool(mode Mode, address string, slotNumber int, idGen *atomic.Int64) pool {
	switch mode {
	case DynamicPool:
		return &dynamicPool{address: address, idGen: idGen}
	default:
		return &fixedPool{address: address, slotNumber: slotNumber}
	}
}
