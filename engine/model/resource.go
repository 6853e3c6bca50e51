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

	"github.com/dustin/go-humanize"
)

// CPU is an amount of CPU in milli cores.
type CPU int64

// Memory is an amount of memory in bytes.
type Memory int64

// CPUCores converts whole cores to CPU.
func CPUCores(cores float64) CPU {
	return CPU(cores * 1000)
}

// Cores returns the amount in cores.
func (c CPU) Cores() float64 {
	return float64(c) / 1000
}

func (c CPU) String() string {
	return fmt.Sprintf("%.3f", c.Cores())
}

func (m Memory) String() string {
	if m < 0 {
		return "-" + humanize.IBytes(uint64(-m))
	}
	return humanize.IBytes(uint64(m))
}

// ResourceProfile is a two dimensional resource amount.
// There is no total order between profiles, use EnoughThan to compare.
type ResourceProfile struct {
	CPU        CPU    `json:"cpu"`
	HeapMemory Memory `json:"heap-memory"`
}

// NewResourceProfile creates a ResourceProfile.
func NewResourceProfile(cpu CPU, heapMemory Memory) ResourceProfile {
	return ResourceProfile{CPU: cpu, HeapMemory: heapMemory}
}

// Merge returns the component-wise sum.
func (r ResourceProfile) Merge(other ResourceProfile) ResourceProfile {
	return ResourceProfile{
		CPU:        r.CPU + other.CPU,
		HeapMemory: r.HeapMemory + other.HeapMemory,
	}
}

// Subtract returns the component-wise difference. The result may be negative.
func (r ResourceProfile) Subtract(other ResourceProfile) ResourceProfile {
	return ResourceProfile{
		CPU:        r.CPU - other.CPU,
		HeapMemory: r.HeapMemory - other.HeapMemory,
	}
}

// EnoughThan returns true iff every component of r is no less than the
// corresponding component of other.
func (r ResourceProfile) EnoughThan(other ResourceProfile) bool {
	return r.CPU >= other.CPU && r.HeapMemory >= other.HeapMemory
}

// IsZero returns true if both components are zero.
func (r ResourceProfile) IsZero() bool {
	return r.CPU == 0 && r.HeapMemory == 0
}

// IsNegative returns true if any component is below zero.
func (r ResourceProfile) IsNegative() bool {
	return r.CPU < 0 || r.HeapMemory < 0
}

func (r ResourceProfile) String() string {
	return fmt.Sprintf("cpu=%s memory=%s", r.CPU, r.HeapMemory)
}
