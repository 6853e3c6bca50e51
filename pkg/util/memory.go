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

package util

import (
	"math"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

const memoryMax uint64 = math.MaxUint64

// GetMemoryLimit gets the memory limit of current process based on cgroup.
// If the cgroup is not set or memory.max is set to max, returns the total
// memory of host.
func GetMemoryLimit() (uint64, error) {
	totalMemory, err := memlimit.FromCgroup()
	if err != nil || totalMemory == memoryMax || totalMemory == 0 {
		log.Info("no cgroup memory limit", zap.Error(err))
		stat, err := mem.VirtualMemory()
		if err != nil {
			return 0, errors.Trace(err)
		}
		totalMemory = stat.Total
	}
	return totalMemory, nil
}

// GetCPUCores returns the number of logical cores of the host.
func GetCPUCores() (int, error) {
	n, err := cpu.Counts(true)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if n <= 0 {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs("no cpu detected")
	}
	return n, nil
}
