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

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"go.uber.org/zap"
)

// filter is used by Scheduler to narrow down the candidates.
type filter interface {
	GetEligibleWorkers(
		ctx context.Context,
		request *Request,
		candidates []model.WorkerProfile,
	) []model.WorkerProfile
}

type excludeFilter struct{}

func (excludeFilter) GetEligibleWorkers(
	_ context.Context, request *Request, candidates []model.WorkerProfile,
) []model.WorkerProfile {
	if len(request.Exclude) == 0 {
		return candidates
	}
	ret := make([]model.WorkerProfile, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := request.Exclude[p.Address]; ok {
			continue
		}
		ret = append(ret, p)
	}
	return ret
}

// capacityFilter keeps the workers whose last profile can satisfy the
// request. The profile may be stale, the worker has the final word.
type capacityFilter struct{}

func (capacityFilter) GetEligibleWorkers(
	_ context.Context, request *Request, candidates []model.WorkerProfile,
) []model.WorkerProfile {
	ret := make([]model.WorkerProfile, 0, len(candidates))
	for i := range candidates {
		if candidates[i].CanSatisfy(request.Resource) {
			ret = append(ret, candidates[i])
		}
	}
	if len(ret) == 0 {
		log.Debug("no worker has enough capacity",
			zap.Int64("job-id", request.JobID),
			zap.Stringer("resource", request.Resource),
			zap.Int("candidates", len(candidates)))
	}
	return ret
}
