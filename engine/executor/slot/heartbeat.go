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
	"context"
	"strconv"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/retry"
	"go.uber.org/zap"
)

// heartbeatLoop sends a heartbeat right away and then on every tick, until
// ctx is canceled. A failed heartbeat never stops the loop.
func (s *Service) heartbeatLoop(ctx context.Context) {
	ticker := s.clock.Ticker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		s.sendHeartbeat(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) sendHeartbeat(ctx context.Context) {
	var sent *model.WorkerProfile
	err := retry.Do(ctx, func() error {
		// every attempt carries the latest snapshot
		sent = s.profile.Load()
		return s.sender.SendHeartbeat(ctx, sent)
	}, s.cfg.HeartbeatRetry.Options()...)
	if err != nil {
		if errors.IsContextCanceledError(err) {
			return
		}
		s.metrics.heartbeatFailure.Inc()
		s.logger.Warn("failed to send heartbeat to master, will retry in the next tick",
			zap.Int("attempts", s.cfg.HeartbeatRetry.MaxAttempts),
			zap.Error(err))
		return
	}
	if s.heartbeatLogRL.Allow() {
		s.logger.Info("heartbeat sent",
			zap.Int("assigned-slots", len(sent.AssignedSlots)),
			zap.Stringer("unassigned", sent.UnassignedResource))
	}
}

func formatJobID(id model.JobID) string {
	return strconv.FormatInt(id, 10)
}
