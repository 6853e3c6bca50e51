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

package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/scheduler"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
)

// WorkerResetter asks a worker to drop all of its slot assignments.
type WorkerResetter interface {
	ResetWorker(ctx context.Context, addr string) error
}

// WorkerLostListener is notified when a worker is considered lost.
type WorkerLostListener func(addr string)

// WorkerManager manages the workers of the cluster. It is fed by heartbeats
// and used as the profile provider of the scheduler.
type WorkerManager struct {
	ttl           time.Duration
	checkInterval time.Duration
	clock         clock.Clock
	resetter      WorkerResetter
	logger        *zap.Logger

	mu      sync.RWMutex
	workers map[string]*workerInfo

	listenerMu sync.RWMutex
	listeners  []WorkerLostListener

	// resets run in the background, they are bound to the manager
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// workerInfo is the master side record of a worker.
type workerInfo struct {
	profile  model.WorkerProfile
	lastSeen clock.MonotonicTime
	// a worker is hidden from the scheduler until stale assignments made
	// for a previous master are dropped
	needReset bool
	resetting bool
}

var _ scheduler.ProfileProvider = (*WorkerManager)(nil)

// Option customizes a WorkerManager.
type Option func(*WorkerManager)

// WithClock sets the clock used for heartbeat expiry.
func WithClock(c clock.Clock) Option {
	return func(m *WorkerManager) {
		m.clock = c
	}
}

// NewWorkerManager creates a WorkerManager. A worker whose last heartbeat
// is older than ttl is removed by the check loop run every checkInterval.
func NewWorkerManager(
	ttl, checkInterval time.Duration, resetter WorkerResetter, opts ...Option,
) *WorkerManager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &WorkerManager{
		ttl:           ttl,
		checkInterval: checkInterval,
		clock:         clock.New(),
		resetter:      resetter,
		logger:        log.L().With(zap.String("component", "worker-manager")),
		workers:       make(map[string]*workerInfo),
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterLostListener registers a listener of lost workers. Listeners are
// called from the check loop and must not block.
func (m *WorkerManager) RegisterLostListener(l WorkerLostListener) {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	m.listeners = append(m.listeners, l)
}

// HandleHeartbeat records the profile pushed by a worker.
func (m *WorkerManager) HandleHeartbeat(profile *model.WorkerProfile) error {
	if profile.Address == "" {
		return errors.ErrInvalidArgument.GenWithStackByArgs("worker address is empty")
	}
	if err := profile.Validate(); err != nil {
		return err
	}

	var replaced bool
	m.mu.Lock()
	info, ok := m.workers[profile.Address]
	if ok && info.profile.InstanceID != profile.InstanceID {
		// the process behind the address was restarted, the slots of the
		// old one are gone
		delete(m.workers, profile.Address)
		ok, replaced = false, true
	}
	if !ok {
		info = &workerInfo{needReset: len(profile.AssignedSlots) > 0}
		m.workers[profile.Address] = info
		m.logger.Info("received new worker register",
			zap.String("address", profile.Address),
			zap.String("instance-id", profile.InstanceID),
			zap.Bool("dynamic", profile.Dynamic),
			zap.Stringer("total", profile.Total),
			zap.Int("assigned-slots", len(profile.AssignedSlots)))
	}
	info.profile = *profile
	info.lastSeen = m.clock.Mono()
	startReset := info.needReset && !info.resetting
	if startReset {
		info.resetting = true
	}
	m.mu.Unlock()

	if replaced {
		m.notifyLost(profile.Address)
	}
	if startReset {
		m.resetInBackground(profile.Address)
	}
	return nil
}

// resetInBackground must not block the heartbeat handler: the worker waits
// for the heartbeat reply while holding its own reset lock.
func (m *WorkerManager) resetInBackground(addr string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		err := m.resetter.ResetWorker(m.ctx, addr)

		m.mu.Lock()
		defer m.mu.Unlock()
		info, ok := m.workers[addr]
		if !ok {
			return
		}
		info.resetting = false
		if err != nil {
			m.logger.Warn("failed to reset worker, retry on next heartbeat",
				zap.String("address", addr), zap.Error(err))
			return
		}
		info.needReset = false
		m.logger.Info("worker reset", zap.String("address", addr))
	}()
}

// UpdateProfile replaces the profile of a known worker with a newer one,
// such as the profile returned by a slot request.
func (m *WorkerManager) UpdateProfile(profile *model.WorkerProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.workers[profile.Address]
	if !ok || info.profile.InstanceID != profile.InstanceID {
		return
	}
	info.profile = *profile
}

// WorkerProfiles returns the profiles of the schedulable workers sorted by
// address.
func (m *WorkerManager) WorkerProfiles() []model.WorkerProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ret := make([]model.WorkerProfile, 0, len(m.workers))
	for _, info := range m.workers {
		if info.needReset {
			continue
		}
		ret = append(ret, info.profile)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].Address < ret[j].Address
	})
	return ret
}

// GetWorker returns the last profile of the given worker.
func (m *WorkerManager) GetWorker(addr string) (model.WorkerProfile, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.workers[addr]
	if !ok {
		return model.WorkerProfile{}, false
	}
	return info.profile, true
}

// IsAlive returns true if the worker is registered.
func (m *WorkerManager) IsAlive(addr string) bool {
	_, ok := m.GetWorker(addr)
	return ok
}

// WorkerCount returns the number of registered workers.
func (m *WorkerManager) WorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// TTL returns the heartbeat TTL.
func (m *WorkerManager) TTL() time.Duration {
	return m.ttl
}

// Run expires workers until ctx is done.
func (m *WorkerManager) Run(ctx context.Context) error {
	defer func() {
		m.cancel()
		m.wg.Wait()
	}()

	ticker := m.clock.Ticker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
			m.checkAlive()
		}
	}
}

func (m *WorkerManager) checkAlive() {
	now := m.clock.Mono()
	var lost []string

	m.mu.Lock()
	for addr, info := range m.workers {
		if now.Sub(info.lastSeen) > m.ttl {
			delete(m.workers, addr)
			lost = append(lost, addr)
			m.logger.Warn("worker heartbeat timeout, remove it",
				zap.String("address", addr),
				zap.Duration("ttl", m.ttl),
				zap.Duration("since-last-heartbeat", now.Sub(info.lastSeen)))
		}
	}
	m.mu.Unlock()

	sort.Strings(lost)
	for _, addr := range lost {
		m.notifyLost(addr)
	}
}

func (m *WorkerManager) notifyLost(addr string) {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	for _, l := range m.listeners {
		l(addr)
	}
}
