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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/clock"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/retry"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// DefaultHeartbeatInterval is the interval between two heartbeats.
	DefaultHeartbeatInterval = 2 * time.Second
	// DefaultHeartbeatRetryTimes is the number of attempts of one heartbeat.
	DefaultHeartbeatRetryTimes = 5
)

// Config is the configuration of a Service.
type Config struct {
	Mode              Mode
	SlotNumber        int
	Total             model.ResourceProfile
	HeartbeatInterval time.Duration
	HeartbeatRetry    retry.Policy
}

// Adjust fills zero values with defaults.
func (c *Config) Adjust() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.HeartbeatRetry.MaxAttempts <= 0 {
		c.HeartbeatRetry.MaxAttempts = DefaultHeartbeatRetryTimes
	}
	if c.HeartbeatRetry.Delay <= 0 {
		c.HeartbeatRetry.Delay = c.HeartbeatInterval
	}
	if c.Mode == FixedPool && c.SlotNumber <= 0 {
		c.SlotNumber = 1
	}
}

//go:generate mockgen -destination mock/heartbeat_mock.go -package mock github.com/quanzhian/incubator-seatunnel/engine/executor/slot HeartbeatSender

// HeartbeatSender pushes worker profiles to the master.
type HeartbeatSender interface {
	SendHeartbeat(ctx context.Context, profile *model.WorkerProfile) error
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the clock driving heartbeats.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		s.clock = clk
	}
}

// WithInstanceID sets the id reported in worker profiles. It defaults to a
// random uuid.
func WithInstanceID(id string) Option {
	return func(s *Service) {
		s.instanceID = id
	}
}

// Service owns the slots of one worker. Allocation and release are
// serialized by a single lock; heartbeats read a snapshot published after
// every change and never take that lock.
type Service struct {
	address    string
	instanceID string
	cfg        Config
	runtime    TaskExecutionService
	sender     HeartbeatSender
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *serviceMetrics

	// fresh is true after init until the first slot request.
	fresh atomic.Bool
	// resetMu is held exclusively by Reset and shared by requests and
	// releases, so none of them lands between teardown and rebuild.
	resetMu sync.RWMutex

	// dynamic slot ids, never reused, also across resets
	idGen atomic.Int64

	mu                 sync.Mutex
	initialized        bool
	pool               pool
	assignedResource   model.ResourceProfile
	unassignedResource model.ResourceProfile
	assignedSlots      map[model.SlotID]*model.SlotProfile
	unassignedSlots    map[model.SlotID]*model.SlotProfile
	contexts           map[model.SlotID]*SlotContext
	heartbeatCancel    context.CancelFunc
	heartbeatWg        sync.WaitGroup

	profile atomic.Pointer[model.WorkerProfile]

	heartbeatLogRL *rate.Limiter
}

// NewService creates an uninitialized Service for the worker at address.
func NewService(
	address string, cfg Config, runtime TaskExecutionService, sender HeartbeatSender, opts ...Option,
) *Service {
	cfg.Adjust()
	s := &Service{
		address:        address,
		cfg:            cfg,
		runtime:        runtime,
		sender:         sender,
		clock:          clock.New(),
		logger:         logutil.NewLogger4Worker(address).With(zap.String("component", "slot-service")),
		heartbeatLogRL: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.instanceID == "" {
		s.instanceID = uuid.NewString()
	}
	s.metrics = newServiceMetrics(address)
	return s
}

// Init builds the slot pool and starts the heartbeat. It is a no-op on an
// initialized Service.
func (s *Service) Init() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return
	}
	s.pool = newPool(s.cfg.Mode, s.address, s.cfg.SlotNumber, &s.idGen)
	s.assignedResource = model.ResourceProfile{}
	s.unassignedResource = s.cfg.Total
	s.assignedSlots = make(map[model.SlotID]*model.SlotProfile)
	s.unassignedSlots = make(map[model.SlotID]*model.SlotProfile)
	s.contexts = make(map[model.SlotID]*SlotContext)
	for _, slot := range s.pool.initialSlots(s.address, s.cfg.Total) {
		s.unassignedSlots[slot.SlotID] = slot
	}
	s.initialized = true
	s.fresh.Store(true)
	s.publishLocked()

	ctx, cancel := context.WithCancel(context.Background())
	s.heartbeatCancel = cancel
	s.heartbeatWg.Add(1)
	go func() {
		defer s.heartbeatWg.Done()
		s.heartbeatLoop(ctx)
	}()

	s.logger.Info("slot service initialized",
		zap.Stringer("mode", s.cfg.Mode),
		zap.Int("slot-number", len(s.unassignedSlots)),
		zap.Stringer("total", s.cfg.Total))
}

// Reset drops every slot and starts over, unless nothing happened since the
// last init. Tasks running in assigned slots are canceled.
func (s *Service) Reset() {
	if s.fresh.Load() {
		return
	}
	s.resetMu.Lock()
	defer s.resetMu.Unlock()
	if s.fresh.Load() {
		return
	}

	s.mu.Lock()
	for _, sctx := range s.contexts {
		sctx.close()
	}
	s.mu.Unlock()

	s.logger.Info("reset slot service")
	s.Close()
	s.Init()
}

// RequestSlot tries to grant a slot of at least req to jobID. A denied
// request returns a nil slot and no error. The returned profile reflects the
// state after the request.
func (s *Service) RequestSlot(jobID model.JobID, req model.ResourceProfile) (*model.WorkerProfile, *model.SlotProfile, error) {
	if req.IsNegative() {
		return nil, nil, errors.ErrInvalidArgument.GenWithStackByArgs("negative slot request " + req.String())
	}
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, nil, errors.ErrSlotServiceNotInit.GenWithStackByArgs(s.address)
	}
	s.fresh.Store(false)
	s.logger.Info("received slot request",
		zap.Int64("job-id", jobID), zap.Stringer("resource", req))

	slot := s.pool.selectSlot(req, s.unassignedResource, s.unassignedSlots)
	if slot == nil {
		s.metrics.requestDenied.Inc()
		return s.profile.Load(), nil, nil
	}
	if err := slot.Assign(jobID); err != nil {
		return nil, nil, err
	}
	s.assignedResource = s.assignedResource.Merge(slot.Resource)
	s.unassignedResource = s.unassignedResource.Subtract(slot.Resource)
	delete(s.unassignedSlots, slot.SlotID)
	s.assignedSlots[slot.SlotID] = slot
	if _, ok := s.contexts[slot.SlotID]; !ok {
		s.contexts[slot.SlotID] = newSlotContext(slot.SlotID, jobID, s.runtime)
	}
	s.metrics.requestGranted.Inc()
	s.publishLocked()

	return s.profile.Load(), slot.Clone(), nil
}

// ReleaseSlot returns slot, owned by jobID, to the pool.
func (s *Service) ReleaseSlot(jobID model.JobID, slot *model.SlotProfile) error {
	s.resetMu.RLock()
	defer s.resetMu.RUnlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.ErrSlotServiceNotInit.GenWithStackByArgs(s.address)
	}
	s.logger.Info("received slot release request",
		zap.Int64("job-id", jobID), zap.Stringer("slot", slot))

	stored, ok := s.assignedSlots[slot.SlotID]
	if !ok {
		return errors.ErrWrongTargetSlot.GenWithStackByArgs(slot.SlotID, "slot is not assigned")
	}
	if stored.OwnerJobID != jobID {
		return errors.ErrWrongTargetSlot.GenWithStackByArgs(slot.SlotID,
			"slot is owned by job "+formatJobID(stored.OwnerJobID))
	}

	// the stored profile is authoritative, not the caller's copy
	s.assignedResource = s.assignedResource.Subtract(stored.Resource)
	s.unassignedResource = s.unassignedResource.Merge(stored.Resource)
	stored.Unassign()
	delete(s.assignedSlots, stored.SlotID)
	if s.pool.keepOnRelease() {
		s.unassignedSlots[stored.SlotID] = stored
	}
	if sctx, ok := s.contexts[stored.SlotID]; ok {
		sctx.close()
		delete(s.contexts, stored.SlotID)
	}
	s.publishLocked()
	return nil
}

// GetSlotContext returns the context of an assigned slot.
func (s *Service) GetSlotContext(slot *model.SlotProfile) (*SlotContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sctx, ok := s.contexts[slot.SlotID]
	if !ok {
		return nil, errors.ErrWrongTargetSlot.GenWithStackByArgs(slot.SlotID, "unknown slot")
	}
	return sctx, nil
}

// SlotContextsOfJob returns the contexts of all slots owned by jobID.
func (s *Service) SlotContextsOfJob(jobID model.JobID) []*SlotContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ret []*SlotContext
	for _, sctx := range s.contexts {
		if sctx.JobID() == jobID {
			ret = append(ret, sctx)
		}
	}
	return ret
}

// WorkerProfile returns the latest published snapshot, nil before Init.
func (s *Service) WorkerProfile() *model.WorkerProfile {
	return s.profile.Load()
}

// Close stops the heartbeat. Slots are kept.
func (s *Service) Close() {
	s.mu.Lock()
	cancel := s.heartbeatCancel
	s.heartbeatCancel = nil
	s.initialized = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.heartbeatWg.Wait()
}

// publishLocked must be called with s.mu held.
func (s *Service) publishLocked() {
	assigned := make([]*model.SlotProfile, 0, len(s.assignedSlots))
	for _, slot := range s.assignedSlots {
		assigned = append(assigned, slot)
	}
	unassigned := make([]*model.SlotProfile, 0, len(s.unassignedSlots))
	for _, slot := range s.unassignedSlots {
		unassigned = append(unassigned, slot)
	}
	profile := model.NewWorkerProfile(
		s.address, s.cfg.Mode == DynamicPool, s.cfg.Total,
		s.assignedResource, s.unassignedResource, assigned, unassigned)
	profile.InstanceID = s.instanceID
	s.profile.Store(profile)
	s.metrics.update(len(assigned), len(unassigned), s.assignedResource, s.unassignedResource)
}
