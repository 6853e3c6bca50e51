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

package client

import (
	"sync"
	"time"

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
)

// WorkerGroup holds a group of WorkerClients keyed by worker address.
type WorkerGroup interface {
	// GetWorkerClient returns the client of the given worker, connecting on
	// first use.
	GetWorkerClient(addr string) (WorkerClient, error)
	// RemoveWorker closes and forgets the client of the given worker.
	RemoveWorker(addr string)
	// Close closes every client.
	Close()
}

// DefaultWorkerGroup is the default implementation for WorkerGroup.
type DefaultWorkerGroup struct {
	mu      sync.RWMutex
	clients map[string]WorkerClient

	logger        *zap.Logger
	clientFactory workerClientFactory
}

// NewWorkerGroup creates a new WorkerGroup whose calls are bounded by timeout.
func NewWorkerGroup(timeout time.Duration, logger *zap.Logger) *DefaultWorkerGroup {
	return newWorkerGroupWithClientFactory(logger, &workerClientFactoryImpl{timeout: timeout})
}

func newWorkerGroupWithClientFactory(logger *zap.Logger, factory workerClientFactory) *DefaultWorkerGroup {
	if logger == nil {
		logger = zap.L()
	}
	return &DefaultWorkerGroup{
		clients:       make(map[string]WorkerClient),
		clientFactory: factory,
		logger:        logger,
	}
}

// GetWorkerClient implements WorkerGroup.
func (g *DefaultWorkerGroup) GetWorkerClient(addr string) (WorkerClient, error) {
	if addr == "" {
		return nil, errors.ErrWorkerNotFound.GenWithStackByArgs(addr)
	}
	g.mu.RLock()
	client, ok := g.clients[addr]
	g.mu.RUnlock()
	if ok {
		return client, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if client, ok := g.clients[addr]; ok {
		return client, nil
	}
	// NewWorkerClient is non-blocking.
	client, err := g.clientFactory.NewWorkerClient(addr)
	if err != nil {
		g.logger.Warn("failed to create new client",
			zap.String("address", addr), zap.Error(err))
		return nil, err
	}
	g.clients[addr] = client
	g.logger.Info("worker client added", zap.String("address", addr))
	return client, nil
}

// RemoveWorker implements WorkerGroup.
func (g *DefaultWorkerGroup) RemoveWorker(addr string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	client, exists := g.clients[addr]
	if !exists {
		return
	}
	delete(g.clients, addr)
	client.Close()
	g.logger.Info("worker client removed", zap.String("address", addr))
}

// Close implements WorkerGroup.
func (g *DefaultWorkerGroup) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for addr, client := range g.clients {
		client.Close()
		delete(g.clients, addr)
	}
}
