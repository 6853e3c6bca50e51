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

package test

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/phayes/freeport"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/executor"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ClusterConfig describes an in-process cluster.
type ClusterConfig struct {
	ExecutorNum int
	SlotNum     int
	MaxRestarts int
}

type serverHandle struct {
	cancel context.CancelFunc
	done   chan error
}

func runServer(run func(ctx context.Context) error) *serverHandle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &serverHandle{cancel: cancel, done: make(chan error, 1)}
	go func() {
		h.done <- run(ctx)
	}()
	return h
}

func (h *serverHandle) stop() error {
	h.cancel()
	err := <-h.done
	if err != nil && !errors.IsContextCanceledError(err) {
		return err
	}
	return nil
}

// Cluster is one master and several executors talking over loopback gRPC.
type Cluster struct {
	MasterAddr string

	master *serverHandle

	mu        sync.Mutex
	executors map[string]*serverHandle
}

// NewCluster starts a cluster. Executors register with their first
// heartbeat, see WaitExecutors.
func NewCluster(cfg ClusterConfig) (*Cluster, error) {
	ports, err := freeport.GetFreePorts(cfg.ExecutorNum + 1)
	if err != nil {
		return nil, errors.Trace(err)
	}
	c := &Cluster{
		MasterAddr: fmt.Sprintf("127.0.0.1:%d", ports[0]),
		executors:  make(map[string]*serverHandle),
	}

	masterCfg := servermaster.GetDefaultMasterConfig()
	masterCfg.Addr = c.MasterAddr
	masterCfg.LogConf.Level = "warn"
	masterCfg.WorkerTTLStr = "2s"
	masterCfg.CheckIntervalStr = "200ms"
	masterCfg.JobStopTimeoutStr = "3s"
	masterCfg.MaxRestarts = cfg.MaxRestarts
	masterCfg.RestartBackoffBaseStr = "100ms"
	masterCfg.RestartBackoffMaxStr = "500ms"
	if err := masterCfg.Adjust(); err != nil {
		return nil, err
	}
	master, err := servermaster.NewServer(masterCfg)
	if err != nil {
		return nil, err
	}
	c.master = runServer(master.Run)

	for _, port := range ports[1:] {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		if err := c.startExecutor(addr, cfg.SlotNum); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Cluster) startExecutor(addr string, slotNum int) error {
	cfg := executor.GetDefaultExecutorConfig()
	cfg.Addr = addr
	cfg.Join = c.MasterAddr
	cfg.LogConf.Level = "warn"
	cfg.Slot.SlotNum = slotNum
	cfg.Slot.CPU = float64(slotNum)
	cfg.Slot.MemoryStr = "1GiB"
	cfg.HeartbeatIntervalStr = "200ms"
	cfg.HeartbeatRetryIntervalStr = "100ms"
	cfg.ReportIntervalStr = "100ms"
	if err := cfg.Adjust(); err != nil {
		return err
	}
	s, err := executor.NewServer(cfg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.executors[addr] = runServer(s.Run)
	c.mu.Unlock()
	return nil
}

// ExecutorAddrs returns the addresses of the running executors.
func (c *Cluster) ExecutorAddrs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	addrs := make([]string, 0, len(c.executors))
	for addr := range c.executors {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// KillExecutor stops the executor at addr without telling the master.
func (c *Cluster) KillExecutor(addr string) error {
	c.mu.Lock()
	h, ok := c.executors[addr]
	delete(c.executors, addr)
	c.mu.Unlock()
	if !ok {
		return errors.ErrWorkerNotFound.GenWithStackByArgs(addr)
	}
	log.Info("kill executor", zap.String("addr", addr))
	return h.stop()
}

// WaitExecutors waits until the master sees n live executors.
func (c *Cluster) WaitExecutors(ctx context.Context, n int) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		workers, err := c.ListWorkers(ctx)
		if err == nil && len(workers) == n {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
		}
	}
}

// ListWorkers lists the live executors through the open API of the master.
func (c *Cluster) ListWorkers(ctx context.Context) ([]model.WorkerProfile, error) {
	url := fmt.Sprintf("http://%s/api/v1/workers", c.MasterAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer resp.Body.Close()
	var workers []model.WorkerProfile
	if err := json.NewDecoder(resp.Body).Decode(&workers); err != nil {
		return nil, errors.Trace(err)
	}
	return workers, nil
}

// Close stops all executors, then the master.
func (c *Cluster) Close() error {
	c.mu.Lock()
	executors := c.executors
	c.executors = make(map[string]*serverHandle)
	c.mu.Unlock()

	var errs error
	for _, h := range executors {
		errs = multierr.Append(errs, h.stop())
	}
	return multierr.Append(errs, c.master.stop())
}
