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

package executor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/quanzhian/incubator-seatunnel/engine/enginepb"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector/fake"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/rpcutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

// mockMaster records what executors push. Lifecycle calls are not served.
type mockMaster struct {
	enginepb.MasterServer

	mu         sync.Mutex
	heartbeats map[string]model.WorkerProfile
	reports    map[model.TaskID]model.TaskReport
}

func (m *mockMaster) WorkerHeartbeat(_ context.Context, req *enginepb.HeartbeatRequest) (*enginepb.HeartbeatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.heartbeats[req.Profile.Address] = req.Profile
	return &enginepb.HeartbeatResponse{TTLInMs: 10000}, nil
}

func (m *mockMaster) ReportTaskStatus(_ context.Context, req *enginepb.ReportTaskStatusRequest) (*enginepb.Empty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range req.Reports {
		m.reports[r.TaskID] = r
	}
	return &enginepb.Empty{}, nil
}

func (m *mockMaster) heartbeat(addr string) (model.WorkerProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.heartbeats[addr]
	return p, ok
}

func (m *mockMaster) report(id model.TaskID) (model.TaskReport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	return r, ok
}

func freeAddr(t *testing.T) string {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func startMockMaster(t *testing.T) (*mockMaster, string) {
	master := &mockMaster{
		heartbeats: make(map[string]model.WorkerProfile),
		reports:    make(map[model.TaskID]model.TaskReport),
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := rpcutil.NewServer()
	enginepb.RegisterMasterServer(srv, master)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)
	return master, lis.Addr().String()
}

func startExecutor(t *testing.T, masterAddr string) (*Server, string) {
	cfg := GetDefaultExecutorConfig()
	cfg.Addr = freeAddr(t)
	cfg.Join = masterAddr
	cfg.HeartbeatIntervalStr = "50ms"
	cfg.HeartbeatRetryIntervalStr = "10ms"
	cfg.ReportIntervalStr = "20ms"
	cfg.Slot = SlotConfig{SlotNum: 2, CPU: 2, MemoryStr: "1GiB"}
	require.NoError(t, cfg.Adjust())

	s, err := NewServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return s, cfg.Addr
}

func newWorkerClient(t *testing.T, addr string) enginepb.WorkerClient {
	conn, err := rpcutil.NewClientConn(addr)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return enginepb.NewWorkerClient(conn)
}

func TestExecutorServesSlotsAndTasks(t *testing.T) {
	const collector = "executor-server"
	defer fake.ResetCollection(collector)

	master, masterAddr := startMockMaster(t)
	_, addr := startExecutor(t, masterAddr)
	cli := newWorkerClient(t, addr)
	ctx := context.Background()

	// the executor registers itself through heartbeats
	require.Eventually(t, func() bool {
		p, ok := master.heartbeat(addr)
		return ok && len(p.UnassignedSlots) == 2
	}, 10*time.Second, 20*time.Millisecond)

	var resp *enginepb.RequestSlotResponse
	require.Eventually(t, func() bool {
		var err error
		resp, err = cli.RequestSlot(ctx, &enginepb.RequestSlotRequest{
			JobID:    1,
			Resource: model.ResourceProfile{HeapMemory: 256 << 20},
		})
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	require.NotNil(t, resp.Slot)
	require.Len(t, resp.Profile.AssignedSlots, 1)
	require.NoError(t, resp.Profile.Validate())

	task := model.TaskDeployment{
		TaskID:             model.NewTaskID(1, 0, 0),
		JobID:              1,
		Parallelism:        1,
		CheckpointInterval: 2,
		Pipeline: &model.Pipeline{
			Sources: []model.PluginConfig{{PluginName: fake.SourceName, Options: map[string]string{fake.OptionRowNum: "5"}}},
			Sinks: []model.PluginConfig{{
				PluginName: fake.SinkName,
				Options:    map[string]string{fake.OptionCollector: collector},
			}},
		},
	}

	// a slot owned by another job is refused
	wrongTask := task
	wrongTask.JobID = 2
	_, err := cli.DeployTask(ctx, &enginepb.DeployTaskRequest{Slot: *resp.Slot, Task: wrongTask})
	require.True(t, errors.Is(rpcutil.FromGRPCError(err), errors.ErrWrongTargetSlot))

	_, err = cli.DeployTask(ctx, &enginepb.DeployTaskRequest{Slot: *resp.Slot, Task: task})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r, ok := master.report(task.TaskID)
		return ok && r.Status == model.TaskStatusFinished
	}, 10*time.Second, 20*time.Millisecond)
	require.Len(t, fake.Collected(collector), 5)

	_, err = cli.ReleaseSlot(ctx, &enginepb.ReleaseSlotRequest{JobID: 1, Slot: *resp.Slot})
	require.NoError(t, err)
	_, err = cli.ReleaseSlot(ctx, &enginepb.ReleaseSlotRequest{JobID: 1, Slot: *resp.Slot})
	require.True(t, errors.Is(rpcutil.FromGRPCError(err), errors.ErrWrongTargetSlot))

	profile, err := cli.GetWorkerProfile(ctx, &enginepb.Empty{})
	require.NoError(t, err)
	require.Len(t, profile.Profile.UnassignedSlots, 2)
	require.Empty(t, profile.Profile.AssignedSlots)

	resp2, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp2.Body)
	require.NoError(t, err)
	require.NoError(t, resp2.Body.Close())
	require.Contains(t, string(body), "seatunnel_executor_slot_num")
}

func TestExecutorCancelAndReset(t *testing.T) {
	const collector = "executor-cancel"
	defer fake.ResetCollection(collector)

	master, masterAddr := startMockMaster(t)
	_, addr := startExecutor(t, masterAddr)
	cli := newWorkerClient(t, addr)
	ctx := context.Background()

	var resp *enginepb.RequestSlotResponse
	require.Eventually(t, func() bool {
		var err error
		resp, err = cli.RequestSlot(ctx, &enginepb.RequestSlotRequest{JobID: 3})
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	require.NotNil(t, resp.Slot)

	task := model.TaskDeployment{
		TaskID:             model.NewTaskID(3, 0, 0),
		JobID:              3,
		Parallelism:        1,
		CheckpointInterval: 5,
		Pipeline: &model.Pipeline{
			Sources: []model.PluginConfig{{
				PluginName: fake.SourceName,
				Options:    map[string]string{fake.OptionRowNum: "100000", fake.OptionSleepMs: "5"},
			}},
			Sinks: []model.PluginConfig{{
				PluginName: fake.SinkName,
				Options:    map[string]string{fake.OptionCollector: collector},
			}},
		},
	}
	_, err := cli.DeployTask(ctx, &enginepb.DeployTaskRequest{Slot: *resp.Slot, Task: task})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		r, ok := master.report(task.TaskID)
		return ok && r.SourceReceivedCount > 10
	}, 10*time.Second, 20*time.Millisecond)

	_, err = cli.CancelTasks(ctx, &enginepb.CancelTasksRequest{JobID: 3, Savepoint: true})
	require.NoError(t, err)
	var final model.TaskReport
	require.Eventually(t, func() bool {
		var ok bool
		final, ok = master.report(task.TaskID)
		return ok && final.Status == model.TaskStatusSavepointDone
	}, 10*time.Second, 20*time.Millisecond)
	require.NotNil(t, final.Checkpoint)
	require.Len(t, fake.Collected(collector), int(final.Checkpoint.Offset))

	// reset drops the assignment
	_, err = cli.ResetSlots(ctx, &enginepb.Empty{})
	require.NoError(t, err)
	profile, err := cli.GetWorkerProfile(ctx, &enginepb.Empty{})
	require.NoError(t, err)
	require.Empty(t, profile.Profile.AssignedSlots)
	require.NoError(t, profile.Profile.Validate())
	require.Eventually(t, func() bool {
		p, ok := master.heartbeat(addr)
		return ok && len(p.AssignedSlots) == 0
	}, 10*time.Second, 20*time.Millisecond)
}
