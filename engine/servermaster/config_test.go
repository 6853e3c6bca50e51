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

package servermaster

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDefaultMasterConfig(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultMasterConfig()
	require.NoError(t, cfg.Adjust())
	require.Equal(t, defaultAddr, cfg.AdvertiseAddr)
	require.Equal(t, 10*time.Second, cfg.WorkerTTL)
	require.Equal(t, time.Second, cfg.CheckInterval)
	require.Equal(t, 3*time.Second, cfg.RPCTimeout)
	require.Equal(t, checkpoint.TypeMemory, cfg.CheckpointStorage.Type)

	jmCfg := cfg.jobMasterConfig()
	require.Equal(t, 10*time.Second, jmCfg.StopTimeout)
	require.Equal(t, time.Second, jmCfg.Restart.InitialInterval)
	require.Equal(t, 30*time.Second, jmCfg.Restart.MaxInterval)
	require.Equal(t, defaultMaxRestarts, jmCfg.Restart.MaxTryTime)
	require.Equal(t, defaultSlotRetryBase, jmCfg.SlotRetryBase)

	// the encoded config decodes back without unknown items
	text, err := cfg.Toml()
	require.NoError(t, err)
	decoded := &Config{}
	require.NoError(t, decoded.configFromString(text))
	require.Equal(t, cfg.Addr, decoded.Addr)
	require.Contains(t, cfg.String(), `"worker-ttl":"10s"`)
}

func TestMasterConfigFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "master.toml")
	content := `
addr = "0.0.0.0:15801"
advertise-addr = "10.0.0.1:15801"
worker-ttl = "6s"
check-interval = "500ms"
max-restarts = 5

[log]
level = "debug"

[checkpoint-storage]
type = "etcd"
etcd-endpoints = "http://10.0.0.1:2379,http://10.0.0.2:2379"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := GetDefaultMasterConfig()
	require.NoError(t, cfg.ConfigFromFile(path))
	require.NoError(t, cfg.Adjust())
	require.Equal(t, "0.0.0.0:15801", cfg.Addr)
	require.Equal(t, "10.0.0.1:15801", cfg.AdvertiseAddr)
	require.Equal(t, 6*time.Second, cfg.WorkerTTL)
	require.Equal(t, 500*time.Millisecond, cfg.CheckInterval)
	require.Equal(t, "debug", cfg.LogConf.Level)
	require.Equal(t, 5, cfg.jobMasterConfig().Restart.MaxTryTime)
	require.Equal(t, checkpoint.TypeEtcd, cfg.CheckpointStorage.Type)
	require.Equal(t, []string{"http://10.0.0.1:2379", "http://10.0.0.2:2379"},
		cfg.CheckpointStorage.Endpoints())
}

func TestMasterConfigUnknownItem(t *testing.T) {
	t.Parallel()

	cfg := GetDefaultMasterConfig()
	err := cfg.configFromString(`unknown-key = 1`)
	require.True(t, errors.Is(err, errors.ErrConfigUnknownItem), err)

	err = cfg.configFromString(`addr = `)
	require.True(t, errors.Is(err, errors.ErrDecodeConfigFile), err)
}

func TestMasterConfigAdjustErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		modify func(cfg *Config)
	}{
		{"bad duration", func(cfg *Config) { cfg.WorkerTTLStr = "ten seconds" }},
		{"negative duration", func(cfg *Config) { cfg.RPCTimeoutStr = "-1s" }},
		{"check interval above ttl", func(cfg *Config) { cfg.CheckIntervalStr = "1m" }},
		{"backoff max below base", func(cfg *Config) { cfg.RestartBackoffMaxStr = "100ms" }},
		{"negative restarts", func(cfg *Config) { cfg.MaxRestarts = -1 }},
		{"etcd without endpoints", func(cfg *Config) { cfg.CheckpointStorage.Type = checkpoint.TypeEtcd }},
	}
	for _, tc := range cases {
		cfg := GetDefaultMasterConfig()
		tc.modify(cfg)
		err := cfg.Adjust()
		require.True(t, errors.Is(err, errors.ErrInvalidArgument), "%s: %v", tc.name, err)
	}
}
