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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "executor.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
name = "executor-1"
join = "10.0.0.1:5801"
heartbeat-interval = "5s"

[slot]
slot-num = 8
memory = "2GiB"
cpu = 4.0
`), 0o644))

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)

	require.Nil(t, cmd.ParseFlags([]string{
		"--config", path,
		"--addr", "127.0.0.1:25802",
		"--slot-num", "3",
	}))
	require.Nil(t, o.complete(cmd))
	cfg := o.executorConfig
	require.Equal(t, "executor-1", cfg.Name)
	require.Equal(t, "10.0.0.1:5801", cfg.Join)
	require.Equal(t, "127.0.0.1:25802", cfg.Addr)
	require.Equal(t, "127.0.0.1:25802", cfg.AdvertiseAddr)
	require.Equal(t, 3, cfg.Slot.SlotNum)
	require.Equal(t, 4.0, cfg.Slot.CPU)
	require.Equal(t, int64(2<<30), int64(cfg.Slot.Memory))
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestCapacityFlags(t *testing.T) {
	t.Parallel()

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--cpu", "1.5", "--memory", "512MiB"}))
	require.Nil(t, o.complete(cmd))
	require.Equal(t, 1.5, o.executorConfig.Slot.CPU)
	require.Equal(t, int64(512<<20), int64(o.executorConfig.Slot.Memory))

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--memory", "a lot"}))
	err := o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)
}

func TestInvalidFlags(t *testing.T) {
	t.Parallel()

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--slot-num", "0"}))
	err := o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)

	// a dynamic executor does not need a slot number
	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--slot-num", "0", "--dynamic-slot"}))
	require.Nil(t, o.complete(cmd))
	require.True(t, o.executorConfig.Slot.DynamicSlot)
}
