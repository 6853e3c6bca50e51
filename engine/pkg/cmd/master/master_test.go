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

package master

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/quanzhian/incubator-seatunnel/engine/servermaster/checkpoint"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "master.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
addr = "127.0.0.1:15801"
max-restarts = 5

[log]
level = "debug"

[checkpoint-storage]
type = "etcd"
etcd-endpoints = "http://127.0.0.1:2379"
`)
	cmd := new(cobra.Command)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	o := newOptions()
	o.addFlags(cmd)

	require.Nil(t, cmd.ParseFlags([]string{
		"--config", path,
		"--addr", "127.0.0.1:25801",
		"--max-restarts", "1",
	}))
	require.Nil(t, o.complete(cmd))
	require.Equal(t, "127.0.0.1:25801", o.masterConfig.Addr)
	require.Equal(t, "127.0.0.1:25801", o.masterConfig.AdvertiseAddr)
	require.Equal(t, 1, o.masterConfig.MaxRestarts)
	require.Equal(t, "debug", o.masterConfig.LogConf.Level)
	require.Equal(t, checkpoint.TypeEtcd, o.masterConfig.CheckpointStorage.Type)
	require.Empty(t, out.String())
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	t.Parallel()

	cmd := new(cobra.Command)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	o := newOptions()
	o.addFlags(cmd)

	require.Nil(t, cmd.ParseFlags([]string{"--log-level", "warn", "--http-addr", "127.0.0.1:8300"}))
	require.Nil(t, o.complete(cmd))
	require.Contains(t, out.String(), "[WARN] checkpoints are kept in master memory")
	require.Equal(t, "warn", o.masterConfig.LogConf.Level)
	require.Equal(t, "127.0.0.1:8300", o.masterConfig.HTTPAddr)
	require.Equal(t, o.masterConfig.Addr, o.masterConfig.AdvertiseAddr)
	require.Equal(t, checkpoint.TypeMemory, o.masterConfig.CheckpointStorage.Type)
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	cmd := new(cobra.Command)
	o := newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--config", writeConfig(t, `unknown = "x"`)}))
	err := o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrConfigUnknownItem), err)

	cmd = new(cobra.Command)
	o = newOptions()
	o.addFlags(cmd)
	require.Nil(t, cmd.ParseFlags([]string{"--checkpoint-storage", "etcd"}))
	err = o.complete(cmd)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)
}
