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

package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phayes/freeport"
	"github.com/quanzhian/incubator-seatunnel/engine/servermaster"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

const testPipeline = `
[env]
job.name = "cli_test"
parallelism = 1

[[source]]
plugin_name = "FakeSource"
row_num = 10

[[sink]]
plugin_name = "Console"
`

func startMaster(t *testing.T) string {
	port, err := freeport.GetFreePort()
	require.NoError(t, err)
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	cfg := servermaster.GetDefaultMasterConfig()
	cfg.Addr = addr
	cfg.LogConf.Level = "warn"
	cfg.JobStopTimeoutStr = "1s"
	require.NoError(t, cfg.Adjust())
	s, err := servermaster.NewServer(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})
	return addr
}

func execute(args ...string) (string, error) {
	cmd := NewCmdCli()
	buf := bytes.NewBuffer(nil)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writePipeline(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "fake_to_console.conf")
	require.NoError(t, os.WriteFile(path, []byte(testPipeline), 0o644))
	return path
}

func TestCliJobLifecycle(t *testing.T) {
	addr := startMaster(t)
	path := writePipeline(t)

	require.Eventually(t, func() bool {
		out, err := execute("print-message", "--master-addr", addr, "hello", "master")
		return err == nil && strings.Contains(out, "hello master")
	}, 10*time.Second, 50*time.Millisecond)

	// no executor joined, so the job stays scheduled
	out, err := execute("job", "submit", "--master-addr", addr, "-c", path, "--async")
	require.NoError(t, err)
	var jobID int64
	_, err = fmt.Sscanf(out, "job %d submitted", &jobID)
	require.NoError(t, err, out)
	jobIDArg := fmt.Sprint(jobID)

	require.Eventually(t, func() bool {
		out, err := execute("job", "status", "--master-addr", addr, "--job-id", jobIDArg)
		return err == nil && strings.TrimSpace(out) == "SCHEDULED"
	}, 10*time.Second, 20*time.Millisecond)

	out, err = execute("job", "list", "--master-addr", addr)
	require.NoError(t, err)
	require.Contains(t, out, `"cli_test"`)

	out, err = execute("job", "info", "--master-addr", addr, "--job-id", jobIDArg)
	require.NoError(t, err)
	require.Contains(t, out, "FakeSource")
	require.Contains(t, out, "Console")

	out, err = execute("job", "cancel", "--master-addr", addr, "--job-id", jobIDArg)
	require.NoError(t, err)
	require.Contains(t, out, "cancel of job")
	require.Eventually(t, func() bool {
		out, err := execute("job", "status", "--master-addr", addr, "--job-id", jobIDArg)
		return err == nil && strings.TrimSpace(out) == "CANCELED"
	}, 10*time.Second, 20*time.Millisecond)

	out, err = execute("job", "metrics", "--master-addr", addr, "--job-id", jobIDArg)
	require.NoError(t, err)
	require.Contains(t, out, `"summary"`)

	_, err = execute("job", "detail", "--master-addr", addr, "--job-id", "1")
	require.True(t, errors.Is(err, errors.ErrJobNotFound), err)
}

func TestCliJobSubmitValidation(t *testing.T) {
	_, err := execute("job", "submit", "--master-addr", "127.0.0.1:1")
	require.Error(t, err)

	path := writePipeline(t)
	_, err = execute("job", "submit", "--master-addr", "127.0.0.1:1", "-c", path, "--parallelism=-1")
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)

	_, err = execute("job", "submit", "--master-addr", "", "-c", path)
	require.True(t, errors.Is(err, errors.ErrInvalidArgument), err)

	_, err = execute("job", "status")
	require.Error(t, err)
}
