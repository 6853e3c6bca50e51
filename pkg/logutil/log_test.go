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

package logutil

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/pingcap/log"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.log")
	oldLogger, oldProps := log.L(), log.GetProperties()
	defer log.ReplaceGlobals(oldLogger, oldProps)

	cfg := &Config{Level: "warn", File: testFile}
	require.NoError(t, InitLogger(cfg))

	NewLogger4Job(7).Warn("job test", zap.String("type", "job"))
	NewLogger4Task(7, 2).Warn("task test")
	NewLogger4Worker("127.0.0.1:5701").Warn("worker test")
	WithComponent("slot-service").Warn("component test")
	// below the configured level
	NewLogger4Job(7).Info("invisible")
	require.NoError(t, log.L().Sync())

	content, err := os.ReadFile(testFile)
	require.NoError(t, err)
	text := string(content)
	require.Regexp(t, regexp.QuoteMeta(`["job test"] [job_id=7] [type=job]`), text)
	require.Regexp(t, regexp.QuoteMeta(`["task test"] [job_id=7] [task_index=2]`), text)
	require.Regexp(t, regexp.QuoteMeta(`["worker test"] [worker=127.0.0.1:5701]`), text)
	require.Regexp(t, regexp.QuoteMeta(`["component test"] [component=slot-service]`), text)
	require.NotContains(t, text, "invisible")
}

func TestConfigAdjust(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Adjust()
	require.Equal(t, DefaultLogLevel, cfg.Level)

	cfg = &Config{Level: "debug"}
	cfg.Adjust()
	require.Equal(t, "debug", cfg.Level)
}
