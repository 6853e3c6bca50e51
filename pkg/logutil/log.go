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
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	// DefaultLogLevel is the level used when the config leaves it empty.
	DefaultLogLevel = "info"

	constFieldComponentKey = "component"
	constFieldJobKey       = "job_id"
	constFieldTaskKey      = "task_index"
	constFieldWorkerKey    = "worker"
)

// Config serializes log related config in toml/json.
type Config struct {
	// Log level.
	Level string `toml:"level" json:"level"`
	// Log filename, leave empty to disable file log.
	File string `toml:"file" json:"file"`
	// Log format, one of text and json.
	Format string `toml:"format" json:"format"`
}

// Adjust fills the zero values with defaults.
func (cfg *Config) Adjust() {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
}

// InitLogger initializes the global logger of pingcap/log.
func InitLogger(cfg *Config) error {
	cfg.Adjust()
	logger, props, err := log.InitLogger(&log.Config{
		Level:  cfg.Level,
		Format: cfg.Format,
		File: log.FileLogConfig{
			Filename: cfg.File,
		},
	})
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(logger, props)
	return nil
}

// WithComponent returns a logger that tags every entry with component name.
func WithComponent(component string) *zap.Logger {
	return log.L().With(zap.String(constFieldComponentKey, component))
}

// NewLogger4Worker creates a logger for the executor that runs at addr.
func NewLogger4Worker(addr string) *zap.Logger {
	return log.L().With(zap.String(constFieldWorkerKey, addr))
}

// NewLogger4Job creates a logger for the given job.
func NewLogger4Job(jobID int64) *zap.Logger {
	return log.L().With(zap.Int64(constFieldJobKey, jobID))
}

// NewLogger4Task creates a logger for one parallel task of a job.
func NewLogger4Task(jobID int64, taskIndex int) *zap.Logger {
	return log.L().With(
		zap.Int64(constFieldJobKey, jobID),
		zap.Int(constFieldTaskKey, taskIndex),
	)
}
