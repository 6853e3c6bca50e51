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

// Package checkpoint stores the last committed position of every task, so
// that a failed over or restored job resumes where it stopped.
package checkpoint

import (
	"context"
	"strings"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// Storage types.
const (
	TypeMemory = "memory"
	TypeEtcd   = "etcd"
)

const (
	defaultKeyPrefix   = "/seatunnel"
	defaultDialTimeout = 5 * time.Second
)

// Storage persists task checkpoints. Implementations are thread safe.
type Storage interface {
	// Store records cp, replacing the previous checkpoint of the same task.
	Store(ctx context.Context, cp model.TaskCheckpoint) error
	// Load returns the checkpoints of jobID keyed by task index. A job
	// without checkpoint gives an empty map.
	Load(ctx context.Context, jobID model.JobID) (map[int]model.TaskCheckpoint, error)
	// Delete drops every checkpoint of jobID.
	Delete(ctx context.Context, jobID model.JobID) error
	// Close releases the resources of the storage.
	Close() error
}

// Config configures the checkpoint storage of the master.
type Config struct {
	Type string `toml:"type" json:"type"`
	// EtcdEndpoints is a comma separated list of etcd client urls.
	EtcdEndpoints string `toml:"etcd-endpoints" json:"etcd-endpoints"`
	KeyPrefix     string `toml:"key-prefix" json:"key-prefix"`
}

// Adjust validates the config and fills defaults.
func (c *Config) Adjust() error {
	if c.Type == "" {
		c.Type = TypeMemory
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	switch c.Type {
	case TypeMemory:
	case TypeEtcd:
		if len(c.Endpoints()) == 0 {
			return errors.ErrInvalidArgument.GenWithStackByArgs("etcd-endpoints is required by etcd checkpoint storage")
		}
	default:
		return errors.ErrInvalidArgument.GenWithStackByArgs("unknown checkpoint storage type " + c.Type)
	}
	return nil
}

// Endpoints splits EtcdEndpoints.
func (c *Config) Endpoints() []string {
	var ret []string
	for _, ep := range strings.Split(c.EtcdEndpoints, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			ret = append(ret, ep)
		}
	}
	return ret
}

// NewStorage creates the storage described by an adjusted config.
func NewStorage(cfg *Config) (Storage, error) {
	switch cfg.Type {
	case TypeEtcd:
		return NewEtcdStorageFromEndpoints(cfg.Endpoints(), cfg.KeyPrefix)
	default:
		return NewMemoryStorage(), nil
	}
}
