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

package checkpoint

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// EtcdStorage keeps checkpoints in etcd as JSON values under
// <prefix>/checkpoint/<job-id>/<task-index>.
type EtcdStorage struct {
	cli       *clientv3.Client
	prefix    string
	ownClient bool
}

// NewEtcdStorage creates an EtcdStorage on an existing client. The client is
// not closed by Close.
func NewEtcdStorage(cli *clientv3.Client, prefix string) *EtcdStorage {
	return &EtcdStorage{cli: cli, prefix: prefix}
}

// NewEtcdStorageFromEndpoints connects to etcd and creates an EtcdStorage
// owning the connection.
func NewEtcdStorageFromEndpoints(endpoints []string, prefix string) (*EtcdStorage, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: defaultDialTimeout,
		Logger:      log.L().With(zap.String("component", "checkpoint-etcd")),
	})
	if err != nil {
		return nil, errors.WrapError(errors.ErrCheckpointStorage, err)
	}
	s := NewEtcdStorage(cli, prefix)
	s.ownClient = true
	return s, nil
}

func (s *EtcdStorage) jobPrefix(jobID model.JobID) string {
	return fmt.Sprintf("%s/checkpoint/%d/", s.prefix, jobID)
}

func (s *EtcdStorage) taskKey(jobID model.JobID, taskIndex int) string {
	return fmt.Sprintf("%s%d", s.jobPrefix(jobID), taskIndex)
}

// Store implements Storage.
func (s *EtcdStorage) Store(ctx context.Context, cp model.TaskCheckpoint) error {
	value, err := json.Marshal(cp)
	if err != nil {
		return errors.WrapError(errors.ErrCheckpointStorage, err)
	}
	if _, err := s.cli.Put(ctx, s.taskKey(cp.JobID, cp.TaskIndex), string(value)); err != nil {
		return errors.WrapError(errors.ErrCheckpointStorage, err)
	}
	return nil
}

// Load implements Storage.
func (s *EtcdStorage) Load(ctx context.Context, jobID model.JobID) (map[int]model.TaskCheckpoint, error) {
	resp, err := s.cli.Get(ctx, s.jobPrefix(jobID), clientv3.WithPrefix())
	if err != nil {
		return nil, errors.WrapError(errors.ErrCheckpointStorage, err)
	}
	ret := make(map[int]model.TaskCheckpoint, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var cp model.TaskCheckpoint
		if err := json.Unmarshal(kv.Value, &cp); err != nil {
			return nil, errors.WrapError(errors.ErrCheckpointStorage, err)
		}
		ret[cp.TaskIndex] = cp
	}
	return ret, nil
}

// Delete implements Storage.
func (s *EtcdStorage) Delete(ctx context.Context, jobID model.JobID) error {
	if _, err := s.cli.Delete(ctx, s.jobPrefix(jobID), clientv3.WithPrefix()); err != nil {
		return errors.WrapError(errors.ErrCheckpointStorage, err)
	}
	return nil
}

// Close implements Storage.
func (s *EtcdStorage) Close() error {
	if !s.ownClient {
		return nil
	}
	return errors.Trace(s.cli.Close())
}
