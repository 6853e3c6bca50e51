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

package fake

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/logutil"
	"go.uber.org/zap"
)

// OptionCollector names the in-memory collection a FakeSink commits into.
const OptionCollector = "collector"

const defaultCollector = "default"

// Stats counts what a collection has seen.
type Stats struct {
	Committed  int64
	Duplicates int64
	Aborted    int64
}

type collection struct {
	rows  map[string]connector.Row
	stats Stats
}

var store = struct {
	sync.Mutex
	collections map[string]*collection
}{collections: make(map[string]*collection)}

func getCollection(name string) *collection {
	c, ok := store.collections[name]
	if !ok {
		c = &collection{rows: make(map[string]connector.Row)}
		store.collections[name] = c
	}
	return c
}

// Collected returns the committed rows of a collection, ordered by key.
func Collected(name string) []connector.Row {
	store.Lock()
	defer store.Unlock()
	c := getCollection(name)
	keys := make([]string, 0, len(c.rows))
	for k := range c.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]connector.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, c.rows[k])
	}
	return rows
}

// CollectedStats returns the counters of a collection.
func CollectedStats(name string) Stats {
	store.Lock()
	defer store.Unlock()
	return getCollection(name).stats
}

// ResetCollection drops a collection.
func ResetCollection(name string) {
	store.Lock()
	defer store.Unlock()
	delete(store.collections, name)
}

func rowKey(row connector.Row) string {
	if len(row.Fields) == 0 {
		return ""
	}
	return fmt.Sprintf("%020v", row.Fields[0])
}

type commitBatch struct {
	rows []connector.Row
}

// Sink keeps written rows pending until committed into its collection.
// Commits are idempotent per row key, so rows replayed after a restore from
// an older checkpoint are counted as duplicates instead of being stored twice.
type Sink struct {
	collector string
	pending   []connector.Row
	closed    bool
}

// NewSink creates a Sink.
func NewSink(_ connector.SinkContext, options map[string]string) (connector.SinkWriter, error) {
	name := options[OptionCollector]
	if name == "" {
		name = defaultCollector
	}
	return &Sink{collector: name}, nil
}

// Write implements connector.SinkWriter.
func (s *Sink) Write(row connector.Row) error {
	if s.closed {
		return errors.New("write to a closed sink")
	}
	s.pending = append(s.pending, row.Clone())
	return nil
}

// PrepareCommit implements connector.SinkWriter.
func (s *Sink) PrepareCommit() (connector.CommitInfo, error) {
	batch := &commitBatch{rows: s.pending}
	s.pending = nil
	return batch, nil
}

// Commit implements connector.SinkWriter.
func (s *Sink) Commit(info connector.CommitInfo) error {
	batch, ok := info.(*commitBatch)
	if !ok {
		return errors.Errorf("unexpected commit info %T", info)
	}
	store.Lock()
	defer store.Unlock()
	c := getCollection(s.collector)
	for _, row := range batch.rows {
		key := rowKey(row)
		if _, exists := c.rows[key]; exists {
			c.stats.Duplicates++
			continue
		}
		c.rows[key] = row
		c.stats.Committed++
	}
	return nil
}

// Abort implements connector.SinkWriter.
func (s *Sink) Abort() error {
	store.Lock()
	getCollection(s.collector).stats.Aborted += int64(len(s.pending))
	store.Unlock()
	s.pending = nil
	return nil
}

// Close implements connector.SinkWriter.
func (s *Sink) Close() error {
	s.closed = true
	return nil
}

// Console logs every committed row.
type Console struct {
	logger  *zap.Logger
	pending []connector.Row
}

// NewConsole creates a Console sink.
func NewConsole(sctx connector.SinkContext, _ map[string]string) (connector.SinkWriter, error) {
	return &Console{
		logger: logutil.NewLogger4Task(sctx.JobID, sctx.TaskIndex).With(zap.String("sink", ConsoleName)),
	}, nil
}

// Write implements connector.SinkWriter.
func (c *Console) Write(row connector.Row) error {
	c.pending = append(c.pending, row)
	return nil
}

// PrepareCommit implements connector.SinkWriter.
func (c *Console) PrepareCommit() (connector.CommitInfo, error) {
	rows := c.pending
	c.pending = nil
	return rows, nil
}

// Commit implements connector.SinkWriter.
func (c *Console) Commit(info connector.CommitInfo) error {
	rows, _ := info.([]connector.Row)
	for _, row := range rows {
		c.logger.Info("output row", zap.Any("fields", row.Fields))
	}
	return nil
}

// Abort implements connector.SinkWriter.
func (c *Console) Abort() error {
	if len(c.pending) > 0 {
		log.Debug("drop uncommitted rows", zap.Int("rows", len(c.pending)))
	}
	c.pending = nil
	return nil
}

// Close implements connector.SinkWriter.
func (c *Console) Close() error {
	return nil
}
