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

package connector

import (
	"context"

	"github.com/quanzhian/incubator-seatunnel/engine/model"
)

// Row is one record flowing through a pipeline.
type Row struct {
	Fields []any
}

// NewRow creates a Row from fields.
func NewRow(fields ...any) Row {
	return Row{Fields: fields}
}

// Clone returns a copy of the row that does not share the field slice.
func (r Row) Clone() Row {
	fields := make([]any, len(r.Fields))
	copy(fields, r.Fields)
	return Row{Fields: fields}
}

// SourceContext tells a reader which part of the input it owns and where to
// start.
type SourceContext struct {
	JobID       model.JobID
	TaskIndex   int
	Parallelism int
	// StartOffset is the number of rows of this task already committed.
	StartOffset int64
}

// Collector receives the rows emitted by a source reader.
type Collector interface {
	Collect(row Row)
}

// SourceReader reads the split of one parallel task.
type SourceReader interface {
	Open(ctx context.Context, sctx SourceContext) error
	// PollNext emits zero or more rows into collector. It returns false once
	// the reader is exhausted.
	PollNext(ctx context.Context, collector Collector) (more bool, err error)
	Close() error
}

// Transform maps one row. A false keep drops the row.
type Transform interface {
	Map(row Row) (out Row, keep bool, err error)
}

// CommitInfo is the opaque result of SinkWriter.PrepareCommit.
type CommitInfo any

// SinkWriter writes the rows of one parallel task. Rows written after the
// last Commit are pending until the next PrepareCommit and Commit, and are
// dropped by Abort.
type SinkWriter interface {
	Write(row Row) error
	PrepareCommit() (CommitInfo, error)
	Commit(info CommitInfo) error
	Abort() error
	Close() error
}

// SinkContext identifies the task owning a sink writer.
type SinkContext struct {
	JobID     model.JobID
	TaskIndex int
}

// Factories build a fresh plugin instance for every task.
type (
	SourceFactory    func(options map[string]string) (SourceReader, error)
	TransformFactory func(options map[string]string) (Transform, error)
	SinkFactory      func(sctx SinkContext, options map[string]string) (SinkWriter, error)
)
