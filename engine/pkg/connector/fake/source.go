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
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// Plugin names.
const (
	SourceName  = "FakeSource"
	SinkName    = "FakeSink"
	ConsoleName = "Console"
	ReplaceName = "Replace"
)

// FakeSource options.
const (
	OptionRowNum      = "row_num"
	OptionRowsPerPoll = "rows_per_poll"
	OptionSleepMs     = "sleep_ms"
)

const (
	defaultRowNum      = 16
	defaultRowsPerPoll = 1
)

func init() {
	r := connector.GlobalRegistry()
	r.MustRegisterSource(SourceName, NewSource)
	r.MustRegisterSink(SinkName, NewSink)
	r.MustRegisterSink(ConsoleName, NewConsole)
	r.MustRegisterTransform(ReplaceName, NewReplace)
}

// Source generates row_num rows `(id int64, "name_<id>")`, split in
// contiguous ranges across the parallel tasks.
type Source struct {
	rowNum      int64
	rowsPerPoll int64
	sleep       time.Duration

	next int64
	end  int64
}

// NewSource creates a Source from its options.
func NewSource(options map[string]string) (connector.SourceReader, error) {
	rowNum, err := intOption(options, OptionRowNum, defaultRowNum)
	if err != nil {
		return nil, err
	}
	rowsPerPoll, err := intOption(options, OptionRowsPerPoll, defaultRowsPerPoll)
	if err != nil {
		return nil, err
	}
	sleepMs, err := intOption(options, OptionSleepMs, 0)
	if err != nil {
		return nil, err
	}
	if rowsPerPoll <= 0 {
		rowsPerPoll = defaultRowsPerPoll
	}
	return &Source{
		rowNum:      rowNum,
		rowsPerPoll: rowsPerPoll,
		sleep:       time.Duration(sleepMs) * time.Millisecond,
	}, nil
}

// Open implements connector.SourceReader.
func (s *Source) Open(_ context.Context, sctx connector.SourceContext) error {
	start, end := SplitRange(s.rowNum, sctx.TaskIndex, sctx.Parallelism)
	s.next = start + sctx.StartOffset
	if s.next > end {
		s.next = end
	}
	s.end = end
	return nil
}

// PollNext implements connector.SourceReader.
func (s *Source) PollNext(ctx context.Context, collector connector.Collector) (bool, error) {
	if s.sleep > 0 {
		select {
		case <-ctx.Done():
			return false, errors.Trace(ctx.Err())
		case <-time.After(s.sleep):
		}
	}
	for i := int64(0); i < s.rowsPerPoll && s.next < s.end; i++ {
		collector.Collect(connector.NewRow(s.next, fmt.Sprintf("name_%d", s.next)))
		s.next++
	}
	return s.next < s.end, nil
}

// Close implements connector.SourceReader.
func (s *Source) Close() error {
	return nil
}

// SplitRange returns the half open row range owned by taskIndex. The first
// rowNum%parallelism tasks get one extra row.
func SplitRange(rowNum int64, taskIndex, parallelism int) (start, end int64) {
	if parallelism <= 0 {
		parallelism = 1
	}
	p := int64(parallelism)
	idx := int64(taskIndex)
	per, rem := rowNum/p, rowNum%p
	start = idx*per + min(idx, rem)
	end = start + per
	if idx < rem {
		end++
	}
	return start, end
}

func intOption(options map[string]string, key string, def int64) (int64, error) {
	v, ok := options[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.ErrInvalidArgument.GenWithStackByArgs(fmt.Sprintf("%s=%q", key, v))
	}
	return n, nil
}
