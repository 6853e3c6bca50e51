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
	"testing"

	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

type nopSource struct{}

func (nopSource) Open(context.Context, SourceContext) error         { return nil }
func (nopSource) PollNext(context.Context, Collector) (bool, error) { return false, nil }
func (nopSource) Close() error                                      { return nil }

type identity struct{}

func (identity) Map(row Row) (Row, bool, error) { return row, true, nil }

func newNopSource(map[string]string) (SourceReader, error) {
	return nopSource{}, nil
}

func newBrokenSource(map[string]string) (SourceReader, error) {
	return nil, errors.New("bad option")
}

func newIdentity(map[string]string) (Transform, error) {
	return identity{}, nil
}

func newNopSink(SinkContext, map[string]string) (SinkWriter, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	require.True(t, r.RegisterSource("nop", newNopSource))
	require.False(t, r.RegisterSource("nop", newNopSource))
	require.True(t, r.RegisterSource("broken", newBrokenSource))
	require.True(t, r.RegisterTransform("identity", newIdentity))
	require.True(t, r.RegisterSink("nop", newNopSink))
	require.Panics(t, func() {
		r.MustRegisterSink("nop", newNopSink)
	})

	require.True(t, r.Has(KindSource, "nop"))
	require.True(t, r.Has(KindSink, "nop"))
	require.False(t, r.Has(KindTransform, "nop"))
	require.Equal(t, []string{"broken", "nop"}, r.Names(KindSource))

	src, err := r.NewSource("nop", nil)
	require.NoError(t, err)
	require.NotNil(t, src)

	_, err = r.NewSource("broken", nil)
	require.ErrorContains(t, err, "bad option")

	_, err = r.NewSource("missing", nil)
	require.True(t, errors.Is(err, errors.ErrPluginNotFound))
	_, err = r.NewTransform("missing", nil)
	require.True(t, errors.Is(err, errors.ErrPluginNotFound))
	_, err = r.NewSink("missing", SinkContext{}, nil)
	require.True(t, errors.Is(err, errors.ErrPluginNotFound))
	require.Regexp(t, "sink plugin missing is not registered", err.Error())

	tr, err := r.NewTransform("identity", nil)
	require.NoError(t, err)
	out, keep, err := tr.Map(NewRow(1, "a"))
	require.NoError(t, err)
	require.True(t, keep)
	require.Equal(t, []any{1, "a"}, out.Fields)
}

func TestRowClone(t *testing.T) {
	t.Parallel()

	row := NewRow(1, "a")
	cloned := row.Clone()
	cloned.Fields[0] = 2
	require.Equal(t, 1, row.Fields[0])
}
