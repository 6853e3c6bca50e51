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

package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pingcap/errors"
	cerror "github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestDoShouldRetryAtMostSpecifiedTimes(t *testing.T) {
	t.Parallel()

	var callCount int
	f := func() error {
		callCount++
		return errors.New("test")
	}

	err := Do(context.Background(), f, WithMaxTries(3), WithBackoffBaseDelay(1))
	require.Error(t, err)
	require.True(t, cerror.Is(err, cerror.ErrReachMaxTry))
	require.Equal(t, 3, callCount)
}

func TestDoShouldStopOnSuccess(t *testing.T) {
	t.Parallel()

	var callCount int
	f := func() error {
		callCount++
		if callCount == 2 {
			return nil
		}
		return errors.New("test")
	}

	err := Do(context.Background(), f, WithMaxTries(5), WithBackoffBaseDelay(1))
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
}

func TestDoShouldNotRetryUnretryableError(t *testing.T) {
	t.Parallel()

	var callCount int
	unretryable := errors.New("unretryable")
	f := func() error {
		callCount++
		return unretryable
	}

	err := Do(context.Background(), f, WithMaxTries(5), WithBackoffBaseDelay(1),
		WithIsRetryableErr(func(err error) bool { return err != unretryable }))
	require.Equal(t, unretryable, err)
	require.Equal(t, 1, callCount)
}

func TestDoCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var callCount int
	f := func() error {
		callCount++
		cancel()
		return errors.New("test")
	}

	err := Do(ctx, f, WithInfiniteTries(), WithFixedDelay(1000))
	require.ErrorIs(t, errors.Cause(err), context.Canceled)
	require.Equal(t, 1, callCount)

	err = Do(ctx, func() error { return nil })
	require.ErrorIs(t, errors.Cause(err), context.Canceled)
}

func TestPolicyFixedDelay(t *testing.T) {
	t.Parallel()

	policy := Policy{MaxAttempts: 4, Delay: 20 * time.Millisecond}
	var callCount int
	start := time.Now()
	err := Do(context.Background(), func() error {
		callCount++
		return errors.New("test")
	}, policy.Options()...)
	require.Error(t, err)
	require.Equal(t, 4, callCount)
	// three waits between four attempts
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestGetBackoffInMs(t *testing.T) {
	t.Parallel()

	for try := 1; try < 10; try++ {
		backoff := getBackoffInMs(10, 100, float64(try))
		require.GreaterOrEqual(t, backoff, 10*time.Millisecond)
		require.LessOrEqual(t, backoff, 100*time.Millisecond)
	}
}
