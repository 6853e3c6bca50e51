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

package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	t.Parallel()

	require.Nil(t, WrapError(ErrCheckpointStorage, nil))

	cause := errors.New("etcd is down")
	err := WrapError(ErrCheckpointStorage, cause)
	require.Error(t, err)
	require.True(t, Is(err, ErrCheckpointStorage))
	require.False(t, Is(err, ErrJobNotFound))
}

func TestIsAndRFCCode(t *testing.T) {
	t.Parallel()

	err := ErrWrongTargetSlot.GenWithStackByArgs(3, "unknown slot")
	require.True(t, Is(err, ErrWrongTargetSlot))
	code, ok := RFCCode(err)
	require.True(t, ok)
	require.Equal(t, errors.RFCErrorCode("ST:ErrWrongTargetSlot"), code)

	traced := errors.Trace(err)
	require.True(t, Is(traced, ErrWrongTargetSlot))

	wrapped := WrapError(ErrMasterRPCFailed, err, "submit job")
	require.True(t, Is(wrapped, ErrMasterRPCFailed))

	_, ok = RFCCode(errors.New("plain"))
	require.False(t, ok)
	_, ok = RFCCode(nil)
	require.False(t, ok)
	require.False(t, Is(nil, ErrUnknown))
}

func TestContextErrors(t *testing.T) {
	t.Parallel()

	require.True(t, IsContextCanceledError(errors.Trace(context.Canceled)))
	require.False(t, IsContextCanceledError(context.DeadlineExceeded))
	require.True(t, IsContextDeadlineExceededError(errors.Trace(context.DeadlineExceeded)))
}

type slotError struct{ id int }

func (e *slotError) Error() string { return fmt.Sprintf("slot %d", e.id) }

func TestAs(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("release: %w", &slotError{id: 7})
	var target *slotError
	require.True(t, As(err, &target))
	require.Equal(t, 7, target.id)

	require.False(t, As(errors.New("plain"), &target))
}
