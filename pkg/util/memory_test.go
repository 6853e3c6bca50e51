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

package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetMemoryLimit(t *testing.T) {
	t.Parallel()

	limit, err := GetMemoryLimit()
	require.NoError(t, err)
	require.Greater(t, limit, uint64(0))
	require.Less(t, limit, memoryMax)
}

func TestGetCPUCores(t *testing.T) {
	t.Parallel()

	n, err := GetCPUCores()
	require.NoError(t, err)
	require.Greater(t, n, 0)
}
