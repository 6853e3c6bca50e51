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

// Package clock wraps benbjohnson/clock with a monotonic reading, so that
// heartbeat expiry and ticker driven loops can be tested with a mock clock.
package clock

import (
	"time"

	bclock "github.com/benbjohnson/clock"
	"github.com/gavv/monotime"
)

type (
	// Timer alias bclock.Timer
	Timer = bclock.Timer
	// Ticker alias bclock.Ticker
	Ticker = bclock.Ticker
	// MonotonicTime is a reading of a monotonic clock, comparable only with
	// readings of the same Clock.
	MonotonicTime time.Duration
)

var unixEpoch = time.Unix(0, 0)

// Clock is the time source used by the slot service and the master.
type Clock interface {
	bclock.Clock
	// Mono returns a monotonic reading that is not affected by wall clock
	// adjustment.
	Mono() MonotonicTime
}

type realClock struct {
	bclock.Clock
}

func (realClock) Mono() MonotonicTime {
	return MonotonicTime(monotime.Now())
}

// Mock is a manually advanced clock for tests. Its monotonic reading follows
// the mocked wall time.
type Mock struct {
	*bclock.Mock
}

// Mono implements Clock.
func (m *Mock) Mono() MonotonicTime {
	return ToMono(m.Now())
}

// New returns a Clock backed by the system time.
func New() Clock {
	return realClock{bclock.New()}
}

// NewMock returns a mock Clock starting at the unix epoch.
func NewMock() *Mock {
	return &Mock{bclock.NewMock()}
}

// Sub returns m - other.
func (m MonotonicTime) Sub(other MonotonicTime) time.Duration {
	return time.Duration(m - other)
}

// Add returns m + d.
func (m MonotonicTime) Add(d time.Duration) MonotonicTime {
	return m + MonotonicTime(d)
}

// MonoNow returns the current reading of the system monotonic clock.
func MonoNow() MonotonicTime {
	return MonotonicTime(monotime.Now())
}

// ToMono converts a wall time to a reading comparable with Mock.Mono.
func ToMono(t time.Time) MonotonicTime {
	return MonotonicTime(t.Sub(unixEpoch))
}
