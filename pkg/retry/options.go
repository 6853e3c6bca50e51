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
	"math"
	"time"
)

const (
	// defaultBackoffBaseInMs is the initial duration, in Millisecond
	defaultBackoffBaseInMs = 10.0
	// defaultBackoffCapInMs is the max amount of duration, in Millisecond
	defaultBackoffCapInMs = 100.0
	defaultMaxTries       = 3
)

// Option ...
type Option func(*retryOptions)

// IsRetryableErr checks the error is safe to retry or not, eg. "context.Canceled" better not retry
type IsRetryableErr func(error) bool

// retryOptions ...
type retryOptions struct {
	maxTries    float64
	backoffBase float64
	backoffCap  float64
	fixedDelay  bool
	isRetryable IsRetryableErr
}

func newRetryOptions() *retryOptions {
	return &retryOptions{
		maxTries:    defaultMaxTries,
		backoffBase: defaultBackoffBaseInMs,
		backoffCap:  defaultBackoffCapInMs,
		isRetryable: func(err error) bool { return true },
	}
}

func setOptions(opts ...Option) *retryOptions {
	retryOption := newRetryOptions()
	for _, opt := range opts {
		opt(retryOption)
	}
	return retryOption
}

// WithBackoffBaseDelay configures the initial delay
func WithBackoffBaseDelay(delayInMs int64) Option {
	return func(o *retryOptions) {
		if delayInMs > 0 {
			o.backoffBase = float64(delayInMs)
		}
	}
}

// WithBackoffMaxDelay configures the maximum delay
func WithBackoffMaxDelay(delayInMs int64) Option {
	return func(o *retryOptions) {
		if delayInMs > 0 {
			o.backoffCap = float64(delayInMs)
		}
	}
}

// WithFixedDelay makes every retry wait exactly delayInMs, without jitter.
func WithFixedDelay(delayInMs int64) Option {
	return func(o *retryOptions) {
		if delayInMs > 0 {
			o.backoffBase = float64(delayInMs)
			o.backoffCap = float64(delayInMs)
			o.fixedDelay = true
		}
	}
}

// WithMaxTries configures maximum tries
func WithMaxTries(tries int64) Option {
	return func(o *retryOptions) {
		if tries > 0 {
			o.maxTries = float64(tries)
		}
	}
}

// WithInfiniteTries configures to retry forever till success
func WithInfiniteTries() Option {
	return func(o *retryOptions) {
		o.maxTries = math.Inf(1)
	}
}

// WithIsRetryableErr configures the error handler, if not set, retry by default
func WithIsRetryableErr(f func(error) bool) Option {
	return func(o *retryOptions) {
		if f != nil {
			o.isRetryable = f
		}
	}
}

// Policy is a retry policy value: at most MaxAttempts calls of the operation,
// separated by a fixed Delay.
type Policy struct {
	MaxAttempts int           `toml:"max-attempts" json:"max-attempts"`
	Delay       time.Duration `toml:"-" json:"delay"`
}

// Options converts the policy to options accepted by Do.
func (p Policy) Options() []Option {
	return []Option{
		WithMaxTries(int64(p.MaxAttempts)),
		WithFixedDelay(p.Delay.Milliseconds()),
	}
}
