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
	stderrors "errors"

	"github.com/pingcap/errors"
)

// re-export of the commonly used helpers so callers only import one package.
var (
	New      = errors.New
	Errorf   = errors.Errorf
	Trace    = errors.Trace
	Annotate = errors.Annotate
	Cause    = errors.Cause
	As       = stderrors.As
)

// WrapError generates a new error based on given `*errors.Error`, wraps the err
// as cause error.
// If given `err` is nil, returns a nil error, which is different from the
// pingcap/errors, which still returns an error with nil cause.
func WrapError(rfcError *errors.Error, err error, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return rfcError.Wrap(err).GenWithStackByArgs(args...)
}

// Is checks whether err or any error in its cause chain is the normalized
// error rfcErr.
func Is(err error, rfcErr *errors.Error) bool {
	for i := 0; err != nil && i < maxCauseDepth; i++ {
		if e, ok := err.(*errors.Error); ok && e.RFCCode() == rfcErr.RFCCode() {
			return true
		}
		err = nextCause(err)
	}
	return false
}

// RFCCode returns the RFC error code of the outermost normalized error in the
// cause chain of err.
func RFCCode(err error) (errors.RFCErrorCode, bool) {
	for i := 0; err != nil && i < maxCauseDepth; i++ {
		if rfcErr, ok := err.(*errors.Error); ok {
			return rfcErr.RFCCode(), true
		}
		err = nextCause(err)
	}
	return "", false
}

const maxCauseDepth = 32

func nextCause(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() error }:
		return e.Unwrap()
	case interface{ Cause() error }:
		return e.Cause()
	default:
		return nil
	}
}

// IsContextCanceledError checks whether err is context.Canceled.
func IsContextCanceledError(err error) bool {
	return errors.Cause(err) == context.Canceled
}

// IsContextDeadlineExceededError checks whether err is context.DeadlineExceeded.
func IsContextDeadlineExceededError(err error) bool {
	return errors.Cause(err) == context.DeadlineExceeded
}
