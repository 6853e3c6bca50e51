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

package rpcutil

import (
	"context"
	"regexp"

	perrors "github.com/pingcap/errors"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// knownErrors are the normalized errors that keep their identity across RPC.
var knownErrors = map[perrors.RFCErrorCode]struct {
	prototype *perrors.Error
	code      codes.Code
}{}

func register(err *perrors.Error, code codes.Code) {
	knownErrors[err.RFCCode()] = struct {
		prototype *perrors.Error
		code      codes.Code
	}{prototype: err, code: code}
}

func init() {
	register(errors.ErrInvalidArgument, codes.InvalidArgument)
	register(errors.ErrPipelineInvalid, codes.InvalidArgument)
	register(errors.ErrPluginNotFound, codes.InvalidArgument)
	register(errors.ErrJobNotFound, codes.NotFound)
	register(errors.ErrWorkerNotFound, codes.NotFound)
	register(errors.ErrTaskNotFound, codes.NotFound)
	register(errors.ErrJobAlreadyRunning, codes.AlreadyExists)
	register(errors.ErrTaskAlreadyExists, codes.AlreadyExists)
	register(errors.ErrWrongTargetSlot, codes.FailedPrecondition)
	register(errors.ErrSlotAlreadyAssigned, codes.FailedPrecondition)
	register(errors.ErrJobNotRunning, codes.FailedPrecondition)
	register(errors.ErrInconsistentWorkerProfile, codes.FailedPrecondition)
	register(errors.ErrSlotServiceNotInit, codes.Unavailable)
	register(errors.ErrRuntimeClosed, codes.Unavailable)
	register(errors.ErrRuntimeIncomingQueueFull, codes.ResourceExhausted)
	register(errors.ErrNoQualifiedWorker, codes.ResourceExhausted)
	register(errors.ErrCheckpointStorage, codes.Internal)
}

// the message of a normalized error contains "[code]", possibly after an
// annotation prefix
var rfcCodePattern = regexp.MustCompile(`\[([A-Za-z]+:[A-Za-z0-9_]+)\]`)

// ToGRPCError converts an error to a gRPC status error, keeping the RFC code
// of normalized errors in the message so FromGRPCError can restore it.
func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.IsContextCanceledError(err) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.IsContextDeadlineExceededError(err) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	code := codes.Unknown
	if rfcCode, ok := errors.RFCCode(err); ok {
		if known, ok := knownErrors[rfcCode]; ok {
			code = known.code
		}
	}
	// only the message crosses the wire, the stack stays on the server
	return status.Error(code, err.Error())
}

// FromGRPCError restores the normalized error carried by a gRPC status error.
// Other errors are returned as is.
func FromGRPCError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	loc := rfcCodePattern.FindStringSubmatchIndex(msg)
	if loc == nil {
		return err
	}
	known, ok := knownErrors[perrors.RFCErrorCode(msg[loc[2]:loc[3]])]
	if !ok {
		return err
	}
	return known.prototype.GenWithStack("%s", msg[loc[1]:])
}

// IsTransportError returns true if err means the RPC channel failed, rather
// than the server handled the request and returned an error.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if perrors.Cause(err) == context.Canceled || perrors.Cause(err) == context.DeadlineExceeded {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded || st.Code() == codes.Canceled
}
