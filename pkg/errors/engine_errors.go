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
	"github.com/pingcap/errors"
)

// all seatunnel engine errors
var (
	// general errors
	ErrUnknown = errors.Normalize(
		"unknown error",
		errors.RFCCodeText("ST:ErrUnknown"),
	)
	ErrInvalidArgument = errors.Normalize(
		"invalid argument: %s",
		errors.RFCCodeText("ST:ErrInvalidArgument"),
	)
	ErrDecodeConfigFile = errors.Normalize(
		"decode config file failed",
		errors.RFCCodeText("ST:ErrDecodeConfigFile"),
	)
	ErrConfigUnknownItem = errors.Normalize(
		"undecoded items in config file: %s",
		errors.RFCCodeText("ST:ErrConfigUnknownItem"),
	)
	ErrReachMaxTry = errors.Normalize(
		"reach maximum try: %s, error: %s",
		errors.RFCCodeText("ST:ErrReachMaxTry"),
	)

	// slot service related errors
	ErrSlotServiceNotInit = errors.Normalize(
		"slot service of worker %s is not initialized",
		errors.RFCCodeText("ST:ErrSlotServiceNotInit"),
	)
	ErrWrongTargetSlot = errors.Normalize(
		"wrong target slot %d: %s",
		errors.RFCCodeText("ST:ErrWrongTargetSlot"),
	)
	ErrSlotAlreadyAssigned = errors.Normalize(
		"slot %d is already assigned to job %d",
		errors.RFCCodeText("ST:ErrSlotAlreadyAssigned"),
	)
	ErrHeartbeat = errors.Normalize(
		"heartbeat to master failed",
		errors.RFCCodeText("ST:ErrHeartbeat"),
	)
	ErrInconsistentWorkerProfile = errors.Normalize(
		"inconsistent profile reported by worker %s: %s",
		errors.RFCCodeText("ST:ErrInconsistentWorkerProfile"),
	)
	ErrWorkerNotFound = errors.Normalize(
		"worker %s not found",
		errors.RFCCodeText("ST:ErrWorkerNotFound"),
	)
	ErrNoQualifiedWorker = errors.Normalize(
		"no worker can provide resource %s",
		errors.RFCCodeText("ST:ErrNoQualifiedWorker"),
	)

	// task runtime related errors
	ErrTaskAlreadyExists = errors.Normalize(
		"task %s already exists",
		errors.RFCCodeText("ST:ErrTaskAlreadyExists"),
	)
	ErrTaskNotFound = errors.Normalize(
		"task %s not found",
		errors.RFCCodeText("ST:ErrTaskNotFound"),
	)
	ErrRuntimeIncomingQueueFull = errors.Normalize(
		"runtime has too many pending CPU tasks",
		errors.RFCCodeText("ST:ErrRuntimeIncomingQueueFull"),
	)
	ErrRuntimeClosed = errors.Normalize(
		"runtime has been closed",
		errors.RFCCodeText("ST:ErrRuntimeClosed"),
	)

	// job related errors
	ErrJobNotFound = errors.Normalize(
		"job %d is not found",
		errors.RFCCodeText("ST:ErrJobNotFound"),
	)
	ErrJobAlreadyRunning = errors.Normalize(
		"job %d is already running",
		errors.RFCCodeText("ST:ErrJobAlreadyRunning"),
	)
	ErrJobNotRunning = errors.Normalize(
		"job %d is not running, current status %s",
		errors.RFCCodeText("ST:ErrJobNotRunning"),
	)
	ErrJobFailed = errors.Normalize(
		"job %d failed: %s",
		errors.RFCCodeText("ST:ErrJobFailed"),
	)

	// connector and pipeline errors
	ErrPluginNotFound = errors.Normalize(
		"%s plugin %s is not registered",
		errors.RFCCodeText("ST:ErrPluginNotFound"),
	)
	ErrPipelineInvalid = errors.Normalize(
		"pipeline is invalid: %s",
		errors.RFCCodeText("ST:ErrPipelineInvalid"),
	)

	// checkpoint storage errors
	ErrCheckpointStorage = errors.Normalize(
		"checkpoint storage operation failed",
		errors.RFCCodeText("ST:ErrCheckpointStorage"),
	)

	// rpc related errors
	ErrMasterRPCFailed = errors.Normalize(
		"rpc to master failed: %s",
		errors.RFCCodeText("ST:ErrMasterRPCFailed"),
	)
	ErrWorkerRPCFailed = errors.Normalize(
		"rpc to worker %s failed",
		errors.RFCCodeText("ST:ErrWorkerRPCFailed"),
	)
	ErrGrpcBuildConn = errors.Normalize(
		"dial grpc connection to %s failed",
		errors.RFCCodeText("ST:ErrGrpcBuildConn"),
	)
	ErrTCPServerStart = errors.Normalize(
		"failed to listen on %s",
		errors.RFCCodeText("ST:ErrTCPServerStart"),
	)
	ErrTCPServerClosed = errors.Normalize(
		"the TCP server has been closed",
		errors.RFCCodeText("ST:ErrTCPServerClosed"),
	)
)
