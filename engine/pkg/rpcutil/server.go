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
	"path"
	"time"

	grpcmw "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

const defaultLogInterval = 5 * time.Second

// NewServer creates a gRPC server with the engine interceptors. Handler
// panics are turned into errors. Requests are counted, and logged under a
// rate limit except the alwaysLog methods. Errors are converted by ToGRPCError.
func NewServer(alwaysLog ...string) *grpc.Server {
	return grpc.NewServer(grpc.UnaryInterceptor(grpcmw.ChainUnaryServer(
		grpcServerMetrics.UnaryServerInterceptor(),
		NewUnaryServerInterceptor(defaultLogInterval, alwaysLog...),
		grpcrecovery.UnaryServerInterceptor(grpcrecovery.WithRecoveryHandler(func(p interface{}) error {
			log.Error("rpc handler panicked", zap.Any("panic", p), zap.Stack("stack"))
			return errors.ErrUnknown.GenWithStack("rpc handler panicked: %v", p)
		})),
	)))
}

// rpcLimiter is a customized rate limiter, which delegates Allow of rate.Limiter,
// and provides an allow list with a higher priority.
type rpcLimiter struct {
	limiter   *rate.Limiter
	allowList []string
}

func newRPCLimiter(limiter *rate.Limiter, allowList []string) *rpcLimiter {
	return &rpcLimiter{
		limiter:   limiter,
		allowList: allowList,
	}
}

func (rl *rpcLimiter) Allow(methodName string) bool {
	for _, name := range rl.allowList {
		if name == methodName {
			return true
		}
	}
	return rl.limiter.Allow()
}

// NewUnaryServerInterceptor returns the interceptor shared by the master and
// workers. It logs requests under a rate limit, except for the methods in
// alwaysLog, and converts returned errors to gRPC status errors.
func NewUnaryServerInterceptor(logInterval time.Duration, alwaysLog ...string) grpc.UnaryServerInterceptor {
	limiter := newRPCLimiter(rate.NewLimiter(rate.Every(logInterval), 1), alwaysLog)
	return func(
		ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler,
	) (any, error) {
		method := path.Base(info.FullMethod)
		if limiter.Allow(method) {
			log.Info("", zap.Any("payload", req), zap.String("request", method))
		}
		resp, err := handler(ctx, req)
		if err != nil {
			log.Warn("rpc returned error", zap.String("request", method), zap.Error(err))
			return nil, ToGRPCError(err)
		}
		return resp, nil
	}
}
