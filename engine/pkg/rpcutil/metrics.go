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
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
)

var (
	grpcServerMetrics = grpc_prometheus.NewServerMetrics(func(opts *prometheus.CounterOpts) {
		opts.Namespace = promutil.Namespace
		opts.Subsystem = "rpc_server"
	})

	grpcClientMetrics = grpc_prometheus.NewClientMetrics(func(opts *prometheus.CounterOpts) {
		opts.Namespace = promutil.Namespace
		opts.Subsystem = "rpc_client"
	})
)

func init() {
	promutil.MustRegisterFramework(grpcServerMetrics)
	promutil.MustRegisterFramework(grpcClientMetrics)
}
