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

package executor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

const defaultMetricInterval = 15 * time.Second

var executorTaskNumGauge = promutil.NewFactory4Framework().NewGaugeVec(
	prometheus.GaugeOpts{
		Subsystem: "executor",
		Name:      "task_num",
		Help:      "number of running tasks in the executor",
	}, []string{"worker"})

func (s *Server) collectMetricLoop(ctx context.Context, tickInterval time.Duration) error {
	gauge := executorTaskNumGauge.WithLabelValues(s.cfg.AdvertiseAddr)
	defer executorTaskNumGauge.DeleteLabelValues(s.cfg.AdvertiseAddr)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		gauge.Set(float64(s.taskService.TaskCount()))
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-ticker.C:
		}
	}
}
