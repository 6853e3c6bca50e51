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

package servermaster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
)

var (
	serverFactory        = promutil.NewFactory4Framework()
	serverWorkerNumGauge = serverFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: "server_master",
			Name:      "worker_num",
			Help:      "number of workers in this cluster",
		}, []string{"status"})
	serverJobNumGauge = serverFactory.NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: "server_master",
			Name:      "job_num",
			Help:      "number of jobs in this cluster",
		}, []string{"status"})
)

var reportedJobStatuses = []model.JobStatus{
	model.JobStatusCreated,
	model.JobStatusScheduled,
	model.JobStatusRunning,
	model.JobStatusFailing,
	model.JobStatusFailed,
	model.JobStatusDoingSavepoint,
	model.JobStatusSavepointDone,
	model.JobStatusCanceling,
	model.JobStatusCanceled,
	model.JobStatusFinished,
}

func collectMetrics(workers int, jobs JobStats) {
	serverWorkerNumGauge.WithLabelValues("alive").Set(float64(workers))
	for _, status := range reportedJobStatuses {
		serverJobNumGauge.WithLabelValues(status.String()).Set(float64(jobs.JobCount(status)))
	}
}
