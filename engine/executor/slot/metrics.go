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

package slot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/promutil"
)

var (
	slotNumGauge = promutil.NewFactory4Framework().NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: "executor",
			Name:      "slot_num",
			Help:      "number of slots of the worker",
		}, []string{"worker", "state"})
	slotMemoryGauge = promutil.NewFactory4Framework().NewGaugeVec(
		prometheus.GaugeOpts{
			Subsystem: "executor",
			Name:      "slot_memory_bytes",
			Help:      "heap memory of the worker by allocation state",
		}, []string{"worker", "state"})
	slotRequestCounter = promutil.NewFactory4Framework().NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "executor",
			Name:      "slot_request_total",
			Help:      "slot requests by result",
		}, []string{"worker", "result"})
	heartbeatFailureCounter = promutil.NewFactory4Framework().NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "executor",
			Name:      "heartbeat_failure_total",
			Help:      "heartbeats that failed after all attempts",
		}, []string{"worker"})
)

type serviceMetrics struct {
	assignedNum      prometheus.Gauge
	unassignedNum    prometheus.Gauge
	assignedMemory   prometheus.Gauge
	unassignedMemory prometheus.Gauge
	requestGranted   prometheus.Counter
	requestDenied    prometheus.Counter
	heartbeatFailure prometheus.Counter
}

func newServiceMetrics(worker string) *serviceMetrics {
	return &serviceMetrics{
		assignedNum:      slotNumGauge.WithLabelValues(worker, "assigned"),
		unassignedNum:    slotNumGauge.WithLabelValues(worker, "unassigned"),
		assignedMemory:   slotMemoryGauge.WithLabelValues(worker, "assigned"),
		unassignedMemory: slotMemoryGauge.WithLabelValues(worker, "unassigned"),
		requestGranted:   slotRequestCounter.WithLabelValues(worker, "granted"),
		requestDenied:    slotRequestCounter.WithLabelValues(worker, "denied"),
		heartbeatFailure: heartbeatFailureCounter.WithLabelValues(worker),
	}
}

func (m *serviceMetrics) update(assigned, unassigned int, assignedRes, unassignedRes model.ResourceProfile) {
	m.assignedNum.Set(float64(assigned))
	m.unassignedNum.Set(float64(unassigned))
	m.assignedMemory.Set(float64(assignedRes.HeapMemory))
	m.unassignedMemory.Set(float64(unassignedRes.HeapMemory))
}
