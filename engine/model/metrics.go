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

package model

import (
	"strconv"

	"github.com/goccy/go-json"
)

// Metric names of the raw job metrics document.
const (
	MetricSourceReceivedCount = "SourceReceivedCount"
	MetricSinkWriteCount      = "SinkWriteCount"
)

// MetricValue is one sample of a named metric.
type MetricValue struct {
	Value int64             `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// JobMetrics is the raw metrics document of a job: metric name to the
// samples reported by each task.
type JobMetrics map[string][]MetricValue

// NewJobMetrics builds the metrics document from the latest task reports.
func NewJobMetrics(reports []TaskReport) JobMetrics {
	m := make(JobMetrics, 2)
	for _, r := range reports {
		tags := map[string]string{"task-index": strconv.Itoa(r.TaskIndex)}
		m[MetricSourceReceivedCount] = append(m[MetricSourceReceivedCount],
			MetricValue{Value: r.SourceReceivedCount, Tags: tags})
		m[MetricSinkWriteCount] = append(m[MetricSinkWriteCount],
			MetricValue{Value: r.SinkWriteCount, Tags: tags})
	}
	return m
}

// Encode returns the JSON text of m.
func (m JobMetrics) Encode() (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// JobMetricsSummary aggregates the raw metrics of a job.
type JobMetricsSummary struct {
	SourceReadCount int64 `json:"source-read-count"`
	SinkWriteCount  int64 `json:"sink-write-count"`
}
