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

package promutil

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	systemOwner    = "seatunnel-system"
	frameworkOwner = "seatunnel-framework"

	// Namespace is the prometheus namespace of all engine metrics.
	Namespace = "seatunnel"

	constLabelJobKey = "job_id"
)

// HTTPHandlerForMetric returns the http handler exposing all engine metrics.
func HTTPHandlerForMetric() http.Handler {
	return HTTPHandlerForMetricImpl(globalMetricRegistry)
}

// HTTPHandlerForMetricImpl returns the http handler for a given gatherer.
func HTTPHandlerForMetricImpl(gather prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gather, promhttp.HandlerOpts{})
}

// NewFactory4Framework creates a factory for process wide metrics of the
// master and executors.
func NewFactory4Framework() Factory {
	return NewFactory4FrameworkImpl(globalMetricRegistry)
}

// MustRegisterFramework registers a collector built outside of a Factory,
// such as gRPC interceptor metrics, as a framework metric.
func MustRegisterFramework(c prometheus.Collector) {
	globalMetricRegistry.MustRegister(frameworkOwner, c)
}

// NewFactory4FrameworkImpl is NewFactory4Framework on a given registry.
func NewFactory4FrameworkImpl(reg *Registry) Factory {
	return &wrappingFactory{r: reg, owner: frameworkOwner}
}

// NewFactory4Job creates a factory whose metrics carry the job id label and
// are dropped by UnregisterJobMetrics.
func NewFactory4Job(jobID int64) Factory {
	return NewFactory4JobImpl(globalMetricRegistry, jobID)
}

// NewFactory4JobImpl is NewFactory4Job on a given registry.
func NewFactory4JobImpl(reg *Registry, jobID int64) Factory {
	return &wrappingFactory{
		r:     reg,
		owner: jobOwner(jobID),
		constLabels: prometheus.Labels{
			constLabelJobKey: fmt.Sprintf("%d", jobID),
		},
	}
}

// UnregisterJobMetrics drops the metrics created by NewFactory4Job(jobID).
func UnregisterJobMetrics(jobID int64) {
	globalMetricRegistry.Unregister(jobOwner(jobID))
}

func jobOwner(jobID int64) string {
	return fmt.Sprintf("job-%d", jobID)
}

type wrappingFactory struct {
	r           *Registry
	owner       string
	constLabels prometheus.Labels
}

func (f *wrappingFactory) wrap(ns *string, labels prometheus.Labels) prometheus.Labels {
	if *ns == "" {
		*ns = Namespace
	}
	if len(f.constLabels) == 0 {
		return labels
	}
	merged := make(prometheus.Labels, len(labels)+len(f.constLabels))
	for k, v := range labels {
		merged[k] = v
	}
	for k, v := range f.constLabels {
		merged[k] = v
	}
	return merged
}

func (f *wrappingFactory) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.ConstLabels = f.wrap(&opts.Namespace, opts.ConstLabels)
	c := prometheus.NewCounter(opts)
	f.r.MustRegister(f.owner, c)
	return c
}

func (f *wrappingFactory) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	opts.ConstLabels = f.wrap(&opts.Namespace, opts.ConstLabels)
	c := prometheus.NewCounterVec(opts, labelNames)
	f.r.MustRegister(f.owner, c)
	return c
}

func (f *wrappingFactory) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.ConstLabels = f.wrap(&opts.Namespace, opts.ConstLabels)
	c := prometheus.NewGauge(opts)
	f.r.MustRegister(f.owner, c)
	return c
}

func (f *wrappingFactory) NewGaugeVec(opts prometheus.GaugeOpts, labelNames []string) *prometheus.GaugeVec {
	opts.ConstLabels = f.wrap(&opts.Namespace, opts.ConstLabels)
	c := prometheus.NewGaugeVec(opts, labelNames)
	f.r.MustRegister(f.owner, c)
	return c
}

func (f *wrappingFactory) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.ConstLabels = f.wrap(&opts.Namespace, opts.ConstLabels)
	c := prometheus.NewHistogram(opts)
	f.r.MustRegister(f.owner, c)
	return c
}
