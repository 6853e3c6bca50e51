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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"
)

var _ prometheus.Gatherer = globalMetricRegistry

var globalMetricRegistry = NewRegistry()

func init() {
	globalMetricRegistry.MustRegister(systemOwner, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	globalMetricRegistry.MustRegister(systemOwner, collectors.NewGoCollector())
}

// Registry is a prometheus registry that remembers which owner registered
// each collector, so all metrics of a finished job can be dropped at once.
type Registry struct {
	sync.Mutex
	*prometheus.Registry

	collectorByOwner map[string][]prometheus.Collector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		Registry:         prometheus.NewRegistry(),
		collectorByOwner: make(map[string][]prometheus.Collector),
	}
}

// MustRegister registers c on behalf of owner. Panics on duplicated metrics.
func (r *Registry) MustRegister(owner string, c prometheus.Collector) {
	if c == nil {
		return
	}
	r.Lock()
	defer r.Unlock()

	r.Registry.MustRegister(c)
	r.collectorByOwner[owner] = append(r.collectorByOwner[owner], c)
}

// Unregister removes all collectors registered by owner.
func (r *Registry) Unregister(owner string) {
	r.Lock()
	defer r.Unlock()

	for _, c := range r.collectorByOwner[owner] {
		r.Registry.Unregister(c)
	}
	delete(r.collectorByOwner, owner)
}

// Gather implements prometheus.Gatherer.
func (r *Registry) Gather() ([]*dto.MetricFamily, error) {
	// prometheus.Registry is thread-safe
	return r.Registry.Gather()
}
