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

package connector

import (
	"sort"
	"sync"

	"github.com/pingcap/log"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
	"go.uber.org/zap"
)

// Plugin kinds, used in error messages and logs.
const (
	KindSource    = "source"
	KindTransform = "transform"
	KindSink      = "sink"
)

// Registry maps plugin names to factories.
type Registry struct {
	mu         sync.RWMutex
	sources    map[string]SourceFactory
	transforms map[string]TransformFactory
	sinks      map[string]SinkFactory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sources:    make(map[string]SourceFactory),
		transforms: make(map[string]TransformFactory),
		sinks:      make(map[string]SinkFactory),
	}
}

var globalRegistry = NewRegistry()

// GlobalRegistry returns the registry plugin packages register into on import.
func GlobalRegistry() *Registry {
	return globalRegistry
}

// RegisterSource registers a source factory. It returns false if name is taken.
func (r *Registry) RegisterSource(name string, factory SourceFactory) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[name]; exists {
		return false
	}
	r.sources[name] = factory
	return true
}

// RegisterTransform registers a transform factory. It returns false if name
// is taken.
func (r *Registry) RegisterTransform(name string, factory TransformFactory) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.transforms[name]; exists {
		return false
	}
	r.transforms[name] = factory
	return true
}

// RegisterSink registers a sink factory. It returns false if name is taken.
func (r *Registry) RegisterSink(name string, factory SinkFactory) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sinks[name]; exists {
		return false
	}
	r.sinks[name] = factory
	return true
}

// MustRegisterSource panics on a duplicated name.
func (r *Registry) MustRegisterSource(name string, factory SourceFactory) {
	if !r.RegisterSource(name, factory) {
		log.Panic("duplicate plugin", zap.String("kind", KindSource), zap.String("name", name))
	}
}

// MustRegisterTransform panics on a duplicated name.
func (r *Registry) MustRegisterTransform(name string, factory TransformFactory) {
	if !r.RegisterTransform(name, factory) {
		log.Panic("duplicate plugin", zap.String("kind", KindTransform), zap.String("name", name))
	}
}

// MustRegisterSink panics on a duplicated name.
func (r *Registry) MustRegisterSink(name string, factory SinkFactory) {
	if !r.RegisterSink(name, factory) {
		log.Panic("duplicate plugin", zap.String("kind", KindSink), zap.String("name", name))
	}
}

// NewSource creates a source reader of the named plugin.
func (r *Registry) NewSource(name string, options map[string]string) (SourceReader, error) {
	r.mu.RLock()
	factory, ok := r.sources[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrPluginNotFound.GenWithStackByArgs(KindSource, name)
	}
	reader, err := factory(options)
	return reader, errors.Trace(err)
}

// NewTransform creates a transform of the named plugin.
func (r *Registry) NewTransform(name string, options map[string]string) (Transform, error) {
	r.mu.RLock()
	factory, ok := r.transforms[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrPluginNotFound.GenWithStackByArgs(KindTransform, name)
	}
	tr, err := factory(options)
	return tr, errors.Trace(err)
}

// NewSink creates a sink writer of the named plugin.
func (r *Registry) NewSink(name string, sctx SinkContext, options map[string]string) (SinkWriter, error) {
	r.mu.RLock()
	factory, ok := r.sinks[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.ErrPluginNotFound.GenWithStackByArgs(KindSink, name)
	}
	w, err := factory(sctx, options)
	return w, errors.Trace(err)
}

// Has reports whether a plugin of kind is registered under name.
func (r *Registry) Has(kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ok bool
	switch kind {
	case KindSource:
		_, ok = r.sources[name]
	case KindTransform:
		_, ok = r.transforms[name]
	case KindSink:
		_, ok = r.sinks[name]
	}
	return ok
}

// Names returns the sorted plugin names of kind.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	switch kind {
	case KindSource:
		for name := range r.sources {
			names = append(names, name)
		}
	case KindTransform:
		for name := range r.transforms {
			names = append(names, name)
		}
	case KindSink:
		for name := range r.sinks {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
