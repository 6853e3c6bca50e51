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
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// PluginConfig configures one connector or transform instance.
type PluginConfig struct {
	PluginName string            `toml:"plugin_name" json:"plugin-name"`
	Options    map[string]string `toml:"-" json:"options,omitempty"`
}

// Pipeline is a parsed and validated pipeline definition.
type Pipeline struct {
	Env        map[string]string `json:"env,omitempty"`
	Sources    []PluginConfig    `json:"sources"`
	Transforms []PluginConfig    `json:"transforms,omitempty"`
	Sinks      []PluginConfig    `json:"sinks"`
}

// Validate checks the pipeline has at least one source and one sink.
func (p *Pipeline) Validate() error {
	if len(p.Sources) == 0 {
		return errors.ErrPipelineInvalid.GenWithStackByArgs("no source")
	}
	if len(p.Sinks) == 0 {
		return errors.ErrPipelineInvalid.GenWithStackByArgs("no sink")
	}
	for _, plugins := range [][]PluginConfig{p.Sources, p.Transforms, p.Sinks} {
		for _, plugin := range plugins {
			if plugin.PluginName == "" {
				return errors.ErrPipelineInvalid.GenWithStackByArgs("empty plugin_name")
			}
		}
	}
	return nil
}

// VertexType is the kind of a DAG vertex.
type VertexType string

// VertexType values.
const (
	VertexTypeSource    VertexType = "source"
	VertexTypeTransform VertexType = "transform"
	VertexTypeSink      VertexType = "sink"
)

// Vertex is an operator of the job DAG.
type Vertex struct {
	ID          int        `json:"id"`
	Type        VertexType `json:"type"`
	PluginName  string     `json:"plugin-name"`
	Parallelism int        `json:"parallelism"`
}

// Edge connects two vertices of the job DAG.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// JobDAGInfo is the logical plan of a job.
type JobDAGInfo struct {
	JobID    JobID    `json:"job-id"`
	Vertices []Vertex `json:"vertices"`
	Edges    []Edge   `json:"edges"`
}

// BuildDAG builds the logical plan of p. Sources feed the transform chain,
// and the tail of the chain feeds every sink.
func BuildDAG(jobID JobID, p *Pipeline, parallelism int) *JobDAGInfo {
	dag := &JobDAGInfo{JobID: jobID}
	nextID := 1
	add := func(tp VertexType, plugin PluginConfig) int {
		id := nextID
		nextID++
		dag.Vertices = append(dag.Vertices, Vertex{
			ID:          id,
			Type:        tp,
			PluginName:  plugin.PluginName,
			Parallelism: parallelism,
		})
		return id
	}

	var tails []int
	for _, src := range p.Sources {
		tails = append(tails, add(VertexTypeSource, src))
	}
	for _, tr := range p.Transforms {
		id := add(VertexTypeTransform, tr)
		for _, from := range tails {
			dag.Edges = append(dag.Edges, Edge{From: from, To: id})
		}
		tails = []int{id}
	}
	for _, sink := range p.Sinks {
		id := add(VertexTypeSink, sink)
		for _, from := range tails {
			dag.Edges = append(dag.Edges, Edge{From: from, To: id})
		}
	}
	return dag
}
