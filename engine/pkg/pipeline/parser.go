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

package pipeline

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-json"
	"github.com/imdario/mergo"
	"github.com/quanzhian/incubator-seatunnel/engine/model"
	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
	"github.com/quanzhian/incubator-seatunnel/pkg/errors"
)

// Keys of the [env] table understood by the engine. Other keys are kept in
// Pipeline.Env untouched.
const (
	EnvJobName            = "job.name"
	EnvParallelism        = "parallelism"
	EnvCheckpointInterval = "checkpoint.interval"
)

const pluginNameKey = "plugin_name"

type rawPipeline struct {
	Env       map[string]any   `toml:"env"`
	Source    []map[string]any `toml:"source"`
	Transform []map[string]any `toml:"transform"`
	Sink      []map[string]any `toml:"sink"`
}

// Parse reads and validates the pipeline file at path.
func Parse(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(errors.ErrPipelineInvalid, err, "read "+path)
	}
	return ParseBytes(data)
}

// ParseBytes parses and validates a pipeline definition.
func ParseBytes(data []byte) (*model.Pipeline, error) {
	var raw rawPipeline
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, errors.WrapError(errors.ErrPipelineInvalid, err, "decode toml")
	}
	if items := unknownItems(meta); len(items) > 0 {
		return nil, errors.ErrPipelineInvalid.GenWithStackByArgs(
			"unknown items: " + strings.Join(items, ","))
	}

	p := &model.Pipeline{}
	if p.Env, err = flatten(raw.Env); err != nil {
		return nil, err
	}
	if p.Sources, err = plugins("source", raw.Source); err != nil {
		return nil, err
	}
	if p.Transforms, err = plugins("transform", raw.Transform); err != nil {
		return nil, err
	}
	if p.Sinks, err = plugins("sink", raw.Sink); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// unknownItems lists undecoded keys outside the known sections. Keys nested
// in env or in a plugin table are free-form and reported by toml as
// undecoded because they land in maps.
func unknownItems(meta toml.MetaData) []string {
	var items []string
	for _, key := range meta.Undecoded() {
		if len(key) == 0 {
			continue
		}
		switch key[0] {
		case "env", "source", "transform", "sink":
			continue
		}
		items = append(items, key.String())
	}
	return items
}

func plugins(kind string, tables []map[string]any) ([]model.PluginConfig, error) {
	ret := make([]model.PluginConfig, 0, len(tables))
	for i, table := range tables {
		name, ok := table[pluginNameKey].(string)
		if !ok || name == "" {
			return nil, errors.ErrPipelineInvalid.GenWithStackByArgs(
				fmt.Sprintf("%s #%d has no %s", kind, i, pluginNameKey))
		}
		rest := make(map[string]any, len(table))
		for k, v := range table {
			if k != pluginNameKey {
				rest[k] = v
			}
		}
		options, err := flatten(rest)
		if err != nil {
			return nil, err
		}
		ret = append(ret, model.PluginConfig{PluginName: name, Options: options})
	}
	return ret, nil
}

// flatten renders option values as strings. Scalars keep their TOML text,
// nested tables are flattened into dotted keys and arrays become JSON.
func flatten(table map[string]any) (map[string]string, error) {
	if len(table) == 0 {
		return nil, nil
	}
	ret := make(map[string]string, len(table))
	if err := flattenInto(ret, "", table); err != nil {
		return nil, err
	}
	return ret, nil
}

func flattenInto(dst map[string]string, prefix string, table map[string]any) error {
	for k, v := range table {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			if err := flattenInto(dst, key, val); err != nil {
				return err
			}
		case string:
			dst[key] = val
		case int64:
			dst[key] = strconv.FormatInt(val, 10)
		case float64:
			dst[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			dst[key] = strconv.FormatBool(val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return errors.WrapError(errors.ErrPipelineInvalid, err, "option "+key)
			}
			dst[key] = string(data)
		}
	}
	return nil
}

// ApplyEnv fills the zero fields of cfg from the [env] table of p.
func ApplyEnv(cfg *model.JobConfig, p *model.Pipeline) error {
	fromEnv := model.JobConfig{Name: p.Env[EnvJobName]}
	if len(p.Env) > 0 {
		fromEnv.Env = make(map[string]string, len(p.Env))
		for k, v := range p.Env {
			fromEnv.Env[k] = v
		}
	}
	var err error
	if fromEnv.Parallelism, err = positiveEnv(p, EnvParallelism); err != nil {
		return err
	}
	if fromEnv.CheckpointInterval, err = positiveEnv(p, EnvCheckpointInterval); err != nil {
		return err
	}
	// fields already set on cfg are kept
	if err := mergo.Merge(cfg, fromEnv); err != nil {
		return errors.WrapError(errors.ErrPipelineInvalid, err, "env")
	}
	return nil
}

func positiveEnv(p *model.Pipeline, key string) (int, error) {
	v, ok := p.Env[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.ErrPipelineInvalid.GenWithStackByArgs(key + "=" + v)
	}
	return n, nil
}

// CheckPlugins reports the first plugin of p that registry does not know.
func CheckPlugins(p *model.Pipeline, registry *connector.Registry) error {
	groups := []struct {
		kind    string
		plugins []model.PluginConfig
	}{
		{connector.KindSource, p.Sources},
		{connector.KindTransform, p.Transforms},
		{connector.KindSink, p.Sinks},
	}
	for _, g := range groups {
		for _, plugin := range g.plugins {
			if !registry.Has(g.kind, plugin.PluginName) {
				return errors.ErrPluginNotFound.GenWithStackByArgs(g.kind, plugin.PluginName)
			}
		}
	}
	return nil
}

// Describe renders p in one line for logs.
func Describe(p *model.Pipeline) string {
	names := func(plugins []model.PluginConfig) string {
		ret := make([]string, 0, len(plugins))
		for _, plugin := range plugins {
			ret = append(ret, plugin.PluginName)
		}
		return strings.Join(ret, ",")
	}
	envKeys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	return fmt.Sprintf("source=[%s] transform=[%s] sink=[%s] env=[%s]",
		names(p.Sources), names(p.Transforms), names(p.Sinks), strings.Join(envKeys, ","))
}
