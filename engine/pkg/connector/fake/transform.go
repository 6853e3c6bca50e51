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

package fake

import (
	"strings"

	"github.com/quanzhian/incubator-seatunnel/engine/pkg/connector"
)

// Replace options.
const (
	OptionReplaceField = "replace_field"
	OptionPattern      = "pattern"
	OptionReplacement  = "replacement"
)

// Replace rewrites a string field of every row.
type Replace struct {
	field       int
	pattern     string
	replacement string
}

// NewReplace creates a Replace transform. The field defaults to 1, the name
// column of FakeSource rows.
func NewReplace(options map[string]string) (connector.Transform, error) {
	field, err := intOption(options, OptionReplaceField, 1)
	if err != nil {
		return nil, err
	}
	return &Replace{
		field:       int(field),
		pattern:     options[OptionPattern],
		replacement: options[OptionReplacement],
	}, nil
}

// Map implements connector.Transform. Rows without a string at the field are
// passed through untouched.
func (r *Replace) Map(row connector.Row) (connector.Row, bool, error) {
	if r.pattern == "" || r.field >= len(row.Fields) {
		return row, true, nil
	}
	s, ok := row.Fields[r.field].(string)
	if !ok {
		return row, true, nil
	}
	out := row.Clone()
	out.Fields[r.field] = strings.ReplaceAll(s, r.pattern, r.replacement)
	return out, true, nil
}
