// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package schema describes the output column shape every plan node and
// expression is type-checked and positionally resolved against. It sits
// below both expr and plan so neither needs to import the other for
// this one shared concept.
package schema

import "github.com/quiverdb/quiver/value"

// SyntheticTableRef marks a column descriptor created internally by the
// executor (row-handle, aggregate output, projection output) rather than
// bound directly to a catalog column.
const SyntheticTableRef = -1

// Column describes one output column: its display name and type, plus
// — when it traces directly back to a catalog column — the table
// reference id and column id the binder resolved it to (spec 3: "bound
// expressions ... column-ref (by table-ref-id + column-id)"). Synthetic
// columns (projection results, aggregate outputs, row-handles) carry
// TableRef == SyntheticTableRef and a unique ColumnID scoped to the
// query being planned.
type Column struct {
	Name     string
	Type     value.Type
	TableRef int
	ColumnID int
}

// Schema is the ordered output shape of a plan node or a chunk.
type Schema []Column

// IndexOf returns the position of the column bound to (tableRef,
// columnID), used by Resolve to turn a ColumnRef into a positional
// InputRef.
func (s Schema) IndexOf(tableRef, columnID int) (int, bool) {
	for i, c := range s {
		if c.TableRef == tableRef && c.ColumnID == columnID {
			return i, true
		}
	}
	return 0, false
}

// Names returns the display names, in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Concat appends two schemas, used by Join and comma-FROM to build the
// combined output shape of both sides.
func Concat(a, b Schema) Schema {
	out := make(Schema, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}
