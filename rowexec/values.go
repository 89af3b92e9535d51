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

package rowexec

import (
	"io"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/plan"
)

// valuesIter emits the literal rows of a PhysicalValues node exactly
// once, as a single chunk (a FROM-less SELECT carries zero columns and
// a single generator row; rowCount then comes from chunk.Chunk.RowCount
// rather than from any column).
type valuesIter struct {
	n    plan.PhysicalValues
	done bool
}

func newValuesIter(n plan.PhysicalValues, batchSize int) Iter {
	return &valuesIter{n: n}
}

// dummyRow is a zero-column, one-row chunk literal expressions are
// evaluated against (they read no input column, only c.NumRows()).
var dummyRow = chunk.Chunk{RowCount: 1}

func (v *valuesIter) Next() (chunk.Chunk, error) {
	if v.done {
		return chunk.Chunk{}, io.EOF
	}
	v.done = true
	if len(v.n.Names) == 0 {
		return chunk.Chunk{RowCount: len(v.n.Rows)}, nil
	}
	cols := make([]chunk.Array, len(v.n.Names))
	builders := make([]*chunk.Builder, len(v.n.Names))
	for i := range v.n.Names {
		builders[i] = chunk.NewBuilder(v.n.Schema()[i].Type, len(v.n.Rows))
	}
	for _, row := range v.n.Rows {
		for i, e := range row {
			arr, err := e.Eval(dummyRow)
			if err != nil {
				return chunk.Chunk{}, err
			}
			if arr.IsValid(0) {
				builders[i].Append(arr.Get(0))
			} else {
				builders[i].AppendNull()
			}
		}
	}
	for i := range builders {
		cols[i] = builders[i].Finish()
	}
	return chunk.New(v.n.Names, cols)
}

func (v *valuesIter) Close() error { return nil }
