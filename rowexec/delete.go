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

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/value"
)

// deleteIter consumes chunks whose last column holds row-handlers
// (every scan upstream was built WithRowHandle: true for a DELETE, spec
// 4.2) and tells the table to mark those rows deleted, emitting the
// affected-row count (spec 4.5).
type deleteIter struct {
	input Iter
	table *catalog.Table
	env   Env

	done  bool
	count int64
}

func newDeleteIter(input Iter, n plan.PhysicalDelete, env Env) (Iter, error) {
	return &deleteIter{input: input, table: n.Table, env: env}, nil
}

func (d *deleteIter) Next() (chunk.Chunk, error) {
	if d.done {
		return chunk.Chunk{}, io.EOF
	}
	d.done = true

	tbl, err := d.env.Store.OpenTable(d.table)
	if err != nil {
		return chunk.Chunk{}, err
	}
	for {
		c, err := d.input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return chunk.Chunk{}, err
		}
		handleCol := c.Columns[len(c.Columns)-1]
		handles := make([]storage.RowHandle, 0, handleCol.Len())
		for r := 0; r < handleCol.Len(); r++ {
			if !handleCol.IsValid(r) {
				continue
			}
			handles = append(handles, storage.RowHandle(handleCol.Get(r).Int64()))
		}
		if len(handles) == 0 {
			continue
		}
		if err := tbl.MarkDeleted(handles); err != nil {
			return chunk.Chunk{}, err
		}
		d.count += int64(len(handles))
	}

	b := chunk.NewBuilder(plan.CountType, 1)
	b.Append(value.NewInt64(d.count))
	return chunk.New([]string{"deleted"}, []chunk.Array{b.Finish()})
}

func (d *deleteIter) Close() error { return d.input.Close() }
