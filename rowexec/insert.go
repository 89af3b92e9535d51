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
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/value"
)

// insertIter materializes its child stream and appends each row to the
// target table's writer, enforcing NOT NULL/PRIMARY KEY before it ever
// reaches storage; on end-of-stream it commits the new row-set and
// emits a single row holding the inserted-row count (spec 4.5).
type insertIter struct {
	input         Iter
	table         *catalog.Table
	columnIndexes []int
	env           Env

	done  bool
	count int64
}

func newInsertIter(input Iter, n plan.PhysicalInsert, env Env) (Iter, error) {
	return &insertIter{input: input, table: n.Table, columnIndexes: n.ColumnIndexes, env: env}, nil
}

func (ins *insertIter) Next() (chunk.Chunk, error) {
	if ins.done {
		return chunk.Chunk{}, io.EOF
	}
	ins.done = true

	tbl, err := ins.env.Store.OpenTable(ins.table)
	if err != nil {
		return chunk.Chunk{}, err
	}
	pkSeen, err := ins.loadExistingKeys(tbl)
	if err != nil {
		return chunk.Chunk{}, err
	}

	w := tbl.Writer()
	for {
		c, err := ins.input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return chunk.Chunk{}, err
		}
		widened, err := ins.widen(c)
		if err != nil {
			return chunk.Chunk{}, err
		}
		if err := ins.checkConstraints(widened, pkSeen); err != nil {
			return chunk.Chunk{}, err
		}
		if err := w.Append(widened); err != nil {
			return chunk.Chunk{}, err
		}
		ins.count += int64(widened.NumRows())
	}
	if err := w.Commit(); err != nil {
		return chunk.Chunk{}, err
	}

	b := chunk.NewBuilder(plan.CountType, 1)
	b.Append(value.NewInt64(ins.count))
	return chunk.New([]string{"inserted"}, []chunk.Array{b.Finish()})
}

// widen reorders/pads child columns to the table's full column list,
// per columnIndexes (the binder's mapping from an optional INSERT
// column list to target column positions); columns absent from the
// list get SQL NULL.
func (ins *insertIter) widen(c chunk.Chunk) (chunk.Chunk, error) {
	cols := ins.table.Columns
	out := make([]chunk.Array, len(cols))
	names := make([]string, len(cols))
	filled := make([]bool, len(cols))
	for srcIdx, dstIdx := range ins.columnIndexes {
		out[dstIdx] = c.Columns[srcIdx]
		names[dstIdx] = cols[dstIdx].Name
		filled[dstIdx] = true
	}
	for i, col := range cols {
		names[i] = col.Name
		if filled[i] {
			continue
		}
		b := chunk.NewBuilder(col.Type.AsNullable(), c.NumRows())
		for r := 0; r < c.NumRows(); r++ {
			b.AppendNull()
		}
		out[i] = b.Finish()
	}
	return chunk.New(names, out)
}

func (ins *insertIter) checkConstraints(c chunk.Chunk, pkSeen map[string]bool) error {
	cols := ins.table.Columns
	for ci, col := range cols {
		if col.Type.Nullable {
			continue
		}
		arr := c.Columns[ci]
		for r := 0; r < arr.Len(); r++ {
			if !arr.IsValid(r) {
				return sqlerr.Wrapf(sqlerr.ErrNotNullViolation, "column %q", col.Name)
			}
		}
	}
	for r := 0; r < c.NumRows(); r++ {
		key, ok := ins.pkKey(c, r)
		if !ok {
			continue
		}
		if pkSeen[key] {
			return sqlerr.Wrapf(sqlerr.ErrDuplicateKey, "duplicate primary key %s", key)
		}
		pkSeen[key] = true
	}
	return nil
}

func (ins *insertIter) pkKey(c chunk.Chunk, row int) (string, bool) {
	key := ""
	has := false
	for ci, col := range ins.table.Columns {
		if !col.PrimaryKey {
			continue
		}
		has = true
		arr := c.Columns[ci]
		if !arr.IsValid(row) {
			key += "\x00NULL\x00"
		} else {
			key += arr.Get(row).String() + "\x00"
		}
	}
	return key, has
}

// loadExistingKeys scans the table's current primary key values so new
// rows can be checked against what is already stored, not just against
// each other within this statement's batch.
func (ins *insertIter) loadExistingKeys(tbl storage.Table) (map[string]bool, error) {
	seen := map[string]bool{}
	hasPK := false
	for _, col := range ins.table.Columns {
		if col.PrimaryKey {
			hasPK = true
		}
	}
	if !hasPK {
		return seen, nil
	}
	snap, err := tbl.Snapshot()
	if err != nil {
		return nil, err
	}
	rows, err := snap.Scan(ins.table.Columns, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for {
		c, err := rows.Next()
		if err == io.EOF {
			return seen, nil
		}
		if err != nil {
			return nil, err
		}
		for r := 0; r < c.NumRows(); r++ {
			key, ok := ins.pkKey(c, r)
			if ok {
				seen[key] = true
			}
		}
	}
}
