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

	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/sqlerr"

	"github.com/quiverdb/quiver/chunk"
)

// createTableIter registers the new table in the catalog; the backing
// storage table is created lazily on first OpenTable (spec 4.2).
type createTableIter struct {
	n    plan.PhysicalCreateTable
	env  Env
	done bool
}

func newCreateTableIter(n plan.PhysicalCreateTable, env Env) Iter {
	return &createTableIter{n: n, env: env}
}

func (c *createTableIter) Next() (chunk.Chunk, error) {
	if c.done {
		return chunk.Chunk{}, io.EOF
	}
	c.done = true
	if _, err := c.env.Cat.CreateTable(c.n.Name, c.n.Columns); err != nil {
		return chunk.Chunk{}, err
	}
	return chunk.Chunk{RowCount: 1}, nil
}

func (c *createTableIter) Close() error { return nil }

// dropTableIter removes a table from the catalog and discards its
// backing storage (spec 4.2).
type dropTableIter struct {
	n    plan.PhysicalDropTable
	env  Env
	done bool
}

func newDropTableIter(n plan.PhysicalDropTable, env Env) Iter {
	return &dropTableIter{n: n, env: env}
}

func (d *dropTableIter) Next() (chunk.Chunk, error) {
	if d.done {
		return chunk.Chunk{}, io.EOF
	}
	d.done = true

	tbl, ok := d.env.Cat.LookupTable(d.n.Name)
	if !ok {
		if d.n.IfExists {
			return chunk.Chunk{RowCount: 1}, nil
		}
		return chunk.Chunk{}, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", d.n.Name)
	}
	if err := d.env.Store.DropTable(tbl); err != nil {
		return chunk.Chunk{}, err
	}
	if err := d.env.Cat.DropTable(d.n.Name); err != nil {
		return chunk.Chunk{}, err
	}
	return chunk.Chunk{RowCount: 1}, nil
}

func (d *dropTableIter) Close() error { return nil }
