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
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/storage"
)

// scanIter drives a storage.Snapshot scan: both PhysicalScan (in-memory)
// and PhysicalRowSetScan (on-disk) reduce to this, since the storage
// layer itself picked the engine at OpenTable time (spec 4.4: "Scan
// chooses SeqScan for the in-memory engine and RowSetScan for the
// on-disk engine").
type scanIter struct {
	snap storage.Snapshot
	rows storage.RowIter
}

func newScanIter(table *catalog.Table, cols []catalog.Column, predicate expr.Expr, withRowHandle bool, env Env, batchSize int) (Iter, error) {
	tbl, err := env.Store.OpenTable(table)
	if err != nil {
		return nil, err
	}
	snap, err := tbl.Snapshot()
	if err != nil {
		return nil, err
	}
	rows, err := snap.Scan(cols, withRowHandle)
	if err != nil {
		return nil, err
	}
	it := &scanIter{snap: snap, rows: rows}
	if predicate == nil {
		return it, nil
	}
	return &filterIter{input: it, predicate: predicate}, nil
}

func (s *scanIter) Next() (chunk.Chunk, error) {
	for {
		c, err := s.rows.Next()
		if err != nil {
			return chunk.Chunk{}, err
		}
		if c.NumRows() == 0 {
			continue
		}
		return c, nil
	}
}

func (s *scanIter) Close() error { return s.rows.Close() }
