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

// Package memory implements quiver's in-memory storage engine (spec
// 4.6): "a table is a vector of chunks plus a delete bitmap; writes
// append; deletes flip bits; scans stream chunks with the bitmap
// applied."
package memory

import (
	"io"
	"sync"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/value"
)

// chunkIndexBits is how many low bits of a storage.RowHandle hold the
// intra-chunk row index; the remaining high bits hold the chunk index.
// 2^24 rows per chunk group and 2^39 chunks comfortably exceeds
// anything an in-memory engine will ever hold.
const chunkIndexBits = 24

func encodeHandle(chunkIdx, row int) storage.RowHandle {
	return storage.RowHandle(int64(chunkIdx)<<chunkIndexBits | int64(row))
}

func decodeHandle(h storage.RowHandle) (chunkIdx, row int) {
	return int(int64(h) >> chunkIndexBits), int(int64(h) & (1<<chunkIndexBits - 1))
}

// Engine is a storage.Storage backed entirely by process memory.
type Engine struct {
	mu     sync.RWMutex
	tables map[int]*table
}

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{tables: map[int]*table{}}
}

func (e *Engine) OpenTable(t *catalog.Table) (storage.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tbl, ok := e.tables[t.ID]
	if !ok {
		tbl = &table{catalogTable: t}
		e.tables[t.ID] = tbl
	}
	return tbl, nil
}

func (e *Engine) DropTable(t *catalog.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, t.ID)
	return nil
}

func (e *Engine) Close() error { return nil }

// table holds every chunk ever appended plus a parallel per-chunk
// delete bitmap (spec 4.6).
type table struct {
	mu           sync.RWMutex
	catalogTable *catalog.Table
	chunks       []chunk.Chunk
	deleted      []chunk.Bitmap
}

func (t *table) Snapshot() (storage.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	// Copy the slice headers so later appends don't extend what this
	// snapshot can see (spec 9: "fixes which chunks a scan sees for the
	// duration of one statement").
	chunks := make([]chunk.Chunk, len(t.chunks))
	copy(chunks, t.chunks)
	deleted := make([]chunk.Bitmap, len(t.deleted))
	copy(deleted, t.deleted)
	return &snapshot{table: t.catalogTable, chunks: chunks, deleted: deleted}, nil
}

func (t *table) Writer() storage.Writer {
	return &writer{t: t}
}

func (t *table) MarkDeleted(handles []storage.RowHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range handles {
		ci, ri := decodeHandle(h)
		if ci < 0 || ci >= len(t.deleted) {
			return sqlerr.Wrapf(sqlerr.ErrInternal, "memory: row handle %d out of range", h)
		}
		t.deleted[ci].Set(ri, true)
	}
	return nil
}

func (t *table) append(c chunk.Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunks = append(t.chunks, c)
	t.deleted = append(t.deleted, chunk.NewBitmap(c.NumRows(), false))
}

// writer appends directly to the table; the in-memory engine has no
// separate staging area, so Commit is a no-op (spec 4.5's "commits the
// row-set" step only has work to do on the on-disk engine).
type writer struct{ t *table }

func (w *writer) Append(c chunk.Chunk) error {
	if c.NumRows() == 0 {
		return nil
	}
	w.t.append(c)
	return nil
}

func (w *writer) Commit() error { return nil }

// snapshot is a frozen view over the chunks/delete-bitmaps visible when
// it was taken.
type snapshot struct {
	table   *catalog.Table
	chunks  []chunk.Chunk
	deleted []chunk.Bitmap
}

func (s *snapshot) Scan(projection []catalog.Column, withRowHandle bool) (storage.RowIter, error) {
	return &rowIter{snap: s, projection: projection, withRowHandle: withRowHandle}, nil
}

type rowIter struct {
	snap          *snapshot
	projection    []catalog.Column
	withRowHandle bool
	next          int
}

func (it *rowIter) Next() (chunk.Chunk, error) {
	for it.next < len(it.snap.chunks) {
		idx := it.next
		it.next++
		c := it.snap.chunks[idx]
		bitmap := it.snap.deleted[idx]

		live := make([]int, 0, c.NumRows())
		for row := 0; row < c.NumRows(); row++ {
			if !bitmap.Get(row) {
				live = append(live, row)
			}
		}
		if len(live) == 0 {
			continue
		}

		indices := make([]int, len(it.projection))
		names := make([]string, len(it.projection))
		for i, col := range it.projection {
			ci, ok := c.ColumnIndex(col.Name)
			if !ok {
				return chunk.Chunk{}, sqlerr.Wrapf(sqlerr.ErrInternal, "memory: column %q not present in stored chunk", col.Name)
			}
			indices[i] = ci
			names[i] = col.Name
		}
		out := c.Take(live).Project(indices, names)

		if it.withRowHandle {
			b := chunk.NewBuilder(value.Int64.NotNull(), len(live))
			for _, row := range live {
				b.Append(value.NewInt64(int64(encodeHandle(idx, row))))
			}
			out.Columns = append(out.Columns, b.Finish())
			out.Names = append(out.Names, "__row_handle__")
		}
		return out, nil
	}
	return chunk.Chunk{}, io.EOF
}

func (it *rowIter) Close() error { return nil }
