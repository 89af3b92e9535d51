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

package rowset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/value"
)

// Options configures an Engine (spec's Options: path, cache size,
// target block size, batch size).
type Options struct {
	Path            string
	CacheSizeBytes  int
	TargetBlockSize int
	BatchSize       int
}

// manifest is the sealed-row-set directory's single piece of metadata
// (spec 4.6: "on flush completion, the manifest is written last and the
// row-set becomes visible atomically").
type manifest struct {
	RowSetID  int               `json:"row_set_id"`
	RowCount  int               `json:"row_count"`
	Columns   []string          `json:"columns"`
	Footers   map[string][]BlockFooterEntry `json:"footers"`
}

// Engine is a storage.Storage backed by on-disk row-sets under Path.
type Engine struct {
	opts  Options
	cache *BlockCache
	mu    sync.Mutex
	tables map[int]*table
}

// Open creates or reopens an on-disk engine rooted at opts.Path.
func Open(opts Options) (*Engine, error) {
	if opts.Path == "" {
		return nil, sqlerr.Wrapf(sqlerr.ErrInternal, "rowset: Options.Path is required")
	}
	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	return &Engine{opts: opts, cache: NewBlockCache(opts.CacheSizeBytes), tables: map[int]*table{}}, nil
}

func (e *Engine) OpenTable(t *catalog.Table) (storage.Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tbl, ok := e.tables[t.ID]
	if ok {
		return tbl, nil
	}
	dir := filepath.Join(e.opts.Path, fmt.Sprintf("table_%d", t.ID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	tbl = &table{engine: e, dir: dir, catalogTable: t, deleted: map[int]map[int]bool{}}
	if err := tbl.loadManifests(); err != nil {
		return nil, err
	}
	e.tables[t.ID] = tbl
	return tbl, nil
}

func (e *Engine) DropTable(t *catalog.Table) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tables, t.ID)
	return os.RemoveAll(filepath.Join(e.opts.Path, fmt.Sprintf("table_%d", t.ID)))
}

func (e *Engine) Close() error { return nil }

// table is one catalog table's on-disk state: zero or more sealed
// row-sets plus an in-memory memtable of not-yet-flushed chunks (spec
// 4.6: "the table holds a memtable of appended chunks").
type table struct {
	mu           sync.RWMutex
	engine       *Engine
	dir          string
	catalogTable *catalog.Table
	rowSets      []*manifest
	memtable     []chunk.Chunk
	nextRowSetID int
	deleted      map[int]map[int]bool // rowSetID -> row index -> deleted
}

func (t *table) loadManifests() error {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	for _, ent := range entries {
		if filepath.Ext(ent.Name()) != ".manifest" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, ent.Name()))
		if err != nil {
			return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
		}
		var m manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return sqlerr.Wrap(sqlerr.ErrCorruptBlock, err.Error())
		}
		t.rowSets = append(t.rowSets, &m)
		if m.RowSetID >= t.nextRowSetID {
			t.nextRowSetID = m.RowSetID + 1
		}
	}
	return nil
}

func (t *table) Snapshot() (storage.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rowSets := make([]*manifest, len(t.rowSets))
	copy(rowSets, t.rowSets)
	memtable := make([]chunk.Chunk, len(t.memtable))
	copy(memtable, t.memtable)
	return &snapshot{table: t, rowSets: rowSets, memtable: memtable}, nil
}

func (t *table) Writer() storage.Writer {
	return &writer{t: t}
}

func (t *table) MarkDeleted(handles []storage.RowHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, h := range handles {
		rowSetID, row := decodeHandle(h)
		if t.deleted[rowSetID] == nil {
			t.deleted[rowSetID] = map[int]bool{}
		}
		t.deleted[rowSetID][row] = true
	}
	return nil
}

// writer accumulates appended chunks in the memtable and flushes them
// to a new sealed row-set on Commit (spec 4.5/4.6).
type writer struct {
	t       *table
	pending []chunk.Chunk
}

func (w *writer) Append(c chunk.Chunk) error {
	if c.NumRows() == 0 {
		return nil
	}
	w.pending = append(w.pending, c)
	return nil
}

func (w *writer) Commit() error {
	if len(w.pending) == 0 {
		return nil
	}
	return w.t.flush(w.pending)
}

// flush converts a batch of memtable chunks into a new sealed row-set:
// for each column, a column-builder accepts values, finishes blocks at
// the target size, and a column file writes them out; the manifest is
// written last so the row-set becomes visible atomically (spec 4.6).
func (t *table) flush(chunks []chunk.Chunk) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rowSetID := t.nextRowSetID
	t.nextRowSetID++
	dir := filepath.Join(t.dir, fmt.Sprintf("rowset_%d", rowSetID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}

	cols := t.catalogTable.Columns
	builders := make([]*ColumnBuilder, len(cols))
	files := make([]*ColumnFile, len(cols))
	rowCount := 0
	for i, col := range cols {
		builders[i] = NewColumnBuilder(col.Type.Nullable, t.engine.opts.TargetBlockSize)
		cf, err := CreateColumnFile(filepath.Join(dir, fmt.Sprintf("col_%d.dat", col.ID)))
		if err != nil {
			return err
		}
		files[i] = cf
	}
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()

	handle := 0
	for _, c := range chunks {
		for i, col := range cols {
			ci, ok := c.ColumnIndex(col.Name)
			if !ok {
				return sqlerr.Wrapf(sqlerr.ErrInternal, "rowset: flush missing column %q", col.Name)
			}
			builders[i].Add(c.Columns[ci])
			for builders[i].ShouldFinish() {
				blk, err := builders[i].Finish()
				if err != nil {
					return err
				}
				if err := files[i].WriteBlock(blk, int64(handle)); err != nil {
					return err
				}
			}
		}
		rowCount += c.NumRows()
		handle += c.NumRows()
	}
	for i := range builders {
		if builders[i].HasPending() {
			blk, err := builders[i].Finish()
			if err != nil {
				return err
			}
			if err := files[i].WriteBlock(blk, int64(handle)); err != nil {
				return err
			}
		}
	}

	footers := map[string][]BlockFooterEntry{}
	for i, col := range cols {
		footers[fmt.Sprintf("%d", col.ID)] = files[i].Footer()
	}
	m := manifest{RowSetID: rowSetID, RowCount: rowCount, Footers: footers}
	for _, c := range cols {
		m.Columns = append(m.Columns, c.Name)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return sqlerr.Wrap(sqlerr.ErrInternal, err.Error())
	}
	tmp := filepath.Join(t.dir, fmt.Sprintf("rowset_%d.manifest.tmp", rowSetID))
	final := filepath.Join(t.dir, fmt.Sprintf("rowset_%d.manifest", rowSetID))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	if err := os.Rename(tmp, final); err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	t.rowSets = append(t.rowSets, &m)
	return nil
}

// encodeHandle/decodeHandle pack (row-set id, intra-row-set row index)
// into a 64-bit row handle (spec 4.6).
const rowSetIndexBits = 32

func encodeHandle(rowSetID, row int) storage.RowHandle {
	return storage.RowHandle(int64(rowSetID)<<rowSetIndexBits | int64(row))
}

func decodeHandle(h storage.RowHandle) (rowSetID, row int) {
	return int(int64(h) >> rowSetIndexBits), int(int64(h) & (1<<rowSetIndexBits - 1))
}

// snapshot fixes the set of row-sets and memtable chunks visible for
// one statement (spec 9: "single-statement read view").
type snapshot struct {
	table    *table
	rowSets  []*manifest
	memtable []chunk.Chunk
}

func (s *snapshot) Scan(projection []catalog.Column, withRowHandle bool) (storage.RowIter, error) {
	return &rowIter{snap: s, projection: projection, withRowHandle: withRowHandle}, nil
}

type rowIter struct {
	snap          *snapshot
	projection    []catalog.Column
	withRowHandle bool
	rowSetIdx     int
	memtableIdx   int
	inMemtable    bool
}

func (it *rowIter) Next() (chunk.Chunk, error) {
	for it.rowSetIdx < len(it.snap.rowSets) {
		m := it.snap.rowSets[it.rowSetIdx]
		c, ok, err := it.scanRowSet(m)
		it.rowSetIdx++
		if err != nil {
			return chunk.Chunk{}, err
		}
		if ok {
			return c, nil
		}
	}
	for it.memtableIdx < len(it.snap.memtable) {
		c := it.snap.memtable[it.memtableIdx]
		it.memtableIdx++
		if c.NumRows() == 0 {
			continue
		}
		return projectChunk(c, it.projection, nil, it.withRowHandle)
	}
	return chunk.Chunk{}, io.EOF
}

// scanRowSet decodes every column of one sealed row-set in lockstep,
// applying the table's delete bitmap for that row-set, and returns one
// assembled chunk (spec 4.6: "iterates the selected columns in
// lockstep using per-column block iterators").
func (it *rowIter) scanRowSet(m *manifest) (chunk.Chunk, bool, error) {
	t := it.snap.table
	cols := it.projection
	arrays := make([]chunk.Array, len(cols))
	for i, col := range cols {
		footer := m.Footers[fmt.Sprintf("%d", col.ID)]
		path := filepath.Join(t.dir, fmt.Sprintf("rowset_%d", m.RowSetID), fmt.Sprintf("col_%d.dat", col.ID))
		cf, err := OpenColumnFile(path, footer)
		if err != nil {
			return chunk.Chunk{}, false, err
		}
		merged, err := readColumn(t.engine.cache, cf, path)
		cf.Close()
		if err != nil {
			return chunk.Chunk{}, false, err
		}
		arrays[i] = merged
	}
	if len(arrays) == 0 {
		return chunk.Chunk{RowCount: m.RowCount}, m.RowCount > 0, nil
	}

	t.mu.RLock()
	deletedSet := t.deleted[m.RowSetID]
	t.mu.RUnlock()

	live := make([]int, 0, arrays[0].Len())
	for row := 0; row < arrays[0].Len(); row++ {
		if !deletedSet[row] {
			live = append(live, row)
		}
	}
	if len(live) == 0 {
		return chunk.Chunk{}, false, nil
	}

	names := make([]string, len(cols))
	liveArrays := make([]chunk.Array, len(cols))
	for i, col := range cols {
		names[i] = col.Name
		liveArrays[i] = arrays[i].Take(live)
	}
	out, err := chunk.New(names, liveArrays)
	if err != nil {
		return chunk.Chunk{}, false, err
	}
	if it.withRowHandle {
		b := chunk.NewBuilder(value.Int64.NotNull(), len(live))
		for _, row := range live {
			b.Append(value.NewInt64(int64(encodeHandle(m.RowSetID, row))))
		}
		out.Columns = append(out.Columns, b.Finish())
		out.Names = append(out.Names, "__row_handle__")
	}
	return out, true, nil
}

// readColumn reads every block of a column file through the shared
// cache, decoding and concatenating them into a single array.
func readColumn(cache *BlockCache, cf *ColumnFile, path string) (chunk.Array, error) {
	var parts []chunk.Array
	for idx := range cf.Footer() {
		blk, ok := cache.Get(path, idx)
		if !ok {
			var err error
			blk, err = cf.ReadBlockAt(idx)
			if err != nil {
				return chunk.Array{}, err
			}
			cache.Put(path, idx, blk, len(blk.Payload))
		}
		arr, err := DecodeArray(blk)
		if err != nil {
			return chunk.Array{}, err
		}
		parts = append(parts, arr)
	}
	if len(parts) == 0 {
		return chunk.Array{}, nil
	}
	return concatArrays(parts)
}

func projectChunk(c chunk.Chunk, cols []catalog.Column, _ []int, withRowHandle bool) (chunk.Chunk, error) {
	indices := make([]int, len(cols))
	names := make([]string, len(cols))
	for i, col := range cols {
		ci, ok := c.ColumnIndex(col.Name)
		if !ok {
			return chunk.Chunk{}, sqlerr.Wrapf(sqlerr.ErrInternal, "rowset: column %q not present in memtable chunk", col.Name)
		}
		indices[i] = ci
		names[i] = col.Name
	}
	out := c.Project(indices, names)
	if withRowHandle {
		// Rows still in the memtable haven't been assigned a row-handle
		// yet (that happens only once a row-set is sealed); a negative
		// id marks them as "not yet durable" for DELETE, which targets
		// committed rows only in practice since this is a single-
		// statement read view taken after the triggering statement's own
		// writes, if any.
		b := chunk.NewBuilder(value.Int64.NotNull(), out.NumRows())
		for i := 0; i < out.NumRows(); i++ {
			b.Append(value.NewInt64(-1))
		}
		out.Columns = append(out.Columns, b.Finish())
		out.Names = append(out.Names, "__row_handle__")
	}
	return out, nil
}

func (it *rowIter) Close() error { return nil }
