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

// Package storage defines the interfaces the in-memory engine
// (storage/memory) and the on-disk columnar engine (storage/rowset)
// both implement (spec 4.6: "Two engines share one interface: Storage,
// Table, Transaction, RowHandler").
package storage

import (
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
)

// RowHandle identifies a row within a table for its lifetime. The
// in-memory engine packs (chunk index, row-within-chunk) into it; the
// on-disk engine packs (row-set id, intra-row-set row index) (spec
// 4.6: "stable within a table's lifetime").
type RowHandle int64

// Storage opens and manages tables for one database (spec 4.6). A
// process holds exactly one Storage per Database, chosen at
// construction time (storage/memory.New or storage/rowset.Open).
type Storage interface {
	// OpenTable returns the Table backing a catalog table, creating its
	// on-disk/in-memory state the first time it's referenced.
	OpenTable(t *catalog.Table) (Table, error)
	// DropTable discards all rows and on-disk state for t.
	DropTable(t *catalog.Table) error
	// Close releases resources (file handles, block cache) held by
	// every open table.
	Close() error
}

// Snapshot is a single-statement read view (spec 9: "a single-statement
// read view, not a full transaction/isolation system"): it fixes which
// row-sets/chunks a scan sees for the duration of one statement so a
// concurrent writer cannot change the row count mid-scan.
type Snapshot interface {
	// Scan returns a Transaction-scoped Iter over the table's rows as of
	// the moment the snapshot was taken, honouring the given column
	// projection and whether to append a trailing row-handle column.
	Scan(projection []catalog.Column, withRowHandle bool) (RowIter, error)
}

// RowIter is the storage-level pull contract a scan operator drives; it
// differs from chunk.Iter only in name, kept distinct so storage
// engines don't need to import rowexec's operator vocabulary.
type RowIter interface {
	Next() (chunk.Chunk, error)
	Close() error
}

// Table is one catalog table's storage-side handle (spec 4.6).
type Table interface {
	// Snapshot takes a read view for one statement.
	Snapshot() (Snapshot, error)
	// Writer returns a handle append-only writers use to stage new rows;
	// Commit (or, on the in-memory engine, each Append) makes them
	// visible to subsequent snapshots.
	Writer() Writer
	// MarkDeleted flips the delete bit for each given row handle.
	MarkDeleted(handles []RowHandle) error
}

// Writer accumulates rows for one INSERT statement (spec 4.5: "Insert
// materializes its child stream; for each row appends to the target
// table's writer; on end-of-stream, commits the row-set").
type Writer interface {
	Append(c chunk.Chunk) error
	Commit() error
}
