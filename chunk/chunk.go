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

package chunk

import (
	"fmt"

	"github.com/quiverdb/quiver/sqlerr"
)

// Chunk is a named, ordered sequence of equal-length Arrays: the sole
// unit of data flow between operators (spec 3).
//
// RowCount only matters for a zero-column chunk (e.g. `SELECT 1+2` with
// no FROM clause, or a DELETE's affected-row count before it's wrapped
// in a named column): with at least one column, NumRows derives the
// count from the columns themselves and RowCount is ignored.
type Chunk struct {
	Names    []string
	Columns  []Array
	RowCount int
}

// New builds a Chunk, validating that every column has the same length
// (spec invariant).
func New(names []string, cols []Array) (Chunk, error) {
	if len(names) != len(cols) {
		return Chunk{}, sqlerr.Wrapf(sqlerr.ErrInternal, "chunk: %d names but %d columns", len(names), len(cols))
	}
	if len(cols) > 0 {
		n := cols[0].Len()
		for i, c := range cols {
			if c.Len() != n {
				return Chunk{}, sqlerr.Wrapf(sqlerr.ErrInternal, "chunk: column %d has length %d, want %d", i, c.Len(), n)
			}
		}
	}
	return Chunk{Names: names, Columns: cols}, nil
}

// NumCols returns the column count.
func (c Chunk) NumCols() int { return len(c.Columns) }

// NumRows returns the row count: the first column's length, or RowCount
// for a columnless chunk.
func (c Chunk) NumRows() int {
	if len(c.Columns) == 0 {
		return c.RowCount
	}
	return c.Columns[0].Len()
}

// ColumnIndex returns the position of name in c.Names, case-insensitively
// is NOT performed here (that's the binder's job against the catalog);
// this is an exact lookup used by the executor once names are already
// resolved.
func (c Chunk) ColumnIndex(name string) (int, bool) {
	for i, n := range c.Names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Take returns a new Chunk containing only the rows in sel, in order —
// the vectorized primitive behind Filter and behind row reordering in
// joins/sorts.
func (c Chunk) Take(sel []int) Chunk {
	cols := make([]Array, len(c.Columns))
	for i, col := range c.Columns {
		cols[i] = col.Take(sel)
	}
	return Chunk{Names: c.Names, Columns: cols, RowCount: len(sel)}
}

// Project returns a new Chunk containing only the listed column indices,
// in order, renamed to names.
func (c Chunk) Project(indices []int, names []string) Chunk {
	cols := make([]Array, len(indices))
	for i, idx := range indices {
		cols[i] = c.Columns[idx]
	}
	return Chunk{Names: names, Columns: cols, RowCount: c.NumRows()}
}

func (c Chunk) String() string {
	return fmt.Sprintf("Chunk{cols=%d rows=%d}", c.NumCols(), c.NumRows())
}

// Iter is the push/pull contract every operator implements: Next
// returns the next Chunk or io.EOF. Callers must not call Next again
// after an error (including io.EOF). Close releases resources (pinned
// cache entries, open files) and is idempotent; it is always called,
// even after an error, by the consumer that owns the Iter.
//
// This is quiver's "single-shot future of an optional chunk" (design
// notes): a pull-based synchronous analogue of an async stream, chosen
// because the core is single-threaded-per-query (spec 5) and a
// goroutine-per-operator pipeline would add scheduling overhead with no
// benefit here.
type Iter interface {
	Next() (Chunk, error)
	Close() error
}
