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

package memory

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/value"
)

func newTestTable(t *testing.T) *catalog.Table {
	cat := catalog.New()
	tbl, err := cat.CreateTable("t", []catalog.Column{
		{Name: "k", Type: value.Int32.NotNull()},
	})
	require.NoError(t, err)
	return tbl
}

func oneColChunk(t *testing.T, vals ...int32) chunk.Chunk {
	b := chunk.NewBuilder(value.Int32.NotNull(), len(vals))
	for _, v := range vals {
		b.Append(value.NewInt32(v))
	}
	c, err := chunk.New([]string{"k"}, []chunk.Array{b.Finish()})
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, it storage.RowIter) []int32 {
	var out []int32
	for {
		c, err := it.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		for r := 0; r < c.NumRows(); r++ {
			out = append(out, c.Columns[0].Get(r).Int32())
		}
	}
}

func TestEngine_AppendAndScanSeesAllChunks(t *testing.T) {
	eng := New()
	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)

	w := st.Writer()
	require.NoError(t, w.Append(oneColChunk(t, 1, 2)))
	require.NoError(t, w.Append(oneColChunk(t, 3)))
	require.NoError(t, w.Commit())

	snap, err := st.Snapshot()
	require.NoError(t, err)
	rows, err := snap.Scan(tbl.Columns, false)
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{1, 2, 3}, drain(t, rows))
	require.NoError(t, rows.Close())
}

func TestEngine_SnapshotIsFixedAtCallTime(t *testing.T) {
	eng := New()
	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)

	w := st.Writer()
	require.NoError(t, w.Append(oneColChunk(t, 1)))
	require.NoError(t, w.Commit())

	snap, err := st.Snapshot()
	require.NoError(t, err)

	// Append after the snapshot was taken; the snapshot must not see it.
	require.NoError(t, w.Append(oneColChunk(t, 2)))

	rows, err := snap.Scan(tbl.Columns, false)
	require.NoError(t, err)
	require.Equal(t, []int32{1}, drain(t, rows))
	require.NoError(t, rows.Close())
}

func TestEngine_MarkDeletedHidesRowFromLaterSnapshots(t *testing.T) {
	eng := New()
	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)

	w := st.Writer()
	require.NoError(t, w.Append(oneColChunk(t, 1, 2, 3)))
	require.NoError(t, w.Commit())

	snap, err := st.Snapshot()
	require.NoError(t, err)
	rows, err := snap.Scan(tbl.Columns, true)
	require.NoError(t, err)

	var handles []storage.RowHandle
	for {
		c, err := rows.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		handleCol := c.Columns[len(c.Columns)-1]
		for r := 0; r < c.NumRows(); r++ {
			if c.Columns[0].Get(r).Int32() == 2 {
				handles = append(handles, storage.RowHandle(handleCol.Get(r).Int64()))
			}
		}
	}
	require.NoError(t, rows.Close())
	require.Len(t, handles, 1)

	require.NoError(t, st.MarkDeleted(handles))

	snap2, err := st.Snapshot()
	require.NoError(t, err)
	rows2, err := snap2.Scan(tbl.Columns, false)
	require.NoError(t, err)
	require.ElementsMatch(t, []int32{1, 3}, drain(t, rows2))
	require.NoError(t, rows2.Close())
}

func TestEngine_DropTableRemovesItFromTheEngine(t *testing.T) {
	eng := New()
	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)
	require.NoError(t, st.Writer().Append(oneColChunk(t, 1)))

	require.NoError(t, eng.DropTable(tbl))

	// Re-opening the same catalog table ID starts a fresh, empty table.
	st2, err := eng.OpenTable(tbl)
	require.NoError(t, err)
	snap, err := st2.Snapshot()
	require.NoError(t, err)
	rows, err := snap.Scan(tbl.Columns, false)
	require.NoError(t, err)
	require.Empty(t, drain(t, rows))
	require.NoError(t, rows.Close())
}
