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
	"io"
	"os"
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
		{Name: "v", Type: value.Int32},
	})
	require.NoError(t, err)
	return tbl
}

func oneRowChunk(t *testing.T, k int32, v int32, vNull bool) chunk.Chunk {
	kb := chunk.NewBuilder(value.Int32.NotNull(), 1)
	kb.Append(value.NewInt32(k))
	vb := chunk.NewBuilder(value.Int32, 1)
	if vNull {
		vb.AppendNull()
	} else {
		vb.Append(value.NewInt32(v))
	}
	c, err := chunk.New([]string{"k", "v"}, []chunk.Array{kb.Finish(), vb.Finish()})
	require.NoError(t, err)
	return c
}

func drain(t *testing.T, it storage.RowIter) []chunk.Chunk {
	var out []chunk.Chunk
	for {
		c, err := it.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, c)
	}
}

func TestEngine_WriteFlushRead(t *testing.T) {
	dir, err := os.MkdirTemp("", "rowset-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	eng, err := Open(Options{Path: dir, TargetBlockSize: 4096, CacheSizeBytes: 1 << 20})
	require.NoError(t, err)
	defer eng.Close()

	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)

	w := st.Writer()
	require.NoError(t, w.Append(oneRowChunk(t, 1, 10, false)))
	require.NoError(t, w.Append(oneRowChunk(t, 2, 0, true)))
	require.NoError(t, w.Commit())

	snap, err := st.Snapshot()
	require.NoError(t, err)
	rows, err := snap.Scan(tbl.Columns, false)
	require.NoError(t, err)
	chunks := drain(t, rows)
	require.NoError(t, rows.Close())

	var k []int32
	var vValid []bool
	for _, c := range chunks {
		for r := 0; r < c.NumRows(); r++ {
			k = append(k, c.Columns[0].Get(r).Int32())
			vValid = append(vValid, c.Columns[1].IsValid(r))
		}
	}
	require.ElementsMatch(t, []int32{1, 2}, k)
	require.Contains(t, vValid, true)
	require.Contains(t, vValid, false)
}

func TestEngine_MarkDeletedHidesRow(t *testing.T) {
	dir, err := os.MkdirTemp("", "rowset-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	eng, err := Open(Options{Path: dir, TargetBlockSize: 4096, CacheSizeBytes: 1 << 20})
	require.NoError(t, err)
	defer eng.Close()

	tbl := newTestTable(t)
	st, err := eng.OpenTable(tbl)
	require.NoError(t, err)

	w := st.Writer()
	require.NoError(t, w.Append(oneRowChunk(t, 1, 10, false)))
	require.NoError(t, w.Append(oneRowChunk(t, 2, 20, false)))
	require.NoError(t, w.Commit())

	snap, err := st.Snapshot()
	require.NoError(t, err)
	rows, err := snap.Scan(tbl.Columns, true)
	require.NoError(t, err)
	chunks := drain(t, rows)
	require.NoError(t, rows.Close())

	var handles []storage.RowHandle
	for _, c := range chunks {
		handleCol := c.Columns[len(c.Columns)-1]
		for r := 0; r < c.NumRows(); r++ {
			if c.Columns[0].Get(r).Int32() == 1 {
				handles = append(handles, storage.RowHandle(handleCol.Get(r).Int64()))
			}
		}
	}
	require.Len(t, handles, 1)
	require.NoError(t, st.MarkDeleted(handles))

	snap2, err := st.Snapshot()
	require.NoError(t, err)
	rows2, err := snap2.Scan(tbl.Columns, false)
	require.NoError(t, err)
	chunks2 := drain(t, rows2)
	require.NoError(t, rows2.Close())

	var remaining []int32
	for _, c := range chunks2 {
		for r := 0; r < c.NumRows(); r++ {
			remaining = append(remaining, c.Columns[0].Get(r).Int32())
		}
	}
	require.Equal(t, []int32{2}, remaining)
}
