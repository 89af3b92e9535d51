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

package quiver

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// The six scenarios below are the end-to-end behaviors spec 8 names
// literally; each is a standing regression test for the whole
// parser -> binder -> plan -> optimizer -> rowexec pipeline.

func TestRun_AggregatesAfterInsert(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE t(v1 INT, v2 INT, v3 INT);
INSERT INTO t VALUES (1,10,100),(2,20,200),(3,30,300);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT SUM(v1), COUNT(*) FROM t;`)
	require.NoError(err)
	require.Len(chunks, 1)
	require.Equal(1, chunks[0].NumRows())
	require.Equal(int64(6), chunks[0].Columns[0].Get(0).Int64())
	require.Equal(int64(3), chunks[0].Columns[1].Get(0).Int64())
}

func TestRun_FilterOrderLimit(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE t(v INT);
INSERT INTO t VALUES (1),(2),(3),(4),(5);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT v FROM t WHERE v>2 ORDER BY v DESC LIMIT 2;`)
	require.NoError(err)
	require.Len(chunks, 1)
	require.Equal(2, chunks[0].NumRows())
	require.Equal(int32(4), chunks[0].Columns[0].Get(0).Int32())
	require.Equal(int32(3), chunks[0].Columns[0].Get(1).Int32())
}

func TestRun_LeftJoinWithNullKeys(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE a(k INT, x INT);
CREATE TABLE b(k INT, y INT);
INSERT INTO a VALUES (1,10),(2,20),(NULL,99);
INSERT INTO b VALUES (1,100),(3,300);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT x, y FROM a LEFT JOIN b ON a.k=b.k ORDER BY x;`)
	require.NoError(err)
	require.Len(chunks, 1)
	c := chunks[0]
	require.Equal(3, c.NumRows())

	require.Equal(int32(10), c.Columns[0].Get(0).Int32())
	require.Equal(int32(100), c.Columns[1].Get(0).Int32())

	require.Equal(int32(20), c.Columns[0].Get(1).Int32())
	require.False(c.Columns[1].IsValid(1))

	require.Equal(int32(99), c.Columns[0].Get(2).Int32())
	require.False(c.Columns[1].IsValid(2))
}

func TestRun_RightAndFullOuterJoinDrainUnmatchedBuildRows(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE a(k INT, x INT);
CREATE TABLE b(k INT, y INT);
INSERT INTO a VALUES (1,10);
INSERT INTO b VALUES (1,100),(2,200);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT x, y FROM a RIGHT JOIN b ON a.k=b.k ORDER BY y;`)
	require.NoError(err)
	require.Len(chunks, 1)
	c := chunks[0]
	require.Equal(2, c.NumRows())
	require.Equal(int32(10), c.Columns[0].Get(0).Int32())
	require.Equal(int32(100), c.Columns[1].Get(0).Int32())
	require.False(c.Columns[0].IsValid(1))
	require.Equal(int32(200), c.Columns[1].Get(1).Int32())

	chunks, err = db.Run(`SELECT x, y FROM a FULL JOIN b ON a.k=b.k ORDER BY y;`)
	require.NoError(err)
	require.Len(chunks, 1)
	c = chunks[0]
	require.Equal(2, c.NumRows())
	require.Equal(int32(10), c.Columns[0].Get(0).Int32())
	require.Equal(int32(100), c.Columns[1].Get(0).Int32())
	require.False(c.Columns[0].IsValid(1))
	require.Equal(int32(200), c.Columns[1].Get(1).Int32())
}

func TestRun_ConstantFolding(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	chunks, err := db.Run(`SELECT 1+2*3;`)
	require.NoError(err)
	require.Len(chunks, 1)
	require.Equal(1, chunks[0].NumRows())
	require.Equal(int32(7), chunks[0].Columns[0].Get(0).Int32())
}

func TestRun_GroupByHaving(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE t(k INT, v INT);
INSERT INTO t VALUES (1,1),(1,2),(2,3),(2,4),(3,5);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT k, SUM(v) FROM t GROUP BY k HAVING SUM(v) > 3 ORDER BY k;`)
	require.NoError(err)
	require.Len(chunks, 1)
	c := chunks[0]
	require.Equal(2, c.NumRows())
	require.Equal(int32(2), c.Columns[0].Get(0).Int32())
	require.Equal(int64(7), c.Columns[1].Get(0).Int64())
	require.Equal(int32(3), c.Columns[0].Get(1).Int32())
	require.Equal(int64(5), c.Columns[1].Get(1).Int64())
}

func TestRun_InsertDeleteCount(t *testing.T) {
	require := require.New(t)
	db := New()
	defer db.Close()

	_, err := db.Run(`CREATE TABLE t(k INT);`)
	require.NoError(err)

	chunks, err := db.Run(`INSERT INTO t VALUES (1); DELETE FROM t WHERE k=1; SELECT COUNT(*) FROM t WHERE k=1;`)
	require.NoError(err)
	require.Len(chunks, 3)
	require.Equal(int64(0), chunks[2].Columns[0].Get(0).Int64())
}

func TestRun_OnDiskBackend(t *testing.T) {
	require := require.New(t)
	dir, err := os.MkdirTemp("", "quiver-test-*")
	require.NoError(err)
	defer os.RemoveAll(dir)

	db, err := NewOnDisk(Options{Path: dir})
	require.NoError(err)
	defer db.Close()

	_, err = db.Run(`CREATE TABLE t(k INT, v INT); INSERT INTO t VALUES (1,10),(2,20);`)
	require.NoError(err)

	chunks, err := db.Run(`SELECT k, v FROM t ORDER BY k;`)
	require.NoError(err)
	require.Len(chunks, 1)
	require.Equal(2, chunks[0].NumRows())
	require.Equal(int32(1), chunks[0].Columns[0].Get(0).Int32())
	require.Equal(int32(20), chunks[0].Columns[1].Get(1).Int32())
}
