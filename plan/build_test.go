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

package plan

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/binder"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/parser"
	"github.com/quiverdb/quiver/value"
)

func buildSQL(t *testing.T, cat *catalog.Catalog, sql string) Logical {
	stmts, err := parser.Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	bound, err := binder.Bind(stmts[0], cat)
	require.NoError(t, err)
	l, err := Build(bound)
	require.NoError(t, err)
	return l
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	cat := catalog.New()
	_, err := cat.CreateTable("t", []catalog.Column{
		{Name: "k", Type: value.Int32.NotNull()},
		{Name: "v", Type: value.Int32},
	})
	require.NoError(t, err)
	return cat
}

func TestBuild_SimpleSelectIsScanThenProject(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "SELECT v FROM t WHERE k > 1;")
	proj, ok := l.(LogicalProject)
	require.True(t, ok)
	filt, ok := proj.Input.(LogicalFilter)
	require.True(t, ok)
	_, ok = filt.Input.(LogicalScan)
	require.True(t, ok)
}

func TestBuild_GroupByAggRewritesTargetToInputRef(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "SELECT k, SUM(v) FROM t GROUP BY k;")
	proj, ok := l.(LogicalProject)
	require.True(t, ok)
	require.Len(t, proj.Exprs, 2)

	// The second projection target was `SUM(v)`; after aggregate
	// extraction it must reference the Agg node's output column, not
	// embed the AggExpr directly.
	ref, ok := proj.Exprs[1].(*expr.InputRef)
	require.True(t, ok)
	require.Equal(t, 1, ref.Index)

	agg, ok := proj.Input.(LogicalAgg)
	require.True(t, ok)
	require.Len(t, agg.Aggs, 1)
	require.Len(t, agg.GroupBy, 1)
}

func TestBuild_HavingFiltersAfterAgg(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "SELECT k, SUM(v) FROM t GROUP BY k HAVING SUM(v) > 1;")
	proj := l.(LogicalProject)
	filt, ok := proj.Input.(LogicalFilter)
	require.True(t, ok)
	_, ok = filt.Input.(LogicalAgg)
	require.True(t, ok)
}

func TestBuild_DeleteScansWithRowHandle(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "DELETE FROM t WHERE k = 1;")
	del, ok := l.(LogicalDelete)
	require.True(t, ok)
	filt, ok := del.Input.(LogicalFilter)
	require.True(t, ok)
	scan, ok := filt.Input.(LogicalScan)
	require.True(t, ok)
	require.True(t, scan.WithRowHandle)
}

func TestBuild_InsertValuesCarriesColumnIndexes(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "INSERT INTO t (v, k) VALUES (10, 1);")
	ins, ok := l.(LogicalInsert)
	require.True(t, ok)
	require.Equal(t, []int{1, 0}, ins.ColumnIndexes)
	values, ok := ins.Input.(LogicalValues)
	require.True(t, ok)
	require.Len(t, values.Rows, 1)
}

func TestBuild_CreateAndDropTable(t *testing.T) {
	cat := catalog.New()
	l := buildSQL(t, cat, "CREATE TABLE s(a INT);")
	create, ok := l.(LogicalCreateTable)
	require.True(t, ok)
	require.Equal(t, "s", create.Name)

	_, err := cat.CreateTable("s", create.Columns)
	require.NoError(t, err)

	l = buildSQL(t, cat, "DROP TABLE IF EXISTS s;")
	drop, ok := l.(LogicalDropTable)
	require.True(t, ok)
	require.Equal(t, "s", drop.Name)
	require.True(t, drop.IfExists)
}

func TestBuild_ExplainWrapsInnerPlan(t *testing.T) {
	cat := newTestCatalog(t)
	l := buildSQL(t, cat, "EXPLAIN SELECT v FROM t;")
	ex, ok := l.(LogicalExplain)
	require.True(t, ok)
	_, ok = ex.Input.(LogicalProject)
	require.True(t, ok)
}
