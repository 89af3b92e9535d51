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

package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/binder"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/parser"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

func rewriteSQL(t *testing.T, cat *catalog.Catalog, sql string) plan.Logical {
	stmts, err := parser.Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	bound, err := binder.Bind(stmts[0], cat)
	require.NoError(t, err)
	l, err := plan.Build(bound)
	require.NoError(t, err)
	return Rewrite(l)
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

func TestRewrite_FoldsConstantArithmeticInProjection(t *testing.T) {
	cat := newTestCatalog(t)
	l := rewriteSQL(t, cat, "SELECT 1+2*3 FROM t;")
	proj := l.(plan.LogicalProject)
	lit, ok := proj.Exprs[0].(*expr.Literal)
	require.True(t, ok)
	require.Equal(t, int32(7), lit.Val.Int32())
}

func TestRewrite_FusesFilterIntoScanPredicate(t *testing.T) {
	cat := newTestCatalog(t)
	l := rewriteSQL(t, cat, "SELECT v FROM t WHERE k > 1;")
	proj := l.(plan.LogicalProject)
	scan, ok := proj.Input.(plan.LogicalScan)
	require.True(t, ok)
	require.NotNil(t, scan.Predicate)
}

func TestRewrite_FusesLimitAndOrderIntoTopN(t *testing.T) {
	cat := newTestCatalog(t)
	l := rewriteSQL(t, cat, "SELECT v FROM t ORDER BY v LIMIT 5;")
	proj := l.(plan.LogicalProject)
	topn, ok := proj.Input.(plan.LogicalTopN)
	require.True(t, ok)
	require.Equal(t, int64(5), topn.Limit)
}

func TestRewrite_SplitsFilterAboveJoinByTableReference(t *testing.T) {
	cat := catalog.New()
	_, err := cat.CreateTable("a", []catalog.Column{{Name: "k", Type: value.Int32.NotNull()}, {Name: "x", Type: value.Int32}})
	require.NoError(t, err)
	_, err = cat.CreateTable("b", []catalog.Column{{Name: "k", Type: value.Int32.NotNull()}, {Name: "y", Type: value.Int32}})
	require.NoError(t, err)

	l := rewriteSQL(t, cat, "SELECT x, y FROM a JOIN b ON a.k=b.k WHERE a.x > 1 AND b.y > 2;")
	proj := l.(plan.LogicalProject)
	join, ok := proj.Input.(plan.LogicalJoin)
	require.True(t, ok)

	// Both single-table clauses must have been pushed below the join
	// (and then fused into the scans they landed on), leaving only the
	// join condition itself at the join node.
	leftScan, ok := join.Left.(plan.LogicalScan)
	require.True(t, ok)
	require.NotNil(t, leftScan.Predicate)
	rightScan, ok := join.Right.(plan.LogicalScan)
	require.True(t, ok)
	require.NotNil(t, rightScan.Predicate)
}

func TestRewrite_SimplifiesAdditiveIdentity(t *testing.T) {
	cat := newTestCatalog(t)
	l := rewriteSQL(t, cat, "SELECT k+0 FROM t;")
	proj := l.(plan.LogicalProject)
	ref, ok := proj.Exprs[0].(*expr.ColumnRef)
	require.True(t, ok)
	require.Equal(t, "k", ref.Name)
}
