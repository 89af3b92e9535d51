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

package binder

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/parser"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

func bindSQL(t *testing.T, cat *catalog.Catalog, sql string) (Statement, error) {
	stmts, err := parser.Parse(sql)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	return Bind(stmts[0], cat)
}

func newCatalogWithAB(t *testing.T) *catalog.Catalog {
	cat := catalog.New()
	_, err := cat.CreateTable("a", []catalog.Column{
		{Name: "k", Type: value.Int32.NotNull()},
		{Name: "x", Type: value.Int32},
	})
	require.NoError(t, err)
	_, err = cat.CreateTable("b", []catalog.Column{
		{Name: "k", Type: value.Int32.NotNull()},
		{Name: "y", Type: value.Int32},
	})
	require.NoError(t, err)
	return cat
}

func TestBind_StarExpandsToConcreteColumns(t *testing.T) {
	cat := newCatalogWithAB(t)
	stmt, err := bindSQL(t, cat, "SELECT * FROM a;")
	require.NoError(t, err)
	sel := stmt.(*Select)
	require.Len(t, sel.Targets, 2)
	require.Equal(t, "k", sel.Targets[0].Name)
	require.Equal(t, "x", sel.Targets[1].Name)
}

func TestBind_AmbiguousColumnAcrossJoinedTablesFails(t *testing.T) {
	cat := newCatalogWithAB(t)
	_, err := bindSQL(t, cat, "SELECT k FROM a JOIN b ON a.k=b.k;")
	require.Error(t, err)
	require.Equal(t, sqlerr.ErrAmbiguousColumn, errors.Cause(err))
}

func TestBind_UnknownTableFails(t *testing.T) {
	cat := newCatalogWithAB(t)
	_, err := bindSQL(t, cat, "SELECT * FROM nope;")
	require.Error(t, err)
	require.Equal(t, sqlerr.ErrUnknownTable, errors.Cause(err))
}

func TestBind_UnknownColumnFails(t *testing.T) {
	cat := newCatalogWithAB(t)
	_, err := bindSQL(t, cat, "SELECT nope FROM a;")
	require.Error(t, err)
	require.Equal(t, sqlerr.ErrUnknownColumn, errors.Cause(err))
}

func TestBind_DuplicateTableNameInFromFails(t *testing.T) {
	cat := newCatalogWithAB(t)
	_, err := bindSQL(t, cat, "SELECT * FROM a JOIN a ON a.k=a.k;")
	require.Error(t, err)
	require.Equal(t, sqlerr.ErrDuplicateTable, errors.Cause(err))
}

func TestBind_InsertReordersExplicitColumnList(t *testing.T) {
	cat := newCatalogWithAB(t)
	stmt, err := bindSQL(t, cat, "INSERT INTO a (x, k) VALUES (10, 1);")
	require.NoError(t, err)
	ins := stmt.(*Insert)
	// a's definition order is (k, x); an explicit (x, k) list must map
	// back to indexes [1, 0].
	require.Equal(t, []int{1, 0}, ins.ColumnIndexes)
}

func TestBind_InsertOmittingNotNullColumnFails(t *testing.T) {
	cat := catalog.New()
	_, err := cat.CreateTable("t", []catalog.Column{
		{Name: "k", Type: value.Int32.NotNull()},
		{Name: "v", Type: value.Int32},
	})
	require.NoError(t, err)
	_, err = bindSQL(t, cat, "INSERT INTO t (v) VALUES (1);")
	require.Error(t, err)
	require.Equal(t, sqlerr.ErrNotNullViolation, errors.Cause(err))
}

func TestBind_DropTableBindsNameAndIfExists(t *testing.T) {
	cat := newCatalogWithAB(t)
	stmt, err := bindSQL(t, cat, "DROP TABLE IF EXISTS a;")
	require.NoError(t, err)
	drop := stmt.(*DropTable)
	require.Equal(t, "a", drop.Name)
	require.True(t, drop.IfExists)
}

func TestBind_ExplainWrapsInnerStatement(t *testing.T) {
	cat := newCatalogWithAB(t)
	stmt, err := bindSQL(t, cat, "EXPLAIN SELECT * FROM a;")
	require.NoError(t, err)
	ex := stmt.(*Explain)
	_, ok := ex.Statement.(*Select)
	require.True(t, ok)
}
