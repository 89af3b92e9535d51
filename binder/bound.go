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

// Package binder implements quiver's name resolution and type checking
// layer (spec 4.1): it consumes the parser-agnostic ast tree and the
// catalog and emits a bound tree in which every column reference carries
// a table-ref id and catalog column id, and every expression carries a
// resolved value.Type. The Logical Planner (package plan) is the only
// consumer of this package's output.
package binder

import (
	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
)

// Statement is any bound, type-checked top-level statement.
type Statement interface{ isBoundStatement() }

// TableExpr is a bound FROM-clause element, carrying resolved table-ref
// ids instead of names.
type TableExpr interface{ isBoundTableExpr() }

// Scan is a bound base-table reference: TableRef is the id assigned to
// this occurrence of the table within the statement being bound (spec
// 3: "column-ref (by table-ref-id + column-id)"); the same catalog table
// referenced twice (self-join) gets two different TableRef ids.
type Scan struct {
	TableRef int
	Table    *catalog.Table
}

func (Scan) isBoundTableExpr() {}

// Join is a bound JOIN/cross-join.
type Join struct {
	Left, Right TableExpr
	Kind        ast.JoinKind
	On          expr.Expr // nil for cross join
}

func (Join) isBoundTableExpr() {}

// Target is one bound SELECT-list entry: a typed expression plus its
// display name (the user alias, the source column name, or a
// synthesized name for a bare expression).
type Target struct {
	Expr expr.Expr
	Name string
}

// OrderItem is one bound ORDER BY entry.
type OrderItem struct {
	Expr expr.Expr
	Desc bool
}

// Select is a bound SELECT statement (spec 4.2's mapping-table source
// form).
type Select struct {
	Distinct bool
	From     TableExpr // nil for `SELECT <const-expr>` with no FROM
	Where    expr.Expr
	GroupBy  []expr.Expr
	Having   expr.Expr
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
	Targets  []Target
}

func (*Select) isBoundStatement() {}

// Insert models both `INSERT ... VALUES` and `INSERT ... SELECT` (spec
// 4.2). ColumnIndexes[i] gives the position within Table.Columns that
// the i-th value of each VALUES row (or the i-th Select output column)
// is written to; columns omitted from an explicit column list are not
// present here and are padded with NULL by the Insert operator
// (rowexec); binding fails instead if the omitted column is NOT NULL
// (spec 4.1).
type Insert struct {
	Table         *catalog.Table
	ColumnIndexes []int
	Values        [][]expr.Expr // nil when Select != nil
	Select        *Select
}

func (*Insert) isBoundStatement() {}

// Delete is a bound `DELETE FROM t WHERE p` (spec 6: single-table only).
type Delete struct {
	Table    *catalog.Table
	TableRef int
	Where    expr.Expr
}

func (*Delete) isBoundStatement() {}

// CreateTable is a bound `CREATE TABLE t (...)`.
type CreateTable struct {
	Name    string
	Columns []catalog.Column
}

func (*CreateTable) isBoundStatement() {}

// DropTable is a bound `DROP TABLE t`.
type DropTable struct {
	Name     string
	IfExists bool
}

func (*DropTable) isBoundStatement() {}

// Explain wraps another bound statement for plan rendering instead of
// execution (spec 4.5).
type Explain struct {
	Statement Statement
}

func (*Explain) isBoundStatement() {}
