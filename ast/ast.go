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

// Package ast is quiver's parser-agnostic statement tree: the boundary
// type the binder consumes. The real PostgreSQL-dialect grammar lives
// outside the core (spec 1: "an external PostgreSQL-dialect parser is
// assumed") — package parser adapts github.com/pganalyze/pg_query_go's
// libpg_query-backed AST into these plain structs, so that the binder
// (the first layer this spec actually covers) never depends on the
// parser's wire format directly.
package ast

// Statement is any top-level SQL statement quiver accepts.
type Statement interface{ isStatement() }

// JoinKind enumerates the join operators spec 6 lists.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// TableExpr is a FROM-clause element: either a base table reference or a
// join of two TableExprs.
type TableExpr interface{ isTableExpr() }

// TableName is a (possibly aliased) base table reference.
type TableName struct {
	Schema string
	Name   string
	Alias  string
}

func (TableName) isTableExpr() {}

// Join is an explicit JOIN ... ON, or a comma-FROM cross join when On is
// nil and Kind is JoinCross (spec 4.2: "comma-FROM becomes cross-join +
// WHERE").
type Join struct {
	Left, Right TableExpr
	Kind        JoinKind
	On          Expr
}

func (Join) isTableExpr() {}

// Expr is any scalar expression in the parsed tree, pre-binding.
type Expr interface{ isExpr() }

// ColumnRef is an unresolved, possibly table-qualified column name.
type ColumnRef struct {
	Table string // "" if unqualified
	Name  string
}

func (ColumnRef) isExpr() {}

// Star represents SELECT * (spec 4.1: rewritten to the concrete column
// list at bind time).
type Star struct{ Table string } // Table == "" means unqualified *

func (Star) isExpr() {}

// Literal is a constant whose kind is already known; the parser adapter
// resolves integer/float/string/bool/null literals into a LiteralValue
// at parse time since literal kind is syntactic, not a binding concern.
type Literal struct{ Value LiteralValue }

func (Literal) isExpr() {}

// LiteralValue avoids an import cycle between ast and value while still
// giving the binder a concrete literal to type: the binder's bindLiteral
// converts this into a value.Value once, using the same union shape.
type LiteralValue struct {
	Null    bool
	Bool    bool
	IsBool  bool
	Int     int64
	IsInt   bool
	Float   float64
	IsFloat bool
	Str     string
	IsStr   bool
}

// BinaryExpr is any two-operand operator: arithmetic, comparison, or
// boolean (AND/OR).
type BinaryExpr struct {
	Op          string // "+","-","*","/","=","<>","<","<=",">",">=","AND","OR","LIKE"
	Left, Right Expr
}

func (BinaryExpr) isExpr() {}

// UnaryExpr is NOT or unary minus.
type UnaryExpr struct {
	Op      string // "NOT", "-"
	Operand Expr
}

func (UnaryExpr) isExpr() {}

// FuncCall is a function or aggregate call: COUNT(*), SUM(x), etc.
type FuncCall struct {
	Name     string
	Args     []Expr
	Star     bool // COUNT(*)
	Distinct bool
}

func (FuncCall) isExpr() {}

// IsNull is IS [NOT] NULL.
type IsNull struct {
	Operand Expr
	Not     bool
}

func (IsNull) isExpr() {}

// InList is x [NOT] IN (e1, e2, ...).
type InList struct {
	Operand Expr
	List    []Expr
	Not     bool
}

func (InList) isExpr() {}

// CaseExpr models CASE WHEN c1 THEN r1 ... ELSE e END.
type CaseExpr struct {
	Whens []CaseWhen
	Else  Expr // nil if absent
}

func (CaseExpr) isExpr() {}

type CaseWhen struct {
	Cond   Expr
	Result Expr
}

// Cast is an explicit CAST(expr AS type) / expr::type.
type Cast struct {
	Operand  Expr
	TypeName string
}

func (Cast) isExpr() {}

// ResTarget is one SELECT-list entry.
type ResTarget struct {
	Expr  Expr
	Alias string // "" if none given
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is a bound-eligible SELECT.
type SelectStmt struct {
	Distinct bool
	Targets  []ResTarget
	From     TableExpr // nil for `SELECT <const-expr>` with no FROM
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderItem
	Limit    *int64
	Offset   *int64
}

func (SelectStmt) isStatement() {}

// InsertStmt models both `INSERT ... VALUES` and `INSERT ... SELECT`
// (spec 4.2 logical mapping table).
type InsertStmt struct {
	Table   TableName
	Columns []string // explicit column list, or nil for "all columns in order"
	Values  [][]Expr // literal rows; nil when Select != nil
	Select  *SelectStmt
}

func (InsertStmt) isStatement() {}

// DeleteStmt is `DELETE FROM t WHERE p` (spec 6: single-table only).
type DeleteStmt struct {
	Table TableName
	Where Expr
}

func (DeleteStmt) isStatement() {}

// ColumnDef is one CREATE TABLE column definition.
type ColumnDef struct {
	Name       string
	Type       string // raw type name as written ("INT", "DECIMAL(10,2)", ...); resolved by the binder
	Precision  int
	Scale      int
	NotNull    bool
	PrimaryKey bool
}

// CreateTableStmt is `CREATE TABLE t (...)`.
type CreateTableStmt struct {
	Table   TableName
	Columns []ColumnDef
}

func (CreateTableStmt) isStatement() {}

// DropTableStmt is `DROP TABLE t`.
type DropTableStmt struct {
	Table    TableName
	IfExists bool
}

func (DropTableStmt) isStatement() {}

// ExplainStmt wraps another statement for plan rendering instead of
// execution (spec 4.5).
type ExplainStmt struct {
	Statement Statement
}

func (ExplainStmt) isStatement() {}
