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

// Package plan implements quiver's algebraic plan tree in both its
// logical (spec 4.2) and physical (spec 4.4) variants: immutable nodes
// with structural sharing (spec 3: "children are shared references").
// Build maps a bound statement to a logical tree; the Optimizer
// (package optimizer) rewrites logical trees and lowers them to
// physical trees, which rowexec instantiates into operators.
package plan

import (
	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/value"
)

// RowHandleType is the logical type of the synthetic trailing column a
// row-handle-carrying scan appends (spec 3: "row-handlers are 64-bit
// opaque identifiers").
var RowHandleType = value.Int64.NotNull()

// CountType is the logical type of the one-column result Insert/Delete
// emit (spec 4.5: "emits one chunk containing the inserted/affected-row
// count").
var CountType = value.Int64.NotNull()

// Logical is one node of the logical plan tree.
type Logical interface {
	Children() []Logical
	Schema() schema.Schema
}

// OrderKey is one ORDER BY / TopN comparator entry.
type OrderKey struct {
	Expr expr.Expr
	Desc bool
}

// LogicalScan reads every row of a table (spec 4.2 mapping table: the
// root of every SELECT plan). Predicate, when non-nil, was attached by
// the optimizer's filter-scan fusion rule (spec 4.3) and enables
// block-range pruning during the physical read. WithRowHandle appends a
// trailing row-handle column, requested for DELETE's child scan (spec
// 4.2: "Delete(Filter(Scan with row-handle column requested))").
type LogicalScan struct {
	TableRef      int
	Table         *catalog.Table
	Columns       []catalog.Column
	Predicate     expr.Expr
	WithRowHandle bool
}

func (s LogicalScan) Children() []Logical { return nil }
func (s LogicalScan) Schema() schema.Schema {
	out := make(schema.Schema, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		out = append(out, schema.Column{Name: c.Name, Type: c.Type, TableRef: s.TableRef, ColumnID: c.ID})
	}
	if s.WithRowHandle {
		out = append(out, schema.Column{Name: "__row_handle__", Type: RowHandleType, TableRef: schema.SyntheticTableRef, ColumnID: -1})
	}
	return out
}

// LogicalFilter keeps only rows where Predicate evaluates true (spec
// 4.2/4.5).
type LogicalFilter struct {
	Input     Logical
	Predicate expr.Expr
}

func (f LogicalFilter) Children() []Logical   { return []Logical{f.Input} }
func (f LogicalFilter) Schema() schema.Schema { return f.Input.Schema() }

// LogicalProject evaluates Exprs against Input, one output column per
// expression (spec 4.5: "expressions are pure").
type LogicalProject struct {
	Input Logical
	Exprs []expr.Expr
	Names []string
}

func (p LogicalProject) Children() []Logical { return []Logical{p.Input} }
func (p LogicalProject) Schema() schema.Schema {
	out := make(schema.Schema, len(p.Exprs))
	for i, e := range p.Exprs {
		ref, col := schema.SyntheticTableRef, i
		if cr, ok := e.(*expr.ColumnRef); ok {
			ref, col = cr.TableRef, cr.ColumnID
		}
		out[i] = schema.Column{Name: p.Names[i], Type: e.Type(), TableRef: ref, ColumnID: col}
	}
	return out
}

// LogicalJoin is an explicit JOIN...ON, or a cross join (On == nil, Kind
// == ast.JoinCross) from comma-FROM (spec 4.2).
type LogicalJoin struct {
	Left, Right Logical
	Kind        ast.JoinKind
	On          expr.Expr
}

func (j LogicalJoin) Children() []Logical { return []Logical{j.Left, j.Right} }
func (j LogicalJoin) Schema() schema.Schema {
	return schema.Concat(j.Left.Schema(), j.Right.Schema())
}

// LogicalAgg is single-pass groupby-hash aggregation (spec 4.5
// "HashAgg"). GroupBy and Aggs are evaluated against Input; Names gives
// the output column name for each GroupBy entry followed by each Aggs
// entry, in that order — matching the output column order downstream
// nodes (HAVING, Order, the outer Project) see.
type LogicalAgg struct {
	Input   Logical
	GroupBy []expr.Expr
	Aggs    []*expr.AggExpr
	Names   []string
}

func (a LogicalAgg) Children() []Logical { return []Logical{a.Input} }
func (a LogicalAgg) Schema() schema.Schema {
	out := make(schema.Schema, 0, len(a.GroupBy)+len(a.Aggs))
	for i, g := range a.GroupBy {
		out = append(out, schema.Column{Name: a.Names[i], Type: g.Type(), TableRef: schema.SyntheticTableRef, ColumnID: i})
	}
	for i, agg := range a.Aggs {
		idx := len(a.GroupBy) + i
		out = append(out, schema.Column{Name: a.Names[idx], Type: agg.Type(), TableRef: schema.SyntheticTableRef, ColumnID: idx})
	}
	return out
}

// LogicalOrder sorts Input by Keys with stable ordering (spec 4.5).
type LogicalOrder struct {
	Input Logical
	Keys  []OrderKey
}

func (o LogicalOrder) Children() []Logical   { return []Logical{o.Input} }
func (o LogicalOrder) Schema() schema.Schema { return o.Input.Schema() }

// LogicalLimit skips Offset rows and returns at most Limit (spec 4.2).
// A negative Limit means "no limit" (LIMIT absent with only OFFSET
// given).
type LogicalLimit struct {
	Input  Logical
	Limit  int64
	Offset int64
}

func (l LogicalLimit) Children() []Logical   { return []Logical{l.Input} }
func (l LogicalLimit) Schema() schema.Schema { return l.Input.Schema() }

// LogicalTopN is the optimizer's Order+Limit fusion (spec 4.3:
// "Limit+Order→TopN: ... collapses to TopN(k=offset+limit,
// comparator=order)"). The planner never builds this directly; only the
// optimizer's rule does.
type LogicalTopN struct {
	Input  Logical
	Keys   []OrderKey
	Limit  int64
	Offset int64
}

func (t LogicalTopN) Children() []Logical   { return []Logical{t.Input} }
func (t LogicalTopN) Schema() schema.Schema { return t.Input.Schema() }

// LogicalValues is a literal-rows source, used as INSERT...VALUES'
// child and as the one-row source behind a FROM-less SELECT (spec 9:
// "Dummy/generator physical nodes", grounded on risinglight's
// physical_plan/generator/mod.rs). Names/Types describe each row's
// shape; Rows may hold zero columns per row (the FROM-less SELECT case)
// while still producing exactly len(Rows) output rows.
type LogicalValues struct {
	Rows  [][]expr.Expr
	Names []string
	Types []value.Type
}

func (v LogicalValues) Children() []Logical { return nil }
func (v LogicalValues) Schema() schema.Schema {
	out := make(schema.Schema, len(v.Names))
	for i, n := range v.Names {
		out[i] = schema.Column{Name: n, Type: v.Types[i], TableRef: schema.SyntheticTableRef, ColumnID: i}
	}
	return out
}

// LogicalInsert appends every row its child produces to Table (spec
// 4.2/4.5). Child is LogicalValues for `INSERT...VALUES` or any SELECT
// sub-plan for `INSERT...SELECT`.
type LogicalInsert struct {
	Table         *catalog.Table
	ColumnIndexes []int
	Input         Logical
}

func (i LogicalInsert) Children() []Logical { return []Logical{i.Input} }
func (i LogicalInsert) Schema() schema.Schema {
	return schema.Schema{{Name: "inserted", Type: CountType, TableRef: schema.SyntheticTableRef}}
}

// LogicalDelete marks rows deleted by row-handle (spec 4.2: child is
// Filter(Scan-with-row-handle)).
type LogicalDelete struct {
	Table *catalog.Table
	Input Logical
}

func (d LogicalDelete) Children() []Logical { return []Logical{d.Input} }
func (d LogicalDelete) Schema() schema.Schema {
	return schema.Schema{{Name: "deleted", Type: CountType, TableRef: schema.SyntheticTableRef}}
}

// LogicalCreateTable registers Name/Columns in the catalog (spec 4.2).
type LogicalCreateTable struct {
	Name    string
	Columns []catalog.Column
}

func (c LogicalCreateTable) Children() []Logical   { return nil }
func (c LogicalCreateTable) Schema() schema.Schema { return nil }

// LogicalDropTable removes Name from the catalog.
type LogicalDropTable struct {
	Name     string
	IfExists bool
}

func (d LogicalDropTable) Children() []Logical   { return nil }
func (d LogicalDropTable) Schema() schema.Schema { return nil }

// LogicalExplain wraps Input for plan rendering instead of execution
// (spec 4.5).
type LogicalExplain struct {
	Input Logical
}

func (e LogicalExplain) Children() []Logical { return []Logical{e.Input} }
func (e LogicalExplain) Schema() schema.Schema {
	return schema.Schema{{Name: "plan", Type: value.String.NotNull(), TableRef: schema.SyntheticTableRef}}
}
