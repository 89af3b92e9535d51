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
	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/schema"
)

// Physical is one node of the physical plan tree: like Logical but with
// an access method and a join/agg strategy chosen (spec 4.4). rowexec
// instantiates these one-to-one into operators.
type Physical interface {
	Children() []Physical
	Schema() schema.Schema
}

// PhysicalScan reads rows from an in-memory table (storage/memory),
// chosen by the physical planner when the target database's engine is
// the in-memory one (spec 4.4: "SeqScan over the in-memory engine").
type PhysicalScan struct {
	TableRef      int
	Table         *catalog.Table
	Columns       []catalog.Column
	Predicate     expr.Expr
	WithRowHandle bool
}

func (s PhysicalScan) Children() []Physical { return nil }
func (s PhysicalScan) Schema() schema.Schema {
	return LogicalScan{TableRef: s.TableRef, Table: s.Table, Columns: s.Columns, WithRowHandle: s.WithRowHandle}.Schema()
}

// PhysicalRowSetScan reads rows from the on-disk row-set engine (spec
// 4.4). Every block is read and decoded; Predicate is then evaluated on
// each chunk, and blocks are not skipped by their min/max.
type PhysicalRowSetScan struct {
	TableRef      int
	Table         *catalog.Table
	Columns       []catalog.Column
	Predicate     expr.Expr
	WithRowHandle bool
}

func (s PhysicalRowSetScan) Children() []Physical { return nil }
func (s PhysicalRowSetScan) Schema() schema.Schema {
	return LogicalScan{TableRef: s.TableRef, Table: s.Table, Columns: s.Columns, WithRowHandle: s.WithRowHandle}.Schema()
}

// PhysicalFilter mirrors LogicalFilter.
type PhysicalFilter struct {
	Input     Physical
	Predicate expr.Expr
}

func (f PhysicalFilter) Children() []Physical  { return []Physical{f.Input} }
func (f PhysicalFilter) Schema() schema.Schema { return f.Input.Schema() }

// PhysicalProject mirrors LogicalProject.
type PhysicalProject struct {
	Input Physical
	Exprs []expr.Expr
	Names []string
}

func (p PhysicalProject) Children() []Physical { return []Physical{p.Input} }
func (p PhysicalProject) Schema() schema.Schema {
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

// PhysicalHashJoin is chosen for equi-joins with no non-equi residue
// (spec 4.4): LeftKeys[i] is probed against RightKeys[i]. The optimizer
// picks it only when the whole ON clause splits into key pairs, so
// Residual is nil as lowered and a mixed equi/non-equi ON clause becomes
// a NestedLoopJoin; rowexec applies a non-nil Residual after the
// equi-match.
type PhysicalHashJoin struct {
	Left, Right         Physical
	Kind                ast.JoinKind
	LeftKeys, RightKeys []expr.Expr
	Residual            expr.Expr
}

func (j PhysicalHashJoin) Children() []Physical { return []Physical{j.Left, j.Right} }
func (j PhysicalHashJoin) Schema() schema.Schema {
	return schema.Concat(j.Left.Schema(), j.Right.Schema())
}

// PhysicalNestedLoopJoin is the fallback join strategy for anything that
// isn't a clean equi-join (spec 4.4), including plain cross joins (On ==
// nil).
type PhysicalNestedLoopJoin struct {
	Left, Right Physical
	Kind        ast.JoinKind
	On          expr.Expr
}

func (j PhysicalNestedLoopJoin) Children() []Physical { return []Physical{j.Left, j.Right} }
func (j PhysicalNestedLoopJoin) Schema() schema.Schema {
	return schema.Concat(j.Left.Schema(), j.Right.Schema())
}

// PhysicalHashAgg mirrors LogicalAgg; it is the only aggregation
// strategy quiver implements (spec 4.4/4.5).
type PhysicalHashAgg struct {
	Input   Physical
	GroupBy []expr.Expr
	Aggs    []*expr.AggExpr
	Names   []string
}

func (a PhysicalHashAgg) Children() []Physical { return []Physical{a.Input} }
func (a PhysicalHashAgg) Schema() schema.Schema {
	return LogicalAgg{GroupBy: a.GroupBy, Aggs: a.Aggs, Names: a.Names}.Schema()
}

// PhysicalOrder mirrors LogicalOrder.
type PhysicalOrder struct {
	Input Physical
	Keys  []OrderKey
}

func (o PhysicalOrder) Children() []Physical  { return []Physical{o.Input} }
func (o PhysicalOrder) Schema() schema.Schema { return o.Input.Schema() }

// PhysicalTopN mirrors LogicalTopN: a bounded-heap top-k, produced only
// by the optimizer's Limit+Order fusion rule (spec 4.3).
type PhysicalTopN struct {
	Input  Physical
	Keys   []OrderKey
	Limit  int64
	Offset int64
}

func (t PhysicalTopN) Children() []Physical  { return []Physical{t.Input} }
func (t PhysicalTopN) Schema() schema.Schema { return t.Input.Schema() }

// PhysicalLimit mirrors LogicalLimit, used when the optimizer did not
// fuse the LIMIT into a TopN: no ORDER BY directly beneath it, or OFFSET
// without LIMIT.
type PhysicalLimit struct {
	Input  Physical
	Limit  int64
	Offset int64
}

func (l PhysicalLimit) Children() []Physical  { return []Physical{l.Input} }
func (l PhysicalLimit) Schema() schema.Schema { return l.Input.Schema() }

// PhysicalValues mirrors LogicalValues: a literal-rows source. Its
// schema is computed once at lowering time from the matching
// LogicalValues node and cached here.
type PhysicalValues struct {
	Rows    [][]expr.Expr
	Names   []string
	Schema_ schema.Schema
}

func (v PhysicalValues) Children() []Physical  { return nil }
func (v PhysicalValues) Schema() schema.Schema { return v.Schema_ }

// PhysicalInsert mirrors LogicalInsert.
type PhysicalInsert struct {
	Table         *catalog.Table
	ColumnIndexes []int
	Input         Physical
}

func (i PhysicalInsert) Children() []Physical { return []Physical{i.Input} }
func (i PhysicalInsert) Schema() schema.Schema {
	return LogicalInsert{}.Schema()
}

// PhysicalDelete mirrors LogicalDelete.
type PhysicalDelete struct {
	Table *catalog.Table
	Input Physical
}

func (d PhysicalDelete) Children() []Physical { return []Physical{d.Input} }
func (d PhysicalDelete) Schema() schema.Schema {
	return LogicalDelete{}.Schema()
}

// PhysicalCreateTable mirrors LogicalCreateTable.
type PhysicalCreateTable struct {
	Name    string
	Columns []catalog.Column
}

func (c PhysicalCreateTable) Children() []Physical  { return nil }
func (c PhysicalCreateTable) Schema() schema.Schema { return nil }

// PhysicalDropTable mirrors LogicalDropTable.
type PhysicalDropTable struct {
	Name     string
	IfExists bool
}

func (d PhysicalDropTable) Children() []Physical  { return nil }
func (d PhysicalDropTable) Schema() schema.Schema { return nil }

// PhysicalExplain renders Rendered instead of executing; the optimizer
// computes Rendered once at lowering time from the lowered physical
// tree of the inner statement (spec 4.5: EXPLAIN never touches storage).
type PhysicalExplain struct {
	Rendered string
}

func (e PhysicalExplain) Children() []Physical { return nil }
func (e PhysicalExplain) Schema() schema.Schema {
	return LogicalExplain{}.Schema()
}
