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
	"fmt"

	"github.com/quiverdb/quiver/binder"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// Build maps a bound statement to a logical plan tree (spec 4.2).
func Build(stmt binder.Statement) (Logical, error) {
	switch s := stmt.(type) {
	case *binder.Select:
		return buildSelect(s)
	case *binder.Insert:
		return buildInsert(s)
	case *binder.Delete:
		return buildDelete(s)
	case *binder.CreateTable:
		return LogicalCreateTable{Name: s.Name, Columns: s.Columns}, nil
	case *binder.DropTable:
		return LogicalDropTable{Name: s.Name, IfExists: s.IfExists}, nil
	case *binder.Explain:
		inner, err := Build(s.Statement)
		if err != nil {
			return nil, err
		}
		return LogicalExplain{Input: inner}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "plan: unhandled bound statement %T", stmt)
	}
}

// buildSelect maps `SELECT ... FROM ... WHERE ... GROUP BY ... HAVING
// ... ORDER BY ... LIMIT ...` to Scan/Join → Filter → Agg → Filter
// (having) → Order → Limit → Project (spec 4.2's mapping table); TopN
// only appears later, from the optimizer's Limit+Order fusion.
// Aggregation pulls aggregate sub-expressions out of the outer
// projection (and ORDER BY) and replaces them with references to the
// agg node's output columns.
func buildSelect(s *binder.Select) (Logical, error) {
	var cur Logical
	if s.From != nil {
		fromNode, err := buildTableExpr(s.From)
		if err != nil {
			return nil, err
		}
		cur = fromNode
	} else {
		// `SELECT <const-expr>` with no FROM: a single generator row with
		// no columns of its own (spec 9, grounded on risinglight's
		// generator physical node).
		cur = LogicalValues{Rows: [][]expr.Expr{{}}, Names: nil, Types: nil}
	}

	if s.Where != nil {
		cur = LogicalFilter{Input: cur, Predicate: s.Where}
	}

	aggs := collectAggs(s.Targets, s.Having, s.OrderBy)
	if len(s.GroupBy) > 0 || len(aggs) > 0 {
		names := make([]string, 0, len(s.GroupBy)+len(aggs))
		for i := range s.GroupBy {
			names = append(names, fmt.Sprintf("__group_%d__", i))
		}
		for i := range aggs {
			names = append(names, fmt.Sprintf("__agg_%d__", i))
		}
		agg := LogicalAgg{Input: cur, GroupBy: s.GroupBy, Aggs: aggs, Names: names}
		replaceAggRefs(s.Targets, s.Having, s.OrderBy, aggs, agg.Schema(), len(s.GroupBy))
		cur = agg
	}

	if s.Having != nil {
		cur = LogicalFilter{Input: cur, Predicate: s.Having}
	}

	keys := make([]OrderKey, len(s.OrderBy))
	for i, o := range s.OrderBy {
		keys[i] = OrderKey{Expr: o.Expr, Desc: o.Desc}
	}
	if len(keys) > 0 {
		cur = LogicalOrder{Input: cur, Keys: keys}
	}

	if s.Limit != nil || s.Offset != nil {
		limit := int64(-1)
		if s.Limit != nil {
			limit = *s.Limit
		}
		var offset int64
		if s.Offset != nil {
			offset = *s.Offset
		}
		cur = LogicalLimit{Input: cur, Limit: limit, Offset: offset}
	}

	exprs := make([]expr.Expr, len(s.Targets))
	names := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		exprs[i] = t.Expr
		names[i] = t.Name
	}
	return LogicalProject{Input: cur, Exprs: exprs, Names: names}, nil
}

// collectAggs gathers every distinct *expr.AggExpr reachable from the
// select list, HAVING clause, and ORDER BY keys.
func collectAggs(targets []binder.Target, having expr.Expr, order []binder.OrderItem) []*expr.AggExpr {
	var aggs []*expr.AggExpr
	seen := map[*expr.AggExpr]bool{}
	var walk func(expr.Expr)
	walk = func(e expr.Expr) {
		if e == nil {
			return
		}
		if a, ok := e.(*expr.AggExpr); ok {
			if !seen[a] {
				seen[a] = true
				aggs = append(aggs, a)
			}
			return
		}
		for _, c := range childrenOf(e) {
			walk(c)
		}
	}
	for _, t := range targets {
		walk(t.Expr)
	}
	walk(having)
	for _, o := range order {
		walk(o.Expr)
	}
	return aggs
}

// childrenOf returns the sub-expressions of e, so collectAggs/
// replaceAggRefs can walk arbitrary expression trees without a visitor
// interface on expr.Expr itself.
func childrenOf(e expr.Expr) []expr.Expr {
	switch v := e.(type) {
	case *expr.BinaryExpr:
		return []expr.Expr{v.Left, v.Right}
	case *expr.UnaryExpr:
		return []expr.Expr{v.Operand}
	case *expr.IsNullExpr:
		return []expr.Expr{v.Operand}
	case *expr.InListExpr:
		out := append([]expr.Expr{v.Operand}, v.List...)
		return out
	case *expr.CaseExpr:
		var out []expr.Expr
		for _, w := range v.Whens {
			out = append(out, w.Cond, w.Result)
		}
		if v.Else != nil {
			out = append(out, v.Else)
		}
		return out
	case *expr.CastExpr:
		return []expr.Expr{v.Operand}
	default:
		return nil
	}
}

// replaceAggRefs rewrites every occurrence of each collected AggExpr (by
// pointer identity) found in targets/having/order into an InputRef
// pointing at the agg node's corresponding output column.
func replaceAggRefs(targets []binder.Target, having expr.Expr, order []binder.OrderItem, aggs []*expr.AggExpr, aggSchema schema.Schema, groupOffset int) {
	refFor := map[*expr.AggExpr]expr.Expr{}
	for i, a := range aggs {
		col := aggSchema[groupOffset+i]
		refFor[a] = expr.NewInputRef(groupOffset+i, col.Name, col.Type)
	}
	var rewrite func(expr.Expr) expr.Expr
	rewrite = func(e expr.Expr) expr.Expr {
		if e == nil {
			return nil
		}
		if a, ok := e.(*expr.AggExpr); ok {
			if r, ok := refFor[a]; ok {
				return r
			}
			return e
		}
		switch v := e.(type) {
		case *expr.BinaryExpr:
			v.Left, v.Right = rewrite(v.Left), rewrite(v.Right)
		case *expr.UnaryExpr:
			v.Operand = rewrite(v.Operand)
		case *expr.IsNullExpr:
			v.Operand = rewrite(v.Operand)
		case *expr.InListExpr:
			v.Operand = rewrite(v.Operand)
			for i := range v.List {
				v.List[i] = rewrite(v.List[i])
			}
		case *expr.CaseExpr:
			for i := range v.Whens {
				v.Whens[i].Cond = rewrite(v.Whens[i].Cond)
				v.Whens[i].Result = rewrite(v.Whens[i].Result)
			}
			if v.Else != nil {
				v.Else = rewrite(v.Else)
			}
		case *expr.CastExpr:
			v.Operand = rewrite(v.Operand)
		}
		return e
	}
	for i := range targets {
		targets[i].Expr = rewrite(targets[i].Expr)
	}
	_ = rewrite(having)
	for i := range order {
		order[i].Expr = rewrite(order[i].Expr)
	}
}

// buildTableExpr maps a bound FROM clause to Scan/Join nodes.
func buildTableExpr(t binder.TableExpr) (Logical, error) {
	switch v := t.(type) {
	case binder.Scan:
		return LogicalScan{TableRef: v.TableRef, Table: v.Table, Columns: v.Table.Columns}, nil
	case binder.Join:
		left, err := buildTableExpr(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := buildTableExpr(v.Right)
		if err != nil {
			return nil, err
		}
		return LogicalJoin{Left: left, Right: right, Kind: v.Kind, On: v.On}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrInternal, "plan: unhandled bound table expr %T", t)
	}
}

// buildInsert maps `INSERT ... VALUES` to Insert(Values) and `INSERT
// ... SELECT` to Insert(sub-plan) (spec 4.2).
func buildInsert(s *binder.Insert) (Logical, error) {
	if s.Select != nil {
		sub, err := buildSelect(s.Select)
		if err != nil {
			return nil, err
		}
		return LogicalInsert{Table: s.Table, ColumnIndexes: s.ColumnIndexes, Input: sub}, nil
	}
	names := make([]string, len(s.ColumnIndexes))
	types := make([]value.Type, len(s.ColumnIndexes))
	for i, idx := range s.ColumnIndexes {
		names[i] = s.Table.Columns[idx].Name
		types[i] = s.Table.Columns[idx].Type
	}
	values := LogicalValues{Rows: s.Values, Names: names, Types: types}
	return LogicalInsert{Table: s.Table, ColumnIndexes: s.ColumnIndexes, Input: values}, nil
}

// buildDelete maps `DELETE FROM t WHERE p` to
// Delete(Filter(Scan-with-row-handle)) (spec 4.2).
func buildDelete(s *binder.Delete) (Logical, error) {
	scan := LogicalScan{TableRef: s.TableRef, Table: s.Table, Columns: s.Table.Columns, WithRowHandle: true}
	var cur Logical = scan
	if s.Where != nil {
		cur = LogicalFilter{Input: cur, Predicate: s.Where}
	}
	return LogicalDelete{Table: s.Table, Input: cur}, nil
}
