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
	"github.com/shopspring/decimal"

	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

// rewriteExprs applies f to every expr.Expr field a logical node
// carries (predicate, projection list, join condition, group-by/having
// keys) and rebuilds the node if anything changed. Nodes with no
// expression fields of their own (Scan's Predicate is handled inline
// since fuseFilterScan produces it) pass through unchanged.
func rewriteExprs(l plan.Logical, f func(expr.Expr) expr.Expr) (plan.Logical, bool) {
	changed := false
	apply := func(e expr.Expr) expr.Expr {
		if e == nil {
			return nil
		}
		out := f(e)
		if out.String() != e.String() {
			changed = true
		}
		return out
	}
	switch v := l.(type) {
	case plan.LogicalFilter:
		v.Predicate = apply(v.Predicate)
		if changed {
			return v, true
		}
	case plan.LogicalProject:
		for i, e := range v.Exprs {
			v.Exprs[i] = apply(e)
		}
		if changed {
			return v, true
		}
	case plan.LogicalJoin:
		if v.On != nil {
			v.On = apply(v.On)
		}
		if changed {
			return v, true
		}
	case plan.LogicalAgg:
		for i, e := range v.GroupBy {
			v.GroupBy[i] = apply(e)
		}
		if changed {
			return v, true
		}
	case plan.LogicalOrder:
		for i := range v.Keys {
			v.Keys[i].Expr = apply(v.Keys[i].Expr)
		}
		if changed {
			return v, true
		}
	case plan.LogicalScan:
		if v.Predicate != nil {
			v.Predicate = apply(v.Predicate)
			if changed {
				return v, true
			}
		}
	}
	return l, false
}

// rewriteChildrenExpr recurses f into e's sub-expressions and rebuilds
// e with the rewritten children, bottom-up, so every rule's expr-level
// function only needs to pattern-match at its own node.
func rewriteChildrenExpr(e expr.Expr, f func(expr.Expr) expr.Expr) expr.Expr {
	switch v := e.(type) {
	case *expr.BinaryExpr:
		left, right := f(v.Left), f(v.Right)
		if left == v.Left && right == v.Right {
			return e
		}
		return expr.NewBinary(v.Op, left, right, v.Typ)
	case *expr.UnaryExpr:
		operand := f(v.Operand)
		if operand == v.Operand {
			return e
		}
		cp := *v
		cp.Operand = operand
		return &cp
	case *expr.IsNullExpr:
		operand := f(v.Operand)
		if operand == v.Operand {
			return e
		}
		cp := *v
		cp.Operand = operand
		return &cp
	case *expr.InListExpr:
		operand := f(v.Operand)
		list := make([]expr.Expr, len(v.List))
		for i, item := range v.List {
			list[i] = f(item)
		}
		cp := *v
		cp.Operand = operand
		cp.List = list
		return &cp
	case *expr.CaseExpr:
		whens := make([]expr.WhenClause, len(v.Whens))
		for i, w := range v.Whens {
			whens[i] = expr.WhenClause{Cond: f(w.Cond), Result: f(w.Result)}
		}
		var elseExpr expr.Expr
		if v.Else != nil {
			elseExpr = f(v.Else)
		}
		return expr.NewCase(whens, elseExpr, v.Typ)
	case *expr.CastExpr:
		operand := f(v.Operand)
		if operand == v.Operand {
			return e
		}
		return expr.NewCast(operand, v.Typ)
	default:
		return e
	}
}

// splitConjuncts flattens nested AND nodes into a flat list of
// conjuncts (spec 4.3's CNF flattening feeds filter-join split this
// way).
func splitConjuncts(e expr.Expr) []expr.Expr {
	b, ok := e.(*expr.BinaryExpr)
	if !ok || b.Op != "AND" {
		return []expr.Expr{e}
	}
	return append(splitConjuncts(b.Left), splitConjuncts(b.Right)...)
}

// conjoin rebuilds a single AND-tree from a list of conjuncts.
func conjoin(clauses []expr.Expr) expr.Expr {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out = expr.NewBinary("AND", out, c, value.Boolean.NotNull())
	}
	return out
}

// collectColumnRefs walks e's tree and returns every *expr.ColumnRef
// node reachable from it, used to decide which side of a join a
// filter clause belongs to (spec 4.3's filter-join split).
func collectColumnRefs(e expr.Expr) []*expr.ColumnRef {
	var out []*expr.ColumnRef
	var walk func(expr.Expr)
	walk = func(e expr.Expr) {
		if e == nil {
			return
		}
		switch v := e.(type) {
		case *expr.ColumnRef:
			out = append(out, v)
		case *expr.BinaryExpr:
			walk(v.Left)
			walk(v.Right)
		case *expr.UnaryExpr:
			walk(v.Operand)
		case *expr.IsNullExpr:
			walk(v.Operand)
		case *expr.InListExpr:
			walk(v.Operand)
			for _, item := range v.List {
				walk(item)
			}
		case *expr.CaseExpr:
			for _, w := range v.Whens {
				walk(w.Cond)
				walk(w.Result)
			}
			if v.Else != nil {
				walk(v.Else)
			}
		case *expr.CastExpr:
			walk(v.Operand)
		}
	}
	walk(e)
	return out
}

func isZeroLiteral(e expr.Expr) bool {
	lit, ok := e.(*expr.Literal)
	if !ok || lit.Val.Null || !lit.Typ.Numeric() {
		return false
	}
	return lit.Val.AsFloat64() == 0
}

func isOneLiteral(e expr.Expr) bool {
	lit, ok := e.(*expr.Literal)
	if !ok || lit.Val.Null || !lit.Typ.Numeric() {
		return false
	}
	return lit.Val.AsFloat64() == 1
}

func isTrueLiteral(e expr.Expr) bool {
	lit, ok := e.(*expr.Literal)
	return ok && !lit.Val.Null && lit.Typ.Kind == value.KindBoolean && lit.Val.Bool()
}

func isFalseLiteral(e expr.Expr) bool {
	lit, ok := e.(*expr.Literal)
	return ok && !lit.Val.Null && lit.Typ.Kind == value.KindBoolean && !lit.Val.Bool()
}

// sameExpr reports whether two expression trees are syntactically
// identical, used by x-x->0 (spec 4.3). String rendering is a
// sufficiently precise equality check for this rule since it is only
// ever applied to already-bound, positionally-resolved trees.
func sameExpr(a, b expr.Expr) bool {
	return a.String() == b.String()
}

// zeroValueFor builds a typed zero literal matching t's kind, for
// x-x->0 and 0*x->0.
func zeroValueFor(t value.Type) value.Value {
	switch t.Kind {
	case value.KindInt32:
		return value.NewInt32(0)
	case value.KindInt64:
		return value.NewInt64(0)
	case value.KindFloat32:
		return value.NewFloat32(0)
	case value.KindFloat64:
		return value.NewFloat64(0)
	case value.KindDecimal:
		return value.NewDecimal(decimal.Zero)
	default:
		return value.NewInt64(0)
	}
}
