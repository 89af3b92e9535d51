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
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

// foldConstants replaces any constant sub-expression (spec 4.3) in l's
// predicate/projection/join-condition fields with its literal value,
// evaluated once via the shared expression kernel (expr.Fold).
func foldConstants(l plan.Logical) (plan.Logical, bool) {
	return rewriteExprs(l, foldExpr)
}

func foldExpr(e expr.Expr) expr.Expr {
	e = rewriteChildrenExpr(e, foldExpr)
	if expr.IsConstant(e) {
		if _, isLit := e.(*expr.Literal); !isLit {
			if lit, err := expr.Fold(e); err == nil {
				return lit
			}
		}
	}
	return e
}

// simplifyArithmetic implements spec 4.3's `x+0, x*1, x-0, x-x->0,
// x/1->x; 0*x->0 only when x is known non-null` rewrites.
func simplifyArithmetic(l plan.Logical) (plan.Logical, bool) {
	return rewriteExprs(l, simplifyArithExpr)
}

func simplifyArithExpr(e expr.Expr) expr.Expr {
	e = rewriteChildrenExpr(e, simplifyArithExpr)
	b, ok := e.(*expr.BinaryExpr)
	if !ok {
		return e
	}
	switch b.Op {
	case "+":
		if isZeroLiteral(b.Right) {
			return b.Left
		}
		if isZeroLiteral(b.Left) {
			return b.Right
		}
	case "-":
		if isZeroLiteral(b.Right) {
			return b.Left
		}
		if sameExpr(b.Left, b.Right) {
			return expr.NewLiteral(zeroValueFor(b.Typ), b.Typ)
		}
	case "*":
		if isOneLiteral(b.Right) {
			return b.Left
		}
		if isOneLiteral(b.Left) {
			return b.Right
		}
		if (isZeroLiteral(b.Right) || isZeroLiteral(b.Left)) && !b.Typ.Nullable {
			return expr.NewLiteral(zeroValueFor(b.Typ), b.Typ)
		}
	case "/":
		if isOneLiteral(b.Right) {
			return b.Left
		}
	}
	return e
}

// simplifyBoolean implements spec 4.3's `true AND p->p, false AND _
// ->false, p OR true->true`, and double-negation elimination. CNF
// flattening falls out of splitFilterJoin/conjoin walking nested ANDs
// uniformly rather than needing a dedicated rewrite here.
func simplifyBoolean(l plan.Logical) (plan.Logical, bool) {
	return rewriteExprs(l, simplifyBoolExpr)
}

func simplifyBoolExpr(e expr.Expr) expr.Expr {
	e = rewriteChildrenExpr(e, simplifyBoolExpr)
	switch b := e.(type) {
	case *expr.BinaryExpr:
		switch b.Op {
		case "AND":
			if isTrueLiteral(b.Left) {
				return b.Right
			}
			if isTrueLiteral(b.Right) {
				return b.Left
			}
			if isFalseLiteral(b.Left) || isFalseLiteral(b.Right) {
				return expr.NewLiteral(value.NewBool(false), value.Boolean.NotNull())
			}
		case "OR":
			if isTrueLiteral(b.Left) || isTrueLiteral(b.Right) {
				return expr.NewLiteral(value.NewBool(true), value.Boolean.NotNull())
			}
			if isFalseLiteral(b.Left) {
				return b.Right
			}
			if isFalseLiteral(b.Right) {
				return b.Left
			}
		}
	case *expr.UnaryExpr:
		if b.Op == "NOT" {
			if inner, ok := b.Operand.(*expr.UnaryExpr); ok && inner.Op == "NOT" {
				return inner.Operand
			}
		}
	}
	return e
}

// moveConstants pushes a literal operand of a commutative operator
// (+, *, AND, OR, =, <>) to the right, canonicalizing operand order so
// later rule passes see a consistent shape (spec 4.3).
func moveConstants(l plan.Logical) (plan.Logical, bool) {
	return rewriteExprs(l, moveConstExpr)
}

func moveConstExpr(e expr.Expr) expr.Expr {
	e = rewriteChildrenExpr(e, moveConstExpr)
	b, ok := e.(*expr.BinaryExpr)
	if !ok {
		return e
	}
	switch b.Op {
	case "+", "*", "AND", "OR", "=", "<>":
		_, leftLit := b.Left.(*expr.Literal)
		_, rightLit := b.Right.(*expr.Literal)
		if leftLit && !rightLit {
			return expr.NewBinary(b.Op, b.Right, b.Left, b.Typ)
		}
	}
	return e
}

// splitFilterJoin implements spec 4.3: a conjunctive filter above a join
// is split into clauses referencing only the left side (pushed below the
// join on the left), only the right side (pushed below on the right),
// and clauses referencing both (kept above the join as its condition).
func splitFilterJoin(l plan.Logical) (plan.Logical, bool) {
	f, ok := l.(plan.LogicalFilter)
	if !ok {
		return l, false
	}
	j, ok := f.Input.(plan.LogicalJoin)
	if !ok {
		return l, false
	}
	leftSchema := j.Left.Schema()
	rightSchema := j.Right.Schema()

	clauses := splitConjuncts(f.Predicate)
	var leftClauses, rightClauses, bothClauses []expr.Expr
	for _, c := range clauses {
		onLeft, onRight := false, false
		for _, r := range collectColumnRefs(c) {
			if _, ok := leftSchema.IndexOf(r.TableRef, r.ColumnID); ok {
				onLeft = true
			}
			if _, ok := rightSchema.IndexOf(r.TableRef, r.ColumnID); ok {
				onRight = true
			}
		}
		switch {
		case onLeft && !onRight:
			leftClauses = append(leftClauses, c)
		case onRight && !onLeft:
			rightClauses = append(rightClauses, c)
		default:
			bothClauses = append(bothClauses, c)
		}
	}
	if len(leftClauses) == 0 && len(rightClauses) == 0 {
		return l, false
	}

	newLeft := j.Left
	if len(leftClauses) > 0 {
		newLeft = plan.LogicalFilter{Input: newLeft, Predicate: conjoin(leftClauses)}
	}
	newRight := j.Right
	if len(rightClauses) > 0 {
		newRight = plan.LogicalFilter{Input: newRight, Predicate: conjoin(rightClauses)}
	}
	newOn := j.On
	if len(bothClauses) > 0 {
		if newOn == nil {
			newOn = conjoin(bothClauses)
		} else {
			newOn = conjoin(append(bothClauses, newOn))
		}
	}
	return plan.LogicalJoin{Left: newLeft, Right: newRight, Kind: j.Kind, On: newOn}, true
}

// fuseFilterScan implements spec 4.3: a filter directly above a scan
// attaches its predicate to the scan, which then evaluates it on every
// chunk it reads (no block is skipped by its min/max).
func fuseFilterScan(l plan.Logical) (plan.Logical, bool) {
	f, ok := l.(plan.LogicalFilter)
	if !ok {
		return l, false
	}
	s, ok := f.Input.(plan.LogicalScan)
	if !ok {
		return l, false
	}
	if s.Predicate == nil {
		s.Predicate = f.Predicate
	} else {
		s.Predicate = conjoin([]expr.Expr{s.Predicate, f.Predicate})
	}
	return s, true
}

// fuseLimitOrder implements spec 4.3's Limit+Order->TopN collapse.
func fuseLimitOrder(l plan.Logical) (plan.Logical, bool) {
	lim, ok := l.(plan.LogicalLimit)
	if !ok || lim.Limit < 0 {
		return l, false
	}
	ord, ok := lim.Input.(plan.LogicalOrder)
	if !ok {
		return l, false
	}
	return plan.LogicalTopN{Input: ord.Input, Keys: ord.Keys, Limit: lim.Limit, Offset: lim.Offset}, true
}
