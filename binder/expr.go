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
	"strings"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// untyped is the placeholder type a bare NULL literal carries until
// context (an operator's other operand, a VALUES column, a CASE branch)
// concretizes it via coerceTo.
var untyped = value.Type{Kind: value.KindInvalid, Nullable: true}

func isUntyped(t value.Type) bool { return t.Kind == value.KindInvalid }

func (b *binder) bindExpr(e ast.Expr, sc *scope) (expr.Expr, error) {
	switch n := e.(type) {
	case ast.Literal:
		return bindLiteral(n.Value), nil
	case ast.ColumnRef:
		return b.bindColumnRef(n, sc)
	case ast.BinaryExpr:
		return b.bindBinary(n, sc)
	case ast.UnaryExpr:
		return b.bindUnary(n, sc)
	case ast.FuncCall:
		return b.bindFuncCall(n, sc)
	case ast.IsNull:
		operand, err := b.bindExpr(n.Operand, sc)
		if err != nil {
			return nil, err
		}
		return expr.NewIsNull(operand, n.Not), nil
	case ast.InList:
		return b.bindInList(n, sc)
	case ast.CaseExpr:
		return b.bindCase(n, sc)
	case ast.Cast:
		return b.bindCast(n, sc)
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "expression kind %T", e)
	}
}

func bindLiteral(v ast.LiteralValue) expr.Expr {
	switch {
	case v.Null:
		return expr.NewLiteral(value.Null(value.KindInvalid), untyped)
	case v.IsInt:
		if v.Int >= -(1<<31) && v.Int <= (1<<31)-1 {
			return expr.NewLiteral(value.NewInt32(int32(v.Int)), value.Int32.NotNull())
		}
		return expr.NewLiteral(value.NewInt64(v.Int), value.Int64.NotNull())
	case v.IsFloat:
		return expr.NewLiteral(value.NewFloat64(v.Float), value.Float64.NotNull())
	case v.IsStr:
		return expr.NewLiteral(value.NewString(v.Str), value.String.NotNull())
	case v.IsBool:
		return expr.NewLiteral(value.NewBool(v.Bool), value.Boolean.NotNull())
	default:
		return expr.NewLiteral(value.Null(value.KindInvalid), untyped)
	}
}

func (b *binder) bindColumnRef(n ast.ColumnRef, sc *scope) (expr.Expr, error) {
	if sc == nil {
		return nil, sqlerr.Wrapf(sqlerr.ErrUnknownColumn, "column %q (no FROM clause)", n.Name)
	}
	if n.Table != "" {
		t, ok := sc.lookupTable(n.Table)
		if !ok {
			return nil, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", n.Table)
		}
		col, ok := t.table.ColumnByName(n.Name)
		if !ok {
			return nil, sqlerr.Wrapf(sqlerr.ErrUnknownColumn, "column %q", n.Name)
		}
		return &expr.ColumnRef{TableRef: t.ref, ColumnID: col.ID, Name: col.Name, Typ: col.Type}, nil
	}
	t, col, err := sc.lookupColumn(n.Name)
	if err != nil {
		return nil, err
	}
	return &expr.ColumnRef{TableRef: t.ref, ColumnID: col.ID, Name: col.Name, Typ: col.Type}, nil
}

// coerceTo adapts e to target: a still-untyped NULL literal is simply
// retyped; a numeric value of a different Kind gets an explicit Cast
// node; anything else matching target's Kind already passes through.
func coerceTo(e expr.Expr, target value.Type) (expr.Expr, error) {
	if lit, ok := e.(*expr.Literal); ok && lit.Val.Null && isUntyped(lit.Typ) {
		return expr.NewLiteral(value.Null(target.Kind), target), nil
	}
	if e.Type().Kind == target.Kind {
		return e, nil
	}
	if e.Type().Numeric() && target.Numeric() {
		return expr.NewCast(e, target), nil
	}
	return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "cannot use %s as %s", e.Type(), target)
}

// unify folds a promotion/equality check across every concretely-typed
// member of exprs (untyped NULL literals are skipped) and returns the
// common type every member is coerced to.
func unify(exprs []expr.Expr) (value.Type, error) {
	result := untyped
	for _, e := range exprs {
		t := e.Type()
		if isUntyped(t) {
			continue
		}
		if isUntyped(result) {
			result = t
			continue
		}
		if result.Kind == t.Kind {
			continue
		}
		if result.Numeric() && t.Numeric() {
			p, ok := value.Promote(result, t)
			if !ok {
				return value.Type{}, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "cannot unify %s and %s", result, t)
			}
			result = p
			continue
		}
		return value.Type{}, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "cannot unify %s and %s", result, t)
	}
	if isUntyped(result) {
		result = value.Boolean
	}
	result.Nullable = true
	return result, nil
}

func (b *binder) bindBinary(n ast.BinaryExpr, sc *scope) (expr.Expr, error) {
	left, err := b.bindExpr(n.Left, sc)
	if err != nil {
		return nil, err
	}
	right, err := b.bindExpr(n.Right, sc)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "AND", "OR":
		left, err = coerceTo(left, value.Boolean)
		if err != nil {
			return nil, err
		}
		right, err = coerceTo(right, value.Boolean)
		if err != nil {
			return nil, err
		}
		if left.Type().Kind != value.KindBoolean || right.Type().Kind != value.KindBoolean {
			return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "%s requires boolean operands", n.Op)
		}
		t := value.Boolean
		t.Nullable = left.Type().Nullable || right.Type().Nullable
		return expr.NewBinary(n.Op, left, right, t), nil

	case "LIKE":
		left, err = coerceTo(left, value.String)
		if err != nil {
			return nil, err
		}
		right, err = coerceTo(right, value.String)
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(n.Op, left, right, value.Boolean), nil

	case "=", "<>", "<", "<=", ">", ">=":
		t, err := unify([]expr.Expr{left, right})
		if err != nil {
			return nil, err
		}
		left, err = coerceTo(left, t)
		if err != nil {
			return nil, err
		}
		right, err = coerceTo(right, t)
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(n.Op, left, right, value.Boolean), nil

	default: // arithmetic: + - * /
		lt, rt := left.Type(), right.Type()
		if !isUntyped(lt) && lt.Kind == value.KindString && n.Op == "+" {
			right, err = coerceTo(right, value.String)
			if err != nil {
				return nil, err
			}
			t := value.String
			t.Nullable = lt.Nullable || right.Type().Nullable
			return expr.NewBinary(n.Op, left, right, t), nil
		}
		t, err := unify([]expr.Expr{left, right})
		if err != nil {
			return nil, err
		}
		if !t.Numeric() {
			return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "operator %s requires numeric operands", n.Op)
		}
		left, err = coerceTo(left, t)
		if err != nil {
			return nil, err
		}
		right, err = coerceTo(right, t)
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(n.Op, left, right, t), nil
	}
}

func (b *binder) bindUnary(n ast.UnaryExpr, sc *scope) (expr.Expr, error) {
	operand, err := b.bindExpr(n.Operand, sc)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "NOT":
		operand, err = coerceTo(operand, value.Boolean)
		if err != nil {
			return nil, err
		}
		return expr.NewUnary(n.Op, operand, value.Boolean), nil
	case "-":
		if isUntyped(operand.Type()) {
			operand, _ = coerceTo(operand, value.Int64)
		}
		if !operand.Type().Numeric() {
			return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "unary - requires a numeric operand")
		}
		return expr.NewUnary(n.Op, operand, operand.Type()), nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "unary operator %q", n.Op)
	}
}

func (b *binder) bindInList(n ast.InList, sc *scope) (expr.Expr, error) {
	operand, err := b.bindExpr(n.Operand, sc)
	if err != nil {
		return nil, err
	}
	list := make([]expr.Expr, len(n.List))
	for i, item := range n.List {
		e, err := b.bindExpr(item, sc)
		if err != nil {
			return nil, err
		}
		list[i] = e
	}
	t, err := unify(append([]expr.Expr{operand}, list...))
	if err != nil {
		return nil, err
	}
	if operand, err = coerceTo(operand, t); err != nil {
		return nil, err
	}
	for i, e := range list {
		if list[i], err = coerceTo(e, t); err != nil {
			return nil, err
		}
	}
	return expr.NewInList(operand, list, n.Not), nil
}

func (b *binder) bindCase(n ast.CaseExpr, sc *scope) (expr.Expr, error) {
	whens := make([]expr.WhenClause, len(n.Whens))
	results := make([]expr.Expr, 0, len(n.Whens)+1)
	for i, w := range n.Whens {
		cond, err := b.bindExpr(w.Cond, sc)
		if err != nil {
			return nil, err
		}
		cond, err = coerceTo(cond, value.Boolean)
		if err != nil {
			return nil, err
		}
		result, err := b.bindExpr(w.Result, sc)
		if err != nil {
			return nil, err
		}
		whens[i] = expr.WhenClause{Cond: cond, Result: result}
		results = append(results, result)
	}
	var elseExpr expr.Expr
	if n.Else != nil {
		e, err := b.bindExpr(n.Else, sc)
		if err != nil {
			return nil, err
		}
		elseExpr = e
		results = append(results, e)
	}
	t, err := unify(results)
	if err != nil {
		return nil, err
	}
	for i := range whens {
		if whens[i].Result, err = coerceTo(whens[i].Result, t); err != nil {
			return nil, err
		}
	}
	if elseExpr != nil {
		if elseExpr, err = coerceTo(elseExpr, t); err != nil {
			return nil, err
		}
	}
	return expr.NewCase(whens, elseExpr, t), nil
}

func (b *binder) bindCast(n ast.Cast, sc *scope) (expr.Expr, error) {
	operand, err := b.bindExpr(n.Operand, sc)
	if err != nil {
		return nil, err
	}
	t, err := resolveTypeName(n.TypeName, 0, 0)
	if err != nil {
		return nil, err
	}
	if isUntyped(operand.Type()) {
		return expr.NewLiteral(value.Null(t.Kind), t), nil
	}
	return expr.NewCast(operand, t), nil
}

var aggNames = map[string]expr.AggFunc{
	"count": expr.AggCount,
	"sum":   expr.AggSum,
	"min":   expr.AggMin,
	"max":   expr.AggMax,
	"avg":   expr.AggAvg,
}

func (b *binder) bindFuncCall(n ast.FuncCall, sc *scope) (expr.Expr, error) {
	fn, ok := aggNames[strings.ToLower(n.Name)]
	if !ok {
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "function %q", n.Name)
	}
	if n.Distinct {
		// spec 9, open question (a): COUNT(DISTINCT ...) is out of scope.
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "%s(DISTINCT ...)", n.Name)
	}
	if n.Star {
		if fn != expr.AggCount {
			return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "%s(*)", n.Name)
		}
		return expr.NewAgg(expr.AggCountStar, nil, false, value.Int64.NotNull()), nil
	}
	if len(n.Args) != 1 {
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "%s requires exactly one argument", n.Name)
	}
	arg, err := b.bindExpr(n.Args[0], sc)
	if err != nil {
		return nil, err
	}
	return expr.NewAgg(fn, arg, false, aggResultType(fn, arg.Type())), nil
}

// aggResultType picks each aggregate's output type (spec 4.5's required
// aggregate set): COUNT is always a not-null BIGINT; SUM/AVG widen to
// avoid overflow on the common i32 input case; MIN/MAX pass the input
// type through unchanged; AVG is computed sum/count on finish, so it is
// always floating unless the input is already DECIMAL.
func aggResultType(fn expr.AggFunc, argType value.Type) value.Type {
	switch fn {
	case expr.AggCount, expr.AggCountStar:
		return value.Int64.NotNull()
	case expr.AggSum:
		if argType.Kind == value.KindInt32 {
			return value.Int64
		}
		return argType
	case expr.AggMin, expr.AggMax:
		return argType
	case expr.AggAvg:
		if argType.Kind == value.KindDecimal {
			return argType
		}
		return value.Float64
	default:
		return argType
	}
}
