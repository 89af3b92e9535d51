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

package expr

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// BinaryExpr is any two-operand operator: arithmetic (+ - * /),
// comparison (= <> < <= > >=), or boolean (AND OR) (spec 3/4.5).
type BinaryExpr struct {
	Op          string
	Left, Right Expr
	Typ         value.Type
}

func NewBinary(op string, left, right Expr, t value.Type) *BinaryExpr {
	return &BinaryExpr{Op: op, Left: left, Right: right, Typ: t}
}

func (b *BinaryExpr) Type() value.Type { return b.Typ }
func (b *BinaryExpr) String() string   { return "(" + b.Left.String() + " " + b.Op + " " + b.Right.String() + ")" }

func (b *BinaryExpr) Resolve(s schema.Schema) (Expr, error) {
	rs, err := resolveAll(s, b.Left, b.Right)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: b.Op, Left: rs[0], Right: rs[1], Typ: b.Typ}, nil
}

// IsComparison reports whether op is one of the six comparison
// operators, used by the binder/optimizer to tell a predicate apart
// from an arithmetic or boolean expression.
func IsComparison(op string) bool {
	switch op {
	case "=", "<>", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func (b *BinaryExpr) Eval(c chunk.Chunk) (chunk.Array, error) {
	left, err := b.Left.Eval(c)
	if err != nil {
		return chunk.Array{}, err
	}
	right, err := b.Right.Eval(c)
	if err != nil {
		return chunk.Array{}, err
	}

	switch b.Op {
	case "AND":
		return evalAnd(left, right), nil
	case "OR":
		return evalOr(left, right), nil
	}

	n := c.NumRows()
	out := chunk.NewBuilder(b.Typ, n)
	for i := 0; i < n; i++ {
		lv, rv := left.Get(i), right.Get(i)
		if lv.Null || rv.Null {
			out.AppendNull()
			continue
		}
		switch {
		case IsComparison(b.Op):
			out.Append(value.NewBool(compareOp(b.Op, lv, rv)))
		case b.Op == "LIKE":
			out.Append(value.NewBool(likeMatch(lv.Text(), rv.Text())))
		default:
			v, err := arithOp(b.Op, lv, rv, b.Typ)
			if err != nil {
				return chunk.Array{}, err
			}
			out.Append(v)
		}
	}
	return out.Finish(), nil
}

func compareOp(op string, l, r value.Value) bool {
	cmp := value.Compare(l, r)
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func likeMatch(s, pattern string) bool {
	// Minimal LIKE: only the common '%' wildcard is supported.
	if !strings.Contains(pattern, "%") {
		return s == pattern
	}
	parts := strings.Split(pattern, "%")
	pos := 0
	for i, p := range parts {
		if p == "" {
			continue
		}
		idx := strings.Index(s[pos:], p)
		if idx == -1 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		pos += idx + len(p)
	}
	if last := parts[len(parts)-1]; last != "" && !strings.HasSuffix(s, last) {
		return false
	}
	return true
}

// evalAnd/evalOr implement SQL three-valued logic (NULL = unknown)
// rather than NULL-propagate-always, since `false AND NULL` is `false`
// and `true OR NULL` is `true` per spec's boolean simplification rules.
func evalAnd(l, r chunk.Array) chunk.Array {
	b := chunk.NewBuilder(value.Boolean, l.Len())
	for i := 0; i < l.Len(); i++ {
		lv, rv := l.Get(i), r.Get(i)
		switch {
		case (!lv.Null && !lv.Bool()) || (!rv.Null && !rv.Bool()):
			b.Append(value.NewBool(false))
		case lv.Null || rv.Null:
			b.AppendNull()
		default:
			b.Append(value.NewBool(true))
		}
	}
	return b.Finish()
}

func evalOr(l, r chunk.Array) chunk.Array {
	b := chunk.NewBuilder(value.Boolean, l.Len())
	for i := 0; i < l.Len(); i++ {
		lv, rv := l.Get(i), r.Get(i)
		switch {
		case (!lv.Null && lv.Bool()) || (!rv.Null && rv.Bool()):
			b.Append(value.NewBool(true))
		case lv.Null || rv.Null:
			b.AppendNull()
		default:
			b.Append(value.NewBool(false))
		}
	}
	return b.Finish()
}

// arithOp evaluates a non-null pair. Integer results are checked for
// overflow (spec 7: ArithmeticOverflow) and division by zero surfaces
// DivisionByZero.
func arithOp(op string, l, r value.Value, resultType value.Type) (value.Value, error) {
	if resultType.Kind == value.KindString {
		if op != "+" {
			return value.Value{}, sqlerr.Wrapf(sqlerr.ErrCast, "operator %s not defined for text", op)
		}
		return value.NewString(l.Text() + r.Text()), nil
	}

	if resultType.Kind == value.KindDecimal {
		ld, rd := asDecimal(l), asDecimal(r)
		switch op {
		case "+":
			return value.NewDecimal(ld.Add(rd)), nil
		case "-":
			return value.NewDecimal(ld.Sub(rd)), nil
		case "*":
			return value.NewDecimal(ld.Mul(rd)), nil
		case "/":
			if rd.IsZero() {
				return value.Value{}, sqlerr.ErrDivisionByZero
			}
			return value.NewDecimal(ld.Div(rd)), nil
		}
	}

	if resultType.Kind == value.KindFloat32 || resultType.Kind == value.KindFloat64 {
		lf, rf := l.AsFloat64(), r.AsFloat64()
		var res float64
		switch op {
		case "+":
			res = lf + rf
		case "-":
			res = lf - rf
		case "*":
			res = lf * rf
		case "/":
			if rf == 0 {
				return value.Value{}, sqlerr.ErrDivisionByZero
			}
			res = lf / rf
		}
		if resultType.Kind == value.KindFloat32 {
			return value.NewFloat32(float32(res)), nil
		}
		return value.NewFloat64(res), nil
	}

	// Integer path (i32 or i64), overflow-checked.
	li, ri := asInt64(l), asInt64(r)
	var res int64
	switch op {
	case "+":
		res = li + ri
		if (ri > 0 && res < li) || (ri < 0 && res > li) {
			return value.Value{}, sqlerr.ErrArithmeticOverflow
		}
	case "-":
		res = li - ri
		if (ri < 0 && res < li) || (ri > 0 && res > li) {
			return value.Value{}, sqlerr.ErrArithmeticOverflow
		}
	case "*":
		if li != 0 && ri != 0 {
			res = li * ri
			if res/ri != li {
				return value.Value{}, sqlerr.ErrArithmeticOverflow
			}
		}
	case "/":
		if ri == 0 {
			return value.Value{}, sqlerr.ErrDivisionByZero
		}
		res = li / ri
	}
	if resultType.Kind == value.KindInt32 {
		if res > math.MaxInt32 || res < math.MinInt32 {
			return value.Value{}, sqlerr.ErrArithmeticOverflow
		}
		return value.NewInt32(int32(res)), nil
	}
	return value.NewInt64(res), nil
}

func asInt64(v value.Value) int64 {
	if v.Kind == value.KindInt32 {
		return int64(v.Int32())
	}
	return v.Int64()
}

func asDecimal(v value.Value) decimal.Decimal {
	if v.Kind == value.KindDecimal {
		return v.Decimal()
	}
	return decimal.NewFromFloat(v.AsFloat64())
}
