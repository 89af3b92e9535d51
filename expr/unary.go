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
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/value"
)

// UnaryExpr is NOT or unary minus.
type UnaryExpr struct {
	Op      string
	Operand Expr
	Typ     value.Type
}

func NewUnary(op string, operand Expr, t value.Type) *UnaryExpr {
	return &UnaryExpr{Op: op, Operand: operand, Typ: t}
}

func (u *UnaryExpr) Type() value.Type { return u.Typ }
func (u *UnaryExpr) String() string   { return u.Op + "(" + u.Operand.String() + ")" }

func (u *UnaryExpr) Resolve(s schema.Schema) (Expr, error) {
	rs, err := resolveAll(s, u.Operand)
	if err != nil {
		return nil, err
	}
	return &UnaryExpr{Op: u.Op, Operand: rs[0], Typ: u.Typ}, nil
}

func (u *UnaryExpr) Eval(c chunk.Chunk) (chunk.Array, error) {
	operand, err := u.Operand.Eval(c)
	if err != nil {
		return chunk.Array{}, err
	}
	out := chunk.NewBuilder(u.Typ, c.NumRows())
	for i := 0; i < c.NumRows(); i++ {
		v := operand.Get(i)
		if v.Null {
			out.AppendNull()
			continue
		}
		switch u.Op {
		case "NOT":
			out.Append(value.NewBool(!v.Bool()))
		case "-":
			out.Append(negate(v))
		}
	}
	return out.Finish(), nil
}

func negate(v value.Value) value.Value {
	switch v.Kind {
	case value.KindInt32:
		return value.NewInt32(-v.Int32())
	case value.KindInt64:
		return value.NewInt64(-v.Int64())
	case value.KindFloat32:
		return value.NewFloat32(-v.Float32())
	case value.KindFloat64:
		return value.NewFloat64(-v.Float64())
	case value.KindDecimal:
		return value.NewDecimal(v.Decimal().Neg())
	default:
		return v
	}
}

// IsNullExpr is IS [NOT] NULL — explicitly NULL-aware, per spec 4.5.
type IsNullExpr struct {
	Operand Expr
	Not     bool
}

func NewIsNull(operand Expr, not bool) *IsNullExpr { return &IsNullExpr{Operand: operand, Not: not} }

func (e *IsNullExpr) Type() value.Type { return value.Boolean.NotNull() }
func (e *IsNullExpr) String() string {
	if e.Not {
		return e.Operand.String() + " IS NOT NULL"
	}
	return e.Operand.String() + " IS NULL"
}

func (e *IsNullExpr) Resolve(s schema.Schema) (Expr, error) {
	rs, err := resolveAll(s, e.Operand)
	if err != nil {
		return nil, err
	}
	return &IsNullExpr{Operand: rs[0], Not: e.Not}, nil
}

func (e *IsNullExpr) Eval(c chunk.Chunk) (chunk.Array, error) {
	operand, err := e.Operand.Eval(c)
	if err != nil {
		return chunk.Array{}, err
	}
	out := chunk.NewBuilder(value.Boolean.NotNull(), c.NumRows())
	for i := 0; i < c.NumRows(); i++ {
		isNull := !operand.IsValid(i)
		out.Append(value.NewBool(isNull != e.Not))
	}
	return out.Finish(), nil
}

// InListExpr is `x [NOT] IN (e1, e2, ...)`.
type InListExpr struct {
	Operand Expr
	List    []Expr
	Not     bool
}

func NewInList(operand Expr, list []Expr, not bool) *InListExpr {
	return &InListExpr{Operand: operand, List: list, Not: not}
}

func (e *InListExpr) Type() value.Type { return value.Boolean }
func (e *InListExpr) String() string   { return e.Operand.String() + " IN (...)" }

func (e *InListExpr) Resolve(s schema.Schema) (Expr, error) {
	operand, err := e.Operand.Resolve(s)
	if err != nil {
		return nil, err
	}
	list := make([]Expr, len(e.List))
	for i, item := range e.List {
		r, err := item.Resolve(s)
		if err != nil {
			return nil, err
		}
		list[i] = r
	}
	return &InListExpr{Operand: operand, List: list, Not: e.Not}, nil
}

func (e *InListExpr) Eval(c chunk.Chunk) (chunk.Array, error) {
	operand, err := e.Operand.Eval(c)
	if err != nil {
		return chunk.Array{}, err
	}
	lists := make([]chunk.Array, len(e.List))
	for i, item := range e.List {
		a, err := item.Eval(c)
		if err != nil {
			return chunk.Array{}, err
		}
		lists[i] = a
	}

	out := chunk.NewBuilder(value.Boolean, c.NumRows())
	for row := 0; row < c.NumRows(); row++ {
		lv := operand.Get(row)
		if lv.Null {
			out.AppendNull()
			continue
		}
		found := false
		sawNull := false
		for _, list := range lists {
			rv := list.Get(row)
			if rv.Null {
				sawNull = true
				continue
			}
			if value.Compare(lv, rv) == 0 {
				found = true
				break
			}
		}
		switch {
		case found:
			out.Append(value.NewBool(!e.Not))
		case sawNull:
			out.AppendNull()
		default:
			out.Append(value.NewBool(e.Not))
		}
	}
	return out.Finish(), nil
}
