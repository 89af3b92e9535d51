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

// Package expr is quiver's bound expression IR (spec 3: "Bound
// expressions are a tree variant over: constant, column-ref ..., input-ref
// ..., binary/unary operator, aggregate call, type cast, CASE, IS-NULL,
// IN-list"). The Binder builds trees of ColumnRef nodes (tied to a
// table-ref id and catalog column id); the Logical Planner calls
// Resolve to rewrite each ColumnRef into an InputRef positioned against
// a concrete child schema, exactly once per plan node that consumes it.
// Every node compiles to the same vectorized contract the design notes
// call for: Eval(Chunk) -> (Array, error) — "each bound expression
// compiles to a closure (Chunk) -> Array".
package expr

import (
	"fmt"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/value"
)

// Expr is one node of the bound expression tree.
type Expr interface {
	Type() value.Type
	String() string
	// Eval computes this expression over every row of c, vectorized.
	Eval(c chunk.Chunk) (chunk.Array, error)
	// Resolve returns a copy of the tree with every ColumnRef bound to
	// (tableRef, columnID) rewritten to an InputRef positioned in s, or
	// an error if some referenced column is not present in s (an
	// internal invariant failure: the binder should never produce a
	// reference the planner can't place).
	Resolve(s schema.Schema) (Expr, error)
}

// Literal is a compile-time constant (spec 3: "constant").
type Literal struct {
	Val value.Value
	Typ value.Type
}

func NewLiteral(v value.Value, t value.Type) *Literal { return &Literal{Val: v, Typ: t} }

func (l *Literal) Type() value.Type { return l.Typ }
func (l *Literal) String() string   { return l.Val.String() }
func (l *Literal) Resolve(schema.Schema) (Expr, error) { return l, nil }

func (l *Literal) Eval(c chunk.Chunk) (chunk.Array, error) {
	b := chunk.NewBuilder(l.Typ, c.NumRows())
	for i := 0; i < c.NumRows(); i++ {
		b.Append(l.Val)
	}
	return b.Finish(), nil
}

// ColumnRef is a not-yet-positioned reference to a catalog (or upstream
// plan-node output) column, identified the way the binder names things:
// by table-reference id and column id (spec 3).
type ColumnRef struct {
	TableRef int
	ColumnID int
	Name     string
	Typ      value.Type
}

func (c *ColumnRef) Type() value.Type { return c.Typ }
func (c *ColumnRef) String() string   { return c.Name }

func (c *ColumnRef) Eval(chunk.Chunk) (chunk.Array, error) {
	return chunk.Array{}, fmt.Errorf("expr: unresolved ColumnRef %q reached evaluation", c.Name)
}

func (c *ColumnRef) Resolve(s schema.Schema) (Expr, error) {
	idx, ok := s.IndexOf(c.TableRef, c.ColumnID)
	if !ok {
		return nil, fmt.Errorf("expr: column %q not present in child schema", c.Name)
	}
	return &InputRef{Index: idx, Name: c.Name, Typ: c.Typ}, nil
}

// InputRef is a positional reference into the chunk an operator
// receives from its child (spec 3: "input-ref (by positional index
// after binding)").
type InputRef struct {
	Index int
	Name  string
	Typ   value.Type
}

func NewInputRef(i int, name string, t value.Type) *InputRef {
	return &InputRef{Index: i, Name: name, Typ: t}
}

func (r *InputRef) Type() value.Type { return r.Typ }
func (r *InputRef) String() string   { return r.Name }
func (r *InputRef) Resolve(schema.Schema) (Expr, error) { return r, nil }

func (r *InputRef) Eval(c chunk.Chunk) (chunk.Array, error) {
	if r.Index >= c.NumCols() {
		return chunk.Array{}, fmt.Errorf("expr: input index %d out of range (chunk has %d columns)", r.Index, c.NumCols())
	}
	return c.Columns[r.Index], nil
}

// resolveAll resolves each child against s (nil children stay nil), the
// common recursive step every composite node's Resolve performs before
// rebuilding itself.
func resolveAll(s schema.Schema, nodes ...Expr) ([]Expr, error) {
	out := make([]Expr, len(nodes))
	for i, n := range nodes {
		if n == nil {
			continue
		}
		r, err := n.Resolve(s)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}
