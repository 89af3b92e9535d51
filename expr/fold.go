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
	"github.com/quiverdb/quiver/value"
)

// IsConstant reports whether e's tree contains no InputRef/ColumnRef/
// AggExpr, i.e. it can be folded to a Literal at plan time (spec 4.3:
// "Constant folding: any expression whose operands are all literals is
// evaluated at plan time using the executor's expression kernel").
func IsConstant(e Expr) bool {
	switch n := e.(type) {
	case *Literal:
		return true
	case *InputRef, *ColumnRef, *AggExpr:
		return false
	case *BinaryExpr:
		return IsConstant(n.Left) && IsConstant(n.Right)
	case *UnaryExpr:
		return IsConstant(n.Operand)
	case *CastExpr:
		return IsConstant(n.Operand)
	case *IsNullExpr:
		return IsConstant(n.Operand)
	case *InListExpr:
		if !IsConstant(n.Operand) {
			return false
		}
		for _, item := range n.List {
			if !IsConstant(item) {
				return false
			}
		}
		return true
	case *CaseExpr:
		for _, w := range n.Whens {
			if !IsConstant(w.Cond) || !IsConstant(w.Result) {
				return false
			}
		}
		return n.Else == nil || IsConstant(n.Else)
	default:
		return false
	}
}

// Fold evaluates a constant expression (IsConstant(e) must be true) and
// returns its result as a *Literal, using the same Eval kernels the
// executor runs at query time — there is exactly one expression
// evaluator in quiver, reused by the optimizer at plan time.
func Fold(e Expr) (*Literal, error) {
	dummy := chunk.Chunk{}
	b := chunk.NewBuilder(value.Boolean, 1)
	b.AppendNull()
	_ = b.Finish()
	row, err := oneRowChunk(e)
	if err != nil {
		return nil, err
	}
	_ = dummy
	arr, err := e.Eval(row)
	if err != nil {
		return nil, err
	}
	return &Literal{Val: arr.Get(0), Typ: e.Type()}, nil
}

// oneRowChunk builds a single-row chunk whose only column is an unnamed,
// all-NULL marker: enough to drive Eval for a tree with no InputRef
// nodes, since every Literal/arithmetic/boolean kernel only consults
// c.NumRows().
func oneRowChunk(Expr) (chunk.Chunk, error) {
	return chunk.Chunk{Columns: []chunk.Array{oneRowMarker()}, Names: []string{""}}, nil
}

func oneRowMarker() chunk.Array {
	b := chunk.NewBuilder(value.Boolean, 1)
	b.AppendNull()
	return b.Finish()
}
