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
	"fmt"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/value"
)

// AggFunc enumerates the aggregates spec 4.5 requires.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggCountStar
	AggSum
	AggMin
	AggMax
	AggAvg
)

func (f AggFunc) String() string {
	switch f {
	case AggCount, AggCountStar:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	case AggAvg:
		return "AVG"
	default:
		return "?"
	}
}

// AggExpr is an aggregate call (spec 3: "aggregate call"). It is not
// vectorized-evaluated the way other Expr nodes are — rowexec's HashAgg
// operator interprets AggExpr.Func/Arg directly against its accumulator
// state — but it still satisfies the Expr interface so it can live
// inside a bound/logical expression tree (e.g. as a Project input that
// the Logical Planner pulls out into an Agg node, spec 4.2: "Aggregation
// pulls out aggregate expressions and replaces them inside the outer
// projection with references to the agg output columns").
type AggExpr struct {
	Func     AggFunc
	Arg      Expr // nil for COUNT(*)
	Distinct bool
	Typ      value.Type
}

func NewAgg(f AggFunc, arg Expr, distinct bool, t value.Type) *AggExpr {
	return &AggExpr{Func: f, Arg: arg, Distinct: distinct, Typ: t}
}

func (a *AggExpr) Type() value.Type { return a.Typ }

func (a *AggExpr) String() string {
	if a.Arg == nil {
		return fmt.Sprintf("%s(*)", a.Func)
	}
	return fmt.Sprintf("%s(%s)", a.Func, a.Arg.String())
}

func (a *AggExpr) Resolve(s schema.Schema) (Expr, error) {
	if a.Arg == nil {
		return a, nil
	}
	arg, err := a.Arg.Resolve(s)
	if err != nil {
		return nil, err
	}
	return &AggExpr{Func: a.Func, Arg: arg, Distinct: a.Distinct, Typ: a.Typ}, nil
}

func (a *AggExpr) Eval(chunk.Chunk) (chunk.Array, error) {
	return chunk.Array{}, fmt.Errorf("expr: AggExpr must be evaluated by HashAgg, not generically")
}
