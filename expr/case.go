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

// WhenClause is one WHEN cond THEN result arm of a CaseExpr.
type WhenClause struct {
	Cond   Expr
	Result Expr
}

// CaseExpr models `CASE WHEN c1 THEN r1 ... ELSE e END` — explicitly
// NULL-aware per spec 4.5 (a NULL condition simply fails to match,
// falling through to the next WHEN or to ELSE).
type CaseExpr struct {
	Whens []WhenClause
	Else  Expr // nil means ELSE NULL
	Typ   value.Type
}

func NewCase(whens []WhenClause, elseExpr Expr, t value.Type) *CaseExpr {
	return &CaseExpr{Whens: whens, Else: elseExpr, Typ: t}
}

func (c *CaseExpr) Type() value.Type { return c.Typ }
func (c *CaseExpr) String() string   { return "CASE ... END" }

func (c *CaseExpr) Resolve(s schema.Schema) (Expr, error) {
	whens := make([]WhenClause, len(c.Whens))
	for i, w := range c.Whens {
		cond, err := w.Cond.Resolve(s)
		if err != nil {
			return nil, err
		}
		result, err := w.Result.Resolve(s)
		if err != nil {
			return nil, err
		}
		whens[i] = WhenClause{Cond: cond, Result: result}
	}
	var elseExpr Expr
	if c.Else != nil {
		var err error
		elseExpr, err = c.Else.Resolve(s)
		if err != nil {
			return nil, err
		}
	}
	return &CaseExpr{Whens: whens, Else: elseExpr, Typ: c.Typ}, nil
}

func (c *CaseExpr) Eval(ck chunk.Chunk) (chunk.Array, error) {
	conds := make([]chunk.Array, len(c.Whens))
	results := make([]chunk.Array, len(c.Whens))
	for i, w := range c.Whens {
		cv, err := w.Cond.Eval(ck)
		if err != nil {
			return chunk.Array{}, err
		}
		rv, err := w.Result.Eval(ck)
		if err != nil {
			return chunk.Array{}, err
		}
		conds[i], results[i] = cv, rv
	}
	var elseArr chunk.Array
	if c.Else != nil {
		var err error
		elseArr, err = c.Else.Eval(ck)
		if err != nil {
			return chunk.Array{}, err
		}
	}

	out := chunk.NewBuilder(c.Typ, ck.NumRows())
	for row := 0; row < ck.NumRows(); row++ {
		matched := false
		for i := range c.Whens {
			cv := conds[i].Get(row)
			if !cv.Null && cv.Bool() {
				out.Append(results[i].Get(row))
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if c.Else != nil {
			out.Append(elseArr.Get(row))
		} else {
			out.AppendNull()
		}
	}
	return out.Finish(), nil
}
