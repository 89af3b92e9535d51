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

package rowexec

import (
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/expr"
)

// projectIter evaluates each expression against the input chunk,
// producing one output column per expression (spec 4.5: "expressions
// are pure (no I/O, no ordering effects)").
type projectIter struct {
	input Iter
	exprs []expr.Expr
	names []string
}

func newProjectIter(input Iter, exprs []expr.Expr, names []string) Iter {
	return &projectIter{input: input, exprs: exprs, names: names}
}

func (p *projectIter) Next() (chunk.Chunk, error) {
	c, err := p.input.Next()
	if err != nil {
		return chunk.Chunk{}, err
	}
	cols := make([]chunk.Array, len(p.exprs))
	for i, e := range p.exprs {
		arr, err := e.Eval(c)
		if err != nil {
			return chunk.Chunk{}, err
		}
		cols[i] = arr
	}
	out, err := chunk.New(p.names, cols)
	if err != nil {
		return chunk.Chunk{}, err
	}
	out.RowCount = c.NumRows()
	return out, nil
}

func (p *projectIter) Close() error { return p.input.Close() }
