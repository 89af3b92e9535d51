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

// filterIter evaluates predicate against every input chunk and keeps
// only rows where it is true (not null, not false); chunks that end up
// empty are skipped entirely so nothing downstream ever sees a
// zero-row chunk (spec 4.5: "empty results are skipped").
type filterIter struct {
	input     Iter
	predicate expr.Expr
}

func newFilterIter(input Iter, predicate expr.Expr) Iter {
	return &filterIter{input: input, predicate: predicate}
}

func (f *filterIter) Next() (chunk.Chunk, error) {
	for {
		c, err := f.input.Next()
		if err != nil {
			return chunk.Chunk{}, err
		}
		mask, err := f.predicate.Eval(c)
		if err != nil {
			return chunk.Chunk{}, err
		}
		sel := make([]int, 0, c.NumRows())
		for i := 0; i < c.NumRows(); i++ {
			if mask.IsValid(i) && mask.Get(i).Bool() {
				sel = append(sel, i)
			}
		}
		if len(sel) == 0 {
			continue
		}
		return c.Take(sel), nil
	}
}

func (f *filterIter) Close() error { return f.input.Close() }
