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
	"io"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

// explainIter emits the already-rendered plan text as a single
// single-column chunk; EXPLAIN never touches storage (spec 4.5).
type explainIter struct {
	n    plan.PhysicalExplain
	done bool
}

func newExplainIter(n plan.PhysicalExplain) Iter {
	return &explainIter{n: n}
}

func (e *explainIter) Next() (chunk.Chunk, error) {
	if e.done {
		return chunk.Chunk{}, io.EOF
	}
	e.done = true
	b := chunk.NewBuilder(value.String.NotNull(), 1)
	b.Append(value.NewString(e.n.Rendered))
	return chunk.New([]string{"plan"}, []chunk.Array{b.Finish()})
}

func (e *explainIter) Close() error { return nil }
