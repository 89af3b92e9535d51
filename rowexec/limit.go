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
)

// limitIter skips Offset rows and then passes through at most Limit
// rows, used when the optimizer did not fuse the LIMIT into a TopN: no
// ORDER BY directly beneath it, or OFFSET without LIMIT (spec 4.4).
type limitIter struct {
	input  Iter
	limit  int64
	offset int64

	skipped int64
	emitted int64
}

func newLimitIter(input Iter, limit, offset int64) Iter {
	return &limitIter{input: input, limit: limit, offset: offset}
}

func (l *limitIter) Next() (chunk.Chunk, error) {
	if l.limit >= 0 && l.emitted >= l.limit {
		return chunk.Chunk{}, io.EOF
	}
	for {
		c, err := l.input.Next()
		if err != nil {
			return chunk.Chunk{}, err
		}
		n := int64(c.NumRows())
		if l.skipped+n <= l.offset {
			l.skipped += n
			continue
		}
		start := int64(0)
		if l.skipped < l.offset {
			start = l.offset - l.skipped
		}
		l.skipped += n

		sel := make([]int, 0, n-start)
		for i := start; i < n; i++ {
			if l.limit >= 0 && l.emitted >= l.limit {
				break
			}
			sel = append(sel, int(i))
			l.emitted++
		}
		if len(sel) == 0 {
			continue
		}
		return c.Take(sel), nil
	}
}

func (l *limitIter) Close() error { return l.input.Close() }
