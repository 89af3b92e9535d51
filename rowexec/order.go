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
	"container/heap"
	"io"
	"sort"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

// orderRow is one materialized row plus its pre-evaluated sort keys,
// shared by orderIter and topNIter.
type orderRow struct {
	cols []value.Value // one value per output column
	keys []value.Value // one value per OrderKey, pre-evaluated
}

// orderIter materializes the entire input, sorts it stably by Keys,
// and re-emits in batches (spec 4.5: "materializes all input, sorts by
// the comparator list with stable ordering").
type orderIter struct {
	input     Iter
	keys      []plan.OrderKey
	batchSize int

	names   []string
	colType []value.Type
	sorted  []orderRow
	emitted int
}

func newOrderIter(input Iter, keys []plan.OrderKey, batchSize int) Iter {
	return &orderIter{input: input, keys: keys, batchSize: batchSize}
}

func (o *orderIter) materialize() error {
	var rows []orderRow
	for {
		c, err := o.input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if o.names == nil {
			o.names = c.Names
			o.colType = make([]value.Type, len(c.Columns))
			for i, col := range c.Columns {
				o.colType[i] = col.Type()
			}
		}
		keyArrs := make([]chunk.Array, len(o.keys))
		for i, k := range o.keys {
			arr, err := k.Expr.Eval(c)
			if err != nil {
				return err
			}
			keyArrs[i] = arr
		}
		for r := 0; r < c.NumRows(); r++ {
			row := orderRow{cols: make([]value.Value, len(c.Columns)), keys: make([]value.Value, len(o.keys))}
			for ci, col := range c.Columns {
				if col.IsValid(r) {
					row.cols[ci] = col.Get(r)
				}
			}
			for ki, arr := range keyArrs {
				if arr.IsValid(r) {
					row.keys[ki] = arr.Get(r)
				}
			}
			rows = append(rows, row)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return lessRow(rows[i], rows[j], o.keys) })
	o.sorted = rows
	return nil
}

// lessRow orders NULLs first, matching the binder's default NULLS
// ordering (spec Open Question, decided in DESIGN.md: "NULLS FIRST for
// ASC, NULLS LAST for DESC").
func lessRow(a, b orderRow, keys []plan.OrderKey) bool {
	for i, k := range keys {
		av, bv := a.keys[i], b.keys[i]
		aNull, bNull := av.Kind == value.KindInvalid, bv.Kind == value.KindInvalid
		if aNull && bNull {
			continue
		}
		if aNull != bNull {
			if k.Desc {
				return bNull
			}
			return aNull
		}
		c := value.Compare(av, bv)
		if c == 0 {
			continue
		}
		if k.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

func (o *orderIter) Next() (chunk.Chunk, error) {
	if o.sorted == nil && o.names == nil {
		if err := o.materialize(); err != nil {
			return chunk.Chunk{}, err
		}
	}
	if o.emitted >= len(o.sorted) {
		return chunk.Chunk{}, io.EOF
	}
	end := o.emitted + o.batchSize
	if end > len(o.sorted) {
		end = len(o.sorted)
	}
	c, err := rowsToChunk(o.names, o.colType, o.sorted[o.emitted:end])
	o.emitted = end
	return c, err
}

func (o *orderIter) Close() error { return o.input.Close() }

func rowsToChunk(names []string, types []value.Type, rows []orderRow) (chunk.Chunk, error) {
	cols := make([]chunk.Array, len(names))
	for ci := range names {
		b := chunk.NewBuilder(types[ci], len(rows))
		for _, r := range rows {
			if r.cols[ci].Kind == value.KindInvalid {
				b.AppendNull()
			} else {
				b.Append(r.cols[ci])
			}
		}
		cols[ci] = b.Finish()
	}
	return chunk.New(names, cols)
}

// topNHeap is a max-heap (by "worst" row first) of bounded size
// offset+limit, used by topNIter (spec 4.5: "maintains a bounded heap
// of size offset+limit").
type topNHeap struct {
	rows []orderRow
	keys []plan.OrderKey
}

func (h *topNHeap) Len() int { return len(h.rows) }
func (h *topNHeap) Less(i, j int) bool {
	// Max-heap on "worse than": the root is the row that would be
	// evicted first, i.e. the one lessRow ranks last.
	return lessRow(h.rows[j], h.rows[i], h.keys)
}
func (h *topNHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *topNHeap) Push(x interface{}) { h.rows = append(h.rows, x.(orderRow)) }
func (h *topNHeap) Pop() interface{} {
	n := len(h.rows)
	v := h.rows[n-1]
	h.rows = h.rows[:n-1]
	return v
}

// topNIter is PhysicalTopN: Limit+Order fused by the optimizer into a
// single bounded-heap operator (spec 4.3/4.5).
type topNIter struct {
	input  Iter
	keys   []plan.OrderKey
	limit  int64
	offset int64

	names   []string
	colType []value.Type
	result  []orderRow
	emitted bool
	pos     int
}

func newTopNIter(input Iter, keys []plan.OrderKey, limit, offset int64) Iter {
	return &topNIter{input: input, keys: keys, limit: limit, offset: offset}
}

func (t *topNIter) materialize() error {
	bound := int(t.offset + t.limit)
	h := &topNHeap{keys: t.keys}
	heap.Init(h)
	for {
		c, err := t.input.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if t.names == nil {
			t.names = c.Names
			t.colType = make([]value.Type, len(c.Columns))
			for i, col := range c.Columns {
				t.colType[i] = col.Type()
			}
		}
		keyArrs := make([]chunk.Array, len(t.keys))
		for i, k := range t.keys {
			arr, err := k.Expr.Eval(c)
			if err != nil {
				return err
			}
			keyArrs[i] = arr
		}
		for r := 0; r < c.NumRows(); r++ {
			row := orderRow{cols: make([]value.Value, len(c.Columns)), keys: make([]value.Value, len(t.keys))}
			for ci, col := range c.Columns {
				if col.IsValid(r) {
					row.cols[ci] = col.Get(r)
				}
			}
			for ki, arr := range keyArrs {
				if arr.IsValid(r) {
					row.keys[ki] = arr.Get(r)
				}
			}
			if bound <= 0 {
				continue
			}
			if h.Len() < bound {
				heap.Push(h, row)
			} else if lessRow(row, h.rows[0], t.keys) {
				heap.Pop(h)
				heap.Push(h, row)
			}
		}
	}
	sort.SliceStable(h.rows, func(i, j int) bool { return lessRow(h.rows[i], h.rows[j], t.keys) })
	if int(t.offset) >= len(h.rows) {
		t.result = nil
	} else {
		t.result = h.rows[t.offset:]
	}
	return nil
}

func (t *topNIter) Next() (chunk.Chunk, error) {
	if !t.emitted {
		if err := t.materialize(); err != nil {
			return chunk.Chunk{}, err
		}
		t.emitted = true
	}
	if t.pos >= len(t.result) {
		return chunk.Chunk{}, io.EOF
	}
	c, err := rowsToChunk(t.names, t.colType, t.result[t.pos:])
	t.pos = len(t.result)
	return c, err
}

func (t *topNIter) Close() error { return t.input.Close() }
