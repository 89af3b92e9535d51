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

	"github.com/OneOfOne/xxhash"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
)

// hashJoinIter materializes the right side into a hash table keyed by
// RightKeys, then streams the left side probing it (spec 4.5:
// "builds a hash table from the smaller (build) side ... then streams
// the probe side"). quiver always builds from the right child; the
// physical planner is free to swap sides for LEFT/RIGHT roles, but the
// optimizer does not yet cost-estimate which side is smaller.
type hashJoinIter struct {
	left, right Iter
	kind        ast.JoinKind
	leftKeys    []expr.Expr
	rightKeys   []expr.Expr
	residual    expr.Expr

	built     bool
	buildRows []chunk.Chunk // one chunk per row, for simplicity of row access
	table     map[uint64][]buildRow
	visited   map[buildRow]bool // FULL OUTER: build rows matched by some probe row

	pendingLeft  chunk.Chunk
	leftRowIdx   int
	done         bool
	drained      bool
}

type buildRow struct {
	chunkIdx int
	rowIdx   int
}

func newHashJoinIter(left, right Iter, n plan.PhysicalHashJoin, batchSize int) (Iter, error) {
	return &hashJoinIter{
		left: left, right: right, kind: n.Kind,
		leftKeys: n.LeftKeys, rightKeys: n.RightKeys, residual: n.Residual,
		table:   map[uint64][]buildRow{},
		visited: map[buildRow]bool{},
	}, nil
}

// build drains the right side once, hashing RightKeys per row.
func (j *hashJoinIter) build() error {
	for {
		c, err := j.right.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		chunkIdx := len(j.buildRows)
		j.buildRows = append(j.buildRows, c)
		keys := make([]chunk.Array, len(j.rightKeys))
		for i, k := range j.rightKeys {
			arr, err := k.Eval(c)
			if err != nil {
				return err
			}
			keys[i] = arr
		}
		for row := 0; row < c.NumRows(); row++ {
			h, ok := hashRow(keys, row)
			if !ok {
				continue // NULL key: SQL equality is unknown, never matches (spec 4.5)
			}
			br := buildRow{chunkIdx: chunkIdx, rowIdx: row}
			j.table[h] = append(j.table[h], br)
		}
	}
	j.built = true
	return nil
}

func hashRow(keys []chunk.Array, row int) (uint64, bool) {
	h := xxhash.New64()
	for _, k := range keys {
		if !k.IsValid(row) {
			return 0, false
		}
		v := k.Get(row)
		h.Write([]byte(v.String()))
		h.Write([]byte{0}) // separator, so ("a","bc") and ("ab","c") don't collide
	}
	return h.Sum64(), true
}

func (j *hashJoinIter) Next() (chunk.Chunk, error) {
	if !j.built {
		if err := j.build(); err != nil {
			return chunk.Chunk{}, err
		}
	}
	for {
		if j.pendingLeft.NumRows() == 0 || j.leftRowIdx >= j.pendingLeft.NumRows() {
			if j.done {
				return chunk.Chunk{}, io.EOF
			}
			c, err := j.left.Next()
			if err == io.EOF {
				j.done = true
				return j.drainUnvisited()
			}
			if err != nil {
				return chunk.Chunk{}, err
			}
			j.pendingLeft = c
			j.leftRowIdx = 0
			continue
		}

		out, err := j.probeOneRow()
		if err != nil {
			return chunk.Chunk{}, err
		}
		j.leftRowIdx++
		if out.NumRows() > 0 {
			return out, nil
		}
	}
}

// probeOneRow evaluates LeftKeys for the current left row, looks up
// matches, applies the residual, and materializes matched (or
// unmatched-padded-with-NULL, for outer joins) output rows.
func (j *hashJoinIter) probeOneRow() (chunk.Chunk, error) {
	row := j.leftRowIdx
	single := j.pendingLeft.Take([]int{row})
	keys := make([]chunk.Array, len(j.leftKeys))
	for i, k := range j.leftKeys {
		arr, err := k.Eval(single)
		if err != nil {
			return chunk.Chunk{}, err
		}
		keys[i] = arr
	}
	h, ok := hashRow(keys, 0)
	var candidates []buildRow
	if ok {
		candidates = j.table[h]
	}

	var matchedRows []chunk.Chunk
	for _, br := range candidates {
		rc := j.buildRows[br.chunkIdx].Take([]int{br.rowIdx})
		combined, err := concatChunks(single, rc)
		if err != nil {
			return chunk.Chunk{}, err
		}
		if j.residual != nil {
			mask, err := j.residual.Eval(combined)
			if err != nil {
				return chunk.Chunk{}, err
			}
			if !mask.IsValid(0) || !mask.Get(0).Bool() {
				continue
			}
		}
		matchedRows = append(matchedRows, combined)
		j.visited[br] = true
	}

	if len(matchedRows) > 0 {
		return concatAll(matchedRows)
	}
	if j.kind == ast.JoinLeft || j.kind == ast.JoinFull {
		rightNull := nullChunkLike(j.rightSchemaSample())
		return concatChunks(single, rightNull)
	}
	return chunk.Chunk{}, nil
}

// drainUnvisited, for FULL OUTER, emits build-side rows no probe row
// ever matched, padded with NULLs on the left (spec 4.5: "FULL OUTER
// tracks a visited-bit per build row").
func (j *hashJoinIter) drainUnvisited() (chunk.Chunk, error) {
	if (j.kind != ast.JoinFull && j.kind != ast.JoinRight) || j.drained {
		return chunk.Chunk{}, io.EOF
	}
	var rows []chunk.Chunk
	for ci, c := range j.buildRows {
		for ri := 0; ri < c.NumRows(); ri++ {
			br := buildRow{chunkIdx: ci, rowIdx: ri}
			if j.visited[br] {
				continue
			}
			leftNull := nullChunkLike(j.leftSchemaSample())
			rc := c.Take([]int{ri})
			combined, err := concatChunks(leftNull, rc)
			if err != nil {
				return chunk.Chunk{}, err
			}
			rows = append(rows, combined)
		}
	}
	if len(rows) == 0 {
		j.drained = true
		return chunk.Chunk{}, io.EOF
	}
	j.drained = true
	return concatAll(rows)
}

func (j *hashJoinIter) leftSchemaSample() chunk.Chunk { return j.pendingLeft }
func (j *hashJoinIter) rightSchemaSample() chunk.Chunk {
	if len(j.buildRows) > 0 {
		return j.buildRows[0]
	}
	return chunk.Chunk{}
}

func (j *hashJoinIter) Close() error {
	if err := j.left.Close(); err != nil {
		j.right.Close()
		return err
	}
	return j.right.Close()
}

// nestedLoopJoinIter evaluates the full ON condition over every
// (left-row, right-row) pair (spec 4.5: "doubly nested over batches").
// The right side is materialized once; the left side streams.
type nestedLoopJoinIter struct {
	left, right Iter
	kind        ast.JoinKind
	on          expr.Expr

	built      bool
	buildRows  []chunk.Chunk
	visited    map[buildRow]bool

	pendingLeft chunk.Chunk
	leftRowIdx  int
	done        bool
	drained     bool
}

func newNestedLoopJoinIter(left, right Iter, n plan.PhysicalNestedLoopJoin, batchSize int) Iter {
	return &nestedLoopJoinIter{left: left, right: right, kind: n.Kind, on: n.On, visited: map[buildRow]bool{}}
}

func (j *nestedLoopJoinIter) build() error {
	for {
		c, err := j.right.Next()
		if err == io.EOF {
			j.built = true
			return nil
		}
		if err != nil {
			return err
		}
		j.buildRows = append(j.buildRows, c)
	}
}

func (j *nestedLoopJoinIter) Next() (chunk.Chunk, error) {
	if !j.built {
		if err := j.build(); err != nil {
			return chunk.Chunk{}, err
		}
	}
	for {
		if j.pendingLeft.NumRows() == 0 || j.leftRowIdx >= j.pendingLeft.NumRows() {
			if j.done {
				return chunk.Chunk{}, io.EOF
			}
			c, err := j.left.Next()
			if err == io.EOF {
				j.done = true
				return j.drainUnvisited()
			}
			if err != nil {
				return chunk.Chunk{}, err
			}
			j.pendingLeft = c
			j.leftRowIdx = 0
			continue
		}
		out, err := j.probeOneRow()
		if err != nil {
			return chunk.Chunk{}, err
		}
		j.leftRowIdx++
		if out.NumRows() > 0 {
			return out, nil
		}
	}
}

func (j *nestedLoopJoinIter) probeOneRow() (chunk.Chunk, error) {
	single := j.pendingLeft.Take([]int{j.leftRowIdx})
	var matched []chunk.Chunk
	for ci, c := range j.buildRows {
		for ri := 0; ri < c.NumRows(); ri++ {
			rc := c.Take([]int{ri})
			combined, err := concatChunks(single, rc)
			if err != nil {
				return chunk.Chunk{}, err
			}
			if j.on != nil {
				mask, err := j.on.Eval(combined)
				if err != nil {
					return chunk.Chunk{}, err
				}
				if !mask.IsValid(0) || !mask.Get(0).Bool() {
					continue
				}
			}
			matched = append(matched, combined)
			j.visited[buildRow{chunkIdx: ci, rowIdx: ri}] = true
		}
	}
	if len(matched) > 0 {
		return concatAll(matched)
	}
	if j.kind == ast.JoinLeft || j.kind == ast.JoinFull {
		rightNull := nullChunkLike(j.rightSchemaSample())
		return concatChunks(single, rightNull)
	}
	return chunk.Chunk{}, nil
}

func (j *nestedLoopJoinIter) rightSchemaSample() chunk.Chunk {
	if len(j.buildRows) > 0 {
		return j.buildRows[0]
	}
	return chunk.Chunk{}
}

func (j *nestedLoopJoinIter) drainUnvisited() (chunk.Chunk, error) {
	if (j.kind != ast.JoinFull && j.kind != ast.JoinRight) || j.drained {
		return chunk.Chunk{}, io.EOF
	}
	var rows []chunk.Chunk
	for ci, c := range j.buildRows {
		for ri := 0; ri < c.NumRows(); ri++ {
			br := buildRow{chunkIdx: ci, rowIdx: ri}
			if j.visited[br] {
				continue
			}
			leftNull := nullChunkLike(j.pendingLeft)
			rc := c.Take([]int{ri})
			combined, err := concatChunks(leftNull, rc)
			if err != nil {
				return chunk.Chunk{}, err
			}
			rows = append(rows, combined)
		}
	}
	j.drained = true
	if len(rows) == 0 {
		return chunk.Chunk{}, io.EOF
	}
	return concatAll(rows)
}

func (j *nestedLoopJoinIter) Close() error {
	if err := j.left.Close(); err != nil {
		j.right.Close()
		return err
	}
	return j.right.Close()
}

// concatChunks horizontally joins two single-row chunks into one row
// with both sets of columns.
func concatChunks(a, b chunk.Chunk) (chunk.Chunk, error) {
	names := append(append([]string{}, a.Names...), b.Names...)
	cols := append(append([]chunk.Array{}, a.Columns...), b.Columns...)
	return chunk.New(names, cols)
}

// concatAll vertically stacks same-schema single-row chunks into one
// chunk, used to batch a left row's matches before returning.
func concatAll(rows []chunk.Chunk) (chunk.Chunk, error) {
	if len(rows) == 1 {
		return rows[0], nil
	}
	names := rows[0].Names
	cols := make([]chunk.Array, len(names))
	for ci := range names {
		builder := chunk.NewBuilder(rows[0].Columns[ci].Type(), len(rows))
		for _, r := range rows {
			if r.Columns[ci].IsValid(0) {
				builder.Append(r.Columns[ci].Get(0))
			} else {
				builder.AppendNull()
			}
		}
		cols[ci] = builder.Finish()
	}
	return chunk.New(names, cols)
}

// nullChunkLike returns a one-row, all-NULL chunk with sample's schema,
// used to pad the unmatched side of an outer join.
func nullChunkLike(sample chunk.Chunk) chunk.Chunk {
	cols := make([]chunk.Array, len(sample.Names))
	for i, arr := range sample.Columns {
		b := chunk.NewBuilder(arr.Type().AsNullable(), 1)
		b.AppendNull()
		cols[i] = b.Finish()
	}
	out, _ := chunk.New(sample.Names, cols)
	return out
}
