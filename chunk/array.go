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

// Package chunk implements quiver's columnar in-memory batch: Array (one
// typed, immutable column of ~2048-4096 rows), Builder (the mutable
// counterpart that yields an Array on Finish), and Chunk (a named,
// equal-length sequence of arrays forming one horizontal row batch).
//
// Dispatch over the handful of physical representations is done with a
// single struct tagged by value.Kind rather than per-type structs behind
// an interface: the set of physical types is closed and small, and a
// tagged-union switch keeps the vectorized kernels in expr and rowexec
// free of type assertions (design notes: "avoid open-ended runtime
// reflection").
package chunk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quiverdb/quiver/value"
)

// TargetBatchSize is the default number of rows quiver aims to pack into
// one Chunk (spec 3: "~2048").
const TargetBatchSize = 2048

// Array is an immutable, single-typed column of values. Arrays are built
// exclusively through Builder and never mutated after Finish.
type Array struct {
	typ   value.Type
	n     int
	valid Bitmap

	bools     Bitmap
	i32       []int32
	i64       []int64
	f32       []float32
	f64       []float64
	decimals  []decimal.Decimal
	offsets   []int32 // len n+1, string payload
	bytes     []byte
	dates     []time.Time
	intervals []time.Duration
}

func (a Array) Type() value.Type { return a.typ }
func (a Array) Len() int         { return a.n }

// IsValid reports whether row i holds a defined (non-NULL) value.
func (a Array) IsValid(i int) bool { return a.valid.Get(i) }

// Get returns the scalar at row i, or a typed NULL if the row is not
// valid.
func (a Array) Get(i int) value.Value {
	if !a.valid.Get(i) {
		return value.Null(a.typ.Kind)
	}
	switch a.typ.Kind {
	case value.KindBoolean:
		return value.NewBool(a.bools.Get(i))
	case value.KindInt32:
		return value.NewInt32(a.i32[i])
	case value.KindInt64:
		return value.NewInt64(a.i64[i])
	case value.KindFloat32:
		return value.NewFloat32(a.f32[i])
	case value.KindFloat64:
		return value.NewFloat64(a.f64[i])
	case value.KindDecimal:
		return value.NewDecimal(a.decimals[i])
	case value.KindString:
		return value.NewString(string(a.bytes[a.offsets[i]:a.offsets[i+1]]))
	case value.KindDate:
		return value.NewDate(a.dates[i])
	case value.KindInterval:
		return value.NewInterval(a.intervals[i])
	default:
		return value.Value{}
	}
}

// Take returns a new Array containing only the rows listed in sel, in
// order. Used by Filter (boolean selection) and projections that
// reorder/slice rows.
func (a Array) Take(sel []int) Array {
	out := Array{typ: a.typ, n: len(sel), valid: a.valid.Slice(sel)}
	switch a.typ.Kind {
	case value.KindBoolean:
		out.bools = a.bools.Slice(sel)
	case value.KindInt32:
		out.i32 = takeI32(a.i32, sel)
	case value.KindInt64:
		out.i64 = takeI64(a.i64, sel)
	case value.KindFloat32:
		out.f32 = takeF32(a.f32, sel)
	case value.KindFloat64:
		out.f64 = takeF64(a.f64, sel)
	case value.KindDecimal:
		out.decimals = takeDecimal(a.decimals, sel)
	case value.KindString:
		out.offsets = make([]int32, len(sel)+1)
		var buf []byte
		for i, idx := range sel {
			s := a.bytes[a.offsets[idx]:a.offsets[idx+1]]
			buf = append(buf, s...)
			out.offsets[i+1] = int32(len(buf))
		}
		out.bytes = buf
	case value.KindDate:
		out.dates = takeDate(a.dates, sel)
	case value.KindInterval:
		out.intervals = takeInterval(a.intervals, sel)
	}
	return out
}

func takeI32(s []int32, sel []int) []int32 {
	out := make([]int32, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeI64(s []int64, sel []int) []int64 {
	out := make([]int64, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeF32(s []float32, sel []int) []float32 {
	out := make([]float32, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeF64(s []float64, sel []int) []float64 {
	out := make([]float64, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeDecimal(s []decimal.Decimal, sel []int) []decimal.Decimal {
	out := make([]decimal.Decimal, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeDate(s []time.Time, sel []int) []time.Time {
	out := make([]time.Time, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}

func takeInterval(s []time.Duration, sel []int) []time.Duration {
	out := make([]time.Duration, len(sel))
	for i, idx := range sel {
		out[i] = s[idx]
	}
	return out
}
