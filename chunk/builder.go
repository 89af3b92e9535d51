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

package chunk

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/quiverdb/quiver/value"
)

// Builder accumulates values for one column and yields an immutable
// Array on Finish. The payload and validity bitmap grow in lockstep, one
// Append/AppendNull call per row (spec 3: "grows the payload and bitmap
// in tandem").
type Builder struct {
	typ   value.Type
	n     int
	valid []bool

	bools     []bool
	i32       []int32
	i64       []int64
	f32       []float32
	f64       []float64
	decimals  []decimal.Decimal
	strings   []string
	dates     []time.Time
	intervals []time.Duration
}

// NewBuilder returns a Builder for columns of logical type t, with an
// initial capacity hint of cap rows.
func NewBuilder(t value.Type, cap int) *Builder {
	return &Builder{typ: t, valid: make([]bool, 0, cap)}
}

func (b *Builder) Len() int { return b.n }

// AppendNull appends a SQL NULL row.
func (b *Builder) AppendNull() {
	b.valid = append(b.valid, false)
	b.n++
	switch b.typ.Kind {
	case value.KindBoolean:
		b.bools = append(b.bools, false)
	case value.KindInt32:
		b.i32 = append(b.i32, 0)
	case value.KindInt64:
		b.i64 = append(b.i64, 0)
	case value.KindFloat32:
		b.f32 = append(b.f32, 0)
	case value.KindFloat64:
		b.f64 = append(b.f64, 0)
	case value.KindDecimal:
		b.decimals = append(b.decimals, decimal.Zero)
	case value.KindString:
		b.strings = append(b.strings, "")
	case value.KindDate:
		b.dates = append(b.dates, time.Time{})
	case value.KindInterval:
		b.intervals = append(b.intervals, 0)
	}
}

// Append appends v, which must either be NULL or match b's Kind.
func (b *Builder) Append(v value.Value) {
	if v.Null {
		b.AppendNull()
		return
	}
	b.valid = append(b.valid, true)
	b.n++
	switch b.typ.Kind {
	case value.KindBoolean:
		b.bools = append(b.bools, v.Bool())
	case value.KindInt32:
		b.i32 = append(b.i32, v.Int32())
	case value.KindInt64:
		b.i64 = append(b.i64, v.Int64())
	case value.KindFloat32:
		b.f32 = append(b.f32, v.Float32())
	case value.KindFloat64:
		b.f64 = append(b.f64, v.Float64())
	case value.KindDecimal:
		b.decimals = append(b.decimals, v.Decimal())
	case value.KindString:
		b.strings = append(b.strings, v.Text())
	case value.KindDate:
		b.dates = append(b.dates, v.Time())
	case value.KindInterval:
		b.intervals = append(b.intervals, v.Duration())
	}
}

// Finish materializes the built rows into an immutable Array.
func (b *Builder) Finish() Array {
	valid := NewBitmap(b.n, false)
	for i, v := range b.valid {
		valid.Set(i, v)
	}
	out := Array{typ: b.typ, n: b.n, valid: valid}
	switch b.typ.Kind {
	case value.KindBoolean:
		bm := NewBitmap(b.n, false)
		for i, v := range b.bools {
			bm.Set(i, v)
		}
		out.bools = bm
	case value.KindInt32:
		out.i32 = b.i32
	case value.KindInt64:
		out.i64 = b.i64
	case value.KindFloat32:
		out.f32 = b.f32
	case value.KindFloat64:
		out.f64 = b.f64
	case value.KindDecimal:
		out.decimals = b.decimals
	case value.KindString:
		offsets := make([]int32, b.n+1)
		var buf []byte
		for i, s := range b.strings {
			buf = append(buf, s...)
			offsets[i+1] = int32(len(buf))
		}
		out.offsets = offsets
		out.bytes = buf
	case value.KindDate:
		out.dates = b.dates
	case value.KindInterval:
		out.intervals = b.intervals
	}
	return out
}
