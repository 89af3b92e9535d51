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

package value

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a tagged scalar: at most one of the typed fields is
// meaningful, selected by Kind. A Value with Kind == KindInvalid and
// Null == true represents SQL NULL of unknown type (used for literal
// NULL before the binder assigns it a concrete type).
type Value struct {
	Kind Kind
	Null bool

	boolVal     bool
	i32Val      int32
	i64Val      int64
	f32Val      float32
	f64Val      float64
	decimalVal  decimal.Decimal
	stringVal   string
	dateVal     time.Time
	intervalVal time.Duration
}

// Null constructs a typed SQL NULL.
func Null(k Kind) Value { return Value{Kind: k, Null: true} }

func NewBool(b bool) Value     { return Value{Kind: KindBoolean, boolVal: b} }
func NewInt32(v int32) Value   { return Value{Kind: KindInt32, i32Val: v} }
func NewInt64(v int64) Value   { return Value{Kind: KindInt64, i64Val: v} }
func NewFloat32(v float32) Value { return Value{Kind: KindFloat32, f32Val: v} }
func NewFloat64(v float64) Value { return Value{Kind: KindFloat64, f64Val: v} }
func NewDecimal(v decimal.Decimal) Value { return Value{Kind: KindDecimal, decimalVal: v} }
func NewString(s string) Value { return Value{Kind: KindString, stringVal: s} }
func NewDate(t time.Time) Value { return Value{Kind: KindDate, dateVal: t} }
func NewInterval(d time.Duration) Value { return Value{Kind: KindInterval, intervalVal: d} }

func (v Value) Bool() bool               { return v.boolVal }
func (v Value) Int32() int32             { return v.i32Val }
func (v Value) Int64() int64             { return v.i64Val }
func (v Value) Float32() float32         { return v.f32Val }
func (v Value) Float64() float64         { return v.f64Val }
func (v Value) Decimal() decimal.Decimal { return v.decimalVal }
func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Kind {
	case KindBoolean:
		return fmt.Sprintf("%t", v.boolVal)
	case KindInt32:
		return fmt.Sprintf("%d", v.i32Val)
	case KindInt64:
		return fmt.Sprintf("%d", v.i64Val)
	case KindFloat32:
		return fmt.Sprintf("%g", v.f32Val)
	case KindFloat64:
		return fmt.Sprintf("%g", v.f64Val)
	case KindDecimal:
		return v.decimalVal.String()
	case KindString:
		return v.stringVal
	case KindDate:
		return v.dateVal.Format("2006-01-02")
	case KindInterval:
		return v.intervalVal.String()
	default:
		return "?"
	}
}

func (v Value) Text() string { return v.stringVal }
func (v Value) Time() time.Time { return v.dateVal }
func (v Value) Duration() time.Duration { return v.intervalVal }

// AsFloat64 widens any numeric value to float64, used by the comparator
// kernels in expr and by NaN-safe ordering (spec 3: "NaN-safe compared
// as Pg does").
func (v Value) AsFloat64() float64 {
	switch v.Kind {
	case KindInt32:
		return float64(v.i32Val)
	case KindInt64:
		return float64(v.i64Val)
	case KindFloat32:
		return float64(v.f32Val)
	case KindFloat64:
		return v.f64Val
	case KindDecimal:
		f, _ := v.decimalVal.Float64()
		return f
	default:
		return math.NaN()
	}
}

// Compare orders two non-null values of the same Kind. NaN sorts after
// every other float (Pg semantics), per spec 3.
func Compare(a, b Value) int {
	switch a.Kind {
	case KindBoolean:
		if a.boolVal == b.boolVal {
			return 0
		}
		if !a.boolVal {
			return -1
		}
		return 1
	case KindInt32:
		return cmpInt(int64(a.i32Val), int64(b.i32Val))
	case KindInt64:
		return cmpInt(a.i64Val, b.i64Val)
	case KindFloat32:
		return cmpFloatNaNSafe(float64(a.f32Val), float64(b.f32Val))
	case KindFloat64:
		return cmpFloatNaNSafe(a.f64Val, b.f64Val)
	case KindDecimal:
		return a.decimalVal.Cmp(b.decimalVal)
	case KindString:
		if a.stringVal == b.stringVal {
			return 0
		}
		if a.stringVal < b.stringVal {
			return -1
		}
		return 1
	case KindDate:
		if a.dateVal.Equal(b.dateVal) {
			return 0
		}
		if a.dateVal.Before(b.dateVal) {
			return -1
		}
		return 1
	case KindInterval:
		return cmpInt(int64(a.intervalVal), int64(b.intervalVal))
	default:
		return 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloatNaNSafe(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
