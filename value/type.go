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

// Package value defines quiver's scalar value model: a tagged union of
// logical types and the typed null/boolean/numeric/string/date/interval
// values that flow through expressions one at a time, plus the Array
// element types they back in bulk (see package chunk).
package value

import "fmt"

// Kind is the logical type tag. Nullability is tracked separately by the
// owning Column/array, not by Kind itself (spec: "nullability is a
// type-level attribute, not a value-level one").
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBoolean
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindString
	KindDate
	KindInterval
)

func (k Kind) String() string {
	switch k {
	case KindBoolean:
		return "BOOLEAN"
	case KindInt32:
		return "INT"
	case KindInt64:
		return "BIGINT"
	case KindFloat32:
		return "REAL"
	case KindFloat64:
		return "DOUBLE PRECISION"
	case KindDecimal:
		return "DECIMAL"
	case KindString:
		return "TEXT"
	case KindDate:
		return "DATE"
	case KindInterval:
		return "INTERVAL"
	default:
		return "INVALID"
	}
}

// Type is a logical type: a Kind plus nullability. Decimal types also
// carry precision/scale.
type Type struct {
	Kind      Kind
	Nullable  bool
	Precision int // DECIMAL only
	Scale     int // DECIMAL only
}

// Numeric reports whether t supports arithmetic operators.
func (t Type) Numeric() bool {
	switch t.Kind {
	case KindInt32, KindInt64, KindFloat32, KindFloat64, KindDecimal:
		return true
	default:
		return false
	}
}

// AsNullable returns t with Nullable set to true.
func (t Type) AsNullable() Type {
	t.Nullable = true
	return t
}

// NotNull returns t with Nullable set to false.
func (t Type) NotNull() Type {
	t.Nullable = false
	return t
}

func (t Type) String() string {
	s := t.Kind.String()
	if t.Kind == KindDecimal {
		s = fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale)
	}
	if !t.Nullable {
		s += " NOT NULL"
	}
	return s
}

func (t Type) Equal(o Type) bool {
	return t.Kind == o.Kind
}

// promotionRank gives i32 < i64 < f64 numeric promotion (spec 4.1).
// Decimal and float32 slot in between int64 and float64; string/date are
// not part of numeric promotion.
var promotionRank = map[Kind]int{
	KindInt32:   1,
	KindInt64:   2,
	KindDecimal: 3,
	KindFloat32: 4,
	KindFloat64: 5,
}

// Promote returns the result type of a binary numeric operator applied
// to operands of type a and b, per spec 4.1 "numeric promotion
// i32->i64->f64".
func Promote(a, b Type) (Type, bool) {
	ra, oka := promotionRank[a.Kind]
	rb, okb := promotionRank[b.Kind]
	if !oka || !okb {
		return Type{}, false
	}
	result := a
	if rb > ra {
		result = b
	}
	result.Nullable = a.Nullable || b.Nullable
	return result, true
}

var (
	Boolean  = Type{Kind: KindBoolean, Nullable: true}
	Int32    = Type{Kind: KindInt32, Nullable: true}
	Int64    = Type{Kind: KindInt64, Nullable: true}
	Float32  = Type{Kind: KindFloat32, Nullable: true}
	Float64  = Type{Kind: KindFloat64, Nullable: true}
	String   = Type{Kind: KindString, Nullable: true}
	Date     = Type{Kind: KindDate, Nullable: true}
	Interval = Type{Kind: KindInterval, Nullable: true}
)

// Decimal builds a DECIMAL(precision, scale) logical type.
func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Nullable: true, Precision: precision, Scale: scale}
}
