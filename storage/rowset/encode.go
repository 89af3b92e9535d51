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

package rowset

import (
	"bytes"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/value"
)

// EncodeArray picks an encoding for arr and produces the matching
// Block. Nullable columns always get the nullable wrapper (spec 4.6);
// non-nullable columns pick dictionary encoding below a cardinality
// threshold, run-length when the array is already sorted/constant-run
// heavy, and plain otherwise.
func EncodeArray(arr chunk.Array, nullable bool) Block {
	if nullable {
		return encodeNullable(arr)
	}
	return encodeValues(arr)
}

// encodeValues chooses among plain/dictionary/run-length for an array
// with no NULLs to track.
func encodeValues(arr chunk.Array) Block {
	n := arr.Len()
	if n == 0 {
		return Block{Kind: arr.Type().Kind, Encoding: EncodingPlain, RowCount: 0}
	}
	if isRunLengthFriendly(arr) {
		return encodeRunLength(arr)
	}
	if isDictionaryFriendly(arr) {
		return encodeDictionary(arr)
	}
	return encodePlain(arr)
}

func encodePlain(arr chunk.Array) Block {
	var buf bytes.Buffer
	var min, max value.Value
	for i := 0; i < arr.Len(); i++ {
		v := arr.Get(i)
		writeValue(&buf, arr.Type().Kind, v)
		if i == 0 || v.AsFloat64() < min.AsFloat64() || lessValue(v, min, arr.Type().Kind) {
			min = v
		}
		if i == 0 || lessValue(max, v, arr.Type().Kind) {
			max = v
		}
	}
	return Block{Kind: arr.Type().Kind, Encoding: EncodingPlain, RowCount: arr.Len(), HasMinMax: true, Min: min, Max: max, Payload: buf.Bytes()}
}

// encodeDictionary stores the distinct values once followed by a
// per-row index into that list (spec 4.6: "small cardinality").
func encodeDictionary(arr chunk.Array) Block {
	dict := make([]value.Value, 0, 16)
	indexOf := map[string]int{}
	codes := make([]int, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		v := arr.Get(i)
		key := v.String()
		idx, ok := indexOf[key]
		if !ok {
			idx = len(dict)
			dict = append(dict, v)
			indexOf[key] = idx
		}
		codes[i] = idx
	}
	var buf bytes.Buffer
	writeUint32(&buf, uint32(len(dict)))
	for _, v := range dict {
		writeValue(&buf, arr.Type().Kind, v)
	}
	for _, c := range codes {
		writeUint32(&buf, uint32(c))
	}
	min, max := minMaxOf(arr)
	return Block{Kind: arr.Type().Kind, Encoding: EncodingDictionary, RowCount: arr.Len(), HasMinMax: true, Min: min, Max: max, Payload: buf.Bytes()}
}

// encodeRunLength stores (value, run-length) pairs (spec 4.6:
// "run-length for sorted/low-cardinality columns").
func encodeRunLength(arr chunk.Array) Block {
	var buf bytes.Buffer
	var runs int
	runsBuf := &bytes.Buffer{}
	i := 0
	for i < arr.Len() {
		v := arr.Get(i)
		j := i + 1
		for j < arr.Len() && arr.Get(j).String() == v.String() {
			j++
		}
		writeValue(runsBuf, arr.Type().Kind, v)
		writeUint32(runsBuf, uint32(j-i))
		runs++
		i = j
	}
	writeUint32(&buf, uint32(runs))
	buf.Write(runsBuf.Bytes())
	min, max := minMaxOf(arr)
	return Block{Kind: arr.Type().Kind, Encoding: EncodingRunLength, RowCount: arr.Len(), HasMinMax: true, Min: min, Max: max, Payload: buf.Bytes()}
}

// encodeNullable wraps any of the above with a leading validity bitmap
// (spec 4.6: "nullable wrapper (validity bitmap prepended to any of the
// above)"); NULL slots are skipped in the wrapped payload entirely, so
// decode must walk the bitmap to know which row each payload element
// belongs to.
func encodeNullable(arr chunk.Array) Block {
	n := arr.Len()
	bitmap := chunk.NewBitmap(n, false)
	sel := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if arr.IsValid(i) {
			bitmap.Set(i, true)
			sel = append(sel, i)
		}
	}
	inner := arr.Take(sel)
	innerBlock := encodeValues(inner)

	var buf bytes.Buffer
	writeUint32(&buf, uint32(n))
	bitmapBytes := bitmapToBytes(bitmap, n)
	buf.Write(bitmapBytes)
	writeUint32(&buf, uint32(innerBlock.Encoding))
	innerPayload := Encode(innerBlock)
	writeUint32(&buf, uint32(len(innerPayload)))
	buf.Write(innerPayload)

	return Block{Kind: arr.Type().Kind, Encoding: EncodingNullableWrapper, RowCount: n, HasMinMax: innerBlock.HasMinMax, Min: innerBlock.Min, Max: innerBlock.Max, Payload: buf.Bytes()}
}

func bitmapToBytes(b chunk.Bitmap, n int) []byte {
	out := make([]byte, (n+7)/8)
	for i := 0; i < n; i++ {
		if b.Get(i) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func bytesToBitmap(data []byte, n int) chunk.Bitmap {
	b := chunk.NewBitmap(n, false)
	for i := 0; i < n; i++ {
		if data[i/8]&(1<<uint(i%8)) != 0 {
			b.Set(i, true)
		}
	}
	return b
}

func minMaxOf(arr chunk.Array) (value.Value, value.Value) {
	var min, max value.Value
	for i := 0; i < arr.Len(); i++ {
		v := arr.Get(i)
		if i == 0 || lessValue(v, min, arr.Type().Kind) {
			min = v
		}
		if i == 0 || lessValue(max, v, arr.Type().Kind) {
			max = v
		}
	}
	return min, max
}

func lessValue(a, b value.Value, k value.Kind) bool {
	return value.Compare(a, b) < 0
}

// isDictionaryFriendly approximates spec 4.6's "small cardinality"
// trigger by sampling: dictionary-encode whenever distinct values make
// up less than a quarter of the array.
func isDictionaryFriendly(arr chunk.Array) bool {
	if arr.Len() < 8 {
		return false
	}
	seen := map[string]bool{}
	for i := 0; i < arr.Len(); i++ {
		seen[arr.Get(i).String()] = true
		if len(seen) > arr.Len()/4 {
			return false
		}
	}
	return true
}

// isRunLengthFriendly triggers on arrays that are already mostly
// constant runs, typical of a sorted or low-cardinality column (spec
// 4.6).
func isRunLengthFriendly(arr chunk.Array) bool {
	if arr.Len() < 8 {
		return false
	}
	runs := 0
	i := 0
	for i < arr.Len() {
		v := arr.Get(i)
		j := i + 1
		for j < arr.Len() && arr.Get(j).String() == v.String() {
			j++
		}
		runs++
		i = j
	}
	return runs <= arr.Len()/4
}

// DecodeArray reverses EncodeArray/encodeNullable, reconstructing an
// Array of RowCount values (including proper NULLs for a nullable
// block) from a decoded Block.
func DecodeArray(b Block) (chunk.Array, error) {
	switch b.Encoding {
	case EncodingNullableWrapper:
		return decodeNullable(b)
	case EncodingDictionary:
		return decodeDictionary(b)
	case EncodingRunLength:
		return decodeRunLength(b)
	default:
		return decodePlain(b)
	}
}

func decodePlain(b Block) (chunk.Array, error) {
	r := bytes.NewReader(b.Payload)
	builder := chunk.NewBuilder(value.Type{Kind: b.Kind}.NotNull(), b.RowCount)
	for i := 0; i < b.RowCount; i++ {
		v, err := readValue(r, b.Kind)
		if err != nil {
			return chunk.Array{}, err
		}
		builder.Append(v)
	}
	return builder.Finish(), nil
}

func decodeDictionary(b Block) (chunk.Array, error) {
	r := bytes.NewReader(b.Payload)
	dictLen, err := readUint32(r)
	if err != nil {
		return chunk.Array{}, err
	}
	dict := make([]value.Value, dictLen)
	for i := range dict {
		v, err := readValue(r, b.Kind)
		if err != nil {
			return chunk.Array{}, err
		}
		dict[i] = v
	}
	builder := chunk.NewBuilder(value.Type{Kind: b.Kind}.NotNull(), b.RowCount)
	for i := 0; i < b.RowCount; i++ {
		code, err := readUint32(r)
		if err != nil {
			return chunk.Array{}, err
		}
		builder.Append(dict[code])
	}
	return builder.Finish(), nil
}

func decodeRunLength(b Block) (chunk.Array, error) {
	r := bytes.NewReader(b.Payload)
	runs, err := readUint32(r)
	if err != nil {
		return chunk.Array{}, err
	}
	builder := chunk.NewBuilder(value.Type{Kind: b.Kind}.NotNull(), b.RowCount)
	for i := uint32(0); i < runs; i++ {
		v, err := readValue(r, b.Kind)
		if err != nil {
			return chunk.Array{}, err
		}
		length, err := readUint32(r)
		if err != nil {
			return chunk.Array{}, err
		}
		for j := uint32(0); j < length; j++ {
			builder.Append(v)
		}
	}
	return builder.Finish(), nil
}

func decodeNullable(b Block) (chunk.Array, error) {
	r := bytes.NewReader(b.Payload)
	n, err := readUint32(r)
	if err != nil {
		return chunk.Array{}, err
	}
	bitmapBytes := make([]byte, (n+7)/8)
	if _, err := r.Read(bitmapBytes); err != nil {
		return chunk.Array{}, err
	}
	bitmap := bytesToBitmap(bitmapBytes, int(n))
	if _, err := readUint32(r); err != nil { // inner encoding tag, redundant with the inner block header
		return chunk.Array{}, err
	}
	innerLen, err := readUint32(r)
	if err != nil {
		return chunk.Array{}, err
	}
	innerBytes := make([]byte, innerLen)
	if _, err := r.Read(innerBytes); err != nil {
		return chunk.Array{}, err
	}
	innerBlock, err := Decode(innerBytes)
	if err != nil {
		return chunk.Array{}, err
	}
	inner, err := DecodeArray(innerBlock)
	if err != nil {
		return chunk.Array{}, err
	}

	builder := chunk.NewBuilder(value.Type{Kind: b.Kind, Nullable: true}, int(n))
	next := 0
	for i := 0; i < int(n); i++ {
		if bitmap.Get(i) {
			builder.Append(inner.Get(next))
			next++
		} else {
			builder.AppendNull()
		}
	}
	return builder.Finish(), nil
}
