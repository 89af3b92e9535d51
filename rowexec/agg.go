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
	"github.com/shopspring/decimal"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/value"
)

// hashAggIter is a single-pass groupby-hash aggregation: every input
// row is routed to a group by its GroupBy key tuple, and each group
// keeps running accumulator state per Agg (spec 4.5: "single-pass
// groupby-hash with per-group accumulator state"). A NULL group key
// forms its own group like any other SQL value would.
type hashAggIter struct {
	input     Iter
	groupBy   []expr.Expr
	aggs      []*expr.AggExpr
	names     []string
	batchSize int

	computed bool
	order    []uint64
	groups   map[uint64]*aggGroup
}

type aggGroup struct {
	key   []value.Value
	keyOk []bool
	accs  []*accumulator
}

// accumulator holds one aggregate's running state across every row
// routed to its group.
type accumulator struct {
	fn      expr.AggFunc
	count   int64
	sum     decimal.Decimal
	sumOk   bool
	min     value.Value
	max     value.Value
	haveVal bool
}

func newHashAggIter(input Iter, n plan.PhysicalHashAgg, batchSize int) Iter {
	return &hashAggIter{input: input, groupBy: n.GroupBy, aggs: n.Aggs, names: n.Names, batchSize: batchSize, groups: map[uint64]*aggGroup{}}
}

func (a *hashAggIter) Next() (chunk.Chunk, error) {
	if !a.computed {
		if err := a.consume(); err != nil {
			return chunk.Chunk{}, err
		}
		a.computed = true
	}
	if len(a.order) == 0 {
		return chunk.Chunk{}, io.EOF
	}
	h := a.order[0]
	a.order = a.order[1:]
	return a.emit(a.groups[h])
}

func (a *hashAggIter) consume() error {
	for {
		c, err := a.input.Next()
		if err == io.EOF {
			// Without GROUP BY, empty input still yields one row of
			// aggregates over zero rows (COUNT 0, the others NULL).
			if len(a.groupBy) == 0 && len(a.groups) == 0 {
				accs := make([]*accumulator, len(a.aggs))
				for i, agg := range a.aggs {
					accs[i] = &accumulator{fn: agg.Func}
				}
				a.groups[0] = &aggGroup{accs: accs}
				a.order = append(a.order, 0)
			}
			return nil
		}
		if err != nil {
			return err
		}
		keys := make([]chunk.Array, len(a.groupBy))
		for i, g := range a.groupBy {
			arr, err := g.Eval(c)
			if err != nil {
				return err
			}
			keys[i] = arr
		}
		argArrs := make(map[*expr.AggExpr]chunk.Array, len(a.aggs))
		for _, agg := range a.aggs {
			if agg.Arg == nil {
				continue
			}
			arr, err := agg.Arg.Eval(c)
			if err != nil {
				return err
			}
			argArrs[agg] = arr
		}

		for row := 0; row < c.NumRows(); row++ {
			key := make([]value.Value, len(keys))
			keyOk := make([]bool, len(keys))
			hsh := xxhash.New64()
			for i, k := range keys {
				if k.IsValid(row) {
					key[i] = k.Get(row)
					keyOk[i] = true
					hsh.Write([]byte(key[i].String()))
				} else {
					hsh.Write([]byte{0xff}) // NULL marker, distinct from any string value
				}
				hsh.Write([]byte{0})
			}
			h := hsh.Sum64()
			g, ok := a.groups[h]
			if !ok {
				accs := make([]*accumulator, len(a.aggs))
				for i, agg := range a.aggs {
					accs[i] = &accumulator{fn: agg.Func}
				}
				g = &aggGroup{key: key, keyOk: keyOk, accs: accs}
				a.groups[h] = g
				a.order = append(a.order, h)
			}
			for i, agg := range a.aggs {
				acc := g.accs[i]
				switch agg.Func {
				case expr.AggCountStar:
					acc.count++
				case expr.AggCount:
					if argArrs[agg].IsValid(row) {
						acc.count++
					}
				case expr.AggSum, expr.AggAvg:
					if argArrs[agg].IsValid(row) {
						v := asDecimalValue(argArrs[agg].Get(row))
						if !acc.sumOk {
							acc.sum = v
							acc.sumOk = true
						} else {
							acc.sum = acc.sum.Add(v)
						}
						acc.count++
					}
				case expr.AggMin:
					if argArrs[agg].IsValid(row) {
						v := argArrs[agg].Get(row)
						if !acc.haveVal || value.Compare(v, acc.min) < 0 {
							acc.min = v
							acc.haveVal = true
						}
					}
				case expr.AggMax:
					if argArrs[agg].IsValid(row) {
						v := argArrs[agg].Get(row)
						if !acc.haveVal || value.Compare(v, acc.max) > 0 {
							acc.max = v
							acc.haveVal = true
						}
					}
				}
			}
		}
	}
}

func asDecimalValue(v value.Value) decimal.Decimal {
	switch v.Kind {
	case value.KindDecimal:
		return v.Decimal()
	case value.KindInt32:
		return decimal.NewFromInt(int64(v.Int32()))
	case value.KindInt64:
		return decimal.NewFromInt(v.Int64())
	case value.KindFloat32:
		return decimal.NewFromFloat(float64(v.Float32()))
	case value.KindFloat64:
		return decimal.NewFromFloat(v.Float64())
	default:
		return decimal.Zero
	}
}

// emit materializes one group's key columns and finished aggregate
// values as a single-row chunk.
func (a *hashAggIter) emit(g *aggGroup) (chunk.Chunk, error) {
	cols := make([]chunk.Array, 0, len(a.groupBy)+len(a.aggs))
	for i, ge := range a.groupBy {
		b := chunk.NewBuilder(ge.Type().AsNullable(), 1)
		if g.keyOk[i] {
			b.Append(g.key[i])
		} else {
			b.AppendNull()
		}
		cols = append(cols, b.Finish())
	}
	for i, agg := range a.aggs {
		acc := g.accs[i]
		b := chunk.NewBuilder(agg.Typ, 1)
		switch agg.Func {
		case expr.AggCount, expr.AggCountStar:
			b.Append(value.NewInt64(acc.count))
		case expr.AggSum:
			if !acc.sumOk {
				b.AppendNull()
			} else {
				b.Append(decimalOrNumeric(acc.sum, agg.Typ))
			}
		case expr.AggAvg:
			if !acc.sumOk || acc.count == 0 {
				b.AppendNull()
			} else {
				avg := acc.sum.Div(decimal.NewFromInt(acc.count))
				b.Append(decimalOrNumeric(avg, agg.Typ))
			}
		case expr.AggMin:
			if !acc.haveVal {
				b.AppendNull()
			} else {
				b.Append(acc.min)
			}
		case expr.AggMax:
			if !acc.haveVal {
				b.AppendNull()
			} else {
				b.Append(acc.max)
			}
		}
		cols = append(cols, b.Finish())
	}
	return chunk.New(a.names, cols)
}

func decimalOrNumeric(d decimal.Decimal, t value.Type) value.Value {
	switch t.Kind {
	case value.KindFloat64:
		f, _ := d.Float64()
		return value.NewFloat64(f)
	case value.KindFloat32:
		f, _ := d.Float64()
		return value.NewFloat32(float32(f))
	case value.KindInt64:
		return value.NewInt64(d.IntPart())
	case value.KindInt32:
		return value.NewInt32(int32(d.IntPart()))
	default:
		return value.NewDecimal(d)
	}
}

func (a *hashAggIter) Close() error { return a.input.Close() }
