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

package optimizer

import (
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/sqlerr"
)

// LowerToPhysical maps each logical node to exactly one physical node
// except where spec 4.4 names a choice: Scan picks SeqScan (in-memory
// engine) or RowSetScan (on-disk engine) based on onDisk; Join picks
// HashJoin when it has an equi-condition with no non-equi residue, else
// NestedLoopJoin.
func LowerToPhysical(l plan.Logical, onDisk bool) (plan.Physical, error) {
	switch v := l.(type) {
	case plan.LogicalScan:
		if onDisk {
			return plan.PhysicalRowSetScan{TableRef: v.TableRef, Table: v.Table, Columns: v.Columns, Predicate: v.Predicate, WithRowHandle: v.WithRowHandle}, nil
		}
		return plan.PhysicalScan{TableRef: v.TableRef, Table: v.Table, Columns: v.Columns, Predicate: v.Predicate, WithRowHandle: v.WithRowHandle}, nil

	case plan.LogicalFilter:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalFilter{Input: in, Predicate: v.Predicate}, nil

	case plan.LogicalProject:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalProject{Input: in, Exprs: v.Exprs, Names: v.Names}, nil

	case plan.LogicalJoin:
		left, err := LowerToPhysical(v.Left, onDisk)
		if err != nil {
			return nil, err
		}
		right, err := LowerToPhysical(v.Right, onDisk)
		if err != nil {
			return nil, err
		}
		leftKeys, rightKeys, residual, isEqui := splitEquiJoin(v.On, left.Schema(), right.Schema())
		if isEqui {
			return plan.PhysicalHashJoin{Left: left, Right: right, Kind: v.Kind, LeftKeys: leftKeys, RightKeys: rightKeys, Residual: residual}, nil
		}
		return plan.PhysicalNestedLoopJoin{Left: left, Right: right, Kind: v.Kind, On: v.On}, nil

	case plan.LogicalAgg:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalHashAgg{Input: in, GroupBy: v.GroupBy, Aggs: v.Aggs, Names: v.Names}, nil

	case plan.LogicalOrder:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalOrder{Input: in, Keys: v.Keys}, nil

	case plan.LogicalLimit:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalLimit{Input: in, Limit: v.Limit, Offset: v.Offset}, nil

	case plan.LogicalTopN:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalTopN{Input: in, Keys: v.Keys, Limit: v.Limit, Offset: v.Offset}, nil

	case plan.LogicalValues:
		return plan.PhysicalValues{Rows: v.Rows, Names: v.Names, Schema_: v.Schema()}, nil

	case plan.LogicalInsert:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalInsert{Table: v.Table, ColumnIndexes: v.ColumnIndexes, Input: in}, nil

	case plan.LogicalDelete:
		in, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalDelete{Table: v.Table, Input: in}, nil

	case plan.LogicalCreateTable:
		return plan.PhysicalCreateTable{Name: v.Name, Columns: v.Columns}, nil

	case plan.LogicalDropTable:
		return plan.PhysicalDropTable{Name: v.Name, IfExists: v.IfExists}, nil

	case plan.LogicalExplain:
		// EXPLAIN never touches storage (spec 4.5): render the inner plan
		// once at lowering time and carry only text onward.
		inner, err := LowerToPhysical(v.Input, onDisk)
		if err != nil {
			return nil, err
		}
		return plan.PhysicalExplain{Rendered: plan.Explain(inner)}, nil

	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrInternal, "optimizer: unhandled logical node %T", l)
	}
}

// splitEquiJoin decomposes on (a possibly-nil join condition) into
// parallel key-expression lists for a hash join, plus any leftover
// non-equi residual. isEqui is true only when on is non-nil, is a
// conjunction of `left-side-expr = right-side-expr` clauses, and every
// clause contributes exactly one key pair (spec 4.4: "no non-equi
// residue").
func splitEquiJoin(on expr.Expr, leftSchema, rightSchema interface {
	IndexOf(int, int) (int, bool)
}) ([]expr.Expr, []expr.Expr, expr.Expr, bool) {
	if on == nil {
		return nil, nil, nil, false
	}
	clauses := splitConjuncts(on)
	var leftKeys, rightKeys []expr.Expr
	var residuals []expr.Expr
	for _, c := range clauses {
		b, ok := c.(*expr.BinaryExpr)
		if !ok || b.Op != "=" {
			residuals = append(residuals, c)
			continue
		}
		lSide, rSide, ok := orientEquiClause(b.Left, b.Right, leftSchema, rightSchema)
		if !ok {
			residuals = append(residuals, c)
			continue
		}
		leftKeys = append(leftKeys, lSide)
		rightKeys = append(rightKeys, rSide)
	}
	if len(leftKeys) == 0 {
		return nil, nil, nil, false
	}
	var residual expr.Expr
	if len(residuals) > 0 {
		residual = conjoin(residuals)
	}
	return leftKeys, rightKeys, residual, residual == nil
}

// orientEquiClause decides which side of a = b belongs to the join's
// left input and which to its right, since the binder does not
// guarantee ON-clause operand order matches join operand order.
func orientEquiClause(a, b expr.Expr, leftSchema, rightSchema interface {
	IndexOf(int, int) (int, bool)
}) (expr.Expr, expr.Expr, bool) {
	aLeft, aRight := sideOf(a, leftSchema, rightSchema)
	bLeft, bRight := sideOf(b, leftSchema, rightSchema)
	switch {
	case aLeft && bRight:
		return a, b, true
	case aRight && bLeft:
		return b, a, true
	default:
		return nil, nil, false
	}
}

// sideOf reports whether e references only the left schema, only the
// right, or (for a constant/mixed expression) neither exclusively.
func sideOf(e expr.Expr, leftSchema, rightSchema interface {
	IndexOf(int, int) (int, bool)
}) (onLeft, onRight bool) {
	refs := collectColumnRefs(e)
	if len(refs) == 0 {
		return false, false
	}
	onLeft, onRight = true, true
	for _, r := range refs {
		if _, ok := leftSchema.IndexOf(r.TableRef, r.ColumnID); !ok {
			onLeft = false
		}
		if _, ok := rightSchema.IndexOf(r.TableRef, r.ColumnID); !ok {
			onRight = false
		}
	}
	return onLeft, onRight
}
