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

// Package rowexec instantiates a plan.Physical tree into a vectorized,
// pull-based operator tree (spec 4.5): every operator is an Iter,
// consumers pull one Chunk at a time, and dropping an Iter before it is
// exhausted cancels everything upstream via Close.
package rowexec

import (
	"io"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/storage"
)

// Iter is the operator contract: repeated Next calls pull chunks until
// io.EOF; Close releases any resources (open snapshots, writers)
// regardless of whether the iterator was drained.
type Iter interface {
	Next() (chunk.Chunk, error)
	Close() error
}

// Env is what an operator needs beyond the physical plan itself: the
// storage engine backing table scans/writes, and the catalog DDL
// operators mutate.
type Env struct {
	Store storage.Storage
	Cat   *catalog.Catalog
}

// Build turns a physical plan into a runnable Iter (spec 4.5: "each
// operator is an asynchronous producer of Chunk items").
func Build(p plan.Physical, env Env, batchSize int) (Iter, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	switch n := p.(type) {
	case plan.PhysicalScan:
		return newScanIter(n.Table, n.Columns, n.Predicate, n.WithRowHandle, env, batchSize)
	case plan.PhysicalRowSetScan:
		return newScanIter(n.Table, n.Columns, n.Predicate, n.WithRowHandle, env, batchSize)
	case plan.PhysicalFilter:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newFilterIter(child, n.Predicate), nil
	case plan.PhysicalProject:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newProjectIter(child, n.Exprs, n.Names), nil
	case plan.PhysicalHashJoin:
		left, err := Build(n.Left, env, batchSize)
		if err != nil {
			return nil, err
		}
		right, err := Build(n.Right, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newHashJoinIter(left, right, n, batchSize)
	case plan.PhysicalNestedLoopJoin:
		left, err := Build(n.Left, env, batchSize)
		if err != nil {
			return nil, err
		}
		right, err := Build(n.Right, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newNestedLoopJoinIter(left, right, n, batchSize), nil
	case plan.PhysicalHashAgg:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newHashAggIter(child, n, batchSize), nil
	case plan.PhysicalOrder:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newOrderIter(child, n.Keys, batchSize), nil
	case plan.PhysicalTopN:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newTopNIter(child, n.Keys, n.Limit, n.Offset), nil
	case plan.PhysicalLimit:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newLimitIter(child, n.Limit, n.Offset), nil
	case plan.PhysicalValues:
		return newValuesIter(n, batchSize), nil
	case plan.PhysicalInsert:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newInsertIter(child, n, env)
	case plan.PhysicalDelete:
		child, err := Build(n.Input, env, batchSize)
		if err != nil {
			return nil, err
		}
		return newDeleteIter(child, n, env)
	case plan.PhysicalCreateTable:
		return newCreateTableIter(n, env), nil
	case plan.PhysicalDropTable:
		return newDropTableIter(n, env), nil
	case plan.PhysicalExplain:
		return newExplainIter(n), nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrPlan, "rowexec: unhandled physical node %T", p)
	}
}

// DefaultBatchSize is the chunk size the executor assembles into when
// it is not otherwise constrained by a source's own chunking (spec 6:
// "batch_size (default 2048)").
const DefaultBatchSize = 2048

// Run drains it completely into a slice of chunks (the Database.Run
// embedding surface, spec 6: "run(sql) -> Vec<Chunk>").
func Run(it Iter) ([]chunk.Chunk, error) {
	defer it.Close()
	var out []chunk.Chunk
	for {
		c, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
}
