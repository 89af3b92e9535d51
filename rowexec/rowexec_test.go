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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/schema"
	"github.com/quiverdb/quiver/storage/memory"
	"github.com/quiverdb/quiver/value"
)

func int32ValuesNode(rows ...int32) plan.PhysicalValues {
	exprRows := make([][]expr.Expr, len(rows))
	for i, v := range rows {
		exprRows[i] = []expr.Expr{expr.NewLiteral(value.NewInt32(v), value.Int32.NotNull())}
	}
	return plan.PhysicalValues{
		Rows:  exprRows,
		Names: []string{"v"},
		Schema_: schema.Schema{
			{Name: "v", Type: value.Int32.NotNull(), TableRef: schema.SyntheticTableRef},
		},
	}
}

func TestBuild_FilterProjectLimitPipeline(t *testing.T) {
	values := int32ValuesNode(1, 2, 3, 4)
	ref := expr.NewInputRef(0, "v", value.Int32.NotNull())
	pred := expr.NewBinary(">", ref, expr.NewLiteral(value.NewInt32(1), value.Int32.NotNull()), value.Boolean.NotNull())
	filter := plan.PhysicalFilter{Input: values, Predicate: pred}
	doubled := expr.NewBinary("*", ref, expr.NewLiteral(value.NewInt32(2), value.Int32.NotNull()), value.Int32.NotNull())
	project := plan.PhysicalProject{Input: filter, Exprs: []expr.Expr{doubled}, Names: []string{"v2"}}
	limit := plan.PhysicalLimit{Input: project, Limit: 2, Offset: 0}

	it, err := Build(limit, Env{}, DefaultBatchSize)
	require.NoError(t, err)
	chunks, err := Run(it)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 2, chunks[0].NumRows())
	require.Equal(t, int32(4), chunks[0].Columns[0].Get(0).Int32())
	require.Equal(t, int32(6), chunks[0].Columns[0].Get(1).Int32())
}

func TestBuild_CreateTableThenDropTable(t *testing.T) {
	cat := catalog.New()
	env := Env{Store: memory.New(), Cat: cat}

	create := plan.PhysicalCreateTable{Name: "t", Columns: []catalog.Column{{Name: "k", Type: value.Int32.NotNull()}}}
	it, err := Build(create, env, DefaultBatchSize)
	require.NoError(t, err)
	chunks, err := Run(it)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 1, chunks[0].NumRows())

	_, ok := cat.LookupTable("t")
	require.True(t, ok)

	drop := plan.PhysicalDropTable{Name: "t"}
	it, err = Build(drop, env, DefaultBatchSize)
	require.NoError(t, err)
	_, err = Run(it)
	require.NoError(t, err)

	_, ok = cat.LookupTable("t")
	require.False(t, ok)
}

func TestBuild_DropTableUnknownWithoutIfExistsFails(t *testing.T) {
	env := Env{Store: memory.New(), Cat: catalog.New()}
	drop := plan.PhysicalDropTable{Name: "nope"}
	it, err := Build(drop, env, DefaultBatchSize)
	require.NoError(t, err)
	_, err = Run(it)
	require.Error(t, err)
}

func TestBuild_DropTableUnknownWithIfExistsSucceeds(t *testing.T) {
	env := Env{Store: memory.New(), Cat: catalog.New()}
	drop := plan.PhysicalDropTable{Name: "nope", IfExists: true}
	it, err := Build(drop, env, DefaultBatchSize)
	require.NoError(t, err)
	_, err = Run(it)
	require.NoError(t, err)
}

func TestBuild_ExplainEmitsRenderedPlanWithoutTouchingStorage(t *testing.T) {
	explain := plan.PhysicalExplain{Rendered: "Scan(t)"}
	it, err := Build(explain, Env{}, DefaultBatchSize)
	require.NoError(t, err)
	chunks, err := Run(it)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, 1, chunks[0].NumRows())
	require.Equal(t, "Scan(t)", chunks[0].Columns[0].Get(0).String())
}
