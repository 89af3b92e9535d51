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

package plan

import (
	"fmt"
	"strings"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/expr"
)

// Explain renders a physical plan tree to an indented, one-line-per-node
// form (spec 4.5: "Explain renders the plan tree to text"), in the
// teacher's sql.TreePrinter style: each child is indented two spaces
// further than its parent.
func Explain(p Physical) string {
	var b strings.Builder
	explainNode(&b, p, 0)
	return strings.TrimRight(b.String(), "\n")
}

func explainNode(b *strings.Builder, p Physical, depth int) {
	b.WriteString(strings.Repeat(" ", depth*2))
	b.WriteString(describe(p))
	b.WriteByte('\n')
	for _, c := range p.Children() {
		explainNode(b, c, depth+1)
	}
}

func describe(p Physical) string {
	switch v := p.(type) {
	case PhysicalScan:
		return fmt.Sprintf("SeqScan(%s)%s", v.Table.Name, predSuffix(v.Predicate))
	case PhysicalRowSetScan:
		return fmt.Sprintf("RowSetScan(%s)%s", v.Table.Name, predSuffix(v.Predicate))
	case PhysicalFilter:
		return fmt.Sprintf("Filter(%s)", v.Predicate.String())
	case PhysicalProject:
		names := make([]string, len(v.Exprs))
		for i, e := range v.Exprs {
			names[i] = e.String()
		}
		return fmt.Sprintf("Project(%s)", strings.Join(names, ", "))
	case PhysicalHashJoin:
		return fmt.Sprintf("HashJoin(%s)", joinKindString(v.Kind))
	case PhysicalNestedLoopJoin:
		on := "cross"
		if v.On != nil {
			on = v.On.String()
		}
		return fmt.Sprintf("NestedLoopJoin(%s, %s)", joinKindString(v.Kind), on)
	case PhysicalHashAgg:
		return fmt.Sprintf("HashAgg(group=%d, aggs=%d)", len(v.GroupBy), len(v.Aggs))
	case PhysicalOrder:
		return fmt.Sprintf("Order(keys=%d)", len(v.Keys))
	case PhysicalTopN:
		return fmt.Sprintf("TopN(offset=%d, limit=%d)", v.Offset, v.Limit)
	case PhysicalLimit:
		return fmt.Sprintf("Limit(offset=%d, limit=%d)", v.Offset, v.Limit)
	case PhysicalValues:
		return fmt.Sprintf("Values(rows=%d)", len(v.Rows))
	case PhysicalInsert:
		return fmt.Sprintf("Insert(%s)", v.Table.Name)
	case PhysicalDelete:
		return fmt.Sprintf("Delete(%s)", v.Table.Name)
	case PhysicalCreateTable:
		return fmt.Sprintf("CreateTable(%s)", v.Name)
	case PhysicalDropTable:
		return fmt.Sprintf("DropTable(%s)", v.Name)
	case PhysicalExplain:
		return "Explain"
	default:
		return fmt.Sprintf("%T", p)
	}
}

func predSuffix(e expr.Expr) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf(" [%s]", e.String())
}

func joinKindString(k ast.JoinKind) string {
	switch k {
	case ast.JoinInner:
		return "inner"
	case ast.JoinLeft:
		return "left"
	case ast.JoinRight:
		return "right"
	case ast.JoinFull:
		return "full"
	case ast.JoinCross:
		return "cross"
	default:
		return "unknown"
	}
}
