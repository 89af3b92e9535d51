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

// Package optimizer rewrites a logical plan tree and lowers it to a
// physical one (spec 4.3/4.4). The rewriter is a fixed-point-free,
// ordered pass: the driver walks top-down, applies at most one rule per
// node, then recurses into the (possibly new) node's children. This is
// an educational engine, not a cost-based one — the rule order is the
// whole strategy.
package optimizer

import "github.com/quiverdb/quiver/plan"

// Optimize rewrites a logical tree (spec 4.3's rule list) and lowers it
// to a physical tree ready for rowexec to instantiate (spec 4.4).
func Optimize(l plan.Logical, onDisk bool) (plan.Physical, error) {
	l = Rewrite(l)
	return LowerToPhysical(l, onDisk)
}

// Rewrite applies every mandatory rule (spec 4.3) top-down, at most one
// per node, then recurses into the (possibly new) node's children.
func Rewrite(l plan.Logical) plan.Logical {
	if l == nil {
		return nil
	}
	if rewritten, changed := applyRules(l); changed {
		l = rewritten
	}
	return rewriteChildren(l)
}

// rewriteChildren recurses into l's children and rebuilds l with the
// rewritten children, after the rule pass at l itself (so nodes a rule
// just created, such as the filters splitFilterJoin pushes below a
// join, are visited in turn).
func rewriteChildren(l plan.Logical) plan.Logical {
	switch v := l.(type) {
	case plan.LogicalFilter:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalProject:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalJoin:
		v.Left = Rewrite(v.Left)
		v.Right = Rewrite(v.Right)
		return v
	case plan.LogicalAgg:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalOrder:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalLimit:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalTopN:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalInsert:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalDelete:
		v.Input = Rewrite(v.Input)
		return v
	case plan.LogicalExplain:
		v.Input = Rewrite(v.Input)
		return v
	default:
		return l
	}
}

// applyRules runs the ordered rule list against l and returns the
// result of the first rule that fires, reporting whether one did; the
// remaining rules are not tried at this node.
func applyRules(l plan.Logical) (plan.Logical, bool) {
	rules := []func(plan.Logical) (plan.Logical, bool){
		foldConstants,
		simplifyArithmetic,
		simplifyBoolean,
		moveConstants,
		splitFilterJoin,
		fuseFilterScan,
		fuseLimitOrder,
	}
	for _, r := range rules {
		if out, ok := r(l); ok {
			return out, true
		}
	}
	return l, false
}
