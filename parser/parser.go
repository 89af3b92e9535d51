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

// Package parser is the sole adapter between the real PostgreSQL grammar
// (github.com/pganalyze/pg_query_go, a Cgo binding over Postgres' own
// parser) and quiver's parser-agnostic ast package. Spec 1 treats the
// tokenizer/AST as an assumed external collaborator; this package is
// that collaborator's thinnest possible binding, isolated here so that
// every later layer (binder onward — the actual subject of this spec)
// only ever sees package ast.
package parser

import (
	"strconv"

	pgquery "github.com/pganalyze/pg_query_go/v6"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/sqlerr"
)

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, sqlerr.Wrapf(sqlerr.ErrCast, "invalid float literal %q", s)
	}
	return f, nil
}

// Parse splits sql (which may hold several `;`-separated statements,
// spec 6: "multi-statement input executes sequentially") into a list of
// quiver ast.Statement values using the real Postgres grammar.
func Parse(sql string) ([]ast.Statement, error) {
	result, err := pgquery.Parse(sql)
	if err != nil {
		return nil, sqlerr.Wrap(err, "parse")
	}
	stmts := make([]ast.Statement, 0, len(result.Stmts))
	for _, raw := range result.Stmts {
		s, err := convertStatement(raw.GetStmt())
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func convertStatement(n *pgquery.Node) (ast.Statement, error) {
	switch {
	case n.GetSelectStmt() != nil:
		return convertSelect(n.GetSelectStmt())
	case n.GetInsertStmt() != nil:
		return convertInsert(n.GetInsertStmt())
	case n.GetDeleteStmt() != nil:
		return convertDelete(n.GetDeleteStmt())
	case n.GetCreateStmt() != nil:
		return convertCreateTable(n.GetCreateStmt())
	case n.GetDropStmt() != nil:
		return convertDrop(n.GetDropStmt())
	case n.GetExplainStmt() != nil:
		inner, err := convertStatement(n.GetExplainStmt().GetQuery())
		if err != nil {
			return nil, err
		}
		return ast.ExplainStmt{Statement: inner}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "statement kind not supported by quiver's core")
	}
}

func convertSelect(s *pgquery.SelectStmt) (ast.SelectStmt, error) {
	if len(s.GetValuesLists()) > 0 {
		// A top-level `VALUES (...)` statement. INSERT ... VALUES never
		// reaches this path: convertInsert reads the VALUES lists itself.
		// Bare VALUES statements are rejected as Unsupported.
		return ast.SelectStmt{}, sqlerr.Wrapf(sqlerr.ErrUnsupported, "bare VALUES statement")
	}

	out := ast.SelectStmt{Distinct: len(s.GetDistinctClause()) > 0}

	for _, t := range s.GetTargetList() {
		rt := t.GetResTarget()
		if rt == nil {
			continue
		}
		e, err := convertExpr(rt.GetVal())
		if err != nil {
			return ast.SelectStmt{}, err
		}
		out.Targets = append(out.Targets, ast.ResTarget{Expr: e, Alias: rt.GetName()})
	}

	from, err := convertFromClause(s.GetFromClause())
	if err != nil {
		return ast.SelectStmt{}, err
	}
	out.From = from

	if w := s.GetWhereClause(); w != nil {
		e, err := convertExpr(w)
		if err != nil {
			return ast.SelectStmt{}, err
		}
		out.Where = e
	}

	for _, g := range s.GetGroupClause() {
		e, err := convertExpr(g)
		if err != nil {
			return ast.SelectStmt{}, err
		}
		out.GroupBy = append(out.GroupBy, e)
	}

	if h := s.GetHavingClause(); h != nil {
		e, err := convertExpr(h)
		if err != nil {
			return ast.SelectStmt{}, err
		}
		out.Having = e
	}

	for _, sc := range s.GetSortClause() {
		sb := sc.GetSortBy()
		if sb == nil {
			continue
		}
		e, err := convertExpr(sb.GetNode())
		if err != nil {
			return ast.SelectStmt{}, err
		}
		out.OrderBy = append(out.OrderBy, ast.OrderItem{
			Expr: e,
			Desc: sb.GetSortbyDir() == pgquery.SortByDir_SORTBY_DESC,
		})
	}

	if lc := s.GetLimitCount(); lc != nil {
		n, err := constInt(lc)
		if err == nil {
			out.Limit = &n
		}
	}
	if lo := s.GetLimitOffset(); lo != nil {
		n, err := constInt(lo)
		if err == nil {
			out.Offset = &n
		}
	}

	return out, nil
}

func convertFromClause(nodes []*pgquery.Node) (ast.TableExpr, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	var result ast.TableExpr
	for _, n := range nodes {
		te, err := convertTableExpr(n)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = te
			continue
		}
		result = ast.Join{Left: result, Right: te, Kind: ast.JoinCross}
	}
	return result, nil
}

func convertTableExpr(n *pgquery.Node) (ast.TableExpr, error) {
	switch {
	case n.GetRangeVar() != nil:
		rv := n.GetRangeVar()
		alias := ""
		if rv.GetAlias() != nil {
			alias = rv.GetAlias().GetAliasname()
		}
		return ast.TableName{Schema: rv.GetSchemaname(), Name: rv.GetRelname(), Alias: alias}, nil
	case n.GetJoinExpr() != nil:
		je := n.GetJoinExpr()
		left, err := convertTableExpr(je.GetLarg())
		if err != nil {
			return nil, err
		}
		right, err := convertTableExpr(je.GetRarg())
		if err != nil {
			return nil, err
		}
		var on ast.Expr
		if je.GetQuals() != nil {
			on, err = convertExpr(je.GetQuals())
			if err != nil {
				return nil, err
			}
		}
		kind := ast.JoinInner
		switch je.GetJointype() {
		case pgquery.JoinType_JOIN_LEFT:
			kind = ast.JoinLeft
		case pgquery.JoinType_JOIN_RIGHT:
			kind = ast.JoinRight
		case pgquery.JoinType_JOIN_FULL:
			kind = ast.JoinFull
		}
		return ast.Join{Left: left, Right: right, Kind: kind, On: on}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "FROM item")
	}
}

func convertExpr(n *pgquery.Node) (ast.Expr, error) {
	if n == nil {
		return nil, nil
	}
	switch {
	case n.GetColumnRef() != nil:
		return convertColumnRef(n.GetColumnRef())
	case n.GetAConst() != nil:
		return convertConst(n.GetAConst())
	case n.GetAExpr() != nil:
		return convertAExpr(n.GetAExpr())
	case n.GetBoolExpr() != nil:
		return convertBoolExpr(n.GetBoolExpr())
	case n.GetNullTest() != nil:
		nt := n.GetNullTest()
		e, err := convertExpr(nt.GetArg())
		if err != nil {
			return nil, err
		}
		return ast.IsNull{Operand: e, Not: nt.GetNulltesttype() == pgquery.NullTestType_IS_NOT_NULL}, nil
	case n.GetFuncCall() != nil:
		return convertFuncCall(n.GetFuncCall())
	case n.GetTypeCast() != nil:
		tc := n.GetTypeCast()
		e, err := convertExpr(tc.GetArg())
		if err != nil {
			return nil, err
		}
		return ast.Cast{Operand: e, TypeName: typeNameString(tc.GetTypeName())}, nil
	case n.GetCaseExpr() != nil:
		return convertCaseExpr(n.GetCaseExpr())
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "expression kind")
	}
}

func convertColumnRef(cr *pgquery.ColumnRef) (ast.Expr, error) {
	var parts []string
	star := false
	for _, f := range cr.GetFields() {
		if f.GetAStar() != nil {
			star = true
			continue
		}
		if s := f.GetString_(); s != nil {
			parts = append(parts, s.GetSval())
		}
	}
	if star {
		table := ""
		if len(parts) > 0 {
			table = parts[0]
		}
		return ast.Star{Table: table}, nil
	}
	switch len(parts) {
	case 1:
		return ast.ColumnRef{Name: parts[0]}, nil
	case 2:
		return ast.ColumnRef{Table: parts[0], Name: parts[1]}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "column reference shape")
	}
}

func convertConst(ac *pgquery.A_Const) (ast.Expr, error) {
	if ac.GetIsnull() {
		return ast.Literal{Value: ast.LiteralValue{Null: true}}, nil
	}
	switch {
	case ac.GetIval() != nil:
		return ast.Literal{Value: ast.LiteralValue{Int: ac.GetIval().GetIval(), IsInt: true}}, nil
	case ac.GetFval() != nil:
		f, err := parseFloat(ac.GetFval().GetFval())
		if err != nil {
			return nil, err
		}
		return ast.Literal{Value: ast.LiteralValue{Float: f, IsFloat: true}}, nil
	case ac.GetSval() != nil:
		return ast.Literal{Value: ast.LiteralValue{Str: ac.GetSval().GetSval(), IsStr: true}}, nil
	case ac.GetBoolval() != nil:
		return ast.Literal{Value: ast.LiteralValue{Bool: ac.GetBoolval().GetBoolval(), IsBool: true}}, nil
	default:
		return ast.Literal{Value: ast.LiteralValue{Null: true}}, nil
	}
}

func constInt(n *pgquery.Node) (int64, error) {
	if n.GetAConst() == nil || n.GetAConst().GetIval() == nil {
		return 0, sqlerr.Wrapf(sqlerr.ErrUnsupported, "non-constant LIMIT/OFFSET")
	}
	return n.GetAConst().GetIval().GetIval(), nil
}

func convertAExpr(e *pgquery.A_Expr) (ast.Expr, error) {
	op := ""
	for _, n := range e.GetName() {
		if s := n.GetString_(); s != nil {
			op = s.GetSval()
		}
	}
	left, err := convertExpr(e.GetLexpr())
	if err != nil {
		return nil, err
	}
	if e.GetKind() == pgquery.A_Expr_Kind_AEXPR_IN {
		list := e.GetRexpr().GetList()
		var items []ast.Expr
		for _, it := range list.GetItems() {
			ie, err := convertExpr(it)
			if err != nil {
				return nil, err
			}
			items = append(items, ie)
		}
		return ast.InList{Operand: left, List: items, Not: op == "<>"}, nil
	}
	right, err := convertExpr(e.GetRexpr())
	if err != nil {
		return nil, err
	}
	return ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func convertBoolExpr(e *pgquery.BoolExpr) (ast.Expr, error) {
	args := e.GetArgs()
	switch e.GetBoolop() {
	case pgquery.BoolExprType_NOT_EXPR:
		operand, err := convertExpr(args[0])
		if err != nil {
			return nil, err
		}
		return ast.UnaryExpr{Op: "NOT", Operand: operand}, nil
	case pgquery.BoolExprType_AND_EXPR:
		return foldBinary("AND", args)
	default:
		return foldBinary("OR", args)
	}
}

func foldBinary(op string, args []*pgquery.Node) (ast.Expr, error) {
	var result ast.Expr
	for _, n := range args {
		e, err := convertExpr(n)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = e
			continue
		}
		result = ast.BinaryExpr{Op: op, Left: result, Right: e}
	}
	return result, nil
}

func convertFuncCall(f *pgquery.FuncCall) (ast.Expr, error) {
	name := ""
	for _, n := range f.GetFuncname() {
		if s := n.GetString_(); s != nil {
			name = s.GetSval()
		}
	}
	out := ast.FuncCall{Name: name, Distinct: f.GetAggDistinct(), Star: f.GetAggStar()}
	for _, a := range f.GetArgs() {
		e, err := convertExpr(a)
		if err != nil {
			return nil, err
		}
		out.Args = append(out.Args, e)
	}
	return out, nil
}

func convertCaseExpr(c *pgquery.CaseExpr) (ast.Expr, error) {
	out := ast.CaseExpr{}
	for _, w := range c.GetArgs() {
		when := w.GetCaseWhen()
		if when == nil {
			continue
		}
		cond, err := convertExpr(when.GetExpr())
		if err != nil {
			return nil, err
		}
		result, err := convertExpr(when.GetResult())
		if err != nil {
			return nil, err
		}
		out.Whens = append(out.Whens, ast.CaseWhen{Cond: cond, Result: result})
	}
	if c.GetDefresult() != nil {
		e, err := convertExpr(c.GetDefresult())
		if err != nil {
			return nil, err
		}
		out.Else = e
	}
	return out, nil
}

func convertInsert(s *pgquery.InsertStmt) (ast.InsertStmt, error) {
	out := ast.InsertStmt{Table: convertRangeVar(s.GetRelation())}
	for _, c := range s.GetCols() {
		if rt := c.GetResTarget(); rt != nil {
			out.Columns = append(out.Columns, rt.GetName())
		}
	}

	sel := s.GetSelectStmt().GetSelectStmt()
	if sel == nil {
		return out, sqlerr.Wrapf(sqlerr.ErrUnsupported, "INSERT without a source")
	}
	if len(sel.GetValuesLists()) > 0 {
		for _, row := range sel.GetValuesLists() {
			list := row.GetList()
			var rowExprs []ast.Expr
			for _, item := range list.GetItems() {
				e, err := convertExpr(item)
				if err != nil {
					return ast.InsertStmt{}, err
				}
				rowExprs = append(rowExprs, e)
			}
			out.Values = append(out.Values, rowExprs)
		}
		return out, nil
	}

	selStmt, err := convertSelect(sel)
	if err != nil {
		return ast.InsertStmt{}, err
	}
	out.Select = &selStmt
	return out, nil
}

func convertDelete(s *pgquery.DeleteStmt) (ast.DeleteStmt, error) {
	out := ast.DeleteStmt{Table: convertRangeVar(s.GetRelation())}
	if w := s.GetWhereClause(); w != nil {
		e, err := convertExpr(w)
		if err != nil {
			return ast.DeleteStmt{}, err
		}
		out.Where = e
	}
	return out, nil
}

func convertRangeVar(rv *pgquery.RangeVar) ast.TableName {
	if rv == nil {
		return ast.TableName{}
	}
	alias := ""
	if rv.GetAlias() != nil {
		alias = rv.GetAlias().GetAliasname()
	}
	return ast.TableName{Schema: rv.GetSchemaname(), Name: rv.GetRelname(), Alias: alias}
}

func convertCreateTable(s *pgquery.CreateStmt) (ast.CreateTableStmt, error) {
	out := ast.CreateTableStmt{Table: convertRangeVar(s.GetRelation())}
	for _, elt := range s.GetTableElts() {
		cd := elt.GetColumnDef()
		if cd == nil {
			continue
		}
		tn := cd.GetTypeName()
		col := ast.ColumnDef{Name: cd.GetColname(), Type: typeNameString(tn)}
		if mods := tn.GetTypmods(); len(mods) > 0 {
			if p, err := constInt(mods[0]); err == nil {
				col.Precision = int(p)
			}
			if len(mods) > 1 {
				if sc, err := constInt(mods[1]); err == nil {
					col.Scale = int(sc)
				}
			}
		}
		for _, constraint := range cd.GetConstraints() {
			c := constraint.GetConstraint()
			if c == nil {
				continue
			}
			switch c.GetContype() {
			case pgquery.ConstrType_CONSTR_NOTNULL:
				col.NotNull = true
			case pgquery.ConstrType_CONSTR_PRIMARY:
				col.PrimaryKey = true
				col.NotNull = true
			}
		}
		out.Columns = append(out.Columns, col)
	}
	return out, nil
}

func convertDrop(s *pgquery.DropStmt) (ast.DropTableStmt, error) {
	out := ast.DropTableStmt{IfExists: s.GetMissingOk()}
	for _, obj := range s.GetObjects() {
		list := obj.GetList()
		if list == nil {
			continue
		}
		items := list.GetItems()
		if len(items) == 0 {
			continue
		}
		last := items[len(items)-1].GetString_()
		if last != nil {
			out.Table = ast.TableName{Name: last.GetSval()}
		}
		if len(items) > 1 {
			if schema := items[len(items)-2].GetString_(); schema != nil {
				out.Table.Schema = schema.GetSval()
			}
		}
	}
	return out, nil
}

func typeNameString(tn *pgquery.TypeName) string {
	if tn == nil {
		return ""
	}
	name := ""
	for _, n := range tn.GetNames() {
		if s := n.GetString_(); s != nil {
			name = s.GetSval()
		}
	}
	return name
}
