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

package binder

import (
	"strings"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/expr"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// visibleTable is one FROM-clause occurrence of a catalog table, bound
// to a table-ref id scoped to the statement being bound.
type visibleTable struct {
	ref   int
	alias string
	table *catalog.Table
}

// scope is one level of the binder's context stack (spec 4.1: "a stack
// of contexts, each holding the set of visible tables"). Sub-query
// binding would push a new scope and pop on exit, walking outer-to-inner
// for correlated references; quiver's SQL subset has no sub-selects in
// expression position, so in practice only one scope is ever active,
// but the stack shape is kept so that is a non-breaking future addition.
type scope struct {
	tables []visibleTable
	parent *scope
}

func (s *scope) lookupTable(name string) (visibleTable, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		for _, t := range cur.tables {
			n := t.alias
			if n == "" {
				n = t.table.Name
			}
			if strings.EqualFold(n, name) {
				return t, true
			}
		}
	}
	return visibleTable{}, false
}

// lookupColumn resolves an unqualified column name against every table
// visible in s, innermost scope first, failing on ambiguity within a
// single scope (spec 4.1: "reject ambiguous references").
func (s *scope) lookupColumn(name string) (visibleTable, catalog.Column, error) {
	for cur := s; cur != nil; cur = cur.parent {
		var found *visibleTable
		var col catalog.Column
		for i := range cur.tables {
			t := &cur.tables[i]
			if c, ok := t.table.ColumnByName(name); ok {
				if found != nil {
					return visibleTable{}, catalog.Column{}, sqlerr.Wrapf(sqlerr.ErrAmbiguousColumn, "column %q", name)
				}
				found = t
				col = c
			}
		}
		if found != nil {
			return *found, col, nil
		}
	}
	return visibleTable{}, catalog.Column{}, sqlerr.Wrapf(sqlerr.ErrUnknownColumn, "column %q", name)
}

// binder carries the per-statement table-ref counter (spec 3: "assign
// each expression a result type"; "materialize the column-id vector").
type binder struct {
	cat          *catalog.Catalog
	nextTableRef int
}

// Bind resolves stmt against cat and returns a fully typed bound tree,
// or one of the binder error kinds in sqlerr.
func Bind(stmt ast.Statement, cat *catalog.Catalog) (Statement, error) {
	b := &binder{cat: cat}
	return b.bindStatement(stmt, nil)
}

func (b *binder) bindStatement(stmt ast.Statement, outer *scope) (Statement, error) {
	switch s := stmt.(type) {
	case ast.SelectStmt:
		return b.bindSelect(s, outer)
	case ast.InsertStmt:
		return b.bindInsert(s)
	case ast.DeleteStmt:
		return b.bindDelete(s)
	case ast.CreateTableStmt:
		return b.bindCreateTable(s)
	case ast.DropTableStmt:
		return &DropTable{Name: s.Table.Name, IfExists: s.IfExists}, nil
	case ast.ExplainStmt:
		inner, err := b.bindStatement(s.Statement, outer)
		if err != nil {
			return nil, err
		}
		return &Explain{Statement: inner}, nil
	default:
		return nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "statement kind %T", stmt)
	}
}

func (b *binder) bindSelect(s ast.SelectStmt, outer *scope) (*Select, error) {
	var from TableExpr
	sc := &scope{parent: outer}
	if s.From != nil {
		var err error
		from, sc, err = b.bindTableExpr(s.From, outer)
		if err != nil {
			return nil, err
		}
	}

	targets, err := b.bindTargets(s.Targets, sc)
	if err != nil {
		return nil, err
	}

	out := &Select{Distinct: s.Distinct, From: from, Targets: targets}

	if s.Where != nil {
		w, err := b.bindExpr(s.Where, sc)
		if err != nil {
			return nil, err
		}
		out.Where = w
	}
	for _, g := range s.GroupBy {
		e, err := b.bindExpr(g, sc)
		if err != nil {
			return nil, err
		}
		out.GroupBy = append(out.GroupBy, e)
	}
	if s.Having != nil {
		h, err := b.bindExpr(s.Having, sc)
		if err != nil {
			return nil, err
		}
		out.Having = h
	}
	for _, o := range s.OrderBy {
		e, err := b.bindExpr(o.Expr, sc)
		if err != nil {
			return nil, err
		}
		out.OrderBy = append(out.OrderBy, OrderItem{Expr: e, Desc: o.Desc})
	}
	out.Limit = s.Limit
	out.Offset = s.Offset
	return out, nil
}

// bindTargets expands SELECT * to the concrete column list at bind time
// (spec 4.1) and binds every other target expression.
func (b *binder) bindTargets(targets []ast.ResTarget, sc *scope) ([]Target, error) {
	var out []Target
	for _, t := range targets {
		if star, ok := t.Expr.(ast.Star); ok {
			cols, err := b.expandStar(star, sc)
			if err != nil {
				return nil, err
			}
			out = append(out, cols...)
			continue
		}
		e, err := b.bindExpr(t.Expr, sc)
		if err != nil {
			return nil, err
		}
		name := t.Alias
		if name == "" {
			name = displayName(t.Expr, e)
		}
		out = append(out, Target{Expr: e, Name: name})
	}
	return out, nil
}

func displayName(original ast.Expr, bound expr.Expr) string {
	if cr, ok := original.(ast.ColumnRef); ok {
		return cr.Name
	}
	return bound.String()
}

func (b *binder) expandStar(star ast.Star, sc *scope) ([]Target, error) {
	var tables []visibleTable
	if star.Table != "" {
		t, ok := sc.lookupTable(star.Table)
		if !ok {
			return nil, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", star.Table)
		}
		tables = []visibleTable{t}
	} else {
		for cur := sc; cur != nil; cur = cur.parent {
			tables = append(tables, cur.tables...)
		}
	}
	var out []Target
	for _, t := range tables {
		for _, c := range t.table.Columns {
			out = append(out, Target{
				Expr: &expr.ColumnRef{TableRef: t.ref, ColumnID: c.ID, Name: c.Name, Typ: c.Type},
				Name: c.Name,
			})
		}
	}
	return out, nil
}

// bindTableExpr binds a FROM clause, returning the bound tree plus the
// scope it introduces for WHERE/GROUP BY/etc. to resolve against.
func (b *binder) bindTableExpr(te ast.TableExpr, outer *scope) (TableExpr, *scope, error) {
	switch t := te.(type) {
	case ast.TableName:
		tbl, ok := b.cat.LookupTable(t.Name)
		if !ok {
			return nil, nil, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", t.Name)
		}
		ref := b.nextTableRef
		b.nextTableRef++
		vt := visibleTable{ref: ref, alias: t.Alias, table: tbl}
		sc := &scope{tables: []visibleTable{vt}, parent: outer}
		return Scan{TableRef: ref, Table: tbl}, sc, nil
	case ast.Join:
		left, leftScope, err := b.bindTableExpr(t.Left, outer)
		if err != nil {
			return nil, nil, err
		}
		right, rightScope, err := b.bindTableExpr(t.Right, outer)
		if err != nil {
			return nil, nil, err
		}
		combined := &scope{tables: append(append([]visibleTable{}, leftScope.tables...), rightScope.tables...), parent: outer}
		if err := checkDuplicateTables(combined.tables); err != nil {
			return nil, nil, err
		}
		var on expr.Expr
		if t.On != nil {
			on, err = b.bindExpr(t.On, combined)
			if err != nil {
				return nil, nil, err
			}
		}
		return Join{Left: left, Right: right, Kind: t.Kind, On: on}, combined, nil
	default:
		return nil, nil, sqlerr.Wrapf(sqlerr.ErrUnsupported, "FROM item %T", te)
	}
}

func checkDuplicateTables(tables []visibleTable) error {
	seen := map[string]bool{}
	for _, t := range tables {
		n := strings.ToLower(t.alias)
		if n == "" {
			n = strings.ToLower(t.table.Name)
		}
		if seen[n] {
			return sqlerr.Wrapf(sqlerr.ErrDuplicateTable, "table %q", n)
		}
		seen[n] = true
	}
	return nil
}

func (b *binder) bindInsert(s ast.InsertStmt) (*Insert, error) {
	tbl, ok := b.cat.LookupTable(s.Table.Name)
	if !ok {
		return nil, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", s.Table.Name)
	}

	colIndexes, err := insertColumnIndexes(tbl, s.Columns)
	if err != nil {
		return nil, err
	}

	out := &Insert{Table: tbl, ColumnIndexes: colIndexes}

	if s.Select != nil {
		sel, err := b.bindSelect(*s.Select, nil)
		if err != nil {
			return nil, err
		}
		if len(sel.Targets) != len(colIndexes) {
			return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "INSERT has %d target columns but SELECT produces %d", len(colIndexes), len(sel.Targets))
		}
		out.Select = sel
		return out, nil
	}

	for _, row := range s.Values {
		if len(row) != len(colIndexes) {
			return nil, sqlerr.Wrapf(sqlerr.ErrTypeMismatch, "INSERT has %d target columns but VALUES row has %d", len(colIndexes), len(row))
		}
		var bound []expr.Expr
		for i, v := range row {
			col := tbl.Columns[colIndexes[i]]
			e, err := b.bindExpr(v, nil)
			if err != nil {
				return nil, err
			}
			e, err = coerceTo(e, col.Type)
			if err != nil {
				return nil, err
			}
			bound = append(bound, e)
		}
		out.Values = append(out.Values, bound)
	}

	// Any NOT NULL column omitted from an explicit column list fails to
	// bind (spec 4.1: "columns omitted become NULL unless NOT NULL — in
	// which case binding fails").
	present := map[int]bool{}
	for _, idx := range colIndexes {
		present[idx] = true
	}
	for i, c := range tbl.Columns {
		if !present[i] && !c.Type.Nullable {
			return nil, sqlerr.Wrapf(sqlerr.ErrNotNullViolation, "column %q", c.Name)
		}
	}

	return out, nil
}

// insertColumnIndexes resolves an explicit column list (spec 4.1:
// "reordered when a column list is given") or defaults to every column
// in table-definition order.
func insertColumnIndexes(tbl *catalog.Table, cols []string) ([]int, error) {
	if cols == nil {
		out := make([]int, len(tbl.Columns))
		for i := range tbl.Columns {
			out[i] = i
		}
		return out, nil
	}
	out := make([]int, len(cols))
	for i, name := range cols {
		found := -1
		for j, c := range tbl.Columns {
			if strings.EqualFold(c.Name, name) {
				found = j
				break
			}
		}
		if found == -1 {
			return nil, sqlerr.Wrapf(sqlerr.ErrUnknownColumn, "column %q", name)
		}
		out[i] = found
	}
	return out, nil
}

func (b *binder) bindDelete(s ast.DeleteStmt) (*Delete, error) {
	tbl, ok := b.cat.LookupTable(s.Table.Name)
	if !ok {
		return nil, sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", s.Table.Name)
	}
	ref := b.nextTableRef
	b.nextTableRef++
	sc := &scope{tables: []visibleTable{{ref: ref, alias: s.Table.Alias, table: tbl}}}

	out := &Delete{Table: tbl, TableRef: ref}
	if s.Where != nil {
		w, err := b.bindExpr(s.Where, sc)
		if err != nil {
			return nil, err
		}
		out.Where = w
	}
	return out, nil
}

func (b *binder) bindCreateTable(s ast.CreateTableStmt) (*CreateTable, error) {
	out := &CreateTable{Name: s.Table.Name}
	for _, cd := range s.Columns {
		t, err := resolveTypeName(cd.Type, cd.Precision, cd.Scale)
		if err != nil {
			return nil, err
		}
		if cd.NotNull {
			t = t.NotNull()
		}
		out.Columns = append(out.Columns, catalog.Column{Name: cd.Name, Type: t, PrimaryKey: cd.PrimaryKey})
	}
	return out, nil
}

// resolveTypeName maps the raw type name the parser passed through (spec
// 1: tokenizer/grammar is an external collaborator; quiver's own
// resolution of type keywords to a value.Type happens here, the
// binder's job per spec 4.1) to a logical type. Names arrive lower-cased
// and de-qualified the way libpg_query's grammar normalizes built-in
// type keywords (e.g. INT -> "int4", BIGINT -> "int8").
func resolveTypeName(raw string, precision, scale int) (value.Type, error) {
	switch strings.ToLower(raw) {
	case "int4", "int", "integer":
		return value.Int32, nil
	case "int8", "bigint":
		return value.Int64, nil
	case "float4", "real":
		return value.Float32, nil
	case "float8", "double precision", "double":
		return value.Float64, nil
	case "numeric", "decimal":
		if precision == 0 {
			precision, scale = 18, 4
		}
		return value.Decimal(precision, scale), nil
	case "text", "varchar", "bpchar", "char", "character varying", "character":
		return value.String, nil
	case "bool", "boolean":
		return value.Boolean, nil
	case "date":
		return value.Date, nil
	case "interval":
		return value.Interval, nil
	default:
		return value.Type{}, sqlerr.Wrapf(sqlerr.ErrUnsupported, "type %q", raw)
	}
}
