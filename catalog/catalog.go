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

// Package catalog implements quiver's process-wide name-space: a
// three-level database -> schema -> table -> column mapping with stable,
// monotonically-assigned integer ids (spec 3, "Catalog"). The catalog is
// reader-many/writer-one (spec 5); all structural mutation goes through
// Catalog.CreateTable and Catalog.DropTable under a single writer lock.
package catalog

import (
	"strings"
	"sync"

	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// Column describes one table column.
type Column struct {
	ID         int
	Name       string
	Type       value.Type
	PrimaryKey bool
}

// Table is an ordered set of columns under stable integer ids.
type Table struct {
	ID      int
	Name    string
	Columns []Column
	nextCol int
}

// ColumnByName looks up a column case-insensitively.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnByID looks up a column by its stable id.
func (t *Table) ColumnByID(id int) (Column, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// Schema is a named group of tables (quiver has exactly one implicit
// schema per database, "public", but the type models spec's three-level
// namespace faithfully so a second schema is a non-breaking addition).
type Schema struct {
	ID      int
	Name    string
	Tables  map[string]*Table // keyed by lowercased name
	nextTab int
}

// Database is a named group of schemas.
type Database struct {
	ID      int
	Name    string
	Schemas map[string]*Schema
}

// Catalog is the process-wide namespace root. Ids are assigned
// monotonically within their parent and never reused, for the lifetime
// of the Catalog (spec invariant).
type Catalog struct {
	mu          sync.RWMutex
	databases   map[string]*Database
	nextDB      int
	nextSchema  int
	nextTable   int
	nextColumn  int
}

// New returns an empty Catalog with one default database ("quiver")
// and one default schema ("public"), mirroring the zero-config
// in-process engine spec 6 describes.
func New() *Catalog {
	c := &Catalog{databases: map[string]*Database{}}
	c.createDatabaseLocked("quiver")
	db := c.databases["quiver"]
	c.createSchemaLocked(db, "public")
	return c
}

func (c *Catalog) createDatabaseLocked(name string) *Database {
	db := &Database{ID: c.nextDB, Name: name, Schemas: map[string]*Schema{}}
	c.nextDB++
	c.databases[strings.ToLower(name)] = db
	return db
}

func (c *Catalog) createSchemaLocked(db *Database, name string) *Schema {
	s := &Schema{ID: c.nextSchema, Name: name, Tables: map[string]*Table{}}
	c.nextSchema++
	db.Schemas[strings.ToLower(name)] = s
	return s
}

// DefaultSchema returns the "quiver"."public" schema every unqualified
// table reference resolves against.
func (c *Catalog) DefaultSchema() *Schema {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.databases["quiver"].Schemas["public"]
}

// LookupTable resolves an unqualified table name against the default
// schema, case-insensitively.
func (c *Catalog) LookupTable(name string) (*Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.DefaultSchema().Tables[strings.ToLower(name)]
	return t, ok
}

// CreateTable registers a new table with freshly assigned column ids.
// Returns sqlerr.ErrInternal-wrapped error if the name is already taken
// (callers that want IF NOT EXISTS semantics check LookupTable first).
func (c *Catalog) CreateTable(name string, cols []Column) (*Table, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	schema := c.databases["quiver"].Schemas["public"]
	key := strings.ToLower(name)
	if _, exists := schema.Tables[key]; exists {
		return nil, sqlerr.Wrapf(sqlerr.ErrInternal, "table %q already exists", name)
	}

	t := &Table{ID: c.nextTable, Name: name}
	c.nextTable++
	for _, col := range cols {
		col.ID = c.nextColumn
		c.nextColumn++
		t.Columns = append(t.Columns, col)
	}
	schema.Tables[key] = t
	return t, nil
}

// DropTable removes a table from the namespace. It does not reclaim ids.
func (c *Catalog) DropTable(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	schema := c.databases["quiver"].Schemas["public"]
	key := strings.ToLower(name)
	if _, exists := schema.Tables[key]; !exists {
		return sqlerr.Wrapf(sqlerr.ErrUnknownTable, "table %q", name)
	}
	delete(schema.Tables, key)
	return nil
}
