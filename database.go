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

// Package quiver is the embedding surface: New/NewOnDisk construct a
// Database, and Run executes a (possibly multi-statement) SQL string
// against it, driving the parser, binder, logical planner, optimizer,
// and vectorized executor in sequence.
package quiver

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/quiverdb/quiver/ast"
	"github.com/quiverdb/quiver/binder"
	"github.com/quiverdb/quiver/catalog"
	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/optimizer"
	"github.com/quiverdb/quiver/parser"
	"github.com/quiverdb/quiver/plan"
	"github.com/quiverdb/quiver/rowexec"
	"github.com/quiverdb/quiver/storage"
	"github.com/quiverdb/quiver/storage/memory"
	"github.com/quiverdb/quiver/storage/rowset"
)

// Options configures an on-disk Database (spec 6).
type Options struct {
	// Path is the root directory holding the table manifests and
	// row-sets.
	Path string
	// CacheSizeBytes bounds the shared block cache. Zero uses the
	// default of 1 GiB.
	CacheSizeBytes int
	// TargetBlockSize is the size a ColumnBuilder aims to fill before
	// sealing a block. Zero uses the default of 16 KiB.
	TargetBlockSize int
	// BatchSize is the default chunk size the executor assembles into.
	// Zero uses rowexec.DefaultBatchSize.
	BatchSize int
}

const (
	defaultCacheSizeBytes  = 1 << 30
	defaultTargetBlockSize = 16 << 10
)

// Database is a single embedded instance: a catalog plus a storage
// engine, either in-memory or backed by an on-disk row-set layout.
type Database struct {
	mu        sync.Mutex
	cat       *catalog.Catalog
	store     storage.Storage
	onDisk    bool
	batchSize int
	log       *logrus.Entry
}

// New creates an in-memory Database. Nothing it writes survives
// process exit.
func New() *Database {
	return &Database{
		cat:       catalog.New(),
		store:     memory.New(),
		batchSize: rowexec.DefaultBatchSize,
		log:       logrus.StandardLogger().WithField("component", "quiver"),
	}
}

// NewOnDisk creates a Database backed by a row-set directory at
// opts.Path (spec 6). The directory is created if it does not exist.
func NewOnDisk(opts Options) (*Database, error) {
	cacheSize := opts.CacheSizeBytes
	if cacheSize <= 0 {
		cacheSize = defaultCacheSizeBytes
	}
	blockSize := opts.TargetBlockSize
	if blockSize <= 0 {
		blockSize = defaultTargetBlockSize
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = rowexec.DefaultBatchSize
	}
	store, err := rowset.Open(rowset.Options{
		Path:            opts.Path,
		CacheSizeBytes:  cacheSize,
		TargetBlockSize: blockSize,
		BatchSize:       batchSize,
	})
	if err != nil {
		return nil, err
	}
	return &Database{
		cat:       catalog.New(),
		store:     store,
		onDisk:    true,
		batchSize: batchSize,
		log:       logrus.StandardLogger().WithField("component", "quiver"),
	}, nil
}

// Close releases any resources held by the storage engine (block
// caches, open file handles).
func (db *Database) Close() error {
	return db.store.Close()
}

// Run executes sql, which may hold more than one ';'-separated
// statement, and returns every output chunk from every statement in
// order (spec 6: "run(sql) -> Vec<Chunk>"). Statements execute
// sequentially; on error the already-executed statements' effects are
// not rolled back, and execution stops at the failing statement.
func (db *Database) Run(sql string) ([]chunk.Chunk, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	stmts, err := parser.Parse(sql)
	if err != nil {
		return nil, err
	}

	var out []chunk.Chunk
	for _, stmt := range stmts {
		chunks, err := db.runOne(stmt)
		if err != nil {
			return out, err
		}
		out = append(out, chunks...)
	}
	return out, nil
}

func (db *Database) runOne(stmt ast.Statement) ([]chunk.Chunk, error) {
	bound, err := binder.Bind(stmt, db.cat)
	if err != nil {
		return nil, err
	}
	logical, err := plan.Build(bound)
	if err != nil {
		return nil, err
	}
	physical, err := optimizer.Optimize(logical, db.onDisk)
	if err != nil {
		return nil, err
	}

	db.log.WithField("plan", plan.Explain(physical)).Debug("executing statement")

	it, err := rowexec.Build(physical, rowexec.Env{Store: db.store, Cat: db.cat}, db.batchSize)
	if err != nil {
		return nil, err
	}
	return rowexec.Run(it)
}
