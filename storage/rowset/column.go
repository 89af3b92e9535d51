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

package rowset

import (
	"io"
	"os"

	"github.com/quiverdb/quiver/chunk"
	"github.com/quiverdb/quiver/sqlerr"
	"github.com/quiverdb/quiver/value"
)

// BlockFooterEntry records one block's position and value range within
// a column file (spec 4.6: "a per-column footer records, for every
// block, its file offset, byte length, first row-handle, and min/max of
// the value range").
// The min/max of a block lives in the block's own header (Block.Min/Max,
// decoded along with everything else by ColumnFile.ReadBlockAt), not in
// the footer. No read path consults it: a scan decodes every block and
// its predicate is applied row by row afterwards.
type BlockFooterEntry struct {
	Offset      int64
	Length      int64
	FirstHandle int64
}

// ColumnBuilder accepts values for one column and emits finished blocks
// via flush, either when the accumulated byte estimate crosses
// targetBlockSize or when the caller forces a flush at memtable-flush
// time (spec 9: "should-finish sizing by byte estimate, not fixed row
// count").
type ColumnBuilder struct {
	nullable       bool
	targetBytes    int
	pending        []chunk.Array
	pendingBytes   int
}

// NewColumnBuilder creates a builder targeting targetBlockSize bytes
// per block (DefaultTargetBlockSize if zero).
func NewColumnBuilder(nullable bool, targetBlockSize int) *ColumnBuilder {
	if targetBlockSize <= 0 {
		targetBlockSize = DefaultTargetBlockSize
	}
	return &ColumnBuilder{nullable: nullable, targetBytes: targetBlockSize}
}

// Add stages arr for encoding; ShouldFinish reports whether the
// accumulated byte estimate has crossed the target.
func (c *ColumnBuilder) Add(arr chunk.Array) {
	c.pending = append(c.pending, arr)
	c.pendingBytes += estimateBytes(arr)
}

func (c *ColumnBuilder) ShouldFinish() bool { return c.pendingBytes >= c.targetBytes }

func (c *ColumnBuilder) HasPending() bool { return len(c.pending) > 0 }

// Finish concatenates every staged array into one block and resets the
// builder for the next one.
func (c *ColumnBuilder) Finish() (Block, error) {
	if len(c.pending) == 0 {
		return Block{}, sqlerr.Wrapf(sqlerr.ErrInternal, "rowset: Finish called with nothing pending")
	}
	merged, err := concatArrays(c.pending)
	if err != nil {
		return Block{}, err
	}
	c.pending = nil
	c.pendingBytes = 0
	return EncodeArray(merged, c.nullable), nil
}

func estimateBytes(arr chunk.Array) int {
	if arr.Type().Kind == value.KindBoolean {
		return arr.Len() / 8
	}
	return arr.Len() * 8
}

func concatArrays(arrs []chunk.Array) (chunk.Array, error) {
	if len(arrs) == 1 {
		return arrs[0], nil
	}
	b := chunk.NewBuilder(arrs[0].Type(), 0)
	for _, arr := range arrs {
		for i := 0; i < arr.Len(); i++ {
			if arr.IsValid(i) {
				b.Append(arr.Get(i))
			} else {
				b.AppendNull()
			}
		}
	}
	return b.Finish(), nil
}

// ColumnFile is a sequence of blocks backed by one on-disk file, plus
// the in-memory footer describing each block's offset/length/min-max
// (spec 4.6).
type ColumnFile struct {
	path   string
	f      *os.File
	footer []BlockFooterEntry
}

// CreateColumnFile creates path for writing and returns an empty
// ColumnFile.
func CreateColumnFile(path string) (*ColumnFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	return &ColumnFile{path: path, f: f}, nil
}

// WriteBlock appends block to the file and records its footer entry.
func (cf *ColumnFile) WriteBlock(b Block, firstHandle int64) error {
	offset, err := cf.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	data := Encode(b)
	if _, err := cf.f.Write(data); err != nil {
		return sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	cf.footer = append(cf.footer, BlockFooterEntry{
		Offset: offset, Length: int64(len(data)), FirstHandle: firstHandle,
	})
	return nil
}

// Close closes the underlying file handle (idempotent).
func (cf *ColumnFile) Close() error {
	if cf.f == nil {
		return nil
	}
	err := cf.f.Close()
	cf.f = nil
	return err
}

// Footer returns the accumulated per-block index entries.
func (cf *ColumnFile) Footer() []BlockFooterEntry { return cf.footer }

// OpenColumnFile opens an existing, sealed column file for reading,
// given its previously-recorded footer.
func OpenColumnFile(path string, footer []BlockFooterEntry) (*ColumnFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	return &ColumnFile{path: path, f: f, footer: footer}, nil
}

// ReadBlockAt reads and decodes the block at footer index idx.
func (cf *ColumnFile) ReadBlockAt(idx int) (Block, error) {
	entry := cf.footer[idx]
	buf := make([]byte, entry.Length)
	if _, err := cf.f.ReadAt(buf, entry.Offset); err != nil {
		return Block{}, sqlerr.Wrap(sqlerr.ErrIo, err.Error())
	}
	return Decode(buf)
}
