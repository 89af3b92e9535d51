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
	"container/list"
	"sync"
)

// DefaultCacheBytes is the block cache's default byte budget (spec 4.6:
// "LRU by total bytes, default cap 1 GiB").
const DefaultCacheBytes = 1 << 30

type cacheKey struct {
	file string
	idx  int
}

type cacheEntry struct {
	key   cacheKey
	block Block
	bytes int
}

// BlockCache is a process-wide LRU cache of decoded blocks, shared by
// every table's read path (spec 4.6: "a shared block cache").
type BlockCache struct {
	mu       sync.Mutex
	capacity int
	size     int
	ll       *list.List
	items    map[cacheKey]*list.Element
}

// NewBlockCache creates a cache with the given byte capacity
// (DefaultCacheBytes if zero).
func NewBlockCache(capacityBytes int) *BlockCache {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCacheBytes
	}
	return &BlockCache{capacity: capacityBytes, ll: list.New(), items: map[cacheKey]*list.Element{}}
}

// Get returns a cached block for (file, idx), promoting it to
// most-recently-used.
func (c *BlockCache) Get(file string, idx int) (Block, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{file, idx}
	el, ok := c.items[key]
	if !ok {
		return Block{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).block, true
}

// Put installs a freshly-read block, evicting least-recently-used
// entries until the cache fits within capacity.
func (c *BlockCache) Put(file string, idx int, b Block, rawBytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{file, idx}
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		c.size += rawBytes - el.Value.(*cacheEntry).bytes
		el.Value.(*cacheEntry).block = b
		el.Value.(*cacheEntry).bytes = rawBytes
	} else {
		el := c.ll.PushFront(&cacheEntry{key: key, block: b, bytes: rawBytes})
		c.items[key] = el
		c.size += rawBytes
	}
	for c.size > c.capacity && c.ll.Len() > 0 {
		back := c.ll.Back()
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.items, entry.key)
		c.size -= entry.bytes
	}
}
