// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cache implements the content cache of the Canopy key-value
// store: decoded nodes by content reference, with last-use epoch
// accounting for expiry and an LRU bound on the entry count.
//
// The cache is read-only from the lookup engine's point of view. Misses
// are reported, not resolved; whoever drives a lookup fills the cache from
// the blob store between drives.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"canopy.io/canopy"
	"canopy.io/errors"
)

type entry struct {
	node     *canopy.Node
	lastUsed canopy.Epoch
}

// Cache holds decoded content nodes. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	lru     *lru.Cache // bounds the entry count; values are *entry
	entries map[canopy.Ref]*entry
}

var _ canopy.NodeCache = (*Cache)(nil)

// New creates a cache holding at most maxEntries nodes; zero means no
// bound. The least recently used entry is evicted when the bound is hit.
func New(maxEntries int) *Cache {
	c := &Cache{
		entries: make(map[canopy.Ref]*entry),
	}
	c.lru = &lru.Cache{
		MaxEntries: maxEntries,
		OnEvicted: func(key lru.Key, value interface{}) {
			delete(c.entries, key.(canopy.Ref))
		},
	}
	return c
}

// Lookup returns the node for ref, or reports a miss. A hit records epoch
// as the entry's last use. Lookup implements canopy.NodeCache.
func (c *Cache) Lookup(ref canopy.Ref, epoch canopy.Epoch) (*canopy.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.lru.Get(ref)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	if epoch > e.lastUsed {
		e.lastUsed = epoch
	}
	return e.node, true
}

// Fill stores the content for ref, making it available to subsequent
// lookups. The data is copied. Filling a reference that is already present
// replaces it.
func (c *Cache) Fill(ref canopy.Ref, data []byte, epoch canopy.Epoch) error {
	const op = "kvs/cache.Fill"
	if ref == "" {
		return errors.E(op, errors.Invalid, errors.Str("empty reference"))
	}
	e := &entry{
		node:     canopy.NewNode(copyOf(data)),
		lastUsed: epoch,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[ref] = e
	c.lru.Add(ref, e)
	return nil
}

// Contains reports whether ref is present, without touching its last use.
func (c *Cache) Contains(ref canopy.Ref) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[ref]
	return ok
}

// Len returns the number of cached nodes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Expire evicts entries that have not been used for more than maxAge
// epochs as of current, and returns how many were evicted.
func (c *Cache) Expire(current canopy.Epoch, maxAge int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var victims []canopy.Ref
	for ref, e := range c.entries {
		if int(current-e.lastUsed) > maxAge {
			victims = append(victims, ref)
		}
	}
	for _, ref := range victims {
		c.lru.Remove(ref)
	}
	return len(victims)
}

func copyOf(in []byte) (out []byte) {
	out = make([]byte, len(in))
	copy(out, in)
	return out
}
