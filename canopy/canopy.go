// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package canopy contains the fundamental types used by all Canopy software.
package canopy

import "encoding/json"

// A Ref is the content reference identifying an item in the store: the hex
// digest of the item's bytes. Refs are opaque to everything but the store;
// equality is bytewise.
type Ref string

// A Key names an item in the namespace. It is a sequence of components
// separated by '.', such as "resource.node3.cores". The literal key "."
// refers to the root directory itself.
type Key string

// Root is the key naming the root directory.
const Root Key = "."

// An Epoch is the session heartbeat counter. It advances monotonically and
// is used by the cache for freshness accounting; it is opaque to the lookup
// engine.
type Epoch int

// A Value is an uninterpreted datum stored at a leaf of the namespace.
// It is a JSON encoding; the store does not look inside it.
type Value = json.RawMessage

// A Flag modifies how a lookup treats the terminal entry of its key.
type Flag int

const (
	// ReadDir requests the directory mapping at the terminal.
	ReadDir Flag = 1 << iota

	// ReadLink requests the link target at the terminal instead of
	// following the link.
	ReadLink

	// TreeObj requests the raw dirent at the terminal, suppressing any
	// content fetch.
	TreeObj
)

// A Node is one decoded unit of content, as held by the cache. A node is
// either a directory (a JSON object of dirents) or a file value; which one
// is decided by the consumer, so a node keeps the raw encoding and decodes
// on demand.
type Node struct {
	data Value
}

// NewNode returns a node holding data. The node aliases data; callers that
// do not own the slice must copy first.
func NewNode(data []byte) *Node {
	return &Node{data: Value(data)}
}

// Value returns the node's raw content.
func (n *Node) Value() Value {
	return n.data
}

// Directory decodes the node as a directory. It returns (nil, nil) if the
// content is not a JSON object, and an error if the object holds a
// malformed dirent. The returned mapping is freshly decoded and owned by
// the caller.
func (n *Node) Directory() (Directory, error) {
	data := skipSpace(n.data)
	if len(data) == 0 || data[0] != '{' {
		return nil, nil
	}
	var dir Directory
	if err := json.Unmarshal(n.data, &dir); err != nil {
		return nil, err
	}
	return dir, nil
}

func skipSpace(data []byte) []byte {
	for len(data) > 0 {
		switch data[0] {
		case ' ', '\t', '\r', '\n':
			data = data[1:]
		default:
			return data
		}
	}
	return data
}

// NodeCache is the read-only view of the content cache consumed by the
// lookup engine: nodes by reference at an epoch. A failed lookup is a miss,
// not an error; the caller is expected to load the missing reference and
// retry. Implementations must be safe for concurrent readers and must not
// be modified by Lookup itself.
type NodeCache interface {
	// Lookup returns the node for ref, or reports a miss. The epoch is
	// advisory, used by the cache for freshness accounting.
	Lookup(ref Ref, epoch Epoch) (*Node, bool)
}
