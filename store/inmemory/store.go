// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inmemory implements a simple non-persistent in-memory blob store.
package inmemory

import (
	"sync"

	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/store"
)

// Store holds blobs in memory, keyed by the SHA-256 of their content.
type Store struct {
	// mu protects blob.
	mu   sync.Mutex
	blob map[canopy.Ref][]byte
}

var _ store.BlobStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		blob: make(map[canopy.Ref][]byte),
	}
}

// Put implements store.BlobStore.
func (s *Store) Put(data []byte) (canopy.Ref, error) {
	ref := store.RefOf(data)
	s.mu.Lock()
	s.blob[ref] = copyOf(data)
	s.mu.Unlock()
	return ref, nil
}

// Get implements store.BlobStore.
func (s *Store) Get(ref canopy.Ref) ([]byte, error) {
	const op = "store/inmemory.Get"
	if ref == "" {
		return nil, errors.E(op, errors.Invalid, errors.Str("empty reference"))
	}
	s.mu.Lock()
	data, ok := s.blob[ref]
	s.mu.Unlock()
	if !ok {
		return nil, errors.E(op, ref, errors.NotExist)
	}
	if store.RefOf(data) != ref {
		return nil, errors.E(op, ref, errors.IO, errors.Str("internal hash mismatch"))
	}
	return copyOf(data), nil
}

// DeleteAll deletes all blobs from memory.
func (s *Store) DeleteAll() {
	s.mu.Lock()
	s.blob = make(map[canopy.Ref][]byte)
	s.mu.Unlock()
}

// Close implements store.BlobStore.
func (s *Store) Close() error {
	return nil
}

func copyOf(in []byte) (out []byte) {
	out = make([]byte, len(in))
	copy(out, in)
	return out
}
