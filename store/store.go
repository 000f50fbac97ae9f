// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package store defines the content-addressed blob store that backs the
// Canopy node cache. A blob's reference is the hex encoding of its SHA-256
// digest, so the store can always verify what it returns.
package store

import (
	"github.com/opencontainers/go-digest"

	"canopy.io/canopy"
)

// BlobStore is the interface to content-addressed blob storage.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Get returns the blob for ref. Asking for a reference the store
	// does not hold is an error of kind NotExist.
	Get(ref canopy.Ref) ([]byte, error)

	// Put stores the blob and returns its reference. Storing the same
	// bytes twice returns the same reference.
	Put(data []byte) (canopy.Ref, error)

	// Close releases resources held by the store.
	Close() error
}

// RefOf returns the content reference for data.
func RefOf(data []byte) canopy.Ref {
	return canopy.Ref(digest.FromBytes(data).Encoded())
}
