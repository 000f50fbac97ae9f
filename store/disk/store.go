// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disk implements a persistent blob store backed by a bolt
// database file.
package disk

import (
	bolt "go.etcd.io/bbolt"

	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/store"
)

var bucketBlobs = []byte("blobs")

// Store keeps blobs in a single-bucket bolt database.
type Store struct {
	db *bolt.DB
}

var _ store.BlobStore = (*Store)(nil)

// New opens (creating if necessary) the database file at path.
func New(path string) (*Store, error) {
	const op = "store/disk.New"
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.E(op, errors.IO, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.E(op, errors.IO, err)
	}
	return &Store{db: db}, nil
}

// Put implements store.BlobStore.
func (s *Store) Put(data []byte) (canopy.Ref, error) {
	const op = "store/disk.Put"
	ref := store.RefOf(data)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(ref), data)
	})
	if err != nil {
		return "", errors.E(op, ref, errors.IO, err)
	}
	return ref, nil
}

// Get implements store.BlobStore.
func (s *Store) Get(ref canopy.Ref) ([]byte, error) {
	const op = "store/disk.Get"
	if ref == "" {
		return nil, errors.E(op, errors.Invalid, errors.Str("empty reference"))
	}
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get([]byte(ref))
		if v == nil {
			return errors.E(op, ref, errors.NotExist)
		}
		// v is only valid inside the transaction.
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if store.RefOf(data) != ref {
		return nil, errors.E(op, ref, errors.IO, errors.Str("content does not match reference"))
	}
	return data, nil
}

// Close implements store.BlobStore.
func (s *Store) Close() error {
	return s.db.Close()
}
