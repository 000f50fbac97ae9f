// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package lookup implements the resumable lookup engine of the Canopy
// key-value store: a state machine that walks a key through the
// content-addressed namespace tree held in a node cache.
//
// A Lookup never blocks. When it needs a node that is not in the cache it
// stalls: Drive returns false and MissingRef names the reference the
// caller must load into the cache before driving again. A drive that
// returns true is final; the result is available from Value and Err, and
// further drives are no-ops.
package lookup

import (
	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/log"
	"canopy.io/path"
)

type state int

const (
	stateInit state = iota
	stateCheckRoot
	stateWalk
	stateValue
	stateFinished
)

// A Lookup is a single-shot, resumable lookup of one key. It is created
// with New, driven with Drive, and read with the accessors. A Lookup may
// be driven by at most one goroutine at a time; distinct Lookups are
// independent and share only the cache.
type Lookup struct {
	// Inputs from the caller.
	cache   canopy.NodeCache
	epoch   canopy.Epoch
	rootDir canopy.Ref
	rootRef canopy.Ref
	key     canopy.Key
	flags   canopy.Flag

	aux interface{}

	// Potential results of the lookup.
	val        interface{}
	missingRef canopy.Ref
	err        error

	// Walk internals.
	rootDirent *canopy.Dirent
	levels     []*level
	wdirent    *canopy.Dirent
	state      state
}

// New creates a lookup of key at the given epoch, rooted at rootDir. The
// rootRef may differ from rootDir when the caller wants the walk pinned to
// a snapshot other than the directory the root name denotes; when empty it
// defaults to rootDir. The cache and rootDir are required.
func New(cache canopy.NodeCache, epoch canopy.Epoch, rootDir, rootRef canopy.Ref, key canopy.Key, flags canopy.Flag) (*Lookup, error) {
	const op = "kvs/lookup.New"
	if cache == nil || rootDir == "" {
		return nil, errors.E(op, errors.Invalid)
	}
	if rootRef == "" {
		rootRef = rootDir
	}
	l := &Lookup{
		cache:      cache,
		epoch:      epoch,
		rootDir:    rootDir,
		rootRef:    rootRef,
		key:        key,
		flags:      flags,
		rootDirent: canopy.DirRef(rootRef),
		state:      stateInit,
	}
	// The first level is depth 0.
	l.push(key, 0)
	return l, nil
}

// Drive advances the lookup as far as it can go. It reports true when the
// lookup is complete (the result is available from Value and Err) and
// false when it stalled on a missing reference, which MissingRef names.
// Driving a finished lookup is a no-op that reports true.
func (l *Lookup) Drive() bool {
	if l == nil {
		return true
	}
	switch l.state {
	case stateInit, stateCheckRoot:
		// Special case the root shorthand.
		if path.IsRoot(l.key) {
			return l.checkRoot()
		}
		l.state = stateWalk
		fallthrough
	case stateWalk:
		if !l.walk() {
			return false
		}
		if l.err != nil || l.wdirent == nil {
			// An empty result is not necessarily an error;
			// the caller decides.
			return l.finish()
		}
		l.state = stateValue
		return l.value()
	case stateValue:
		return l.value()
	case stateFinished:
		return true
	}
	log.Fatalf("kvs/lookup: invalid state %d", l.state)
	return true
}

// checkRoot handles the root shorthand without invoking the walk.
func (l *Lookup) checkRoot() bool {
	const op = "kvs/lookup.Drive"
	if l.flags&canopy.TreeObj != 0 {
		l.val = canopy.DirRef(l.rootDir)
		return l.finish()
	}
	if l.flags&canopy.ReadDir == 0 {
		l.err = errors.E(op, l.key, errors.IsDir)
		return l.finish()
	}
	node, ok := l.cache.Lookup(l.rootRef, l.epoch)
	if !ok {
		l.state = stateCheckRoot
		l.missingRef = l.rootRef
		return false
	}
	dir, err := node.Directory()
	if err != nil {
		l.err = errors.E(op, l.key, errors.Proto, err)
	} else if dir == nil {
		l.err = errors.E(op, l.key, errors.Proto, errors.Str("root is not a directory"))
	} else {
		l.val = dir
	}
	return l.finish()
}

// value applies the flag matrix to the dirent the walk resolved. Loading a
// referenced terminal may stall.
func (l *Lookup) value() bool {
	const op = "kvs/lookup.Drive"

	if l.flags&canopy.TreeObj != 0 {
		l.val = l.wdirent
		return l.finish()
	}

	switch l.wdirent.Kind() {
	case canopy.DirentDirRef:
		if l.flags&canopy.ReadLink != 0 {
			l.err = errors.E(op, l.key, errors.Invalid)
			break
		}
		if l.flags&canopy.ReadDir == 0 {
			l.err = errors.E(op, l.key, errors.IsDir)
			break
		}
		node, ok := l.cache.Lookup(l.wdirent.Ref(), l.epoch)
		if !ok {
			l.missingRef = l.wdirent.Ref()
			return false
		}
		dir, err := node.Directory()
		if err != nil {
			l.err = errors.E(op, l.key, errors.Proto, err)
		} else if dir == nil {
			l.err = errors.E(op, l.key, l.wdirent.Ref(), errors.Proto, errors.Str("referenced directory is not a directory"))
		} else {
			l.val = dir
		}
	case canopy.DirentDirVal:
		if l.flags&canopy.ReadLink != 0 {
			l.err = errors.E(op, l.key, errors.Invalid)
			break
		}
		if l.flags&canopy.ReadDir == 0 {
			l.err = errors.E(op, l.key, errors.IsDir)
			break
		}
		l.val = l.wdirent.Dir().Copy()
	case canopy.DirentFileRef:
		if l.flags&canopy.ReadDir != 0 {
			l.err = errors.E(op, l.key, errors.NotDir)
			break
		}
		if l.flags&canopy.ReadLink != 0 {
			l.err = errors.E(op, l.key, errors.Invalid)
			break
		}
		node, ok := l.cache.Lookup(l.wdirent.Ref(), l.epoch)
		if !ok {
			l.missingRef = l.wdirent.Ref()
			return false
		}
		l.val = node.Value()
	case canopy.DirentFileVal:
		if l.flags&canopy.ReadDir != 0 {
			l.err = errors.E(op, l.key, errors.NotDir)
			break
		}
		if l.flags&canopy.ReadLink != 0 {
			l.err = errors.E(op, l.key, errors.Invalid)
			break
		}
		l.val = l.wdirent.Val()
	case canopy.DirentLink:
		// The walk follows end-of-key links unless ReadLink or
		// TreeObj is set, so a link here without ReadLink cannot
		// happen through a well-formed tree.
		if l.flags&canopy.ReadLink == 0 {
			l.err = errors.E(op, l.key, errors.Proto)
			break
		}
		if l.flags&canopy.ReadDir != 0 {
			l.err = errors.E(op, l.key, errors.NotDir)
			break
		}
		l.val = l.wdirent.Target()
	default:
		log.Error.Printf("kvs/lookup: corrupt dirent at %q", l.key)
		l.err = errors.E(op, l.key, errors.Permission)
	}
	return l.finish()
}

func (l *Lookup) finish() bool {
	l.state = stateFinished
	l.missingRef = ""
	return true
}

// Value returns the result of a complete, successful lookup, and nil
// otherwise. A complete lookup with a nil Value and a nil Err means the
// key does not resolve; the caller decides how to interpret absence.
//
// The dynamic type depends on the flags and the terminal dirent:
// canopy.Directory for directory reads, canopy.Value for file reads,
// canopy.Key for ReadLink, and *canopy.Dirent for TreeObj. Directory
// results are copies and share no storage with the cache.
func (l *Lookup) Value() interface{} {
	if l != nil && l.state == stateFinished && l.err == nil {
		return l.val
	}
	return nil
}

// MissingRef returns the reference the caller must load into the cache
// before the next drive. It is non-empty only after a drive that stalled.
func (l *Lookup) MissingRef() canopy.Ref {
	if l != nil && (l.state == stateCheckRoot || l.state == stateWalk || l.state == stateValue) {
		return l.missingRef
	}
	return ""
}

// Err returns the terminal error of a complete lookup, which is nil on
// success and on absence. While the lookup is stalled Err reports kind
// Again; a lookup that has never been driven reports Invalid.
func (l *Lookup) Err() error {
	const op = "kvs/lookup.Err"
	if l == nil {
		return errors.E(op, errors.Invalid)
	}
	switch l.state {
	case stateFinished:
		return l.err
	case stateCheckRoot, stateWalk, stateValue:
		return errors.E(op, l.key, errors.Again)
	}
	return errors.E(op, errors.Invalid)
}

// Cache returns the node cache the lookup reads from.
func (l *Lookup) Cache() canopy.NodeCache {
	return l.cache
}

// Epoch returns the epoch lookups are issued at.
func (l *Lookup) Epoch() canopy.Epoch {
	return l.epoch
}

// SetEpoch changes the epoch used for subsequent drives. The caller
// typically refreshes it after a long stall.
func (l *Lookup) SetEpoch(epoch canopy.Epoch) {
	l.epoch = epoch
}

// RootDir returns the root directory name the lookup was created with.
func (l *Lookup) RootDir() canopy.Ref {
	return l.rootDir
}

// RootRef returns the reference the walk is rooted at.
func (l *Lookup) RootRef() canopy.Ref {
	return l.rootRef
}

// Key returns the key being looked up.
func (l *Lookup) Key() canopy.Key {
	return l.key
}

// Flags returns the lookup's flags.
func (l *Lookup) Flags() canopy.Flag {
	return l.flags
}

// Aux returns the caller data attached with SetAux.
func (l *Lookup) Aux() interface{} {
	return l.aux
}

// SetAux attaches arbitrary caller data to the lookup. The engine passes
// it through untouched.
func (l *Lookup) SetAux(aux interface{}) {
	l.aux = aux
}
