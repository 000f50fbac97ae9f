// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lookup

import (
	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/log"
	"canopy.io/path"
)

// Break cycles in link references.
const linkCycleLimit = 10

// A level is one entry of the walk stack: the remaining components at this
// depth and the dirent currently in hand. Depth 0 is the original key;
// deeper levels are link-target traversals.
type level struct {
	depth  int
	elems  []string
	dirent *canopy.Dirent
}

// push adds a level for key at the given link depth, rooted at the
// namespace root, and makes it the top of the stack.
func (l *Lookup) push(key canopy.Key, depth int) *level {
	wl := &level{
		depth:  depth,
		elems:  path.Split(key),
		dirent: l.rootDirent,
	}
	l.levels = append(l.levels, wl)
	return wl
}

// top returns the current level. The stack holds at least one level until
// the lookup finishes.
func (l *Lookup) top() *level {
	return l.levels[len(l.levels)-1]
}

func (l *Lookup) pop() {
	l.levels = l.levels[:len(l.levels)-1]
}

// walk resolves the dirent for the key, starting at the top of the walk
// stack. It reports false if it stalled on a missing reference, which the
// caller must load before walking again; the walk resumes where it left
// off. On true, either l.err is set, or l.wdirent holds the terminal
// dirent, or both are unset, which means the key does not resolve and the
// caller decides what that means.
func (l *Lookup) walk() bool {
	const op = "kvs/lookup.Drive"

	wl := l.top()

	for len(wl.elems) > 0 {
		elem := wl.elems[0]

		// Get the directory of the dirent in hand.
		var dir canopy.Directory
		switch wl.dirent.Kind() {
		case canopy.DirentDirRef:
			node, ok := l.cache.Lookup(wl.dirent.Ref(), l.epoch)
			if !ok {
				l.missingRef = wl.dirent.Ref()
				return false
			}
			d, err := node.Directory()
			if err != nil {
				l.err = errors.E(op, l.key, errors.Proto, err)
				l.wdirent = nil
				return true
			}
			dir = d
		case canopy.DirentDirVal:
			dir = wl.dirent.Dir()
		case canopy.DirentFileRef, canopy.DirentFileVal:
			// The walk reached a file with components remaining.
			// Not necessarily absent or ENOTDIR; the caller decides.
			l.wdirent = nil
			return true
		default:
			log.Error.Printf("kvs/lookup: unexpected dirent kind %v walking %q at %q", wl.dirent.Kind(), l.key, elem)
			l.err = errors.E(op, l.key, errors.Permission)
			l.wdirent = nil
			return true
		}

		// Look up the component in the directory.
		child, ok := dir[elem]
		if !ok {
			// Not necessarily absent; the caller decides.
			l.wdirent = nil
			return true
		}
		wl.dirent = child

		// Resolve the dirent if it is a link. Follow it if we are in
		// the middle of the key, or at the end without flags that ask
		// for the link itself.
		if child.Kind() == canopy.DirentLink {
			if len(wl.elems) > 1 || l.flags&(canopy.ReadLink|canopy.TreeObj) == 0 {
				if wl.depth == linkCycleLimit {
					l.err = errors.E(op, l.key, errors.Loop)
					l.wdirent = nil
					return true
				}
				// "Recursively" resolve the target from the root.
				// elem is consumed on unwind, not here.
				wl = l.push(child.Target(), wl.depth+1)
				continue
			}
		}

		if len(wl.elems) == 1 && wl.depth > 0 {
			// Unwind the recursive step: transplant the resolved
			// dirent into the level that held the link, collapsing
			// chains of link-terminated descents.
			for wl.depth > 0 && len(wl.elems) == 1 {
				l.pop()
				parent := l.top()
				parent.dirent = wl.dirent
				wl = parent
			}
		}

		wl.elems = wl.elems[1:]
	}

	l.wdirent = wl.dirent
	return true
}
