// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package path provides tools for parsing and printing namespace keys.
// Keys are sequences of component names separated by the '.' character,
// such as "resource.node3.cores". The literal key "." is shorthand for the
// root directory and names no component at all.
package path

import (
	"strings"

	"canopy.io/canopy"
)

// IsRoot reports whether key is the root shorthand.
func IsRoot(key canopy.Key) bool {
	return key == canopy.Root
}

// Split returns the ordered components of key, splitting on every '.'.
// Empty components are preserved: "a..b" has the components "a", "" and
// "b", and the empty name is an ordinary name as far as the store is
// concerned. An empty key has no components. Split does not treat the root
// shorthand specially; callers check IsRoot first.
func Split(key canopy.Key) []string {
	if key == "" {
		return nil
	}
	return strings.Split(string(key), ".")
}

// Join builds a key from its components. It is the inverse of Split for
// any non-empty key: Join(Split(key)...) == key.
func Join(elems ...string) canopy.Key {
	return canopy.Key(strings.Join(elems, "."))
}

// NElem returns the number of components in key.
func NElem(key canopy.Key) int {
	return len(Split(key))
}
