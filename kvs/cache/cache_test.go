// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cache

import (
	"fmt"
	"testing"

	"canopy.io/canopy"
	"canopy.io/errors"
)

func TestFillLookup(t *testing.T) {
	c := New(0)
	if _, ok := c.Lookup("abc", 1); ok {
		t.Error("lookup hit on empty cache")
	}
	if err := c.Fill("abc", []byte(`"v"`), 1); err != nil {
		t.Fatal(err)
	}
	node, ok := c.Lookup("abc", 2)
	if !ok {
		t.Fatal("miss after fill")
	}
	if string(node.Value()) != `"v"` {
		t.Errorf("value = %s", node.Value())
	}
	if !c.Contains("abc") || c.Len() != 1 {
		t.Errorf("Contains/Len disagree: %v %d", c.Contains("abc"), c.Len())
	}
}

func TestFillCopies(t *testing.T) {
	c := New(0)
	data := []byte(`"v"`)
	if err := c.Fill("abc", data, 1); err != nil {
		t.Fatal(err)
	}
	data[1] = 'x'
	node, _ := c.Lookup("abc", 1)
	if string(node.Value()) != `"v"` {
		t.Error("cache aliases caller data")
	}
}

func TestFillEmptyRef(t *testing.T) {
	if err := New(0).Fill("", []byte(`1`), 1); !errors.Is(errors.Invalid, err) {
		t.Errorf("err = %v, want Invalid", err)
	}
}

func TestExpire(t *testing.T) {
	c := New(0)
	c.Fill("old", []byte(`1`), 1)
	c.Fill("fresh", []byte(`2`), 1)

	// Use "fresh" at a later epoch; "old" stays at 1.
	if _, ok := c.Lookup("fresh", 10); !ok {
		t.Fatal("miss on fresh")
	}
	if n := c.Expire(12, 5); n != 1 {
		t.Errorf("Expire evicted %d, want 1", n)
	}
	if c.Contains("old") {
		t.Error("stale entry survived Expire")
	}
	if !c.Contains("fresh") {
		t.Error("fresh entry was expired")
	}
}

func TestLRUBound(t *testing.T) {
	c := New(2)
	for i := 0; i < 3; i++ {
		ref := canopy.Ref(fmt.Sprintf("r%d", i))
		if err := c.Fill(ref, []byte(`1`), 1); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if c.Contains("r0") {
		t.Error("least recently used entry survived the bound")
	}
}

func TestRefill(t *testing.T) {
	c := New(0)
	c.Fill("abc", []byte(`1`), 1)
	c.Fill("abc", []byte(`2`), 2)
	node, _ := c.Lookup("abc", 2)
	if string(node.Value()) != `2` {
		t.Errorf("refill did not replace: %s", node.Value())
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d after refill, want 1", c.Len())
	}
}
