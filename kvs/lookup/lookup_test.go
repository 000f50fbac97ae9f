// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lookup

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"

	"canopy.io/canopy"
	"canopy.io/errors"
	"canopy.io/kvs/cache"
)

const rootRef = canopy.Ref("R0")

func newCache() *cache.Cache {
	return cache.New(0)
}

// fill marshals v and loads it into the cache under ref.
func fill(t *testing.T, c *cache.Cache, ref canopy.Ref, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Fill(ref, data, 1); err != nil {
		t.Fatal(err)
	}
}

func mustNew(t *testing.T, c *cache.Cache, key canopy.Key, flags canopy.Flag) *Lookup {
	t.Helper()
	lh, err := New(c, 1, rootRef, "", key, flags)
	if err != nil {
		t.Fatal(err)
	}
	return lh
}

func mustDrive(t *testing.T, lh *Lookup) {
	t.Helper()
	if !lh.Drive() {
		t.Fatalf("lookup of %q stalled on %q, want complete", lh.Key(), lh.MissingRef())
	}
}

// value drives lh to completion and returns its result, failing the test
// on stall or error.
func value(t *testing.T, lh *Lookup) interface{} {
	t.Helper()
	mustDrive(t, lh)
	if err := lh.Err(); err != nil {
		t.Fatalf("lookup of %q: %v", lh.Key(), err)
	}
	return lh.Value()
}

func wantRaw(t *testing.T, got interface{}, want string) {
	t.Helper()
	raw, ok := got.(canopy.Value)
	if !ok {
		t.Fatalf("got %T, want canopy.Value", got)
	}
	if string(raw) != want {
		t.Errorf("got %s, want %s", raw, want)
	}
}

func wantKind(t *testing.T, lh *Lookup, kind errors.Kind) {
	t.Helper()
	mustDrive(t, lh)
	err := lh.Err()
	if err == nil {
		t.Fatalf("lookup of %q: expected %s error, got none (value %v)", lh.Key(), kind, lh.Value())
	}
	if !errors.Is(kind, err) {
		t.Errorf("lookup of %q: expected %s error, got %v", lh.Key(), kind, err)
	}
	if lh.Value() != nil {
		t.Errorf("lookup of %q: value present alongside error", lh.Key())
	}
}

func TestSimpleHit(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.DirRef("R1")})
	fill(t, c, "R1", canopy.Directory{"b": canopy.FileVal(canopy.Value(`"hello"`))})

	lh := mustNew(t, c, "a.b", 0)
	wantRaw(t, value(t, lh), `"hello"`)
}

func TestStallResume(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.DirRef("R1")})

	lh := mustNew(t, c, "a.b", 0)
	if lh.Drive() {
		t.Fatal("expected stall with R1 absent")
	}
	if got := lh.MissingRef(); got != "R1" {
		t.Fatalf("missing ref %q, want R1", got)
	}
	if !errors.Is(errors.Again, lh.Err()) {
		t.Errorf("stalled Err = %v, want Again", lh.Err())
	}
	if lh.Value() != nil {
		t.Error("stalled lookup reports a value")
	}

	fill(t, c, "R1", canopy.Directory{"b": canopy.FileVal(canopy.Value(`"hello"`))})
	wantRaw(t, value(t, lh), `"hello"`)
	if got := lh.MissingRef(); got != "" {
		t.Errorf("complete lookup reports missing ref %q", got)
	}
}

func TestLinkFollow(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.Link("b.c"),
		"b": canopy.DirRef("R1"),
	})
	fill(t, c, "R1", canopy.Directory{"c": canopy.FileVal(canopy.Value(`42`))})

	lh := mustNew(t, c, "a", 0)
	wantRaw(t, value(t, lh), `42`)
}

func TestReadLink(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.Link("b.c"),
		"b": canopy.DirRef("R1"),
	})

	lh := mustNew(t, c, "a", canopy.ReadLink)
	got := value(t, lh)
	if target, ok := got.(canopy.Key); !ok || target != "b.c" {
		t.Errorf("readlink got %v (%T), want b.c", got, got)
	}
}

func TestLinkIdentity(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.Link("b"),
		"b": canopy.FileVal(canopy.Value(`"x"`)),
	})

	direct := value(t, mustNew(t, c, "b", 0))
	viaLink := value(t, mustNew(t, c, "a", 0))
	if !reflect.DeepEqual(direct, viaLink) {
		t.Errorf("link result %v differs from direct result %v", viaLink, direct)
	}
}

func TestMidPathLink(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.Link("b"),
		"b": canopy.DirRef("R1"),
	})
	fill(t, c, "R1", canopy.Directory{"c": canopy.FileVal(canopy.Value(`7`))})

	lh := mustNew(t, c, "a.c", 0)
	wantRaw(t, value(t, lh), `7`)
}

func TestLinkChainCollapse(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.Link("b"),
		"b": canopy.Link("c"),
		"c": canopy.FileVal(canopy.Value(`9`)),
	})

	lh := mustNew(t, c, "a", 0)
	wantRaw(t, value(t, lh), `9`)
}

// chainDir returns a root directory with links l0 -> l1 -> ... -> l<n-1>,
// where the last link points at a value.
func chainDir(n int) canopy.Directory {
	dir := canopy.Directory{"v": canopy.FileVal(canopy.Value(`1`))}
	for i := 0; i < n; i++ {
		target := canopy.Key(fmt.Sprintf("l%d", i+1))
		if i == n-1 {
			target = "v"
		}
		dir[fmt.Sprintf("l%d", i)] = canopy.Link(target)
	}
	return dir
}

func TestCycle(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"x": canopy.Link("x")})

	lh := mustNew(t, c, "x", 0)
	wantKind(t, lh, errors.Loop)
}

func TestCycleLimit(t *testing.T) {
	// A chain of exactly linkCycleLimit links resolves; one more trips
	// the bound, whether or not any target repeats.
	c := newCache()
	fill(t, c, rootRef, chainDir(linkCycleLimit))
	wantRaw(t, value(t, mustNew(t, c, "l0", 0)), `1`)

	c = newCache()
	fill(t, c, rootRef, chainDir(linkCycleLimit+1))
	wantKind(t, mustNew(t, c, "l0", 0), errors.Loop)
}

func TestDirectoryTerminal(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"d": canopy.DirRef("R1")})
	fill(t, c, "R1", canopy.Directory{})

	wantKind(t, mustNew(t, c, "d", 0), errors.IsDir)

	got := value(t, mustNew(t, c, "d", canopy.ReadDir))
	dir, ok := got.(canopy.Directory)
	if !ok {
		t.Fatalf("readdir got %T, want canopy.Directory", got)
	}
	if len(dir) != 0 {
		t.Errorf("readdir got %d entries, want 0", len(dir))
	}
}

func TestFlagExclusivity(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"f": canopy.FileVal(canopy.Value(`1`)),
		"d": canopy.DirRef("R1"),
		"l": canopy.Link("f"),
	})
	fill(t, c, "R1", canopy.Directory{})

	both := canopy.ReadLink | canopy.ReadDir
	wantKind(t, mustNew(t, c, "f", both), errors.NotDir)
	wantKind(t, mustNew(t, c, "l", both), errors.NotDir)
	wantKind(t, mustNew(t, c, "d", both), errors.Invalid)

	// ReadDir alone on non-directories.
	wantKind(t, mustNew(t, c, "f", canopy.ReadDir), errors.NotDir)
	wantKind(t, mustNew(t, c, "l", canopy.ReadDir), errors.NotDir)

	// ReadLink alone on non-links.
	wantKind(t, mustNew(t, c, "f", canopy.ReadLink), errors.Invalid)
	wantKind(t, mustNew(t, c, "d", canopy.ReadLink), errors.Invalid)
}

func TestRootShorthandTreeObj(t *testing.T) {
	// The tree object for "." requires no cache content at all.
	lh := mustNew(t, newCache(), canopy.Root, canopy.TreeObj)
	got := value(t, lh)
	d, ok := got.(*canopy.Dirent)
	if !ok {
		t.Fatalf("got %T, want *canopy.Dirent", got)
	}
	if d.Kind() != canopy.DirentDirRef || d.Ref() != rootRef {
		t.Errorf("got %v ref %q, want DIRREF %q", d.Kind(), d.Ref(), rootRef)
	}
}

func TestRootShorthandDefault(t *testing.T) {
	wantKind(t, mustNew(t, newCache(), canopy.Root, 0), errors.IsDir)
}

func TestRootShorthandReadDir(t *testing.T) {
	c := newCache()
	lh := mustNew(t, c, canopy.Root, canopy.ReadDir)
	if lh.Drive() {
		t.Fatal("expected stall with root absent")
	}
	if got := lh.MissingRef(); got != rootRef {
		t.Fatalf("missing ref %q, want %q", got, rootRef)
	}
	fill(t, c, rootRef, canopy.Directory{"a": canopy.FileVal(canopy.Value(`1`))})
	got := value(t, lh)
	dir, ok := got.(canopy.Directory)
	if !ok {
		t.Fatalf("got %T, want canopy.Directory", got)
	}
	if _, ok := dir["a"]; !ok {
		t.Error("root mapping is missing entry a")
	}
}

func TestAbsent(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.FileVal(canopy.Value(`1`))})

	for _, key := range []canopy.Key{"nope", "a.b", "nope.deeper"} {
		lh := mustNew(t, c, key, 0)
		mustDrive(t, lh)
		if err := lh.Err(); err != nil {
			t.Errorf("%q: err %v, want nil (absence)", key, err)
		}
		if lh.Value() != nil {
			t.Errorf("%q: value %v, want nil (absence)", key, lh.Value())
		}
	}
}

func TestEmptyComponentIsOrdinaryName(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.DirRef("R1")})
	fill(t, c, "R1", canopy.Directory{"": canopy.DirRef("R2")})
	fill(t, c, "R2", canopy.Directory{"b": canopy.FileVal(canopy.Value(`3`))})

	wantRaw(t, value(t, mustNew(t, c, "a..b", 0)), `3`)

	// The empty name resolves only where a directory actually has it.
	lh := mustNew(t, c, "a.b.", 0)
	mustDrive(t, lh)
	if lh.Err() != nil || lh.Value() != nil {
		t.Errorf("a.b.: got value %v err %v, want absence", lh.Value(), lh.Err())
	}
}

func TestEmptyKey(t *testing.T) {
	// An empty key has no components; the walk ends at the root dirent
	// and the flag matrix applies to it.
	c := newCache()
	lh := mustNew(t, c, "", canopy.TreeObj)
	got := value(t, lh)
	d, ok := got.(*canopy.Dirent)
	if !ok || d.Kind() != canopy.DirentDirRef || d.Ref() != rootRef {
		t.Errorf("empty key treeobj: got %v, want DIRREF %q", got, rootRef)
	}

	wantKind(t, mustNew(t, c, "", 0), errors.IsDir)
}

func TestTreeObjSuppressesFetch(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"f": canopy.FileRef("Rmissing")})

	lh := mustNew(t, c, "f", canopy.TreeObj)
	got := value(t, lh)
	d, ok := got.(*canopy.Dirent)
	if !ok || d.Kind() != canopy.DirentFileRef || d.Ref() != "Rmissing" {
		t.Errorf("treeobj got %v, want FILEREF Rmissing", got)
	}
}

func TestTerminalFetchStalls(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"f": canopy.FileRef("Rf")})

	lh := mustNew(t, c, "f", 0)
	if lh.Drive() {
		t.Fatal("expected stall on terminal fetch")
	}
	if got := lh.MissingRef(); got != "Rf" {
		t.Fatalf("missing ref %q, want Rf", got)
	}
	if err := c.Fill("Rf", []byte(`"contents"`), 1); err != nil {
		t.Fatal(err)
	}
	wantRaw(t, value(t, lh), `"contents"`)
}

func TestFileMidWalk(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.FileVal(canopy.Value(`1`))})

	// Components remain past a file: not resolvable, caller decides.
	lh := mustNew(t, c, "a.b.c", 0)
	mustDrive(t, lh)
	if lh.Err() != nil || lh.Value() != nil {
		t.Errorf("got value %v err %v, want absence", lh.Value(), lh.Err())
	}
}

func TestDirValMidWalk(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{
		"a": canopy.DirVal(canopy.Directory{"b": canopy.FileVal(canopy.Value(`3`))}),
	})

	wantRaw(t, value(t, mustNew(t, c, "a.b", 0)), `3`)

	got := value(t, mustNew(t, c, "a", canopy.ReadDir))
	dir, ok := got.(canopy.Directory)
	if !ok || len(dir) != 1 {
		t.Errorf("readdir of inline dir got %v (%T)", got, got)
	}
}

func TestCorruptDirent(t *testing.T) {
	c := newCache()
	if err := c.Fill(rootRef, []byte(`{"a": {"DIRREF": "x", "FILEVAL": 1}}`), 1); err != nil {
		t.Fatal(err)
	}
	wantKind(t, mustNew(t, c, "a", 0), errors.Proto)
}

func TestUnknownDirentKind(t *testing.T) {
	c := newCache()
	if err := c.Fill(rootRef, []byte(`{"a": {"BOGUS": 1}}`), 1); err != nil {
		t.Fatal(err)
	}
	// Mid-walk and terminal positions both report Permission.
	wantKind(t, mustNew(t, c, "a.b", 0), errors.Permission)
	wantKind(t, mustNew(t, c, "a", 0), errors.Permission)
}

func TestReadDirReturnsCopy(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"d": canopy.DirRef("R1")})
	fill(t, c, "R1", canopy.Directory{"x": canopy.FileVal(canopy.Value(`1`))})

	dir := value(t, mustNew(t, c, "d", canopy.ReadDir)).(canopy.Directory)
	delete(dir, "x")
	dir["junk"] = canopy.FileVal(canopy.Value(`0`))

	again := value(t, mustNew(t, c, "d", canopy.ReadDir)).(canopy.Directory)
	if _, ok := again["x"]; !ok {
		t.Error("mutating a returned directory leaked into the cache")
	}
	if _, ok := again["junk"]; ok {
		t.Error("mutating a returned directory leaked into the cache")
	}
}

func TestFinishedIsIdempotent(t *testing.T) {
	c := newCache()
	fill(t, c, rootRef, canopy.Directory{"a": canopy.FileVal(canopy.Value(`1`))})

	lh := mustNew(t, c, "a", 0)
	first := value(t, lh)
	for i := 0; i < 3; i++ {
		if !lh.Drive() {
			t.Fatal("finished lookup stalled")
		}
	}
	if !reflect.DeepEqual(lh.Value(), first) {
		t.Errorf("value changed across drives: %v then %v", first, lh.Value())
	}
	if lh.Err() != nil {
		t.Errorf("err changed across drives: %v", lh.Err())
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(nil, 1, rootRef, "", "a", 0); !errors.Is(errors.Invalid, err) {
		t.Errorf("nil cache: err %v, want Invalid", err)
	}
	if _, err := New(newCache(), 1, "", "", "a", 0); !errors.Is(errors.Invalid, err) {
		t.Errorf("empty root: err %v, want Invalid", err)
	}
}

func TestAccessors(t *testing.T) {
	c := newCache()
	lh, err := New(c, 7, "rdir", "rref", "a.b", canopy.ReadDir)
	if err != nil {
		t.Fatal(err)
	}
	if lh.Cache() != c {
		t.Error("Cache mismatch")
	}
	if lh.Epoch() != 7 {
		t.Errorf("Epoch = %d, want 7", lh.Epoch())
	}
	lh.SetEpoch(9)
	if lh.Epoch() != 9 {
		t.Errorf("Epoch = %d after SetEpoch, want 9", lh.Epoch())
	}
	if lh.RootDir() != "rdir" || lh.RootRef() != "rref" {
		t.Errorf("roots = %q, %q", lh.RootDir(), lh.RootRef())
	}
	if lh.Key() != "a.b" || lh.Flags() != canopy.ReadDir {
		t.Errorf("key/flags = %q/%d", lh.Key(), lh.Flags())
	}
	if lh.Aux() != nil {
		t.Error("fresh Aux not nil")
	}
	lh.SetAux("payload")
	if lh.Aux() != "payload" {
		t.Errorf("Aux = %v", lh.Aux())
	}

	// The root reference defaults to the root directory name.
	lh2, err := New(c, 1, "rdir", "", "a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if lh2.RootRef() != "rdir" {
		t.Errorf("RootRef = %q, want rdir", lh2.RootRef())
	}

	// An undriven lookup reports Invalid, not Again.
	if !errors.Is(errors.Invalid, lh.Err()) {
		t.Errorf("undriven Err = %v, want Invalid", lh.Err())
	}
}
