// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package canopy

import (
	"encoding/json"
	"errors"
	"fmt"
)

// A DirentKind identifies which variant a Dirent carries.
type DirentKind uint8

const (
	// DirentInvalid is the zero kind; it is what decoding an
	// unrecognized (but well-formed) dirent produces.
	DirentInvalid DirentKind = iota
	DirentDirRef
	DirentDirVal
	DirentFileRef
	DirentFileVal
	DirentLink
)

func (k DirentKind) String() string {
	switch k {
	case DirentDirRef:
		return "DIRREF"
	case DirentDirVal:
		return "DIRVAL"
	case DirentFileRef:
		return "FILEREF"
	case DirentFileVal:
		return "FILEVAL"
	case DirentLink:
		return "LINKVAL"
	}
	return "invalid dirent"
}

// A Dirent describes a single edge of the namespace tree: a directory
// fetched by reference or held inline, a file fetched by reference or held
// inline, or a link to another key. A dirent carries exactly one variant
// and is treated as an immutable value once built.
type Dirent struct {
	kind DirentKind
	ref  Ref
	dir  Directory
	val  Value
	link Key
}

// DirRef returns a dirent referring to a directory stored at ref.
func DirRef(ref Ref) *Dirent {
	return &Dirent{kind: DirentDirRef, ref: ref}
}

// DirVal returns a dirent holding the directory dir inline.
func DirVal(dir Directory) *Dirent {
	return &Dirent{kind: DirentDirVal, dir: dir}
}

// FileRef returns a dirent referring to file content stored at ref.
func FileRef(ref Ref) *Dirent {
	return &Dirent{kind: DirentFileRef, ref: ref}
}

// FileVal returns a dirent holding the value val inline.
func FileVal(val Value) *Dirent {
	return &Dirent{kind: DirentFileVal, val: val}
}

// Link returns a dirent linking to the key target. Targets are resolved
// from the root of the namespace.
func Link(target Key) *Dirent {
	return &Dirent{kind: DirentLink, link: target}
}

// Kind returns the variant the dirent carries.
func (d *Dirent) Kind() DirentKind {
	return d.kind
}

// IsDir reports whether the dirent describes a directory.
func (d *Dirent) IsDir() bool {
	return d.kind == DirentDirRef || d.kind == DirentDirVal
}

// Ref returns the content reference. It is meaningful only for DirentDirRef
// and DirentFileRef dirents.
func (d *Dirent) Ref() Ref {
	return d.ref
}

// Dir returns the inline directory of a DirentDirVal dirent.
func (d *Dirent) Dir() Directory {
	return d.dir
}

// Val returns the inline value of a DirentFileVal dirent.
func (d *Dirent) Val() Value {
	return d.val
}

// Target returns the target key of a DirentLink dirent.
func (d *Dirent) Target() Key {
	return d.link
}

// MarshalJSON implements json.Marshaler. The encoding is an object with the
// single tag named by the dirent's kind.
func (d *Dirent) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case DirentDirRef:
		return json.Marshal(map[string]Ref{"DIRREF": d.ref})
	case DirentDirVal:
		return json.Marshal(map[string]Directory{"DIRVAL": d.dir})
	case DirentFileRef:
		return json.Marshal(map[string]Ref{"FILEREF": d.ref})
	case DirentFileVal:
		return json.Marshal(map[string]Value{"FILEVAL": d.val})
	case DirentLink:
		return json.Marshal(map[string]Key{"LINKVAL": d.link})
	}
	return nil, errors.New("cannot marshal invalid dirent")
}

// UnmarshalJSON implements json.Unmarshaler. A dirent must be an object
// with exactly one tag; anything else is a protocol violation. An object
// whose single tag is unrecognized decodes to a DirentInvalid dirent so the
// walk can report it distinctly from corruption.
func (d *Dirent) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("dirent must carry exactly one tag, has %d", len(m))
	}
	for tag, raw := range m {
		switch tag {
		case "DIRREF":
			var ref Ref
			if err := json.Unmarshal(raw, &ref); err != nil {
				return fmt.Errorf("bad DIRREF payload: %v", err)
			}
			*d = Dirent{kind: DirentDirRef, ref: ref}
		case "DIRVAL":
			var dir Directory
			if err := json.Unmarshal(raw, &dir); err != nil {
				return fmt.Errorf("bad DIRVAL payload: %v", err)
			}
			*d = Dirent{kind: DirentDirVal, dir: dir}
		case "FILEREF":
			var ref Ref
			if err := json.Unmarshal(raw, &ref); err != nil {
				return fmt.Errorf("bad FILEREF payload: %v", err)
			}
			*d = Dirent{kind: DirentFileRef, ref: ref}
		case "FILEVAL":
			*d = Dirent{kind: DirentFileVal, val: append(Value(nil), raw...)}
		case "LINKVAL":
			var target Key
			if err := json.Unmarshal(raw, &target); err != nil {
				return fmt.Errorf("bad LINKVAL payload: %v", err)
			}
			*d = Dirent{kind: DirentLink, link: target}
		default:
			*d = Dirent{}
		}
	}
	return nil
}

// copy returns a deep copy of the dirent.
func (d *Dirent) copy() *Dirent {
	cp := *d
	cp.dir = d.dir.Copy()
	cp.val = append(Value(nil), d.val...)
	return &cp
}

// A Directory maps component names to dirents. Iteration order is
// irrelevant; duplicate names cannot occur by construction.
type Directory map[string]*Dirent

// Copy returns a deep copy of the directory, so the result shares no
// storage with cache-held state.
func (dir Directory) Copy() Directory {
	if dir == nil {
		return nil
	}
	cp := make(Directory, len(dir))
	for name, d := range dir {
		cp[name] = d.copy()
	}
	return cp
}
