// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errors defines the error handling used by all Canopy software.
package errors

import (
	"bytes"
	"fmt"
	"runtime"

	"canopy.io/canopy"
	"canopy.io/log"
)

// Error is the type that implements the error interface.
// It contains a number of fields, each of different type.
// An Error value may leave some values unset.
type Error struct {
	// Key is the namespace key of the item being accessed.
	Key canopy.Key
	// Ref is the content reference involved in the operation.
	Ref canopy.Ref
	// Op is the operation being performed, usually the method
	// being invoked (Drive, Get, Fill, etc.)
	Op string
	// Kind is the kind of error, such as a cycle in link
	// references, or Other if its kind is unknown or irrelevant.
	Kind Kind
	// The underlying error that triggered this one, if any.
	Err error
}

var _ error = (*Error)(nil)

// Kind defines the kind of error this is, mostly for use by callers
// such as the wire protocol that must act differently depending on
// the error.
type Kind uint8

const (
	Other      Kind = iota // Unclassified error. This value is not printed in the error message.
	Invalid                // Invalid operation for this type of item.
	Permission             // Item cannot be interpreted as requested.
	IO                     // External I/O error such as a storage failure.
	Exist                  // Item exists but should not.
	NotExist               // Item does not exist.
	IsDir                  // Item is a directory.
	NotDir                 // Item is not a directory.
	Loop                   // Too many levels of links.
	Proto                  // Protocol violation such as a corrupt dirent.
	Again                  // Operation is incomplete; retry after loading the missing item.
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid operation"
	case Permission:
		return "permission denied"
	case IO:
		return "I/O error"
	case Exist:
		return "item already exists"
	case NotExist:
		return "item does not exist"
	case IsDir:
		return "item is a directory"
	case NotDir:
		return "item is not a directory"
	case Loop:
		return "too many levels of links"
	case Proto:
		return "protocol violation"
	case Again:
		return "incomplete; try again"
	case Other:
		return "other error"
	}
	return "unknown error kind"
}

// E builds an error value from its arguments.
// The type of each argument determines its meaning.
// Only one argument of each type may be present (if
// there is more than one, the last one wins).
//
// The types are:
//	canopy.Key
//		The namespace key of the item being accessed.
//	canopy.Ref
//		The content reference involved in the operation.
//	string
//		The operation being performed, usually the method
//		being invoked (Drive, Get, Fill, etc.)
//	errors.Kind
//		The kind of error, such as a link cycle.
//	error
//		The underlying error that triggered this one.
//
// If the error is printed, only those items that have been
// set to non-zero values will appear in the result.
func E(args ...interface{}) error {
	if len(args) == 0 {
		return nil
	}
	e := &Error{}
	for _, arg := range args {
		switch arg := arg.(type) {
		case canopy.Key:
			e.Key = arg
		case canopy.Ref:
			e.Ref = arg
		case string:
			e.Op = arg
		case Kind:
			e.Kind = arg
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			log.Printf("errors.E: bad call from %s:%d: %v", file, line, args)
			return fmt.Errorf("unknown type %T, value %v in error call", arg, arg)
		}
	}
	return e
}

// pad appends str to the buffer if the buffer already has some data.
func pad(b *bytes.Buffer, str string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(str)
}

func (e *Error) Error() string {
	b := new(bytes.Buffer)
	if e.Key != "" {
		b.WriteString(string(e.Key))
	}
	if e.Ref != "" {
		pad(b, ", ")
		b.WriteString("ref ")
		b.WriteString(string(e.Ref))
	}
	if e.Op != "" {
		pad(b, ": ")
		b.WriteString(e.Op)
	}
	if e.Kind != 0 {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err != nil {
		// Indent on new line if we are cascading Canopy errors.
		if _, ok := e.Err.(*Error); ok {
			pad(b, ":\n\t")
		} else {
			pad(b, ": ")
		}
		b.WriteString(e.Err.Error())
	}
	if b.Len() == 0 {
		return "no error"
	}
	return b.String()
}

// Str returns an error that formats as the given text. It is intended for
// the error argument of E.
func Str(text string) error {
	return &errorString{text}
}

type errorString struct {
	s string
}

func (e *errorString) Error() string {
	return e.s
}

// Is reports whether err is an *Error of the given Kind. If err carries
// kind Other, Is examines the wrapped error, if any.
func Is(kind Kind, err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		return Is(kind, e.Err)
	}
	return false
}

// Match compares its two error arguments. It can be used to check for
// expected errors in tests. Both arguments must be *Error, or Match
// returns false. It reports whether every non-zero element of the first
// error is equal to the corresponding element of the second. The Err field
// is examined recursively.
func Match(template, err error) bool {
	e1, ok := template.(*Error)
	if !ok {
		return false
	}
	e2, ok := err.(*Error)
	if !ok {
		return false
	}
	if e1.Key != "" && e1.Key != e2.Key {
		return false
	}
	if e1.Ref != "" && e1.Ref != e2.Ref {
		return false
	}
	if e1.Op != "" && e1.Op != e2.Op {
		return false
	}
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Err != nil {
		if _, ok := e1.Err.(*Error); ok {
			return Match(e1.Err, e2.Err)
		}
		if e2.Err == nil || e1.Err.Error() != e2.Err.Error() {
			return false
		}
	}
	return true
}
