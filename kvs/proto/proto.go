// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package proto defines the wire schema spoken between kvs clients and the
// kvs service: the lookup request and response shapes, the flag names, and
// the numeric error codes carried in responses.
package proto

import (
	"encoding/json"
	"strings"

	"canopy.io/canopy"
	"canopy.io/errors"
)

// A LookupRequest asks for the value at Key, modified by Flags.
type LookupRequest struct {
	Key   canopy.Key `json:"key"`
	Flags int        `json:"flags"`
}

// A LookupResponse carries the result of a lookup. Errnum is zero on
// success; Val is omitted on failure and on absence (Errnum ENOENT).
type LookupResponse struct {
	Val    json.RawMessage `json:"val,omitempty"`
	Errnum int             `json:"errnum"`
}

// Numeric error codes carried in responses. The values are protocol
// constants chosen to equal the Linux errno of the same name, which is
// what the original wire format carried.
const (
	EPERM   = 1
	ENOENT  = 2
	EIO     = 5
	EAGAIN  = 11
	EEXIST  = 17
	ENOTDIR = 20
	EISDIR  = 21
	EINVAL  = 22
	ELOOP   = 40
	EPROTO  = 71
)

// Errnum maps an error to its wire code. A nil error maps to zero.
// Errors without a recognized kind report EINVAL.
func Errnum(err error) int {
	if err == nil {
		return 0
	}
	e, ok := err.(*errors.Error)
	if !ok {
		return EINVAL
	}
	switch e.Kind {
	case errors.Permission:
		return EPERM
	case errors.NotExist:
		return ENOENT
	case errors.IO:
		return EIO
	case errors.Again:
		return EAGAIN
	case errors.Exist:
		return EEXIST
	case errors.NotDir:
		return ENOTDIR
	case errors.IsDir:
		return EISDIR
	case errors.Loop:
		return ELOOP
	case errors.Proto:
		return EPROTO
	case errors.Invalid:
		return EINVAL
	case errors.Other:
		if e.Err != nil {
			return Errnum(e.Err)
		}
	}
	return EINVAL
}

// Flag names as they appear in request URLs and tools.
var flagNames = map[string]canopy.Flag{
	"readdir":  canopy.ReadDir,
	"readlink": canopy.ReadLink,
	"treeobj":  canopy.TreeObj,
}

// ParseFlags parses a comma-separated list of flag names. The empty string
// parses to zero flags.
func ParseFlags(s string) (canopy.Flag, error) {
	const op = "kvs/proto.ParseFlags"
	var flags canopy.Flag
	if s == "" {
		return 0, nil
	}
	for _, name := range strings.Split(s, ",") {
		f, ok := flagNames[name]
		if !ok {
			return 0, errors.E(op, errors.Invalid, errors.Str("unknown flag "+name))
		}
		flags |= f
	}
	return flags, nil
}

// EncodeValue encodes a lookup result for the wire. It accepts the dynamic
// types a complete lookup produces: canopy.Directory, canopy.Value,
// canopy.Key and *canopy.Dirent.
func EncodeValue(v interface{}) (json.RawMessage, error) {
	const op = "kvs/proto.EncodeValue"
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.E(op, errors.Proto, err)
	}
	return data, nil
}
