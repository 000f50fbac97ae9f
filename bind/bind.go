// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bind keeps the registry of service modules loaded into this
// process. Modules register under a service name; the registry answers
// lookups by name and reports the module list with per-module idle
// accounting, which is the shape the modctl wire messages carry.
package bind

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"canopy.io/errors"
)

// A Module is a named service loaded into the process.
type Module interface {
	// Name returns the module's service name.
	Name() string

	// Status describes the module's current state, such as "running".
	Status() string
}

// Info describes one registered module, as reported by List and carried
// by the module list wire encoding.
type Info struct {
	Name   string `json:"name"`
	Idle   int    `json:"idle"` // seconds since the module last served a request
	Status string `json:"status"`
}

type registered struct {
	mod     Module
	lastUse time.Time
}

var (
	mu      sync.Mutex
	modules = make(map[string]*registered)
)

// For tests.
var timeNow = time.Now

// Register adds a module to the registry. Registering a second module
// under the same name is an error of kind Exist.
func Register(m Module) error {
	const op = "bind.Register"
	name := m.Name()
	if name == "" {
		return errors.E(op, errors.Invalid, errors.Str("empty module name"))
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := modules[name]; ok {
		return errors.E(op, errors.Exist, errors.Str(name))
	}
	modules[name] = &registered{mod: m, lastUse: timeNow()}
	return nil
}

// Lookup returns the module registered under name.
func Lookup(name string) (Module, bool) {
	mu.Lock()
	defer mu.Unlock()
	r, ok := modules[name]
	if !ok {
		return nil, false
	}
	return r.mod, true
}

// Remove unregisters the module under name. Removing an unknown name is an
// error of kind NotExist.
func Remove(name string) error {
	const op = "bind.Remove"
	mu.Lock()
	defer mu.Unlock()
	if _, ok := modules[name]; !ok {
		return errors.E(op, errors.NotExist, errors.Str(name))
	}
	delete(modules, name)
	return nil
}

// Touch records that the module under name just served a request, resetting
// its idle time. Touching an unknown name is a no-op.
func Touch(name string) {
	mu.Lock()
	defer mu.Unlock()
	if r, ok := modules[name]; ok {
		r.lastUse = timeNow()
	}
}

// List returns the registered modules sorted by name.
func List() []Info {
	mu.Lock()
	defer mu.Unlock()
	now := timeNow()
	infos := make([]Info, 0, len(modules))
	for name, r := range modules {
		infos = append(infos, Info{
			Name:   name,
			Idle:   int(now.Sub(r.lastUse) / time.Second),
			Status: r.mod.Status(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// modlist is the wire shape of a module list.
type modlist struct {
	Mods []Info `json:"mods"`
}

// EncodeList encodes a module list for the wire.
func EncodeList(infos []Info) ([]byte, error) {
	const op = "bind.EncodeList"
	data, err := json.Marshal(modlist{Mods: infos})
	if err != nil {
		return nil, errors.E(op, errors.Proto, err)
	}
	return data, nil
}

// DecodeList decodes a module list from the wire.
func DecodeList(data []byte) ([]Info, error) {
	const op = "bind.DecodeList"
	var l modlist
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, errors.E(op, errors.Proto, err)
	}
	if l.Mods == nil {
		return nil, errors.E(op, errors.Proto, errors.Str("missing mods array"))
	}
	return l.Mods, nil
}
