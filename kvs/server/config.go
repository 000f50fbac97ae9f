// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package server

import (
	"os"

	yaml "gopkg.in/yaml.v2"

	"canopy.io/errors"
)

// Config holds the kvs server configuration.
type Config struct {
	// Addr is the network address to listen on.
	Addr string `yaml:"addr"`

	// StorePath names the blob store database file. Empty means an
	// in-memory store.
	StorePath string `yaml:"store"`

	// CacheSize bounds the number of nodes held in the content cache;
	// zero means no bound.
	CacheSize int `yaml:"cachesize"`

	// HeartRate is the heartbeat rate, such as "2s" or "500ms".
	// Empty means the heartbeat default.
	HeartRate string `yaml:"heartrate"`

	// MaxAge is how many epochs a cached node may go unused before the
	// heartbeat expires it.
	MaxAge int `yaml:"maxage"`
}

// DefaultConfig returns the configuration used where no config file is
// given.
func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:7070",
		CacheSize: 4096,
		MaxAge:    60,
	}
}

// ReadConfig reads a YAML configuration file. Fields not present keep
// their DefaultConfig values.
func ReadConfig(path string) (Config, error) {
	const op = "kvs/server.ReadConfig"
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.E(op, errors.IO, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.E(op, errors.Invalid, err)
	}
	return cfg, nil
}
