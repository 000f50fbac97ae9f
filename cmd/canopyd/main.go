// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Canopyd is the Canopy key-value store daemon. It serves the kvs module
// over HTTP, backed by a persistent or in-memory blob store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"canopy.io/bind"
	"canopy.io/kvs/server"
	"canopy.io/log"
	"canopy.io/store"
	"canopy.io/store/disk"
	"canopy.io/store/inmemory"
)

var (
	configFile string
	addr       string
	storePath  string
	heartRate  string
	logLevel   string
)

func main() {
	cmd := &cobra.Command{
		Use:           "canopyd",
		Short:         "canopyd runs the Canopy key-value store daemon",
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&configFile, "config", "", "configuration file")
	cmd.Flags().StringVar(&addr, "addr", "", "address for incoming connections")
	cmd.Flags().StringVar(&storePath, "store", "", "blob store database file (empty for in-memory)")
	cmd.Flags().StringVar(&heartRate, "heartrate", "", "heartbeat rate, e.g. 2s or 500ms")
	cmd.Flags().StringVar(&logLevel, "log", "", "level of logging: debug, info, error, disabled")
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if logLevel != "" {
		if err := log.SetLevel(logLevel); err != nil {
			return err
		}
	}

	cfg := server.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = server.ReadConfig(configFile)
		if err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = addr
	}
	if cmd.Flags().Changed("store") {
		cfg.StorePath = storePath
	}
	if cmd.Flags().Changed("heartrate") {
		cfg.HeartRate = heartRate
	}

	var blobs store.BlobStore
	if cfg.StorePath != "" {
		var err error
		blobs, err = disk.New(cfg.StorePath)
		if err != nil {
			return err
		}
	} else {
		blobs = inmemory.New()
	}
	defer blobs.Close()

	s, err := server.New(cfg, blobs)
	if err != nil {
		return err
	}
	if err := bind.Register(s); err != nil {
		return err
	}
	defer bind.Remove(server.ModuleName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}
