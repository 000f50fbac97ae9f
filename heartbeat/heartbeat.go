// Copyright 2025 The Canopy Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heartbeat manages the session heartbeat: a periodic tick that
// advances the epoch counter the rest of the system stamps its work with.
// The epoch getter obtains the most recently generated epoch; a callback,
// if any, observes each new epoch as it is generated.
package heartbeat

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"canopy.io/canopy"
	"canopy.io/errors"
)

// Heart rate bounds.
const (
	MinRate = 100 * time.Millisecond
	MaxRate = 30 * time.Second
)

// DefaultRate is the heart rate used unless SetRate is called.
const DefaultRate = 2 * time.Second

// Heartbeat generates epochs at a fixed rate.
type Heartbeat struct {
	mu      sync.Mutex
	rate    time.Duration
	epoch   canopy.Epoch
	cb      func(canopy.Epoch)
	ticker  *time.Ticker
	done    chan struct{}
	stopped sync.WaitGroup
}

// New creates a stopped heartbeat at the default rate.
func New() *Heartbeat {
	return &Heartbeat{rate: DefaultRate}
}

// SetRate sets the heart rate. It is an error to set a rate outside
// [MinRate, MaxRate], or to change the rate while started.
func (h *Heartbeat) SetRate(rate time.Duration) error {
	const op = "heartbeat.SetRate"
	if rate < MinRate || rate > MaxRate {
		return errors.E(op, errors.Invalid, errors.Str("rate out of range"))
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ticker != nil {
		return errors.E(op, errors.Invalid, errors.Str("heartbeat is running"))
	}
	h.rate = rate
	return nil
}

// SetRateString sets the heart rate from a string: either a duration with
// an "s" or "ms" unit suffix, or a bare number of seconds.
func (h *Heartbeat) SetRateString(s string) error {
	const op = "heartbeat.SetRateString"
	var rate time.Duration
	switch {
	case strings.HasSuffix(s, "ms") || strings.HasSuffix(s, "s"):
		d, err := time.ParseDuration(s)
		if err != nil {
			return errors.E(op, errors.Invalid, err)
		}
		rate = d
	default:
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.E(op, errors.Invalid, err)
		}
		rate = time.Duration(secs * float64(time.Second))
	}
	return h.SetRate(rate)
}

// Rate returns the heart rate.
func (h *Heartbeat) Rate() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// SetCallback registers cb to be called with each new epoch, from the
// heartbeat's own goroutine. A nil cb removes the callback.
func (h *Heartbeat) SetCallback(cb func(canopy.Epoch)) {
	h.mu.Lock()
	h.cb = cb
	h.mu.Unlock()
}

// Epoch returns the most recently generated epoch.
func (h *Heartbeat) Epoch() canopy.Epoch {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epoch
}

// SetEpoch sets the epoch. It is used to resume a session at an epoch
// learned elsewhere; epochs then continue from there.
func (h *Heartbeat) SetEpoch(epoch canopy.Epoch) {
	h.mu.Lock()
	h.epoch = epoch
	h.mu.Unlock()
}

// Start begins generating epochs. It is an error to start a heartbeat
// twice without stopping it in between.
func (h *Heartbeat) Start() error {
	const op = "heartbeat.Start"
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ticker != nil {
		return errors.E(op, errors.Invalid, errors.Str("already started"))
	}
	h.ticker = time.NewTicker(h.rate)
	h.done = make(chan struct{})
	h.stopped.Add(1)
	go h.run(h.ticker, h.done)
	return nil
}

func (h *Heartbeat) run(ticker *time.Ticker, done chan struct{}) {
	defer h.stopped.Done()
	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			h.epoch++
			epoch, cb := h.epoch, h.cb
			h.mu.Unlock()
			if cb != nil {
				cb(epoch)
			}
		case <-done:
			return
		}
	}
}

// Stop stops generating epochs and waits for the generator to exit.
// Stopping a stopped heartbeat is a no-op.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if h.ticker == nil {
		h.mu.Unlock()
		return
	}
	h.ticker.Stop()
	close(h.done)
	h.ticker = nil
	h.done = nil
	h.mu.Unlock()
	h.stopped.Wait()
}
