// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package watcher

import (
	"sync"
	"time"
)

const defaultQuiet = 100 * time.Millisecond

// Debouncer coalesces bursts of triggers per key into a single firing
// after a quiet period. The provider CLIs write transcripts a line at
// a time; without coalescing every append would force a rescan.
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	pending map[string]*time.Timer
}

// NewDebouncer creates a debouncer with the given quiet period. A
// non-positive period falls back to a sane default.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = defaultQuiet
	}
	return &Debouncer{
		quiet:   quiet,
		pending: make(map[string]*time.Timer),
	}
}

// Debounce arms fn to run once the key has been quiet for the full
// period. Re-triggering the same key resets the clock and replaces the
// callback, so the last caller's fn is the one that runs.
func (d *Debouncer) Debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if timer, ok := d.pending[key]; ok {
		timer.Stop()
	}
	d.pending[key] = time.AfterFunc(d.quiet, func() {
		d.mu.Lock()
		delete(d.pending, key)
		d.mu.Unlock()
		fn()
	})
}

// Pending reports how many keys are armed.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels everything armed. Callbacks that have not fired yet
// never will.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, timer := range d.pending {
		timer.Stop()
		delete(d.pending, key)
	}
}
