// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"sync"
	"time"
)

// History retains recent events for late consumers, bounded by both
// count and age. Events arrive in publish order, which is also
// timestamp order for a single bus, so Query returns slices of the
// retained window without re-sorting.
type History struct {
	mu     sync.RWMutex
	buf    []Event
	maxLen int
	maxAge time.Duration
}

// NewHistory creates a history window. Non-positive bounds fall back
// to 10000 events and one hour.
func NewHistory(maxLen int, maxAge time.Duration) *History {
	if maxLen <= 0 {
		maxLen = 10000
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &History{maxLen: maxLen, maxAge: maxAge}
}

// Append retains one event, evicting the oldest past the count bound.
func (h *History) Append(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf = append(h.buf, ev)
	if len(h.buf) > h.maxLen {
		h.buf = h.buf[len(h.buf)-h.maxLen:]
	}
}

// Query returns retained events matching the filter, oldest first.
// With a limit, the newest matches win.
func (h *History) Query(filter EventFilter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Event, 0)
	for _, ev := range h.buf {
		if matchesFilter(ev, filter) {
			out = append(out, ev)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out
}

func matchesFilter(ev Event, filter EventFilter) bool {
	if len(filter.Types) > 0 {
		matched := false
		for _, pattern := range filter.Types {
			if MatchType(ev.Type, pattern) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.Session != "" && ev.Session != filter.Session {
		return false
	}
	if !filter.Since.IsZero() && ev.Timestamp.Before(filter.Since) {
		return false
	}
	if !filter.Until.IsZero() && ev.Timestamp.After(filter.Until) {
		return false
	}
	return true
}

// Prune drops events older than the age bound.
func (h *History) Prune() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.maxAge)
	keep := h.buf[:0]
	for _, ev := range h.buf {
		if ev.Timestamp.After(cutoff) {
			keep = append(keep, ev)
		}
	}
	h.buf = keep
}

// Close drops the retained window.
func (h *History) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buf = nil
}
