// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"sync"
	"time"
)

// entry is the registry's internal record of one request.
type entry struct {
	mu        sync.Mutex
	req       Request
	key       SessionKey
	bcast     *broadcaster
	proc      *proc
	cancelled bool
}

func (e *entry) snapshot() Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req
}

// registry tracks in-flight requests and enforces one active request
// per session.
type registry struct {
	mu      sync.Mutex
	entries map[string]*entry     // request id -> entry
	active  map[SessionKey]string // session -> active request id
}

func newRegistry() *registry {
	return &registry{
		entries: make(map[string]*entry),
		active:  make(map[SessionKey]string),
	}
}

// register claims the session for the request. Returns ErrConflict if
// the session already has a non-terminal request.
func (r *registry) register(e *entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.active[e.key]; ok {
		if existing, ok := r.entries[id]; ok && !existing.snapshot().Status.Terminal() {
			return ErrConflict
		}
	}
	r.entries[e.req.ID] = e
	r.active[e.key] = e.req.ID
	return nil
}

// lookup returns the entry for a request id.
func (r *registry) lookup(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// release frees the session claim once the request is terminal. The
// entry itself stays so late subscribers and status queries still
// resolve.
func (r *registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active[e.key] == e.req.ID {
		delete(r.active, e.key)
	}
}

// remove deletes a registration entirely. Used to roll back a failed
// spawn.
func (r *registry) remove(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, e.req.ID)
	if r.active[e.key] == e.req.ID {
		delete(r.active, e.key)
	}
}

// running returns snapshots of all non-terminal requests.
func (r *registry) running() []Request {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	var out []Request
	for _, e := range entries {
		if req := e.snapshot(); !req.Status.Terminal() {
			out = append(out, req)
		}
	}
	return out
}

// all returns snapshots of every known request.
func (r *registry) all() []Request {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	out := make([]Request, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

// prune drops terminal entries older than keep.
func (r *registry) prune(keep time.Duration, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.entries {
		req := e.snapshot()
		if req.Status.Terminal() && !req.EndedAt.IsZero() && now.Sub(req.EndedAt) > keep {
			delete(r.entries, id)
			n++
		}
	}
	return n
}
