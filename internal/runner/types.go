// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package runner spawns provider CLI processes for live conversation
// turns, decodes their output into stream events, and fans the events
// out to subscribers.
package runner

import (
	"errors"
	"time"

	"github.com/wingedpig/conduit/internal/provider"
)

// Status is the lifecycle state of one request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// SessionKey identifies the conversation a request extends. A request
// without a known session (first turn) uses its own request id, so it
// never conflicts with anything.
type SessionKey struct {
	ProjectID string
	SessionID string
}

// Request is the public record of one CLI invocation.
type Request struct {
	ID        string            `json:"request_id"`
	Provider  provider.Provider `json:"provider"`
	ProjectID string            `json:"project_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Prompt    string            `json:"prompt"`
	Status    Status            `json:"status"`
	PID       int               `json:"pid,omitempty"`
	ExitCode  int               `json:"exit_code"`
	Error     string            `json:"error,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at,omitempty"`
}

var (
	// ErrConflict means the target session already has a running
	// request. One CLI process per conversation at a time.
	ErrConflict = errors.New("session already has an active request")

	// ErrUnknownRequest means the request id was never registered or
	// has already been pruned.
	ErrUnknownRequest = errors.New("unknown request")
)

// SpawnError wraps a process start failure so callers can distinguish
// it from stream-time failures.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return "spawn " + e.Binary + ": " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }
