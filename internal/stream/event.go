// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package stream turns the raw output of a provider CLI process into
// discrete events as bytes arrive.
package stream

import "encoding/json"

// EventType identifies one kind of stream event.
type EventType string

const (
	// EventText is an incremental piece of assistant text.
	EventText EventType = "text_delta"
	// EventToolCall marks the start of a tool invocation.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries the result of a tool invocation.
	EventToolResult EventType = "tool_result"
	// EventImage reports an image attached to the response.
	EventImage EventType = "image"
	// EventError is an in-band decode or provider error. It does not
	// terminate the stream.
	EventError EventType = "error"
	// EventResult carries the provider's own end-of-turn summary
	// (Claude's result line). It is not terminal; the runner appends
	// the terminal event after the process exits.
	EventResult EventType = "result"
	// EventDone is the terminal marker for a completed request.
	EventDone EventType = "done"
	// EventFailed is the terminal marker for a failed request.
	EventFailed EventType = "failed"
	// EventAborted is the terminal marker for a cancelled request.
	EventAborted EventType = "aborted"
	// EventRunning is synthesized for subscribers that join after the
	// stream has started. It is never produced by a decoder.
	EventRunning EventType = "running"
	// EventSystem carries provider housekeeping (session id, tool
	// inventory) that viewers may ignore.
	EventSystem EventType = "system"
)

// Terminal reports whether the event type ends a subscription.
func (t EventType) Terminal() bool {
	switch t {
	case EventDone, EventFailed, EventAborted:
		return true
	}
	return false
}

// Event is one unit of progress from a running CLI process.
type Event struct {
	Type      EventType       `json:"type"`
	Text      string          `json:"text,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	Content   string          `json:"content,omitempty"`
	Path      string          `json:"path,omitempty"`
	Err       string          `json:"error,omitempty"`
	// SessionID is set when the provider reports the session it is
	// writing to (e.g. Claude's system init line).
	SessionID string `json:"session_id,omitempty"`
	// Raw is the original provider output the event was decoded from.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// LineDecoder interprets one complete output line for a specific provider.
// Implementations live in the provider package. Decoders never produce
// terminal-typed events; the runner emits the single terminal event
// itself once the process has exited.
type LineDecoder interface {
	// DecodeLine converts a complete line into zero or more events.
	// A non-nil error marks the line as malformed; the caller converts
	// it into an in-band error event and continues decoding.
	DecodeLine(line []byte) ([]Event, error)
}
