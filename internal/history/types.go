// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package history reads the on-disk transcripts written by the provider
// CLIs and normalizes them into a shared message shape.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/wingedpig/conduit/internal/provider"
)

// ContentBlock mirrors the provider content block types.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// Message is one normalized transcript entry.
type Message struct {
	Role      string         `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	// Raw preserves the original on-disk line so provider fields the
	// normalized shape does not model survive a round trip.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// Warning records a line-scoped parse problem that did not abort the
// parse. A corrupt trailing line from an interrupted write must not
// hide the rest of the conversation.
type Warning struct {
	Line int    `json:"line"`
	Err  string `json:"error"`
}

// Conversation is a fully parsed transcript.
type Conversation struct {
	SessionID   string            `json:"session_id"`
	ProjectID   string            `json:"project_id"`
	ProjectPath string            `json:"project_path"`
	Provider    provider.Provider `json:"provider"`
	Messages    []Message         `json:"messages"`
	Warnings    []Warning         `json:"warnings,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Summary is the lightweight listing form of one transcript file.
type Summary struct {
	SessionID    string            `json:"session_id"`
	Provider     provider.Provider `json:"provider"`
	FilePath     string            `json:"file_path"`
	StartTime    time.Time         `json:"start_time"`
	LastTime     time.Time         `json:"last_time"`
	MessageCount int               `json:"message_count"`
	Preview      string            `json:"preview"`

	// messageIDs holds the assistant message ids seen in the file.
	// Continued Claude sessions produce files whose id sets are strict
	// supersets of the earlier snapshots; grouping uses this.
	messageIDs map[string]struct{}
}

// Project is one discovered project directory.
type Project struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Path         string            `json:"path"`
	Provider     provider.Provider `json:"provider"`
	SessionCount int               `json:"session_count"`
	LastModified time.Time         `json:"last_modified"`
	CreatedAt    time.Time         `json:"created_at"`
	EncodedName  string            `json:"encoded_name"`
}

// MalformedError reports a transcript that could not be parsed at all.
// Line is 1-based and zero when the failure is not line-scoped.
type MalformedError struct {
	Path string
	Line int
	Err  error
}

func (e *MalformedError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed transcript %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("malformed transcript %s: %v", e.Path, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

const previewLen = 100

// preview truncates s to the listing preview length.
func preview(s string) string {
	runes := []rune(s)
	if len(runes) > previewLen {
		return string(runes[:previewLen])
	}
	return s
}

// maxTime returns the later of the two times, treating zero as absent.
func maxTime(a, b time.Time) time.Time {
	if a.IsZero() {
		return b
	}
	if b.IsZero() || a.After(b) {
		return a
	}
	return b
}
