// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"encoding/json"
	"time"
)

// Project represents a discovered project directory that holds conversations
// for one provider.
type Project struct {
	// ID uniquely identifies the project (e.g., "claude_-home-user-proj").
	ID string `json:"id"`

	// Name is the display name, usually the last path component.
	Name string `json:"name"`

	// Path is the decoded filesystem path of the project, when known.
	Path string `json:"path"`

	// Provider is the CLI that produced the project ("claude", "opencode", "gemini").
	Provider string `json:"provider"`

	// SessionCount is the number of sessions discovered in the project.
	SessionCount int `json:"session_count"`

	// LastModified is when any session in the project last changed.
	LastModified time.Time `json:"last_modified"`

	// CreatedAt is the earliest session start time in the project.
	CreatedAt time.Time `json:"created_at"`

	// EncodedName is the provider's on-disk directory name for the project.
	EncodedName string `json:"encoded_name"`
}

// Session represents one conversation in the index.
type Session struct {
	// SessionID uniquely identifies the session within its provider.
	SessionID string `json:"session_id"`

	// ProjectID is the project the session belongs to.
	ProjectID string `json:"project_id"`

	// Provider is the CLI that produced the session.
	Provider string `json:"provider"`

	// Preview is a short excerpt of the latest assistant message.
	Preview string `json:"preview"`

	// MessageCount is the number of messages in the transcript.
	MessageCount int `json:"message_count"`

	// StartTime is when the conversation started.
	StartTime time.Time `json:"start_time"`

	// LastTime is when the conversation last changed.
	LastTime time.Time `json:"last_time"`

	// Bucket is a human recency bucket: "Today", "Yesterday", "This Week",
	// "This Month", or "Older".
	Bucket string `json:"bucket"`

	// IsArchived indicates the session is hidden from default listings.
	IsArchived bool `json:"is_archived"`

	// ArchivedAt is when the session was archived, if it is.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// Snippet is the matched excerpt on search results, empty
	// elsewhere.
	Snippet string `json:"snippet,omitempty"`
}

// Conversation is a fully parsed historical transcript.
type Conversation struct {
	SessionID   string    `json:"session_id"`
	ProjectID   string    `json:"project_id"`
	ProjectPath string    `json:"project_path"`
	Provider    string    `json:"provider"`
	Messages    []Message `json:"messages"`

	// Warnings lists transcript lines that could not be parsed. The
	// conversation is still usable; these are informational.
	Warnings  []Warning `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one message in a conversation.
type Message struct {
	Role      string         `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp time.Time      `json:"timestamp"`

	// Raw is the original transcript record, preserved verbatim.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// ContentBlock is one typed block of message content.
type ContentBlock struct {
	// Type is "text", "tool_use", "tool_result", "thinking", or "image".
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

// Warning records a transcript line that failed to parse.
type Warning struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// Turn is one prompt or response recorded by the server for a session it ran.
type Turn struct {
	ID        uint      `json:"id"`
	RequestID string    `json:"request_id"`
	SessionID string    `json:"session_id"`
	ProjectID string    `json:"project_id"`
	Provider  string    `json:"provider"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is a request to run one chat turn through a provider CLI.
type ChatRequest struct {
	// Provider selects the CLI: "claude", "opencode", or "gemini".
	Provider string `json:"provider"`

	// Prompt is the user's message. Required.
	Prompt string `json:"prompt"`

	// ProjectID scopes the conversation to a project, when known.
	ProjectID string `json:"project_id,omitempty"`

	// SessionID resumes an existing conversation. Empty starts a new one.
	SessionID string `json:"session_id,omitempty"`

	// WorkDir overrides the working directory for the spawned CLI.
	WorkDir string `json:"work_dir,omitempty"`

	// Attachments are files to include with the prompt. Not all providers
	// support attachments.
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file sent along with a prompt.
type Attachment struct {
	Name string `json:"name"`

	// Data is the base64-encoded file content.
	Data string `json:"data"`
}

// Request is the status of a submitted chat request.
type Request struct {
	// ID uniquely identifies the request.
	ID string `json:"request_id"`

	// Provider is the CLI handling the request.
	Provider string `json:"provider"`

	ProjectID string `json:"project_id,omitempty"`

	// SessionID is the conversation the request belongs to. For a new
	// conversation it is filled in once the provider reports it.
	SessionID string `json:"session_id,omitempty"`

	Prompt string `json:"prompt"`

	// Status is the request state. See RequestStatus* constants.
	Status string `json:"status"`

	// PID is the provider process ID while the request is running.
	PID int `json:"pid,omitempty"`

	// ExitCode is the provider process exit code once the request ends.
	ExitCode int `json:"exit_code"`

	// Error describes why the request failed, when it did.
	Error string `json:"error,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// RequestStatus constants define the possible states of a chat request.
const (
	// RequestStatusPending indicates the request was accepted but the
	// process has not started yet.
	RequestStatusPending = "pending"

	// RequestStatusRunning indicates the provider process is running.
	RequestStatusRunning = "running"

	// RequestStatusCompleted indicates the process exited successfully.
	RequestStatusCompleted = "completed"

	// RequestStatusFailed indicates the process exited with an error.
	RequestStatusFailed = "failed"

	// RequestStatusAborted indicates the request was aborted by a client.
	RequestStatusAborted = "aborted"
)

// ProviderInfo describes a provider CLI's availability on the server.
type ProviderInfo struct {
	Provider string `json:"provider"`

	// Path is the resolved binary path, when found.
	Path string `json:"path,omitempty"`

	// Available indicates the binary was found on the server.
	Available bool `json:"available"`
}

// Event represents an entry in the event log.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`

	// Version is the event schema version.
	Version string `json:"version"`

	// Type is the event type (e.g., "request.started", "transcript.changed").
	Type string `json:"type"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Session is the session the event relates to, when any.
	Session string `json:"session"`

	// Payload contains event-specific data.
	Payload map[string]interface{} `json:"payload"`
}
