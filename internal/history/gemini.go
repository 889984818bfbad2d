// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wingedpig/conduit/internal/provider"
)

// Gemini keeps one JSON document per session under
// ~/.gemini/tmp/<project hash>/chats/session-*.json.

// GeminiTmpDir returns the Gemini CLI storage root.
func GeminiTmpDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".gemini", "tmp"), nil
}

type geminiSession struct {
	SessionID   string          `json:"sessionId"`
	ProjectHash string          `json:"projectHash"`
	StartTime   string          `json:"startTime"`
	LastUpdated string          `json:"lastUpdated"`
	Messages    []geminiMessage `json:"messages"`
}

type geminiMessage struct {
	Role      string `json:"role"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func (m geminiMessage) role() string {
	if m.Role != "" {
		return m.Role
	}
	switch m.Type {
	case "user":
		return "user"
	case "gemini", "assistant":
		return "assistant"
	}
	return ""
}

// ParseGeminiFile parses one session-*.json document into a full
// conversation.
func ParseGeminiFile(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}

	var ses geminiSession
	if err := json.Unmarshal(data, &ses); err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}

	conv := &Conversation{
		SessionID: geminiSessionID(path, ses),
		Provider:  provider.Gemini,
		CreatedAt: parseTimestamp(ses.StartTime),
		UpdatedAt: parseTimestamp(ses.LastUpdated),
	}
	if hash := geminiProjectHash(path, ses); hash != "" {
		conv.ProjectID = "gemini_" + hash
	}

	for i, msg := range ses.Messages {
		role := msg.role()
		if role == "" || msg.Content == "" {
			if role == "" && msg.Content != "" {
				conv.Warnings = append(conv.Warnings, Warning{
					Line: i + 1,
					Err:  fmt.Sprintf("unknown message type %q", msg.Type),
				})
			}
			continue
		}
		ts := parseTimestamp(msg.Timestamp)
		if !ts.IsZero() {
			if conv.CreatedAt.IsZero() || ts.Before(conv.CreatedAt) {
				conv.CreatedAt = ts
			}
			conv.UpdatedAt = maxTime(conv.UpdatedAt, ts)
		}
		raw, _ := json.Marshal(msg)
		conv.Messages = append(conv.Messages, Message{
			Role:      role,
			Content:   []ContentBlock{{Type: "text", Text: msg.Content}},
			Timestamp: ts,
			Raw:       raw,
		})
	}

	fillTimesFromFile(conv, path)
	return conv, nil
}

// ListGeminiSummaries parses every session-*.json in one project's
// chats directory. A project dir without a chats subdir has no
// sessions.
func ListGeminiSummaries(projectDir string) ([]Summary, error) {
	chatsDir := filepath.Join(projectDir, "chats")
	entries, err := os.ReadDir(chatsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chats dir: %w", err)
	}

	var sums []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(chatsDir, name)

		sum := Summary{
			SessionID:  strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".json"),
			Provider:   provider.Gemini,
			FilePath:   path,
			Preview:    "Gemini session",
			messageIDs: make(map[string]struct{}),
		}

		if data, err := os.ReadFile(path); err == nil {
			var ses geminiSession
			if json.Unmarshal(data, &ses) == nil {
				sum.MessageCount = len(ses.Messages)
				sum.StartTime = parseTimestamp(ses.StartTime)
				sum.LastTime = parseTimestamp(ses.LastUpdated)
				if n := len(ses.Messages); n > 0 && ses.Messages[n-1].Content != "" {
					sum.Preview = preview(ses.Messages[n-1].Content)
				}
			}
		}
		applyMtimeFallback(&sum, path)
		sums = append(sums, sum)
	}
	return sums, nil
}

func geminiSessionID(path string, ses geminiSession) string {
	if ses.SessionID != "" {
		return ses.SessionID
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".json")
}

func geminiProjectHash(path string, ses geminiSession) string {
	if ses.ProjectHash != "" {
		return ses.ProjectHash
	}
	// .../tmp/<hash>/chats/session-*.json
	return filepath.Base(filepath.Dir(filepath.Dir(path)))
}
