// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/wingedpig/conduit/internal/provider"
)

// OpenCode splits a session across three trees under its storage root:
//
//	storage/session/<dir>/ses_<id>.json   session metadata
//	storage/message/ses_<id>/msg_*.json   per-message metadata
//	storage/part/msg_<id>/prt_*.json      assistant content parts

// OpenCodeStorageDir returns the OpenCode CLI storage root.
func OpenCodeStorageDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".local", "share", "opencode", "storage"), nil
}

type opencodeSession struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	Time  opencodeTime `json:"time"`
}

type opencodeMessage struct {
	ID      string       `json:"id"`
	Role    string       `json:"role"`
	Time    opencodeTime `json:"time"`
	Summary *struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"summary"`
}

// opencodeTime carries Unix-millisecond timestamps.
type opencodeTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

func (t opencodeTime) createdAt() time.Time { return millisTime(t.Created) }
func (t opencodeTime) updatedAt() time.Time { return millisTime(t.Updated) }

func millisTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ListOpenCodeSummaries parses every ses_*.json in one session dir
// under storageBase/session/.
func ListOpenCodeSummaries(storageBase, sessionDir string) ([]Summary, error) {
	entries, err := os.ReadDir(sessionDir)
	if err != nil {
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var sums []Summary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "ses_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(sessionDir, name)
		sessionID := strings.TrimSuffix(name, ".json")

		sum := Summary{
			SessionID:  sessionID,
			Provider:   provider.OpenCode,
			FilePath:   path,
			messageIDs: make(map[string]struct{}),
		}
		sum.MessageCount = countOpenCodeMessages(storageBase, sessionID)

		if data, err := os.ReadFile(path); err == nil {
			var ses opencodeSession
			if json.Unmarshal(data, &ses) == nil {
				sum.StartTime = ses.Time.createdAt()
				sum.LastTime = ses.Time.updatedAt()
				if ses.Title != "" {
					sum.Preview = preview(ses.Title)
				}
			}
		}
		if sum.Preview == "" {
			sum.Preview = fmt.Sprintf("OpenCode session (%d messages)", sum.MessageCount)
		}
		applyMtimeFallback(&sum, path)
		sums = append(sums, sum)
	}
	return sums, nil
}

func countOpenCodeMessages(storageBase, sessionID string) int {
	entries, err := os.ReadDir(filepath.Join(storageBase, "message", sessionID))
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "msg_") && strings.HasSuffix(name, ".json") {
			n++
		}
	}
	return n
}

// LoadOpenCodeConversation assembles a conversation from the message
// and part trees. A missing message dir is an empty session, not an
// error. Unreadable individual files are skipped with a warning.
func LoadOpenCodeConversation(storageBase, sessionID string) (*Conversation, error) {
	conv := &Conversation{
		SessionID: sessionID,
		Provider:  provider.OpenCode,
	}

	messageDir := filepath.Join(storageBase, "message", sessionID)
	entries, err := os.ReadDir(messageDir)
	if err != nil {
		if os.IsNotExist(err) {
			return conv, nil
		}
		return nil, fmt.Errorf("read message dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "msg_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	// msg_* ids are lexically ordered by creation.
	sort.Strings(names)

	partsBase := filepath.Join(storageBase, "part")
	for i, name := range names {
		data, err := os.ReadFile(filepath.Join(messageDir, name))
		if err != nil {
			conv.Warnings = append(conv.Warnings, Warning{Line: i + 1, Err: err.Error()})
			continue
		}
		var msg opencodeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conv.Warnings = append(conv.Warnings, Warning{Line: i + 1, Err: err.Error()})
			continue
		}

		text := opencodeMessageText(partsBase, msg)
		if text == "" {
			continue
		}
		role := msg.Role
		if role == "" {
			role = "assistant"
		}

		ts := msg.Time.createdAt()
		if !ts.IsZero() {
			if conv.CreatedAt.IsZero() || ts.Before(conv.CreatedAt) {
				conv.CreatedAt = ts
			}
			conv.UpdatedAt = maxTime(conv.UpdatedAt, ts)
		}

		conv.Messages = append(conv.Messages, Message{
			Role:      role,
			Content:   []ContentBlock{{Type: "text", Text: text}},
			Timestamp: ts,
			Raw:       json.RawMessage(data),
		})
	}
	return conv, nil
}

// opencodeMessageText resolves the message body. User turns carry their
// text inline; assistant turns store it in the part tree.
func opencodeMessageText(partsBase string, msg opencodeMessage) string {
	if msg.Role == "user" {
		if msg.Summary != nil {
			if msg.Summary.Body != "" {
				return msg.Summary.Body
			}
			return msg.Summary.Title
		}
		return ""
	}
	if msg.ID != "" {
		if text := loadOpenCodeParts(partsBase, msg.ID); text != "" {
			return text
		}
	}
	if msg.Summary != nil {
		return msg.Summary.Title
	}
	return ""
}

// loadOpenCodeParts concatenates the text and reasoning parts of one
// assistant message. Tool and step parts carry no readable text.
func loadOpenCodeParts(partsBase, messageID string) string {
	entries, err := os.ReadDir(filepath.Join(partsBase, messageID))
	if err != nil {
		return ""
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "prt_") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var texts []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(partsBase, messageID, name))
		if err != nil {
			continue
		}
		var part struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(data, &part); err != nil {
			continue
		}
		if (part.Type == "text" || part.Type == "reasoning") && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
