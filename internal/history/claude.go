// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wingedpig/conduit/internal/provider"
)

// ClaudeProjectsDir returns the Claude CLI storage root. The CLI keeps
// one directory per project under ~/.claude/projects/, named by an
// encoding of the project path.
func ClaudeProjectsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".claude", "projects"), nil
}

// EncodeProjectPath converts a project path to Claude CLI's directory
// name encoding: / and . both become -.
// e.g. /Users/alice/src/groups.io -> -Users-alice-src-groups-io
func EncodeProjectPath(projectPath string) string {
	return strings.NewReplacer("/", "-", ".", "-").Replace(projectPath)
}

// DecodeProjectPath reverses the encoding on a best-effort basis. The
// encoding is lossy (dots and slashes collapse to the same byte), so
// the result is a display path, not a guaranteed filesystem path.
func DecodeProjectPath(encoded string) string {
	return strings.ReplaceAll(encoded, "-", "/")
}

// claudeEntry is one line in a Claude CLI session JSONL file.
type claudeEntry struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	UUID      string         `json:"uuid"`
	Message   *claudeMessage `json:"message"`
	Timestamp string         `json:"timestamp"`
	CWD       string         `json:"cwd"`
}

type claudeMessage struct {
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role"`
	Content claudeContent `json:"content"`
}

// claudeContent is either a plain string (user turns) or an array of
// content blocks (assistant turns).
type claudeContent struct {
	Text   string
	Blocks []ContentBlock
}

func (c *claudeContent) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	return json.Unmarshal(data, &c.Blocks)
}

func (c claudeContent) blocks() []ContentBlock {
	if c.Text != "" {
		return []ContentBlock{{Type: "text", Text: c.Text}}
	}
	out := make([]ContentBlock, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		switch b.Type {
		case "text", "tool_use", "tool_result", "image":
			out = append(out, b)
		}
	}
	return out
}

// ParseClaudeFile parses one Claude session JSONL file into a full
// conversation. Lines that fail to parse are skipped with a recorded
// warning; the file as a whole only fails when it cannot be read.
func ParseClaudeFile(path string) (*Conversation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &MalformedError{Path: path, Err: err}
	}
	defer f.Close()

	conv := &Conversation{
		SessionID: strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Provider:  provider.Claude,
	}
	encoded := filepath.Base(filepath.Dir(path))
	conv.ProjectID = "claude_" + encoded
	conv.ProjectPath = DecodeProjectPath(encoded)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var entry claudeEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			conv.Warnings = append(conv.Warnings, Warning{Line: lineNum, Err: err.Error()})
			continue
		}

		if entry.SessionID != "" {
			conv.SessionID = entry.SessionID
		}
		if entry.CWD != "" {
			conv.ProjectPath = entry.CWD
		}

		ts := parseTimestamp(entry.Timestamp)
		if !ts.IsZero() {
			if conv.CreatedAt.IsZero() || ts.Before(conv.CreatedAt) {
				conv.CreatedAt = ts
			}
			conv.UpdatedAt = maxTime(conv.UpdatedAt, ts)
		}

		if entry.Message == nil {
			continue
		}
		role := entry.Message.Role
		if role != "user" && role != "assistant" {
			continue
		}
		blocks := entry.Message.Content.blocks()
		if len(blocks) == 0 {
			continue
		}

		conv.Messages = append(conv.Messages, Message{
			Role:      role,
			Content:   blocks,
			Timestamp: ts,
			Raw:       json.RawMessage(append([]byte(nil), line...)),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, &MalformedError{Path: path, Line: lineNum, Err: err}
	}

	fillTimesFromFile(conv, path)
	return conv, nil
}

// ParseClaudeSummary scans one JSONL file for listing metadata without
// building full messages.
func ParseClaudeSummary(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, &MalformedError{Path: path, Err: err}
	}
	defer f.Close()

	sum := Summary{
		SessionID:  strings.TrimSuffix(filepath.Base(path), ".jsonl"),
		Provider:   provider.Claude,
		FilePath:   path,
		messageIDs: make(map[string]struct{}),
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var entry claudeEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		sum.MessageCount++

		if ts := parseTimestamp(entry.Timestamp); !ts.IsZero() {
			if sum.StartTime.IsZero() || ts.Before(sum.StartTime) {
				sum.StartTime = ts
			}
			sum.LastTime = maxTime(sum.LastTime, ts)
		}

		if entry.Message != nil && entry.Message.Role == "assistant" {
			if entry.Message.ID != "" {
				sum.messageIDs[entry.Message.ID] = struct{}{}
			}
			for _, b := range entry.Message.Content.blocks() {
				if b.Type == "text" && b.Text != "" {
					sum.Preview = preview(b.Text)
					break
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return Summary{}, &MalformedError{Path: path, Err: err}
	}

	applyMtimeFallback(&sum, path)
	return sum, nil
}

// ListClaudeSummaries parses every .jsonl session in one project dir.
// Per-file failures are logged by the caller via the returned warnings,
// not fatal to the listing.
func ListClaudeSummaries(projectDir string) ([]Summary, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	var sums []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		sum, err := ParseClaudeSummary(filepath.Join(projectDir, entry.Name()))
		if err != nil {
			continue
		}
		sums = append(sums, sum)
	}
	return sums, nil
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// applyMtimeFallback uses the file's mtime when internal timestamps are
// missing, and bumps LastTime to the mtime when the file is newer than
// its newest internal timestamp (resumed sessions keep old timestamps
// but are recently written).
func applyMtimeFallback(sum *Summary, path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	mtime := fi.ModTime().UTC()
	if sum.StartTime.IsZero() {
		sum.StartTime = mtime
	}
	sum.LastTime = maxTime(sum.LastTime, mtime)
}

func fillTimesFromFile(conv *Conversation, path string) {
	fi, err := os.Stat(path)
	if err != nil {
		return
	}
	mtime := fi.ModTime().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = mtime
	}
	conv.UpdatedAt = maxTime(conv.UpdatedAt, mtime)
}
