// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wingedpig/conduit/internal/stream"
)

// claudeAdapter drives the Claude CLI in non-interactive stream-json
// mode. Output is NDJSON: one wrapper object per line with a type tag.
type claudeAdapter struct {
	binary string
}

func (a *claudeAdapter) Provider() Provider { return Claude }

func (a *claudeAdapter) BuildInvocation(opts InvocationOptions) (*ProcessSpec, error) {
	prompt := opts.Prompt
	var temps []string

	// Claude has no attachment flag; staged image paths are referenced
	// in the prompt and read by the model's own file tools.
	if len(opts.Attachments) > 0 {
		paths, err := stageAttachments(opts.Attachments)
		if err != nil {
			return nil, err
		}
		temps = paths

		refs := make([]string, 0, len(paths))
		for _, p := range paths {
			refs = append(refs, fmt.Sprintf("[Image: %s]", p))
		}
		if strings.TrimSpace(prompt) == "" {
			prompt = "Describe this image"
		}
		prompt = strings.Join(refs, "\n") + "\n\n" + prompt
	}

	args := []string{
		"--output-format", "stream-json",
		"--verbose",
		"-p", prompt,
	}
	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}

	return &ProcessSpec{
		Binary:    a.binary,
		Args:      args,
		Dir:       opts.WorkDir,
		TempFiles: temps,
	}, nil
}

// claudeLine is one NDJSON line from claude --output-format stream-json.
type claudeLine struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
}

// claudeBlock mirrors the content block shapes inside a message.
type claudeBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Source    *struct {
		Path string `json:"path,omitempty"`
	} `json:"source,omitempty"`
}

func (a *claudeAdapter) DecodeLine(line []byte) ([]stream.Event, error) {
	var ev claudeLine
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, fmt.Errorf("parse stream-json line: %w", err)
	}

	raw := json.RawMessage(append([]byte(nil), line...))

	switch ev.Type {
	case "system":
		return []stream.Event{{
			Type:      stream.EventSystem,
			SessionID: ev.SessionID,
			Raw:       raw,
		}}, nil

	case "assistant", "user":
		if ev.Message == nil {
			return nil, nil
		}
		var msg struct {
			Content []claudeBlock `json:"content"`
		}
		if err := json.Unmarshal(ev.Message, &msg); err != nil {
			return nil, fmt.Errorf("parse message content: %w", err)
		}
		var events []stream.Event
		for _, block := range msg.Content {
			switch block.Type {
			case "text":
				if block.Text == "" {
					continue
				}
				events = append(events, stream.Event{
					Type:      stream.EventText,
					Text:      block.Text,
					SessionID: ev.SessionID,
					Raw:       raw,
				})
			case "tool_use":
				events = append(events, stream.Event{
					Type:      stream.EventToolCall,
					ToolName:  block.Name,
					ToolUseID: block.ID,
					Input:     block.Input,
					Raw:       raw,
				})
			case "tool_result":
				events = append(events, stream.Event{
					Type:      stream.EventToolResult,
					ToolUseID: block.ToolUseID,
					Content:   flattenToolResult(block.Content),
					Raw:       raw,
				})
			case "image":
				path := ""
				if block.Source != nil {
					path = block.Source.Path
				}
				events = append(events, stream.Event{
					Type: stream.EventImage,
					Path: path,
					Raw:  raw,
				})
			}
		}
		return events, nil

	case "result":
		var events []stream.Event
		if ev.IsError {
			msg := strings.Join(ev.Errors, "; ")
			if msg == "" {
				msg = ev.Result
			}
			events = append(events, stream.Event{
				Type: stream.EventError,
				Err:  msg,
				Raw:  raw,
			})
		}
		events = append(events, stream.Event{
			Type:      stream.EventResult,
			Content:   ev.Result,
			SessionID: ev.SessionID,
			Raw:       raw,
		})
		return events, nil
	}

	// Unknown wrapper types are tolerated; newer CLI versions add types
	// the viewer does not need.
	return nil, nil
}

// flattenToolResult renders a tool_result content field, which may be a
// plain string or an array of blocks, as display text.
func flattenToolResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var blocks []claudeBlock
	if json.Unmarshal(raw, &blocks) == nil {
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(raw)
}
