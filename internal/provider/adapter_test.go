// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/conduit/internal/stream"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Provider
		wantErr bool
	}{
		{"claude", Claude, false},
		{"CLAUDE", Claude, false},
		{" opencode ", OpenCode, false},
		{"gemini", Gemini, false},
		{"", Claude, false},
		{"cursor", "", true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestForProviderUnknown(t *testing.T) {
	_, err := ForProvider(Provider("cursor"), "")
	assert.Error(t, err)
}

func TestClaudeBuildInvocation(t *testing.T) {
	a, err := ForProvider(Claude, "/opt/bin/claude")
	require.NoError(t, err)

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt:  "explain this",
		WorkDir: "/tmp/proj",
	})
	require.NoError(t, err)

	assert.Equal(t, "/opt/bin/claude", spec.Binary)
	assert.Equal(t, []string{"--output-format", "stream-json", "--verbose", "-p", "explain this"}, spec.Args)
	assert.Equal(t, "/tmp/proj", spec.Dir)
	assert.Empty(t, spec.TempFiles)
}

func TestClaudeBuildInvocationResume(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt:    "continue",
		SessionID: "ses-123",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"--output-format", "stream-json", "--verbose", "-p", "continue", "--resume", "ses-123"}, spec.Args)
}

func TestClaudeBuildInvocationAttachments(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt: "what is this",
		Attachments: []Attachment{
			{Name: "shot.png", Data: []byte("fake-png")},
		},
	})
	require.NoError(t, err)
	defer spec.Cleanup()

	require.Len(t, spec.TempFiles, 1)
	content, err := os.ReadFile(spec.TempFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "fake-png", string(content))

	// The staged path is referenced inside the prompt
	prompt := spec.Args[len(spec.Args)-1]
	assert.Contains(t, prompt, spec.TempFiles[0])
	assert.Contains(t, prompt, "what is this")
}

func TestProcessSpecCleanup(t *testing.T) {
	a, _ := ForProvider(OpenCode, "opencode")

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt:      "look at this",
		Attachments: []Attachment{{Name: "x.jpg", Data: []byte("jpg")}},
	})
	require.NoError(t, err)
	require.Len(t, spec.TempFiles, 1)
	path := spec.TempFiles[0]

	_, err = os.Stat(path)
	require.NoError(t, err)

	spec.Cleanup()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Safe to call again
	spec.Cleanup()
}

func TestOpenCodeBuildInvocation(t *testing.T) {
	a, _ := ForProvider(OpenCode, "opencode")

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt:    "hi",
		SessionID: "ses_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "-p", "hi", "--session", "ses_abc"}, spec.Args)
}

func TestOpenCodeBuildInvocationFileFlags(t *testing.T) {
	a, _ := ForProvider(OpenCode, "opencode")

	spec, err := a.BuildInvocation(InvocationOptions{
		Prompt:      "describe",
		Attachments: []Attachment{{Name: "a.png", Data: []byte("p")}},
	})
	require.NoError(t, err)
	defer spec.Cleanup()

	require.Len(t, spec.TempFiles, 1)
	assert.Contains(t, spec.Args, "--file")
	assert.Contains(t, spec.Args, spec.TempFiles[0])
}

func TestGeminiBuildInvocation(t *testing.T) {
	a, _ := ForProvider(Gemini, "gemini")

	spec, err := a.BuildInvocation(InvocationOptions{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []string{"-p", "hello"}, spec.Args)
}

func TestGeminiRejectsAttachments(t *testing.T) {
	a, _ := ForProvider(Gemini, "gemini")

	_, err := a.BuildInvocation(InvocationOptions{
		Prompt:      "what is this",
		Attachments: []Attachment{{Name: "x.png", Data: []byte("p")}},
	})
	require.Error(t, err)

	var capErr *CapabilityError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, Gemini, capErr.Provider)
	assert.Contains(t, capErr.Error(), "Gemini does not support")

	// No temp files left behind on rejection
	assert.False(t, Gemini.SupportsAttachments())
}

func TestClaudeDecodeSystemLine(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	events, err := a.DecodeLine([]byte(`{"type":"system","subtype":"init","session_id":"ses-9"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventSystem, events[0].Type)
	assert.Equal(t, "ses-9", events[0].SessionID)
}

func TestClaudeDecodeAssistantBlocks(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	line := `{"type":"assistant","session_id":"ses-9","message":{"content":[` +
		`{"type":"text","text":"let me check"},` +
		`{"type":"tool_use","id":"tu_1","name":"Read","input":{"path":"main.go"}}]}}`

	events, err := a.DecodeLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, stream.EventText, events[0].Type)
	assert.Equal(t, "let me check", events[0].Text)
	assert.Equal(t, "ses-9", events[0].SessionID)

	assert.Equal(t, stream.EventToolCall, events[1].Type)
	assert.Equal(t, "Read", events[1].ToolName)
	assert.Equal(t, "tu_1", events[1].ToolUseID)
	assert.JSONEq(t, `{"path":"main.go"}`, string(events[1].Input))
}

func TestClaudeDecodeToolResult(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	// String-valued content
	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":"file contents"}]}}`
	events, err := a.DecodeLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventToolResult, events[0].Type)
	assert.Equal(t, "file contents", events[0].Content)

	// Block-array content
	line = `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_2","content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}]}}`
	events, err = a.DecodeLine([]byte(line))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a\nb", events[0].Content)
}

func TestClaudeDecodeResultLine(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	events, err := a.DecodeLine([]byte(`{"type":"result","subtype":"success","result":"all done","session_id":"ses-9"}`))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, stream.EventResult, events[0].Type)
	assert.False(t, events[0].Type.Terminal())
	assert.Equal(t, "all done", events[0].Content)
}

func TestClaudeDecodeErrorResult(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	events, err := a.DecodeLine([]byte(`{"type":"result","is_error":true,"errors":["rate limited"]}`))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, stream.EventError, events[0].Type)
	assert.Equal(t, "rate limited", events[0].Err)
	assert.Equal(t, stream.EventResult, events[1].Type)
}

func TestClaudeDecodeMalformed(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	_, err := a.DecodeLine([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestClaudeDecodeUnknownTypeTolerated(t *testing.T) {
	a, _ := ForProvider(Claude, "claude")

	events, err := a.DecodeLine([]byte(`{"type":"future_thing","payload":1}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPlainTextDecoders(t *testing.T) {
	for _, p := range []Provider{OpenCode, Gemini} {
		a, _ := ForProvider(p, string(p))
		events, err := a.DecodeLine([]byte("plain output"))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, stream.EventText, events[0].Type)
		assert.Equal(t, "plain output\n", events[0].Text)
	}
}

func TestDetectWithOverride(t *testing.T) {
	d := Detect(Claude, "/custom/claude")
	assert.True(t, d.Available)
	assert.Equal(t, "/custom/claude", d.Path)

	all := DetectAll(map[Provider]string{Claude: "/custom/claude"})
	require.Len(t, all, 3)
	assert.Equal(t, Claude, all[0].Provider)
	assert.True(t, all[0].Available)
}
