// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"strings"

	"github.com/wingedpig/conduit/internal/stream"
)

// geminiAdapter drives the Gemini CLI in non-interactive mode. Output
// is plain text. Images are TUI-only for this provider, so attachment
// requests fail before any process is spawned rather than being
// silently dropped.
type geminiAdapter struct {
	binary string
}

func (a *geminiAdapter) Provider() Provider { return Gemini }

func (a *geminiAdapter) BuildInvocation(opts InvocationOptions) (*ProcessSpec, error) {
	if len(opts.Attachments) > 0 {
		return nil, &CapabilityError{Provider: Gemini, Feature: "image attachments"}
	}

	return &ProcessSpec{
		Binary: a.binary,
		Args:   []string{"-p", opts.Prompt},
		Dir:    opts.WorkDir,
	}, nil
}

func (a *geminiAdapter) DecodeLine(line []byte) ([]stream.Event, error) {
	text := strings.ToValidUTF8(string(line), "�")
	return []stream.Event{{
		Type: stream.EventText,
		Text: text + "\n",
	}}, nil
}
