// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"strings"

	"github.com/wingedpig/conduit/internal/stream"
)

// openCodeAdapter drives the OpenCode CLI via `opencode run`. Output is
// plain text, streamed line by line. Attachments are passed as file
// references, which requires staging the bytes to a temp path first.
type openCodeAdapter struct {
	binary string
}

func (a *openCodeAdapter) Provider() Provider { return OpenCode }

func (a *openCodeAdapter) BuildInvocation(opts InvocationOptions) (*ProcessSpec, error) {
	args := []string{"run", "-p", opts.Prompt}

	var temps []string
	if len(opts.Attachments) > 0 {
		paths, err := stageAttachments(opts.Attachments)
		if err != nil {
			return nil, err
		}
		temps = paths
		for _, p := range paths {
			args = append(args, "--file", p)
		}
	}

	if opts.SessionID != "" {
		args = append(args, "--session", opts.SessionID)
	}

	return &ProcessSpec{
		Binary:    a.binary,
		Args:      args,
		Dir:       opts.WorkDir,
		TempFiles: temps,
	}, nil
}

func (a *openCodeAdapter) DecodeLine(line []byte) ([]stream.Event, error) {
	text := strings.ToValidUTF8(string(line), "�")
	return []stream.Event{{
		Type: stream.EventText,
		Text: text + "\n",
	}}, nil
}
