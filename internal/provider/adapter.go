// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/wingedpig/conduit/internal/stream"
)

// Attachment is an image supplied with a chat request. Data holds the
// raw bytes; Name is the client-supplied filename used to derive the
// temp file extension.
type Attachment struct {
	Name string
	Data []byte
}

// InvocationOptions describes one chat request to be turned into a
// process invocation.
type InvocationOptions struct {
	// Prompt is the user message.
	Prompt string
	// SessionID resumes a previous provider conversation when set.
	SessionID string
	// WorkDir is the working directory for file operations.
	WorkDir string
	// Attachments are optional images. Providers that cannot accept
	// them reject the invocation before any process is spawned.
	Attachments []Attachment
}

// ProcessSpec is a fully-built process invocation: what to run, how,
// and which temp resources must be released when the request ends.
type ProcessSpec struct {
	Binary string
	Args   []string
	Dir    string
	// Stdin is written to the process and then closed. Empty means the
	// process gets no stdin.
	Stdin []byte
	// TempFiles were created for this invocation (attachment staging)
	// and must be removed on every terminal path.
	TempFiles []string
}

// Cleanup removes the spec's temp resources. Safe to call more than once.
func (s *ProcessSpec) Cleanup() {
	for _, f := range s.TempFiles {
		os.Remove(f)
	}
	s.TempFiles = nil
}

// CapabilityError is returned when a request asks a provider for
// something it cannot do, before any process is spawned.
type CapabilityError struct {
	Provider Provider
	Feature  string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Provider.DisplayName(), e.Feature)
}

// Adapter is the per-provider strategy: invocation shape on one side,
// output interpretation on the other. Each provider is a value selected
// by tag, not a subclass.
type Adapter interface {
	Provider() Provider

	// BuildInvocation turns a request into a process spec. It fails
	// with *CapabilityError when attachments are requested for a
	// provider that cannot accept them.
	BuildInvocation(opts InvocationOptions) (*ProcessSpec, error)

	// LineDecoder interprets this provider's streaming output format.
	stream.LineDecoder
}

// ForProvider returns the adapter for p. binary overrides the PATH
// lookup when non-empty.
func ForProvider(p Provider, binary string) (Adapter, error) {
	if binary == "" {
		binary = p.BinaryName()
	}
	switch p {
	case Claude:
		return &claudeAdapter{binary: binary}, nil
	case OpenCode:
		return &openCodeAdapter{binary: binary}, nil
	case Gemini:
		return &geminiAdapter{binary: binary}, nil
	}
	return nil, fmt.Errorf("unknown provider: %q", p)
}

// stageAttachments writes attachment bytes to temp files and returns the
// paths. The caller owns the files via ProcessSpec.TempFiles.
func stageAttachments(atts []Attachment) ([]string, error) {
	paths := make([]string, 0, len(atts))
	for _, att := range atts {
		ext := filepath.Ext(att.Name)
		if ext == "" {
			ext = ".png"
		}
		path := filepath.Join(os.TempDir(), "conduit-att-"+uuid.New().String()+ext)
		if err := os.WriteFile(path, att.Data, 0600); err != nil {
			for _, p := range paths {
				os.Remove(p)
			}
			return nil, fmt.Errorf("stage attachment %s: %w", att.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
