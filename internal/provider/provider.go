// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package provider models the supported CLI providers: how each one is
// invoked and how its streaming output format is interpreted.
package provider

import (
	"fmt"
	"os/exec"
	"strings"
)

// Provider is one supported external CLI tool. The set is closed.
type Provider string

const (
	Claude   Provider = "claude"
	OpenCode Provider = "opencode"
	Gemini   Provider = "gemini"
)

// All lists the supported providers in preference order.
var All = []Provider{Claude, OpenCode, Gemini}

// Parse converts a user-supplied provider name.
func Parse(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude", "":
		return Claude, nil
	case "opencode":
		return OpenCode, nil
	case "gemini":
		return Gemini, nil
	}
	return "", fmt.Errorf("unknown provider: %q", s)
}

// DisplayName returns the user-visible name.
func (p Provider) DisplayName() string {
	switch p {
	case Claude:
		return "Claude"
	case OpenCode:
		return "OpenCode"
	case Gemini:
		return "Gemini"
	}
	return string(p)
}

// BinaryName returns the executable name looked up on PATH when no
// explicit binary path is configured.
func (p Provider) BinaryName() string {
	return string(p)
}

// SupportsAttachments reports whether the provider accepts image
// attachments in non-interactive mode. Gemini is TUI-only for images.
func (p Provider) SupportsAttachments() bool {
	return p != Gemini
}

// Detection is the result of probing for a provider binary.
type Detection struct {
	Provider  Provider `json:"provider"`
	Path      string   `json:"path,omitempty"`
	Available bool     `json:"available"`
}

// Detect locates the provider's binary. An explicit override wins;
// otherwise PATH is searched.
func Detect(p Provider, override string) Detection {
	if override != "" {
		return Detection{Provider: p, Path: override, Available: true}
	}
	path, err := exec.LookPath(p.BinaryName())
	if err != nil {
		return Detection{Provider: p, Available: false}
	}
	return Detection{Provider: p, Path: path, Available: true}
}

// DetectAll probes every supported provider.
func DetectAll(overrides map[Provider]string) []Detection {
	out := make([]Detection, 0, len(All))
	for _, p := range All {
		out = append(out, Detect(p, overrides[p]))
	}
	return out
}
