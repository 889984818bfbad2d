// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading.
package config

import (
	"time"
)

// Config is the root configuration structure for Conduit.
type Config struct {
	Version   string          `json:"version"`
	Server    ServerConfig    `json:"server"`
	Runner    RunnerConfig    `json:"runner"`
	Providers ProvidersConfig `json:"providers"`
	History   HistoryConfig   `json:"history"`
	Store     StoreConfig     `json:"store"`
	Events    EventsConfig    `json:"events"`
	Watch     WatchConfig     `json:"watch"`
	Logging   LoggingConfig   `json:"logging"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey  string `json:"tls_key"`  // Path to TLS private key file
}

// RunnerConfig configures CLI process execution.
type RunnerConfig struct {
	StopTimeout string `json:"stop_timeout"` // Grace period between SIGTERM and SIGKILL (e.g. "5s")
	WorkDir     string `json:"work_dir"`     // Default working directory for spawned CLIs
}

// ProvidersConfig overrides per-provider binary locations.
type ProvidersConfig struct {
	Claude   ProviderConfig `json:"claude"`
	OpenCode ProviderConfig `json:"opencode"`
	Gemini   ProviderConfig `json:"gemini"`
}

// ProviderConfig configures one provider CLI.
type ProviderConfig struct {
	Binary  string `json:"binary"`
	Enabled *bool  `json:"enabled"` // nil means enabled
}

// IsEnabled returns true unless the provider is explicitly disabled.
func (p *ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// HistoryConfig overrides transcript storage locations. Empty values
// use the standard per-CLI locations under the home directory.
type HistoryConfig struct {
	ClaudeDir   string `json:"claude_dir"`
	OpenCodeDir string `json:"opencode_dir"`
	GeminiDir   string `json:"gemini_dir"`
}

// StoreConfig configures the conversation index database.
type StoreConfig struct {
	Path string `json:"path"`
	// Cache is an optional cache connection string, carried opaquely
	// for deployments that put a cache in front of the index.
	Cache string `json:"cache"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	History EventHistoryConfig `json:"history"`
}

// EventHistoryConfig configures event retention.
type EventHistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// WatchConfig configures transcript file watching.
type WatchConfig struct {
	Enabled  *bool  `json:"enabled"`
	Debounce string `json:"debounce"`
}

// IsEnabled returns true unless watching is explicitly disabled.
func (w *WatchConfig) IsEnabled() bool {
	return w.Enabled == nil || *w.Enabled
}

// LoggingConfig configures server logging.
type LoggingConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
}

// ParseDuration parses a duration string, returning defaultVal on
// empty or invalid input.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
