// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conduit.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		version: "1.0"
		server: {
			port: 8080
			host: "127.0.0.1"
		}
		runner: {
			stop_timeout: "10s"
			work_dir: "/tmp/work"
		}
		providers: {
			claude: {
				binary: "/usr/local/bin/claude"
			}
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "10s", cfg.Runner.StopTimeout)
	assert.Equal(t, "/tmp/work", cfg.Runner.WorkDir)
	assert.Equal(t, "/usr/local/bin/claude", cfg.Providers.Claude.Binary)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// HJSON-specific features: comments, unquoted keys, trailing commas
	configContent := `{
		// server settings
		server: {
			port: 9000,
			host: localhost,
		}
		# hash comments work too
		store: {
			path: /var/lib/conduit/index.db
			cache: "redis://localhost:6379/0"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "/var/lib/conduit/index.db", cfg.Store.Path)
	// The cache connection string is carried opaquely, not parsed.
	assert.Equal(t, "redis://localhost:6379/0", cfg.Store.Cache)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/conduit.hjson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidSyntax(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conduit.hjson")
	require.NoError(t, os.WriteFile(path, []byte("{ server: { port: }"), 0644))

	loader := NewLoader()
	_, err := loader.Load(context.Background(), path)
	require.Error(t, err)
}

func TestLoader_LoadWithDefaults(t *testing.T) {
	cfg := loadFromString(t, `{ version: "1.0" }`)
	applyDefaults(cfg)

	assert.Equal(t, 8750, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "5s", cfg.Runner.StopTimeout)
	assert.Equal(t, "~/.conduit/conduit.db", cfg.Store.Path)
	assert.Equal(t, 10000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoader_LoadWithDefaults_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conduit.hjson")
	content := `{
		server: { port: 9999 }
		runner: { stop_timeout: "30s" }
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "30s", cfg.Runner.StopTimeout)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	loader := NewLoader()
	_, err = loader.FindConfig()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "conduit.hjson"), []byte("{}"), 0644))
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "conduit.hjson")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8750, cfg.Server.Port)
	assert.True(t, cfg.Watch.IsEnabled())
	assert.True(t, cfg.Providers.Gemini.IsEnabled())
}

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDuration("5s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("bogus", time.Minute))
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()

	cfg := Default()
	assert.NoError(t, v.Validate(cfg))

	bad := Default()
	bad.Server.Port = 0
	bad.Runner.StopTimeout = "soon"
	bad.Logging.Level = "loud"
	err := v.Validate(bad)
	require.Error(t, err)
	verr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Len(t, verr.Errors, 3)
}

func TestValidator_TLSPair(t *testing.T) {
	v := NewValidator()
	cfg := Default()
	cfg.Server.TLSCert = "/etc/ssl/cert.pem"
	err := v.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls_cert")
}
