// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the components together and manages their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/conduit/internal/api"
	"github.com/wingedpig/conduit/internal/config"
	"github.com/wingedpig/conduit/internal/events"
	"github.com/wingedpig/conduit/internal/history"
	"github.com/wingedpig/conduit/internal/provider"
	"github.com/wingedpig/conduit/internal/runner"
	"github.com/wingedpig/conduit/internal/session"
	"github.com/wingedpig/conduit/internal/watcher"
)

// App is the composition root.
type App struct {
	mu      sync.Mutex
	config  *config.Config
	version string

	eventBus      events.EventBus
	scanner       *history.Scanner
	store         *session.Store
	runnerManager *runner.Manager
	watcher       *watcher.TranscriptWatcher
	apiServer     *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Debug      bool
	Version    string // Application version string
}

// New creates a new App instance. An empty ConfigPath runs on built-in
// defaults.
func New(opts Options) (*App, error) {
	app := &App{
		version: opts.Version,
		done:    make(chan struct{}),
	}

	var cfg *config.Config
	if opts.ConfigPath != "" {
		loader := config.NewLoader()
		loaded, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Override host/port if specified
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	app.config = cfg

	// Initialize event bus
	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize builds all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	// Transcript scanner over the provider storage trees
	app.scanner = history.NewScanner()
	if cfg.History.ClaudeDir != "" {
		app.scanner.ClaudeDir = cfg.History.ClaudeDir
	}
	if cfg.History.OpenCodeDir != "" {
		app.scanner.OpenCodeDir = cfg.History.OpenCodeDir
	}
	if cfg.History.GeminiDir != "" {
		app.scanner.GeminiDir = cfg.History.GeminiDir
	}

	// Conversation index
	store, err := session.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	app.store = store

	// CLI process runner
	app.runnerManager = runner.NewManager(runner.Config{
		StopTimeout: config.ParseDuration(cfg.Runner.StopTimeout, 5*time.Second),
		Binaries:    app.binaries(),
	}, app.eventBus, store)

	// Transcript watcher keeps the index fresh between API calls
	if cfg.Watch.IsEnabled() {
		debounce := config.ParseDuration(cfg.Watch.Debounce, 500*time.Millisecond)
		w, err := watcher.NewTranscriptWatcher(app.eventBus, debounce, func(root string) {
			app.resync(context.Background())
		})
		if err != nil {
			log.Printf("Warning: transcript watcher disabled: %v", err)
		} else {
			app.watcher = w
			for _, root := range []string{app.scanner.ClaudeDir, app.scanner.OpenCodeDir, app.scanner.GeminiDir} {
				if root == "" {
					continue
				}
				if err := w.WatchRoot(root); err != nil {
					log.Printf("Warning: cannot watch %s: %v", root, err)
				}
			}
		}
	}

	// API server
	app.apiServer = api.NewServer(api.ServerConfig{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		TLSCert: cfg.Server.TLSCert,
		TLSKey:  cfg.Server.TLSKey,
	}, api.Dependencies{
		RunnerManager: app.runnerManager,
		Scanner:       app.scanner,
		Store:         app.store,
		EventBus:      app.eventBus,
		Binaries:      app.binaries(),
		Version:       app.version,
	})

	return nil
}

// binaries collects the configured binary overrides per provider.
func (app *App) binaries() map[provider.Provider]string {
	out := make(map[provider.Provider]string)
	if b := app.config.Providers.Claude.Binary; b != "" {
		out[provider.Claude] = b
	}
	if b := app.config.Providers.OpenCode.Binary; b != "" {
		out[provider.OpenCode] = b
	}
	if b := app.config.Providers.Gemini.Binary; b != "" {
		out[provider.Gemini] = b
	}
	return out
}

// resync rescans the provider trees and refreshes the index.
func (app *App) resync(ctx context.Context) {
	projects, err := app.scanner.DiscoverProjects(ctx)
	if err != nil {
		log.Printf("resync: discover projects: %v", err)
		return
	}
	if err := app.store.SyncProjects(projects); err != nil {
		log.Printf("resync: sync projects: %v", err)
	}
	for _, p := range projects {
		sums, err := app.scanner.ListSessions(p.ID)
		if err != nil {
			continue
		}
		if err := app.store.SyncSessions(p.ID, sums); err != nil {
			log.Printf("resync: sync sessions for %s: %v", p.ID, err)
		}
	}
}

// Start launches the background work and the API server.
func (app *App) Start(ctx context.Context) error {
	// Warm the index without blocking startup
	go app.resync(ctx)

	go func() {
		log.Printf("Starting API server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop API server first to stop accepting new requests
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.watcher != nil {
		if err := app.watcher.Close(); err != nil {
			log.Printf("Error closing transcript watcher: %v", err)
		}
	}

	// Abort in-flight CLI processes and wait for them to be reaped
	if app.runnerManager != nil {
		if err := app.runnerManager.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down runner: %v", err)
		}
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			log.Printf("Error closing session store: %v", err)
		}
	}

	if app.eventBus != nil {
		if err := app.eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
