// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the HTTP and WebSocket surface of the server.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/conduit/internal/api/handlers"
	"github.com/wingedpig/conduit/internal/api/middleware"
	"github.com/wingedpig/conduit/internal/api/version"
	"github.com/wingedpig/conduit/internal/events"
	"github.com/wingedpig/conduit/internal/history"
	"github.com/wingedpig/conduit/internal/provider"
	"github.com/wingedpig/conduit/internal/runner"
	"github.com/wingedpig/conduit/internal/session"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	RunnerManager *runner.Manager
	Scanner       *history.Scanner
	Store         *session.Store
	EventBus      events.EventBus
	Binaries      map[provider.Provider]string // per-provider binary overrides
	Version       string                       // Application version string
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	// API v1 routes
	api := r.PathPrefix("/api/v1").Subrouter()

	// Chat handlers (live conversation execution)
	chatHandler := handlers.NewChatHandler(deps.RunnerManager, deps.Binaries)
	api.HandleFunc("/chat", chatHandler.Submit).Methods("POST")
	api.HandleFunc("/chat/status", chatHandler.List).Methods("GET")
	api.HandleFunc("/chat/active", chatHandler.Active).Methods("GET")
	api.HandleFunc("/chat/{requestID}", chatHandler.Status).Methods("GET")
	api.HandleFunc("/chat/{requestID}/abort", chatHandler.Abort).Methods("POST")
	api.HandleFunc("/chat/{requestID}/ws", chatHandler.Stream).Methods("GET")
	api.HandleFunc("/providers", chatHandler.Providers).Methods("GET")

	// Session handlers (historical conversation browsing)
	sessionHandler := handlers.NewSessionHandler(deps.Scanner, deps.Store, deps.EventBus)
	api.HandleFunc("/projects", sessionHandler.ListProjects).Methods("GET")
	api.HandleFunc("/projects/{projectID}/sessions", sessionHandler.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}", sessionHandler.GetConversation).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}", sessionHandler.Delete).Methods("DELETE")
	api.HandleFunc("/sessions/{sessionID}/turns", sessionHandler.Turns).Methods("GET")
	api.HandleFunc("/sessions/{sessionID}/archive", sessionHandler.Archive).Methods("POST")
	api.HandleFunc("/sessions/{sessionID}/restore", sessionHandler.Restore).Methods("POST")
	api.HandleFunc("/search", sessionHandler.Search).Methods("GET")

	// Event handlers
	eventHandler := handlers.NewEventHandler(deps.EventBus)
	api.HandleFunc("/events", eventHandler.History).Methods("GET")
	api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")

	// Debug/profiling endpoints
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server.
// If TLS is configured (tls_cert and tls_key), uses HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	// Check if TLS is configured
	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	// Create a timeout context if none provided
	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
