// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/conduit/internal/events"
	"github.com/wingedpig/conduit/internal/history"
	"github.com/wingedpig/conduit/internal/session"
)

// SessionHandler serves the conversation index: project discovery,
// session listings, full transcripts, search, and archival.
type SessionHandler struct {
	scanner *history.Scanner
	store   *session.Store
	bus     events.EventBus
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(scanner *history.Scanner, store *session.Store, bus events.EventBus) *SessionHandler {
	return &SessionHandler{scanner: scanner, store: store, bus: bus}
}

// sessionJSON is one session in a listing response.
type sessionJSON struct {
	SessionID    string     `json:"session_id"`
	ProjectID    string     `json:"project_id"`
	Provider     string     `json:"provider"`
	Preview      string     `json:"preview"`
	MessageCount int        `json:"message_count"`
	StartTime    time.Time  `json:"start_time"`
	LastTime     time.Time  `json:"last_time"`
	Bucket       string     `json:"bucket"`
	IsArchived   bool       `json:"is_archived"`
	ArchivedAt   *time.Time `json:"archived_at,omitempty"`
	Snippet      string     `json:"snippet,omitempty"`
}

func toSessionJSON(m session.SessionModel, now time.Time) sessionJSON {
	return sessionJSON{
		SessionID:    m.ID,
		ProjectID:    m.ProjectID,
		Provider:     m.Provider,
		Preview:      m.Preview,
		MessageCount: m.MessageCount,
		StartTime:    m.StartTime,
		LastTime:     m.LastTime,
		Bucket:       history.Bucket(m.LastTime, now),
		IsArchived:   m.IsArchived,
		ArchivedAt:   m.ArchivedAt,
	}
}

// ListProjects rescans the provider storage trees and returns all
// discovered projects.
func (h *SessionHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.scanner.DiscoverProjects(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if err := h.store.SyncProjects(projects); err != nil {
		log.Printf("api: sync projects: %v", err)
	}
	WriteJSON(w, http.StatusOK, projects)
}

// ListSessions returns one project's sessions, deduplicated and
// newest first. Archived sessions are hidden unless
// ?include_archived=true.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectID"]
	includeArchived := r.URL.Query().Get("include_archived") == "true"

	sums, err := h.scanner.ListSessions(projectID)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	if err := h.store.SyncSessions(projectID, sums); err != nil {
		log.Printf("api: sync sessions for %s: %v", projectID, err)
	}

	models, err := h.store.ListSessions(projectID, includeArchived)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	now := time.Now()
	out := make([]sessionJSON, 0, len(models))
	for _, m := range models {
		out = append(out, toSessionJSON(m, now))
	}
	WriteJSON(w, http.StatusOK, out)
}

// GetConversation returns one session's full transcript. Requires the
// project_id query parameter to locate the file.
func (h *SessionHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		if m, err := h.store.GetSession(sessionID); err == nil {
			projectID = m.ProjectID
		}
	}
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "project_id is required")
		return
	}

	conv, err := h.scanner.LoadConversation(projectID, sessionID)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			WriteError(w, http.StatusNotFound, ErrNotFound, "unknown session: "+sessionID)
			return
		}
		var malformed *history.MalformedError
		if errors.As(err, &malformed) {
			WriteErrorWithDetails(w, http.StatusUnprocessableEntity, ErrMalformed, malformed.Error(),
				map[string]interface{}{"path": malformed.Path, "line": malformed.Line})
			return
		}
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// Turns returns the turns recorded for a session by this server.
func (h *SessionHandler) Turns(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	turns, err := h.store.Turns(sessionID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, turns)
}

// Archive hides a session from default listings.
func (h *SessionHandler) Archive(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, true)
}

// Restore unhides an archived session.
func (h *SessionHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setArchived(w, r, false)
}

func (h *SessionHandler) setArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	sessionID := mux.Vars(r)["sessionID"]

	err := h.store.SetArchived(sessionID, archived)
	if errors.Is(err, session.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown session: "+sessionID)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	if archived && h.bus != nil {
		h.bus.Publish(context.Background(), events.Event{
			Type:    events.EventSessionArchived,
			Session: sessionID,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"is_archived": archived,
	})
}

// Delete removes a session from the index. The provider's on-disk
// transcript is left alone.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	err := h.store.Delete(sessionID)
	if errors.Is(err, session.ErrNotFound) {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown session: "+sessionID)
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	if h.bus != nil {
		h.bus.Publish(context.Background(), events.Event{
			Type:    events.EventSessionDeleted,
			Session: sessionID,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"session_id": sessionID, "deleted": true})
}

// Search matches sessions against a substring query: the indexed
// metadata first (preview, session id), then the full message content
// of every transcript on disk.
func (h *SessionHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "q is required")
		return
	}

	models, err := h.store.Search(q, 50)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	now := time.Now()
	out := make([]sessionJSON, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		seen[m.ID] = struct{}{}
		out = append(out, toSessionJSON(m, now))
	}

	hits, err := h.scanner.SearchContent(r.Context(), q, 50)
	if err != nil {
		log.Printf("api: content search: %v", err)
	}
	for _, hit := range hits {
		if _, ok := seen[hit.Summary.SessionID]; ok {
			continue
		}
		seen[hit.Summary.SessionID] = struct{}{}

		sj := sessionJSON{
			SessionID:    hit.Summary.SessionID,
			ProjectID:    hit.ProjectID,
			Provider:     string(hit.Summary.Provider),
			Preview:      hit.Summary.Preview,
			MessageCount: hit.Summary.MessageCount,
			StartTime:    hit.Summary.StartTime,
			LastTime:     hit.Summary.LastTime,
			Bucket:       history.Bucket(hit.Summary.LastTime, now),
			Snippet:      hit.Snippet,
		}
		// The index may know archival state the scan does not.
		if m, err := h.store.GetSession(hit.Summary.SessionID); err == nil {
			sj.IsArchived = m.IsArchived
			sj.ArchivedAt = m.ArchivedAt
		}
		out = append(out, sj)
	}

	WriteJSON(w, http.StatusOK, out)
}
