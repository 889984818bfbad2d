// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer returns an httptest server that responds to the given path
// with a standard envelope wrapping data.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, New(srv.URL)
}

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}

func TestClientSendsVersionHeader(t *testing.T) {
	var gotVersion string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get(VersionHeader)
		writeEnvelope(w, http.StatusOK, []Project{})
	})

	_, err := c.Sessions.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, LatestVersion, gotVersion)
}

func TestClientWithVersion(t *testing.T) {
	var gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get(VersionHeader)
		writeEnvelope(w, http.StatusOK, []Project{})
	}))
	defer srv.Close()

	c := New(srv.URL, WithVersion("2026-01-17"), WithTimeout(5*time.Second))
	_, err := c.Sessions.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-01-17", gotVersion)
}

func TestChatSubmit(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/chat", r.URL.Path)

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude", req.Provider)
		assert.Equal(t, "hello", req.Prompt)

		writeEnvelope(w, http.StatusAccepted, Request{
			ID:       "req-1",
			Provider: "claude",
			Prompt:   "hello",
			Status:   RequestStatusRunning,
			PID:      4242,
		})
	})

	req, err := c.Chat.Submit(context.Background(), &ChatRequest{
		Provider: "claude",
		Prompt:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "req-1", req.ID)
	assert.Equal(t, RequestStatusRunning, req.Status)
	assert.Equal(t, 4242, req.PID)
}

func TestChatSubmitConflict(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusConflict, "CONFLICT", "a request is already running for this session")
	})

	_, err := c.Chat.Submit(context.Background(), &ChatRequest{Provider: "claude", Prompt: "hi"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, "CONFLICT", apiErr.Code)
	assert.Contains(t, apiErr.Error(), "CONFLICT")
}

func TestChatStatusNotFound(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusNotFound, "NOT_FOUND", "unknown request: req-x")
	})

	_, err := c.Chat.Status(context.Background(), "req-x")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestChatAbort(t *testing.T) {
	var gotPath string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"aborted": true})
	})

	err := c.Chat.Abort(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/chat/req-1/abort", gotPath)
}

func TestChatActive(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, map[string]interface{}{
			"count":    1,
			"requests": []Request{{ID: "req-1", Status: RequestStatusRunning}},
		})
	})

	active, err := c.Chat.Active(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "req-1", active[0].ID)
}

func TestChatStreamURL(t *testing.T) {
	c := New("http://localhost:8750")
	assert.Equal(t, "ws://localhost:8750/api/v1/chat/req-1/ws", c.Chat.StreamURL("req-1"))

	c = New("https://conduit.example.com/")
	assert.Equal(t, "wss://conduit.example.com/api/v1/chat/req-1/ws", c.Chat.StreamURL("req-1"))
}

func TestSessionsListProjects(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/projects", r.URL.Path)
		writeEnvelope(w, http.StatusOK, []Project{
			{ID: "claude_-home-user-proj", Name: "proj", Provider: "claude", SessionCount: 3},
		})
	})

	projects, err := c.Sessions.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "claude_-home-user-proj", projects[0].ID)
	assert.Equal(t, 3, projects[0].SessionCount)
}

func TestSessionsListSessionsIncludeArchived(t *testing.T) {
	var gotQuery string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, []Session{})
	})

	_, err := c.Sessions.ListSessions(context.Background(), "claude_-p", true)
	require.NoError(t, err)
	assert.Equal(t, "include_archived=true", gotQuery)
}

func TestSessionsGetConversation(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/sessions/ses-1", r.URL.Path)
		assert.Equal(t, "claude_-p", r.URL.Query().Get("project_id"))
		writeEnvelope(w, http.StatusOK, Conversation{
			SessionID: "ses-1",
			Provider:  "claude",
			Messages: []Message{
				{Role: "user", Content: []ContentBlock{{Type: "text", Text: "hi"}}},
			},
			Warnings: []Warning{{Line: 7, Error: "unexpected end of JSON input"}},
		})
	})

	conv, err := c.Sessions.GetConversation(context.Background(), "ses-1", "claude_-p")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, "hi", conv.Messages[0].Content[0].Text)
	require.Len(t, conv.Warnings, 1)
	assert.Equal(t, 7, conv.Warnings[0].Line)
}

func TestSessionsArchiveAndDelete(t *testing.T) {
	var calls []string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"session_id": "ses-1"})
	})

	require.NoError(t, c.Sessions.Archive(context.Background(), "ses-1"))
	require.NoError(t, c.Sessions.Restore(context.Background(), "ses-1"))
	require.NoError(t, c.Sessions.Delete(context.Background(), "ses-1"))

	assert.Equal(t, []string{
		"POST /api/v1/sessions/ses-1/archive",
		"POST /api/v1/sessions/ses-1/restore",
		"DELETE /api/v1/sessions/ses-1",
	}, calls)
}

func TestSessionsSearch(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "stack trace", r.URL.Query().Get("q"))
		writeEnvelope(w, http.StatusOK, []Session{{SessionID: "ses-9"}})
	})

	results, err := c.Sessions.Search(context.Background(), "stack trace")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ses-9", results[0].SessionID)
}

func TestEventsList(t *testing.T) {
	var gotQuery string
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/events", r.URL.Path)
		gotQuery = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, []Event{
			{ID: "evt-1", Type: "request.started", Session: "ses-1"},
		})
	})

	events, err := c.Events.List(context.Background(), &ListOptions{
		Limit:   10,
		Types:   []string{"request.started"},
		Session: "ses-1",
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "request.started", events[0].Type)
	assert.Contains(t, gotQuery, "limit=10")
	assert.Contains(t, gotQuery, "type=request.started")
	assert.Contains(t, gotQuery, "session=ses-1")
}

func TestParseResponseNonEnvelope(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream blew up"))
	})

	_, err := c.Sessions.ListProjects(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}
