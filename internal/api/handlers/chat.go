// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wingedpig/conduit/internal/provider"
	"github.com/wingedpig/conduit/internal/runner"
	"github.com/wingedpig/conduit/internal/stream"
)

// ChatHandler handles live conversation API requests.
type ChatHandler struct {
	manager  *runner.Manager
	binaries map[provider.Provider]string
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(manager *runner.Manager, binaries map[provider.Provider]string) *ChatHandler {
	return &ChatHandler{manager: manager, binaries: binaries}
}

// chatRequest is the POST /chat body.
type chatRequest struct {
	Provider    string           `json:"provider"`
	Prompt      string           `json:"prompt"`
	ProjectID   string           `json:"project_id"`
	SessionID   string           `json:"session_id"`
	WorkDir     string           `json:"work_dir"`
	Attachments []attachmentJSON `json:"attachments"`
}

type attachmentJSON struct {
	Name string `json:"name"`
	Data string `json:"data"` // base64
}

// Submit starts a new conversation turn.
func (h *ChatHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	p, err := provider.Parse(body.Provider)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	if body.Prompt == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "prompt is required")
		return
	}

	attachments := make([]provider.Attachment, 0, len(body.Attachments))
	for _, a := range body.Attachments {
		data, err := base64.StdEncoding.DecodeString(a.Data)
		if err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "attachment "+a.Name+": invalid base64")
			return
		}
		attachments = append(attachments, provider.Attachment{Name: a.Name, Data: data})
	}

	req, err := h.manager.Submit(r.Context(), runner.SubmitOptions{
		Provider:    p,
		Prompt:      body.Prompt,
		ProjectID:   body.ProjectID,
		SessionID:   body.SessionID,
		WorkDir:     body.WorkDir,
		Attachments: attachments,
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, req)
}

func writeSubmitError(w http.ResponseWriter, err error) {
	var capErr *provider.CapabilityError
	var spawnErr *runner.SpawnError
	switch {
	case errors.As(err, &capErr):
		WriteError(w, http.StatusBadRequest, ErrNotSupported, capErr.Error())
	case errors.Is(err, runner.ErrConflict):
		WriteError(w, http.StatusConflict, ErrConflict, err.Error())
	case errors.As(err, &spawnErr):
		WriteError(w, http.StatusBadGateway, ErrSpawnFailed, spawnErr.Error())
	default:
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
	}
}

// Abort requests cancellation of a running turn.
func (h *ChatHandler) Abort(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestID"]

	if h.manager.Cancel(requestID) {
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"request_id": requestID,
			"aborted":    true,
		})
		return
	}

	// Distinguish unknown from already-finished.
	if _, err := h.manager.Status(requestID); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown request: "+requestID)
		return
	}
	WriteError(w, http.StatusConflict, ErrConflict, "request already finished")
}

// Status returns one request's current state.
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestID"]

	req, err := h.manager.Status(requestID)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown request: "+requestID)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

// List returns all requests still tracked, terminal included.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.manager.All())
}

// Active returns the running requests and their count.
func (h *ChatHandler) Active(w http.ResponseWriter, r *http.Request) {
	active := h.manager.Active()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(active),
		"requests": active,
	})
}

// Providers reports which provider CLIs are installed.
func (h *ChatHandler) Providers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, provider.DetectAll(h.binaries))
}

// Stream streams a request's events over a WebSocket. A subscriber
// joining mid-flight receives a running marker, then events from the
// join point onward, then exactly one terminal event.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestID"]

	req, err := h.manager.Status(requestID)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown request: "+requestID)
		return
	}

	ch, cancel, err := h.manager.Subscribe(requestID)
	if err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, "unknown request: "+requestID)
		return
	}

	conn, upErr := upgrader.Upgrade(w, r, nil)
	if upErr != nil {
		cancel()
		return
	}
	defer conn.Close()
	defer cancel()

	if !req.Status.Terminal() {
		marker := stream.Event{Type: stream.EventRunning, SessionID: req.SessionID}
		if err := conn.WriteJSON(marker); err != nil {
			return
		}
	}

	// Read goroutine (for close detection)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type.Terminal() {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
