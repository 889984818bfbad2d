// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/conduit/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler exposes the lifecycle event bus: recent history over
// plain HTTP and a live feed over WebSocket.
type EventHandler struct {
	bus events.EventBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus events.EventBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// parseEventFilter builds an EventFilter from query parameters:
// type (repeatable, wildcards allowed), session, limit, since, until.
// Unparseable values are ignored rather than rejected.
func parseEventFilter(query url.Values) events.EventFilter {
	filter := events.EventFilter{
		Types:   query["type"],
		Session: query.Get("session"),
	}
	if n, err := strconv.Atoi(query.Get("limit")); err == nil && n > 0 {
		filter.Limit = n
	}
	if ts, err := time.Parse(time.RFC3339, query.Get("since")); err == nil {
		filter.Since = ts
	}
	if ts, err := time.Parse(time.RFC3339, query.Get("until")); err == nil {
		filter.Until = ts
	}
	return filter
}

// History returns retained events matching the query filters.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	evs, err := h.bus.History(parseEventFilter(r.URL.Query()))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, evs)
}

// WebSocket streams live bus events matching the ?pattern= filter
// (default all) until the client disconnects.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	eventCh := make(chan events.Event, 100)
	done := make(chan struct{})

	subID, err := h.bus.SubscribeAsync(pattern, func(_ context.Context, event events.Event) error {
		select {
		case eventCh <- event:
		case <-done:
		default:
			// Slow socket; drop rather than stall the bus.
		}
		return nil
	}, 100)
	if err != nil {
		conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer h.bus.Unsubscribe(subID)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	// Reads only matter for close detection.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
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
