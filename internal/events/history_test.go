// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyEvent(typ, session string, ts time.Time) Event {
	return Event{ID: "ev-" + typ, Type: typ, Session: session, Timestamp: ts}
}

func TestHistoryAppendAndQuery(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()

	h.Append(historyEvent("request.started", "ses-1", now.Add(-2*time.Minute)))
	h.Append(historyEvent("request.completed", "ses-1", now.Add(-time.Minute)))
	h.Append(historyEvent("transcript.changed", "", now))

	all := h.Query(EventFilter{})
	require.Len(t, all, 3)
	// Oldest first.
	assert.Equal(t, "request.started", all[0].Type)
	assert.Equal(t, "transcript.changed", all[2].Type)
}

func TestHistoryCountBound(t *testing.T) {
	h := NewHistory(3, time.Hour)
	for i := 0; i < 10; i++ {
		h.Append(Event{ID: strconv.Itoa(i), Type: "request.started", Timestamp: time.Now()})
	}

	got := h.Query(EventFilter{})
	require.Len(t, got, 3)
	// The newest three survive.
	assert.Equal(t, "7", got[0].ID)
	assert.Equal(t, "9", got[2].ID)
}

func TestHistoryTypeFilterWithWildcard(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()
	h.Append(historyEvent("request.started", "", now))
	h.Append(historyEvent("request.failed", "", now))
	h.Append(historyEvent("session.archived", "", now))

	got := h.Query(EventFilter{Types: []string{"request.*"}})
	require.Len(t, got, 2)

	got = h.Query(EventFilter{Types: []string{"session.archived", "request.failed"}})
	require.Len(t, got, 2)
}

func TestHistorySessionFilter(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()
	h.Append(historyEvent("request.started", "ses-a", now))
	h.Append(historyEvent("request.started", "ses-b", now))

	got := h.Query(EventFilter{Session: "ses-b"})
	require.Len(t, got, 1)
	assert.Equal(t, "ses-b", got[0].Session)
}

func TestHistoryTimeWindow(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()
	h.Append(historyEvent("request.started", "", now.Add(-30*time.Minute)))
	h.Append(historyEvent("request.completed", "", now.Add(-10*time.Minute)))
	h.Append(historyEvent("request.aborted", "", now))

	got := h.Query(EventFilter{Since: now.Add(-20 * time.Minute)})
	require.Len(t, got, 2)

	got = h.Query(EventFilter{Until: now.Add(-20 * time.Minute)})
	require.Len(t, got, 1)
	assert.Equal(t, "request.started", got[0].Type)

	got = h.Query(EventFilter{
		Since: now.Add(-20 * time.Minute),
		Until: now.Add(-5 * time.Minute),
	})
	require.Len(t, got, 1)
	assert.Equal(t, "request.completed", got[0].Type)
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	h := NewHistory(10, time.Hour)
	now := time.Now()
	for i := 0; i < 5; i++ {
		h.Append(Event{ID: strconv.Itoa(i), Type: "request.started", Timestamp: now.Add(time.Duration(i) * time.Second)})
	}

	got := h.Query(EventFilter{Limit: 2})
	require.Len(t, got, 2)
	assert.Equal(t, "3", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}

func TestHistoryPruneDropsOldEvents(t *testing.T) {
	h := NewHistory(10, 10*time.Minute)
	now := time.Now()
	h.Append(historyEvent("request.started", "", now.Add(-time.Hour)))
	h.Append(historyEvent("request.completed", "", now))

	h.Prune()

	got := h.Query(EventFilter{})
	require.Len(t, got, 1)
	assert.Equal(t, "request.completed", got[0].Type)
}

func TestHistoryClose(t *testing.T) {
	h := NewHistory(10, time.Hour)
	h.Append(historyEvent("request.started", "", time.Now()))
	h.Close()
	assert.Empty(t, h.Query(EventFilter{}))
}
