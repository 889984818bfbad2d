// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *MemoryEventBus {
	t.Helper()
	bus := NewMemoryEventBus(MemoryBusConfig{
		HistoryMaxEvents: 100,
		HistoryMaxAge:    time.Hour,
	})
	t.Cleanup(func() { bus.Close() })
	return bus
}

func TestPublishToSyncSubscriber(t *testing.T) {
	bus := newTestBus(t)

	var mu sync.Mutex
	var got []Event
	_, err := bus.Subscribe("request.*", func(ctx context.Context, ev Event) error {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started", Session: "ses-1"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "transcript.changed"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "request.started", got[0].Type)
	assert.Equal(t, "ses-1", got[0].Session)
	// Publish stamps the bookkeeping fields.
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestPublishToAsyncSubscriber(t *testing.T) {
	bus := newTestBus(t)

	var count atomic.Int32
	_, err := bus.SubscribeAsync("*", func(ctx context.Context, ev Event) error {
		count.Add(1)
		return nil
	}, 10)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))
	}

	require.Eventually(t, func() bool {
		return count.Load() == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribeEmptyPattern(t *testing.T) {
	bus := newTestBus(t)

	_, err := bus.Subscribe("", func(ctx context.Context, ev Event) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyPattern)

	_, err = bus.SubscribeAsync("", func(ctx context.Context, ev Event) error { return nil }, 10)
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newTestBus(t)

	var count atomic.Int32
	id, err := bus.Subscribe("*", func(ctx context.Context, ev Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))
	require.NoError(t, bus.Unsubscribe(id))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))

	assert.Equal(t, int32(1), count.Load())
}

func TestUnsubscribeUnknown(t *testing.T) {
	bus := newTestBus(t)
	assert.ErrorIs(t, bus.Unsubscribe("nope"), ErrSubscriptionNotFound)
}

func TestPanickingHandlerDoesNotKillPublish(t *testing.T) {
	bus := newTestBus(t)

	_, err := bus.Subscribe("*", func(ctx context.Context, ev Event) error {
		panic("bad subscriber")
	})
	require.NoError(t, err)

	var count atomic.Int32
	_, err = bus.Subscribe("*", func(ctx context.Context, ev Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))
	assert.Equal(t, int32(1), count.Load())
}

func TestDefaultSessionStamped(t *testing.T) {
	bus := newTestBus(t)
	bus.SetDefaultSession("ses-default")

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started", Session: "ses-own"}))

	got, err := bus.History(EventFilter{Session: "ses-default"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = bus.History(EventFilter{Session: "ses-own"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestHistoryThroughBus(t *testing.T) {
	bus := newTestBus(t)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.started"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "request.completed"}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: "session.archived"}))

	got, err := bus.History(EventFilter{Types: []string{"request.*"}})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestClosedBusRejectsEverything(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{HistoryMaxEvents: 10, HistoryMaxAge: time.Hour})
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(context.Background(), Event{Type: "request.started"}), ErrBusClosed)
	_, err := bus.Subscribe("*", func(ctx context.Context, ev Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)
	_, err = bus.SubscribeAsync("*", func(ctx context.Context, ev Event) error { return nil }, 10)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestConcurrentPublish(t *testing.T) {
	bus := newTestBus(t)

	var count atomic.Int32
	_, err := bus.Subscribe("request.*", func(ctx context.Context, ev Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(context.Background(), Event{Type: "request.started"})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), count.Load())
}
