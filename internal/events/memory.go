// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrBusClosed is returned when operating on a closed bus.
var ErrBusClosed = errors.New("event bus is closed")

// ErrSubscriptionNotFound is returned when unsubscribing an unknown id.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// ErrEmptyPattern rejects subscriptions that would never match.
var ErrEmptyPattern = errors.New("subscription pattern is empty")

// MemoryBusConfig bounds the bus's retained history.
type MemoryBusConfig struct {
	HistoryMaxEvents int
	HistoryMaxAge    time.Duration
}

// MemoryEventBus is the in-process EventBus. Synchronous subscribers
// run inline on Publish; async subscribers get a buffered channel
// drained by their own goroutine, with overflow dropped rather than
// stalling the publisher.
type MemoryEventBus struct {
	mu             sync.RWMutex
	subs           map[SubscriptionID]*subscription
	history        *History
	closed         atomic.Bool
	wg             sync.WaitGroup
	defaultSession string
	stopPruner     chan struct{}
}

type subscription struct {
	id      SubscriptionID
	pattern string
	handler EventHandler
	async   bool
	ch      chan Event
	stopCh  chan struct{}
}

// NewMemoryEventBus creates a bus and starts its history pruner.
func NewMemoryEventBus(cfg MemoryBusConfig) *MemoryEventBus {
	bus := &MemoryEventBus{
		subs:       make(map[SubscriptionID]*subscription),
		history:    NewHistory(cfg.HistoryMaxEvents, cfg.HistoryMaxAge),
		stopPruner: make(chan struct{}),
	}

	// Prune at a tenth of the age bound, clamped to [1min, 1h].
	interval := cfg.HistoryMaxAge / 10
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > time.Hour {
		interval = time.Hour
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-bus.stopPruner:
				return
			case <-ticker.C:
				bus.history.Prune()
			}
		}
	}()

	return bus
}

// SetDefaultSession sets the session stamped onto events that carry
// none of their own.
func (bus *MemoryEventBus) SetDefaultSession(session string) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.defaultSession = session
}

// Publish stamps missing fields, records the event, and delivers it to
// every matching subscriber.
func (bus *MemoryEventBus) Publish(ctx context.Context, event Event) error {
	if bus.closed.Load() {
		return ErrBusClosed
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Version == "" {
		event.Version = "1.0"
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Session == "" {
		bus.mu.RLock()
		event.Session = bus.defaultSession
		bus.mu.RUnlock()
	}

	bus.history.Append(event)

	bus.mu.RLock()
	targets := make([]*subscription, 0, len(bus.subs))
	for _, sub := range bus.subs {
		if MatchType(event.Type, sub.pattern) {
			targets = append(targets, sub)
		}
	}
	bus.mu.RUnlock()

	for _, sub := range targets {
		if sub.async {
			select {
			case sub.ch <- event:
			default:
				log.Printf("events: dropped %s, async subscriber buffer full", event.Type)
			}
			continue
		}
		invoke(ctx, sub.handler, event)
	}
	return nil
}

// invoke runs a handler with panic isolation so one bad subscriber
// cannot take down the publisher.
func invoke(ctx context.Context, handler EventHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic on %s: %v", event.Type, r)
		}
	}()
	handler(ctx, event)
}

// Subscribe registers a synchronous handler for events matching
// pattern. The handler runs inline on every Publish.
func (bus *MemoryEventBus) Subscribe(pattern string, handler EventHandler) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}
	if pattern == "" {
		return "", ErrEmptyPattern
	}

	id := SubscriptionID(uuid.NewString())
	bus.mu.Lock()
	bus.subs[id] = &subscription{id: id, pattern: pattern, handler: handler}
	bus.mu.Unlock()
	return id, nil
}

// SubscribeAsync registers a handler fed from its own buffered
// channel. Publish never blocks on it; overflow is dropped.
func (bus *MemoryEventBus) SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error) {
	if bus.closed.Load() {
		return "", ErrBusClosed
	}
	if pattern == "" {
		return "", ErrEmptyPattern
	}
	if bufferSize <= 0 {
		bufferSize = 100
	}

	id := SubscriptionID(uuid.NewString())
	sub := &subscription{
		id:      id,
		pattern: pattern,
		handler: handler,
		async:   true,
		ch:      make(chan Event, bufferSize),
		stopCh:  make(chan struct{}),
	}

	bus.mu.Lock()
	bus.subs[id] = sub
	bus.mu.Unlock()

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		for {
			select {
			case <-sub.stopCh:
				return
			case event := <-sub.ch:
				invoke(context.Background(), handler, event)
			}
		}
	}()

	return id, nil
}

// Unsubscribe removes a subscription and stops its drain goroutine.
func (bus *MemoryEventBus) Unsubscribe(id SubscriptionID) error {
	bus.mu.Lock()
	sub, ok := bus.subs[id]
	if !ok {
		bus.mu.Unlock()
		return ErrSubscriptionNotFound
	}
	delete(bus.subs, id)
	bus.mu.Unlock()

	if sub.async {
		close(sub.stopCh)
	}
	return nil
}

// History returns retained past events matching the filter.
func (bus *MemoryEventBus) History(filter EventFilter) ([]Event, error) {
	return bus.history.Query(filter), nil
}

// Close stops the pruner and all async subscribers, then drops the
// retained history. Idempotent.
func (bus *MemoryEventBus) Close() error {
	if bus.closed.Swap(true) {
		return nil
	}

	close(bus.stopPruner)

	bus.mu.Lock()
	for _, sub := range bus.subs {
		if sub.async {
			close(sub.stopCh)
		}
	}
	bus.subs = make(map[SubscriptionID]*subscription)
	bus.mu.Unlock()

	bus.wg.Wait()
	bus.history.Close()
	return nil
}
