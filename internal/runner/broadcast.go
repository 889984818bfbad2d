// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"sync"

	"github.com/wingedpig/conduit/internal/stream"
)

// subscriber channel buffer. A subscriber that falls this far behind
// the CLI's output is force-unsubscribed rather than shown a stream
// with silent gaps.
const subscriberBuffer = 256

// broadcaster fans one request's event stream out to any number of
// subscribers. Exactly one terminal event is delivered per subscriber,
// after which its channel is closed. Each channel carries one slot
// beyond subscriberBuffer that only the terminal event may use, so a
// subscriber that is merely slow still observes the terminal event.
// A channel closed without a preceding terminal event means the
// subscriber was dropped mid-stream for falling behind.
type broadcaster struct {
	mu       sync.Mutex
	subs     map[chan stream.Event]struct{}
	terminal *stream.Event
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan stream.Event]struct{})}
}

// subscribe registers a new subscriber. Joining after the stream has
// finished yields the terminal event and an immediately closed channel.
func (b *broadcaster) subscribe() (<-chan stream.Event, func()) {
	ch := make(chan stream.Event, subscriberBuffer+1)

	b.mu.Lock()
	if b.terminal != nil {
		b.mu.Unlock()
		ch <- *b.terminal
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// publish delivers a non-terminal event to every subscriber.
func (b *broadcaster) publish(ev stream.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminal != nil {
		return
	}
	for ch := range b.subs {
		// Publishes happen only under the lock, so len is a reliable
		// fill check for the sending side. The last slot stays free
		// for the terminal event.
		if len(ch) < subscriberBuffer {
			ch <- ev
		} else {
			delete(b.subs, ch)
			close(ch)
		}
	}
}

// finish records the terminal event, delivers it, and closes every
// subscriber channel. Only the first call has any effect. The reserved
// slot guarantees the send never blocks.
func (b *broadcaster) finish(ev stream.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminal != nil {
		return
	}
	b.terminal = &ev
	for ch := range b.subs {
		ch <- ev
		delete(b.subs, ch)
		close(ch)
	}
}

// subscriberCount returns the number of live subscribers.
func (b *broadcaster) subscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
