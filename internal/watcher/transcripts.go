// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package watcher observes the provider transcript trees and reports
// changes so the conversation index stays fresh.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wingedpig/conduit/internal/events"
)

// TranscriptWatcher watches the provider storage roots for transcript
// writes and emits debounced change events. The CLIs append to their
// files on every turn, so raw fsnotify traffic is bursty.
type TranscriptWatcher struct {
	mu        sync.RWMutex
	bus       events.EventBus
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func(root string)
	roots     map[string]string // watched dir -> root it belongs to
	closed    bool
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

// NewTranscriptWatcher creates a watcher. onChange is invoked, via the
// debouncer, with the storage root a change landed under; it may be
// nil when only bus events are wanted.
func NewTranscriptWatcher(bus events.EventBus, debounce time.Duration, onChange func(root string)) (*TranscriptWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &TranscriptWatcher{
		bus:       bus,
		watcher:   fsWatcher,
		debouncer: NewDebouncer(debounce),
		onChange:  onChange,
		roots:     make(map[string]string),
		closeCh:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// WatchRoot starts watching a storage root and its first two directory
// levels. That covers every provider layout: Claude project dirs,
// OpenCode session/message dirs, Gemini hash/chats dirs. A missing
// root is not an error; it may appear after the CLI's first run.
func (w *TranscriptWatcher) WatchRoot(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher is closed")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}

	if err := w.addDir(abs, abs); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, level1 := range subdirs(abs) {
		if err := w.addDir(level1, abs); err != nil {
			continue
		}
		for _, level2 := range subdirs(level1) {
			w.addDir(level2, abs)
		}
	}
	return nil
}

// Watching returns the roots currently under watch.
func (w *TranscriptWatcher) Watching() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seen := make(map[string]struct{})
	var result []string
	for _, root := range w.roots {
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			result = append(result, root)
		}
	}
	return result
}

// Close stops the watcher and releases resources.
func (w *TranscriptWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.debouncer.Stop()
	w.watcher.Close()
	w.wg.Wait()

	return nil
}

// addDir registers one directory under a root. Caller holds w.mu.
func (w *TranscriptWatcher) addDir(dir, root string) error {
	if _, ok := w.roots[dir]; ok {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.roots[dir] = root
	return nil
}

func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	return out
}

func (w *TranscriptWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Log error but continue
			_ = err
		}
	}
}

func (w *TranscriptWatcher) handleEvent(event fsnotify.Event) {
	// Writes and creates only - NOT chmod. The CLIs touch permissions
	// on startup without changing content.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	dir := filepath.Dir(event.Name)

	w.mu.Lock()
	root, ok := w.roots[dir]
	if !ok {
		// Event on a watched dir itself (e.g. new subdir created).
		root, ok = w.roots[event.Name]
		dir = event.Name
	}
	// A newly created directory needs its own watch to see files
	// appear inside it (new project, new session dir).
	if ok && event.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			w.addDir(event.Name, root)
		}
	}
	w.mu.Unlock()

	if ok {
		w.triggerChange(root, event.Name)
	}
}

func (w *TranscriptWatcher) triggerChange(root, changedPath string) {
	w.debouncer.Debounce(root, func() {
		if w.bus != nil {
			w.bus.Publish(context.Background(), events.Event{
				Type: events.EventTranscriptChanged,
				Payload: map[string]interface{}{
					"root": root,
					"path": changedPath,
				},
			})
		}
		if w.onChange != nil {
			w.onChange(root)
		}
	})
}
