// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wingedpig/conduit/internal/events"
	"github.com/wingedpig/conduit/internal/provider"
	"github.com/wingedpig/conduit/internal/stream"
)

const (
	// Terminal requests stay queryable this long after finishing.
	requestRetention = time.Hour
	pruneInterval    = 10 * time.Minute

	// Cap on events retained for persistence. Streams past this are
	// still delivered live, just not recorded in full.
	maxRecordedEvents = 50000
)

// Config tunes the manager.
type Config struct {
	// StopTimeout is the grace period between SIGTERM and SIGKILL.
	StopTimeout time.Duration

	// Binaries overrides the executable per provider.
	Binaries map[provider.Provider]string
}

// Sink receives the event record of every finished request. Used to
// persist completed turns.
type Sink interface {
	RecordTurn(req Request, evs []stream.Event) error
}

// SubmitOptions describes one conversation turn to execute.
type SubmitOptions struct {
	Provider    provider.Provider
	Prompt      string
	ProjectID   string
	SessionID   string
	WorkDir     string
	Attachments []provider.Attachment
}

// Manager owns the full request lifecycle: spawn, decode, fan out,
// abort, reap.
type Manager struct {
	cfg  Config
	reg  *registry
	bus  events.EventBus
	sink Sink

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewManager builds a manager. bus and sink may be nil.
func NewManager(cfg Config, bus events.EventBus, sink Sink) *Manager {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	m := &Manager{
		cfg:    cfg,
		reg:    newRegistry(),
		bus:    bus,
		sink:   sink,
		stopCh: make(chan struct{}),
	}
	go m.pruneLoop()
	return m
}

// Submit validates the turn, spawns the CLI, and starts streaming. The
// returned request is already registered; its events are available via
// Subscribe immediately.
//
// Capability violations (e.g. attachments on a provider that cannot
// take them) are rejected before any process is spawned.
func (m *Manager) Submit(ctx context.Context, opts SubmitOptions) (Request, error) {
	adapter, err := provider.ForProvider(opts.Provider, m.cfg.Binaries[opts.Provider])
	if err != nil {
		return Request{}, err
	}

	spec, err := adapter.BuildInvocation(provider.InvocationOptions{
		Prompt:      opts.Prompt,
		SessionID:   opts.SessionID,
		WorkDir:     opts.WorkDir,
		Attachments: opts.Attachments,
	})
	if err != nil {
		return Request{}, err
	}

	req := Request{
		ID:        uuid.NewString(),
		Provider:  opts.Provider,
		ProjectID: opts.ProjectID,
		SessionID: opts.SessionID,
		Prompt:    opts.Prompt,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	key := SessionKey{ProjectID: opts.ProjectID, SessionID: opts.SessionID}
	if key.SessionID == "" {
		// First turn of a new conversation: nothing to conflict with.
		key.SessionID = req.ID
	}

	e := &entry{req: req, key: key, bcast: newBroadcaster()}
	if err := m.reg.register(e); err != nil {
		spec.Cleanup()
		return Request{}, err
	}

	p, err := startProc(spec)
	if err != nil {
		m.reg.remove(e)
		spec.Cleanup()
		return Request{}, err
	}

	e.mu.Lock()
	e.proc = p
	e.req.Status = StatusRunning
	e.req.PID = p.pid
	req = e.req
	e.mu.Unlock()

	m.publishLifecycle(events.EventRequestStarted, req)

	m.wg.Add(1)
	go m.run(e, adapter, spec)

	return req, nil
}

// run drives one request to completion: reads stdout through the
// decoder, fans events out, then appends the single terminal event
// once the process has been reaped.
func (m *Manager) run(e *entry, dec stream.LineDecoder, spec *provider.ProcessSpec) {
	defer m.wg.Done()
	defer spec.Cleanup()

	p := e.proc
	sd := stream.NewDecoder(dec)
	var recorded []stream.Event

	buf := make([]byte, 32*1024)
	for {
		n, err := p.stdout.Read(buf)
		if n > 0 {
			for _, ev := range sd.Write(buf[:n]) {
				m.deliver(e, ev, &recorded)
			}
		}
		if err != nil {
			break
		}
	}
	for _, ev := range sd.Flush() {
		m.deliver(e, ev, &recorded)
	}

	<-p.waitDone
	exitCode, waitErr := p.result()

	terminal := m.finishRequest(e, p, exitCode, waitErr)
	recorded = append(recorded, terminal)

	if m.sink != nil {
		req := e.snapshot()
		if err := m.sink.RecordTurn(req, recorded); err != nil {
			log.Printf("runner: record turn %s: %v", req.ID, err)
		}
	}
}

// deliver forwards one event to subscribers, capturing the session id
// the CLI reports on its init line.
func (m *Manager) deliver(e *entry, ev stream.Event, recorded *[]stream.Event) {
	if ev.SessionID != "" {
		e.mu.Lock()
		if e.req.SessionID == "" {
			e.req.SessionID = ev.SessionID
		}
		e.mu.Unlock()
	}
	if len(*recorded) < maxRecordedEvents {
		*recorded = append(*recorded, ev)
	}
	e.bcast.publish(ev)
}

// finishRequest computes the terminal status, updates the registry,
// and emits the terminal event exactly once.
func (m *Manager) finishRequest(e *entry, p *proc, exitCode int, waitErr error) stream.Event {
	e.mu.Lock()
	cancelled := e.cancelled || p.stopRequested()

	var terminal stream.Event
	switch {
	case cancelled:
		e.req.Status = StatusAborted
		terminal = stream.Event{Type: stream.EventAborted}
	case exitCode == 0:
		e.req.Status = StatusCompleted
		terminal = stream.Event{Type: stream.EventDone}
	default:
		msg := fmt.Sprintf("process exited with code %d", exitCode)
		if tail := p.stderrTail(); tail != "" {
			msg = fmt.Sprintf("%s: %s", msg, tail)
		} else if waitErr != nil {
			msg = fmt.Sprintf("%s: %v", msg, waitErr)
		}
		e.req.Status = StatusFailed
		e.req.Error = msg
		terminal = stream.Event{Type: stream.EventFailed, Err: msg}
	}
	e.req.ExitCode = exitCode
	e.req.EndedAt = time.Now().UTC()
	terminal.SessionID = e.req.SessionID
	req := e.req
	e.mu.Unlock()

	m.reg.release(e)
	e.bcast.finish(terminal)

	switch req.Status {
	case StatusCompleted:
		m.publishLifecycle(events.EventRequestCompleted, req)
	case StatusAborted:
		m.publishLifecycle(events.EventRequestAborted, req)
	default:
		m.publishLifecycle(events.EventRequestFailed, req)
	}
	return terminal
}

// Cancel requests termination of a running request. Returns false when
// the request is unknown or already terminal. Idempotent: repeated
// calls while the process winds down return true without re-signaling.
func (m *Manager) Cancel(requestID string) bool {
	e, ok := m.reg.lookup(requestID)
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.req.Status.Terminal() {
		e.mu.Unlock()
		return false
	}
	already := e.cancelled
	e.cancelled = true
	p := e.proc
	e.mu.Unlock()

	if !already && p != nil {
		go p.stop(m.cfg.StopTimeout)
	}
	return true
}

// Subscribe attaches to a request's event stream. Events arrive from
// the subscription point onward; the channel closes after the terminal
// event. The returned cancel func detaches early and is safe to call
// more than once.
func (m *Manager) Subscribe(requestID string) (<-chan stream.Event, func(), error) {
	e, ok := m.reg.lookup(requestID)
	if !ok {
		return nil, nil, ErrUnknownRequest
	}
	ch, cancel := e.bcast.subscribe()
	return ch, cancel, nil
}

// Status returns the current snapshot of one request.
func (m *Manager) Status(requestID string) (Request, error) {
	e, ok := m.reg.lookup(requestID)
	if !ok {
		return Request{}, ErrUnknownRequest
	}
	return e.snapshot(), nil
}

// Active returns all non-terminal requests.
func (m *Manager) Active() []Request {
	return m.reg.running()
}

// All returns every request still in the registry, terminal included.
func (m *Manager) All() []Request {
	return m.reg.all()
}

// Shutdown aborts all running requests and waits for their goroutines
// to drain, bounded by ctx.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() { close(m.stopCh) })

	for _, req := range m.reg.running() {
		m.Cancel(req.ID)
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.reg.prune(requestRetention, time.Now())
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) publishLifecycle(eventType string, req Request) {
	if m.bus == nil {
		return
	}
	err := m.bus.Publish(context.Background(), events.Event{
		Type:    eventType,
		Session: req.SessionID,
		Payload: map[string]interface{}{
			"request_id": req.ID,
			"provider":   string(req.Provider),
			"project_id": req.ProjectID,
			"status":     string(req.Status),
			"exit_code":  req.ExitCode,
		},
	})
	if err != nil {
		log.Printf("runner: publish %s: %v", eventType, err)
	}
}
