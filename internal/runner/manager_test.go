// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	ps "github.com/mitchellh/go-ps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/conduit/internal/provider"
	"github.com/wingedpig/conduit/internal/stream"
)

// writeScript drops an executable shell script into a temp dir.
func writeScript(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

// stubManager builds a manager whose claude binary is a script.
func stubManager(t *testing.T, script string, sink Sink) *Manager {
	t.Helper()
	m := NewManager(Config{
		StopTimeout: 500 * time.Millisecond,
		Binaries: map[provider.Provider]string{
			provider.Claude: writeScript(t, script),
		},
	}, nil, sink)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

// recordingSink captures RecordTurn calls.
type recordingSink struct {
	mu     sync.Mutex
	reqs   []Request
	events [][]stream.Event
}

func (s *recordingSink) RecordTurn(req Request, evs []stream.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	s.events = append(s.events, evs)
	return nil
}

func (s *recordingSink) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reqs)
}

const okScript = `echo '{"type":"system","subtype":"init","session_id":"ses-stub"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"hello back"}]}}'
echo '{"type":"result","subtype":"success","result":"hello back"}'
`

func TestManagerSubmitToCompletion(t *testing.T) {
	sink := &recordingSink{}
	m := stubManager(t, okScript, sink)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, req.Status)
	assert.NotZero(t, req.PID)

	ch, cancel, err := m.Subscribe(req.ID)
	require.NoError(t, err)
	defer cancel()

	var types []stream.EventType
	terminals := 0
	for ev := range ch {
		types = append(types, ev.Type)
		if ev.Type.Terminal() {
			terminals++
		}
	}
	// system init, text, the provider's result summary, then the
	// supervisor's terminal event
	require.NotEmpty(t, types)
	assert.Equal(t, stream.EventDone, types[len(types)-1])
	assert.Contains(t, types, stream.EventText)
	assert.Contains(t, types, stream.EventResult)
	assert.Equal(t, 1, terminals)

	final, err := m.Status(req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 0, final.ExitCode)
	// Session id captured from the CLI's init line
	assert.Equal(t, "ses-stub", final.SessionID)
	assert.False(t, final.EndedAt.IsZero())

	require.Eventually(t, func() bool { return sink.calls() == 1 }, 5*time.Second, 10*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, StatusCompleted, sink.reqs[0].Status)
	last := sink.events[0][len(sink.events[0])-1]
	assert.Equal(t, stream.EventDone, last.Type)
}

func TestManagerFailedProcess(t *testing.T) {
	m := stubManager(t, "echo oops >&2\nexit 3\n", nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hi",
	})
	require.NoError(t, err)

	ch, cancel, err := m.Subscribe(req.ID)
	require.NoError(t, err)
	defer cancel()

	var terminal stream.Event
	for ev := range ch {
		terminal = ev
	}
	assert.Equal(t, stream.EventFailed, terminal.Type)
	assert.Contains(t, terminal.Err, "exited with code 3")
	assert.Contains(t, terminal.Err, "oops")

	final, _ := m.Status(req.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 3, final.ExitCode)
}

// A CLI can print a success-shaped result line and still exit nonzero.
// The result line must not read as end-of-stream: the one terminal
// event a subscriber sees has to match the request's final status.
func TestManagerResultLineThenNonzeroExit(t *testing.T) {
	script := `echo '{"type":"result","subtype":"success","result":"looked fine"}'
exit 7
`
	m := stubManager(t, script, nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hi",
	})
	require.NoError(t, err)

	ch, cancel, err := m.Subscribe(req.ID)
	require.NoError(t, err)
	defer cancel()

	var terminals []stream.Event
	sawResult := false
	for ev := range ch {
		if ev.Type == stream.EventResult {
			sawResult = true
		}
		if ev.Type.Terminal() {
			terminals = append(terminals, ev)
		}
	}
	assert.True(t, sawResult)
	require.Len(t, terminals, 1)
	assert.Equal(t, stream.EventFailed, terminals[0].Type)

	final, _ := m.Status(req.ID)
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 7, final.ExitCode)
}

func TestManagerSpawnFailure(t *testing.T) {
	m := NewManager(Config{
		Binaries: map[provider.Provider]string{
			provider.Claude: "/nonexistent/claude",
		},
	}, nil, nil)
	defer m.Shutdown(context.Background())

	_, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hi",
	})
	require.Error(t, err)

	var spawnErr *SpawnError
	assert.True(t, errors.As(err, &spawnErr))
	assert.Empty(t, m.All(), "failed spawn must not leave a registration behind")
}

func TestManagerSessionConflict(t *testing.T) {
	m := stubManager(t, "sleep 30\n", nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider:  provider.Claude,
		Prompt:    "first",
		ProjectID: "p1",
		SessionID: "ses-1",
	})
	require.NoError(t, err)

	_, err = m.Submit(context.Background(), SubmitOptions{
		Provider:  provider.Claude,
		Prompt:    "second",
		ProjectID: "p1",
		SessionID: "ses-1",
	})
	assert.ErrorIs(t, err, ErrConflict)

	// A different session runs concurrently
	_, err = m.Submit(context.Background(), SubmitOptions{
		Provider:  provider.Claude,
		Prompt:    "other",
		ProjectID: "p1",
		SessionID: "ses-2",
	})
	assert.NoError(t, err)

	// New conversations (no session id) never conflict
	_, err = m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "fresh",
	})
	assert.NoError(t, err)

	assert.True(t, m.Cancel(req.ID))
}

func TestManagerCancel(t *testing.T) {
	m := stubManager(t, "sleep 30\n", nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hang",
	})
	require.NoError(t, err)
	pid := req.PID

	ch, cancel, err := m.Subscribe(req.ID)
	require.NoError(t, err)
	defer cancel()

	assert.True(t, m.Cancel(req.ID))
	// Idempotent while winding down
	assert.True(t, m.Cancel(req.ID))

	var terminal stream.Event
	for ev := range ch {
		terminal = ev
	}
	assert.Equal(t, stream.EventAborted, terminal.Type)

	final, _ := m.Status(req.ID)
	assert.Equal(t, StatusAborted, final.Status)

	// The process must actually be gone from the process table
	require.Eventually(t, func() bool {
		proc, err := ps.FindProcess(pid)
		return err == nil && proc == nil
	}, 5*time.Second, 50*time.Millisecond)

	// Cancel on a terminal request reports false
	assert.False(t, m.Cancel(req.ID))
}

func TestManagerCancelUnknown(t *testing.T) {
	m := stubManager(t, okScript, nil)
	assert.False(t, m.Cancel("no-such-request"))
}

func TestManagerSubscribeUnknown(t *testing.T) {
	m := stubManager(t, okScript, nil)
	_, _, err := m.Subscribe("no-such-request")
	assert.ErrorIs(t, err, ErrUnknownRequest)

	_, err = m.Status("no-such-request")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestManagerLateSubscribe(t *testing.T) {
	m := stubManager(t, okScript, nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hi",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		r, _ := m.Status(req.ID)
		return r.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	// Joining after completion still yields the terminal event
	ch, cancel, err := m.Subscribe(req.ID)
	require.NoError(t, err)
	defer cancel()

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, stream.EventDone, ev.Type)
	_, ok = <-ch
	assert.False(t, ok)
}

func TestManagerShutdownAbortsRunning(t *testing.T) {
	m := NewManager(Config{
		StopTimeout: 200 * time.Millisecond,
		Binaries: map[provider.Provider]string{
			provider.Claude: writeScript(t, "sleep 30\n"),
		},
	}, nil, nil)

	req, err := m.Submit(context.Background(), SubmitOptions{
		Provider: provider.Claude,
		Prompt:   "hang",
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Shutdown(ctx))

	final, _ := m.Status(req.ID)
	assert.Equal(t, StatusAborted, final.Status)
}

func TestProcStopEscalatesToKill(t *testing.T) {
	// Trap SIGTERM so only SIGKILL can take the process down.
	spec := &provider.ProcessSpec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "trap '' TERM; sleep 30"},
	}
	p, err := startProc(spec)
	require.NoError(t, err)

	start := time.Now()
	p.stop(300 * time.Millisecond)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "should have waited out the grace period")
	assert.True(t, p.stopRequested())

	_, waitErr := p.result()
	require.Error(t, waitErr)
}

func TestProcStopSIGTERM(t *testing.T) {
	spec := &provider.ProcessSpec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 30"},
	}
	p, err := startProc(spec)
	require.NoError(t, err)

	p.stop(5 * time.Second)

	exitCode, waitErr := p.result()
	require.Error(t, waitErr)
	// Killed by signal, not a normal exit
	assert.Equal(t, -1, exitCode)

	// Double stop is safe and returns promptly
	p.stop(5 * time.Second)
}

func TestProcKillsProcessGroup(t *testing.T) {
	// The shell forks a child; stopping must take the whole group down.
	spec := &provider.ProcessSpec{
		Binary: "/bin/sh",
		Args:   []string{"-c", "sleep 30 & wait"},
	}
	p, err := startProc(spec)
	require.NoError(t, err)

	// Give the shell a beat to fork
	time.Sleep(100 * time.Millisecond)

	p.stop(time.Second)

	// Process group id equals the leader pid (Setpgid); signalling it
	// again should fail because the group is gone.
	require.Eventually(t, func() bool {
		return syscall.Kill(-p.pid, syscall.Signal(0)) != nil
	}, 5*time.Second, 50*time.Millisecond)
}
