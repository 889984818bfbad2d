// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	ps "github.com/mitchellh/go-ps"

	"github.com/wingedpig/conduit/internal/provider"
)

const defaultStopTimeout = 5 * time.Second

// proc supervises a single CLI process. The process runs in its own
// process group so a stop takes down any children the CLI forked.
type proc struct {
	cmd      *exec.Cmd
	stdout   io.ReadCloser
	pid      int
	waitDone chan struct{}

	mu       sync.Mutex
	exitCode int
	waitErr  error
	stderr   bytes.Buffer
	stopping bool
}

// startProc launches the process described by spec. The returned proc
// is already waiting on the child in the background.
func startProc(spec *provider.ProcessSpec) (*proc, error) {
	cmd := exec.Command(spec.Binary, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = os.Environ()
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if len(spec.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(spec.Stdin)
	}

	return launch(cmd)
}

// launch wires the pipes and starts cmd. Pipe handles opened before a
// later wiring step fails are closed again; once Start has been
// attempted, exec owns the descriptors on both outcomes.
func launch(cmd *exec.Cmd) (*proc, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	p := &proc{
		cmd:      cmd,
		stdout:   stdout,
		waitDone: make(chan struct{}),
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdout.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Binary: cmd.Path, Err: err}
	}
	p.pid = cmd.Process.Pid

	// Drain stderr into a bounded tail for error reporting.
	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		p.captureStderr(stderr)
	}()

	go func() {
		<-stderrDone
		p.waitForExit()
	}()

	return p, nil
}

const maxStderrTail = 8 * 1024

func (p *proc) captureStderr(r io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.mu.Lock()
			p.stderr.Write(buf[:n])
			if p.stderr.Len() > maxStderrTail {
				tail := p.stderr.Bytes()
				p.stderr = *bytes.NewBuffer(append([]byte(nil), tail[len(tail)-maxStderrTail:]...))
			}
			p.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (p *proc) waitForExit() {
	err := p.cmd.Wait()

	p.mu.Lock()
	if err != nil {
		p.waitErr = err
		if exitErr, ok := err.(*exec.ExitError); ok {
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
		}
	}
	p.mu.Unlock()

	close(p.waitDone)
}

// stop terminates the process group: SIGTERM, a grace period, then
// SIGKILL. It blocks until the child is reaped and confirms the pid is
// gone from the process table.
func (p *proc) stop(grace time.Duration) {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		<-p.waitDone
		return
	}
	p.stopping = true
	p.mu.Unlock()

	select {
	case <-p.waitDone:
		return
	default:
	}

	if grace <= 0 {
		grace = defaultStopTimeout
	}

	// Signal the process group (negative pid) to reach children too.
	syscall.Kill(-p.pid, syscall.SIGTERM)

	select {
	case <-p.waitDone:
	case <-time.After(grace):
		syscall.Kill(-p.pid, syscall.SIGKILL)
		<-p.waitDone
	}

	p.confirmGone()
}

// confirmGone checks the process table after reaping. A surviving pid
// here means the kill did not land (e.g. an unkillable state) and is
// worth a log line, since the whole point of aborting is not leaking
// processes.
func (p *proc) confirmGone() {
	proc, err := ps.FindProcess(p.pid)
	if err != nil {
		return
	}
	if proc != nil {
		log.Printf("runner: pid %d still in process table after kill", p.pid)
	}
}

// result returns the exit code and wait error once waitDone is closed.
func (p *proc) result() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.waitErr
}

// stderrTail returns the captured stderr tail.
func (p *proc) stderrTail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr.String()
}

// stopRequested reports whether stop has been called.
func (p *proc) stopRequested() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopping
}
