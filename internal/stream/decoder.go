// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"strings"
)

// maxLineLen caps a single buffered line to prevent memory issues.
const maxLineLen = 10 * 1024 * 1024

// Decoder incrementally parses an append-only byte stream into events.
// Input may be chunked at arbitrary boundaries: a trailing partial line
// is buffered until the rest of it arrives. Feeding the same total bytes
// split anywhere yields the same event sequence.
type Decoder struct {
	dec LineDecoder
	buf []byte
}

// NewDecoder creates a decoder that interprets complete lines with dec.
func NewDecoder(dec LineDecoder) *Decoder {
	return &Decoder{dec: dec}
}

// Write consumes the next chunk of process output and returns the events
// for every line completed by it. Malformed lines become in-band error
// events carrying the offending text; decoding continues afterwards.
func (d *Decoder) Write(p []byte) []Event {
	d.buf = append(d.buf, p...)

	var events []Event
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}
		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]
		events = append(events, d.decodeLine(line)...)
	}

	if len(d.buf) > maxLineLen {
		// A line this long is never a valid unit. Surface it and reset
		// so the buffer cannot grow without bound.
		events = append(events, Event{
			Type: EventError,
			Err:  "line exceeds maximum length",
		})
		d.buf = nil
	}

	return events
}

// Flush decodes any buffered trailing data as a final line. Call once
// after end-of-stream; a process that was killed mid-line may leave a
// partial unit behind, which is surfaced rather than silently dropped.
func (d *Decoder) Flush() []Event {
	if len(d.buf) == 0 {
		return nil
	}
	line := d.buf
	d.buf = nil
	return d.decodeLine(line)
}

// Buffered returns the number of bytes awaiting a line terminator.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

func (d *Decoder) decodeLine(line []byte) []Event {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	events, err := d.dec.DecodeLine(line)
	if err != nil {
		raw := strings.ToValidUTF8(string(line), "�")
		return []Event{{
			Type: EventError,
			Err:  err.Error(),
			Text: raw,
		}}
	}
	return events
}
