// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package middleware holds the HTTP middleware shared by every route.
package middleware

import (
	"bufio"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// statusRecorder captures the status code and byte count of a
// response. It must keep implementing http.Hijacker or the WebSocket
// upgrade on the stream endpoints breaks.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.written += n
	return n, err
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Logging logs one line per request: method, path, status, response
// size, and duration. pprof traffic is skipped.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/debug/pprof") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("api: %s %s %d %dB %s",
			r.Method, r.URL.Path, rec.status, rec.written,
			time.Since(start).Round(time.Microsecond))
	})
}
