// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
)

// Recovery turns a handler panic into a 500 so one bad request cannot
// take the server down mid-conversation.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.Printf("api: panic on %s %s: %v\n%s", r.Method, r.URL.Path, v, debug.Stack())

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
