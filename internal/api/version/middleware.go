// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

import "net/http"

// Middleware resolves the caller's requested API version from the
// Conduit-Version header, defaults to the latest, stores it in the
// request context, and echoes the resolved version back so clients can
// see what they got.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.Header.Get(Header)
		if v == "" {
			v = LatestVersion
		}

		w.Header().Set(Header, v)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), v)))
	})
}
