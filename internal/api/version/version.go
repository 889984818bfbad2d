// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements date-based API versioning for the
// Conduit API, in the Stripe style: each version is the API as it
// stood on that date, requested via the Conduit-Version header, with
// the latest version as the default.
//
// A breaking change means a new version constant with that day's date,
// LatestVersion bumped to it, and a transformer in transformer.go that
// folds new responses back into the previous shape for pinned clients.
package version

import "context"

const (
	// Version20260117 is the initial API version.
	Version20260117 = "2026-01-17"
)

// LatestVersion is the default when a request carries no version
// header.
var LatestVersion = Version20260117

// Header names the HTTP header carrying the requested version.
const Header = "Conduit-Version"

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version resolved for this request, or
// LatestVersion when none was recorded.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// WithContext records the resolved API version on the context.
func WithContext(ctx context.Context, version string) context.Context {
	return context.WithValue(ctx, versionKey, version)
}
