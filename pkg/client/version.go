// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

// Conduit versions its API with Stripe-style dates: every version is
// the API as it existed on that date, and a client pins one by sending
// it in the Conduit-Version header. Unpinned clients get the latest.
const (
	// LatestVersion is the current API version.
	LatestVersion = "2026-01-17"

	// Version20260117 is the initial API version.
	Version20260117 = "2026-01-17"
)

// VersionHeader is the HTTP header carrying the requested API version.
const VersionHeader = "Conduit-Version"
