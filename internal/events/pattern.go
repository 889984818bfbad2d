// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import "strings"

// MatchType reports whether an event type matches a subscription
// pattern. Supported forms:
//
//	"*"                everything
//	"request.*"        any type in the request namespace
//	"*.changed"        the changed suffix in any namespace
//	"request.started"  exact type
func MatchType(eventType, pattern string) bool {
	if eventType == "" || pattern == "" {
		return false
	}
	switch {
	case pattern == "*":
		return true
	case pattern == eventType:
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(eventType, strings.TrimPrefix(pattern, "*"))
	}
	return false
}
