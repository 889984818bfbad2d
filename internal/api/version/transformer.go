// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package version

// Transformer rewrites response data into the shape an older API
// version expects. When a breaking change lands (say, a session field
// renamed), the old version's transformer maps the new shape back so
// pinned clients keep working.
type Transformer func(data interface{}) interface{}

// transformers is keyed by version, then by endpoint identifier
// (e.g. "sessions.list", "chat.status"). Empty while 2026-01-17 is
// the only version.
var transformers = map[string]map[string]Transformer{}

// Transform applies the transformer registered for a version/endpoint
// pair, if any. Data for the latest version always passes through
// untouched.
func Transform(version, endpoint string, data interface{}) interface{} {
	if version == LatestVersion {
		return data
	}
	byEndpoint, ok := transformers[version]
	if !ok {
		return data
	}
	fn, ok := byEndpoint[endpoint]
	if !ok {
		return data
	}
	return fn(data)
}

// RegisterTransformer installs a transformer, typically from an init
// function next to the handler whose shape changed.
func RegisterTransformer(version, endpoint string, t Transformer) {
	if transformers[version] == nil {
		transformers[version] = make(map[string]Transformer)
	}
	transformers[version][endpoint] = t
}
