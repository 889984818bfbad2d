// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// EventClient reads the server's lifecycle event log: request
// started/completed/failed/aborted, transcript changes, session
// archival.
//
// Access it through [Client.Events]:
//
//	evs, err := client.Events.List(ctx, &client.ListOptions{Limit: 50})
type EventClient struct {
	c *Client
}

// ListOptions filters an event listing. Zero values mean no filter.
type ListOptions struct {
	// Limit caps the number of events returned.
	Limit int

	// Types restricts to these event types; wildcards like
	// "request.*" are allowed.
	Types []string

	// Session restricts to events tied to one session.
	Session string

	// Since and Until bound the time window.
	Since time.Time
	Until time.Time
}

func (o *ListOptions) query() string {
	if o == nil {
		return ""
	}
	params := url.Values{}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	for _, t := range o.Types {
		params.Add("type", t)
	}
	if o.Session != "" {
		params.Set("session", o.Session)
	}
	if !o.Since.IsZero() {
		params.Set("since", o.Since.Format(time.RFC3339))
	}
	if !o.Until.IsZero() {
		params.Set("until", o.Until.Format(time.RFC3339))
	}
	if len(params) == 0 {
		return ""
	}
	return "?" + params.Encode()
}

// List returns retained events matching opts, oldest first.
func (e *EventClient) List(ctx context.Context, opts *ListOptions) ([]Event, error) {
	data, err := e.c.get(ctx, "/api/v1/events"+opts.query())
	if err != nil {
		return nil, err
	}

	var evs []Event
	if err := json.Unmarshal(data, &evs); err != nil {
		return nil, fmt.Errorf("failed to parse events: %w", err)
	}
	return evs, nil
}
