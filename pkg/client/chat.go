// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ChatClient provides access to live chat execution.
//
// Submitting a prompt spawns the provider CLI on the server and returns
// immediately with a request ID. Clients follow the live output over the
// request's WebSocket endpoint, or poll [ChatClient.Status].
//
// Access this client through [Client.Chat]:
//
//	req, err := client.Chat.Submit(ctx, &client.ChatRequest{
//	    Provider: "claude",
//	    Prompt:   "summarize the diff",
//	})
type ChatClient struct {
	c *Client
}

// Submit sends a prompt to a provider CLI and returns the accepted request.
//
// The returned Request is in the "running" state. A "CONFLICT" APIError means
// another request is already running for the same session.
func (ch *ChatClient) Submit(ctx context.Context, req *ChatRequest) (*Request, error) {
	data, err := ch.c.postJSON(ctx, "/api/v1/chat", req)
	if err != nil {
		return nil, err
	}

	var out Request
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &out, nil
}

// Status returns the current state of a request by ID.
func (ch *ChatClient) Status(ctx context.Context, requestID string) (*Request, error) {
	data, err := ch.c.get(ctx, "/api/v1/chat/"+url.PathEscape(requestID))
	if err != nil {
		return nil, err
	}

	var out Request
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &out, nil
}

// List returns all requests the server currently remembers, running and
// finished. Finished requests age out of the server after a retention window.
func (ch *ChatClient) List(ctx context.Context) ([]Request, error) {
	data, err := ch.c.get(ctx, "/api/v1/chat/status")
	if err != nil {
		return nil, err
	}

	var out []Request
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse requests: %w", err)
	}
	return out, nil
}

// Active returns the requests currently running.
func (ch *ChatClient) Active(ctx context.Context) ([]Request, error) {
	data, err := ch.c.get(ctx, "/api/v1/chat/active")
	if err != nil {
		return nil, err
	}

	var out struct {
		Count    int       `json:"count"`
		Requests []Request `json:"requests"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse active requests: %w", err)
	}
	return out.Requests, nil
}

// Abort stops a running request. The server sends the process group SIGTERM,
// waits out a grace period, then SIGKILLs it.
//
// Aborting a request that has already finished returns a "CONFLICT" APIError.
func (ch *ChatClient) Abort(ctx context.Context, requestID string) error {
	_, err := ch.c.post(ctx, "/api/v1/chat/"+url.PathEscape(requestID)+"/abort")
	return err
}

// Providers reports which provider CLIs are available on the server.
func (ch *ChatClient) Providers(ctx context.Context) ([]ProviderInfo, error) {
	data, err := ch.c.get(ctx, "/api/v1/providers")
	if err != nil {
		return nil, err
	}

	var out []ProviderInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse providers: %w", err)
	}
	return out, nil
}

// StreamURL returns the WebSocket URL for a request's live event stream.
//
// The stream carries one JSON event per message and ends with a terminal
// event ("done", "failed", or "aborted"). Connect with any WebSocket client:
//
//	conn, _, err := websocket.DefaultDialer.Dial(c.Chat.StreamURL(req.ID), nil)
func (ch *ChatClient) StreamURL(requestID string) string {
	base := ch.c.baseURL
	if u, err := url.Parse(base); err == nil {
		switch u.Scheme {
		case "http":
			u.Scheme = "ws"
		case "https":
			u.Scheme = "wss"
		}
		base = u.String()
	}
	return base + "/api/v1/chat/" + url.PathEscape(requestID) + "/ws"
}
