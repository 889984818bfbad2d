// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// SessionClient provides access to discovered projects and historical
// conversations.
//
// Projects and sessions are discovered from the provider CLIs' own transcript
// directories on the server, so conversations held outside Conduit show up
// too.
//
// Access this client through [Client.Sessions]:
//
//	projects, err := client.Sessions.ListProjects(ctx)
type SessionClient struct {
	c *Client
}

// ListProjects returns all discovered projects across providers, most
// recently active first.
func (s *SessionClient) ListProjects(ctx context.Context) ([]Project, error) {
	data, err := s.c.get(ctx, "/api/v1/projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to parse projects: %w", err)
	}
	return projects, nil
}

// ListSessions returns the sessions in a project, most recent first.
// Archived sessions are excluded unless includeArchived is set.
func (s *SessionClient) ListSessions(ctx context.Context, projectID string, includeArchived bool) ([]Session, error) {
	path := "/api/v1/projects/" + url.PathEscape(projectID) + "/sessions"
	if includeArchived {
		path += "?include_archived=true"
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, nil
}

// GetConversation loads the full transcript of a session.
//
// projectID may be empty when the session is already indexed; passing it
// avoids a lookup. Lines that fail to parse are reported in
// Conversation.Warnings rather than failing the whole load.
func (s *SessionClient) GetConversation(ctx context.Context, sessionID, projectID string) (*Conversation, error) {
	path := "/api/v1/sessions/" + url.PathEscape(sessionID)
	if projectID != "" {
		path += "?project_id=" + url.QueryEscape(projectID)
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation: %w", err)
	}
	return &conv, nil
}

// Turns returns the prompts and responses the server itself recorded for a
// session. Turns only exist for sessions driven through Conduit.
func (s *SessionClient) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	data, err := s.c.get(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/turns")
	if err != nil {
		return nil, err
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("failed to parse turns: %w", err)
	}
	return turns, nil
}

// Archive hides a session from default listings. The on-disk transcript is
// untouched, and the flag survives rescans.
func (s *SessionClient) Archive(ctx context.Context, sessionID string) error {
	_, err := s.c.post(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/archive")
	return err
}

// Restore unhides an archived session.
func (s *SessionClient) Restore(ctx context.Context, sessionID string) error {
	_, err := s.c.post(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/restore")
	return err
}

// Delete removes a session from the index. The provider's on-disk transcript
// is left alone, so a rescan may rediscover the session.
func (s *SessionClient) Delete(ctx context.Context, sessionID string) error {
	_, err := s.c.delete(ctx, "/api/v1/sessions/"+url.PathEscape(sessionID))
	return err
}

// Search matches indexed sessions against a substring query over previews
// and session IDs.
func (s *SessionClient) Search(ctx context.Context, query string) ([]Session, error) {
	data, err := s.c.get(ctx, "/api/v1/search?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}
	return sessions, nil
}
