// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// searchSnippetRadius is how many runes of context a snippet keeps on
// each side of the match.
const searchSnippetRadius = 40

// SearchHit is one session whose message content matched a query.
type SearchHit struct {
	ProjectID string
	Summary   Summary
	Snippet   string
}

// SearchContent scans every discovered transcript for sessions whose
// message text contains q, case-insensitive. Projects are scanned in
// parallel; a project that fails to parse is logged and skipped so one
// corrupt tree cannot hide the rest. Hits come back newest first,
// capped at limit.
func (s *Scanner) SearchContent(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	needle := strings.ToLower(q)
	if needle == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	projects, err := s.DiscoverProjects(ctx)
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		hits []SearchHit
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, project := range projects {
		project := project
		g.Go(func() error {
			found := s.searchProject(project.ID, needle)
			mu.Lock()
			hits = append(hits, found...)
			mu.Unlock()
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Summary.LastTime.After(hits[j].Summary.LastTime)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *Scanner) searchProject(projectID, needle string) []SearchHit {
	sums, err := s.ListSessions(projectID)
	if err != nil {
		log.Printf("history: search skipping %s: %v", projectID, err)
		return nil
	}

	var hits []SearchHit
	for _, sum := range sums {
		// Cheap path first: the preview is the last message's text.
		if idx := strings.Index(strings.ToLower(sum.Preview), needle); idx >= 0 {
			hits = append(hits, SearchHit{
				ProjectID: projectID,
				Summary:   sum,
				Snippet:   snippetAround(sum.Preview, idx, len(needle)),
			})
			continue
		}

		conv, err := s.LoadConversation(projectID, sum.SessionID)
		if err != nil {
			log.Printf("history: search skipping %s/%s: %v", projectID, sum.SessionID, err)
			continue
		}
		for _, msg := range conv.Messages {
			text := msg.Text()
			if idx := strings.Index(strings.ToLower(text), needle); idx >= 0 {
				hits = append(hits, SearchHit{
					ProjectID: projectID,
					Summary:   sum,
					Snippet:   snippetAround(text, idx, len(needle)),
				})
				break
			}
		}
	}
	return hits
}

// snippetAround cuts a window of text around a byte-offset match,
// aligned outward to rune boundaries.
func snippetAround(text string, idx, matchLen int) string {
	runes := []rune(text)
	// Convert the byte offset to a rune offset.
	start := len([]rune(text[:idx]))
	end := start + len([]rune(text[idx:idx+matchLen]))

	lo := start - searchSnippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + searchSnippetRadius
	if hi > len(runes) {
		hi = len(runes)
	}

	out := string(runes[lo:hi])
	if lo > 0 {
		out = "…" + out
	}
	if hi < len(runes) {
		out += "…"
	}
	return out
}
