// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/wingedpig/conduit/internal/provider"
)

// Scanner discovers projects and sessions across the provider storage
// trees. The roots are configurable so tests can point at fixtures;
// zero values fall back to the real CLI locations.
type Scanner struct {
	ClaudeDir   string // default ~/.claude/projects
	OpenCodeDir string // default ~/.local/share/opencode/storage
	GeminiDir   string // default ~/.gemini/tmp
}

// NewScanner builds a scanner over the default CLI storage locations.
// Missing home directory resolution leaves the affected root empty,
// which the scan treats as an absent tree.
func NewScanner() *Scanner {
	s := &Scanner{}
	s.ClaudeDir, _ = ClaudeProjectsDir()
	s.OpenCodeDir, _ = OpenCodeStorageDir()
	s.GeminiDir, _ = GeminiTmpDir()
	return s
}

// DiscoverProjects scans all three provider trees in parallel. A
// provider whose tree is missing or unreadable contributes nothing;
// the scan as a whole only fails on context cancellation.
func (s *Scanner) DiscoverProjects(ctx context.Context) ([]Project, error) {
	var (
		mu  sync.Mutex
		all []Project
	)
	collect := func(projects []Project, err error, p provider.Provider) error {
		if err != nil {
			log.Printf("history: %s project scan failed: %v", p, err)
			return nil
		}
		mu.Lock()
		all = append(all, projects...)
		mu.Unlock()
		return ctx.Err()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		projects, err := s.claudeProjects()
		return collect(projects, err, provider.Claude)
	})
	g.Go(func() error {
		projects, err := s.opencodeProjects()
		return collect(projects, err, provider.OpenCode)
	})
	g.Go(func() error {
		projects, err := s.geminiProjects()
		return collect(projects, err, provider.Gemini)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].LastModified.After(all[j].LastModified)
	})
	return all, nil
}

// ListSessions returns the deduplicated session summaries of one
// project, newest first.
func (s *Scanner) ListSessions(projectID string) ([]Summary, error) {
	var (
		sums []Summary
		err  error
	)
	switch {
	case strings.HasPrefix(projectID, "claude_"):
		encoded := strings.TrimPrefix(projectID, "claude_")
		sums, err = ListClaudeSummaries(filepath.Join(s.ClaudeDir, encoded))
	case strings.HasPrefix(projectID, "opencode_"):
		name := strings.TrimPrefix(projectID, "opencode_")
		sums, err = ListOpenCodeSummaries(s.OpenCodeDir, filepath.Join(s.OpenCodeDir, "session", name))
	case strings.HasPrefix(projectID, "gemini_"):
		hash := strings.TrimPrefix(projectID, "gemini_")
		sums, err = ListGeminiSummaries(filepath.Join(s.GeminiDir, hash))
	default:
		return nil, fmt.Errorf("unknown project id %q", projectID)
	}
	if err != nil {
		return nil, err
	}
	return Group(sums), nil
}

// LoadConversation resolves one session to its full transcript.
func (s *Scanner) LoadConversation(projectID, sessionID string) (*Conversation, error) {
	switch {
	case strings.HasPrefix(projectID, "claude_"):
		encoded := strings.TrimPrefix(projectID, "claude_")
		return ParseClaudeFile(filepath.Join(s.ClaudeDir, encoded, sessionID+".jsonl"))
	case strings.HasPrefix(projectID, "opencode_"):
		return LoadOpenCodeConversation(s.OpenCodeDir, sessionID)
	case strings.HasPrefix(projectID, "gemini_"):
		hash := strings.TrimPrefix(projectID, "gemini_")
		return ParseGeminiFile(filepath.Join(s.GeminiDir, hash, "chats", "session-"+sessionID+".json"))
	}
	return nil, fmt.Errorf("unknown project id %q", projectID)
}

func (s *Scanner) claudeProjects() ([]Project, error) {
	entries, err := os.ReadDir(s.ClaudeDir)
	if err != nil {
		if os.IsNotExist(err) || s.ClaudeDir == "" {
			return nil, nil
		}
		return nil, err
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		encoded := entry.Name()
		dir := filepath.Join(s.ClaudeDir, encoded)

		count := 0
		if sessions, err := os.ReadDir(dir); err == nil {
			for _, ses := range sessions {
				if strings.HasSuffix(ses.Name(), ".jsonl") {
					count++
				}
			}
		}

		p := Project{
			ID:          "claude_" + encoded,
			Name:        DecodeProjectPath(encoded),
			Path:        dir,
			Provider:    provider.Claude,
			EncodedName: encoded,
		}
		p.SessionCount = count
		fillProjectTimes(&p, dir)
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *Scanner) opencodeProjects() ([]Project, error) {
	sessionRoot := filepath.Join(s.OpenCodeDir, "session")
	entries, err := os.ReadDir(sessionRoot)
	if err != nil {
		if os.IsNotExist(err) || s.OpenCodeDir == "" {
			return nil, nil
		}
		return nil, err
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		dir := filepath.Join(sessionRoot, name)

		count := 0
		if sessions, err := os.ReadDir(dir); err == nil {
			for _, ses := range sessions {
				n := ses.Name()
				if strings.HasPrefix(n, "ses_") && strings.HasSuffix(n, ".json") {
					count++
				}
			}
		}
		if count == 0 {
			continue
		}

		p := Project{
			ID:          "opencode_" + name,
			Name:        name,
			Path:        dir,
			Provider:    provider.OpenCode,
			EncodedName: name,
		}
		p.SessionCount = count
		fillProjectTimes(&p, dir)
		projects = append(projects, p)
	}
	return projects, nil
}

func (s *Scanner) geminiProjects() ([]Project, error) {
	entries, err := os.ReadDir(s.GeminiDir)
	if err != nil {
		if os.IsNotExist(err) || s.GeminiDir == "" {
			return nil, nil
		}
		return nil, err
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		hash := entry.Name()
		// The tmp dir also holds non-project dirs like bin/; project
		// dirs are named by a long content hash.
		if len(hash) < 32 {
			continue
		}
		dir := filepath.Join(s.GeminiDir, hash)

		count := 0
		if sessions, err := os.ReadDir(filepath.Join(dir, "chats")); err == nil {
			for _, ses := range sessions {
				n := ses.Name()
				if strings.HasPrefix(n, "session-") && strings.HasSuffix(n, ".json") {
					count++
				}
			}
		}
		if count == 0 {
			continue
		}

		p := Project{
			ID:          "gemini_" + hash,
			Name:        "Gemini-" + hash[:8],
			Path:        dir,
			Provider:    provider.Gemini,
			EncodedName: hash,
		}
		p.SessionCount = count
		fillProjectTimes(&p, dir)
		projects = append(projects, p)
	}
	return projects, nil
}

func fillProjectTimes(p *Project, dir string) {
	fi, err := os.Stat(dir)
	if err != nil {
		return
	}
	p.LastModified = fi.ModTime().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.LastModified
	}
}
