// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"sort"
	"time"
)

// Group removes superseded snapshots from a session listing and sorts
// the survivors by last activity, newest first.
//
// Resuming a Claude conversation writes a new file that replays every
// assistant message of the old one plus the new turns, so the old
// file's id set is a subset of the new file's. Largest sets are kept;
// any file whose ids are a subset of a kept file is dropped. Files
// without ids (OpenCode, Gemini) are never grouped.
func Group(sums []Summary) []Summary {
	if len(sums) == 0 {
		return sums
	}

	sorted := make([]Summary, len(sums))
	copy(sorted, sums)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].messageIDs) > len(sorted[j].messageIDs)
	})

	var unique []Summary
	for _, cur := range sorted {
		if len(cur.messageIDs) == 0 {
			unique = append(unique, cur)
			continue
		}
		superseded := false
		for _, kept := range unique {
			if len(kept.messageIDs) > 0 && isSubset(cur.messageIDs, kept.messageIDs) {
				superseded = true
				break
			}
		}
		if !superseded {
			unique = append(unique, cur)
		}
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].LastTime.After(unique[j].LastTime)
	})
	return unique
}

func isSubset(sub, super map[string]struct{}) bool {
	if len(sub) > len(super) {
		return false
	}
	for id := range sub {
		if _, ok := super[id]; !ok {
			return false
		}
	}
	return true
}

// Bucket labels a session's recency for listing group headers.
func Bucket(t, now time.Time) string {
	if t.IsZero() {
		return "Older"
	}
	t = t.Local()
	now = now.Local()

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case !t.Before(today):
		return "Today"
	case !t.Before(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case !t.Before(today.AddDate(0, 0, -6)):
		return "This Week"
	case !t.Before(today.AddDate(0, -1, 0)):
		return "This Month"
	}
	return "Older"
}
