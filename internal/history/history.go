// Package history provides queries over a pipeline's append-only transition
// log: audit trails, per-state dwell time, and rollback-target validation.
package history

import (
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/blogcast/internal/types"
)

// ContainsState reports whether the pipeline has ever been in s, either as
// the origin or the destination of a recorded transition.
func ContainsState(entries []types.HistoryEntry, s types.State) bool {
	for _, e := range entries {
		if e.FromState == s || e.ToState == s {
			return true
		}
	}
	return false
}

// TimeInState sums the time spent in s across the transition log. The open
// interval of the current state is closed with now.
func TimeInState(entries []types.HistoryEntry, s types.State, now time.Time) time.Duration {
	var total time.Duration
	for i, e := range entries {
		if e.ToState != s {
			continue
		}
		end := now
		if i+1 < len(entries) {
			end = entries[i+1].Timestamp
		}
		if end.After(e.Timestamp) {
			total += end.Sub(e.Timestamp)
		}
	}
	return total
}

// FormatTrail renders a human-readable audit trail, one line per transition.
func FormatTrail(entries []types.HistoryEntry) []string {
	trail := make([]string, 0, len(entries))
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s --%s--> %s",
			e.Timestamp.Format(time.RFC3339), e.FromState, e.Action, e.ToState)
		if e.Note != "" {
			line += " (" + e.Note + ")"
		}
		trail = append(trail, line)
	}
	return trail
}

// Summarize renders the whole trail as a single block, for CLI output.
func Summarize(entries []types.HistoryEntry) string {
	return strings.Join(FormatTrail(entries), "\n")
}
