package types

import "time"

// HistoryEntry is an immutable record of one transition. Entries are only
// ever appended; rollback truncates downstream stage data but the entry that
// recorded the rollback itself is appended like any other.
type HistoryEntry struct {
	FromState State     `json:"from_state"`
	Action    Action    `json:"action"`
	ToState   State     `json:"to_state"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}
