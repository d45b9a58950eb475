package model

import "time"

// EventType names a run journal event.
type EventType string

const (
	EventRunStarted   EventType = "run_started"
	EventRunCommitted EventType = "run_committed"
	EventRunAborted   EventType = "run_aborted"
)

// JournalRecord is one line of the run journal. Each record carries the hash
// of its predecessor so truncation or edits are detectable.
type JournalRecord struct {
	Timestamp  time.Time      `json:"timestamp"`
	Event      EventType      `json:"event"`
	RunID      string         `json:"run_id"`
	Details    map[string]any `json:"details,omitempty"`
	PrevHash   string         `json:"prev_hash"`
	RecordHash string         `json:"record_hash"`
}
