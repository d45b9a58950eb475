package model

import "time"

// LockRecord is stored in the corpus log directory while a run holds the corpus.
type LockRecord struct {
	HolderNonce string    `json:"holder_nonce"`
	RunID       string    `json:"run_id"`
	Hostname    string    `json:"hostname,omitempty"`
	PID         int       `json:"pid"`
	AcquiredAt  time.Time `json:"acquired_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Purpose     string    `json:"purpose,omitempty"`
}

// IsExpired returns true if the lock has expired.
func (l *LockRecord) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// LockState represents the current state of a lock.
type LockState string

const (
	LockStateHeld    LockState = "held"
	LockStateExpired LockState = "expired"
	LockStateFree    LockState = "free"
)
