package lock

import "time"

// SetClock replaces the manager's clock in tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
