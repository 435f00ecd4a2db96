package session

// ActiveLocks exposes the size of the lock table to tests.
func ActiveLocks(m *Manager) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
