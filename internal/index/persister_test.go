package index

// Corrupt damages the stored content in place.
func (m *MemoryPersister) Corrupt(fn func(p *Persisted)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data != nil {
		fn(m.data)
	}
}
