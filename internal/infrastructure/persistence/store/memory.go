package store

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory DurableStore used by tests and by the
// degraded mode the identity resolver falls back to when durable writes
// fail. A MaxEntries of 0 means unbounded.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	MaxEntries int

	// FailWrites forces every Set to fail, simulating a dead storage
	// backend in tests.
	FailWrites bool
}

type memoryEntry struct {
	value     string
	updatedAt time.Time
}

// NewMemoryStore creates an unbounded in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// NewBoundedMemoryStore creates an in-memory store that reports
// ErrQuotaExceeded once maxEntries distinct keys exist.
func NewBoundedMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), MaxEntries: maxEntries}
}

// Get returns the value for key, reporting presence explicitly.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set writes the value, honoring the entry quota.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrQuotaExceeded
	}
	if _, exists := m.entries[key]; !exists && m.MaxEntries > 0 && len(m.entries) >= m.MaxEntries {
		return ErrQuotaExceeded
	}
	m.entries[key] = memoryEntry{value: value, updatedAt: time.Now().UTC()}
	return nil
}

// Remove deletes the key. Removing a missing key is not an error.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// KeysWithPrefix returns all keys under the prefix, oldest write first so
// cleanup passes can evict in age order.
func (m *MemoryStore) KeysWithPrefix(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type aged struct {
		key string
		at  time.Time
	}
	var matches []aged
	for k, e := range m.entries {
		if strings.HasPrefix(k, prefix) {
			matches = append(matches, aged{k, e.updatedAt})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].at.Before(matches[j].at) })
	keys := make([]string, len(matches))
	for i, m := range matches {
		keys[i] = m.key
	}
	return keys, nil
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error { return nil }
