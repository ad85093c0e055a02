package threadcache

import (
	"context"
	"sync"
	"time"
)

// MemoryKV is an in-process KV store. Development fallback only: it does
// not survive restarts and is not shared across processes, so production
// deployments must use the SQLite or Postgres backend.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory KV store.
func NewMemory() *MemoryKV {
	return &MemoryKV{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (m *MemoryKV) get(key string) ([]byte, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryKV) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryKV) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		e.expiresAt = m.expiry(ttl)
		m.entries[key] = e
	}
	return nil
}

// Update holds the store lock for the whole read-modify-write, so
// concurrent merges on the same thread cannot lose updates.
func (m *MemoryKV) Update(_ context.Context, key string, ttl time.Duration, fn func(old []byte) ([]byte, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, _ := m.get(key)
	next, err := fn(old)
	if err != nil {
		return err
	}
	m.entries[key] = memoryEntry{value: next, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryKV) Close() error { return nil }

func (m *MemoryKV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
