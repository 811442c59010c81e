// Package blobcache is the shared byte-blob store backing session
// sub-resources (player JS bodies, visitor data). It is best-effort:
// pipeline code treats an unavailable backend as a cache miss, never as a
// failure.
package blobcache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is applied on write when the caller does not override it.
const DefaultTTL = 48 * time.Hour

// Store is the minimal capability the pipeline depends on: get, set with
// TTL-on-write, remove.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	Remove(ctx context.Context, key string)
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store used as the fallback when no external
// backend is configured, and in tests.
type Memory struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemory creates an in-memory store. A non-positive ttl selects
// DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (m *Memory) Set(_ context.Context, key string, value []byte) {
	m.mu.Lock()
	m.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(m.ttl),
	}
	m.mu.Unlock()
}

func (m *Memory) Remove(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
