package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Memory is the in-process Store used when no redis is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type memoryEntry struct {
	value    []byte
	storedAt time.Time
}

func NewMemory(cfg Config) *Memory {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     cfg.TTL,
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		atomic.AddInt64(&m.misses, 1)
		return nil, false, nil
	}
	if m.expired(entry) {
		atomic.AddInt64(&m.misses, 1)
		m.mu.Lock()
		if current, still := m.entries[key]; still && m.expired(current) {
			delete(m.entries, key)
			m.evictions++
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	atomic.AddInt64(&m.hits, 1)
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxSize {
		m.evictOldestLocked()
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries[key] = memoryEntry{value: stored, storedAt: m.now()}
	atomic.AddInt64(&m.sets, 1)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		delete(m.entries, key)
		atomic.AddInt64(&m.deletes, 1)
	}
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, entry := range m.entries {
		if m.expired(entry) {
			delete(m.entries, key)
			removed++
		}
	}
	m.evictions += int64(removed)
	return removed
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Stats() Stats {
	m.mu.RLock()
	evictions := m.evictions
	m.mu.RUnlock()
	return Stats{
		Hits:      atomic.LoadInt64(&m.hits),
		Misses:    atomic.LoadInt64(&m.misses),
		Sets:      atomic.LoadInt64(&m.sets),
		Deletes:   atomic.LoadInt64(&m.deletes),
		Evictions: evictions,
		Size:      m.Len(),
		TTL:       m.ttl,
	}
}

func (m *Memory) expired(entry memoryEntry) bool {
	return m.now().Sub(entry.storedAt) > m.ttl
}

// evictOldestLocked must be called with mu held for writing.
func (m *Memory) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range m.entries {
		if oldestKey == "" || entry.storedAt.Before(oldest) {
			oldestKey, oldest = key, entry.storedAt
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
		m.evictions++
	}
}
