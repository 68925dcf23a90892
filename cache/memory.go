package cache

import (
	"context"
	"sync"
	"time"

	"github.com/optimode/mxverify/types"
)

// sweepInterval is the minimum time between full expiry sweeps in Set.
const sweepInterval = time.Minute

// Memory is a thread-safe in-process Store. Expired entries are dropped
// when they are next read, and by a sweep run from Set at most once per
// sweepInterval.
type Memory struct {
	mu        sync.Mutex
	entries   map[string]entry
	nextSweep time.Time
	// now is injectable for testing
	now func() time.Time
}

type entry struct {
	result  types.ValidationResult
	expires time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates an in-memory store reading time from now (for testing).
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, key string) (types.ValidationResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return types.ValidationResult{}, false, nil
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return types.ValidationResult{}, false, nil
	}
	return e.result, true, nil
}

func (m *Memory) Set(_ context.Context, key string, result types.ValidationResult, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !now.Before(m.nextSweep) {
		m.sweep(now)
	}
	m.entries[key] = entry{result: result, expires: now.Add(ttl)}
	return nil
}

// sweep drops every expired entry. m.mu must be held.
func (m *Memory) sweep(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.nextSweep = now.Add(sweepInterval)
}

// Len returns the number of entries in the cache (for diagnostics),
// including expired entries not read since.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
