package codecache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is a process-local Cache backed by ttlcache. Reads compare against
// the configured clock; the library's cleaner evicts expired items once
// Start has been called.
type Memory struct {
	items *ttlcache.Cache[string, memoryEntry]
	now   func() time.Time

	mu      sync.Mutex
	running bool
}

func NewMemory() *Memory {
	return &Memory{
		items: ttlcache.New[string, memoryEntry](
			ttlcache.WithTTL[string, memoryEntry](DefaultTTL),
			// A hit must not extend the handoff window.
			ttlcache.WithDisableTouchOnHit[string, memoryEntry](),
		),
		now: time.Now,
	}
}

// WithClock replaces the time source used on reads, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m.items.Set(key, memoryEntry{value: value, expiresAt: m.now().Add(ttl)}, ttl)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	item := m.items.Get(key)
	if item == nil {
		return "", false, nil
	}
	e := item.Value()
	if !m.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Start runs the expiry cleaner in the background. Calling it again while
// running is a no-op.
func (m *Memory) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	go m.items.Start()
}

// Stop halts the cleaner started by Start.
func (m *Memory) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.items.Stop()
}

// Len returns the number of items held by the cache.
func (m *Memory) Len() int {
	return m.items.Len()
}
