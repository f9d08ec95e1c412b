package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is the in-process implementation, suitable for single-instance
// deployments. go-cache's janitor evicts expired entries in the background,
// which bounds memory without a sweep of our own.
type Memory struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemory() *Memory {
	return &Memory{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *Memory) Put(_ context.Context, key string, e Entry) {
	ttl := time.Until(e.ExpiresAt)
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Set(key, e, ttl)
}

func (m *Memory) Peek(_ context.Context, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Take holds the mutex across get+delete; go-cache has no native
// get-and-delete.
func (m *Memory) Take(_ context.Context, key string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok {
		return Entry{}, false
	}
	m.c.Delete(key)
	return v.(Entry), true
}

func (m *Memory) Remove(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Delete(key)
}
