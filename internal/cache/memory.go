package cache

import (
	"context"
	"sync"
	"time"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is an in-memory implementation of Cache.
// Use this for tests or when both accounts run in one process without Redis.
// A ttl <= 0 keeps the entry until it is deleted, as Redis does.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	now     func() time.Time

	sweepEvery time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemoryCache creates a memory cache that sweeps expired entries every minute.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries:    make(map[string]*cacheEntry),
		now:        time.Now,
		sweepEvery: time.Minute,
		stop:       make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Get returns a copy of the value stored at key, or ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.live(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), entry.value...), nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.put(key, value, ttl)
	return nil
}

// SetNX stores value only if no live entry exists for key.
func (c *MemoryCache) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.live(key); ok {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.live(key)
	return ok, nil
}

// Close stops the sweeper. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// live and put must be called with mu held.
func (c *MemoryCache) live(key string) (*cacheEntry, bool) {
	entry, ok := c.entries[key]
	if !ok || entry.expired(c.now()) {
		return nil, false
	}
	return entry, true
}

func (c *MemoryCache) put(key string, value []byte, ttl time.Duration) {
	entry := &cacheEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}
	c.entries[key] = entry
}

func (c *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
