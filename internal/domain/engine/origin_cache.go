package engine

import (
	"sync"
	"time"
)

// OriginCacheEntry is a memoized origin verdict.
type OriginCacheEntry struct {
	Origin    string    `json:"origin"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	inserted  time.Time
}

// OriginCache maps an exact origin string to its verdict. Entries expire lazily on lookup;
// when full, the oldest inserted entry is evicted.
type OriginCache struct {
	mu       sync.Mutex
	capacity int
	now      func() time.Time
	data     map[string]OriginCacheEntry
}

func NewOriginCache(capacity int, now func() time.Time) *OriginCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if now == nil {
		now = time.Now
	}
	return &OriginCache{
		capacity: capacity,
		now:      now,
		data:     make(map[string]OriginCacheEntry),
	}
}

func (c *OriginCache) Get(origin string) (OriginCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[origin]
	if !ok {
		return OriginCacheEntry{}, false
	}
	if !c.now().Before(entry.ExpiresAt) {
		delete(c.data, origin)
		return OriginCacheEntry{}, false
	}
	return entry, true
}

// Set stores a verdict for ttl. A non-positive ttl stores nothing.
func (c *OriginCache) Set(origin string, allowed bool, reason string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.data[origin]; !exists && len(c.data) >= c.capacity {
		c.evictOldest()
	}
	c.data[origin] = OriginCacheEntry{
		Origin:    origin,
		Allowed:   allowed,
		Reason:    reason,
		ExpiresAt: now.Add(ttl),
		inserted:  now,
	}
}

func (c *OriginCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, v := range c.data {
		if first || v.inserted.Before(oldestTime) {
			oldestKey = k
			oldestTime = v.inserted
			first = false
		}
	}
	delete(c.data, oldestKey)
}

func (c *OriginCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]OriginCacheEntry)
}

// Resize changes the capacity, evicting the oldest entries if needed.
func (c *OriginCache) Resize(capacity int) {
	if capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capacity = capacity
	for len(c.data) > c.capacity {
		c.evictOldest()
	}
}

func (c *OriginCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
