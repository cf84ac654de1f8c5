package database

import (
	"sync"
	"time"
)

// recentCache holds the last RecentMessages result so repeated history
// requests don't hit SQLite on every new connection. It is invalidated
// on every append, so a read after a send always reflects that send;
// the TTL only bounds staleness across restarts of the read path.
type recentCache struct {
	mu       sync.Mutex
	limit    int
	messages []*ChatMessage
	expires  time.Time
	ttl      time.Duration
}

func newRecentCache(ttl time.Duration) *recentCache {
	return &recentCache{ttl: ttl}
}

// get returns the cached page if it matches the requested limit and
// has not expired.
func (c *recentCache) get(limit int) ([]*ChatMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.messages == nil || c.limit != limit || time.Now().After(c.expires) {
		return nil, false
	}
	return c.messages, true
}

func (c *recentCache) put(limit int, messages []*ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limit = limit
	c.messages = messages
	c.expires = time.Now().Add(c.ttl)
}

func (c *recentCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
}
