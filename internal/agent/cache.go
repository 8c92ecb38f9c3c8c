package agent

import (
	"strings"
	"sync"
	"time"

	"github.com/radeon-ai/reasoner/internal/synthesis"
)

type cacheEntry struct {
	resp      *synthesis.Response
	expiresAt time.Time
}

// responseCache is a bounded TTL cache keyed by session and normalized query.
// When full it evicts the oldest insertion.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	ttl     time.Duration
	max     int
}

func newResponseCache(ttl time.Duration, max int) *responseCache {
	if max <= 0 {
		max = 256
	}
	return &responseCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		max:     max,
	}
}

func cacheKey(sessionID, query, format string) string {
	return sessionID + "\x00" + strings.ToLower(strings.Join(strings.Fields(query), " ")) + "\x00" + format
}

func (c *responseCache) get(key string) (*synthesis.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.resp, true
}

func (c *responseCache) put(key string, resp *synthesis.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{resp: resp, expiresAt: time.Now().Add(c.ttl)}
}
