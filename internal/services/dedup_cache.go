package services

import (
	"sync"
	"time"
)

// DedupCache remembers recently processed webhook message ids so that
// redelivered webhooks are dropped instead of reprocessed. Entries expire
// after a configurable TTL.
type DedupCache struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	done    chan struct{}
	stopped bool
}

// NewDedupCache creates a dedup cache with the given entry TTL and starts
// a background sweeper for expired entries
func NewDedupCache(ttl time.Duration) *DedupCache {
	c := &DedupCache{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		done:    make(chan struct{}),
	}

	go c.sweep()

	return c
}

// Seen reports whether the message id was already recorded within the TTL,
// recording it as a side effect when it was not. The check and the record
// happen under one lock so concurrent deliveries of the same id cannot both
// pass.
func (c *DedupCache) Seen(messageID string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if recorded, ok := c.entries[messageID]; ok {
		if now.Sub(recorded) < c.ttl {
			return true
		}
	}

	c.entries[messageID] = now
	return false
}

// Len returns the number of remembered message ids
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background sweeper
func (c *DedupCache) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.done)
}

// sweep periodically drops expired entries so the map does not grow without
// bound under sustained webhook traffic
func (c *DedupCache) sweep() {
	interval := c.ttl
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for id, recorded := range c.entries {
				if now.Sub(recorded) >= c.ttl {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		}
	}
}
