package caching

import (
	"sort"
	"sync"

	"github.com/dtnitsch/site-repair/models"
)

// Cache memoizes asset recovery outcomes by logical path.
// It lives for one run and is never persisted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]models.Outcome
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]models.Outcome)}
}

// Get returns the outcome recorded for key and true on a hit.
func (c *Cache) Get(key string) (models.Outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.entries[key]
	return o, ok
}

// Set records the outcome for key. The first outcome wins.
func (c *Cache) Set(key string, o models.Outcome) models.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[key]; ok {
		return prev
	}
	c.entries[key] = o
	return o
}

// Len returns the number of memoized outcomes.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the memoized keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
