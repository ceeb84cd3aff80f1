package marketdata

import (
	"sync"
	"time"

	"github.com/Rahiq007/COMPSCI-520-Final-Project-sub001/models"
)

// cacheEntry owns the most recent accepted quote for one symbol plus
// fetch bookkeeping. Created on the first successful fetch, replaced in
// place on every later one, evicted when the last subscriber leaves.
type cacheEntry struct {
	quote               models.Quote
	lastSuccessfulFetch time.Time
	lastAttempt         time.Time
	consecutiveFailures int
}

// quoteCache is the symbol-keyed store of last accepted quotes.
type quoteCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

func newQuoteCache() *quoteCache {
	return &quoteCache{entries: make(map[string]*cacheEntry)}
}

// store replaces the cached quote for quote.Symbol and resets the
// failure counter. Callers must not pass quotes with non-positive
// prices; those are rejected at fetch acceptance.
func (c *quoteCache) store(quote models.Quote) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[quote.Symbol]
	if !ok {
		entry = &cacheEntry{}
		c.entries[quote.Symbol] = entry
	}
	entry.quote = quote
	entry.lastSuccessfulFetch = now
	entry.lastAttempt = now
	entry.consecutiveFailures = 0
}

// recordFailure notes a failed fetch attempt and returns the previous
// quote, if one exists, for stale-serving. Failures before the first
// successful fetch leave no trace; there is no entry to count them on.
func (c *quoteCache) recordFailure(symbol string) (models.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return models.Quote{}, false
	}
	entry.lastAttempt = time.Now()
	entry.consecutiveFailures++
	return entry.quote, true
}

// get returns the cached quote for a symbol, with an explicit presence
// flag rather than a zero-value placeholder.
func (c *quoteCache) get(symbol string) (models.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return models.Quote{}, false
	}
	return entry.quote, true
}

// snapshot returns a copy of the full cache entry for a symbol.
func (c *quoteCache) snapshot(symbol string) (cacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[symbol]
	if !ok {
		return cacheEntry{}, false
	}
	return *entry, true
}

// evict drops the entry for a symbol. Safe to call when absent.
func (c *quoteCache) evict(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

func (c *quoteCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
