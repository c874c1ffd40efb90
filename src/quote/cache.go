package quote

import (
	"strings"
	"sync"
	"time"

	"ir-stock-service/src/models"
)

const DefaultCacheTTL = 5 * time.Second

type cacheEntry struct {
	data      *models.MQuote
	timestamp time.Time
	ttl       time.Duration
}

// QuoteCache keeps the last quote per symbol for a short TTL. Safe for
// concurrent use.
type QuoteCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewQuoteCache(ttl time.Duration, now func() time.Time) *QuoteCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if now == nil {
		now = time.Now
	}
	return &QuoteCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

// -----------------------------------------------------------------------------

// Get returns the cached quote if it has not expired.
func (c *QuoteCache) Get(symbol string) (*models.MQuote, bool) {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(symbol)]
	c.mu.RUnlock()

	if !ok || c.expired(entry) {
		return nil, false
	}
	return entry.data, true
}

// -----------------------------------------------------------------------------

func (c *QuoteCache) Set(symbol string, q *models.MQuote) {
	c.mu.Lock()
	c.entries[cacheKey(symbol)] = cacheEntry{data: q, timestamp: c.now(), ttl: c.ttl}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

// IsExpired is true for unknown symbols.
func (c *QuoteCache) IsExpired(symbol string) bool {
	c.mu.RLock()
	entry, ok := c.entries[cacheKey(symbol)]
	c.mu.RUnlock()
	return !ok || c.expired(entry)
}

// -----------------------------------------------------------------------------

func (c *QuoteCache) expired(e cacheEntry) bool {
	return c.now().Sub(e.timestamp) >= e.ttl
}

func cacheKey(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
