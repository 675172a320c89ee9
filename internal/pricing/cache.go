package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache holds one price for a fixed TTL.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu        sync.RWMutex
	price     decimal.Decimal
	fetchedAt time.Time
}

// NewCache creates an empty cache.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached price and true while it is younger than the TTL.
func (c *Cache) Get() (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl {
		return decimal.Zero, false
	}
	return c.price, true
}

// Set stores price as of now.
func (c *Cache) Set(price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.price = price
	c.fetchedAt = c.now()
}

// Age returns how long ago the price was stored, or false when empty.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetchedAt.IsZero() {
		return 0, false
	}
	return c.now().Sub(c.fetchedAt), true
}
