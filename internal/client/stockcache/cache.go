// Package stockcache keeps the device's last-known stock levels, keyed by
// product id and barcode, and tells listeners when they change.
package stockcache

import (
	"sync"

	"github.com/rl1809/pos-inventory/internal/client/stockcap"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

type Entry struct {
	Key   string
	Stock int
}

type Listener func(version uint64)

// Cache is owned by one device process. Reads and writes are safe from any
// goroutine; listeners run on the writer's goroutine after the lock is released.
type Cache struct {
	mu        sync.RWMutex
	stock     map[string]int
	version   uint64
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

func New() *Cache {
	return &Cache{
		stock:     make(map[string]int),
		listeners: make(map[uint64]Listener),
	}
}

// Upsert merges entries into the cache. Negative stock is stored as zero.
func (c *Cache) Upsert(entries []Entry) uint64 {
	return c.mutate(func() {
		for _, e := range entries {
			if e.Key == "" {
				continue
			}
			c.stock[e.Key] = max(e.Stock, 0)
		}
	})
}

// Replace swaps the whole cache for a fresh server listing.
func (c *Cache) Replace(entries []Entry) uint64 {
	return c.mutate(func() {
		c.stock = make(map[string]int, len(entries))
		for _, e := range entries {
			if e.Key == "" {
				continue
			}
			c.stock[e.Key] = max(e.Stock, 0)
		}
	})
}

func (c *Cache) mutate(apply func()) uint64 {
	c.mu.Lock()
	apply()
	c.version++
	version := c.version
	listeners := make([]Listener, 0, len(c.order))
	for _, id := range c.order {
		listeners = append(listeners, c.listeners[id])
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(version)
	}
	return version
}

// Resolve looks up primary, then secondary. ok is false when neither key
// has an entry.
func (c *Cache) Resolve(primary, secondary string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if primary != "" {
		if qty, ok := c.stock[primary]; ok {
			return qty, true
		}
	}
	if secondary != "" {
		if qty, ok := c.stock[secondary]; ok {
			return qty, true
		}
	}
	return 0, false
}

// Stock is Resolve in the form the cap engine takes.
func (c *Cache) Stock(primary, secondary string) stockcap.Stock {
	return stockcap.FromLookup(c.Resolve(primary, secondary))
}

func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.stock)
}

// Subscribe registers l and returns a function that removes it. Listeners
// are called in registration order.
func (c *Cache) Subscribe(l Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.listeners[id] = l
	c.order = append(c.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners, id)
			for i, v := range c.order {
				if v == id {
					c.order = append(c.order[:i:i], c.order[i+1:]...)
					break
				}
			}
		})
	}
}

// EntriesFromLevels keys each level by product id and, when present, barcode.
func EntriesFromLevels(levels []domain.StockLevel) []Entry {
	entries := make([]Entry, 0, len(levels)*2)
	for _, l := range levels {
		if l.ProductID != "" {
			entries = append(entries, Entry{Key: l.ProductID, Stock: l.Quantity})
		}
		if l.Barcode != "" && l.Barcode != l.ProductID {
			entries = append(entries, Entry{Key: l.Barcode, Stock: l.Quantity})
		}
	}
	return entries
}
