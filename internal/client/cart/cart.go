// Package cart holds the device's open cart and keeps its lines within
// last-known stock.
package cart

import (
	"errors"
	"sync"
	"time"

	"github.com/rl1809/pos-inventory/internal/client/stockcache"
	"github.com/rl1809/pos-inventory/internal/client/stockcap"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

var ErrLineNotFound = errors.New("cart line not found")

// StockResolver returns last-known stock for a line's keys
type StockResolver func(primary, secondary string) stockcap.Stock

type NormalizeReport struct {
	Removed []string
	Capped  []string
}

func (r NormalizeReport) Changed() bool {
	return len(r.Removed) > 0 || len(r.Capped) > 0
}

type Cart struct {
	mu    sync.Mutex
	items []domain.CartItem
	now   func() time.Time
}

func New() *Cart {
	return &Cart{now: time.Now}
}

// Add adds qty of item, merging with an existing line of the same id. A new
// line that would end up at zero is not created.
func (c *Cart) Add(item domain.CartItem, qty int, stock stockcap.Stock) stockcap.AddResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(item.ID)
	current := 0
	if idx >= 0 {
		current = c.items[idx].Quantity
	}

	res := stockcap.CapAdd(current, qty, stock)
	limit := c.limitEvent(res.Reason(), res.RequestedQty, stock)

	switch {
	case idx >= 0 && res.NextQty == 0:
		c.items = append(c.items[:idx], c.items[idx+1:]...)
	case idx >= 0:
		c.items[idx].Quantity = res.NextQty
		c.items[idx].StockLimit = limit
	case res.NextQty > 0:
		item.Quantity = res.NextQty
		item.StockLimit = limit
		c.items = append(c.items, item)
	}
	return res
}

// SetQuantity sets a line to an absolute quantity. A line that ends up at
// zero is removed.
func (c *Cart) SetQuantity(id string, qty int, stock stockcap.Stock) (stockcap.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return stockcap.UpdateResult{}, ErrLineNotFound
	}

	res := stockcap.CapRequested(c.items[idx].Quantity, qty, stock)
	if res.NextQty == 0 {
		c.items = append(c.items[:idx], c.items[idx+1:]...)
		return res, nil
	}
	c.items[idx].Quantity = res.NextQty
	c.items[idx].StockLimit = c.limitEvent(res.Reason(), res.RequestedQty, stock)
	return res, nil
}

func (c *Cart) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return false
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return true
}

// RemoveLines drops every line whose id is in ids.
func (c *Cart) RemoveLines(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := c.items[:0]
	for _, it := range c.items {
		if _, ok := drop[it.ID]; !ok {
			kept = append(kept, it)
		}
	}
	c.items = kept
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.CartItem(nil), c.items...)
}

// NormalizeToStock re-clamps every line against resolve. Lines at zero stock
// are removed, lines above stock are capped, lines with unknown stock are
// left as they are.
func (c *Cart) NormalizeToStock(resolve StockResolver) NormalizeReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report NormalizeReport
	kept := c.items[:0]
	for _, it := range c.items {
		stock := resolve(it.StockKeys())
		if !stock.Known {
			kept = append(kept, it)
			continue
		}
		if stock.Qty <= 0 {
			report.Removed = append(report.Removed, it.ID)
			continue
		}
		if it.Quantity > stock.Qty {
			it.StockLimit = c.limitEvent(domain.StockLimitCapped, it.Quantity, stock)
			it.Quantity = stock.Qty
			report.Capped = append(report.Capped, it.ID)
		}
		kept = append(kept, it)
	}
	c.items = kept
	return report
}

// BindToCache normalizes the cart after every cache change. onChange, if not
// nil, is called when a normalization pass altered the cart.
func (c *Cart) BindToCache(cache *stockcache.Cache, onChange func(NormalizeReport)) (unbind func()) {
	return cache.Subscribe(func(uint64) {
		report := c.NormalizeToStock(cache.Stock)
		if onChange != nil && report.Changed() {
			onChange(report)
		}
	})
}

func (c *Cart) indexOf(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func (c *Cart) limitEvent(reason domain.StockLimitReason, requested int, stock stockcap.Stock) *domain.StockLimitEvent {
	if reason == "" {
		return nil
	}
	return &domain.StockLimitEvent{
		Reason:    reason,
		Requested: requested,
		Available: stock.Qty,
		At:        c.now(),
	}
}
