package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-inventory/internal/client/stockcache"
	"github.com/rl1809/pos-inventory/internal/client/stockcap"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

func line(id, sku string) domain.CartItem {
	return domain.CartItem{ID: id, ProductID: sku, SKU: sku, Name: "item " + id}
}

func TestAdd_RapidAddsCapAtStock(t *testing.T) {
	c := New()
	item := line("l1", "p1")

	for i := 0; i < 20; i++ {
		res := c.Add(item, 1, stockcap.Known(1))
		assert.Equal(t, i > 0, res.Capped, "call %d", i)
	}

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	require.NotNil(t, items[0].StockLimit)
	assert.Equal(t, domain.StockLimitCapped, items[0].StockLimit.Reason)
	assert.Equal(t, 1, items[0].StockLimit.Available)
}

func TestAdd_UnknownStockNotAdded(t *testing.T) {
	c := New()

	res := c.Add(line("l1", "p1"), 2, stockcap.Unknown)

	assert.True(t, res.UnknownStock)
	assert.Empty(t, c.Items())
}

func TestAdd_OutOfStockNotAdded(t *testing.T) {
	c := New()

	res := c.Add(line("l1", "p1"), 1, stockcap.Known(0))

	assert.True(t, res.OutOfStock)
	assert.Empty(t, c.Items())
}

func TestAdd_ZeroAddAfterStockGoneReportsRemoval(t *testing.T) {
	c := New()
	c.Add(line("l1", "p1"), 3, stockcap.Known(5))

	res := c.Add(line("l1", "p1"), 0, stockcap.Known(0))

	assert.True(t, res.Capped)
	assert.True(t, res.OutOfStock)
	assert.Equal(t, domain.StockLimitOutOfStock, res.Reason())
	assert.Empty(t, c.Items())
}

func TestAdd_ClearsLimitWhenUnclamped(t *testing.T) {
	c := New()
	c.Add(line("l1", "p1"), 5, stockcap.Known(2))
	require.NotNil(t, c.Items()[0].StockLimit)

	c.Add(line("l1", "p1"), 1, stockcap.Known(10))

	items := c.Items()
	assert.Equal(t, 3, items[0].Quantity)
	assert.Nil(t, items[0].StockLimit)
}

func TestSetQuantity(t *testing.T) {
	c := New()
	c.Add(line("l1", "p1"), 1, stockcap.Known(5))

	res, err := c.SetQuantity("l1", 9, stockcap.Known(5))
	require.NoError(t, err)
	assert.True(t, res.Capped)
	assert.Equal(t, 5, c.Items()[0].Quantity)

	_, err = c.SetQuantity("l1", 0, stockcap.Known(5))
	require.NoError(t, err)
	assert.Empty(t, c.Items())

	_, err = c.SetQuantity("missing", 1, stockcap.Known(5))
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestNormalizeToStock(t *testing.T) {
	c := New()
	c.Add(line("gone", "p-gone"), 3, stockcap.Known(10))
	c.Add(line("over", "bulk-cap"), 9, stockcap.Known(10))
	c.Add(line("fine", "p-fine"), 1, stockcap.Known(10))
	c.Add(line("unknown", "p-unknown"), 4, stockcap.Known(10))

	stock := map[string]int{"p-gone": 0, "bulk-cap": 2, "p-fine": 5}
	report := c.NormalizeToStock(func(primary, secondary string) stockcap.Stock {
		qty, ok := stock[primary]
		return stockcap.FromLookup(qty, ok)
	})

	assert.Equal(t, []string{"gone"}, report.Removed)
	assert.Equal(t, []string{"over"}, report.Capped)

	items := c.Items()
	require.Len(t, items, 3)
	assert.Equal(t, "over", items[0].ID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, domain.StockLimitCapped, items[0].StockLimit.Reason)
	assert.Equal(t, "fine", items[1].ID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, "unknown", items[2].ID)
	assert.Equal(t, 4, items[2].Quantity)
}

func TestBindToCache_NormalizesOnRefresh(t *testing.T) {
	cache := stockcache.New()
	c := New()
	c.Add(domain.CartItem{ID: "l1", SKU: "bulk-cap", Barcode: "bc-1"}, 9, stockcap.Known(20))

	var reports []NormalizeReport
	unbind := c.BindToCache(cache, func(r NormalizeReport) { reports = append(reports, r) })
	defer unbind()

	cache.Replace(stockcache.EntriesFromLevels([]domain.StockLevel{{ProductID: "bulk-cap", Quantity: 2}}))

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"l1"}, reports[0].Capped)

	// Barcode-only entries still resolve through the secondary key.
	cache.Replace([]stockcache.Entry{{Key: "bc-1", Stock: 0}})
	assert.Empty(t, c.Items())
}
