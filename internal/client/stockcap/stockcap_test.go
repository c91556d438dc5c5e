package stockcap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

func TestCapAdd(t *testing.T) {
	tests := []struct {
		name    string
		current int
		add     int
		stock   Stock
		want    AddResult
	}{
		{"within stock", 1, 2, Known(5), AddResult{RequestedQty: 3, NextQty: 3, AddedQty: 2}},
		{"clamped", 2, 5, Known(4), AddResult{RequestedQty: 7, NextQty: 4, AddedQty: 2, Capped: true}},
		{"already at cap", 4, 1, Known(4), AddResult{RequestedQty: 5, NextQty: 4, Capped: true}},
		{"out of stock", 0, 1, Known(0), AddResult{RequestedQty: 1, Capped: true, OutOfStock: true}},
		{"negative stock", 0, 1, Known(-3), AddResult{RequestedQty: 1, Capped: true, OutOfStock: true}},
		{"stock gone under existing line", 3, 0, Known(0), AddResult{RequestedQty: 3, Capped: true, OutOfStock: true}},
		{"nothing against no stock", 0, 0, Known(0), AddResult{}},
		{"unknown stock", 2, 1, Unknown, AddResult{RequestedQty: 3, NextQty: 2, UnknownStock: true}},
		{"negative add", 2, -4, Known(5), AddResult{RequestedQty: 2, NextQty: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CapAdd(tt.current, tt.add, tt.stock))
		})
	}
}

func TestCapRequested(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		requested int
		stock     Stock
		want      UpdateResult
	}{
		{"within stock", 1, 3, Known(5), UpdateResult{RequestedQty: 3, NextQty: 3}},
		{"clamped", 1, 9, Known(2), UpdateResult{RequestedQty: 9, NextQty: 2, Capped: true}},
		{"lowering", 5, 1, Known(2), UpdateResult{RequestedQty: 1, NextQty: 1}},
		{"out of stock", 1, 2, Known(0), UpdateResult{RequestedQty: 2, Capped: true, OutOfStock: true}},
		{"unknown refuses increase", 2, 6, Unknown, UpdateResult{RequestedQty: 6, NextQty: 2, UnknownStock: true}},
		{"unknown allows decrease", 4, 1, Unknown, UpdateResult{RequestedQty: 1, NextQty: 1, UnknownStock: true}},
		{"zero", 3, 0, Known(5), UpdateResult{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CapRequested(tt.current, tt.requested, tt.stock))
		})
	}
}

func TestCapAdd_RapidAddsAgainstOneUnit(t *testing.T) {
	qty := 0
	for i := 0; i < 20; i++ {
		res := CapAdd(qty, 1, Known(1))
		if i == 0 {
			assert.False(t, res.Capped)
			assert.Equal(t, 1, res.AddedQty)
		} else {
			assert.True(t, res.Capped, "call %d", i)
			assert.Equal(t, 0, res.AddedQty)
		}
		qty = res.NextQty
	}
	assert.Equal(t, 1, qty)
}

func TestCap_NeverExceedsKnownStock(t *testing.T) {
	for stock := 1; stock <= 6; stock++ {
		for current := 0; current <= 8; current++ {
			for n := -1; n <= 8; n++ {
				add := CapAdd(current, n, Known(stock))
				assert.LessOrEqual(t, add.NextQty, stock)
				upd := CapRequested(current, n, Known(stock))
				assert.LessOrEqual(t, upd.NextQty, stock)
			}
		}
	}
}

func TestCapAdd_UnknownNeverIncreases(t *testing.T) {
	for current := 0; current <= 5; current++ {
		for add := 0; add <= 5; add++ {
			assert.LessOrEqual(t, CapAdd(current, add, Unknown).NextQty, current)
		}
	}
}

func TestCap_ReducedTotalAlwaysFlagged(t *testing.T) {
	for stock := -1; stock <= 4; stock++ {
		for current := 0; current <= 5; current++ {
			for n := 0; n <= 5; n++ {
				add := CapAdd(current, n, Known(stock))
				if add.NextQty < add.RequestedQty {
					assert.NotEmpty(t, add.Reason(), "CapAdd(%d,%d,%d)", current, n, stock)
				}
				upd := CapRequested(current, n, Known(stock))
				if upd.NextQty < upd.RequestedQty {
					assert.NotEmpty(t, upd.Reason(), "CapRequested(%d,%d,%d)", current, n, stock)
				}
			}
		}
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, domain.StockLimitUnknownStock, CapAdd(0, 1, Unknown).Reason())
	assert.Equal(t, domain.StockLimitOutOfStock, CapAdd(0, 1, Known(0)).Reason())
	assert.Equal(t, domain.StockLimitOutOfStock, CapAdd(3, 0, Known(0)).Reason())
	assert.Equal(t, domain.StockLimitCapped, CapRequested(0, 5, Known(2)).Reason())
	assert.Equal(t, domain.StockLimitReason(""), CapAdd(0, 1, Known(2)).Reason())
	assert.Equal(t, Known(3), FromLookup(3, true))
	assert.Equal(t, Unknown, FromLookup(0, false))
}
