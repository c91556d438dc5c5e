// Package stockcap clamps cart quantities against last-known stock. The
// functions are pure: no I/O, no clock, no shared state.
package stockcap

import "github.com/rl1809/pos-inventory/internal/core/domain"

// Stock is a last-known availability. The zero value is unknown.
type Stock struct {
	Qty   int
	Known bool
}

var Unknown = Stock{}

func Known(qty int) Stock {
	return Stock{Qty: qty, Known: true}
}

// FromLookup adapts a (qty, ok) cache lookup.
func FromLookup(qty int, ok bool) Stock {
	return Stock{Qty: qty, Known: ok}
}

type AddResult struct {
	RequestedQty int
	NextQty      int
	AddedQty     int
	Capped       bool
	OutOfStock   bool
	UnknownStock bool
}

type UpdateResult struct {
	RequestedQty int
	NextQty      int
	Capped       bool
	OutOfStock   bool
	UnknownStock bool
}

// CapAdd adds addQty to currentQty without exceeding stock. Unknown stock
// refuses the add entirely.
func CapAdd(currentQty, addQty int, stock Stock) AddResult {
	currentQty = max(currentQty, 0)
	addQty = max(addQty, 0)
	requested := currentQty + addQty

	res := AddResult{RequestedQty: requested, NextQty: currentQty}
	if !stock.Known {
		res.UnknownStock = true
		return res
	}
	if stock.Qty <= 0 {
		// The whole line is clamped away, including units already in it.
		res.NextQty = 0
		res.OutOfStock = requested > 0
		res.Capped = requested > 0
		return res
	}

	res.NextQty = min(requested, stock.Qty)
	res.Capped = res.NextQty < requested
	res.AddedQty = max(res.NextQty-currentQty, 0)
	return res
}

// CapRequested sets an absolute quantity. With unknown stock a decrease is
// still allowed; only increases are refused.
func CapRequested(currentQty, requestedQty int, stock Stock) UpdateResult {
	currentQty = max(currentQty, 0)
	requestedQty = max(requestedQty, 0)

	res := UpdateResult{RequestedQty: requestedQty}
	if !stock.Known {
		res.UnknownStock = true
		res.NextQty = min(requestedQty, currentQty)
		return res
	}
	if stock.Qty <= 0 {
		res.OutOfStock = requestedQty > 0
		res.Capped = requestedQty > 0
		return res
	}

	res.NextQty = min(requestedQty, stock.Qty)
	res.Capped = res.NextQty < requestedQty
	return res
}

// Reason maps a result to the limit reason recorded on a cart line, or ""
// when the mutation went through unclamped.
func (r AddResult) Reason() domain.StockLimitReason {
	return reason(r.UnknownStock, r.OutOfStock, r.Capped)
}

func (r UpdateResult) Reason() domain.StockLimitReason {
	return reason(r.UnknownStock, r.OutOfStock, r.Capped)
}

func reason(unknown, outOfStock, capped bool) domain.StockLimitReason {
	switch {
	case unknown:
		return domain.StockLimitUnknownStock
	case outOfStock:
		return domain.StockLimitOutOfStock
	case capped:
		return domain.StockLimitCapped
	}
	return ""
}
