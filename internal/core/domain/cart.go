package domain

import "time"

type StockLimitReason string

const (
	StockLimitCapped       StockLimitReason = "capped"
	StockLimitOutOfStock   StockLimitReason = "out_of_stock"
	StockLimitUnknownStock StockLimitReason = "unknown_stock"
)

// StockLimitEvent is attached to a cart line when its last mutation was clamped.
type StockLimitEvent struct {
	Reason    StockLimitReason
	Requested int
	Available int
	At        time.Time
}

type CartItem struct {
	ID            string
	ProductID     string
	SKU           string
	Barcode       string
	Name          string
	Quantity      int
	UnitSellMinor *int64
	StockLimit    *StockLimitEvent
}

// StockKeys returns the primary and secondary cache keys for the line.
func (i CartItem) StockKeys() (primary, secondary string) {
	primary = i.ProductID
	if primary == "" {
		primary = i.SKU
	}
	return primary, i.Barcode
}

// DeductionSKU prefers sku, then barcode, then the line id.
func (i CartItem) DeductionSKU() string {
	if i.SKU != "" {
		return i.SKU
	}
	if i.Barcode != "" {
		return i.Barcode
	}
	return i.ID
}
