package domain

import (
	"fmt"
	"time"
)

type MovementType string

const (
	MovementReceive MovementType = "RECEIVE"
	MovementSell    MovementType = "SELL"
	MovementAdjust  MovementType = "ADJUST"
)

func (t MovementType) Valid() bool {
	switch t {
	case MovementReceive, MovementSell, MovementAdjust:
		return true
	}
	return false
}

// InventorySnapshot is the on-hand quantity for one (store, product) pair.
// Only the ledger writer mutates it.
type InventorySnapshot struct {
	StoreID   string
	ProductID string
	// Barcode is the last barcode a movement tagged the product with, if any
	Barcode   string
	Quantity  int
	UpdatedAt time.Time
}

// LedgerEntry is an immutable stock movement row.
type LedgerEntry struct {
	ID            string
	StoreID       string
	ProductID     string
	MovementType  MovementType
	Delta         int
	UnitCostMinor *int64
	UnitSellMinor *int64
	ReferenceType string
	ReferenceID   string
	CreatedAt     time.Time
}

// Movement is a request to change on-hand stock. Quantity is always
// non-negative; direction comes from Type. For ADJUST, Quantity is the
// counted on-hand quantity and the applied delta is derived from it.
type Movement struct {
	StoreID       string
	ProductID     string
	Type          MovementType
	Quantity      int
	UnitCostMinor *int64
	UnitSellMinor *int64
	ReferenceType string
	ReferenceID   string
	// Barcode, when set, tags the product's snapshot so device caches can
	// resolve it by barcode.
	Barcode string
}

func (m Movement) Validate() error {
	if m.StoreID == "" || m.ProductID == "" {
		return fmt.Errorf("%w: store and product are required", ErrInvalidMovement)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown movement type %q", ErrInvalidMovement, m.Type)
	}
	if m.Type == MovementAdjust {
		if m.Quantity < 0 {
			return fmt.Errorf("%w: counted quantity cannot be negative", ErrInvalidMovement)
		}
		return nil
	}
	if m.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidMovement)
	}
	return nil
}

// Next returns the on-hand quantity after applying the movement to current,
// and the signed delta that gets recorded.
func (m Movement) Next(current int) (next, delta int) {
	switch m.Type {
	case MovementReceive:
		delta = m.Quantity
	case MovementSell:
		delta = -m.Quantity
	case MovementAdjust:
		delta = m.Quantity - current
	}
	return current + delta, delta
}

// StockLevel is one line of a stock listing or a push update.
type StockLevel struct {
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode,omitempty"`
	Quantity  int    `json:"quantity"`
}

func Int64(v int64) *int64 {
	return &v
}
