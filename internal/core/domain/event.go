package domain

import (
	"encoding/json"
	"time"
)

const (
	EventSaleCompleted    = "sale.completed"
	EventPurchaseReceived = "purchase.received"
	EventStockAdjusted    = "stock.adjusted"
)

// Reference types written on ledger entries created from events.
const (
	ReferenceSale       = "sale"
	ReferencePurchase   = "purchase"
	ReferenceAdjustment = "adjustment"
)

// ProcessedEvent marks an origin event id as already applied.
type ProcessedEvent struct {
	EventID    string
	DeviceID   string
	StoreID    string
	EventType  string
	ReceivedAt time.Time
}

// InboundEvent is an origin-generated event arriving at the server, either
// replayed from a device outbox or consumed from the message bus.
type InboundEvent struct {
	EventID   string
	DeviceID  string
	StoreID   string
	EventType string
	Payload   json.RawMessage
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxParked  OutboxStatus = "parked"
)

// OutboxEvent is a device-local queued action awaiting server acknowledgement.
type OutboxEvent struct {
	ID        string
	Seq       uint64
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	Attempts  int
	LastError string
	Status    OutboxStatus
}

type SaleLine struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitSellMinor *int64 `json:"unit_sell_minor,omitempty"`
}

type SaleCompleted struct {
	StoreID string     `json:"store_id"`
	SaleID  string     `json:"sale_id"`
	Lines   []SaleLine `json:"lines"`
	Log     []string   `json:"log,omitempty"`
}

type PurchaseLine struct {
	ProductID     string `json:"product_id"`
	Barcode       string `json:"barcode,omitempty"`
	Quantity      int    `json:"quantity"`
	UnitCostMinor *int64 `json:"unit_cost_minor,omitempty"`
}

type PurchaseReceived struct {
	StoreID    string         `json:"store_id"`
	PurchaseID string         `json:"purchase_id"`
	Lines      []PurchaseLine `json:"lines"`
}

type CountLine struct {
	ProductID string `json:"product_id"`
	Barcode   string `json:"barcode,omitempty"`
	Counted   int    `json:"counted"`
}

type StockAdjusted struct {
	StoreID      string      `json:"store_id"`
	AdjustmentID string      `json:"adjustment_id"`
	Reason       string      `json:"reason,omitempty"`
	Lines        []CountLine `json:"lines"`
}
