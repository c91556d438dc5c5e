// Package pb holds the inventory.v1 wire messages and gRPC service
// descriptor. Messages travel with the JSON codec registered in codec.go.
package pb

import "encoding/json"

type ShortageDetail struct {
	SkuId     string `json:"sku_id"`
	Available int64  `json:"available"`
	Message   string `json:"message"`
}

type StockLevel struct {
	ProductId string `json:"product_id"`
	Barcode   string `json:"barcode,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type ApplyMovementRequest struct {
	StoreId       string `json:"store_id"`
	ProductId     string `json:"product_id"`
	MovementType  string `json:"movement_type"`
	Quantity      int64  `json:"quantity"`
	UnitCostMinor *int64 `json:"unit_cost_minor,omitempty"`
	UnitSellMinor *int64 `json:"unit_sell_minor,omitempty"`
	ReferenceType string `json:"reference_type"`
	ReferenceId   string `json:"reference_id"`
	Barcode       string `json:"barcode,omitempty"`
}

type ApplyMovementResponse struct {
	Success bool             `json:"success"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message"`
	EntryId string           `json:"entry_id,omitempty"`
	Details []ShortageDetail `json:"details,omitempty"`
}

type FetchLedgerStockRequest struct {
	StoreId   string `json:"store_id"`
	ProductId string `json:"product_id"`
}

type FetchLedgerStockResponse struct {
	Quantity int64 `json:"quantity"`
}

type AvailabilityItem struct {
	SkuId    string `json:"sku_id"`
	Quantity int64  `json:"quantity"`
	Name     string `json:"name,omitempty"`
}

type EnsureAvailabilityRequest struct {
	StoreId string             `json:"store_id"`
	Items   []AvailabilityItem `json:"items"`
}

type EnsureAvailabilityResponse struct {
	Success bool             `json:"success"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message"`
	Details []ShortageDetail `json:"details,omitempty"`
}

type ListStockRequest struct {
	StoreId string `json:"store_id"`
}

type ListStockResponse struct {
	Levels []StockLevel `json:"levels"`
}

type SubmitEventRequest struct {
	EventId   string          `json:"event_id"`
	DeviceId  string          `json:"device_id"`
	StoreId   string          `json:"store_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

type SubmitEventResponse struct {
	Success   bool             `json:"success"`
	Duplicate bool             `json:"duplicate,omitempty"`
	Code      string           `json:"code,omitempty"`
	Message   string           `json:"message"`
	Details   []ShortageDetail `json:"details,omitempty"`
}

type WatchStockRequest struct {
	StoreId string `json:"store_id"`
}

type StockUpdate struct {
	StoreId string       `json:"store_id"`
	Levels  []StockLevel `json:"levels"`
}

func (x *SubmitEventRequest) GetEventId() string {
	if x != nil {
		return x.EventId
	}
	return ""
}

func (x *WatchStockRequest) GetStoreId() string {
	if x != nil {
		return x.StoreId
	}
	return ""
}
