package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient_stock")
	ErrInvalidMovement   = errors.New("invalid movement")
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrInvalidEvent      = errors.New("invalid event")
)

// InsufficientStock is raised by the ledger writer when a SELL would take
// on-hand stock below zero. It is a final business rejection.
type InsufficientStock struct {
	StoreID   string
	ProductID string
	Available int
	Requested int
}

func (e *InsufficientStock) Error() string {
	return fmt.Sprintf("insufficient_stock: store=%s product=%s available=%d requested=%d",
		e.StoreID, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStock) Is(target error) bool {
	return target == ErrInsufficientStock
}

type ShortageDetail struct {
	SkuID     string `json:"sku_id"`
	Available int    `json:"available"`
	Message   string `json:"message"`
}

func NewShortageDetail(skuID string, available int) ShortageDetail {
	return ShortageDetail{
		SkuID:     skuID,
		Available: available,
		Message:   fmt.Sprintf("Stock changed. Available: %d", available),
	}
}

// InsufficientStockError aggregates every short line of a pre-check.
type InsufficientStockError struct {
	Details []ShortageDetail
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d item(s)", len(e.Details))
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsRejection reports whether err is a business rejection that retrying the
// same request will not fix.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidMovement) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrUnknownEventType)
}

// ShortageDetails extracts per-item shortage details from err. A single-item
// InsufficientStock is reported as one detail.
func ShortageDetails(err error) []ShortageDetail {
	var multi *InsufficientStockError
	if errors.As(err, &multi) {
		return multi.Details
	}
	var single *InsufficientStock
	if errors.As(err, &single) {
		return []ShortageDetail{NewShortageDetail(single.ProductID, single.Available)}
	}
	return nil
}

// Wire codes for rejections, shared by the HTTP and gRPC surfaces.
const (
	CodeInsufficientStock = "insufficient_stock"
	CodeInvalidMovement   = "invalid_movement"
	CodeInvalidEvent      = "invalid_event"
	CodeUnknownEventType  = "unknown_event_type"
)

// ErrorCode returns the wire code for a rejection, or "" for anything else.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return CodeInsufficientStock
	case errors.Is(err, ErrInvalidMovement):
		return CodeInvalidMovement
	case errors.Is(err, ErrInvalidEvent):
		return CodeInvalidEvent
	case errors.Is(err, ErrUnknownEventType):
		return CodeUnknownEventType
	}
	return ""
}

// ErrorFromCode rebuilds a typed rejection received over the wire.
func ErrorFromCode(code, message string, details []ShortageDetail) error {
	switch code {
	case CodeInsufficientStock:
		return &InsufficientStockError{Details: details}
	case CodeInvalidMovement:
		return fmt.Errorf("%w: %s", ErrInvalidMovement, message)
	case CodeInvalidEvent:
		return fmt.Errorf("%w: %s", ErrInvalidEvent, message)
	case CodeUnknownEventType:
		return fmt.Errorf("%w: %s", ErrUnknownEventType, message)
	}
	return fmt.Errorf("rejected (%s): %s", code, message)
}
