// Package checkout turns a paid cart (or part of it) into a sale.completed
// event, sending it straight to the server when possible and through the
// outbox when not.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/client/cart"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

var ErrNothingToSell = errors.New("no cart lines selected for sale")

type Submitter interface {
	SubmitEvent(ctx context.Context, ev domain.InboundEvent) error
}

type Queue interface {
	EnqueueWithID(ctx context.Context, eventID, eventType string, payload any) (domain.OutboxEvent, error)
}

type Result struct {
	Partition    cart.SalePartition
	DeductionLog []string
	EventID      string
	// Queued is true when the sale went to the outbox instead of the server
	Queued bool
}

type Service struct {
	cart      *cart.Cart
	submitter Submitter
	queue     Queue
	storeID   string
	deviceID  string
	logger    *zap.Logger
	newID     func() string
}

func New(c *cart.Cart, submitter Submitter, queue Queue, storeID, deviceID string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cart:      c,
		submitter: submitter,
		queue:     queue,
		storeID:   storeID,
		deviceID:  deviceID,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Checkout records a confirmed-payment sale for the selected lines (all lines
// when selectedIDs is empty). Sold lines leave the cart; the rest stay. A
// server rejection leaves the cart untouched and is returned as is, so
// shortages can be shown per line.
func (s *Service) Checkout(ctx context.Context, selectedIDs []string, saleID string) (Result, error) {
	p := cart.Partition(s.cart.Items(), selectedIDs)
	if len(p.SaleItems) == 0 {
		return Result{Partition: p}, ErrNothingToSell
	}

	res := Result{
		Partition:    p,
		DeductionLog: cart.BuildDeductionLog(p.SaleItems, saleID),
		EventID:      s.newID(),
	}
	payload := domain.SaleCompleted{
		StoreID: s.storeID,
		SaleID:  saleID,
		Lines:   saleLines(p.SaleItems),
		Log:     res.DeductionLog,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return res, fmt.Errorf("encode sale: %w", err)
	}

	err = s.submitter.SubmitEvent(ctx, domain.InboundEvent{
		EventID:   res.EventID,
		DeviceID:  s.deviceID,
		StoreID:   s.storeID,
		EventType: domain.EventSaleCompleted,
		Payload:   raw,
	})
	switch {
	case err == nil:
	case domain.IsRejection(err):
		return res, err
	default:
		// The server may or may not have committed; the queued copy keeps the
		// same event id so a replay is deduplicated.
		if _, qerr := s.queue.EnqueueWithID(ctx, res.EventID, domain.EventSaleCompleted, payload); qerr != nil {
			return res, fmt.Errorf("queue sale after %v: %w", err, qerr)
		}
		res.Queued = true
		s.logger.Info("sale queued offline",
			zap.String("sale_id", saleID),
			zap.String("event_id", res.EventID),
			zap.Error(err))
	}

	ids := make([]string, 0, len(p.SaleItems))
	for _, it := range p.SaleItems {
		ids = append(ids, it.ID)
	}
	s.cart.RemoveLines(ids)
	return res, nil
}

func saleLines(items []domain.CartItem) []domain.SaleLine {
	lines := make([]domain.SaleLine, 0, len(items))
	for _, it := range items {
		product := it.ProductID
		if product == "" {
			product = it.DeductionSKU()
		}
		lines = append(lines, domain.SaleLine{
			ProductID:     product,
			Name:          it.Name,
			Quantity:      it.Quantity,
			UnitSellMinor: it.UnitSellMinor,
		})
	}
	return lines
}
