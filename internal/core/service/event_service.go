package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/metrics"
	"github.com/rl1809/pos-inventory/internal/port"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// EventService applies origin events at most once. The processed event row is
// written in the same transaction as the stock movements it caused.
type EventService struct {
	ledger  *LedgerService
	guard   *AvailabilityGuard
	store   port.LedgerStore
	dedup   port.DedupCache
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewEventService wires the event intake. dedup may be nil.
func NewEventService(ledger *LedgerService, guard *AvailabilityGuard, dedup port.DedupCache, m *metrics.Metrics, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		ledger:  ledger,
		guard:   guard,
		store:   ledger.store,
		dedup:   dedup,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

type eventPlan struct {
	storeID   string
	movements []domain.Movement
	precheck  []AvailabilityItem
}

// Process applies ev and reports whether it was applied now or had been
// applied before. Business rejections (invalid payload, insufficient stock)
// are returned as errors and record nothing, so the same event id can be
// retried after the cause is fixed.
func (s *EventService) Process(ctx context.Context, ev domain.InboundEvent) (Outcome, error) {
	outcome, err := s.process(ctx, ev)
	label := outcome
	if err != nil {
		label = OutcomeFailed
		if domain.IsRejection(err) {
			label = OutcomeRejected
		}
	}
	s.metrics.EventReceived(ev.EventType, string(label))
	return outcome, err
}

func (s *EventService) process(ctx context.Context, ev domain.InboundEvent) (Outcome, error) {
	if ev.EventID == "" {
		return "", fmt.Errorf("%w: event id is required", domain.ErrInvalidEvent)
	}

	if s.seenBefore(ctx, ev.EventID) {
		return OutcomeDuplicate, nil
	}

	plan, err := planEvent(ev)
	if err != nil {
		return "", err
	}

	if len(plan.precheck) > 0 && s.guard != nil {
		if err := s.guard.EnsureAvailability(ctx, plan.storeID, plan.precheck); err != nil {
			return "", err
		}
	}

	start := time.Now()
	var (
		levels    []domain.StockLevel
		duplicate bool
	)
	err = s.ledger.retryOnLockTimeout(ctx, func() error {
		levels, duplicate = levels[:0], false
		return s.store.WithinTx(ctx, func(tx port.LedgerTx) error {
			processed, err := tx.IsEventProcessed(ctx, ev.EventID)
			if err != nil {
				return err
			}
			if processed {
				duplicate = true
				return nil
			}
			for _, m := range plan.movements {
				_, next, err := s.ledger.ApplyInTx(ctx, tx, m)
				if err != nil {
					return err
				}
				levels = append(levels, domain.StockLevel{ProductID: m.ProductID, Barcode: m.Barcode, Quantity: next})
			}
			return tx.RecordEvent(ctx, domain.ProcessedEvent{
				EventID:    ev.EventID,
				DeviceID:   ev.DeviceID,
				StoreID:    plan.storeID,
				EventType:  ev.EventType,
				ReceivedAt: s.now().UTC(),
			})
		})
	})
	if errors.Is(err, port.ErrDuplicateEvent) {
		duplicate, err = true, nil
	}
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.StockRejected("commit")
		}
		return "", err
	}

	s.remember(ctx, ev.EventID)
	if duplicate {
		return OutcomeDuplicate, nil
	}

	elapsed := time.Since(start).Seconds()
	for _, m := range plan.movements {
		s.metrics.MovementApplied(string(m.Type), elapsed)
	}
	s.ledger.publish(ctx, plan.storeID, levels)
	s.logger.Info("event applied",
		zap.String("event_id", ev.EventID),
		zap.String("event_type", ev.EventType),
		zap.String("store_id", plan.storeID),
		zap.Int("movements", len(plan.movements)))
	return OutcomeApplied, nil
}

// seenBefore consults the cache hint and then the processed table. Errors
// fall through to the transactional check.
func (s *EventService) seenBefore(ctx context.Context, eventID string) bool {
	if s.dedup != nil {
		seen, err := s.dedup.Seen(ctx, eventID)
		if err != nil {
			s.logger.Warn("dedup cache lookup failed", zap.String("event_id", eventID), zap.Error(err))
		} else if seen {
			return true
		}
	}
	processed, err := s.store.EventProcessed(ctx, eventID)
	if err != nil {
		s.logger.Warn("processed event lookup failed", zap.String("event_id", eventID), zap.Error(err))
		return false
	}
	return processed
}

func (s *EventService) remember(ctx context.Context, eventID string) {
	if s.dedup == nil {
		return
	}
	if err := s.dedup.Remember(ctx, eventID); err != nil {
		s.logger.Warn("dedup cache write failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

func planEvent(ev domain.InboundEvent) (eventPlan, error) {
	switch ev.EventType {
	case domain.EventSaleCompleted:
		var p domain.SaleCompleted
		if err := decodePayload(ev.Payload, &p); err != nil {
			return eventPlan{}, err
		}
		plan, err := newPlan(ev.StoreID, p.StoreID, len(p.Lines))
		if err != nil {
			return eventPlan{}, err
		}
		for _, l := range p.Lines {
			plan.movements = append(plan.movements, domain.Movement{
				StoreID:       plan.storeID,
				ProductID:     l.ProductID,
				Type:          domain.MovementSell,
				Quantity:      l.Quantity,
				UnitSellMinor: l.UnitSellMinor,
				ReferenceType: domain.ReferenceSale,
				ReferenceID:   p.SaleID,
			})
			plan.precheck = append(plan.precheck, AvailabilityItem{SkuID: l.ProductID, Quantity: l.Quantity, Name: l.Name})
		}
		return plan, validateMovements(plan.movements)

	case domain.EventPurchaseReceived:
		var p domain.PurchaseReceived
		if err := decodePayload(ev.Payload, &p); err != nil {
			return eventPlan{}, err
		}
		plan, err := newPlan(ev.StoreID, p.StoreID, len(p.Lines))
		if err != nil {
			return eventPlan{}, err
		}
		for _, l := range p.Lines {
			plan.movements = append(plan.movements, domain.Movement{
				StoreID:       plan.storeID,
				ProductID:     l.ProductID,
				Type:          domain.MovementReceive,
				Quantity:      l.Quantity,
				UnitCostMinor: l.UnitCostMinor,
				ReferenceType: domain.ReferencePurchase,
				ReferenceID:   p.PurchaseID,
				Barcode:       l.Barcode,
			})
		}
		return plan, validateMovements(plan.movements)

	case domain.EventStockAdjusted:
		var p domain.StockAdjusted
		if err := decodePayload(ev.Payload, &p); err != nil {
			return eventPlan{}, err
		}
		plan, err := newPlan(ev.StoreID, p.StoreID, len(p.Lines))
		if err != nil {
			return eventPlan{}, err
		}
		for _, l := range p.Lines {
			plan.movements = append(plan.movements, domain.Movement{
				StoreID:       plan.storeID,
				ProductID:     l.ProductID,
				Type:          domain.MovementAdjust,
				Quantity:      l.Counted,
				ReferenceType: domain.ReferenceAdjustment,
				ReferenceID:   p.AdjustmentID,
				Barcode:       l.Barcode,
			})
		}
		return plan, validateMovements(plan.movements)
	}
	return eventPlan{}, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, ev.EventType)
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty payload", domain.ErrInvalidEvent)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	return nil
}

func newPlan(envelopeStore, payloadStore string, lines int) (eventPlan, error) {
	storeID := envelopeStore
	if storeID == "" {
		storeID = payloadStore
	}
	if storeID == "" {
		return eventPlan{}, fmt.Errorf("%w: store id is required", domain.ErrInvalidEvent)
	}
	if payloadStore != "" && payloadStore != storeID {
		return eventPlan{}, fmt.Errorf("%w: store %q does not match envelope store %q", domain.ErrInvalidEvent, payloadStore, storeID)
	}
	if lines == 0 {
		return eventPlan{}, fmt.Errorf("%w: no lines", domain.ErrInvalidEvent)
	}
	return eventPlan{storeID: storeID}, nil
}

func validateMovements(movements []domain.Movement) error {
	for _, m := range movements {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}
