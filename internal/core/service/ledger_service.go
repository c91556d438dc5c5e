package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/metrics"
	"github.com/rl1809/pos-inventory/internal/port"
)

const defaultLockRetries = 3

// LedgerService is the single writer of inventory snapshots. Every change
// locks the snapshot row, appends a ledger entry and updates the snapshot in
// one transaction.
type LedgerService struct {
	store       port.LedgerStore
	publisher   port.StockPublisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	lockRetries int
	now         func() time.Time
	newID       func() string
}

type LedgerOption func(*LedgerService)

// WithPublisher pushes committed stock levels to devices after each commit.
func WithPublisher(p port.StockPublisher) LedgerOption {
	return func(s *LedgerService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) LedgerOption {
	return func(s *LedgerService) { s.metrics = m }
}

// WithLockRetries sets how many times a lock timeout is retried. Zero disables retries.
func WithLockRetries(n int) LedgerOption {
	return func(s *LedgerService) {
		if n >= 0 {
			s.lockRetries = n
		}
	}
}

func WithClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(store port.LedgerStore, logger *zap.Logger, opts ...LedgerOption) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &LedgerService{
		store:       store,
		logger:      logger,
		lockRetries: defaultLockRetries,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ApplyMovement commits one movement and returns the ledger entry written.
// A SELL that would take stock below zero fails with *domain.InsufficientStock
// and writes nothing.
func (s *LedgerService) ApplyMovement(ctx context.Context, m domain.Movement) (domain.LedgerEntry, error) {
	if err := m.Validate(); err != nil {
		return domain.LedgerEntry{}, err
	}

	start := time.Now()
	var (
		entry domain.LedgerEntry
		next  int
	)
	err := s.retryOnLockTimeout(ctx, func() error {
		return s.store.WithinTx(ctx, func(tx port.LedgerTx) error {
			var err error
			entry, next, err = s.ApplyInTx(ctx, tx, m)
			return err
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.StockRejected("commit")
		}
		return domain.LedgerEntry{}, err
	}

	s.metrics.MovementApplied(string(m.Type), time.Since(start).Seconds())
	s.publish(ctx, m.StoreID, []domain.StockLevel{{ProductID: m.ProductID, Barcode: m.Barcode, Quantity: next}})
	return entry, nil
}

// ApplyInTx applies m inside a transaction owned by the caller. It returns the
// entry written and the new on-hand quantity.
func (s *LedgerService) ApplyInTx(ctx context.Context, tx port.LedgerTx, m domain.Movement) (domain.LedgerEntry, int, error) {
	if err := m.Validate(); err != nil {
		return domain.LedgerEntry{}, 0, err
	}

	current, err := tx.LockSnapshot(ctx, m.StoreID, m.ProductID)
	if err != nil {
		return domain.LedgerEntry{}, 0, err
	}

	next, delta := m.Next(current)
	if next < 0 {
		return domain.LedgerEntry{}, 0, &domain.InsufficientStock{
			StoreID:   m.StoreID,
			ProductID: m.ProductID,
			Available: current,
			Requested: m.Quantity,
		}
	}

	entry := domain.LedgerEntry{
		ID:            s.newID(),
		StoreID:       m.StoreID,
		ProductID:     m.ProductID,
		MovementType:  m.Type,
		Delta:         delta,
		UnitCostMinor: m.UnitCostMinor,
		UnitSellMinor: m.UnitSellMinor,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return domain.LedgerEntry{}, 0, err
	}
	if err := tx.SetSnapshot(ctx, m.StoreID, m.ProductID, next); err != nil {
		return domain.LedgerEntry{}, 0, err
	}
	if m.Barcode != "" {
		if err := tx.SetBarcode(ctx, m.StoreID, m.ProductID, m.Barcode); err != nil {
			return domain.LedgerEntry{}, 0, err
		}
	}
	return entry, next, nil
}

// FetchLedgerStock recomputes on-hand stock from the ledger alone.
func (s *LedgerService) FetchLedgerStock(ctx context.Context, storeID, productID string) (int, error) {
	return s.store.SumLedger(ctx, storeID, productID)
}

// Snapshot returns the cached on-hand quantity; a product never moved is 0.
func (s *LedgerService) Snapshot(ctx context.Context, storeID, productID string) (int, error) {
	qty, err := s.store.SnapshotQuantities(ctx, storeID, []string{productID})
	if err != nil {
		return 0, err
	}
	return qty[productID], nil
}

func (s *LedgerService) ListStock(ctx context.Context, storeID string) ([]domain.StockLevel, error) {
	snaps, err := s.store.ListSnapshots(ctx, storeID)
	if err != nil {
		return nil, err
	}
	levels := make([]domain.StockLevel, 0, len(snaps))
	for _, snap := range snaps {
		levels = append(levels, domain.StockLevel{ProductID: snap.ProductID, Barcode: snap.Barcode, Quantity: snap.Quantity})
	}
	return levels, nil
}

func (s *LedgerService) History(ctx context.Context, storeID, productID string) ([]domain.LedgerEntry, error) {
	return s.store.ListEntries(ctx, storeID, productID)
}

// Reconcile lists products whose snapshot disagrees with the ledger sum.
func (s *LedgerService) Reconcile(ctx context.Context, storeID string) ([]port.Drift, error) {
	drift, err := s.store.LedgerDrift(ctx, storeID)
	if err != nil {
		return nil, err
	}
	for _, d := range drift {
		s.logger.Warn("ledger drift",
			zap.String("store_id", d.StoreID),
			zap.String("product_id", d.ProductID),
			zap.Int("snapshot", d.Snapshot),
			zap.Int("ledger", d.Ledger))
	}
	return drift, nil
}

func (s *LedgerService) retryOnLockTimeout(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, port.ErrLockTimeout) && attempt <= s.lockRetries {
			s.metrics.LockRetried()
			s.logger.Warn("snapshot lock timeout, retrying", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.lockRetries)), ctx))
}

func (s *LedgerService) publish(ctx context.Context, storeID string, levels []domain.StockLevel) {
	if s.publisher == nil || len(levels) == 0 {
		return
	}
	if err := s.publisher.PublishStock(ctx, storeID, levels); err != nil {
		s.logger.Warn("publish stock failed", zap.String("store_id", storeID), zap.Error(err))
	}
}
