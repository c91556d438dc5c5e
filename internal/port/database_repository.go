package port

import (
	"context"
	"errors"
	"time"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

// ErrLockTimeout is returned when the snapshot row lock could not be
// acquired (lock wait timeout or deadlock). Callers may retry.
var ErrLockTimeout = errors.New("snapshot lock timeout")

// ErrDuplicateEvent is returned by RecordEvent when the event id was
// committed by a concurrent transaction.
var ErrDuplicateEvent = errors.New("event already processed")

// Drift is a (store, product) pair whose snapshot disagrees with its ledger.
type Drift struct {
	StoreID   string
	ProductID string
	Snapshot  int
	Ledger    int
}

type LedgerStore interface {
	// EnsureSchema creates the tables if needed. Safe to call repeatedly.
	EnsureSchema(ctx context.Context) error

	// WithinTx runs fn in one transaction, committing only if fn returns nil
	WithinTx(ctx context.Context, fn func(tx LedgerTx) error) error

	// SnapshotQuantities reads on-hand quantities for many products in one round trip.
	// Products without a snapshot are absent from the map.
	SnapshotQuantities(ctx context.Context, storeID string, productIDs []string) (map[string]int, error)

	ListSnapshots(ctx context.Context, storeID string) ([]domain.InventorySnapshot, error)

	// SumLedger recomputes on-hand stock from the ledger rows
	SumLedger(ctx context.Context, storeID, productID string) (int, error)

	// ListEntries returns ledger rows for the pair in append order
	ListEntries(ctx context.Context, storeID, productID string) ([]domain.LedgerEntry, error)

	LedgerDrift(ctx context.Context, storeID string) ([]Drift, error)

	// ListStores returns every store that has a snapshot row
	ListStores(ctx context.Context) ([]string, error)

	// EventProcessed is a read outside any transaction; the authoritative
	// check is LedgerTx.IsEventProcessed.
	EventProcessed(ctx context.Context, eventID string) (bool, error)

	PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

type LedgerTx interface {
	// LockSnapshot takes an exclusive row lock on the snapshot, creating it
	// with quantity 0 under the same lock if it does not exist yet.
	LockSnapshot(ctx context.Context, storeID, productID string) (int, error)

	SetSnapshot(ctx context.Context, storeID, productID string, quantity int) error

	// SetBarcode tags a locked snapshot with a barcode
	SetBarcode(ctx context.Context, storeID, productID, barcode string) error

	AppendEntry(ctx context.Context, entry domain.LedgerEntry) error

	IsEventProcessed(ctx context.Context, eventID string) (bool, error)

	RecordEvent(ctx context.Context, event domain.ProcessedEvent) error
}
