package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/port"
)

type pairKey struct {
	store   string
	product string
}

// MemoryAdapter is an in-process LedgerStore. Transactions are serialised
// behind one mutex and their writes become visible only on commit.
type MemoryAdapter struct {
	mu        sync.Mutex
	snapshots map[pairKey]domain.InventorySnapshot
	entries   []domain.LedgerEntry
	processed map[string]domain.ProcessedEvent
	now       func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		snapshots: make(map[pairKey]domain.InventorySnapshot),
		processed: make(map[string]domain.ProcessedEvent),
		now:       time.Now,
	}
}

func (m *MemoryAdapter) EnsureSchema(ctx context.Context) error {
	return nil
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		parent:    m,
		snapshots: make(map[pairKey]domain.InventorySnapshot),
		processed: make(map[string]domain.ProcessedEvent),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for k, s := range tx.snapshots {
		m.snapshots[k] = s
	}
	m.entries = append(m.entries, tx.entries...)
	for id, e := range tx.processed {
		m.processed[id] = e
	}
	return nil
}

func (m *MemoryAdapter) SnapshotQuantities(ctx context.Context, storeID string, productIDs []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		if s, ok := m.snapshots[pairKey{storeID, id}]; ok {
			out[id] = s.Quantity
		}
	}
	return out, nil
}

func (m *MemoryAdapter) ListSnapshots(ctx context.Context, storeID string) ([]domain.InventorySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.InventorySnapshot
	for k, s := range m.snapshots {
		if k.store == storeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *MemoryAdapter) SumLedger(ctx context.Context, storeID, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0
	for _, e := range m.entries {
		if e.StoreID == storeID && e.ProductID == productID {
			sum += e.Delta
		}
	}
	return sum, nil
}

func (m *MemoryAdapter) ListEntries(ctx context.Context, storeID, productID string) ([]domain.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range m.entries {
		if e.StoreID == storeID && e.ProductID == productID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryAdapter) LedgerDrift(ctx context.Context, storeID string) ([]port.Drift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sums := make(map[string]int)
	for _, e := range m.entries {
		if e.StoreID == storeID {
			sums[e.ProductID] += e.Delta
		}
	}

	var drift []port.Drift
	for k, s := range m.snapshots {
		if k.store != storeID {
			continue
		}
		if ledger := sums[k.product]; ledger != s.Quantity {
			drift = append(drift, port.Drift{StoreID: storeID, ProductID: k.product, Snapshot: s.Quantity, Ledger: ledger})
		}
	}
	sort.Slice(drift, func(i, j int) bool { return drift[i].ProductID < drift[j].ProductID })
	return drift, nil
}

func (m *MemoryAdapter) ListStores(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for k := range m.snapshots {
		if !seen[k.store] {
			seen[k.store] = true
			out = append(out, k.store)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryAdapter) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[eventID]
	return ok, nil
}

func (m *MemoryAdapter) PurgeProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, e := range m.processed {
		if e.ReceivedAt.Before(before) {
			delete(m.processed, id)
			n++
		}
	}
	return n, nil
}

// OverwriteSnapshot bypasses the ledger. It exists to seed drift in
// reconciliation tests and tools.
func (m *MemoryAdapter) OverwriteSnapshot(storeID, productID string, quantity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := pairKey{storeID, productID}
	s := m.snapshots[k]
	s.StoreID, s.ProductID = storeID, productID
	s.Quantity = quantity
	s.UpdatedAt = m.now()
	m.snapshots[k] = s
}

type memoryTx struct {
	parent    *MemoryAdapter
	snapshots map[pairKey]domain.InventorySnapshot
	entries   []domain.LedgerEntry
	processed map[string]domain.ProcessedEvent
}

func (t *memoryTx) LockSnapshot(ctx context.Context, storeID, productID string) (int, error) {
	k := pairKey{storeID, productID}
	if s, ok := t.snapshots[k]; ok {
		return s.Quantity, nil
	}
	s, ok := t.parent.snapshots[k]
	if !ok {
		s = domain.InventorySnapshot{StoreID: storeID, ProductID: productID, UpdatedAt: t.parent.now()}
	}
	t.snapshots[k] = s
	return s.Quantity, nil
}

func (t *memoryTx) SetSnapshot(ctx context.Context, storeID, productID string, quantity int) error {
	s := t.staged(storeID, productID)
	s.Quantity = quantity
	s.UpdatedAt = t.parent.now()
	t.snapshots[pairKey{storeID, productID}] = s
	return nil
}

func (t *memoryTx) SetBarcode(ctx context.Context, storeID, productID, barcode string) error {
	s := t.staged(storeID, productID)
	s.Barcode = barcode
	t.snapshots[pairKey{storeID, productID}] = s
	return nil
}

// staged returns the row as this transaction currently sees it.
func (t *memoryTx) staged(storeID, productID string) domain.InventorySnapshot {
	k := pairKey{storeID, productID}
	if s, ok := t.snapshots[k]; ok {
		return s
	}
	if s, ok := t.parent.snapshots[k]; ok {
		return s
	}
	return domain.InventorySnapshot{StoreID: storeID, ProductID: productID}
}

func (t *memoryTx) AppendEntry(ctx context.Context, entry domain.LedgerEntry) error {
	t.entries = append(t.entries, entry)
	return nil
}

func (t *memoryTx) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if _, ok := t.processed[eventID]; ok {
		return true, nil
	}
	_, ok := t.parent.processed[eventID]
	return ok, nil
}

func (t *memoryTx) RecordEvent(ctx context.Context, event domain.ProcessedEvent) error {
	if seen, _ := t.IsEventProcessed(ctx, event.EventID); seen {
		return port.ErrDuplicateEvent
	}
	t.processed[event.EventID] = event
	return nil
}
