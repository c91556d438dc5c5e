package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-inventory/internal/adapter/storage"
	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/port"
)

// Mock StockPublisher
type mockPublisher struct {
	mu     sync.Mutex
	levels map[string][]domain.StockLevel
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{levels: make(map[string][]domain.StockLevel)}
}

func (p *mockPublisher) PublishStock(ctx context.Context, storeID string, levels []domain.StockLevel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.levels[storeID] = append(p.levels[storeID], levels...)
	return nil
}

func (p *mockPublisher) published(storeID string) []domain.StockLevel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.StockLevel(nil), p.levels[storeID]...)
}

// flakyStore fails the first n transactions with a lock timeout.
type flakyStore struct {
	*storage.MemoryAdapter
	failures atomic.Int32
	calls    atomic.Int32
}

func (f *flakyStore) WithinTx(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	f.calls.Add(1)
	if f.failures.Add(-1) >= 0 {
		return fmt.Errorf("lock snapshot: %w", port.ErrLockTimeout)
	}
	return f.MemoryAdapter.WithinTx(ctx, fn)
}

func receive(store, product string, qty int) domain.Movement {
	return domain.Movement{
		StoreID:       store,
		ProductID:     product,
		Type:          domain.MovementReceive,
		Quantity:      qty,
		ReferenceType: domain.ReferencePurchase,
		ReferenceID:   "po-1",
	}
}

func sell(store, product string, qty int) domain.Movement {
	return domain.Movement{
		StoreID:       store,
		ProductID:     product,
		Type:          domain.MovementSell,
		Quantity:      qty,
		ReferenceType: domain.ReferenceSale,
		ReferenceID:   "sale-1",
	}
}

func TestApplyMovement_ReceiveThenSell(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, receive("S", "P", 5))
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, sell("S", "P", 2))
	require.NoError(t, err)

	ledger, err := svc.FetchLedgerStock(ctx, "S", "P")
	require.NoError(t, err)
	assert.Equal(t, 3, ledger)

	snap, err := svc.Snapshot(ctx, "S", "P")
	require.NoError(t, err)
	assert.Equal(t, 3, snap)
	fresh, _ := svc.Snapshot(ctx, "S", "never-moved")
	assert.Equal(t, 0, fresh)

	entries, err := svc.History(ctx, "S", "P")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.MovementReceive, entries[0].MovementType)
	assert.Equal(t, 5, entries[0].Delta)
	assert.Equal(t, domain.MovementSell, entries[1].MovementType)
	assert.Equal(t, -2, entries[1].Delta)
}

func TestApplyMovement_SellWithoutStock(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, sell("fresh-store", "P", 1))

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var short *domain.InsufficientStock
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 0, short.Available)
	assert.Equal(t, 1, short.Requested)

	entries, _ := svc.History(ctx, "fresh-store", "P")
	assert.Empty(t, entries)
}

func TestApplyMovement_Adjust(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, receive("S", "P", 10))
	require.NoError(t, err)

	entry, err := svc.ApplyMovement(ctx, domain.Movement{
		StoreID: "S", ProductID: "P", Type: domain.MovementAdjust, Quantity: 7,
		ReferenceType: domain.ReferenceAdjustment, ReferenceID: "count-1",
	})
	require.NoError(t, err)
	assert.Equal(t, -3, entry.Delta)

	entry, err = svc.ApplyMovement(ctx, domain.Movement{
		StoreID: "S", ProductID: "P", Type: domain.MovementAdjust, Quantity: 0,
		ReferenceType: domain.ReferenceAdjustment, ReferenceID: "count-2",
	})
	require.NoError(t, err)
	assert.Equal(t, -7, entry.Delta)

	ledger, _ := svc.FetchLedgerStock(ctx, "S", "P")
	assert.Equal(t, 0, ledger)
}

func TestApplyMovement_Invalid(t *testing.T) {
	svc := NewLedgerService(storage.NewMemoryAdapter(), nil)
	ctx := context.Background()

	cases := []domain.Movement{
		{StoreID: "S", ProductID: "P", Type: domain.MovementSell, Quantity: 0},
		{StoreID: "S", ProductID: "P", Type: domain.MovementReceive, Quantity: -2},
		{StoreID: "S", ProductID: "P", Type: "TRANSFER", Quantity: 1},
		{StoreID: "", ProductID: "P", Type: domain.MovementReceive, Quantity: 1},
		{StoreID: "S", ProductID: "P", Type: domain.MovementAdjust, Quantity: -1},
	}
	for _, m := range cases {
		_, err := svc.ApplyMovement(ctx, m)
		assert.ErrorIs(t, err, domain.ErrInvalidMovement, "movement %+v", m)
	}
}

func TestApplyMovement_ConcurrentSellsNeverOversell(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	const initial = 20
	const buyers = 60
	_, err := svc.ApplyMovement(ctx, receive("S", "P", initial))
	require.NoError(t, err)

	var sold, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyMovement(ctx, sell("S", "P", 1))
			switch {
			case err == nil:
				sold.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initial), sold.Load())
	assert.Equal(t, int32(buyers-initial), rejected.Load())

	ledger, _ := svc.FetchLedgerStock(ctx, "S", "P")
	snap, _ := store.SnapshotQuantities(ctx, "S", []string{"P"})
	assert.Equal(t, 0, ledger)
	assert.Equal(t, ledger, snap["P"])
}

func TestApplyMovement_LedgerMatchesSnapshot(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	seq := []domain.Movement{
		receive("S", "P", 4),
		sell("S", "P", 1),
		sell("S", "P", 5), // rejected
		receive("S", "P", 9),
		{StoreID: "S", ProductID: "P", Type: domain.MovementAdjust, Quantity: 11, ReferenceType: domain.ReferenceAdjustment, ReferenceID: "c"},
		sell("S", "P", 11),
	}
	for _, m := range seq {
		svc.ApplyMovement(ctx, m)

		ledger, err := svc.FetchLedgerStock(ctx, "S", "P")
		require.NoError(t, err)
		snap, _ := store.SnapshotQuantities(ctx, "S", []string{"P"})
		assert.Equal(t, snap["P"], ledger, "after %s %d", m.Type, m.Quantity)
	}
}

func TestApplyMovement_RetriesLockTimeout(t *testing.T) {
	store := &flakyStore{MemoryAdapter: storage.NewMemoryAdapter()}
	store.failures.Store(2)
	svc := NewLedgerService(store, nil, WithLockRetries(3))

	_, err := svc.ApplyMovement(context.Background(), receive("S", "P", 1))

	require.NoError(t, err)
	assert.Equal(t, int32(3), store.calls.Load())
}

func TestApplyMovement_LockTimeoutExhausted(t *testing.T) {
	store := &flakyStore{MemoryAdapter: storage.NewMemoryAdapter()}
	store.failures.Store(10)
	svc := NewLedgerService(store, nil, WithLockRetries(1))

	_, err := svc.ApplyMovement(context.Background(), receive("S", "P", 1))

	assert.ErrorIs(t, err, port.ErrLockTimeout)
	assert.Equal(t, int32(2), store.calls.Load())
}

func TestApplyMovement_InsufficientStockNotRetried(t *testing.T) {
	store := &flakyStore{MemoryAdapter: storage.NewMemoryAdapter()}
	svc := NewLedgerService(store, nil, WithLockRetries(3))

	_, err := svc.ApplyMovement(context.Background(), sell("S", "P", 1))

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestApplyMovement_PublishesCommittedLevel(t *testing.T) {
	pub := newMockPublisher()
	svc := NewLedgerService(storage.NewMemoryAdapter(), nil, WithPublisher(pub))
	ctx := context.Background()

	svc.ApplyMovement(ctx, receive("S", "P", 3))
	svc.ApplyMovement(ctx, sell("S", "P", 5)) // rejected, not published

	assert.Equal(t, []domain.StockLevel{{ProductID: "P", Quantity: 3}}, pub.published("S"))
}

func TestListStockAndReconcile(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	svc.ApplyMovement(ctx, receive("S", "A", 2))
	svc.ApplyMovement(ctx, receive("S", "B", 4))
	svc.ApplyMovement(ctx, receive("other", "A", 1))

	levels, err := svc.ListStock(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ProductID: "A", Quantity: 2}, {ProductID: "B", Quantity: 4}}, levels)

	drift, err := svc.Reconcile(ctx, "S")
	require.NoError(t, err)
	assert.Empty(t, drift)

	store.OverwriteSnapshot("S", "B", 1)
	drift, err = svc.Reconcile(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []port.Drift{{StoreID: "S", ProductID: "B", Snapshot: 1, Ledger: 4}}, drift)
}

func TestListStock_CarriesBarcode(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewLedgerService(store, nil)
	ctx := context.Background()

	m := receive("S", "A", 5)
	m.Barcode = "8900"
	_, err := svc.ApplyMovement(ctx, m)
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, domain.Movement{
		StoreID: "S", ProductID: "A", Type: domain.MovementSell, Quantity: 1,
		ReferenceType: domain.ReferenceSale, ReferenceID: "s-1",
	})
	require.NoError(t, err)

	levels, err := svc.ListStock(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, []domain.StockLevel{{ProductID: "A", Barcode: "8900", Quantity: 4}}, levels)
}
