package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/pos-inventory/internal/adapter/storage"
	"github.com/rl1809/pos-inventory/internal/core/domain"
)

// countingStore records how many batch reads the guard issues.
type countingStore struct {
	*storage.MemoryAdapter
	reads int
}

func (c *countingStore) SnapshotQuantities(ctx context.Context, storeID string, productIDs []string) (map[string]int, error) {
	c.reads++
	return c.MemoryAdapter.SnapshotQuantities(ctx, storeID, productIDs)
}

func TestEnsureAvailability_ReportsEveryShortage(t *testing.T) {
	store := &countingStore{MemoryAdapter: storage.NewMemoryAdapter()}
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()

	ledger.ApplyMovement(ctx, receive("S", "prod-1", 10))
	ledger.ApplyMovement(ctx, receive("S", "prod-3", 2))

	guard := NewAvailabilityGuard(store, nil)
	err := guard.EnsureAvailability(ctx, "S", []AvailabilityItem{
		{SkuID: "prod-1", Quantity: 4, Name: "Milk"},
		{SkuID: "prod-3", Quantity: 3, Name: "Bread"},
		{SkuID: "prod-9", Quantity: 1, Name: "Eggs"},
	})

	var short *domain.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, []domain.ShortageDetail{
		{SkuID: "prod-3", Available: 2, Message: "Stock changed. Available: 2"},
		{SkuID: "prod-9", Available: 0, Message: "Stock changed. Available: 0"},
	}, short.Details)
	assert.Equal(t, 1, store.reads)
}

func TestEnsureAvailability_SingleShortItem(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()
	ledger.ApplyMovement(ctx, receive("S", "prod-3", 2))

	err := NewAvailabilityGuard(store, nil).EnsureAvailability(ctx, "S", []AvailabilityItem{
		{SkuID: "prod-3", Quantity: 3},
	})

	assert.Equal(t, []domain.ShortageDetail{
		{SkuID: "prod-3", Available: 2, Message: "Stock changed. Available: 2"},
	}, domain.ShortageDetails(err))
}

func TestEnsureAvailability_Enough(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()
	ledger.ApplyMovement(ctx, receive("S", "A", 3))

	guard := NewAvailabilityGuard(store, nil)
	assert.NoError(t, guard.EnsureAvailability(ctx, "S", []AvailabilityItem{{SkuID: "A", Quantity: 3}}))
	assert.NoError(t, guard.EnsureAvailability(ctx, "S", nil))
}

func TestEnsureAvailability_TakesNoLock(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()
	ledger.ApplyMovement(ctx, receive("S", "A", 1))

	guard := NewAvailabilityGuard(store, nil)
	require.NoError(t, guard.EnsureAvailability(ctx, "S", []AvailabilityItem{{SkuID: "A", Quantity: 1}}))

	// Another sale wins the race between check and write.
	_, err := ledger.ApplyMovement(ctx, sell("S", "A", 1))
	require.NoError(t, err)

	_, err = ledger.ApplyMovement(ctx, sell("S", "A", 1))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestEnsureAvailability_SumsRepeatedSku(t *testing.T) {
	store := storage.NewMemoryAdapter()
	ledger := NewLedgerService(store, nil)
	ctx := context.Background()
	ledger.ApplyMovement(ctx, receive("S", "prod-3", 3))

	guard := NewAvailabilityGuard(store, nil)
	err := guard.EnsureAvailability(ctx, "S", []AvailabilityItem{
		{SkuID: "prod-3", Quantity: 2},
		{SkuID: "prod-3", Quantity: 2},
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, []domain.ShortageDetail{
		{SkuID: "prod-3", Available: 3, Message: "Stock changed. Available: 3"},
	}, domain.ShortageDetails(err))

	assert.NoError(t, guard.EnsureAvailability(ctx, "S", []AvailabilityItem{
		{SkuID: "prod-3", Quantity: 1},
		{SkuID: "prod-3", Quantity: 2},
	}))
}
