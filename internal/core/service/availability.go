package service

import (
	"context"

	"github.com/rl1809/pos-inventory/internal/core/domain"
	"github.com/rl1809/pos-inventory/internal/metrics"
	"github.com/rl1809/pos-inventory/internal/port"
)

type AvailabilityItem struct {
	SkuID    string
	Quantity int
	Name     string
}

// AvailabilityGuard is an advisory read check in front of a sale. It takes no
// locks; the ledger writer still rejects a sale that lost a race.
type AvailabilityGuard struct {
	store   port.LedgerStore
	metrics *metrics.Metrics
}

func NewAvailabilityGuard(store port.LedgerStore, m *metrics.Metrics) *AvailabilityGuard {
	return &AvailabilityGuard{store: store, metrics: m}
}

// EnsureAvailability checks every item against on-hand stock and reports all
// shortages at once as *domain.InsufficientStockError. Lines naming the same
// SKU are summed and reported once; products without a snapshot count as zero
// available.
func (g *AvailabilityGuard) EnsureAvailability(ctx context.Context, storeID string, items []AvailabilityItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	requested := make(map[string]int, len(items))
	for _, item := range items {
		if _, ok := requested[item.SkuID]; !ok {
			ids = append(ids, item.SkuID)
		}
		requested[item.SkuID] += item.Quantity
	}

	available, err := g.store.SnapshotQuantities(ctx, storeID, ids)
	if err != nil {
		return err
	}

	var details []domain.ShortageDetail
	for _, id := range ids {
		if avail := available[id]; requested[id] > avail {
			details = append(details, domain.NewShortageDetail(id, avail))
		}
	}
	if len(details) > 0 {
		g.metrics.StockRejected("precheck")
		return &domain.InsufficientStockError{Details: details}
	}
	return nil
}
