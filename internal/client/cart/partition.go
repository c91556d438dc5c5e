package cart

import (
	"fmt"

	"github.com/rl1809/pos-inventory/internal/core/domain"
)

type SalePartition struct {
	SaleItems      []domain.CartItem
	RemainingItems []domain.CartItem
	IsPartial      bool
}

// Partition splits items into the lines being sold now and the lines left in
// the cart. With no selection the whole cart is sold. Input order is kept on
// both sides.
func Partition(items []domain.CartItem, selectedIDs []string) SalePartition {
	if len(selectedIDs) == 0 {
		return SalePartition{
			SaleItems:      append([]domain.CartItem(nil), items...),
			RemainingItems: []domain.CartItem{},
		}
	}

	selected := make(map[string]struct{}, len(selectedIDs))
	for _, id := range selectedIDs {
		selected[id] = struct{}{}
	}

	p := SalePartition{
		SaleItems:      []domain.CartItem{},
		RemainingItems: []domain.CartItem{},
		IsPartial:      true,
	}
	for _, it := range items {
		if _, ok := selected[it.ID]; ok {
			p.SaleItems = append(p.SaleItems, it)
		} else {
			p.RemainingItems = append(p.RemainingItems, it)
		}
	}
	return p
}

// BuildDeductionLog writes one stock_deducted line per sold item.
func BuildDeductionLog(items []domain.CartItem, saleID string) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		line := fmt.Sprintf("stock_deducted:%s:%d", it.DeductionSKU(), it.Quantity)
		if saleID != "" {
			line += ":saleId=" + saleID
		}
		lines = append(lines, line)
	}
	return lines
}
