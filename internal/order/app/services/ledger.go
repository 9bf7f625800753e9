package services

import (
	"context"
	"fmt"
	"slices"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
)

// Ledger moves stock under the row locks of the enclosing transaction.
type Ledger struct{}

// Lock locks the menu rows for ids in ascending order so that concurrent
// transactions always acquire them in the same sequence.
func (Ledger) Lock(ctx context.Context, tx core.ITx, tenantID string, ids []int64) (map[int64]models.MenuItem, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	return tx.LockMenuItems(ctx, tenantID, sorted)
}

// Reserve takes qty units of a locked item.
func (Ledger) Reserve(ctx context.Context, tx core.ITx, item *models.MenuItem, qty int) error {
	if qty <= 0 {
		return nil
	}
	if item.StockQuantity < qty {
		return fmt.Errorf("%w for %s, available: %d", core.ErrInsufficientStock, item.Name, item.StockQuantity)
	}
	left, err := tx.AdjustStock(ctx, item.TenantID, item.ItemID, -qty)
	if err != nil {
		return err
	}
	item.StockQuantity = left
	return nil
}

// Release returns qty units to stock.
func (Ledger) Release(ctx context.Context, tx core.ITx, tenantID string, itemID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	_, err := tx.AdjustStock(ctx, tenantID, itemID, qty)
	return err
}
