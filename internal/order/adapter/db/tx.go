package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
)

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	return tenantExists(ctx, t.tx, tenantID)
}

func (t *pgTx) LockMenuItems(ctx context.Context, tenantID string, itemIDs []int64) (map[int64]models.MenuItem, error) {
	out := make(map[int64]models.MenuItem, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	rows, err := t.tx.Query(ctx,
		selectMenuItem+` WHERE tenant_id = $1 AND item_id = ANY($2) ORDER BY item_id FOR UPDATE`,
		tenantID, itemIDs)
	if err != nil {
		return nil, classify(fmt.Errorf("lock menu items: %w", err))
	}
	items, err := collectMenuItems(rows)
	if err != nil {
		return nil, classify(err)
	}
	for _, it := range items {
		out[it.ItemID] = it
	}
	return out, nil
}

func (t *pgTx) AdjustStock(ctx context.Context, tenantID string, itemID int64, delta int) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `
		UPDATE menu_items
		SET stock_quantity = stock_quantity + $3
		WHERE tenant_id = $1 AND item_id = $2
		RETURNING stock_quantity`, tenantID, itemID, delta).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, core.ErrMenuItemNotFound
	}
	if err != nil {
		return 0, classify(fmt.Errorf("adjust stock: %w", err))
	}
	return stock, nil
}

func (t *pgTx) LockOrder(ctx context.Context, tenantID string, orderID int64) (models.Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx,
		selectOrder+` WHERE order_id = $1 AND tenant_id = $2 FOR UPDATE`, orderID, tenantID))
	if err != nil {
		return models.Order{}, classify(err)
	}
	o.Items, err = orderItems(ctx, t.tx, tenantID, orderID)
	if err != nil {
		return models.Order{}, classify(err)
	}
	return o, nil
}

func (t *pgTx) RiderExists(ctx context.Context, tenantID string, riderID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE user_id = $1 AND tenant_id = $2 AND role = 'rider'
		)`, riderID, tenantID).Scan(&exists)
	if err != nil {
		return false, classify(fmt.Errorf("rider lookup: %w", err))
	}
	return exists, nil
}

func (t *pgTx) RiderBusy(ctx context.Context, tenantID string, riderID, exceptOrderID int64) (bool, error) {
	var busy bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE tenant_id = $1 AND rider_id = $2 AND status = 'enroute' AND order_id <> $3
		)`, tenantID, riderID, exceptOrderID).Scan(&busy)
	if err != nil {
		return false, classify(fmt.Errorf("rider busy: %w", err))
	}
	return busy, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *models.Order) error {
	var createdAt *time.Time
	if !o.CreatedAt.IsZero() {
		createdAt = &o.CreatedAt
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (
			tenant_id, status, total_price, customer_name, customer_phone,
			is_delivery, customer_location, rider_id,
			preparation_start_time, preparation_end_time, delivery_start_time, delivery_end_time,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13, now()))
		RETURNING order_id, created_at`,
		o.TenantID, string(o.Status), o.TotalPrice, o.CustomerName, o.CustomerPhone,
		o.IsDelivery, o.CustomerLocation, o.RiderID,
		o.PreparationStartTime, o.PreparationEndTime, o.DeliveryStartTime, o.DeliveryEndTime,
		createdAt,
	).Scan(&o.OrderID, &o.CreatedAt)
	if err != nil {
		return classify(fmt.Errorf("insert order: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateOrder(ctx context.Context, o models.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders SET
			status = $3, total_price = $4, customer_name = $5, customer_phone = $6,
			is_delivery = $7, customer_location = $8, rider_id = $9,
			preparation_start_time = $10, preparation_end_time = $11,
			delivery_start_time = $12, delivery_end_time = $13
		WHERE order_id = $1 AND tenant_id = $2`,
		o.OrderID, o.TenantID,
		string(o.Status), o.TotalPrice, o.CustomerName, o.CustomerPhone,
		o.IsDelivery, o.CustomerLocation, o.RiderID,
		o.PreparationStartTime, o.PreparationEndTime, o.DeliveryStartTime, o.DeliveryEndTime,
	)
	if err != nil {
		return classify(fmt.Errorf("update order: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) ReplaceItems(ctx context.Context, tenantID string, orderID int64, items []models.OrderItem) error {
	if _, err := t.tx.Exec(ctx,
		`DELETE FROM order_items WHERE order_id = $1 AND tenant_id = $2`, orderID, tenantID); err != nil {
		return classify(fmt.Errorf("clear order items: %w", err))
	}
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, tenant_id, item_id, quantity, price, name)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			orderID, tenantID, it.ItemID, it.Quantity, it.Price, it.Name)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return classify(fmt.Errorf("insert order items: %w", err))
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, tenantID string, orderID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM orders WHERE order_id = $1 AND tenant_id = $2`, orderID, tenantID)
	if err != nil {
		return classify(fmt.Errorf("delete order: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return core.ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) InsertHistory(ctx context.Context, h models.HistoryEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_history (history_id, order_id, tenant_id, action, details, changed_by, change_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.HistoryID, h.OrderID, h.TenantID, string(h.Action), h.Details, h.ChangedBy, h.ChangedAt)
	if err != nil {
		return classify(fmt.Errorf("insert history: %w", err))
	}
	return nil
}
