package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store implements core.IStore over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn in a READ COMMITTED transaction. Consistency comes from the
// row locks fn takes, always the order row first and then menu items by id.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.ITx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Reads outside a transaction are classified like transactional ones, so a
// dropped connection surfaces as ErrTransient.

func (s *Store) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	ok, err := tenantExists(ctx, s.pool, tenantID)
	return ok, classify(err)
}

func (s *Store) GetOrder(ctx context.Context, tenantID string, orderID int64) (models.Order, error) {
	return readOrder(ctx, s.pool, tenantID, orderID,
		selectOrder+` WHERE order_id = $1 AND tenant_id = $2`, orderID, tenantID)
}

func (s *Store) FindOrderByPhone(ctx context.Context, tenantID string, orderID int64, phone string) (models.Order, error) {
	return readOrder(ctx, s.pool, tenantID, orderID,
		selectOrder+` WHERE order_id = $1 AND tenant_id = $2 AND customer_phone = $3`, orderID, tenantID, phone)
}

func readOrder(ctx context.Context, q querier, tenantID string, orderID int64, query string, args ...any) (models.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, query, args...))
	if err != nil {
		return models.Order{}, classify(err)
	}
	o.Items, err = orderItems(ctx, q, tenantID, orderID)
	if err != nil {
		return models.Order{}, classify(err)
	}
	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, error) {
	var (
		where = []string{"tenant_id = $1"}
		args  = []any{f.TenantID}
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = append(where, fmt.Sprintf("(customer_name ILIKE $%d OR customer_phone ILIKE $%d)", len(args), len(args)))
	}

	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}
	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s, order_id %s",
		selectOrder, strings.Join(where, " AND "), f.SortColumn(), dir, dir)
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list orders: %w", err))
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list orders: %w", err))
	}

	for i := range orders {
		orders[i].Items, err = orderItems(ctx, s.pool, f.TenantID, orders[i].OrderID)
		if err != nil {
			return nil, classify(err)
		}
	}
	return orders, nil
}

func (s *Store) MenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	rows, err := s.pool.Query(ctx, selectMenuItem+` WHERE tenant_id = $1 ORDER BY item_id`, tenantID)
	if err != nil {
		return nil, classify(fmt.Errorf("menu items: %w", err))
	}
	return collectMenuItems(rows)
}

func (s *Store) ListHistory(ctx context.Context, tenantID string) ([]models.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT history_id, order_id, tenant_id, action, details, changed_by, change_timestamp
		FROM order_history
		WHERE tenant_id = $1
		ORDER BY change_timestamp DESC`, tenantID)
	if err != nil {
		return nil, classify(fmt.Errorf("list history: %w", err))
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var (
			h      models.HistoryEntry
			action string
		)
		if err := rows.Scan(&h.HistoryID, &h.OrderID, &h.TenantID, &action, &h.Details, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Action = models.HistoryAction(action)
		out = append(out, h)
	}
	return out, classify(rows.Err())
}

const selectOrder = `
	SELECT order_id, tenant_id, status, total_price, customer_name, customer_phone,
	       is_delivery, customer_location, rider_id,
	       preparation_start_time, preparation_end_time, delivery_start_time, delivery_end_time,
	       created_at
	FROM orders`

const selectMenuItem = `
	SELECT item_id, tenant_id, name, price, stock_quantity, low_stock_threshold
	FROM menu_items`

func scanOrder(row pgx.Row) (models.Order, error) {
	var (
		o      models.Order
		status string
	)
	err := row.Scan(
		&o.OrderID, &o.TenantID, &status, &o.TotalPrice, &o.CustomerName, &o.CustomerPhone,
		&o.IsDelivery, &o.CustomerLocation, &o.RiderID,
		&o.PreparationStartTime, &o.PreparationEndTime, &o.DeliveryStartTime, &o.DeliveryEndTime,
		&o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, core.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, fmt.Errorf("scan order: %w", err)
	}
	o.Status = models.Status(status)
	return o, nil
}

func orderItems(ctx context.Context, q querier, tenantID string, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT item_id, name, quantity, price
		FROM order_items
		WHERE order_id = $1 AND tenant_id = $2
		ORDER BY item_id`, orderID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func collectMenuItems(rows pgx.Rows) ([]models.MenuItem, error) {
	defer rows.Close()
	var items []models.MenuItem
	for rows.Next() {
		var it models.MenuItem
		if err := rows.Scan(&it.ItemID, &it.TenantID, &it.Name, &it.Price, &it.StockQuantity, &it.LowStockThreshold); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func tenantExists(ctx context.Context, q querier, tenantID string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE tenant_id = $1)`, tenantID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenant lookup: %w", err)
	}
	return exists, nil
}
