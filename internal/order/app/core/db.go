package core

import (
	"context"

	"restaurant-orders/internal/order/domain/models"
)

type IDB interface {
	Close() error
	IsAlive() error
}

// IStore is the order storage. Reads outside WithTx see committed state.
type IStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx ITx) error) error

	TenantExists(ctx context.Context, tenantID string) (bool, error)
	GetOrder(ctx context.Context, tenantID string, orderID int64) (models.Order, error)
	// FindOrderByPhone returns the order only if its stored phone matches.
	FindOrderByPhone(ctx context.Context, tenantID string, orderID int64, phone string) (models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	MenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	ListHistory(ctx context.Context, tenantID string) ([]models.HistoryEntry, error)
}

// ITx is one open transaction. Lock* methods hold row locks until commit.
type ITx interface {
	TenantExists(ctx context.Context, tenantID string) (bool, error)
	// LockMenuItems locks the rows in ascending item_id order. Missing ids are
	// absent from the result.
	LockMenuItems(ctx context.Context, tenantID string, itemIDs []int64) (map[int64]models.MenuItem, error)
	// AdjustStock adds delta to the stock counter and returns the new value.
	AdjustStock(ctx context.Context, tenantID string, itemID int64, delta int) (int, error)
	LockOrder(ctx context.Context, tenantID string, orderID int64) (models.Order, error)
	RiderExists(ctx context.Context, tenantID string, riderID int64) (bool, error)
	// RiderBusy reports whether the rider is enroute on an order other than exceptOrderID.
	RiderBusy(ctx context.Context, tenantID string, riderID, exceptOrderID int64) (bool, error)
	InsertOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, order models.Order) error
	ReplaceItems(ctx context.Context, tenantID string, orderID int64, items []models.OrderItem) error
	DeleteOrder(ctx context.Context, tenantID string, orderID int64) error
	InsertHistory(ctx context.Context, entry models.HistoryEntry) error
}

// INotifier hands committed orders to the push side. It must not block.
type INotifier interface {
	Notify(tenantID string, order models.Order, event models.EventType)
}
