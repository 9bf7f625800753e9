package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/retry"
)

const notAvailable = "N/A"

var exportHeader = []string{
	"order_id", "total_price", "status", "customer_name", "customer_phone", "created_at",
	"preparation_start_time", "preparation_end_time", "delivery_start_time", "delivery_end_time",
	"is_delivery", "customer_location", "rider_id", "items",
}

// Track returns the order only to a caller who knows its phone number.
func (os *OrderService) Track(ctx context.Context, tenantID string, orderID int64, phone string) (models.Order, error) {
	if phone == "" {
		return models.Order{}, core.ErrPhoneRequired
	}
	ok, err := os.store.TenantExists(ctx, tenantID)
	if err != nil {
		return models.Order{}, err
	}
	if !ok {
		return models.Order{}, core.ErrTenantNotFound
	}
	order, err := os.store.FindOrderByPhone(ctx, tenantID, orderID, phone)
	if errors.Is(err, core.ErrNotFound) {
		return models.Order{}, core.ErrPhoneMismatch
	}
	return order, err
}

func (os *OrderService) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	orders, err := os.store.ListOrders(ctx, filter)
	if err != nil {
		os.mylog.Action("list_orders").Error("Failed to list orders", err, "tenant_id", filter.TenantID)
		return nil, err
	}
	return orders, nil
}

// ExportCSV writes every order matching filter, paging ignored, as CSV.
func (os *OrderService) ExportCSV(ctx context.Context, filter models.OrderFilter, w io.Writer) error {
	filter.Limit, filter.Offset = 0, 0
	orders, err := os.List(ctx, filter)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, o := range orders {
		if err := cw.Write(exportRow(o)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename is the attachment name for a tenant export taken at now.
func ExportFilename(tenantID string, now time.Time) string {
	return fmt.Sprintf("orders_%s_%s.csv", tenantID, now.UTC().Format(time.DateOnly))
}

func exportRow(o models.Order) []string {
	items := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, fmt.Sprintf("%s (Qty: %d, Price: $%s)", it.Name, it.Quantity, it.Price.String()))
	}
	rider := notAvailable
	if o.RiderID != nil {
		rider = strconv.FormatInt(*o.RiderID, 10)
	}
	return []string{
		strconv.FormatInt(o.OrderID, 10),
		o.TotalPrice.String(),
		string(o.Status),
		orNA(o.CustomerName),
		orNA(o.CustomerPhone),
		o.CreatedAt.UTC().Format(time.RFC3339),
		timeOrNA(o.PreparationStartTime),
		timeOrNA(o.PreparationEndTime),
		timeOrNA(o.DeliveryStartTime),
		timeOrNA(o.DeliveryEndTime),
		strconv.FormatBool(o.IsDelivery),
		orNA(o.CustomerLocation),
		rider,
		strings.Join(items, "; "),
	}
}

// History lists the tenant's audit trail, newest first. Rows whose details
// cannot be read are returned with a placeholder instead of failing the list.
func (os *OrderService) History(ctx context.Context, tenantID string) ([]dto.HistoryView, error) {
	mylog := os.mylog.Action("order_history").With("tenant_id", tenantID)
	entries, err := os.store.ListHistory(ctx, tenantID)
	if err != nil {
		mylog.Error("Failed to fetch order history", err)
		return nil, err
	}

	views := make([]dto.HistoryView, 0, len(entries))
	for _, h := range entries {
		details, err := readDetails(h.Details)
		if err != nil {
			mylog.Error("Error parsing order history details", err, "history_id", h.HistoryID.String())
		}
		views = append(views, dto.HistoryView{
			HistoryID:       h.HistoryID.String(),
			OrderID:         h.OrderID,
			Action:          string(h.Action),
			Details:         details,
			ChangedBy:       h.ChangedBy,
			ChangeTimestamp: h.ChangedAt,
		})
	}
	return views, nil
}

var invalidDetails = json.RawMessage(`{"items":[],"error":"Invalid JSON"}`)

func readDetails(raw []byte) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{"items":[]}`), nil
	}
	var probe struct {
		Items []json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return invalidDetails, err
	}
	if probe.Items == nil {
		return invalidDetails, errors.New("details without items array")
	}
	return json.RawMessage(raw), nil
}

// Restock adds quantity units to a menu item. Manager only.
func (os *OrderService) Restock(ctx context.Context, tenantID string, itemID int64, quantity int, actor models.Actor) (int, error) {
	mylog := os.mylog.Action("restock").With("tenant_id", tenantID, "item_id", itemID)
	if actor.Public || actor.Role != models.RoleManager {
		return 0, core.ErrRoleDenied
	}
	if quantity <= 0 {
		mylog.Warn("Invalid restock quantity", "quantity", quantity)
		return 0, core.ErrBadRestock
	}

	stock, err := retry.Do(ctx, os.policy, func(ctx context.Context) (int, error) {
		var stock int
		err := os.store.WithTx(ctx, func(ctx context.Context, tx core.ITx) error {
			menu, err := os.ledger.Lock(ctx, tx, tenantID, []int64{itemID})
			if err != nil {
				return err
			}
			item, ok := menu[itemID]
			if !ok {
				return core.ErrMenuItemNotFound
			}
			if err := os.ledger.Release(ctx, tx, tenantID, itemID, quantity); err != nil {
				return err
			}
			stock = item.StockQuantity + quantity
			return nil
		})
		return stock, permanent(err)
	})
	if err != nil {
		logFailure(mylog, "Failed to restock menu item", err)
		return 0, err
	}
	mylog.Info("Menu item restocked", "quantity", quantity, "stock", stock)
	return stock, nil
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return notAvailable
	}
	return *s
}

func timeOrNA(t *time.Time) string {
	if t == nil {
		return notAvailable
	}
	return t.UTC().Format(time.RFC3339)
}
