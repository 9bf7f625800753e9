package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/retry"
)

var tracer = otel.Tracer("restaurant-orders/order")

type Options struct {
	Limits core.OrderLimits
	Retry  retry.Policy
	Now    func() time.Time
}

type OrderService struct {
	store    core.IStore
	notifier core.INotifier
	ledger   Ledger
	history  *HistoryRecorder
	limits   core.OrderLimits
	policy   retry.Policy
	now      func() time.Time
	mylog    logger.Logger
}

func NewOrderService(store core.IStore, notifier core.INotifier, mylog logger.Logger, opts Options) *OrderService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limits.MaxItems <= 0 {
		opts.Limits = core.DefaultLimits()
	}
	return &OrderService{
		store:    store,
		notifier: notifier,
		history:  NewHistoryRecorder(opts.Now),
		limits:   opts.Limits,
		policy:   opts.Retry,
		now:      opts.Now,
		mylog:    mylog,
	}
}

// Create places an order: stock is checked and reserved under row locks, the
// order, its lines and a created history row commit together, and the new
// order is pushed to subscribers afterwards.
func (os *OrderService) Create(ctx context.Context, tenantID string, req dto.CreateOrderRequest, actor models.Actor) (models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.create", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Bool("order.public", actor.Public),
	))
	mylog := os.mylog.Action("create_order").With("tenant_id", tenantID, "actor", actor.Name())

	status, err := os.validateCreate(req, actor)
	if err != nil {
		mylog.Warn("Order rejected", "reason", err.Error())
		return models.Order{}, endSpan(span, err)
	}

	var riderID *int64
	if req.Delivery() && req.RiderID != nil && actor.Privileged() {
		riderID = req.RiderID
	}

	order, err := retry.Do(ctx, os.policy, func(ctx context.Context) (models.Order, error) {
		var created models.Order
		err := os.store.WithTx(ctx, func(ctx context.Context, tx core.ITx) error {
			var err error
			created, err = os.createTx(ctx, tx, tenantID, req, status, riderID, actor)
			return err
		})
		return created, permanent(err)
	})
	if err != nil {
		logFailure(mylog, "Failed to create order", err)
		return models.Order{}, endSpan(span, err)
	}

	span.SetAttributes(attribute.Int64("order.id", order.OrderID))
	mylog.Info("Order created", "order_id", order.OrderID, "total_price", order.TotalPrice.String(), "customer_phone", deref(order.CustomerPhone))
	os.notifier.Notify(tenantID, order, models.EventNewOrder)
	return order, endSpan(span, nil)
}

func (os *OrderService) createTx(
	ctx context.Context,
	tx core.ITx,
	tenantID string,
	req dto.CreateOrderRequest,
	status models.Status,
	riderID *int64,
	actor models.Actor,
) (models.Order, error) {
	ok, err := tx.TenantExists(ctx, tenantID)
	if err != nil {
		return models.Order{}, err
	}
	if !ok {
		return models.Order{}, core.ErrTenantNotFound
	}

	menu, err := os.ledger.Lock(ctx, tx, tenantID, itemIDs(req.Items))
	if err != nil {
		return models.Order{}, err
	}

	lines := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		m, ok := menu[it.ItemID]
		if !ok {
			return models.Order{}, fmt.Errorf("%w: %d", core.ErrMenuItemNotFound, it.ItemID)
		}
		if m.StockQuantity < it.Quantity {
			return models.Order{}, fmt.Errorf("%w for %s, available: %d", core.ErrInsufficientStock, m.Name, m.StockQuantity)
		}
		lines = append(lines, models.OrderItem{ItemID: m.ItemID, Name: m.Name, Quantity: it.Quantity, Price: m.Price})
	}

	total := models.SumItems(lines)
	if err := os.checkTotal(total); err != nil {
		return models.Order{}, err
	}

	if riderID != nil {
		if err := os.checkRider(ctx, tx, tenantID, *riderID, 0); err != nil {
			return models.Order{}, err
		}
	}

	for _, it := range req.Items {
		m := menu[it.ItemID]
		if err := os.ledger.Reserve(ctx, tx, &m, it.Quantity); err != nil {
			return models.Order{}, err
		}
		menu[it.ItemID] = m
	}

	order := models.Order{
		TenantID:         tenantID,
		Status:           status,
		TotalPrice:       total,
		CustomerName:     nonEmpty(req.CustomerName),
		CustomerPhone:    nonEmpty(req.CustomerPhone),
		IsDelivery:       req.Delivery(),
		CustomerLocation: nonEmpty(req.CustomerLocation),
		RiderID:          riderID,
		Items:            lines,
	}
	order.StampPhase(status, os.now())

	if err := tx.InsertOrder(ctx, &order); err != nil {
		return models.Order{}, err
	}
	if err := tx.ReplaceItems(ctx, tenantID, order.OrderID, lines); err != nil {
		return models.Order{}, err
	}
	if err := os.history.Record(ctx, tx, order, models.ActionCreated, actor); err != nil {
		return models.Order{}, err
	}
	return order, nil
}

// Update applies a partial change. Every attempt re-reads and locks the stored
// order, so a retried attempt computes stock deltas against what is actually
// committed.
func (os *OrderService) Update(ctx context.Context, tenantID string, orderID int64, req dto.UpdateOrderRequest, actor models.Actor) (models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.update", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", orderID),
	))
	mylog := os.mylog.Action("update_order").With("tenant_id", tenantID, "order_id", orderID, "actor", actor.Name())

	if err := os.validateUpdate(req, actor); err != nil {
		mylog.Warn("Update rejected", "reason", err.Error())
		return models.Order{}, endSpan(span, err)
	}

	// fail fast on the committed state before taking any lock
	cur, err := os.store.GetOrder(ctx, tenantID, orderID)
	if err == nil {
		err = checkMutable(cur)
	}
	if err == nil {
		err = authorizeRider(actor, cur, req)
	}
	if err != nil {
		logFailure(mylog, "Update rejected", err)
		return models.Order{}, endSpan(span, err)
	}

	order, err := retry.Do(ctx, os.policy, func(ctx context.Context) (models.Order, error) {
		var updated models.Order
		err := os.store.WithTx(ctx, func(ctx context.Context, tx core.ITx) error {
			var err error
			updated, err = os.updateTx(ctx, tx, tenantID, orderID, req, actor)
			return err
		})
		return updated, permanent(err)
	})
	if err != nil {
		logFailure(mylog, "Failed to update order", err)
		return models.Order{}, endSpan(span, err)
	}

	mylog.Info("Order updated", "status", order.Status, "total_price", order.TotalPrice.String())
	os.notifier.Notify(tenantID, order, models.EventOrderUpdated)
	return order, endSpan(span, nil)
}

func (os *OrderService) updateTx(
	ctx context.Context,
	tx core.ITx,
	tenantID string,
	orderID int64,
	req dto.UpdateOrderRequest,
	actor models.Actor,
) (models.Order, error) {
	cur, err := tx.LockOrder(ctx, tenantID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := checkMutable(cur); err != nil {
		return models.Order{}, err
	}
	if err := authorizeRider(actor, cur, req); err != nil {
		return models.Order{}, err
	}

	next := cur
	next.Items = slices.Clone(cur.Items)

	if req.Status != nil {
		to := models.Status(*req.Status)
		if to != cur.Status && !models.CanTransition(cur.Status, to) {
			return models.Order{}, fmt.Errorf("%w from %s to %s", core.ErrBadTransition, cur.Status, to)
		}
		next.Status = to
	}
	if req.CustomerName.Set {
		next.CustomerName = nonEmpty(req.CustomerName.Value)
	}
	if req.CustomerPhone.Set {
		next.CustomerPhone = nonEmpty(req.CustomerPhone.Value)
	}
	if req.IsDelivery != nil {
		next.IsDelivery = bool(*req.IsDelivery)
	}
	if req.CustomerLocation.Set {
		next.CustomerLocation = nonEmpty(req.CustomerLocation.Value)
	}
	if req.RiderID.Set {
		next.RiderID = req.RiderID.Value
	}
	if next.IsDelivery && next.CustomerLocation == nil {
		return models.Order{}, core.ErrLocationRequired
	}

	if req.Items != nil {
		if err := os.replaceLines(ctx, tx, &next, cur, req.Items); err != nil {
			return models.Order{}, err
		}
	}

	if next.Status == models.StatusCanceled {
		if err := os.releaseAll(ctx, tx, cur); err != nil {
			return models.Order{}, err
		}
	}

	switch {
	case next.Status == models.StatusEnroute && next.RiderID == nil && actor.IsRider():
		id := actor.UserID
		next.RiderID = &id
	case next.RiderID != nil && actor.Privileged() && !sameRider(cur.RiderID, next.RiderID):
		if err := os.checkRider(ctx, tx, tenantID, *next.RiderID, orderID); err != nil {
			return models.Order{}, err
		}
	}

	if next.Status != cur.Status {
		next.StampPhase(next.Status, os.now())
	}

	if err := tx.UpdateOrder(ctx, next); err != nil {
		return models.Order{}, err
	}
	if req.Items != nil {
		if err := tx.ReplaceItems(ctx, tenantID, orderID, next.Items); err != nil {
			return models.Order{}, err
		}
	}
	if err := os.history.Record(ctx, tx, next, models.ActionUpdated, actor); err != nil {
		return models.Order{}, err
	}
	return next, nil
}

// replaceLines swaps the order lines and moves only the per-item difference
// between the previous and the new quantities through the ledger.
func (os *OrderService) replaceLines(ctx context.Context, tx core.ITx, next *models.Order, cur models.Order, items []dto.ItemRequest) error {
	held := cur.Quantities()
	ids := itemIDs(items)
	for id := range held {
		ids = append(ids, id)
	}
	menu, err := os.ledger.Lock(ctx, tx, cur.TenantID, ids)
	if err != nil {
		return err
	}

	lines := make([]models.OrderItem, 0, len(items))
	for _, it := range items {
		m, ok := menu[it.ItemID]
		if !ok {
			return fmt.Errorf("%w: %d", core.ErrMenuItemNotFound, it.ItemID)
		}
		if delta := it.Quantity - held[it.ItemID]; delta > 0 && m.StockQuantity < delta {
			return fmt.Errorf("%w for %s, available: %d", core.ErrInsufficientStock, m.Name, m.StockQuantity)
		}
		lines = append(lines, models.OrderItem{ItemID: m.ItemID, Name: m.Name, Quantity: it.Quantity, Price: m.Price})
	}

	total := models.SumItems(lines)
	if err := os.checkTotal(total); err != nil {
		return err
	}

	kept := make(map[int64]bool, len(items))
	for _, it := range items {
		kept[it.ItemID] = true
		delta := it.Quantity - held[it.ItemID]
		switch {
		case delta > 0:
			m := menu[it.ItemID]
			if err := os.ledger.Reserve(ctx, tx, &m, delta); err != nil {
				return err
			}
			menu[it.ItemID] = m
		case delta < 0:
			if err := os.ledger.Release(ctx, tx, cur.TenantID, it.ItemID, -delta); err != nil {
				return err
			}
		}
	}
	for id, qty := range held {
		if !kept[id] {
			if err := os.releaseHeld(ctx, tx, cur.TenantID, id, qty); err != nil {
				return err
			}
		}
	}

	next.Items = lines
	next.TotalPrice = total
	return nil
}

// Cancel restores stock for every line, records the cancellation and removes
// the order. Manager only.
func (os *OrderService) Cancel(ctx context.Context, tenantID string, orderID int64, actor models.Actor) (models.Order, error) {
	ctx, span := tracer.Start(ctx, "order.cancel", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", orderID),
	))
	mylog := os.mylog.Action("cancel_order").With("tenant_id", tenantID, "order_id", orderID, "actor", actor.Name())

	if actor.Public || actor.Role != models.RoleManager {
		mylog.Warn("Cancel rejected", "role", actor.Role)
		return models.Order{}, endSpan(span, core.ErrRoleDenied)
	}

	cur, err := os.store.GetOrder(ctx, tenantID, orderID)
	if err == nil {
		err = checkMutable(cur)
	}
	if err != nil {
		logFailure(mylog, "Cancel rejected", err)
		return models.Order{}, endSpan(span, err)
	}

	order, err := retry.Do(ctx, os.policy, func(ctx context.Context) (models.Order, error) {
		var canceled models.Order
		err := os.store.WithTx(ctx, func(ctx context.Context, tx core.ITx) error {
			var err error
			canceled, err = os.cancelTx(ctx, tx, tenantID, orderID, actor)
			return err
		})
		return canceled, permanent(err)
	})
	if err != nil {
		logFailure(mylog, "Failed to cancel order", err)
		return models.Order{}, endSpan(span, err)
	}

	mylog.Info("Order canceled", "released_lines", len(order.Items))
	os.notifier.Notify(tenantID, order, models.EventOrderUpdated)
	return order, endSpan(span, nil)
}

func (os *OrderService) cancelTx(ctx context.Context, tx core.ITx, tenantID string, orderID int64, actor models.Actor) (models.Order, error) {
	cur, err := tx.LockOrder(ctx, tenantID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if err := checkMutable(cur); err != nil {
		return models.Order{}, err
	}
	if err := os.releaseAll(ctx, tx, cur); err != nil {
		return models.Order{}, err
	}

	canceled := cur
	canceled.Status = models.StatusCanceled
	if err := os.history.Record(ctx, tx, canceled, models.ActionCanceled, actor); err != nil {
		return models.Order{}, err
	}
	if err := tx.DeleteOrder(ctx, tenantID, orderID); err != nil {
		return models.Order{}, err
	}
	return canceled, nil
}

// releaseAll gives back every unit the order holds.
func (os *OrderService) releaseAll(ctx context.Context, tx core.ITx, order models.Order) error {
	held := order.Quantities()
	ids := make([]int64, 0, len(held))
	for id := range held {
		ids = append(ids, id)
	}
	if _, err := os.ledger.Lock(ctx, tx, order.TenantID, ids); err != nil {
		return err
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := os.releaseHeld(ctx, tx, order.TenantID, id, held[id]); err != nil {
			return err
		}
	}
	return nil
}

// releaseHeld releases stock of a line whose menu item may since have been deleted.
func (os *OrderService) releaseHeld(ctx context.Context, tx core.ITx, tenantID string, itemID int64, qty int) error {
	err := os.ledger.Release(ctx, tx, tenantID, itemID, qty)
	if errors.Is(err, core.ErrMenuItemNotFound) {
		os.mylog.Action("release_skipped").Debug("Menu item no longer exists", "tenant_id", tenantID, "item_id", itemID)
		return nil
	}
	return err
}

func (os *OrderService) checkRider(ctx context.Context, tx core.ITx, tenantID string, riderID, exceptOrderID int64) error {
	ok, err := tx.RiderExists(ctx, tenantID, riderID)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrInvalidRider
	}
	busy, err := tx.RiderBusy(ctx, tenantID, riderID, exceptOrderID)
	if err != nil {
		return err
	}
	if busy {
		return core.ErrRiderBusy
	}
	return nil
}

func checkMutable(o models.Order) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w (status %s)", core.ErrOrderTerminal, o.Status)
	}
	return nil
}

// authorizeRider limits riders to claiming a completed order and to finishing
// their own delivery. Other roles pass through.
func authorizeRider(actor models.Actor, cur models.Order, req dto.UpdateOrderRequest) error {
	if !actor.IsRider() {
		return nil
	}
	if req.Status == nil || !req.OnlyStatus() {
		return core.ErrRiderNotAssigned
	}
	if req.RiderID.Set && (req.RiderID.Value == nil || *req.RiderID.Value != actor.UserID) {
		return core.ErrRiderNotAssigned
	}
	own := cur.RiderID != nil && *cur.RiderID == actor.UserID
	switch models.Status(*req.Status) {
	case models.StatusEnroute:
		if cur.Status == models.StatusCompleted && (cur.RiderID == nil || own) {
			return nil
		}
	case models.StatusDelivered:
		if cur.Status == models.StatusEnroute && own {
			return nil
		}
	}
	return core.ErrRiderNotAssigned
}

// permanent stops the retry loop for rejections that cannot change on re-run.
func permanent(err error) error {
	if err != nil && core.IsDomain(err) {
		return retry.Permanent(err)
	}
	return err
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

func logFailure(mylog logger.Logger, msg string, err error) {
	if core.IsDomain(err) {
		mylog.Warn(msg, "reason", err.Error())
		return
	}
	mylog.Error(msg, err)
}

func itemIDs(items []dto.ItemRequest) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ItemID)
	}
	return ids
}

func sameRider(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
