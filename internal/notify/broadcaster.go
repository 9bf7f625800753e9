package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/logger"
)

const (
	notAvailable = "N/A"
	unknownItem  = "Unknown Item"
)

var tracer = otel.Tracer("restaurant-orders/notify")

// MenuReader returns the live menu of a tenant.
type MenuReader interface {
	MenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
}

// Broadcaster turns committed orders into push envelopes and hands them to a
// relay. Notify never blocks the caller.
type Broadcaster struct {
	menu    MenuReader
	relay   Relay
	timeout time.Duration
	mylog   logger.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

func NewBroadcaster(menu MenuReader, relay Relay, timeout time.Duration, mylog logger.Logger) *Broadcaster {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broadcaster{
		menu:    menu,
		relay:   relay,
		timeout: timeout,
		mylog:   mylog,
	}
}

func (b *Broadcaster) Notify(tenantID string, order models.Order, event models.EventType) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.mylog.Action("broadcast_skipped").Warn("Broadcaster stopped, notification dropped",
			"tenant_id", tenantID, "order_id", order.OrderID, "type", event)
		return
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		b.broadcast(ctx, tenantID, order, event)
	}()
}

// Wait stops accepting new broadcasts, then blocks until in-flight ones
// finish or ctx is done.
func (b *Broadcaster) Wait(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Broadcaster) broadcast(ctx context.Context, tenantID string, order models.Order, event models.EventType) {
	ctx, span := tracer.Start(ctx, "order.broadcast")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("order.id", order.OrderID),
		attribute.String("event.type", string(event)),
	)

	log := b.mylog.Action("broadcast").With("tenant_id", tenantID, "order_id", order.OrderID, "type", event)

	payload, err := b.envelope(ctx, tenantID, order, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to build order notification", err)
		return
	}

	msg := Message{TenantID: tenantID, OrderID: order.OrderID, Payload: payload}
	if err := b.relay.Publish(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to publish order notification", err)
		return
	}
	log.Debug("Order notification published")
}

// envelope renders the message with item names and prices taken from the
// live menu when the item still exists.
func (b *Broadcaster) envelope(ctx context.Context, tenantID string, order models.Order, event models.EventType) ([]byte, error) {
	menu, err := b.menu.MenuItems(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	live := make(map[int64]models.MenuItem, len(menu))
	for _, it := range menu {
		live[it.ItemID] = it
	}

	view := dto.NewOrderView(order)
	view.CreatedAt = nil
	for i := range view.Items {
		it := &view.Items[i]
		if m, ok := live[it.ItemID]; ok {
			if m.Name != "" {
				it.Name = m.Name
			}
			it.Price = m.Price.InexactFloat64()
		}
		if it.Name == "" {
			it.Name = unknownItem
		}
	}
	view.CustomerName = orNA(view.CustomerName)
	view.CustomerPhone = orNA(view.CustomerPhone)

	return json.Marshal(dto.Envelope{Type: event, Order: view})
}

func orNA(s *string) *string {
	if s == nil || *s == "" {
		v := notAvailable
		return &v
	}
	return s
}
