package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/order/adapter/memory"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/retry"
)

const (
	tenant = "T1"
	soup   = int64(1)
	bread  = int64(2)
)

var (
	manager = models.Actor{UserID: 1, Username: "mgr", Role: models.RoleManager}
	kitchen = models.Actor{UserID: 2, Username: "chef", Role: models.RoleKitchen}
	rider1  = models.Actor{UserID: 7, Username: "r1", Role: models.RoleRider}
	rider2  = models.Actor{UserID: 8, Username: "r2", Role: models.RoleRider}
)

type sentEvent struct {
	tenantID string
	order    models.Order
	kind     models.EventType
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Notify(tenantID string, order models.Order, kind models.EventType) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{tenantID: tenantID, order: order, kind: kind})
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	svc      *OrderService
	store    *memory.Store
	notifier *recordingNotifier
}

func newFixture(t *testing.T, limits core.OrderLimits) *fixture {
	t.Helper()
	store := memory.New()
	store.AddTenant(tenant)
	store.AddMenuItem(models.MenuItem{ItemID: soup, TenantID: tenant, Name: "Soup", Price: decimal.NewFromInt(10), StockQuantity: 5})
	store.AddMenuItem(models.MenuItem{ItemID: bread, TenantID: tenant, Name: "Bread", Price: decimal.RequireFromString("2.5"), StockQuantity: 10})
	store.AddRider(tenant, rider1.UserID)
	store.AddRider(tenant, rider2.UserID)

	n := &recordingNotifier{}
	c := &clock{t: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewOrderService(store, n, logger.Nop(), Options{
		Limits: limits,
		Retry:  retry.Policy{Retries: 3, Initial: time.Millisecond, MaxInterval: time.Millisecond},
		Now:    c.Now,
	})
	return &fixture{svc: svc, store: store, notifier: n}
}

func items(pairs ...int64) []dto.ItemRequest {
	var out []dto.ItemRequest
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, dto.ItemRequest{ItemID: pairs[i], Quantity: int(pairs[i+1])})
	}
	return out
}

func patch(t *testing.T, body string) dto.UpdateOrderRequest {
	t.Helper()
	var req dto.UpdateOrderRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req
}

func strp(s string) *string { return &s }

func (f *fixture) create(t *testing.T, req dto.CreateOrderRequest) models.Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), tenant, req, kitchen)
	require.NoError(t, err)
	return o
}

func snapshotTotal(t *testing.T, h models.HistoryEntry) float64 {
	t.Helper()
	var d dto.HistoryDetails
	require.NoError(t, json.Unmarshal(h.Details, &d))
	return d.TotalPrice
}

func TestCreateOrder(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	lying := 0.01
	req := dto.CreateOrderRequest{
		Items:        []dto.ItemRequest{{ItemID: soup, Quantity: 2, Price: &lying}, {ItemID: bread, Quantity: 3}},
		CustomerName: strp("Ana"),
	}

	o, err := f.svc.Create(context.Background(), tenant, req, kitchen)
	require.NoError(t, err)

	assert.NotZero(t, o.OrderID)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.True(t, decimal.RequireFromString("27.5").Equal(o.TotalPrice), o.TotalPrice.String())
	assert.Equal(t, 3, f.store.Stock(tenant, soup))
	assert.Equal(t, 7, f.store.Stock(tenant, bread))
	assert.Nil(t, o.PreparationStartTime)

	stored, err := f.store.GetOrder(context.Background(), tenant, o.OrderID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	assert.Equal(t, "Soup", stored.Items[0].Name)

	hist := f.store.History(o.OrderID)
	require.Len(t, hist, 1)
	assert.Equal(t, models.ActionCreated, hist[0].Action)
	assert.Equal(t, "chef", hist[0].ChangedBy)
	assert.Equal(t, 27.5, snapshotTotal(t, hist[0]))

	events := f.notifier.sent()
	require.Len(t, events, 1)
	assert.Equal(t, models.EventNewOrder, events[0].kind)
	assert.Equal(t, o.OrderID, events[0].order.OrderID)
}

func TestCreateOrderPreparingStampsStart(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 1), Status: "preparing"})
	assert.NotNil(t, o.PreparationStartTime)
}

func TestCreateOrderPublic(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	req := dto.CreateOrderRequest{
		Items:         items(bread, 1),
		Status:        "completed",
		CustomerName:  strp("Ana"),
		CustomerPhone: strp("+15551234567"),
		RiderID:       &rider1.UserID,
	}

	o, err := f.svc.Create(context.Background(), tenant, req, models.CustomerActor())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status, "public orders always start pending")
	assert.Nil(t, o.RiderID)
	assert.Equal(t, "customer", f.store.History(o.OrderID)[0].ChangedBy)
}

func TestCreateOrderRejections(t *testing.T) {
	delivery := dto.Flag(true)
	tests := []struct {
		name   string
		tenant string
		req    dto.CreateOrderRequest
		actor  models.Actor
		want   error
	}{
		{"no items", tenant, dto.CreateOrderRequest{}, kitchen, core.ErrEmptyItems},
		{"duplicate items", tenant, dto.CreateOrderRequest{Items: items(soup, 1, soup, 2)}, kitchen, core.ErrDuplicateItems},
		{"too many items", tenant, dto.CreateOrderRequest{Items: items(soup, 1, bread, 1, 3, 1)}, kitchen, core.ErrTooManyItems},
		{"zero quantity", tenant, dto.CreateOrderRequest{Items: items(soup, 0)}, kitchen, core.ErrBadItem},
		{"unknown item", tenant, dto.CreateOrderRequest{Items: items(99, 1)}, kitchen, core.ErrNotFound},
		{"unknown tenant", "T9", dto.CreateOrderRequest{Items: items(soup, 1)}, kitchen, core.ErrTenantNotFound},
		{"insufficient stock", tenant, dto.CreateOrderRequest{Items: items(soup, 6)}, kitchen, core.ErrInsufficientStock},
		{"total too high", tenant, dto.CreateOrderRequest{Items: items(soup, 5, bread, 1)}, kitchen, core.ErrTotalTooHigh},
		{"terminal status", tenant, dto.CreateOrderRequest{Items: items(soup, 1), Status: "delivered"}, kitchen, core.ErrBadStatus},
		{"unknown status", tenant, dto.CreateOrderRequest{Items: items(soup, 1), Status: "lost"}, kitchen, core.ErrBadStatus},
		{"delivery without location", tenant, dto.CreateOrderRequest{Items: items(soup, 1), IsDelivery: &delivery}, kitchen, core.ErrLocationRequired},
		{"public without phone", tenant, dto.CreateOrderRequest{Items: items(soup, 1), CustomerName: strp("Ana")}, models.CustomerActor(), core.ErrCustomerRequired},
		{"public malformed phone", tenant, dto.CreateOrderRequest{Items: items(soup, 1), CustomerName: strp("Ana"), CustomerPhone: strp("12ab")}, models.CustomerActor(), core.ErrBadPhone},
		{"busy rider", tenant, dto.CreateOrderRequest{Items: items(soup, 1), IsDelivery: &delivery, CustomerLocation: strp("Main St"), RiderID: &rider1.UserID}, kitchen, core.ErrRiderBusy},
		{"unknown rider", tenant, dto.CreateOrderRequest{Items: items(soup, 1), IsDelivery: &delivery, CustomerLocation: strp("Main St"), RiderID: new(int64)}, kitchen, core.ErrInvalidRider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, core.OrderLimits{MaxItems: 2, MaxTotal: decimal.NewFromInt(50)})
			f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusEnroute, RiderID: &rider1.UserID})

			_, err := f.svc.Create(context.Background(), tt.tenant, tt.req, tt.actor)

			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 5, f.store.Stock(tenant, soup), "no stock moved")
			assert.Equal(t, 10, f.store.Stock(tenant, bread), "no stock moved")
			assert.Empty(t, f.notifier.sent())
		})
	}
}

func TestConcurrentCreatesNeverOversell(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), tenant, dto.CreateOrderRequest{Items: items(soup, 2)}, kitchen)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, core.ErrInsufficientStock):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded)
	assert.Equal(t, attempts-2, conflicts)
	assert.Equal(t, 1, f.store.Stock(tenant, soup))
}

func TestStockScenario(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()

	a := f.create(t, dto.CreateOrderRequest{Items: items(soup, 3)})
	assert.Equal(t, 2, f.store.Stock(tenant, soup))

	_, err := f.svc.Create(ctx, tenant, dto.CreateOrderRequest{Items: items(soup, 3)}, kitchen)
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	assert.Equal(t, 2, f.store.Stock(tenant, soup))

	updated, err := f.svc.Update(ctx, tenant, a.OrderID, patch(t, `{"items":[{"item_id":1,"quantity":1}]}`), manager)
	require.NoError(t, err)
	assert.Equal(t, 4, f.store.Stock(tenant, soup))
	assert.True(t, decimal.NewFromInt(10).Equal(updated.TotalPrice))
}

func TestUpdateItemsMovesOnlyTheDifference(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 2, bread, 3)})
	require.Equal(t, 3, f.store.Stock(tenant, soup))
	require.Equal(t, 7, f.store.Stock(tenant, bread))

	_, err := f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"items":[{"item_id":2,"quantity":5}]}`), manager)
	require.NoError(t, err)
	assert.Equal(t, 5, f.store.Stock(tenant, soup), "removed line releases everything it held")
	assert.Equal(t, 5, f.store.Stock(tenant, bread), "grown line reserves only the delta")

	_, err = f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"items":[{"item_id":2,"quantity":11}]}`), manager)
	assert.ErrorIs(t, err, core.ErrInsufficientStock)
	assert.Equal(t, 5, f.store.Stock(tenant, bread))
}

func TestUpdateReleasesLinesOfDeletedMenuItems(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 1)})
	f.store.RemoveMenuItem(tenant, soup)

	_, err := f.svc.Update(context.Background(), tenant, o.OrderID, patch(t, `{"items":[{"item_id":2,"quantity":1}]}`), manager)
	require.NoError(t, err)
	assert.Equal(t, 9, f.store.Stock(tenant, bread))
}

func TestTransitionLegality(t *testing.T) {
	all := []models.Status{
		models.StatusPending, models.StatusPreparing, models.StatusCompleted,
		models.StatusEnroute, models.StatusDelivered, models.StatusCanceled,
	}
	for _, from := range all {
		for _, to := range all {
			if from == to {
				continue
			}
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t, core.DefaultLimits())
				id := f.store.PutOrder(models.Order{
					TenantID:   tenant,
					Status:     from,
					TotalPrice: decimal.NewFromInt(10),
					Items:      []models.OrderItem{{ItemID: soup, Name: "Soup", Quantity: 1, Price: decimal.NewFromInt(10)}},
				})

				_, err := f.svc.Update(context.Background(), tenant, id, patch(t, `{"status":"`+string(to)+`"}`), manager)

				stored, getErr := f.store.GetOrder(context.Background(), tenant, id)
				require.NoError(t, getErr)
				switch {
				case from.IsTerminal():
					assert.ErrorIs(t, err, core.ErrOrderTerminal)
					assert.Equal(t, from, stored.Status)
				case models.CanTransition(from, to):
					assert.NoError(t, err)
					assert.Equal(t, to, stored.Status)
				default:
					assert.ErrorIs(t, err, core.ErrBadTransition)
					assert.Equal(t, from, stored.Status)
				}
			})
		}
	}
}

func TestUpdateToCanceledReleasesStock(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 4)})

	_, err := f.svc.Update(context.Background(), tenant, o.OrderID, patch(t, `{"status":"canceled","items":[{"item_id":1,"quantity":1}]}`), manager)
	assert.ErrorIs(t, err, core.ErrItemsWhileCancel)

	_, err = f.svc.Update(context.Background(), tenant, o.OrderID, patch(t, `{"status":"canceled"}`), manager)
	require.NoError(t, err)
	assert.Equal(t, 5, f.store.Stock(tenant, soup))
}

func TestRiderClaimAndDeliver(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	id := f.store.PutOrder(models.Order{
		TenantID:         tenant,
		Status:           models.StatusCompleted,
		IsDelivery:       true,
		CustomerLocation: strp("Main St 1"),
	})

	claimed, err := f.svc.Update(ctx, tenant, id, patch(t, `{"status":"enroute"}`), rider1)
	require.NoError(t, err)
	require.NotNil(t, claimed.RiderID)
	assert.Equal(t, rider1.UserID, *claimed.RiderID)
	assert.NotNil(t, claimed.DeliveryStartTime)

	_, err = f.svc.Update(ctx, tenant, id, patch(t, `{"status":"delivered"}`), rider2)
	assert.ErrorIs(t, err, core.ErrForbidden)
	stored, err := f.store.GetOrder(ctx, tenant, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnroute, stored.Status)

	done, err := f.svc.Update(ctx, tenant, id, patch(t, `{"status":"delivered"}`), rider1)
	require.NoError(t, err)
	assert.NotNil(t, done.DeliveryEndTime)
}

func TestRiderLimits(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	id := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusCompleted, IsDelivery: true, CustomerLocation: strp("x")})
	pending := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusPending})

	tests := []struct {
		name  string
		order int64
		body  string
	}{
		{"other fields", id, `{"status":"enroute","customerName":"x"}`},
		{"no status", id, `{"rider_id":7}`},
		{"claims for someone else", id, `{"status":"enroute","rider_id":8}`},
		{"wrong phase", pending, `{"status":"preparing"}`},
		{"delivers unassigned", id, `{"status":"delivered"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tenant, tt.order, patch(t, tt.body), rider1)
			assert.ErrorIs(t, err, core.ErrForbidden)
		})
	}

	_, err := f.svc.Update(ctx, tenant, id, patch(t, `{"status":"enroute"}`), models.Actor{Username: "x", Role: "cashier"})
	assert.ErrorIs(t, err, core.ErrRoleDenied)
}

func TestManagerRiderAssignment(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	busy := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusEnroute, IsDelivery: true, CustomerLocation: strp("a"), RiderID: &rider1.UserID})
	target := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusCompleted, IsDelivery: true, CustomerLocation: strp("b")})

	_, err := f.svc.Update(ctx, tenant, target, patch(t, `{"rider_id":7}`), manager)
	assert.ErrorIs(t, err, core.ErrRiderBusy)

	_, err = f.svc.Update(ctx, tenant, target, patch(t, `{"rider_id":99}`), manager)
	assert.ErrorIs(t, err, core.ErrInvalidRider)

	o, err := f.svc.Update(ctx, tenant, target, patch(t, `{"rider_id":8}`), kitchen)
	require.NoError(t, err)
	assert.Equal(t, rider2.UserID, *o.RiderID)

	_, err = f.svc.Update(ctx, tenant, busy, patch(t, `{"customerName":"Zed"}`), manager)
	assert.NoError(t, err, "the order a rider is enroute on does not conflict with itself")
}

func TestTimestampsStampOnce(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	o := f.create(t, dto.CreateOrderRequest{Items: items(bread, 1)})

	first, err := f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"status":"preparing"}`), kitchen)
	require.NoError(t, err)
	require.NotNil(t, first.PreparationStartTime)

	second, err := f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"status":"preparing"}`), kitchen)
	require.NoError(t, err)
	assert.Equal(t, *first.PreparationStartTime, *second.PreparationStartTime)
}

func TestTerminalOrdersAreImmutable(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	delivered := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusDelivered, CustomerName: strp("Ana")})
	canceled := f.store.PutOrder(models.Order{TenantID: tenant, Status: models.StatusCanceled, CustomerName: strp("Ana")})

	for _, id := range []int64{delivered, canceled} {
		before, err := f.store.GetOrder(ctx, tenant, id)
		require.NoError(t, err)

		_, err = f.svc.Update(ctx, tenant, id, patch(t, `{"customerName":"Bob"}`), manager)
		assert.ErrorIs(t, err, core.ErrOrderTerminal)
		_, err = f.svc.Cancel(ctx, tenant, id, manager)
		assert.ErrorIs(t, err, core.ErrOrderTerminal)

		after, err := f.store.GetOrder(ctx, tenant, id)
		require.NoError(t, err)
		assert.Equal(t, before, after)
		assert.Empty(t, f.store.History(id))
	}
	assert.Empty(t, f.notifier.sent())
}

func TestCancel(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 3, bread, 2)})

	_, err := f.svc.Cancel(ctx, tenant, o.OrderID, kitchen)
	assert.ErrorIs(t, err, core.ErrRoleDenied)

	canceled, err := f.svc.Cancel(ctx, tenant, o.OrderID, manager)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, canceled.Status)
	assert.Equal(t, 5, f.store.Stock(tenant, soup))
	assert.Equal(t, 10, f.store.Stock(tenant, bread))

	_, err = f.store.GetOrder(ctx, tenant, o.OrderID)
	assert.ErrorIs(t, err, core.ErrOrderNotFound)

	_, err = f.svc.Cancel(ctx, tenant, o.OrderID, manager)
	assert.ErrorIs(t, err, core.ErrOrderNotFound)

	events := f.notifier.sent()
	require.Len(t, events, 2)
	assert.Equal(t, models.EventOrderUpdated, events[1].kind)
	assert.Equal(t, models.StatusCanceled, events[1].order.Status)
}

func TestHistoryCompleteness(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 1)})
	u, err := f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"items":[{"item_id":1,"quantity":2},{"item_id":2,"quantity":2}]}`), manager)
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, tenant, o.OrderID, patch(t, `{"items":[{"item_id":1,"quantity":50}]}`), manager)
	require.Error(t, err)
	c, err := f.svc.Cancel(ctx, tenant, o.OrderID, manager)
	require.NoError(t, err)

	hist := f.store.History(o.OrderID)
	require.Len(t, hist, 3, "rejected mutations leave no history")
	assert.Equal(t, []models.HistoryAction{models.ActionCreated, models.ActionUpdated, models.ActionCanceled},
		[]models.HistoryAction{hist[0].Action, hist[1].Action, hist[2].Action})
	assert.Equal(t, o.TotalPrice.InexactFloat64(), snapshotTotal(t, hist[0]))
	assert.Equal(t, u.TotalPrice.InexactFloat64(), snapshotTotal(t, hist[1]))
	assert.Equal(t, c.TotalPrice.InexactFloat64(), snapshotTotal(t, hist[2]))
}

func TestRetriesTransientFailures(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	f.store.FailCommits(core.ErrTransient, core.ErrTransient, core.ErrTransient)

	o := f.create(t, dto.CreateOrderRequest{Items: items(soup, 1)})
	assert.Equal(t, 4, f.store.Stock(tenant, soup), "only the committed attempt moved stock")
	assert.Len(t, f.store.History(o.OrderID), 1)
	assert.Len(t, f.notifier.sent(), 1)
}

func TestRetriesExhausted(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	f.store.FailCommits(core.ErrTransient, core.ErrTransient, core.ErrTransient, core.ErrTransient)

	_, err := f.svc.Create(context.Background(), tenant, dto.CreateOrderRequest{Items: items(soup, 1)}, kitchen)
	assert.ErrorIs(t, err, core.ErrTransient)
	assert.Equal(t, 5, f.store.Stock(tenant, soup))
	assert.Empty(t, f.notifier.sent())
}

func TestTrack(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()
	o, err := f.svc.Create(ctx, tenant, dto.CreateOrderRequest{
		Items: items(bread, 1), CustomerName: strp("Ana"), CustomerPhone: strp("+15551234567"),
	}, models.CustomerActor())
	require.NoError(t, err)

	got, err := f.svc.Track(ctx, tenant, o.OrderID, "+15551234567")
	require.NoError(t, err)
	assert.Equal(t, o.OrderID, got.OrderID)

	_, err = f.svc.Track(ctx, tenant, o.OrderID, "+15550000000")
	assert.ErrorIs(t, err, core.ErrPhoneMismatch)
	_, err = f.svc.Track(ctx, tenant, o.OrderID, "")
	assert.ErrorIs(t, err, core.ErrPhoneRequired)
	_, err = f.svc.Track(ctx, "T9", o.OrderID, "+15551234567")
	assert.ErrorIs(t, err, core.ErrTenantNotFound)
}

func TestRestock(t *testing.T) {
	f := newFixture(t, core.DefaultLimits())
	ctx := context.Background()

	stock, err := f.svc.Restock(ctx, tenant, soup, 7, manager)
	require.NoError(t, err)
	assert.Equal(t, 12, stock)
	assert.Equal(t, 12, f.store.Stock(tenant, soup))

	_, err = f.svc.Restock(ctx, tenant, soup, 0, manager)
	assert.ErrorIs(t, err, core.ErrBadRestock)
	_, err = f.svc.Restock(ctx, tenant, 99, 1, manager)
	assert.ErrorIs(t, err, core.ErrMenuItemNotFound)
	_, err = f.svc.Restock(ctx, tenant, soup, 1, kitchen)
	assert.ErrorIs(t, err, core.ErrRoleDenied)
}
