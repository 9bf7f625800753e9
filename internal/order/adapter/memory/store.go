// Package memory is an in-process order store. Transactions run one at a time
// against a private copy of the state that replaces the shared one on commit,
// which makes them serializable.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
)

type state struct {
	tenants     map[string]bool
	riders      map[string]map[int64]bool
	menu        map[string]map[int64]models.MenuItem
	orders      map[int64]models.Order
	history     []models.HistoryEntry
	nextOrderID int64
}

func (s *state) clone() *state {
	c := &state{
		tenants:     make(map[string]bool, len(s.tenants)),
		riders:      make(map[string]map[int64]bool, len(s.riders)),
		menu:        make(map[string]map[int64]models.MenuItem, len(s.menu)),
		orders:      make(map[int64]models.Order, len(s.orders)),
		history:     append([]models.HistoryEntry(nil), s.history...),
		nextOrderID: s.nextOrderID,
	}
	for k, v := range s.tenants {
		c.tenants[k] = v
	}
	for tenant, ids := range s.riders {
		m := make(map[int64]bool, len(ids))
		for id := range ids {
			m[id] = true
		}
		c.riders[tenant] = m
	}
	for tenant, items := range s.menu {
		m := make(map[int64]models.MenuItem, len(items))
		for id, it := range items {
			m[id] = it
		}
		c.menu[tenant] = m
	}
	for id, o := range s.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

type Store struct {
	mu    sync.Mutex
	st    *state
	now   func() time.Time
	fails []error
}

func New() *Store {
	return &Store{
		st: &state{
			tenants: map[string]bool{},
			riders:  map[string]map[int64]bool{},
			menu:    map[string]map[int64]models.MenuItem{},
			orders:  map[int64]models.Order{},
		},
		now: time.Now,
	}
}

// FailCommits makes the next len(errs) transactions fail at commit with the
// given errors, in order. Their writes are discarded.
func (s *Store) FailCommits(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, errs...)
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx core.ITx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &tx{st: work, now: s.now}); err != nil {
		return err
	}
	if len(s.fails) > 0 {
		err := s.fails[0]
		s.fails = s.fails[1:]
		return err
	}
	s.st = work
	return nil
}

func (s *Store) TenantExists(_ context.Context, tenantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.tenants[tenantID], nil
}

func (s *Store) GetOrder(_ context.Context, tenantID string, orderID int64) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return models.Order{}, core.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) FindOrderByPhone(ctx context.Context, tenantID string, orderID int64, phone string) (models.Order, error) {
	o, err := s.GetOrder(ctx, tenantID, orderID)
	if err != nil {
		return models.Order{}, err
	}
	if o.CustomerPhone == nil || *o.CustomerPhone != phone {
		return models.Order{}, core.ErrOrderNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(f.Search)
	var out []models.Order
	for _, o := range s.st.orders {
		if o.TenantID != f.TenantID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if search != "" && !contains(o.CustomerName, search) && !contains(o.CustomerPhone, search) {
			continue
		}
		out = append(out, copyOrder(o))
	}

	col := f.SortColumn()
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		var c int
		switch col {
		case "order_id":
			c = cmpInt(a.OrderID, b.OrderID)
		case "total_price":
			c = a.TotalPrice.Cmp(b.TotalPrice)
		default:
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if c == 0 {
			c = cmpInt(a.OrderID, b.OrderID)
		}
		if f.Ascending {
			return c < 0
		}
		return c > 0
	})

	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		end := min(f.Offset+f.Limit, len(out))
		out = out[f.Offset:end]
	}
	return out, nil
}

func (s *Store) MenuItems(_ context.Context, tenantID string) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]models.MenuItem, 0, len(s.st.menu[tenantID]))
	for _, it := range s.st.menu[tenantID] {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items, nil
}

func (s *Store) ListHistory(_ context.Context, tenantID string) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.HistoryEntry
	for i := len(s.st.history) - 1; i >= 0; i-- {
		if h := s.st.history[i]; h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ChangedAt.After(out[j].ChangedAt) })
	return out, nil
}

// Seeding and inspection helpers.

func (s *Store) AddTenant(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.tenants[tenantID] = true
}

func (s *Store) AddRider(tenantID string, riderID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.riders[tenantID] == nil {
		s.st.riders[tenantID] = map[int64]bool{}
	}
	s.st.riders[tenantID][riderID] = true
}

func (s *Store) AddMenuItem(item models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.menu[item.TenantID] == nil {
		s.st.menu[item.TenantID] = map[int64]models.MenuItem{}
	}
	s.st.menu[item.TenantID][item.ItemID] = item
}

func (s *Store) RemoveMenuItem(tenantID string, itemID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.st.menu[tenantID], itemID)
}

// Stock returns the current counter, or -1 if the item does not exist.
func (s *Store) Stock(tenantID string, itemID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.st.menu[tenantID][itemID]
	if !ok {
		return -1
	}
	return it.StockQuantity
}

// PutOrder stores an order as is, bypassing the lifecycle rules.
func (s *Store) PutOrder(o models.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.OrderID == 0 {
		s.st.nextOrderID++
		o.OrderID = s.st.nextOrderID
	} else if o.OrderID > s.st.nextOrderID {
		s.st.nextOrderID = o.OrderID
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.st.orders[o.OrderID] = copyOrder(o)
	return o.OrderID
}

// History returns every audit row for the order, oldest first.
func (s *Store) History(orderID int64) []models.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.HistoryEntry
	for _, h := range s.st.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out
}

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) TenantExists(_ context.Context, tenantID string) (bool, error) {
	return t.st.tenants[tenantID], nil
}

func (t *tx) LockMenuItems(_ context.Context, tenantID string, itemIDs []int64) (map[int64]models.MenuItem, error) {
	out := make(map[int64]models.MenuItem, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := t.st.menu[tenantID][id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (t *tx) AdjustStock(_ context.Context, tenantID string, itemID int64, delta int) (int, error) {
	it, ok := t.st.menu[tenantID][itemID]
	if !ok {
		return 0, core.ErrMenuItemNotFound
	}
	if it.StockQuantity+delta < 0 {
		return it.StockQuantity, core.ErrInsufficientStock
	}
	it.StockQuantity += delta
	t.st.menu[tenantID][itemID] = it
	return it.StockQuantity, nil
}

func (t *tx) LockOrder(_ context.Context, tenantID string, orderID int64) (models.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return models.Order{}, core.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *tx) RiderExists(_ context.Context, tenantID string, riderID int64) (bool, error) {
	return t.st.riders[tenantID][riderID], nil
}

func (t *tx) RiderBusy(_ context.Context, tenantID string, riderID, exceptOrderID int64) (bool, error) {
	for id, o := range t.st.orders {
		if id == exceptOrderID || o.TenantID != tenantID || o.RiderID == nil {
			continue
		}
		if *o.RiderID == riderID && o.Status == models.StatusEnroute {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertOrder(_ context.Context, order *models.Order) error {
	t.st.nextOrderID++
	order.OrderID = t.st.nextOrderID
	if order.CreatedAt.IsZero() {
		order.CreatedAt = t.now()
	}
	row := *order
	row.Items = nil
	t.st.orders[order.OrderID] = row
	return nil
}

func (t *tx) UpdateOrder(_ context.Context, order models.Order) error {
	cur, ok := t.st.orders[order.OrderID]
	if !ok || cur.TenantID != order.TenantID {
		return core.ErrOrderNotFound
	}
	order.Items = cur.Items
	order.CreatedAt = cur.CreatedAt
	t.st.orders[order.OrderID] = order
	return nil
}

func (t *tx) ReplaceItems(_ context.Context, tenantID string, orderID int64, items []models.OrderItem) error {
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return core.ErrOrderNotFound
	}
	o.Items = append([]models.OrderItem(nil), items...)
	t.st.orders[orderID] = o
	return nil
}

func (t *tx) DeleteOrder(_ context.Context, tenantID string, orderID int64) error {
	o, ok := t.st.orders[orderID]
	if !ok || o.TenantID != tenantID {
		return core.ErrOrderNotFound
	}
	delete(t.st.orders, orderID)
	return nil
}

func (t *tx) InsertHistory(_ context.Context, entry models.HistoryEntry) error {
	if entry.ChangedAt.IsZero() {
		return errors.New("history entry without timestamp")
	}
	t.st.history = append(t.st.history, entry)
	return nil
}

func contains(s *string, sub string) bool {
	return s != nil && strings.Contains(strings.ToLower(*s), sub)
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
