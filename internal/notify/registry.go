// Package notify pushes committed order changes to connected staff and
// customers.
package notify

import (
	"errors"
	"sync"

	"restaurant-orders/internal/xpkg/logger"
)

// Close codes used on the push channel.
const (
	ClosePolicyViolation = 1008
	CloseGoingAway       = 1001
)

var ErrRegistryClosed = errors.New("registry closed")

// Conn is one live subscriber.
type Conn interface {
	ID() string
	// Send queues payload without blocking. It reports false if the payload
	// was dropped.
	Send(payload []byte) bool
	// Done is closed once the underlying transport is gone.
	Done() <-chan struct{}
	Close(code int, reason string)
}

// Sink receives envelopes that should reach local subscribers.
type Sink interface {
	Deliver(tenantID string, orderID int64, payload []byte) int
}

type orderKey struct {
	tenantID string
	orderID  int64
}

type membership struct {
	staff  bool
	tenant string
	order  orderKey
}

// Registry holds staff connections by tenant and customer connections by
// order. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	staff     map[string]map[string]Conn
	customers map[orderKey]map[string]Conn
	members   map[string]membership
	closed    bool
	mylog     logger.Logger
}

func NewRegistry(mylog logger.Logger) *Registry {
	return &Registry{
		staff:     map[string]map[string]Conn{},
		customers: map[orderKey]map[string]Conn{},
		members:   map[string]membership{},
		mylog:     mylog,
	}
}

func (r *Registry) AddStaff(tenantID string, c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	set := r.staff[tenantID]
	if set == nil {
		set = map[string]Conn{}
		r.staff[tenantID] = set
	}
	set[c.ID()] = c
	r.members[c.ID()] = membership{staff: true, tenant: tenantID}
	return nil
}

func (r *Registry) AddCustomer(tenantID string, orderID int64, c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRegistryClosed
	}
	key := orderKey{tenantID: tenantID, orderID: orderID}
	set := r.customers[key]
	if set == nil {
		set = map[string]Conn{}
		r.customers[key] = set
	}
	set[c.ID()] = c
	r.members[c.ID()] = membership{order: key}
	return nil
}

// Remove drops c from whichever set holds it. Empty sets are deleted.
func (r *Registry) Remove(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c.ID())
}

func (r *Registry) removeLocked(id string) {
	m, ok := r.members[id]
	if !ok {
		return
	}
	delete(r.members, id)
	if m.staff {
		delete(r.staff[m.tenant], id)
		if len(r.staff[m.tenant]) == 0 {
			delete(r.staff, m.tenant)
		}
		return
	}
	delete(r.customers[m.order], id)
	if len(r.customers[m.order]) == 0 {
		delete(r.customers, m.order)
	}
}

// Deliver sends payload to every staff connection of the tenant and every
// customer connection watching the order. It returns the number of
// connections that accepted the payload.
func (r *Registry) Deliver(tenantID string, orderID int64, payload []byte) int {
	r.mu.RLock()
	targets := make([]Conn, 0, len(r.staff[tenantID]))
	for _, c := range r.staff[tenantID] {
		targets = append(targets, c)
	}
	for _, c := range r.customers[orderKey{tenantID: tenantID, orderID: orderID}] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		select {
		case <-c.Done():
			continue
		default:
		}
		if c.Send(payload) {
			sent++
		} else {
			r.mylog.Action("push_dropped").Warn("Subscriber queue full, message dropped",
				"conn_id", c.ID(), "tenant_id", tenantID, "order_id", orderID)
		}
	}
	return sent
}

// Sweep prunes connections whose transport has closed and returns how many
// were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []string
	collect := func(set map[string]Conn) {
		for id, c := range set {
			select {
			case <-c.Done():
				dead = append(dead, id)
			default:
			}
		}
	}
	for _, set := range r.staff {
		collect(set)
	}
	for _, set := range r.customers {
		collect(set)
	}
	for _, id := range dead {
		r.removeLocked(id)
	}
	return len(dead)
}

// Stats returns the number of staff and customer connections and the number
// of non-empty membership sets.
func (r *Registry) Stats() (staff, customers, sets int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.staff {
		staff += len(set)
	}
	for _, set := range r.customers {
		customers += len(set)
	}
	return staff, customers, len(r.staff) + len(r.customers)
}

// Close closes every connection and refuses further registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := make([]Conn, 0, len(r.members))
	for _, set := range r.staff {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	for _, set := range r.customers {
		for _, c := range set {
			conns = append(conns, c)
		}
	}
	r.staff = map[string]map[string]Conn{}
	r.customers = map[orderKey]map[string]Conn{}
	r.members = map[string]membership{}
	r.closed = true
	r.mu.Unlock()

	for _, c := range conns {
		c.Close(CloseGoingAway, "Server shutting down")
	}
	r.mylog.Action("registry_closed").Info("Closed subscriber connections", "count", len(conns))
}
