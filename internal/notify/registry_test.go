package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-orders/internal/xpkg/logger"
)

type fakeConn struct {
	id       string
	capacity int

	mu     sync.Mutex
	got    [][]byte
	done   chan struct{}
	closed bool
	code   int
	reason string
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, capacity: 100, done: make(chan struct{})}
}

func (c *fakeConn) ID() string            { return c.id }
func (c *fakeConn) Done() <-chan struct{} { return c.done }

func (c *fakeConn) Send(p []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.got) >= c.capacity {
		return false
	}
	c.got = append(c.got, p)
	return true
}

func (c *fakeConn) Close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code, c.reason = code, reason
	c.drop()
}

// drop simulates the transport going away without a registry call.
func (c *fakeConn) drop() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

func (c *fakeConn) messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.got...)
}

func TestRegistryDeliverRoutesByTenantAndOrder(t *testing.T) {
	r := NewRegistry(logger.Nop())

	staffT1 := newFakeConn("s1")
	staffT2 := newFakeConn("s2")
	customer := newFakeConn("c1")
	otherCustomer := newFakeConn("c2")

	require.NoError(t, r.AddStaff("T1", staffT1))
	require.NoError(t, r.AddStaff("T2", staffT2))
	require.NoError(t, r.AddCustomer("T1", 42, customer))
	require.NoError(t, r.AddCustomer("T1", 43, otherCustomer))

	n := r.Deliver("T1", 42, []byte("hello"))
	assert.Equal(t, 2, n)
	assert.Len(t, staffT1.messages(), 1)
	assert.Len(t, customer.messages(), 1)
	assert.Empty(t, staffT2.messages())
	assert.Empty(t, otherCustomer.messages())
}

func TestRegistryRemoveDeletesEmptySets(t *testing.T) {
	r := NewRegistry(logger.Nop())
	a, b := newFakeConn("a"), newFakeConn("b")
	require.NoError(t, r.AddStaff("T1", a))
	require.NoError(t, r.AddCustomer("T1", 1, b))

	r.Remove(a)
	r.Remove(b)
	r.Remove(b)

	staff, customers, sets := r.Stats()
	assert.Zero(t, staff)
	assert.Zero(t, customers)
	assert.Zero(t, sets)
}

func TestRegistrySweepPrunesClosedTransports(t *testing.T) {
	r := NewRegistry(logger.Nop())
	live, dead := newFakeConn("live"), newFakeConn("dead")
	lonely := newFakeConn("lonely")
	require.NoError(t, r.AddStaff("T1", live))
	require.NoError(t, r.AddStaff("T1", dead))
	require.NoError(t, r.AddCustomer("T1", 9, lonely))

	dead.drop()
	lonely.drop()

	assert.Equal(t, 2, r.Sweep())
	staff, customers, sets := r.Stats()
	assert.Equal(t, 1, staff)
	assert.Zero(t, customers)
	assert.Equal(t, 1, sets)

	assert.Equal(t, 1, r.Deliver("T1", 9, []byte("x")))
}

func TestRegistryDeliverSkipsFullQueues(t *testing.T) {
	r := NewRegistry(logger.Nop())
	slow := newFakeConn("slow")
	slow.capacity = 0
	fast := newFakeConn("fast")
	require.NoError(t, r.AddStaff("T1", slow))
	require.NoError(t, r.AddStaff("T1", fast))

	assert.Equal(t, 1, r.Deliver("T1", 1, []byte("x")))
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry(logger.Nop())
	a := newFakeConn("a")
	require.NoError(t, r.AddStaff("T1", a))

	r.Close()

	assert.Equal(t, CloseGoingAway, a.code)
	assert.ErrorIs(t, r.AddStaff("T1", newFakeConn("b")), ErrRegistryClosed)
	assert.ErrorIs(t, r.AddCustomer("T1", 1, newFakeConn("c")), ErrRegistryClosed)
}

func TestRegistryConcurrentMembership(t *testing.T) {
	r := NewRegistry(logger.Nop())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newFakeConn(string(rune('A' + i%26)) + string(rune('a'+i/26)))
			_ = r.AddStaff("T1", c)
			r.Deliver("T1", 0, []byte("x"))
			r.Remove(c)
		}(i)
	}
	wg.Wait()

	staff, _, sets := r.Stats()
	assert.Zero(t, staff)
	assert.Zero(t, sets)
}
