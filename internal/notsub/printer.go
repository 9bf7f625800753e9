// Package notsub is the operator tail: it attaches to the relay exchange
// and prints a one-line summary for every order event.
package notsub

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/xpkg/logger"
)

// Printer is a notify.Sink that writes envelopes as text lines.
type Printer struct {
	mu    sync.Mutex
	out   io.Writer
	count atomic.Int64
	mylog logger.Logger
}

func NewPrinter(out io.Writer, mylog logger.Logger) *Printer {
	return &Printer{out: out, mylog: mylog}
}

func (p *Printer) Deliver(tenantID string, orderID int64, payload []byte) int {
	var msg dto.Envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		p.mylog.Action("notification_parse_failed").Warn("Skipping unreadable message",
			"tenant_id", tenantID, "order_id", orderID, "error", err.Error())
		return 0
	}
	p.mylog.Action("notification_received").Debug("Received order event",
		"tenant_id", tenantID, "order_id", orderID, "type", string(msg.Type))

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintln(p.out, Summary(tenantID, msg)); err != nil {
		p.mylog.Action("notification_print_failed").Error("Failed to print notification", err)
		return 0
	}
	p.count.Add(1)
	return 1
}

// Count is the number of lines printed so far.
func (p *Printer) Count() int64 {
	return p.count.Load()
}

// Summary renders one event, e.g.
// [T1] order #42 new_order: pending, 3 units, total 15.00, customer Ann.
func Summary(tenantID string, msg dto.Envelope) string {
	o := msg.Order
	units := 0
	for _, it := range o.Items {
		units += it.Quantity
	}
	line := fmt.Sprintf("[%s] order #%d %s: %s, %d units, total %.2f, customer %s",
		tenantID, o.OrderID, msg.Type, o.Status, units, o.TotalPrice, orNA(o.CustomerName))
	if o.IsDelivery {
		line += ", delivery to " + orNA(o.CustomerLocation)
		if o.RiderID != nil {
			line += fmt.Sprintf(" by rider %d", *o.RiderID)
		}
	}
	return line + "."
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}
