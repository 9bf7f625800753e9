package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/logger"
)

type PushHandler struct {
	admission  *notify.Admission
	registry   *notify.Registry
	upgrader   websocket.Upgrader
	sendBuffer int
	mylog      logger.Logger
}

func NewPushHandler(admission *notify.Admission, registry *notify.Registry, sendBuffer int, mylog logger.Logger) *PushHandler {
	return &PushHandler{
		admission: admission,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		mylog:      mylog,
	}
}

// Subscribe upgrades the connection, then admits it as staff or customer.
// Refusals are sent as a policy-violation close frame.
func (ph *PushHandler) Subscribe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ph.upgrader.Upgrade(w, r, nil)
		if err != nil {
			ph.mylog.Action("ws_upgrade_failed").Warn("Websocket upgrade failed", "error", err.Error())
			return
		}

		q := r.URL.Query()
		req := notify.Request{
			TenantID:      q.Get("tenantId"),
			Token:         q.Get("token"),
			OrderID:       q.Get("orderId"),
			CustomerPhone: q.Get("customerPhone"),
			RemoteAddr:    ClientIP(r),
		}

		ctx, cancel := context.WithTimeout(context.Background(), core.WaitTime*time.Second)
		defer cancel()

		ticket, err := ph.admission.Admit(ctx, req)
		if err != nil {
			var refused *notify.RefusedError
			reason := notify.ReasonServerError
			if errors.As(err, &refused) {
				reason = refused.Reason
			}
			notify.Refuse(conn, reason)
			return
		}

		session := notify.NewSession(conn, ph.sendBuffer, ph.mylog)
		if ticket.Staff {
			err = ph.registry.AddStaff(ticket.TenantID, session)
		} else {
			err = ph.registry.AddCustomer(ticket.TenantID, ticket.OrderID, session)
		}
		if err != nil {
			notify.Refuse(conn, notify.ReasonServerError)
			return
		}
		session.Start()

		ph.mylog.Action("ws_connected").Info("Subscriber connected",
			"conn_id", session.ID(), "tenant_id", ticket.TenantID, "staff", ticket.Staff, "order_id", ticket.OrderID)

		go func() {
			<-session.Done()
			ph.registry.Remove(session)
			ph.mylog.Action("ws_disconnected").Debug("Subscriber disconnected", "conn_id", session.ID())
		}()
	}
}
