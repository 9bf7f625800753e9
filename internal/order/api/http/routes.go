package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"restaurant-orders/internal/notify"
	"restaurant-orders/internal/order/api/http/handle"
	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/app/services"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/auth"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/ratelimit"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Orders        *services.OrderService
	Verifier      *auth.Verifier
	Admission     *notify.Admission
	Registry      *notify.Registry
	PublicLimiter *ratelimit.Keyed
	DB            core.IDB
	PageLen       int
	SendBuffer    int
	Log           logger.Logger
}

// NewHandler wires the routes. API routes are traced; the websocket endpoint
// is served outside the tracing wrapper because it hijacks the connection.
func NewHandler(d Deps) http.Handler {
	authn := handle.NewAuthenticator(d.Verifier, d.Log)
	orders := handle.NewOrderHandler(d.Orders, d.PageLen, d.Log)
	menu := handle.NewMenuHandler(d.Orders, d.Log)
	push := handle.NewPushHandler(d.Admission, d.Registry, d.SendBuffer, d.Log)

	const tenant = "/api/tenants/{tenantId}"
	var (
		manager = []string{models.RoleManager}
		staff   = []string{models.RoleManager, models.RoleKitchen, models.RoleRider}
	)

	api := http.NewServeMux()
	api.Handle("POST "+tenant+"/orders", authn.Staff(orders.Create(), staff...))
	api.Handle("PUT "+tenant+"/orders/{orderId}", authn.Staff(orders.Update(), staff...))
	api.Handle("DELETE "+tenant+"/orders/{orderId}", authn.Staff(orders.Cancel(), manager...))
	api.Handle("GET "+tenant+"/orders", authn.Staff(orders.List(), staff...))
	api.Handle("GET "+tenant+"/orders/export", authn.Staff(orders.Export(), manager...))
	api.Handle("POST "+tenant+"/public/orders", handle.Limit(d.PublicLimiter, orders.PublicCreate()))
	api.Handle("GET "+tenant+"/public/orders/{orderId}/status", orders.PublicStatus())
	api.Handle("PATCH "+tenant+"/menu-items/{itemId}/restock", authn.Staff(menu.Restock(), manager...))
	api.Handle("GET "+tenant+"/order-history", authn.Staff(menu.History(), manager...))
	api.Handle("GET /health", handle.Health(d.DB))

	root := http.NewServeMux()
	root.Handle("/", otelhttp.NewHandler(api, "orders-api"))
	root.Handle("GET /ws", push.Subscribe())

	return handle.RequestLogger(d.Log, root)
}
