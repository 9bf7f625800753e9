package notify

import (
	"context"
	"errors"
	"strconv"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/auth"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/ratelimit"
)

// Refusal reasons sent in the close frame.
const (
	ReasonRateLimited   = "Too many connection attempts"
	ReasonBadPhone      = "Invalid phone format"
	ReasonNoTenant      = "Tenant ID required"
	ReasonUnauthorized  = "Unauthorized"
	ReasonInvalidToken  = "Invalid token"
	ReasonUnknownOrder  = "Invalid order or phone"
	ReasonServerError   = "Server error"
	ReasonMissingParams = "Tenant ID, and either token or (orderId and customerPhone) required"
)

// RefusedError carries the reason a connection was not admitted.
type RefusedError struct {
	Reason string
}

func (e *RefusedError) Error() string { return "connection refused: " + e.Reason }

func refuse(reason string) error { return &RefusedError{Reason: reason} }

// OrderTracker finds an order by id and the phone it was placed with.
type OrderTracker interface {
	Track(ctx context.Context, tenantID string, orderID int64, phone string) (models.Order, error)
}

// Request is what a client presents when opening the push channel.
type Request struct {
	TenantID      string
	Token         string
	OrderID       string
	CustomerPhone string
	RemoteAddr    string
}

// Ticket describes an admitted connection.
type Ticket struct {
	TenantID string
	Staff    bool
	Role     string
	OrderID  int64
}

type Admission struct {
	verifier *auth.Verifier
	orders   OrderTracker
	limiter  *ratelimit.Keyed
	validPh  func(string) bool
	mylog    logger.Logger
}

func NewAdmission(
	verifier *auth.Verifier,
	orders OrderTracker,
	limiter *ratelimit.Keyed,
	validPhone func(string) bool,
	mylog logger.Logger,
) *Admission {
	return &Admission{
		verifier: verifier,
		orders:   orders,
		limiter:  limiter,
		validPh:  validPhone,
		mylog:    mylog,
	}
}

// Limiter exposes the per-address limiter so the sweeper can prune it.
func (a *Admission) Limiter() *ratelimit.Keyed { return a.limiter }

// Admit decides whether req may subscribe. Every attempt counts against the
// caller's address quota, including ones that are later refused.
func (a *Admission) Admit(ctx context.Context, req Request) (Ticket, error) {
	log := a.mylog.Action("ws_admission").With("tenant_id", req.TenantID, "remote_addr", req.RemoteAddr)

	if !a.limiter.Allow(req.RemoteAddr) {
		log.Warn("Connection rejected: rate limit exceeded")
		return Ticket{}, refuse(ReasonRateLimited)
	}
	if req.CustomerPhone != "" && !a.validPh(req.CustomerPhone) {
		log.Warn("Connection rejected: invalid phone format", "order_id", req.OrderID)
		return Ticket{}, refuse(ReasonBadPhone)
	}

	switch {
	case req.Token != "":
		return a.admitStaff(req, log)
	case req.TenantID != "" && req.OrderID != "" && req.CustomerPhone != "":
		return a.admitCustomer(ctx, req, log)
	default:
		log.Warn("Connection rejected: missing parameters")
		return Ticket{}, refuse(ReasonMissingParams)
	}
}

func (a *Admission) admitStaff(req Request, log logger.Logger) (Ticket, error) {
	if req.TenantID == "" {
		log.Warn("Connection rejected: missing tenant")
		return Ticket{}, refuse(ReasonNoTenant)
	}
	claims, err := a.verifier.Validate(req.Token)
	if err != nil {
		log.Warn("Connection rejected: invalid token", "error", err.Error())
		return Ticket{}, refuse(ReasonInvalidToken)
	}
	if claims.TenantID != req.TenantID || !claims.IsStaff() {
		log.Warn("Connection rejected: unauthorized", "role", claims.Role)
		return Ticket{}, refuse(ReasonUnauthorized)
	}
	return Ticket{TenantID: req.TenantID, Staff: true, Role: claims.Role}, nil
}

func (a *Admission) admitCustomer(ctx context.Context, req Request, log logger.Logger) (Ticket, error) {
	orderID, err := strconv.ParseInt(req.OrderID, 10, 64)
	if err != nil || orderID <= 0 {
		log.Warn("Connection rejected: malformed order id", "order_id", req.OrderID)
		return Ticket{}, refuse(ReasonUnknownOrder)
	}

	order, err := a.orders.Track(ctx, req.TenantID, orderID, req.CustomerPhone)
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrValidation):
		log.Warn("Connection rejected: invalid order or phone", "order_id", orderID)
		return Ticket{}, refuse(ReasonUnknownOrder)
	case err != nil:
		log.Error("Failed to verify customer connection", err, "order_id", orderID)
		return Ticket{}, refuse(ReasonServerError)
	}
	return Ticket{TenantID: req.TenantID, OrderID: order.OrderID}, nil
}
