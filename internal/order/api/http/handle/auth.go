package handle

import (
	"context"
	"errors"
	"net"
	"net/http"
	"slices"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/auth"
	"restaurant-orders/internal/xpkg/logger"
	"restaurant-orders/internal/xpkg/ratelimit"
)

type claimsKey struct{}

var errTooManyOrders = errors.New("Too many orders, please try again later")

// Authenticator guards staff routes.
type Authenticator struct {
	verifier *auth.Verifier
	mylog    logger.Logger
}

func NewAuthenticator(verifier *auth.Verifier, mylog logger.Logger) *Authenticator {
	return &Authenticator{verifier: verifier, mylog: mylog}
}

// Staff requires a valid bearer token for the tenant in the path and, when
// roles are given, one of those roles.
func (a *Authenticator) Staff(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := a.mylog.Action("authenticate").With("path", r.URL.Path)

		claims, err := a.verifier.Validate(auth.BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			log.Warn("Authentication failed", "error", err.Error())
			jsonError(w, http.StatusUnauthorized, err)
			return
		}
		if tenantID := r.PathValue("tenantId"); tenantID != "" && claims.TenantID != tenantID {
			log.Warn("Unauthorized tenant access", "tenant_id", tenantID, "user", claims.Username)
			writeError(w, a.mylog, core.ErrTenantMismatch)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			log.Warn("Access denied", "role", claims.Role, "required", roles)
			writeError(w, a.mylog, core.ErrRoleDenied)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	}
}

func actorFrom(r *http.Request) models.Actor {
	claims, ok := r.Context().Value(claimsKey{}).(*auth.Claims)
	if !ok {
		return models.CustomerActor()
	}
	return models.Actor{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}
}

// Limit refuses requests beyond the per-address quota with 429.
func Limit(limiter *ratelimit.Keyed, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(ClientIP(r)) {
			jsonError(w, http.StatusTooManyRequests, errTooManyOrders)
			return
		}
		next(w, r)
	}
}

// ClientIP is the remote address without the port.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
