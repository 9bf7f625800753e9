package handle

import (
	"encoding/json"
	"errors"
	"net/http"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/xpkg/logger"
)

var (
	errInternal    = errors.New("Internal server error")
	errUnavailable = errors.New("Service temporarily unavailable, please retry")
	errBadJSON     = errors.New("failed to parse JSON")
)

// jsonResponse writes the given data as a JSON-encoded HTTP response.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// jsonError writes an error response as JSON with the specified HTTP status code.
func jsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

// statusFor maps an error class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's class status. Unclassified errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, mylog logger.Logger, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusInternalServerError:
		mylog.Action("request_failed").Error("Unexpected error", err)
		jsonError(w, code, errInternal)
	case http.StatusServiceUnavailable:
		mylog.Action("request_failed").Warn("Storage busy after retries", "error", err.Error())
		jsonError(w, code, errUnavailable)
	default:
		jsonError(w, code, err)
	}
}
