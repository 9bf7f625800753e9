package handle

import (
	"net/http"

	"restaurant-orders/internal/order/app/core"
)

// Health reports whether the database answers.
func Health(db core.IDB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.IsAlive(); err != nil {
				jsonResponse(w, http.StatusInternalServerError, map[string]string{"status": "error", "database": "disconnected"})
				return
			}
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "database": "connected"})
	}
}
