package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/app/services"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/xpkg/logger"
)

var errBadItemID = errors.New("invalid menu item ID")

type MenuHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewMenuHandler(orderService *services.OrderService, mylog logger.Logger) *MenuHandler {
	return &MenuHandler{orderService: orderService, mylog: mylog}
}

func (mh *MenuHandler) Restock() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := strconv.ParseInt(r.PathValue("itemId"), 10, 64)
		if err != nil || itemID <= 0 {
			jsonError(w, http.StatusBadRequest, errBadItemID)
			return
		}
		var req dto.RestockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, http.StatusBadRequest, errBadJSON)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		if _, err := mh.orderService.Restock(ctx, r.PathValue("tenantId"), itemID, req.Quantity, actorFrom(r)); err != nil {
			writeError(w, mh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.SuccessResponse{Success: true})
	}
}

// History lists the tenant's order audit trail, newest first.
func (mh *MenuHandler) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		history, err := mh.orderService.History(ctx, r.PathValue("tenantId"))
		if err != nil {
			writeError(w, mh.mylog, err)
			return
		}
		if history == nil {
			history = []dto.HistoryView{}
		}
		jsonResponse(w, http.StatusOK, history)
	}
}
