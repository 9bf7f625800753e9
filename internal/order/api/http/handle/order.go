package handle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/app/services"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
	"restaurant-orders/internal/xpkg/logger"
)

var errBadOrderID = errors.New("invalid order ID")

type OrderHandler struct {
	orderService *services.OrderService
	pageLen      int
	now          func() time.Time
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, pageLen int, mylog logger.Logger) *OrderHandler {
	if pageLen <= 0 || pageLen > core.MaxPageSize {
		pageLen = core.DefaultPageSize
	}
	return &OrderHandler{
		orderService: orderService,
		pageLen:      pageLen,
		now:          time.Now,
		mylog:        mylog,
	}
}

// Create places an order on behalf of a staff member.
func (oh *OrderHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oh.create(w, r, actorFrom(r))
	}
}

// PublicCreate places an anonymous customer order.
func (oh *OrderHandler) PublicCreate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oh.create(w, r, models.CustomerActor())
	}
}

func (oh *OrderHandler) create(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		oh.mylog.Action("parse_failed").Warn("Failed to parse order", "error", err.Error())
		jsonError(w, http.StatusBadRequest, errBadJSON)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
	defer cancel()

	tenantID := r.PathValue("tenantId")
	order, err := oh.orderService.Create(ctx, tenantID, req, actor)
	if err != nil {
		writeError(w, oh.mylog, err)
		return
	}

	resp := dto.CreateOrderResponse{Success: true, OrderID: order.OrderID}
	if actor.Public {
		resp.CustomerName = order.CustomerName
		resp.CustomerPhone = order.CustomerPhone
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Update applies a partial update.
func (oh *OrderHandler) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(w, r, "orderId")
		if !ok {
			return
		}
		var req dto.UpdateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			oh.mylog.Action("parse_failed").Warn("Failed to parse order update", "error", err.Error())
			jsonError(w, http.StatusBadRequest, errBadJSON)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		if _, err := oh.orderService.Update(ctx, r.PathValue("tenantId"), orderID, req, actorFrom(r)); err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.SuccessResponse{Success: true})
	}
}

// Cancel releases the order's stock and removes it.
func (oh *OrderHandler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(w, r, "orderId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		if _, err := oh.orderService.Cancel(ctx, r.PathValue("tenantId"), orderID, actorFrom(r)); err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		jsonResponse(w, http.StatusOK, dto.SuccessResponse{Success: true})
	}
}

func (oh *OrderHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := oh.filter(r, true)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		orders, err := oh.orderService.List(ctx, filter)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		views := make([]dto.OrderView, 0, len(orders))
		for _, o := range orders {
			views = append(views, dto.NewOrderView(o))
		}
		jsonResponse(w, http.StatusOK, views)
	}
}

// Export streams every matching order as a CSV attachment.
func (oh *OrderHandler) Export() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := oh.filter(r, false)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		// buffered so a failed query still answers with a JSON error
		var buf bytes.Buffer
		if err := oh.orderService.ExportCSV(ctx, filter, &buf); err != nil {
			writeError(w, oh.mylog, err)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			`attachment; filename="`+services.ExportFilename(filter.TenantID, oh.now())+`"`)
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

// PublicStatus returns one order to a caller who knows its phone number.
func (oh *OrderHandler) PublicStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, ok := pathID(w, r, "orderId")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := oh.orderService.Track(ctx, r.PathValue("tenantId"), orderID, r.URL.Query().Get("customerPhone"))
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		view := dto.NewOrderView(order)
		view.CreatedAt = nil
		view.RiderID = nil
		jsonResponse(w, http.StatusOK, view)
	}
}

func (oh *OrderHandler) filter(r *http.Request, paged bool) (models.OrderFilter, error) {
	q := r.URL.Query()
	f := models.OrderFilter{
		TenantID:  r.PathValue("tenantId"),
		Status:    models.Status(q.Get("status")),
		Search:    q.Get("search"),
		SortBy:    q.Get("sortBy"),
		Ascending: strings.EqualFold(q.Get("sortOrder"), "ASC"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, core.ErrBadStatus
	}
	if !paged {
		return f, nil
	}

	page := positiveInt(q.Get("page"), core.DefaultPage)
	limit := min(positiveInt(q.Get("limit"), oh.pageLen), core.MaxPageSize)
	f.Limit = limit
	f.Offset = (page - 1) * limit
	return f, nil
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, http.StatusBadRequest, errBadOrderID)
		return 0, false
	}
	return id, true
}
