package dto

import (
	"encoding/json"
	"time"

	"restaurant-orders/internal/order/domain/models"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type CreateOrderResponse struct {
	Success       bool    `json:"success"`
	OrderID       int64   `json:"orderId"`
	CustomerName  *string `json:"customerName,omitempty"`
	CustomerPhone *string `json:"customerPhone,omitempty"`
}

type ItemView struct {
	ItemID   int64   `json:"item_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderView is the order as clients see it, in responses and push messages.
type OrderView struct {
	OrderID              int64      `json:"order_id"`
	Items                []ItemView `json:"items"`
	TotalPrice           float64    `json:"total_price"`
	Status               string     `json:"status"`
	CustomerName         *string    `json:"customer_name"`
	CustomerPhone        *string    `json:"customer_phone"`
	CreatedAt            *time.Time `json:"created_at,omitempty"`
	PreparationStartTime *time.Time `json:"preparation_start_time"`
	PreparationEndTime   *time.Time `json:"preparation_end_time"`
	DeliveryStartTime    *time.Time `json:"delivery_start_time"`
	DeliveryEndTime      *time.Time `json:"delivery_end_time"`
	IsDelivery           bool       `json:"is_delivery"`
	CustomerLocation     *string    `json:"customer_location"`
	RiderID              *int64     `json:"rider_id"`
}

func NewOrderView(o models.Order) OrderView {
	v := OrderView{
		OrderID:              o.OrderID,
		Items:                NewItemViews(o.Items),
		TotalPrice:           o.TotalPrice.InexactFloat64(),
		Status:               string(o.Status),
		CustomerName:         o.CustomerName,
		CustomerPhone:        o.CustomerPhone,
		PreparationStartTime: o.PreparationStartTime,
		PreparationEndTime:   o.PreparationEndTime,
		DeliveryStartTime:    o.DeliveryStartTime,
		DeliveryEndTime:      o.DeliveryEndTime,
		IsDelivery:           o.IsDelivery,
		CustomerLocation:     o.CustomerLocation,
		RiderID:              o.RiderID,
	}
	if !o.CreatedAt.IsZero() {
		created := o.CreatedAt
		v.CreatedAt = &created
	}
	return v
}

func NewItemViews(items []models.OrderItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for _, it := range items {
		views = append(views, ItemView{
			ItemID:   it.ItemID,
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price.InexactFloat64(),
		})
	}
	return views
}

// Envelope is the push message written to subscribers.
type Envelope struct {
	Type  models.EventType `json:"type"`
	Order OrderView        `json:"order"`
}

// HistoryDetails is the self-contained snapshot stored with each audit row.
type HistoryDetails struct {
	Items                []ItemView `json:"items"`
	TotalPrice           float64    `json:"total_price"`
	Status               string     `json:"status"`
	CustomerName         *string    `json:"customerName"`
	CustomerPhone        *string    `json:"customerPhone"`
	PreparationStartTime *time.Time `json:"preparation_start_time,omitempty"`
	PreparationEndTime   *time.Time `json:"preparation_end_time,omitempty"`
	DeliveryStartTime    *time.Time `json:"delivery_start_time,omitempty"`
	DeliveryEndTime      *time.Time `json:"delivery_end_time,omitempty"`
	IsDelivery           bool       `json:"is_delivery"`
	CustomerLocation     *string    `json:"customer_location"`
	RiderID              *int64     `json:"rider_id"`
	Error                string     `json:"error,omitempty"`
}

func NewHistoryDetails(o models.Order) HistoryDetails {
	return HistoryDetails{
		Items:                NewItemViews(o.Items),
		TotalPrice:           o.TotalPrice.InexactFloat64(),
		Status:               string(o.Status),
		CustomerName:         o.CustomerName,
		CustomerPhone:        o.CustomerPhone,
		PreparationStartTime: o.PreparationStartTime,
		PreparationEndTime:   o.PreparationEndTime,
		DeliveryStartTime:    o.DeliveryStartTime,
		DeliveryEndTime:      o.DeliveryEndTime,
		IsDelivery:           o.IsDelivery,
		CustomerLocation:     o.CustomerLocation,
		RiderID:              o.RiderID,
	}
}

type HistoryView struct {
	HistoryID       string          `json:"history_id"`
	OrderID         int64           `json:"order_id"`
	Action          string          `json:"action"`
	Details         json.RawMessage `json:"details"`
	ChangedBy       string          `json:"changed_by"`
	ChangeTimestamp time.Time       `json:"change_timestamp"`
}
