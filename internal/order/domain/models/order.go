package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusEnroute   Status = "enroute"
	StatusDelivered Status = "delivered"
	StatusCanceled  Status = "canceled"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusPreparing, StatusCanceled},
	StatusPreparing: {StatusCompleted, StatusCanceled},
	StatusCompleted: {StatusEnroute, StatusCanceled},
	StatusEnroute:   {StatusDelivered},
	StatusDelivered: {},
	StatusCanceled:  {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// CanTransition reports whether from -> to is listed in the lifecycle table.
// Staying in the same status is not a transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Order struct {
	OrderID              int64
	TenantID             string
	Status               Status
	TotalPrice           decimal.Decimal
	CustomerName         *string
	CustomerPhone        *string
	IsDelivery           bool
	CustomerLocation     *string
	RiderID              *int64
	PreparationStartTime *time.Time
	PreparationEndTime   *time.Time
	DeliveryStartTime    *time.Time
	DeliveryEndTime      *time.Time
	CreatedAt            time.Time
	Items                []OrderItem
}

// OrderItem is the line snapshot taken when the order was placed or edited.
type OrderItem struct {
	ItemID   int64
	Name     string
	Quantity int
	Price    decimal.Decimal
}

func (o *Order) Quantities() map[int64]int {
	q := make(map[int64]int, len(o.Items))
	for _, it := range o.Items {
		q[it.ItemID] += it.Quantity
	}
	return q
}

// StampPhase sets the timestamp belonging to status s unless it is already set.
func (o *Order) StampPhase(s Status, now time.Time) {
	var field **time.Time
	switch s {
	case StatusPreparing:
		field = &o.PreparationStartTime
	case StatusCompleted:
		field = &o.PreparationEndTime
	case StatusEnroute:
		field = &o.DeliveryStartTime
	case StatusDelivered:
		field = &o.DeliveryEndTime
	default:
		return
	}
	if *field == nil {
		t := now
		*field = &t
	}
}

func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

type MenuItem struct {
	ItemID            int64
	TenantID          string
	Name              string
	Price             decimal.Decimal
	StockQuantity     int
	LowStockThreshold int
}

type OrderFilter struct {
	TenantID  string
	Status    Status
	Search    string
	SortBy    string
	Ascending bool
	// Limit <= 0 means no paging.
	Limit  int
	Offset int
}

var sortColumns = map[string]bool{"order_id": true, "total_price": true, "created_at": true}

// SortColumn returns a whitelisted sort column, created_at otherwise.
func (f OrderFilter) SortColumn() string {
	if sortColumns[f.SortBy] {
		return f.SortBy
	}
	return "created_at"
}
