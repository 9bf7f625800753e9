package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type ItemRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
	// Price is accepted for compatibility and bounds-checked; the menu price wins.
	Price *float64 `json:"price,omitempty"`
}

type CreateOrderRequest struct {
	Items            []ItemRequest `json:"items"`
	Status           string        `json:"status,omitempty"`
	CustomerName     *string       `json:"customerName"`
	CustomerPhone    *string       `json:"customerPhone"`
	IsDelivery       *Flag         `json:"is_delivery"`
	CustomerLocation *string       `json:"customer_location"`
	RiderID          *int64        `json:"rider_id"`
}

func (r CreateOrderRequest) Delivery() bool {
	return r.IsDelivery != nil && bool(*r.IsDelivery)
}

// UpdateOrderRequest is a partial update. Nullable fields use Field so an
// explicit null (clear the value) can be told apart from an absent key.
type UpdateOrderRequest struct {
	Items            []ItemRequest `json:"items"`
	Status           *string       `json:"status"`
	CustomerName     Field[string] `json:"customerName"`
	CustomerPhone    Field[string] `json:"customerPhone"`
	IsDelivery       *Flag         `json:"is_delivery"`
	CustomerLocation Field[string] `json:"customer_location"`
	RiderID          Field[int64]  `json:"rider_id"`
}

func (r UpdateOrderRequest) Empty() bool {
	return r.Items == nil && r.Status == nil && r.IsDelivery == nil &&
		!r.CustomerName.Set && !r.CustomerPhone.Set &&
		!r.CustomerLocation.Set && !r.RiderID.Set
}

// OnlyStatus reports whether the patch touches nothing but the status and,
// optionally, the rider.
func (r UpdateOrderRequest) OnlyStatus() bool {
	return r.Items == nil && r.IsDelivery == nil &&
		!r.CustomerName.Set && !r.CustomerPhone.Set && !r.CustomerLocation.Set
}

type RestockRequest struct {
	Quantity int `json:"quantity"`
}

// Field records whether a JSON key was present, and its value (nil for null).
type Field[T any] struct {
	Set   bool
	Value *T
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// Flag is a boolean that also accepts 0 and 1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return fmt.Errorf("is_delivery must be a boolean or 0/1, got %s", data)
	}
	return nil
}
