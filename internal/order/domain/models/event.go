package models

type EventType string

const (
	EventNewOrder     EventType = "new_order"
	EventOrderUpdated EventType = "order_updated"
)
