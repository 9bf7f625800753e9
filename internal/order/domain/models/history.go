package models

import (
	"time"

	"github.com/google/uuid"
)

type HistoryAction string

const (
	ActionCreated  HistoryAction = "created"
	ActionUpdated  HistoryAction = "updated"
	ActionCanceled HistoryAction = "canceled"
)

type HistoryEntry struct {
	HistoryID uuid.UUID
	OrderID   int64
	TenantID  string
	Action    HistoryAction
	// Details is the JSON snapshot stored with the row.
	Details   []byte
	ChangedBy string
	ChangedAt time.Time
}
