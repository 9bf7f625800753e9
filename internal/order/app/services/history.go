package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
)

// HistoryRecorder appends audit rows inside the mutating transaction.
type HistoryRecorder struct {
	now func() time.Time
}

func NewHistoryRecorder(now func() time.Time) *HistoryRecorder {
	if now == nil {
		now = time.Now
	}
	return &HistoryRecorder{now: now}
}

func (h *HistoryRecorder) Record(ctx context.Context, tx core.ITx, order models.Order, action models.HistoryAction, actor models.Actor) error {
	details, err := json.Marshal(dto.NewHistoryDetails(order))
	if err != nil {
		return fmt.Errorf("marshal history details: %w", err)
	}
	return tx.InsertHistory(ctx, models.HistoryEntry{
		HistoryID: uuid.New(),
		OrderID:   order.OrderID,
		TenantID:  order.TenantID,
		Action:    action,
		Details:   details,
		ChangedBy: actor.Name(),
		ChangedAt: h.now(),
	})
}
