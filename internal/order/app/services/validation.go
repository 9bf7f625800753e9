package services

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"restaurant-orders/internal/order/app/core"
	"restaurant-orders/internal/order/domain/dto"
	"restaurant-orders/internal/order/domain/models"
)

var phoneRe = regexp.MustCompile(`^\+?\d{10,15}$`)

// ValidPhone reports whether p looks like a customer phone number.
func ValidPhone(p string) bool {
	return phoneRe.MatchString(p)
}

// validateCreate checks the request shape and returns the initial status.
// Menu lookups, stock and total checks happen later under lock.
func (os *OrderService) validateCreate(req dto.CreateOrderRequest, actor models.Actor) (models.Status, error) {
	if err := os.validateItems(req.Items); err != nil {
		return "", err
	}

	status := models.StatusPending
	if actor.Public {
		if deref(req.CustomerName) == "" || deref(req.CustomerPhone) == "" {
			return "", core.ErrCustomerRequired
		}
		if !ValidPhone(*req.CustomerPhone) {
			return "", core.ErrBadPhone
		}
	} else if req.Status != "" {
		status = models.Status(req.Status)
		if !status.Valid() || status.IsTerminal() {
			return "", fmt.Errorf("%w: %q", core.ErrBadStatus, req.Status)
		}
	}

	if req.Delivery() && deref(req.CustomerLocation) == "" {
		return "", core.ErrLocationRequired
	}
	return status, nil
}

func (os *OrderService) validateUpdate(req dto.UpdateOrderRequest, actor models.Actor) error {
	if !actor.Privileged() && !actor.IsRider() {
		return core.ErrRoleDenied
	}
	if req.Empty() {
		return core.ErrEmptyUpdate
	}
	if req.Status != nil && !models.Status(*req.Status).Valid() {
		return fmt.Errorf("%w: %q", core.ErrBadStatus, *req.Status)
	}
	if req.Items != nil {
		if req.Status != nil && models.Status(*req.Status) == models.StatusCanceled {
			return core.ErrItemsWhileCancel
		}
		if err := os.validateItems(req.Items); err != nil {
			return err
		}
	}
	return nil
}

func (os *OrderService) validateItems(items []dto.ItemRequest) error {
	if len(items) == 0 {
		return core.ErrEmptyItems
	}
	if len(items) > os.limits.MaxItems {
		return fmt.Errorf("%w: order cannot contain more than %d items", core.ErrTooManyItems, os.limits.MaxItems)
	}

	seen := make(map[int64]bool, len(items))
	for i, it := range items {
		if it.ItemID <= 0 {
			return fmt.Errorf("%w: item %d: item_id must be positive", core.ErrBadItem, i+1)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", core.ErrBadItem, i+1)
		}
		if it.Price != nil && *it.Price < 0 {
			return fmt.Errorf("%w: item %d: price cannot be negative", core.ErrBadItem, i+1)
		}
		if seen[it.ItemID] {
			return core.ErrDuplicateItems
		}
		seen[it.ItemID] = true
	}
	return nil
}

func (os *OrderService) checkTotal(total decimal.Decimal) error {
	if total.GreaterThan(os.limits.MaxTotal) {
		return fmt.Errorf("%w: total price cannot exceed $%s", core.ErrTotalTooHigh, os.limits.MaxTotal.String())
	}
	return nil
}
