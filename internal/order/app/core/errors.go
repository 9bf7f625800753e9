package core

import (
	"errors"
	"fmt"
)

var (
	ErrParseCmd = errors.New("cannot parse arguments")
	ErrHelp     = errors.New("")

	ErrDBConn  = errors.New("db connection failure")
	ErrRMQConn = errors.New("rabbitmq connection failure")
)

// Error classes. Handlers map them to status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTransient    = errors.New("temporarily unavailable")
)

var (
	ErrEmptyItems        = fmt.Errorf("%w: at least one item is required", ErrValidation)
	ErrDuplicateItems    = fmt.Errorf("%w: duplicate item IDs are not allowed", ErrValidation)
	ErrTooManyItems      = fmt.Errorf("%w: too many items", ErrValidation)
	ErrTotalTooHigh      = fmt.Errorf("%w: total price too high", ErrValidation)
	ErrBadItem           = fmt.Errorf("%w: invalid item", ErrValidation)
	ErrBadStatus         = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrLocationRequired  = fmt.Errorf("%w: customer location required for delivery orders", ErrValidation)
	ErrCustomerRequired  = fmt.Errorf("%w: customer name and phone are required", ErrValidation)
	ErrBadPhone          = fmt.Errorf("%w: invalid phone format", ErrValidation)
	ErrEmptyUpdate       = fmt.Errorf("%w: at least one field is required", ErrValidation)
	ErrInvalidRider      = fmt.Errorf("%w: invalid rider ID", ErrValidation)
	ErrItemsWhileCancel  = fmt.Errorf("%w: items cannot change while canceling", ErrValidation)
	ErrBadRestock        = fmt.Errorf("%w: invalid restock quantity", ErrValidation)
	ErrTenantNotFound    = fmt.Errorf("tenant %w", ErrNotFound)
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrPhoneMismatch     = fmt.Errorf("order %w or phone number does not match", ErrNotFound)
	ErrPhoneRequired     = fmt.Errorf("%w: customer phone is required", ErrValidation)
	ErrMenuItemNotFound  = fmt.Errorf("menu item %w", ErrNotFound)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
	ErrBadTransition     = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrRiderBusy         = fmt.Errorf("%w: selected rider is currently enroute on another order", ErrConflict)
	ErrOrderTerminal     = fmt.Errorf("%w: order is closed and cannot be modified", ErrForbidden)
	ErrRoleDenied        = fmt.Errorf("%w: role not allowed", ErrForbidden)
	ErrTenantMismatch    = fmt.Errorf("%w: unauthorized tenant", ErrForbidden)
	ErrRiderNotAssigned  = fmt.Errorf("%w: rider not authorized for this order", ErrForbidden)
)

// IsDomain reports whether err is a deterministic rejection that re-running
// the transaction cannot change.
func IsDomain(err error) bool {
	for _, class := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}
