package order

import (
	"errors"
	"fmt"

	"github.com/MikeMC777/ecom-saas/internal/auth"
	"github.com/MikeMC777/ecom-saas/internal/tenant"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = auth.ErrUnauthorized
	ErrStoreNotFound     = tenant.ErrStoreNotFound
	ErrValidation        = errors.New("validation error")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrOrderFailed is returned when the transaction could not commit after a retry.
	ErrOrderFailed = errors.New("order failed")
	// ErrTxConflict marks serialization failures and deadlocks. Repositories wrap it.
	ErrTxConflict = errors.New("transaction conflict")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s", e.ProductName)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
