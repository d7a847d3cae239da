package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrCartEmpty           = errors.New("cart is empty")
	ErrPaymentNotCompleted = errors.New("payment has not completed")
	ErrPaymentMismatch     = errors.New("payment intent does not match order")
)

// ValidationError is returned for bad input before any state is touched.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientTicketsError reports the shortfall so the caller can retry with less.
type InsufficientTicketsError struct {
	CompetitionID int64
	Requested     int
	Available     int
}

func (e *InsufficientTicketsError) Error() string {
	if e.Available == 1 {
		return "Only 1 ticket available"
	}
	return fmt.Sprintf("Only %d tickets available", e.Available)
}

type InsufficientBalanceError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return "Insufficient balance"
}

// IsConflict reports whether err is a recoverable exhaustion error.
func IsConflict(err error) bool {
	var tickets *InsufficientTicketsError
	var balance *InsufficientBalanceError
	return errors.As(err, &tickets) || errors.As(err, &balance)
}
