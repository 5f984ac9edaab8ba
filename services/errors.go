package services

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindInternal
)

// Error messages surfaced to callers.
const (
	ErrMsgNoActiveOrder     = "no active order"
	ErrMsgItemNotFound      = "item not found in order"
	ErrMsgIDRequired        = "id is required"
	ErrMsgNameRequired      = "name is required"
	ErrMsgPriceRequired     = "price is required"
	ErrMsgPriceNegative     = "price cannot be negative"
	ErrMsgQuantityRequired  = "quantity is required"
	ErrMsgQuantityPositive  = "quantity must be at least 1"
	ErrMsgOrderCompleted    = "order is already completed"
	ErrMsgItemsRequired     = "items must be an array"
	ErrMsgStatusRequired    = "status is required"
	ErrMsgOrderIDRequired   = "orderId is required"
	ErrMsgHistoryNotFound   = "order not found in history"
	ErrMsgArchiveFailed     = "failed to archive order"
	ErrMsgSubscriberIDEmpty = "subscriber id is required"
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// OrderError is the single error type returned by the order core.
type OrderError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *OrderError) Unwrap() error { return e.Err }

// Is matches any *OrderError of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *OrderError) Is(target error) bool {
	t, ok := target.(*OrderError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrValidation = &OrderError{Kind: KindValidation}
	ErrNotFound   = &OrderError{Kind: KindNotFound}
	ErrInternal   = &OrderError{Kind: KindInternal}
)

func NewValidationError(message string) *OrderError {
	return &OrderError{Kind: KindValidation, Message: message}
}

func NewNotFoundError(message string) *OrderError {
	return &OrderError{Kind: KindNotFound, Message: message}
}

func NewInternalError(message string, err error) *OrderError {
	return &OrderError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err, treating anything unknown as internal.
func KindOf(err error) ErrorKind {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}
