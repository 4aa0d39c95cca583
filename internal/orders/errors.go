package orders

import (
	"errors"
	"fmt"
)

// Kinds of checkout failure. Match with errors.Is against an *Error.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConcurrency       = errors.New("stock changed during processing")
	ErrInternal          = errors.New("internal error")
)

// ErrDuplicateRequest is returned by a Tx when the idempotency key is already taken.
var ErrDuplicateRequest = errors.New("duplicate idempotency key")

// ErrKeyReused means an idempotency key matched an order placed by someone else.
var ErrKeyReused = errors.New("idempotency key belongs to another order")

// Error is the user-facing failure of an order operation. Message is safe to return to
// clients; the wrapped cause is for server logs only.
type Error struct {
	Kind        error
	Message     string
	ProductID   string
	ProductName string
	Available   int
	Requested   int
	cause       error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Cause returns the underlying error, if any.
func (e *Error) Cause() error { return e.cause }

func ValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func ProductNotFoundError(productID string) *Error {
	return &Error{
		Kind:      ErrNotFound,
		Message:   fmt.Sprintf("Product %s not found", productID),
		ProductID: productID,
	}
}

func OrderNotFoundError(orderID string) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("Order %s not found", orderID)}
}

func InsufficientStockError(productID, name string, available, requested int) *Error {
	return &Error{
		Kind:        ErrInsufficientStock,
		Message:     fmt.Sprintf("Insufficient stock for %s. Available: %d, Requested: %d", name, available, requested),
		ProductID:   productID,
		ProductName: name,
		Available:   available,
		Requested:   requested,
	}
}

func ConcurrencyError(productID, name string, cause error) *Error {
	return &Error{
		Kind:        ErrConcurrency,
		Message:     fmt.Sprintf("Failed to update stock for %s. Stock may have changed.", name),
		ProductID:   productID,
		ProductName: name,
		cause:       cause,
	}
}

// KeyReusedError rejects a replay whose stored order does not belong to the caller. The
// stored order is never disclosed.
func KeyReusedError() *Error {
	return &Error{
		Kind:    ErrConcurrency,
		Message: "Idempotency-Key has already been used for a different order",
		cause:   ErrKeyReused,
	}
}

func InternalError(cause error) *Error {
	return &Error{
		Kind:    ErrInternal,
		Message: "Failed to create order. Please try again.",
		cause:   cause,
	}
}

// AsError classifies err: *Error values pass through, anything else becomes an internal error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return oe
	}
	return InternalError(err)
}
