// Package errs defines the error kinds surfaced by the service layer. The
// HTTP layer maps each kind to a status code and a single human-readable
// message; raw store errors are never exposed to callers.
package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound marks an unknown product, order, supplier or customer
	// reference. Wrap it with context: fmt.Errorf("product %d: %w", id, ErrNotFound).
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks a state-machine transition attempted from a
	// disallowed state, e.g. approving a non-pending order.
	ErrInvalidState = errors.New("invalid state")
)

// InsufficientStockError aborts a sale that would drive a product's ledger
// sum below zero.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested, e.Available)
}

// ValidationError marks malformed caller input: empty orders, non-positive
// quantities, negative prices.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// PaymentInitiationError marks a push-payment request that the provider
// rejected, that timed out, or that never reached the provider. The order it
// was issued for is unaffected.
type PaymentInitiationError struct {
	Reason string
	Err    error
}

func (e *PaymentInitiationError) Error() string {
	if e.Err != nil {
		return "payment initiation failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "payment initiation failed: " + e.Reason
}

func (e *PaymentInitiationError) Unwrap() error { return e.Err }
