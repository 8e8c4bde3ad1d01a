/*
errors.go - Centralized error types for the commerce engine

PURPOSE:
  All engine error types in one place for consistency and
  discoverability. Every violated invariant aborts the whole operation;
  nothing is retried automatically and there are no silent fallbacks.

ERROR CATEGORIES:
  1. Not-found errors - missing or foreign (other tenant) records
  2. Validation errors - business rule violations detected pre-mutation
  3. Store failures - propagated as-is; the store guarantees rollback

USAGE:
  Callers classify with errors.Is / errors.As:

    var stockErr *commerce.InsufficientStockError
    if errors.As(err, &stockErr) {
        // stockErr.Available, stockErr.Requested for messaging
    }

SEE ALSO:
  - validate.go: Produces the validation errors
  - engine.go: Produces the not-found errors
  - api/handlers.go: Maps categories to HTTP status codes
*/
package commerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyItems is returned when a sale is created, or its item list
	// replaced, with no line items.
	ErrEmptyItems = errors.New("sale must have at least one item")

	// ErrNonPositiveQuantity is returned when a line item's quantity is
	// zero or negative. Stock only moves through positive quantities; a
	// negative quantity would mint inventory through the sale path.
	ErrNonPositiveQuantity = errors.New("item quantity must be positive")

	// ErrNegativeUnitPrice is returned when a line item carries a
	// negative unit price.
	ErrNegativeUnitPrice = errors.New("item unit price cannot be negative")

	// ErrNegativeTotal is returned when a declared sale total is
	// negative.
	ErrNegativeTotal = errors.New("total amount cannot be negative")

	// ErrProductNotFound is returned when a referenced product is absent,
	// soft-deleted, or owned by another tenant.
	ErrProductNotFound = errors.New("product not found")

	// ErrInsufficientStock is returned when a requested quantity exceeds
	// the available stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTotalMismatch is returned when the declared total disagrees with
	// the computed item total by more than TotalTolerance.
	ErrTotalMismatch = errors.New("total amount does not match items")

	// ErrSaleNotFound is returned when a sale is absent or owned by
	// another tenant.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrCustomerNotFound is returned when a customer is absent or owned
	// by another tenant.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrPartialBatchNotFound rejects a bulk delete in which not every
	// requested id resolved under the caller. The whole batch is refused.
	ErrPartialBatchNotFound = errors.New("not all sales in batch were found")

	// ErrEmptyBatch is returned when a bulk delete carries no ids.
	ErrEmptyBatch = errors.New("bulk delete requires at least one sale id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ProductNotFoundError identifies which referenced product failed to
// resolve under the caller's ownership.
type ProductNotFoundError struct {
	ProductID ProductID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InsufficientStockError carries available/requested for messaging.
type InsufficientStockError struct {
	ProductID   ProductID
	ProductName string
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s, requested %s",
		e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// TotalMismatchError reports the disagreement between the declared and
// computed totals.
type TotalMismatchError struct {
	Declared decimal.Decimal
	Computed decimal.Decimal
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("declared total %s does not match computed total %s",
		e.Declared, e.Computed)
}

func (e *TotalMismatchError) Unwrap() error { return ErrTotalMismatch }

// BatchNotFoundError lists the bulk-delete ids that did not resolve.
type BatchNotFoundError struct {
	Missing []SaleID
}

func (e *BatchNotFoundError) Error() string {
	ids := make([]string, len(e.Missing))
	for i, id := range e.Missing {
		ids[i] = string(id)
	}
	return fmt.Sprintf("sales not found: %s", strings.Join(ids, ", "))
}

func (e *BatchNotFoundError) Unwrap() error { return ErrPartialBatchNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrPartialBatchNotFound)
}

// IsClientError returns true if the error is due to invalid caller input
// or a failed state precondition, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyItems) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrNonPositiveQuantity) ||
		errors.Is(err, ErrNegativeUnitPrice) ||
		errors.Is(err, ErrNegativeTotal) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrTotalMismatch) ||
		IsNotFound(err)
}
