/*
Package commerce provides the sale transaction and inventory
reconciliation engine.

PURPOSE:
  This package contains the types and algorithms that keep a product's
  denormalized stock counter consistent with the net effect of every sale
  referencing it, and a sale's recorded total in agreement with the sum
  of its line items. Each tenant (owner) sees only its own data; every
  operation is scoped by an opaque owner id.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product: catalog entry carrying the live stock counter
  - Sale + SaleItem: the aggregate persisted and replaced as one unit
  - SaleItemInput: caller-supplied line item (product, quantity, price)
  - Money/Quantity helpers: decimal arithmetic, never float64

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for all money (2dp) and quantities (3dp)
  2. Snapshots: items copy the product's name and listed price at sale
     time, so history survives later product edits and removals
  3. Type Safety: distinct id types prevent mixing owners/products/sales
  4. Aggregates: items have no lifecycle outside their parent sale

SEE ALSO:
  - diff.go: pure stock-delta calculation
  - validate.go: pre-mutation invariant checks
  - engine.go: the transactional orchestration
  - store.go: persistence interfaces
*/
package commerce

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type OwnerID string
type ProductID string
type CustomerID string
type SaleID string
type SaleItemID string

func NewProductID() ProductID   { return ProductID(uuid.NewString()) }
func NewCustomerID() CustomerID { return CustomerID(uuid.NewString()) }
func NewSaleID() SaleID         { return SaleID(uuid.NewString()) }
func NewSaleItemID() SaleItemID { return SaleItemID(uuid.NewString()) }

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// TotalTolerance is the maximum allowed disagreement between a declared
// sale total and the computed sum of its line items, in currency units.
var TotalTolerance = decimal.New(1, -2) // 0.01

// RoundMoney normalizes a currency amount to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// RoundQuantity normalizes a stock quantity to 3 decimal places.
func RoundQuantity(d decimal.Decimal) decimal.Decimal { return d.Round(3) }

// MustDecimal parses s, returning zero on malformed input.
// For literals in tests and fixtures.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is a catalog entry. StockQuantity is the denormalized counter
// mutated exclusively by the engine in response to sale lifecycle events
// (plus the initial quantity at registration and explicit catalog
// corrections). Products referenced by historical sale items are
// soft-deleted via DeletedAt, never hard-deleted.
type Product struct {
	ID            ProductID
	OwnerID       OwnerID
	Name          string
	Description   string
	Category      string
	CostPrice     decimal.Decimal
	SalePrice     decimal.Decimal
	StockQuantity decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// Deleted reports whether the product has been soft-deleted.
func (p *Product) Deleted() bool { return p.DeletedAt != nil }

// =============================================================================
// CUSTOMER
// =============================================================================

type Customer struct {
	ID        CustomerID
	OwnerID   OwnerID
	Name      string
	Email     string
	Phone     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SALE AGGREGATE
// =============================================================================

// Sale owns its Items; the pair is persisted and replaced as one unit.
// Invariant at persist time: TotalAmount agrees with the sum of item
// subtotals within TotalTolerance.
type Sale struct {
	ID            SaleID
	OwnerID       OwnerID
	CustomerID    *CustomerID
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Notes         string
	SaleDate      time.Time
	CreatedAt     time.Time
	Items         []SaleItem
}

// ItemsTotal returns the sum of item subtotals.
func (s *Sale) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// QuantityOf returns the quantity this sale currently holds for a
// product, summed across items. Items whose product reference has been
// cleared never match.
func (s *Sale) QuantityOf(id ProductID) decimal.Decimal {
	held := decimal.Zero
	for _, it := range s.Items {
		if it.ProductID != nil && *it.ProductID == id {
			held = held.Add(it.Quantity)
		}
	}
	return held
}

// SaleItem is a line item. ProductID is a backward reference that is
// cleared when the product is removed; ProductName and ProductPrice are
// the snapshot captured when the item was (re)stamped and survive the
// product's lifecycle. Subtotal is always Quantity x UnitPrice at
// persist time, never caller-supplied.
type SaleItem struct {
	ID           SaleItemID
	SaleID       SaleID
	ProductID    *ProductID
	ProductName  string
	ProductPrice decimal.Decimal
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
	Subtotal     decimal.Decimal
	CreatedAt    time.Time
}

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// SaleItemInput is a caller-supplied line item. UnitPrice is the price
// actually charged, which may differ from the product's listed price.
type SaleItemInput struct {
	ProductID ProductID
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity x unit price rounded to currency precision.
func (in SaleItemInput) LineTotal() decimal.Decimal {
	return RoundMoney(in.Quantity.Mul(in.UnitPrice))
}

type CreateSaleInput struct {
	CustomerID    *CustomerID
	TotalAmount   decimal.Decimal
	PaymentMethod string
	Notes         string
	SaleDate      *time.Time // nil: defaults to creation time
	Items         []SaleItemInput
}

// UpdateSaleInput patches a sale. Nil pointer fields are left unchanged.
// A nil Items slice means "no item change"; a non-nil slice replaces the
// whole item list. ClearCustomer removes the customer reference (the
// nil/absent distinction a pointer alone cannot carry).
type UpdateSaleInput struct {
	CustomerID    *CustomerID
	ClearCustomer bool
	TotalAmount   *decimal.Decimal
	PaymentMethod *string
	Notes         *string
	SaleDate      *time.Time
	Items         []SaleItemInput
}

// =============================================================================
// ANALYTICS RESULTS
// =============================================================================

// TopProduct is one row of the revenue ranking. ProductID is empty when
// every contributing item had its product reference cleared.
type TopProduct struct {
	ProductID     ProductID
	ProductName   string
	TotalQuantity decimal.Decimal
	TotalRevenue  decimal.Decimal
}
