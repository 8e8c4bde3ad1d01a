/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  never talks SQL; it talks to these interfaces, so the same logic runs
  against SQLite in production and the in-memory store in tests.

TENANT SCOPING:
  Every method takes the owner id and must scope reads and writes to it.
  Multi-tenant isolation is a precondition enforced here, not
  re-validated inside the engine beyond trusting what the store returns.

ATOMICITY CONTRACT:
  TxStore.WithTx brackets one engine operation. Stock reads performed
  during validation, the stock writes, and the aggregate write all happen
  inside the same transaction; on error nothing is visible. AdjustStock
  additionally re-checks the resulting quantity, so a concurrent
  decrement that raced past validation still cannot drive stock negative.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite (WAL, single writer)
  - commerce/store: in-memory with snapshot rollback (tests, dev)

SEE ALSO:
  - engine.go: the only writer of sale aggregates and stock
  - analytics.go: read-only consumer of SaleStore
*/
package commerce

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PRODUCT STORE
// =============================================================================

// ProductStore exposes the two product operations the engine needs:
// a scoped snapshot read and an atomic stock adjustment.
type ProductStore interface {
	// FindProduct returns the product, or nil when it is absent,
	// soft-deleted, or owned by another tenant.
	FindProduct(ctx context.Context, owner OwnerID, id ProductID) (*Product, error)

	// AdjustStock atomically applies delta to the product's stock
	// quantity and returns the updated product. Returns a
	// ProductNotFoundError when the product does not resolve, and an
	// InsufficientStockError when a negative delta would drive the
	// quantity below zero.
	AdjustStock(ctx context.Context, owner OwnerID, id ProductID, delta decimal.Decimal) (*Product, error)
}

// =============================================================================
// SALE STORE
// =============================================================================

// SaleStore persists the Sale aggregate: a sale and its ordered items as
// one unit.
type SaleStore interface {
	// CreateSale persists the sale together with sale.Items.
	CreateSale(ctx context.Context, sale *Sale) error

	// FindSale returns the sale with its items eager-loaded, or nil when
	// absent or foreign.
	FindSale(ctx context.Context, owner OwnerID, id SaleID) (*Sale, error)

	// ListSales returns the owner's sales, items included, newest sale
	// date first.
	ListSales(ctx context.Context, owner OwnerID) ([]*Sale, error)

	// UpdateSale rewrites the sale's scalar fields. Items are untouched.
	UpdateSale(ctx context.Context, sale *Sale) error

	// ReplaceSaleItems swaps the sale's whole item list
	// (delete-and-reinsert).
	ReplaceSaleItems(ctx context.Context, owner OwnerID, id SaleID, items []SaleItem) error

	// DeleteSale removes the sale and cascades to its items. Returns
	// ErrSaleNotFound when nothing matched.
	DeleteSale(ctx context.Context, owner OwnerID, id SaleID) error

	// SumSaleTotals sums total amounts over sales whose sale date falls
	// in the half-open window [from, to).
	SumSaleTotals(ctx context.Context, owner OwnerID, from, to time.Time) (decimal.Decimal, error)
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is the full surface one engine operation works against.
type Store interface {
	ProductStore
	SaleStore
}

// TxStore adds transaction support. Every engine operation runs inside
// exactly one WithTx call.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error
	// the transaction is rolled back and no partial state is visible;
	// otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
