/*
validate.go - Business invariant checks before any mutation

PURPOSE:
  Enforces the engine's preconditions: non-empty item list, positive
  quantities and non-negative prices, every referenced product resolves
  under the caller, sufficient stock, and agreement between the declared
  total and the computed item total.

SIDE-EFFECT FREEDOM:
  Both paths only read. The engine runs validation inside the same
  transaction that later writes, so the stock snapshot it validates
  against is the one the writes apply to.

CREDIT-BACK RULE (update):
  When a sale is edited, the quantity it already holds for a product is
  credited back before checking sufficiency. Editing [P1 x3] to [P1 x5]
  with 7 units on the shelf checks 5 against 7+3=10, not against 7, so a
  sale can re-use stock it already consumed without a false failure.

SEE ALSO:
  - engine.go: calls these before building/writing anything
  - errors.go: the failure taxonomy produced here
*/
package commerce

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validator checks sale inputs against current product state. All reads
// go through the ProductStore it is given; run it against a
// transaction-scoped store for a consistent snapshot.
type Validator struct {
	Products ProductStore
}

// ValidateCreate checks the invariants for a new sale and returns the
// resolved products keyed by id, so the caller can stamp snapshots
// without re-reading.
func (v *Validator) ValidateCreate(ctx context.Context, owner OwnerID, items []SaleItemInput, declaredTotal decimal.Decimal) (map[ProductID]*Product, error) {
	if declaredTotal.IsNegative() {
		return nil, ErrNegativeTotal
	}
	products, computed, err := v.checkItems(ctx, owner, nil, items)
	if err != nil {
		return nil, err
	}
	if computed.Sub(declaredTotal).Abs().GreaterThan(TotalTolerance) {
		return nil, &TotalMismatchError{Declared: RoundMoney(declaredTotal), Computed: computed}
	}
	return products, nil
}

// ValidateUpdate checks a replacement item list against the sale's
// existing items. A nil declaredTotal is not validated; the computed
// total is adopted instead. Returns the resolved products and the total
// the sale should carry.
func (v *Validator) ValidateUpdate(ctx context.Context, owner OwnerID, existing []SaleItem, items []SaleItemInput, declaredTotal *decimal.Decimal) (map[ProductID]*Product, decimal.Decimal, error) {
	products, computed, err := v.checkItems(ctx, owner, existing, items)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if declaredTotal == nil {
		return products, computed, nil
	}
	if computed.Sub(*declaredTotal).Abs().GreaterThan(TotalTolerance) {
		return nil, decimal.Zero, &TotalMismatchError{Declared: RoundMoney(*declaredTotal), Computed: computed}
	}
	return products, RoundMoney(*declaredTotal), nil
}

// checkItems runs the per-item checks shared by create and update and
// accumulates the computed total. existing carries the quantities the
// sale already holds (empty on create).
func (v *Validator) checkItems(ctx context.Context, owner OwnerID, existing []SaleItem, items []SaleItemInput) (map[ProductID]*Product, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	held := heldQuantities(existing)
	products := make(map[ProductID]*Product, len(items))
	computed := decimal.Zero

	for _, in := range items {
		// Stock only moves through positive quantities. A negative
		// quantity would invert the diff and mint inventory.
		if !in.Quantity.IsPositive() {
			return nil, decimal.Zero, fmt.Errorf("product %s: %w", in.ProductID, ErrNonPositiveQuantity)
		}
		if in.UnitPrice.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("product %s: %w", in.ProductID, ErrNegativeUnitPrice)
		}

		p, ok := products[in.ProductID]
		if !ok {
			var err error
			p, err = v.Products.FindProduct(ctx, owner, in.ProductID)
			if err != nil {
				return nil, decimal.Zero, err
			}
			if p == nil {
				return nil, decimal.Zero, &ProductNotFoundError{ProductID: in.ProductID}
			}
			products[in.ProductID] = p
		}

		available := p.StockQuantity.Add(held[in.ProductID])
		if available.LessThan(in.Quantity) {
			return nil, decimal.Zero, &InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   available,
				Requested:   in.Quantity,
			}
		}

		computed = computed.Add(in.LineTotal())
	}

	return products, computed, nil
}

func heldQuantities(existing []SaleItem) map[ProductID]decimal.Decimal {
	held := make(map[ProductID]decimal.Decimal, len(existing))
	for _, it := range existing {
		if it.ProductID == nil {
			continue
		}
		held[*it.ProductID] = held[*it.ProductID].Add(it.Quantity)
	}
	return held
}
