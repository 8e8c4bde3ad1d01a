/*
diff.go - Pure stock-delta calculation

PURPOSE:
  Computes, given a sale's old item list and its new item list, the net
  per-product quantity delta to apply to product stock. This is the
  unit-testable core of the reconciliation logic: no I/O, no clock.

SEMANTICS:
  Every old item adds back its quantity (it is being released); every
  new item subtracts its quantity (it is being committed). Entries are
  summed per product, so an update that keeps a product but changes its
  quantity from 3 to 5 nets to -2. A pure create (no old items) yields
  only negative deltas; a pure delete (no new items) only positive ones.
  Old items whose product reference has been cleared contribute nothing:
  there is no stock left to credit.

SEE ALSO:
  - engine.go: applies the deltas inside the operation's transaction
*/
package commerce

import (
	"sort"

	"github.com/shopspring/decimal"
)

// StockDiff returns the net per-product stock delta between an old and a
// new item list. Products whose deltas cancel out are omitted, so
// StockDiff(old, old) is empty.
func StockDiff(oldItems []SaleItem, newItems []SaleItemInput) map[ProductID]decimal.Decimal {
	deltas := make(map[ProductID]decimal.Decimal)

	for _, it := range oldItems {
		if it.ProductID == nil {
			continue // reference cleared: nothing to credit
		}
		deltas[*it.ProductID] = deltas[*it.ProductID].Add(it.Quantity)
	}
	for _, in := range newItems {
		deltas[in.ProductID] = deltas[in.ProductID].Sub(in.Quantity)
	}

	for id, d := range deltas {
		if d.IsZero() {
			delete(deltas, id)
		}
	}
	return deltas
}

// StockDelta is one entry of a diff, ready to apply.
type StockDelta struct {
	ProductID ProductID
	Delta     decimal.Decimal
}

// SortedDeltas flattens a diff into product-id order. Applying deltas in
// a deterministic order prevents deadlock between two concurrent
// multi-item sales touching an overlapping set of products.
func SortedDeltas(deltas map[ProductID]decimal.Decimal) []StockDelta {
	out := make([]StockDelta, 0, len(deltas))
	for id, d := range deltas {
		out = append(out, StockDelta{ProductID: id, Delta: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
