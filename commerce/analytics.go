/*
analytics.go - Read-only aggregation over persisted sales

PURPOSE:
  Reporting queries: monthly revenue and the top products by revenue.
  Depends only on SaleStore, never mutates anything, and does not need
  to be transactionally consistent with concurrent writes.

SEE ALSO:
  - store.go: SumSaleTotals, ListSales
*/
package commerce

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTopProductsLimit is used when the caller passes a non-positive
// limit.
const DefaultTopProductsLimit = 5

// UnknownProductName labels aggregation rows whose contributing items
// lost both their product reference and their name snapshot.
const UnknownProductName = "Unknown product"

// Analytics answers reporting queries for one tenant at a time.
type Analytics struct {
	sales SaleStore
}

func NewAnalytics(sales SaleStore) *Analytics {
	return &Analytics{sales: sales}
}

// MonthlyTotal sums sale totals over the inclusive calendar month, i.e.
// sale dates in [year-month-01 00:00:00, first instant of next month).
func (a *Analytics) MonthlyTotal(ctx context.Context, owner OwnerID, year, month int) (decimal.Decimal, error) {
	if month < 1 || month > 12 {
		return decimal.Zero, fmt.Errorf("invalid month %d", month)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	return a.sales.SumSaleTotals(ctx, owner, from, to)
}

// TopProducts aggregates every sale item for the owner by product,
// summing quantity and revenue (subtotals), sorted by revenue
// descending and truncated to limit. Items whose product reference was
// cleared group together under an empty product id, keeping their
// snapshot name when one survives.
func (a *Analytics) TopProducts(ctx context.Context, owner OwnerID, limit int) ([]TopProduct, error) {
	if limit <= 0 {
		limit = DefaultTopProductsLimit
	}

	sales, err := a.sales.ListSales(ctx, owner)
	if err != nil {
		return nil, err
	}

	agg := make(map[ProductID]*TopProduct)
	for _, sale := range sales {
		for _, it := range sale.Items {
			var id ProductID
			if it.ProductID != nil {
				id = *it.ProductID
			}

			row, ok := agg[id]
			if !ok {
				row = &TopProduct{ProductID: id, ProductName: it.ProductName}
				if row.ProductName == "" {
					row.ProductName = UnknownProductName
				}
				agg[id] = row
			}
			row.TotalQuantity = row.TotalQuantity.Add(it.Quantity)
			row.TotalRevenue = row.TotalRevenue.Add(it.Subtotal)
		}
	}

	out := make([]TopProduct, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TotalRevenue.Equal(out[j].TotalRevenue) {
			return out[i].TotalRevenue.GreaterThan(out[j].TotalRevenue)
		}
		return out[i].ProductID < out[j].ProductID // stable order for ties
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
