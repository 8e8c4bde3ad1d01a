package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendo/commerce-engine/commerce"
	"github.com/vendo/commerce-engine/store/sqlite"
)

const owner commerce.OwnerID = "owner-1"

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal { return commerce.MustDecimal(s) }

func saveProduct(t *testing.T, s *sqlite.Store, id commerce.ProductID, name, stock string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.SaveProduct(context.Background(), &commerce.Product{
		ID:            id,
		OwnerID:       owner,
		Name:          name,
		Category:      "tools",
		CostPrice:     dec("1.50"),
		SalePrice:     dec("4.00"),
		StockQuantity: dec(stock),
		CreatedAt:     now,
		UpdatedAt:     now,
	}))
}

func makeSale(id commerce.SaleID, date time.Time, total string, items ...commerce.SaleItem) *commerce.Sale {
	for i := range items {
		items[i].SaleID = id
		if items[i].ID == "" {
			items[i].ID = commerce.NewSaleItemID()
		}
		items[i].CreatedAt = date
	}
	return &commerce.Sale{
		ID:          id,
		OwnerID:     owner,
		TotalAmount: dec(total),
		SaleDate:    date,
		CreatedAt:   date,
		Items:       items,
	}
}

func lineItem(pid commerce.ProductID, name, quantity, price string) commerce.SaleItem {
	id := pid
	return commerce.SaleItem{
		ProductID:    &id,
		ProductName:  name,
		ProductPrice: dec(price),
		Quantity:     dec(quantity),
		UnitPrice:    dec(price),
		Subtotal:     commerce.RoundMoney(dec(quantity).Mul(dec(price))),
	}
}

// =============================================================================
// PRODUCTS
// =============================================================================

func TestProductRoundtrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10.5")

	p, err := s.FindProduct(ctx, owner, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Widget", p.Name)
	assert.True(t, p.CostPrice.Equal(dec("1.50")))
	assert.True(t, p.StockQuantity.Equal(dec("10.5")))

	// Foreign tenants see nothing.
	foreign, err := s.FindProduct(ctx, "other", "p1")
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestAdjustStock_GuardsAgainstNegative(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "5")

	p, err := s.AdjustStock(ctx, owner, "p1", dec("-3"))
	require.NoError(t, err)
	assert.True(t, p.StockQuantity.Equal(dec("2")))

	_, err = s.AdjustStock(ctx, owner, "p1", dec("-3"))
	require.ErrorIs(t, err, commerce.ErrInsufficientStock)

	// Failed adjustment leaves the counter where it was.
	p, err = s.FindProduct(ctx, owner, "p1")
	require.NoError(t, err)
	assert.True(t, p.StockQuantity.Equal(dec("2")))

	_, err = s.AdjustStock(ctx, owner, "ghost", dec("1"))
	require.ErrorIs(t, err, commerce.ErrProductNotFound)
}

func TestSoftDeleteProduct_ClearsReferencesKeepsSnapshots(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")

	date := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSale(ctx, makeSale("s1", date, "8.00",
		lineItem("p1", "Widget", "2", "4.00"))))

	require.NoError(t, s.SoftDeleteProduct(ctx, owner, "p1"))

	gone, err := s.FindProduct(ctx, owner, "p1")
	require.NoError(t, err)
	assert.Nil(t, gone, "soft-deleted product no longer resolves")

	sale, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Nil(t, sale.Items[0].ProductID)
	assert.Equal(t, "Widget", sale.Items[0].ProductName)
	assert.True(t, sale.Items[0].ProductPrice.Equal(dec("4.00")))

	// Deleting again is a not-found.
	err = s.SoftDeleteProduct(ctx, owner, "p1")
	require.ErrorIs(t, err, commerce.ErrProductNotFound)
}

func TestListProducts_ExcludesDeletedSortsByName(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Zebra", "1")
	saveProduct(t, s, "p2", "Anvil", "1")
	saveProduct(t, s, "p3", "Mallet", "1")
	require.NoError(t, s.SoftDeleteProduct(ctx, owner, "p3"))

	products, err := s.ListProducts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Anvil", products[0].Name)
	assert.Equal(t, "Zebra", products[1].Name)
}

// =============================================================================
// SALES
// =============================================================================

func TestSaleRoundtrip_ItemOrderAndNullables(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")
	saveProduct(t, s, "p2", "Gadget", "10")

	now := time.Now().UTC()
	cust := &commerce.Customer{
		ID: "c1", OwnerID: owner, Name: "Ada",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveCustomer(ctx, cust))

	date := time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC)
	sale := makeSale("s1", date, "20.00",
		lineItem("p2", "Gadget", "3", "4.00"),
		lineItem("p1", "Widget", "2", "4.00"))
	cid := commerce.CustomerID("c1")
	sale.CustomerID = &cid
	sale.PaymentMethod = "card"
	sale.Notes = "morning order"
	require.NoError(t, s.CreateSale(ctx, sale))

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "card", got.PaymentMethod)
	require.NotNil(t, got.CustomerID)
	assert.Equal(t, commerce.CustomerID("c1"), *got.CustomerID)
	assert.True(t, got.SaleDate.Equal(date), "nanosecond precision preserved")
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Gadget", got.Items[0].ProductName, "insertion order preserved")
	assert.Equal(t, "Widget", got.Items[1].ProductName)

	// Foreign tenant sees nothing.
	foreign, err := s.FindSale(ctx, "other", "s1")
	require.NoError(t, err)
	assert.Nil(t, foreign)
}

func TestListSales_NewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSale(ctx, makeSale("old", base, "1.00")))
	require.NoError(t, s.CreateSale(ctx, makeSale("new", base.AddDate(0, 0, 2), "2.00")))
	require.NoError(t, s.CreateSale(ctx, makeSale("mid", base.AddDate(0, 0, 1), "3.00")))

	sales, err := s.ListSales(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sales, 3)
	assert.Equal(t, commerce.SaleID("new"), sales[0].ID)
	assert.Equal(t, commerce.SaleID("mid"), sales[1].ID)
	assert.Equal(t, commerce.SaleID("old"), sales[2].ID)
}

func TestUpdateSale_ScalarsOnly(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	sale := makeSale("s1", date, "8.00", lineItem("p1", "Widget", "2", "4.00"))
	require.NoError(t, s.CreateSale(ctx, sale))

	sale.Notes = "edited"
	sale.TotalAmount = dec("9.00")
	require.NoError(t, s.UpdateSale(ctx, sale))

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Notes)
	assert.True(t, got.TotalAmount.Equal(dec("9.00")))
	assert.Len(t, got.Items, 1, "items untouched by scalar update")

	ghost := makeSale("ghost", date, "1.00")
	require.ErrorIs(t, s.UpdateSale(ctx, ghost), commerce.ErrSaleNotFound)
}

func TestReplaceSaleItems(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")
	saveProduct(t, s, "p2", "Gadget", "10")

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSale(ctx, makeSale("s1", date, "8.00",
		lineItem("p1", "Widget", "2", "4.00"))))

	replacement := []commerce.SaleItem{lineItem("p2", "Gadget", "5", "4.00")}
	for i := range replacement {
		replacement[i].ID = commerce.NewSaleItemID()
		replacement[i].SaleID = "s1"
		replacement[i].CreatedAt = date
	}
	require.NoError(t, s.ReplaceSaleItems(ctx, owner, "s1", replacement))

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Gadget", got.Items[0].ProductName)

	require.ErrorIs(t, s.ReplaceSaleItems(ctx, owner, "ghost", nil), commerce.ErrSaleNotFound)
}

func TestDeleteSale_CascadesItems(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")

	date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateSale(ctx, makeSale("s1", date, "8.00",
		lineItem("p1", "Widget", "2", "4.00"))))

	require.NoError(t, s.DeleteSale(ctx, owner, "s1"))

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.ErrorIs(t, s.DeleteSale(ctx, owner, "s1"), commerce.ErrSaleNotFound)
}

func TestSumSaleTotals_HalfOpenWindow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSale(ctx, makeSale("before",
		time.Date(2024, 1, 31, 23, 59, 59, 999999999, time.UTC), "100.00")))
	require.NoError(t, s.CreateSale(ctx, makeSale("first",
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "10.00")))
	require.NoError(t, s.CreateSale(ctx, makeSale("last",
		time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC), "20.00")))
	require.NoError(t, s.CreateSale(ctx, makeSale("after",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "100.00")))

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	total, err := s.SumSaleTotals(ctx, owner, from, to)
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("30.00")), "got %v", total)
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomerLifecycle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &commerce.Customer{
		ID: "c1", OwnerID: owner, Name: "Ada", Email: "ada@example.com",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.SaveCustomer(ctx, c))

	got, err := s.FindCustomer(ctx, owner, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ada@example.com", got.Email)

	got.Phone = "555-0101"
	require.NoError(t, s.UpdateCustomer(ctx, got))

	list, err := s.ListCustomers(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "555-0101", list[0].Phone)

	require.NoError(t, s.DeleteCustomer(ctx, owner, "c1"))
	require.ErrorIs(t, s.DeleteCustomer(ctx, owner, "c1"), commerce.ErrCustomerNotFound)
}

func TestDeleteCustomer_NullifiesSaleReference(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveCustomer(ctx, &commerce.Customer{
		ID: "c1", OwnerID: owner, Name: "Ada", CreatedAt: now, UpdatedAt: now,
	}))

	sale := makeSale("s1", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), "5.00")
	cid := commerce.CustomerID("c1")
	sale.CustomerID = &cid
	require.NoError(t, s.CreateSale(ctx, sale))

	require.NoError(t, s.DeleteCustomer(ctx, owner, "c1"))

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.CustomerID, "ON DELETE SET NULL detaches the sale")
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollbackOnError(t *testing.T) {
	// GIVEN: A transaction that writes a sale, adjusts stock, then fails
	// WHEN: The callback returns an error
	// THEN: Neither write survives

	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")

	boom := assert.AnError
	err := s.WithTx(ctx, func(tx commerce.Store) error {
		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		if err := tx.CreateSale(ctx, makeSale("s1", date, "8.00",
			lineItem("p1", "Widget", "2", "4.00"))); err != nil {
			return err
		}
		if _, err := tx.AdjustStock(ctx, owner, "p1", dec("-2")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	gone, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	assert.Nil(t, gone)

	p, err := s.FindProduct(ctx, owner, "p1")
	require.NoError(t, err)
	assert.True(t, p.StockQuantity.Equal(dec("10")), "stock restored, got %v", p.StockQuantity)
}

func TestWithTx_CommitOnSuccess(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	saveProduct(t, s, "p1", "Widget", "10")

	err := s.WithTx(ctx, func(tx commerce.Store) error {
		date := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		if err := tx.CreateSale(ctx, makeSale("s1", date, "8.00",
			lineItem("p1", "Widget", "2", "4.00"))); err != nil {
			return err
		}
		_, err := tx.AdjustStock(ctx, owner, "p1", dec("-2"))
		return err
	})
	require.NoError(t, err)

	got, err := s.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)

	p, err := s.FindProduct(ctx, owner, "p1")
	require.NoError(t, err)
	assert.True(t, p.StockQuantity.Equal(dec("8")))
}
