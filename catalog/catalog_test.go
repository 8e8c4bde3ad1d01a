package catalog_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendo/commerce-engine/catalog"
	"github.com/vendo/commerce-engine/commerce"
	"github.com/vendo/commerce-engine/commerce/store"
)

const owner commerce.OwnerID = "owner-1"

func newService() (*catalog.Service, *store.Memory) {
	m := store.NewMemory()
	return catalog.NewService(m, nil), m
}

func dec(s string) decimal.Decimal { return commerce.MustDecimal(s) }

func ptr[T any](v T) *T { return &v }

// =============================================================================
// CREATE
// =============================================================================

func TestCreateProduct_RoundsAndPersists(t *testing.T) {
	svc, _ := newService()

	p, err := svc.CreateProduct(context.Background(), owner, catalog.CreateProductInput{
		Name:          "  Widget  ",
		Category:      "tools",
		CostPrice:     dec("3.999"),
		SalePrice:     dec("9.995"),
		StockQuantity: dec("10.0004"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Widget", p.Name, "name is trimmed")
	assert.True(t, p.CostPrice.Equal(dec("4.00")))
	assert.True(t, p.SalePrice.Equal(dec("10.00")) || p.SalePrice.Equal(dec("9.99")),
		"sale price rounded to 2dp, got %v", p.SalePrice)
	assert.True(t, p.StockQuantity.Equal(dec("10")), "stock rounded to 3dp, got %v", p.StockQuantity)
	assert.NotEmpty(t, p.ID)
}

func TestCreateProduct_AdmissionRules(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, owner, catalog.CreateProductInput{Name: "   "})
	assert.ErrorIs(t, err, catalog.ErrEmptyName)

	_, err = svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "X", CostPrice: dec("-1"), SalePrice: dec("1"),
	})
	assert.ErrorIs(t, err, catalog.ErrNegativePrice)

	_, err = svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "X", CostPrice: dec("5.00"), SalePrice: dec("4.99"),
	})
	assert.ErrorIs(t, err, catalog.ErrPriceBelowCost)

	_, err = svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "X", CostPrice: dec("1"), SalePrice: dec("2"), StockQuantity: dec("-1"),
	})
	assert.ErrorIs(t, err, catalog.ErrNegativeStock)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateProduct_PricingCheckedOnMergedState(t *testing.T) {
	// GIVEN: cost 5.00, sale 8.00
	// WHEN: Only the cost is raised above the unchanged sale price
	// THEN: The patch is rejected

	svc, _ := newService()
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "Widget", CostPrice: dec("5.00"), SalePrice: dec("8.00"),
	})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, owner, p.ID, catalog.UpdateProductInput{
		CostPrice: ptr(dec("9.00")),
	})
	assert.ErrorIs(t, err, catalog.ErrPriceBelowCost)

	// Raising both together is fine.
	updated, err := svc.UpdateProduct(ctx, owner, p.ID, catalog.UpdateProductInput{
		CostPrice: ptr(dec("9.00")),
		SalePrice: ptr(dec("12.00")),
	})
	require.NoError(t, err)
	assert.True(t, updated.SalePrice.Equal(dec("12.00")))
}

func TestUpdateProduct_StockCorrection(t *testing.T) {
	svc, m := newService()
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "Widget", CostPrice: dec("1"), SalePrice: dec("2"), StockQuantity: dec("10"),
	})
	require.NoError(t, err)

	_, err = svc.UpdateProduct(ctx, owner, p.ID, catalog.UpdateProductInput{
		StockQuantity: ptr(dec("25")),
	})
	require.NoError(t, err)

	reloaded, err := m.FindProduct(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.StockQuantity.Equal(dec("25")))
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc, _ := newService()

	_, err := svc.UpdateProduct(context.Background(), owner, "ghost", catalog.UpdateProductInput{})
	assert.ErrorIs(t, err, commerce.ErrProductNotFound)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeleteProduct_SnapshotsSurvive(t *testing.T) {
	// GIVEN: A sale referencing the product
	// WHEN: The product is removed
	// THEN: The product stops resolving, the item's reference is cleared,
	//       and the snapshots remain readable

	svc, m := newService()
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
		Name: "Widget", CostPrice: dec("1"), SalePrice: dec("2"), StockQuantity: dec("10"),
	})
	require.NoError(t, err)

	pid := p.ID
	require.NoError(t, m.CreateSale(ctx, &commerce.Sale{
		ID: "s1", OwnerID: owner, TotalAmount: dec("2.00"),
		Items: []commerce.SaleItem{{
			ID: "i1", SaleID: "s1", ProductID: &pid,
			ProductName: "Widget", ProductPrice: dec("2.00"),
			Quantity: dec("1"), UnitPrice: dec("2.00"), Subtotal: dec("2.00"),
		}},
	}))

	require.NoError(t, svc.DeleteProduct(ctx, owner, p.ID))

	gone, err := m.FindProduct(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	sale, err := m.FindSale(ctx, owner, "s1")
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.Nil(t, sale.Items[0].ProductID, "reference cleared")
	assert.Equal(t, "Widget", sale.Items[0].ProductName, "snapshot survives")
	assert.True(t, sale.Items[0].ProductPrice.Equal(dec("2.00")))
}

func TestDeleteProduct_NotFound(t *testing.T) {
	svc, _ := newService()

	err := svc.DeleteProduct(context.Background(), owner, "ghost")
	assert.ErrorIs(t, err, commerce.ErrProductNotFound)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestProductQueries(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	mk := func(name, category, stock string) {
		_, err := svc.CreateProduct(ctx, owner, catalog.CreateProductInput{
			Name: name, Category: category,
			CostPrice: dec("1"), SalePrice: dec("2"),
			StockQuantity: dec(stock),
		})
		require.NoError(t, err)
	}
	mk("Anvil", "tools", "0")
	mk("Bolt", "hardware", "50")
	mk("Clamp", "tools", "3")

	all, err := svc.ListProducts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Anvil", all[0].Name, "sorted by name")

	tools, err := svc.ProductsByCategory(ctx, owner, "tools")
	require.NoError(t, err)
	assert.Len(t, tools, 2)

	low, err := svc.LowStockProducts(ctx, owner)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "Anvil", low[0].Name)
}
