/*
Package catalog is the product-management boundary in front of the
product store.

PURPOSE:
  Admission rules for product registration and edits (sale price never
  below cost price, stock never registered negative, name required), and
  the product removal protocol: soft delete plus explicit invalidation
  of the backward references held by historical sale items. The engine
  in package commerce trusts products admitted here and is the only
  mutator of their stock counters afterwards.

REMOVAL PROTOCOL:
  Products referenced by sale items are never hard-deleted. DeleteProduct
  sets the soft-delete marker and clears sale_items.product_id for every
  item pointing at the product; the items keep their name/price
  snapshots, so history and analytics survive.

SEE ALSO:
  - commerce/types.go: the Product type and its invariants
  - store/sqlite: the production Store implementation
*/
package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendo/commerce-engine/commerce"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrEmptyName rejects products without a usable name.
	ErrEmptyName = errors.New("product name is required")

	// ErrPriceBelowCost rejects a sale price below the cost price.
	ErrPriceBelowCost = errors.New("sale price cannot be below cost price")

	// ErrNegativePrice rejects negative cost or sale prices.
	ErrNegativePrice = errors.New("prices cannot be negative")

	// ErrNegativeStock rejects a negative registered stock quantity.
	ErrNegativeStock = errors.New("stock quantity cannot be negative")
)

// IsClientError reports whether the error is a catalog admission
// failure, as opposed to a store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyName) ||
		errors.Is(err, ErrPriceBelowCost) ||
		errors.Is(err, ErrNegativePrice) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, commerce.ErrProductNotFound)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the persistence surface the catalog needs. Implemented by
// store/sqlite and commerce/store.Memory.
type Store interface {
	commerce.ProductStore

	SaveProduct(ctx context.Context, p *commerce.Product) error
	UpdateProduct(ctx context.Context, p *commerce.Product) error
	ListProducts(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Product, error)

	// SoftDeleteProduct sets the delete marker and clears the product
	// reference on every sale item pointing at the product.
	SoftDeleteProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) error
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log, now: time.Now}
}

type CreateProductInput struct {
	Name          string
	Description   string
	Category      string
	CostPrice     decimal.Decimal
	SalePrice     decimal.Decimal
	StockQuantity decimal.Decimal
}

// UpdateProductInput patches a product; nil fields are unchanged.
// StockQuantity here is an explicit inventory correction, distinct from
// the engine's sale-driven adjustments.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Category      *string
	CostPrice     *decimal.Decimal
	SalePrice     *decimal.Decimal
	StockQuantity *decimal.Decimal
}

// CreateProduct admits a new product after the pricing and stock checks.
func (s *Service) CreateProduct(ctx context.Context, owner commerce.OwnerID, in CreateProductInput) (*commerce.Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if err := checkPrices(in.CostPrice, in.SalePrice); err != nil {
		return nil, err
	}
	if in.StockQuantity.IsNegative() {
		return nil, ErrNegativeStock
	}

	now := s.now().UTC()
	p := &commerce.Product{
		ID:            commerce.NewProductID(),
		OwnerID:       owner,
		Name:          name,
		Description:   in.Description,
		Category:      in.Category,
		CostPrice:     commerce.RoundMoney(in.CostPrice),
		SalePrice:     commerce.RoundMoney(in.SalePrice),
		StockQuantity: commerce.RoundQuantity(in.StockQuantity),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.SaveProduct(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("product created",
		zap.String("owner_id", string(owner)),
		zap.String("product_id", string(p.ID)),
		zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct applies a patch, re-checking the pricing invariant
// against the merged state.
func (s *Service) UpdateProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID, in UpdateProductInput) (*commerce.Product, error) {
	p, err := s.store.FindProduct(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &commerce.ProductNotFoundError{ProductID: id}
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.CostPrice != nil {
		p.CostPrice = commerce.RoundMoney(*in.CostPrice)
	}
	if in.SalePrice != nil {
		p.SalePrice = commerce.RoundMoney(*in.SalePrice)
	}
	if err := checkPrices(p.CostPrice, p.SalePrice); err != nil {
		return nil, err
	}
	if in.StockQuantity != nil {
		if in.StockQuantity.IsNegative() {
			return nil, ErrNegativeStock
		}
		p.StockQuantity = commerce.RoundQuantity(*in.StockQuantity)
	}

	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.log.Info("product updated",
		zap.String("owner_id", string(owner)),
		zap.String("product_id", string(p.ID)))
	return p, nil
}

// DeleteProduct soft-deletes the product and invalidates the backward
// references held by sale items.
func (s *Service) DeleteProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) error {
	if err := s.store.SoftDeleteProduct(ctx, owner, id); err != nil {
		return err
	}
	s.log.Info("product deleted",
		zap.String("owner_id", string(owner)),
		zap.String("product_id", string(id)))
	return nil
}

// GetProduct returns the product or a ProductNotFoundError.
func (s *Service) GetProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) (*commerce.Product, error) {
	p, err := s.store.FindProduct(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &commerce.ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

// ListProducts returns the owner's live products, name ascending.
func (s *Service) ListProducts(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Product, error) {
	return s.store.ListProducts(ctx, owner)
}

// ProductsByCategory filters the owner's products by exact category.
func (s *Service) ProductsByCategory(ctx context.Context, owner commerce.OwnerID, category string) ([]*commerce.Product, error) {
	all, err := s.store.ListProducts(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*commerce.Product, 0, len(all))
	for _, p := range all {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

// LowStockProducts returns products whose stock is at or below zero.
func (s *Service) LowStockProducts(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Product, error) {
	all, err := s.store.ListProducts(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]*commerce.Product, 0)
	for _, p := range all {
		if !p.StockQuantity.IsPositive() {
			out = append(out, p)
		}
	}
	return out, nil
}

func checkPrices(cost, sale decimal.Decimal) error {
	if cost.IsNegative() || sale.IsNegative() {
		return ErrNegativePrice
	}
	if sale.LessThan(cost) {
		return ErrPriceBelowCost
	}
	return nil
}
