/*
engine.go - Transactional sale lifecycle orchestration

PURPOSE:
  The Engine is the only writer of sale aggregates and product stock.
  Each operation (create, update, delete, bulk delete) runs as one store
  transaction: validate against the in-transaction stock snapshot,
  compute the stock diff, write the aggregate, apply the deltas. A
  failure at any step rolls the whole operation back.

OPERATION SHAPE:
  create:      validate -> stamp snapshots -> persist aggregate -> -qty per item
  update:      load -> validate -> apply diff BEFORE replacing the item list
               -> rewrite scalars + delete-and-reinsert items
  delete:      load -> credit back live item quantities -> delete aggregate
  bulk delete: resolve ALL ids first, reject the whole batch on any miss

ORDERING:
  Stock deltas are applied in sorted product-id order so two concurrent
  multi-product operations always lock products in the same sequence.

SNAPSHOTS:
  Items are stamped with the product's current name and listed price at
  (re)stamp time, independent of the caller-supplied unit price. Later
  product edits or removals never rewrite history.

SEE ALSO:
  - validate.go: the precondition checks
  - diff.go: the delta calculation
  - analytics.go: the read-only side
*/
package commerce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine orchestrates sale mutations against a transactional store.
type Engine struct {
	store TxStore
	log   *zap.Logger
	now   func() time.Time
}

// NewEngine creates an engine. A nil logger disables logging.
func NewEngine(store TxStore, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{store: store, log: log, now: time.Now}
}

// WithClock overrides the engine's clock. For tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// =============================================================================
// CREATE
// =============================================================================

// CreateSale validates the input, persists the sale aggregate with
// name/price snapshots stamped from current product state, and consumes
// stock for every item, all in one transaction.
func (e *Engine) CreateSale(ctx context.Context, owner OwnerID, in CreateSaleInput) (*Sale, error) {
	var created *Sale

	err := e.store.WithTx(ctx, func(s Store) error {
		v := &Validator{Products: s}
		products, err := v.ValidateCreate(ctx, owner, in.Items, in.TotalAmount)
		if err != nil {
			return err
		}

		now := e.now().UTC()
		saleDate := now
		if in.SaleDate != nil {
			saleDate = in.SaleDate.UTC()
		}

		sale := &Sale{
			ID:            NewSaleID(),
			OwnerID:       owner,
			CustomerID:    in.CustomerID,
			TotalAmount:   RoundMoney(in.TotalAmount),
			PaymentMethod: in.PaymentMethod,
			Notes:         in.Notes,
			SaleDate:      saleDate,
			CreatedAt:     now,
		}
		sale.Items = stampItems(sale.ID, in.Items, products, now)

		if err := s.CreateSale(ctx, sale); err != nil {
			return err
		}
		if err := e.applyDeltas(ctx, s, owner, StockDiff(nil, in.Items), false); err != nil {
			return err
		}

		created, err = e.reload(ctx, s, owner, sale.ID)
		return err
	})
	if err != nil {
		e.logFailure("create sale", owner, err)
		return nil, err
	}

	e.log.Info("sale created",
		zap.String("owner_id", string(owner)),
		zap.String("sale_id", string(created.ID)),
		zap.Int("items", len(created.Items)),
		zap.String("total", created.TotalAmount.StringFixed(2)))
	return created, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateSale patches a sale. With an item list, the replacement is
// validated with the credit-back rule, the stock diff is applied before
// the item list is rewritten, and the items are re-stamped from current
// product state. Without one, only scalar fields change.
func (e *Engine) UpdateSale(ctx context.Context, owner OwnerID, id SaleID, in UpdateSaleInput) (*Sale, error) {
	var updated *Sale

	err := e.store.WithTx(ctx, func(s Store) error {
		sale, err := s.FindSale(ctx, owner, id)
		if err != nil {
			return err
		}
		if sale == nil {
			return ErrSaleNotFound
		}

		if in.Items == nil {
			applyScalarPatch(sale, in)
			if in.TotalAmount != nil {
				sale.TotalAmount = RoundMoney(*in.TotalAmount)
			}
			if err := s.UpdateSale(ctx, sale); err != nil {
				return err
			}
			updated, err = e.reload(ctx, s, owner, id)
			return err
		}

		v := &Validator{Products: s}
		products, total, err := v.ValidateUpdate(ctx, owner, sale.Items, in.Items, in.TotalAmount)
		if err != nil {
			return err
		}

		// Stock moves first: if the aggregate write below fails, the
		// rollback covers both; stock can never end up reflecting an
		// item list that was not persisted.
		if err := e.applyDeltas(ctx, s, owner, StockDiff(sale.Items, in.Items), true); err != nil {
			return err
		}

		applyScalarPatch(sale, in)
		sale.TotalAmount = total
		if err := s.UpdateSale(ctx, sale); err != nil {
			return err
		}

		items := stampItems(sale.ID, in.Items, products, e.now().UTC())
		if err := s.ReplaceSaleItems(ctx, owner, sale.ID, items); err != nil {
			return err
		}

		updated, err = e.reload(ctx, s, owner, id)
		return err
	})
	if err != nil {
		e.logFailure("update sale", owner, err)
		return nil, err
	}

	e.log.Info("sale updated",
		zap.String("owner_id", string(owner)),
		zap.String("sale_id", string(updated.ID)),
		zap.Bool("items_replaced", in.Items != nil))
	return updated, nil
}

// =============================================================================
// DELETE / BULK DELETE
// =============================================================================

// DeleteSale reverses the sale's effect on stock and removes the
// aggregate. Items whose product reference was cleared, or whose product
// has since been soft-deleted, have nothing to credit and are skipped.
func (e *Engine) DeleteSale(ctx context.Context, owner OwnerID, id SaleID) error {
	err := e.store.WithTx(ctx, func(s Store) error {
		sale, err := s.FindSale(ctx, owner, id)
		if err != nil {
			return err
		}
		if sale == nil {
			return ErrSaleNotFound
		}
		return e.releaseAndDelete(ctx, s, sale)
	})
	if err != nil {
		e.logFailure("delete sale", owner, err)
		return err
	}

	e.log.Info("sale deleted",
		zap.String("owner_id", string(owner)),
		zap.String("sale_id", string(id)))
	return nil
}

// BulkDeleteSales deletes several sales atomically. Every id must
// resolve under the caller; otherwise the whole batch is rejected and
// nothing is touched.
func (e *Engine) BulkDeleteSales(ctx context.Context, owner OwnerID, ids []SaleID) error {
	if len(ids) == 0 {
		return ErrEmptyBatch
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		var sales []*Sale
		var missing []SaleID
		seen := make(map[SaleID]bool, len(ids))

		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true

			sale, err := s.FindSale(ctx, owner, id)
			if err != nil {
				return err
			}
			if sale == nil {
				missing = append(missing, id)
				continue
			}
			sales = append(sales, sale)
		}
		if len(missing) > 0 {
			return &BatchNotFoundError{Missing: missing}
		}

		for _, sale := range sales {
			if err := e.releaseAndDelete(ctx, s, sale); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logFailure("bulk delete sales", owner, err)
		return err
	}

	e.log.Info("sales bulk deleted",
		zap.String("owner_id", string(owner)),
		zap.Int("count", len(ids)))
	return nil
}

func (e *Engine) releaseAndDelete(ctx context.Context, s Store, sale *Sale) error {
	if err := e.applyDeltas(ctx, s, sale.OwnerID, StockDiff(sale.Items, nil), true); err != nil {
		return err
	}
	return s.DeleteSale(ctx, sale.OwnerID, sale.ID)
}

// =============================================================================
// INTERNALS
// =============================================================================

// applyDeltas writes a stock diff in sorted product-id order. When
// skipMissing is set, a credit (positive delta) against a product that
// no longer resolves is dropped: the product was removed after the sale
// and there is no stock left to restore. Debits never skip; a missing
// product on a debit means validation and apply disagree, which the
// transaction must surface.
func (e *Engine) applyDeltas(ctx context.Context, s Store, owner OwnerID, diff map[ProductID]decimal.Decimal, skipMissing bool) error {
	for _, d := range SortedDeltas(diff) {
		if _, err := s.AdjustStock(ctx, owner, d.ProductID, d.Delta); err != nil {
			if skipMissing && d.Delta.IsPositive() && errors.Is(err, ErrProductNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

func stampItems(saleID SaleID, inputs []SaleItemInput, products map[ProductID]*Product, now time.Time) []SaleItem {
	items := make([]SaleItem, len(inputs))
	for i, in := range inputs {
		p := products[in.ProductID]
		pid := in.ProductID
		items[i] = SaleItem{
			ID:           NewSaleItemID(),
			SaleID:       saleID,
			ProductID:    &pid,
			ProductName:  p.Name,
			ProductPrice: p.SalePrice,
			Quantity:     RoundQuantity(in.Quantity),
			UnitPrice:    RoundMoney(in.UnitPrice),
			Subtotal:     in.LineTotal(),
			CreatedAt:    now,
		}
	}
	return items
}

func applyScalarPatch(sale *Sale, in UpdateSaleInput) {
	switch {
	case in.ClearCustomer:
		sale.CustomerID = nil
	case in.CustomerID != nil:
		sale.CustomerID = in.CustomerID
	}
	if in.PaymentMethod != nil {
		sale.PaymentMethod = *in.PaymentMethod
	}
	if in.Notes != nil {
		sale.Notes = *in.Notes
	}
	if in.SaleDate != nil {
		sale.SaleDate = in.SaleDate.UTC()
	}
}

func (e *Engine) reload(ctx context.Context, s Store, owner OwnerID, id SaleID) (*Sale, error) {
	sale, err := s.FindSale(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, fmt.Errorf("sale %s vanished inside its own transaction", id)
	}
	return sale, nil
}

func (e *Engine) logFailure(op string, owner OwnerID, err error) {
	if IsClientError(err) {
		e.log.Debug(op+" rejected",
			zap.String("owner_id", string(owner)),
			zap.Error(err))
		return
	}
	e.log.Error(op+" failed",
		zap.String("owner_id", string(owner)),
		zap.Error(err))
}
