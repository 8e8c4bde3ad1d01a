// Package store provides an in-memory commerce.TxStore implementation
// for tests and development. WithTx gets transactional semantics by
// snapshotting state on entry and restoring it when the callback fails.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendo/commerce-engine/commerce"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	products map[productKey]commerce.Product
	sales    map[saleKey]commerce.Sale
}

type productKey struct {
	Owner commerce.OwnerID
	ID    commerce.ProductID
}

type saleKey struct {
	Owner commerce.OwnerID
	ID    commerce.SaleID
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[productKey]commerce.Product),
		sales:    make(map[saleKey]commerce.Sale),
	}
}

// WithTx serializes writers and restores the pre-transaction state when
// fn fails, so a failed operation leaves nothing behind.
func (m *Memory) WithTx(_ context.Context, fn func(commerce.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	products := make(map[productKey]commerce.Product, len(m.products))
	for k, v := range m.products {
		products[k] = v
	}
	sales := make(map[saleKey]commerce.Sale, len(m.sales))
	for k, v := range m.sales {
		sales[k] = cloneSale(v)
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.products = products
		m.sales = sales
		m.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// PRODUCTS (commerce.ProductStore + catalog persistence)
// =============================================================================

func (m *Memory) FindProduct(_ context.Context, owner commerce.OwnerID, id commerce.ProductID) (*commerce.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.products[productKey{owner, id}]
	if !ok || p.Deleted() {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *Memory) AdjustStock(_ context.Context, owner commerce.OwnerID, id commerce.ProductID, delta decimal.Decimal) (*commerce.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := productKey{owner, id}
	p, ok := m.products[k]
	if !ok || p.Deleted() {
		return nil, &commerce.ProductNotFoundError{ProductID: id}
	}

	next := p.StockQuantity.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return nil, &commerce.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.StockQuantity,
			Requested:   delta.Neg(),
		}
	}

	p.StockQuantity = next
	p.UpdatedAt = time.Now().UTC()
	m.products[k] = p
	cp := p
	return &cp, nil
}

func (m *Memory) SaveProduct(_ context.Context, p *commerce.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[productKey{p.OwnerID, p.ID}] = *p
	return nil
}

func (m *Memory) UpdateProduct(_ context.Context, p *commerce.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := productKey{p.OwnerID, p.ID}
	if _, ok := m.products[k]; !ok {
		return &commerce.ProductNotFoundError{ProductID: p.ID}
	}
	m.products[k] = *p
	return nil
}

func (m *Memory) ListProducts(_ context.Context, owner commerce.OwnerID) ([]*commerce.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*commerce.Product
	for k, p := range m.products {
		if k.Owner != owner || p.Deleted() {
			continue
		}
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// SoftDeleteProduct marks the product deleted and clears the backward
// reference on every sale item pointing at it. Snapshots survive.
func (m *Memory) SoftDeleteProduct(_ context.Context, owner commerce.OwnerID, id commerce.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := productKey{owner, id}
	p, ok := m.products[k]
	if !ok || p.Deleted() {
		return &commerce.ProductNotFoundError{ProductID: id}
	}

	now := time.Now().UTC()
	p.DeletedAt = &now
	p.UpdatedAt = now
	m.products[k] = p

	for sk, sale := range m.sales {
		if sk.Owner != owner {
			continue
		}
		changed := false
		for i := range sale.Items {
			if sale.Items[i].ProductID != nil && *sale.Items[i].ProductID == id {
				sale.Items[i].ProductID = nil
				changed = true
			}
		}
		if changed {
			m.sales[sk] = sale
		}
	}
	return nil
}

// =============================================================================
// SALES (commerce.SaleStore)
// =============================================================================

func (m *Memory) CreateSale(_ context.Context, sale *commerce.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sales[saleKey{sale.OwnerID, sale.ID}] = cloneSale(*sale)
	return nil
}

func (m *Memory) FindSale(_ context.Context, owner commerce.OwnerID, id commerce.SaleID) (*commerce.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sale, ok := m.sales[saleKey{owner, id}]
	if !ok {
		return nil, nil
	}
	cp := cloneSale(sale)
	return &cp, nil
}

func (m *Memory) ListSales(_ context.Context, owner commerce.OwnerID) ([]*commerce.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*commerce.Sale
	for k, sale := range m.sales {
		if k.Owner != owner {
			continue
		}
		cp := cloneSale(sale)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SaleDate.After(out[j].SaleDate) })
	return out, nil
}

func (m *Memory) UpdateSale(_ context.Context, sale *commerce.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{sale.OwnerID, sale.ID}
	existing, ok := m.sales[k]
	if !ok {
		return commerce.ErrSaleNotFound
	}

	// Scalars only; the item list is owned by ReplaceSaleItems.
	updated := cloneSale(*sale)
	updated.Items = existing.Items
	m.sales[k] = updated
	return nil
}

func (m *Memory) ReplaceSaleItems(_ context.Context, owner commerce.OwnerID, id commerce.SaleID, items []commerce.SaleItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{owner, id}
	sale, ok := m.sales[k]
	if !ok {
		return commerce.ErrSaleNotFound
	}
	sale.Items = append([]commerce.SaleItem(nil), items...)
	m.sales[k] = sale
	return nil
}

func (m *Memory) DeleteSale(_ context.Context, owner commerce.OwnerID, id commerce.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey{owner, id}
	if _, ok := m.sales[k]; !ok {
		return commerce.ErrSaleNotFound
	}
	delete(m.sales, k)
	return nil
}

func (m *Memory) SumSaleTotals(_ context.Context, owner commerce.OwnerID, from, to time.Time) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for k, sale := range m.sales {
		if k.Owner != owner {
			continue
		}
		if sale.SaleDate.Before(from) || !sale.SaleDate.Before(to) {
			continue
		}
		total = total.Add(sale.TotalAmount)
	}
	return total, nil
}

func cloneSale(sale commerce.Sale) commerce.Sale {
	cp := sale
	cp.Items = append([]commerce.SaleItem(nil), sale.Items...)
	if sale.CustomerID != nil {
		cid := *sale.CustomerID
		cp.CustomerID = &cid
	}
	for i := range cp.Items {
		if cp.Items[i].ProductID != nil {
			pid := *cp.Items[i].ProductID
			cp.Items[i].ProductID = &pid
		}
	}
	return cp
}
