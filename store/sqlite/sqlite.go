/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements commerce.TxStore, catalog.Store, and the customer
  persistence used by the API. The same patterns apply to PostgreSQL -
  only minor SQL dialect differences.

KEY TABLES:
  products:    catalog entries with the denormalized stock counter and a
               soft-delete marker
  customers:   plain per-tenant records; deleting one nullifies the
               reference on sales (ON DELETE SET NULL)
  sales:       sale scalars, owner-scoped
  sale_items:  line items; cascade-deleted with their sale; product_id
               is nullable and cleared when the product is removed,
               while the name/price snapshot columns survive

DECIMALS:
  Money and quantities are stored as TEXT in decimal string form and
  re-parsed with shopspring/decimal, so no precision is lost to floats.

TIME:
  All timestamps are stored UTC. Sale dates use a fixed-width
  nanosecond layout so that string comparison in SQL matches time
  ordering; the monthly-total window is a plain range scan.

CONCURRENCY:
  A sync.RWMutex serializes writers on top of SQLite's own single-writer
  model. WithTx holds the write lock for the whole callback and wraps it
  in one SQL transaction, which is what makes an engine operation's
  read-validate-write sequence atomic. AdjustStock re-checks the
  resulting quantity, so a racing decrement cannot drive stock negative.

WAL MODE:
  Opened with WAL and foreign keys on; readers don't block and the
  sale -> sale_items cascade is enforced by the database.

USAGE:
  st, err := sqlite.New("./data/commerce.db")
  if err != nil { ... }
  defer st.Close()
  engine := commerce.NewEngine(st, logger)

SEE ALSO:
  - commerce/store.go: interface contracts
  - commerce/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/vendo/commerce-engine/commerce"
)

// saleDateLayout is fixed-width (the fraction is always printed), so the
// lexicographic order of stored strings equals time order.
const saleDateLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite is single-writer anyway, and pooled
	// connections would each see their own ":memory:" database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		category TEXT,
		cost_price TEXT NOT NULL,
		sale_price TEXT NOT NULL,
		stock_quantity TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_products_owner
		ON products(owner_id, deleted_at);
	CREATE INDEX IF NOT EXISTS idx_products_owner_category
		ON products(owner_id, category);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT,
		phone TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_owner
		ON customers(owner_id);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		customer_id TEXT REFERENCES customers(id) ON DELETE SET NULL,
		total_amount TEXT NOT NULL,
		payment_method TEXT,
		notes TEXT,
		sale_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: per-tenant listing and the monthly range scan
	CREATE INDEX IF NOT EXISTS idx_sales_owner_date
		ON sales(owner_id, sale_date DESC);
	CREATE INDEX IF NOT EXISTS idx_sales_customer
		ON sales(customer_id) WHERE customer_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS sale_items (
		id TEXT PRIMARY KEY,
		sale_id TEXT NOT NULL REFERENCES sales(id) ON DELETE CASCADE,
		product_id TEXT,
		product_name TEXT NOT NULL,
		product_price TEXT NOT NULL,
		quantity TEXT NOT NULL,
		unit_price TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sale_items_sale
		ON sale_items(sale_id, position);
	CREATE INDEX IF NOT EXISTS idx_sale_items_product
		ON sale_items(product_id) WHERE product_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryable is satisfied by *sql.DB and *sql.Tx, so the same helpers
// serve both direct calls and WithTx callbacks.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONS (commerce.TxStore)
// =============================================================================

// WithTx executes fn inside one SQL transaction while holding the write
// lock. On error the transaction is rolled back and nothing is visible.
func (s *Store) WithTx(ctx context.Context, fn func(commerce.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txView{s: s, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView exposes the store's helpers bound to one open transaction,
// without re-taking locks.
type txView struct {
	s  *Store
	tx *sql.Tx
}

func (v *txView) FindProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) (*commerce.Product, error) {
	return v.s.findProduct(ctx, v.tx, owner, id)
}

func (v *txView) AdjustStock(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID, delta decimal.Decimal) (*commerce.Product, error) {
	return v.s.adjustStock(ctx, v.tx, owner, id, delta)
}

func (v *txView) CreateSale(ctx context.Context, sale *commerce.Sale) error {
	return v.s.createSale(ctx, v.tx, sale)
}

func (v *txView) FindSale(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID) (*commerce.Sale, error) {
	return v.s.findSale(ctx, v.tx, owner, id)
}

func (v *txView) ListSales(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Sale, error) {
	return v.s.listSales(ctx, v.tx, owner)
}

func (v *txView) UpdateSale(ctx context.Context, sale *commerce.Sale) error {
	return v.s.updateSale(ctx, v.tx, sale)
}

func (v *txView) ReplaceSaleItems(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID, items []commerce.SaleItem) error {
	return v.s.replaceSaleItems(ctx, v.tx, owner, id, items)
}

func (v *txView) DeleteSale(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID) error {
	return v.s.deleteSale(ctx, v.tx, owner, id)
}

func (v *txView) SumSaleTotals(ctx context.Context, owner commerce.OwnerID, from, to time.Time) (decimal.Decimal, error) {
	return v.s.sumSaleTotals(ctx, v.tx, owner, from, to)
}

// =============================================================================
// PRODUCTS (commerce.ProductStore + catalog.Store)
// =============================================================================

func (s *Store) FindProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) (*commerce.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findProduct(ctx, s.db, owner, id)
}

func (s *Store) AdjustStock(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID, delta decimal.Decimal) (*commerce.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustStock(ctx, s.db, owner, id, delta)
}

func (s *Store) SaveProduct(ctx context.Context, p *commerce.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO products
		(id, owner_id, name, description, category, cost_price, sale_price,
		 stock_quantity, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		nullString(p.Description),
		nullString(p.Category),
		p.CostPrice.String(),
		p.SalePrice.String(),
		p.StockQuantity.String(),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
		p.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *commerce.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE products
		SET name = ?, description = ?, category = ?, cost_price = ?,
		    sale_price = ?, stock_quantity = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query,
		p.Name,
		nullString(p.Description),
		nullString(p.Category),
		p.CostPrice.String(),
		p.SalePrice.String(),
		p.StockQuantity.String(),
		p.UpdatedAt.UTC().Format(time.RFC3339Nano),
		p.ID,
		p.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &commerce.ProductNotFoundError{ProductID: p.ID}
	}
	return nil
}

func (s *Store) ListProducts(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := productColumns + ` FROM products
		WHERE owner_id = ? AND deleted_at IS NULL
		ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var out []*commerce.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SoftDeleteProduct marks the product deleted and clears the backward
// reference on every sale item pointing at it, in one transaction.
func (s *Store) SoftDeleteProduct(ctx context.Context, owner commerce.OwnerID, id commerce.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`UPDATE products SET deleted_at = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`,
		now, now, id, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &commerce.ProductNotFoundError{ProductID: id}
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sale_items SET product_id = NULL
		 WHERE product_id = ?
		   AND sale_id IN (SELECT id FROM sales WHERE owner_id = ?)`,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to clear sale item references: %w", err)
	}

	return tx.Commit()
}

const productColumns = `SELECT id, owner_id, name, COALESCE(description, ''),
	COALESCE(category, ''), cost_price, sale_price, stock_quantity,
	created_at, updated_at, deleted_at`

func (s *Store) findProduct(ctx context.Context, q queryable, owner commerce.OwnerID, id commerce.ProductID) (*commerce.Product, error) {
	query := productColumns + ` FROM products
		WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`
	p, err := scanProduct(q.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (s *Store) adjustStock(ctx context.Context, q queryable, owner commerce.OwnerID, id commerce.ProductID, delta decimal.Decimal) (*commerce.Product, error) {
	p, err := s.findProduct(ctx, q, owner, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &commerce.ProductNotFoundError{ProductID: id}
	}

	next := p.StockQuantity.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		// Race guard: validation may have read an older quantity.
		return nil, &commerce.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.StockQuantity,
			Requested:   delta.Neg(),
		}
	}

	now := time.Now().UTC()
	_, err = q.ExecContext(ctx,
		`UPDATE products SET stock_quantity = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		next.String(), now.Format(time.RFC3339Nano), id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	p.StockQuantity = next
	p.UpdatedAt = now
	return p, nil
}

func scanProduct(row interface{ Scan(dest ...any) error }) (*commerce.Product, error) {
	var (
		p                    commerce.Product
		cost, sale, stock    string
		createdAt, updatedAt string
		deletedAt            sql.NullString
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Category,
		&cost, &sale, &stock, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if p.CostPrice, err = decimal.NewFromString(cost); err != nil {
		return nil, fmt.Errorf("bad cost_price %q: %w", cost, err)
	}
	if p.SalePrice, err = decimal.NewFromString(sale); err != nil {
		return nil, fmt.Errorf("bad sale_price %q: %w", sale, err)
	}
	if p.StockQuantity, err = decimal.NewFromString(stock); err != nil {
		return nil, fmt.Errorf("bad stock_quantity %q: %w", stock, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t, err := parseTime(deletedAt.String)
		if err != nil {
			return nil, err
		}
		p.DeletedAt = &t
	}
	return &p, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func (s *Store) SaveCustomer(ctx context.Context, c *commerce.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO customers (id, owner_id, name, email, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.Name,
		nullString(c.Email), nullString(c.Phone), nullString(c.Notes),
		c.CreatedAt.UTC().Format(time.RFC3339Nano),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (s *Store) FindCustomer(ctx context.Context, owner commerce.OwnerID, id commerce.CustomerID) (*commerce.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, customerColumns+
		` FROM customers WHERE id = ? AND owner_id = ?`,
		id, owner,
	)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (s *Store) ListCustomers(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, customerColumns+
		` FROM customers WHERE owner_id = ? ORDER BY name ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var out []*commerce.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCustomer(ctx context.Context, c *commerce.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE customers SET name = ?, email = ?, phone = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		c.Name, nullString(c.Email), nullString(c.Phone), nullString(c.Notes),
		c.UpdatedAt.UTC().Format(time.RFC3339Nano),
		c.ID, c.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commerce.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) DeleteCustomer(ctx context.Context, owner commerce.OwnerID, id commerce.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM customers WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commerce.ErrCustomerNotFound
	}
	return nil
}

const customerColumns = `SELECT id, owner_id, name, COALESCE(email, ''),
	COALESCE(phone, ''), COALESCE(notes, ''), created_at, updated_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (*commerce.Customer, error) {
	var (
		c                    commerce.Customer
		createdAt, updatedAt string
	)
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.Notes,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// SALES (commerce.SaleStore)
// =============================================================================

func (s *Store) CreateSale(ctx context.Context, sale *commerce.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSale(ctx, s.db, sale)
}

func (s *Store) FindSale(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID) (*commerce.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findSale(ctx, s.db, owner, id)
}

func (s *Store) ListSales(ctx context.Context, owner commerce.OwnerID) ([]*commerce.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listSales(ctx, s.db, owner)
}

func (s *Store) UpdateSale(ctx context.Context, sale *commerce.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSale(ctx, s.db, sale)
}

func (s *Store) ReplaceSaleItems(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID, items []commerce.SaleItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceSaleItems(ctx, s.db, owner, id, items)
}

func (s *Store) DeleteSale(ctx context.Context, owner commerce.OwnerID, id commerce.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteSale(ctx, s.db, owner, id)
}

func (s *Store) SumSaleTotals(ctx context.Context, owner commerce.OwnerID, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sumSaleTotals(ctx, s.db, owner, from, to)
}

func (s *Store) createSale(ctx context.Context, q queryable, sale *commerce.Sale) error {
	query := `
		INSERT INTO sales
		(id, owner_id, customer_id, total_amount, payment_method, notes, sale_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		sale.ID,
		sale.OwnerID,
		nullCustomer(sale.CustomerID),
		sale.TotalAmount.String(),
		nullString(sale.PaymentMethod),
		nullString(sale.Notes),
		sale.SaleDate.UTC().Format(saleDateLayout),
		sale.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	return s.insertItems(ctx, q, sale.ID, sale.Items)
}

func (s *Store) insertItems(ctx context.Context, q queryable, saleID commerce.SaleID, items []commerce.SaleItem) error {
	query := `
		INSERT INTO sale_items
		(id, sale_id, product_id, product_name, product_price, quantity,
		 unit_price, subtotal, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, it := range items {
		_, err := q.ExecContext(ctx, query,
			it.ID,
			saleID,
			nullProduct(it.ProductID),
			it.ProductName,
			it.ProductPrice.String(),
			it.Quantity.String(),
			it.UnitPrice.String(),
			it.Subtotal.String(),
			i,
			it.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("failed to insert sale item: %w", err)
		}
	}
	return nil
}

const saleColumns = `SELECT id, owner_id, customer_id, total_amount,
	COALESCE(payment_method, ''), COALESCE(notes, ''), sale_date, created_at`

func (s *Store) findSale(ctx context.Context, q queryable, owner commerce.OwnerID, id commerce.SaleID) (*commerce.Sale, error) {
	query := saleColumns + ` FROM sales WHERE id = ? AND owner_id = ?`
	sale, err := scanSale(q.QueryRowContext(ctx, query, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sale.Items, err = s.loadItems(ctx, q, sale.ID); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) listSales(ctx context.Context, q queryable, owner commerce.OwnerID) ([]*commerce.Sale, error) {
	query := saleColumns + ` FROM sales
		WHERE owner_id = ?
		ORDER BY sale_date DESC, created_at DESC`
	rows, err := q.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []*commerce.Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, sale := range out {
		if sale.Items, err = s.loadItems(ctx, q, sale.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, q queryable, saleID commerce.SaleID) ([]commerce.SaleItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, sale_id, product_id, product_name, product_price,
		        quantity, unit_price, subtotal, created_at
		 FROM sale_items WHERE sale_id = ? ORDER BY position ASC`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sale items: %w", err)
	}
	defer rows.Close()

	var items []commerce.SaleItem
	for rows.Next() {
		var (
			it                            commerce.SaleItem
			productID                     sql.NullString
			pPrice, qty, price, sub, crAt string
		)
		if err := rows.Scan(&it.ID, &it.SaleID, &productID, &it.ProductName,
			&pPrice, &qty, &price, &sub, &crAt); err != nil {
			return nil, err
		}
		if productID.Valid {
			pid := commerce.ProductID(productID.String)
			it.ProductID = &pid
		}
		if it.ProductPrice, err = decimal.NewFromString(pPrice); err != nil {
			return nil, fmt.Errorf("bad product_price %q: %w", pPrice, err)
		}
		if it.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("bad quantity %q: %w", qty, err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("bad unit_price %q: %w", price, err)
		}
		if it.Subtotal, err = decimal.NewFromString(sub); err != nil {
			return nil, fmt.Errorf("bad subtotal %q: %w", sub, err)
		}
		if it.CreatedAt, err = parseTime(crAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) updateSale(ctx context.Context, q queryable, sale *commerce.Sale) error {
	res, err := q.ExecContext(ctx,
		`UPDATE sales
		 SET customer_id = ?, total_amount = ?, payment_method = ?, notes = ?, sale_date = ?
		 WHERE id = ? AND owner_id = ?`,
		nullCustomer(sale.CustomerID),
		sale.TotalAmount.String(),
		nullString(sale.PaymentMethod),
		nullString(sale.Notes),
		sale.SaleDate.UTC().Format(saleDateLayout),
		sale.ID,
		sale.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commerce.ErrSaleNotFound
	}
	return nil
}

func (s *Store) replaceSaleItems(ctx context.Context, q queryable, owner commerce.OwnerID, id commerce.SaleID, items []commerce.SaleItem) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM sales WHERE id = ? AND owner_id = ?`, id, owner,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return commerce.ErrSaleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check sale: %w", err)
	}

	if _, err := q.ExecContext(ctx,
		`DELETE FROM sale_items WHERE sale_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sale items: %w", err)
	}
	return s.insertItems(ctx, q, id, items)
}

func (s *Store) deleteSale(ctx context.Context, q queryable, owner commerce.OwnerID, id commerce.SaleID) error {
	res, err := q.ExecContext(ctx,
		`DELETE FROM sales WHERE id = ? AND owner_id = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return commerce.ErrSaleNotFound
	}
	return nil
}

func (s *Store) sumSaleTotals(ctx context.Context, q queryable, owner commerce.OwnerID, from, to time.Time) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT total_amount FROM sales
		 WHERE owner_id = ? AND sale_date >= ? AND sale_date < ?`,
		owner,
		from.UTC().Format(saleDateLayout),
		to.UTC().Format(saleDateLayout),
	)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query sale totals: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad total_amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

func scanSale(row interface{ Scan(dest ...any) error }) (*commerce.Sale, error) {
	var (
		sale                commerce.Sale
		customerID          sql.NullString
		totalAmount         string
		saleDate, createdAt string
	)
	err := row.Scan(&sale.ID, &sale.OwnerID, &customerID, &totalAmount,
		&sale.PaymentMethod, &sale.Notes, &saleDate, &createdAt)
	if err != nil {
		return nil, err
	}

	if customerID.Valid {
		cid := commerce.CustomerID(customerID.String)
		sale.CustomerID = &cid
	}
	if sale.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("bad total_amount %q: %w", totalAmount, err)
	}
	if sale.SaleDate, err = parseTime(saleDate); err != nil {
		return nil, err
	}
	if sale.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &sale, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullCustomer(id *commerce.CustomerID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}

func nullProduct(id *commerce.ProductID) any {
	if id == nil {
		return nil
	}
	return string(*id)
}
