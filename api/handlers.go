/*
handlers.go - HTTP API handlers for the commerce engine

PURPOSE:
  Exposes the sale transaction engine, product catalog, customers, and
  analytics via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to domain logic.

ENDPOINTS:
  Products:
    GET    /api/products               List products (?category= filters)
    POST   /api/products               Register product
    GET    /api/products/low-stock     Products at or below zero stock
    GET    /api/products/{id}          Get product
    PUT    /api/products/{id}          Update product
    DELETE /api/products/{id}          Soft-delete product

  Customers:
    GET    /api/customers              List customers
    POST   /api/customers              Create customer
    GET    /api/customers/{id}         Get customer
    PUT    /api/customers/{id}         Update customer
    DELETE /api/customers/{id}         Delete customer

  Sales:
    GET    /api/sales                  List sales (newest first)
    POST   /api/sales                  Record sale (consumes stock)
    GET    /api/sales/monthly-total    Monthly revenue (?year=&month=)
    GET    /api/sales/top-products     Revenue ranking (?limit=)
    DELETE /api/sales/bulk             Delete several sales atomically
    GET    /api/sales/{id}             Get sale
    PATCH  /api/sales/{id}             Update sale (reconciles stock)
    DELETE /api/sales/{id}             Delete sale (restores stock)

TENANCY:
  Every request carries the tenant in the X-Owner-ID header; the
  ownership middleware rejects requests without one. No data crosses
  tenants, and a foreign id behaves exactly like a missing one (404).

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, failed preconditions
  - 404: Resource not found (including foreign-tenant ids)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - commerce/engine.go: The transactional core
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vendo/commerce-engine/catalog"
	"github.com/vendo/commerce-engine/commerce"
	"github.com/vendo/commerce-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Catalog   *catalog.Service
	Engine    *commerce.Engine
	Analytics *commerce.Analytics
	Log       *zap.Logger
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store *sqlite.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Catalog:   catalog.NewService(store, log),
		Engine:    commerce.NewEngine(store, log),
		Analytics: commerce.NewAnalytics(store),
		Log:       log,
	}
}

// ownerHeader carries the tenant identity. Upstream auth is expected to
// set it; the engine itself only needs an opaque id.
const ownerHeader = "X-Owner-ID"

func owner(r *http.Request) commerce.OwnerID {
	return commerce.OwnerID(r.Header.Get(ownerHeader))
}

// RequireOwner rejects requests without a tenant id.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get(ownerHeader)) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+ownerHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

// ListProducts returns the tenant's live products, optionally filtered
// by exact category.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []*commerce.Product
		err      error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		products, err = h.Catalog.ProductsByCategory(r.Context(), owner(r), category)
	} else {
		products, err = h.Catalog.ListProducts(r.Context(), owner(r))
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// LowStockProducts returns products at or below zero stock.
func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.LowStockProducts(r.Context(), owner(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list products", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTOs(products))
}

// CreateProduct registers a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := h.Catalog.CreateProduct(r.Context(), owner(r), toCreateProductInput(req))
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := commerce.ProductID(chi.URLParam(r, "id"))

	p, err := h.Catalog.GetProduct(r.Context(), owner(r), id)
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// UpdateProduct patches a product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := commerce.ProductID(chi.URLParam(r, "id"))

	var req UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	p, err := h.Catalog.UpdateProduct(r.Context(), owner(r), id, toUpdateProductInput(req))
	if err != nil {
		h.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// DeleteProduct soft-deletes a product. Historical sale items keep their
// snapshots; their product references are cleared.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := commerce.ProductID(chi.URLParam(r, "id"))

	if err := h.Catalog.DeleteProduct(r.Context(), owner(r), id); err != nil {
		h.writeCatalogError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns the tenant's customers, name ascending.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context(), owner(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "customer name is required", nil)
		return
	}

	now := time.Now().UTC()
	c := &commerce.Customer{
		ID:        commerce.NewCustomerID(),
		OwnerID:   owner(r),
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Phone:     req.Phone,
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id := commerce.CustomerID(chi.URLParam(r, "id"))

	c, err := h.Store.FindCustomer(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// UpdateCustomer patches a customer.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id := commerce.CustomerID(chi.URLParam(r, "id"))

	var req UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	c, err := h.Store.FindCustomer(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "customer not found", nil)
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "customer name is required", nil)
			return
		}
		c.Name = name
	}
	if req.Email != nil {
		c.Email = *req.Email
	}
	if req.Phone != nil {
		c.Phone = *req.Phone
	}
	if req.Notes != nil {
		c.Notes = *req.Notes
	}
	c.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateCustomer(r.Context(), c); err != nil {
		h.writeEngineError(w, err, "failed to update customer")
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

// DeleteCustomer removes a customer. Their sales survive with the
// reference nullified by the store.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := commerce.CustomerID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteCustomer(r.Context(), owner(r), id); err != nil {
		h.writeEngineError(w, err, "failed to delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// ListSales returns the tenant's sales, newest sale date first.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.Store.ListSales(r.Context(), owner(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list sales", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTOs(sales))
}

// CreateSale records a sale and consumes stock for every item, all or
// nothing.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	in := commerce.CreateSaleInput{
		TotalAmount:   decimal.NewFromFloat(req.TotalAmount),
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
		Items:         toSaleItemInputs(req.Items),
	}
	if req.CustomerID != nil {
		cid := commerce.CustomerID(*req.CustomerID)
		in.CustomerID = &cid
	}
	if req.SaleDate != nil {
		t, err := time.Parse(time.RFC3339, *req.SaleDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sale_date", err)
			return
		}
		in.SaleDate = &t
	}

	sale, err := h.Engine.CreateSale(r.Context(), owner(r), in)
	if err != nil {
		h.writeEngineError(w, err, "failed to create sale")
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

// GetSale returns a single sale with its items.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := commerce.SaleID(chi.URLParam(r, "id"))

	sale, err := h.Store.FindSale(r.Context(), owner(r), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get sale", err)
		return
	}
	if sale == nil {
		writeError(w, http.StatusNotFound, "sale not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// UpdateSale patches a sale; with an items array the stock counters are
// reconciled against the replacement list.
func (h *Handler) UpdateSale(w http.ResponseWriter, r *http.Request) {
	id := commerce.SaleID(chi.URLParam(r, "id"))

	var req UpdateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	in := commerce.UpdateSaleInput{
		ClearCustomer: req.ClearCustomer,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	}
	if req.CustomerID != nil {
		cid := commerce.CustomerID(*req.CustomerID)
		in.CustomerID = &cid
	}
	if req.TotalAmount != nil {
		d := decimal.NewFromFloat(*req.TotalAmount)
		in.TotalAmount = &d
	}
	if req.SaleDate != nil {
		t, err := time.Parse(time.RFC3339, *req.SaleDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sale_date", err)
			return
		}
		in.SaleDate = &t
	}
	if req.Items != nil {
		in.Items = toSaleItemInputs(req.Items)
	}

	sale, err := h.Engine.UpdateSale(r.Context(), owner(r), id, in)
	if err != nil {
		h.writeEngineError(w, err, "failed to update sale")
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale))
}

// DeleteSale removes a sale and restores the stock its items held.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id := commerce.SaleID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteSale(r.Context(), owner(r), id); err != nil {
		h.writeEngineError(w, err, "failed to delete sale")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteSales deletes several sales atomically. One missing id
// rejects the whole batch.
func (h *Handler) BulkDeleteSales(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ids := make([]commerce.SaleID, len(req.IDs))
	for i, id := range req.IDs {
		ids[i] = commerce.SaleID(id)
	}

	if err := h.Engine.BulkDeleteSales(r.Context(), owner(r), ids); err != nil {
		h.writeEngineError(w, err, "failed to delete sales")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ANALYTICS HANDLERS
// =============================================================================

// MonthlyTotal returns the revenue for one calendar month
// (?year=2026&month=8). Defaults to the current month.
func (h *Handler) MonthlyTotal(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			writeError(w, http.StatusBadRequest, "invalid month", err)
			return
		}
		month = n
	}

	total, err := h.Analytics.MonthlyTotal(r.Context(), owner(r), year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to compute monthly total", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyTotalDTO{Year: year, Month: month, Total: num(total)})
}

// TopProducts returns the revenue ranking (?limit=, default 5).
func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}

	rows, err := h.Analytics.TopProducts(r.Context(), owner(r), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to rank products", err)
		return
	}

	dtos := make([]TopProductDTO, len(rows))
	for i, row := range rows {
		dtos[i] = TopProductDTO{
			ProductID:     string(row.ProductID),
			ProductName:   row.ProductName,
			TotalQuantity: num(row.TotalQuantity),
			TotalRevenue:  num(row.TotalRevenue),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeEngineError maps engine errors onto HTTP statuses. A structured
// stock error carries its details in the response body.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error, msg string) {
	switch {
	case commerce.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case commerce.IsClientError(err):
		var stockErr *commerce.InsufficientStockError
		if errors.As(err, &stockErr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: stockErr.Error(),
				Code:  "insufficient_stock",
				Details: map[string]any{
					"product_id":   string(stockErr.ProductID),
					"product_name": stockErr.ProductName,
					"available":    num(stockErr.Available),
					"requested":    num(stockErr.Requested),
				},
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, msg, err)
	}
}

func (h *Handler) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case commerce.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case catalog.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "catalog operation failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
