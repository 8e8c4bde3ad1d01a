/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND QUANTITIES:
  The wire format uses JSON numbers for amounts and quantities; they are
  converted to decimal.Decimal at the boundary and never used for
  arithmetic as float64. Responses format decimals back as numbers.

VALIDATION:
  Validation is done in the domain layer, not in DTOs. DTOs are pure
  data carriers; handlers only check structural problems (bad JSON, bad
  timestamps).

SEE ALSO:
  - handlers.go: Uses these types
  - commerce/types.go: The domain types these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendo/commerce-engine/catalog"
	"github.com/vendo/commerce-engine/commerce"
)

// =============================================================================
// PRODUCT TYPES
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	Category      string  `json:"category,omitempty"`
	CostPrice     float64 `json:"cost_price"`
	SalePrice     float64 `json:"sale_price"`
	StockQuantity float64 `json:"stock_quantity"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
}

// CreateProductRequest is the request to register a product.
type CreateProductRequest struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	CostPrice     float64 `json:"cost_price"`
	SalePrice     float64 `json:"sale_price"`
	StockQuantity float64 `json:"stock_quantity"`
}

// UpdateProductRequest patches a product. Absent fields are unchanged.
type UpdateProductRequest struct {
	Name          *string  `json:"name,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Category      *string  `json:"category,omitempty"`
	CostPrice     *float64 `json:"cost_price,omitempty"`
	SalePrice     *float64 `json:"sale_price,omitempty"`
	StockQuantity *float64 `json:"stock_quantity,omitempty"`
}

// =============================================================================
// CUSTOMER TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// CreateCustomerRequest is the request to create a customer.
type CreateCustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Notes string `json:"notes"`
}

// UpdateCustomerRequest patches a customer. Absent fields are unchanged.
type UpdateCustomerRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// =============================================================================
// SALE TYPES
// =============================================================================

// SaleItemDTO represents a line item in API responses. ProductID is null
// when the product was removed after the sale; the name and price
// snapshots always survive.
type SaleItemDTO struct {
	ID           string  `json:"id"`
	ProductID    *string `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	Quantity     float64 `json:"quantity"`
	UnitPrice    float64 `json:"unit_price"`
	Subtotal     float64 `json:"subtotal"`
}

// SaleDTO represents a sale in API responses.
type SaleDTO struct {
	ID            string        `json:"id"`
	CustomerID    *string       `json:"customer_id,omitempty"`
	TotalAmount   float64       `json:"total_amount"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	SaleDate      string        `json:"sale_date"`
	CreatedAt     string        `json:"created_at,omitempty"`
	Items         []SaleItemDTO `json:"items"`
}

// SaleItemRequest is one caller-supplied line item.
type SaleItemRequest struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// CreateSaleRequest is the request to record a sale.
type CreateSaleRequest struct {
	CustomerID    *string           `json:"customer_id,omitempty"`
	TotalAmount   float64           `json:"total_amount"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	SaleDate      *string           `json:"sale_date,omitempty"` // RFC 3339
	Items         []SaleItemRequest `json:"items"`
}

// UpdateSaleRequest patches a sale. Absent fields are unchanged; a
// present items array replaces the whole item list. A *string cannot
// tell JSON null from an absent key, so detaching the customer takes an
// explicit "clear_customer": true rather than "customer_id": null.
type UpdateSaleRequest struct {
	CustomerID    *string           `json:"customer_id,omitempty"`
	ClearCustomer bool              `json:"clear_customer,omitempty"`
	TotalAmount   *float64          `json:"total_amount,omitempty"`
	PaymentMethod *string           `json:"payment_method,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	SaleDate      *string           `json:"sale_date,omitempty"`
	Items         []SaleItemRequest `json:"items,omitempty"`
}

// BulkDeleteRequest carries the ids for an all-or-nothing bulk delete.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// =============================================================================
// ANALYTICS TYPES
// =============================================================================

// MonthlyTotalDTO is the revenue for one calendar month.
type MonthlyTotalDTO struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
}

// TopProductDTO is one row of the revenue ranking.
type TopProductDTO struct {
	ProductID     string  `json:"product_id,omitempty"`
	ProductName   string  `json:"product_name"`
	TotalQuantity float64 `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func num(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toProductDTO(p *commerce.Product) ProductDTO {
	return ProductDTO{
		ID:            string(p.ID),
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		CostPrice:     num(p.CostPrice),
		SalePrice:     num(p.SalePrice),
		StockQuantity: num(p.StockQuantity),
		CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     p.UpdatedAt.Format(time.RFC3339),
	}
}

func toProductDTOs(products []*commerce.Product) []ProductDTO {
	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	return dtos
}

func toCustomerDTO(c *commerce.Customer) CustomerDTO {
	return CustomerDTO{
		ID:        string(c.ID),
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
		UpdatedAt: c.UpdatedAt.Format(time.RFC3339),
	}
}

func toSaleDTO(s *commerce.Sale) SaleDTO {
	dto := SaleDTO{
		ID:            string(s.ID),
		TotalAmount:   num(s.TotalAmount),
		PaymentMethod: s.PaymentMethod,
		Notes:         s.Notes,
		SaleDate:      s.SaleDate.Format(time.RFC3339),
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		Items:         make([]SaleItemDTO, len(s.Items)),
	}
	if s.CustomerID != nil {
		id := string(*s.CustomerID)
		dto.CustomerID = &id
	}
	for i, it := range s.Items {
		item := SaleItemDTO{
			ID:           string(it.ID),
			ProductName:  it.ProductName,
			ProductPrice: num(it.ProductPrice),
			Quantity:     num(it.Quantity),
			UnitPrice:    num(it.UnitPrice),
			Subtotal:     num(it.Subtotal),
		}
		if it.ProductID != nil {
			pid := string(*it.ProductID)
			item.ProductID = &pid
		}
		dto.Items[i] = item
	}
	return dto
}

func toSaleDTOs(sales []*commerce.Sale) []SaleDTO {
	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s)
	}
	return dtos
}

func toSaleItemInputs(items []SaleItemRequest) []commerce.SaleItemInput {
	inputs := make([]commerce.SaleItemInput, len(items))
	for i, it := range items {
		inputs[i] = commerce.SaleItemInput{
			ProductID: commerce.ProductID(it.ProductID),
			Quantity:  decimal.NewFromFloat(it.Quantity),
			UnitPrice: decimal.NewFromFloat(it.UnitPrice),
		}
	}
	return inputs
}

func toCreateProductInput(req CreateProductRequest) catalog.CreateProductInput {
	return catalog.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		CostPrice:     decimal.NewFromFloat(req.CostPrice),
		SalePrice:     decimal.NewFromFloat(req.SalePrice),
		StockQuantity: decimal.NewFromFloat(req.StockQuantity),
	}
}

func toUpdateProductInput(req UpdateProductRequest) catalog.UpdateProductInput {
	in := catalog.UpdateProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
	}
	if req.CostPrice != nil {
		d := decimal.NewFromFloat(*req.CostPrice)
		in.CostPrice = &d
	}
	if req.SalePrice != nil {
		d := decimal.NewFromFloat(*req.SalePrice)
		in.SalePrice = &d
	}
	if req.StockQuantity != nil {
		d := decimal.NewFromFloat(*req.StockQuantity)
		in.StockQuantity = &d
	}
	return in
}
