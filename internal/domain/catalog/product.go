package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/shared"
)

// Product is the canonical product record the sync engine reconciles with
// marketplaces. Every local edit bumps Version, which drives dirty detection.
type Product struct {
	shared.BaseEntity
	SKU         string
	Barcode     string
	Title       string
	Description string
	Brand       string
	CategoryID  string
	Price       decimal.Decimal
	ListPrice   decimal.Decimal
	Quantity    int64
	VATRate     int
	OnSale      bool
	ImageURLs   []string
	// Version is a catalog-wide monotonic edit counter, assigned by the
	// repository when the product is saved
	Version int64
	// PriceChanged and StockChanged mark which aspects changed since the
	// product was last fully pushed
	PriceChanged bool
	StockChanged bool
}

// NewProduct creates a new product
func NewProduct(sku, title string, price decimal.Decimal, quantity int64) (*Product, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, shared.NewDomainError("INVALID_TITLE", "title is required")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "price cannot be negative")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "quantity cannot be negative")
	}
	return &Product{
		BaseEntity: shared.NewBaseEntity(),
		SKU:        sku,
		Title:      title,
		Price:      price,
		Quantity:   quantity,
		OnSale:     true,
	}, nil
}

// ChangePrice records a price edit
func (p *Product) ChangePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "price cannot be negative")
	}
	p.Price = price
	p.PriceChanged = true
	p.Touch()
	return nil
}

// ChangeStock records a stock edit
func (p *Product) ChangeStock(quantity int64) error {
	if quantity < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "quantity cannot be negative")
	}
	p.Quantity = quantity
	p.StockChanged = true
	p.Touch()
	return nil
}

// UpdateDetails records an edit to descriptive fields. Both dirty aspects
// are cleared so the next push sends the full listing.
func (p *Product) UpdateDetails(title, description, brand, categoryID string) error {
	if strings.TrimSpace(title) == "" {
		return shared.NewDomainError("INVALID_TITLE", "title is required")
	}
	p.Title = title
	p.Description = description
	p.Brand = brand
	p.CategoryID = categoryID
	p.PriceChanged = false
	p.StockChanged = false
	p.Touch()
	return nil
}
