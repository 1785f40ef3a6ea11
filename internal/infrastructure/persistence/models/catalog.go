package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
)

// ProductModel is the persistence model for the Product domain entity.
// Version carries a catalog-wide monotonic counter; the index over it serves
// the changed-products scan.
type ProductModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	SKU          string          `gorm:"type:varchar(100);not null;uniqueIndex:uq_product_sku"`
	Barcode      string          `gorm:"type:varchar(100)"`
	Title        string          `gorm:"type:varchar(255);not null"`
	Description  string          `gorm:"type:text"`
	Brand        string          `gorm:"type:varchar(100)"`
	CategoryID   string          `gorm:"type:varchar(100)"`
	Price        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ListPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Quantity     int64           `gorm:"not null;default:0"`
	VATRate      int             `gorm:"not null;default:0"`
	OnSale       bool            `gorm:"not null;default:true"`
	ImageURLs    string          `gorm:"type:text"`
	Version      int64           `gorm:"not null;default:0;index:idx_product_version"`
	PriceChanged bool            `gorm:"not null;default:false"`
	StockChanged bool            `gorm:"not null;default:false"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	var images []string
	if m.ImageURLs != "" {
		// A corrupt column yields no images rather than an error
		_ = json.Unmarshal([]byte(m.ImageURLs), &images)
	}
	return &catalog.Product{
		BaseEntity:   baseEntity(m.ID, m.CreatedAt, m.UpdatedAt),
		SKU:          m.SKU,
		Barcode:      m.Barcode,
		Title:        m.Title,
		Description:  m.Description,
		Brand:        m.Brand,
		CategoryID:   m.CategoryID,
		Price:        m.Price,
		ListPrice:    m.ListPrice,
		Quantity:     m.Quantity,
		VATRate:      m.VATRate,
		OnSale:       m.OnSale,
		ImageURLs:    images,
		Version:      m.Version,
		PriceChanged: m.PriceChanged,
		StockChanged: m.StockChanged,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(product *catalog.Product) {
	m.ID = product.ID
	m.SKU = product.SKU
	m.Barcode = product.Barcode
	m.Title = product.Title
	m.Description = product.Description
	m.Brand = product.Brand
	m.CategoryID = product.CategoryID
	m.Price = product.Price
	m.ListPrice = product.ListPrice
	m.Quantity = product.Quantity
	m.VATRate = product.VATRate
	m.OnSale = product.OnSale
	if len(product.ImageURLs) > 0 {
		if data, err := json.Marshal(product.ImageURLs); err == nil {
			m.ImageURLs = string(data)
		}
	} else {
		m.ImageURLs = ""
	}
	m.Version = product.Version
	m.PriceChanged = product.PriceChanged
	m.StockChanged = product.StockChanged
	m.CreatedAt = product.CreatedAt
	m.UpdatedAt = product.UpdatedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(product *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(product)
	return m
}

// OrderModel is the persistence model for the Order domain entity. The
// unique index over (marketplace, external order ID) makes order import
// idempotent. Line items are stored as a JSON document.
type OrderModel struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primary_key"`
	MarketplaceCode integration.MarketplaceCode `gorm:"type:varchar(20);not null;uniqueIndex:uq_order_external,priority:1"`
	ExternalOrderID string                      `gorm:"type:varchar(100);not null;uniqueIndex:uq_order_external,priority:2"`
	Status          integration.OrderStatus     `gorm:"type:varchar(20);not null"`
	BuyerName       string                      `gorm:"type:varchar(255)"`
	City            string                      `gorm:"type:varchar(100)"`
	TotalAmount     decimal.Decimal             `gorm:"type:decimal(18,4);not null;default:0"`
	Currency        string                      `gorm:"type:varchar(10)"`
	Lines           string                      `gorm:"type:text"`
	OrderedAt       time.Time
	Carrier         string    `gorm:"type:varchar(100)"`
	TrackingNumber  string    `gorm:"type:varchar(100)"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *catalog.Order {
	var lines []catalog.OrderLine
	if m.Lines != "" {
		_ = json.Unmarshal([]byte(m.Lines), &lines)
	}
	return &catalog.Order{
		BaseEntity:      baseEntity(m.ID, m.CreatedAt, m.UpdatedAt),
		MarketplaceCode: m.MarketplaceCode,
		ExternalOrderID: m.ExternalOrderID,
		Status:          m.Status,
		BuyerName:       m.BuyerName,
		City:            m.City,
		TotalAmount:     m.TotalAmount,
		Currency:        m.Currency,
		Lines:           lines,
		OrderedAt:       m.OrderedAt,
		Carrier:         m.Carrier,
		TrackingNumber:  m.TrackingNumber,
		Version:         m.Version,
	}
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(order *catalog.Order) {
	m.ID = order.ID
	m.MarketplaceCode = order.MarketplaceCode
	m.ExternalOrderID = order.ExternalOrderID
	m.Status = order.Status
	m.BuyerName = order.BuyerName
	m.City = order.City
	m.TotalAmount = order.TotalAmount
	m.Currency = order.Currency
	if len(order.Lines) > 0 {
		if data, err := json.Marshal(order.Lines); err == nil {
			m.Lines = string(data)
		}
	} else {
		m.Lines = ""
	}
	m.OrderedAt = order.OrderedAt
	m.Carrier = order.Carrier
	m.TrackingNumber = order.TrackingNumber
	m.Version = order.Version
	m.CreatedAt = order.CreatedAt
	m.UpdatedAt = order.UpdatedAt
}

// OrderModelFromDomain creates a new persistence model from a domain Order entity.
func OrderModelFromDomain(order *catalog.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(order)
	return m
}
