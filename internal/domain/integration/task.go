package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// TaskOperation
// ---------------------------------------------------------------------------

// TaskOperation identifies what an outbound sync task pushes
type TaskOperation string

const (
	// TaskOperationCreate creates the entity on the marketplace
	TaskOperationCreate TaskOperation = "CREATE"
	// TaskOperationUpdatePrice pushes a price change
	TaskOperationUpdatePrice TaskOperation = "UPDATE_PRICE"
	// TaskOperationUpdateStock pushes a stock change
	TaskOperationUpdateStock TaskOperation = "UPDATE_STOCK"
	// TaskOperationUpdateOrderStatus pushes an order status change
	TaskOperationUpdateOrderStatus TaskOperation = "UPDATE_ORDER_STATUS"
)

// IsValid returns true if the task operation is valid
func (o TaskOperation) IsValid() bool {
	switch o {
	case TaskOperationCreate, TaskOperationUpdatePrice, TaskOperationUpdateStock, TaskOperationUpdateOrderStatus:
		return true
	default:
		return false
	}
}

// String returns the string representation of TaskOperation
func (o TaskOperation) String() string {
	return string(o)
}

// ---------------------------------------------------------------------------
// SyncTask
// ---------------------------------------------------------------------------

// SyncTask is one unit of outbound work: push one operation for one
// (entity, marketplace) pair. Tasks are derived from dirty mappings each
// cycle, not persisted.
type SyncTask struct {
	Mapping   *Mapping
	Operation TaskOperation
	// Version is the local entity version this task pushes. Recorded on the
	// mapping after a successful push so older queued work is skipped.
	Version int64
	// Product is set for product operations
	Product *ProductPayload
	// Order is set for order status operations
	Order *OrderPayload
}

// ProductPayload is the catalog snapshot of a product used to build pushes
type ProductPayload struct {
	ID          uuid.UUID
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
	// Version increments on every local edit
	Version int64
	// PriceChanged and StockChanged mark which aspects are dirty since the
	// last successful push
	PriceChanged bool
	StockChanged bool
}

// Push converts the payload into an outbound product push
func (p *ProductPayload) Push() *ProductPush {
	return &ProductPush{
		LocalID:     p.ID,
		SKU:         p.SKU,
		Barcode:     p.Barcode,
		Title:       p.Title,
		Description: p.Description,
		Brand:       p.Brand,
		CategoryID:  p.CategoryID,
		Price:       p.Price,
		ListPrice:   p.ListPrice,
		Quantity:    p.Quantity,
		VATRate:     p.VATRate,
		OnSale:      p.OnSale,
		ImageURLs:   p.ImageURLs,
	}
}

// OrderPayload is the catalog snapshot of an order used for status pushes
type OrderPayload struct {
	ID       uuid.UUID
	Status   OrderStatus
	Shipment *Shipment
	Version  int64
}

// ---------------------------------------------------------------------------
// Catalog Port
// ---------------------------------------------------------------------------

// CatalogService is the port through which the sync engine reads and writes
// the merchant's canonical catalog. The engine never owns product or order
// data; it only reconciles it with marketplaces.
type CatalogService interface {
	// GetProduct loads the current snapshot of one product
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductPayload, error)

	// GetOrder loads the current snapshot of one order
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderPayload, error)

	// ListChangedProducts returns products whose version increased after the
	// given cursor version, in version order. Drives mapping dirtying.
	ListChangedProducts(ctx context.Context, afterVersion int64, limit int) ([]*ProductPayload, error)

	// ApplyRemoteOrder records an order pulled or received from a marketplace
	// into the canonical catalog, returning the local order ID. Importing the
	// same external order twice must be idempotent.
	ApplyRemoteOrder(ctx context.Context, order *RawOrder) (uuid.UUID, error)

	// ApplyRemoteOrderStatus records a remote order status change
	ApplyRemoteOrderStatus(ctx context.Context, orderID uuid.UUID, status OrderStatus, occurredAt time.Time) error
}
