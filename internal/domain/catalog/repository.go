package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/meschain/sync/internal/domain/integration"
)

// ProductRepository provides access to the canonical product catalog
type ProductRepository interface {
	// FindByID retrieves a product by its ID. Returns shared.ErrNotFound
	// when the product does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindBySKU retrieves a product by its merchant SKU
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// ListChangedAfter returns products with version greater than the cursor,
	// in version order
	ListChangedAfter(ctx context.Context, afterVersion int64, limit int) ([]*Product, error)

	// Save persists the product and assigns it the next catalog version.
	// Creates the row when it does not exist yet.
	Save(ctx context.Context, product *Product) error
}

// OrderRepository provides access to imported marketplace orders
type OrderRepository interface {
	// FindByID retrieves an order by its local ID. Returns shared.ErrNotFound
	// when the order does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByExternal retrieves the order imported for a marketplace order ID.
	// Returns shared.ErrNotFound when no import happened yet.
	FindByExternal(ctx context.Context, code integration.MarketplaceCode, externalOrderID string) (*Order, error)

	// Create inserts a new imported order. Returns shared.ErrAlreadyExists
	// when the (marketplace, external order ID) pair was already imported.
	Create(ctx context.Context, order *Order) error

	// Update persists changes to an existing order
	Update(ctx context.Context, order *Order) error
}
