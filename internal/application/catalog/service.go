package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// Service owns the canonical product and order catalog. It is both the
// merchant-facing write side and the integration.CatalogService port the
// sync engine reads from.
type Service struct {
	products catalog.ProductRepository
	orders   catalog.OrderRepository
	logger   *zap.Logger
}

// NewService creates a new catalog service
func NewService(products catalog.ProductRepository, orders catalog.OrderRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		products: products,
		orders:   orders,
		logger:   logger,
	}
}

// Ensure Service implements the sync engine's catalog port
var _ integration.CatalogService = (*Service)(nil)

// ---------------------------------------------------------------------------
// Merchant-facing operations
// ---------------------------------------------------------------------------

// CreateProduct adds a product to the catalog
func (s *Service) CreateProduct(ctx context.Context, sku, title string, price decimal.Decimal, quantity int64) (*catalog.Product, error) {
	product, err := catalog.NewProduct(sku, title, price, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product created",
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU))
	return product, nil
}

// ChangePrice records a price edit and bumps the product version
func (s *Service) ChangePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*catalog.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := product.ChangePrice(price); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// GetProductByID loads one product entity
func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return s.products.FindByID(ctx, id)
}

// GetOrderByID loads one order entity
func (s *Service) GetOrderByID(ctx context.Context, id uuid.UUID) (*catalog.Order, error) {
	return s.orders.FindByID(ctx, id)
}

// UpdateOrderStatus records a merchant-side status change, such as moving an
// order to picking or delivered. Equal statuses are a no-op.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status integration.OrderStatus) (*catalog.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := order.Status
	if err := order.ApplyStatus(status); err != nil {
		return nil, err
	}
	if order.Status == previous {
		return order, nil
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("order status updated",
		zap.String("order_id", id.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)))
	return order, nil
}

// ShipOrder records tracking info and moves the order to shipped
func (s *Service) ShipOrder(ctx context.Context, id uuid.UUID, carrier, trackingNumber string) (*catalog.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := order.Ship(carrier, trackingNumber); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	s.logger.Info("order shipped",
		zap.String("order_id", id.String()),
		zap.String("carrier", order.Carrier),
		zap.String("tracking_number", order.TrackingNumber))
	return order, nil
}

// ChangeStock records a stock edit and bumps the product version
func (s *Service) ChangeStock(ctx context.Context, id uuid.UUID, quantity int64) (*catalog.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := product.ChangeStock(quantity); err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// ---------------------------------------------------------------------------
// integration.CatalogService implementation
// ---------------------------------------------------------------------------

// GetProduct loads the current snapshot of one product
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*integration.ProductPayload, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductPayload(product), nil
}

// GetOrder loads the current snapshot of one order
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*integration.OrderPayload, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toOrderPayload(order), nil
}

// ListChangedProducts returns products changed after the cursor version
func (s *Service) ListChangedProducts(ctx context.Context, afterVersion int64, limit int) ([]*integration.ProductPayload, error) {
	products, err := s.products.ListChangedAfter(ctx, afterVersion, limit)
	if err != nil {
		return nil, err
	}
	payloads := make([]*integration.ProductPayload, 0, len(products))
	for _, p := range products {
		payloads = append(payloads, toProductPayload(p))
	}
	return payloads, nil
}

// ApplyRemoteOrder imports a marketplace order into the canonical catalog.
// Importing the same external order twice returns the existing local ID.
func (s *Service) ApplyRemoteOrder(ctx context.Context, raw *integration.RawOrder) (uuid.UUID, error) {
	existing, err := s.orders.FindByExternal(ctx, raw.MarketplaceCode, raw.ExternalOrderID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return uuid.Nil, err
	}

	order, err := catalog.NewOrder(raw.MarketplaceCode, raw.ExternalOrderID, raw.Status, raw.OrderedAt)
	if err != nil {
		return uuid.Nil, err
	}
	order.BuyerName = raw.BuyerName
	order.City = raw.City
	order.TotalAmount = raw.TotalAmount
	order.Currency = raw.Currency
	order.Lines = toOrderLines(raw.Lines)

	if err := s.orders.Create(ctx, order); err != nil {
		// Lost a race against a concurrent import of the same order
		if errors.Is(err, shared.ErrAlreadyExists) {
			existing, findErr := s.orders.FindByExternal(ctx, raw.MarketplaceCode, raw.ExternalOrderID)
			if findErr != nil {
				return uuid.Nil, findErr
			}
			return existing.ID, nil
		}
		return uuid.Nil, err
	}

	s.logger.Info("order imported",
		zap.String("order_id", order.ID.String()),
		zap.String("marketplace", raw.MarketplaceCode.String()),
		zap.String("external_order_id", raw.ExternalOrderID))
	return order.ID, nil
}

// ApplyRemoteOrderStatus records a remote order status change
func (s *Service) ApplyRemoteOrderStatus(ctx context.Context, orderID uuid.UUID, status integration.OrderStatus, occurredAt time.Time) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	previous := order.Status
	if err := order.ApplyStatus(status); err != nil {
		return err
	}
	if order.Status == previous {
		// Redelivered status change, nothing to persist
		return nil
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	s.logger.Info("order status applied",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(status)),
		zap.Time("occurred_at", occurredAt))
	return nil
}

// ---------------------------------------------------------------------------
// Conversions
// ---------------------------------------------------------------------------

func toProductPayload(p *catalog.Product) *integration.ProductPayload {
	return &integration.ProductPayload{
		ID:           p.ID,
		SKU:          p.SKU,
		Barcode:      p.Barcode,
		Title:        p.Title,
		Description:  p.Description,
		Brand:        p.Brand,
		CategoryID:   p.CategoryID,
		Price:        p.Price,
		ListPrice:    p.ListPrice,
		Quantity:     p.Quantity,
		VATRate:      p.VATRate,
		OnSale:       p.OnSale,
		ImageURLs:    p.ImageURLs,
		Version:      p.Version,
		PriceChanged: p.PriceChanged,
		StockChanged: p.StockChanged,
	}
}

func toOrderPayload(o *catalog.Order) *integration.OrderPayload {
	payload := &integration.OrderPayload{
		ID:      o.ID,
		Status:  o.Status,
		Version: o.Version,
	}
	if o.TrackingNumber != "" {
		payload.Shipment = &integration.Shipment{
			Carrier:        o.Carrier,
			TrackingNumber: o.TrackingNumber,
		}
	}
	return payload
}

func toOrderLines(lines []integration.RawOrderLine) []catalog.OrderLine {
	out := make([]catalog.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, catalog.OrderLine{
			ExternalLineID:    l.ExternalLineID,
			ExternalProductID: l.ExternalProductID,
			SKU:               l.SKU,
			Quantity:          l.Quantity,
			UnitPrice:         l.UnitPrice,
		})
	}
	return out
}
