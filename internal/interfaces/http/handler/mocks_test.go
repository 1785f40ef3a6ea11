package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	syncapp "github.com/meschain/sync/internal/application/sync"
	webhookapp "github.com/meschain/sync/internal/application/webhook"
	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
)

// MockWebhookIngestor is a mock implementation of WebhookIngestor
type MockWebhookIngestor struct {
	mock.Mock
}

var _ WebhookIngestor = (*MockWebhookIngestor)(nil)

func (m *MockWebhookIngestor) Ingest(ctx context.Context, code integration.MarketplaceCode, body []byte, signature string) (*webhookapp.Result, error) {
	args := m.Called(ctx, code, body, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhookapp.Result), args.Error(1)
}

// MockSyncTrigger is a mock implementation of SyncTrigger
type MockSyncTrigger struct {
	mock.Mock
}

var _ SyncTrigger = (*MockSyncTrigger)(nil)

func (m *MockSyncTrigger) TriggerCycle(ctx context.Context, code integration.MarketplaceCode) (*syncapp.CycleReport, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*syncapp.CycleReport), args.Error(1)
}

// MockSyncQuerier is a mock implementation of SyncQuerier
type MockSyncQuerier struct {
	mock.Mock
}

var _ SyncQuerier = (*MockSyncQuerier)(nil)

func (m *MockSyncQuerier) Stats(ctx context.Context, code integration.MarketplaceCode) (*integration.MappingStats, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MappingStats), args.Error(1)
}

// MockMappingService is a mock implementation of MappingService
type MockMappingService struct {
	mock.Mock
}

var _ MappingService = (*MockMappingService)(nil)

func (m *MockMappingService) ListMappings(ctx context.Context, code integration.MarketplaceCode, status integration.SyncStatus, page, pageSize int) ([]*integration.Mapping, int64, error) {
	args := m.Called(ctx, code, status, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*integration.Mapping), args.Get(1).(int64), args.Error(2)
}

func (m *MockMappingService) RetryMapping(ctx context.Context, id uuid.UUID) (*integration.Mapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Mapping), args.Error(1)
}

// MockAdapter is a mock implementation of Adapter. Handler tests only use
// MarketplaceCode and SignatureHeader; the push methods are stubbed for
// interface compliance.
type MockAdapter struct {
	mock.Mock
	code integration.MarketplaceCode
}

var _ integration.Adapter = (*MockAdapter)(nil)

func (m *MockAdapter) MarketplaceCode() integration.MarketplaceCode {
	return m.code
}

func (m *MockAdapter) SignatureHeader() string {
	return "X-Test-Signature"
}

func (m *MockAdapter) Authenticate(ctx context.Context) (*integration.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Session), args.Error(1)
}

func (m *MockAdapter) UpsertProduct(ctx context.Context, product *integration.ProductPush, externalID string) (*integration.UpsertResult, error) {
	args := m.Called(ctx, product, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.UpsertResult), args.Error(1)
}

func (m *MockAdapter) UpdateStock(ctx context.Context, externalID string, quantity int64) error {
	return m.Called(ctx, externalID, quantity).Error(0)
}

func (m *MockAdapter) UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error {
	return m.Called(ctx, externalID, price).Error(0)
}

func (m *MockAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status integration.OrderStatus, shipment *integration.Shipment) error {
	return m.Called(ctx, externalOrderID, status, shipment).Error(0)
}

func (m *MockAdapter) ListOrders(ctx context.Context, since time.Time, cursor string) (*integration.OrderPage, error) {
	args := m.Called(ctx, since, cursor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderPage), args.Error(1)
}

func (m *MockAdapter) VerifyWebhookSignature(body []byte, signatureHeader string) bool {
	args := m.Called(body, signatureHeader)
	return args.Bool(0)
}

func (m *MockAdapter) ParseWebhook(body []byte) (*integration.InboundEvent, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.InboundEvent), args.Error(1)
}

// mockRegistry is a map-backed AdapterRegistry
type mockRegistry struct {
	adapters map[integration.MarketplaceCode]integration.Adapter
}

var _ integration.AdapterRegistry = (*mockRegistry)(nil)

func newMockRegistry(adapters ...integration.Adapter) *mockRegistry {
	r := &mockRegistry{adapters: make(map[integration.MarketplaceCode]integration.Adapter)}
	for _, a := range adapters {
		r.adapters[a.MarketplaceCode()] = a
	}
	return r
}

func (r *mockRegistry) Get(code integration.MarketplaceCode) (integration.Adapter, error) {
	a, ok := r.adapters[code]
	if !ok {
		return nil, integration.ErrAdapterNotRegistered
	}
	return a, nil
}

func (r *mockRegistry) List() []integration.Adapter {
	out := make([]integration.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// MockCatalogWriter is a mock implementation of CatalogWriter
type MockCatalogWriter struct {
	mock.Mock
}

var _ CatalogWriter = (*MockCatalogWriter)(nil)

func (m *MockCatalogWriter) CreateProduct(ctx context.Context, sku, title string, price decimal.Decimal, quantity int64) (*catalog.Product, error) {
	args := m.Called(ctx, sku, title, price, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogWriter) ChangePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal) (*catalog.Product, error) {
	args := m.Called(ctx, id, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogWriter) ChangeStock(ctx context.Context, id uuid.UUID, quantity int64) (*catalog.Product, error) {
	args := m.Called(ctx, id, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogWriter) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogWriter) GetOrderByID(ctx context.Context, id uuid.UUID) (*catalog.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Order), args.Error(1)
}

func (m *MockCatalogWriter) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status integration.OrderStatus) (*catalog.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Order), args.Error(1)
}

func (m *MockCatalogWriter) ShipOrder(ctx context.Context, id uuid.UUID, carrier, trackingNumber string) (*catalog.Order, error) {
	args := m.Called(ctx, id, carrier, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Order), args.Error(1)
}

// MockOrderDirtier is a mock implementation of OrderDirtier
type MockOrderDirtier struct {
	mock.Mock
}

var _ OrderDirtier = (*MockOrderDirtier)(nil)

func (m *MockOrderDirtier) DirtyOrder(ctx context.Context, orderID uuid.UUID, code integration.MarketplaceCode, version int64) error {
	return m.Called(ctx, orderID, code, version).Error(0)
}
