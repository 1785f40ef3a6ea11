package webhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// MockAdapter is a mock implementation of Adapter
type MockAdapter struct {
	mock.Mock
	code integration.MarketplaceCode
}

func (m *MockAdapter) MarketplaceCode() integration.MarketplaceCode {
	return m.code
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
	args := m.Called(ctx, externalID, quantity)
	return args.Error(0)
}

func (m *MockAdapter) UpdatePrice(ctx context.Context, externalID string, price decimal.Decimal) error {
	args := m.Called(ctx, externalID, price)
	return args.Error(0)
}

func (m *MockAdapter) UpdateOrderStatus(ctx context.Context, externalOrderID string, status integration.OrderStatus, shipment *integration.Shipment) error {
	args := m.Called(ctx, externalOrderID, status, shipment)
	return args.Error(0)
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

func (m *MockAdapter) SignatureHeader() string {
	return "X-Test-Signature"
}

func (m *MockAdapter) ParseWebhook(body []byte) (*integration.InboundEvent, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.InboundEvent), args.Error(1)
}

var _ integration.Adapter = (*MockAdapter)(nil)

// mockRegistry is a map-backed AdapterRegistry
type mockRegistry struct {
	adapters map[integration.MarketplaceCode]integration.Adapter
}

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

// MockWebhookEventRepository is a mock implementation of WebhookEventRepository
type MockWebhookEventRepository struct {
	mock.Mock
}

func (m *MockWebhookEventRepository) Insert(ctx context.Context, event *integration.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) Update(ctx context.Context, event *integration.WebhookEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) FindByEventID(ctx context.Context, code integration.MarketplaceCode, eventID string) (*integration.WebhookEvent, error) {
	args := m.Called(ctx, code, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.WebhookEvent), args.Error(1)
}

func (m *MockWebhookEventRepository) ListByStatus(ctx context.Context, code integration.MarketplaceCode, status integration.ProcessingStatus, offset, limit int) ([]*integration.WebhookEvent, int64, error) {
	args := m.Called(ctx, code, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*integration.WebhookEvent), args.Get(1).(int64), args.Error(2)
}

var _ integration.WebhookEventRepository = (*MockWebhookEventRepository)(nil)

// MockMappingRepository is a mock implementation of MappingRepository
type MockMappingRepository struct {
	mock.Mock
}

func (m *MockMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Mapping, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Mapping), args.Error(1)
}

func (m *MockMappingRepository) FindByEntity(ctx context.Context, entityID uuid.UUID, entityType integration.EntityType, code integration.MarketplaceCode) (*integration.Mapping, error) {
	args := m.Called(ctx, entityID, entityType, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Mapping), args.Error(1)
}

func (m *MockMappingRepository) FindByExternalID(ctx context.Context, code integration.MarketplaceCode, entityType integration.EntityType, externalID string) (*integration.Mapping, error) {
	args := m.Called(ctx, code, entityType, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Mapping), args.Error(1)
}

func (m *MockMappingRepository) ListDue(ctx context.Context, code integration.MarketplaceCode, now time.Time, limit int) ([]*integration.Mapping, error) {
	args := m.Called(ctx, code, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Mapping), args.Error(1)
}

func (m *MockMappingRepository) ListByStatus(ctx context.Context, code integration.MarketplaceCode, status integration.SyncStatus, offset, limit int) ([]*integration.Mapping, int64, error) {
	args := m.Called(ctx, code, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*integration.Mapping), args.Get(1).(int64), args.Error(2)
}

func (m *MockMappingRepository) ListStaleInFlight(ctx context.Context, cutoff time.Time, limit int) ([]*integration.Mapping, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.Mapping), args.Error(1)
}

func (m *MockMappingRepository) Stats(ctx context.Context, code integration.MarketplaceCode) (*integration.MappingStats, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.MappingStats), args.Error(1)
}

func (m *MockMappingRepository) Create(ctx context.Context, mapping *integration.Mapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockMappingRepository) Update(ctx context.Context, mapping *integration.Mapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockMappingRepository) Transition(ctx context.Context, mapping *integration.Mapping, from integration.SyncStatus) error {
	args := m.Called(ctx, mapping, from)
	return args.Error(0)
}

func (m *MockMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ integration.MappingRepository = (*MockMappingRepository)(nil)

// MockCatalogService is a mock implementation of CatalogService
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) GetProduct(ctx context.Context, id uuid.UUID) (*integration.ProductPayload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.ProductPayload), args.Error(1)
}

func (m *MockCatalogService) GetOrder(ctx context.Context, id uuid.UUID) (*integration.OrderPayload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.OrderPayload), args.Error(1)
}

func (m *MockCatalogService) ListChangedProducts(ctx context.Context, afterVersion int64, limit int) ([]*integration.ProductPayload, error) {
	args := m.Called(ctx, afterVersion, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*integration.ProductPayload), args.Error(1)
}

func (m *MockCatalogService) ApplyRemoteOrder(ctx context.Context, order *integration.RawOrder) (uuid.UUID, error) {
	args := m.Called(ctx, order)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockCatalogService) ApplyRemoteOrderStatus(ctx context.Context, orderID uuid.UUID, status integration.OrderStatus, occurredAt time.Time) error {
	args := m.Called(ctx, orderID, status, occurredAt)
	return args.Error(0)
}

var _ integration.CatalogService = (*MockCatalogService)(nil)

// MockIdempotencyStore is a mock implementation of IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, eventID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	args := m.Called(ctx, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ shared.IdempotencyStore = (*MockIdempotencyStore)(nil)
