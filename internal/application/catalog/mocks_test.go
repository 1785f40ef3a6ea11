package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
)

type MockProductRepository struct {
	mock.Mock
}

var _ catalog.ProductRepository = (*MockProductRepository)(nil)

func (m *MockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) ListChangedAfter(ctx context.Context, afterVersion int64, limit int) ([]*catalog.Product, error) {
	args := m.Called(ctx, afterVersion, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Product), args.Error(1)
}

func (m *MockProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

type MockOrderRepository struct {
	mock.Mock
}

var _ catalog.OrderRepository = (*MockOrderRepository)(nil)

func (m *MockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByExternal(ctx context.Context, code integration.MarketplaceCode, externalOrderID string) (*catalog.Order, error) {
	args := m.Called(ctx, code, externalOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Order), args.Error(1)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *catalog.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *catalog.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}
