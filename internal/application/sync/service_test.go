package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
	"github.com/meschain/sync/internal/infrastructure/ratelimit"
)

const testMarketplace = integration.MarketplaceCodeTrendyol

func testOptions() Options {
	return Options{
		BatchSize:       50,
		MaxAttempts:     5,
		MinBackoff:      time.Second,
		MaxBackoff:      time.Minute,
		InFlightTimeout: 5 * time.Minute,
		PushTimeout:     5 * time.Second,
	}
}

// newTestService wires a service against mocks with a permissive rate limit
func newTestService(mappings *MockMappingRepository, catalog *MockCatalogService, adapter *MockAdapter) (*Service, *ratelimit.Registry) {
	limiter := ratelimit.NewRegistry(nil, ratelimit.Limits{Capacity: 100, Rate: 1000})
	svc := NewService(mappings, catalog, NewMockAdapterRegistry(adapter), limiter, zap.NewNop(), testOptions())
	return svc, limiter
}

// expectQuietCycle stubs the reap and dirty phases to do nothing
func expectQuietCycle(mappings *MockMappingRepository, catalog *MockCatalogService) {
	mappings.On("ListStaleInFlight", mock.Anything, mock.Anything, mock.Anything).Return([]*integration.Mapping{}, nil)
	catalog.On("ListChangedProducts", mock.Anything, int64(0), mock.Anything).Return([]*integration.ProductPayload{}, nil)
}

func newProductMapping(t *testing.T, externalID string, syncedVersion int64) *integration.Mapping {
	t.Helper()
	mapping, err := integration.NewMapping(uuid.New(), integration.EntityTypeProduct, testMarketplace)
	require.NoError(t, err)
	mapping.ExternalID = externalID
	mapping.LastSyncedVersion = syncedVersion
	return mapping
}

func TestRunCycle_CreatesUnlinkedProduct(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "", 0)
	product := &integration.ProductPayload{ID: mapping.EntityID, SKU: "SKU-1", Barcode: "860001", Version: 3}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, integration.SyncStatusPending).Return(nil).Once()
	adapter.On("UpsertProduct", mock.Anything, mock.Anything, "").
		Return(&integration.UpsertResult{ExternalID: "860001"}, nil)
	mappings.On("Transition", mock.Anything, mapping, integration.SyncStatusInFlight).Return(nil).Once()

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Claimed)
	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, integration.SyncStatusSynced, mapping.SyncStatus)
	assert.Equal(t, "860001", mapping.ExternalID)
	assert.Equal(t, int64(3), mapping.LastSyncedVersion)
	assert.Zero(t, mapping.Attempts)
	mappings.AssertExpectations(t)
	adapter.AssertExpectations(t)
}

func TestRunCycle_PushesPriceOnly(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 3)
	product := &integration.ProductPayload{
		ID:           mapping.EntityID,
		Price:        decimal.NewFromFloat(49.90),
		Version:      4,
		PriceChanged: true,
	}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdatePrice", mock.Anything, "860001", product.Price).Return(nil)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, int64(4), mapping.LastSyncedVersion)
	adapter.AssertExpectations(t)
	adapter.AssertNotCalled(t, "UpsertProduct", mock.Anything, mock.Anything, mock.Anything)
	adapter.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_SkipsStaleVersion(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 7)
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 7}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, integration.SyncStatusPending).Return(nil)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Claimed)
	assert.Equal(t, integration.SyncStatusSynced, mapping.SyncStatus)
	adapter.AssertNotCalled(t, "UpsertProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_ClaimConflictSkips(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "", 0)
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 1}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, integration.SyncStatusPending).
		Return(integration.ErrTransitionConflict)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Claimed)
	adapter.AssertNotCalled(t, "UpsertProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunCycle_RateLimitedSchedulesRetryAndPenalizesBucket(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, limiter := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 1)
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 2, StockChanged: true}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdateStock", mock.Anything, "860001", mock.Anything).
		Return(&integration.RateLimitError{RetryAfter: 30 * time.Second})

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, integration.SyncStatusPending, mapping.SyncStatus)
	assert.Equal(t, 1, mapping.Attempts)
	require.NotNil(t, mapping.NextRetryAt)
	// Provider retry-after (30s) must override the 1s base backoff
	assert.True(t, mapping.NextRetryAt.After(time.Now().Add(20*time.Second)))
	// The bucket must stop handing out tokens during the penalty window
	assert.False(t, limiter.Bucket(testMarketplace).TryAcquire())
}

func TestRunCycle_FatalErrorFailsImmediately(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "", 0)
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 1}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpsertProduct", mock.Anything, mock.Anything, "").
		Return(nil, integration.ErrValidationRejected)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, integration.SyncStatusFailed, mapping.SyncStatus)
	assert.Nil(t, mapping.NextRetryAt)
	assert.NotEmpty(t, mapping.LastError)
}

func TestRunCycle_AttemptBudgetExhausted(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 1)
	mapping.Attempts = 4 // budget of 5
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 2, StockChanged: true}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdateStock", mock.Anything, "860001", mock.Anything).
		Return(integration.ErrRemoteUnavailable)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, integration.SyncStatusFailed, mapping.SyncStatus)
	assert.Equal(t, 5, mapping.Attempts)
}

func TestRunCycle_TransientErrorRetries(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 1)
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 2, StockChanged: true}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdateStock", mock.Anything, "860001", mock.Anything).
		Return(integration.ErrRemoteUnavailable)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Retried)
	assert.Equal(t, integration.SyncStatusPending, mapping.SyncStatus)
	assert.Equal(t, 1, mapping.Attempts)
	assert.NotNil(t, mapping.NextRetryAt)
}

func TestRunCycle_ReapsStaleInFlight(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	stale := newProductMapping(t, "860001", 1)
	stale.SyncStatus = integration.SyncStatusInFlight

	mappings.On("ListStaleInFlight", mock.Anything, mock.Anything, mock.Anything).
		Return([]*integration.Mapping{stale}, nil)
	mappings.On("Transition", mock.Anything, stale, integration.SyncStatusInFlight).Return(nil)
	catalog.On("ListChangedProducts", mock.Anything, int64(0), mock.Anything).Return([]*integration.ProductPayload{}, nil)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{}, nil)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Reaped)
	assert.Equal(t, integration.SyncStatusPending, stale.SyncStatus)
	assert.NotNil(t, stale.NextRetryAt)
}

func TestRunCycle_MarksChangedProductDirty(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	t.Run("creates mapping for new product", func(t *testing.T) {
		product := &integration.ProductPayload{ID: uuid.New(), Version: 1}

		mappings.On("ListStaleInFlight", mock.Anything, mock.Anything, mock.Anything).Return([]*integration.Mapping{}, nil)
		catalog.On("ListChangedProducts", mock.Anything, int64(0), mock.Anything).
			Return([]*integration.ProductPayload{product}, nil).Once()
		mappings.On("FindByEntity", mock.Anything, product.ID, integration.EntityTypeProduct, testMarketplace).
			Return(nil, shared.ErrNotFound)
		mappings.On("Create", mock.Anything, mock.MatchedBy(func(m *integration.Mapping) bool {
			return m.EntityID == product.ID && m.SyncStatus == integration.SyncStatusPending
		})).Return(nil)
		mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{}, nil)

		_, err := svc.RunCycle(context.Background(), testMarketplace)
		require.NoError(t, err)
		mappings.AssertExpectations(t)
	})

	t.Run("cursor advances past seen versions", func(t *testing.T) {
		// Second cycle must not rescan version 1
		catalog.On("ListChangedProducts", mock.Anything, int64(1), mock.Anything).
			Return([]*integration.ProductPayload{}, nil).Once()

		_, err := svc.RunCycle(context.Background(), testMarketplace)
		require.NoError(t, err)
		catalog.AssertExpectations(t)
	})
}

func TestRunCycle_UnregisteredMarketplace(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	svc, _ := newTestService(mappings, catalog, &MockAdapter{code: testMarketplace})

	_, err := svc.RunCycle(context.Background(), integration.MarketplaceCodeOzon)
	assert.ErrorIs(t, err, integration.ErrAdapterNotRegistered)
}

func TestRunCycle_PushesOrderStatus(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	mapping, err := integration.NewMapping(uuid.New(), integration.EntityTypeOrder, testMarketplace)
	require.NoError(t, err)
	require.NoError(t, mapping.LinkExternal("TY-1001"))

	shipment := &integration.Shipment{Carrier: "Yurtici", TrackingNumber: "TRK-1"}
	order := &integration.OrderPayload{ID: mapping.EntityID, Status: integration.OrderStatusShipped, Shipment: shipment, Version: 2}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetOrder", mock.Anything, mapping.EntityID).Return(order, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdateOrderStatus", mock.Anything, "TY-1001", integration.OrderStatusShipped, shipment).Return(nil)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Synced)
	assert.Equal(t, int64(2), mapping.LastSyncedVersion)
	adapter.AssertExpectations(t)
}

func TestRetryMapping(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	svc, _ := newTestService(mappings, catalog, &MockAdapter{code: testMarketplace})

	t.Run("requeues failed mapping", func(t *testing.T) {
		mapping := newProductMapping(t, "860001", 1)
		mapping.MarkFailed("remote rejected")

		mappings.On("FindByID", mock.Anything, mapping.ID).Return(mapping, nil).Once()
		mappings.On("Update", mock.Anything, mapping).Return(nil).Once()

		got, err := svc.RetryMapping(context.Background(), mapping.ID)
		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPending, got.SyncStatus)
		assert.Zero(t, got.Attempts)
		assert.Empty(t, got.LastError)
	})

	t.Run("rejects synced mapping", func(t *testing.T) {
		mapping := newProductMapping(t, "860001", 1)
		mapping.MarkSynced(1)

		mappings.On("FindByID", mock.Anything, mapping.ID).Return(mapping, nil).Once()

		_, err := svc.RetryMapping(context.Background(), mapping.ID)
		assert.ErrorIs(t, err, shared.ErrInvalidState)
	})
}

func TestStats(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	svc, _ := newTestService(mappings, catalog, &MockAdapter{code: testMarketplace})

	t.Run("returns repository stats", func(t *testing.T) {
		want := &integration.MappingStats{MarketplaceCode: testMarketplace, Total: 10, Synced: 8, Failed: 2}
		mappings.On("Stats", mock.Anything, testMarketplace).Return(want, nil)

		got, err := svc.Stats(context.Background(), testMarketplace)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("rejects invalid marketplace", func(t *testing.T) {
		_, err := svc.Stats(context.Background(), integration.MarketplaceCode("BOGUS"))
		assert.ErrorIs(t, err, integration.ErrMarketplaceNotConfigured)
	})
}

func TestRunCycle_PersistentRateLimitExhaustsBudget(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, limiter := newTestService(mappings, catalog, adapter)

	mapping := newProductMapping(t, "860001", 1)
	mapping.Attempts = 4 // budget of 5
	product := &integration.ProductPayload{ID: mapping.EntityID, Version: 2, StockChanged: true}

	expectQuietCycle(mappings, catalog)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{mapping}, nil)
	catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	mappings.On("Transition", mock.Anything, mapping, mock.Anything).Return(nil)
	adapter.On("UpdateStock", mock.Anything, "860001", mock.Anything).
		Return(&integration.RateLimitError{RetryAfter: 30 * time.Second})

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	// A marketplace answering 429 forever must not keep the mapping in the
	// queue past the attempt budget
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Retried)
	assert.Equal(t, integration.SyncStatusFailed, mapping.SyncStatus)
	assert.Equal(t, 5, mapping.Attempts)
	// The final 429 still slows the rest of the batch down
	assert.False(t, limiter.Bucket(testMarketplace).TryAcquire())
}

func TestRunCycle_DirtyScanHoldsCursorForInFlight(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	svc, _ := newTestService(mappings, catalog, adapter)

	product := &integration.ProductPayload{ID: uuid.New(), Version: 5}
	inFlight := newProductMapping(t, "860001", 2)
	inFlight.SyncStatus = integration.SyncStatusInFlight

	mappings.On("ListStaleInFlight", mock.Anything, mock.Anything, mock.Anything).Return([]*integration.Mapping{}, nil)
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return([]*integration.Mapping{}, nil)
	mappings.On("FindByEntity", mock.Anything, product.ID, integration.EntityTypeProduct, testMarketplace).
		Return(inFlight, nil)
	catalog.On("ListChangedProducts", mock.Anything, int64(0), mock.Anything).
		Return([]*integration.ProductPayload{product}, nil).Once()

	_, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	// Version 5 is not covered while the mapping is mid-push carrying an
	// older snapshot, so the next scan must see the product again
	catalog.On("ListChangedProducts", mock.Anything, int64(0), mock.Anything).
		Return([]*integration.ProductPayload{product}, nil).Once()

	_, err = svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)
	catalog.AssertExpectations(t)
}

func TestDirtyOrder(t *testing.T) {
	newOrderMapping := func(t *testing.T, status integration.SyncStatus, syncedVersion int64) *integration.Mapping {
		t.Helper()
		mapping, err := integration.NewMapping(uuid.New(), integration.EntityTypeOrder, testMarketplace)
		require.NoError(t, err)
		mapping.SyncStatus = status
		mapping.LastSyncedVersion = syncedVersion
		return mapping
	}

	t.Run("flags a synced mapping behind the order version", func(t *testing.T) {
		mappings := new(MockMappingRepository)
		svc, _ := newTestService(mappings, new(MockCatalogService), &MockAdapter{code: testMarketplace})
		mapping := newOrderMapping(t, integration.SyncStatusSynced, 1)
		mappings.On("FindByEntity", mock.Anything, mapping.EntityID, integration.EntityTypeOrder, testMarketplace).
			Return(mapping, nil)
		mappings.On("Transition", mock.Anything, mapping, integration.SyncStatusSynced).Return(nil)

		err := svc.DirtyOrder(context.Background(), mapping.EntityID, testMarketplace, 2)

		require.NoError(t, err)
		assert.Equal(t, integration.SyncStatusPending, mapping.SyncStatus)
		mappings.AssertExpectations(t)
	})

	t.Run("ignores a version already pushed", func(t *testing.T) {
		mappings := new(MockMappingRepository)
		svc, _ := newTestService(mappings, new(MockCatalogService), &MockAdapter{code: testMarketplace})
		mapping := newOrderMapping(t, integration.SyncStatusSynced, 3)
		mappings.On("FindByEntity", mock.Anything, mapping.EntityID, integration.EntityTypeOrder, testMarketplace).
			Return(mapping, nil)

		err := svc.DirtyOrder(context.Background(), mapping.EntityID, testMarketplace, 3)

		require.NoError(t, err)
		mappings.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reports a conflict while a push is in flight", func(t *testing.T) {
		mappings := new(MockMappingRepository)
		svc, _ := newTestService(mappings, new(MockCatalogService), &MockAdapter{code: testMarketplace})
		mapping := newOrderMapping(t, integration.SyncStatusInFlight, 1)
		mappings.On("FindByEntity", mock.Anything, mapping.EntityID, integration.EntityTypeOrder, testMarketplace).
			Return(mapping, nil)

		err := svc.DirtyOrder(context.Background(), mapping.EntityID, testMarketplace, 2)

		assert.ErrorIs(t, err, integration.ErrTransitionConflict)
	})

	t.Run("is a no-op for a local-only order", func(t *testing.T) {
		mappings := new(MockMappingRepository)
		svc, _ := newTestService(mappings, new(MockCatalogService), &MockAdapter{code: testMarketplace})
		orderID := uuid.New()
		mappings.On("FindByEntity", mock.Anything, orderID, integration.EntityTypeOrder, testMarketplace).
			Return(nil, shared.ErrNotFound)

		assert.NoError(t, svc.DirtyOrder(context.Background(), orderID, testMarketplace, 1))
	})

	t.Run("leaves a pending mapping alone", func(t *testing.T) {
		mappings := new(MockMappingRepository)
		svc, _ := newTestService(mappings, new(MockCatalogService), &MockAdapter{code: testMarketplace})
		mapping := newOrderMapping(t, integration.SyncStatusPending, 0)
		mappings.On("FindByEntity", mock.Anything, mapping.EntityID, integration.EntityTypeOrder, testMarketplace).
			Return(mapping, nil)

		err := svc.DirtyOrder(context.Background(), mapping.EntityID, testMarketplace, 2)

		require.NoError(t, err)
		mappings.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRunCycle_BoundsWorkerConcurrency(t *testing.T) {
	mappings := new(MockMappingRepository)
	catalog := new(MockCatalogService)
	adapter := &MockAdapter{code: testMarketplace}
	limiter := ratelimit.NewRegistry(nil, ratelimit.Limits{Capacity: 100, Rate: 1000})
	opts := testOptions()
	opts.Concurrency = 2
	svc := NewService(mappings, catalog, NewMockAdapterRegistry(adapter), limiter, zap.NewNop(), opts)

	due := make([]*integration.Mapping, 0, 4)
	expectQuietCycle(mappings, catalog)
	mappings.On("Transition", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	for i := 0; i < 4; i++ {
		mapping := newProductMapping(t, "860001", 1)
		due = append(due, mapping)
		product := &integration.ProductPayload{ID: mapping.EntityID, Version: 2, StockChanged: true}
		catalog.On("GetProduct", mock.Anything, mapping.EntityID).Return(product, nil)
	}
	mappings.On("ListDue", mock.Anything, testMarketplace, mock.Anything, 50).Return(due, nil)

	var active, peak int32
	adapter.On("UpdateStock", mock.Anything, "860001", mock.Anything).
		Run(func(mock.Arguments) {
			cur := atomic.AddInt32(&active, 1)
			for {
				seen := atomic.LoadInt32(&peak)
				if cur <= seen || atomic.CompareAndSwapInt32(&peak, seen, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&active, -1)
		}).
		Return(nil)

	report, err := svc.RunCycle(context.Background(), testMarketplace)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Synced)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}
