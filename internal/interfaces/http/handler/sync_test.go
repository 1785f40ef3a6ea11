package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	syncapp "github.com/meschain/sync/internal/application/sync"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/infrastructure/scheduler"
)

func newSyncRouter(trigger SyncTrigger, querier SyncQuerier) *gin.Engine {
	router := gin.New()
	handler := NewSyncHandler(trigger, querier)
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestSyncHandler_Run(t *testing.T) {
	t.Run("triggers a cycle and returns the report", func(t *testing.T) {
		trigger := new(MockSyncTrigger)
		trigger.On("TriggerCycle", mock.Anything, integration.MarketplaceCodeTrendyol).
			Return(&syncapp.CycleReport{
				MarketplaceCode: integration.MarketplaceCodeTrendyol,
				Synced:          3,
				Retried:         1,
			}, nil).Once()

		router := newSyncRouter(trigger, new(MockSyncQuerier))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/trendyol/run", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool                `json:"success"`
			Data    syncapp.CycleReport `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, 3, resp.Data.Synced)
		trigger.AssertExpectations(t)
	})

	t.Run("returns 503 when runner is stopped", func(t *testing.T) {
		trigger := new(MockSyncTrigger)
		trigger.On("TriggerCycle", mock.Anything, integration.MarketplaceCodeTrendyol).
			Return(nil, scheduler.ErrRunnerNotRunning).Once()

		router := newSyncRouter(trigger, new(MockSyncQuerier))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/trendyol/run", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("returns 422 for unconfigured marketplace", func(t *testing.T) {
		trigger := new(MockSyncTrigger)
		trigger.On("TriggerCycle", mock.Anything, integration.MarketplaceCodeOzon).
			Return(nil, integration.ErrAdapterNotRegistered).Once()

		router := newSyncRouter(trigger, new(MockSyncQuerier))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/ozon/run", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("rejects unknown marketplace", func(t *testing.T) {
		router := newSyncRouter(new(MockSyncTrigger), new(MockSyncQuerier))
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/amazon/run", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSyncHandler_Status(t *testing.T) {
	t.Run("returns mapping stats", func(t *testing.T) {
		querier := new(MockSyncQuerier)
		querier.On("Stats", mock.Anything, integration.MarketplaceCodeHepsiburada).
			Return(&integration.MappingStats{
				MarketplaceCode: integration.MarketplaceCodeHepsiburada,
				Total:           10,
				Pending:         2,
				Synced:          7,
				Failed:          1,
			}, nil).Once()

		router := newSyncRouter(new(MockSyncTrigger), querier)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/hepsiburada/status", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"Total":10`)
	})

	t.Run("returns 422 for unconfigured marketplace", func(t *testing.T) {
		querier := new(MockSyncQuerier)
		querier.On("Stats", mock.Anything, integration.MarketplaceCodeN11).
			Return(nil, integration.ErrMarketplaceNotConfigured).Once()

		router := newSyncRouter(new(MockSyncTrigger), querier)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sync/n11/status", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
