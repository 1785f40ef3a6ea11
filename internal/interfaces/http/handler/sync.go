package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	syncapp "github.com/meschain/sync/internal/application/sync"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/infrastructure/scheduler"
	"github.com/meschain/sync/internal/interfaces/http/dto"
)

// SyncTrigger runs one sync cycle on demand
type SyncTrigger interface {
	TriggerCycle(ctx context.Context, code integration.MarketplaceCode) (*syncapp.CycleReport, error)
}

// SyncQuerier exposes read access to sync state
type SyncQuerier interface {
	Stats(ctx context.Context, code integration.MarketplaceCode) (*integration.MappingStats, error)
}

// SyncHandler handles sync orchestration endpoints
type SyncHandler struct {
	BaseHandler
	trigger SyncTrigger
	querier SyncQuerier
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(trigger SyncTrigger, querier SyncQuerier) *SyncHandler {
	return &SyncHandler{
		trigger: trigger,
		querier: querier,
	}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/sync/:marketplace/run", h.Run)
	rg.GET("/sync/:marketplace/status", h.Status)
}

// Run handles POST /sync/:marketplace/run
func (h *SyncHandler) Run(c *gin.Context) {
	code, ok := h.marketplaceParam(c)
	if !ok {
		return
	}

	report, err := h.trigger.TriggerCycle(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrRunnerNotRunning):
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeSyncNotRunning), dto.ErrCodeSyncNotRunning, "Sync runner is not running")
		case errors.Is(err, integration.ErrAdapterNotRegistered):
			h.UnprocessableEntity(c, dto.ErrCodeMarketplaceNotConfigured, "Marketplace is not configured")
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.Success(c, report)
}

// Status handles GET /sync/:marketplace/status
func (h *SyncHandler) Status(c *gin.Context) {
	code, ok := h.marketplaceParam(c)
	if !ok {
		return
	}

	stats, err := h.querier.Stats(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, integration.ErrMarketplaceNotConfigured) {
			h.UnprocessableEntity(c, dto.ErrCodeMarketplaceNotConfigured, "Marketplace is not configured")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

func (h *SyncHandler) marketplaceParam(c *gin.Context) (integration.MarketplaceCode, bool) {
	code := integration.MarketplaceCode(strings.ToUpper(c.Param("marketplace")))
	if !code.IsValid() {
		h.BadRequest(c, "Unknown marketplace")
		return "", false
	}
	return code, true
}
