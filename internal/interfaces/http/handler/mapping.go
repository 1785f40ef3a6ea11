package handler

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/interfaces/http/dto"
)

// MappingService exposes mapping queries and manual retry
type MappingService interface {
	ListMappings(ctx context.Context, code integration.MarketplaceCode, status integration.SyncStatus, page, pageSize int) ([]*integration.Mapping, int64, error)
	RetryMapping(ctx context.Context, id uuid.UUID) (*integration.Mapping, error)
}

// MappingHandler handles mapping inspection endpoints
type MappingHandler struct {
	BaseHandler
	service MappingService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(service MappingService) *MappingHandler {
	return &MappingHandler{service: service}
}

// MappingResponse represents a mapping in API responses
type MappingResponse struct {
	ID                uuid.UUID  `json:"id"`
	EntityID          uuid.UUID  `json:"entity_id"`
	EntityType        string     `json:"entity_type"`
	MarketplaceCode   string     `json:"marketplace_code"`
	ExternalID        string     `json:"external_id,omitempty"`
	SyncStatus        string     `json:"sync_status"`
	LastSyncedVersion int64      `json:"last_synced_version"`
	Attempts          int        `json:"attempts"`
	LastError         string     `json:"last_error,omitempty"`
	NextRetryAt       *time.Time `json:"next_retry_at,omitempty"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toMappingResponse(m *integration.Mapping) MappingResponse {
	return MappingResponse{
		ID:                m.ID,
		EntityID:          m.EntityID,
		EntityType:        m.EntityType.String(),
		MarketplaceCode:   m.MarketplaceCode.String(),
		ExternalID:        m.ExternalID,
		SyncStatus:        string(m.SyncStatus),
		LastSyncedVersion: m.LastSyncedVersion,
		Attempts:          m.Attempts,
		LastError:         m.LastError,
		NextRetryAt:       m.NextRetryAt,
		LastSyncedAt:      m.LastSyncedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// listMappingsRequest holds query parameters for the mapping list endpoint
type listMappingsRequest struct {
	Marketplace string `form:"marketplace" binding:"required"`
	Status      string `form:"status"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RegisterRoutes registers mapping routes
func (h *MappingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/mappings", h.List)
	rg.POST("/mappings/:id/retry", h.Retry)
}

// List handles GET /mappings
func (h *MappingHandler) List(c *gin.Context) {
	var req listMappingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	code := integration.MarketplaceCode(strings.ToUpper(req.Marketplace))
	if !code.IsValid() {
		h.BadRequest(c, "Unknown marketplace")
		return
	}

	status := integration.SyncStatus(strings.ToUpper(req.Status))
	if req.Status != "" && !status.IsValid() {
		h.BadRequest(c, "Unknown sync status")
		return
	}

	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	mappings, total, err := h.service.ListMappings(c.Request.Context(), code, status, req.Page, req.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]MappingResponse, 0, len(mappings))
	for _, m := range mappings {
		items = append(items, toMappingResponse(m))
	}
	h.SuccessWithMeta(c, items, total, req.Page, req.PageSize)
}

// Retry handles POST /mappings/:id/retry
func (h *MappingHandler) Retry(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	mapping, err := h.service.RetryMapping(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toMappingResponse(mapping))
}
