package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	webhookapp "github.com/meschain/sync/internal/application/webhook"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/interfaces/http/dto"
)

// Maximum webhook payload size (64KB - marketplace webhooks are small)
const maxWebhookPayloadSize = 65536

// WebhookIngestor processes a raw webhook delivery
type WebhookIngestor interface {
	Ingest(ctx context.Context, code integration.MarketplaceCode, body []byte, signature string) (*webhookapp.Result, error)
}

// WebhookHandler receives webhook deliveries from marketplaces.
// These endpoints are called by the marketplaces and carry their own
// signature-based authentication instead of user auth.
type WebhookHandler struct {
	BaseHandler
	ingestor WebhookIngestor
	adapters integration.AdapterRegistry
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(ingestor WebhookIngestor, adapters integration.AdapterRegistry) *WebhookHandler {
	return &WebhookHandler{
		ingestor: ingestor,
		adapters: adapters,
	}
}

// WebhookResponse represents the response for a webhook delivery
type WebhookResponse struct {
	Received  bool   `json:"received"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Status    string `json:"status,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Message   string `json:"message,omitempty"`
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/:marketplace", h.Receive)
}

// Receive handles POST /webhooks/:marketplace
func (h *WebhookHandler) Receive(c *gin.Context) {
	code := integration.MarketplaceCode(strings.ToUpper(c.Param("marketplace")))
	if !code.IsValid() {
		h.BadRequest(c, "Unknown marketplace")
		return
	}

	adapter, err := h.adapters.Get(code)
	if err != nil {
		h.UnprocessableEntity(c, dto.ErrCodeMarketplaceNotConfigured, "Marketplace is not configured")
		return
	}

	// Read the raw body with a size limit; the raw bytes are needed for
	// signature verification before any parsing happens.
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, WebhookResponse{
			Received: false,
			Message:  "Failed to read request body",
		})
		return
	}
	if len(payload) > maxWebhookPayloadSize {
		c.JSON(http.StatusRequestEntityTooLarge, WebhookResponse{
			Received: false,
			Message:  "Payload too large",
		})
		return
	}

	signature := c.GetHeader(adapter.SignatureHeader())
	if signature == "" {
		c.JSON(http.StatusUnauthorized, WebhookResponse{
			Received: false,
			Message:  "Missing signature header",
		})
		return
	}

	result, err := h.ingestor.Ingest(c.Request.Context(), code, payload, signature)
	if err != nil {
		if errors.Is(err, integration.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, WebhookResponse{
				Received: false,
				Message:  "Webhook signature verification failed",
			})
			return
		}
		if errors.Is(err, integration.ErrInvalidResponse) || errors.Is(err, integration.ErrUnknownEventType) {
			c.JSON(http.StatusBadRequest, WebhookResponse{
				Received: false,
				Message:  "Malformed webhook payload",
			})
			return
		}
		// Storage or downstream failure: return 500 so the marketplace
		// redelivers. Dedup makes the redelivery safe.
		c.JSON(http.StatusInternalServerError, WebhookResponse{
			Received: false,
			Message:  "Webhook could not be processed",
		})
		return
	}

	// A fresh event that could not be applied answers 500 so the
	// marketplace redelivers; dedup keeps the redelivery safe. Redelivered
	// rejections are acknowledged to stop the redelivery loop.
	if result.Status == integration.ProcessingStatusRejected && !result.Duplicate {
		c.JSON(http.StatusInternalServerError, WebhookResponse{
			Received:  true,
			EventID:   result.EventID,
			EventType: result.EventType.String(),
			Status:    result.Status.String(),
			Message:   "Event could not be applied",
		})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{
		Received:  true,
		EventID:   result.EventID,
		EventType: result.EventType.String(),
		Status:    result.Status.String(),
		Duplicate: result.Duplicate,
	})
}
