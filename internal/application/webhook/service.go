// Package webhook implements inbound event ingestion. Deliveries are
// verified, deduplicated, recorded durably, and applied to local state.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// Result reports the outcome of one ingested delivery
type Result struct {
	EventID   string                       `json:"event_id"`
	EventType integration.InboundEventType `json:"event_type"`
	Status    integration.ProcessingStatus `json:"status"`
	Duplicate bool                         `json:"duplicate"`
}

// Service processes inbound webhook deliveries
type Service struct {
	adapters    integration.AdapterRegistry
	events      integration.WebhookEventRepository
	mappings    integration.MappingRepository
	catalog     integration.CatalogService
	idempotency shared.IdempotencyStore
	dedupTTL    time.Duration
	logger      *zap.Logger
}

// NewService creates a new webhook ingestion service
func NewService(
	adapters integration.AdapterRegistry,
	events integration.WebhookEventRepository,
	mappings integration.MappingRepository,
	catalog integration.CatalogService,
	idempotency shared.IdempotencyStore,
	dedupTTL time.Duration,
	logger *zap.Logger,
) *Service {
	if dedupTTL <= 0 {
		dedupTTL = shared.DefaultIdempotencyConfig().TTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		adapters:    adapters,
		events:      events,
		mappings:    mappings,
		catalog:     catalog,
		idempotency: idempotency,
		dedupTTL:    dedupTTL,
		logger:      logger,
	}
}

// ---------------------------------------------------------------------------
// Ingestion
// ---------------------------------------------------------------------------

// Ingest processes one raw delivery. The signature is checked before the body
// is parsed; unverifiable deliveries are dropped without a trace so forged
// requests cannot fill the event table. Verified duplicates are acknowledged
// without reprocessing.
func (s *Service) Ingest(ctx context.Context, code integration.MarketplaceCode, body []byte, signature string) (*Result, error) {
	adapter, err := s.adapters.Get(code)
	if err != nil {
		return nil, err
	}

	if !adapter.VerifyWebhookSignature(body, signature) {
		s.logger.Warn("webhook signature rejected",
			zap.String("marketplace", code.String()))
		return nil, integration.ErrInvalidSignature
	}

	event, err := adapter.ParseWebhook(body)
	if err != nil {
		return nil, err
	}

	result := &Result{EventID: event.EventID, EventType: event.Type}

	// Fast-path dedup. A cache failure falls through to the durable check.
	dedupKey := code.String() + ":" + event.EventID
	fresh, err := s.idempotency.MarkProcessed(ctx, dedupKey, s.dedupTTL)
	if err != nil {
		s.logger.Warn("idempotency store unavailable, relying on durable dedup",
			zap.String("marketplace", code.String()),
			zap.Error(err))
	} else if !fresh {
		return s.recordRedelivery(ctx, code, event.EventID, result)
	}

	record, err := integration.NewWebhookEvent(code, event.EventID, event.Type, event.ExternalID, string(body))
	if err != nil {
		return nil, err
	}
	if err := s.events.Insert(ctx, record); err != nil {
		if errors.Is(err, integration.ErrDuplicateEvent) {
			return s.recordRedelivery(ctx, code, event.EventID, result)
		}
		return nil, err
	}

	if applyErr := s.apply(ctx, event); applyErr != nil {
		record.MarkRejected(applyErr.Error())
		s.logger.Error("webhook event rejected",
			zap.String("marketplace", code.String()),
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.Type.String()),
			zap.Error(applyErr))
	} else {
		record.MarkApplied()
	}
	if err := s.events.Update(ctx, record); err != nil {
		return nil, err
	}

	result.Status = record.ProcessingStatus
	return result, nil
}

// recordRedelivery marks the stored event as redelivered and echoes its real
// outcome, so a redelivered rejection still reads as rejected. When the
// stored record cannot be loaded the redelivery is still acknowledged as a
// duplicate; it was handled once already.
func (s *Service) recordRedelivery(ctx context.Context, code integration.MarketplaceCode, eventID string, result *Result) (*Result, error) {
	result.Duplicate = true
	result.Status = integration.ProcessingStatusDuplicate

	stored, err := s.events.FindByEventID(ctx, code, eventID)
	if err != nil {
		s.logger.Warn("redelivered event record not found",
			zap.String("marketplace", code.String()),
			zap.String("event_id", eventID),
			zap.Error(err))
		return result, nil
	}
	if stored.MarkDuplicate() {
		if err := s.events.Update(ctx, stored); err != nil {
			s.logger.Warn("recording webhook redelivery",
				zap.String("event_id", eventID),
				zap.Error(err))
		}
	}
	result.Status = stored.ProcessingStatus
	return result, nil
}

// ---------------------------------------------------------------------------
// Event Application
// ---------------------------------------------------------------------------

// apply routes a parsed event to its handler
func (s *Service) apply(ctx context.Context, event *integration.InboundEvent) error {
	switch event.Type {
	case integration.InboundOrderCreated:
		return s.applyOrderCreated(ctx, event)
	case integration.InboundOrderStatusChanged:
		return s.applyOrderStatusChanged(ctx, event)
	case integration.InboundStockChanged, integration.InboundPriceChanged:
		return s.applyListingDrift(ctx, event)
	default:
		return fmt.Errorf("%w: %s", integration.ErrUnknownEventType, event.Type)
	}
}

// applyOrderCreated imports the order into the catalog and records an order
// mapping so later status events resolve
func (s *Service) applyOrderCreated(ctx context.Context, event *integration.InboundEvent) error {
	if event.Order == nil {
		return fmt.Errorf("%w: order event without order", integration.ErrInvalidResponse)
	}

	orderID, err := s.catalog.ApplyRemoteOrder(ctx, event.Order)
	if err != nil {
		return err
	}

	mapping, err := integration.NewMapping(orderID, integration.EntityTypeOrder, event.MarketplaceCode)
	if err != nil {
		return err
	}
	if err := mapping.LinkExternal(event.ExternalID); err != nil {
		return err
	}
	// The marketplace originated this order, so the pair starts reconciled
	mapping.MarkSynced(0)

	err = s.mappings.Create(ctx, mapping)
	if errors.Is(err, shared.ErrAlreadyExists) {
		return nil
	}
	return err
}

// applyOrderStatusChanged resolves the order mapping and forwards the new
// status to the catalog
func (s *Service) applyOrderStatusChanged(ctx context.Context, event *integration.InboundEvent) error {
	mapping, err := s.mappings.FindByExternalID(ctx, event.MarketplaceCode, integration.EntityTypeOrder, event.ExternalID)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: order %s", integration.ErrMappingNotFound, event.ExternalID)
	}
	if err != nil {
		return err
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return s.catalog.ApplyRemoteOrderStatus(ctx, mapping.EntityID, event.Status, occurredAt)
}

// applyListingDrift handles stock and price changes made on the marketplace
// side. Local catalog state is authoritative for listings, so a remote edit
// that disagrees with it flags the mapping for review instead of being copied
// back.
func (s *Service) applyListingDrift(ctx context.Context, event *integration.InboundEvent) error {
	mapping, err := s.mappings.FindByExternalID(ctx, event.MarketplaceCode, integration.EntityTypeProduct, event.ExternalID)
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: listing %s", integration.ErrMappingNotFound, event.ExternalID)
	}
	if err != nil {
		return err
	}

	product, err := s.catalog.GetProduct(ctx, mapping.EntityID)
	if err != nil {
		return err
	}

	var drift string
	switch event.Type {
	case integration.InboundStockChanged:
		if event.Quantity != nil && *event.Quantity != product.Quantity {
			drift = fmt.Sprintf("remote stock %d differs from local %d", *event.Quantity, product.Quantity)
		}
	case integration.InboundPriceChanged:
		if event.Price != nil && !event.Price.Equal(product.Price) {
			drift = fmt.Sprintf("remote price %s differs from local %s", event.Price.String(), product.Price.String())
		}
	}
	if drift == "" {
		// Remote caught up with local state; nothing to reconcile
		return nil
	}

	mapping.MarkConflict(drift)
	if err := s.mappings.Update(ctx, mapping); err != nil {
		return err
	}
	s.logger.Warn("listing drift detected",
		zap.String("marketplace", event.MarketplaceCode.String()),
		zap.String("external_id", event.ExternalID),
		zap.String("drift", drift))
	return nil
}
