package integration

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meschain/sync/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// ProcessingStatus
// ---------------------------------------------------------------------------

// ProcessingStatus tracks the lifecycle of a received webhook event
type ProcessingStatus string

const (
	// ProcessingStatusReceived indicates the event was accepted and stored
	ProcessingStatusReceived ProcessingStatus = "RECEIVED"
	// ProcessingStatusApplied indicates the event was applied to local state
	ProcessingStatusApplied ProcessingStatus = "APPLIED"
	// ProcessingStatusDuplicate indicates the event was applied and has been
	// redelivered at least once since
	ProcessingStatusDuplicate ProcessingStatus = "DUPLICATE"
	// ProcessingStatusRejected indicates the event could not be applied
	ProcessingStatusRejected ProcessingStatus = "REJECTED"
)

// IsValid returns true if the processing status is valid
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingStatusReceived, ProcessingStatusApplied, ProcessingStatusDuplicate, ProcessingStatusRejected:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProcessingStatus
func (s ProcessingStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// WebhookEvent Entity
// ---------------------------------------------------------------------------

// WebhookEvent is the durable record of one received marketplace webhook.
// The (marketplace, event ID) pair is unique; inserting a duplicate fails
// with ErrDuplicateEvent, which makes receipt exactly-once even when the
// fast-path cache is cold.
type WebhookEvent struct {
	shared.BaseEntity
	MarketplaceCode  MarketplaceCode
	EventID          string
	EventType        InboundEventType
	ExternalID       string
	Payload          string
	ProcessingStatus ProcessingStatus
	FailureReason    string
	AppliedAt        *time.Time
}

// NewWebhookEvent creates a webhook event record in RECEIVED state
func NewWebhookEvent(code MarketplaceCode, eventID string, eventType InboundEventType, externalID, payload string) (*WebhookEvent, error) {
	if !code.IsValid() {
		return nil, shared.NewDomainError("INVALID_MARKETPLACE", "invalid marketplace code: "+code.String())
	}
	if eventID == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_ID", "event ID is required")
	}
	if !eventType.IsValid() {
		return nil, shared.NewDomainError("INVALID_EVENT_TYPE", "invalid event type: "+eventType.String())
	}
	return &WebhookEvent{
		BaseEntity:       shared.NewBaseEntity(),
		MarketplaceCode:  code,
		EventID:          eventID,
		EventType:        eventType,
		ExternalID:       externalID,
		Payload:          payload,
		ProcessingStatus: ProcessingStatusReceived,
	}, nil
}

// MarkApplied records that the event's effect reached local state
func (e *WebhookEvent) MarkApplied() {
	now := time.Now()
	e.ProcessingStatus = ProcessingStatusApplied
	e.AppliedAt = &now
	e.FailureReason = ""
	e.Touch()
}

// MarkDuplicate records a redelivery of an already applied event. Rejected
// events keep their status so redeliveries keep reporting the rejection.
// Returns true when the stored status changed.
func (e *WebhookEvent) MarkDuplicate() bool {
	if e.ProcessingStatus != ProcessingStatusApplied {
		return false
	}
	e.ProcessingStatus = ProcessingStatusDuplicate
	e.Touch()
	return true
}

// MarkRejected records that the event could not be applied
func (e *WebhookEvent) MarkRejected(reason string) {
	e.ProcessingStatus = ProcessingStatusRejected
	e.FailureReason = truncateError(reason)
	e.Touch()
}

// ---------------------------------------------------------------------------
// Repository Interface
// ---------------------------------------------------------------------------

// WebhookEventRepository provides durable storage for webhook events
type WebhookEventRepository interface {
	// Insert persists a new event. Fails with ErrDuplicateEvent when an
	// event with the same (marketplace, event ID) pair already exists.
	Insert(ctx context.Context, event *WebhookEvent) error

	// Update persists processing status changes
	Update(ctx context.Context, event *WebhookEvent) error

	// FindByID retrieves an event by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*WebhookEvent, error)

	// FindByEventID retrieves an event by its marketplace event ID
	FindByEventID(ctx context.Context, code MarketplaceCode, eventID string) (*WebhookEvent, error)

	// ListByStatus returns events filtered by processing status, newest first
	ListByStatus(ctx context.Context, code MarketplaceCode, status ProcessingStatus, offset, limit int) ([]*WebhookEvent, int64, error)
}
