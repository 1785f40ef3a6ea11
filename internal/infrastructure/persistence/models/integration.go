package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/meschain/sync/internal/domain/integration"
)

// MappingModel is the persistence model for the Mapping domain entity.
// The unique index over (entity, type, marketplace) enforces at most one
// mapping per pair; the partial lookup index over (marketplace, external ID)
// serves inbound webhook resolution.
type MappingModel struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primary_key"`
	EntityID          uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex:uq_mapping_pair,priority:1"`
	EntityType        integration.EntityType      `gorm:"type:varchar(20);not null;uniqueIndex:uq_mapping_pair,priority:2"`
	MarketplaceCode   integration.MarketplaceCode `gorm:"type:varchar(20);not null;uniqueIndex:uq_mapping_pair,priority:3;index:idx_mapping_external,priority:1"`
	ExternalID        string                      `gorm:"type:varchar(100);index:idx_mapping_external,priority:2"`
	SyncStatus        integration.SyncStatus      `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_mapping_status,priority:1"`
	LastSyncedVersion int64                       `gorm:"not null;default:0"`
	Attempts          int                         `gorm:"not null;default:0"`
	LastError         string                      `gorm:"type:text"`
	NextRetryAt       *time.Time                  `gorm:"index"`
	LastSyncedAt      *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MappingModel) TableName() string {
	return "mappings"
}

// ToDomain converts the persistence model to a domain Mapping entity.
func (m *MappingModel) ToDomain() *integration.Mapping {
	return &integration.Mapping{
		BaseEntity:        baseEntity(m.ID, m.CreatedAt, m.UpdatedAt),
		EntityID:          m.EntityID,
		EntityType:        m.EntityType,
		MarketplaceCode:   m.MarketplaceCode,
		ExternalID:        m.ExternalID,
		SyncStatus:        m.SyncStatus,
		LastSyncedVersion: m.LastSyncedVersion,
		Attempts:          m.Attempts,
		LastError:         m.LastError,
		NextRetryAt:       m.NextRetryAt,
		LastSyncedAt:      m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain Mapping entity.
func (m *MappingModel) FromDomain(mapping *integration.Mapping) {
	m.ID = mapping.ID
	m.EntityID = mapping.EntityID
	m.EntityType = mapping.EntityType
	m.MarketplaceCode = mapping.MarketplaceCode
	m.ExternalID = mapping.ExternalID
	m.SyncStatus = mapping.SyncStatus
	m.LastSyncedVersion = mapping.LastSyncedVersion
	m.Attempts = mapping.Attempts
	m.LastError = mapping.LastError
	m.NextRetryAt = mapping.NextRetryAt
	m.LastSyncedAt = mapping.LastSyncedAt
	m.CreatedAt = mapping.CreatedAt
	m.UpdatedAt = mapping.UpdatedAt
}

// MappingModelFromDomain creates a new persistence model from a domain Mapping entity.
func MappingModelFromDomain(mapping *integration.Mapping) *MappingModel {
	m := &MappingModel{}
	m.FromDomain(mapping)
	return m
}

// WebhookEventModel is the persistence model for the WebhookEvent domain
// entity. The unique index over (marketplace, event ID) is the durable
// deduplication guarantee behind the cache fast path.
type WebhookEventModel struct {
	ID               uuid.UUID                    `gorm:"type:uuid;primary_key"`
	MarketplaceCode  integration.MarketplaceCode  `gorm:"type:varchar(20);not null;uniqueIndex:uq_webhook_event,priority:1"`
	EventID          string                       `gorm:"type:varchar(100);not null;uniqueIndex:uq_webhook_event,priority:2"`
	EventType        integration.InboundEventType `gorm:"type:varchar(30);not null"`
	ExternalID       string                       `gorm:"type:varchar(100);index"`
	Payload          string                       `gorm:"type:text"`
	ProcessingStatus integration.ProcessingStatus `gorm:"type:varchar(20);not null;default:'RECEIVED';index:idx_webhook_event_status"`
	FailureReason    string                       `gorm:"type:text"`
	AppliedAt        *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WebhookEventModel) TableName() string {
	return "webhook_events"
}

// ToDomain converts the persistence model to a domain WebhookEvent entity.
func (m *WebhookEventModel) ToDomain() *integration.WebhookEvent {
	return &integration.WebhookEvent{
		BaseEntity:       baseEntity(m.ID, m.CreatedAt, m.UpdatedAt),
		MarketplaceCode:  m.MarketplaceCode,
		EventID:          m.EventID,
		EventType:        m.EventType,
		ExternalID:       m.ExternalID,
		Payload:          m.Payload,
		ProcessingStatus: m.ProcessingStatus,
		FailureReason:    m.FailureReason,
		AppliedAt:        m.AppliedAt,
	}
}

// FromDomain populates the persistence model from a domain WebhookEvent entity.
func (m *WebhookEventModel) FromDomain(event *integration.WebhookEvent) {
	m.ID = event.ID
	m.MarketplaceCode = event.MarketplaceCode
	m.EventID = event.EventID
	m.EventType = event.EventType
	m.ExternalID = event.ExternalID
	m.Payload = event.Payload
	m.ProcessingStatus = event.ProcessingStatus
	m.FailureReason = event.FailureReason
	m.AppliedAt = event.AppliedAt
	m.CreatedAt = event.CreatedAt
	m.UpdatedAt = event.UpdatedAt
}

// WebhookEventModelFromDomain creates a new persistence model from a domain WebhookEvent entity.
func WebhookEventModelFromDomain(event *integration.WebhookEvent) *WebhookEventModel {
	m := &WebhookEventModel{}
	m.FromDomain(event)
	return m
}
