package integration

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/meschain/sync/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// SyncStatus
// ---------------------------------------------------------------------------

// SyncStatus tracks the synchronization state of a mapping
type SyncStatus string

const (
	// SyncStatusPending indicates local changes exist that have not been pushed
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusInFlight indicates a push is currently being executed
	SyncStatusInFlight SyncStatus = "IN_FLIGHT"
	// SyncStatusSynced indicates the external side matches the local version
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusFailed indicates the last push failed and retries are exhausted
	// or a fatal error occurred
	SyncStatusFailed SyncStatus = "FAILED"
	// SyncStatusConflict indicates local and remote disagree and the mapping
	// needs manual review before syncing resumes
	SyncStatusConflict SyncStatus = "CONFLICT"
)

// IsValid returns true if the sync status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusInFlight, SyncStatusSynced, SyncStatusFailed, SyncStatusConflict:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies the kind of canonical entity a mapping refers to
type EntityType string

const (
	// EntityTypeProduct maps a local product to an external listing
	EntityTypeProduct EntityType = "PRODUCT"
	// EntityTypeOrder maps a local order to an external order
	EntityTypeOrder EntityType = "ORDER"
)

// IsValid returns true if the entity type is valid
func (t EntityType) IsValid() bool {
	return t == EntityTypeProduct || t == EntityTypeOrder
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Mapping Entity
// ---------------------------------------------------------------------------

// Mapping links a canonical local entity to its marketplace-side counterpart
// and records the synchronization state of that pair. At most one mapping
// exists per (entity, marketplace) pair.
type Mapping struct {
	shared.BaseEntity
	EntityID          uuid.UUID
	EntityType        EntityType
	MarketplaceCode   MarketplaceCode
	ExternalID        string
	SyncStatus        SyncStatus
	LastSyncedVersion int64
	Attempts          int
	LastError         string
	NextRetryAt       *time.Time
	LastSyncedAt      *time.Time
}

// NewMapping creates a new mapping in PENDING state with no external ID yet
func NewMapping(entityID uuid.UUID, entityType EntityType, code MarketplaceCode) (*Mapping, error) {
	if entityID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTITY_ID", "entity ID is required")
	}
	if !entityType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", "invalid entity type: "+entityType.String())
	}
	if !code.IsValid() {
		return nil, shared.NewDomainError("INVALID_MARKETPLACE", "invalid marketplace code: "+code.String())
	}
	return &Mapping{
		BaseEntity:      shared.NewBaseEntity(),
		EntityID:        entityID,
		EntityType:      entityType,
		MarketplaceCode: code,
		SyncStatus:      SyncStatusPending,
	}, nil
}

// LinkExternal records the marketplace-assigned external ID
func (m *Mapping) LinkExternal(externalID string) error {
	if externalID == "" {
		return shared.NewDomainError("INVALID_EXTERNAL_ID", "external ID cannot be empty")
	}
	m.ExternalID = externalID
	m.Touch()
	return nil
}

// MarkSynced records a successful push of the given version. Attempts and
// retry scheduling are cleared.
func (m *Mapping) MarkSynced(version int64) {
	now := time.Now()
	m.SyncStatus = SyncStatusSynced
	m.LastSyncedVersion = version
	m.Attempts = 0
	m.LastError = ""
	m.NextRetryAt = nil
	m.LastSyncedAt = &now
	m.Touch()
}

// ScheduleRetry records a transient failure and computes the next retry time
// with exponential backoff. minDelay is the base delay for the first retry;
// the delay doubles per attempt and is capped at maxDelay. A positive
// retryAfter (from a rate-limit response) overrides the computed delay when
// it is longer.
func (m *Mapping) ScheduleRetry(reason string, retryAfter, minDelay, maxDelay time.Duration) {
	m.Attempts++
	m.LastError = truncateError(reason)
	m.SyncStatus = SyncStatusPending

	delay := backoffDelay(m.Attempts, minDelay, maxDelay)
	if retryAfter > delay {
		delay = retryAfter
	}
	next := time.Now().Add(delay)
	m.NextRetryAt = &next
	m.Touch()
}

// MarkFailed records a permanent failure. The mapping stays failed until
// retried manually or the local entity changes again.
func (m *Mapping) MarkFailed(reason string) {
	m.Attempts++
	m.SyncStatus = SyncStatusFailed
	m.LastError = truncateError(reason)
	m.NextRetryAt = nil
	m.Touch()
}

// MarkConflict flags the mapping for manual review after the remote side
// diverged from local state
func (m *Mapping) MarkConflict(reason string) {
	m.SyncStatus = SyncStatusConflict
	m.LastError = truncateError(reason)
	m.NextRetryAt = nil
	m.Touch()
}

// Requeue puts a failed or conflicted mapping back to pending for an
// immediate retry. Used by the manual retry endpoint.
func (m *Mapping) Requeue() error {
	if m.SyncStatus != SyncStatusFailed && m.SyncStatus != SyncStatusConflict {
		return shared.ErrInvalidState
	}
	m.SyncStatus = SyncStatusPending
	m.Attempts = 0
	m.LastError = ""
	m.NextRetryAt = nil
	m.Touch()
	return nil
}

// RetryEligible returns true when the mapping is pending and its retry
// window, if any, has elapsed
func (m *Mapping) RetryEligible(now time.Time) bool {
	if m.SyncStatus != SyncStatusPending {
		return false
	}
	return m.NextRetryAt == nil || !now.Before(*m.NextRetryAt)
}

// NeedsSync returns true if version is newer than what was last pushed
func (m *Mapping) NeedsSync(version int64) bool {
	return version > m.LastSyncedVersion
}

// backoffDelay computes minDelay * 2^(attempt-1) capped at maxDelay
func backoffDelay(attempt int, minDelay, maxDelay time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}
	delay := minDelay * time.Duration(math.Pow(2, float64(shift)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}
	return delay
}

const maxErrorLength = 500

// truncateError keeps error messages a bounded size for storage
func truncateError(msg string) string {
	if len(msg) > maxErrorLength {
		return msg[:maxErrorLength]
	}
	return msg
}

// ---------------------------------------------------------------------------
// MappingStats
// ---------------------------------------------------------------------------

// MappingStats summarizes mapping counts per sync status for one marketplace
type MappingStats struct {
	MarketplaceCode MarketplaceCode
	Total           int64
	Pending         int64
	InFlight        int64
	Synced          int64
	Failed          int64
	Conflict        int64
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// MappingReader provides read access to mappings
type MappingReader interface {
	// FindByID retrieves a mapping by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Mapping, error)

	// FindByEntity retrieves the mapping for an (entity, marketplace) pair.
	// Returns shared.ErrNotFound if no mapping exists.
	FindByEntity(ctx context.Context, entityID uuid.UUID, entityType EntityType, code MarketplaceCode) (*Mapping, error)

	// FindByExternalID resolves a marketplace-side ID back to the mapping.
	// Returns shared.ErrNotFound if no mapping exists.
	FindByExternalID(ctx context.Context, code MarketplaceCode, entityType EntityType, externalID string) (*Mapping, error)

	// ListDue returns up to limit mappings for the marketplace that are
	// pending and whose retry window has elapsed, oldest first
	ListDue(ctx context.Context, code MarketplaceCode, now time.Time, limit int) ([]*Mapping, error)

	// ListByStatus returns mappings filtered by status with pagination
	ListByStatus(ctx context.Context, code MarketplaceCode, status SyncStatus, offset, limit int) ([]*Mapping, int64, error)

	// ListStaleInFlight returns mappings stuck in IN_FLIGHT since before the
	// cutoff, candidates for the reaper
	ListStaleInFlight(ctx context.Context, cutoff time.Time, limit int) ([]*Mapping, error)

	// Stats returns per-status mapping counts for one marketplace
	Stats(ctx context.Context, code MarketplaceCode) (*MappingStats, error)
}

// MappingWriter provides write access to mappings
type MappingWriter interface {
	// Create persists a new mapping. Fails with shared.ErrAlreadyExists when
	// a mapping for the same (entity, marketplace) pair exists.
	Create(ctx context.Context, mapping *Mapping) error

	// Update persists mapping fields without a status precondition. Used for
	// linking external IDs and manual requeues.
	Update(ctx context.Context, mapping *Mapping) error

	// Transition atomically updates the mapping if and only if its stored
	// status still equals from. Returns ErrTransitionConflict when another
	// worker changed the status first. This compare-and-set is the mutual
	// exclusion primitive for claim and release of sync work.
	Transition(ctx context.Context, mapping *Mapping, from SyncStatus) error

	// Delete removes a mapping
	Delete(ctx context.Context, id uuid.UUID) error
}

// MappingRepository combines read and write access to mappings
type MappingRepository interface {
	MappingReader
	MappingWriter
}
