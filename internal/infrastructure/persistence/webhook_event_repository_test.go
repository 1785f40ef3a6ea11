package persistence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
)

// setupWebhookEventTestDB creates an in-memory SQLite database for testing
func setupWebhookEventTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.Exec(`
		CREATE TABLE webhook_events (
			id TEXT PRIMARY KEY,
			marketplace_code TEXT NOT NULL,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			external_id TEXT,
			payload TEXT,
			processing_status TEXT NOT NULL DEFAULT 'RECEIVED',
			failure_reason TEXT,
			applied_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(marketplace_code, event_id)
		)
	`).Error
	require.NoError(t, err)

	return db
}

func newTestWebhookEvent(t *testing.T, eventID string) *integration.WebhookEvent {
	t.Helper()
	event, err := integration.NewWebhookEvent(
		integration.MarketplaceCodeTrendyol, eventID, integration.InboundOrderCreated, "TY-ORD-1", `{"orderNumber":"TY-ORD-1"}`)
	require.NoError(t, err)
	return event
}

func TestGormWebhookEventRepository_Insert(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	t.Run("inserts new event", func(t *testing.T) {
		event := newTestWebhookEvent(t, "evt-100")
		require.NoError(t, repo.Insert(ctx, event))

		found, err := repo.FindByEventID(ctx, integration.MarketplaceCodeTrendyol, "evt-100")
		require.NoError(t, err)
		assert.Equal(t, event.ID, found.ID)
		assert.Equal(t, integration.ProcessingStatusReceived, found.ProcessingStatus)
	})

	t.Run("duplicate event ID fails", func(t *testing.T) {
		dup := newTestWebhookEvent(t, "evt-100")
		err := repo.Insert(ctx, dup)
		assert.ErrorIs(t, err, integration.ErrDuplicateEvent)
	})

	t.Run("same event ID on another marketplace is distinct", func(t *testing.T) {
		event, err := integration.NewWebhookEvent(
			integration.MarketplaceCodeHepsiburada, "evt-100", integration.InboundOrderCreated, "HB-1", "{}")
		require.NoError(t, err)
		assert.NoError(t, repo.Insert(ctx, event))
	})
}

func TestGormWebhookEventRepository_Update(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	event := newTestWebhookEvent(t, "evt-200")
	require.NoError(t, repo.Insert(ctx, event))

	event.MarkApplied()
	require.NoError(t, repo.Update(ctx, event))

	found, err := repo.FindByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.ProcessingStatusApplied, found.ProcessingStatus)
	assert.NotNil(t, found.AppliedAt)

	t.Run("missing event returns not found", func(t *testing.T) {
		ghost := newTestWebhookEvent(t, "evt-999")
		ghost.ID = uuid.New()
		err := repo.Update(ctx, ghost)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormWebhookEventRepository_ListByStatus(t *testing.T) {
	db := setupWebhookEventTestDB(t)
	repo := NewGormWebhookEventRepository(db)
	ctx := context.Background()

	applied := newTestWebhookEvent(t, "evt-1")
	applied.MarkApplied()
	require.NoError(t, repo.Insert(ctx, applied))

	rejected := newTestWebhookEvent(t, "evt-2")
	rejected.MarkRejected("no mapping")
	require.NoError(t, repo.Insert(ctx, rejected))

	require.NoError(t, repo.Insert(ctx, newTestWebhookEvent(t, "evt-3")))

	events, total, err := repo.ListByStatus(ctx, integration.MarketplaceCodeTrendyol, integration.ProcessingStatusRejected, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)
	assert.Equal(t, "no mapping", events[0].FailureReason)

	// Invalid status filter means all statuses
	_, total, err = repo.ListByStatus(ctx, integration.MarketplaceCodeTrendyol, integration.ProcessingStatus(""), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
}
