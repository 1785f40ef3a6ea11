package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
	"github.com/meschain/sync/internal/infrastructure/persistence/models"
)

// GormWebhookEventRepository implements WebhookEventRepository using GORM
type GormWebhookEventRepository struct {
	db *gorm.DB
}

// NewGormWebhookEventRepository creates a new GormWebhookEventRepository
func NewGormWebhookEventRepository(db *gorm.DB) *GormWebhookEventRepository {
	return &GormWebhookEventRepository{db: db}
}

// Ensure GormWebhookEventRepository implements WebhookEventRepository
var _ integration.WebhookEventRepository = (*GormWebhookEventRepository)(nil)

// Insert persists a new event. The unique (marketplace, event ID) index turns
// concurrent duplicate deliveries into ErrDuplicateEvent.
func (r *GormWebhookEventRepository) Insert(ctx context.Context, event *integration.WebhookEvent) error {
	model := models.WebhookEventModelFromDomain(event)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return integration.ErrDuplicateEvent
		}
		return err
	}
	return nil
}

// Update persists processing status changes
func (r *GormWebhookEventRepository) Update(ctx context.Context, event *integration.WebhookEvent) error {
	model := models.WebhookEventModelFromDomain(event)
	result := r.db.WithContext(ctx).
		Model(&models.WebhookEventModel{}).
		Where("id = ?", event.ID).
		Updates(map[string]any{
			"processing_status": model.ProcessingStatus,
			"failure_reason":    model.FailureReason,
			"applied_at":        model.AppliedAt,
			"updated_at":        model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an event by its ID
func (r *GormWebhookEventRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEventID finds an event by its marketplace event ID
func (r *GormWebhookEventRepository) FindByEventID(ctx context.Context, code integration.MarketplaceCode, eventID string) (*integration.WebhookEvent, error) {
	var model models.WebhookEventModel
	if err := r.db.WithContext(ctx).
		Where("marketplace_code = ? AND event_id = ?", code, eventID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByStatus returns events filtered by processing status, newest first
func (r *GormWebhookEventRepository) ListByStatus(ctx context.Context, code integration.MarketplaceCode, status integration.ProcessingStatus, offset, limit int) ([]*integration.WebhookEvent, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookEventModel{})
	if code.IsValid() {
		query = query.Where("marketplace_code = ?", code)
	}
	if status.IsValid() {
		query = query.Where("processing_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var eventModels []models.WebhookEventModel
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&eventModels).Error; err != nil {
		return nil, 0, err
	}

	events := make([]*integration.WebhookEvent, len(eventModels))
	for i := range eventModels {
		events[i] = eventModels[i].ToDomain()
	}
	return events, total, nil
}
