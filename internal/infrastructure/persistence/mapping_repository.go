package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
	"github.com/meschain/sync/internal/infrastructure/persistence/models"
)

// GormMappingRepository implements MappingRepository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// Ensure GormMappingRepository implements MappingRepository
var _ integration.MappingRepository = (*GormMappingRepository)(nil)

// ---------------------------------------------------------------------------
// MappingReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a mapping by its ID
func (r *GormMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Mapping, error) {
	var model models.MappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntity finds the mapping for an (entity, marketplace) pair
func (r *GormMappingRepository) FindByEntity(ctx context.Context, entityID uuid.UUID, entityType integration.EntityType, code integration.MarketplaceCode) (*integration.Mapping, error) {
	var model models.MappingModel
	if err := r.db.WithContext(ctx).
		Where("entity_id = ? AND entity_type = ? AND marketplace_code = ?", entityID, entityType, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID resolves a marketplace-side ID back to the mapping
func (r *GormMappingRepository) FindByExternalID(ctx context.Context, code integration.MarketplaceCode, entityType integration.EntityType, externalID string) (*integration.Mapping, error) {
	var model models.MappingModel
	if err := r.db.WithContext(ctx).
		Where("marketplace_code = ? AND entity_type = ? AND external_id = ?", code, entityType, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListDue returns pending mappings whose retry window has elapsed, oldest first
func (r *GormMappingRepository) ListDue(ctx context.Context, code integration.MarketplaceCode, now time.Time, limit int) ([]*integration.Mapping, error) {
	var mappingModels []models.MappingModel
	if err := r.db.WithContext(ctx).
		Where("marketplace_code = ? AND sync_status = ?", code, integration.SyncStatusPending).
		Where("next_retry_at IS NULL OR next_retry_at <= ?", now).
		Order("updated_at ASC").
		Limit(limit).
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// ListByStatus returns mappings filtered by status with pagination
func (r *GormMappingRepository) ListByStatus(ctx context.Context, code integration.MarketplaceCode, status integration.SyncStatus, offset, limit int) ([]*integration.Mapping, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.MappingModel{})
	if code.IsValid() {
		query = query.Where("marketplace_code = ?", code)
	}
	if status.IsValid() {
		query = query.Where("sync_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var mappingModels []models.MappingModel
	if err := query.
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&mappingModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainMappings(mappingModels), total, nil
}

// ListStaleInFlight returns mappings stuck in IN_FLIGHT since before the cutoff
func (r *GormMappingRepository) ListStaleInFlight(ctx context.Context, cutoff time.Time, limit int) ([]*integration.Mapping, error) {
	var mappingModels []models.MappingModel
	if err := r.db.WithContext(ctx).
		Where("sync_status = ? AND updated_at < ?", integration.SyncStatusInFlight, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toDomainMappings(mappingModels), nil
}

// Stats returns per-status mapping counts for one marketplace
func (r *GormMappingRepository) Stats(ctx context.Context, code integration.MarketplaceCode) (*integration.MappingStats, error) {
	type row struct {
		SyncStatus integration.SyncStatus
		Count      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.MappingModel{}).
		Select("sync_status, COUNT(*) as count").
		Where("marketplace_code = ?", code).
		Group("sync_status").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	stats := &integration.MappingStats{MarketplaceCode: code}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.SyncStatus {
		case integration.SyncStatusPending:
			stats.Pending = r.Count
		case integration.SyncStatusInFlight:
			stats.InFlight = r.Count
		case integration.SyncStatusSynced:
			stats.Synced = r.Count
		case integration.SyncStatusFailed:
			stats.Failed = r.Count
		case integration.SyncStatusConflict:
			stats.Conflict = r.Count
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// MappingWriter implementation
// ---------------------------------------------------------------------------

// Create persists a new mapping
func (r *GormMappingRepository) Create(ctx context.Context, mapping *integration.Mapping) error {
	model := models.MappingModelFromDomain(mapping)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists mapping fields without a status precondition
func (r *GormMappingRepository) Update(ctx context.Context, mapping *integration.Mapping) error {
	model := models.MappingModelFromDomain(mapping)
	result := r.db.WithContext(ctx).
		Model(&models.MappingModel{}).
		Where("id = ?", mapping.ID).
		Updates(r.updateColumns(model))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// Transition atomically updates the mapping if its stored status still equals
// from. The UPDATE ... WHERE sync_status = ? compare-and-set is what keeps two
// workers from claiming the same pair.
func (r *GormMappingRepository) Transition(ctx context.Context, mapping *integration.Mapping, from integration.SyncStatus) error {
	model := models.MappingModelFromDomain(mapping)
	result := r.db.WithContext(ctx).
		Model(&models.MappingModel{}).
		Where("id = ? AND sync_status = ?", mapping.ID, from).
		Updates(r.updateColumns(model))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrTransitionConflict
	}
	return nil
}

// Delete deletes a mapping
func (r *GormMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.MappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// updateColumns maps mutable fields to a column map so zero values (cleared
// errors, nil retry times) are written too
func (r *GormMappingRepository) updateColumns(model *models.MappingModel) map[string]any {
	return map[string]any{
		"external_id":         model.ExternalID,
		"sync_status":         model.SyncStatus,
		"last_synced_version": model.LastSyncedVersion,
		"attempts":            model.Attempts,
		"last_error":          model.LastError,
		"next_retry_at":       model.NextRetryAt,
		"last_synced_at":      model.LastSyncedAt,
		"updated_at":          model.UpdatedAt,
	}
}

// toDomainMappings converts persistence models to domain entities
func toDomainMappings(mappingModels []models.MappingModel) []*integration.Mapping {
	mappings := make([]*integration.Mapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = mappingModels[i].ToDomain()
	}
	return mappings
}
