package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/meschain/sync/internal/domain/catalog"
	"github.com/meschain/sync/internal/domain/integration"
	"github.com/meschain/sync/internal/domain/shared"
	"github.com/meschain/sync/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements catalog.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Ensure GormOrderRepository implements OrderRepository
var _ catalog.OrderRepository = (*GormOrderRepository)(nil)

// FindByID finds an order by its local ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternal finds the order imported for a marketplace order ID
func (r *GormOrderRepository) FindByExternal(ctx context.Context, code integration.MarketplaceCode, externalOrderID string) (*catalog.Order, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Where("marketplace_code = ? AND external_order_id = ?", code, externalOrderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new imported order. The unique index over
// (marketplace_code, external_order_id) turns a concurrent double import
// into ErrAlreadyExists.
func (r *GormOrderRepository) Create(ctx context.Context, order *catalog.Order) error {
	model := models.OrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Update persists changes to an existing order
func (r *GormOrderRepository) Update(ctx context.Context, order *catalog.Order) error {
	model := models.OrderModelFromDomain(order)
	result := r.db.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", order.ID).
		Updates(map[string]interface{}{
			"status":     model.Status,
			"buyer_name": model.BuyerName,
			"city":       model.City,
			"lines":      model.Lines,
			"version":    model.Version,
			"updated_at": model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
