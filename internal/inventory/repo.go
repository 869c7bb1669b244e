package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/db/models"
)

// Repository provides access to the stock ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error)
	FindByVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.StockRecord, error)
	DecrementIfAvailable(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	Increment(ctx context.Context, variantID uuid.UUID, qty int) error
	Save(ctx context.Context, record *models.StockRecord) error
	ListLowStock(ctx context.Context) ([]models.StockRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) FindByVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.StockRecord, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	var records []models.StockRecord
	err := r.db.WithContext(ctx).
		Where("variant_id IN ?", variantIDs).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DecrementIfAvailable applies a conditional decrement so the quantity can
// never pass below zero, even under concurrent writers. The boolean reports
// whether a row was actually updated.
func (r *repository) DecrementIfAvailable(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("variant_id = ? AND qty_available >= ?", variantID, qty).
		Updates(map[string]any{
			"qty_available": gorm.Expr("qty_available - ?", qty),
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repository) Increment(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{
			"qty_available": gorm.Expr("qty_available + ?", qty),
			"updated_at":    time.Now().UTC(),
		}).Error
}

func (r *repository) Save(ctx context.Context, record *models.StockRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) ListLowStock(ctx context.Context) ([]models.StockRecord, error) {
	var records []models.StockRecord
	err := r.db.WithContext(ctx).
		Where("qty_available <= low_stock_threshold").
		Order("qty_available ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
