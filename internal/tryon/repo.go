package tryon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	"github.com/vastralabs/vastra-backend/pkg/pagination"
)

// Repository persists try-on jobs.
type Repository interface {
	Create(ctx context.Context, job *models.TryOnJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.TryOnJob, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.TryOnJob, error)
	// ClaimQueued moves one queued job to processing and returns it. Returns
	// gorm.ErrRecordNotFound when the queue is empty.
	ClaimQueued(ctx context.Context) (*models.TryOnJob, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID, resultURL string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, job *models.TryOnJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TryOnJob, error) {
	var job models.TryOnJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.TryOnJob, error) {
	var jobs []models.TryOnJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&jobs).Error
	return jobs, err
}

func (r *repository) ClaimQueued(ctx context.Context) (*models.TryOnJob, error) {
	var job models.TryOnJob
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.TryOnJobStatusQueued).
		Order("created_at ASC").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.TryOnJob{}).
		Where("id = ? AND status = ?", job.ID, enums.TryOnJobStatusQueued).
		Updates(map[string]any{
			"status":     enums.TryOnJobStatusProcessing,
			"started_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another worker took it; let the caller poll again.
		return nil, gorm.ErrRecordNotFound
	}

	job.Status = enums.TryOnJobStatusProcessing
	job.StartedAt = &now
	return &job, nil
}

func (r *repository) MarkSucceeded(ctx context.Context, id uuid.UUID, resultURL string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.TryOnJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      enums.TryOnJobStatusSucceeded,
			"result_url":  resultURL,
			"finished_at": now,
		}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.TryOnJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         enums.TryOnJobStatusFailed,
			"failure_reason": reason,
			"finished_at":    now,
		}).Error
}
