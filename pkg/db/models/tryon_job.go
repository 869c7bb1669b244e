package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// TryOnJob tracks one virtual try-on request. Jobs live in the store so a
// restart or second instance never loses them.
type TryOnJob struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	ProductID     uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	Status        enums.TryOnJobStatus `gorm:"column:status;type:text;not null;default:'queued'"`
	PersonImage   string               `gorm:"column:person_image;not null"`
	GarmentImage  string               `gorm:"column:garment_image;not null"`
	ResultURL     *string              `gorm:"column:result_url"`
	FailureReason *string              `gorm:"column:failure_reason"`
	StartedAt     *time.Time           `gorm:"column:started_at"`
	FinishedAt    *time.Time           `gorm:"column:finished_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (j *TryOnJob) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
