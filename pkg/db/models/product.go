package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Purchasable units live on its
// variants; IsActive gates every variant underneath it.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name           string         `gorm:"column:name;not null"`
	Description    *string        `gorm:"column:description"`
	Category       string         `gorm:"column:category;not null"`
	Tags           pq.StringArray `gorm:"column:tags;type:text[]"`
	BasePricePaise int64          `gorm:"column:base_price_paise;not null"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true"`
	Variants       []Variant      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
