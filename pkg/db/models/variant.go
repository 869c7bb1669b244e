package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Variant is a purchasable SKU (one color/size combination of a product).
// Its price is copied onto order items at order time and never re-read.
type Variant struct {
	ID         uuid.UUID    `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID    `gorm:"column:product_id;type:uuid;not null;index"`
	SKU        string       `gorm:"column:sku;not null;uniqueIndex"`
	Color      string       `gorm:"column:color;not null"`
	Size       string       `gorm:"column:size;not null"`
	PricePaise int64        `gorm:"column:price_paise;not null"`
	Stock      *StockRecord `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Variant) BeforeCreate(_ *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
