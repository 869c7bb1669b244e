package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockRecord is the authoritative available-quantity counter for a variant.
// QtyAvailable never goes negative; every mutation is a conditional update.
type StockRecord struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	VariantID         uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex"`
	QtyAvailable      int       `gorm:"column:qty_available;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:5"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *StockRecord) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
