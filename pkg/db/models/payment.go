package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// Payment records settlement progress for an order. A COD payment stays
// pending until settled out-of-band; a gateway payment completes only after
// signature verification.
type Payment struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	AmountPaise      int64               `gorm:"column:amount_paise;not null"`
	Currency         enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'"`
	Method           enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Status           enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	GatewaySignature *string             `gorm:"column:gateway_signature"`
	Metadata         map[string]any      `gorm:"column:metadata;type:jsonb;serializer:json"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	CompletedAt      *time.Time          `gorm:"column:completed_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
