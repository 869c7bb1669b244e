package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// Order is one checkout attempt. Status is the only field mutated after
// creation besides notes; PaymentRef is set at most once, at creation, and
// is the join key used to match an inbound gateway confirmation.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	OrderNumber   string              `gorm:"column:order_number;not null;uniqueIndex"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalPaise int64               `gorm:"column:subtotal_paise;not null"`
	TaxPaise      int64               `gorm:"column:tax_paise;not null;default:0"`
	ShippingPaise int64               `gorm:"column:shipping_paise;not null;default:0"`
	DiscountPaise int64               `gorm:"column:discount_paise;not null;default:0"`
	TotalPaise    int64               `gorm:"column:total_paise;not null"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null;default:'INR'"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentRef    *string             `gorm:"column:payment_ref;uniqueIndex"`
	AddressID     uuid.UUID           `gorm:"column:address_id;type:uuid;not null"`
	Notes         *string             `gorm:"column:notes"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments      []Payment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt   *time.Time          `gorm:"column:confirmed_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(_ *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
