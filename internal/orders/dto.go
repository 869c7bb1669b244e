package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// OrderView is the API-facing order shape.
type OrderView struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	SubtotalPaise int64               `json:"subtotal_paise"`
	TaxPaise      int64               `json:"tax_paise"`
	ShippingPaise int64               `json:"shipping_paise"`
	DiscountPaise int64               `json:"discount_paise"`
	TotalPaise    int64               `json:"total_paise"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentRef    *string             `json:"payment_ref,omitempty"`
	AddressID     uuid.UUID           `json:"address_id"`
	Items         []OrderItemView     `json:"items"`
	Payments      []PaymentView       `json:"payments"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderItemView is one immutable order line.
type OrderItemView struct {
	ID             uuid.UUID `json:"id"`
	VariantID      uuid.UUID `json:"variant_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPricePaise int64     `json:"unit_price_paise"`
	LineTotalPaise int64     `json:"line_total_paise"`
}

// PaymentView is the settlement state attached to an order.
type PaymentView struct {
	ID               uuid.UUID           `json:"id"`
	AmountPaise      int64               `json:"amount_paise"`
	Method           enums.PaymentMethod `json:"method"`
	Status           enums.PaymentStatus `json:"status"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
}

// OrderPage is one page of a user's order history.
type OrderPage struct {
	Orders []OrderView `json:"orders"`
	Total  int64       `json:"total"`
}
