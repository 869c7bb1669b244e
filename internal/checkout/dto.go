package checkout

import (
	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/enums"
)

// PlaceOrderInput is the checkout payload after transport validation.
type PlaceOrderInput struct {
	AddressID     uuid.UUID
	PaymentMethod enums.PaymentMethod
	Notes         *string
}

// PlaceOrderResult carries the created order plus, for gateway payments,
// everything the frontend checkout widget needs to collect the payment.
type PlaceOrderResult struct {
	Order          orders.OrderView `json:"order"`
	GatewayOrderID *string          `json:"gateway_order_id,omitempty"`
	GatewayKeyID   *string          `json:"gateway_key_id,omitempty"`
	AmountPaise    *int64           `json:"amount_paise,omitempty"`
	Currency       *string          `json:"currency,omitempty"`
}
