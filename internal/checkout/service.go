package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/address"
	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	"github.com/vastralabs/vastra-backend/pkg/metrics"
	"github.com/vastralabs/vastra-backend/pkg/razorpay"
)

const orderNumberAttempts = 3

// IntentGateway is the slice of the payment gateway the order builder needs.
type IntentGateway interface {
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string, notes map[string]string) (*razorpay.GatewayOrder, error)
	KeyID() string
}

// Service builds orders out of carts.
type Service interface {
	PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error)
}

type service struct {
	client    *db.Client
	cfg       config.CheckoutConfig
	cartRepo  cart.Repository
	resolver  *cart.Resolver
	orderRepo orders.Repository
	inventory inventory.Service
	addresses address.Service
	gateway   IntentGateway
	logger    *logger.Logger
	metrics   *metrics.CheckoutMetrics
}

// NewService wires the checkout orchestrator.
func NewService(
	client *db.Client,
	cfg config.CheckoutConfig,
	cartRepo cart.Repository,
	resolver *cart.Resolver,
	orderRepo orders.Repository,
	inv inventory.Service,
	addresses address.Service,
	gateway IntentGateway,
	logg *logger.Logger,
	m *metrics.CheckoutMetrics,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if cartRepo == nil || resolver == nil {
		return nil, fmt.Errorf("cart dependencies required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if addresses == nil {
		return nil, fmt.Errorf("address service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		client:    client,
		cfg:       cfg,
		cartRepo:  cartRepo,
		resolver:  resolver,
		orderRepo: orderRepo,
		inventory: inv,
		addresses: addresses,
		gateway:   gateway,
		logger:    logg,
		metrics:   m,
	}, nil
}

// PlaceOrder turns the user's cart into an order.
//
// Cash-on-delivery orders are confirmed immediately: stock comes off the
// shelf and the cart is cleared in the same transaction. Gateway orders stay
// pending with stock untouched until the payment is reconciled; the gateway
// intent is created before the transaction so no row is held across network
// I/O.
func (s *service) PlaceOrder(ctx context.Context, userID uuid.UUID, input PlaceOrderInput) (*PlaceOrderResult, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if _, err := s.addresses.GetOwned(ctx, userID, input.AddressID); err != nil {
		return nil, err
	}

	items, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines, err := s.resolver.Resolve(ctx, items)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(lines, s.cfg)
	now := time.Now().UTC()

	// Minted once: the same number is the gateway receipt and the stored
	// OrderNumber, so gateway dashboards line up with ours.
	number, err := newOrderNumber(s.cfg.OrderNumberPrefix, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
	}

	var gatewayIntent *razorpay.GatewayOrder
	var paymentRef *string
	if input.PaymentMethod.RequiresGateway() {
		if s.gateway == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
		}
		intent, err := s.gateway.CreateOrder(ctx, totals.TotalPaise, enums.CurrencyINR.String(), number, map[string]string{
			"user_id": userID.String(),
		})
		if err != nil {
			return nil, err
		}
		gatewayIntent = intent
		paymentRef = &intent.ID
	}

	order, err := s.persistOrder(ctx, userID, input, lines, totals, paymentRef, number, now)
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderPlaced(input.PaymentMethod.String())
	if order.Status == enums.OrderStatusConfirmed {
		s.metrics.IncOrderConfirmed(input.PaymentMethod.String())
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())
	s.logger.Info(ctx, fmt.Sprintf("order %s placed via %s", order.OrderNumber, input.PaymentMethod))

	result := &PlaceOrderResult{Order: orders.ToView(order)}
	if gatewayIntent != nil {
		currency := gatewayIntent.Currency
		result.GatewayOrderID = &gatewayIntent.ID
		result.GatewayKeyID = ptr(s.gateway.KeyID())
		result.AmountPaise = &gatewayIntent.AmountPaise
		result.Currency = &currency
	}
	return result, nil
}

func (s *service) persistOrder(
	ctx context.Context,
	userID uuid.UUID,
	input PlaceOrderInput,
	lines []cart.ResolvedLine,
	totals Totals,
	paymentRef *string,
	number string,
	now time.Time,
) (*models.Order, error) {
	cod := !input.PaymentMethod.RequiresGateway()

	var lastErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		if attempt > 0 {
			// Uniqueness collision on the previous number; mint a fresh one.
			fresh, err := newOrderNumber(s.cfg.OrderNumberPrefix, now)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
			}
			number = fresh
		}

		order := &models.Order{
			UserID:        userID,
			OrderNumber:   number,
			Status:        enums.OrderStatusPending,
			SubtotalPaise: totals.SubtotalPaise,
			TaxPaise:      totals.TaxPaise,
			ShippingPaise: totals.ShippingPaise,
			DiscountPaise: totals.DiscountPaise,
			TotalPaise:    totals.TotalPaise,
			Currency:      enums.CurrencyINR,
			PaymentMethod: input.PaymentMethod,
			PaymentRef:    paymentRef,
			AddressID:     input.AddressID,
			Notes:         input.Notes,
		}
		if cod {
			order.Status = enums.OrderStatusConfirmed
			confirmedAt := now
			order.ConfirmedAt = &confirmedAt
		}

		err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.orderRepo.WithTx(tx)
			if err := repo.Create(ctx, order); err != nil {
				return err
			}

			orderItems := make([]models.OrderItem, 0, len(lines))
			for _, line := range lines {
				orderItems = append(orderItems, models.OrderItem{
					OrderID:        order.ID,
					VariantID:      line.VariantID,
					ProductID:      line.ProductID,
					ProductName:    line.ProductName,
					SKU:            line.SKU,
					Quantity:       line.Quantity,
					UnitPricePaise: line.UnitPricePaise,
					LineTotalPaise: line.LineTotalPaise,
				})
			}
			if err := repo.CreateItems(ctx, orderItems); err != nil {
				return err
			}

			payment := &models.Payment{
				OrderID:     order.ID,
				AmountPaise: totals.TotalPaise,
				Currency:    enums.CurrencyINR,
				Method:      input.PaymentMethod,
				Status:      enums.PaymentStatusPending,
			}
			if err := repo.CreatePayment(ctx, payment); err != nil {
				return err
			}

			if cod {
				inv := s.inventory.WithTx(tx)
				for _, line := range lines {
					if err := inv.Decrement(ctx, line.VariantID, line.Quantity); err != nil {
						return err
					}
				}
				if err := s.cartRepo.WithTx(tx).DeleteByUser(ctx, userID); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			loaded, loadErr := s.orderRepo.FindByID(ctx, order.ID)
			if loadErr != nil {
				return nil, loadErr
			}
			return loaded, nil
		}
		if db.IsUniqueViolation(err, "") && strings.Contains(err.Error(), "order_number") {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, lastErr, "could not allocate a unique order number")
}

func ptr[T any](v T) *T {
	return &v
}
