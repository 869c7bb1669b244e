package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	"github.com/vastralabs/vastra-backend/pkg/metrics"
	"github.com/vastralabs/vastra-backend/pkg/redis"
)

const (
	guardScope = "payment"
	guardTTL   = 48 * time.Hour
)

// errClaimLost signals that another confirmation won the pending→confirmed
// claim while this one held the row. Resolved by re-reading the order.
var errClaimLost = errors.New("order status claim lost")

// SignatureVerifier checks a gateway checkout signature.
type SignatureVerifier interface {
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
}

// ConfirmInput is a gateway payment confirmation, from either the checkout
// callback or the webhook.
type ConfirmInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

// WebhookConfirmInput is a server-to-server capture notification. The
// transport layer has already authenticated the webhook body, so no
// per-payment signature travels with it.
type WebhookConfirmInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
}

// Service reconciles gateway payment confirmations against pending orders.
type Service interface {
	Confirm(ctx context.Context, input ConfirmInput) (*orders.OrderView, error)
	ConfirmFromWebhook(ctx context.Context, input WebhookConfirmInput) (*orders.OrderView, error)
}

type service struct {
	client    *db.Client
	orderRepo orders.Repository
	cartRepo  cart.Repository
	inventory inventory.Service
	verifier  SignatureVerifier
	guard     redis.IdempotencyStore
	logger    *logger.Logger
	metrics   *metrics.CheckoutMetrics
}

// NewService wires the reconciliation engine.
func NewService(
	client *db.Client,
	orderRepo orders.Repository,
	cartRepo cart.Repository,
	inv inventory.Service,
	verifier SignatureVerifier,
	guard redis.IdempotencyStore,
	logg *logger.Logger,
	m *metrics.CheckoutMetrics,
) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("signature verifier required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		client:    client,
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		inventory: inv,
		verifier:  verifier,
		guard:     guard,
		logger:    logg,
		metrics:   m,
	}, nil
}

// Confirm runs the reconciliation protocol: signature check, replay gate,
// payment reference match, then an atomic commit of order status, payment
// row, stock decrement, and cart clearing. A duplicate confirmation of an
// already-confirmed order is a success-shaped no-op so gateway retries never
// error out.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*orders.OrderView, error) {
	if strings.TrimSpace(input.GatewayOrderID) == "" ||
		strings.TrimSpace(input.GatewayPaymentID) == "" ||
		strings.TrimSpace(input.Signature) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id, and signature are required")
	}

	if !s.verifier.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		s.metrics.IncReconcileDenied("signature")
		s.logger.Warn(ctx, fmt.Sprintf("rejected payment confirmation with bad signature for %s", input.GatewayPaymentID))
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "payment signature verification failed")
	}

	return s.reconcile(ctx, input)
}

// ConfirmFromWebhook runs the same reconciliation protocol for capture
// notifications whose authenticity was established by the webhook body
// signature rather than a per-payment HMAC.
func (s *service) ConfirmFromWebhook(ctx context.Context, input WebhookConfirmInput) (*orders.OrderView, error) {
	if strings.TrimSpace(input.GatewayOrderID) == "" || strings.TrimSpace(input.GatewayPaymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}
	return s.reconcile(ctx, ConfirmInput{
		GatewayOrderID:   input.GatewayOrderID,
		GatewayPaymentID: input.GatewayPaymentID,
	})
}

func (s *service) reconcile(ctx context.Context, input ConfirmInput) (*orders.OrderView, error) {
	guardKey, won, err := s.acquireGuard(ctx, input.GatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.handleReplay(ctx, input)
	}

	view, err := s.commit(ctx, input)
	if err != nil {
		// Free the guard so a later retry can attempt the commit again.
		s.releaseGuard(ctx, guardKey)
		return nil, err
	}
	return view, nil
}

func (s *service) acquireGuard(ctx context.Context, gatewayPaymentID string) (string, bool, error) {
	if s.guard == nil {
		return "", true, nil
	}
	key := s.guard.IdempotencyKey(guardScope, gatewayPaymentID)
	won, err := s.guard.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), guardTTL)
	if err != nil {
		return "", false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency store unavailable")
	}
	return key, won, nil
}

func (s *service) releaseGuard(ctx context.Context, key string) {
	if s.guard == nil || key == "" {
		return
	}
	if err := s.guard.Del(ctx, key); err != nil {
		s.logger.Warn(ctx, fmt.Sprintf("failed to release idempotency guard %s: %v", key, err))
	}
}

// handleReplay resolves a confirmation whose guard key already exists. If
// the order is already confirmed the replay succeeds without touching
// anything; if the first delivery is still in flight the caller should retry.
func (s *service) handleReplay(ctx context.Context, input ConfirmInput) (*orders.OrderView, error) {
	s.metrics.IncWebhookReplay()
	order, err := s.orderRepo.FindByPaymentRef(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment reference")
		}
		return nil, err
	}
	if order.Status.AtLeast(enums.OrderStatusConfirmed) {
		view := orders.ToView(order)
		return &view, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "payment confirmation already in progress")
}

func (s *service) commit(ctx context.Context, input ConfirmInput) (*orders.OrderView, error) {
	order, err := s.orderRepo.FindByPaymentRef(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncReconcileDenied("payment_ref")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for payment reference")
		}
		return nil, err
	}

	ctx = s.logger.WithOrderID(ctx, order.ID.String())

	if order.Status.AtLeast(enums.OrderStatusConfirmed) {
		// The gateway retried after a successful commit.
		view := orders.ToView(order)
		return &view, nil
	}
	if order.Status == enums.OrderStatusCancelled {
		s.metrics.IncReconcileDenied("cancelled")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was cancelled before payment landed")
	}
	if !order.PaymentMethod.RequiresGateway() {
		s.metrics.IncReconcileDenied("method")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order does not use a payment gateway")
	}

	now := time.Now().UTC()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orderRepo.WithTx(tx)

		won, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed, map[string]any{
			"confirmed_at": now,
		})
		if err != nil {
			return err
		}
		if !won {
			return errClaimLost
		}

		inv := s.inventory.WithTx(tx)
		for _, item := range order.Items {
			if err := inv.Decrement(ctx, item.VariantID, item.Quantity); err != nil {
				if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStock {
					return pkgerrors.Wrap(pkgerrors.CodeIntegrity, err, "stock ran out between order and payment")
				}
				return err
			}
		}

		payment := pendingPayment(order)
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeIntegrity, "order has no pending payment row")
		}
		payment.Status = enums.PaymentStatusCompleted
		payment.GatewayPaymentID = &input.GatewayPaymentID
		if input.Signature != "" {
			payment.GatewaySignature = &input.Signature
		}
		payment.CompletedAt = &now
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		return s.cartRepo.WithTx(tx).DeleteByUser(ctx, order.UserID)
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return s.resolveLostClaim(ctx, order.ID)
		}
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeIntegrity {
			s.metrics.IncStockRace()
			s.flagForReview(ctx, order, input)
		}
		return nil, err
	}

	s.metrics.IncOrderConfirmed(order.PaymentMethod.String())
	s.logger.Info(ctx, fmt.Sprintf("order %s confirmed by payment %s", order.OrderNumber, input.GatewayPaymentID))

	confirmed, err := s.orderRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	view := orders.ToView(confirmed)
	return &view, nil
}

// resolveLostClaim re-reads an order after losing the pending→confirmed
// claim. Almost always the winner was another confirmation of the same
// payment, which makes this call a replay: return the confirmed view. Any
// other state (cancel landed first) is a genuine conflict.
func (s *service) resolveLostClaim(ctx context.Context, orderID uuid.UUID) (*orders.OrderView, error) {
	current, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current.Status.AtLeast(enums.OrderStatusConfirmed) {
		s.metrics.IncWebhookReplay()
		view := orders.ToView(current)
		return &view, nil
	}
	s.metrics.IncReconcileDenied("state")
	return nil, pkgerrors.New(pkgerrors.CodeConflict,
		fmt.Sprintf("order moved to %s while confirming payment", current.Status))
}

// flagForReview leaves a breadcrumb on the order when money was collected
// but stock could not be committed. Best effort: the reconciliation outcome
// is already decided.
func (s *service) flagForReview(ctx context.Context, order *models.Order, input ConfirmInput) {
	note := fmt.Sprintf("payment %s captured but stock unavailable at %s; needs manual review",
		input.GatewayPaymentID, time.Now().UTC().Format(time.RFC3339))
	if err := s.orderRepo.SetNotes(ctx, order.ID, note); err != nil {
		s.logger.Error(ctx, "failed to flag order for review", err)
	}
	s.logger.Warn(ctx, fmt.Sprintf("order %s flagged for manual review: %s", order.OrderNumber, note))
}

func pendingPayment(order *models.Order) *models.Payment {
	for i := range order.Payments {
		if order.Payments[i].Status == enums.PaymentStatusPending {
			return &order.Payments[i]
		}
	}
	return nil
}
