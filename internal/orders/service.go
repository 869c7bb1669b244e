package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

// Service defines order lifecycle operations after placement.
type Service interface {
	List(ctx context.Context, userID uuid.UUID, limit, offset int) (*OrderPage, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
	AdminAdvanceStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*OrderView, error)
}

type service struct {
	client    *db.Client
	repo      Repository
	inventory inventory.Service
}

// NewService wires an orders service.
func NewService(client *db.Client, repo Repository, inv inventory.Service) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{client: client, repo: repo, inventory: inv}, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit, offset int) (*OrderPage, error) {
	orders, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	page := &OrderPage{Orders: make([]OrderView, 0, len(orders)), Total: total}
	for i := range orders {
		page.Orders = append(page.Orders, ToView(&orders[i]))
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	view := ToView(order)
	return &view, nil
}

// Cancel lets a customer back out while the order is still pending. The
// claim update loses cleanly if a payment confirmation lands first.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order in status %s cannot be cancelled", order.Status))
	}

	now := time.Now().UTC()
	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.ClaimStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": now,
		})
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order is no longer pending")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, userID, orderID)
}

// AdminAdvanceStatus moves an order one step forward, or cancels a pending
// order. Cancelling a confirmed order puts its stock back on the shelf.
func (s *service) AdminAdvanceStatus(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*OrderView, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", next))
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	allowed := order.Status.CanTransitionTo(next)
	releaseStock := false
	if next == enums.OrderStatusCancelled && order.Status == enums.OrderStatusConfirmed {
		// Admin override: stock was already committed, so it returns.
		allowed = true
		releaseStock = true
	}
	if !allowed {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
	}

	patch := map[string]any{}
	now := time.Now().UTC()
	if next == enums.OrderStatusCancelled {
		patch["cancelled_at"] = now
	}

	err = s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.ClaimStatus(ctx, order.ID, order.Status, next, patch)
		if err != nil {
			return err
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order status changed concurrently")
		}
		if releaseStock {
			inv := s.inventory.WithTx(tx)
			for _, item := range order.Items {
				if err := inv.Release(ctx, item.VariantID, item.Quantity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	view := ToView(updated)
	return &view, nil
}

func (s *service) loadOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	if order.UserID != userID {
		// Hide existence from other users.
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ToView maps a stored order onto the API shape.
func ToView(order *models.Order) OrderView {
	items := make([]OrderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemView{
			ID:             item.ID,
			VariantID:      item.VariantID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			SKU:            item.SKU,
			Quantity:       item.Quantity,
			UnitPricePaise: item.UnitPricePaise,
			LineTotalPaise: item.LineTotalPaise,
		})
	}
	payments := make([]PaymentView, 0, len(order.Payments))
	for _, p := range order.Payments {
		payments = append(payments, PaymentView{
			ID:               p.ID,
			AmountPaise:      p.AmountPaise,
			Method:           p.Method,
			Status:           p.Status,
			GatewayPaymentID: p.GatewayPaymentID,
			CompletedAt:      p.CompletedAt,
		})
	}
	return OrderView{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		SubtotalPaise: order.SubtotalPaise,
		TaxPaise:      order.TaxPaise,
		ShippingPaise: order.ShippingPaise,
		DiscountPaise: order.DiscountPaise,
		TotalPaise:    order.TotalPaise,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		PaymentRef:    order.PaymentRef,
		AddressID:     order.AddressID,
		Items:         items,
		Payments:      payments,
		ConfirmedAt:   order.ConfirmedAt,
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt,
	}
}
