package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/catalog"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

const maxQtyPerLine = 10

// View is the API-facing cart shape.
type View struct {
	Items         []ItemView `json:"items"`
	SubtotalPaise int64      `json:"subtotal_paise"`
}

// ItemView is one cart line with live pricing.
type ItemView struct {
	ID             uuid.UUID `json:"id"`
	VariantID      uuid.UUID `json:"variant_id"`
	ProductID      uuid.UUID `json:"product_id"`
	ProductName    string    `json:"product_name"`
	SKU            string    `json:"sku"`
	Quantity       int       `json:"quantity"`
	UnitPricePaise int64     `json:"unit_price_paise"`
	LineTotalPaise int64     `json:"line_total_paise"`
	QtyAvailable   int       `json:"qty_available"`
}

// Service defines cart operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*View, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo      Repository
	catalog   catalog.Repository
	inventory inventory.Service
}

// NewService wires a cart service.
func NewService(repo Repository, catalogRepo catalog.Repository, inv inventory.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{repo: repo, catalog: catalogRepo, inventory: inv}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, items)
}

// AddItem merges quantity into an existing line for the same variant
// instead of creating duplicates.
func (s *service) AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 || qty > maxQtyPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", maxQtyPerLine))
	}

	variant, err := s.catalog.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, err
	}
	product, err := s.catalog.FindProductByID(ctx, variant.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is unavailable")
	}

	existing, err := s.repo.FindByUserAndVariant(ctx, userID, variantID)
	switch {
	case err == nil:
		existing.Quantity += qty
		if existing.Quantity > maxQtyPerLine {
			existing.Quantity = maxQtyPerLine
		}
		if err := s.repo.Update(ctx, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		item := &models.CartItem{
			UserID:    userID,
			VariantID: variantID,
			ProductID: variant.ProductID,
			Quantity:  qty,
		}
		if err := s.repo.Create(ctx, item); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	return s.Get(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*View, error) {
	if qty <= 0 || qty > maxQtyPerLine {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", maxQtyPerLine))
	}

	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var target *models.CartItem
	for i := range items {
		if items[i].ID == itemID {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	target.Quantity = qty
	if err := s.repo.Update(ctx, target); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*View, error) {
	affected, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteByUser(ctx, userID)
}

func (s *service) buildView(ctx context.Context, items []models.CartItem) (*View, error) {
	view := &View{Items: make([]ItemView, 0, len(items))}
	if len(items) == 0 {
		return view, nil
	}

	variantIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		variantIDs = append(variantIDs, item.VariantID)
	}
	variants, err := s.catalog.FindVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	variantsByID := make(map[uuid.UUID]models.Variant, len(variants))
	for _, v := range variants {
		variantsByID[v.ID] = v
	}
	availability, err := s.inventory.Availability(ctx, variantIDs)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		variant, ok := variantsByID[item.VariantID]
		if !ok {
			// Variant was removed from the catalog; surface the line with
			// zero pricing so the client can drop it.
			view.Items = append(view.Items, ItemView{
				ID:        item.ID,
				VariantID: item.VariantID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
			continue
		}
		product, err := s.catalog.FindProductByID(ctx, variant.ProductID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		name := ""
		if product != nil {
			name = product.Name
		}
		lineTotal := variant.PricePaise * int64(item.Quantity)
		view.Items = append(view.Items, ItemView{
			ID:             item.ID,
			VariantID:      item.VariantID,
			ProductID:      variant.ProductID,
			ProductName:    name,
			SKU:            variant.SKU,
			Quantity:       item.Quantity,
			UnitPricePaise: variant.PricePaise,
			LineTotalPaise: lineTotal,
			QtyAvailable:   availability[item.VariantID],
		})
		view.SubtotalPaise += lineTotal
	}
	return view, nil
}
