package cart

import (
	"context"

	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/internal/catalog"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

// Line error reasons surfaced to the client per cart line.
const (
	ReasonVariantNotFound    = "variant_not_found"
	ReasonProductUnavailable = "product_unavailable"
	ReasonInsufficientStock  = "insufficient_stock"
)

// ResolvedLine is one cart line joined with its live catalog and stock state.
// Prices are snapshotted here and reused verbatim by the order builder.
type ResolvedLine struct {
	CartItemID     uuid.UUID
	VariantID      uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	SKU            string
	Quantity       int
	UnitPricePaise int64
	LineTotalPaise int64
}

// LineError describes why a single cart line cannot be ordered.
type LineError struct {
	CartItemID uuid.UUID `json:"cart_item_id"`
	VariantID  uuid.UUID `json:"variant_id"`
	Reason     string    `json:"reason"`
	Available  *int      `json:"available,omitempty"`
}

// Resolver validates an entire cart against the catalog and stock ledger.
// It never stops at the first bad line: the caller gets every problem at
// once so the client can fix the cart in one round trip.
type Resolver struct {
	catalog   catalog.Repository
	inventory inventory.Service
}

// NewResolver builds a cart resolver.
func NewResolver(catalogRepo catalog.Repository, inv inventory.Service) *Resolver {
	return &Resolver{catalog: catalogRepo, inventory: inv}
}

// Resolve checks every line and returns either the full set of priced lines
// or a validation error carrying one entry per failing line.
func (r *Resolver) Resolve(ctx context.Context, items []models.CartItem) ([]ResolvedLine, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	variantIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		variantIDs = append(variantIDs, item.VariantID)
	}

	variants, err := r.catalog.FindVariantsByIDs(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	variantsByID := make(map[uuid.UUID]models.Variant, len(variants))
	productIDs := make([]uuid.UUID, 0, len(variants))
	for _, v := range variants {
		variantsByID[v.ID] = v
		productIDs = append(productIDs, v.ProductID)
	}

	products := make(map[uuid.UUID]models.Product, len(productIDs))
	for _, id := range productIDs {
		if _, seen := products[id]; seen {
			continue
		}
		product, err := r.catalog.FindProductByID(ctx, id)
		if err != nil {
			return nil, err
		}
		products[id] = *product
	}

	availability, err := r.inventory.Availability(ctx, variantIDs)
	if err != nil {
		return nil, err
	}

	// Two lines for the same variant compete for the same stock.
	requested := make(map[uuid.UUID]int, len(items))

	lines := make([]ResolvedLine, 0, len(items))
	var lineErrors []LineError

	for _, item := range items {
		variant, ok := variantsByID[item.VariantID]
		if !ok {
			lineErrors = append(lineErrors, LineError{
				CartItemID: item.ID,
				VariantID:  item.VariantID,
				Reason:     ReasonVariantNotFound,
			})
			continue
		}

		product, ok := products[variant.ProductID]
		if !ok || !product.IsActive {
			lineErrors = append(lineErrors, LineError{
				CartItemID: item.ID,
				VariantID:  item.VariantID,
				Reason:     ReasonProductUnavailable,
			})
			continue
		}

		available, tracked := availability[item.VariantID]
		requested[item.VariantID] += item.Quantity
		if !tracked || requested[item.VariantID] > available {
			remaining := 0
			if tracked {
				remaining = available
			}
			lineErrors = append(lineErrors, LineError{
				CartItemID: item.ID,
				VariantID:  item.VariantID,
				Reason:     ReasonInsufficientStock,
				Available:  &remaining,
			})
			continue
		}

		lines = append(lines, ResolvedLine{
			CartItemID:     item.ID,
			VariantID:      item.VariantID,
			ProductID:      variant.ProductID,
			ProductName:    product.Name,
			SKU:            variant.SKU,
			Quantity:       item.Quantity,
			UnitPricePaise: variant.PricePaise,
			LineTotalPaise: variant.PricePaise * int64(item.Quantity),
		})
	}

	if len(lineErrors) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has unavailable items").
			WithDetails(map[string]any{"lines": lineErrors})
	}
	return lines, nil
}
