package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

// Service defines stock ledger operations.
type Service interface {
	WithTx(tx *gorm.DB) Service
	GetByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error)
	Availability(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]int, error)
	Decrement(ctx context.Context, variantID uuid.UUID, qty int) error
	Release(ctx context.Context, variantID uuid.UUID, qty int) error
	SetQuantity(ctx context.Context, variantID uuid.UUID, qty, lowStockThreshold int) (*models.StockRecord, error)
	LowStock(ctx context.Context) ([]models.StockRecord, error)
}

type service struct {
	repo Repository
}

// NewService wires a stock service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx)}
}

func (s *service) GetByVariant(ctx context.Context, variantID uuid.UUID) (*models.StockRecord, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	record, err := s.repo.FindByVariant(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock record not found")
		}
		return nil, err
	}
	return record, nil
}

// Availability reports the current available quantity per variant. Variants
// without a stock record are simply absent from the result.
func (s *service) Availability(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	records, err := s.repo.FindByVariants(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(records))
	for _, record := range records {
		out[record.VariantID] = record.QtyAvailable
	}
	return out, nil
}

// Decrement takes qty units off the shelf. It fails with a stock error when
// the remaining quantity is insufficient; the caller decides whether that
// aborts a whole transaction.
func (s *service) Decrement(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	ok, err := s.repo.DecrementIfAvailable(ctx, variantID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStock, "insufficient stock").
			WithDetails(map[string]any{"variant_id": variantID, "requested": qty})
	}
	return nil
}

// Release puts qty units back, used when a confirmed order is cancelled.
func (s *service) Release(ctx context.Context, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return s.repo.Increment(ctx, variantID, qty)
}

// SetQuantity upserts the stock record for a variant, admin-only.
func (s *service) SetQuantity(ctx context.Context, variantID uuid.UUID, qty, lowStockThreshold int) (*models.StockRecord, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
	}
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	record, err := s.repo.FindByVariant(ctx, variantID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		record = &models.StockRecord{VariantID: variantID}
	}
	record.QtyAvailable = qty
	if lowStockThreshold > 0 {
		record.LowStockThreshold = lowStockThreshold
	}
	if err := s.repo.Save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) LowStock(ctx context.Context) ([]models.StockRecord, error) {
	return s.repo.ListLowStock(ctx)
}
