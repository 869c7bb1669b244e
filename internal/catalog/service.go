package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

// Service defines catalog operations.
type Service interface {
	List(ctx context.Context, filter ListFilter) (*ProductPage, error)
	Get(ctx context.Context, id uuid.UUID) (*ProductView, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductView, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductView, error)
	AddVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*ProductView, error)
}

type service struct {
	client    *db.Client
	repo      Repository
	inventory inventory.Service
}

// NewService wires a catalog service.
func NewService(client *db.Client, repo Repository, inv inventory.Service) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{client: client, repo: repo, inventory: inv}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (*ProductPage, error) {
	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ProductView, 0, len(products))
	for i := range products {
		views = append(views, toProductView(&products[i]))
	}
	return &ProductPage{Products: views, Total: total}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ProductView, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	view := toProductView(product)
	return &view, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductView, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product category is required")
	}
	if input.BasePricePaise < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
	}

	product := &models.Product{
		Name:           strings.TrimSpace(input.Name),
		Description:    input.Description,
		Category:       strings.TrimSpace(input.Category),
		Tags:           pq.StringArray(input.Tags),
		BasePricePaise: input.BasePricePaise,
		IsActive:       true,
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		inv := s.inventory.WithTx(tx)

		if err := repo.CreateProduct(ctx, product); err != nil {
			return err
		}
		for _, v := range input.Variants {
			variant := &models.Variant{
				ProductID:  product.ID,
				SKU:        strings.TrimSpace(v.SKU),
				Color:      v.Color,
				Size:       v.Size,
				PricePaise: v.PricePaise,
			}
			if variant.SKU == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required")
			}
			if variant.PricePaise <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "variant price must be positive")
			}
			if err := repo.CreateVariant(ctx, variant); err != nil {
				if db.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("sku %s already exists", variant.SKU))
				}
				return err
			}
			if _, err := inv.SetQuantity(ctx, variant.ID, v.InitialQty, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, product.ID)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductView, error) {
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}

	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = input.Description
	}
	if input.Category != nil {
		product.Category = strings.TrimSpace(*input.Category)
	}
	if input.Tags != nil {
		product.Tags = pq.StringArray(input.Tags)
	}
	if input.BasePricePaise != nil {
		if *input.BasePricePaise < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "base price cannot be negative")
		}
		product.BasePricePaise = *input.BasePricePaise
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	if err := s.repo.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return s.Get(ctx, product.ID)
}

func (s *service) AddVariant(ctx context.Context, productID uuid.UUID, input CreateVariantInput) (*ProductView, error) {
	if _, err := s.repo.FindProductByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	if strings.TrimSpace(input.SKU) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant sku is required")
	}
	if input.PricePaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant price must be positive")
	}

	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		variant := &models.Variant{
			ProductID:  productID,
			SKU:        strings.TrimSpace(input.SKU),
			Color:      input.Color,
			Size:       input.Size,
			PricePaise: input.PricePaise,
		}
		if err := repo.CreateVariant(ctx, variant); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("sku %s already exists", variant.SKU))
			}
			return err
		}
		_, err := s.inventory.WithTx(tx).SetQuantity(ctx, variant.ID, input.InitialQty, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, productID)
}

func toProductView(product *models.Product) ProductView {
	variants := make([]VariantView, 0, len(product.Variants))
	for _, v := range product.Variants {
		qty := 0
		if v.Stock != nil {
			qty = v.Stock.QtyAvailable
		}
		variants = append(variants, VariantView{
			ID:           v.ID,
			SKU:          v.SKU,
			Color:        v.Color,
			Size:         v.Size,
			PricePaise:   v.PricePaise,
			QtyAvailable: qty,
			InStock:      qty > 0,
		})
	}
	return ProductView{
		ID:             product.ID,
		Name:           product.Name,
		Description:    product.Description,
		Category:       product.Category,
		Tags:           []string(product.Tags),
		BasePricePaise: product.BasePricePaise,
		IsActive:       product.IsActive,
		Variants:       variants,
	}
}
