package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vastralabs/vastra-backend/api/responses"
	"github.com/vastralabs/vastra-backend/api/validators"
	"github.com/vastralabs/vastra-backend/internal/catalog"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductList serves the public storefront catalog.
func ProductList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", defaultPageSize, 1, maxPageSize)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<20)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := catalog.ListFilter{
			Category:   validators.SanitizeString(r.URL.Query().Get("category"), 64),
			Tag:        validators.SanitizeString(r.URL.Query().Get("tag"), 64),
			Search:     validators.SanitizeString(r.URL.Query().Get("q"), 128),
			OnlyActive: true,
			Limit:      limit,
			Offset:     offset,
		}

		page, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"products": page.Products,
			"total":    page.Total,
		})
	}
}

// ProductDetail serves one listing with live availability.
func ProductDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product})
	}
}

type createVariantRequest struct {
	SKU        string `json:"sku" validate:"required,max=64"`
	Color      string `json:"color" validate:"required,max=40"`
	Size       string `json:"size" validate:"required,max=20"`
	PricePaise int64  `json:"price_paise" validate:"required,min=1"`
	InitialQty int    `json:"initial_qty" validate:"min=0"`
}

type createProductRequest struct {
	Name           string                 `json:"name" validate:"required,max=200"`
	Description    *string                `json:"description,omitempty"`
	Category       string                 `json:"category" validate:"required,max=64"`
	Tags           []string               `json:"tags,omitempty" validate:"max=20,dive,max=40"`
	BasePricePaise int64                  `json:"base_price_paise" validate:"required,min=1"`
	Variants       []createVariantRequest `json:"variants" validate:"required,min=1,dive"`
}

// AdminProductCreate registers a listing with its variants and opening stock.
func AdminProductCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.CreateProductInput{
			Name:           body.Name,
			Description:    body.Description,
			Category:       body.Category,
			Tags:           body.Tags,
			BasePricePaise: body.BasePricePaise,
		}
		for _, v := range body.Variants {
			input.Variants = append(input.Variants, catalog.CreateVariantInput{
				SKU:        v.SKU,
				Color:      v.Color,
				Size:       v.Size,
				PricePaise: v.PricePaise,
				InitialQty: v.InitialQty,
			})
		}

		product, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"product": product})
	}
}

type updateProductRequest struct {
	Name           *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description    *string  `json:"description,omitempty"`
	Category       *string  `json:"category,omitempty" validate:"omitempty,max=64"`
	Tags           []string `json:"tags,omitempty" validate:"max=20,dive,max=40"`
	BasePricePaise *int64   `json:"base_price_paise,omitempty" validate:"omitempty,min=1"`
	IsActive       *bool    `json:"is_active,omitempty"`
}

// AdminProductUpdate applies an explicit patch to a listing.
func AdminProductUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := pathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.Update(r.Context(), productID, catalog.UpdateProductInput{
			Name:           body.Name,
			Description:    body.Description,
			Category:       body.Category,
			Tags:           body.Tags,
			BasePricePaise: body.BasePricePaise,
			IsActive:       body.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product": product})
	}
}

func pathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid identifier").
			WithDetails(map[string]any{"param": param})
	}
	return id, nil
}
