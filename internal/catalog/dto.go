package catalog

import "github.com/google/uuid"

// CreateProductInput carries the admin payload for a new listing.
type CreateProductInput struct {
	Name           string
	Description    *string
	Category       string
	Tags           []string
	BasePricePaise int64
	Variants       []CreateVariantInput
}

// CreateVariantInput carries one SKU of a new or existing product.
type CreateVariantInput struct {
	SKU        string
	Color      string
	Size       string
	PricePaise int64
	InitialQty int
}

// UpdateProductInput is an explicit patch: nil fields stay untouched.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Category       *string
	Tags           []string
	BasePricePaise *int64
	IsActive       *bool
}

// ProductPage is one page of listings with the unfiltered total.
type ProductPage struct {
	Products []ProductView
	Total    int64
}

// ProductView is the API-facing product shape with per-variant availability.
type ProductView struct {
	ID             uuid.UUID     `json:"id"`
	Name           string        `json:"name"`
	Description    *string       `json:"description,omitempty"`
	Category       string        `json:"category"`
	Tags           []string      `json:"tags,omitempty"`
	BasePricePaise int64         `json:"base_price_paise"`
	IsActive       bool          `json:"is_active"`
	Variants       []VariantView `json:"variants"`
}

// VariantView is the API-facing variant shape.
type VariantView struct {
	ID           uuid.UUID `json:"id"`
	SKU          string    `json:"sku"`
	Color        string    `json:"color"`
	Size         string    `json:"size"`
	PricePaise   int64     `json:"price_paise"`
	QtyAvailable int       `json:"qty_available"`
	InStock      bool      `json:"in_stock"`
}
