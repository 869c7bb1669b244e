package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Product{}, &models.Variant{}, &models.StockRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	inv, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	svc, err := NewService(db.NewWithConn(conn), NewRepository(conn), inv)
	if err != nil {
		t.Fatalf("catalog service: %v", err)
	}
	return svc
}

func TestCreateProductWithVariantsSeedsStock(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	desc := "Lightweight cotton kurta"
	view, err := svc.Create(ctx, CreateProductInput{
		Name:           "Classic Kurta",
		Description:    &desc,
		Category:       "kurtas",
		Tags:           []string{"cotton", "summer"},
		BasePricePaise: 129900,
		Variants: []CreateVariantInput{
			{SKU: "KUR-BLU-M", Color: "blue", Size: "M", PricePaise: 129900, InitialQty: 10},
			{SKU: "KUR-BLU-L", Color: "blue", Size: "L", PricePaise: 134900, InitialQty: 0},
		},
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if len(view.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(view.Variants))
	}

	bySKU := map[string]VariantView{}
	for _, v := range view.Variants {
		bySKU[v.SKU] = v
	}
	if v := bySKU["KUR-BLU-M"]; v.QtyAvailable != 10 || !v.InStock {
		t.Fatalf("unexpected M variant: %+v", v)
	}
	if v := bySKU["KUR-BLU-L"]; v.QtyAvailable != 0 || v.InStock {
		t.Fatalf("unexpected L variant: %+v", v)
	}
}

func TestCreateProductDuplicateSKURollsBack(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateProductInput{
		Name: "First", Category: "tees", BasePricePaise: 49900,
		Variants: []CreateVariantInput{{SKU: "TEE-1", Color: "black", Size: "M", PricePaise: 49900, InitialQty: 5}},
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err = svc.Create(ctx, CreateProductInput{
		Name: "Second", Category: "tees", BasePricePaise: 49900,
		Variants: []CreateVariantInput{{SKU: "TEE-1", Color: "white", Size: "M", PricePaise: 49900, InitialQty: 5}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	var count int64
	if err := conn.Model(&models.Product{}).Where("name = ?", "Second").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("duplicate-sku product should have been rolled back")
	}
}

func TestListFiltersByCategoryAndSearch(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	for _, p := range []CreateProductInput{
		{Name: "Silk Saree", Category: "sarees", BasePricePaise: 499900},
		{Name: "Festival Saree", Category: "sarees", BasePricePaise: 299900},
		{Name: "Denim Jacket", Category: "jackets", BasePricePaise: 349900},
	} {
		if _, err := svc.Create(ctx, p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
	}

	page, err := svc.List(ctx, ListFilter{Category: "sarees", OnlyActive: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || len(page.Products) != 2 {
		t.Fatalf("expected 2 sarees, got total=%d len=%d", page.Total, len(page.Products))
	}

	page, err = svc.List(ctx, ListFilter{Search: "silk"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 1 || page.Products[0].Name != "Silk Saree" {
		t.Fatalf("unexpected search result: %+v", page)
	}
}

func TestUpdateProductPatchesOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductInput{Name: "Linen Shirt", Category: "shirts", BasePricePaise: 189900})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inactive := false
	newPrice := int64(159900)
	updated, err := svc.Update(ctx, created.ID, UpdateProductInput{BasePricePaise: &newPrice, IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Linen Shirt" || updated.Category != "shirts" {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.BasePricePaise != 159900 || updated.IsActive {
		t.Fatalf("patched fields not applied: %+v", updated)
	}
}

func TestGetUnknownProductReturnsNotFound(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.Get(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
