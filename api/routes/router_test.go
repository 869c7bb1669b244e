package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/address"
	authsvc "github.com/vastralabs/vastra-backend/internal/auth"
	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/catalog"
	checkoutsvc "github.com/vastralabs/vastra-backend/internal/checkout"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/internal/payments"
	"github.com/vastralabs/vastra-backend/internal/tryon"
	"github.com/vastralabs/vastra-backend/internal/users"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/logger"
	"github.com/vastralabs/vastra-backend/pkg/razorpay"
)

type stubGateway struct{}

func (stubGateway) CreateOrder(_ context.Context, amountPaise int64, currency, receipt string, _ map[string]string) (*razorpay.GatewayOrder, error) {
	return &razorpay.GatewayOrder{
		ID:          "order_" + uuid.NewString()[:8],
		AmountPaise: amountPaise,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}, nil
}

func (stubGateway) KeyID() string { return "rzp_test_key" }

type stubVerifier struct{}

func (stubVerifier) VerifyPaymentSignature(_, _, signature string) bool {
	return signature == "valid-signature"
}

func (stubVerifier) VerifyWebhookSignature(_ []byte, signature string) bool {
	return signature == "valid-webhook-signature"
}

func testRouterConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "development", Port: "8080"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "vastra-test", ExpirationMinutes: 30},
		Password: config.PasswordConfig{
			ArgonMemoryKB: 16384, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32,
		},
		Checkout: config.CheckoutConfig{
			FreeShippingAbovePaise: 99900,
			FlatShippingFeePaise:   4900,
			TaxRate:                "0.18",
			OrderNumberPrefix:      "VST",
		},
	}
}

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.User{}, &models.Address{},
		&models.Product{}, &models.Variant{}, &models.StockRecord{},
		&models.CartItem{}, &models.Order{}, &models.OrderItem{}, &models.Payment{},
		&models.TryOnJob{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := testRouterConfig()
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	client := db.NewWithConn(conn)

	inv, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	catalogRepo := catalog.NewRepository(conn)
	catalogSvc, err := catalog.NewService(client, catalogRepo, inv)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, catalogRepo, inv)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	addrSvc, err := address.NewService(client, address.NewRepository(conn))
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(client, ordersRepo, inv)
	if err != nil {
		t.Fatalf("orders: %v", err)
	}
	checkoutSvc, err := checkoutsvc.NewService(
		client, cfg.Checkout, cartRepo, cart.NewResolver(catalogRepo, inv),
		ordersRepo, inv, addrSvc, stubGateway{}, logg, nil,
	)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	paymentsSvc, err := payments.NewService(client, ordersRepo, cartRepo, inv, stubVerifier{}, nil, logg, nil)
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	authService, err := authsvc.NewService(users.NewRepository(conn), cfg.JWT, cfg.Password)
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	tryonSvc, err := tryon.NewService(tryon.NewRepository(conn), catalogRepo, tryon.NullGenerator{}, logg)
	if err != nil {
		t.Fatalf("tryon: %v", err)
	}

	router := NewRouter(Deps{
		Config:          cfg,
		Logger:          logg,
		DB:              client,
		AuthService:     authService,
		CatalogService:  catalogSvc,
		CartService:     cartSvc,
		CheckoutService: checkoutSvc,
		PaymentsService: paymentsSvc,
		OrdersService:   ordersSvc,
		AddressService:  addrSvc,
		TryOnService:    tryonSvc,
		Inventory:       inv,
		WebhookVerifier: stubVerifier{},
	})
	return router, conn
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":    email,
		"password": "long-enough-pw",
		"name":     "Router Test",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if out.Data.Token == "" {
		t.Fatal("register returned no token")
	}
	return out.Data.Token
}

func seedCatalogRow(t *testing.T, conn *gorm.DB, pricePaise int64, stock int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	product := models.Product{Name: "Silk Saree", Category: "sarees", BasePricePaise: pricePaise, IsActive: true}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	variant := models.Variant{ProductID: product.ID, SKU: "SKU-" + uuid.NewString()[:4], Color: "red", Size: "M", PricePaise: pricePaise}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if err := conn.Create(&models.StockRecord{VariantID: variant.ID, QtyAvailable: stock, LowStockThreshold: 5}).Error; err != nil {
		t.Fatalf("seed stock: %v", err)
	}
	return product.ID, variant.ID
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/health/live", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("live: expected 200, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	for _, path := range []string{"/api/v1/cart", "/api/v1/orders", "/api/v1/addresses"} {
		w := doJSON(t, router, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestAdminRoutesRejectCustomers(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)
	token := registerAndLogin(t, router, "customer@example.com")

	w := doJSON(t, router, http.MethodGet, "/api/v1/admin/inventory/low-stock", token, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer on admin route, got %d", w.Code)
	}
}

func TestCartCheckoutCODFlow(t *testing.T) {
	t.Parallel()

	router, conn := newTestRouter(t)
	token := registerAndLogin(t, router, "shopper@example.com")
	_, variantID := seedCatalogRow(t, conn, 129900, 10)

	w := doJSON(t, router, http.MethodPost, "/api/v1/cart/items", token, map[string]any{
		"variant_id": variantID,
		"qty":        1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("add to cart: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/addresses", token, map[string]any{
		"line1":   "12 MG Road",
		"city":    "Bengaluru",
		"state":   "Karnataka",
		"pincode": "560001",
		"country": "India",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create address: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var addrOut struct {
		Data struct {
			Address models.Address `json:"address"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &addrOut); err != nil {
		t.Fatalf("decode address: %v", err)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout", token, map[string]any{
		"address_id":     addrOut.Data.Address.ID,
		"payment_method": "cod",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var checkoutOut struct {
		Data struct {
			Order struct {
				OrderNumber string `json:"order_number"`
				Status      string `json:"status"`
				TotalPaise  int64  `json:"total_paise"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &checkoutOut); err != nil {
		t.Fatalf("decode checkout: %v", err)
	}
	if checkoutOut.Data.Order.Status != "confirmed" {
		t.Fatalf("COD orders confirm immediately, got %s", checkoutOut.Data.Order.Status)
	}
	// 129900 + 18% tax, free shipping above threshold
	if got := checkoutOut.Data.Order.TotalPaise; got != 153282 {
		t.Fatalf("expected total 153282, got %d", got)
	}

	var stock models.StockRecord
	if err := conn.First(&stock, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("reload stock: %v", err)
	}
	if stock.QtyAvailable != 9 {
		t.Fatalf("expected stock 9 after COD checkout, got %d", stock.QtyAvailable)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/orders", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("orders list: expected 200, got %d", w.Code)
	}
}

func TestWebhookSignatureGate(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	payload := []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_x","order_id":"order_x"}}}}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "forged")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("forged webhook: expected 400, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", "valid-webhook-signature")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	// Authentic webhook for an unknown order still reconciles to not-found.
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown order webhook: expected 404, got %d: %s", w.Code, w.Body.String())
	}
}
