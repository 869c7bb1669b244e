package payments

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/cart"
	"github.com/vastralabs/vastra-backend/internal/inventory"
	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/db"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	pkgerrors "github.com/vastralabs/vastra-backend/pkg/errors"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

type staticVerifier struct {
	valid string
}

func (v *staticVerifier) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == v.valid
}

// memoryGuard is an in-process stand-in for the redis replay guard.
type memoryGuard struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{data: map[string]string{}}
}

func (g *memoryGuard) Get(_ context.Context, key string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (g *memoryGuard) Set(_ context.Context, key string, value any, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.data[key] = "set"
	return nil
}

func (g *memoryGuard) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.data[key]; exists {
		return false, nil
	}
	g.data[key] = "set"
	return true, nil
}

func (g *memoryGuard) IdempotencyKey(scope, id string) string {
	return "vastra:idempotency:" + scope + ":" + id
}

func (g *memoryGuard) Del(_ context.Context, keys ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range keys {
		delete(g.data, k)
	}
	return nil
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	guard    *memoryGuard
	verifier *staticVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Payment{}, &models.StockRecord{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	inv, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	guard := newMemoryGuard()
	verifier := &staticVerifier{valid: "good-signature"}
	svc, err := NewService(
		db.NewWithConn(conn),
		orders.NewRepository(conn),
		cart.NewRepository(conn),
		inv,
		verifier,
		guard,
		logger.New(logger.Options{ServiceName: "test"}),
		nil,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	return &fixture{conn: conn, svc: svc, guard: guard, verifier: verifier}
}

type seededOrder struct {
	order    *models.Order
	variants []uuid.UUID
}

// seedPendingOrder creates a pending razorpay order with one cart line per
// stock quantity entry and a matching pending payment row.
func (f *fixture) seedPendingOrder(t *testing.T, gatewayOrderID string, stockQty ...int) seededOrder {
	t.Helper()
	user := uuid.New()
	order := &models.Order{
		UserID:        user,
		OrderNumber:   "VST-20260829-" + uuid.NewString()[:6],
		Status:        enums.OrderStatusPending,
		SubtotalPaise: 129900,
		TaxPaise:      23382,
		TotalPaise:    153282,
		Currency:      enums.CurrencyINR,
		PaymentMethod: enums.PaymentMethodRazorpay,
		PaymentRef:    &gatewayOrderID,
		AddressID:     uuid.New(),
	}
	if err := f.conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	var variants []uuid.UUID
	for _, qty := range stockQty {
		variant := uuid.New()
		variants = append(variants, variant)
		item := models.OrderItem{
			OrderID:        order.ID,
			VariantID:      variant,
			ProductID:      uuid.New(),
			ProductName:    "Item",
			SKU:            "SKU-" + uuid.NewString()[:4],
			Quantity:       1,
			UnitPricePaise: 129900,
			LineTotalPaise: 129900,
		}
		if err := f.conn.Create(&item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
		if err := f.conn.Create(&models.StockRecord{VariantID: variant, QtyAvailable: qty, LowStockThreshold: 5}).Error; err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	payment := models.Payment{
		OrderID:     order.ID,
		AmountPaise: order.TotalPaise,
		Currency:    enums.CurrencyINR,
		Method:      enums.PaymentMethodRazorpay,
		Status:      enums.PaymentStatusPending,
	}
	if err := f.conn.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	if err := f.conn.Create(&models.CartItem{UserID: user, VariantID: uuid.New(), ProductID: uuid.New(), Quantity: 1}).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
	return seededOrder{order: order, variants: variants}
}

func confirmInput(gatewayOrderID string) ConfirmInput {
	return ConfirmInput{
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: "pay_" + strings.TrimPrefix(gatewayOrderID, "order_"),
		Signature:        "good-signature",
	}
}

func TestConfirmCommitsOrderPaymentStockAndCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_happy", 5)

	view, err := f.svc.Confirm(ctx, confirmInput("order_happy"))
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", view.Status)
	}
	if view.ConfirmedAt == nil {
		t.Fatal("expected confirmed_at set")
	}

	var payment models.Payment
	if err := f.conn.First(&payment, "order_id = ?", seeded.order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected completed payment, got %s", payment.Status)
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != "pay_happy" {
		t.Fatalf("unexpected gateway payment id: %v", payment.GatewayPaymentID)
	}

	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 4 {
		t.Fatalf("expected stock 4, got %d", stock.QtyAvailable)
	}

	var cartCount int64
	if err := f.conn.Model(&models.CartItem{}).Where("user_id = ?", seeded.order.UserID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("expected cart cleared, got %d items", cartCount)
	}
}

func TestConfirmIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_idem", 5)

	if _, err := f.svc.Confirm(ctx, confirmInput("order_idem")); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// Same delivery again: success-shaped no-op, no second decrement.
	view, err := f.svc.Confirm(ctx, confirmInput("order_idem"))
	if err != nil {
		t.Fatalf("replay confirm: %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed on replay, got %s", view.Status)
	}

	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 4 {
		t.Fatalf("stock decremented twice: %d", stock.QtyAvailable)
	}
}

func TestConfirmRejectsForgedSignatureWithoutSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_forged", 5)

	input := confirmInput("order_forged")
	input.Signature = "forged"
	_, err := f.svc.Confirm(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSignature {
		t.Fatalf("expected signature error, got %v", err)
	}

	var order models.Order
	if err := f.conn.First(&order, "id = ?", seeded.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("forged confirmation mutated order: %s", order.Status)
	}
	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 5 {
		t.Fatalf("forged confirmation touched stock: %d", stock.QtyAvailable)
	}
}

func TestConfirmUnknownPaymentRef(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.seedPendingOrder(t, "order_known", 5)

	_, err := f.svc.Confirm(context.Background(), confirmInput("order_unknown"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmStockRaceRollsBackEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	// Two lines: first has stock, second was sold out after the order was placed.
	seeded := f.seedPendingOrder(t, "order_race", 5, 0)

	_, err := f.svc.Confirm(ctx, confirmInput("order_race"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}

	// Whole transaction rolled back: order still pending, first line's stock
	// untouched, payment still pending, cart intact.
	var order models.Order
	if err := f.conn.First(&order, "id = ?", seeded.order.ID).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending after rollback, got %s", order.Status)
	}
	if order.Notes == nil || !strings.Contains(*order.Notes, "manual review") {
		t.Fatalf("expected review note, got %v", order.Notes)
	}

	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 5 {
		t.Fatalf("partial decrement leaked: %d", stock.QtyAvailable)
	}

	var payment models.Payment
	if err := f.conn.First(&payment, "order_id = ?", seeded.order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusPending {
		t.Fatalf("payment mutated despite rollback: %s", payment.Status)
	}

	var cartCount int64
	if err := f.conn.Model(&models.CartItem{}).Where("user_id = ?", seeded.order.UserID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 1 {
		t.Fatalf("cart cleared despite rollback: %d", cartCount)
	}
}

func TestConfirmCancelledOrderIsRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_cxl", 5)
	if err := f.conn.Model(&models.Order{}).Where("id = ?", seeded.order.ID).Update("status", enums.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	_, err := f.svc.Confirm(ctx, confirmInput("order_cxl"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestConfirmInFlightGuardReturnsIdempotencyError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedPendingOrder(t, "order_inflight", 5)

	input := confirmInput("order_inflight")
	// Simulate a first delivery that has claimed the guard but not committed.
	key := f.guard.IdempotencyKey(guardScope, input.GatewayPaymentID)
	if _, err := f.guard.SetNX(ctx, key, "x", time.Minute); err != nil {
		t.Fatalf("prime guard: %v", err)
	}

	_, err := f.svc.Confirm(ctx, input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIdempotency {
		t.Fatalf("expected idempotency error, got %v", err)
	}
}

func TestConfirmValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Confirm(context.Background(), ConfirmInput{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmFailureReleasesGuardForRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_retry", 0)

	// First attempt hits the stock race and fails.
	_, err := f.svc.Confirm(ctx, confirmInput("order_retry"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeIntegrity {
		t.Fatalf("expected integrity error, got %v", err)
	}

	// Stock is replenished; the retry must not be blocked by a stale guard.
	if err := f.conn.Model(&models.StockRecord{}).
		Where("variant_id = ?", seeded.variants[0]).
		Update("qty_available", 3).Error; err != nil {
		t.Fatalf("restock: %v", err)
	}

	view, err := f.svc.Confirm(ctx, confirmInput("order_retry"))
	if err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed on retry, got %s", view.Status)
	}
}

func TestConfirmFromWebhookCommitsWithoutPerPaymentSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_hook", 5)

	view, err := f.svc.ConfirmFromWebhook(ctx, WebhookConfirmInput{
		GatewayOrderID:   "order_hook",
		GatewayPaymentID: "pay_hook",
	})
	if err != nil {
		t.Fatalf("webhook confirm: %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", view.Status)
	}

	var payment models.Payment
	if err := f.conn.First(&payment, "order_id = ?", seeded.order.ID).Error; err != nil {
		t.Fatalf("load payment: %v", err)
	}
	if payment.Status != enums.PaymentStatusCompleted {
		t.Fatalf("payment not completed: %s", payment.Status)
	}
	if payment.GatewaySignature != nil {
		t.Fatalf("webhook confirmation must not record a signature, got %q", *payment.GatewaySignature)
	}
	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 4 {
		t.Fatalf("expected stock 4, got %d", stock.QtyAvailable)
	}
}

func TestConfirmFromWebhookAfterCheckoutVerifyIsNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_both", 5)

	if _, err := f.svc.Confirm(ctx, confirmInput("order_both")); err != nil {
		t.Fatalf("browser confirm: %v", err)
	}

	// The gateway delivers its capture webhook after the browser already
	// verified. Same payment id, so the replay gate absorbs it.
	view, err := f.svc.ConfirmFromWebhook(ctx, WebhookConfirmInput{
		GatewayOrderID:   "order_both",
		GatewayPaymentID: "pay_both",
	})
	if err != nil {
		t.Fatalf("webhook replay: %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed on replay, got %s", view.Status)
	}

	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 4 {
		t.Fatalf("stock decremented twice: %d", stock.QtyAvailable)
	}
}

func TestConfirmFromWebhookValidatesInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.ConfirmFromWebhook(context.Background(), WebhookConfirmInput{GatewayOrderID: "order_x"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// claimRacingRepo lets a concurrent confirmation land just before the first
// pending→confirmed claim, so the caller under test loses the rows-affected
// race.
type claimRacingRepo struct {
	orders.Repository
	conn  *gorm.DB
	raced *bool
}

func (r *claimRacingRepo) WithTx(tx *gorm.DB) orders.Repository {
	return &claimRacingRepo{Repository: r.Repository.WithTx(tx), conn: r.conn, raced: r.raced}
}

func (r *claimRacingRepo) ClaimStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, patch map[string]any) (bool, error) {
	if !*r.raced {
		*r.raced = true
		err := r.conn.Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", enums.OrderStatusConfirmed).Error
		if err != nil {
			return false, err
		}
	}
	return r.Repository.ClaimStatus(ctx, orderID, from, to, patch)
}

func TestConfirmLosingStatusClaimIsSuccessNoOp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	seeded := f.seedPendingOrder(t, "order_claim_race", 5)

	inv, err := inventory.NewService(inventory.NewRepository(f.conn))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	raced := false
	racing := &claimRacingRepo{Repository: orders.NewRepository(f.conn), conn: f.conn, raced: &raced}
	svc, err := NewService(
		db.NewWithConn(f.conn),
		racing,
		cart.NewRepository(f.conn),
		inv,
		f.verifier,
		nil, // no guard: both callers reach the claim
		logger.New(logger.Options{ServiceName: "test"}),
		nil,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	view, err := svc.Confirm(ctx, confirmInput("order_claim_race"))
	if err != nil {
		t.Fatalf("losing the claim must resolve as a replay, got %v", err)
	}
	if view.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed view, got %s", view.Status)
	}
	if !raced {
		t.Fatal("concurrent confirmation never ran")
	}

	// The loser's transaction rolled back, so it must not have decremented.
	var stock models.StockRecord
	if err := f.conn.First(&stock, "variant_id = ?", seeded.variants[0]).Error; err != nil {
		t.Fatalf("load stock: %v", err)
	}
	if stock.QtyAvailable != 5 {
		t.Fatalf("losing caller touched stock: %d", stock.QtyAvailable)
	}
}

func TestConfirmClaimLostToCancellationIsConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.seedPendingOrder(t, "order_claim_cancel", 5)

	inv, err := inventory.NewService(inventory.NewRepository(f.conn))
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	raced := false
	racing := &cancelRacingRepo{claimRacingRepo{Repository: orders.NewRepository(f.conn), conn: f.conn, raced: &raced}}
	svc, err := NewService(
		db.NewWithConn(f.conn),
		racing,
		cart.NewRepository(f.conn),
		inv,
		f.verifier,
		nil,
		logger.New(logger.Options{ServiceName: "test"}),
		nil,
	)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	_, err = svc.Confirm(ctx, confirmInput("order_claim_cancel"))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict when a cancel wins the claim, got %v", err)
	}
}

// cancelRacingRepo is claimRacingRepo with a cancellation winning instead.
type cancelRacingRepo struct {
	claimRacingRepo
}

func (r *cancelRacingRepo) WithTx(tx *gorm.DB) orders.Repository {
	return &cancelRacingRepo{claimRacingRepo{Repository: r.Repository.WithTx(tx), conn: r.conn, raced: r.raced}}
}

func (r *cancelRacingRepo) ClaimStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, patch map[string]any) (bool, error) {
	if !*r.raced {
		*r.raced = true
		err := r.conn.Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("status", enums.OrderStatusCancelled).Error
		if err != nil {
			return false, err
		}
	}
	return r.Repository.ClaimStatus(ctx, orderID, from, to, patch)
}
