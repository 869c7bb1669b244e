package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/db/models"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

func newExpiryFixture(t *testing.T) (*gorm.DB, Job) {
	t.Helper()
	dsn := "file:expiry_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	job, err := NewOrderExpiryJob(OrderExpiryJobParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test"}),
		Repo:   orders.NewRepository(conn),
		Sweep:  config.SweepConfig{PendingOrderTTL: 24 * time.Hour},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	return conn, job
}

func seedOrderAt(t *testing.T, conn *gorm.DB, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:      uuid.New(),
		OrderNumber: "VST-TEST-" + uuid.NewString()[:6],
		Status:      status,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	// autoCreateTime stamps rows with now; backdate explicitly.
	if err := conn.Model(order).UpdateColumn("created_at", createdAt).Error; err != nil {
		t.Fatalf("backdate order: %v", err)
	}
	return order
}

func TestOrderExpirySweep(t *testing.T) {
	t.Parallel()

	conn, job := newExpiryFixture(t)
	ctx := context.Background()
	now := time.Now()

	stale := seedOrderAt(t, conn, enums.OrderStatusPending, now.Add(-48*time.Hour))
	fresh := seedOrderAt(t, conn, enums.OrderStatusPending, now.Add(-1*time.Hour))
	confirmed := seedOrderAt(t, conn, enums.OrderStatusConfirmed, now.Add(-72*time.Hour))

	if err := job.Run(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	assertStatus := func(id uuid.UUID, want enums.OrderStatus) {
		t.Helper()
		var got models.Order
		if err := conn.First(&got, "id = ?", id).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if got.Status != want {
			t.Fatalf("order %s: expected %s, got %s", id, want, got.Status)
		}
	}

	assertStatus(stale.ID, enums.OrderStatusCancelled)
	assertStatus(fresh.ID, enums.OrderStatusPending)
	assertStatus(confirmed.ID, enums.OrderStatusConfirmed)

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", stale.ID).Error; err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if reloaded.CancelledAt == nil {
		t.Fatal("cancelled_at not stamped")
	}
	if reloaded.Notes == nil || *reloaded.Notes == "" {
		t.Fatal("expiry note not recorded")
	}
}

func TestOrderExpirySweepEmptyQueue(t *testing.T) {
	t.Parallel()

	_, job := newExpiryFixture(t)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("sweep on empty table: %v", err)
	}
}
