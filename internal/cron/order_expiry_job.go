package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/vastralabs/vastra-backend/internal/orders"
	"github.com/vastralabs/vastra-backend/pkg/config"
	"github.com/vastralabs/vastra-backend/pkg/enums"
	"github.com/vastralabs/vastra-backend/pkg/logger"
)

const expirySweepBatchSize = 200

// OrderExpiryJobParams configure the pending-order expiry sweep.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Repo   orders.Repository
	Sweep  config.SweepConfig
}

// orderExpiryJob cancels prepaid orders whose payment never arrived. Pending
// orders hold no stock, so cancelling them is a pure status move.
type orderExpiryJob struct {
	logg *logger.Logger
	repo orders.Repository
	ttl  time.Duration
	now  func() time.Time
}

// NewOrderExpiryJob builds the sweep job.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	ttl := params.Sweep.PendingOrderTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &orderExpiryJob{
		logg: params.Logger,
		repo: params.Repo,
		ttl:  ttl,
		now:  time.Now,
	}, nil
}

func (j *orderExpiryJob) Name() string { return "order_expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.ttl)
	stale, err := j.repo.ListByStatusOlderThan(ctx, enums.OrderStatusPending, cutoff, expirySweepBatchSize)
	if err != nil {
		return fmt.Errorf("list stale pending orders: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	var errs error
	expired := 0
	for i := range stale {
		order := &stale[i]
		now := j.now()
		claimed, err := j.repo.ClaimStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, map[string]any{
			"cancelled_at": now,
			"notes":        "expired: payment not received",
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.OrderNumber, err))
			continue
		}
		if !claimed {
			// A payment landed between the list and the claim. Leave it alone.
			continue
		}
		expired++
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		j.logg.Info(orderCtx, "pending order expired")
	}

	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "order expiry sweep complete")
	return errs
}
