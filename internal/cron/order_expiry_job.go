package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/kt-tikotoys/storefront-backend/pkg/logger"
)

const (
	defaultPendingOrderTTL = 10 * 24 * time.Hour
	expiryBatchSize        = 200
)

type staleOrderCanceller interface {
	ExpireStalePending(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// OrderExpiryJobParams configure the pending order expiry job.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders staleOrderCanceller
	TTL    time.Duration
}

// NewOrderExpiryJob builds the job that cancels pending orders nobody paid
// attention to within the TTL.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders staleOrderCanceller
	ttl    time.Duration
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	cancelled, err := j.orders.ExpireStalePending(ctx, cutoff, expiryBatchSize)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"cancelled": cancelled,
	})
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	j.logg.Info(logCtx, "pending order expiry complete")
	return nil
}
