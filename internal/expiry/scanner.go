// Package expiry fails deposit orders whose payment window elapsed without a
// matched payment. A scan never races the reconciler into a wrong terminal
// state: orders with recorded bank entries are left for reconciliation.
package expiry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
)

// monitorTTL keeps recently expired order ids queryable for ops tooling
const monitorTTL = 24 * time.Hour

// Notifier enqueues the merchant callback for an expired order
type Notifier interface {
	EnqueueOrderNotification(o *order.Order)
}

// Scanner periodically fails expired processing deposits
type Scanner struct {
	logger   *slog.Logger
	orders   order.Repository
	entries  banktx.Repository
	notifier Notifier
	redis    *redis.Client
	interval time.Duration
	batch    int
	now      func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScanner creates the expiry scanner. The Redis client is optional and
// only feeds the expired-order monitoring index.
func NewScanner(
	logger *slog.Logger,
	orders order.Repository,
	entries banktx.Repository,
	notifier Notifier,
	rdb *redis.Client,
	interval time.Duration,
	batch int,
) *Scanner {
	return &Scanner{
		logger:   logger,
		orders:   orders,
		entries:  entries,
		notifier: notifier,
		redis:    rdb,
		interval: interval,
		batch:    batch,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the periodic scan loop
func (s *Scanner) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.Scan(ctx)
			}
		}
	}()
}

// Stop terminates the scan loop and waits for it to exit
func (s *Scanner) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// Scan fails one batch of expired deposits and returns how many it moved
func (s *Scanner) Scan(ctx context.Context) int {
	expired, err := s.orders.FindExpiredProcessing(ctx, s.now(), s.batch)
	if err != nil {
		s.logger.Error("Failed to scan for expired orders", "error", err)
		return 0
	}

	failed := 0
	for _, o := range expired {
		if s.expire(ctx, o) {
			failed++
		}
	}

	if failed > 0 {
		s.logger.Info("Expiry scan completed", "examined", len(expired), "failed", failed)
	}
	return failed
}

func (s *Scanner) expire(ctx context.Context, o *order.Order) bool {
	linked, err := s.entries.ExistsForOrder(ctx, o.OrderID)
	if err != nil {
		s.logger.Error("Failed to check entries for expiring order", "order_id", o.OrderID, "error", err)
		return false
	}
	if linked {
		// A payment touched this order; reconciliation owns its outcome.
		s.logger.Warn("Skipping expiry for order with recorded entries", "order_id", o.OrderID)
		return false
	}

	if err := o.Transition(order.StatusFailed); err != nil {
		s.logger.Warn("Expired order no longer transitionable", "order_id", o.OrderID, "status", o.Status)
		return false
	}
	if err := s.orders.Update(ctx, o); err != nil {
		s.logger.Error("Failed to fail expired order", "order_id", o.OrderID, "error", err)
		return false
	}

	s.logger.Info("Order expired", "order_id", o.OrderID, "amount", o.Amount)
	s.recordExpiry(ctx, o)

	if s.notifier != nil {
		s.notifier.EnqueueOrderNotification(o)
	}
	return true
}

// recordExpiry feeds the monitoring index; failures never affect the scan
func (s *Scanner) recordExpiry(ctx context.Context, o *order.Order) {
	if s.redis == nil {
		return
	}
	key := "expired:" + o.OrderID
	if err := s.redis.Set(ctx, key, s.now().Format(time.RFC3339), monitorTTL).Err(); err != nil {
		s.logger.Warn("Failed to record expired order in monitoring index", "order_id", o.OrderID, "error", err)
	}
}
