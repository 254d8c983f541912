package failover

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/platform/storage"
)

// OrderRepository routes order persistence between the primary and secondary
// stores according to the resolver's current view of tier health.
type OrderRepository struct {
	resolver  *storage.Resolver
	primary   order.Repository
	secondary order.Repository
	logger    *slog.Logger
}

// NewOrderRepository creates a failover-aware order repository
func NewOrderRepository(logger *slog.Logger, resolver *storage.Resolver, primary, secondary order.Repository) order.Repository {
	return &OrderRepository{
		resolver:  resolver,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// orderDomainError reports whether the error is a business outcome rather
// than a store failure. Business outcomes never trigger failover.
func orderDomainError(err error) bool {
	var dup order.ErrDuplicateMerchantOrderID
	return errors.Is(err, order.ErrOrderNotFound{}) || errors.As(err, &dup)
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.Create(ctx, o); err != nil {
			if orderDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			r.logger.Warn("Failing over order create to secondary store", "order_id", o.OrderID)
			return r.secondary.Create(ctx, o)
		}
		snapshot := *o
		mirror(r.logger, "order.create", func(ctx context.Context) error {
			return r.secondary.Create(ctx, &snapshot)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.Create(ctx, o)
	default:
		return storage.ErrUnavailable
	}
}

func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		o, err := r.primary.GetByOrderID(ctx, orderID)
		if err != nil && !orderDomainError(err) {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.GetByOrderID(ctx, orderID)
		}
		return o, err
	case storage.TierSecondary:
		return r.secondary.GetByOrderID(ctx, orderID)
	default:
		return nil, storage.ErrUnavailable
	}
}

func (r *OrderRepository) GetByMerchantOrderID(ctx context.Context, merchantPublicID, merchantOrderID string) (*order.Order, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		o, err := r.primary.GetByMerchantOrderID(ctx, merchantPublicID, merchantOrderID)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.GetByMerchantOrderID(ctx, merchantPublicID, merchantOrderID)
		}
		return o, nil
	case storage.TierSecondary:
		return r.secondary.GetByMerchantOrderID(ctx, merchantPublicID, merchantOrderID)
	default:
		return nil, storage.ErrUnavailable
	}
}

func (r *OrderRepository) ListByMerchant(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		orders, err := r.primary.ListByMerchant(ctx, merchantPublicID, orderType, limit, offset)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.ListByMerchant(ctx, merchantPublicID, orderType, limit, offset)
		}
		return orders, nil
	case storage.TierSecondary:
		return r.secondary.ListByMerchant(ctx, merchantPublicID, orderType, limit, offset)
	default:
		return nil, storage.ErrUnavailable
	}
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.Update(ctx, o); err != nil {
			if orderDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			r.logger.Warn("Failing over order update to secondary store", "order_id", o.OrderID)
			return r.secondary.Update(ctx, o)
		}
		snapshot := *o
		mirror(r.logger, "order.update", func(ctx context.Context) error {
			// Upsert so a mirror for an order the secondary never saw still lands
			return r.secondary.Create(ctx, &snapshot)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.Update(ctx, o)
	default:
		return storage.ErrUnavailable
	}
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.UpdateStatus(ctx, orderID, status); err != nil {
			if orderDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.UpdateStatus(ctx, orderID, status)
		}
		mirror(r.logger, "order.update_status", func(ctx context.Context) error {
			return r.secondary.UpdateStatus(ctx, orderID, status)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.UpdateStatus(ctx, orderID, status)
	default:
		return storage.ErrUnavailable
	}
}

func (r *OrderRepository) MarkNotified(ctx context.Context, orderID string) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.MarkNotified(ctx, orderID); err != nil {
			if orderDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.MarkNotified(ctx, orderID)
		}
		mirror(r.logger, "order.mark_notified", func(ctx context.Context) error {
			return r.secondary.MarkNotified(ctx, orderID)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.MarkNotified(ctx, orderID)
	default:
		return storage.ErrUnavailable
	}
}

func (r *OrderRepository) FindExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]*order.Order, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		orders, err := r.primary.FindExpiredProcessing(ctx, now, limit)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.FindExpiredProcessing(ctx, now, limit)
		}
		return orders, nil
	case storage.TierSecondary:
		return r.secondary.FindExpiredProcessing(ctx, now, limit)
	default:
		return nil, storage.ErrUnavailable
	}
}
