package failover

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/platform/storage"
)

// MerchantRepository routes merchant account persistence between tiers.
// Balance adjustments are mirrored as adjustments, not snapshots, so the
// secondary converges even when mirrors land out of order.
type MerchantRepository struct {
	resolver  *storage.Resolver
	primary   merchant.Repository
	secondary merchant.Repository
	logger    *slog.Logger
}

// NewMerchantRepository creates a failover-aware merchant repository
func NewMerchantRepository(logger *slog.Logger, resolver *storage.Resolver, primary, secondary merchant.Repository) merchant.Repository {
	return &MerchantRepository{
		resolver:  resolver,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (r *MerchantRepository) GetByPublicID(ctx context.Context, publicID string) (*merchant.Account, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		acct, err := r.primary.GetByPublicID(ctx, publicID)
		if err != nil && !errors.Is(err, merchant.ErrAccountNotFound{}) {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.GetByPublicID(ctx, publicID)
		}
		return acct, err
	case storage.TierSecondary:
		return r.secondary.GetByPublicID(ctx, publicID)
	default:
		return nil, storage.ErrUnavailable
	}
}

func (r *MerchantRepository) AdjustBalances(ctx context.Context, publicID string, availableDelta, currentDelta int64) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.AdjustBalances(ctx, publicID, availableDelta, currentDelta); err != nil {
			if errors.Is(err, merchant.ErrAccountNotFound{}) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			r.logger.Warn("Failing over balance adjustment to secondary store", "public_id", publicID)
			return r.secondary.AdjustBalances(ctx, publicID, availableDelta, currentDelta)
		}
		mirror(r.logger, "merchant.adjust_balances", func(ctx context.Context) error {
			return r.secondary.AdjustBalances(ctx, publicID, availableDelta, currentDelta)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.AdjustBalances(ctx, publicID, availableDelta, currentDelta)
	default:
		return storage.ErrUnavailable
	}
}
