package failover

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/platform/storage"
)

// BankTxRepository routes bank transaction entry persistence between tiers
type BankTxRepository struct {
	resolver  *storage.Resolver
	primary   banktx.Repository
	secondary banktx.Repository
	logger    *slog.Logger
}

// NewBankTxRepository creates a failover-aware bank transaction repository
func NewBankTxRepository(logger *slog.Logger, resolver *storage.Resolver, primary, secondary banktx.Repository) banktx.Repository {
	return &BankTxRepository{
		resolver:  resolver,
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func banktxDomainError(err error) bool {
	var dup banktx.ErrDuplicateEntry
	return errors.Is(err, banktx.ErrEntryNotFound{}) || errors.As(err, &dup)
}

func (r *BankTxRepository) Create(ctx context.Context, entry *banktx.Entry) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.Create(ctx, entry); err != nil {
			if banktxDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			r.logger.Warn("Failing over entry create to secondary store",
				"portal_id", entry.PortalID,
				"portal_transaction_id", entry.PortalTransactionID)
			return r.secondary.Create(ctx, entry)
		}
		snapshot := *entry
		mirror(r.logger, "banktx.create", func(ctx context.Context) error {
			return r.secondary.Create(ctx, &snapshot)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.Create(ctx, entry)
	default:
		return storage.ErrUnavailable
	}
}

func (r *BankTxRepository) GetByPortalRef(ctx context.Context, portalID, portalTransactionID string) (*banktx.Entry, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		entry, err := r.primary.GetByPortalRef(ctx, portalID, portalTransactionID)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.GetByPortalRef(ctx, portalID, portalTransactionID)
		}
		return entry, nil
	case storage.TierSecondary:
		return r.secondary.GetByPortalRef(ctx, portalID, portalTransactionID)
	default:
		return nil, storage.ErrUnavailable
	}
}

func (r *BankTxRepository) Update(ctx context.Context, entry *banktx.Entry) error {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		if err := r.primary.Update(ctx, entry); err != nil {
			if banktxDomainError(err) {
				return err
			}
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.Update(ctx, entry)
		}
		snapshot := *entry
		mirror(r.logger, "banktx.update", func(ctx context.Context) error {
			// Secondary upserts on the natural key, so a mirror for an
			// entry it never saw still lands.
			return r.secondary.Create(ctx, &snapshot)
		})
		return nil
	case storage.TierSecondary:
		return r.secondary.Update(ctx, entry)
	default:
		return storage.ErrUnavailable
	}
}

func (r *BankTxRepository) ExistsProcessed(ctx context.Context, portalID, portalTransactionID string) (bool, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		exists, err := r.primary.ExistsProcessed(ctx, portalID, portalTransactionID)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.ExistsProcessed(ctx, portalID, portalTransactionID)
		}
		return exists, nil
	case storage.TierSecondary:
		return r.secondary.ExistsProcessed(ctx, portalID, portalTransactionID)
	default:
		return false, storage.ErrUnavailable
	}
}

func (r *BankTxRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	switch r.resolver.Tier() {
	case storage.TierPrimary:
		exists, err := r.primary.ExistsForOrder(ctx, orderID)
		if err != nil {
			r.resolver.ReportPrimaryFailure(err)
			return r.secondary.ExistsForOrder(ctx, orderID)
		}
		return exists, nil
	case storage.TierSecondary:
		return r.secondary.ExistsForOrder(ctx, orderID)
	default:
		return false, storage.ErrUnavailable
	}
}
