package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/platform/persistence"
)

// MerchantRepository implements merchant.Repository for PostgreSQL
type MerchantRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewMerchantRepository creates a new PostgreSQL merchant repository
func NewMerchantRepository(logger *slog.Logger, db *persistence.PostgresDB) merchant.Repository {
	return &MerchantRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// NewMerchantRepositoryWithQuerier wires an explicit querier; used by tests
func NewMerchantRepositoryWithQuerier(logger *slog.Logger, q persistence.Querier) merchant.Repository {
	return &MerchantRepository{
		querier: q,
		logger:  logger,
	}
}

// GetByPublicID retrieves a merchant account by its public id
func (r *MerchantRepository) GetByPublicID(ctx context.Context, publicID string) (*merchant.Account, error) {
	query := `
		SELECT public_id, api_key_hash, available_balance, current_balance,
			min_deposit, max_deposit, min_withdraw, max_withdraw,
			deposit_ip_whitelist, withdraw_ip_whitelist, enabled,
			created_at, updated_at
		FROM merchant_accounts
		WHERE public_id = $1
	`

	var acct merchant.Account
	err := r.querier.QueryRow(ctx, query, publicID).Scan(
		&acct.PublicID,
		&acct.APIKeyHash,
		&acct.AvailableBalance,
		&acct.CurrentBalance,
		&acct.MinDeposit,
		&acct.MaxDeposit,
		&acct.MinWithdraw,
		&acct.MaxWithdraw,
		&acct.DepositIPWhitelist,
		&acct.WithdrawIPWhitelist,
		&acct.Enabled,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, merchant.ErrAccountNotFound{PublicID: publicID}
		}
		r.logger.Error("Failed to get merchant account", "public_id", publicID, "error", err)
		return nil, fmt.Errorf("failed to get merchant account: %w", err)
	}

	return &acct, nil
}

// AdjustBalances applies signed deltas to the stored balances
func (r *MerchantRepository) AdjustBalances(ctx context.Context, publicID string, availableDelta, currentDelta int64) error {
	query := `
		UPDATE merchant_accounts
		SET available_balance = available_balance + $1,
			current_balance = current_balance + $2,
			updated_at = NOW()
		WHERE public_id = $3
	`

	result, err := r.querier.Exec(ctx, query, availableDelta, currentDelta, publicID)
	if err != nil {
		r.logger.Error("Failed to adjust merchant balances", "public_id", publicID, "error", err)
		return fmt.Errorf("failed to adjust merchant balances: %w", err)
	}
	if result.RowsAffected() == 0 {
		return merchant.ErrAccountNotFound{PublicID: publicID}
	}

	return nil
}
