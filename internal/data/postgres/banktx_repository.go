package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/platform/persistence"
)

// BankTxRepository implements banktx.Repository for PostgreSQL
type BankTxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBankTxRepository creates a new PostgreSQL bank transaction repository
func NewBankTxRepository(logger *slog.Logger, db *persistence.PostgresDB) banktx.Repository {
	return &BankTxRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// NewBankTxRepositoryWithQuerier wires an explicit querier; used by mirror
// writes and tests.
func NewBankTxRepositoryWithQuerier(logger *slog.Logger, q persistence.Querier) banktx.Repository {
	return &BankTxRepository{
		querier: q,
		logger:  logger,
	}
}

const bankTxColumns = `
	entry_id, portal_id, portal_transaction_id, order_id, amount,
	balance_after, status, raw_payload, notes, created_at, processed_at,
	settled_at
`

// Create stores a new entry; mirror replays upsert on the natural key
func (r *BankTxRepository) Create(ctx context.Context, entry *banktx.Entry) error {
	query := `
		INSERT INTO bank_transaction_entries (` + bankTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (portal_id, portal_transaction_id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			status = EXCLUDED.status,
			notes = EXCLUDED.notes,
			processed_at = EXCLUDED.processed_at,
			settled_at = EXCLUDED.settled_at
	`

	_, err := r.querier.Exec(ctx, query,
		entry.EntryID,
		entry.PortalID,
		entry.PortalTransactionID,
		nullString(entry.OrderID),
		entry.Amount,
		entry.BalanceAfter,
		string(entry.Status),
		nullString(entry.RawPayload),
		entry.Notes,
		entry.CreatedAt,
		entry.ProcessedAt,
		entry.SettledAt,
	)
	if err != nil {
		r.logger.Error("Failed to create bank transaction entry",
			"portal_id", entry.PortalID,
			"portal_transaction_id", entry.PortalTransactionID,
			"error", err)
		return fmt.Errorf("failed to create bank transaction entry: %w", err)
	}

	return nil
}

// GetByPortalRef returns nil, nil when the natural key is unseen
func (r *BankTxRepository) GetByPortalRef(ctx context.Context, portalID, portalTransactionID string) (*banktx.Entry, error) {
	query := `SELECT ` + bankTxColumns + `
		FROM bank_transaction_entries
		WHERE portal_id = $1 AND portal_transaction_id = $2`

	var (
		entry      banktx.Entry
		orderID    *string
		status     string
		rawPayload *string
	)
	err := r.querier.QueryRow(ctx, query, portalID, portalTransactionID).Scan(
		&entry.EntryID,
		&entry.PortalID,
		&entry.PortalTransactionID,
		&orderID,
		&entry.Amount,
		&entry.BalanceAfter,
		&status,
		&rawPayload,
		&entry.Notes,
		&entry.CreatedAt,
		&entry.ProcessedAt,
		&entry.SettledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get bank transaction entry",
			"portal_id", portalID,
			"portal_transaction_id", portalTransactionID,
			"error", err)
		return nil, fmt.Errorf("failed to get bank transaction entry: %w", err)
	}

	entry.OrderID = deref(orderID)
	entry.Status = banktx.Status(status)
	entry.RawPayload = deref(rawPayload)

	return &entry, nil
}

// Update replaces the mutable entry fields
func (r *BankTxRepository) Update(ctx context.Context, entry *banktx.Entry) error {
	query := `
		UPDATE bank_transaction_entries
		SET order_id = $1, status = $2, notes = $3, processed_at = $4, settled_at = $5
		WHERE portal_id = $6 AND portal_transaction_id = $7
	`

	result, err := r.querier.Exec(ctx, query,
		nullString(entry.OrderID),
		string(entry.Status),
		entry.Notes,
		entry.ProcessedAt,
		entry.SettledAt,
		entry.PortalID,
		entry.PortalTransactionID,
	)
	if err != nil {
		r.logger.Error("Failed to update bank transaction entry",
			"portal_id", entry.PortalID,
			"portal_transaction_id", entry.PortalTransactionID,
			"error", err)
		return fmt.Errorf("failed to update bank transaction entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return banktx.ErrEntryNotFound{
			PortalID:            entry.PortalID,
			PortalTransactionID: entry.PortalTransactionID,
		}
	}

	return nil
}

// ExistsProcessed reports whether the pair was already processed to completion
func (r *BankTxRepository) ExistsProcessed(ctx context.Context, portalID, portalTransactionID string) (bool, error) {
	query := `SELECT EXISTS(
		SELECT 1 FROM bank_transaction_entries
		WHERE portal_id = $1 AND portal_transaction_id = $2 AND status = $3
	)`

	var exists bool
	err := r.querier.QueryRow(ctx, query, portalID, portalTransactionID, string(banktx.StatusProcessed)).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check processed bank transaction",
			"portal_id", portalID,
			"portal_transaction_id", portalTransactionID,
			"error", err)
		return false, fmt.Errorf("failed to check processed bank transaction: %w", err)
	}

	return exists, nil
}

// ExistsForOrder reports whether any entry references the order id
func (r *BankTxRepository) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM bank_transaction_entries WHERE order_id = $1)`

	var exists bool
	err := r.querier.QueryRow(ctx, query, orderID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check entries for order", "order_id", orderID, "error", err)
		return false, fmt.Errorf("failed to check entries for order: %w", err)
	}

	return exists, nil
}
