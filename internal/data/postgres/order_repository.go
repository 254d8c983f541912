// Package postgres provides secondary-store implementations of the domain
// repositories. The relational store is the disaster-recovery backup: it is
// never the system of record while the primary document store is healthy.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/platform/persistence"
)

// OrderRepository implements order.Repository for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Repository {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// NewOrderRepositoryWithQuerier wires an explicit querier; used by mirror
// writes and tests.
func NewOrderRepositoryWithQuerier(logger *slog.Logger, q persistence.Querier) order.Repository {
	return &OrderRepository{
		querier: q,
		logger:  logger,
	}
}

const orderColumns = `
	order_id, merchant_order_id, merchant_public_id, order_type, status,
	amount, paid_amount, unpaid_amount, bank_id, qr_payload, bank_code,
	bank_receive_number, bank_receive_owner_name, created_ip, is_suspicious,
	callback_url, notification_sent, created_at, updated_at, expires_at
`

// Create stores a new order. Mirror writes for orders already present are
// upserts so a replayed mirror never fails on the unique key.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.MerchantOrderID != "" {
		existing, err := r.GetByMerchantOrderID(ctx, o.MerchantPublicID, o.MerchantOrderID)
		if err != nil {
			return fmt.Errorf("failed to check for existing merchant order id: %w", err)
		}
		if existing != nil && existing.OrderID != o.OrderID {
			return order.ErrDuplicateMerchantOrderID{MerchantOrderID: o.MerchantOrderID}
		}
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (order_id) DO UPDATE SET
			status = EXCLUDED.status,
			paid_amount = EXCLUDED.paid_amount,
			unpaid_amount = EXCLUDED.unpaid_amount,
			notification_sent = EXCLUDED.notification_sent,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.querier.Exec(ctx, query,
		o.OrderID,
		nullString(o.MerchantOrderID),
		o.MerchantPublicID,
		string(o.Type),
		string(o.Status),
		o.Amount,
		o.PaidAmount,
		o.UnpaidAmount,
		nullString(o.BankID),
		nullString(o.QRPayload),
		nullString(o.BankCode),
		nullString(o.BankReceiveNum),
		nullString(o.BankReceiveOwner),
		o.CreatedIP,
		o.IsSuspicious,
		o.CallbackURL,
		o.NotificationSent,
		o.CreatedAt,
		o.UpdatedAt,
		o.ExpiresAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", "order_id", o.OrderID, "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByOrderID retrieves an order by its id
func (r *OrderRepository) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	o, err := r.scanOrder(r.querier.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: orderID}
		}
		r.logger.Error("Failed to get order", "order_id", orderID, "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return o, nil
}

// GetByMerchantOrderID returns nil, nil when the merchant-supplied id is unused
func (r *OrderRepository) GetByMerchantOrderID(ctx context.Context, merchantPublicID, merchantOrderID string) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_public_id = $1 AND merchant_order_id = $2`

	o, err := r.scanOrder(r.querier.QueryRow(ctx, query, merchantPublicID, merchantOrderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get order by merchant order id",
			"merchant_order_id", merchantOrderID, "error", err)
		return nil, fmt.Errorf("failed to get order by merchant order id: %w", err)
	}

	return o, nil
}

// ListByMerchant retrieves paginated orders for a merchant, newest first
func (r *OrderRepository) ListByMerchant(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE merchant_public_id = $1`
	args := []interface{}{merchantPublicID}
	if orderType != "" {
		query += ` AND order_type = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4`
		args = append(args, string(orderType), limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list orders", "merchant_public_id", merchantPublicID, "error", err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order rows: %w", err)
	}

	return orders, nil
}

// Update replaces the mutable order fields
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders
		SET status = $1, paid_amount = $2, unpaid_amount = $3,
			notification_sent = $4, updated_at = $5
		WHERE order_id = $6
	`

	result, err := r.querier.Exec(ctx, query,
		string(o.Status), o.PaidAmount, o.UnpaidAmount, o.NotificationSent, o.UpdatedAt, o.OrderID)
	if err != nil {
		r.logger.Error("Failed to update order", "order_id", o.OrderID, "error", err)
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{OrderID: o.OrderID}
	}

	return nil
}

// UpdateStatus sets the order status and refreshes the updated timestamp
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	query := `UPDATE orders SET status = $1, updated_at = NOW() WHERE order_id = $2`

	result, err := r.querier.Exec(ctx, query, string(status), orderID)
	if err != nil {
		r.logger.Error("Failed to update order status", "order_id", orderID, "error", err)
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{OrderID: orderID}
	}

	return nil
}

// MarkNotified flags the order's callback as delivered
func (r *OrderRepository) MarkNotified(ctx context.Context, orderID string) error {
	query := `UPDATE orders SET notification_sent = TRUE, updated_at = NOW() WHERE order_id = $1`

	result, err := r.querier.Exec(ctx, query, orderID)
	if err != nil {
		r.logger.Error("Failed to mark order notified", "order_id", orderID, "error", err)
		return fmt.Errorf("failed to mark order notified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{OrderID: orderID}
	}

	return nil
}

// FindExpiredProcessing returns deposit orders still processing past their window
func (r *OrderRepository) FindExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + `
		FROM orders
		WHERE order_type = $1 AND status = $2 AND expires_at < $3
		ORDER BY expires_at ASC
		LIMIT $4`

	rows, err := r.querier.Query(ctx, query, string(order.TypeDeposit), string(order.StatusProcessing), now, limit)
	if err != nil {
		r.logger.Error("Failed to find expired orders", "error", err)
		return nil, fmt.Errorf("failed to find expired orders: %w", err)
	}
	defer rows.Close()

	var orders []*order.Order
	for rows.Next() {
		o, err := r.scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expired order rows: %w", err)
	}

	return orders, nil
}

func (r *OrderRepository) scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o                order.Order
		orderType        string
		status           string
		merchantOrderID  *string
		bankID           *string
		qrPayload        *string
		bankCode         *string
		bankReceiveNum   *string
		bankReceiveOwner *string
	)

	err := row.Scan(
		&o.OrderID,
		&merchantOrderID,
		&o.MerchantPublicID,
		&orderType,
		&status,
		&o.Amount,
		&o.PaidAmount,
		&o.UnpaidAmount,
		&bankID,
		&qrPayload,
		&bankCode,
		&bankReceiveNum,
		&bankReceiveOwner,
		&o.CreatedIP,
		&o.IsSuspicious,
		&o.CallbackURL,
		&o.NotificationSent,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	o.Type = order.Type(orderType)
	o.Status = order.Status(status)
	o.MerchantOrderID = deref(merchantOrderID)
	o.BankID = deref(bankID)
	o.QRPayload = deref(qrPayload)
	o.BankCode = deref(bankCode)
	o.BankReceiveNum = deref(bankReceiveNum)
	o.BankReceiveOwner = deref(bankReceiveOwner)

	return &o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
