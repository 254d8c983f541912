package service

import (
	"context"
	"log/slog"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/reconciler"
)

// Operator roles accepted on status-change requests
const (
	RoleAdmin      = "admin"
	RoleTransactor = "transactor"
)

// webhookService implements WebhookService over the matcher and order ledger
type webhookService struct {
	logger  *slog.Logger
	matcher *reconciler.Matcher
	ledger  *orders.Service
}

// NewWebhookService creates the webhook and operator-action service
func NewWebhookService(logger *slog.Logger, matcher *reconciler.Matcher, ledger *orders.Service) WebhookService {
	return &webhookService{
		logger:  logger,
		matcher: matcher,
		ledger:  ledger,
	}
}

func (s *webhookService) ProcessBankWebhook(ctx context.Context, req reconciler.ProcessRequest) (*banktx.Entry, *order.Order, error) {
	return s.matcher.ProcessPayment(ctx, req)
}

// UpdateOrderStatus applies an operator status change. Moving an order to
// completed or back to pending requires an admin or transactor; everything
// else requires an admin.
func (s *webhookService) UpdateOrderStatus(ctx context.Context, role, orderID string, status order.Status) (*order.Order, error) {
	if !roleAllows(role, status) {
		s.logger.Warn("Status change refused by role guard",
			"order_id", orderID,
			"role", role,
			"status", status)
		return nil, ErrRoleForbidden
	}
	return s.ledger.UpdateStatus(ctx, orderID, status)
}

func (s *webhookService) ResendNotification(ctx context.Context, orderID string) (*order.Order, error) {
	return s.ledger.ResendNotification(ctx, orderID)
}

func roleAllows(role string, status order.Status) bool {
	switch status {
	case order.StatusCompleted, order.StatusPending:
		return role == RoleAdmin || role == RoleTransactor
	default:
		return role == RoleAdmin
	}
}
