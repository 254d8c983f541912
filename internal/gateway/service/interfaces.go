// Package service holds the gateway-facing application services: merchant
// authentication, order intake, payment validation, and webhook processing.
package service

import (
	"context"
	"errors"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/ratelimit"
	"github.com/vietpay-gateway/internal/reconciler"
)

// Request-level errors surfaced to the HTTP layer
var (
	ErrNonPublicIP   = errors.New("source IP is not publicly routable")
	ErrRoleForbidden = errors.New("operator role does not permit this change")
)

// CreateResult is the per-order outcome of a bulk submission
type CreateResult struct {
	Order *order.Order
	Err   error
}

// OrderService handles merchant order intake and listing
type OrderService interface {
	// Authenticate resolves and authenticates the merchant for a request
	Authenticate(ctx context.Context, merchantPublicID, apiKey string) (*merchant.Account, error)

	// AllowBulk admits or refuses a submission of batchSize orders
	AllowBulk(merchantPublicID string, batchSize int) ratelimit.Decision

	// CreateOrders processes each request independently; one bad order never
	// sinks its batch.
	CreateOrders(ctx context.Context, acct *merchant.Account, sourceIP string, reqs []orders.CreateRequest) []CreateResult

	List(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error)
}

// ValidationService runs dry-run payment checks for support tooling
type ValidationService interface {
	Validate(ctx context.Context, portalID, portalTransactionID, orderID string) (*reconciler.Validation, error)
}

// WebhookService processes inbound bank events and operator actions
type WebhookService interface {
	ProcessBankWebhook(ctx context.Context, req reconciler.ProcessRequest) (*banktx.Entry, *order.Order, error)
	UpdateOrderStatus(ctx context.Context, role, orderID string, status order.Status) (*order.Order, error)
	ResendNotification(ctx context.Context, orderID string) (*order.Order, error)
}
