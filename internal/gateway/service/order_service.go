package service

import (
	"context"
	"log/slog"
	"net"

	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/merchantcache"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/ratelimit"
)

// orderService implements OrderService over the order ledger
type orderService struct {
	logger    *slog.Logger
	merchants *merchantcache.Resolver
	ledger    *orders.Service
	limiter   *ratelimit.BulkLimiter
}

// NewOrderService creates the gateway order service
func NewOrderService(logger *slog.Logger, merchants *merchantcache.Resolver, ledger *orders.Service, limiter *ratelimit.BulkLimiter) OrderService {
	return &orderService{
		logger:    logger,
		merchants: merchants,
		ledger:    ledger,
		limiter:   limiter,
	}
}

func (s *orderService) Authenticate(ctx context.Context, merchantPublicID, apiKey string) (*merchant.Account, error) {
	return s.merchants.Resolve(ctx, merchantPublicID, apiKey)
}

func (s *orderService) AllowBulk(merchantPublicID string, batchSize int) ratelimit.Decision {
	return s.limiter.Allow(merchantPublicID, batchSize)
}

func (s *orderService) CreateOrders(ctx context.Context, acct *merchant.Account, sourceIP string, reqs []orders.CreateRequest) []CreateResult {
	results := make([]CreateResult, 0, len(reqs))
	for _, req := range reqs {
		req.SourceIP = sourceIP

		if err := checkPublicIP(sourceIP); err != nil {
			results = append(results, CreateResult{Err: err})
			continue
		}

		o, err := s.ledger.Create(ctx, acct, req)
		if err != nil {
			s.logger.Warn("Order creation refused",
				"merchant_public_id", acct.PublicID,
				"type", req.Type,
				"error", err)
			results = append(results, CreateResult{Err: err})
			continue
		}
		results = append(results, CreateResult{Order: o})
	}
	return results
}

func (s *orderService) List(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	return s.ledger.List(ctx, merchantPublicID, orderType, limit, offset)
}

// checkPublicIP refuses order creation from addresses that cannot belong to
// a merchant's production systems.
func checkPublicIP(ip string) error {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ErrNonPublicIP
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return ErrNonPublicIP
	}
	return nil
}
