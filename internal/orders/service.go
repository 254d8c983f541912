// Package orders implements the order ledger: creation with merchant limit
// and funds checks, listing, and guarded lifecycle transitions.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietpay-gateway/internal/balance"
	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/domain/order"
)

// ErrEntriesRecorded refuses failing an order that already has bank
// transaction entries linked to it; money has moved and only the
// reconciliation path may decide the outcome.
var ErrEntriesRecorded = errors.New("order has recorded bank transactions")

// Notifier enqueues a merchant callback for an order status change
type Notifier interface {
	EnqueueOrderNotification(o *order.Order)
}

// CacheInvalidator drops stale merchant cache entries after balance mutations
type CacheInvalidator interface {
	Invalidate(ctx context.Context, publicID string)
}

// Service coordinates order persistence, balance movements, and callbacks
type Service struct {
	logger        *slog.Logger
	orders        order.Repository
	entries       banktx.Repository
	ledger        *balance.Ledger
	notifier      Notifier
	cache         CacheInvalidator
	paymentWindow time.Duration
}

// NewService creates the order ledger service
func NewService(
	logger *slog.Logger,
	orders order.Repository,
	entries banktx.Repository,
	ledger *balance.Ledger,
	notifier Notifier,
	cache CacheInvalidator,
	paymentWindow time.Duration,
) *Service {
	return &Service{
		logger:        logger,
		orders:        orders,
		entries:       entries,
		ledger:        ledger,
		notifier:      notifier,
		cache:         cache,
		paymentWindow: paymentWindow,
	}
}

// CreateRequest carries one order creation from an authenticated merchant
type CreateRequest struct {
	MerchantOrderID  string
	Type             order.Type
	Amount           int64
	BankID           string
	BankCode         string
	BankReceiveNum   string
	BankReceiveOwner string
	SourceIP         string
	CallbackURL      string
}

// Create validates the request against the merchant's limits, places the
// withdrawal hold when needed, and persists the order. No order record exists
// for a withdrawal the merchant cannot fund.
func (s *Service) Create(ctx context.Context, acct *merchant.Account, req CreateRequest) (*order.Order, error) {
	isDeposit := req.Type == order.TypeDeposit

	min, max := acct.LimitsFor(isDeposit)
	if (min > 0 && req.Amount < min) || (max > 0 && req.Amount > max) {
		return nil, order.ErrAmountOutOfLimits
	}

	if req.MerchantOrderID != "" {
		existing, err := s.orders.GetByMerchantOrderID(ctx, acct.PublicID, req.MerchantOrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to check merchant order id: %w", err)
		}
		if existing != nil {
			return nil, order.ErrDuplicateMerchantOrderID{MerchantOrderID: req.MerchantOrderID}
		}
	}

	o, err := order.New(order.CreateParams{
		MerchantOrderID:  req.MerchantOrderID,
		MerchantPublicID: acct.PublicID,
		Type:             req.Type,
		Amount:           req.Amount,
		BankID:           req.BankID,
		BankCode:         req.BankCode,
		BankReceiveNum:   req.BankReceiveNum,
		BankReceiveOwner: req.BankReceiveOwner,
		CreatedIP:        req.SourceIP,
		IsSuspicious:     !acct.WhitelistedFor(isDeposit, req.SourceIP),
		CallbackURL:      req.CallbackURL,
		PaymentWindow:    s.paymentWindow,
	})
	if err != nil {
		return nil, err
	}

	if o.Type == order.TypeWithdraw {
		// The hold precedes the record: a merchant that cannot fund the
		// withdrawal gets no order at all.
		if _, _, err := s.ledger.LockForWithdraw(ctx, acct.PublicID, o.Amount); err != nil {
			return nil, err
		}
		s.invalidate(ctx, acct.PublicID)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		if o.Type == order.TypeWithdraw {
			if relErr := s.ledger.ReleaseHold(ctx, acct.PublicID, o.Amount); relErr != nil {
				s.logger.Error("Failed to release hold after create failure",
					"merchant_public_id", acct.PublicID,
					"amount", o.Amount,
					"error", relErr)
			}
			s.invalidate(ctx, acct.PublicID)
		}
		return nil, err
	}

	s.logger.Info("Order created",
		"order_id", o.OrderID,
		"merchant_public_id", acct.PublicID,
		"type", o.Type,
		"amount", o.Amount,
		"suspicious", o.IsSuspicious)

	return o, nil
}

// Get retrieves one order by id
func (s *Service) Get(ctx context.Context, orderID string) (*order.Order, error) {
	return s.orders.GetByOrderID(ctx, orderID)
}

// List returns a merchant's orders, newest first
func (s *Service) List(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.orders.ListByMerchant(ctx, merchantPublicID, orderType, limit, offset)
}

// UpdateStatus applies an operator-driven status change, with the balance
// side effects each edge implies. Terminal orders never move again.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to order.Status) (*order.Order, error) {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanTransition(o.Status, to) {
		return nil, order.ErrInvalidTransition{From: o.Status, To: to}
	}

	if to == order.StatusFailed {
		linked, err := s.entries.ExistsForOrder(ctx, o.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to check entries for order: %w", err)
		}
		if linked {
			return nil, ErrEntriesRecorded
		}
	}

	switch {
	case o.Type == order.TypeWithdraw && to == order.StatusCompleted:
		if err := s.ledger.SettleWithdraw(ctx, o.MerchantPublicID, o.Amount); err != nil {
			return nil, err
		}
		o.PaidAmount = o.Amount
		o.UnpaidAmount = 0
		s.invalidate(ctx, o.MerchantPublicID)
	case o.Type == order.TypeWithdraw && (to == order.StatusFailed || to == order.StatusCanceled):
		if err := s.ledger.ReleaseHold(ctx, o.MerchantPublicID, o.Amount); err != nil {
			return nil, err
		}
		s.invalidate(ctx, o.MerchantPublicID)
	case o.Type == order.TypeDeposit && to == order.StatusCompleted:
		// Manual confirmation credits whatever the reconciler has not.
		if o.UnpaidAmount > 0 {
			if err := s.ledger.SettleDeposit(ctx, o.MerchantPublicID, o.UnpaidAmount); err != nil {
				return nil, err
			}
			o.PaidAmount = o.Amount
			o.UnpaidAmount = 0
			s.invalidate(ctx, o.MerchantPublicID)
		}
	}

	if err := o.Transition(to); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated", "order_id", o.OrderID, "status", o.Status)

	if s.notifier != nil {
		s.notifier.EnqueueOrderNotification(o)
	}

	return o, nil
}

// ResendNotification re-enqueues the merchant callback for an order
func (s *Service) ResendNotification(ctx context.Context, orderID string) (*order.Order, error) {
	o, err := s.orders.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		s.notifier.EnqueueOrderNotification(o)
	}
	return o, nil
}

func (s *Service) invalidate(ctx context.Context, publicID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, publicID)
	}
}
