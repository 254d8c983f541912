// Package balance serializes merchant balance movements. The stores only
// guarantee per-document update atomicity, so the check-then-deduct step of a
// withdrawal hold must be serialized here, per merchant, in process.
package balance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

// ErrInsufficientFunds indicates the available balance cannot cover the hold
type ErrInsufficientFunds struct {
	MerchantPublicID string
	Available        int64
	Requested        int64
}

func (e ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds for merchant %s: available %d, requested %d",
		e.MerchantPublicID, e.Available, e.Requested)
}

// Is matches any ErrInsufficientFunds when the target merchant id is empty
func (e ErrInsufficientFunds) Is(target error) bool {
	t, ok := target.(ErrInsufficientFunds)
	if !ok {
		return false
	}
	if t.MerchantPublicID == "" {
		return true
	}
	return e.MerchantPublicID == t.MerchantPublicID
}

// Ledger applies balance movements through the merchant repository while
// holding a per-merchant mutex.
type Ledger struct {
	logger *slog.Logger
	repo   merchant.Repository

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedger creates a balance ledger backed by the merchant repository
func NewLedger(logger *slog.Logger, repo merchant.Repository) *Ledger {
	return &Ledger{
		logger: logger,
		repo:   repo,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(publicID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[publicID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[publicID] = m
	}
	return m
}

// LockForWithdraw places a hold on the available balance for a pending
// withdrawal. The current balance is untouched until settlement. Returns the
// available balance before and after the hold.
func (l *Ledger) LockForWithdraw(ctx context.Context, publicID string, amount int64) (prev, curr int64, err error) {
	m := l.lockFor(publicID)
	m.Lock()
	defer m.Unlock()

	acct, err := l.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load merchant for withdrawal hold: %w", err)
	}
	if acct.AvailableBalance < amount {
		return 0, 0, ErrInsufficientFunds{
			MerchantPublicID: publicID,
			Available:        acct.AvailableBalance,
			Requested:        amount,
		}
	}

	if err := l.repo.AdjustBalances(ctx, publicID, -amount, 0); err != nil {
		return 0, 0, fmt.Errorf("failed to place withdrawal hold: %w", err)
	}

	l.logger.Info("Withdrawal hold placed",
		"merchant_public_id", publicID,
		"amount", amount,
		"available_before", acct.AvailableBalance,
		"available_after", acct.AvailableBalance-amount)

	return acct.AvailableBalance, acct.AvailableBalance - amount, nil
}

// ReleaseHold returns a withdrawal hold to the available balance. Used when
// order creation fails after the hold, or when a pending withdrawal is
// failed or canceled.
func (l *Ledger) ReleaseHold(ctx context.Context, publicID string, amount int64) error {
	m := l.lockFor(publicID)
	m.Lock()
	defer m.Unlock()

	if err := l.repo.AdjustBalances(ctx, publicID, amount, 0); err != nil {
		return fmt.Errorf("failed to release withdrawal hold: %w", err)
	}

	l.logger.Info("Withdrawal hold released", "merchant_public_id", publicID, "amount", amount)
	return nil
}

// SettleDeposit credits a matched incoming payment to both balances
func (l *Ledger) SettleDeposit(ctx context.Context, publicID string, amount int64) error {
	m := l.lockFor(publicID)
	m.Lock()
	defer m.Unlock()

	if err := l.repo.AdjustBalances(ctx, publicID, amount, amount); err != nil {
		return fmt.Errorf("failed to settle deposit: %w", err)
	}

	l.logger.Info("Deposit settled", "merchant_public_id", publicID, "amount", amount)
	return nil
}

// SettleWithdraw finalizes a completed withdrawal. The available balance was
// already reduced by the hold; only the current balance moves here.
func (l *Ledger) SettleWithdraw(ctx context.Context, publicID string, amount int64) error {
	m := l.lockFor(publicID)
	m.Lock()
	defer m.Unlock()

	if err := l.repo.AdjustBalances(ctx, publicID, 0, -amount); err != nil {
		return fmt.Errorf("failed to settle withdrawal: %w", err)
	}

	l.logger.Info("Withdrawal settled", "merchant_public_id", publicID, "amount", amount)
	return nil
}
