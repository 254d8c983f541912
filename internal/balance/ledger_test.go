package balance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

// memMerchantRepo is an in-memory merchant.Repository good enough to exercise
// concurrent holds.
type memMerchantRepo struct {
	mu       sync.Mutex
	accounts map[string]*merchant.Account
}

func newMemMerchantRepo(accounts ...*merchant.Account) *memMerchantRepo {
	r := &memMerchantRepo{accounts: make(map[string]*merchant.Account)}
	for _, a := range accounts {
		r.accounts[a.PublicID] = a
	}
	return r
}

func (r *memMerchantRepo) GetByPublicID(_ context.Context, publicID string) (*merchant.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[publicID]
	if !ok {
		return nil, merchant.ErrAccountNotFound{PublicID: publicID}
	}
	copied := *a
	return &copied, nil
}

func (r *memMerchantRepo) AdjustBalances(_ context.Context, publicID string, availableDelta, currentDelta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[publicID]
	if !ok {
		return merchant.ErrAccountNotFound{PublicID: publicID}
	}
	a.AvailableBalance += availableDelta
	a.CurrentBalance += currentDelta
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLedger_LockForWithdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("hold reduces available only", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{
			PublicID:         "MCHT001",
			AvailableBalance: 1_000_000,
			CurrentBalance:   1_000_000,
		})
		ledger := NewLedger(testLogger(), repo)

		prev, curr, err := ledger.LockForWithdraw(ctx, "MCHT001", 300_000)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), prev)
		assert.Equal(t, int64(700_000), curr)

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(700_000), acct.AvailableBalance)
		assert.Equal(t, int64(1_000_000), acct.CurrentBalance)
	})

	t.Run("insufficient funds leaves balances untouched", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{
			PublicID:         "MCHT001",
			AvailableBalance: 100_000,
			CurrentBalance:   100_000,
		})
		ledger := NewLedger(testLogger(), repo)

		_, _, err := ledger.LockForWithdraw(ctx, "MCHT001", 300_000)
		assert.ErrorIs(t, err, ErrInsufficientFunds{})

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(100_000), acct.AvailableBalance)
	})

	t.Run("concurrent holds never overdraw", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{
			PublicID:         "MCHT001",
			AvailableBalance: 500_000,
		})
		ledger := NewLedger(testLogger(), repo)

		const workers = 20
		var granted int32
		var wg sync.WaitGroup
		var mu sync.Mutex

		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				if _, _, err := ledger.LockForWithdraw(ctx, "MCHT001", 100_000); err == nil {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(5), granted)
		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(0), acct.AvailableBalance)
	})
}

func TestLedger_Settlement(t *testing.T) {
	ctx := context.Background()

	t.Run("deposit credits both balances", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{PublicID: "MCHT001"})
		ledger := NewLedger(testLogger(), repo)

		require.NoError(t, ledger.SettleDeposit(ctx, "MCHT001", 250_000))

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(250_000), acct.AvailableBalance)
		assert.Equal(t, int64(250_000), acct.CurrentBalance)
	})

	t.Run("withdrawal settlement moves only the current balance", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{
			PublicID:         "MCHT001",
			AvailableBalance: 700_000,
			CurrentBalance:   1_000_000,
		})
		ledger := NewLedger(testLogger(), repo)

		require.NoError(t, ledger.SettleWithdraw(ctx, "MCHT001", 300_000))

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(700_000), acct.AvailableBalance)
		assert.Equal(t, int64(700_000), acct.CurrentBalance)
	})

	t.Run("released hold restores the available balance", func(t *testing.T) {
		repo := newMemMerchantRepo(&merchant.Account{
			PublicID:         "MCHT001",
			AvailableBalance: 700_000,
			CurrentBalance:   1_000_000,
		})
		ledger := NewLedger(testLogger(), repo)

		require.NoError(t, ledger.ReleaseHold(ctx, "MCHT001", 300_000))

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), acct.AvailableBalance)
		assert.Equal(t, int64(1_000_000), acct.CurrentBalance)
	})
}
