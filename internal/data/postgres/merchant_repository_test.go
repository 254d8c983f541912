package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/domain/merchant"
)

var merchantRowColumns = []string{
	"public_id", "api_key_hash", "available_balance", "current_balance",
	"min_deposit", "max_deposit", "min_withdraw", "max_withdraw",
	"deposit_ip_whitelist", "withdraw_ip_whitelist", "enabled",
	"created_at", "updated_at",
}

func TestMerchantRepository_GetByPublicID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MerchantRepository{querier: mock, logger: newTestLogger()}

	t.Run("success", func(t *testing.T) {
		now := time.Now()
		mock.ExpectQuery("FROM merchant_accounts").
			WithArgs("MCHT001").
			WillReturnRows(pgxmock.NewRows(merchantRowColumns).AddRow(
				"MCHT001", "a1b2c3", int64(500000), int64(500000),
				int64(10000), int64(500000000), int64(50000), int64(200000000),
				[]string{"203.0.113.10"}, []string{}, true,
				now, now,
			))

		acct, err := repo.GetByPublicID(ctx, "MCHT001")
		require.NoError(t, err)
		assert.Equal(t, "MCHT001", acct.PublicID)
		assert.Equal(t, int64(500000), acct.AvailableBalance)
		assert.Equal(t, []string{"203.0.113.10"}, acct.DepositIPWhitelist)
		assert.True(t, acct.Enabled)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("FROM merchant_accounts").
			WithArgs("MCHT404").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByPublicID(ctx, "MCHT404")
		assert.ErrorIs(t, err, merchant.ErrAccountNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMerchantRepository_AdjustBalances(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &MerchantRepository{querier: mock, logger: newTestLogger()}

	t.Run("applies signed deltas", func(t *testing.T) {
		mock.ExpectExec("UPDATE merchant_accounts").
			WithArgs(int64(-100000), int64(0), "MCHT001").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.AdjustBalances(ctx, "MCHT001", -100000, 0)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock.ExpectExec("UPDATE merchant_accounts").
			WithArgs(int64(100), int64(100), "MCHT404").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.AdjustBalances(ctx, "MCHT404", 100, 100)
		assert.ErrorIs(t, err, merchant.ErrAccountNotFound{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
