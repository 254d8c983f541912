package order

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func depositParams() CreateParams {
	return CreateParams{
		MerchantPublicID: "MCHT001",
		Type:             TypeDeposit,
		Amount:           100000,
		BankID:           "VCB",
		CreatedIP:        "203.0.113.10",
		CallbackURL:      "https://merchant.example/cb",
		PaymentWindow:    15 * time.Minute,
	}
}

func withdrawParams() CreateParams {
	return CreateParams{
		MerchantPublicID: "MCHT001",
		Type:             TypeWithdraw,
		Amount:           100000,
		BankCode:         "TCB",
		BankReceiveNum:   "0123456789",
		BankReceiveOwner: "NGUYEN VAN A",
		CreatedIP:        "203.0.113.10",
		CallbackURL:      "https://merchant.example/cb",
	}
}

func TestNew(t *testing.T) {
	t.Run("deposit starts processing with a payment window", func(t *testing.T) {
		o, err := New(depositParams())
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, o.Status)
		assert.True(t, strings.HasPrefix(o.OrderID, "ODR"))
		assert.Equal(t, o.Amount, o.UnpaidAmount)
		assert.NotEmpty(t, o.QRPayload)
		require.NotNil(t, o.ExpiresAt)
		assert.True(t, o.ExpiresAt.After(time.Now()))
	})

	t.Run("withdraw starts pending without a window", func(t *testing.T) {
		o, err := New(withdrawParams())
		require.NoError(t, err)
		assert.Equal(t, StatusPending, o.Status)
		assert.Nil(t, o.ExpiresAt)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name    string
			mutate  func(*CreateParams)
			wantErr error
		}{
			{"zero amount", func(p *CreateParams) { p.Amount = 0 }, ErrInvalidAmount},
			{"amount too wide", func(p *CreateParams) { p.Amount = 10_000_000_000_000 }, ErrInvalidAmount},
			{"missing callback", func(p *CreateParams) { p.CallbackURL = "" }, ErrMissingCallbackURL},
			{"deposit without bank id", func(p *CreateParams) { p.BankID = "" }, ErrMissingBankID},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				p := depositParams()
				tt.mutate(&p)
				_, err := New(p)
				assert.ErrorIs(t, err, tt.wantErr)
			})
		}

		t.Run("withdraw with short receive number", func(t *testing.T) {
			p := withdrawParams()
			p.BankReceiveNum = "123"
			_, err := New(p)
			assert.ErrorIs(t, err, ErrInvalidReceiveNumber)
		})

		t.Run("withdraw with digits in owner name", func(t *testing.T) {
			p := withdrawParams()
			p.BankReceiveOwner = "NGUYEN 2"
			_, err := New(p)
			assert.ErrorIs(t, err, ErrInvalidOwnerName)
		})
	})
}

func TestApplyPayment(t *testing.T) {
	t.Run("paid and unpaid always reconcile", func(t *testing.T) {
		o, err := New(depositParams())
		require.NoError(t, err)

		require.NoError(t, o.ApplyPayment(40000))
		assert.Equal(t, int64(40000), o.PaidAmount)
		assert.Equal(t, o.Amount-o.PaidAmount, o.UnpaidAmount)
		assert.Equal(t, StatusProcessing, o.Status)

		require.NoError(t, o.ApplyPayment(60000))
		assert.Equal(t, o.Amount, o.PaidAmount)
		assert.Zero(t, o.UnpaidAmount)
		assert.Equal(t, StatusCompleted, o.Status)
	})

	t.Run("overpayment refused", func(t *testing.T) {
		o, err := New(depositParams())
		require.NoError(t, err)

		assert.ErrorIs(t, o.ApplyPayment(o.Amount+1), ErrPaymentExceedsAmount)
		assert.Zero(t, o.PaidAmount)
	})

	t.Run("non-positive amount refused", func(t *testing.T) {
		o, err := New(depositParams())
		require.NoError(t, err)

		assert.ErrorIs(t, o.ApplyPayment(0), ErrInvalidAmount)
		assert.ErrorIs(t, o.ApplyPayment(-5), ErrInvalidAmount)
	})
}

func TestTransitions(t *testing.T) {
	t.Run("terminal statuses have no outgoing edges", func(t *testing.T) {
		for _, terminal := range []Status{StatusCompleted, StatusFailed, StatusCanceled} {
			assert.True(t, IsTerminal(terminal))
			for _, to := range []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled} {
				assert.False(t, CanTransition(terminal, to), "%s -> %s must be refused", terminal, to)
			}
		}
	})

	t.Run("transition refuses invalid edge", func(t *testing.T) {
		o, err := New(depositParams())
		require.NoError(t, err)
		require.NoError(t, o.Transition(StatusCompleted))

		err = o.Transition(StatusPending)
		assert.ErrorIs(t, err, ErrInvalidTransition{})
		assert.Equal(t, StatusCompleted, o.Status)
	})

	t.Run("pending reaches every non-pending status", func(t *testing.T) {
		for _, to := range []Status{StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled} {
			assert.True(t, CanTransition(StatusPending, to))
		}
	})
}

func TestExpired(t *testing.T) {
	o, err := New(depositParams())
	require.NoError(t, err)

	assert.False(t, o.Expired(time.Now()))
	assert.True(t, o.Expired(o.ExpiresAt.Add(time.Second)))

	w, err := New(withdrawParams())
	require.NoError(t, err)
	assert.False(t, w.Expired(time.Now().Add(24*time.Hour)))
}
