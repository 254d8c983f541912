package portal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry(t *testing.T) {
	sepay := NewSepayClient(testLogger(), "http://example", "key", time.Second)
	registry := NewRegistry(sepay)

	got, err := registry.Get(SepayID)
	require.NoError(t, err)
	assert.Equal(t, SepayID, got.ID())

	_, err = registry.Get("vietqr")
	assert.ErrorIs(t, err, ErrUnknownPortal{})
	assert.ElementsMatch(t, []string{SepayID}, registry.IDs())
}

func TestSepayClient_FetchTransaction(t *testing.T) {
	t.Run("normalizes a credit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transactions/details/9001", r.URL.Path)
			assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
			w.Write([]byte(`{
				"status": 200,
				"transaction": {
					"id": "9001",
					"transaction_date": "2026-08-24 10:15:00",
					"account_number": "0011002233",
					"amount_in": "250000.00",
					"amount_out": "0.00",
					"accumulated": "1250000.00",
					"transaction_content": "ODR20260824-3F7A9C1B",
					"reference_number": "FT123"
				}
			}`))
		}))
		defer srv.Close()

		c := NewSepayClient(testLogger(), srv.URL, "sk_test", time.Second)

		tx, err := c.FetchTransaction(context.Background(), "9001")
		require.NoError(t, err)
		assert.Equal(t, SepayID, tx.PortalID)
		assert.Equal(t, "9001", tx.PortalTransactionID)
		assert.Equal(t, int64(250_000), tx.Amount)
		assert.Equal(t, int64(1_250_000), tx.BalanceAfter)
		assert.False(t, tx.IsDebit())
		assert.Equal(t, "ODR20260824-3F7A9C1B", tx.Description)
	})

	t.Run("outgoing transfer is a debit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"status": 200,
				"transaction": {
					"id": "9002",
					"transaction_date": "2026-08-24 10:20:00",
					"amount_in": "0.00",
					"amount_out": "300000.00",
					"accumulated": "950000.00",
					"transaction_content": "rut tien"
				}
			}`))
		}))
		defer srv.Close()

		c := NewSepayClient(testLogger(), srv.URL, "sk_test", time.Second)

		tx, err := c.FetchTransaction(context.Background(), "9002")
		require.NoError(t, err)
		assert.Equal(t, int64(-300_000), tx.Amount)
		assert.True(t, tx.IsDebit())
	})

	t.Run("missing transaction", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status": 200, "transaction": null}`))
		}))
		defer srv.Close()

		c := NewSepayClient(testLogger(), srv.URL, "sk_test", time.Second)

		_, err := c.FetchTransaction(context.Background(), "absent")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestSepayClient_FindByOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transactions/list", r.URL.Path)
		assert.Equal(t, "ODR20260824-3F7A9C1B", r.URL.Query().Get("transaction_content"))
		w.Write([]byte(`{
			"status": 200,
			"transactions": [{
				"id": "9001",
				"transaction_date": "2026-08-24 10:15:00",
				"amount_in": "250000.00",
				"amount_out": "0.00",
				"accumulated": "1250000.00",
				"transaction_content": "ODR20260824-3F7A9C1B"
			}]
		}`))
	}))
	defer srv.Close()

	c := NewSepayClient(testLogger(), srv.URL, "sk_test", time.Second)

	tx, err := c.FindByOrderID(context.Background(), "ODR20260824-3F7A9C1B")
	require.NoError(t, err)
	assert.Equal(t, "9001", tx.PortalTransactionID)
	assert.Equal(t, int64(250_000), tx.Amount)
}

func TestCassoClient_FetchTransaction(t *testing.T) {
	t.Run("normalizes the record", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/transactions/4412", r.URL.Path)
			assert.Equal(t, "Apikey ck_test", r.Header.Get("Authorization"))
			w.Write([]byte(`{
				"error": 0,
				"data": {
					"id": 4412,
					"tid": "FT998",
					"description": "ODR20260824-3F7A9C1B",
					"amount": 250000,
					"cusum_balance": 1250000,
					"when": "2026-08-24T10:15:00Z"
				}
			}`))
		}))
		defer srv.Close()

		c := NewCassoClient(testLogger(), srv.URL, "ck_test", time.Second)

		tx, err := c.FetchTransaction(context.Background(), "4412")
		require.NoError(t, err)
		assert.Equal(t, CassoID, tx.PortalID)
		assert.Equal(t, "4412", tx.PortalTransactionID)
		assert.Equal(t, int64(250_000), tx.Amount)
		assert.Equal(t, int64(1_250_000), tx.BalanceAfter)
	})

	t.Run("api error maps to not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error": 404, "data": null}`))
		}))
		defer srv.Close()

		c := NewCassoClient(testLogger(), srv.URL, "ck_test", time.Second)

		_, err := c.FetchTransaction(context.Background(), "absent")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}
