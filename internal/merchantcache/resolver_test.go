package merchantcache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/platform/storage"
)

type mockMerchantRepo struct {
	mock.Mock
}

func (m *mockMerchantRepo) GetByPublicID(ctx context.Context, publicID string) (*merchant.Account, error) {
	args := m.Called(ctx, publicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*merchant.Account), args.Error(1)
}

func (m *mockMerchantRepo) AdjustBalances(ctx context.Context, publicID string, availableDelta, currentDelta int64) error {
	args := m.Called(ctx, publicID, availableDelta, currentDelta)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAccount(apiKey string) *merchant.Account {
	return &merchant.Account{
		PublicID:   "MCHT001",
		APIKeyHash: merchant.HashAPIKey(apiKey),
		Enabled:    true,
	}
}

func newResolver(repo merchant.Repository, static *StaticDirectory) *Resolver {
	if static == nil {
		static = &StaticDirectory{byHash: map[string]merchant.Account{}}
	}
	return NewResolver(testLogger(), repo, nil, static, Options{
		LocalCapacity: 8,
		LocalTTL:      time.Minute,
		RedisTTL:      time.Minute,
	})
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	const apiKey = "sk_live_abc123"

	t.Run("repository hit populates the local cache", func(t *testing.T) {
		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(testAccount(apiKey), nil).Once()

		r := newResolver(repo, nil)

		acct, err := r.Resolve(ctx, "MCHT001", apiKey)
		require.NoError(t, err)
		assert.Equal(t, "MCHT001", acct.PublicID)

		// Second resolve is served locally; the mock would panic on a second call.
		acct, err = r.Resolve(ctx, "MCHT001", apiKey)
		require.NoError(t, err)
		assert.Equal(t, "MCHT001", acct.PublicID)
		repo.AssertExpectations(t)
	})

	t.Run("wrong api key is indistinguishable from unknown merchant", func(t *testing.T) {
		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(testAccount(apiKey), nil)

		r := newResolver(repo, nil)

		_, err := r.Resolve(ctx, "MCHT001", "sk_live_wrong")
		assert.ErrorIs(t, err, merchant.ErrAccountNotFound{})
	})

	t.Run("disabled merchant resolves as not found", func(t *testing.T) {
		acct := testAccount(apiKey)
		acct.Enabled = false

		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(acct, nil)

		r := newResolver(repo, nil)

		_, err := r.Resolve(ctx, "MCHT001", apiKey)
		assert.ErrorIs(t, err, merchant.ErrAccountNotFound{})
	})

	t.Run("total outage falls back to the static directory", func(t *testing.T) {
		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(nil, storage.ErrUnavailable)

		static := &StaticDirectory{byHash: map[string]merchant.Account{
			merchant.HashAPIKey(apiKey): *testAccount(apiKey),
		}}
		r := newResolver(repo, static)

		acct, err := r.Resolve(ctx, "MCHT001", apiKey)
		require.NoError(t, err)
		assert.Equal(t, "MCHT001", acct.PublicID)
	})

	t.Run("total outage without a static entry surfaces the storage error", func(t *testing.T) {
		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(nil, storage.ErrUnavailable)

		r := newResolver(repo, nil)

		_, err := r.Resolve(ctx, "MCHT001", apiKey)
		assert.ErrorIs(t, err, storage.ErrUnavailable)
	})

	t.Run("invalidate forces a fresh repository read", func(t *testing.T) {
		repo := new(mockMerchantRepo)
		repo.On("GetByPublicID", ctx, "MCHT001").Return(testAccount(apiKey), nil).Twice()

		r := newResolver(repo, nil)

		_, err := r.Resolve(ctx, "MCHT001", apiKey)
		require.NoError(t, err)

		r.Invalidate(ctx, "MCHT001")

		_, err = r.Resolve(ctx, "MCHT001", apiKey)
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})
}

func TestLocalCache(t *testing.T) {
	t.Run("expired entries miss", func(t *testing.T) {
		c := newLocalCache(4, 10*time.Millisecond)
		c.Set(&merchant.Account{PublicID: "MCHT001"})

		_, ok := c.Get("MCHT001")
		assert.True(t, ok)

		time.Sleep(20 * time.Millisecond)
		_, ok = c.Get("MCHT001")
		assert.False(t, ok)
	})

	t.Run("capacity evicts the least recently used", func(t *testing.T) {
		c := newLocalCache(2, time.Minute)
		c.Set(&merchant.Account{PublicID: "A"})
		c.Set(&merchant.Account{PublicID: "B"})

		_, ok := c.Get("A")
		require.True(t, ok)

		c.Set(&merchant.Account{PublicID: "C"})

		_, ok = c.Get("B")
		assert.False(t, ok)
		_, ok = c.Get("A")
		assert.True(t, ok)
		_, ok = c.Get("C")
		assert.True(t, ok)
	})

	t.Run("cached copies are isolated from callers", func(t *testing.T) {
		c := newLocalCache(4, time.Minute)
		c.Set(&merchant.Account{PublicID: "MCHT001", AvailableBalance: 100})

		got, ok := c.Get("MCHT001")
		require.True(t, ok)
		got.AvailableBalance = 999

		again, ok := c.Get("MCHT001")
		require.True(t, ok)
		assert.Equal(t, int64(100), again.AvailableBalance)
	})
}

func TestLoadStaticDirectory(t *testing.T) {
	t.Run("empty path yields an empty directory", func(t *testing.T) {
		dir, err := LoadStaticDirectory("")
		require.NoError(t, err)
		assert.Zero(t, dir.Len())
	})

	t.Run("loads accounts keyed by api key hash", func(t *testing.T) {
		const apiKey = "sk_live_static"
		hash := merchant.HashAPIKey(apiKey)
		path := filepath.Join(t.TempDir(), "merchants.json")
		payload := `{"` + hash + `": {"public_id": "MCHT009", "enabled": true}}`
		require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

		dir, err := LoadStaticDirectory(path)
		require.NoError(t, err)
		require.Equal(t, 1, dir.Len())

		acct := dir.LookupByAPIKey(apiKey)
		require.NotNil(t, acct)
		assert.Equal(t, "MCHT009", acct.PublicID)
		assert.Equal(t, hash, acct.APIKeyHash)

		assert.Nil(t, dir.LookupByAPIKey("sk_live_other"))
	})

	t.Run("missing file disables the static tier", func(t *testing.T) {
		dir, err := LoadStaticDirectory(filepath.Join(t.TempDir(), "absent.json"))
		require.NoError(t, err)
		assert.Zero(t, dir.Len())
	})

	t.Run("malformed file is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "merchants.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
		_, err := LoadStaticDirectory(path)
		assert.Error(t, err)
	})
}
