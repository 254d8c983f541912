package expiry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
)

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) GetByOrderID(ctx context.Context, orderID string) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) GetByMerchantOrderID(ctx context.Context, merchantPublicID, merchantOrderID string) (*order.Order, error) {
	args := m.Called(ctx, merchantPublicID, merchantOrderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *mockOrderRepo) ListByMerchant(ctx context.Context, merchantPublicID string, orderType order.Type, limit, offset int) ([]*order.Order, error) {
	args := m.Called(ctx, merchantPublicID, orderType, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *mockOrderRepo) Update(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOrderRepo) UpdateStatus(ctx context.Context, orderID string, status order.Status) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

func (m *mockOrderRepo) MarkNotified(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *mockOrderRepo) FindExpiredProcessing(ctx context.Context, now time.Time, limit int) ([]*order.Order, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

type mockBankTxRepo struct {
	mock.Mock
}

func (m *mockBankTxRepo) Create(ctx context.Context, entry *banktx.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockBankTxRepo) GetByPortalRef(ctx context.Context, portalID, portalTransactionID string) (*banktx.Entry, error) {
	args := m.Called(ctx, portalID, portalTransactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banktx.Entry), args.Error(1)
}

func (m *mockBankTxRepo) Update(ctx context.Context, entry *banktx.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockBankTxRepo) ExistsProcessed(ctx context.Context, portalID, portalTransactionID string) (bool, error) {
	args := m.Called(ctx, portalID, portalTransactionID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBankTxRepo) ExistsForOrder(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []*order.Order
}

func (n *recordingNotifier) EnqueueOrderNotification(o *order.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, o)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expiredDeposit(orderID string) *order.Order {
	expires := time.Now().Add(-time.Minute)
	return &order.Order{
		OrderID:          orderID,
		MerchantPublicID: "MCHT001",
		Type:             order.TypeDeposit,
		Status:           order.StatusProcessing,
		Amount:           250_000,
		UnpaidAmount:     250_000,
		CallbackURL:      "https://merchant.example/hooks",
		ExpiresAt:        &expires,
	}
}

func TestScanner_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("fails expired deposits and notifies", func(t *testing.T) {
		o := expiredDeposit("ODR20260824-AAAA1111")

		orders := new(mockOrderRepo)
		orders.On("FindExpiredProcessing", ctx, mock.AnythingOfType("time.Time"), 50).
			Return([]*order.Order{o}, nil)
		orders.On("Update", ctx, mock.MatchedBy(func(got *order.Order) bool {
			return got.OrderID == o.OrderID && got.Status == order.StatusFailed
		})).Return(nil)

		entries := new(mockBankTxRepo)
		entries.On("ExistsForOrder", ctx, o.OrderID).Return(false, nil)

		notifier := &recordingNotifier{}
		s := NewScanner(testLogger(), orders, entries, notifier, nil, time.Minute, 50)

		failed := s.Scan(ctx)
		assert.Equal(t, 1, failed)
		require.Len(t, notifier.orders, 1)
		assert.Equal(t, order.StatusFailed, notifier.orders[0].Status)
		orders.AssertExpectations(t)
	})

	t.Run("orders with recorded entries are left alone", func(t *testing.T) {
		o := expiredDeposit("ODR20260824-AAAA1111")

		orders := new(mockOrderRepo)
		orders.On("FindExpiredProcessing", ctx, mock.AnythingOfType("time.Time"), 50).
			Return([]*order.Order{o}, nil)

		entries := new(mockBankTxRepo)
		entries.On("ExistsForOrder", ctx, o.OrderID).Return(true, nil)

		notifier := &recordingNotifier{}
		s := NewScanner(testLogger(), orders, entries, notifier, nil, time.Minute, 50)

		failed := s.Scan(ctx)
		assert.Zero(t, failed)
		assert.Empty(t, notifier.orders)
		orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("nothing expired", func(t *testing.T) {
		orders := new(mockOrderRepo)
		orders.On("FindExpiredProcessing", ctx, mock.AnythingOfType("time.Time"), 50).
			Return([]*order.Order{}, nil)

		s := NewScanner(testLogger(), orders, new(mockBankTxRepo), nil, nil, time.Minute, 50)
		assert.Zero(t, s.Scan(ctx))
	})

	t.Run("scan survives a store error", func(t *testing.T) {
		orders := new(mockOrderRepo)
		orders.On("FindExpiredProcessing", ctx, mock.AnythingOfType("time.Time"), 50).
			Return(nil, assert.AnError)

		s := NewScanner(testLogger(), orders, new(mockBankTxRepo), nil, nil, time.Minute, 50)
		assert.Zero(t, s.Scan(ctx))
	})
}

func TestScanner_StartStop(t *testing.T) {
	orders := new(mockOrderRepo)
	orders.On("FindExpiredProcessing", mock.Anything, mock.AnythingOfType("time.Time"), 50).
		Return([]*order.Order{}, nil).Maybe()

	s := NewScanner(testLogger(), orders, new(mockBankTxRepo), nil, nil, 10*time.Millisecond, 50)
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
}
