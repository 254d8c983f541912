package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/balance"
	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubOrderService scripts the gateway order service for handler tests
type stubOrderService struct {
	acct       *merchant.Account
	authErr    error
	decision   ratelimit.Decision
	results    []service.CreateResult
	listOrders []*order.Order
	listErr    error

	gotBatchSize int
	gotRequests  []orders.CreateRequest
}

func (s *stubOrderService) Authenticate(_ context.Context, _, _ string) (*merchant.Account, error) {
	if s.authErr != nil {
		return nil, s.authErr
	}
	return s.acct, nil
}

func (s *stubOrderService) AllowBulk(_ string, batchSize int) ratelimit.Decision {
	s.gotBatchSize = batchSize
	return s.decision
}

func (s *stubOrderService) CreateOrders(_ context.Context, _ *merchant.Account, _ string, reqs []orders.CreateRequest) []service.CreateResult {
	s.gotRequests = reqs
	return s.results
}

func (s *stubOrderService) List(_ context.Context, _ string, _ order.Type, _, _ int) ([]*order.Order, error) {
	return s.listOrders, s.listErr
}

func testAccount() *merchant.Account {
	return &merchant.Account{PublicID: "MCHT001", Enabled: true}
}

func allowedDecision() ratelimit.Decision {
	return ratelimit.Decision{Allowed: true, Remaining: 9}
}

func newOrderRouter(svc service.OrderService) *gin.Engine {
	router := gin.New()
	h := NewOrderHandler(testLogger(), svc)
	router.POST("/api/v1/orders/:merchantPublicId", h.Create)
	router.GET("/api/v1/orders/:merchantPublicId", h.List)
	return router
}

func performRequest(router *gin.Engine, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateOrderSingle(t *testing.T) {
	created := &order.Order{OrderID: "ODR20260824-3F7A9C1B", Status: order.StatusProcessing}
	svc := &stubOrderService{
		acct:     testAccount(),
		decision: allowedDecision(),
		results:  []service.CreateResult{{Order: created}},
	}
	router := newOrderRouter(svc)

	body := []byte(`{"odrType":"deposit","amount":50000,"bankId":"VCB","urlCallBack":"https://merchant.example/cb"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", body, map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.Len(t, svc.gotRequests, 1)
	assert.Equal(t, order.TypeDeposit, svc.gotRequests[0].Type)
	assert.Equal(t, 1, svc.gotBatchSize)
}

func TestCreateOrderMissingAPIKey(t *testing.T) {
	svc := &stubOrderService{acct: testAccount(), decision: allowedDecision()}
	router := newOrderRouter(svc)

	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", []byte(`{}`), nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, decodeResponse(t, w).Success)
}

func TestCreateOrderUnknownMerchant(t *testing.T) {
	svc := &stubOrderService{authErr: merchant.ErrAccountNotFound{PublicID: "MCHT001"}}
	router := newOrderRouter(svc)

	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", []byte(`{}`), map[string]string{APIKeyHeader: "wrong"})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrderBulkArray(t *testing.T) {
	svc := &stubOrderService{
		acct:     testAccount(),
		decision: allowedDecision(),
		results: []service.CreateResult{
			{Order: &order.Order{OrderID: "ODR20260824-AAAAAAAA"}},
			{Err: order.ErrInvalidAmount},
		},
	}
	router := newOrderRouter(svc)

	body := []byte(`[{"odrType":"deposit","amount":50000,"bankId":"VCB","urlCallBack":"https://m.example/cb"},{"odrType":"deposit","amount":-1,"bankId":"VCB","urlCallBack":"https://m.example/cb"}]`)
	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", body, map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 1, resp.Summary.Succeeded)
	assert.Equal(t, 1, resp.Summary.Failed)
	assert.Equal(t, 2, svc.gotBatchSize)
}

func TestCreateOrderBulkWrappedObject(t *testing.T) {
	svc := &stubOrderService{
		acct:     testAccount(),
		decision: allowedDecision(),
		results:  []service.CreateResult{{Order: &order.Order{OrderID: "ODR20260824-AAAAAAAA"}}},
	}
	router := newOrderRouter(svc)

	body := []byte(`{"orders":[{"odrType":"deposit","amount":50000,"bankId":"VCB","urlCallBack":"https://m.example/cb"}]}`)
	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", body, map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 1, resp.Summary.Succeeded)
}

func TestCreateOrderRateLimited(t *testing.T) {
	resetAt := time.Now().Add(30 * time.Second)
	svc := &stubOrderService{
		acct:     testAccount(),
		decision: ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: resetAt},
	}
	router := newOrderRouter(svc)

	body := []byte(`[{"odrType":"deposit","amount":1,"bankId":"VCB","urlCallBack":"https://m.example/cb"},{"odrType":"deposit","amount":2,"bankId":"VCB","urlCallBack":"https://m.example/cb"}]`)
	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", body, map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	assert.Nil(t, svc.gotRequests)
}

func TestCreateOrderErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"duplicate merchant order id", order.ErrDuplicateMerchantOrderID{MerchantOrderID: "INV-1"}, http.StatusConflict},
		{"insufficient funds", balance.ErrInsufficientFunds{MerchantPublicID: "MCHT001", Available: 10, Requested: 20}, http.StatusBadRequest},
		{"non-public source ip", service.ErrNonPublicIP, http.StatusForbidden},
		{"invalid amount", order.ErrInvalidAmount, http.StatusBadRequest},
		{"amount out of limits", order.ErrAmountOutOfLimits, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubOrderService{
				acct:     testAccount(),
				decision: allowedDecision(),
				results:  []service.CreateResult{{Err: tt.err}},
			}
			router := newOrderRouter(svc)

			body := []byte(`{"odrType":"deposit","amount":50000,"bankId":"VCB","urlCallBack":"https://m.example/cb"}`)
			w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", body, map[string]string{APIKeyHeader: "key"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, decodeResponse(t, w).Success)
		})
	}
}

func TestCreateOrderMalformedBody(t *testing.T) {
	svc := &stubOrderService{acct: testAccount(), decision: allowedDecision()}
	router := newOrderRouter(svc)

	w := performRequest(router, http.MethodPost, "/api/v1/orders/MCHT001", []byte(`{not json`), map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrders(t *testing.T) {
	svc := &stubOrderService{
		acct:       testAccount(),
		listOrders: []*order.Order{{OrderID: "ODR20260824-AAAAAAAA"}, {OrderID: "ODR20260824-BBBBBBBB"}},
	}
	router := newOrderRouter(svc)

	w := performRequest(router, http.MethodGet, "/api/v1/orders/MCHT001?orderType=deposit&limit=10", nil, map[string]string{APIKeyHeader: "key"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
}
