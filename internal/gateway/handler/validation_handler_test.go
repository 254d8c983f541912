package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/reconciler"
	"github.com/vietpay-gateway/internal/reconciler/portal"
)

type stubValidationService struct {
	validation *reconciler.Validation
	err        error

	gotPortalID string
	gotTxID     string
	gotOrderID  string
}

func (s *stubValidationService) Validate(_ context.Context, portalID, portalTransactionID, orderID string) (*reconciler.Validation, error) {
	s.gotPortalID = portalID
	s.gotTxID = portalTransactionID
	s.gotOrderID = orderID
	return s.validation, s.err
}

func newValidationRouter(svc service.ValidationService, webhooks service.WebhookService) *gin.Engine {
	router := gin.New()
	h := NewValidationHandler(testLogger(), svc, webhooks)
	router.GET("/api/v1/validate-payment", h.ValidateGet)
	router.POST("/api/v1/validate-payment", h.ValidatePost)
	return router
}

func TestValidatePaymentGet(t *testing.T) {
	svc := &stubValidationService{
		validation: &reconciler.Validation{OrderIDMatch: true, AmountMatch: true, IsValid: true},
	}
	router := newValidationRouter(svc, &stubWebhookService{})

	w := performRequest(router, http.MethodGet, "/api/v1/validate-payment?portal_id=sepay&portal_transaction_id=92837&order_id=ODR20260824-3F7A9C1B", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "sepay", svc.gotPortalID)
	assert.Equal(t, "92837", svc.gotTxID)
	assert.Equal(t, "ODR20260824-3F7A9C1B", svc.gotOrderID)
}

func TestValidatePaymentPostCommits(t *testing.T) {
	webhooks := &stubWebhookService{
		entry: &banktx.Entry{PortalID: "sepay", PortalTransactionID: "92837"},
		order: &order.Order{OrderID: "ODR20260824-3F7A9C1B", Status: order.StatusCompleted},
	}
	router := newValidationRouter(&stubValidationService{}, webhooks)

	body := []byte(`{"portal_id":"sepay","portal_transaction_id":"92837","order_id":"ODR20260824-3F7A9C1B"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/validate-payment", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "sepay", webhooks.gotRequest.PortalID)
	assert.Equal(t, "92837", webhooks.gotRequest.PortalTransactionID)
	assert.Equal(t, "ODR20260824-3F7A9C1B", webhooks.gotRequest.OrderID)
}

func TestValidatePaymentPostDuplicateReportsAlreadyProcessed(t *testing.T) {
	webhooks := &stubWebhookService{err: banktx.ErrDuplicatePayment}
	router := newValidationRouter(&stubValidationService{}, webhooks)

	body := []byte(`{"portal_id":"sepay","portal_transaction_id":"92837"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/validate-payment", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"alreadyProcessed":true`)
}

func TestValidatePaymentPostAmountMismatch(t *testing.T) {
	webhooks := &stubWebhookService{err: reconciler.ErrAmountMismatch}
	router := newValidationRouter(&stubValidationService{}, webhooks)

	body := []byte(`{"portal_id":"sepay","portal_transaction_id":"92837"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/validate-payment", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isValid":false`)
	assert.Contains(t, w.Body.String(), `"orderIdMatch":true`)
}

func TestValidatePaymentByOrderIDOnly(t *testing.T) {
	svc := &stubValidationService{
		validation: &reconciler.Validation{OrderIDMatch: true, AmountMatch: true, IsValid: true},
	}
	router := newValidationRouter(svc, &stubWebhookService{})

	w := performRequest(router, http.MethodGet, "/api/v1/validate-payment?portal_id=sepay&order_id=ODR20260824-3F7A9C1B", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
	assert.Empty(t, svc.gotTxID)
	assert.Equal(t, "ODR20260824-3F7A9C1B", svc.gotOrderID)
}

func TestValidatePaymentMissingParams(t *testing.T) {
	router := newValidationRouter(&stubValidationService{}, &stubWebhookService{})

	w := performRequest(router, http.MethodGet, "/api/v1/validate-payment?portal_id=sepay", nil, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidatePaymentPostCreditForWithdrawal(t *testing.T) {
	webhooks := &stubWebhookService{err: reconciler.ErrCreditTransaction}
	router := newValidationRouter(&stubValidationService{}, webhooks)

	body := []byte(`{"portal_id":"sepay","portal_transaction_id":"92837"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/validate-payment", body, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isValid":false`)
	assert.Contains(t, w.Body.String(), `"isDebitTransaction":false`)
}

func TestValidatePaymentPostSettledEntryRefused(t *testing.T) {
	webhooks := &stubWebhookService{err: reconciler.ErrRequiresManualReview}
	router := newValidationRouter(&stubValidationService{}, webhooks)

	body := []byte(`{"portal_id":"sepay","portal_transaction_id":"92837"}`)
	w := performRequest(router, http.MethodPost, "/api/v1/validate-payment", body, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "manual review")
}

func TestValidatePaymentErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown portal", portal.ErrUnknownPortal{PortalID: "other"}, http.StatusBadRequest},
		{"transaction not found", portal.ErrTransactionNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubValidationService{err: tt.err}
			router := newValidationRouter(svc, &stubWebhookService{})

			w := performRequest(router, http.MethodGet, "/api/v1/validate-payment?portal_id=other&portal_transaction_id=1", nil, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
