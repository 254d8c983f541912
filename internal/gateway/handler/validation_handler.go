package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietpay-gateway/internal/domain/banktx"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/platform/storage"
	"github.com/vietpay-gateway/internal/reconciler"
	"github.com/vietpay-gateway/internal/reconciler/portal"
)

// ValidationHandler exposes payment checks for support tooling. GET is a pure
// dry run; POST commits the match through the same path the bank webhook uses.
type ValidationHandler struct {
	logger   *slog.Logger
	service  service.ValidationService
	webhooks service.WebhookService
}

// NewValidationHandler creates a new validation handler
func NewValidationHandler(logger *slog.Logger, svc service.ValidationService, webhooks service.WebhookService) *ValidationHandler {
	return &ValidationHandler{logger: logger, service: svc, webhooks: webhooks}
}

// ValidateGet handles GET /api/v1/validate-payment. It never mutates state.
func (h *ValidationHandler) ValidateGet(c *gin.Context) {
	req := ValidatePaymentRequest{
		PortalID:            c.Query("portal_id"),
		PortalTransactionID: c.Query("portal_transaction_id"),
		OrderID:             c.Query("order_id"),
	}
	if req.PortalID == "" || (req.PortalTransactionID == "" && req.OrderID == "") {
		RespondBadRequest(c, "portal_id and one of portal_transaction_id or order_id are required")
		return
	}

	v, err := h.service.Validate(c.Request.Context(), req.PortalID, req.PortalTransactionID, req.OrderID)
	if err != nil {
		h.respondValidationError(c, req, err)
		return
	}
	RespondOK(c, v)
}

// ValidatePost handles POST /api/v1/validate-payment: it runs the full match
// and settlement, then reports the outcome as a validation object. Idempotent
// through the duplicate check.
func (h *ValidationHandler) ValidatePost(c *gin.Context) {
	var req ValidatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}
	if req.PortalID == "" || (req.PortalTransactionID == "" && req.OrderID == "") {
		RespondBadRequest(c, "portal_id and one of portal_transaction_id or order_id are required")
		return
	}

	_, o, err := h.webhooks.ProcessBankWebhook(c.Request.Context(), reconciler.ProcessRequest{
		PortalID:            req.PortalID,
		PortalTransactionID: req.PortalTransactionID,
		OrderID:             req.OrderID,
	})
	if err == nil {
		RespondOK(c, gin.H{
			"validation": &reconciler.Validation{
				OrderIDMatch: true,
				AmountMatch:  true,
				IsValid:      true,
			},
			"order": o,
		})
		return
	}

	if v := outcomeValidation(err); v != nil {
		RespondOK(c, gin.H{"validation": v})
		return
	}
	h.respondValidationError(c, req, err)
}

// outcomeValidation translates a recognized match refusal into validation
// flags. Returns nil for infrastructure errors.
func outcomeValidation(err error) *reconciler.Validation {
	switch {
	case errors.Is(err, banktx.ErrDuplicatePayment):
		return &reconciler.Validation{AlreadyProcessed: true}
	case errors.Is(err, reconciler.ErrAmountMismatch):
		return &reconciler.Validation{OrderIDMatch: true}
	case errors.Is(err, reconciler.ErrDebitTransaction):
		return &reconciler.Validation{IsDebitTransaction: true}
	case errors.Is(err, reconciler.ErrCreditTransaction):
		return &reconciler.Validation{OrderIDMatch: true}
	case errors.Is(err, reconciler.ErrOrderNotPayable):
		return &reconciler.Validation{OrderIDMatch: true}
	case errors.Is(err, reconciler.ErrNoOrderReference):
		return &reconciler.Validation{}
	default:
		return nil
	}
}

func (h *ValidationHandler) respondValidationError(c *gin.Context, req ValidatePaymentRequest, err error) {
	var partial reconciler.PartialFailureError

	switch {
	case errors.Is(err, portal.ErrUnknownPortal{}):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, portal.ErrTransactionNotFound):
		RespondNotFound(c, "Transaction not found at portal")
	case errors.Is(err, order.ErrOrderNotFound{}):
		RespondNotFound(c, "Order not found")
	case errors.Is(err, storage.ErrUnavailable):
		RespondServiceUnavailable(c)
	case errors.Is(err, reconciler.ErrRequiresManualReview):
		h.logger.Error("Refused replay of partially settled payment",
			"portal_id", req.PortalID,
			"portal_transaction_id", req.PortalTransactionID)
		RespondWithError(c, http.StatusInternalServerError, "Payment settled partially; manual review required")
	case errors.As(err, &partial):
		h.logger.Error("Payment settled partially",
			"portal_id", req.PortalID,
			"portal_transaction_id", req.PortalTransactionID,
			"stage", partial.Stage,
			"error", err)
		RespondWithError(c, http.StatusInternalServerError, "Payment settled partially; manual review required")
	default:
		h.logger.Error("Failed to validate payment",
			"portal_id", req.PortalID,
			"portal_transaction_id", req.PortalTransactionID,
			"error", err)
		RespondInternalError(c)
	}
}
