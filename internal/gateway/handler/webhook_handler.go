package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/platform/storage"
	"github.com/vietpay-gateway/internal/reconciler"
)

// OperatorRoleHeader carries the back-office operator role on admin routes
const OperatorRoleHeader = "X-Operator-Role"

// WebhookHandler handles inbound bank portal webhooks and operator actions
type WebhookHandler struct {
	logger  *slog.Logger
	service service.WebhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, svc service.WebhookService) *WebhookHandler {
	return &WebhookHandler{logger: logger, service: svc}
}

// BankWebhook handles POST /api/v1/webhook/bank/:portal. The response is
// always 200 success so the portal never re-fires a delivery we have already
// recorded; processing failures are logged and resolved through the entry
// ledger instead.
func (h *WebhookHandler) BankWebhook(c *gin.Context) {
	portalID := c.Param("portal")

	var req BankWebhookRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		h.logger.Warn("Failed to decode bank webhook payload",
			"portal_id", portalID,
			"error", err)
		RespondWithMessage(c, http.StatusOK, "Webhook received")
		return
	}

	raw, _ := c.Get(gin.BodyBytesKey)
	rawPayload, _ := raw.([]byte)

	entry, o, err := h.service.ProcessBankWebhook(c.Request.Context(), reconciler.ProcessRequest{
		PortalID:            portalID,
		PortalTransactionID: req.PortalTransactionID(),
		OrderID:             req.OrderID,
		Description:         req.Memo(),
		RawPayload:          string(rawPayload),
	})
	if err != nil {
		h.logger.Warn("Bank webhook left unmatched",
			"portal_id", portalID,
			"portal_transaction_id", req.PortalTransactionID(),
			"error", err)
		RespondWithMessage(c, http.StatusOK, "Webhook received")
		return
	}

	h.logger.Info("Bank webhook matched",
		"portal_id", portalID,
		"portal_transaction_id", entry.PortalTransactionID,
		"order_id", o.OrderID)
	RespondOK(c, o)
}

// UpdateStatus handles POST /api/v1/admin/orders/:orderId/status
func (h *WebhookHandler) UpdateStatus(c *gin.Context) {
	orderID := c.Param("orderId")
	role := c.GetHeader(OperatorRoleHeader)

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	o, err := h.service.UpdateOrderStatus(c.Request.Context(), role, orderID, order.Status(req.Status))
	if err != nil {
		h.respondOperatorError(c, orderID, err)
		return
	}
	RespondOK(c, o)
}

// ResendWebhook handles POST /api/v1/admin/resend-webhook. When the request
// carries a status, the order is first forced through the guarded transition;
// the resulting callback then reports the new status.
func (h *WebhookHandler) ResendWebhook(c *gin.Context) {
	var req ResendWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OrderID == "" {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if req.Status != "" {
		role := c.GetHeader(OperatorRoleHeader)
		o, err := h.service.UpdateOrderStatus(c.Request.Context(), role, req.OrderID, order.Status(req.Status))
		if err != nil {
			h.respondOperatorError(c, req.OrderID, err)
			return
		}
		RespondWithData(c, http.StatusAccepted, o)
		return
	}

	o, err := h.service.ResendNotification(c.Request.Context(), req.OrderID)
	if err != nil {
		h.respondOperatorError(c, req.OrderID, err)
		return
	}
	RespondWithData(c, http.StatusAccepted, o)
}

func (h *WebhookHandler) respondOperatorError(c *gin.Context, orderID string, err error) {
	var transition order.ErrInvalidTransition

	switch {
	case errors.Is(err, service.ErrRoleForbidden):
		RespondForbidden(c, "Operator role does not permit this change")
	case errors.Is(err, order.ErrOrderNotFound{}):
		RespondNotFound(c, "Order not found")
	case errors.Is(err, orders.ErrEntriesRecorded):
		RespondConflict(c, "Order has recorded bank transactions")
	case errors.As(err, &transition):
		RespondConflict(c, transition.Error())
	case errors.Is(err, storage.ErrUnavailable):
		RespondServiceUnavailable(c)
	default:
		h.logger.Error("Failed to apply operator action",
			"order_id", orderID,
			"error", err)
		RespondInternalError(c)
	}
}
