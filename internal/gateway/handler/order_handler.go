package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vietpay-gateway/internal/balance"
	"github.com/vietpay-gateway/internal/domain/merchant"
	"github.com/vietpay-gateway/internal/domain/order"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/orders"
	"github.com/vietpay-gateway/internal/platform/storage"
)

// APIKeyHeader carries the merchant API key on authenticated routes
const APIKeyHeader = "X-API-Key"

const maxSubmissionBytes = 1 << 20

// OrderHandler handles merchant order intake and listing
type OrderHandler struct {
	logger  *slog.Logger
	service service.OrderService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(logger *slog.Logger, svc service.OrderService) *OrderHandler {
	return &OrderHandler{logger: logger, service: svc}
}

// Create handles POST /api/v1/orders/:merchantPublicId. The body may be a
// single order, a bare array, or {"orders": [...]}; bulk submissions get a
// per-item result list instead of one verdict for the batch.
func (h *OrderHandler) Create(c *gin.Context) {
	acct, ok := h.authenticate(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSubmissionBytes))
	if err != nil {
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	reqs, bulk, err := parseOrderSubmission(body)
	if err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}
	if len(reqs) == 0 {
		RespondBadRequest(c, "Submission contains no orders")
		return
	}

	decision := h.service.AllowBulk(acct.PublicID, len(reqs))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	}
	if !decision.Allowed {
		retryAfter := int(time.Until(decision.ResetAt).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		RespondWithError(c, http.StatusTooManyRequests, "Bulk submission rate limit exceeded")
		return
	}

	createReqs := make([]orders.CreateRequest, 0, len(reqs))
	for _, r := range reqs {
		createReqs = append(createReqs, r.toCreateRequest())
	}

	results := h.service.CreateOrders(c.Request.Context(), acct, c.ClientIP(), createReqs)

	if !bulk {
		res := results[0]
		if res.Err != nil {
			status, message := orderErrorStatus(res.Err)
			RespondWithError(c, status, message)
			return
		}
		RespondCreated(c, res.Order)
		return
	}

	summary := Summary{Total: len(results)}
	items := make([]OrderResult, 0, len(results))
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
			_, message := orderErrorStatus(res.Err)
			items = append(items, OrderResult{Success: false, Message: message})
			continue
		}
		summary.Succeeded++
		items = append(items, OrderResult{Success: true, Data: res.Order})
	}
	RespondWithResults(c, http.StatusOK, items, summary)
}

// List handles GET /api/v1/orders/:merchantPublicId
func (h *OrderHandler) List(c *gin.Context) {
	acct, ok := h.authenticate(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	orderType := order.Type(c.Query("orderType"))

	list, err := h.service.List(c.Request.Context(), acct.PublicID, orderType, limit, offset)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			RespondServiceUnavailable(c)
			return
		}
		h.logger.Error("Failed to list orders",
			"merchant_public_id", acct.PublicID,
			"error", err)
		RespondInternalError(c)
		return
	}
	RespondOK(c, list)
}

func (h *OrderHandler) authenticate(c *gin.Context) (*merchant.Account, bool) {
	merchantPublicID := c.Param("merchantPublicId")
	apiKey := c.GetHeader(APIKeyHeader)
	if merchantPublicID == "" || apiKey == "" {
		RespondUnauthorized(c, "Missing merchant credentials")
		return nil, false
	}

	acct, err := h.service.Authenticate(c.Request.Context(), merchantPublicID, apiKey)
	if err != nil {
		if errors.Is(err, storage.ErrUnavailable) {
			RespondServiceUnavailable(c)
			return nil, false
		}
		if !errors.Is(err, merchant.ErrAccountNotFound{}) {
			h.logger.Error("Failed to authenticate merchant",
				"merchant_public_id", merchantPublicID,
				"error", err)
		}
		RespondUnauthorized(c, "Invalid merchant credentials")
		return nil, false
	}
	return acct, true
}

// orderErrorStatus maps an order creation failure to an HTTP status and a
// merchant-safe message
func orderErrorStatus(err error) (int, string) {
	var dup order.ErrDuplicateMerchantOrderID
	var insufficient balance.ErrInsufficientFunds

	switch {
	case errors.As(err, &dup):
		return http.StatusConflict, dup.Error()
	case errors.As(err, &insufficient):
		return http.StatusBadRequest, "Insufficient merchant funds"
	case errors.Is(err, service.ErrNonPublicIP):
		return http.StatusForbidden, "Requests must originate from a public IP address"
	case errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable, "Service temporarily unavailable"
	case errors.Is(err, order.ErrInvalidType),
		errors.Is(err, order.ErrInvalidAmount),
		errors.Is(err, order.ErrAmountOutOfLimits),
		errors.Is(err, order.ErrMissingCallbackURL),
		errors.Is(err, order.ErrMissingBankID),
		errors.Is(err, order.ErrMissingBankCode),
		errors.Is(err, order.ErrInvalidReceiveNumber),
		errors.Is(err, order.ErrInvalidOwnerName):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "An internal server error occurred"
	}
}
