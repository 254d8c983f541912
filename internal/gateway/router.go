// Package gateway wires the HTTP surface: routing, middleware, and the server
// lifecycle.
package gateway

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietpay-gateway/internal/gateway/handler"
	"github.com/vietpay-gateway/internal/gateway/middleware"
	"github.com/vietpay-gateway/internal/gateway/service"
	"github.com/vietpay-gateway/internal/notifier"
	"github.com/vietpay-gateway/internal/platform/storage"
)

// RouterDeps carries everything the router needs to build its handlers
type RouterDeps struct {
	Logger     *slog.Logger
	Orders     service.OrderService
	Validation service.ValidationService
	Webhooks   service.WebhookService
	Resolver   *storage.Resolver
	Notifier   *notifier.Queue
}

// NewRouter builds the gin engine with middleware and all routes registered
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Logger(deps.Logger))

	router.GET("/health", healthHandler(deps.Resolver, deps.Notifier))

	orderHandler := handler.NewOrderHandler(deps.Logger, deps.Orders)
	validationHandler := handler.NewValidationHandler(deps.Logger, deps.Validation, deps.Webhooks)
	webhookHandler := handler.NewWebhookHandler(deps.Logger, deps.Webhooks)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders/:merchantPublicId", orderHandler.Create)
		v1.GET("/orders/:merchantPublicId", orderHandler.List)

		v1.GET("/validate-payment", validationHandler.ValidateGet)
		v1.POST("/validate-payment", validationHandler.ValidatePost)

		v1.POST("/webhook/bank/:portal", webhookHandler.BankWebhook)

		admin := v1.Group("/admin")
		{
			admin.POST("/orders/:orderId/status", webhookHandler.UpdateStatus)
			admin.POST("/resend-webhook", webhookHandler.ResendWebhook)
		}
	}

	return router
}

// healthHandler reports storage tier health and notifier queue depth. The
// service is degraded, not down, while either store is still reachable.
func healthHandler(resolver *storage.Resolver, queue *notifier.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		primary, secondary := resolver.Healthy()

		status := "ok"
		code := http.StatusOK
		switch {
		case !primary && !secondary:
			status = "down"
			code = http.StatusServiceUnavailable
		case !primary || !secondary:
			status = "degraded"
		}

		body := gin.H{
			"status": status,
			"storage": gin.H{
				"tier":      resolver.Tier().String(),
				"primary":   primary,
				"secondary": secondary,
			},
		}
		if queue != nil {
			stats := queue.Stats()
			body["notifier"] = gin.H{
				"pending":   stats.Pending,
				"delivered": stats.Delivered,
				"retried":   stats.Retried,
				"dropped":   stats.Dropped,
				"evicted":   stats.Evicted,
			}
		}
		c.JSON(code, body)
	}
}
