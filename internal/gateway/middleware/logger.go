package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger writes one line per request. Webhook deliveries dominate the
// traffic, so the portal and merchant route params are promoted to fields
// for searchability.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		requestLogger := logger
		if correlationID := GetCorrelationID(c); correlationID != "" {
			requestLogger = logger.With("correlation_id", correlationID)
		}

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		}
		if portal := c.Param("portal"); portal != "" {
			attrs = append(attrs, "portal_id", portal)
		}
		if merchant := c.Param("merchantPublicId"); merchant != "" {
			attrs = append(attrs, "merchant_public_id", merchant)
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			requestLogger.Error("HTTP request", attrs...)
			return
		}
		requestLogger.Info("HTTP request", attrs...)
	}
}
