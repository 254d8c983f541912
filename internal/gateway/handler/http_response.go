package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietpay-gateway/internal/gateway/middleware"
)

// Response is the standard API envelope. Single-resource endpoints fill Data;
// bulk endpoints fill Results and Summary.
type Response struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Results       interface{} `json:"results,omitempty"`
	Summary       *Summary    `json:"summary,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// Summary totals a bulk submission
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RespondWithData sends a success envelope with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{
		Success:       true,
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithMessage sends a success envelope carrying only a message
func RespondWithMessage(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, &Response{
		Success:       true,
		Message:       message,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithResults sends a bulk envelope with per-item results and a summary
func RespondWithResults(c *gin.Context, statusCode int, results interface{}, summary Summary) {
	c.JSON(statusCode, &Response{
		Success:       summary.Failed == 0,
		Results:       results,
		Summary:       &summary,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a failure envelope
func RespondWithError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, &Response{
		Success:       false,
		Message:       message,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, message)
}

// RespondUnauthorized sends a 401 Unauthorized response
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	RespondWithError(c, http.StatusUnauthorized, message)
}

// RespondForbidden sends a 403 Forbidden response
func RespondForbidden(c *gin.Context, message string) {
	if message == "" {
		message = "Forbidden"
	}
	RespondWithError(c, http.StatusForbidden, message)
}

// RespondNotFound sends a 404 Not Found response
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, message)
}

// RespondConflict sends a 409 Conflict response
func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, message)
}

// RespondInternalError sends a 500 Internal Server Error response
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "An internal server error occurred")
}

// RespondServiceUnavailable sends a 503 response for storage outages
func RespondServiceUnavailable(c *gin.Context) {
	RespondWithError(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
}
