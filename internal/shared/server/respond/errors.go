package respond

import (
	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/telemetry"
)

// Codes shared by middleware and handlers.
const (
	CodeValidation   = "VALIDATION_FAILED"
	CodeInternal     = "INTERNAL_FAULT"
	CodeRateLimited  = "RATE_LIMITED"
	CodeBodyTooLarge = "BODY_TOO_LARGE"
	CodeNotFound     = "NOT_FOUND"
)

// ErrorResponse is the body of every failed request. Error is safe to show
// to end users; Details is informational only.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Error sends a standardized error response and aborts the chain.
func Error(c *gin.Context, status int, code, message, details string) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if details != "" {
		fields["details"] = details
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Success: false,
		Code:    code,
		Error:   message,
		Details: details,
	})
}
