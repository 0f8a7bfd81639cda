package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/telemetry"
)

// Context keys handlers may set to enrich the request log line.
const (
	InvocationIDKey     = "invocationId"
	OutcomeKey          = "outcome"
	StatusTransitionKey = "statusTransition"
)

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		telemetry.Info("request.complete", map[string]any{
			"request_id":        RequestIDFromContext(c),
			"method":            c.Request.Method,
			"path":              c.Request.URL.Path,
			"status":            c.Writer.Status(),
			"status_transition": c.GetString(StatusTransitionKey),
			"invocation_id":     c.GetString(InvocationIDKey),
			"outcome":           c.GetString(OutcomeKey),
			"duration_ms":       float64(latency.Microseconds()) / 1000.0,
			"client_ip":         c.ClientIP(),
			"user_agent":        c.Request.UserAgent(),
		})
	}
}
