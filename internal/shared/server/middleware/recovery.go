package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/shared/server/respond"
	"sentiment-api/internal/shared/telemetry"
)

// Recovery turns a panic into an INTERNAL_FAULT response. The panic value
// and stack are logged, never sent to the client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("panic", map[string]any{
					"request_id": RequestIDFromContext(c),
					"error":      rec,
					"stack":      string(debug.Stack()),
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
				})
				c.Set(OutcomeKey, "InternalFault")
				respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "Internal server error", "")
			}
		}()
		c.Next()
	}
}
