package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse wraps a successful payload.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK {success:true, data} envelope.
func OK(c *gin.Context, data any) {
	JSON(c, http.StatusOK, SuccessResponse{Success: true, Data: data})
}
