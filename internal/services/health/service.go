package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Status is the liveness payload. It reports only that the process is
// serving; the inference worker is not probed.
type Status struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Service encapsulates health-related checks.
type Service struct{}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{}
}

// Status returns the liveness payload.
func (s *Service) Status() Status {
	return Status{Status: "OK", Message: "Server is running"}
}

// RegisterRoutes attaches GET /health to the router group.
func (s *Service) RegisterRoutes(rg gin.IRouter) {
	rg.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Status())
	})
}
