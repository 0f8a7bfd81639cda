package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sentiment-api/internal/history"
	"sentiment-api/internal/sentiment"
	"sentiment-api/internal/services/health"
	"sentiment-api/internal/shared/config"
	"sentiment-api/internal/shared/metrics"
	"sentiment-api/internal/shared/server/middleware"
	"sentiment-api/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config         config.Config
	Health         *health.Service
	AnalyzeHandler *sentiment.Handler
	HistoryHandler *history.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Every route is served both at the root and under /api.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.AllowedOrigins()),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService()
	}

	for _, rg := range []gin.IRouter{r, r.Group("/api")} {
		healthSvc.RegisterRoutes(rg)
		rg.GET("/metrics", metrics.Handler())
		if deps.AnalyzeHandler != nil {
			deps.AnalyzeHandler.RegisterRoutes(rg)
		}
		if deps.HistoryHandler != nil {
			deps.HistoryHandler.RegisterRoutes(rg)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Route not found", "")
	})

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":5000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
