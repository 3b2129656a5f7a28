package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"legal-analyzer/internal/shared/config"
	"legal-analyzer/internal/shared/metrics"
	"legal-analyzer/internal/shared/server/middleware"
	"legal-analyzer/internal/shared/server/respond"
)

// Routes is implemented by every handler mounted under /api.
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, routes ...Routes) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Metrics(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())
	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "not_found", "route not found", nil)
	})

	api := r.Group("/api")
	for _, rt := range routes {
		rt.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
