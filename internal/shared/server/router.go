package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"screenplay-analyzer/internal/services/health"
	"screenplay-analyzer/internal/shared/config"
	"screenplay-analyzer/internal/shared/metrics"
	"screenplay-analyzer/internal/shared/server/middleware"
	"screenplay-analyzer/internal/shared/server/respond"
)

// RouteRegistrar mounts a feature's routes under /api/v1.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Deps are the pieces the router needs from bootstrap.
type Deps struct {
	Health   *health.Service
	Features []RouteRegistrar
	// Limiter is shared across routers in tests; nil builds a fresh one.
	Limiter *middleware.RateLimiter
}

const (
	rateGroupSubmit  = "SUBMIT"
	rateGroupDefault = "DEFAULT"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	if !cfg.IsDevLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigins),
		middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: rateGroupDefault,
			GroupFor:     rateGroupFor,
			Limiter:      deps.Limiter,
			Rules: map[string]middleware.RateLimitRule{
				rateGroupSubmit: {Rate: cfg.SubmitRate, Burst: cfg.SubmitBurst},
			},
		}),
	)

	hs := deps.Health
	if hs == nil {
		hs = health.NewService()
	}
	r.GET("/health", func(c *gin.Context) {
		report := hs.Status(c.Request.Context())
		status := http.StatusOK
		if report.Status != health.StatusOK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	for _, f := range deps.Features {
		f.RegisterRoutes(api)
	}

	return r
}

func rateGroupFor(c *gin.Context) string {
	if c.Request.Method == http.MethodPost {
		switch c.FullPath() {
		case "/api/v1/analyze/text", "/api/v1/analyze/pdf":
			return rateGroupSubmit
		}
	}
	return rateGroupDefault
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8000"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
