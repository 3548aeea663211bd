package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimburion/recordbench/pkg/health"
	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/observability/metrics"
)

// ManagementServer serves liveness, readiness and Prometheus metrics next to a
// running benchmark:
//   - /health: liveness, always 200
//   - /ready: runs the health registry, 503 when any check is unhealthy
//   - /metrics: the metrics registry in Prometheus exposition format
type ManagementServer struct {
	*Server
	engine          *gin.Engine
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
}

// NewManagementServer builds the gin engine and registers the management endpoints.
func NewManagementServer(addr string, log logger.Logger, healthRegistry *health.Registry, metricsRegistry *metrics.Registry) *ManagementServer {
	if log == nil {
		log = logger.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &ManagementServer{
		Server: NewServer(Config{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}, engine, log),
		engine:          engine,
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
	}
	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	engine.GET("/metrics", gin.WrapH(metricsRegistry.Handler()))
	return s
}

// Handler exposes the engine, mainly for httptest.
func (s *ManagementServer) Handler() http.Handler {
	return s.engine
}

func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
}

func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.healthRegistry.Check(c.Request.Context())
	if !result.IsHealthy() {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// requestLogger logs every management request at debug level; scrapes are frequent.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("management request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
