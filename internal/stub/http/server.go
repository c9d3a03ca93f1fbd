package http

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/allisson/protect/internal/metrics"
)

// RouterConfig holds the options for building the stub router.
type RouterConfig struct {
	// Logger receives request logs and handler diagnostics.
	Logger *slog.Logger
	// MeterProvider enables HTTP request metrics and the /metrics endpoint
	// when MetricsHandler is also set.
	MeterProvider otelmetric.MeterProvider
	// MetricsNamespace prefixes metric names, e.g. "protect_stub".
	MetricsNamespace string
	// MetricsHandler serves the Prometheus exposition endpoint. Nil disables
	// /metrics.
	MetricsHandler http.Handler
	// CORSAllowOrigins is a comma-separated list of allowed origins. Empty
	// disables CORS handling.
	CORSAllowOrigins string
}

// NewRouter builds the stub's gin router: protect/reveal endpoints, health,
// optional metrics, request IDs, and structured request logging.
func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(RequestLoggerMiddleware(cfg.Logger))

	if cfg.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MeterProvider, cfg.MetricsNamespace))
	}

	if cfg.CORSAllowOrigins != "" {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowOrigins, ",")
		corsConfig.AllowMethods = []string{"POST", "GET", "OPTIONS"}
		router.Use(cors.New(corsConfig))
	}

	router.GET("/health", HealthHandler)
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	router.POST("/v1/protect", handler.ProtectHandler)
	router.POST("/v1/reveal", handler.RevealHandler)

	return router
}

// RequestLoggerMiddleware logs one line per request. Request and response
// bodies are never logged; they carry payloads.
func RequestLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", requestid.Get(c)),
		)
	}
}

// Server is the stub's HTTP server with graceful shutdown.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a stub server listening on addr with the given router.
func NewServer(addr string, router *gin.Engine, logger *slog.Logger) *Server {
	return &Server{
		logger: logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the stub HTTP server. Blocks until the server stops. Request
// contexts derive from ctx, so in-flight handlers observe its cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting stub server", slog.String("addr", s.server.Addr))

	s.server.BaseContext = func(net.Listener) context.Context {
		return ctx
	}

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start stub server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the stub HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down stub server")
	return s.server.Shutdown(ctx)
}
