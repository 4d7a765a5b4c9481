package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"leadscope/app"
)

const shutdownGrace = 10 * time.Second

// Server exposes the scan service over HTTP
type Server struct {
	router   *gin.Engine
	service  *app.ScanService
	gatherer prometheus.Gatherer
	limits   Limits
	logger   zerolog.Logger
}

// NewServer builds the router. gatherer backs /metrics and may be nil.
func NewServer(service *app.ScanService, gatherer prometheus.Gatherer, logger zerolog.Logger, opts ...ServerOption) *Server {
	s := &Server{
		router:   gin.New(),
		service:  service,
		gatherer: gatherer,
		limits:   DefaultLimits(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1", s.limitBody)
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/scan", s.handleScan)
	v1.POST("/backtest", s.handleBacktest)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("starting leadscope API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	s.logger.Info().Msg("shutting down leadscope API")
	return srv.Shutdown(shutdownCtx)
}
