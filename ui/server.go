// Package ui serves stored analysis sessions as browsable reports.
package ui

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"variatio/adapters/report"
	"variatio/ports"
)

// Server is the report viewer
type Server struct {
	router    *gin.Engine
	repo      ports.MetricRepository
	renderer  *report.Renderer
	alpha     float64
	templates *template.Template
	logger    *zap.Logger
}

// NewServer creates the report viewer over a metric repository
func NewServer(repo ports.MetricRepository, alpha float64, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	renderer := report.NewRenderer(alpha)
	s := &Server{
		router:    gin.New(),
		repo:      repo,
		renderer:  renderer,
		alpha:     renderer.Alpha(),
		templates: templates,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger(s.logger))
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	sessions := s.router.Group("/sessions/:id")
	{
		sessions.GET("", s.handleSession)
		sessions.GET("/report.md", s.handleMarkdown)
		sessions.GET("/report.html", s.handleHTML)
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("report viewer listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request through zap instead of gin's stdout logger
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
