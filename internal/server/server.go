// Package server exposes sync triggers and task status over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rickgao/quotesync/internal/model"
	"github.com/rickgao/quotesync/internal/syncer"
	"github.com/rickgao/quotesync/internal/task"
)

// Syncer is the sync surface served over HTTP. *syncer.Service implements it.
type Syncer interface {
	SyncInstrumentList(ctx context.Context, cat model.Category, exchanges []string) (syncer.ListResult, error)
	SyncOne(ctx context.Context, symbol string) (syncer.OneResult, error)
	SyncBatch(ctx context.Context, req syncer.BatchRequest, onProgress syncer.ProgressFunc) (syncer.Summary, error)
	Runs(ctx context.Context, limit int) ([]model.SyncRun, error)
	Ping(ctx context.Context) error
}

// Config holds server settings.
type Config struct {
	Port            int
	TaskRetention   time.Duration // Finished tasks older than this are dropped
	CleanupInterval time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:            7777,
		TaskRetention:   24 * time.Hour,
		CleanupInterval: time.Hour,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP trigger surface.
type Server struct {
	cfg    Config
	svc    Syncer
	tasks  *task.Manager
	logger *slog.Logger
	engine *gin.Engine
}

// New creates a Server and registers its routes.
func New(cfg Config, svc Syncer, tasks *task.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{cfg: cfg, svc: svc, tasks: tasks, logger: logger, engine: engine}
	s.register(engine)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) register(r *gin.Engine) {
	r.GET("/health", s.health)

	api := r.Group("/api/sync")
	api.POST("/instruments", s.syncInstruments)
	api.POST("/one", s.syncOne)
	api.POST("/batch", s.syncBatch)
	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/:id", s.getTask)
	api.POST("/tasks/:id/stop", s.stopTask)
	api.GET("/runs", s.listRuns)
}

// Run serves until ctx is cancelled, then shuts down gracefully. Finished
// tasks are pruned periodically while running.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case err, ok := <-errCh:
			if ok {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ticker.C:
			if s.cfg.TaskRetention > 0 {
				s.tasks.Cleanup(s.cfg.TaskRetention)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
			s.logger.Info("http server stopped")
			return nil
		}
	}
}

// requestLogger logs each request at debug, and 5xx responses at warn.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("http request failed", attrs...)
			return
		}
		logger.Debug("http request", attrs...)
	}
}
