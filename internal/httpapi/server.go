// Package httpapi exposes the quiz and routine generation over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dshills/skinroutine/internal/logger"
	"github.com/dshills/skinroutine/internal/orchestrator"
	"github.com/dshills/skinroutine/internal/store"
)

// Server wires the HTTP routes to an orchestrator and an optional store.
type Server struct {
	orch    *orchestrator.Orchestrator
	backend store.Backend
	log     *logger.Logger
}

// New returns a Server. A nil backend disables persistence and the saved
// routine endpoint answers 503.
func New(orch *orchestrator.Orchestrator, backend store.Backend, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{orch: orch, backend: backend, log: log}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	v1 := r.Group("/api/v1")
	v1.GET("/quiz/questions", s.handleQuestions)
	v1.POST("/routines", s.handleGenerate)
	v1.GET("/routines/:user_id", s.handleLoadSaved)
	v1.GET("/routines/:user_id/:period", s.handleLoadPeriod)
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
