// Package status serves the daemon's health and run state over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/spigell/hire-responder/internal/pipeline"
	"github.com/spigell/hire-responder/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

type StateProvider interface {
	State() pipeline.State
}

type Trigger interface {
	Trigger() error
}

type Server struct {
	addr    string
	echo    *echo.Echo
	state   StateProvider
	trigger Trigger
	version string
	started time.Time
	logger  *zap.Logger
}

// New builds the server. trigger may be nil, which disables POST /run.
func New(addr, version string, state StateProvider, trigger Trigger, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		addr:    addr,
		echo:    e,
		state:   state,
		trigger: trigger,
		version: version,
		started: time.Now(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	if s.trigger != nil {
		s.echo.POST("/run", s.handleRun)
	}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Version string         `json:"version"`
	Uptime  string         `json:"uptime"`
	State   pipeline.State `json:"pipeline"`
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		State:   s.state.State(),
	})
}

func (s *Server) handleRun(c echo.Context) error {
	err := s.trigger.Trigger()
	if errors.Is(err, pipeline.ErrAlreadyRunning) {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	if errors.Is(err, scheduler.ErrStopped) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started"})
}
