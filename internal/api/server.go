package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dewansh/dewhome-core/internal/audit"
	"github.com/dewansh/dewhome-core/internal/auth"
	"github.com/dewansh/dewhome-core/internal/automation"
	"github.com/dewansh/dewhome-core/internal/device"
	"github.com/dewansh/dewhome-core/internal/gpio"
	"github.com/dewansh/dewhome-core/internal/infrastructure/config"
	"github.com/dewansh/dewhome-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Devices   *device.Controller
	Catalog   *gpio.Catalog
	Actions   *automation.Registry
	Scheduler *automation.Scheduler

	// Auth enables bearer token authentication when set.
	Auth *auth.Authenticator

	// Audit records mutations when set and serves GET /audit.
	Audit audit.Repository

	// Checks are reported on /health by name. A failing check marks the
	// service degraded but does not fail the request.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	devices   *device.Controller
	registry  *device.Registry
	catalog   *gpio.Catalog
	actions   *automation.Registry
	scheduler *automation.Scheduler
	auth      *auth.Authenticator
	audit     audit.Repository
	checks    map[string]HealthChecker
	version   string
	startTime time.Time

	hub     *Hub
	metrics *Metrics

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	serveErr chan error
}

// New creates an API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	case deps.Devices == nil:
		return nil, errors.New("device controller is required")
	case deps.Catalog == nil:
		return nil, errors.New("pin catalog is required")
	case deps.Actions == nil:
		return nil, errors.New("action registry is required")
	case deps.Scheduler == nil:
		return nil, errors.New("scheduler is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		devices:   deps.Devices,
		registry:  deps.Devices.Registry(),
		catalog:   deps.Catalog,
		actions:   deps.Actions,
		scheduler: deps.Scheduler,
		auth:      deps.Auth,
		audit:     deps.Audit,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}
	s.hub = NewHub(deps.WS, deps.Logger)
	s.metrics = NewMetrics(s)
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background. The WebSocket hub
// runs until Close or until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return errors.New("api server already started")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(hubCtx)

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}
	s.serveErr = make(chan error, 1)

	srv := s.server
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			s.logger.Error("API server error", "error", err)
		}
		s.serveErr <- err
		close(s.serveErr)
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Done returns a channel that yields the serve error, nil after a clean
// shutdown, once the listener stops.
func (s *Server) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Close stops the hub and waits up to ten seconds for in-flight requests.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	cancel := s.cancel
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
