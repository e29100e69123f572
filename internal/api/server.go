// Package api provides the HTTP REST API and WebSocket server for the
// rig: system status, manual actions, pest response triggering, sensor
// snapshots and history queries, plus a real-time event stream.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: all methods are safe for concurrent use.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/verdantlabs/pestguard-core/internal/history"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/config"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/database"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/influxdb"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/logging"
	"github.com/verdantlabs/pestguard-core/internal/infrastructure/mqtt"
	"github.com/verdantlabs/pestguard-core/internal/orchestrator"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	System  *orchestrator.System
	History history.Repository
	DB      *database.DB     // optional: reported in health
	MQTT    *mqtt.Client     // optional: reported in health
	Influx  *influxdb.Client // optional: reported in health
	Version string
}

// Server is the rig's HTTP API server. It manages the listener,
// routes, middleware and the WebSocket hub. Create with New() and
// start with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	system  *orchestrator.System
	repo    history.Repository
	db      *database.DB
	mqtt    *mqtt.Client
	influx  *influxdb.Client
	version string
	server  *http.Server
	hub     *Hub
	cancel  context.CancelFunc
}

// New creates an API server with the given dependencies.
//
// Returns:
//   - *Server: configured server ready to start
//   - error: if required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.System == nil {
		return nil, fmt.Errorf("orchestrator system is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		system:  deps.System,
		repo:    deps.History,
		db:      deps.DB,
		mqtt:    deps.MQTT,
		influx:  deps.Influx,
		version: deps.Version,
	}, nil
}

// Hub returns the WebSocket hub, available after Start. The
// orchestrator's broadcast callback should feed it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections. The WebSocket hub and
// listener run in background goroutines; stop them with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.cfg.WebSocket, s.logger)
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to ten
// seconds for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
