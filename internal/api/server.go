package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/edge-telemetry/internal/history"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/database"
	"github.com/nerrad567/edge-telemetry/internal/infrastructure/logging"
	"github.com/nerrad567/edge-telemetry/internal/metrics"
	"github.com/nerrad567/edge-telemetry/internal/sink"
	"github.com/nerrad567/edge-telemetry/internal/uart"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SettingsStore is the read side of the runtime settings store.
type SettingsStore interface {
	Snapshot() (config.Settings, uint64)
}

// SettingsReplacer swaps in a new settings generation and returns its token.
type SettingsReplacer interface {
	Replace(ctx context.Context, next config.Settings, source string) uint64
}

// SinkStatus reports the state of one sink loop.
type SinkStatus interface {
	Status() sink.Status
}

// IngestStatus reports the state of the serial ingestion loop.
type IngestStatus interface {
	State() uart.State
	LastError() error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Store    SettingsStore
	Replacer SettingsReplacer
	History  history.Repository // optional: nil when history is disabled
	Ingest   IngestStatus       // optional
	Sinks    []SinkStatus
	Snapshot func() []byte // optional: host metrics snapshot in wire form
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // optional: serves /metrics when set
	DB       *database.DB        // optional: history database pool stats
	Version  string
}

// Server is the agent's HTTP API server.
//
// It is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	store     SettingsStore
	replacer  SettingsReplacer
	history   history.Repository
	ingest    IngestStatus
	sinks     []SinkStatus
	snapshot  func() []byte
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	listener  net.Listener

	// putMu serialises settings read-modify-write in handlePutConfig.
	putMu sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if deps.Replacer == nil {
		return nil, fmt.Errorf("settings replacer is required")
	}

	return &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		store:     deps.Store,
		replacer:  deps.Replacer,
		history:   deps.History,
		ingest:    deps.Ingest,
		sinks:     deps.Sinks,
		snapshot:  deps.Snapshot,
		metrics:   deps.Metrics,
		gatherer:  deps.Gatherer,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start binds the listen address and serves in a background goroutine.
//
// Binding happens before Start returns, so a port already in use is
// reported to the caller rather than logged from the background.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
