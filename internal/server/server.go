// Package server hosts the tool API: operation catalog, invocation,
// health, and metrics endpoints over HTTP/JSON.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/bc-dunia/sysagent/internal/artifacts"
	"github.com/bc-dunia/sysagent/internal/auth"
	"github.com/bc-dunia/sysagent/internal/config"
	"github.com/bc-dunia/sysagent/internal/events"
	"github.com/bc-dunia/sysagent/internal/metrics"
	"github.com/bc-dunia/sysagent/internal/ops"
	"github.com/bc-dunia/sysagent/internal/otel"
	"github.com/bc-dunia/sysagent/internal/retention"
)

// Config configures the tool server. A nil Registry makes New build
// one with the built-in operations backed by a filesystem store under
// BaseDir. Nil observability fields default to a noop logger, a fresh
// metrics collector, and a noop tracer.
type Config struct {
	Addr     string
	BaseDir  string
	Auth     *auth.Config
	Registry *ops.Registry
	Events   *events.EventLogger
	Metrics  *metrics.Collector
	Tracer   *otel.Tracer

	// Retention enables background pruning of stored artifacts. It
	// only applies when the server owns its store, so it is ignored
	// when Registry is set.
	Retention *retention.Config
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:    config.DefaultServerAddr,
		BaseDir: ".",
	}
}

// Server is the HTTP tool server.
type Server struct {
	cfg        *Config
	registry   *ops.Registry
	events     *events.EventLogger
	metrics    *metrics.Collector
	tracer     *otel.Tracer
	sweeper    *retention.Manager
	httpServer *http.Server
	listener   net.Listener
	addr       string
}

// New builds a server from the configuration.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	registry := cfg.Registry
	var store *artifacts.FilesystemStore
	if registry == nil {
		baseDir := cfg.BaseDir
		if baseDir == "" {
			baseDir = "."
		}
		fs, err := artifacts.NewFilesystemStore(baseDir)
		if err != nil {
			return nil, fmt.Errorf("artifact store: %w", err)
		}
		store = fs
		registry = ops.NewRegistry()
		if err := ops.RegisterBuiltins(registry, store); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		events:   cfg.Events,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
	}
	if s.events == nil {
		s.events = events.NoopEventLogger()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewCollector()
	}
	if s.tracer == nil {
		s.tracer = otel.NoopTracer()
	}
	if cfg.Retention != nil && store != nil {
		s.sweeper = retention.NewManager(*cfg.Retention, store, s.events)
	}
	s.metrics.SetRegisteredOperations(registry.Count())
	return s, nil
}

// Start begins listening and serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", normalizeAddr(s.cfg.Addr))
	if err != nil {
		return err
	}
	s.listener = ln
	s.addr = ln.Addr().String()

	s.httpServer = &http.Server{
		Handler: s.buildHandler(),
	}

	go func() {
		_ = s.httpServer.Serve(ln)
	}()
	if s.sweeper != nil {
		s.sweeper.Start()
	}

	s.events.LogServerStarted(s.addr, s.registry.Count())
	return nil
}

func (s *Server) buildHandler() http.Handler {
	authCfg := s.cfg.Auth
	if authCfg == nil {
		authCfg = auth.DefaultConfig()
	}
	mw := auth.NewMiddleware(authCfg, auth.NewAPIKeyAuthenticator(authCfg))

	var handler http.Handler = s.routes()
	handler = mw.Handler(handler)
	handler = s.tracer.HTTPMiddleware(handler)
	return handler
}

// Stop gracefully shuts the server down, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Stop(ctx context.Context) {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.httpServer == nil {
		return
	}
	_ = s.httpServer.Shutdown(ctx)
	s.events.LogServerStopped("shutdown")
}

// Addr returns the bound listen address, empty before Start.
func (s *Server) Addr() string {
	return s.addr
}

// BaseURL returns the http URL clients should dial, empty before Start.
func (s *Server) BaseURL() string {
	if s.addr == "" {
		return ""
	}
	return "http://" + s.addr
}

// Registry exposes the operation registry, mainly for tests that
// register extra operations.
func (s *Server) Registry() *ops.Registry {
	return s.registry
}

// StartTestServer starts a server on an ephemeral loopback port and
// returns it with a cleanup function.
func StartTestServer(cfg *Config) (*Server, func(), error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	srv, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
		defer cancel()
		srv.Stop(ctx)
	}
	return srv, cleanup, nil
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return config.DefaultServerAddr
	}
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		return "127.0.0.1:" + port
	}
	return addr
}
