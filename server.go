package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/internal/metrics"
	"github.com/bitware/aifactory-console/maintenance"
	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/frontend"
)

// Version is the current console version
const Version = "1.0.0"

// sessionStore is a session.Store the sweeper can clean.
type sessionStore interface {
	session.Store
	maintenance.Sweepable
}

// Server is the console HTTP server with its session store and
// background sweeper.
type Server struct {
	config  *Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	sessions sessionStore
	pool     *pgxpool.Pool
	sweeper  *maintenance.Sweeper
	handler  http.Handler

	httpServer *http.Server
	mu         sync.Mutex
	listener   net.Listener
	serveErr   chan error
	started    atomic.Bool
}

// NewServer wires the console. For the postgres session store it connects
// and migrates the session table, so ctx bounds that setup.
func NewServer(ctx context.Context, cfg *Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  logger,
		metrics: metrics.NewMetrics(),
	}

	client, err := api.New(api.Config{
		BaseURL:    cfg.BackendURL,
		WorkerURLs: cfg.WorkerURLs,
		Timeout:    cfg.RequestTimeout,
		Logger:     logger.With("component", "api"),
		Observer:   s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := s.openSessions(ctx); err != nil {
		return nil, err
	}

	s.sweeper = maintenance.NewSweeper(s.sessions, &maintenance.SweeperConfig{
		Interval: cfg.SweepInterval,
		OnSweep: func(n int64) {
			s.metrics.SessionsSwept.Add(float64(n))
			logger.Debug("expired sessions removed", "count", n)
		},
		OnError: func(err error) {
			logger.Warn("session sweep failed", "error", err)
		},
	})

	s.handler = frontend.NewRouter(&frontend.Config{
		BasePath:        cfg.BasePath,
		API:             client,
		Sessions:        s.sessions,
		SessionTTL:      cfg.SessionTTL,
		SecureCookies:   cfg.SecureCookies,
		ReadOnly:        cfg.ReadOnly,
		PageSize:        cfg.PageSize,
		RefreshInterval: cfg.RefreshInterval,
		Metrics:         s.metrics,
		Logger:          logger.With("component", "frontend"),
	})
	if cfg.BasePath != "" {
		s.handler = http.StripPrefix(cfg.BasePath, s.handler)
	}
	return s, nil
}

func (s *Server) openSessions(ctx context.Context) error {
	switch s.config.SessionStore {
	case SessionStorePostgres:
		pool, err := pgxpool.New(ctx, s.config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		store := session.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return err
		}
		s.pool = pool
		s.sessions = store
	default:
		s.sessions = session.NewMemoryStore()
	}
	return nil
}

// Handler returns the console's HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Sessions returns the session store.
func (s *Server) Sessions() session.Store { return s.sessions }

// Start listens on ListenAddr and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr, err)
	}

	if err := s.sweeper.Start(ctx); err != nil {
		ln.Close()
		s.started.Store(false)
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.serveErr = make(chan error, 1)
	go func() {
		err := s.httpServer.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.serveErr <- err
	}()

	s.logger.Info("console listening", "addr", ln.Addr().String(), "base_path", s.config.BasePath,
		"session_store", s.config.SessionStore)
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the HTTP server down gracefully, stops the sweeper and
// closes the database pool.
func (s *Server) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return ErrServerNotStarted
	}

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := <-s.serveErr; err != nil {
		errs = append(errs, fmt.Errorf("http serve: %w", err))
	}
	if err := s.sweeper.Stop(); err != nil && !errors.Is(err, maintenance.ErrNotStarted) {
		errs = append(errs, err)
	}
	if s.pool != nil {
		s.pool.Close()
	}

	s.started.Store(false)
	s.logger.Info("console stopped")
	return errors.Join(errs...)
}

// Run starts the server and blocks until ctx is done, then shuts down
// within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err := <-s.serveErr:
		// Serve failed on its own; put the result back for Stop.
		s.serveErr <- err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}
