package frontend

import (
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/internal/metrics"
	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/pages"
	"github.com/bitware/aifactory-console/ui/shell"
)

// Config holds frontend router configuration.
type Config struct {
	// BasePath is the URL prefix where the console is mounted. Links and
	// cookies are scoped to it; the handler itself expects the prefix to
	// be stripped.
	BasePath string

	// API is the backend client without a session. Each request binds it
	// to the caller's token.
	API *api.Client

	// Sessions stores logged-in browsers.
	Sessions session.Store

	// SessionTTL caps how long a login lives.
	SessionTTL time.Duration

	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	// ReadOnly disables write operations on every page.
	ReadOnly bool

	// PageSize for pagination.
	PageSize int

	// RefreshInterval for auto-refresh of live pages.
	RefreshInterval time.Duration

	// Routes defaults to shell.DefaultRoutes.
	Routes []shell.Route

	// Metrics is optional. When set, requests, live connections, logins
	// and page lifecycles are recorded and /metrics is served.
	Metrics *metrics.Metrics

	// Clock drives page refresh timers. Defaults to the system clock.
	Clock page.Clock

	// Now defaults to time.Now.
	Now func() time.Time

	// Logger for structured logging.
	Logger Logger
}

// Logger interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// router holds the frontend router state.
type router struct {
	config   *Config
	renderer *renderer
	upgrader websocket.Upgrader
	logger   Logger
}

// NewRouter creates the console's HTTP handler.
func NewRouter(cfg *Config) http.Handler {
	if cfg.Routes == nil {
		cfg.Routes = shell.DefaultRoutes()
	}
	if cfg.Clock == nil {
		cfg.Clock = page.SystemClock()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rt := &router{
		config:   cfg,
		renderer: newRenderer(cfg),
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.RequestTrackingMiddleware)
	}
	r.Use(rt.recoveryMiddleware)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/healthz", rt.handleHealth)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	r.Get("/login", rt.handleLoginPage)
	r.Post("/login", rt.handleLogin)
	r.Post("/logout", rt.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(rt.requireSession)
		r.Get("/ws", rt.handleLive)
		r.Get("/export/clients.csv", rt.handleExportClients)
		r.Get("/*", rt.handlePage)
	})

	return r
}

// recoveryMiddleware recovers from panics.
func (rt *router) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				rt.logger.Error("panic recovered", "error", err, "path", r.URL.Path,
					"request_id", middleware.GetReqID(r.Context()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (rt *router) now() time.Time { return rt.config.Now() }

// deps builds the page collaborators for one session. Snapshot renders
// get no refresh timer; their page is unmounted right after rendering.
func (rt *router) deps(info session.Info, live bool) pages.Deps {
	d := pages.Deps{
		API:      rt.config.API.WithSession(info.Token),
		Session:  info,
		Clock:    rt.config.Clock,
		Now:      rt.config.Now,
		Logger:   rt.logger,
		PageSize: rt.config.PageSize,
		ReadOnly: rt.config.ReadOnly,
	}
	if rt.config.Metrics != nil {
		d.Observer = rt.config.Metrics
	}
	if live {
		d.RefreshInterval = rt.config.RefreshInterval
	}
	return d
}

// pagePath strips a trailing slash; "/" stays as is.
func pagePath(p string) string {
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
