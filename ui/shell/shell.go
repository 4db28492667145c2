// Package shell is the console's router and layout controller. A Shell
// owns one browser tab: it matches paths against the route table,
// mounts the matching page into the tab's container, unmounts the
// previous one and forwards browser actions to mounted pages.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/pages"
)

// Shell errors.
var (
	// ErrNotFound indicates a path no route matches.
	ErrNotFound = errors.New("shell: no route")

	// ErrForbidden indicates a route the session's role may not open.
	ErrForbidden = errors.New("shell: route not allowed for role")

	// ErrNoPage indicates an action for a page that is not mounted.
	ErrNoPage = errors.New("shell: page not mounted")

	// ErrClosed indicates the shell was closed.
	ErrClosed = errors.New("shell: closed")
)

// ActionNavigate is the action name the shell handles itself.
const ActionNavigate = "navigate"

// Locator is implemented by containers that can move the browser's
// address bar.
type Locator interface {
	Location(path string) error
}

// Config configures a Shell.
type Config struct {
	// Deps are handed to every page. The shell sets itself as the
	// Navigator and creates a Registry when none is given.
	Deps pages.Deps

	// Container receives the mounted page's output.
	Container page.Container

	// Routes defaults to DefaultRoutes.
	Routes []Route

	Logger page.Logger
}

// Shell mounts one page at a time into a container.
type Shell struct {
	deps      pages.Deps
	container page.Container
	routes    []Route
	byPattern map[string]Route
	mux       *chi.Mux
	logger    page.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// navMu serializes navigations; mu guards the fields below.
	navMu   sync.Mutex
	mu      sync.Mutex
	current page.Page
	path    string
	closed  bool
}

// New creates a Shell whose pages live at most as long as ctx.
func New(ctx context.Context, cfg Config) *Shell {
	routes := cfg.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}
	if cfg.Deps.Registry == nil {
		cfg.Deps.Registry = page.NewRegistry()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = cfg.Deps.Logger
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Shell{
		container: cfg.Container,
		routes:    routes,
		byPattern: make(map[string]Route, len(routes)),
		mux:       chi.NewRouter(),
		logger:    logger,
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.deps = cfg.Deps
	s.deps.Navigator = s

	for _, r := range routes {
		s.byPattern[r.Pattern] = r
		s.mux.Get(r.Pattern, func(http.ResponseWriter, *http.Request) {})
	}
	return s
}

// Match resolves path to its route and URL parameters.
func (s *Shell) Match(path string) (Route, map[string]string, bool) {
	rctx := chi.NewRouteContext()
	if !s.mux.Match(rctx, "GET", path) {
		return Route{}, nil, false
	}
	r, ok := s.byPattern[rctx.RoutePattern()]
	if !ok {
		return Route{}, nil, false
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		params[k] = rctx.URLParams.Values[i]
	}
	return r, params, true
}

func (s *Shell) role() string { return s.deps.Session.User.Role }

// Navigate unmounts the current page and mounts the one path names. The
// root path resolves to the role's home page. Navigating to the current
// path is a no-op.
func (s *Shell) Navigate(_ context.Context, path string) error {
	u, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	target := strings.TrimSuffix(u.Path, "/")
	if target == "" {
		target = HomePath(s.role())
	}

	route, params, ok := s.Match(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	}
	if !route.Allows(s.role()) {
		return fmt.Errorf("%w: %s", ErrForbidden, target)
	}

	s.navMu.Lock()
	defer s.navMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.current != nil && s.path == target {
		s.mu.Unlock()
		return nil
	}
	old := s.current
	next := route.New(s.deps, params)
	s.current, s.path = next, target
	s.mu.Unlock()

	if old != nil {
		old.Unmount()
	}
	if loc, ok := s.container.(Locator); ok {
		if err := loc.Location(target); err != nil {
			s.logger.Warn("location update failed", "path", target, "error", err)
		}
	}
	s.logger.Debug("navigate", "path", target, "page", route.Name)
	if err := next.Mount(s.ctx, s.container); err != nil {
		return fmt.Errorf("shell: mount %s: %w", route.Name, err)
	}
	return nil
}

// Current returns the mounted page and its path.
func (s *Shell) Current() (page.Page, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.path
}

// Dispatch routes a to the page it names, or to the current page when
// it names none. "navigate" actions are handled by the shell.
func (s *Shell) Dispatch(ctx context.Context, a page.Action) error {
	if a.Name == ActionNavigate {
		return s.Navigate(ctx, a.Value)
	}

	var target page.Page
	if a.Page != "" {
		p, ok := s.deps.Registry.Lookup(a.Page)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNoPage, a.Page)
		}
		target = p
	} else {
		cur, _ := s.Current()
		if cur == nil {
			return ErrNoPage
		}
		target = cur
	}
	s.logger.Debug("action", "page", target.Name(), "action", a.Name)
	return target.Dispatch(ctx, a)
}

// Close unmounts the current page. Further navigations fail.
func (s *Shell) Close() {
	s.navMu.Lock()
	defer s.navMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cur := s.current
	s.current = nil
	s.mu.Unlock()

	if cur != nil {
		cur.Unmount()
	}
	s.cancel()
}

// NavItem is one entry of the layout navigation.
type NavItem struct {
	Label  string
	Path   string
	Icon   string
	Active bool
}

// Nav returns the navigation the session's role may use, marking the
// entry that owns path.
func (s *Shell) Nav(path string) []NavItem {
	return NavFor(s.routes, s.role(), path)
}

// NavFor builds the navigation of role over routes.
func NavFor(routes []Route, role, path string) []NavItem {
	var items []NavItem
	for _, r := range routes {
		if r.Label == "" || !r.Allows(role) {
			continue
		}
		items = append(items, NavItem{
			Label:  r.Label,
			Path:   r.Pattern,
			Icon:   r.Icon,
			Active: path == r.Pattern || strings.HasPrefix(path, r.Pattern+"/"),
		})
	}
	return items
}
