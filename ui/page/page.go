package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Page is one screen of the console: it owns its state, renders it to
// markup, and handles the actions its markup emits.
type Page interface {
	// Name is the registry name used to address actions, e.g. "clientsPage".
	Name() string
	Title() string
	// Render is a pure function of the current state.
	Render() string
	Mount(ctx context.Context, c Container) error
	// Unmount is idempotent.
	Unmount()
	Dispatch(ctx context.Context, a Action) error
}

// Action is a user interaction routed to a page.
type Action struct {
	Page  string            `json:"page"`
	Name  string            `json:"action"`
	ID    string            `json:"id,omitempty"`
	Value string            `json:"value,omitempty"`
	Form  map[string]string `json:"form,omitempty"`
}

// Field returns a trimmed form value.
func (a Action) Field(key string) string {
	return strings.TrimSpace(a.Form[key])
}

// Handler handles one named action.
type Handler func(ctx context.Context, a Action) error

// Logger interface for structured logging.
// Compatible with *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives lifecycle events. internal/metrics implements it.
type Observer interface {
	PageMounted(name string)
	PageUnmounted(name string)
	RefreshTick(name string)
	FetchDiscarded(name, resource string)
}

// Options configures a Base.
type Options struct {
	Name  string
	Title string

	// Registry receives the page on mount. Optional.
	Registry *Registry

	// RefreshInterval enables the auto-refresh timer when positive.
	RefreshInterval time.Duration
	Clock           Clock

	Logger   Logger
	Observer Observer
}

// Base implements the lifecycle shared by every page: mount/unmount,
// the refresh timer, registry bookkeeping, request generation tokens,
// full and partial updates, and action dispatch. Concrete pages embed
// *Base and provide Render and a loader.
type Base struct {
	opts Options
	id   uuid.UUID
	self Page
	load func(ctx context.Context)

	actions map[string]Handler

	// renderMu serializes render+push so an older render never lands
	// after a newer one.
	renderMu sync.Mutex

	mu        sync.Mutex
	mounted   bool
	epoch     uint64
	container Container
	ctx       context.Context
	cancel    context.CancelFunc
	timer     *RefreshTimer
	tokens    map[string]uint64
	inflight  map[string]uint64
}

// NewBase creates the lifecycle for self. load is the page's primary
// fetch; it runs on mount, on every refresh tick and for the built-in
// "retry" and "refresh" actions.
func NewBase(opts Options, self Page, load func(ctx context.Context)) *Base {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if load == nil {
		load = func(context.Context) {}
	}
	b := &Base{
		opts:     opts,
		id:       uuid.New(),
		self:     self,
		load:     load,
		actions:  make(map[string]Handler),
		tokens:   make(map[string]uint64),
		inflight: make(map[string]uint64),
	}
	b.Handle("retry", b.reload)
	b.Handle("refresh", b.reload)
	return b
}

func (b *Base) Name() string  { return b.opts.Name }
func (b *Base) Title() string { return b.opts.Title }

// ID identifies this instance in logs.
func (b *Base) ID() uuid.UUID { return b.id }

// Logger returns the page logger.
func (b *Base) Logger() Logger { return b.opts.Logger }

// Handle registers h under name, replacing any previous handler.
func (b *Base) Handle(name string, h Handler) {
	b.actions[name] = h
}

// Mount renders the page into c, registers it, runs the initial load and
// starts the refresh timer. A nil container is tolerated: state still
// loads, updates are dropped.
func (b *Base) Mount(ctx context.Context, c Container) error {
	b.mu.Lock()
	if b.mounted {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyMounted, b.opts.Name)
	}
	b.mounted = true
	b.epoch++
	b.container = c
	b.ctx, b.cancel = context.WithCancel(ctx)
	lifetime := b.ctx
	b.mu.Unlock()

	if b.opts.Registry != nil {
		b.opts.Registry.Register(b.opts.Name, b.self)
	}
	b.opts.Observer.PageMounted(b.opts.Name)
	b.opts.Logger.Debug("page mounted", "page", b.opts.Name, "instance", b.id.String())

	b.Update()
	b.load(lifetime)

	if b.opts.RefreshInterval > 0 {
		timer := NewRefreshTimer(b.opts.Clock, b.opts.RefreshInterval, func(ctx context.Context) {
			b.opts.Observer.RefreshTick(b.opts.Name)
			b.load(ctx)
		})

		b.mu.Lock()
		// Unmounted while loading.
		if !b.mounted || b.ctx != lifetime {
			b.mu.Unlock()
			return nil
		}
		b.timer = timer
		b.mu.Unlock()

		if err := timer.Start(lifetime); err != nil {
			return err
		}
	}
	return nil
}

// Unmount stops the timer, cancels in-flight fetches, unregisters the page
// and drops the container. Safe to call more than once.
func (b *Base) Unmount() {
	b.mu.Lock()
	if !b.mounted {
		b.mu.Unlock()
		return
	}
	b.mounted = false
	b.epoch++
	cancel := b.cancel
	timer := b.timer
	b.timer = nil
	b.container = nil
	clear(b.inflight)
	b.mu.Unlock()

	cancel()
	if timer != nil {
		timer.Stop()
	}
	if b.opts.Registry != nil {
		b.opts.Registry.Unregister(b.opts.Name, b.self)
	}
	b.opts.Observer.PageUnmounted(b.opts.Name)
	b.opts.Logger.Debug("page unmounted", "page", b.opts.Name, "instance", b.id.String())
}

// Mounted reports whether the page is mounted.
func (b *Base) Mounted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mounted
}

// RefreshRunning reports whether the refresh timer is active.
func (b *Base) RefreshRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil && b.timer.Running()
}

// Context returns the page lifetime context, cancelled on unmount. An
// unmounted page gets a background context.
func (b *Base) Context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mounted {
		return b.ctx
	}
	return context.Background()
}

func (b *Base) currentContainer() Container {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return nil
	}
	return b.container
}

// Update re-renders the whole page into the container.
func (b *Base) Update() {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()
	c := b.currentContainer()
	if c == nil {
		return
	}
	if err := c.Replace(b.self.Render()); err != nil {
		b.opts.Logger.Warn("page update failed", "page", b.opts.Name, "error", err)
	}
}

// UpdateRegion replaces the contents of one named region.
func (b *Base) UpdateRegion(region string, render func() string) {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()
	c := b.currentContainer()
	if c == nil {
		return
	}
	if err := c.Patch(region, render()); err != nil {
		b.opts.Logger.Warn("region update failed", "page", b.opts.Name, "region", region, "error", err)
	}
}

// Toast shows a notification if mounted.
func (b *Base) Toast(kind ToastKind, message string) {
	if c := b.currentContainer(); c != nil {
		if err := c.Toast(kind, message); err != nil {
			b.opts.Logger.Warn("toast failed", "page", b.opts.Name, "error", err)
		}
	}
}

// ShowModal opens a modal if mounted.
func (b *Base) ShowModal(m Modal) {
	if c := b.currentContainer(); c != nil {
		if err := c.Modal(m); err != nil {
			b.opts.Logger.Warn("modal failed", "page", b.opts.Name, "error", err)
		}
	}
}

// Download sends a file to the browser if mounted.
func (b *Base) Download(filename, contentType string, data []byte) {
	if c := b.currentContainer(); c != nil {
		if err := c.Download(filename, contentType, data); err != nil {
			b.opts.Logger.Warn("download failed", "page", b.opts.Name, "error", err)
		}
	}
}

// Ticket identifies one issued request.
type Ticket struct {
	resource string
	token    uint64
	epoch    uint64
}

// Begin issues the next generation token for resource. Unless supersede
// is set, it refuses while a request for the same resource is in flight.
func (b *Base) Begin(resource string, supersede bool) (Ticket, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !supersede && b.inflight[resource] != 0 {
		return Ticket{}, false
	}
	b.tokens[resource]++
	t := Ticket{resource: resource, token: b.tokens[resource], epoch: b.epoch}
	b.inflight[resource] = t.token
	return t, true
}

// Complete retires t and reports whether its result is still current:
// no newer request for the resource was issued and the page has not been
// mounted or unmounted since.
func (b *Base) Complete(t Ticket) bool {
	b.mu.Lock()
	if b.inflight[t.resource] == t.token {
		delete(b.inflight, t.resource)
	}
	current := t.epoch == b.epoch && b.tokens[t.resource] == t.token
	b.mu.Unlock()

	if !current {
		b.opts.Observer.FetchDiscarded(b.opts.Name, t.resource)
		b.opts.Logger.Debug("stale fetch discarded", "page", b.opts.Name, "resource", t.resource)
	}
	return current
}

// Fetch runs fn as the newest request for resource and hands the result
// to apply only while it is still current. It reports whether fn ran.
func Fetch[R any](ctx context.Context, b *Base, resource string, supersede bool, fn func(context.Context) (R, error), apply func(R, error)) bool {
	t, ok := b.Begin(resource, supersede)
	if !ok {
		b.opts.Logger.Debug("fetch skipped, already in flight", "page", b.opts.Name, "resource", resource)
		return false
	}
	r, err := fn(ctx)
	if !b.Complete(t) {
		return true
	}
	if err != nil {
		b.opts.Logger.Warn("fetch failed", "page", b.opts.Name, "resource", resource, "error", err)
	}
	apply(r, err)
	return true
}

// Dispatch routes a to its handler. Handler errors stop here: validation
// errors and failures are shown as error toasts. Only an unknown action
// name is returned.
func (b *Base) Dispatch(ctx context.Context, a Action) error {
	h, ok := b.actions[a.Name]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownAction, b.opts.Name, a.Name)
	}
	a.ID = strings.TrimSpace(a.ID)
	a.Value = strings.TrimSpace(a.Value)

	if err := h(ctx, a); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			b.Toast(ToastError, verr.Message)
			return nil
		}
		b.opts.Logger.Warn("action failed", "page", b.opts.Name, "action", a.Name, "error", err)
		b.Toast(ToastError, Message(err))
	}
	return nil
}

func (b *Base) reload(context.Context, Action) error {
	b.load(b.Context())
	return nil
}

// Reload runs the page loader with the lifetime context.
func (b *Base) Reload() {
	b.load(b.Context())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type nopObserver struct{}

func (nopObserver) PageMounted(string)            {}
func (nopObserver) PageUnmounted(string)          {}
func (nopObserver) RefreshTick(string)            {}
func (nopObserver) FetchDiscarded(string, string) {}
