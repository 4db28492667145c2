package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/shell"
)

// Live connection settings.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 << 10

	// closeSessionExpired tells the browser runtime to go to the login page.
	closeSessionExpired = 4001
)

// ErrConnClosed is returned by a liveConn after its socket closed.
var ErrConnClosed = errors.New("frontend: live connection closed")

// Frame is one server-to-browser message.
type Frame struct {
	Type        string         `json:"type"`
	HTML        string         `json:"html,omitempty"`
	Region      string         `json:"region,omitempty"`
	Kind        page.ToastKind `json:"kind,omitempty"`
	Message     string         `json:"message,omitempty"`
	Modal       *modalFrame    `json:"modal,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	ContentType string         `json:"contentType,omitempty"`
	Data        []byte         `json:"data,omitempty"`
	Path        string         `json:"path,omitempty"`
}

type modalFrame struct {
	Title   string             `json:"title"`
	Body    string             `json:"body"`
	Actions []modalActionFrame `json:"actions"`
}

type modalActionFrame struct {
	Label  string `json:"label"`
	Page   string `json:"page,omitempty"`
	Action string `json:"action,omitempty"`
	ID     string `json:"id,omitempty"`
	Style  string `json:"style,omitempty"`
}

// frameWriter is the part of *websocket.Conn a liveConn writes through.
type frameWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
}

// liveConn is the page.Container of one browser tab. Pages push frames
// from their refresh goroutines, so writes are serialized.
type liveConn struct {
	mu     sync.Mutex
	w      frameWriter
	closed bool
}

func newLiveConn(w frameWriter) *liveConn {
	return &liveConn{w: w}
}

func (c *liveConn) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if err := c.w.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.w.WriteJSON(f); err != nil {
		c.closed = true
		return err
	}
	return nil
}

func (c *liveConn) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *liveConn) Replace(html string) error {
	return c.send(Frame{Type: "replace", HTML: html})
}

func (c *liveConn) Patch(region, html string) error {
	return c.send(Frame{Type: "patch", Region: region, HTML: html})
}

func (c *liveConn) Toast(kind page.ToastKind, message string) error {
	return c.send(Frame{Type: "toast", Kind: kind, Message: message})
}

func (c *liveConn) Modal(m page.Modal) error {
	mf := &modalFrame{Title: m.Title, Body: string(m.Body)}
	for _, a := range m.Actions {
		mf.Actions = append(mf.Actions, modalActionFrame(a))
	}
	return c.send(Frame{Type: "modal", Modal: mf})
}

// Download sends the file inline; Data is base64 encoded by encoding/json.
func (c *liveConn) Download(filename, contentType string, data []byte) error {
	return c.send(Frame{Type: "download", Filename: filename, ContentType: contentType, Data: data})
}

// Location implements shell.Locator.
func (c *liveConn) Location(path string) error {
	return c.send(Frame{Type: "location", Path: path})
}

func (c *liveConn) redirect(path string) error {
	return c.send(Frame{Type: "redirect", Path: path})
}

// handleLive upgrades to a WebSocket and runs a Shell for the tab until
// the browser goes away.
func (rt *router) handleLive(w http.ResponseWriter, r *http.Request) {
	info, ok := sessionFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := rt.upgrader.Upgrade(w, r, nil)
	if err != nil {
		rt.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	if rt.config.Metrics != nil {
		rt.config.Metrics.LiveConnections.Inc()
		defer rt.config.Metrics.LiveConnections.Dec()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	live := newLiveConn(conn)
	defer live.close()

	sh := shell.New(ctx, shell.Config{
		Deps:      rt.deps(info, true),
		Container: live,
		Routes:    rt.config.Routes,
		Logger:    rt.logger,
	})
	defer sh.Close()

	if err := sh.Navigate(ctx, r.URL.Query().Get("path")); err != nil {
		rt.logger.Debug("live navigate failed", "path", r.URL.Query().Get("path"), "error", err)
		live.Toast(page.ToastError, navigationMessage(err))
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go rt.pingLoop(ctx, conn, live)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rt.logger.Debug("live connection closed", "error", err)
			}
			return
		}

		if info.Expired(rt.now()) {
			rt.expire(r.Context(), info, conn, live)
			return
		}

		var a page.Action
		if err := json.Unmarshal(data, &a); err != nil {
			rt.logger.Warn("malformed action frame", "error", err)
			continue
		}
		if err := sh.Dispatch(ctx, a); err != nil {
			rt.logger.Debug("action not handled", "page", a.Page, "action", a.Name, "error", err)
			live.Toast(page.ToastError, navigationMessage(err))
		}
	}
}

// pingLoop keeps the connection alive and shares the write lock.
func (rt *router) pingLoop(ctx context.Context, conn *websocket.Conn, live *liveConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			live.mu.Lock()
			if live.closed {
				live.mu.Unlock()
				return
			}
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			live.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// expire ends a live session whose expiry passed while the tab was open.
func (rt *router) expire(ctx context.Context, info session.Info, conn *websocket.Conn, live *liveConn) {
	if err := rt.config.Sessions.Delete(ctx, info.Token); err != nil {
		rt.logger.Warn("delete expired session failed", "error", err)
	}
	live.redirect("/login")
	live.mu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(closeSessionExpired, "session expired"),
		time.Now().Add(writeWait))
	live.closed = true
	live.mu.Unlock()
}

// navigationMessage turns shell errors into toast text.
func navigationMessage(err error) string {
	switch {
	case errors.Is(err, shell.ErrNotFound):
		return "Page not found"
	case errors.Is(err, shell.ErrForbidden):
		return "You do not have access to this page"
	case errors.Is(err, page.ErrUnknownAction):
		return "Unknown action"
	case errors.Is(err, shell.ErrNoPage):
		return "That page is no longer open"
	}
	return page.Message(err)
}
