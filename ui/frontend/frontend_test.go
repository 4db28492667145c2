package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/internal/metrics"
	"github.com/bitware/aifactory-console/internal/testutil"
	"github.com/bitware/aifactory-console/session"
	"github.com/bitware/aifactory-console/ui/page"
)

const clientsBody = `{"success":true,"clients":[
	{"client_id":"c1","company_name":"Acme","contact_email":"ops@acme.test","subscription_tier":"premium","account_status":"active","monthly_budget_usd":100,"used_budget_current_month":50,"created_at":"2024-01-01"},
	{"client_id":"c2","company_name":"Globex","contact_email":"it@globex.test","subscription_tier":"basic","account_status":"trial","monthly_budget_usd":20,"used_budget_current_month":0,"created_at":"2024-02-01"}]}`

// testClock is a settable wall clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type env struct {
	backend  *testutil.Backend
	sessions *session.MemoryStore
	metrics  *metrics.Metrics
	clock    *testClock
	server   *httptest.Server
}

func newEnv(t *testing.T) *env {
	t.Helper()
	backend := testutil.NewBackend(t)
	client, err := api.New(api.Config{BaseURL: backend.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	e := &env{
		backend:  backend,
		sessions: session.NewMemoryStore(),
		metrics:  metrics.NewMetrics(),
		clock:    &testClock{now: time.Now().UTC()},
	}
	handler := NewRouter(&Config{
		API:        client,
		Sessions:   e.sessions,
		SessionTTL: time.Hour,
		PageSize:   10,
		Metrics:    e.metrics,
		Clock:      page.NewManualClock(e.clock.Now()),
		Now:        e.clock.Now,
	})
	e.server = httptest.NewServer(handler)
	t.Cleanup(e.server.Close)
	return e
}

// login stores a session for role and returns its token.
func (e *env) login(t *testing.T, role string) string {
	t.Helper()
	token := "tok-" + role
	require.NoError(t, e.sessions.Put(context.Background(), session.Info{
		Token:     token,
		User:      api.User{ID: "u-" + role, Email: role + "@bitware.test", FullName: "User " + role, Role: role},
		CreatedAt: e.clock.Now(),
		ExpiresAt: e.clock.Now().Add(time.Hour),
	}))
	return token
}

func (e *env) get(t *testing.T, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.KeyToken, Value: token})
	}
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestLogin_Success(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, "/auth/login", http.StatusOK, `{"success":true,"session_token":"backend-tok",
		"user":{"id":"u1","email":"carl@acme.test","role":"client","client_id":"c1"},
		"kam_context":{"client_id":"c1"}}`)

	resp, err := noRedirect().PostForm(e.server.URL+"/login", url.Values{"email": {" carl@acme.test "}, "password": {"secret"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/requests", resp.Header.Get("Location"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.KeyToken {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "backend-tok", cookie.Value)
	assert.True(t, cookie.HttpOnly)

	info, err := e.sessions.Get(context.Background(), "backend-tok")
	require.NoError(t, err)
	assert.Equal(t, api.RoleClient, info.User.Role)
	assert.Equal(t, e.clock.Now().Add(time.Hour), info.ExpiresAt)

	var sent map[string]string
	require.NoError(t, json.Unmarshal(e.backend.LastBody(http.MethodPost, "/auth/login"), &sent))
	assert.Equal(t, "carl@acme.test", sent["email"])
	assert.Equal(t, 1.0, promtest.ToFloat64(e.metrics.Logins.WithLabelValues("success")))
}

func TestLogin_Failure(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, "/auth/login", http.StatusUnauthorized, `{"success":false,"error":"bad credentials"}`)

	resp, err := noRedirect().PostForm(e.server.URL+"/login", url.Values{"email": {"a@b.test"}, "password": {"nope"}})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Invalid email or password")
	assert.Contains(t, body, `value="a@b.test"`)
	assert.Zero(t, e.sessions.Len())

	resp, err = noRedirect().PostForm(e.server.URL+"/login", url.Values{"email": {"a@b.test"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, readBody(t, resp), "Email and password are required")
	assert.Equal(t, 1, e.backend.Calls(http.MethodPost, "/auth/login"))
	assert.Equal(t, 2.0, promtest.ToFloat64(e.metrics.Logins.WithLabelValues("failure")))
}

func TestLoginPage_RedirectsWhenSignedIn(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/login", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `action="/login"`)

	tok := e.login(t, api.RoleAdmin)
	resp = e.get(t, "/login", tok)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestRequireSession(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/clients", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	assert.Equal(t, http.StatusUnauthorized, e.get(t, "/ws", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, e.get(t, "/export/clients.csv", "unknown").StatusCode)

	tok := e.login(t, api.RoleAdmin)
	e.clock.Set(e.clock.Now().Add(2 * time.Hour))
	resp = e.get(t, "/clients", tok)
	assert.Equal(t, http.StatusFound, resp.StatusCode, "expired sessions are anonymous")
}

func TestPage_Snapshot(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, "/clients", http.StatusOK, clientsBody)
	tok := e.login(t, api.RoleSupport)

	resp := e.get(t, "/clients/", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)

	assert.Contains(t, body, "<title>Clients · AI Factory Console</title>")
	assert.Contains(t, body, `data-live="/clients"`)
	assert.Contains(t, body, `class="nav-item active" data-nav="/clients"`)
	assert.NotContains(t, body, `data-nav="/users"`)
	assert.Contains(t, body, "Acme")
	assert.Contains(t, body, "User support")
	assert.Equal(t, 1, e.backend.Calls(http.MethodGet, "/clients"))
}

func TestPage_Errors(t *testing.T) {
	e := newEnv(t)
	tok := e.login(t, api.RoleClient)

	resp := e.get(t, "/", tok)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/requests", resp.Header.Get("Location"))

	resp = e.get(t, "/users", tok)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "You do not have access to this page")
	assert.NotContains(t, body, "data-live")

	resp = e.get(t, "/nowhere", tok)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Page not found")
}

func TestExportClients(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, "/clients", http.StatusOK, clientsBody)

	resp := e.get(t, "/export/clients.csv?status=active", e.login(t, api.RoleAdmin))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, page.CSVContentType, resp.Header.Get("Content-Type"))
	want := "clients-" + e.clock.Now().Format("2006-01-02") + ".csv"
	assert.Equal(t, `attachment; filename="`+want+`"`, resp.Header.Get("Content-Disposition"))

	lines := strings.Split(readBody(t, resp), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `"Acme","ops@acme.test","premium","active",100,50,"","2024-01-01"`, lines[1])

	resp = e.get(t, "/export/clients.csv", e.login(t, api.RoleClient))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	e.backend.On(http.MethodGet, "/clients", http.StatusInternalServerError, `{"error":"db down"}`)
	resp = e.get(t, "/export/clients.csv", e.login(t, api.RoleSupport))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "db down")
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodPost, "/auth/logout", http.StatusOK, `{"success":true}`)
	tok := e.login(t, api.RoleAdmin)

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/logout", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: session.KeyToken, Value: tok})
	resp, err := noRedirect().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.Equal(t, 1, e.backend.Calls(http.MethodPost, "/auth/logout"))
	_, err = e.sessions.Get(context.Background(), tok)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	resp := e.get(t, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))

	resp = e.get(t, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "aifactory_console_http_requests_total")

	resp = e.get(t, "/static/console.js", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// dialLive opens the live connection for path as token.
func (e *env) dialLive(t *testing.T, path, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?path=" + url.QueryEscape(path)
	jar, _ := cookiejar.New(nil)
	base, _ := url.Parse(e.server.URL)
	jar.SetCookies(base, []*http.Cookie{{Name: session.KeyToken, Value: token}})
	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, match func(Frame) bool) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func frameType(typ string) func(Frame) bool {
	return func(f Frame) bool { return f.Type == typ }
}

func TestLive_NavigateAndDispatch(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, "/dashboard/stats", http.StatusOK, `{"stats":{"total_clients":3}}`)
	e.backend.On(http.MethodGet, "/clients", http.StatusOK, clientsBody)
	conn := e.dialLive(t, "/dashboard", e.login(t, api.RoleAdmin))

	loc := readUntil(t, conn, frameType("location"))
	assert.Equal(t, "/dashboard", loc.Path)
	readUntil(t, conn, func(f Frame) bool { return f.Type == "replace" && strings.Contains(f.HTML, `data-page="dashboard"`) })

	require.NoError(t, conn.WriteJSON(page.Action{Name: "navigate", Value: "/clients"}))
	assert.Equal(t, "/clients", readUntil(t, conn, frameType("location")).Path)
	readUntil(t, conn, func(f Frame) bool { return f.Type == "replace" && strings.Contains(f.HTML, "Globex") })

	require.NoError(t, conn.WriteJSON(page.Action{Name: "search", Value: "acme"}))
	patch := readUntil(t, conn, frameType("patch"))
	assert.Equal(t, "clients-content", patch.Region)
	assert.NotContains(t, patch.HTML, "Globex")

	require.NoError(t, conn.WriteJSON(page.Action{Name: "exportCSV"}))
	dl := readUntil(t, conn, frameType("download"))
	assert.Equal(t, "clients-"+e.clock.Now().Format("2006-01-02")+".csv", dl.Filename)
	assert.Contains(t, string(dl.Data), `"Acme"`)

	assert.Equal(t, "Export ready", readUntil(t, conn, frameType("toast")).Message)

	require.NoError(t, conn.WriteJSON(page.Action{Name: "bogus"}))
	assert.Equal(t, "Unknown action", readUntil(t, conn, frameType("toast")).Message)

	require.NoError(t, conn.WriteJSON(page.Action{Name: "navigate", Value: "/nope"}))
	toast := readUntil(t, conn, frameType("toast"))
	assert.Equal(t, "Page not found", toast.Message)
	assert.Equal(t, page.ToastError, toast.Kind)

	assert.Equal(t, 1.0, promtest.ToFloat64(e.metrics.LiveConnections))
}

func TestLive_SessionExpiry(t *testing.T) {
	e := newEnv(t)
	e.backend.On(http.MethodGet, "/requests", http.StatusOK, `{"requests":[]}`)
	tok := e.login(t, api.RoleClient)
	conn := e.dialLive(t, "/requests", tok)
	readUntil(t, conn, frameType("location"))

	e.clock.Set(e.clock.Now().Add(2 * time.Hour))
	require.NoError(t, conn.WriteJSON(page.Action{Name: "refresh"}))
	assert.Equal(t, "/login", readUntil(t, conn, frameType("redirect")).Path)

	var f Frame
	err := conn.ReadJSON(&f)
	var ce *websocket.CloseError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, closeSessionExpired, ce.Code)
	assert.Zero(t, e.sessions.Len())
}

// failingWriter fails every write after the first n.
type failingWriter struct {
	frames []Frame
	n      int
}

func (w *failingWriter) SetWriteDeadline(time.Time) error { return nil }

func (w *failingWriter) WriteJSON(v any) error {
	if len(w.frames) >= w.n {
		return errors.New("broken pipe")
	}
	w.frames = append(w.frames, v.(Frame))
	return nil
}

func TestLiveConn(t *testing.T) {
	w := &failingWriter{n: 2}
	c := newLiveConn(w)

	require.NoError(t, c.Modal(page.Modal{
		Title:   "Delete",
		Body:    "<p>Sure?</p>",
		Actions: []page.ModalAction{{Label: "Delete", Page: "templates", Action: "confirmDelete", ID: "x", Style: "btn-danger"}},
	}))
	require.NoError(t, c.Patch("r", "<b>x</b>"))
	assert.Error(t, c.Toast(page.ToastInfo, "lost"))
	assert.ErrorIs(t, c.Replace("gone"), ErrConnClosed)

	require.Len(t, w.frames, 2)
	m := w.frames[0].Modal
	require.NotNil(t, m)
	assert.Equal(t, "<p>Sure?</p>", m.Body)
	assert.Equal(t, modalActionFrame{Label: "Delete", Page: "templates", Action: "confirmDelete", ID: "x", Style: "btn-danger"}, m.Actions[0])
}
