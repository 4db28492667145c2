// Package api is the HTTP gateway between the console and the AI Factory
// backend. Every page talks to the backend through a Client; pages never
// see raw HTTP responses.
//
// The backend answers either with an envelope
//
//	{"success": true, "clients": [...]}
//
// or with a bare value, and reports failures as a non-2xx status or as
// {"success": false, "error": "..."}. Client resolves both shapes and turns
// failures into *Error values carrying the backend's message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Default client configuration values.
const (
	DefaultTimeout = 30 * time.Second

	// SessionHeader carries the caller's session token to the backend.
	SessionHeader = "X-Bitware-Session-Token"

	// RequestIDHeader carries a per-call id for tracing.
	RequestIDHeader = "X-Request-ID"
)

// Worker names understood by WorkerRequest.
const (
	WorkerKAM             = "kam"
	WorkerGranulator      = "granulator"
	WorkerOrchestrator    = "orchestrator"
	WorkerResourceManager = "resource-manager"
)

// Logger interface for structured logging.
// Compatible with *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer receives one call per completed backend request.
type Observer interface {
	ObserveRequest(target, method string, status int, d time.Duration)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the KAM worker URL; it also serves workers without an
	// entry in WorkerURLs.
	BaseURL string

	// WorkerURLs maps worker names to their base URLs.
	WorkerURLs map[string]string

	// Timeout bounds every request. Defaults to 30 seconds.
	Timeout time.Duration

	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client

	Logger   Logger
	Observer Observer
}

// Client calls the backend on behalf of one session.
type Client struct {
	base    *url.URL
	workers map[string]*url.URL
	http    *http.Client
	token   string
	logger  Logger
	obs     Observer
}

// New creates a Client without a session token.
func New(cfg Config) (*Client, error) {
	base, err := parseBase(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: base url: %w", err)
	}

	workers := make(map[string]*url.URL, len(cfg.WorkerURLs))
	for name, raw := range cfg.WorkerURLs {
		u, err := parseBase(raw)
		if err != nil {
			return nil, fmt.Errorf("api: worker %q url: %w", name, err)
		}
		workers[name] = u
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		base:    base,
		workers: workers,
		http:    hc,
		logger:  cfg.Logger,
		obs:     cfg.Observer,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty url")
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u, nil
}

// WithSession returns a copy of c that authenticates as token.
func (c *Client) WithSession(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the session token the client sends.
func (c *Client) Token() string { return c.token }

// RequestOptions describes one call made through MakeRequest.
type RequestOptions struct {
	Method string
	Query  url.Values
	Body   any
}

// Response is a successful JSON body.
type Response struct {
	raw []byte
}

// Raw returns the body bytes.
func (r Response) Raw() []byte { return r.raw }

// Get returns the value at a gjson path.
func (r Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Decode unmarshals the value under key when the body is an envelope
// carrying it, or the whole body otherwise.
func (r Response) Decode(key string, out any) error {
	if key != "" {
		if v := gjson.GetBytes(r.raw, key); v.Exists() {
			return json.Unmarshal([]byte(v.Raw), out)
		}
	}
	return json.Unmarshal(r.raw, out)
}

// MakeRequest calls path on the KAM base URL, or an absolute URL as is.
func (c *Client) MakeRequest(ctx context.Context, path string, opts RequestOptions) (Response, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return Response{}, fmt.Errorf("api: parse url: %w", err)
		}
		return c.do(ctx, u.Host, u, opts)
	}
	return c.do(ctx, WorkerKAM, c.resolve(c.base, path), opts)
}

// KAMRequest calls the key-account-management worker.
func (c *Client) KAMRequest(ctx context.Context, path, method string, body any) (Response, error) {
	return c.do(ctx, WorkerKAM, c.resolve(c.base, path), RequestOptions{Method: method, Body: body})
}

// WorkerRequest calls a named worker. Workers without a configured URL
// are reached through the base URL.
func (c *Client) WorkerRequest(ctx context.Context, worker, path, method string, body any) (Response, error) {
	if worker == "" {
		return Response{}, ErrUnknownWorker
	}
	base, ok := c.workers[worker]
	if !ok {
		base = c.base
	}
	return c.do(ctx, worker, c.resolve(base, path), RequestOptions{Method: method, Body: body})
}

func (c *Client) resolve(base *url.URL, path string) *url.URL {
	u := *base
	if q := strings.IndexByte(path, '?'); q >= 0 {
		u.RawQuery = path[q+1:]
		path = path[:q]
	}
	u.Path = base.Path + "/" + strings.TrimLeft(path, "/")
	return &u
}

func (c *Client) do(ctx context.Context, target string, u *url.URL, opts RequestOptions) (Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	if len(opts.Query) > 0 {
		q := u.Query()
		for k, vs := range opts.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return Response{}, fmt.Errorf("api: marshal body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return Response{}, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if c.token != "" {
		req.Header.Set(SessionHeader, c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(target, method, 0, start)
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		return Response{}, &Error{Method: method, Path: u.Path, Message: "backend unreachable"}
	}
	defer resp.Body.Close()
	c.observe(target, method, resp.StatusCode, start)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("api: read body: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{
			Method:  method,
			Path:    u.Path,
			Status:  resp.StatusCode,
			Message: failureMessage(raw, http.StatusText(resp.StatusCode)),
		}
		c.logDebug("backend request failed", "target", target, "detail", apiErr.Detail())
		return Response{}, apiErr
	}

	if ok := gjson.GetBytes(raw, "success"); ok.Exists() && ok.Type == gjson.False {
		return Response{}, &Error{
			Method:  method,
			Path:    u.Path,
			Status:  resp.StatusCode,
			Message: failureMessage(raw, "request failed"),
		}
	}

	if !gjson.ValidBytes(raw) {
		return Response{}, &Error{Method: method, Path: u.Path, Status: resp.StatusCode, Message: "invalid response from backend"}
	}

	return Response{raw: raw}, nil
}

// failureMessage extracts the backend's message from a failure body.
func failureMessage(raw []byte, fallback string) string {
	for _, key := range []string{"error.message", "error", "message", "detail"} {
		v := gjson.GetBytes(raw, key)
		if v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return fallback
}

func (c *Client) observe(target, method string, status int, start time.Time) {
	if c.obs != nil {
		c.obs.ObserveRequest(target, method, status, time.Since(start))
	}
}

func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
