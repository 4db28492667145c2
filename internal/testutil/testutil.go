// Package testutil provides test utilities for the console
package testutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB wraps a PostgreSQL connection pool for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB creates a test database connection from DATABASE_URL env var.
// The test is skipped if DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	t.Cleanup(pool.Close)
	return &TestDB{Pool: pool}
}

// CleanTables truncates the given tables for test isolation
func (db *TestDB) CleanTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		_, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// RequireIntegration skips the test if integration tests are not enabled
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
}

// Backend is a fake AI Factory backend. Routes are matched on
// "METHOD /path" and answer with a fixed status and body.
type Backend struct {
	*httptest.Server

	mu     sync.Mutex
	routes map[string]reply
	calls   map[string]int
	bodies  map[string][]byte
	queries map[string]url.Values
}

type reply struct {
	status int
	body   string
}

// NewBackend starts a fake backend closed at test cleanup.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		routes: make(map[string]reply),
		calls:   make(map[string]int),
		bodies:  make(map[string][]byte),
		queries: make(map[string]url.Values),
	}
	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// On sets the reply for method and path. Later calls replace earlier ones.
func (b *Backend) On(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = reply{status: status, body: body}
}

// Calls returns how often method and path were requested.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// LastBody returns the last request body sent to method and path.
func (b *Backend) LastBody(method, path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[method+" "+path]
}

// LastQuery returns the query of the last request to method and path.
func (b *Backend) LastQuery(method, path string) url.Values {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queries[method+" "+path]
}

func (b *Backend) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	b.mu.Lock()
	b.calls[key]++
	b.bodies[key] = body
	b.queries[key] = r.URL.Query()
	rep, ok := b.routes[key]
	b.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"no route ` + key + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	w.Write([]byte(rep.body))
}
