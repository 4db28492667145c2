package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBase(t *testing.T) {
	_, err := New(Config{BaseURL: ""})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://backend"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "http://backend", WorkerURLs: map[string]string{"x": "::"}})
	assert.Error(t, err)
}

func TestGetClients_EnvelopeAndBare(t *testing.T) {
	for name, body := range map[string]string{
		"envelope": `{"success":true,"clients":[{"client_id":"c1","company_name":"Acme"}]}`,
		"bare":     `[{"client_id":"c1","company_name":"Acme"}]`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/clients", r.URL.Path)
				w.Write([]byte(body))
			})
			clients, err := c.GetClients(context.Background())
			require.NoError(t, err)
			require.Len(t, clients, 1)
			assert.Equal(t, "Acme", clients[0].CompanyName)
		})
	}
}

func TestRequest_FailureMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"success":false,"error":"network down"}`))
	})

	_, err := c.GetClients(context.Background())
	require.Error(t, err)
	assert.Equal(t, "network down", err.Error())

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
	assert.Equal(t, "network down", apiErr.UserMessage())
}

func TestRequest_SuccessFalseWith200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"message":"budget exceeded"}`))
	})
	err := c.UpdateClientBudget(context.Background(), "c1", 10)
	require.Error(t, err)
	assert.Equal(t, "budget exceeded", err.Error())
}

func TestRequest_StatusTextFallbackAndSentinels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := c.GetClient(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, "Not Found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestRequest_Headers(t *testing.T) {
	var got http.Header
	var body []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"success":true}`))
	})

	err := c.WithSession("tok-123").UpdateClientBudget(context.Background(), "c 1", 250)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", got.Get(SessionHeader))
	assert.NotEmpty(t, got.Get(RequestIDHeader))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.JSONEq(t, `{"monthly_budget_usd":250}`, string(body))

	assert.Empty(t, c.Token(), "WithSession must not modify the original")
}

func TestWorkerRequest_Routing(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]string{}
	record := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits[name] = r.URL.Path
			mu.Unlock()
			w.Write([]byte(`{"success":true,"pipelines":[],"status":{"queue_depth":3}}`))
		}
	}
	kam := httptest.NewServer(record("kam"))
	defer kam.Close()
	orch := httptest.NewServer(record("orchestrator"))
	defer orch.Close()

	c, err := New(Config{
		BaseURL:    kam.URL,
		WorkerURLs: map[string]string{WorkerOrchestrator: orch.URL + "/v1"},
	})
	require.NoError(t, err)

	_, err = c.ListPipelines(context.Background())
	require.NoError(t, err)
	status, err := c.GetResourceStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, status.QueueDepth)

	assert.Equal(t, "/v1/orchestrator/pipelines", hits["orchestrator"])
	assert.Equal(t, "/resource-manager/status", hits["kam"], "unconfigured workers use the base url")

	_, err = c.WorkerRequest(context.Background(), "", "/x", http.MethodGet, nil)
	assert.ErrorIs(t, err, ErrUnknownWorker)
}

func TestListRequests_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"requests":[{"request_id":"r1","status":"pending","created_at":"2024-05-01T10:00:00Z"}]}`))
	})
	reqs, err := c.ListRequests(context.Background(), RequestFilter{Status: "pending", Limit: 50})
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), reqs[0].CreatedAt)
}

func TestListProjects_LegacyJobs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"projects":[
			{"project_id":"p1","topic":"Go","status":"running","stages":[{"stage_number":1,"stage_name":"outline","status":"completed"}]},
			{"job_id":"j9","topic":"Legacy","status":"completed","granulation_type":"course","result":{"modules":2}}
		]}`))
	})
	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)

	assert.Equal(t, "outline", projects[0].Stages[0].Name)

	legacy := projects[1]
	assert.Equal(t, "j9", legacy.ProjectID)
	assert.Equal(t, "course", legacy.StructureType)
	require.Len(t, legacy.Stages, 1)
	assert.Equal(t, "completed", legacy.Stages[0].Status)
	assert.JSONEq(t, `{"modules":2}`, string(legacy.Stages[0].Output))
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		w.Write([]byte(`{"success":true,"session_token":"s1","user":{"id":"u1","email":"a@b.com","role":"admin"},"kam_context":{"client_id":"c1"}}`))
	})
	res, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionToken)
	assert.True(t, res.User.IsAdmin())
	assert.Equal(t, "c1", res.KAMContext.ClientID)
}

func TestRequest_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})
	_, err := c.GetDashboardStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, "invalid response from backend", err.Error())
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []int
}

func (o *recordingObserver) ObserveRequest(target, method string, status int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, status)
}

func TestObserver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	c, err := New(Config{BaseURL: srv.URL, Observer: obs})
	require.NoError(t, err)

	_, err = c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{http.StatusOK}, obs.calls)
}

func TestBudgetHelpers(t *testing.T) {
	c := ClientAccount{MonthlyBudgetUSD: 200, UsedBudgetCurrentMonth: 50}
	assert.Equal(t, 150.0, c.BudgetRemaining())
	assert.Equal(t, 25.0, c.BudgetUsedPercent())
	assert.Equal(t, 0.0, ClientAccount{}.BudgetUsedPercent())
}
