package pages

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitware/aifactory-console/ui/page"
)

const requestsBody = `{"requests":[
	{"request_id":"r1","client_id":"c1","company_name":"Acme","request_type":"course","message":"Intro to Go","status":"completed","cost_usd":2,"created_at":"2024-03-01T10:00:00Z"},
	{"request_id":"r2","client_id":"c2","company_name":"Borealis","request_type":"quiz","message":"Quiz on maps","status":"pending","cost_usd":1,"created_at":"2024-03-02T10:00:00Z"}]}`

func TestRequestsPage_FilterStatus(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/requests", http.StatusOK, requestsBody)

	p := NewRequestsPage(f.deps)
	f.mount(t, p)
	q := f.backend.LastQuery(http.MethodGet, "/requests")
	assert.Empty(t, q.Get("status"))
	assert.Equal(t, "500", q.Get("limit"))

	dispatch(t, p, page.Action{Name: "filterStatus", Value: "pending"})
	assert.Equal(t, "pending", f.backend.LastQuery(http.MethodGet, "/requests").Get("status"))
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/requests"))

	// Same status again is a no-op.
	dispatch(t, p, page.Action{Name: "filterStatus", Value: "pending"})
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/requests"))

	dispatch(t, p, page.Action{Name: "filterStatus", Value: "archived"})
	assert.Equal(t, "Unknown status", lastToast(t, f.rec).Message)
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/requests"))
}

func TestRequestsPage_StatusChangeSupersedes(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/requests", http.StatusOK, requestsBody)

	p := NewRequestsPage(f.deps)
	f.mount(t, p)

	// An older load still running when the status changes loses.
	stale, ok := p.Begin("requests", false)
	require.True(t, ok)
	dispatch(t, p, page.Action{Name: "filterStatus", Value: "completed"})
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/requests"))
	assert.False(t, p.Complete(stale))

	// A plain refresh does not pile onto an in-flight load.
	inflight, ok := p.Begin("requests", false)
	require.True(t, ok)
	dispatch(t, p, page.Action{Name: "refresh"})
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/requests"))
	assert.True(t, p.Complete(inflight))
}

func TestRequestsPage_SearchAndExpand(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/requests", http.StatusOK, requestsBody)

	p := NewRequestsPage(f.deps)
	f.mount(t, p)
	html := f.rec.HTML()
	assert.Contains(t, html, "Acme")
	assert.Contains(t, html, "Borealis")

	dispatch(t, p, page.Action{Name: "search", Value: "maps"})
	region, ok := f.rec.Region("requests-content")
	require.True(t, ok)
	assert.Contains(t, region, "Borealis")
	assert.NotContains(t, region, "Acme")

	dispatch(t, p, page.Action{Name: "toggleRow", ID: "r2"})
	region, ok = f.rec.Region("request-row-r2")
	require.True(t, ok)
	assert.Contains(t, region, "Quiz on maps")

	dispatch(t, p, page.Action{Name: "toggleRow"})
	assert.Equal(t, "Missing row id", lastToast(t, f.rec).Message)
}
