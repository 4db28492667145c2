package pages

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitware/aifactory-console/ui/page"
)

func TestClientDetailPage(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/clients/c1", http.StatusOK, `{"client":{"client_id":"c1","company_name":"Acme","account_status":"active","monthly_budget_usd":100,"used_budget_current_month":25}}`)
	f.backend.On(http.MethodGet, "/clients/c1/requests", http.StatusOK, `{"requests":[{"request_id":"r1","client_id":"c1","message":"Build a course","status":"completed","cost_usd":1.5}]}`)

	p := NewClientDetailPage(f.deps, "c1")
	f.mount(t, p)
	assert.Equal(t, "c1", p.ClientID())
	assert.Contains(t, f.rec.HTML(), "Acme")

	dispatch(t, p, page.Action{Name: "tab", Value: "requests"})
	region, ok := f.rec.Region("client-detail-tab")
	require.True(t, ok)
	assert.Contains(t, region, "Build a course")

	dispatch(t, p, page.Action{Name: "tab", Value: "budget"})
	region, _ = f.rec.Region("client-detail-tab")
	assert.Contains(t, region, "$75.00 remaining")

	dispatch(t, p, page.Action{Name: "tab", Value: "secrets"})
	assert.Equal(t, "Unknown tab", lastToast(t, f.rec).Message)

	dispatch(t, p, page.Action{Name: "back"})
	assert.Equal(t, []string{"/clients"}, f.nav.Paths())
}

func TestClientDetailPage_RequestsArePartial(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/clients/c1", http.StatusOK, `{"client_id":"c1","company_name":"Acme"}`)
	f.backend.On(http.MethodGet, "/clients/c1/requests", http.StatusInternalServerError, `{"error":"requests offline"}`)

	p := NewClientDetailPage(f.deps, "c1")
	f.mount(t, p)
	assert.NotContains(t, f.rec.HTML(), "error-panel")

	dispatch(t, p, page.Action{Name: "tab", Value: "requests"})
	region, _ := f.rec.Region("client-detail-tab")
	assert.Contains(t, region, "requests offline")
}

func TestClientDetailPage_UpdateBudget(t *testing.T) {
	f := newFixture(t)
	f.backend.On(http.MethodGet, "/clients/c1", http.StatusOK, `{"client_id":"c1","company_name":"Acme","monthly_budget_usd":100}`)
	f.backend.On(http.MethodGet, "/clients/c1/requests", http.StatusOK, `[]`)
	f.backend.On(http.MethodPut, "/clients/c1/budget", http.StatusOK, `{"success":true}`)

	p := NewClientDetailPage(f.deps, "c1")
	f.mount(t, p)

	for _, tc := range []struct {
		value string
		msg   string
	}{
		{"", "Monthly budget is required"},
		{"abc", "Monthly budget must be a non-negative number"},
		{"-5", "Monthly budget must be a non-negative number"},
		{"Inf", "Monthly budget must be a non-negative number"},
	} {
		dispatch(t, p, page.Action{Name: "updateBudget", Form: map[string]string{"monthly_budget_usd": tc.value}})
		assert.Equal(t, tc.msg, lastToast(t, f.rec).Message, tc.value)
	}
	assert.Zero(t, f.backend.Calls(http.MethodPut, "/clients/c1/budget"))

	dispatch(t, p, page.Action{Name: "updateBudget", Form: map[string]string{"monthly_budget_usd": "250.5"}})
	assert.Equal(t, "Budget updated", lastToast(t, f.rec).Message)
	require.Equal(t, 1, f.backend.Calls(http.MethodPut, "/clients/c1/budget"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(f.backend.LastBody(http.MethodPut, "/clients/c1/budget"), &body))
	assert.Equal(t, 250.5, body["monthly_budget_usd"])
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/clients/c1"))
}
