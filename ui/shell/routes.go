package shell

import (
	"slices"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
	"github.com/bitware/aifactory-console/ui/pages"
)

// Factory builds the page for a matched route.
type Factory func(d pages.Deps, params map[string]string) page.Page

// Route maps a chi pattern to a page.
type Route struct {
	Pattern string
	Name    string

	// Label is the navigation entry. Routes without one are reachable
	// but not listed.
	Label string
	Icon  string

	// Roles may open the route. Empty means every role.
	Roles []string

	New Factory
}

// Allows reports whether role may open r.
func (r Route) Allows(role string) bool {
	return len(r.Roles) == 0 || slices.Contains(r.Roles, role)
}

var staff = []string{api.RoleAdmin, api.RoleSupport}

// DefaultRoutes is the console route table.
func DefaultRoutes() []Route {
	return []Route{
		{
			Pattern: "/dashboard", Name: pages.NameDashboard, Label: "Dashboard", Icon: "gauge", Roles: staff,
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewDashboardPage(d) },
		},
		{
			Pattern: "/clients", Name: pages.NameClients, Label: "Clients", Icon: "building", Roles: staff,
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewClientsPage(d) },
		},
		{
			Pattern: "/clients/{id}", Name: pages.NameClientDetail, Roles: staff,
			New: func(d pages.Deps, p map[string]string) page.Page { return pages.NewClientDetailPage(d, p["id"]) },
		},
		{
			Pattern: "/requests", Name: pages.NameRequests, Label: "Requests", Icon: "inbox",
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewRequestsPage(d) },
		},
		{
			Pattern: "/granulation", Name: pages.NameGranulation, Label: "Granulation", Icon: "layers",
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewGranulationPage(d) },
		},
		{
			Pattern: "/orchestrator", Name: pages.NameOrchestrator, Label: "Orchestrator", Icon: "workflow", Roles: staff,
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewOrchestratorPage(d) },
		},
		{
			Pattern: "/templates", Name: pages.NameTemplates, Label: "Templates", Icon: "file", Roles: staff,
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewTemplateManager(d) },
		},
		{
			Pattern: "/users", Name: pages.NameUsers, Label: "Users", Icon: "users", Roles: []string{api.RoleAdmin},
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewUsersPage(d) },
		},
		{
			Pattern: "/resources", Name: pages.NameResources, Label: "Resources", Icon: "cpu", Roles: staff,
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewResourceManagerPage(d) },
		},
		{
			Pattern: "/permissions", Name: pages.NamePermissions, Label: "My Permissions", Icon: "key",
			New: func(d pages.Deps, _ map[string]string) page.Page { return pages.NewPermissionsDisplay(d) },
		},
	}
}

// HomePath is where a user of role lands after login.
func HomePath(role string) string {
	if role == api.RoleClient {
		return "/requests"
	}
	return "/dashboard"
}
