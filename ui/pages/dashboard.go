package pages

import (
	"context"
	"net/url"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameDashboard is the registry name of the dashboard.
const NameDashboard = "dashboard"

// DashboardPage shows platform totals and the latest requests.
type DashboardPage struct {
	*page.Base
	deps  Deps
	store *page.Store[*api.DashboardStats]
}

// NewDashboardPage creates the page in its loading state.
func NewDashboardPage(d Deps) *DashboardPage {
	p := &DashboardPage{
		deps:  d,
		store: page.NewStore[*api.DashboardStats](page.NewViewSelection(d.PageSize, page.Sort{})),
	}
	p.Base = page.NewBase(d.options(NameDashboard, "Dashboard"), p, p.load)
	p.Handle("openRequests", func(ctx context.Context, _ page.Action) error {
		return d.navigate(ctx, "/requests")
	})
	p.Handle("openClient", func(ctx context.Context, a page.Action) error {
		if a.ID == "" {
			return page.Invalid("id", "Missing client id")
		}
		return d.navigate(ctx, "/clients/"+url.PathEscape(a.ID))
	})
	return p
}

func (p *DashboardPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "stats", false, p.deps.API.GetDashboardStats, func(s *api.DashboardStats, err error) {
		p.store.Settle(s, err)
		p.Update()
	})
}

// Render returns the page markup for the current state.
func (p *DashboardPage) Render() string {
	var v struct {
		State  status
		Header header
		Stats  *api.DashboardStats
	}
	p.store.Read(func(st *page.State[*api.DashboardStats]) {
		v.State = statusOf(NameDashboard, st)
		v.Stats = st.Data
	})
	v.Header = header{Title: "Dashboard"}
	return render("dashboard", v)
}
