package pages

import (
	"context"
	"math"
	"slices"
	"strconv"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameClientDetail is the registry name of the client detail page.
const NameClientDetail = "client-detail"

var clientTabs = []string{"overview", "requests", "budget"}

type clientDetail struct {
	Client        *api.ClientAccount
	Requests      []api.ClientRequest
	RequestsError string
}

// ClientDetailPage shows one client with overview, requests and budget
// tabs.
type ClientDetailPage struct {
	*page.Base
	deps     Deps
	clientID string
	store    *page.Store[clientDetail]
}

// NewClientDetailPage creates the page for clientID.
func NewClientDetailPage(d Deps, clientID string) *ClientDetailPage {
	view := page.NewViewSelection(d.PageSize, page.Sort{})
	view.Tab = clientTabs[0]
	p := &ClientDetailPage{
		deps:     d,
		clientID: clientID,
		store:    page.NewStore[clientDetail](view),
	}
	p.Base = page.NewBase(d.options(NameClientDetail, "Client"), p, p.load)
	p.Handle("tab", p.selectTab)
	p.Handle("updateBudget", p.updateBudget)
	p.Handle("back", func(ctx context.Context, _ page.Action) error {
		return d.navigate(ctx, "/clients")
	})
	return p
}

// ClientID returns the client this page shows.
func (p *ClientDetailPage) ClientID() string { return p.clientID }

func (p *ClientDetailPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "client", false, p.fetch, func(d clientDetail, err error) {
		p.store.Settle(d, err)
		p.Update()
	})
}

// fetch loads the client and its requests. The requests are optional:
// their failure is shown inside the tab, not as a page error.
func (p *ClientDetailPage) fetch(ctx context.Context) (clientDetail, error) {
	c, err := p.deps.API.GetClient(ctx, p.clientID)
	if err != nil {
		return clientDetail{}, err
	}
	d := clientDetail{Client: c}
	reqs, err := p.deps.API.GetClientRequests(ctx, p.clientID)
	if err != nil {
		logError(p.Logger(), "failed to load client requests", err, "client", p.clientID)
		d.RequestsError = page.Message(err)
	}
	d.Requests = reqs
	return d, nil
}

type clientDetailView struct {
	State    status
	Header   header
	Detail   clientDetail
	Tab      string
	Tabs     []string
	ReadOnly bool
}

func (p *ClientDetailPage) view() clientDetailView {
	v := clientDetailView{Tabs: clientTabs, ReadOnly: p.deps.ReadOnly}
	p.store.Read(func(st *page.State[clientDetail]) {
		v.State = statusOf(NameClientDetail, st)
		v.Detail = st.Data
		v.Tab = st.View.Tab
	})
	title := "Client"
	if v.Detail.Client != nil {
		title = v.Detail.Client.CompanyName
	}
	v.Header = header{Title: title}
	return v
}

// Render returns the page markup for the current state.
func (p *ClientDetailPage) Render() string {
	return render("client-detail", p.view())
}

func (p *ClientDetailPage) selectTab(_ context.Context, a page.Action) error {
	if !slices.Contains(clientTabs, a.Value) {
		return page.Invalid("tab", "Unknown tab")
	}
	p.store.Write(func(st *page.State[clientDetail]) {
		st.View.Tab = a.Value
	})
	p.UpdateRegion("client-detail-tab", func() string {
		return render("client-detail-tab", p.view())
	})
	return nil
}

func (p *ClientDetailPage) updateBudget(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	raw := a.Field("monthly_budget_usd")
	if raw == "" {
		return page.Invalid("monthly_budget_usd", "Monthly budget is required")
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount < 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return page.Invalid("monthly_budget_usd", "Monthly budget must be a non-negative number")
	}

	ran := page.Fetch(ctx, p.Base, "budget", false,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, p.deps.API.UpdateClientBudget(ctx, p.clientID, amount)
		},
		func(_ struct{}, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			p.Toast(page.ToastSuccess, "Budget updated")
			p.Reload()
		})
	if !ran {
		return page.Invalid("", "A budget update is already in progress")
	}
	return nil
}
