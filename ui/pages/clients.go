package pages

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameClients is the registry name of the clients page.
const NameClients = "clients"

var clientSortFields = []string{
	"company_name", "subscription_tier", "account_status",
	"monthly_budget_usd", "used_budget_current_month", "created_at",
}

var clientStatuses = []string{"active", "trial", "suspended", "inactive"}

// ClientsCSVHeader is the first line of a clients export.
var ClientsCSVHeader = []string{
	"Company Name", "Email", "Tier", "Status",
	"Monthly Budget", "Used This Month", "Industry", "Created",
}

var clientList = page.ListSpec[api.ClientAccount]{
	Match: func(c api.ClientAccount, f string) bool {
		return page.ContainsFold(f, c.CompanyName, c.ContactEmail, c.ContactName, c.Industry, c.SubscriptionTier)
	},
	Compare: func(a, b api.ClientAccount, field string) int {
		switch field {
		case "company_name":
			return page.CompareFold(a.CompanyName, b.CompanyName)
		case "subscription_tier":
			return page.CompareFold(a.SubscriptionTier, b.SubscriptionTier)
		case "account_status":
			return page.CompareFold(a.AccountStatus, b.AccountStatus)
		case "monthly_budget_usd":
			return cmpFloat(a.MonthlyBudgetUSD, b.MonthlyBudgetUSD)
		case "used_budget_current_month":
			return cmpFloat(a.UsedBudgetCurrentMonth, b.UsedBudgetCurrentMonth)
		case "created_at":
			return page.CompareFold(a.CreatedAt, b.CreatedAt)
		}
		return 0
	},
}

// ClientsPage lists client accounts with search, sort, status filter,
// pagination, inline detail rows and CSV export.
type ClientsPage struct {
	*page.Base
	deps  Deps
	store *page.Store[[]api.ClientAccount]
	list  listBinding[api.ClientAccount]
}

// NewClientsPage creates the page in its loading state.
func NewClientsPage(d Deps) *ClientsPage {
	p := &ClientsPage{
		deps:  d,
		store: page.NewStore[[]api.ClientAccount](page.NewViewSelection(d.PageSize, page.Sort{Field: "created_at", Dir: page.Desc})),
	}
	p.Base = page.NewBase(d.options(NameClients, "Clients"), p, p.LoadClients)
	p.list = listBinding[api.ClientAccount]{
		store:    p.store,
		spec:     clientList,
		sortable: clientSortFields,
		keep:     keepClientStatus,
		refresh: p.updateContent,
		row:     p.updateRow,
	}
	bindList(p.Base, p.list)
	p.Handle("filterStatus", p.filterStatus)
	p.Handle("exportCSV", p.exportCSV)
	p.Handle("viewClient", p.viewClient)
	return p
}

// LoadClients fetches the client list. Failures land in the state's
// error and render the retry branch.
func (p *ClientsPage) LoadClients(ctx context.Context) {
	page.Fetch(ctx, p.Base, "clients", false, p.deps.API.GetClients, func(clients []api.ClientAccount, err error) {
		p.store.Settle(clients, err)
		p.Update()
	})
}

// State returns a copy of the page state.
func (p *ClientsPage) State() page.State[[]api.ClientAccount] {
	return p.store.Snapshot()
}

type clientsSummary struct {
	Total       int
	Active      int
	Budget      float64
	Used        float64
	UsedPercent float64
}

func summarizeClients(clients []api.ClientAccount) clientsSummary {
	var s clientsSummary
	for _, c := range clients {
		s.Total++
		if equalFold(c.AccountStatus, "active") {
			s.Active++
		}
		s.Budget += c.MonthlyBudgetUSD
		s.Used += c.UsedBudgetCurrentMonth
	}
	if s.Budget > 0 {
		s.UsedPercent = s.Used / s.Budget * 100
	}
	return s
}

type clientsView struct {
	State    status
	Header   header
	View     page.ViewSelection
	Window   page.Window[api.ClientAccount]
	Summary  clientsSummary
	Statuses []string
}

func (p *ClientsPage) view() clientsView {
	var v clientsView
	p.store.Read(func(st *page.State[[]api.ClientAccount]) {
		v = clientsView{
			State: statusOf(NameClients, st),
			Header: header{Title: "Clients", Actions: []headerAction{
				{Label: "Export CSV", Action: "exportCSV", Style: "btn-secondary"},
			}},
			View:     snapshot(st.View),
			Window:   p.list.window(st),
			Summary:  summarizeClients(st.Data),
			Statuses: clientStatuses,
		}
	})
	return v
}

// Render returns the page markup for the current state.
func (p *ClientsPage) Render() string {
	return render("clients", p.view())
}

func (p *ClientsPage) updateContent() {
	p.UpdateRegion("clients-content", func() string {
		return render("clients-content", p.view())
	})
	p.UpdateRegion("clients-summary", func() string {
		return render("clients-summary", p.view())
	})
}

func (p *ClientsPage) updateRow(id string) {
	var row map[string]any
	p.store.Read(func(st *page.State[[]api.ClientAccount]) {
		for _, c := range st.Data {
			if c.ClientID == id {
				row = map[string]any{"C": c, "Open": st.View.Expanded.Has(id)}
				return
			}
		}
	})
	if row == nil {
		return
	}
	p.UpdateRegion("client-row-"+id, func() string {
		return render("client-row", row)
	})
}

func (p *ClientsPage) filterStatus(_ context.Context, a page.Action) error {
	p.store.Write(func(st *page.State[[]api.ClientAccount]) {
		st.View.Status = a.Value
		st.View.Page = 0
	})
	p.updateContent()
	return nil
}

// ExportCSV encodes the filtered, sorted clients across all pages.
func (p *ClientsPage) ExportCSV() []byte {
	var rows []api.ClientAccount
	p.store.Read(func(st *page.State[[]api.ClientAccount]) {
		rows = p.list.all(st)
	})
	return ClientsCSV(rows)
}

func (p *ClientsPage) exportCSV(context.Context, page.Action) error {
	var loaded bool
	p.store.Read(func(st *page.State[[]api.ClientAccount]) { loaded = st.Loaded })
	if !loaded {
		return page.Invalid("", "Clients are not loaded yet")
	}
	name := fmt.Sprintf("clients-%s.csv", p.deps.now().Format("2006-01-02"))
	p.Download(name, page.CSVContentType, p.ExportCSV())
	p.Toast(page.ToastSuccess, "Export ready")
	return nil
}

func (p *ClientsPage) viewClient(ctx context.Context, a page.Action) error {
	if a.ID == "" {
		return page.Invalid("id", "Missing client id")
	}
	return p.deps.navigate(ctx, "/clients/"+url.PathEscape(a.ID))
}

// FilterClients applies the page's default view, narrowed by a text
// filter and an account status, to clients. It is what an export of a
// freshly opened clients page contains.
func FilterClients(clients []api.ClientAccount, filter, status string) []api.ClientAccount {
	v := page.NewViewSelection(max(1, len(clients)), page.Sort{Field: "created_at", Dir: page.Desc})
	v.Filter = filter
	v.Status = status
	st := &page.State[[]api.ClientAccount]{Data: clients, View: v}
	l := listBinding[api.ClientAccount]{spec: clientList, keep: keepClientStatus}
	return l.all(st)
}

func keepClientStatus(c api.ClientAccount, v page.ViewSelection) bool {
	return v.Status == "" || equalFold(c.AccountStatus, v.Status)
}

// ClientsCSV encodes clients in export column order.
func ClientsCSV(clients []api.ClientAccount) []byte {
	rows := make([][]page.Cell, 0, len(clients))
	for _, c := range clients {
		rows = append(rows, ClientCSVRow(c))
	}
	return page.EncodeCSV(ClientsCSVHeader, rows)
}

// ClientCSVRow returns one export row.
func ClientCSVRow(c api.ClientAccount) []page.Cell {
	return []page.Cell{
		page.Text(c.CompanyName),
		page.Text(c.ContactEmail),
		page.Text(c.SubscriptionTier),
		page.Text(c.AccountStatus),
		page.Number(c.MonthlyBudgetUSD),
		page.Number(c.UsedBudgetCurrentMonth),
		page.Text(c.Industry),
		page.Text(c.CreatedAt),
	}
}
