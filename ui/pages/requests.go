package pages

import (
	"context"
	"slices"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameRequests is the registry name of the requests page.
const NameRequests = "requests"

// RequestLimit caps how many requests one load fetches.
const RequestLimit = 500

var requestStatuses = []string{"pending", "processing", "completed", "failed"}

var requestSortFields = []string{"company_name", "request_type", "status", "cost_usd", "created_at"}

var requestList = page.ListSpec[api.ClientRequest]{
	Match: func(r api.ClientRequest, f string) bool {
		return page.ContainsFold(f, r.CompanyName, r.ClientID, r.Message, r.RequestType, r.TemplateName)
	},
	Compare: func(a, b api.ClientRequest, field string) int {
		switch field {
		case "company_name":
			return page.CompareFold(a.CompanyName, b.CompanyName)
		case "request_type":
			return page.CompareFold(a.RequestType, b.RequestType)
		case "status":
			return page.CompareFold(a.Status, b.Status)
		case "cost_usd":
			return cmpFloat(a.CostUSD, b.CostUSD)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return 0
	},
}

// RequestsPage lists client requests. The status filter is applied by the
// backend; text search, sort and pagination run locally.
type RequestsPage struct {
	*page.Base
	deps  Deps
	store *page.Store[[]api.ClientRequest]
	list  listBinding[api.ClientRequest]
}

// NewRequestsPage creates the page in its loading state.
func NewRequestsPage(d Deps) *RequestsPage {
	p := &RequestsPage{
		deps:  d,
		store: page.NewStore[[]api.ClientRequest](page.NewViewSelection(d.PageSize, page.Sort{Field: "created_at", Dir: page.Desc})),
	}
	p.Base = page.NewBase(d.options(NameRequests, "Requests"), p, func(ctx context.Context) { p.load(ctx, false) })
	p.list = listBinding[api.ClientRequest]{
		store:    p.store,
		spec:     requestList,
		sortable: requestSortFields,
		refresh:  p.updateContent,
		row:      p.updateRow,
	}
	bindList(p.Base, p.list)
	p.Handle("filterStatus", p.filterStatus)
	return p
}

// load fetches requests for the current status filter. A status change
// supersedes any fetch still running for the previous status.
func (p *RequestsPage) load(ctx context.Context, supersede bool) {
	var f api.RequestFilter
	p.store.Read(func(st *page.State[[]api.ClientRequest]) {
		f = api.RequestFilter{Status: st.View.Status, Limit: RequestLimit}
	})
	page.Fetch(ctx, p.Base, "requests", supersede,
		func(ctx context.Context) ([]api.ClientRequest, error) {
			return p.deps.API.ListRequests(ctx, f)
		},
		func(reqs []api.ClientRequest, err error) {
			p.store.Settle(reqs, err)
			p.Update()
		})
}

func (p *RequestsPage) filterStatus(ctx context.Context, a page.Action) error {
	if a.Value != "" && !slices.Contains(requestStatuses, a.Value) {
		return page.Invalid("status", "Unknown status")
	}
	var changed bool
	p.store.Write(func(st *page.State[[]api.ClientRequest]) {
		changed = st.View.Status != a.Value
		st.View.Status = a.Value
		st.View.Page = 0
		st.IsLoading = true
		st.Error = ""
	})
	if !changed {
		return nil
	}
	p.Update()
	p.load(p.Context(), true)
	return nil
}

type requestsView struct {
	State    status
	Header   header
	View     page.ViewSelection
	Window   page.Window[api.ClientRequest]
	Statuses []string
}

func (p *RequestsPage) view() requestsView {
	var v requestsView
	p.store.Read(func(st *page.State[[]api.ClientRequest]) {
		v = requestsView{
			State:    statusOf(NameRequests, st),
			Header:   header{Title: "Requests"},
			View:     snapshot(st.View),
			Window:   p.list.window(st),
			Statuses: requestStatuses,
		}
	})
	return v
}

// Render returns the page markup for the current state.
func (p *RequestsPage) Render() string {
	return render("requests", p.view())
}

func (p *RequestsPage) updateContent() {
	p.UpdateRegion("requests-content", func() string {
		return render("requests-content", p.view())
	})
}

func (p *RequestsPage) updateRow(id string) {
	var row map[string]any
	p.store.Read(func(st *page.State[[]api.ClientRequest]) {
		i := slices.IndexFunc(st.Data, func(r api.ClientRequest) bool { return r.RequestID == id })
		if i >= 0 {
			row = map[string]any{"R": st.Data[i], "Open": st.View.Expanded.Has(id)}
		}
	})
	if row == nil {
		return
	}
	p.UpdateRegion("request-row-"+id, func() string {
		return render("request-row", row)
	})
}
