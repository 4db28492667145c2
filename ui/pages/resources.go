package pages

import (
	"context"
	"fmt"
	"slices"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameResources is the registry name of the resource manager page.
const NameResources = "resources"

// Resource manager tabs.
const (
	TabWorkers = "workers"
	TabQueue   = "queue"
)

var resourceTabs = []string{TabWorkers, TabQueue}

type resourceData struct {
	Status     *api.ResourceStatus
	Queue      []api.QueueEntry
	QueueError string
}

// ResourceManagerPage shows worker capacity and health and the request
// queue waiting on them.
type ResourceManagerPage struct {
	*page.Base
	deps  Deps
	store *page.Store[resourceData]
}

// NewResourceManagerPage creates the page in its loading state.
func NewResourceManagerPage(d Deps) *ResourceManagerPage {
	v := page.NewViewSelection(d.PageSize, page.Sort{})
	v.Tab = TabWorkers
	p := &ResourceManagerPage{
		deps:  d,
		store: page.NewStore[resourceData](v),
	}
	p.Base = page.NewBase(d.options(NameResources, "Resource Manager"), p, p.load)
	p.Handle("tab", p.tab)
	return p
}

func (p *ResourceManagerPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "status", false, p.fetch, func(d resourceData, err error) {
		p.store.Settle(d, err)
		p.Update()
	})
}

// fetch loads the status; the queue is optional and a failure only
// marks it unavailable.
func (p *ResourceManagerPage) fetch(ctx context.Context) (resourceData, error) {
	status, err := p.deps.API.GetResourceStatus(ctx)
	if err != nil {
		return resourceData{}, err
	}
	d := resourceData{Status: status}
	queue, err := p.deps.API.GetQueue(ctx)
	if err != nil {
		logError(p.Logger(), "failed to load queue", err)
		d.QueueError = page.Message(err)
	}
	d.Queue = queue
	return d, nil
}

func (p *ResourceManagerPage) tab(_ context.Context, a page.Action) error {
	if !slices.Contains(resourceTabs, a.Value) {
		return page.Invalid("tab", fmt.Sprintf("Unknown tab %q", a.Value))
	}
	p.store.Write(func(st *page.State[resourceData]) { st.View.Tab = a.Value })
	p.UpdateRegion("resources-tab", func() string {
		return render("resources-tab", p.view())
	})
	return nil
}

type resourcesView struct {
	State       status
	Header      header
	Tab         string
	Tabs        []string
	Data        resourceData
	Utilization float64
	Healthy     int
}

func (p *ResourceManagerPage) view() resourcesView {
	v := resourcesView{Header: header{Title: "Resource Manager"}, Tabs: resourceTabs}
	p.store.Read(func(st *page.State[resourceData]) {
		v.State = statusOf(NameResources, st)
		v.Tab = st.View.Tab
		v.Data = st.Data
	})
	if s := v.Data.Status; s != nil {
		v.Utilization = s.Utilization()
		for _, w := range s.Workers {
			if w.Status == "healthy" || w.Status == "active" {
				v.Healthy++
			}
		}
	}
	return v
}

// Render returns the page markup for the current state.
func (p *ResourceManagerPage) Render() string {
	return render("resources", p.view())
}
