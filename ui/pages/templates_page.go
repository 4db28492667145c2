package pages

import (
	"context"
	"fmt"
	"html/template"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameTemplates is the registry name of the template manager.
const NameTemplates = "templates"

var templateNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var templateSortFields = []string{"name", "category", "estimated_cost_usd", "updated_at"}

var templateList = page.ListSpec[api.Template]{
	Match: func(t api.Template, f string) bool {
		return page.ContainsFold(f, t.Name, t.DisplayName, t.Category, t.Worker, t.Description)
	},
	Compare: func(a, b api.Template, field string) int {
		switch field {
		case "name":
			return page.CompareFold(a.Name, b.Name)
		case "category":
			return page.CompareFold(a.Category, b.Category)
		case "estimated_cost_usd":
			return cmpFloat(a.EstimatedCostUSD, b.EstimatedCostUSD)
		case "updated_at":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		}
		return 0
	},
}

// TemplateManager manages the pipeline templates offered to clients:
// create, edit, activate, delete and sync from the workers.
type TemplateManager struct {
	*page.Base
	deps  Deps
	store *page.Store[[]api.Template]
	list  listBinding[api.Template]

	mu      sync.Mutex
	editing *api.Template
	isNew   bool
}

// NewTemplateManager creates the page in its loading state.
func NewTemplateManager(d Deps) *TemplateManager {
	p := &TemplateManager{
		deps:  d,
		store: page.NewStore[[]api.Template](page.NewViewSelection(d.PageSize, page.Sort{Field: "name", Dir: page.Asc})),
	}
	p.Base = page.NewBase(d.options(NameTemplates, "Templates"), p, p.load)
	p.list = listBinding[api.Template]{
		store:    p.store,
		spec:     templateList,
		sortable: templateSortFields,
		refresh:  p.updateContent,
	}
	bindList(p.Base, p.list)
	p.Handle("new", p.newTemplate)
	p.Handle("edit", p.edit)
	p.Handle("cancelEdit", p.cancelEdit)
	p.Handle("saveTemplate", p.save)
	p.Handle("toggleActive", p.toggleActive)
	p.Handle("deleteTemplate", p.confirmDelete)
	p.Handle("confirmDelete", p.delete)
	p.Handle("syncTemplates", p.sync)
	return p
}

func (p *TemplateManager) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "templates", false, p.deps.API.ListTemplates, func(ts []api.Template, err error) {
		p.store.Settle(ts, err)
		p.Update()
	})
}

func (p *TemplateManager) find(name string) (api.Template, bool) {
	var (
		t  api.Template
		ok bool
	)
	p.store.Read(func(st *page.State[[]api.Template]) {
		i := slices.IndexFunc(st.Data, func(t api.Template) bool { return t.Name == name })
		if i >= 0 {
			t, ok = st.Data[i], true
		}
	})
	return t, ok
}

func (p *TemplateManager) setEditing(t *api.Template, isNew bool) {
	p.mu.Lock()
	p.editing, p.isNew = t, isNew
	p.mu.Unlock()
}

func (p *TemplateManager) newTemplate(context.Context, page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	p.setEditing(&api.Template{IsActive: true}, true)
	p.Update()
	return nil
}

func (p *TemplateManager) edit(_ context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	t, ok := p.find(a.ID)
	if !ok {
		return page.Invalid("id", "Template not found")
	}
	p.setEditing(&t, false)
	p.Update()
	return nil
}

func (p *TemplateManager) cancelEdit(context.Context, page.Action) error {
	p.setEditing(nil, false)
	p.Update()
	return nil
}

// templateFromForm validates the editor form.
func templateFromForm(a page.Action, isNew bool, orig api.Template) (api.Template, error) {
	t := orig
	if isNew {
		t.Name = strings.ToLower(a.Field("name"))
		if !templateNamePattern.MatchString(t.Name) {
			return t, page.Invalid("name", "Name must be lower case letters, digits, dashes or underscores")
		}
	}
	t.DisplayName = a.Field("display_name")
	if t.DisplayName == "" {
		return t, page.Invalid("display_name", "Display name is required")
	}
	t.Description = a.Field("description")
	t.Category = a.Field("category")
	t.Worker = a.Field("worker")
	t.Complexity = a.Field("complexity")
	if raw := a.Field("estimated_cost_usd"); raw != "" {
		cost, err := strconv.ParseFloat(raw, 64)
		if err != nil || cost < 0 {
			return t, page.Invalid("estimated_cost_usd", "Estimated cost must be a non-negative number")
		}
		t.EstimatedCostUSD = cost
	}
	if raw := a.Field("stages"); raw != "" {
		t.Stages = nil
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				t.Stages = append(t.Stages, s)
			}
		}
	}
	t.IsActive = a.Field("is_active") != ""
	return t, nil
}

func (p *TemplateManager) save(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	p.mu.Lock()
	editing, isNew := p.editing, p.isNew
	p.mu.Unlock()
	if editing == nil {
		return page.Invalid("", "No template is being edited")
	}
	t, err := templateFromForm(a, isNew, *editing)
	if err != nil {
		return err
	}
	if isNew {
		if _, exists := p.find(t.Name); exists {
			return page.Invalid("name", fmt.Sprintf("Template %q already exists", t.Name))
		}
	}

	ran := page.Fetch(ctx, p.Base, "save", false,
		func(ctx context.Context) (*api.Template, error) {
			return p.deps.API.SaveTemplate(ctx, t, !isNew)
		},
		func(_ *api.Template, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			p.setEditing(nil, false)
			p.Toast(page.ToastSuccess, fmt.Sprintf("Template %q saved", t.Name))
			p.Reload()
		})
	if !ran {
		return page.Invalid("", "A template is already being saved")
	}
	return nil
}

func (p *TemplateManager) toggleActive(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	t, ok := p.find(a.ID)
	if !ok {
		return page.Invalid("id", "Template not found")
	}
	t.IsActive = !t.IsActive
	if _, err := p.deps.API.SaveTemplate(ctx, t, true); err != nil {
		return err
	}
	state := "deactivated"
	if t.IsActive {
		state = "activated"
	}
	p.Toast(page.ToastSuccess, fmt.Sprintf("Template %q %s", t.Name, state))
	p.Reload()
	return nil
}

func (p *TemplateManager) confirmDelete(_ context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	t, ok := p.find(a.ID)
	if !ok {
		return page.Invalid("id", "Template not found")
	}
	p.ShowModal(page.Modal{
		Title: "Delete template",
		Body:  template.HTML("<p>Delete <strong>" + template.HTMLEscapeString(t.DisplayName) + "</strong>? Clients can no longer request it.</p>"),
		Actions: []page.ModalAction{
			{Label: "Cancel", Style: "btn-secondary"},
			{Label: "Delete", Page: NameTemplates, Action: "confirmDelete", ID: t.Name, Style: "btn-danger"},
		},
	})
	return nil
}

func (p *TemplateManager) delete(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	if a.ID == "" {
		return page.Invalid("id", "Missing template name")
	}
	if err := p.deps.API.DeleteTemplate(ctx, a.ID); err != nil {
		return err
	}
	p.Toast(page.ToastSuccess, fmt.Sprintf("Template %q deleted", a.ID))
	p.Reload()
	return nil
}

func (p *TemplateManager) sync(ctx context.Context, _ page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	ran := page.Fetch(ctx, p.Base, "sync", false, p.deps.API.SyncTemplates, func(n int, err error) {
		if err != nil {
			p.Toast(page.ToastError, page.Message(err))
			return
		}
		p.Toast(page.ToastSuccess, fmt.Sprintf("Synced %d templates", n))
		p.Reload()
	})
	if !ran {
		return page.Invalid("", "A sync is already running")
	}
	return nil
}

type templatesView struct {
	State    status
	Header   header
	View     page.ViewSelection
	Window   page.Window[api.Template]
	Editing  *api.Template
	IsNew    bool
	ReadOnly bool
}

func (p *TemplateManager) view() templatesView {
	v := templatesView{ReadOnly: p.deps.ReadOnly}
	p.store.Read(func(st *page.State[[]api.Template]) {
		v.State = statusOf(NameTemplates, st)
		v.View = snapshot(st.View)
		v.Window = p.list.window(st)
	})
	p.mu.Lock()
	if p.editing != nil {
		e := *p.editing
		v.Editing = &e
	}
	v.IsNew = p.isNew
	p.mu.Unlock()
	v.Header = header{Title: "Templates", Actions: []headerAction{
		{Label: "Sync from workers", Action: "syncTemplates", Style: "btn-secondary"},
		{Label: "New template", Action: "new", Style: "btn-primary"},
	}}
	return v
}

// Render returns the page markup for the current state.
func (p *TemplateManager) Render() string {
	return render("templates", p.view())
}

func (p *TemplateManager) updateContent() {
	p.UpdateRegion("templates-content", func() string {
		return render("templates-content", p.view())
	})
}
