package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameGranulation is the registry name of the granulation page.
const NameGranulation = "granulation"

// StructureTypes are the granulation structures the granulator accepts.
var StructureTypes = []string{"course", "quiz", "novel", "workflow", "knowledge_map", "learning_path"}

var projectSortFields = []string{"topic", "structure_type", "status", "created_at"}

var projectList = page.ListSpec[api.GranulationProject]{
	Match: func(p api.GranulationProject, f string) bool {
		return page.ContainsFold(f, p.Topic, p.StructureType, p.TargetAudience, p.Status)
	},
	Compare: func(a, b api.GranulationProject, field string) int {
		switch field {
		case "topic":
			return page.CompareFold(a.Topic, b.Topic)
		case "structure_type":
			return page.CompareFold(a.StructureType, b.StructureType)
		case "status":
			return page.CompareFold(a.Status, b.Status)
		case "created_at":
			return a.CreatedAt.Compare(b.CreatedAt)
		}
		return 0
	},
}

// GranulationPage tracks multi-stage granulation projects: creation,
// stage-by-stage execution and stage output inspection. Legacy
// single-stage jobs arrive from the api package as one-stage projects.
type GranulationPage struct {
	*page.Base
	deps  Deps
	store *page.Store[[]api.GranulationProject]
	list  listBinding[api.GranulationProject]
}

// NewGranulationPage creates the page in its loading state.
func NewGranulationPage(d Deps) *GranulationPage {
	p := &GranulationPage{
		deps:  d,
		store: page.NewStore[[]api.GranulationProject](page.NewViewSelection(d.PageSize, page.Sort{Field: "created_at", Dir: page.Desc})),
	}
	p.Base = page.NewBase(d.options(NameGranulation, "Content Granulation"), p, p.load)
	p.list = listBinding[api.GranulationProject]{
		store:    p.store,
		spec:     projectList,
		sortable: projectSortFields,
		refresh:  p.updateContent,
	}
	bindList(p.Base, p.list)
	p.Handle("showCreate", p.showCreate)
	p.Handle("hideCreate", p.hideCreate)
	p.Handle("createProject", p.createProject)
	p.Handle("executeStage", p.executeStage)
	return p
}

func (p *GranulationPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "projects", false, p.deps.API.ListProjects, func(ps []api.GranulationProject, err error) {
		p.store.Settle(ps, err)
		p.Update()
	})
}

type projectView struct {
	api.GranulationProject
	Open    bool
	Next    int
	Outputs []stageView
}

type stageView struct {
	api.Stage
	Output string
}

type granulationView struct {
	State          status
	Header         header
	View           page.ViewSelection
	Window         page.Window[api.GranulationProject]
	Projects       []projectView
	Creating       bool
	StructureTypes []string
	ReadOnly       bool
}

func (p *GranulationPage) view() granulationView {
	v := granulationView{StructureTypes: StructureTypes, ReadOnly: p.deps.ReadOnly}
	p.store.Read(func(st *page.State[[]api.GranulationProject]) {
		v.State = statusOf(NameGranulation, st)
		v.View = snapshot(st.View)
		v.Window = p.list.window(st)
		v.Creating = st.View.Tab == "create"
	})
	v.Header = header{Title: "Content Granulation", Actions: []headerAction{
		{Label: "New project", Action: "showCreate", Style: "btn-primary"},
	}}
	v.Projects = make([]projectView, 0, len(v.Window.Rows))
	for _, proj := range v.Window.Rows {
		pv := projectView{GranulationProject: proj, Open: v.View.Expanded.Has(proj.ProjectID)}
		if next, ok := proj.NextStage(); ok {
			pv.Next = next.Number
		}
		if pv.Open {
			for _, s := range proj.Stages {
				pv.Outputs = append(pv.Outputs, stageView{Stage: s, Output: StageOutput(s.Output)})
			}
		}
		v.Projects = append(v.Projects, pv)
	}
	return v
}

// Render returns the page markup for the current state.
func (p *GranulationPage) Render() string {
	return render("granulation", p.view())
}

func (p *GranulationPage) updateContent() {
	p.UpdateRegion("granulation-content", func() string {
		return render("granulation-content", p.view())
	})
}

func (p *GranulationPage) showCreate(context.Context, page.Action) error {
	p.store.Write(func(st *page.State[[]api.GranulationProject]) { st.View.Tab = "create" })
	p.Update()
	return nil
}

func (p *GranulationPage) hideCreate(context.Context, page.Action) error {
	p.store.Write(func(st *page.State[[]api.GranulationProject]) { st.View.Tab = "" })
	p.Update()
	return nil
}

func (p *GranulationPage) createProject(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	np := api.NewGranulationProject{
		Topic:          a.Field("topic"),
		StructureType:  a.Field("structure_type"),
		TargetAudience: a.Field("target_audience"),
	}
	if np.Topic == "" {
		return page.Invalid("topic", "Topic is required")
	}
	if !slices.Contains(StructureTypes, np.StructureType) {
		return page.Invalid("structure_type", "Choose a structure type")
	}

	ran := page.Fetch(ctx, p.Base, "create", false,
		func(ctx context.Context) (*api.GranulationProject, error) {
			return p.deps.API.CreateProject(ctx, np)
		},
		func(_ *api.GranulationProject, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			p.store.Write(func(st *page.State[[]api.GranulationProject]) { st.View.Tab = "" })
			p.Toast(page.ToastSuccess, fmt.Sprintf("Project %q created", np.Topic))
			p.Reload()
		})
	if !ran {
		return page.Invalid("", "A project is already being created")
	}
	return nil
}

func (p *GranulationPage) executeStage(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	if a.ID == "" {
		return page.Invalid("id", "Missing project id")
	}
	n, err := strconv.Atoi(a.Value)
	if err != nil || n < 1 {
		return page.Invalid("stage", "Invalid stage number")
	}

	ran := page.Fetch(ctx, p.Base, "stage:"+a.ID, false,
		func(ctx context.Context) (*api.Stage, error) {
			return p.deps.API.ExecuteStage(ctx, a.ID, n)
		},
		func(s *api.Stage, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			name := fmt.Sprintf("Stage %d", n)
			if s != nil && s.Name != "" {
				name = s.Name
			}
			p.Toast(page.ToastSuccess, name+" started")
			p.Reload()
		})
	if !ran {
		return page.Invalid("stage", "This project already has a stage running")
	}
	return nil
}

// StageOutput formats a stage output for display. JSON, including JSON
// wrapped in a string, is indented; anything malformed is shown raw.
func StageOutput(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if !gjson.ValidBytes(raw) {
		return string(raw)
	}
	v := gjson.ParseBytes(raw)
	if v.Type == gjson.String {
		inner := v.String()
		if gjson.Valid(inner) {
			return page.PrettyJSON(inner)
		}
		return inner
	}
	return page.PrettyJSON(raw)
}
