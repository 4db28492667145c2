package pages

import (
	"context"
	"sync"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/ui/page"
)

// NameOrchestrator is the registry name of the orchestrator page.
const NameOrchestrator = "orchestrator"

type orchestratorData struct {
	Pipelines       []api.Pipeline
	Executions      []api.PipelineExecution
	ExecutionsError string
}

// OrchestratorPage lists pipelines and their executions, starts new runs
// and follows one selected execution until it reaches a terminal status.
// Following rides on the page's refresh timer: every tick reloads the
// lists and, while the selected execution is still running, patches its
// detail region.
type OrchestratorPage struct {
	*page.Base
	deps    Deps
	store   *page.Store[orchestratorData]
	monitor *page.Store[*api.PipelineExecution]

	mu       sync.Mutex
	selected string
}

// NewOrchestratorPage creates the page in its loading state.
func NewOrchestratorPage(d Deps) *OrchestratorPage {
	p := &OrchestratorPage{
		deps:    d,
		store:   page.NewStore[orchestratorData](page.NewViewSelection(d.PageSize, page.Sort{})),
		monitor: page.NewStore[*api.PipelineExecution](page.NewViewSelection(d.PageSize, page.Sort{})),
	}
	p.Base = page.NewBase(d.options(NameOrchestrator, "Orchestrator"), p, p.load)
	p.Handle("executePipeline", p.executePipeline)
	p.Handle("selectExecution", p.selectExecution)
	p.Handle("closeExecution", p.closeExecution)
	return p
}

func (p *OrchestratorPage) load(ctx context.Context) {
	page.Fetch(ctx, p.Base, "pipelines", false, p.fetch, func(d orchestratorData, err error) {
		p.store.Settle(d, err)
		p.Update()
	})
	p.poll(ctx)
}

func (p *OrchestratorPage) fetch(ctx context.Context) (orchestratorData, error) {
	pipelines, err := p.deps.API.ListPipelines(ctx)
	if err != nil {
		return orchestratorData{}, err
	}
	d := orchestratorData{Pipelines: pipelines}
	execs, err := p.deps.API.ListExecutions(ctx)
	if err != nil {
		logError(p.Logger(), "failed to load executions", err)
		d.ExecutionsError = page.Message(err)
	}
	d.Executions = execs
	return d, nil
}

// Selected returns the id of the followed execution, if any.
func (p *OrchestratorPage) Selected() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

func (p *OrchestratorPage) setSelected(id string) {
	p.mu.Lock()
	p.selected = id
	p.mu.Unlock()
}

// poll refreshes the followed execution unless it has already finished.
func (p *OrchestratorPage) poll(ctx context.Context) {
	id := p.Selected()
	if id == "" {
		return
	}
	if cur := p.monitor.Snapshot().Data; cur != nil && cur.ExecutionID == id && cur.Terminal() {
		return
	}
	page.Fetch(ctx, p.Base, "execution", true,
		func(ctx context.Context) (*api.PipelineExecution, error) {
			return p.deps.API.GetExecution(ctx, id)
		},
		func(e *api.PipelineExecution, err error) {
			if p.Selected() != id {
				return
			}
			p.monitor.Settle(e, err)
			p.updateExecution()
		})
}

// Following reports whether the selected execution is still polled.
func (p *OrchestratorPage) Following() bool {
	id := p.Selected()
	if id == "" {
		return false
	}
	cur := p.monitor.Snapshot().Data
	return cur == nil || cur.ExecutionID != id || !cur.Terminal()
}

func (p *OrchestratorPage) selectExecution(ctx context.Context, a page.Action) error {
	if a.ID == "" {
		return page.Invalid("id", "Missing execution id")
	}
	p.follow(a.ID)
	p.poll(p.Context())
	return nil
}

func (p *OrchestratorPage) follow(id string) {
	p.setSelected(id)
	p.monitor.Write(func(st *page.State[*api.PipelineExecution]) {
		st.Data = nil
		st.IsLoading = true
		st.Error = ""
		st.Loaded = false
	})
	p.updateExecution()
}

func (p *OrchestratorPage) closeExecution(context.Context, page.Action) error {
	p.setSelected("")
	p.updateExecution()
	return nil
}

func (p *OrchestratorPage) executePipeline(ctx context.Context, a page.Action) error {
	if err := p.deps.writable(); err != nil {
		return err
	}
	if a.ID == "" {
		return page.Invalid("id", "Missing pipeline id")
	}
	input := make(map[string]string, len(a.Form))
	for k := range a.Form {
		if v := a.Field(k); v != "" {
			input[k] = v
		}
	}
	if len(input) == 0 {
		return page.Invalid("input", "Pipeline input is required")
	}

	ran := page.Fetch(ctx, p.Base, "execute:"+a.ID, false,
		func(ctx context.Context) (*api.PipelineExecution, error) {
			return p.deps.API.ExecutePipeline(ctx, a.ID, input)
		},
		func(e *api.PipelineExecution, err error) {
			if err != nil {
				p.Toast(page.ToastError, page.Message(err))
				return
			}
			p.Toast(page.ToastSuccess, "Pipeline started")
			if e != nil && e.ExecutionID != "" {
				p.follow(e.ExecutionID)
			}
			p.Reload()
		})
	if !ran {
		return page.Invalid("", "This pipeline is already being started")
	}
	return nil
}

type executionView struct {
	State     status
	Selected  string
	Execution *api.PipelineExecution
	Stages    []stageResultView
}

type stageResultView struct {
	api.StageResult
	Output string
}

type orchestratorView struct {
	State     status
	Header    header
	Data      orchestratorData
	Monitor   executionView
	InputKeys []string
	ReadOnly  bool
}

func (p *OrchestratorPage) executionView() executionView {
	ev := executionView{Selected: p.Selected()}
	p.monitor.Read(func(st *page.State[*api.PipelineExecution]) {
		ev.State = statusOf(NameOrchestrator, st)
		ev.Execution = st.Data
	})
	if ev.Execution != nil {
		for _, r := range ev.Execution.StageResults {
			ev.Stages = append(ev.Stages, stageResultView{StageResult: r, Output: StageOutput(r.Output)})
		}
	}
	return ev
}

// Render returns the page markup for the current state.
func (p *OrchestratorPage) Render() string {
	v := orchestratorView{
		Header:    header{Title: "Orchestrator"},
		InputKeys: pipelineInputKeys,
		ReadOnly:  p.deps.ReadOnly,
	}
	p.store.Read(func(st *page.State[orchestratorData]) {
		v.State = statusOf(NameOrchestrator, st)
		v.Data = st.Data
	})
	v.Monitor = p.executionView()
	return render("orchestrator", v)
}

func (p *OrchestratorPage) updateExecution() {
	p.UpdateRegion("orchestrator-execution", func() string {
		return render("orchestrator-execution", p.executionView())
	})
}

// pipelineInputKeys are the input fields offered for every pipeline.
var pipelineInputKeys = []string{"topic", "context"}
