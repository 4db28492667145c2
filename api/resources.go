package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
)

// GetClients lists every client account.
func (c *Client) GetClients(ctx context.Context) ([]ClientAccount, error) {
	resp, err := c.KAMRequest(ctx, "/clients", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var clients []ClientAccount
	if err := resp.Decode("clients", &clients); err != nil {
		return nil, fmt.Errorf("api: decode clients: %w", err)
	}
	return clients, nil
}

// GetClient returns one client account.
func (c *Client) GetClient(ctx context.Context, clientID string) (*ClientAccount, error) {
	resp, err := c.KAMRequest(ctx, "/clients/"+url.PathEscape(clientID), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var client ClientAccount
	if err := resp.Decode("client", &client); err != nil {
		return nil, fmt.Errorf("api: decode client: %w", err)
	}
	return &client, nil
}

// UpdateClientBudget sets a client's monthly budget.
func (c *Client) UpdateClientBudget(ctx context.Context, clientID string, budgetUSD float64) error {
	_, err := c.KAMRequest(ctx, "/clients/"+url.PathEscape(clientID)+"/budget", http.MethodPut, map[string]any{
		"monthly_budget_usd": budgetUSD,
	})
	return err
}

// GetClientRequests lists the requests of one client.
func (c *Client) GetClientRequests(ctx context.Context, clientID string) ([]ClientRequest, error) {
	resp, err := c.KAMRequest(ctx, "/clients/"+url.PathEscape(clientID)+"/requests", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var requests []ClientRequest
	if err := resp.Decode("requests", &requests); err != nil {
		return nil, fmt.Errorf("api: decode requests: %w", err)
	}
	return requests, nil
}

// RequestFilter narrows ListRequests on the backend.
type RequestFilter struct {
	Status   string
	ClientID string
	Limit    int
}

// ListRequests lists client requests.
func (c *Client) ListRequests(ctx context.Context, f RequestFilter) ([]ClientRequest, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.ClientID != "" {
		q.Set("client_id", f.ClientID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	resp, err := c.MakeRequest(ctx, "/requests", RequestOptions{Query: q})
	if err != nil {
		return nil, err
	}
	var requests []ClientRequest
	if err := resp.Decode("requests", &requests); err != nil {
		return nil, fmt.Errorf("api: decode requests: %w", err)
	}
	return requests, nil
}

// GetDashboardStats returns the dashboard aggregate.
func (c *Client) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	resp, err := c.KAMRequest(ctx, "/dashboard/stats", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var stats DashboardStats
	if err := resp.Decode("stats", &stats); err != nil {
		return nil, fmt.Errorf("api: decode stats: %w", err)
	}
	return &stats, nil
}

// ListTemplates lists pipeline templates.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	resp, err := c.KAMRequest(ctx, "/templates", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var templates []Template
	if err := resp.Decode("templates", &templates); err != nil {
		return nil, fmt.Errorf("api: decode templates: %w", err)
	}
	return templates, nil
}

// SaveTemplate creates a template, or updates it when update is set.
func (c *Client) SaveTemplate(ctx context.Context, t Template, update bool) (*Template, error) {
	path, method := "/templates", http.MethodPost
	if update {
		path, method = "/templates/"+url.PathEscape(t.Name), http.MethodPut
	}
	resp, err := c.KAMRequest(ctx, path, method, t)
	if err != nil {
		return nil, err
	}
	var saved Template
	if err := resp.Decode("template", &saved); err != nil {
		return nil, fmt.Errorf("api: decode template: %w", err)
	}
	return &saved, nil
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, name string) error {
	_, err := c.KAMRequest(ctx, "/templates/"+url.PathEscape(name), http.MethodDelete, nil)
	return err
}

// SyncTemplates asks the backend to pull templates from the workers and
// returns how many were synced.
func (c *Client) SyncTemplates(ctx context.Context) (int, error) {
	resp, err := c.KAMRequest(ctx, "/templates/sync", http.MethodPost, nil)
	if err != nil {
		return 0, err
	}
	return int(resp.Get("synced").Int()), nil
}

// ListUsers lists console users.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := c.KAMRequest(ctx, "/users", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := resp.Decode("users", &users); err != nil {
		return nil, fmt.Errorf("api: decode users: %w", err)
	}
	return users, nil
}

// NewUser is the body of a user creation request.
type NewUser struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	ClientID string `json:"client_id,omitempty"`
	Password string `json:"password"`
}

// CreateUser creates a console user.
func (c *Client) CreateUser(ctx context.Context, u NewUser) (*User, error) {
	resp, err := c.KAMRequest(ctx, "/users", http.MethodPost, u)
	if err != nil {
		return nil, err
	}
	var user User
	if err := resp.Decode("user", &user); err != nil {
		return nil, fmt.Errorf("api: decode user: %w", err)
	}
	return &user, nil
}

// SetUserStatus activates or deactivates a user.
func (c *Client) SetUserStatus(ctx context.Context, userID, status string) error {
	_, err := c.KAMRequest(ctx, "/users/"+url.PathEscape(userID)+"/status", http.MethodPut, map[string]string{
		"status": status,
	})
	return err
}

// MyPermissions returns the caller's effective permissions.
func (c *Client) MyPermissions(ctx context.Context) (*PermissionSet, error) {
	resp, err := c.KAMRequest(ctx, "/permissions/me", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var set PermissionSet
	if err := resp.Decode("", &set); err != nil {
		return nil, fmt.Errorf("api: decode permissions: %w", err)
	}
	return &set, nil
}

// Login exchanges credentials for a backend session.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	resp, err := c.KAMRequest(ctx, "/auth/login", http.MethodPost, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	var res LoginResult
	if err := resp.Decode("", &res); err != nil {
		return nil, fmt.Errorf("api: decode login: %w", err)
	}
	if res.SessionToken == "" {
		return nil, &Error{Method: http.MethodPost, Path: "/auth/login", Message: "login response carried no session"}
	}
	return &res, nil
}

// Logout ends the backend session of c.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.KAMRequest(ctx, "/auth/logout", http.MethodPost, nil)
	return err
}

// ListProjects lists granulation projects. Legacy single-stage jobs
// ({"job_id", "result"}) are returned as one-stage projects.
func (c *Client) ListProjects(ctx context.Context) ([]GranulationProject, error) {
	resp, err := c.WorkerRequest(ctx, WorkerGranulator, "/granulator/projects", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	list := resp.Get("projects")
	if !list.Exists() {
		list = gjson.ParseBytes(resp.Raw())
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("api: decode projects: not an array")
	}

	var projects []GranulationProject
	for _, item := range list.Array() {
		p, err := decodeProject(item)
		if err != nil {
			return nil, fmt.Errorf("api: decode projects: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, nil
}

func decodeProject(item gjson.Result) (GranulationProject, error) {
	var p GranulationProject
	if err := json.Unmarshal([]byte(item.Raw), &p); err != nil {
		return p, err
	}
	if p.ProjectID == "" && item.Get("job_id").Exists() {
		p.ProjectID = item.Get("job_id").String()
		p.StructureType = item.Get("granulation_type").String()
		p.Stages = []Stage{{
			Number: 1,
			Name:   "granulation",
			Status: p.Status,
			Output: json.RawMessage(item.Get("result").Raw),
			Error:  item.Get("error").String(),
		}}
	}
	return p, nil
}

// CreateProject starts a granulation project.
func (c *Client) CreateProject(ctx context.Context, np NewGranulationProject) (*GranulationProject, error) {
	resp, err := c.WorkerRequest(ctx, WorkerGranulator, "/granulator/projects", http.MethodPost, np)
	if err != nil {
		return nil, err
	}
	item := resp.Get("project")
	if !item.Exists() {
		item = gjson.ParseBytes(resp.Raw())
	}
	p, err := decodeProject(item)
	if err != nil {
		return nil, fmt.Errorf("api: decode project: %w", err)
	}
	return &p, nil
}

// ExecuteStage runs one stage of a project.
func (c *Client) ExecuteStage(ctx context.Context, projectID string, stage int) (*Stage, error) {
	path := fmt.Sprintf("/granulator/projects/%s/stages/%d/execute", url.PathEscape(projectID), stage)
	resp, err := c.WorkerRequest(ctx, WorkerGranulator, path, http.MethodPost, nil)
	if err != nil {
		return nil, err
	}
	var s Stage
	if err := resp.Decode("stage", &s); err != nil {
		return nil, fmt.Errorf("api: decode stage: %w", err)
	}
	return &s, nil
}

// ListPipelines lists orchestrator pipelines.
func (c *Client) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	resp, err := c.WorkerRequest(ctx, WorkerOrchestrator, "/orchestrator/pipelines", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var pipelines []Pipeline
	if err := resp.Decode("pipelines", &pipelines); err != nil {
		return nil, fmt.Errorf("api: decode pipelines: %w", err)
	}
	return pipelines, nil
}

// ListExecutions lists recent pipeline executions.
func (c *Client) ListExecutions(ctx context.Context) ([]PipelineExecution, error) {
	resp, err := c.WorkerRequest(ctx, WorkerOrchestrator, "/orchestrator/executions", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var execs []PipelineExecution
	if err := resp.Decode("executions", &execs); err != nil {
		return nil, fmt.Errorf("api: decode executions: %w", err)
	}
	return execs, nil
}

// GetExecution returns one execution.
func (c *Client) GetExecution(ctx context.Context, executionID string) (*PipelineExecution, error) {
	resp, err := c.WorkerRequest(ctx, WorkerOrchestrator, "/orchestrator/executions/"+url.PathEscape(executionID), http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var exec PipelineExecution
	if err := resp.Decode("execution", &exec); err != nil {
		return nil, fmt.Errorf("api: decode execution: %w", err)
	}
	return &exec, nil
}

// ExecutePipeline starts a pipeline run.
func (c *Client) ExecutePipeline(ctx context.Context, pipelineID string, input map[string]string) (*PipelineExecution, error) {
	resp, err := c.WorkerRequest(ctx, WorkerOrchestrator, "/orchestrator/pipelines/"+url.PathEscape(pipelineID)+"/execute", http.MethodPost, map[string]any{
		"input": input,
	})
	if err != nil {
		return nil, err
	}
	var exec PipelineExecution
	if err := resp.Decode("execution", &exec); err != nil {
		return nil, fmt.Errorf("api: decode execution: %w", err)
	}
	return &exec, nil
}

// GetResourceStatus returns the resource manager overview.
func (c *Client) GetResourceStatus(ctx context.Context) (*ResourceStatus, error) {
	resp, err := c.WorkerRequest(ctx, WorkerResourceManager, "/resource-manager/status", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var status ResourceStatus
	if err := resp.Decode("status", &status); err != nil {
		return nil, fmt.Errorf("api: decode resource status: %w", err)
	}
	return &status, nil
}

// GetQueue returns the resource manager queue.
func (c *Client) GetQueue(ctx context.Context) ([]QueueEntry, error) {
	resp, err := c.WorkerRequest(ctx, WorkerResourceManager, "/resource-manager/queue", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var queue []QueueEntry
	if err := resp.Decode("queue", &queue); err != nil {
		return nil, fmt.Errorf("api: decode queue: %w", err)
	}
	return queue, nil
}
