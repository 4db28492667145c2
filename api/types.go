package api

import (
	"encoding/json"
	"time"
)

// ClientAccount is a tenant of the platform as the KAM worker reports it.
type ClientAccount struct {
	ClientID               string  `json:"client_id"`
	CompanyName            string  `json:"company_name"`
	ContactName            string  `json:"contact_name,omitempty"`
	ContactEmail           string  `json:"contact_email"`
	Phone                  string  `json:"phone,omitempty"`
	Industry               string  `json:"industry,omitempty"`
	SubscriptionTier       string  `json:"subscription_tier"`
	AccountStatus          string  `json:"account_status"`
	MonthlyBudgetUSD       float64 `json:"monthly_budget_usd"`
	UsedBudgetCurrentMonth float64 `json:"used_budget_current_month"`
	// CreatedAt is kept as sent so exports reproduce it exactly.
	CreatedAt       string `json:"created_at"`
	LastInteraction string `json:"last_interaction,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// BudgetRemaining returns the unspent monthly budget.
func (c ClientAccount) BudgetRemaining() float64 {
	return c.MonthlyBudgetUSD - c.UsedBudgetCurrentMonth
}

// BudgetUsedPercent returns the share of the monthly budget already used.
func (c ClientAccount) BudgetUsedPercent() float64 {
	if c.MonthlyBudgetUSD <= 0 {
		return 0
	}
	return c.UsedBudgetCurrentMonth / c.MonthlyBudgetUSD * 100
}

// ClientRequest is a unit of work a client submitted.
type ClientRequest struct {
	RequestID    string     `json:"request_id"`
	ClientID     string     `json:"client_id"`
	CompanyName  string     `json:"company_name,omitempty"`
	RequestType  string     `json:"request_type"`
	Message      string     `json:"message"`
	TemplateName string     `json:"template_name,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority,omitempty"`
	CostUSD      float64    `json:"cost_usd"`
	Response     string     `json:"response,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// DashboardStats is the aggregate shown on the dashboard.
type DashboardStats struct {
	TotalClients      int             `json:"total_clients"`
	ActiveClients     int             `json:"active_clients"`
	TotalRequests     int             `json:"total_requests"`
	RequestsToday     int             `json:"requests_today"`
	PendingRequests   int             `json:"pending_requests"`
	CompletedRequests int             `json:"completed_requests"`
	FailedRequests    int             `json:"failed_requests"`
	MonthlyRevenueUSD float64         `json:"monthly_revenue_usd"`
	MonthlySpendUSD   float64         `json:"monthly_spend_usd"`
	ActiveWorkers     int             `json:"active_workers"`
	RecentRequests    []ClientRequest `json:"recent_requests"`
}

// Template is a pipeline template offered to clients.
type Template struct {
	Name             string    `json:"name"`
	DisplayName      string    `json:"display_name"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	Worker           string    `json:"worker,omitempty"`
	Stages           []string  `json:"stages,omitempty"`
	Complexity       string    `json:"complexity,omitempty"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	IsActive         bool      `json:"is_active"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// User is a console user.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	ClientID  string     `json:"client_id,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// User roles.
const (
	RoleAdmin   = "admin"
	RoleSupport = "support"
	RoleClient  = "client"
)

// IsAdmin reports whether u has full console access.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// KAMContext is the key-account context of a client user.
type KAMContext struct {
	ClientID    string `json:"client_id"`
	CompanyName string `json:"company_name"`
	Tier        string `json:"subscription_tier"`
}

// Permission lists the actions a role may take on a resource.
type Permission struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// PermissionSet is the caller's effective permissions.
type PermissionSet struct {
	Role        string       `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// LoginResult is the backend answer to a successful login.
type LoginResult struct {
	SessionToken string     `json:"session_token"`
	ExpiresAt    time.Time  `json:"expires_at"`
	User         User       `json:"user"`
	KAMContext   KAMContext `json:"kam_context"`
}

// GranulationProject is a multi-stage content granulation job.
type GranulationProject struct {
	ProjectID      string    `json:"project_id"`
	Topic          string    `json:"topic"`
	StructureType  string    `json:"structure_type"`
	TargetAudience string    `json:"target_audience,omitempty"`
	Status         string    `json:"status"`
	CurrentStage   int       `json:"current_stage"`
	Stages         []Stage   `json:"stages"`
	CreatedAt      time.Time `json:"created_at"`
}

// NextStage returns the first stage that has not completed, if any.
func (p GranulationProject) NextStage() (Stage, bool) {
	for _, s := range p.Stages {
		if s.Status != "completed" {
			return s, true
		}
	}
	return Stage{}, false
}

// Stage is one step of a granulation project.
type Stage struct {
	Number      int             `json:"stage_number"`
	Name        string          `json:"stage_name"`
	Status      string          `json:"status"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	CostUSD     float64         `json:"cost_usd"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewGranulationProject is the body of a project creation request.
type NewGranulationProject struct {
	Topic          string `json:"topic"`
	StructureType  string `json:"structure_type"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// Pipeline is an orchestrator pipeline definition.
type Pipeline struct {
	ID          string   `json:"pipeline_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Stages      []string `json:"stages"`
}

// PipelineExecution is one run of a pipeline.
type PipelineExecution struct {
	ExecutionID  string        `json:"execution_id"`
	PipelineID   string        `json:"pipeline_id"`
	PipelineName string        `json:"pipeline_name"`
	Status       string        `json:"status"`
	Progress     float64       `json:"progress"`
	CurrentStage string        `json:"current_stage,omitempty"`
	StageResults []StageResult `json:"stage_results,omitempty"`
	Error        string        `json:"error,omitempty"`
	DurationMs   int64         `json:"duration_ms"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Terminal reports whether the execution will not change any more.
func (e PipelineExecution) Terminal() bool {
	switch e.Status {
	case "completed", "failed", "cancelled":
		return true
	}
	return false
}

// StageResult is the outcome of one pipeline stage.
type StageResult struct {
	Stage      string          `json:"stage"`
	Status     string          `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// ResourceStatus is the resource manager overview.
type ResourceStatus struct {
	QueueDepth    int            `json:"queue_depth"`
	ActiveJobs    int            `json:"active_jobs"`
	TotalCapacity int            `json:"total_capacity"`
	Workers       []WorkerHealth `json:"workers"`
}

// Utilization returns active jobs as a percentage of capacity.
func (r ResourceStatus) Utilization() float64 {
	if r.TotalCapacity <= 0 {
		return 0
	}
	return float64(r.ActiveJobs) / float64(r.TotalCapacity) * 100
}

// WorkerHealth is the state of one backend worker.
type WorkerHealth struct {
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	ActiveJobs    int       `json:"active_jobs"`
	Capacity      int       `json:"capacity"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// QueueEntry is a request waiting for a worker.
type QueueEntry struct {
	RequestID string    `json:"request_id"`
	ClientID  string    `json:"client_id"`
	Template  string    `json:"template"`
	Priority  string    `json:"priority"`
	Status    string    `json:"status"`
	Position  int       `json:"position"`
	QueuedAt  time.Time `json:"queued_at"`
}
