// Package core holds the data model shared by every other package: provider
// configs, workflow templates, phases, artifacts, and the execution records
// that thread them together.
package core

import "math"

// ProviderKind is the closed set of provider bindings the engine understands.
type ProviderKind string

const (
	ProviderCLITool           ProviderKind = "cli_tool"
	ProviderSDKAgent          ProviderKind = "sdk_agent"
	ProviderGenericOpenAIHTTP ProviderKind = "generic_openai_http"
	ProviderOpenRouter        ProviderKind = "openrouter"
	ProviderOpenAI            ProviderKind = "openai"
	ProviderGeminiDirect      ProviderKind = "gemini_direct"
	ProviderGeminiOAuth       ProviderKind = "gemini_oauth"
	ProviderGeminiViaRouter   ProviderKind = "gemini_via_openrouter"
	ProviderCloudCodeAssist   ProviderKind = "cloud_code_assist"
	ProviderLocalOllama       ProviderKind = "local_ollama"
	ProviderLocalLMStudio     ProviderKind = "local_lm_studio"
	ProviderNone              ProviderKind = "none"
)

// ValidProviderKind reports whether k is one of the closed-set kinds above.
func ValidProviderKind(k ProviderKind) bool {
	switch k {
	case ProviderCLITool, ProviderSDKAgent, ProviderGenericOpenAIHTTP, ProviderOpenRouter,
		ProviderOpenAI, ProviderGeminiDirect, ProviderGeminiOAuth, ProviderGeminiViaRouter,
		ProviderCloudCodeAssist, ProviderLocalOllama, ProviderLocalLMStudio, ProviderNone:
		return true
	}
	return false
}

// PhaseRole is purely informational metadata about a phase's purpose.
type PhaseRole string

const (
	RoleAnalyzer         PhaseRole = "analyzer"
	RolePlanner          PhaseRole = "planner"
	RoleImplementer      PhaseRole = "implementer"
	RoleReviewerFunc     PhaseRole = "reviewer_functional"
	RoleReviewerStyle    PhaseRole = "reviewer_style"
	RoleReviewerSecurity PhaseRole = "reviewer_security"
	RoleReviewerCustom   PhaseRole = "reviewer_custom"
	RoleVerifier         PhaseRole = "verifier"
	RoleBrowserVerifier  PhaseRole = "browser_verifier"
)

// Sensitive reports whether a phase role is one the orchestrator treats as
// sensitive for interactive-mode approval gating (any reviewer role or the
// implementer role; see orchestrator.isSensitivePhase for the full rule,
// which also accounts for iteration number).
func (r PhaseRole) Sensitive() bool {
	switch r {
	case RoleImplementer, RoleReviewerFunc, RoleReviewerStyle, RoleReviewerSecurity, RoleReviewerCustom:
		return true
	}
	return false
}

// PhaseStatus is the state of one PhaseExecution.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusRunning   PhaseStatus = "running"
	PhaseStatusPaused    PhaseStatus = "paused"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// Terminal reports whether no further transitions are expected for the status.
func (s PhaseStatus) Terminal() bool {
	switch s {
	case PhaseStatusCompleted, PhaseStatusFailed, PhaseStatusSkipped:
		return true
	}
	return false
}

// WorkflowStatus is the state of a WorkflowExecution.
type WorkflowStatus string

const (
	WorkflowPending         WorkflowStatus = "pending"
	WorkflowRunning         WorkflowStatus = "running"
	WorkflowPaused          WorkflowStatus = "paused"
	WorkflowAwaitingApprove WorkflowStatus = "awaiting_approval"
	WorkflowCompleted       WorkflowStatus = "completed"
	WorkflowFailed          WorkflowStatus = "failed"
	WorkflowCancelled       WorkflowStatus = "cancelled"
	WorkflowBudgetExceeded  WorkflowStatus = "budget_exceeded"
)

// Terminal reports whether the status admits no further sequencing.
func (s WorkflowStatus) Terminal() bool {
	switch s {
	case WorkflowCompleted, WorkflowFailed, WorkflowCancelled, WorkflowBudgetExceeded:
		return true
	}
	return false
}

// ArtifactType classifies a phase's output.
type ArtifactType string

const (
	ArtifactTaskList           ArtifactType = "task_list"
	ArtifactCodebaseDocs       ArtifactType = "codebase_docs"
	ArtifactImplementationPlan ArtifactType = "implementation_plan"
	ArtifactCodeDiff           ArtifactType = "code_diff"
	ArtifactReviewReport       ArtifactType = "review_report"
	ArtifactVerificationReport ArtifactType = "verification_report"
	ArtifactBrowserVerifyReport ArtifactType = "browser_verification_report"
	ArtifactCustom             ArtifactType = "custom"
)

// IterationBehavior governs what happens when a can_iterate phase fails its
// success pattern.
type IterationBehavior string

const (
	AutoIterate       IterationBehavior = "auto_iterate"
	PauseForApproval  IterationBehavior = "pause_for_approval"
)

// FailureBehavior governs what the orchestrator does when a phase's
// PhaseExecution ends FAILED.
type FailureBehavior string

const (
	FailurePauseNotify      FailureBehavior = "pause_notify"
	FailureFallbackProvider FailureBehavior = "fallback_provider"
	FailureSkipPhase        FailureBehavior = "skip_phase"
)

// TriggerMode records how an execution was started; informational only.
type TriggerMode string

const (
	TriggerGitHubIssue   TriggerMode = "github_issue"
	TriggerManualTask    TriggerMode = "manual_task"
	TriggerDirectoryScan TriggerMode = "directory_scan"
)

// BudgetScope is one of the three nested ledger scopes a debit fans out to.
type BudgetScope string

const (
	ScopeExecution BudgetScope = "execution"
	ScopeProject   BudgetScope = "project"
	ScopeGlobal    BudgetScope = "global"
)

// GlobalScopeID is the fixed scope_id for the singleton global ledger row.
const GlobalScopeID = "global"

// ProviderConfig is an immutable value describing one provider binding. A
// non-nil FallbackProvider is consulted only by the orchestrator, and only
// when a phase's failure_behavior is fallback_provider; the phase runner and
// the provider implementations never look at it.
type ProviderConfig struct {
	Kind             ProviderKind    `yaml:"provider_type" json:"provider_type"`
	ModelName        string          `yaml:"model_name" json:"model_name"`
	APIURL           string          `yaml:"api_url,omitempty" json:"api_url,omitempty"`
	Temperature      float64         `yaml:"temperature" json:"temperature"`
	ContextLength    int             `yaml:"context_length" json:"context_length"`
	ExtraParams      map[string]any  `yaml:"extra_params,omitempty" json:"extra_params,omitempty"`
	FallbackProvider *ProviderConfig `yaml:"fallback_provider,omitempty" json:"fallback_provider,omitempty"`
}

// WorkflowPhase is an immutable phase definition within a template.
type WorkflowPhase struct {
	ID                 string         `yaml:"id" json:"id"`
	Name               string         `yaml:"name" json:"name"`
	Role               PhaseRole      `yaml:"role" json:"role"`
	Provider           ProviderConfig `yaml:"provider_config" json:"provider_config"`
	PromptTemplate     string         `yaml:"prompt_template" json:"prompt_template"`
	OutputArtifactType ArtifactType   `yaml:"output_artifact_type" json:"output_artifact_type"`
	SuccessPattern     string         `yaml:"success_pattern" json:"success_pattern"`
	CanSkip            bool           `yaml:"can_skip" json:"can_skip"`
	CanIterate         bool           `yaml:"can_iterate" json:"can_iterate"`
	MaxRetries         int            `yaml:"max_retries" json:"max_retries"`
	TimeoutSeconds     int            `yaml:"timeout_seconds" json:"timeout_seconds"`
	ParallelWith       string         `yaml:"parallel_with,omitempty" json:"parallel_with,omitempty"`
	Order              int            `yaml:"order" json:"order"`
}

// WorkflowTemplate is an ordered set of phases plus global policies.
type WorkflowTemplate struct {
	ID               string            `yaml:"id" json:"id"`
	Name             string            `yaml:"name" json:"name"`
	Description      string            `yaml:"description,omitempty" json:"description,omitempty"`
	Phases           []WorkflowPhase   `yaml:"phases" json:"phases"`
	MaxIterations    int               `yaml:"max_iterations" json:"max_iterations"`
	IterationBehavior IterationBehavior `yaml:"iteration_behavior" json:"iteration_behavior"`
	FailureBehavior  FailureBehavior   `yaml:"failure_behavior" json:"failure_behavior"`
	BudgetLimit      *float64          `yaml:"budget_limit,omitempty" json:"budget_limit,omitempty"`
	BudgetScope      BudgetScope       `yaml:"budget_scope" json:"budget_scope"`
	IsDefault        bool              `yaml:"is_default" json:"is_default"`
	IsGlobal         bool              `yaml:"is_global" json:"is_global"`
	ProjectID        string            `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	CreatedAt        string            `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt        string            `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// PhaseByID returns the index of the phase with the given id, or -1.
func (t *WorkflowTemplate) PhaseByID(id string) int {
	for i := range t.Phases {
		if t.Phases[i].ID == id {
			return i
		}
	}
	return -1
}

// Artifact is the immutable output of one phase execution (mutable only via
// the store's update_content operation, which also sets IsEdited).
type Artifact struct {
	ID                  string         `json:"id"`
	WorkflowExecutionID string         `json:"workflow_execution_id"`
	PhaseExecutionID    string         `json:"phase_execution_id"`
	Type                ArtifactType   `json:"artifact_type"`
	Name                string         `json:"name"`
	Content             string         `json:"content"`
	FilePath            string         `json:"file_path,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	IsEdited            bool           `json:"is_edited"`
	CreatedAt           string         `json:"created_at"`
	UpdatedAt           string         `json:"updated_at"`
}

// PhaseExecution is the record of one attempt to run a phase within one
// iteration of a WorkflowExecution.
type PhaseExecution struct {
	ID                  string      `json:"id"`
	WorkflowExecutionID string      `json:"workflow_execution_id"`
	PhaseID             string      `json:"phase_id"`
	PhaseName           string      `json:"phase_name"`
	PhaseRole           PhaseRole   `json:"phase_role"`
	ProviderUsed        ProviderKind `json:"provider_used"`
	ModelUsed           string      `json:"model_used"`
	Status              PhaseStatus `json:"status"`
	Iteration           int         `json:"iteration"`
	InputArtifactIDs    []string    `json:"input_artifact_ids,omitempty"`
	OutputArtifactID    string      `json:"output_artifact_id,omitempty"`
	TokensInput         int         `json:"tokens_input"`
	TokensOutput        int         `json:"tokens_output"`
	CostUSD             float64     `json:"cost_usd"`
	BudgetExceeded      bool        `json:"budget_exceeded,omitempty"`
	StartedAt           string      `json:"started_at,omitempty"`
	CompletedAt         string      `json:"completed_at,omitempty"`
	ErrorMessage        string      `json:"error_message,omitempty"`
}

// WorkflowExecution is the top-level unit: one run of a template against a
// task description.
type WorkflowExecution struct {
	ID                string           `json:"id"`
	TemplateID        string           `json:"template_id"`
	TemplateName      string           `json:"template_name"`
	TriggerMode       TriggerMode      `json:"trigger_mode"`
	ProjectID         string           `json:"project_id,omitempty"`
	ProjectPath       string           `json:"project_path"`
	TaskDescription   string           `json:"task_description"`
	Status            WorkflowStatus   `json:"status"`
	CurrentPhaseID    string           `json:"current_phase_id,omitempty"`
	Iteration         int              `json:"iteration"`
	PhaseExecutions   []PhaseExecution `json:"phase_executions"`
	ArtifactIDs       []string         `json:"artifact_ids"`
	TotalTokensInput  int              `json:"total_tokens_input"`
	TotalTokensOutput int              `json:"total_tokens_output"`
	TotalCostUSD      float64          `json:"total_cost_usd"`
	BudgetLimit       *float64         `json:"budget_limit,omitempty"`
	IterationBehavior IterationBehavior `json:"iteration_behavior"`
	InteractiveMode   bool             `json:"interactive_mode"`
	CreatedAt         string           `json:"created_at"`
	StartedAt         string           `json:"started_at,omitempty"`
	CompletedAt       string           `json:"completed_at,omitempty"`
}

// PhaseExecutionByPhaseID returns the most recent PhaseExecution for phaseID,
// or nil if the phase has not run yet.
func (e *WorkflowExecution) PhaseExecutionByPhaseID(phaseID string) *PhaseExecution {
	for i := len(e.PhaseExecutions) - 1; i >= 0; i-- {
		if e.PhaseExecutions[i].PhaseID == phaseID {
			return &e.PhaseExecutions[i]
		}
	}
	return nil
}

// BudgetRow is one ledger row keyed by (scope, scope_id).
type BudgetRow struct {
	ID              string      `json:"id"`
	Scope           BudgetScope `json:"scope"`
	ScopeID         string      `json:"scope_id"`
	PeriodStart     string      `json:"period_start"`
	BudgetLimit     *float64    `json:"budget_limit,omitempty"`
	TotalSpent      float64     `json:"total_spent"`
	TokenCountInput int         `json:"token_count_input"`
	TokenCountOutput int        `json:"token_count_output"`
}

// CheckBudget reports whether additionalCost can be spent without exceeding
// BudgetLimit, and the remaining headroom (+Inf when unbounded, 0 when the
// spend would exceed the limit).
func (r *BudgetRow) CheckBudget(additionalCost float64) (ok bool, remaining float64) {
	if r.BudgetLimit == nil {
		return true, math.Inf(1)
	}
	remaining = *r.BudgetLimit - r.TotalSpent - additionalCost
	if remaining < 0 {
		return false, 0
	}
	return true, remaining
}

// ApprovalAction is the recorded outcome of one approval request.
type ApprovalAction string

const (
	ApprovalApproved ApprovalAction = "approved"
	ApprovalRejected ApprovalAction = "rejected"
	ApprovalTimeout  ApprovalAction = "timeout"
)

// ApprovalSource identifies who resolved an approval request.
type ApprovalSource string

const (
	SourceWeb            ApprovalSource = "web"
	SourceCLI            ApprovalSource = "cli"
	SourceTimeout        ApprovalSource = "timeout"
	SourceCallback       ApprovalSource = "callback"
	SourceCallbackCancel ApprovalSource = "callback-cancel"
)

// ApprovalRecord is one append-only row in the approval log.
type ApprovalRecord struct {
	ExecutionID string         `json:"execution_id"`
	Message     string         `json:"message"`
	Action      ApprovalAction `json:"action"`
	Source      ApprovalSource `json:"source"`
	RespondedAt string         `json:"responded_at"`
	WasTimeout  bool           `json:"was_timeout"`
}
