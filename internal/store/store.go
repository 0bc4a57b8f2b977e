// Package store defines the document store contract the core needs (spec.md
// §6) and provides an in-memory implementation plus a file-backed mirror
// that persists each workflow execution as its own JSON document, following
// the teacher's atomic-write-then-rename convention in internal/state.
package store

import "github.com/orc-engine/orc/internal/core"

// ExecutionFilter narrows ListExecutions; zero-value fields are "any".
type ExecutionFilter struct {
	ProjectID string
	Status    core.WorkflowStatus
	Limit     int
}

// Store is the persistence contract the orchestrator, phase runner, budget
// tracker, and approval coordinator are built against. Implementations must
// be safe for concurrent use by multiple executions.
type Store interface {
	// Workflows
	CreateExecution(e *core.WorkflowExecution) error
	GetExecution(id string) (*core.WorkflowExecution, error)
	ListExecutions(filter ExecutionFilter) ([]*core.WorkflowExecution, error)
	UpdateExecution(e *core.WorkflowExecution) error
	DeleteExecution(id string) error // cascades to approvals for id

	// Artifacts
	CreateArtifact(a *core.Artifact) error
	GetArtifact(id string) (*core.Artifact, error)
	ListArtifactsByWorkflow(workflowExecutionID string) ([]*core.Artifact, error)
	ListArtifactsByPhase(phaseExecutionID string) ([]*core.Artifact, error)
	UpdateArtifact(a *core.Artifact) error
	DeleteArtifact(id string) error
	CleanupWorkflow(workflowExecutionID string) error

	// Budget rows: upsert by (scope, scope_id); increments are the caller's
	// responsibility (the budget package owns atomic increment semantics
	// via its own lock, then mirrors the result here).
	UpsertBudgetRow(row *core.BudgetRow) error
	GetBudgetRow(scope core.BudgetScope, scopeID string) (*core.BudgetRow, error)

	// Approvals: append-only log.
	AppendApproval(rec core.ApprovalRecord) error
	ListApprovals(executionID string) ([]core.ApprovalRecord, error)

	// Templates: the core only reads templates; authoring lives outside it.
	GetTemplate(id string) (*core.WorkflowTemplate, error)
	SaveTemplate(t *core.WorkflowTemplate) error
	ListTemplates() ([]*core.WorkflowTemplate, error)
	DefaultTemplate(projectID string) (*core.WorkflowTemplate, error)
}
