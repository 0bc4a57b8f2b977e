package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/orc-engine/orc/internal/core"
)

// MemoryStore is a thread-safe, process-local Store. It is the default for
// tests and for single-process deployments that don't need executions to
// survive a restart.
type MemoryStore struct {
	mu         sync.Mutex
	executions map[string]*core.WorkflowExecution
	artifacts  map[string]*core.Artifact
	budget     map[string]*core.BudgetRow
	approvals  map[string][]core.ApprovalRecord
	templates  map[string]*core.WorkflowTemplate
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		executions: make(map[string]*core.WorkflowExecution),
		artifacts:  make(map[string]*core.Artifact),
		budget:     make(map[string]*core.BudgetRow),
		approvals:  make(map[string][]core.ApprovalRecord),
		templates:  make(map[string]*core.WorkflowTemplate),
	}
}

func cloneExecution(e *core.WorkflowExecution) *core.WorkflowExecution {
	cp := *e
	cp.PhaseExecutions = append([]core.PhaseExecution(nil), e.PhaseExecutions...)
	cp.ArtifactIDs = append([]string(nil), e.ArtifactIDs...)
	return &cp
}

func (s *MemoryStore) CreateExecution(e *core.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[e.ID]; exists {
		return fmt.Errorf("store: execution %q already exists", e.ID)
	}
	s.executions[e.ID] = cloneExecution(e)
	return nil
}

func (s *MemoryStore) GetExecution(id string) (*core.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %q: %w", id, core.ErrNotFound)
	}
	return cloneExecution(e), nil
}

func (s *MemoryStore) ListExecutions(filter ExecutionFilter) ([]*core.WorkflowExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.WorkflowExecution
	for _, e := range s.executions {
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, cloneExecution(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateExecution(e *core.WorkflowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.executions[e.ID]; !ok {
		return fmt.Errorf("execution %q: %w", e.ID, core.ErrNotFound)
	}
	s.executions[e.ID] = cloneExecution(e)
	return nil
}

func (s *MemoryStore) DeleteExecution(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.executions, id)
	delete(s.approvals, id)
	for aid, a := range s.artifacts {
		if a.WorkflowExecutionID == id {
			delete(s.artifacts, aid)
		}
	}
	return nil
}

func (s *MemoryStore) CreateArtifact(a *core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.artifacts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetArtifact(id string) (*core.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("artifact %q: %w", id, core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListArtifactsByWorkflow(workflowExecutionID string) ([]*core.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Artifact
	for _, a := range s.artifacts {
		if a.WorkflowExecutionID == workflowExecutionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (s *MemoryStore) ListArtifactsByPhase(phaseExecutionID string) ([]*core.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Artifact
	for _, a := range s.artifacts {
		if a.PhaseExecutionID == phaseExecutionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (s *MemoryStore) UpdateArtifact(a *core.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[a.ID]; !ok {
		return fmt.Errorf("artifact %q: %w", a.ID, core.ErrNotFound)
	}
	cp := *a
	s.artifacts[a.ID] = &cp
	return nil
}

func (s *MemoryStore) DeleteArtifact(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.artifacts, id)
	return nil
}

func (s *MemoryStore) CleanupWorkflow(workflowExecutionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.artifacts {
		if a.WorkflowExecutionID == workflowExecutionID {
			delete(s.artifacts, id)
		}
	}
	return nil
}

func budgetKey(scope core.BudgetScope, scopeID string) string {
	return string(scope) + ":" + scopeID
}

func (s *MemoryStore) UpsertBudgetRow(row *core.BudgetRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	s.budget[budgetKey(row.Scope, row.ScopeID)] = &cp
	return nil
}

func (s *MemoryStore) GetBudgetRow(scope core.BudgetScope, scopeID string) (*core.BudgetRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.budget[budgetKey(scope, scopeID)]
	if !ok {
		return nil, fmt.Errorf("budget row %s/%s: %w", scope, scopeID, core.ErrNotFound)
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) AppendApproval(rec core.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[rec.ExecutionID] = append(s.approvals[rec.ExecutionID], rec)
	return nil
}

func (s *MemoryStore) ListApprovals(executionID string) ([]core.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ApprovalRecord(nil), s.approvals[executionID]...), nil
}

func (s *MemoryStore) GetTemplate(id string) (*core.WorkflowTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, fmt.Errorf("template %q: %w", id, core.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) SaveTemplate(t *core.WorkflowTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTemplates() ([]*core.WorkflowTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.WorkflowTemplate
	for _, t := range s.templates {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DefaultTemplate(projectID string) (*core.WorkflowTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var globalDefault *core.WorkflowTemplate
	for _, t := range s.templates {
		if !t.IsDefault {
			continue
		}
		if projectID != "" && t.ProjectID == projectID {
			cp := *t
			return &cp, nil
		}
		if t.IsGlobal {
			cp := *t
			globalDefault = &cp
		}
	}
	if globalDefault != nil {
		return globalDefault, nil
	}
	return nil, fmt.Errorf("no default template: %w", core.ErrNotFound)
}

var _ Store = (*MemoryStore)(nil)
