package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/orc-engine/orc/internal/approval"
	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/eventbus"
	"github.com/orc-engine/orc/internal/provider"
	"github.com/orc-engine/orc/internal/store"
)

type fakeProvider struct {
	content string
	failErr error
	costUSD float64
}

func (f *fakeProvider) Generate(ctx context.Context, req provider.GenerateRequest) (provider.GenerateResult, error) {
	if f.failErr != nil {
		return provider.GenerateResult{}, f.failErr
	}
	return provider.GenerateResult{Content: f.content, ModelUsed: "fake-model", CostUSD: f.costUSD}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req provider.GenerateRequest) (<-chan provider.StreamEvent, error) {
	ch := make(chan provider.StreamEvent, 1)
	ch <- provider.StreamEvent{Done: true, Result: provider.GenerateResult{Content: f.content}}
	close(ch)
	return ch, nil
}

func (f *fakeProvider) CheckHealth(ctx context.Context) bool              { return true }
func (f *fakeProvider) ValidateConfig(ctx context.Context) (bool, string) { return true, "" }
func (f *fakeProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return nil, nil
}
func (f *fakeProvider) Close() error { return nil }

type fakeFactory struct {
	byPhase map[string]provider.Provider
	def     provider.Provider
}

func (f *fakeFactory) Create(ctx context.Context, cfg core.ProviderConfig) (provider.Provider, error) {
	if p, ok := f.byPhase[cfg.ModelName]; ok {
		return p, nil
	}
	return f.def, nil
}

func newTestOrchestrator(factory *fakeFactory) *Orchestrator {
	st := store.NewMemoryStore()
	bus := eventbus.New()
	bt := budget.NewTracker()
	appr := approval.New(func(core.ApprovalRecord) {})
	return New(st, bus, bt, appr, factory, nil)
}

func simplePhase(id, model string) core.WorkflowPhase {
	return core.WorkflowPhase{
		ID:                 id,
		Name:               id,
		Role:               core.RoleAnalyzer,
		Provider:           core.ProviderConfig{Kind: core.ProviderNone, ModelName: model},
		PromptTemplate:     "do {task_description}",
		OutputArtifactType: core.ArtifactCustom,
		SuccessPattern:     "",
		Order:              0,
		TimeoutSeconds:     5,
	}
}

func seedTemplate(t *testing.T, o *Orchestrator, tmpl *core.WorkflowTemplate) {
	t.Helper()
	if err := o.Store.SaveTemplate(tmpl); err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
}

func TestRun_SingleSerialPhaseCompletes(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	tmpl := &core.WorkflowTemplate{
		ID:                "t1",
		Name:              "basic",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t1", TaskDescription: "a task"})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.Run(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != core.WorkflowCompleted {
		t.Fatalf("expected completed, got %v", result.Status)
	}
	if len(result.PhaseExecutions) != 1 || result.PhaseExecutions[0].Status != core.PhaseStatusCompleted {
		t.Fatalf("unexpected phase executions: %+v", result.PhaseExecutions)
	}
}

func TestRun_ParallelGroupRunsBothMembers(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p2 := simplePhase("p2", "m2")
	p2.Order = 2
	p2.ParallelWith = "p1"

	tmpl := &core.WorkflowTemplate{
		ID:                "t2",
		Name:              "parallel",
		Phases:            []core.WorkflowPhase{p1, p2},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t2", TaskDescription: "x"})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.Run(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != core.WorkflowCompleted {
		t.Fatalf("expected completed, got %v", result.Status)
	}
	if len(result.PhaseExecutions) != 2 {
		t.Fatalf("expected 2 phase executions, got %d", len(result.PhaseExecutions))
	}
}

func TestRun_FailureSkipPhaseAddsSkipMarker(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{failErr: context.DeadlineExceeded}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p1.MaxRetries = 0

	tmpl := &core.WorkflowTemplate{
		ID:                "t3",
		Name:              "skip-on-fail",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailureSkipPhase,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t3", TaskDescription: "x"})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.Run(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != core.WorkflowCompleted {
		t.Fatalf("expected completed after skip, got %v", result.Status)
	}

	var sawFailed, sawSkipped bool
	for _, pe := range result.PhaseExecutions {
		if pe.Status == core.PhaseStatusFailed {
			sawFailed = true
		}
		if pe.Status == core.PhaseStatusSkipped {
			sawSkipped = true
		}
	}
	if !sawFailed || !sawSkipped {
		t.Fatalf("expected both a failed and a skipped record, got %+v", result.PhaseExecutions)
	}
}

func TestRun_BudgetExceededStopsBeforeFirstPhase(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	tmpl := &core.WorkflowTemplate{
		ID:                "t4",
		Name:              "budget",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	limit := 0.0
	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t4", TaskDescription: "x", BudgetLimit: &limit})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.Run(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != core.WorkflowBudgetExceeded {
		t.Fatalf("expected budget_exceeded, got %v", result.Status)
	}
	if len(result.PhaseExecutions) != 0 {
		t.Fatalf("expected no phases to run, got %+v", result.PhaseExecutions)
	}
}

// TestRun_BudgetExceededAfterPhaseDebit covers the case where the budget
// gate passes before the group runs, but the phase's own cost pushes the
// ledger past the limit — the phase still completes and its artifact is
// kept, but the execution must still transition to budget_exceeded.
func TestRun_BudgetExceededAfterPhaseDebit(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done", costUSD: 0.01}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	tmpl := &core.WorkflowTemplate{
		ID:                "t4b",
		Name:              "budget-after-debit",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	limit := 0.001
	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t4b", TaskDescription: "x", BudgetLimit: &limit})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result, err := o.Run(ctx, exec.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != core.WorkflowBudgetExceeded {
		t.Fatalf("expected budget_exceeded, got %v", result.Status)
	}
	if len(result.PhaseExecutions) != 1 {
		t.Fatalf("expected the phase to have run and completed, got %+v", result.PhaseExecutions)
	}
	pe := result.PhaseExecutions[0]
	if pe.Status != core.PhaseStatusCompleted {
		t.Fatalf("expected the phase itself to complete, got %v", pe.Status)
	}
	if pe.OutputArtifactID == "" {
		t.Fatalf("expected the phase's artifact to still be persisted")
	}
	if !pe.BudgetExceeded {
		t.Fatalf("expected PhaseExecution.BudgetExceeded to be set")
	}
}

func TestRun_InteractiveModeGatesSensitivePhaseOnApproval(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p1.Role = core.RoleImplementer

	tmpl := &core.WorkflowTemplate{
		ID:                "t5",
		Name:              "interactive",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t5", TaskDescription: "x", InteractiveMode: true})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	done := make(chan struct{})
	var result *core.WorkflowExecution
	var runErr error
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		result, runErr = o.Run(ctx, exec.ID)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Approvals.HasPending(exec.ID) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !o.Approvals.HasPending(exec.ID) {
		t.Fatal("expected a pending approval for the sensitive phase")
	}
	if !o.Approvals.Resolve(exec.ID, true, core.SourceCLI) {
		t.Fatal("expected Resolve to find the pending request")
	}

	<-done
	if runErr != nil {
		t.Fatalf("Run: %v", runErr)
	}
	if result.Status != core.WorkflowCompleted {
		t.Fatalf("expected completed, got %v", result.Status)
	}
}

func TestCancel_StopsActiveRun(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p1.Role = core.RoleImplementer

	tmpl := &core.WorkflowTemplate{
		ID:                "t6",
		Name:              "cancel-me",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t6", TaskDescription: "x", InteractiveMode: true})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}

	done := make(chan struct{})
	go func() {
		ctx := context.Background()
		o.Run(ctx, exec.ID)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if o.Approvals.HasPending(exec.ID) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !o.Cancel(exec.ID) {
		t.Fatal("expected Cancel to succeed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Cancel")
	}

	got, err := o.GetExecution(exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if got.Status != core.WorkflowCancelled {
		t.Fatalf("expected cancelled, got %v", got.Status)
	}
}

func TestBuildGroups_SharedAnchorFormsOneGroup(t *testing.T) {
	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p2 := simplePhase("p2", "m2")
	p2.Order = 2
	p2.ParallelWith = "p1"
	p3 := simplePhase("p3", "m3")
	p3.Order = 3

	groups := buildGroups([]core.WorkflowPhase{p1, p2, p3})
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0]) != 2 {
		t.Fatalf("expected first group to have 2 members, got %d", len(groups[0]))
	}
	if len(groups[1]) != 1 {
		t.Fatalf("expected second group to have 1 member, got %d", len(groups[1]))
	}
}

func TestSkipPhase_RecordsSkipForCurrentPhase(t *testing.T) {
	o := newTestOrchestrator(&fakeFactory{def: &fakeProvider{content: "done"}})

	p1 := simplePhase("p1", "m1")
	p1.Order = 1
	p1.CanSkip = true

	tmpl := &core.WorkflowTemplate{
		ID:                "t7",
		Name:              "skip",
		Phases:            []core.WorkflowPhase{p1},
		MaxIterations:     1,
		IterationBehavior: core.AutoIterate,
		FailureBehavior:   core.FailurePauseNotify,
		IsDefault:         true,
		IsGlobal:          true,
	}
	seedTemplate(t, o, tmpl)

	exec, err := o.CreateExecution(CreateExecutionRequest{TemplateID: "t7", TaskDescription: "x"})
	if err != nil {
		t.Fatalf("CreateExecution: %v", err)
	}
	exec.CurrentPhaseID = "p1"
	if err := o.Store.UpdateExecution(exec); err != nil {
		t.Fatalf("UpdateExecution: %v", err)
	}

	if !o.SkipPhase(exec.ID, "p1") {
		t.Fatal("expected SkipPhase to succeed")
	}
	got, err := o.GetExecution(exec.ID)
	if err != nil {
		t.Fatalf("GetExecution: %v", err)
	}
	if len(got.PhaseExecutions) != 1 || got.PhaseExecutions[0].Status != core.PhaseStatusSkipped {
		t.Fatalf("expected one skipped phase execution, got %+v", got.PhaseExecutions)
	}
}
