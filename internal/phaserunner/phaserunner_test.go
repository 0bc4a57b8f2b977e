package phaserunner

import (
	"context"
	"errors"
	"testing"

	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/provider"
	"github.com/orc-engine/orc/internal/store"
)

type fakeProvider struct {
	content      string
	tokensIn     int
	tokensOut    int
	genErr       error
	streamChunks []string
}

func (f *fakeProvider) Generate(ctx context.Context, req provider.GenerateRequest) (provider.GenerateResult, error) {
	if f.genErr != nil {
		return provider.GenerateResult{}, f.genErr
	}
	return provider.GenerateResult{Content: f.content, TokensInput: f.tokensIn, TokensOutput: f.tokensOut, ModelUsed: "fake-model"}, nil
}

func (f *fakeProvider) GenerateStream(ctx context.Context, req provider.GenerateRequest) (<-chan provider.StreamEvent, error) {
	ch := make(chan provider.StreamEvent, len(f.streamChunks)+1)
	for _, c := range f.streamChunks {
		ch <- provider.StreamEvent{Content: c}
	}
	ch <- provider.StreamEvent{Done: true, Result: provider.GenerateResult{Content: f.content, ModelUsed: "fake-model"}}
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
	p   provider.Provider
	err error
}

func (f *fakeFactory) Create(ctx context.Context, cfg core.ProviderConfig) (provider.Provider, error) {
	return f.p, f.err
}

func newTestRunner(p provider.Provider) *Runner {
	r := New("exec-1", "", "/tmp/project", &fakeFactory{p: p}, budget.NewTracker(), store.NewMemoryStore())
	return r
}

func phaseFixture() core.WorkflowPhase {
	return core.WorkflowPhase{
		ID:                 "p1",
		Name:               "plan",
		Role:               core.RolePlanner,
		PromptTemplate:     "Task: {task_description} in {project_path}",
		OutputArtifactType: core.ArtifactImplementationPlan,
		SuccessPattern:     "",
		TimeoutSeconds:     60,
	}
}

func TestRunPhase_SuccessCreatesArtifact(t *testing.T) {
	r := newTestRunner(&fakeProvider{content: "the plan", tokensIn: 10, tokensOut: 20})
	exec := r.RunPhase(context.Background(), phaseFixture(), "do the thing", nil, 1)

	if exec.Status != core.PhaseStatusCompleted {
		t.Fatalf("expected completed, got %v (%s)", exec.Status, exec.ErrorMessage)
	}
	if exec.OutputArtifactID == "" {
		t.Fatalf("expected an output artifact id")
	}
	art, err := r.Store.GetArtifact(exec.OutputArtifactID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if art.Content != "the plan" {
		t.Fatalf("got content %q", art.Content)
	}
}

func TestRunPhase_SuccessPatternMismatchFails(t *testing.T) {
	r := newTestRunner(&fakeProvider{content: "nothing useful"})
	phase := phaseFixture()
	phase.SuccessPattern = "DONE"
	exec := r.RunPhase(context.Background(), phase, "x", nil, 1)

	if exec.Status != core.PhaseStatusFailed {
		t.Fatalf("expected failed, got %v", exec.Status)
	}
	if exec.ErrorMessage == "" {
		t.Fatalf("expected an error message")
	}
}

func TestRunPhase_LiteralPatternMatches(t *testing.T) {
	r := newTestRunner(&fakeProvider{content: "Status: /DONE/ reached"})
	phase := phaseFixture()
	phase.SuccessPattern = "/DONE/"
	exec := r.RunPhase(context.Background(), phase, "x", nil, 1)

	if exec.Status != core.PhaseStatusCompleted {
		t.Fatalf("expected completed, got %v (%s)", exec.Status, exec.ErrorMessage)
	}
}

func TestRunPhase_ProviderErrorFails(t *testing.T) {
	r := newTestRunner(&fakeProvider{genErr: errors.New("boom")})
	exec := r.RunPhase(context.Background(), phaseFixture(), "x", nil, 1)

	if exec.Status != core.PhaseStatusFailed {
		t.Fatalf("expected failed, got %v", exec.Status)
	}
	if exec.ErrorMessage != "boom" {
		t.Fatalf("got %q", exec.ErrorMessage)
	}
}

func TestRunPhase_BudgetExceededFailsBeforeGenerate(t *testing.T) {
	bt := budget.NewTracker()
	limit := 0.0
	bt.SetLimit(core.ScopeExecution, "exec-1", &limit)

	r := New("exec-1", "", "", &fakeFactory{p: &fakeProvider{content: "should not run"}}, bt, store.NewMemoryStore())
	exec := r.RunPhase(context.Background(), phaseFixture(), "x", nil, 1)

	if exec.Status != core.PhaseStatusFailed {
		t.Fatalf("expected failed, got %v", exec.Status)
	}
	if exec.ErrorMessage != "budget limit exceeded" {
		t.Fatalf("got %q", exec.ErrorMessage)
	}
}

func TestRunPhase_PromptSubstitutesArtifact(t *testing.T) {
	var gotPrompt string
	p := &capturingProvider{fakeProvider: fakeProvider{content: "ok"}, capture: &gotPrompt}
	r := newTestRunner(p)

	phase := phaseFixture()
	phase.PromptTemplate = "Use {artifact:PLAN} for {task_description}"

	artifacts := map[string]core.Artifact{
		"plan_output": {ID: "a1", Content: "the rendered plan body"},
	}
	r.RunPhase(context.Background(), phase, "build it", artifacts, 1)

	if gotPrompt != "Use the rendered plan body for build it" {
		t.Fatalf("got prompt %q", gotPrompt)
	}
}

func TestRunPhase_MissingArtifactPlaceholderSentinel(t *testing.T) {
	var gotPrompt string
	p := &capturingProvider{fakeProvider: fakeProvider{content: "ok"}, capture: &gotPrompt}
	r := newTestRunner(p)

	phase := phaseFixture()
	phase.PromptTemplate = "Use {artifact:MISSING}"
	r.RunPhase(context.Background(), phase, "x", nil, 1)

	if gotPrompt != "Use [Artifact 'missing' not found]" {
		t.Fatalf("got prompt %q", gotPrompt)
	}
}

type capturingProvider struct {
	fakeProvider
	capture *string
}

func (c *capturingProvider) Generate(ctx context.Context, req provider.GenerateRequest) (provider.GenerateResult, error) {
	*c.capture = req.Prompt
	return c.fakeProvider.Generate(ctx, req)
}

func TestRunPhaseStreaming_AccumulatesChunks(t *testing.T) {
	r := newTestRunner(&fakeProvider{streamChunks: []string{"hel", "lo "}, content: "hello world"})
	var chunks []string
	exec := r.RunPhaseStreaming(context.Background(), phaseFixture(), "x", nil, 1, func(c string) {
		chunks = append(chunks, c)
	})

	if exec.Status != core.PhaseStatusCompleted {
		t.Fatalf("expected completed, got %v", exec.Status)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %v", chunks)
	}
	art, err := r.Store.GetArtifact(exec.OutputArtifactID)
	if err != nil {
		t.Fatalf("GetArtifact: %v", err)
	}
	if art.Content != "hello " {
		t.Fatalf("got content %q", art.Content)
	}
}

func TestCheckSuccess_EmptyPatternAlwaysSucceeds(t *testing.T) {
	if !checkSuccess("anything at all", "") {
		t.Fatal("expected empty pattern to always succeed")
	}
}

func TestCheckSuccess_RegexFallsBackToSubstringOnBadPattern(t *testing.T) {
	if !checkSuccess("contains [unclosed", "[unclosed") {
		t.Fatal("expected fallback substring match")
	}
}

func TestCheckSuccess_RegexMatchIsCaseInsensitive(t *testing.T) {
	if !checkSuccess("Task COMPLETE.", "task complete") {
		t.Fatal("expected case-insensitive regex match")
	}
}
