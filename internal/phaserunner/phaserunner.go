// Package phaserunner executes one WorkflowPhase against a loaded provider:
// assembling its prompt, enforcing its timeout and budget, classifying
// success, and persisting the resulting artifact. Grounded on
// phase_runner.py's PhaseRunner; generalizes the teacher's single
// subprocess-dispatch call in runner.go into a provider-agnostic call
// through the Provider interface.
package phaserunner

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/provider"
	"github.com/orc-engine/orc/internal/store"
)

// maxConcurrentCalls bounds how many provider calls one execution's Runner
// has in flight at once — a parallel phase group can name more members than
// this, but they queue on the semaphore rather than all dialing out at once.
const maxConcurrentCalls = 4

// OutputSink receives incremental phase output as it streams in, the Go
// equivalent of phase_runner.py's on_output callback.
type OutputSink func(phaseID, content string)

// StatusSink receives phase status transitions, the equivalent of
// phase_runner.py's on_status callback.
type StatusSink func(phaseID string, status core.PhaseStatus)

// ProviderFactory builds a Provider for a given config. *provider.Registry
// satisfies this; tests substitute a fake to avoid exercising real network
// or subprocess bindings.
type ProviderFactory interface {
	Create(ctx context.Context, cfg core.ProviderConfig) (provider.Provider, error)
}

// Runner executes phases for one workflow execution, caching provider
// instances by (kind, model) the way PhaseRunner._get_provider does.
type Runner struct {
	WorkflowExecutionID string
	ProjectID           string
	ProjectPath         string

	Registry ProviderFactory
	Budget   *budget.Tracker
	Store    store.Store
	Logger   *zap.Logger

	// OnOutput/OnStatus are the only event hooks; the orchestrator wires
	// these to the event bus as phase_output and status_update events
	// respectively (phase_start/phase_complete come from the orchestrator
	// itself), so this package stays transport-agnostic.
	OnOutput OutputSink
	OnStatus StatusSink

	mu        sync.Mutex
	providers map[string]provider.Provider
	callSem   *semaphore.Weighted
}

// New builds a Runner. Logger/OnOutput/OnStatus may be left zero.
func New(executionID, projectID, projectPath string, reg ProviderFactory, bt *budget.Tracker, st store.Store) *Runner {
	return &Runner{
		WorkflowExecutionID: executionID,
		ProjectID:           projectID,
		ProjectPath:         projectPath,
		Registry:            reg,
		Budget:              bt,
		Store:               st,
		providers:           make(map[string]provider.Provider),
		callSem:             semaphore.NewWeighted(maxConcurrentCalls),
	}
}

func (r *Runner) emitOutput(phaseID, content string) {
	if r.OnOutput != nil {
		r.OnOutput(phaseID, content)
	}
}

func (r *Runner) emitStatus(phaseID string, status core.PhaseStatus) {
	if r.OnStatus != nil {
		r.OnStatus(phaseID, status)
	}
}

func (r *Runner) providerKey(cfg core.ProviderConfig) string {
	return string(cfg.Kind) + ":" + cfg.ModelName
}

func (r *Runner) getProvider(ctx context.Context, cfg core.ProviderConfig) (provider.Provider, error) {
	key := r.providerKey(cfg)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	p, err := r.Registry.Create(ctx, cfg)
	if err != nil {
		return nil, err
	}
	r.providers[key] = p
	return p, nil
}

// buildPrompt substitutes {task_description}, {project_path} and
// {artifact:NAME} placeholders, grounded on _build_prompt's replace +
// regex-substitution pattern. Artifact lookup is case-insensitive substring
// match against artifact names, first match wins; an unmatched placeholder
// becomes a "not found" sentinel instead of an error, same as the source.
var artifactPlaceholder = regexp.MustCompile(`\{artifact:(\w+)\}`)

func (r *Runner) buildPrompt(phase core.WorkflowPhase, taskDescription string, artifacts map[string]core.Artifact) string {
	prompt := phase.PromptTemplate
	prompt = strings.ReplaceAll(prompt, "{task_description}", taskDescription)
	prompt = strings.ReplaceAll(prompt, "{project_path}", r.ProjectPath)

	return artifactPlaceholder.ReplaceAllStringFunc(prompt, func(match string) string {
		sub := artifactPlaceholder.FindStringSubmatch(match)
		name := strings.ToLower(sub[1])
		for artName, art := range artifacts {
			if strings.Contains(strings.ToLower(artName), name) {
				return art.Content
			}
		}
		return fmt.Sprintf("[Artifact '%s' not found]", name)
	})
}

// checkSuccess classifies a phase's output against its success pattern,
// grounded on _check_success: empty pattern always succeeds; a pattern
// beginning with "/" is matched as a literal case-insensitive substring;
// otherwise it's a case-insensitive regex, falling back to a literal
// substring match if the pattern fails to compile.
func checkSuccess(content, pattern string) bool {
	if pattern == "" {
		return true
	}
	if strings.HasPrefix(pattern, "/") {
		return strings.Contains(strings.ToLower(content), strings.ToLower(pattern))
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return strings.Contains(content, pattern)
	}
	return re.MatchString(content)
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// RunPhase executes phase once and returns the resulting PhaseExecution.
// It never returns an error for an ordinary phase failure: those are
// recorded as phase_exec.Status == core.PhaseStatusFailed with an
// ErrorMessage, matching phase_runner.py's try/except-wraps-everything
// shape so the orchestrator always gets a terminal PhaseExecution back.
func (r *Runner) RunPhase(ctx context.Context, phase core.WorkflowPhase, taskDescription string, inputArtifacts map[string]core.Artifact, iteration int) core.PhaseExecution {
	ids := make([]string, 0, len(inputArtifacts))
	for _, a := range inputArtifacts {
		ids = append(ids, a.ID)
	}

	exec := core.PhaseExecution{
		ID:                  core.NewID(),
		WorkflowExecutionID: r.WorkflowExecutionID,
		PhaseID:             phase.ID,
		PhaseName:           phase.Name,
		PhaseRole:           phase.Role,
		ProviderUsed:        phase.Provider.Kind,
		ModelUsed:           phase.Provider.ModelName,
		Status:              core.PhaseStatusRunning,
		Iteration:           iteration,
		InputArtifactIDs:    ids,
		StartedAt:           nowISO(),
	}
	r.emitStatus(phase.ID, core.PhaseStatusRunning)

	fail := func(msg string) core.PhaseExecution {
		exec.Status = core.PhaseStatusFailed
		exec.ErrorMessage = msg
		exec.CompletedAt = nowISO()
		r.emitStatus(phase.ID, core.PhaseStatusFailed)
		return exec
	}

	prov, err := r.getProvider(ctx, phase.Provider)
	if err != nil {
		return fail(err.Error())
	}

	if ok, _ := r.Budget.Check(core.ScopeExecution, r.WorkflowExecutionID, 0); !ok {
		return fail("budget limit exceeded")
	}

	prompt := r.buildPrompt(phase, taskDescription, inputArtifacts)

	timeout := time.Duration(phase.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Hour
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.callSem.Acquire(genCtx, 1); err != nil {
		return fail(fmt.Sprintf("phase timed out after %ds", phase.TimeoutSeconds))
	}
	result, err := prov.Generate(genCtx, provider.GenerateRequest{
		Prompt:      prompt,
		Temperature: phase.Provider.Temperature,
	})
	r.callSem.Release(1)
	if err != nil {
		if genCtx.Err() != nil {
			return fail(fmt.Sprintf("phase timed out after %ds", phase.TimeoutSeconds))
		}
		return fail(err.Error())
	}

	exec.TokensInput = result.TokensInput
	exec.TokensOutput = result.TokensOutput

	model := result.ModelUsed
	if model == "" {
		model = phase.Provider.ModelName
	}
	cost, budgetOK := r.Budget.RecordUsage(r.WorkflowExecutionID, r.ProjectID, model, result.TokensInput, result.TokensOutput, result.CostUSD)
	exec.CostUSD = cost

	r.emitOutput(phase.ID, result.Content)

	if checkSuccess(result.Content, phase.SuccessPattern) {
		artifact := &core.Artifact{
			ID:                  core.NewID(),
			WorkflowExecutionID: r.WorkflowExecutionID,
			PhaseExecutionID:    exec.ID,
			Type:                phase.OutputArtifactType,
			Name:                phase.Name + "_output",
			Content:             result.Content,
			Metadata: map[string]any{
				"model":         model,
				"tokens_input":  result.TokensInput,
				"tokens_output": result.TokensOutput,
				"cost_usd":      cost,
			},
			CreatedAt: nowISO(),
			UpdatedAt: nowISO(),
		}
		if r.Store != nil {
			if err := r.Store.CreateArtifact(artifact); err != nil {
				return fail(fmt.Sprintf("saving artifact: %v", err))
			}
		}
		exec.OutputArtifactID = artifact.ID
		exec.Status = core.PhaseStatusCompleted
	} else {
		exec.Status = core.PhaseStatusFailed
		exec.ErrorMessage = "success pattern not found in output"
	}

	if !budgetOK {
		exec.BudgetExceeded = true
		if exec.ErrorMessage != "" {
			exec.ErrorMessage += " [budget exceeded]"
		} else {
			exec.ErrorMessage = "[budget exceeded]"
		}
	}

	exec.CompletedAt = nowISO()
	r.emitStatus(phase.ID, exec.Status)
	return exec
}

// RunPhaseStreaming runs phase via the provider's streaming path, invoking
// onChunk for each incremental piece of content, and returns the final
// PhaseExecution once the stream terminates.
func (r *Runner) RunPhaseStreaming(ctx context.Context, phase core.WorkflowPhase, taskDescription string, inputArtifacts map[string]core.Artifact, iteration int, onChunk func(string)) core.PhaseExecution {
	ids := make([]string, 0, len(inputArtifacts))
	for _, a := range inputArtifacts {
		ids = append(ids, a.ID)
	}

	exec := core.PhaseExecution{
		ID:                  core.NewID(),
		WorkflowExecutionID: r.WorkflowExecutionID,
		PhaseID:             phase.ID,
		PhaseName:           phase.Name,
		PhaseRole:           phase.Role,
		ProviderUsed:        phase.Provider.Kind,
		ModelUsed:           phase.Provider.ModelName,
		Status:              core.PhaseStatusRunning,
		Iteration:           iteration,
		InputArtifactIDs:    ids,
		StartedAt:           nowISO(),
	}
	r.emitStatus(phase.ID, core.PhaseStatusRunning)

	fail := func(msg string) core.PhaseExecution {
		exec.Status = core.PhaseStatusFailed
		exec.ErrorMessage = msg
		exec.CompletedAt = nowISO()
		r.emitStatus(phase.ID, core.PhaseStatusFailed)
		return exec
	}

	prov, err := r.getProvider(ctx, phase.Provider)
	if err != nil {
		return fail(err.Error())
	}

	if ok, _ := r.Budget.Check(core.ScopeExecution, r.WorkflowExecutionID, 0); !ok {
		return fail("budget limit exceeded")
	}

	prompt := r.buildPrompt(phase, taskDescription, inputArtifacts)

	timeout := time.Duration(phase.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Hour
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.callSem.Acquire(genCtx, 1); err != nil {
		return fail(fmt.Sprintf("phase timed out after %ds", phase.TimeoutSeconds))
	}
	defer r.callSem.Release(1)
	events, err := prov.GenerateStream(genCtx, provider.GenerateRequest{
		Prompt:      prompt,
		Temperature: phase.Provider.Temperature,
	})
	if err != nil {
		return fail(err.Error())
	}

	var full strings.Builder
	var final provider.GenerateResult
	for ev := range events {
		if ev.Content != "" {
			full.WriteString(ev.Content)
			if onChunk != nil {
				onChunk(ev.Content)
			}
			r.emitOutput(phase.ID, ev.Content)
		}
		if ev.Done {
			if ev.Err != nil {
				return fail(ev.Err.Error())
			}
			final = ev.Result
		}
	}

	content := full.String()
	if checkSuccess(content, phase.SuccessPattern) {
		artifact := &core.Artifact{
			ID:                  core.NewID(),
			WorkflowExecutionID: r.WorkflowExecutionID,
			PhaseExecutionID:    exec.ID,
			Type:                phase.OutputArtifactType,
			Name:                phase.Name + "_output",
			Content:             content,
			CreatedAt:           nowISO(),
			UpdatedAt:           nowISO(),
		}
		if r.Store != nil {
			if err := r.Store.CreateArtifact(artifact); err != nil {
				return fail(fmt.Sprintf("saving artifact: %v", err))
			}
		}
		exec.OutputArtifactID = artifact.ID
		exec.Status = core.PhaseStatusCompleted
	} else {
		exec.Status = core.PhaseStatusFailed
		exec.ErrorMessage = "success pattern not found in output"
	}

	exec.TokensInput = final.TokensInput
	exec.TokensOutput = final.TokensOutput

	model := final.ModelUsed
	if model == "" {
		model = phase.Provider.ModelName
	}
	cost, budgetOK := r.Budget.RecordUsage(r.WorkflowExecutionID, r.ProjectID, model, final.TokensInput, final.TokensOutput, final.CostUSD)
	exec.CostUSD = cost
	if !budgetOK {
		exec.BudgetExceeded = true
		if exec.ErrorMessage != "" {
			exec.ErrorMessage += " [budget exceeded]"
		} else {
			exec.ErrorMessage = "[budget exceeded]"
		}
	}
	exec.CompletedAt = nowISO()
	r.emitStatus(phase.ID, exec.Status)
	return exec
}

// Cleanup closes every cached provider instance, mirroring PhaseRunner.cleanup.
func (r *Runner) Cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, p := range r.providers {
		if err := p.Close(); err != nil && r.Logger != nil {
			r.Logger.Warn("provider cleanup error", zap.String("provider", key), zap.Error(err))
		}
	}
	r.providers = make(map[string]provider.Provider)
}
