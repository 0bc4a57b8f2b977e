// Package orchestrator owns execution lifecycle: sequencing phases (serial
// and parallel groups), the iteration loop, cancellation/pause/resume, and
// broadcasting lifecycle events. Grounded on the source's WorkflowOrchestrator
// (engine.py, not present in the retrieval pack — reconstructed from its
// callers in api.py/cli.py and spec.md §4.1) and, for Go sequencing idiom, on
// the teacher's internal/runner.Runner (serial loop + runParallel), here
// generalized with golang.org/x/sync/errgroup for the parallel-group join.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orc-engine/orc/internal/approval"
	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/eventbus"
	"github.com/orc-engine/orc/internal/phaserunner"
	"github.com/orc-engine/orc/internal/store"
)

// retryBaseDelay/retryMaxDelay bound the exponential backoff applied to
// transient provider errors within one phase attempt, per spec.md §4.1:
// 0.5s × 2^k capped at 10s.
const (
	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second
)

// CreateExecutionRequest is the input to CreateExecution, mirroring
// WorkflowOrchestrator.create_execution's keyword arguments.
type CreateExecutionRequest struct {
	TemplateID      string
	TriggerMode     core.TriggerMode
	ProjectID       string
	ProjectPath     string
	TaskDescription string
	BudgetLimit     *float64
	InteractiveMode bool
}

// Orchestrator sequences phases for every active execution. One instance is
// shared across executions; per-execution state lives in the store plus the
// cancels map below.
type Orchestrator struct {
	Store     store.Store
	Bus       *eventbus.Bus
	Budget    *budget.Tracker
	Approvals *approval.Coordinator
	Providers phaserunner.ProviderFactory
	Logger    *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds an Orchestrator. Logger may be nil, in which case log output is
// discarded (zap.NewNop()).
func New(st store.Store, bus *eventbus.Bus, bt *budget.Tracker, approvals *approval.Coordinator, providers phaserunner.ProviderFactory, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Store:     st,
		Bus:       bus,
		Budget:    bt,
		Approvals: approvals,
		Providers: providers,
		Logger:    logger,
		cancels:   make(map[string]context.CancelFunc),
	}
}

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

func (o *Orchestrator) broadcast(executionID string, t eventbus.EventType, data map[string]any) {
	if o.Bus == nil {
		return
	}
	o.Bus.Broadcast(eventbus.Event{Type: t, ExecutionID: executionID, Data: data})
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// CreateExecution resolves the template (falling back to the project, then
// global, default) and persists a new pending execution.
func (o *Orchestrator) CreateExecution(req CreateExecutionRequest) (*core.WorkflowExecution, error) {
	var tmpl *core.WorkflowTemplate
	var err error

	if req.TemplateID != "" {
		tmpl, err = o.Store.GetTemplate(req.TemplateID)
	} else {
		tmpl, err = o.Store.DefaultTemplate(req.ProjectID)
	}
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, fmt.Errorf("%w: no template available for this project", core.ErrConfig)
	}

	exec := &core.WorkflowExecution{
		ID:                core.NewID(),
		TemplateID:        tmpl.ID,
		TemplateName:      tmpl.Name,
		TriggerMode:       req.TriggerMode,
		ProjectID:         req.ProjectID,
		ProjectPath:       req.ProjectPath,
		TaskDescription:   req.TaskDescription,
		Status:            core.WorkflowPending,
		Iteration:         1,
		BudgetLimit:       req.BudgetLimit,
		IterationBehavior: tmpl.IterationBehavior,
		InteractiveMode:   req.InteractiveMode,
		CreatedAt:         nowISO(),
	}
	if err := o.Store.CreateExecution(exec); err != nil {
		return nil, err
	}
	if req.BudgetLimit != nil {
		o.Budget.SetLimit(core.ScopeExecution, exec.ID, req.BudgetLimit)
	}
	return exec, nil
}

// GetExecution is a read-only lookup by id.
func (o *Orchestrator) GetExecution(id string) (*core.WorkflowExecution, error) {
	return o.Store.GetExecution(id)
}

// ListExecutions is a read-only query by project/status/limit.
func (o *Orchestrator) ListExecutions(filter store.ExecutionFilter) ([]*core.WorkflowExecution, error) {
	return o.Store.ListExecutions(filter)
}

// GetArtifacts returns every artifact published by executionID.
func (o *Orchestrator) GetArtifacts(executionID string) ([]*core.Artifact, error) {
	return o.Store.ListArtifactsByWorkflow(executionID)
}

// UpdateArtifactContent replaces artifactID's content and marks it edited,
// the update_content operation from spec.md §6.
func (o *Orchestrator) UpdateArtifactContent(artifactID, content string) (*core.Artifact, error) {
	a, err := o.Store.GetArtifact(artifactID)
	if err != nil {
		return nil, err
	}
	a.Content = content
	a.IsEdited = true
	a.UpdatedAt = nowISO()
	if err := o.Store.UpdateArtifact(a); err != nil {
		return nil, err
	}
	return a, nil
}

// GetBudgetSummary reports executionID's current spend against its limit.
func (o *Orchestrator) GetBudgetSummary(executionID string) budget.Summary {
	return o.Budget.Summary(core.ScopeExecution, executionID)
}

// SkipPhase records phaseID as SKIPPED if it is the execution's current
// phase and declared can_skip, and no approval is pending for the execution.
func (o *Orchestrator) SkipPhase(executionID, phaseID string) bool {
	if o.Approvals != nil && o.Approvals.HasPending(executionID) {
		return false
	}
	exec, err := o.Store.GetExecution(executionID)
	if err != nil || exec.CurrentPhaseID != phaseID {
		return false
	}
	tmpl, err := o.Store.GetTemplate(exec.TemplateID)
	if err != nil {
		return false
	}
	idx := tmpl.PhaseByID(phaseID)
	if idx < 0 || !tmpl.Phases[idx].CanSkip {
		return false
	}

	exec.PhaseExecutions = append(exec.PhaseExecutions, core.PhaseExecution{
		ID:                  core.NewID(),
		WorkflowExecutionID: executionID,
		PhaseID:             phaseID,
		PhaseName:           tmpl.Phases[idx].Name,
		PhaseRole:           tmpl.Phases[idx].Role,
		Status:              core.PhaseStatusSkipped,
		Iteration:           exec.Iteration,
		StartedAt:           nowISO(),
		CompletedAt:         nowISO(),
	})
	if err := o.Store.UpdateExecution(exec); err != nil {
		return false
	}
	o.broadcast(executionID, eventbus.EventPhaseComplete, map[string]any{"phase_id": phaseID, "status": string(core.PhaseStatusSkipped)})
	return true
}

// Cancel signals cancellation to executionID's active run, if any, and
// marks it CANCELLED. Returns false if the execution doesn't exist or is
// already terminal.
func (o *Orchestrator) Cancel(executionID string) bool {
	exec, err := o.Store.GetExecution(executionID)
	if err != nil || exec.Status.Terminal() {
		return false
	}

	o.mu.Lock()
	cancel, active := o.cancels[executionID]
	o.mu.Unlock()
	if active {
		cancel()
	}
	o.Approvals.Cancel(executionID)

	exec.Status = core.WorkflowCancelled
	exec.CompletedAt = nowISO()
	if err := o.Store.UpdateExecution(exec); err != nil {
		o.log().Warn("saving cancelled execution", zap.String("execution_id", executionID), zap.Error(err))
	}
	o.broadcast(executionID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowCancelled)})
	return true
}

// Resume re-enters the sequencing loop for a PAUSED execution.
func (o *Orchestrator) Resume(ctx context.Context, executionID string) (*core.WorkflowExecution, error) {
	exec, err := o.Store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status != core.WorkflowPaused {
		return nil, fmt.Errorf("%w: execution %s is not paused", core.ErrConfig, executionID)
	}
	return o.Run(ctx, executionID)
}

// Run drives executionID's sequencing loop to completion (or to a pause/
// cancellation/budget-exceeded boundary). Idempotent for terminal executions.
func (o *Orchestrator) Run(ctx context.Context, executionID string) (*core.WorkflowExecution, error) {
	exec, err := o.Store.GetExecution(executionID)
	if err != nil {
		return nil, err
	}
	if exec.Status.Terminal() {
		return exec, nil
	}
	if exec.Status != core.WorkflowPending && exec.Status != core.WorkflowPaused {
		return nil, fmt.Errorf("%w: cannot run execution in %s status", core.ErrConfig, exec.Status)
	}

	tmpl, err := o.Store.GetTemplate(exec.TemplateID)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancels[executionID] = cancel
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.cancels, executionID)
		o.mu.Unlock()
		cancel()
	}()

	exec.Status = core.WorkflowRunning
	if exec.StartedAt == "" {
		exec.StartedAt = nowISO()
	}
	if err := o.Store.UpdateExecution(exec); err != nil {
		return nil, err
	}
	o.broadcast(executionID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowRunning)})

	runner := phaserunner.New(executionID, exec.ProjectID, exec.ProjectPath, o.Providers, o.Budget, o.Store)
	runner.Logger = o.log()
	runner.OnOutput = func(phaseID, content string) {
		o.broadcast(executionID, eventbus.EventPhaseOutput, map[string]any{"phase_id": phaseID, "content": content})
	}
	runner.OnStatus = func(phaseID string, status core.PhaseStatus) {
		o.broadcast(executionID, eventbus.EventStatusUpdate, map[string]any{"phase_id": phaseID, "phase_status": string(status)})
	}
	defer runner.Cleanup()

	for {
		outcome := o.runIteration(runCtx, exec, tmpl, runner)
		if outcome != iterationContinue {
			break
		}
	}

	if err := o.Store.UpdateExecution(exec); err != nil {
		return nil, err
	}
	return exec, nil
}

type iterationOutcome int

const (
	iterationStop iterationOutcome = iota
	iterationContinue
)

// runIteration runs one pass over template's phase groups for exec's
// current iteration, and decides whether another iteration should follow
// (the AUTO_ITERATE path in step 3 of the sequencing algorithm).
func (o *Orchestrator) runIteration(ctx context.Context, exec *core.WorkflowExecution, tmpl *core.WorkflowTemplate, runner *phaserunner.Runner) iterationOutcome {
	groups := buildGroups(tmpl.OrderedPhases())
	requestIteration := false

	for groupIdx, group := range groups {
		if ctx.Err() != nil {
			exec.Status = core.WorkflowCancelled
			exec.CompletedAt = nowISO()
			o.broadcast(exec.ID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowCancelled)})
			return iterationStop
		}

		if ok, _ := o.Budget.Check(core.ScopeExecution, exec.ID, 0); !ok {
			exec.Status = core.WorkflowBudgetExceeded
			exec.CompletedAt = nowISO()
			o.broadcast(exec.ID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowBudgetExceeded)})
			return iterationStop
		}

		isFirstOfIteration := groupIdx == 0 && exec.Iteration > 1
		for _, phase := range group {
			exec.CurrentPhaseID = phase.ID
			if o.phaseIsSensitive(exec, phase, isFirstOfIteration) {
				if !o.awaitApproval(ctx, exec, phase) {
					return iterationStop
				}
			}
		}
		_ = o.Store.UpdateExecution(exec)

		results := o.runGroup(ctx, exec, runner, group)

		worst := worstOutcome(results)
		budgetExceeded := false
		// A can_iterate phase that only missed its success pattern feeds the
		// iteration loop instead of failure_behavior.
		otherFailure := false
		for i, res := range results {
			phase := group[i]
			exec.PhaseExecutions = append(exec.PhaseExecutions, res)
			exec.TotalTokensInput += res.TokensInput
			exec.TotalTokensOutput += res.TokensOutput
			exec.TotalCostUSD += res.CostUSD
			if res.OutputArtifactID != "" {
				exec.ArtifactIDs = append(exec.ArtifactIDs, res.OutputArtifactID)
			}
			if res.BudgetExceeded {
				budgetExceeded = true
			}
			if res.Status == core.PhaseStatusFailed && phase.CanIterate {
				requestIteration = true
			}
			if res.Status == core.PhaseStatusFailed && !(phase.CanIterate && strings.HasPrefix(res.ErrorMessage, "success pattern not found")) {
				otherFailure = true
			}
		}
		_ = o.Store.UpdateExecution(exec)

		// A phase's own debit can push the ledger over budget even when the
		// pre-group check above passed; catch that here so the execution
		// still transitions to BUDGET_EXCEEDED, with whatever artifact the
		// phase produced left in place.
		if budgetExceeded {
			exec.Status = core.WorkflowBudgetExceeded
			exec.CompletedAt = nowISO()
			_ = o.Store.UpdateExecution(exec)
			o.broadcast(exec.ID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowBudgetExceeded)})
			return iterationStop
		}

		if worst == core.PhaseStatusFailed && otherFailure {
			stop, handled := o.handleGroupFailure(ctx, exec, tmpl, runner, group, results)
			if handled {
				if stop {
					return iterationStop
				}
				continue
			}
		}
	}

	if !requestIteration {
		exec.Status = core.WorkflowCompleted
		exec.CompletedAt = nowISO()
		o.broadcast(exec.ID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowCompleted)})
		return iterationStop
	}

	switch tmpl.IterationBehavior {
	case core.AutoIterate:
		if exec.Iteration >= tmpl.MaxIterations {
			exec.Status = core.WorkflowCompleted
			exec.CompletedAt = nowISO()
			o.broadcast(exec.ID, eventbus.EventStatusUpdate, map[string]any{"status": string(core.WorkflowCompleted)})
			return iterationStop
		}
		exec.Iteration++
		_ = o.Store.UpdateExecution(exec)
		return iterationContinue
	default: // PauseForApproval
		exec.Status = core.WorkflowPaused
		_ = o.Store.UpdateExecution(exec)
		o.broadcast(exec.ID, eventbus.EventApprovalNeeded, map[string]any{"message": "iteration requested", "timeout_seconds": 0})
		return iterationStop
	}
}

// phaseIsSensitive implements spec.md §4.1 step 2c's gating rule.
func (o *Orchestrator) phaseIsSensitive(exec *core.WorkflowExecution, phase core.WorkflowPhase, isFirstOfIteration bool) bool {
	if !exec.InteractiveMode {
		return false
	}
	return phase.Role.Sensitive() || isFirstOfIteration
}

func (o *Orchestrator) awaitApproval(ctx context.Context, exec *core.WorkflowExecution, phase core.WorkflowPhase) (approved bool) {
	exec.Status = core.WorkflowAwaitingApprove
	_ = o.Store.UpdateExecution(exec)

	message := fmt.Sprintf("Approve phase %q (%s)?", phase.Name, phase.Role)
	o.broadcast(exec.ID, eventbus.EventApprovalNeeded, map[string]any{"message": message, "timeout_seconds": approval.DefaultTimeoutSeconds})

	resultCh := o.Approvals.CreateRequest(exec.ID, message, approval.DefaultTimeoutSeconds*time.Second, false)

	select {
	case <-ctx.Done():
		exec.Status = core.WorkflowCancelled
		exec.CompletedAt = nowISO()
		_ = o.Store.UpdateExecution(exec)
		return false
	case ok := <-resultCh:
		// ctx may have been cancelled in the same instant that resolved
		// resultCh (approval.Coordinator.Cancel also unblocks it); a
		// cancellation always takes precedence over a plain rejection so
		// Cancel's own status write is never clobbered by a later PAUSED.
		if ctx.Err() != nil {
			exec.Status = core.WorkflowCancelled
			exec.CompletedAt = nowISO()
			_ = o.Store.UpdateExecution(exec)
			return false
		}
		o.broadcast(exec.ID, eventbus.EventApprovalResolved, map[string]any{"approved": ok})
		if !ok {
			exec.Status = core.WorkflowPaused
			_ = o.Store.UpdateExecution(exec)
			return false
		}
		exec.Status = core.WorkflowRunning
		_ = o.Store.UpdateExecution(exec)
		return true
	}
}

// runGroup executes every phase in group concurrently (a singleton group is
// just one phase) and returns their PhaseExecution results in the same
// order as group, joined via errgroup the way the teacher's runParallel
// joins two dispatched phases with a WaitGroup.
func (o *Orchestrator) runGroup(ctx context.Context, exec *core.WorkflowExecution, runner *phaserunner.Runner, group []core.WorkflowPhase) []core.PhaseExecution {
	results := make([]core.PhaseExecution, len(group))

	if len(group) == 1 {
		phase := group[0]
		o.broadcast(exec.ID, eventbus.EventPhaseStart, map[string]any{"phase_id": phase.ID, "name": phase.Name})
		results[0] = o.runPhaseWithRetry(ctx, exec, runner, phase)
		o.broadcast(exec.ID, eventbus.EventPhaseComplete, map[string]any{"phase_id": phase.ID, "status": string(results[0].Status)})
		return results
	}

	var g errgroup.Group
	for i, phase := range group {
		i, phase := i, phase
		o.broadcast(exec.ID, eventbus.EventPhaseStart, map[string]any{"phase_id": phase.ID, "name": phase.Name})
		g.Go(func() error {
			results[i] = o.runPhaseWithRetry(ctx, exec, runner, phase)
			o.broadcast(exec.ID, eventbus.EventPhaseComplete, map[string]any{"phase_id": phase.ID, "status": string(results[i].Status)})
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runPhaseWithRetry retries a phase's provider call on transient failures up
// to phase.MaxRetries times with 0.5s×2^k backoff capped at 10s, per
// spec.md §4.1's failure semantics. A retry never produces an extra
// PhaseExecution row; only the final attempt's result is returned.
func (o *Orchestrator) runPhaseWithRetry(ctx context.Context, exec *core.WorkflowExecution, runner *phaserunner.Runner, phase core.WorkflowPhase) core.PhaseExecution {
	taskDescription := exec.TaskDescription
	inputArtifacts := o.collectArtifacts(exec)

	var result core.PhaseExecution
	for attempt := 0; ; attempt++ {
		result = runner.RunPhase(ctx, phase, taskDescription, inputArtifacts, exec.Iteration)
		if result.Status != core.PhaseStatusFailed || !isRetryableMessage(result.ErrorMessage) {
			return result
		}
		if attempt >= phase.MaxRetries {
			return result
		}
		delay := retryBaseDelay * time.Duration(1<<uint(attempt))
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
		select {
		case <-ctx.Done():
			return result
		case <-time.After(delay):
		}
	}
}

// isRetryableMessage reports whether a PhaseExecution's recorded error text
// describes a transient provider failure. RunPhase never returns a Go error
// (only a PhaseStatus + ErrorMessage string), so retry eligibility has to be
// read back off the message text rather than via errors.Is.
func isRetryableMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range []string{"transient", "rate limit", "circuit open", "503", "429"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) collectArtifacts(exec *core.WorkflowExecution) map[string]core.Artifact {
	out := make(map[string]core.Artifact, len(exec.ArtifactIDs))
	for _, id := range exec.ArtifactIDs {
		art, err := o.Store.GetArtifact(id)
		if err != nil {
			continue
		}
		out[art.Name] = *art
	}
	return out
}

// handleGroupFailure applies template.failure_behavior to a group whose
// worst outcome was FAILED, per spec.md §4.1 step 2e. It returns
// (stop, handled): handled is false only if failure_behavior is unrecognized
// (never happens for a validated template), in which case the caller's
// existing control flow proceeds unmodified.
func (o *Orchestrator) handleGroupFailure(ctx context.Context, exec *core.WorkflowExecution, tmpl *core.WorkflowTemplate, runner *phaserunner.Runner, group []core.WorkflowPhase, results []core.PhaseExecution) (stop, handled bool) {
	switch tmpl.FailureBehavior {
	case core.FailureSkipPhase:
		for i, res := range results {
			if res.Status != core.PhaseStatusFailed {
				continue
			}
			skip := core.PhaseExecution{
				ID:                  core.NewID(),
				WorkflowExecutionID: exec.ID,
				PhaseID:             group[i].ID,
				PhaseName:           group[i].Name,
				PhaseRole:           group[i].Role,
				Status:              core.PhaseStatusSkipped,
				Iteration:           exec.Iteration,
				StartedAt:           nowISO(),
				CompletedAt:         nowISO(),
			}
			exec.PhaseExecutions = append(exec.PhaseExecutions, skip)
		}
		_ = o.Store.UpdateExecution(exec)
		return false, true

	case core.FailureFallbackProvider:
		retried := false
		for i, res := range results {
			if res.Status != core.PhaseStatusFailed || group[i].Provider.FallbackProvider == nil {
				continue
			}
			retried = true
			fallbackPhase := group[i]
			fallbackPhase.Provider = *group[i].Provider.FallbackProvider
			fb := runner.RunPhase(ctx, fallbackPhase, exec.TaskDescription, o.collectArtifacts(exec), exec.Iteration)
			exec.PhaseExecutions = append(exec.PhaseExecutions, fb)
			if fb.OutputArtifactID != "" {
				exec.ArtifactIDs = append(exec.ArtifactIDs, fb.OutputArtifactID)
			}
			if fb.Status == core.PhaseStatusFailed {
				return o.pauseForFailureNotify(exec), true
			}
		}
		if !retried {
			return o.pauseForFailureNotify(exec), true
		}
		_ = o.Store.UpdateExecution(exec)
		return false, true

	case core.FailurePauseNotify:
		return o.pauseForFailureNotify(exec), true
	}
	return false, false
}

func (o *Orchestrator) pauseForFailureNotify(exec *core.WorkflowExecution) bool {
	exec.Status = core.WorkflowPaused
	_ = o.Store.UpdateExecution(exec)
	o.broadcast(exec.ID, eventbus.EventApprovalNeeded, map[string]any{"message": "a phase failed; approve to continue or cancel", "timeout_seconds": 0})
	return true
}

// worstOutcome applies FAILED > SKIPPED > COMPLETED to a parallel group's
// member results, per spec.md §4.1's parallel group semantics.
func worstOutcome(results []core.PhaseExecution) core.PhaseStatus {
	worst := core.PhaseStatusCompleted
	for _, r := range results {
		switch r.Status {
		case core.PhaseStatusFailed:
			return core.PhaseStatusFailed
		case core.PhaseStatusSkipped:
			worst = core.PhaseStatusSkipped
		}
	}
	return worst
}

// buildGroups partitions ordered phases into concurrent groups: phases
// sharing the same parallel_with anchor (the anchor itself plus every phase
// whose ParallelWith equals the anchor's id) form one group; every other
// phase is its own singleton group. Group order follows each key's first
// occurrence in ordered.
func buildGroups(ordered []core.WorkflowPhase) [][]core.WorkflowPhase {
	keyOrder := make([]string, 0, len(ordered))
	groups := make(map[string][]core.WorkflowPhase)

	for _, p := range ordered {
		key := p.ID
		if p.ParallelWith != "" {
			key = p.ParallelWith
		}
		if _, ok := groups[key]; !ok {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], p)
	}

	result := make([][]core.WorkflowPhase, 0, len(keyOrder))
	for _, k := range keyOrder {
		result = append(result, groups[k])
	}
	return result
}
