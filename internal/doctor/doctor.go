// Package doctor gathers a failed execution's context — the failed phase's
// config, its rendered output, budget state, and approval history — and asks
// a provider to diagnose it. Adapted from the teacher's internal/doctor,
// generalized to read a core.WorkflowExecution and its core.PhaseExecutions
// instead of the teacher's flat state.State/config.Config.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/store"
	"github.com/orc-engine/orc/internal/ux"
)

const maxOutputChars = 8000

const diagPrompt = `You are diagnosing a failed orc workflow execution. Analyze the context below and provide a concise diagnosis.

## Failed Phase
%s

## Phase Output
%s

## Budget State
%s
%s
Instructions:
1. Identify what went wrong from the output and error message.
2. Classify this as a WORKFLOW problem (template misconfiguration, phase ordering, missing artifacts, budget exhaustion) or a TASK problem (the work the phase asked a model to do).
3. Suggest specific fixes.
4. Recommend the next command to run:
   - orc resume <execution-id>      (re-enter the sequencing loop from where it paused)
   - orc approve/reject <id>        (if the execution is waiting on a human decision)
   - Fix the template, then orc create a new execution

Be direct and concise. Focus on actionable advice.`

// Run finds the failed (or paused) phase of execution and sends its context
// to a provider for diagnosis, mirroring the teacher's Run but sourced from
// the document store instead of flat artifact files.
func Run(ctx context.Context, st store.Store, bt *budget.Tracker, executionID string) error {
	exec, err := st.GetExecution(executionID)
	if err != nil {
		return fmt.Errorf("loading execution: %w", err)
	}
	if exec.Status != core.WorkflowFailed && exec.Status != core.WorkflowPaused && exec.Status != core.WorkflowBudgetExceeded {
		fmt.Printf("Execution %s is %s; nothing to diagnose.\n", executionID, exec.Status)
		return nil
	}

	phase := failedOrCurrentPhase(exec)
	if phase == nil {
		return fmt.Errorf("execution %s has no phase history to diagnose", executionID)
	}

	phaseSection := gatherPhaseSection(*phase)
	outputSection := gatherOutputSection(st, phase)
	budgetSection := gatherBudgetSection(bt, exec)
	approvalSection := gatherApprovalSection(st, executionID)

	prompt := fmt.Sprintf(diagPrompt, phaseSection, outputSection, budgetSection, approvalSection)

	fmt.Printf("\n%s%s══ Doctor: diagnosing %s (%s) ══%s\n\n",
		ux.Bold, ux.Cyan, phase.PhaseName, exec.Status, ux.Reset)

	if err := runClaude(ctx, prompt); err != nil {
		return fmt.Errorf("failed to run claude: %w", err)
	}
	fmt.Println()
	fmt.Printf("Run 'orc resume %s' once you've applied a fix.\n", executionID)
	return nil
}

// failedOrCurrentPhase returns the most recent FAILED PhaseExecution, or —
// if none failed outright (e.g. a budget-exceeded pause) — the execution's
// current phase.
func failedOrCurrentPhase(exec *core.WorkflowExecution) *core.PhaseExecution {
	for i := len(exec.PhaseExecutions) - 1; i >= 0; i-- {
		if exec.PhaseExecutions[i].Status == core.PhaseStatusFailed {
			return &exec.PhaseExecutions[i]
		}
	}
	if exec.CurrentPhaseID != "" {
		return exec.PhaseExecutionByPhaseID(exec.CurrentPhaseID)
	}
	if len(exec.PhaseExecutions) > 0 {
		return &exec.PhaseExecutions[len(exec.PhaseExecutions)-1]
	}
	return nil
}

func gatherPhaseSection(pe core.PhaseExecution) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("Name: %s", pe.PhaseName))
	parts = append(parts, fmt.Sprintf("Role: %s", pe.PhaseRole))
	parts = append(parts, fmt.Sprintf("Provider: %s (%s)", pe.ProviderUsed, pe.ModelUsed))
	parts = append(parts, fmt.Sprintf("Status: %s", pe.Status))
	parts = append(parts, fmt.Sprintf("Iteration: %d", pe.Iteration))
	if pe.ErrorMessage != "" {
		parts = append(parts, fmt.Sprintf("Error: %s", pe.ErrorMessage))
	}
	if pe.CostUSD > 0 {
		parts = append(parts, fmt.Sprintf("Cost: $%.4f (%d in / %d out tokens)", pe.CostUSD, pe.TokensInput, pe.TokensOutput))
	}
	return strings.Join(parts, "\n")
}

func gatherOutputSection(st store.Store, pe *core.PhaseExecution) string {
	if pe.OutputArtifactID == "" {
		return "(phase produced no artifact)"
	}
	art, err := st.GetArtifact(pe.OutputArtifactID)
	if err != nil {
		return "(artifact not found)"
	}
	content := art.Content
	if len(content) > maxOutputChars {
		content = content[len(content)-maxOutputChars:]
		return fmt.Sprintf("... (truncated to last %d chars)\n%s", maxOutputChars, content)
	}
	return content
}

func gatherBudgetSection(bt *budget.Tracker, exec *core.WorkflowExecution) string {
	sum := bt.Summary(core.ScopeExecution, exec.ID)
	limit := "unbounded"
	if sum.BudgetLimit != nil {
		limit = fmt.Sprintf("$%.2f", *sum.BudgetLimit)
	}
	return fmt.Sprintf("Spent $%.4f of %s (%d tokens in / %d out)", sum.TotalSpent, limit, sum.TokensInput, sum.TokensOutput)
}

func gatherApprovalSection(st store.Store, executionID string) string {
	records, err := st.ListApprovals(executionID)
	if err != nil || len(records) == 0 {
		return ""
	}
	var parts []string
	for _, r := range records {
		parts = append(parts, fmt.Sprintf("%s: %s via %s at %s", r.Message, r.Action, r.Source, r.RespondedAt))
	}
	return "\n## Approval History\n" + strings.Join(parts, "\n") + "\n"
}

func filteredEnv() []string {
	var env []string
	for _, e := range os.Environ() {
		key := strings.SplitN(e, "=", 2)[0]
		if strings.HasPrefix(key, "CLAUDECODE") {
			continue
		}
		env = append(env, e)
	}
	return env
}

func runClaude(ctx context.Context, prompt string) error {
	cmd := exec.CommandContext(ctx, "claude", "-p", prompt, "--model", "sonnet")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filteredEnv()
	return cmd.Run()
}
