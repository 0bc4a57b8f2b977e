package doctor

import (
	"strings"
	"testing"

	"github.com/orc-engine/orc/internal/core"
)

func TestFailedOrCurrentPhase_PrefersMostRecentFailure(t *testing.T) {
	exec := &core.WorkflowExecution{
		CurrentPhaseID: "review",
		PhaseExecutions: []core.PhaseExecution{
			{PhaseID: "plan", PhaseName: "plan", Status: core.PhaseStatusCompleted},
			{PhaseID: "implement", PhaseName: "implement", Status: core.PhaseStatusFailed, ErrorMessage: "boom"},
			{PhaseID: "review", PhaseName: "review", Status: core.PhaseStatusRunning},
		},
	}

	pe := failedOrCurrentPhase(exec)
	if pe == nil || pe.PhaseName != "implement" {
		t.Fatalf("expected the failed implement phase, got %+v", pe)
	}
}

func TestFailedOrCurrentPhase_FallsBackToCurrentPhase(t *testing.T) {
	exec := &core.WorkflowExecution{
		CurrentPhaseID: "implement",
		PhaseExecutions: []core.PhaseExecution{
			{PhaseID: "implement", PhaseName: "implement", Status: core.PhaseStatusPaused},
		},
	}

	pe := failedOrCurrentPhase(exec)
	if pe == nil || pe.PhaseName != "implement" {
		t.Fatalf("expected the paused implement phase, got %+v", pe)
	}
}

func TestFailedOrCurrentPhase_NoHistory(t *testing.T) {
	exec := &core.WorkflowExecution{}
	if pe := failedOrCurrentPhase(exec); pe != nil {
		t.Errorf("expected nil for an execution with no phase history, got %+v", pe)
	}
}

func TestGatherPhaseSection_IncludesErrorAndCost(t *testing.T) {
	pe := core.PhaseExecution{
		PhaseName:    "implement",
		PhaseRole:    core.RoleImplementer,
		ProviderUsed: core.ProviderOpenAI,
		ModelUsed:    "gpt-5",
		Status:       core.PhaseStatusFailed,
		Iteration:    2,
		ErrorMessage: "rate limit hit",
		CostUSD:      0.42,
		TokensInput:  100,
		TokensOutput: 50,
	}

	result := gatherPhaseSection(pe)
	for _, want := range []string{"implement", "gpt-5", "rate limit hit", "0.4200", "Iteration: 2"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected section to contain %q, got %q", want, result)
		}
	}
}

func TestGatherPhaseSection_OmitsCostWhenZero(t *testing.T) {
	pe := core.PhaseExecution{PhaseName: "plan", Status: core.PhaseStatusCompleted}
	result := gatherPhaseSection(pe)
	if strings.Contains(result, "Cost:") {
		t.Errorf("expected no cost line for a zero-cost phase, got %q", result)
	}
}

func TestGatherOutputSection_NoArtifact(t *testing.T) {
	pe := &core.PhaseExecution{}
	if got := gatherOutputSection(nil, pe); got != "(phase produced no artifact)" {
		t.Errorf("expected placeholder, got %q", got)
	}
}
