package budget

import (
	"testing"

	"github.com/orc-engine/orc/internal/core"
)

func TestEstimateCost_KnownModel(t *testing.T) {
	cost := EstimateCost("gpt-4o", 1000, 1000)
	want := 0.005 + 0.015
	if cost != want {
		t.Fatalf("EstimateCost = %v, want %v", cost, want)
	}
}

func TestEstimateCost_UnknownModelFallsBackToDefault(t *testing.T) {
	cost := EstimateCost("some-unreleased-model", 1000, 1000)
	want := 0.001 + 0.002
	if cost != want {
		t.Fatalf("EstimateCost = %v, want %v", cost, want)
	}
}

func TestEstimateCost_FreeModel(t *testing.T) {
	if cost := EstimateCost("gemini-3-flash", 5000, 5000); cost != 0 {
		t.Fatalf("EstimateCost = %v, want 0", cost)
	}
}

func TestTracker_CheckUnbounded(t *testing.T) {
	tr := NewTracker()
	ok, remaining := tr.Check(core.ScopeExecution, "exec-1", 100)
	if !ok {
		t.Fatalf("expected ok for unbounded budget")
	}
	if remaining <= 0 {
		t.Fatalf("expected +inf remaining, got %v", remaining)
	}
}

func TestTracker_RecordUsageFansOutToThreeScopes(t *testing.T) {
	tr := NewTracker()
	cost, ok := tr.RecordUsage("exec-1", "proj-1", "gpt-4o", 1000, 1000, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	if cost != 0.02 {
		t.Fatalf("cost = %v, want 0.02", cost)
	}
	for _, s := range []struct {
		scope core.BudgetScope
		id    string
	}{
		{core.ScopeExecution, "exec-1"},
		{core.ScopeProject, "proj-1"},
		{core.ScopeGlobal, core.GlobalScopeID},
	} {
		sum := tr.Summary(s.scope, s.id)
		if sum.TotalSpent != cost {
			t.Errorf("%s/%s total spent = %v, want %v", s.scope, s.id, sum.TotalSpent, cost)
		}
		if sum.TokensInput != 1000 || sum.TokensOutput != 1000 {
			t.Errorf("%s/%s token counts = %d/%d, want 1000/1000", s.scope, s.id, sum.TokensInput, sum.TokensOutput)
		}
	}
}

func TestTracker_RecordUsageNoProjectSkipsProjectRow(t *testing.T) {
	tr := NewTracker()
	tr.RecordUsage("exec-1", "", "gpt-4o", 1000, 1000, 0)
	sum := tr.Summary(core.ScopeProject, "")
	if sum.TotalSpent != 0 {
		t.Fatalf("expected untouched project row, got spent=%v", sum.TotalSpent)
	}
}

func TestTracker_RecordUsageExceedsLimit(t *testing.T) {
	tr := NewTracker()
	limit := 0.001
	tr.SetLimit(core.ScopeExecution, "exec-1", &limit)
	_, ok := tr.RecordUsage("exec-1", "", "gpt-4o", 1000, 1000, 0)
	if ok {
		t.Fatalf("expected ok=false when debit exceeds limit")
	}
	sum := tr.Summary(core.ScopeExecution, "exec-1")
	if sum.TotalSpent != 0.02 {
		t.Fatalf("debit should still be applied even when it exceeds the limit, got %v", sum.TotalSpent)
	}
}

func TestTracker_RecordUsagePrefersReportedCostOverEstimate(t *testing.T) {
	tr := NewTracker()
	cost, ok := tr.RecordUsage("exec-1", "", "gpt-4o", 1000, 1000, 1.23)
	if !ok {
		t.Fatalf("expected ok")
	}
	if cost != 1.23 {
		t.Fatalf("cost = %v, want reported cost 1.23 instead of the token-based estimate", cost)
	}
	sum := tr.Summary(core.ScopeExecution, "exec-1")
	if sum.TotalSpent != 1.23 {
		t.Fatalf("total spent = %v, want 1.23", sum.TotalSpent)
	}
}
