// Package budget implements the three-scope spending ledger (execution,
// project, global) that gates every provider call. A debit always fans out
// atomically across all applicable scopes of one execution, mirroring
// BudgetTracker.check_budget and estimate_cost in the source implementation.
package budget

import (
	"sync"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

// modelCost holds per-1K-token USD prices for one model.
type modelCost struct {
	input  float64
	output float64
}

// tokenCosts mirrors TOKEN_COSTS: static per-model pricing used by the cost
// estimator. Unknown models fall back to defaultCost.
var tokenCosts = map[string]modelCost{
	"gemini-1.5-pro":             {0.00125, 0.005},
	"gemini-1.5-flash":           {0.000075, 0.0003},
	"gemini-2.0-flash":           {0.0001, 0.0004},
	"gpt-4-turbo":                {0.01, 0.03},
	"gpt-4o":                     {0.005, 0.015},
	"gpt-4o-mini":                {0.00015, 0.0006},
	"claude-3-5-sonnet":          {0.003, 0.015},
	"claude-3-opus":              {0.015, 0.075},
	"claude-sonnet-4-5":          {0, 0},
	"claude-sonnet-4-5-thinking": {0, 0},
	"claude-opus-4-5-thinking":   {0, 0},
	"gemini-3-pro":               {0, 0},
	"gemini-3-flash":             {0, 0},
	"gemini-2.5-pro":             {0, 0},
	"gemini-2.5-flash":           {0, 0},
}

var defaultCost = modelCost{0.001, 0.002}

// EstimateCost computes the USD cost of a completion given token counts.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	c, ok := tokenCosts[model]
	if !ok {
		c = defaultCost
	}
	return float64(tokensIn)/1000*c.input + float64(tokensOut)/1000*c.output
}

// Tracker is the multi-scope budget ledger. All reads and writes go through
// a single mutex: the serialization point the spec requires for atomic
// three-scope debits.
type Tracker struct {
	mu   sync.Mutex
	rows map[string]*core.BudgetRow // key: scope + ":" + scope_id
}

// NewTracker returns an empty ledger. Rows are created lazily the first time
// a scope is touched (a debit, SetLimit, Check or Summary).
func NewTracker() *Tracker {
	return &Tracker{rows: make(map[string]*core.BudgetRow)}
}

func rowKey(scope core.BudgetScope, scopeID string) string {
	return string(scope) + ":" + scopeID
}

func (t *Tracker) rowLocked(scope core.BudgetScope, scopeID string) *core.BudgetRow {
	key := rowKey(scope, scopeID)
	row, ok := t.rows[key]
	if !ok {
		row = &core.BudgetRow{
			ID:          core.NewID(),
			Scope:       scope,
			ScopeID:     scopeID,
			PeriodStart: time.Now().UTC().Format(time.RFC3339),
		}
		t.rows[key] = row
	}
	return row
}

// Check reports whether additionalCost can be spent at (scope, scopeID)
// without exceeding its limit, and the remaining headroom. A zero
// additionalCost is the pre-call probe: it fails once a bounded row has no
// headroom left, a limit of 0 included.
func (t *Tracker) Check(scope core.BudgetScope, scopeID string, additionalCost float64) (ok bool, remaining float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ok, remaining = t.rowLocked(scope, scopeID).CheckBudget(additionalCost)
	if ok && additionalCost == 0 && remaining == 0 {
		ok = false
	}
	return ok, remaining
}

// SetLimit sets or clears (limit == nil) the budget_limit for (scope, scopeID).
func (t *Tracker) SetLimit(scope core.BudgetScope, scopeID string, limit *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rowLocked(scope, scopeID).BudgetLimit = limit
}

// Summary is the read-only view returned by the tracker's summary operation.
type Summary struct {
	TotalSpent    float64
	BudgetLimit   *float64
	Remaining     float64
	TokensInput   int
	TokensOutput  int
	TotalTokens   int
}

// Summary reports the current state of (scope, scopeID).
func (t *Tracker) Summary(scope core.BudgetScope, scopeID string) Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	row := t.rowLocked(scope, scopeID)
	_, remaining := row.CheckBudget(0)
	return Summary{
		TotalSpent:   row.TotalSpent,
		BudgetLimit:  row.BudgetLimit,
		Remaining:    remaining,
		TokensInput:  row.TokenCountInput,
		TokensOutput: row.TokenCountOutput,
		TotalTokens:  row.TokenCountInput + row.TokenCountOutput,
	}
}

// RecordUsage computes the cost of one completion and atomically debits the
// execution, project (if projectID != ""), and global ledgers. reportedCost,
// when non-zero, is a provider-reported actual spend (e.g. the CLI agent
// protocol's cost_usd) and takes precedence over the token-based estimate,
// since it reflects the tool's own billing rather than a static price table.
// The returned ok is the composite of all three post-debit checks; a false ok
// still leaves the debit applied (the phase's artifact is still persisted;
// only the execution transitions to BUDGET_EXCEEDED — see orchestrator).
func (t *Tracker) RecordUsage(executionID, projectID, model string, tokensIn, tokensOut int, reportedCost float64) (cost float64, ok bool) {
	cost = EstimateCost(model, tokensIn, tokensOut)
	if reportedCost > 0 {
		cost = reportedCost
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	execRow := t.rowLocked(core.ScopeExecution, executionID)
	debit(execRow, cost, tokensIn, tokensOut)
	execOK, _ := execRow.CheckBudget(0)

	projOK := true
	if projectID != "" {
		projRow := t.rowLocked(core.ScopeProject, projectID)
		debit(projRow, cost, tokensIn, tokensOut)
		projOK, _ = projRow.CheckBudget(0)
	}

	globalRow := t.rowLocked(core.ScopeGlobal, core.GlobalScopeID)
	debit(globalRow, cost, tokensIn, tokensOut)
	globalOK, _ := globalRow.CheckBudget(0)

	return cost, execOK && projOK && globalOK
}

func debit(row *core.BudgetRow, cost float64, tokensIn, tokensOut int) {
	row.TotalSpent += cost
	row.TokenCountInput += tokensIn
	row.TokenCountOutput += tokensOut
}

// Invariant (documentation, not enforced by a method): for execution E with
// project P, global.spent >= project(P).spent >= execution(E).spent, modulo
// concurrent activity from other executions/projects hitting the same rows.
