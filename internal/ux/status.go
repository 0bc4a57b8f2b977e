package ux

import (
	"fmt"

	"github.com/orc-engine/orc/internal/budget"
	"github.com/orc-engine/orc/internal/core"
)

// RenderStatus prints the full status display for one execution.
func RenderStatus(exec *core.WorkflowExecution, tmpl *core.WorkflowTemplate, sum budget.Summary) {
	fmt.Printf("%sExecution:%s %s\n", Bold, Reset, exec.ID)
	fmt.Printf("%sTemplate:%s  %s\n", Bold, Reset, exec.TemplateName)
	fmt.Printf("%sTask:%s      %s\n", Bold, Reset, exec.TaskDescription)
	fmt.Printf("%sStatus:%s    %s%s%s\n", Bold, Reset, statusColor(exec.Status), exec.Status, Reset)
	if exec.Iteration > 0 {
		fmt.Printf("%sIteration:%s %d\n", Bold, Reset, exec.Iteration)
	}

	phases := tmpl.OrderedPhases()
	fmt.Printf("\n%sPhases:%s\n", Bold, Reset)
	for i, p := range phases {
		pe := exec.PhaseExecutionByPhaseID(p.ID)
		marker := "  "
		status := "pending"
		budgetTag := ""
		if pe != nil {
			status = string(pe.Status)
			if p.ID == exec.CurrentPhaseID && !pe.Status.Terminal() {
				marker = fmt.Sprintf("%s→%s ", Yellow, Reset)
			}
			if pe.BudgetExceeded {
				budgetTag = fmt.Sprintf(" %s[budget]%s", Red, Reset)
			}
		}
		fmt.Printf("  %s%s%d%s  %-20s %s(%s)%s%s\n", marker, Dim, i+1, Reset, p.Name, statusColor(core.WorkflowStatus(status)), status, Reset, budgetTag)
	}

	fmt.Printf("\n%sBudget:%s %s$%.4f%s spent", Bold, Reset, Dim, sum.TotalSpent, Reset)
	if sum.BudgetLimit != nil {
		fmt.Printf(" of $%.2f", *sum.BudgetLimit)
	}
	fmt.Printf(" (%d tokens)\n", sum.TotalTokens)

	if exec.Status == core.WorkflowPaused {
		ResumeHint(exec.ID)
	}
	fmt.Println()
}

func statusColor(s core.WorkflowStatus) string {
	switch s {
	case core.WorkflowCompleted:
		return Green
	case core.WorkflowFailed, core.WorkflowCancelled, core.WorkflowBudgetExceeded:
		return Red
	case core.WorkflowPaused, core.WorkflowAwaitingApprove:
		return Yellow
	default:
		return Cyan
	}
}
