package ux

import (
	"fmt"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

// ANSI color helpers
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
)

func timestamp() string {
	return time.Now().Format("15:04:05")
}

// PhaseHeader prints a timestamped phase header.
func PhaseHeader(index, total int, phase core.WorkflowPhase) {
	fmt.Printf("\n%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
	fmt.Printf("%s[%s]%s  %sPhase %d/%d: %s (%s)%s\n",
		Dim, timestamp(), Reset, Bold, index+1, total, phase.Name, phase.Role, Reset)
	fmt.Printf("%s[%s]%s %s══════════════════════════════════════%s\n",
		Dim, timestamp(), Reset, Cyan, Reset)
}

// PhaseComplete prints a phase completion message.
func PhaseComplete(index int, duration time.Duration) {
	m := int(duration.Minutes())
	s := int(duration.Seconds()) % 60
	fmt.Printf("%s[%s]%s  %s✓ Phase %d complete (%dm %02ds)%s\n",
		Dim, timestamp(), Reset, Green, index+1, m, s, Reset)
}

// PhaseFail prints a phase failure message.
func PhaseFail(index int, phaseName, errMsg string) {
	fmt.Printf("%s[%s]%s  %s✗ Phase %d (%s) failed: %s%s\n",
		Dim, timestamp(), Reset, Red, index+1, phaseName, errMsg, Reset)
}

// ResumeHint prints a resume command hint.
func ResumeHint(executionID string) {
	fmt.Printf("\n%sResume:%s orc resume %s\n", Yellow, Reset, executionID)
}

// LoopBack prints an iteration message when a can_iterate phase fails its
// success pattern and the execution re-enters the sequencing loop.
func LoopBack(phaseName string, iteration, maxIterations int) {
	fmt.Printf("%s[%s]%s  %s↺ Phase %q did not pass its success check. Starting iteration %d/%d%s\n",
		Dim, timestamp(), Reset, Yellow, phaseName, iteration, maxIterations, Reset)
}

// PhaseSkip prints a phase skip message.
func PhaseSkip(index int, phaseName string) {
	fmt.Printf("%s[%s]%s  %s– Phase %d (%s) skipped%s\n",
		Dim, timestamp(), Reset, Dim, index+1, phaseName, Reset)
}

// Success prints a final success message.
func Success(total int) {
	fmt.Printf("\n%s[%s]%s  %s%s══ All %d phases complete ══%s\n\n",
		Dim, timestamp(), Reset, Bold, Green, total, Reset)
}
