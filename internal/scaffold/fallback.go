package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/ux"
)

const fallbackTemplate = `name: default-workflow
max_iterations: 3
iteration_behavior: auto_iterate
failure_behavior: pause_notify
budget_scope: execution

phases:
  - id: plan
    name: Plan
    role: planner
    order: 1
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Task: {task_description}
      Project: {project_path}
      Explore the codebase and write an implementation plan.
    output_artifact_type: implementation_plan

  - id: implement
    name: Implement
    role: implementer
    order: 2
    provider_config:
      provider_type: cli_tool
      model_name: opus
    prompt_template: |
      Plan: {artifact:plan}
      Implement the plan described above in {project_path}.
    output_artifact_type: code_diff
    can_iterate: true
    max_retries: 2
    success_pattern: "/no issues found"

  - id: review
    name: Review
    role: reviewer_functional
    order: 3
    provider_config:
      provider_type: cli_tool
      model_name: sonnet
    prompt_template: |
      Review this diff for correctness: {artifact:implement}
    output_artifact_type: review_report
    can_skip: true
`

// writeFallbackTemplate writes a minimal default workflow template when AI
// generation fails.
func writeFallbackTemplate(targetDir string) error {
	path := filepath.Join(targetDir, ".orc", "templates", "default.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating .orc/templates: %w", err)
	}
	if err := os.WriteFile(path, []byte(fallbackTemplate), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	written := []string{".orc/templates/default.yaml"}

	gitignorePath := filepath.Join(targetDir, ".orc", ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("artifacts/\n"), 0644); err != nil {
		return fmt.Errorf("writing .orc/.gitignore: %w", err)
	}
	written = append(written, ".orc/.gitignore")

	printSuccess("default template", written)

	if tpl, err := core.LoadTemplate(path); err == nil {
		fmt.Printf("\n  Workflow: %s%s%s\n", ux.Bold, renderWorkflowSummary(tpl.OrderedPhases()), ux.Reset)
	}

	fmt.Printf("\n  %sCustomize .orc/templates/default.yaml for your project.%s\n", ux.Dim, ux.Reset)
	fmt.Printf("\n  Next: %sorc create --template .orc/templates/default.yaml --task \"...\"%s\n\n", ux.Cyan, ux.Reset)
	return nil
}
