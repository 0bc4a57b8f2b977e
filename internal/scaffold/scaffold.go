package scaffold

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/orc-engine/orc/internal/contextgather"
	"github.com/orc-engine/orc/internal/core"
	"github.com/orc-engine/orc/internal/fileblocks"
	"github.com/orc-engine/orc/internal/ux"
)

const templatePath = ".orc/templates/default.yaml"

// Init creates a new .orc/ directory with an AI-generated workflow template.
func Init(ctx context.Context, targetDir string) error {
	orcDir := filepath.Join(targetDir, ".orc")
	if _, err := os.Stat(orcDir); err == nil {
		return fmt.Errorf(".orc directory already exists in %s", targetDir)
	}

	return initWithAI(ctx, targetDir)
}

// initWithAI gathers project context, calls claude with retries, and writes
// the AI-generated template. Falls back to a default template if all
// attempts fail.
func initWithAI(ctx context.Context, targetDir string) error {
	fmt.Printf("\n  %sAnalyzing project...%s\n", ux.Dim, ux.Reset)

	pc, err := contextgather.Gather(targetDir)
	if err != nil {
		return fmt.Errorf("gathering context: %w", err)
	}

	prompt := buildInitPrompt(pc.Render())

	const maxAttempts = 3
	var tpl *core.WorkflowTemplate
	var raw string
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt == 1 {
			fmt.Printf("  %sGenerating workflow template...%s\n", ux.Dim, ux.Reset)
		} else {
			fmt.Printf("  %s↺ Retrying (%d/%d): %v%s\n", ux.Yellow, attempt, maxAttempts, lastErr, ux.Reset)
		}

		currentPrompt := prompt
		if attempt > 1 {
			currentPrompt = prompt + fmt.Sprintf(retryFeedback, lastErr)
		}

		raw, tpl, lastErr = generateTemplate(ctx, currentPrompt)
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		fmt.Printf("\n  %s⚠ AI generation failed after %d attempts: %v%s\n",
			ux.Yellow, maxAttempts, lastErr, ux.Reset)
		fmt.Printf("  %sUsing default workflow template...%s\n", ux.Dim, ux.Reset)
		return writeFallbackTemplate(targetDir)
	}

	fullPath := filepath.Join(targetDir, templatePath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("creating .orc/templates: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(raw), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", templatePath, err)
	}
	written := []string{templatePath}

	gitignorePath := filepath.Join(targetDir, ".orc", ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("artifacts/\n"), 0644); err != nil {
		return fmt.Errorf("writing .orc/.gitignore: %w", err)
	}
	written = append(written, ".orc/.gitignore")

	printSuccess("AI-generated", written)

	fmt.Printf("\n  Workflow: %s%s%s\n", ux.Bold, renderWorkflowSummary(tpl.OrderedPhases()), ux.Reset)
	fmt.Printf("\n  Next: %sorc create --template %s --task \"...\"%s\n\n", ux.Cyan, templatePath, ux.Reset)
	return nil
}

// generateTemplate calls claude, extracts the single template file block,
// and validates it by loading it from a temp directory.
func generateTemplate(ctx context.Context, prompt string) (raw string, tpl *core.WorkflowTemplate, err error) {
	output, err := runClaudeCapture(ctx, prompt)
	if err != nil {
		return "", nil, err
	}

	blocks := fileblocks.Parse(output)
	var content string
	found := false
	for _, b := range blocks {
		if b.Path == templatePath {
			content = b.Content
			found = true
			break
		}
	}
	if !found {
		return "", nil, fmt.Errorf("output missing %s", templatePath)
	}

	tmpDir, err := os.MkdirTemp("", "orc-init-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, "template.yaml")
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return "", nil, fmt.Errorf("writing temp template: %w", err)
	}

	tpl, err = core.LoadTemplate(tmpPath)
	if err != nil {
		return "", nil, fmt.Errorf("generated template is invalid: %w", err)
	}

	return content, tpl, nil
}

// printSuccess prints the initialization success message and file list.
func printSuccess(source string, written []string) {
	fmt.Printf("\n%s%s  ✓ Initialized .orc/ directory (%s)%s\n\n", ux.Bold, ux.Green, source, ux.Reset)
	fmt.Printf("  Created:\n")
	for _, path := range written {
		fmt.Printf("    %s%s%s\n", ux.Cyan, path, ux.Reset)
	}
}

// runClaudeCapture invokes claude -p with the given prompt and returns stdout.
func runClaudeCapture(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, "claude", "-p", prompt, "--model", "opus", "--effort", "high")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	cmd.Env = filteredEnv()
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	return stdout.String(), nil
}

// filteredEnv returns the current environment with CLAUDECODE stripped.
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

// renderWorkflowSummary builds a human-readable workflow line.
// Sequential phases are joined with →, parallel phases with ∥.
func renderWorkflowSummary(phases []core.WorkflowPhase) string {
	nameByID := make(map[string]string, len(phases))
	for _, p := range phases {
		nameByID[p.ID] = p.Name
	}

	parallelOf := make(map[string]string)
	skipSelf := make(map[string]bool)
	for _, p := range phases {
		if p.ParallelWith != "" {
			parallelOf[p.ParallelWith] = fmt.Sprintf("%s ∥ %s", nameByID[p.ParallelWith], p.Name)
			skipSelf[p.ID] = true
		}
	}

	var parts []string
	for _, p := range phases {
		if skipSelf[p.ID] {
			continue
		}
		if group, ok := parallelOf[p.ID]; ok {
			parts = append(parts, group)
		} else {
			parts = append(parts, p.Name)
		}
	}
	return strings.Join(parts, " → ")
}
