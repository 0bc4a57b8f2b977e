package scaffold

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/orc-engine/orc/internal/core"
)

func TestInit_FallbackWhenClaudeUnavailable(t *testing.T) {
	dir := t.TempDir()

	// Clear PATH so claude binary cannot be found — should fall back to default template.
	t.Setenv("PATH", "")

	err := Init(context.Background(), dir)
	if err != nil {
		t.Fatalf("Init should succeed via fallback, got: %v", err)
	}

	templatePath := filepath.Join(dir, ".orc", "templates", "default.yaml")
	tpl, err := core.LoadTemplate(templatePath)
	if err != nil {
		t.Fatalf("fallback template is invalid: %v", err)
	}
	if len(tpl.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(tpl.Phases))
	}

	gitignore, err := os.ReadFile(filepath.Join(dir, ".orc", ".gitignore"))
	if err != nil {
		t.Fatalf("reading .gitignore: %v", err)
	}
	if !strings.Contains(string(gitignore), "artifacts/") {
		t.Fatalf(".gitignore missing artifacts/ entry, got: %q", string(gitignore))
	}
}

func TestInit_FailsIfDirExists(t *testing.T) {
	dir := t.TempDir()
	orcDir := filepath.Join(dir, ".orc")
	if err := os.MkdirAll(orcDir, 0755); err != nil {
		t.Fatal(err)
	}

	err := Init(context.Background(), dir)
	if err == nil {
		t.Fatal("expected error when .orc already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected error containing 'already exists', got: %s", err)
	}
}

func TestWriteFallbackTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := writeFallbackTemplate(dir); err != nil {
		t.Fatalf("writeFallbackTemplate failed: %v", err)
	}

	for _, path := range []string{
		".orc/templates/default.yaml",
		".orc/.gitignore",
	} {
		full := filepath.Join(dir, path)
		info, err := os.Stat(full)
		if err != nil {
			t.Fatalf("%s not created: %v", path, err)
		}
		if info.Size() == 0 {
			t.Fatalf("%s is empty", path)
		}
	}

	tpl, err := core.LoadTemplate(filepath.Join(dir, ".orc", "templates", "default.yaml"))
	if err != nil {
		t.Fatalf("fallback template is invalid: %v", err)
	}
	if len(tpl.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(tpl.Phases))
	}
	if tpl.Phases[0].ID != "plan" {
		t.Fatalf("phase 0 = %q, want plan", tpl.Phases[0].ID)
	}
	if tpl.Phases[1].ID != "implement" {
		t.Fatalf("phase 1 = %q, want implement", tpl.Phases[1].ID)
	}
	if tpl.Phases[2].ID != "review" {
		t.Fatalf("phase 2 = %q, want review", tpl.Phases[2].ID)
	}
	if !tpl.Phases[1].CanIterate {
		t.Fatal("implement phase should have can_iterate set")
	}
	if tpl.Phases[1].MaxRetries != 2 {
		t.Fatalf("implement.max_retries = %d, want 2", tpl.Phases[1].MaxRetries)
	}

	gitignore, err := os.ReadFile(filepath.Join(dir, ".orc", ".gitignore"))
	if err != nil {
		t.Fatalf("reading .gitignore: %v", err)
	}
	if !strings.Contains(string(gitignore), "artifacts/") {
		t.Fatalf(".gitignore missing artifacts/ entry")
	}
}

func TestRenderWorkflowSummary_Sequential(t *testing.T) {
	phases := []core.WorkflowPhase{
		{ID: "plan", Name: "plan"},
		{ID: "implement", Name: "implement"},
		{ID: "review", Name: "review"},
	}
	got := renderWorkflowSummary(phases)
	want := "plan → implement → review"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderWorkflowSummary_WithParallel(t *testing.T) {
	phases := []core.WorkflowPhase{
		{ID: "plan", Name: "plan"},
		{ID: "test", Name: "test"},
		{ID: "lint", Name: "lint", ParallelWith: "test"},
		{ID: "review", Name: "review"},
	}
	got := renderWorkflowSummary(phases)
	want := "plan → test ∥ lint → review"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRenderWorkflowSummary_Single(t *testing.T) {
	phases := []core.WorkflowPhase{
		{ID: "implement", Name: "implement"},
	}
	got := renderWorkflowSummary(phases)
	want := "implement"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
