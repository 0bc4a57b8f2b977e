package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func minimalTemplate(phases ...WorkflowPhase) *WorkflowTemplate {
	return &WorkflowTemplate{Name: "test", Phases: phases}
}

func scriptedPhase(id string) WorkflowPhase {
	return WorkflowPhase{
		ID:                 id,
		Name:               id,
		Provider:           ProviderConfig{Kind: ProviderNone},
		OutputArtifactType: ArtifactCustom,
	}
}

func TestValidateTemplate_NameRequired(t *testing.T) {
	tpl := &WorkflowTemplate{Phases: []WorkflowPhase{scriptedPhase("a")}}
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "'name' is required") {
		t.Fatalf("expected name required error, got %v", err)
	}
}

func TestValidateTemplate_NoPhasesError(t *testing.T) {
	tpl := &WorkflowTemplate{Name: "test"}
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "at least one phase") {
		t.Fatalf("expected phases error, got %v", err)
	}
}

func TestValidateTemplate_DuplicatePhaseID(t *testing.T) {
	tpl := minimalTemplate(scriptedPhase("dup"), scriptedPhase("dup"))
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "duplicate phase id") {
		t.Fatalf("got %v", err)
	}
}

func TestValidateTemplate_UnknownProviderKind(t *testing.T) {
	p := scriptedPhase("a")
	p.Provider.Kind = ProviderKind("bogus")
	tpl := minimalTemplate(p)
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "unknown provider kind") {
		t.Fatalf("got %v", err)
	}
}

func TestValidateTemplate_ParallelWithUnknownPhase(t *testing.T) {
	p := scriptedPhase("a")
	p.ParallelWith = "ghost"
	tpl := minimalTemplate(p)
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "parallel_with") {
		t.Fatalf("got %v", err)
	}
}

func TestValidateTemplate_FallbackCycleRejected(t *testing.T) {
	p := scriptedPhase("a")
	inner := &ProviderConfig{Kind: ProviderNone}
	p.Provider.FallbackProvider = inner
	inner.FallbackProvider = inner // self-cycle
	tpl := minimalTemplate(p)
	applyTemplateDefaults(tpl)
	if err := ValidateTemplate(tpl); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Fatalf("got %v", err)
	}
}

func TestLoadTemplate_Defaults(t *testing.T) {
	tpl := minimalTemplate(scriptedPhase("a"))
	data, err := yaml.Marshal(tpl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "tpl.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := LoadTemplate(path)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if loaded.MaxIterations != 3 {
		t.Errorf("MaxIterations = %d, want 3", loaded.MaxIterations)
	}
	if loaded.IterationBehavior != AutoIterate {
		t.Errorf("IterationBehavior = %q, want auto_iterate", loaded.IterationBehavior)
	}
	if loaded.FailureBehavior != FailurePauseNotify {
		t.Errorf("FailureBehavior = %q, want pause_notify", loaded.FailureBehavior)
	}
	if loaded.Phases[0].MaxRetries != 2 {
		t.Errorf("phase MaxRetries = %d, want 2", loaded.Phases[0].MaxRetries)
	}
	if loaded.Phases[0].TimeoutSeconds != 3600 {
		t.Errorf("phase TimeoutSeconds = %d, want 3600", loaded.Phases[0].TimeoutSeconds)
	}
}

func TestLoadTemplate_MissingFile(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestOrderedPhases_StableByOrder(t *testing.T) {
	a := scriptedPhase("a")
	a.Order = 2
	b := scriptedPhase("b")
	b.Order = 1
	tpl := minimalTemplate(a, b)
	ordered := tpl.OrderedPhases()
	if ordered[0].ID != "b" || ordered[1].ID != "a" {
		t.Fatalf("got order %v", []string{ordered[0].ID, ordered[1].ID})
	}
}
