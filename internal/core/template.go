package core

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// LoadTemplate reads a YAML template file, fills defaults, and validates it.
func LoadTemplate(path string) (*WorkflowTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	var tpl WorkflowTemplate
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("%w: parsing template: %v", ErrConfig, err)
	}
	applyTemplateDefaults(&tpl)
	if err := ValidateTemplate(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// SaveTemplate writes tpl to path as YAML, overwriting any existing file.
func SaveTemplate(path string, tpl *WorkflowTemplate) error {
	data, err := yaml.Marshal(tpl)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyTemplateDefaults(tpl *WorkflowTemplate) {
	if tpl.MaxIterations == 0 {
		tpl.MaxIterations = 3
	}
	if tpl.IterationBehavior == "" {
		tpl.IterationBehavior = AutoIterate
	}
	if tpl.FailureBehavior == "" {
		tpl.FailureBehavior = FailurePauseNotify
	}
	if tpl.BudgetScope == "" {
		tpl.BudgetScope = ScopeExecution
	}
	for i := range tpl.Phases {
		p := &tpl.Phases[i]
		if p.MaxRetries == 0 {
			p.MaxRetries = 2
		}
		if p.TimeoutSeconds == 0 {
			p.TimeoutSeconds = 3600
		}
		if p.Provider.Temperature == 0 {
			p.Provider.Temperature = 0.1
		}
		if p.Provider.ContextLength == 0 {
			p.Provider.ContextLength = 8192
		}
	}
}

// ValidateTemplate checks structural validity: required fields, duplicate
// phase ids, unknown parallel_with/provider-kind references. The only
// defaults it fills are generated ids for a template or phase that lacks
// one; call applyTemplateDefaults (via LoadTemplate) first for the rest.
func ValidateTemplate(tpl *WorkflowTemplate) error {
	if tpl.Name == "" {
		return fmt.Errorf("%w: template 'name' is required", ErrConfig)
	}
	if len(tpl.Phases) == 0 {
		return fmt.Errorf("%w: template %q: at least one phase is required", ErrConfig, tpl.Name)
	}
	if tpl.ID == "" {
		tpl.ID = NewID()
	}

	switch tpl.IterationBehavior {
	case AutoIterate, PauseForApproval:
	default:
		return fmt.Errorf("%w: template %q: unknown iteration_behavior %q", ErrConfig, tpl.Name, tpl.IterationBehavior)
	}
	switch tpl.FailureBehavior {
	case FailurePauseNotify, FailureFallbackProvider, FailureSkipPhase:
	default:
		return fmt.Errorf("%w: template %q: unknown failure_behavior %q", ErrConfig, tpl.Name, tpl.FailureBehavior)
	}

	seen := make(map[string]bool, len(tpl.Phases))
	for i := range tpl.Phases {
		p := &tpl.Phases[i]
		if p.Name == "" {
			return fmt.Errorf("%w: template %q: phase %d: 'name' is required", ErrConfig, tpl.Name, i+1)
		}
		if p.ID == "" {
			p.ID = NewID()
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: template %q: duplicate phase id %q", ErrConfig, tpl.Name, p.ID)
		}
		seen[p.ID] = true

		if !ValidProviderKind(p.Provider.Kind) {
			return fmt.Errorf("%w: phase %q: unknown provider kind %q", ErrConfig, p.Name, p.Provider.Kind)
		}
		if err := validateFallbackChain(p.Provider.FallbackProvider, map[*ProviderConfig]bool{}); err != nil {
			return fmt.Errorf("%w: phase %q: %v", ErrConfig, p.Name, err)
		}
		if p.TimeoutSeconds < 0 {
			return fmt.Errorf("%w: phase %q: timeout_seconds must be >= 0", ErrConfig, p.Name)
		}
		if p.MaxRetries < 0 {
			return fmt.Errorf("%w: phase %q: max_retries must be >= 0", ErrConfig, p.Name)
		}
	}
	for i := range tpl.Phases {
		p := &tpl.Phases[i]
		if p.ParallelWith != "" && tpl.PhaseByID(p.ParallelWith) < 0 {
			return fmt.Errorf("%w: phase %q: parallel_with %q references unknown phase", ErrConfig, p.Name, p.ParallelWith)
		}
	}
	return nil
}

// validateFallbackChain walks a fallback_provider chain checking for cycles
// and unknown provider kinds; cfg may be nil (no fallback configured).
func validateFallbackChain(cfg *ProviderConfig, seen map[*ProviderConfig]bool) error {
	if cfg == nil {
		return nil
	}
	if seen[cfg] {
		return fmt.Errorf("fallback_provider chain contains a cycle")
	}
	seen[cfg] = true
	if !ValidProviderKind(cfg.Kind) {
		return fmt.Errorf("fallback provider: unknown provider kind %q", cfg.Kind)
	}
	return validateFallbackChain(cfg.FallbackProvider, seen)
}

// OrderedPhases returns tpl.Phases stable-sorted by Order, the primary sort
// key the orchestrator's sequencing algorithm walks.
func (t *WorkflowTemplate) OrderedPhases() []WorkflowPhase {
	out := make([]WorkflowPhase, len(t.Phases))
	copy(out, t.Phases)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
