// Package provider is the abstract contract every LLM binding implements
// (spec.md §4.5), a registry mapping ProviderConfig to a concrete instance
// (grounded on providers/registry.py's ModelRegistry), and the per-kind
// bindings themselves. The phase runner and orchestrator depend only on the
// Provider interface; they never see a binding's wire protocol.
package provider

import (
	"context"

	"github.com/orc-engine/orc/internal/core"
)

// GenerateRequest is the input to one non-streaming or streaming call.
type GenerateRequest struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// GenerateResult is the output of one completed call. CostUSD is non-zero
// only for bindings that get a real cost back from the tool itself (the CLI
// agent protocol's cost_usd field); token-metered bindings leave it zero and
// let the budget tracker estimate cost from TokensInput/TokensOutput.
type GenerateResult struct {
	Content      string
	TokensInput  int
	TokensOutput int
	ModelUsed    string
	FinishReason string
	CostUSD      float64
	Raw          any
}

// StreamEvent is one item from GenerateStream. Exactly one event in the
// sequence has Done=true; it carries the final Result (or Err, if the
// stream failed before completing). Mirrors the teacher's processStream
// loop, which dispatches incremental content deltas and a terminal "result"
// event carrying cost/session totals.
type StreamEvent struct {
	Content string
	Done    bool
	Result  GenerateResult
	Err     error
}

// Status is a provider instance's lifecycle state (spec.md §4.5).
type Status string

const (
	StatusReady      Status = "ready"
	StatusGenerating Status = "generating"
	StatusError      Status = "error"
)

// Provider is the contract every binding implements.
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
	GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error)
	CheckHealth(ctx context.Context) bool
	ValidateConfig(ctx context.Context) (bool, string)
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Close() error
}

// ModelInfo describes one model a provider exposes, mirroring ModelInfo in
// the source's providers/base.py and used by the cost estimator / catalog.
type ModelInfo struct {
	ModelID         string
	ModelName       string
	Provider        core.ProviderKind
	ContextLength   int
	SupportsTools   bool
	SupportsVision  bool
	CostInputPer1K  float64
	CostOutputPer1K float64
	Metadata        map[string]any
}
