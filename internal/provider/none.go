package provider

import (
	"context"
	"fmt"

	"github.com/orc-engine/orc/internal/core"
)

// noneProvider backs ProviderNone. Generate always fails, mirroring
// registry.py's create_provider raising ValueError for ProviderType.NONE;
// everything else is a harmless no-op so a phase accidentally wired to it
// fails loudly instead of panicking.
type noneProvider struct{}

func newNoneProvider() Provider { return noneProvider{} }

func (noneProvider) Generate(context.Context, GenerateRequest) (GenerateResult, error) {
	return GenerateResult{}, fmt.Errorf("%w: provider kind %q cannot generate", core.ErrConfig, core.ProviderNone)
}

func (n noneProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	_, err := n.Generate(ctx, req)
	return nil, err
}

func (noneProvider) CheckHealth(context.Context) bool { return false }

func (noneProvider) ValidateConfig(context.Context) (bool, string) {
	return false, "provider kind none cannot be used for generation"
}

func (noneProvider) ListModels(context.Context) ([]ModelInfo, error) { return nil, nil }

func (noneProvider) Close() error { return nil }
