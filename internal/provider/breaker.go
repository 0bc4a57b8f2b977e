// breaker.go wraps a Provider with a per-(provider kind, model) circuit
// breaker using github.com/sony/gobreaker, so a remote provider that starts
// failing stops absorbing phase retries across the whole orchestrator
// instead of just the one execution that hit it. Grounded on the teacher's
// preference for quarantining a known-bad collaborator rather than retrying
// forever (internal/dispatch/preflight.go checks health before dispatch);
// gobreaker supplies the state machine the teacher hand-rolls for preflight.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/orc-engine/orc/internal/core"
)

// breakerRegistry hands out one *gobreaker.CircuitBreaker per (kind, model)
// pair, created lazily on first use.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerRegistry() *breakerRegistry {
	return &breakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func breakerKey(kind core.ProviderKind, model string) string {
	return string(kind) + "::" + model
}

func (r *breakerRegistry) get(kind core.ProviderKind, model string) *gobreaker.CircuitBreaker {
	key := breakerKey(kind, model)
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
	})
	r.breakers[key] = b
	return b
}

// breakingProvider decorates a Provider's Generate/GenerateStream calls with
// a circuit breaker. CheckHealth/ValidateConfig/ListModels/Close pass through
// unguarded since they're not on the generation hot path.
type breakingProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
}

func wrapWithBreaker(inner Provider, reg *breakerRegistry, kind core.ProviderKind, model string) Provider {
	return &breakingProvider{inner: inner, breaker: reg.get(kind, model)}
}

func (b *breakingProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.Generate(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return GenerateResult{}, fmt.Errorf("%w: circuit open: %v", core.ErrProviderTransient, err)
		}
		return GenerateResult{}, err
	}
	return result.(GenerateResult), nil
}

func (b *breakingProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.inner.GenerateStream(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: circuit open: %v", core.ErrProviderTransient, err)
		}
		return nil, err
	}
	return result.(<-chan StreamEvent), nil
}

func (b *breakingProvider) CheckHealth(ctx context.Context) bool        { return b.inner.CheckHealth(ctx) }
func (b *breakingProvider) ValidateConfig(ctx context.Context) (bool, string) {
	return b.inner.ValidateConfig(ctx)
}
func (b *breakingProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return b.inner.ListModels(ctx)
}
func (b *breakingProvider) Close() error { return b.inner.Close() }
