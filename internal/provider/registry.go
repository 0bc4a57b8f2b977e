// registry.go dispatches a core.ProviderConfig to a concrete Provider,
// mirroring providers/registry.py's ModelRegistry.create_provider: one
// switch over the provider kind, each arm constructing the right binding
// with whatever credentials/URL it needs. DetectLocalProviders and
// ProviderKeys mirror the Python registry's detect_local_providers and
// ProviderKeys dataclass, sourced from environment variables instead of an
// encrypted settings row since there is no settings database here.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

// ProviderKeys holds the credentials/URLs the registry falls back to when a
// ProviderConfig doesn't carry its own, mirroring ProviderKeys in the
// source's models module.
type ProviderKeys struct {
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	GeminiAPIKey     string
	OllamaURL        string
	LMStudioURL      string
}

// KeysFromEnv reads ProviderKeys from the environment variables named in
// the domain-stack wiring table.
func KeysFromEnv() ProviderKeys {
	return ProviderKeys{
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		OllamaURL:        envOr("ORC_OLLAMA_URL", "http://localhost:11434/v1"),
		LMStudioURL:      envOr("ORC_LM_STUDIO_URL", "http://localhost:1234/v1"),
	}
}

// Registry creates a new Provider instance on every Create call, wrapping
// remote bindings with a circuit breaker shared per (kind, model) so a
// failing provider degrades across every execution that shares it, not just
// one.
type Registry struct {
	keys    ProviderKeys
	breaker *breakerRegistry
}

// NewRegistry builds a Registry against the given keys.
func NewRegistry(keys ProviderKeys) *Registry {
	return &Registry{keys: keys, breaker: newBreakerRegistry()}
}

// Create builds the concrete Provider for cfg, grounded on
// ModelRegistry.create_provider's dispatch switch.
func (r *Registry) Create(ctx context.Context, cfg core.ProviderConfig) (Provider, error) {
	if !core.ValidProviderKind(cfg.Kind) {
		return nil, fmt.Errorf("%w: unsupported provider kind %q", core.ErrConfig, cfg.Kind)
	}

	var (
		p   Provider
		err error
	)

	switch cfg.Kind {
	case core.ProviderCLITool, core.ProviderSDKAgent:
		p = newCLIProvider(cliConfig{Model: cfg.ModelName})

	case core.ProviderCloudCodeAssist:
		p, err = newAnthropicProvider(anthropicConfig{APIKey: r.keys.AnthropicAPIKey, Model: cfg.ModelName})

	case core.ProviderOpenAI:
		p, err = newOpenAICompatProvider(openaiCompatConfig{Kind: cfg.Kind, APIKey: r.keys.OpenAIAPIKey, Model: cfg.ModelName})

	case core.ProviderGenericOpenAIHTTP:
		p, err = newOpenAICompatProvider(openaiCompatConfig{Kind: cfg.Kind, BaseURL: cfg.APIURL, Model: cfg.ModelName})

	case core.ProviderOpenRouter:
		p, err = newOpenAICompatProvider(openaiCompatConfig{
			Kind: cfg.Kind, APIKey: r.keys.OpenRouterAPIKey, Model: cfg.ModelName,
			ExtraHeaders: map[string]string{"HTTP-Referer": "https://orc.local", "X-Title": "orc"},
		})

	case core.ProviderGeminiViaRouter:
		p, err = newOpenAICompatProvider(openaiCompatConfig{
			Kind: cfg.Kind, APIKey: r.keys.OpenRouterAPIKey, Model: cfg.ModelName,
			ExtraHeaders: map[string]string{"HTTP-Referer": "https://orc.local", "X-Title": "orc"},
		})

	case core.ProviderLocalOllama:
		baseURL := cfg.APIURL
		if baseURL == "" {
			baseURL = r.keys.OllamaURL
		}
		p, err = newOpenAICompatProvider(openaiCompatConfig{Kind: cfg.Kind, BaseURL: baseURL, Model: cfg.ModelName})

	case core.ProviderLocalLMStudio:
		baseURL := cfg.APIURL
		if baseURL == "" {
			baseURL = r.keys.LMStudioURL
		}
		p, err = newOpenAICompatProvider(openaiCompatConfig{Kind: cfg.Kind, BaseURL: baseURL, Model: cfg.ModelName})

	case core.ProviderGeminiDirect:
		p, err = newGeminiProvider(ctx, geminiConfig{Kind: cfg.Kind, APIKey: r.keys.GeminiAPIKey, Model: cfg.ModelName})

	case core.ProviderGeminiOAuth:
		p, err = newGeminiProvider(ctx, geminiConfig{Kind: cfg.Kind, Model: cfg.ModelName})

	case core.ProviderNone:
		p = newNoneProvider()

	default:
		return nil, fmt.Errorf("%w: unsupported provider kind %q", core.ErrConfig, cfg.Kind)
	}

	if err != nil {
		return nil, err
	}
	if isRemoteKind(cfg.Kind) {
		p = wrapWithBreaker(p, r.breaker, cfg.Kind, cfg.ModelName)
	}
	return p, nil
}

func isRemoteKind(kind core.ProviderKind) bool {
	switch kind {
	case core.ProviderCLITool, core.ProviderSDKAgent, core.ProviderNone:
		return false
	default:
		return true
	}
}

// ValidateProvider builds a throwaway provider for kind and runs its own
// config validation, mirroring ModelRegistry.validate_provider.
func (r *Registry) ValidateProvider(ctx context.Context, kind core.ProviderKind) (bool, string) {
	p, err := r.Create(ctx, core.ProviderConfig{Kind: kind})
	if err != nil {
		return false, err.Error()
	}
	defer p.Close()
	return p.ValidateConfig(ctx)
}

// LocalProviderStatus reports whether a local endpoint answered and, if so,
// what it's reachable at — mirroring detect_ollama/detect_lm_studio's
// lightweight reachability probe.
type LocalProviderStatus struct {
	Available bool
	URL       string
}

// DetectLocalProviders probes the configured Ollama and LM Studio endpoints.
func (r *Registry) DetectLocalProviders(ctx context.Context) map[string]LocalProviderStatus {
	return map[string]LocalProviderStatus{
		"ollama":    probeLocal(ctx, r.keys.OllamaURL),
		"lm_studio": probeLocal(ctx, r.keys.LMStudioURL),
	}
}

func probeLocal(ctx context.Context, baseURL string) LocalProviderStatus {
	if baseURL == "" {
		return LocalProviderStatus{}
	}
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		return LocalProviderStatus{URL: baseURL}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return LocalProviderStatus{URL: baseURL}
	}
	defer resp.Body.Close()
	return LocalProviderStatus{Available: resp.StatusCode < 500, URL: baseURL}
}
