// openai.go backs every kind that speaks an OpenAI-compatible chat
// completions wire format: core.ProviderOpenAI, ProviderGenericOpenAIHTTP,
// ProviderOpenRouter, ProviderGeminiViaRouter, ProviderLocalOllama and
// ProviderLocalLMStudio. They differ only in base URL and default headers,
// so one binding parameterized by those two things covers all six, the way
// registry.py's create_provider shares one OpenAI-compatible provider class
// across several ProviderType values. No corpus example calls
// github.com/openai/openai-go directly, so the client/option wiring follows
// the SDK's documented pattern rather than an in-pack precedent.
package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/orc-engine/orc/internal/core"
)

type openaiCompatConfig struct {
	Kind    core.ProviderKind
	APIKey  string
	BaseURL string
	Model   string
	// ExtraHeaders carries router-specific metadata, e.g. OpenRouter's
	// HTTP-Referer/X-Title attribution headers.
	ExtraHeaders map[string]string
}

func defaultEnvKeyFor(kind core.ProviderKind) string {
	switch kind {
	case core.ProviderOpenAI:
		return "OPENAI_API_KEY"
	case core.ProviderOpenRouter, core.ProviderGeminiViaRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

func defaultBaseURLFor(kind core.ProviderKind) string {
	switch kind {
	case core.ProviderOpenRouter, core.ProviderGeminiViaRouter:
		return "https://openrouter.ai/api/v1"
	case core.ProviderLocalOllama:
		return envOr("ORC_OLLAMA_URL", "http://localhost:11434/v1")
	case core.ProviderLocalLMStudio:
		return envOr("ORC_LM_STUDIO_URL", "http://localhost:1234/v1")
	default:
		return ""
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type openaiCompatProvider struct {
	client openai.Client
	cfg    openaiCompatConfig
	status *statusTracker
}

func newOpenAICompatProvider(cfg openaiCompatConfig) (*openaiCompatProvider, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv(defaultEnvKeyFor(cfg.Kind))
	}
	local := cfg.Kind == core.ProviderLocalOllama || cfg.Kind == core.ProviderLocalLMStudio
	if key == "" && !local {
		return nil, fmt.Errorf("%w: no API key configured for %s", core.ErrConfig, cfg.Kind)
	}
	if key == "" {
		key = "local"
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURLFor(cfg.Kind)
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	for k, v := range cfg.ExtraHeaders {
		opts = append(opts, option.WithHeader(k, v))
	}

	return &openaiCompatProvider{
		client: openai.NewClient(opts...),
		cfg:    cfg,
		status: newStatusTracker(),
	}, nil
}

func (p *openaiCompatProvider) chatParams(req GenerateRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    p.cfg.Model,
		Messages: messages,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

func (p *openaiCompatProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var result GenerateResult
	err := p.status.wrap(func() error {
		completion, err := p.client.Chat.Completions.New(ctx, p.chatParams(req))
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(completion.Choices) == 0 {
			return fmt.Errorf("%w: empty choices from %s", core.ErrProviderTransient, p.cfg.Kind)
		}
		choice := completion.Choices[0]
		result = GenerateResult{
			Content:      choice.Message.Content,
			TokensInput:  int(completion.Usage.PromptTokens),
			TokensOutput: int(completion.Usage.CompletionTokens),
			ModelUsed:    completion.Model,
			FinishReason: string(choice.FinishReason),
			Raw:          completion,
		}
		return nil
	})
	return result, err
}

func (p *openaiCompatProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 16)
	params := p.chatParams(req)

	p.status.set(StatusGenerating)
	stream := p.client.Chat.Completions.NewStreaming(ctx, params)

	go func() {
		defer close(out)
		var textBuf string
		var model, finish string

		for stream.Next() {
			chunk := stream.Current()
			if chunk.Model != "" {
				model = chunk.Model
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					textBuf += choice.Delta.Content
					out <- StreamEvent{Content: choice.Delta.Content}
				}
				if choice.FinishReason != "" {
					finish = choice.FinishReason
				}
			}
		}

		if err := stream.Err(); err != nil {
			p.status.set(StatusError)
			out <- StreamEvent{Done: true, Err: classifyOpenAIError(err)}
			return
		}
		p.status.set(StatusReady)
		out <- StreamEvent{Done: true, Result: GenerateResult{
			Content:      textBuf,
			ModelUsed:    model,
			FinishReason: finish,
		}}
	}()

	return out, nil
}

func (p *openaiCompatProvider) CheckHealth(ctx context.Context) bool {
	_, err := p.client.Models.List(ctx)
	return err == nil
}

func (p *openaiCompatProvider) ValidateConfig(ctx context.Context) (bool, string) {
	local := p.cfg.Kind == core.ProviderLocalOllama || p.cfg.Kind == core.ProviderLocalLMStudio
	if !local && p.cfg.APIKey == "" && os.Getenv(defaultEnvKeyFor(p.cfg.Kind)) == "" {
		return false, fmt.Sprintf("no API key configured for %s", p.cfg.Kind)
	}
	return true, ""
}

func (p *openaiCompatProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	models := make([]ModelInfo, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelInfo{ModelID: m.ID, ModelName: m.ID, Provider: p.cfg.Kind})
	}
	return models, nil
}

func (p *openaiCompatProvider) Close() error { return nil }

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if ok := asOpenAIError(err, &apiErr); ok {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
		}
		return fmt.Errorf("%w: %v", core.ErrProviderFatal, err)
	}
	return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
}

func asOpenAIError(err error, target **openai.Error) bool {
	apiErr, ok := err.(*openai.Error)
	if ok {
		*target = apiErr
	}
	return ok
}
