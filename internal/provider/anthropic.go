// anthropic.go backs core.ProviderCloudCodeAssist (direct Anthropic API
// access), the one kind whose wire protocol is Anthropic's Messages API.
// There is no corpus example wiring github.com/anthropics/anthropic-sdk-go
// at a call site, so the client construction and call shape below follow
// the SDK's documented options pattern rather than an in-pack precedent;
// the registry dispatch that selects this binding is grounded on
// providers/registry.py's create_provider.
package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/orc-engine/orc/internal/core"
)

type anthropicConfig struct {
	APIKey string
	Model  string
}

type anthropicProvider struct {
	client anthropic.Client
	cfg    anthropicConfig
	status *statusTracker
}

func newAnthropicProvider(cfg anthropicConfig) (*anthropicProvider, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("%w: ANTHROPIC_API_KEY not set", core.ErrConfig)
	}
	client := anthropic.NewClient(option.WithAPIKey(key))
	return &anthropicProvider{client: client, cfg: cfg, status: newStatusTracker()}, nil
}

func (p *anthropicProvider) model() anthropic.Model {
	if p.cfg.Model == "" {
		return anthropic.ModelClaude3_5SonnetLatest
	}
	return anthropic.Model(p.cfg.Model)
}

func (p *anthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var result GenerateResult
	err := p.status.wrap(func() error {
		maxTokens := int64(req.MaxTokens)
		if maxTokens <= 0 {
			maxTokens = 4096
		}
		params := anthropic.MessageNewParams{
			Model:     p.model(),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
			},
		}
		if req.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
		}

		msg, err := p.client.Messages.New(ctx, params)
		if err != nil {
			return classifyAnthropicError(err)
		}

		var text string
		for _, block := range msg.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}

		result = GenerateResult{
			Content:      text,
			TokensInput:  int(msg.Usage.InputTokens),
			TokensOutput: int(msg.Usage.OutputTokens),
			ModelUsed:    string(msg.Model),
			FinishReason: string(msg.StopReason),
			Raw:          msg,
		}
		return nil
	})
	return result, err
}

func (p *anthropicProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 16)
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     p.model(),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	p.status.set(StatusGenerating)
	stream := p.client.Messages.NewStreaming(ctx, params)

	go func() {
		defer close(out)
		var textBuf string
		var finalModel, finalStop string
		var tokensIn, tokensOut int

		for stream.Next() {
			event := stream.Current()
			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if delta.Delta.Text != "" {
					textBuf += delta.Delta.Text
					out <- StreamEvent{Content: delta.Delta.Text}
				}
			case anthropic.MessageDeltaEvent:
				finalStop = string(delta.Delta.StopReason)
				tokensOut = int(delta.Usage.OutputTokens)
			case anthropic.MessageStartEvent:
				finalModel = string(delta.Message.Model)
				tokensIn = int(delta.Message.Usage.InputTokens)
			}
		}

		if err := stream.Err(); err != nil {
			p.status.set(StatusError)
			out <- StreamEvent{Done: true, Err: classifyAnthropicError(err)}
			return
		}
		p.status.set(StatusReady)
		out <- StreamEvent{Done: true, Result: GenerateResult{
			Content:      textBuf,
			TokensInput:  tokensIn,
			TokensOutput: tokensOut,
			ModelUsed:    finalModel,
			FinishReason: finalStop,
		}}
	}()

	return out, nil
}

func (p *anthropicProvider) CheckHealth(ctx context.Context) bool {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model(),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err == nil
}

func (p *anthropicProvider) ValidateConfig(ctx context.Context) (bool, string) {
	if p.cfg.APIKey == "" && os.Getenv("ANTHROPIC_API_KEY") == "" {
		return false, "ANTHROPIC_API_KEY not set"
	}
	return true, ""
}

func (p *anthropicProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{
		{ModelID: "claude-3-5-sonnet-latest", ModelName: "Claude 3.5 Sonnet", Provider: core.ProviderCloudCodeAssist, ContextLength: 200000, SupportsTools: true, SupportsVision: true},
		{ModelID: "claude-3-opus-latest", ModelName: "Claude 3 Opus", Provider: core.ProviderCloudCodeAssist, ContextLength: 200000, SupportsTools: true, SupportsVision: true},
	}, nil
}

func (p *anthropicProvider) Close() error { return nil }

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
		}
		return fmt.Errorf("%w: %v", core.ErrProviderFatal, err)
	}
	return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
}

func asAnthropicError(err error, target **anthropic.Error) bool {
	apiErr, ok := err.(*anthropic.Error)
	if ok {
		*target = apiErr
	}
	return ok
}
