// gemini.go backs core.ProviderGeminiDirect and ProviderGeminiOAuth using
// google.golang.org/genai. OAuth vs API-key is purely a client-construction
// difference (genai.ClientConfig.Backend/Credentials vs APIKey); the
// generate/stream call shape is identical past that point. As with the
// other remote bindings, no corpus example calls this SDK directly — the
// client wiring follows genai's documented options, the dispatch that picks
// this binding is grounded on providers/registry.py.
package provider

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/orc-engine/orc/internal/core"
)

type geminiConfig struct {
	Kind   core.ProviderKind // ProviderGeminiDirect or ProviderGeminiOAuth
	APIKey string
	Model  string
}

type geminiProvider struct {
	client *genai.Client
	cfg    geminiConfig
	status *statusTracker
}

func newGeminiProvider(ctx context.Context, cfg geminiConfig) (*geminiProvider, error) {
	ccfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}

	switch cfg.Kind {
	case core.ProviderGeminiOAuth:
		// ADC / oauth credentials resolved by the SDK from the ambient
		// environment (GOOGLE_APPLICATION_CREDENTIALS or gcloud ADC).
	default:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", core.ErrConfig)
		}
		ccfg.APIKey = key
	}

	client, err := genai.NewClient(ctx, ccfg)
	if err != nil {
		return nil, fmt.Errorf("%w: building genai client: %v", core.ErrConfig, err)
	}
	return &geminiProvider{client: client, cfg: cfg, status: newStatusTracker()}, nil
}

func (p *geminiProvider) model() string {
	if p.cfg.Model == "" {
		return "gemini-1.5-flash"
	}
	return p.cfg.Model
}

func (p *geminiProvider) contents(req GenerateRequest) []*genai.Content {
	return []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
}

func (p *geminiProvider) genConfig(req GenerateRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		t := float32(req.Temperature)
		cfg.Temperature = &t
	}
	if req.MaxTokens > 0 {
		m := int32(req.MaxTokens)
		cfg.MaxOutputTokens = m
	}
	return cfg
}

func (p *geminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var result GenerateResult
	err := p.status.wrap(func() error {
		resp, err := p.client.Models.GenerateContent(ctx, p.model(), p.contents(req), p.genConfig(req))
		if err != nil {
			return classifyGeminiError(err)
		}

		text := resp.Text()
		tokensIn, tokensOut := 0, 0
		if resp.UsageMetadata != nil {
			tokensIn = int(resp.UsageMetadata.PromptTokenCount)
			tokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		finish := ""
		if len(resp.Candidates) > 0 {
			finish = string(resp.Candidates[0].FinishReason)
		}

		result = GenerateResult{
			Content:      text,
			TokensInput:  tokensIn,
			TokensOutput: tokensOut,
			ModelUsed:    p.model(),
			FinishReason: finish,
			Raw:          resp,
		}
		return nil
	})
	return result, err
}

func (p *geminiProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 16)
	p.status.set(StatusGenerating)

	stream := p.client.Models.GenerateContentStream(ctx, p.model(), p.contents(req), p.genConfig(req))

	go func() {
		defer close(out)
		var textBuf string
		var finish string

		for resp, err := range stream {
			if err != nil {
				p.status.set(StatusError)
				out <- StreamEvent{Done: true, Err: classifyGeminiError(err)}
				return
			}
			chunk := resp.Text()
			if chunk != "" {
				textBuf += chunk
				out <- StreamEvent{Content: chunk}
			}
			if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
				finish = string(resp.Candidates[0].FinishReason)
			}
		}

		p.status.set(StatusReady)
		out <- StreamEvent{Done: true, Result: GenerateResult{
			Content:      textBuf,
			ModelUsed:    p.model(),
			FinishReason: finish,
		}}
	}()

	return out, nil
}

func (p *geminiProvider) CheckHealth(ctx context.Context) bool {
	_, err := p.client.Models.GenerateContent(ctx, p.model(), p.contents(GenerateRequest{Prompt: "ping"}), &genai.GenerateContentConfig{MaxOutputTokens: 1})
	return err == nil
}

func (p *geminiProvider) ValidateConfig(ctx context.Context) (bool, string) {
	if p.cfg.Kind != core.ProviderGeminiOAuth && p.cfg.APIKey == "" && os.Getenv("GEMINI_API_KEY") == "" {
		return false, "GEMINI_API_KEY not set"
	}
	return true, ""
}

func (p *geminiProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{
		{ModelID: "gemini-1.5-flash", ModelName: "Gemini 1.5 Flash", Provider: p.cfg.Kind, ContextLength: 1000000},
		{ModelID: "gemini-1.5-pro", ModelName: "Gemini 1.5 Pro", Provider: p.cfg.Kind, ContextLength: 2000000},
		{ModelID: "gemini-2.0-flash", ModelName: "Gemini 2.0 Flash", Provider: p.cfg.Kind, ContextLength: 1000000},
	}, nil
}

func (p *geminiProvider) Close() error { return nil }

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if ok := asGeminiError(err, &apiErr); ok {
		if apiErr.Code == 429 || apiErr.Code >= 500 {
			return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
		}
		return fmt.Errorf("%w: %v", core.ErrProviderFatal, err)
	}
	return fmt.Errorf("%w: %v", core.ErrProviderTransient, err)
}

func asGeminiError(err error, target *genai.APIError) bool {
	apiErr, ok := err.(genai.APIError)
	if ok {
		*target = apiErr
	}
	return ok
}
