// cli.go backs core.ProviderCLITool and core.ProviderSDKAgent: it shells out
// to a local agent CLI (default "claude") using stream-json output, the same
// subprocess protocol the teacher's internal/dispatch/agent.go and stream.go
// speak for attended/unattended phase turns. This binding generalizes that
// single-purpose dispatcher into the generic Generate/GenerateStream contract:
// no prompt-file loading, no stdin steering, no tool-permission retry loop —
// those concerns belong to the phase runner now, not the provider.
package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/orc-engine/orc/internal/core"
)

// cliConfig configures one cliProvider instance.
type cliConfig struct {
	Command   string // defaults to "claude"
	Model     string
	WorkDir   string
	Env       []string
	ExtraArgs []string
}

// cliProvider execs a local agent CLI per call, parsing its stream-json
// stdout the way the teacher's processStream does.
type cliProvider struct {
	cfg    cliConfig
	status *statusTracker
}

func newCLIProvider(cfg cliConfig) *cliProvider {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	return &cliProvider{cfg: cfg, status: newStatusTracker()}
}

func (p *cliProvider) args(req GenerateRequest) []string {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + req.Prompt
	}
	args := []string{
		"-p", prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
	}
	if p.cfg.Model != "" {
		args = append(args, "--model", p.cfg.Model)
	}
	args = append(args, p.cfg.ExtraArgs...)
	return args
}

func (p *cliProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	var result GenerateResult
	err := p.status.wrap(func() error {
		r, err := p.run(ctx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (p *cliProvider) run(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	cmd := exec.CommandContext(ctx, p.cfg.Command, p.args(req)...)
	if p.cfg.WorkDir != "" {
		cmd.Dir = p.cfg.WorkDir
	}
	if len(p.cfg.Env) > 0 {
		cmd.Env = p.cfg.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	var stderr strings.Builder
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return GenerateResult{}, fmt.Errorf("%w: stdout pipe: %v", core.ErrProviderFatal, err)
	}
	if err := cmd.Start(); err != nil {
		return GenerateResult{}, fmt.Errorf("%w: starting %s: %v", core.ErrProviderFatal, p.cfg.Command, err)
	}

	parsed, parseErr := parseCLIStream(ctx, stdout)

	code, waitErr := cliExitCode(cmd.Wait())
	if waitErr != nil {
		return GenerateResult{}, fmt.Errorf("%w: %v", core.ErrProviderTransient, waitErr)
	}
	if parseErr != nil && ctx.Err() == nil {
		return GenerateResult{}, fmt.Errorf("%w: %v", core.ErrProviderTransient, parseErr)
	}
	if ctx.Err() != nil {
		return GenerateResult{}, fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())
	}

	finish := "stop"
	if code != 0 {
		finish = "error"
	}
	return GenerateResult{
		Content:      parsed.Text,
		TokensInput:  0,
		TokensOutput: 0,
		ModelUsed:    p.cfg.Model,
		FinishReason: finish,
		CostUSD:      parsed.CostUSD,
		Raw:          parsed,
	}, nil
}

func (p *cliProvider) GenerateStream(ctx context.Context, req GenerateRequest) (<-chan StreamEvent, error) {
	cmd := exec.CommandContext(ctx, p.cfg.Command, p.args(req)...)
	if p.cfg.WorkDir != "" {
		cmd.Dir = p.cfg.WorkDir
	}
	if len(p.cfg.Env) > 0 {
		cmd.Env = p.cfg.Env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", core.ErrProviderFatal, err)
	}
	p.status.set(StatusGenerating)
	if err := cmd.Start(); err != nil {
		p.status.set(StatusError)
		return nil, fmt.Errorf("%w: starting %s: %v", core.ErrProviderFatal, p.cfg.Command, err)
	}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

		var textBuf strings.Builder
		var parsed cliStreamResult

		for scanner.Scan() {
			if ctx.Err() != nil {
				break
			}
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var event cliStreamEvent
			if err := json.Unmarshal(line, &event); err != nil {
				continue
			}
			switch event.Type {
			case "stream_event":
				if delta := extractDelta(&event); delta != "" {
					textBuf.WriteString(delta)
					out <- StreamEvent{Content: delta}
				}
			case "result":
				applyCLIResult(&event, &parsed)
			}
		}

		_, waitErr := cliExitCode(cmd.Wait())
		p.status.set(StatusReady)

		parsed.Text = textBuf.String()
		result := GenerateResult{
			Content:   parsed.Text,
			ModelUsed: p.cfg.Model,
			CostUSD:   parsed.CostUSD,
			Raw:       parsed,
		}
		if waitErr != nil {
			p.status.set(StatusError)
			out <- StreamEvent{Done: true, Err: fmt.Errorf("%w: %v", core.ErrProviderTransient, waitErr)}
			return
		}
		if ctx.Err() != nil {
			out <- StreamEvent{Done: true, Err: fmt.Errorf("%w: %v", core.ErrTimeout, ctx.Err())}
			return
		}
		result.FinishReason = "stop"
		out <- StreamEvent{Done: true, Result: result}
	}()

	return out, nil
}

func (p *cliProvider) CheckHealth(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, p.cfg.Command, "--version")
	return cmd.Run() == nil
}

func (p *cliProvider) ValidateConfig(ctx context.Context) (bool, string) {
	path, err := exec.LookPath(p.cfg.Command)
	if err != nil {
		return false, fmt.Sprintf("%s not found on PATH", p.cfg.Command)
	}
	_ = path
	return true, ""
}

func (p *cliProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return nil, nil
}

func (p *cliProvider) Close() error { return nil }

// --- stream-json parsing, generalized from the teacher's stream.go ---

type cliStreamResult struct {
	Text      string
	CostUSD   float64
	SessionID string
}

type cliStreamEvent struct {
	Type      string          `json:"type"`
	Event     json.RawMessage `json:"event"`
	Result    json.RawMessage `json:"result"`
	CostUSD   float64         `json:"cost_usd"`
	SessionID string          `json:"session_id"`
}

type cliNestedEvent struct {
	Type  string         `json:"type"`
	Delta *cliDeltaBlock `json:"delta"`
}

type cliDeltaBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cliResultPayload struct {
	CostUSD   float64 `json:"cost_usd"`
	SessionID string  `json:"session_id"`
}

func extractDelta(event *cliStreamEvent) string {
	if event.Event == nil {
		return ""
	}
	var nested cliNestedEvent
	if err := json.Unmarshal(event.Event, &nested); err != nil {
		return ""
	}
	if nested.Type == "content_block_delta" && nested.Delta != nil && nested.Delta.Type == "text_delta" {
		return nested.Delta.Text
	}
	return ""
}

func applyCLIResult(event *cliStreamEvent, result *cliStreamResult) {
	if event.Result != nil {
		var payload cliResultPayload
		if err := json.Unmarshal(event.Result, &payload); err == nil {
			result.CostUSD = payload.CostUSD
			result.SessionID = payload.SessionID
			return
		}
	}
	if event.CostUSD > 0 {
		result.CostUSD = event.CostUSD
	}
	if event.SessionID != "" {
		result.SessionID = event.SessionID
	}
}

func parseCLIStream(ctx context.Context, stdout io.Reader) (*cliStreamResult, error) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	var result cliStreamResult
	var textBuf strings.Builder

	for scanner.Scan() {
		if ctx.Err() != nil {
			return &result, ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event cliStreamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		switch event.Type {
		case "stream_event":
			textBuf.WriteString(extractDelta(&event))
		case "result":
			applyCLIResult(&event, &result)
		}
	}
	if err := scanner.Err(); err != nil {
		return &result, fmt.Errorf("reading stream: %w", err)
	}
	result.Text = textBuf.String()
	return &result, nil
}

// cliExitCode extracts an exit code from a command error.
func cliExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
