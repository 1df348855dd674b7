// Package llm provides the chat model and embedding capabilities using langchaingo.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/raphaelgruber/docchat/internal/config"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Model wraps a langchaingo LLM for plain and tool-calling completion.
type Model struct {
	llm         llms.Model
	modelName   string
	temperature float64
	policy      retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Collector
}

// NewModel creates a chat model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, logger *slog.Logger, mc *metrics.Collector) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		}
		// OpenAI-compatible servers (Ollama's /v1, vLLM) are reached through a base URL.
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAIBaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load aws config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return wrapModel(model, cfg.LLMModel, cfg.Temperature, policyFromConfig(cfg), logger, mc), nil
}

func wrapModel(model llms.Model, name string, temperature float64, policy retry.Policy, logger *slog.Logger, mc *metrics.Collector) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Model{
		llm:         model,
		modelName:   name,
		temperature: temperature,
		policy:      policy,
		logger:      logger,
		metrics:     mc,
	}
}

func policyFromConfig(cfg config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	p.Timeout = cfg.CallTimeout
	p.MaxRetries = cfg.MaxRetries
	return p
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Generate returns a plain completion for prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	choice, err := m.generate(ctx, metrics.OpModelGenerate, prompt, nil)
	if err != nil {
		return "", err
	}
	return choice.Content, nil
}

// GenerateWithTools calls the model with tools bound and returns its
// response as an assistant message. Tool calls without an id get a
// generated one so results can still be correlated.
func (m *Model) GenerateWithTools(ctx context.Context, prompt string, tools []models.ToolSpec) (models.Message, error) {
	choice, err := m.generate(ctx, metrics.OpModelToolCall, prompt, tools)
	if err != nil {
		return models.Message{}, err
	}
	return assistantMessage(choice), nil
}

func (m *Model) generate(ctx context.Context, op, prompt string, tools []models.ToolSpec) (*llms.ContentChoice, error) {
	opts := []llms.CallOption{llms.WithTemperature(m.temperature)}
	if len(tools) > 0 {
		opts = append(opts, llms.WithTools(toLLMTools(tools)))
	}
	messages := []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}

	m.logger.Debug("model call", "model", m.modelName, "op", op, "prompt_len", len(prompt), "tools", len(tools))
	start := time.Now()
	choice, err := retry.Do(ctx, m.policy, "model "+m.modelName, func(ctx context.Context) (*llms.ContentChoice, error) {
		resp, err := m.llm.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return nil, wrapFatalError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, errNoChoices
		}
		return resp.Choices[0], nil
	})
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordError(op, duration, err)
		m.logger.Warn("model call failed", "model", m.modelName, "op", op, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}

	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(op, duration, in, out)
	m.logger.Debug("model call complete", "model", m.modelName, "op", op,
		"duration_ms", duration.Milliseconds(), "tool_calls", len(choice.ToolCalls))
	return choice, nil
}

func toLLMTools(specs []models.ToolSpec) []llms.Tool {
	out := make([]llms.Tool, len(specs))
	for i, s := range specs {
		out[i] = llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return out
}

func assistantMessage(choice *llms.ContentChoice) models.Message {
	calls := make([]models.ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		call := models.ToolCall{
			ID:   tc.ID,
			Name: tc.FunctionCall.Name,
			Raw:  tc.FunctionCall.Arguments,
			Args: decodeArgs(tc.FunctionCall.Arguments),
		}
		if call.ID == "" {
			call.ID = "call_" + uuid.NewString()
		}
		calls = append(calls, call)
	}
	return models.AssistantMessage(choice.Content, calls...)
}

// decodeArgs returns nil when raw is not a JSON object.
func decodeArgs(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	if args == nil {
		return nil
	}
	return args
}

// tokenUsage reads token counts from provider-specific generation info.
func tokenUsage(info map[string]any) (in, out int64) {
	in = firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}
