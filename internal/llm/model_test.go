package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil error", nil, false},
		{"generic error", errors.New("connection reset"), false},
		{"credit balance", errors.New("insufficient credit balance"), true},
		{"rate limit", errors.New("rate limit exceeded"), true},
		{"quota exceeded", errors.New("quota exceeded for model"), true},
		{"billing issue", errors.New("billing account inactive"), true},
		{"invalid api key", errors.New("invalid api key"), true},
		{"authentication failed", errors.New("authentication failed"), true},
		{"unauthorized", errors.New("unauthorized request"), true},
		{"401 status", errors.New("HTTP 401: not allowed"), true},
		{"403 status", errors.New("HTTP 403: forbidden"), true},
		{"wrapped error", fmt.Errorf("embed: %w", errors.New("credit balance too low")), true},
		{"404 not fatal", errors.New("HTTP 404: not found"), false},
		{"timeout not fatal", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	t.Run("wraps fatal error", func(t *testing.T) {
		wrapped := wrapFatalError(errors.New("invalid api key provided"))
		assert.ErrorIs(t, wrapped, ErrFatalAPI)
		assert.ErrorIs(t, wrapped, retry.ErrCapabilityUnavailable)
	})

	t.Run("passes through non-fatal error", func(t *testing.T) {
		err := errors.New("network timeout")
		assert.Same(t, err, wrapFatalError(err))
	})

	t.Run("nil error", func(t *testing.T) {
		assert.NoError(t, wrapFatalError(nil))
	})
}

// fakeLLM returns queued responses and records the options of each call.
type fakeLLM struct {
	responses []*llms.ContentResponse
	errs      []error
	calls     []llms.CallOptions
	prompts   []string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.calls = append(f.calls, opts)
	if len(msgs) > 0 && len(msgs[0].Parts) > 0 {
		if tc, ok := msgs[0].Parts[0].(llms.TextContent); ok {
			f.prompts = append(f.prompts, tc.Text)
		}
	}

	i := len(f.calls) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "default"}}}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func testPolicy() retry.Policy {
	return retry.Policy{Timeout: time.Second, MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func TestModelGenerate(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{
			Content:        "Paris",
			GenerationInfo: map[string]any{"PromptTokens": 10, "CompletionTokens": 2},
		}},
	}}}
	mc := metrics.NewCollector()
	m := wrapModel(fake, "test-model", 0, testPolicy(), nil, mc)

	got, err := m.Generate(context.Background(), "capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris", got)
	assert.Equal(t, []string{"capital of France?"}, fake.prompts)
	assert.Empty(t, fake.calls[0].Tools)

	snap, ok := mc.Snapshot().Get(metrics.OpModelGenerate)
	require.True(t, ok)
	require.NotNil(t, snap.InputTokens)
	assert.Equal(t, int64(10), *snap.InputTokens)
}

func TestModelGenerateWithTools(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{
				{ID: "call_a", Type: "function", FunctionCall: &llms.FunctionCall{Name: "retrieve_tool", Arguments: `{"question":"capital?"}`}},
				{Type: "function", FunctionCall: &llms.FunctionCall{Name: "search_tool", Arguments: `not json`}},
			},
		}},
	}}}
	m := wrapModel(fake, "test-model", 0, testPolicy(), nil, nil)

	specs := []models.ToolSpec{{
		Name:        "retrieve_tool",
		Description: "retrieve",
		Parameters:  map[string]any{"type": "object"},
	}}
	msg, err := m.GenerateWithTools(context.Background(), "prompt", specs)
	require.NoError(t, err)

	require.Len(t, fake.calls[0].Tools, 1)
	assert.Equal(t, "retrieve_tool", fake.calls[0].Tools[0].Function.Name)

	assert.Equal(t, models.KindAssistant, msg.Kind)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_a", msg.ToolCalls[0].ID)
	assert.Equal(t, "capital?", msg.ToolCalls[0].Args["question"])

	assert.NotEmpty(t, msg.ToolCalls[1].ID, "missing ids are synthesized")
	assert.Nil(t, msg.ToolCalls[1].Args, "undecodable arguments stay nil")
	assert.Equal(t, "not json", msg.ToolCalls[1].Raw)
}

func TestModelFatalErrorNotRetried(t *testing.T) {
	fake := &fakeLLM{errs: []error{errors.New("HTTP 401: unauthorized")}}
	m := wrapModel(fake, "test-model", 0, testPolicy(), nil, nil)

	_, err := m.Generate(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrCapabilityUnavailable)
	assert.ErrorIs(t, err, ErrFatalAPI)
	assert.Len(t, fake.calls, 1)
}

func TestModelRetriesTimeouts(t *testing.T) {
	fake := &fakeLLM{
		errs: []error{fmt.Errorf("post: %w", context.DeadlineExceeded), nil},
		responses: []*llms.ContentResponse{
			nil,
			{Choices: []*llms.ContentChoice{{Content: "ok"}}},
		},
	}
	m := wrapModel(fake, "test-model", 0, testPolicy(), nil, nil)

	got, err := m.Generate(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Len(t, fake.calls, 2)
}

func TestModelNoChoices(t *testing.T) {
	fake := &fakeLLM{responses: []*llms.ContentResponse{{}}}
	m := wrapModel(fake, "test-model", 0, testPolicy(), nil, nil)

	_, err := m.Generate(context.Background(), "q")
	assert.ErrorIs(t, err, retry.ErrCapabilityUnavailable)
}

func TestDecodeArgs(t *testing.T) {
	assert.Equal(t, map[string]any{}, decodeArgs(""))
	assert.Equal(t, map[string]any{"a": "b"}, decodeArgs(`{"a":"b"}`))
	assert.Nil(t, decodeArgs(`[1,2]`))
	assert.Nil(t, decodeArgs(`null`))
}
