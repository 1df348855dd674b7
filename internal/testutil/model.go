package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/raphaelgruber/docchat/internal/models"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of replies.
var ErrScriptExhausted = errors.New("scripted model: no reply left")

// ModelCall records one request made to a ScriptedModel.
type ModelCall struct {
	Prompt string
	Tools  []string // names offered, nil for plain generation
}

type reply struct {
	msg models.Message
	err error
}

// ScriptedModel replays queued responses in order. Tool-calling requests
// and plain text requests have separate queues. Plain text requests fall
// back to TextFallback when their queue is empty.
type ScriptedModel struct {
	TextFallback func(prompt string) string

	mu     sync.Mutex
	tools  []reply
	texts  []reply
	calls  []ModelCall
	nextID int
}

func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{}
}

// Answer queues a final answer for the next tool-calling request.
func (m *ScriptedModel) Answer(text string) *ScriptedModel {
	return m.Reply(models.AssistantMessage(text))
}

// Call queues a response requesting one tool call per name, each with args.
func (m *ScriptedModel) Call(args map[string]any, names ...string) *ScriptedModel {
	m.mu.Lock()
	calls := make([]models.ToolCall, len(names))
	for i, n := range names {
		m.nextID++
		calls[i] = models.ToolCall{ID: fmt.Sprintf("call_%d", m.nextID), Name: n, Args: args}
	}
	m.mu.Unlock()
	return m.Reply(models.AssistantMessage("", calls...))
}

// Reply queues an arbitrary message for the next tool-calling request.
func (m *ScriptedModel) Reply(msg models.Message) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, reply{msg: msg})
	return m
}

// Fail queues an error for the next tool-calling request.
func (m *ScriptedModel) Fail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, reply{err: err})
	return m
}

// Text queues a reply for the next plain generation request.
func (m *ScriptedModel) Text(text string) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, reply{msg: models.AssistantMessage(text)})
	return m
}

// TextFail queues an error for the next plain generation request.
func (m *ScriptedModel) TextFail(err error) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, reply{err: err})
	return m
}

// Calls returns every request made so far.
func (m *ScriptedModel) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ModelCall(nil), m.calls...)
}

// Pending returns how many tool-calling replies have not been consumed.
func (m *ScriptedModel) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tools)
}

func (m *ScriptedModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls = append(m.calls, ModelCall{Prompt: prompt})
	if len(m.texts) == 0 {
		fb := m.TextFallback
		m.mu.Unlock()
		if fb == nil {
			return "", ErrScriptExhausted
		}
		return fb(prompt), nil
	}
	r := m.texts[0]
	m.texts = m.texts[1:]
	m.mu.Unlock()
	return r.msg.Content, r.err
}

func (m *ScriptedModel) GenerateWithTools(ctx context.Context, prompt string, specs []models.ToolSpec) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.Name
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ModelCall{Prompt: prompt, Tools: names})
	if len(m.tools) == 0 {
		return models.Message{}, ErrScriptExhausted
	}
	r := m.tools[0]
	m.tools = m.tools[1:]
	return r.msg, r.err
}
