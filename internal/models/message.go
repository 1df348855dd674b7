// Package models defines the conversation and retrieval types shared by docchat packages.
package models

// MessageKind tags the variant held by a Message.
type MessageKind string

const (
	KindHuman      MessageKind = "human"
	KindAssistant  MessageKind = "assistant"
	KindToolResult MessageKind = "tool_result"
)

// ToolCall is a structured tool request emitted by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`

	// Raw is the argument text as the model sent it. Args is nil when Raw
	// could not be decoded.
	Raw string `json:"raw,omitempty"`
}

// Message is one entry of a thread's history.
//
// Which fields are meaningful depends on Kind:
//   - KindHuman: Content
//   - KindAssistant: Content and optionally ToolCalls
//   - KindToolResult: Content, ToolName, CallID and optionally Documents
type Message struct {
	Kind      MessageKind         `json:"kind"`
	Content   string              `json:"content"`
	ToolCalls []ToolCall          `json:"tool_calls,omitempty"`
	ToolName  string              `json:"tool_name,omitempty"`
	CallID    string              `json:"call_id,omitempty"`
	Documents []RetrievedDocument `json:"documents,omitempty"`
}

// HumanMessage records a user question.
func HumanMessage(text string) Message {
	return Message{Kind: KindHuman, Content: text}
}

// AssistantMessage records a model response, with or without tool calls.
func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Kind: KindAssistant, Content: text, ToolCalls: calls}
}

// ToolResultMessage wraps a tool's output so it can be correlated with the call that produced it.
func ToolResultMessage(toolName, callID, text string, docs []RetrievedDocument) Message {
	return Message{
		Kind:      KindToolResult,
		Content:   text,
		ToolName:  toolName,
		CallID:    callID,
		Documents: docs,
	}
}

// HasToolCalls reports whether m is an assistant message requesting tools.
func (m Message) HasToolCalls() bool {
	return m.Kind == KindAssistant && len(m.ToolCalls) > 0
}

// IsFinalAnswer reports whether m is an assistant message carrying text and no tool calls.
func (m Message) IsFinalAnswer() bool {
	return m.Kind == KindAssistant && len(m.ToolCalls) == 0 && m.Content != ""
}

// ToolSpec is the schema of a callable tool as shown to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}
