package graph

import (
	"errors"
	"fmt"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/tools"
)

var (
	// ErrRoutingDeadlock means a model response was neither a final answer
	// nor a call to a tool reachable from the current step.
	ErrRoutingDeadlock = errors.New("routing deadlock")

	// ErrStepLimit means a run visited more nodes than allowed.
	ErrStepLimit = errors.New("step limit exceeded")
)

// CallSelector picks the one tool call honored from a response that
// requests several. calls is never empty.
type CallSelector func(calls []models.ToolCall) models.ToolCall

// FirstCall honors the first requested call.
func FirstCall(calls []models.ToolCall) models.ToolCall {
	return calls[0]
}

// Decision is the outcome of routing one agent response.
type Decision struct {
	Next Step

	// Call is the honored call with injected arguments filled in. Nil when
	// Next is StepAnswer.
	Call *models.ToolCall

	// Ignored counts requested calls beyond the honored one.
	Ignored int
}

// Router maps agent responses to transitions of a Definition.
type Router struct {
	Graph    *Definition
	Registry *tools.Registry
	Selector CallSelector
}

// Route decides where an agent step goes after resp. It reads st to fill
// injected arguments and never modifies it.
func (r Router) Route(step Step, resp models.Message, st *models.ConversationState) (Decision, error) {
	node, ok := r.Graph.Node(step)
	if !ok || node.Kind != KindAgent {
		return Decision{}, fmt.Errorf("graph %s: %q is not an agent step", r.Graph.Name, step)
	}

	if resp.IsFinalAnswer() {
		return Decision{Next: StepAnswer}, nil
	}
	if !resp.HasToolCalls() {
		return Decision{}, fmt.Errorf("%w: empty response at %s", ErrRoutingDeadlock, step)
	}

	sel := r.Selector
	if sel == nil {
		sel = FirstCall
	}
	call := sel(resp.ToolCalls)

	next, ok := node.EdgeFor(call.Name)
	if !ok {
		return Decision{}, fmt.Errorf("%w: tool %q is not available at %s", ErrRoutingDeadlock, call.Name, step)
	}
	tool, ok := r.Registry.Lookup(call.Name)
	if !ok {
		return Decision{}, fmt.Errorf("%w: %q", tools.ErrUnknownTool, call.Name)
	}

	honored := call
	if call.Args != nil || call.Raw == "" {
		honored.Args = tools.Inject(tool, call.Args, st)
	}
	return Decision{Next: next, Call: &honored, Ignored: len(resp.ToolCalls) - 1}, nil
}
