package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/prompts"
	"github.com/raphaelgruber/docchat/internal/tools"
)

// ChatModel is the model capability the graph needs.
type ChatModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithTools(ctx context.Context, prompt string, specs []models.ToolSpec) (models.Message, error)
}

// DeadlockPolicy says what an agent step does after ErrRoutingDeadlock.
type DeadlockPolicy string

const (
	// DeadlockFail fails the run.
	DeadlockFail DeadlockPolicy = "fail"
	// DeadlockReprompt asks the model again with a corrective note.
	DeadlockReprompt DeadlockPolicy = "reprompt"
)

// Options tunes a Runner.
type Options struct {
	MaxSteps        int
	DeadlockPolicy  DeadlockPolicy
	DeadlockRetries int
	Selector        CallSelector
}

const defaultMaxSteps = 25

// StepError reports the step at which a run failed.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Trace records what a run did.
type Trace struct {
	Steps        []Step
	Tools        []string // dispatched tool names, in order
	IgnoredCalls int
	Reprompts    int
}

// Dispatched reports whether tool ran during the trace.
func (t *Trace) Dispatched(tool string) bool {
	for _, n := range t.Tools {
		if n == tool {
			return true
		}
	}
	return false
}

// Runner executes a Definition.
type Runner struct {
	graph      *Definition
	model      ChatModel
	dispatcher *tools.Dispatcher
	router     Router
	opts       Options
	logger     *slog.Logger
}

// NewRunner checks that every tool reachable in def is registered with
// dispatcher and returns a Runner for def.
func NewRunner(def *Definition, model ChatModel, dispatcher *tools.Dispatcher, opts Options, logger *slog.Logger) (*Runner, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	for _, n := range def.Nodes {
		for _, e := range n.Edges {
			if _, ok := dispatcher.Registry().Lookup(e.Tool); !ok {
				return nil, fmt.Errorf("graph %s: tool %q is not registered", def.Name, e.Tool)
			}
		}
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.DeadlockPolicy == "" {
		opts.DeadlockPolicy = DeadlockFail
	}
	if opts.Selector == nil {
		opts.Selector = FirstCall
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		graph:      def,
		model:      model,
		dispatcher: dispatcher,
		router:     Router{Graph: def, Registry: dispatcher.Registry(), Selector: opts.Selector},
		opts:       opts,
		logger:     logger.With("graph", def.Name),
	}, nil
}

// Graph returns the definition the runner executes.
func (r *Runner) Graph() *Definition {
	return r.graph
}

// Run drives st from the entry step to the terminal step. st is modified in
// place; on error it holds partial progress and must be discarded.
func (r *Runner) Run(ctx context.Context, st *models.ConversationState) (*Trace, error) {
	trace := &Trace{}
	var pending *models.ToolCall

	step := r.graph.Entry
	for step != StepAnswer {
		if len(trace.Steps) >= r.opts.MaxSteps {
			return trace, &StepError{Step: step, Err: fmt.Errorf("%w: %d", ErrStepLimit, r.opts.MaxSteps)}
		}
		if err := ctx.Err(); err != nil {
			return trace, &StepError{Step: step, Err: err}
		}
		trace.Steps = append(trace.Steps, step)

		node, _ := r.graph.Node(step)
		r.logger.Debug("entering step", "step", step)

		var (
			next Step
			err  error
		)
		switch node.Kind {
		case KindReformulate:
			err = r.reformulate(ctx, st)
			next = node.Next
		case KindAgent:
			next, pending, err = r.agent(ctx, node, st, trace)
		case KindTool:
			err = r.tool(ctx, pending, st, trace)
			pending = nil
			next = node.Next
		case KindBindDocs:
			st.Docs = lastToolDocs(st.Messages)
			st.LastResponse = nil
			next = node.Next
		case KindFold:
			st.LastResponse = nil
			next = node.Next
		default:
			err = fmt.Errorf("unknown node kind %d", node.Kind)
		}
		if err != nil {
			return trace, &StepError{Step: step, Err: err}
		}
		step = next
	}
	trace.Steps = append(trace.Steps, StepAnswer)
	return trace, nil
}

// reformulate rewrites the question to stand alone. A thread without
// history has nothing to resolve against, so the model is not called.
func (r *Runner) reformulate(ctx context.Context, st *models.ConversationState) error {
	if len(st.Messages) == 0 {
		return nil
	}
	q, err := r.model.Generate(ctx, prompts.Reformulate(st.Question, prompts.Scratchpad(st.Messages)))
	if err != nil {
		return err
	}
	if q = strings.TrimSpace(q); q != "" {
		r.logger.Debug("question reformulated", "from", st.Question, "to", q)
		st.Question = q
	}
	return nil
}

func (r *Runner) agent(ctx context.Context, node Node, st *models.ConversationState, trace *Trace) (Step, *models.ToolCall, error) {
	prompt := node.Prompt(st)
	specs := r.dispatcher.Registry().Specs(node.ToolNames()...)

	for attempt := 0; ; attempt++ {
		resp, err := r.model.GenerateWithTools(ctx, prompt, specs)
		if err != nil {
			return "", nil, err
		}
		st.LastResponse = &resp

		dec, err := r.router.Route(node.Step, resp, st)
		if errors.Is(err, ErrRoutingDeadlock) && r.opts.DeadlockPolicy == DeadlockReprompt && attempt < r.opts.DeadlockRetries {
			r.logger.Warn("agent response unusable, asking again", "step", node.Step, "attempt", attempt+1, "error", err)
			trace.Reprompts++
			if attempt == 0 {
				prompt += prompts.DeadlockNote
			}
			continue
		}
		if err != nil {
			return "", nil, err
		}

		if dec.Next == StepAnswer {
			st.Answer = resp.Content
			st.Append(models.HumanMessage(st.Question), models.AssistantMessage(resp.Content))
			st.LastResponse = nil
			return StepAnswer, nil, nil
		}

		// History keeps the call as the model sent it; injected values are
		// rebuilt from state and would only bloat the checkpoint.
		honored := r.opts.Selector(resp.ToolCalls)
		st.Append(models.AssistantMessage(resp.Content, honored))
		if dec.Ignored > 0 {
			trace.IgnoredCalls += dec.Ignored
			r.logger.Warn("ignoring extra tool calls", "step", node.Step, "honored", honored.Name, "ignored", dec.Ignored)
		}
		return dec.Next, dec.Call, nil
	}
}

func (r *Runner) tool(ctx context.Context, call *models.ToolCall, st *models.ConversationState, trace *Trace) error {
	if call == nil {
		return errors.New("no pending tool call")
	}
	msg, err := r.dispatcher.Dispatch(ctx, *call)
	if err != nil {
		return err
	}
	trace.Tools = append(trace.Tools, call.Name)
	st.Append(msg)
	return nil
}

func lastToolDocs(msgs []models.Message) []models.RetrievedDocument {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == models.KindToolResult {
			return msgs[i].Documents
		}
	}
	return nil
}
