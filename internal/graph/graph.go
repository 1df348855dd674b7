// Package graph runs conversation turns as an explicit state machine.
//
// A Definition is a static table of steps. Agent steps call the model with
// only the tools that have an edge out of that step, so which tools are
// reachable from where is a property of the table. Route decides the next
// step from a model response without side effects; Runner executes steps
// and owns all mutation of the conversation state.
package graph

import (
	"fmt"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/prompts"
	"github.com/raphaelgruber/docchat/internal/tools"
)

// Step names a node of a graph.
type Step string

const (
	StepReformulate      Step = "reformulate"
	StepAgent            Step = "agent"
	StepRetrieve         Step = "retrieve"
	StepRetrievePost     Step = "retrieve_post"
	StepAgentBound       Step = "agent_bound"
	StepQuery            Step = "query"
	StepPostProcessBound Step = "post_process_bound"
	StepWebSearch        Step = "web_search"
	StepWebSearchBound   Step = "web_search_bound"
	StepPostProcess      Step = "post_process"

	StepAskAgent   Step = "ask_agent"
	StepSummarize  Step = "summarize"
	StepDocRelated Step = "doc_related"
	StepAskPost    Step = "ask_post"

	// StepAnswer is the terminal marker.
	StepAnswer Step = "answer"
)

// NodeKind selects how the Runner executes a node.
type NodeKind int

const (
	KindReformulate NodeKind = iota
	KindAgent
	KindTool
	KindBindDocs // copies the last tool result's documents into state
	KindFold     // closes a tool round trip
)

// Edge connects an agent step to the tool step that runs Tool.
type Edge struct {
	Tool string
	To   Step
}

// Node is one step of a Definition.
type Node struct {
	Step Step
	Kind NodeKind

	// Next is the unconditional successor of non-agent nodes.
	Next Step

	// Edges are the tool branches of an agent node. Only these tools are
	// offered to the model at this step.
	Edges []Edge

	// Prompt renders the model prompt of an agent node.
	Prompt func(st *models.ConversationState) string
}

// EdgeFor returns the step reached when the model calls tool.
func (n Node) EdgeFor(tool string) (Step, bool) {
	for _, e := range n.Edges {
		if e.Tool == tool {
			return e.To, true
		}
	}
	return "", false
}

// ToolNames returns the tools offered at an agent node, in edge order.
func (n Node) ToolNames() []string {
	names := make([]string, len(n.Edges))
	for i, e := range n.Edges {
		names[i] = e.Tool
	}
	return names
}

// Definition is a static graph.
type Definition struct {
	Name    string
	Variant models.ThreadVariant
	Entry   Step
	Nodes   map[Step]Node
}

// Node returns the node for step.
func (d *Definition) Node(step Step) (Node, bool) {
	n, ok := d.Nodes[step]
	return n, ok
}

// Validate checks that every transition points at a node of d or the terminal marker.
func (d *Definition) Validate() error {
	exists := func(s Step) bool {
		_, ok := d.Nodes[s]
		return ok || s == StepAnswer
	}
	if _, ok := d.Nodes[d.Entry]; !ok {
		return fmt.Errorf("graph %s: entry %q is not a node", d.Name, d.Entry)
	}
	for step, n := range d.Nodes {
		if n.Step != step {
			return fmt.Errorf("graph %s: node %q registered as %q", d.Name, n.Step, step)
		}
		switch n.Kind {
		case KindAgent:
			if n.Prompt == nil || len(n.Edges) == 0 {
				return fmt.Errorf("graph %s: agent %q needs a prompt and edges", d.Name, step)
			}
			for _, e := range n.Edges {
				to, ok := d.Nodes[e.To]
				if !ok || to.Kind != KindTool {
					return fmt.Errorf("graph %s: edge %s -%s-> %q does not reach a tool node", d.Name, step, e.Tool, e.To)
				}
			}
		default:
			if !exists(n.Next) {
				return fmt.Errorf("graph %s: %q -> %q is not a node", d.Name, step, n.Next)
			}
		}
	}
	return nil
}

// Predecessors returns every step with a transition into step.
func (d *Definition) Predecessors(step Step) []Step {
	var out []Step
	for s, n := range d.Nodes {
		if n.Next == step {
			out = append(out, s)
			continue
		}
		for _, e := range n.Edges {
			if e.To == step {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// PrimaryGraph is the per-turn graph. The unbound phase (agent) can only
// retrieve, search or answer. Retrieval leads into the bound phase
// (agent_bound), which is the only place query_tool is offered.
func PrimaryGraph() *Definition {
	unbound := func(st *models.ConversationState) string {
		return prompts.Agent(st.Question, prompts.Scratchpad(st.Messages), nil)
	}
	bound := func(st *models.ConversationState) string {
		return prompts.Agent(st.Question, prompts.Scratchpad(st.Messages), st.Docs)
	}

	return newDefinition("primary", models.VariantPrimary, StepReformulate,
		Node{Step: StepReformulate, Kind: KindReformulate, Next: StepAgent},
		Node{Step: StepAgent, Kind: KindAgent, Prompt: unbound, Edges: []Edge{
			{Tool: tools.RetrieveToolName, To: StepRetrieve},
			{Tool: tools.SearchToolName, To: StepWebSearch},
		}},
		Node{Step: StepRetrieve, Kind: KindTool, Next: StepRetrievePost},
		Node{Step: StepRetrievePost, Kind: KindBindDocs, Next: StepAgentBound},
		Node{Step: StepWebSearch, Kind: KindTool, Next: StepPostProcess},
		Node{Step: StepPostProcess, Kind: KindFold, Next: StepAgent},

		Node{Step: StepAgentBound, Kind: KindAgent, Prompt: bound, Edges: []Edge{
			{Tool: tools.QueryToolName, To: StepQuery},
			{Tool: tools.RetrieveToolName, To: StepRetrieve},
			{Tool: tools.SearchToolName, To: StepWebSearchBound},
		}},
		Node{Step: StepQuery, Kind: KindTool, Next: StepPostProcessBound},
		Node{Step: StepWebSearchBound, Kind: KindTool, Next: StepPostProcessBound},
		Node{Step: StepPostProcessBound, Kind: KindFold, Next: StepAgentBound},
	)
}

// AskGraph is the document sub-agent graph. Its documents are bound by the
// caller before the run starts.
func AskGraph() *Definition {
	ask := func(st *models.ConversationState) string {
		return prompts.AskAgent(st.Question, prompts.Scratchpad(st.Messages), st.Docs)
	}

	return newDefinition("ask", models.VariantAsk, StepAskAgent,
		Node{Step: StepAskAgent, Kind: KindAgent, Prompt: ask, Edges: []Edge{
			{Tool: tools.SummarizerToolName, To: StepSummarize},
			{Tool: tools.DocRelatedToolName, To: StepDocRelated},
		}},
		Node{Step: StepSummarize, Kind: KindTool, Next: StepAskPost},
		Node{Step: StepDocRelated, Kind: KindTool, Next: StepAskPost},
		Node{Step: StepAskPost, Kind: KindFold, Next: StepAskAgent},
	)
}

func newDefinition(name string, variant models.ThreadVariant, entry Step, nodes ...Node) *Definition {
	d := &Definition{Name: name, Variant: variant, Entry: entry, Nodes: make(map[Step]Node, len(nodes))}
	for _, n := range nodes {
		d.Nodes[n.Step] = n
	}
	return d
}
