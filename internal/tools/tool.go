package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/models"
)

// Model-facing tool names.
const (
	RetrieveToolName   = "retrieve_tool"
	SearchToolName     = "search_tool"
	QueryToolName      = "query_tool"
	SummarizerToolName = "summarizer_tool"
	DocRelatedToolName = "doc_related_tool"
)

// Argument names shared by the tools.
const (
	ArgQuestion     = "question"
	ArgUserID       = "user_id"
	ArgCollectionID = "collection_id"
	ArgDocs         = "docs"
)

// Parameter types understood by Validate and the JSON schema.
const (
	TypeString = "string"
	TypeArray  = "array"
)

// Param describes one tool argument. Injected params are filled from the
// conversation state before dispatch and never shown to the model.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Injected    bool
}

// questionParam is the model-supplied argument every tool takes.
var questionParam = Param{
	Name:        ArgQuestion,
	Type:        TypeString,
	Description: "The question to answer, rewritten to stand on its own.",
	Required:    true,
}

var (
	userIDParam       = Param{Name: ArgUserID, Type: TypeString, Required: true, Injected: true}
	collectionIDParam = Param{Name: ArgCollectionID, Type: TypeString, Required: true, Injected: true}
	docsParam         = Param{Name: ArgDocs, Type: TypeArray, Required: true, Injected: true}
)

// Args holds a call's arguments by name.
type Args map[string]any

// Result is what a tool returns to the graph.
type Result struct {
	Text string
	Docs []models.RetrievedDocument
}

// Tool is a callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Run         func(ctx context.Context, args Args) (Result, error)
}

// Spec returns the schema shown to the model. Injected params are left out.
func (t Tool) Spec() models.ToolSpec {
	props := map[string]any{}
	required := []string{}
	for _, p := range t.Params {
		if p.Injected {
			continue
		}
		props[p.Name] = map[string]any{"type": p.Type, "description": p.Description}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return models.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// Injected returns the names of the params filled from state.
func (t Tool) Injected() []string {
	var names []string
	for _, p := range t.Params {
		if p.Injected {
			names = append(names, p.Name)
		}
	}
	return names
}

// Validate checks args against the tool's params. Keys the tool does not
// declare are ignored.
func (t Tool) Validate(args Args) error {
	for _, p := range t.Params {
		v, ok := args[p.Name]
		if !ok || v == nil {
			if p.Required {
				return fmt.Errorf("%w: %s: missing %q", ErrInvalidArguments, t.Name, p.Name)
			}
			continue
		}
		if !hasType(v, p.Type) {
			return fmt.Errorf("%w: %s: %q must be %s, got %T", ErrInvalidArguments, t.Name, p.Name, p.Type, v)
		}
		if s, ok := v.(string); ok && p.Required && !p.Injected && strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: %s: %q is blank", ErrInvalidArguments, t.Name, p.Name)
		}
	}
	return nil
}

func hasType(v any, typ string) bool {
	switch typ {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeArray:
		switch v.(type) {
		case []any, []models.RetrievedDocument:
			return true
		}
		return false
	default:
		return true
	}
}

// Inject returns a copy of args with every injected param of t set from
// st. Values the model supplied for those names are discarded.
func Inject(t Tool, args Args, st *models.ConversationState) Args {
	out := make(Args, len(args)+3)
	for k, v := range args {
		out[k] = v
	}
	for _, name := range t.Injected() {
		switch name {
		case ArgUserID:
			out[name] = st.Key.UserID
		case ArgCollectionID:
			out[name] = st.Key.CollectionID
		case ArgDocs:
			out[name] = append([]models.RetrievedDocument(nil), st.Docs...)
		default:
			delete(out, name)
		}
	}
	return out
}

// String returns the string argument name, or "" when it is absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Key returns the collection key carried by the injected id arguments.
func (a Args) Key() (models.CollectionKey, error) {
	k := models.CollectionKey{UserID: a.String(ArgUserID), CollectionID: a.String(ArgCollectionID)}
	return k, k.Validate()
}

// Docs returns the injected documents. Only values injected from state
// carry documents; anything else yields nil.
func (a Args) Docs() []models.RetrievedDocument {
	docs, _ := a[ArgDocs].([]models.RetrievedDocument)
	return docs
}
