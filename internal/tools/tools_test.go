package tools_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/raphaelgruber/docchat/internal/testutil"
	"github.com/raphaelgruber/docchat/internal/tools"
	"github.com/raphaelgruber/docchat/internal/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = models.CollectionKey{UserID: "u1", CollectionID: "geo"}

var parisDoc = models.RetrievedDocument{Content: "The capital of France is Paris.", Source: "france.pdf", Page: 1}

type fakeRetriever struct {
	docs  []models.RetrievedDocument
	err   error
	key   models.CollectionKey
	query string
	k     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, key models.CollectionKey, query string, k int) ([]models.RetrievedDocument, error) {
	f.key, f.query, f.k = key, query, k
	return f.docs, f.err
}

type fakeSearcher struct {
	results []websearch.Result
	errs    []error
	calls   int
}

func (f *fakeSearcher) Search(_ context.Context, _ string, k int) ([]websearch.Result, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.results, nil
}

type fakeSubAgent struct {
	key      models.CollectionKey
	question string
	docs     []models.RetrievedDocument
}

func (f *fakeSubAgent) Ask(_ context.Context, key models.CollectionKey, question string, docs []models.RetrievedDocument) (string, error) {
	f.key, f.question, f.docs = key, question, docs
	return "sub-agent answer", nil
}

func newDispatcher(t *testing.T, deps *tools.Dependencies) *tools.Dispatcher {
	t.Helper()
	reg, err := tools.NewRegistry(append(tools.PrimaryTools(deps), tools.AskTools(deps)...)...)
	require.NoError(t, err)
	return tools.NewDispatcher(reg, nil, deps.Metrics)
}

func stateWithDocs(docs ...models.RetrievedDocument) *models.ConversationState {
	return &models.ConversationState{Key: testKey, Docs: docs}
}

func TestSpecHidesInjectedParams(t *testing.T) {
	deps := &tools.Dependencies{}
	for _, tool := range append(tools.PrimaryTools(deps), tools.AskTools(deps)...) {
		t.Run(tool.Name, func(t *testing.T) {
			spec := tool.Spec()
			props := spec.Parameters["properties"].(map[string]any)
			assert.Contains(t, props, tools.ArgQuestion)
			for _, name := range tool.Injected() {
				assert.NotContains(t, props, name)
			}
			assert.Equal(t, []string{tools.ArgQuestion}, spec.Parameters["required"])
		})
	}
}

func TestInjectedAllowList(t *testing.T) {
	deps := &tools.Dependencies{}
	want := map[string][]string{
		tools.RetrieveToolName:   {tools.ArgCollectionID, tools.ArgUserID},
		tools.SearchToolName:     nil,
		tools.QueryToolName:      {tools.ArgCollectionID, tools.ArgUserID, tools.ArgDocs},
		tools.SummarizerToolName: {tools.ArgCollectionID, tools.ArgUserID},
		tools.DocRelatedToolName: {tools.ArgDocs},
	}
	for _, tool := range append(tools.PrimaryTools(deps), tools.AskTools(deps)...) {
		assert.Equal(t, want[tool.Name], tool.Injected(), tool.Name)
	}
}

func TestInjectOverridesModelValues(t *testing.T) {
	tool := tools.NewQueryTool(&tools.Dependencies{})
	args := tools.Args{
		tools.ArgQuestion: "q",
		tools.ArgUserID:   "attacker",
		tools.ArgDocs:     []any{"forged"},
		"extra":           1,
	}

	got := tools.Inject(tool, args, stateWithDocs(parisDoc))
	assert.Equal(t, "u1", got[tools.ArgUserID])
	assert.Equal(t, "geo", got[tools.ArgCollectionID])
	assert.Equal(t, []models.RetrievedDocument{parisDoc}, got.Docs())
	assert.Equal(t, "attacker", args[tools.ArgUserID], "input args must not be mutated")
	assert.Equal(t, 1, got["extra"])
}

func TestDispatchErrors(t *testing.T) {
	d := newDispatcher(t, &tools.Dependencies{Retriever: &fakeRetriever{}})

	tests := []struct {
		name string
		call models.ToolCall
		want error
	}{
		{"unknown tool", models.ToolCall{Name: "delete_everything"}, tools.ErrUnknownTool},
		{"unparsable raw args", models.ToolCall{Name: tools.RetrieveToolName, Raw: "{not json"}, tools.ErrInvalidArguments},
		{"missing question", models.ToolCall{Name: tools.RetrieveToolName, Args: map[string]any{
			tools.ArgUserID: "u1", tools.ArgCollectionID: "geo",
		}}, tools.ErrInvalidArguments},
		{"wrong type", models.ToolCall{Name: tools.RetrieveToolName, Args: map[string]any{
			tools.ArgQuestion: 42.0, tools.ArgUserID: "u1", tools.ArgCollectionID: "geo",
		}}, tools.ErrInvalidArguments},
		{"blank question", models.ToolCall{Name: tools.RetrieveToolName, Args: map[string]any{
			tools.ArgQuestion: "", tools.ArgUserID: "u1", tools.ArgCollectionID: "geo",
		}}, tools.ErrInvalidArguments},
		{"whitespace question", models.ToolCall{Name: tools.SearchToolName, Args: map[string]any{
			tools.ArgQuestion: "  \n",
		}}, tools.ErrInvalidArguments},
		{"injected arg not filled", models.ToolCall{Name: tools.RetrieveToolName, Args: map[string]any{
			tools.ArgQuestion: "q",
		}}, tools.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tt.call)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRetrieveTool(t *testing.T) {
	retriever := &fakeRetriever{docs: []models.RetrievedDocument{parisDoc}}
	mc := metrics.NewCollector()
	d := newDispatcher(t, &tools.Dependencies{Retriever: retriever, Metrics: mc})
	tool, _ := d.Registry().Lookup(tools.RetrieveToolName)

	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "capital of France?"}, stateWithDocs())
	msg, err := d.Dispatch(context.Background(), models.ToolCall{ID: "c1", Name: tools.RetrieveToolName, Args: args})
	require.NoError(t, err)

	assert.Equal(t, models.KindToolResult, msg.Kind)
	assert.Equal(t, tools.RetrieveToolName, msg.ToolName)
	assert.Equal(t, "c1", msg.CallID)
	assert.Equal(t, []models.RetrievedDocument{parisDoc}, msg.Documents)
	assert.Contains(t, msg.Content, "source=france.pdf page=1")

	assert.Equal(t, testKey, retriever.key)
	assert.Equal(t, "capital of France?", retriever.query)
	assert.Equal(t, 5, retriever.k)

	dispatch, ok := mc.Snapshot().Get(metrics.OpToolDispatch)
	require.True(t, ok)
	assert.Equal(t, int64(1), dispatch.Count)
}

func TestToolErrorsAreWrappedWithName(t *testing.T) {
	d := newDispatcher(t, &tools.Dependencies{Retriever: &fakeRetriever{err: index.ErrIndexNotFound}})
	tool, _ := d.Registry().Lookup(tools.RetrieveToolName)

	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "q"}, stateWithDocs())
	_, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.RetrieveToolName, Args: args})
	assert.ErrorIs(t, err, index.ErrIndexNotFound)
	assert.ErrorContains(t, err, tools.RetrieveToolName)
}

func TestSearchTool(t *testing.T) {
	searcher := &fakeSearcher{results: []websearch.Result{{Title: "Weather", URL: "https://w.example", Snippet: "Sunny in Paris."}}}
	model := testutil.NewScriptedModel().Text("It is sunny.")
	d := newDispatcher(t, &tools.Dependencies{Searcher: searcher, Model: model, Policy: retry.DefaultPolicy()})

	msg, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.SearchToolName, Args: map[string]any{tools.ArgQuestion: "weather in Paris"}})
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", msg.Content)
	assert.Empty(t, msg.Documents)

	calls := model.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Sunny in Paris.")
	assert.Contains(t, calls[0].Prompt, "weather in Paris")
}

func TestSearchToolRetriesTimeouts(t *testing.T) {
	searcher := &fakeSearcher{errs: []error{context.DeadlineExceeded, nil}}
	model := testutil.NewScriptedModel().Text("ok")
	policy := retry.Policy{Timeout: time.Second, MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	d := newDispatcher(t, &tools.Dependencies{Searcher: searcher, Model: model, Policy: policy})

	_, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.SearchToolName, Args: map[string]any{tools.ArgQuestion: "q"}})
	require.NoError(t, err)
	assert.Equal(t, 2, searcher.calls)
}

func TestSearchToolWithoutSearcher(t *testing.T) {
	d := newDispatcher(t, &tools.Dependencies{})
	_, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.SearchToolName, Args: map[string]any{tools.ArgQuestion: "q"}})
	assert.ErrorIs(t, err, retry.ErrCapabilityUnavailable)
}

func TestQueryToolPassesBoundDocs(t *testing.T) {
	sub := &fakeSubAgent{}
	d := newDispatcher(t, &tools.Dependencies{SubAgent: sub})
	tool, _ := d.Registry().Lookup(tools.QueryToolName)

	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "summarize"}, stateWithDocs(parisDoc))
	msg, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.QueryToolName, Args: args})
	require.NoError(t, err)
	assert.Equal(t, "sub-agent answer", msg.Content)
	assert.Equal(t, testKey, sub.key)
	assert.Equal(t, "summarize", sub.question)
	assert.Equal(t, []models.RetrievedDocument{parisDoc}, sub.docs)
}

func TestSummarizerToolReadsAllPages(t *testing.T) {
	src := testutil.NewMemorySource()
	src.Add(testKey, "france.pdf", "Page one about Paris.", "Page two about Lyon.")
	src.AddUnreadable(testKey, "broken.pdf", errors.New("corrupt"))
	model := testutil.NewScriptedModel().Text("A summary.")
	d := newDispatcher(t, &tools.Dependencies{Documents: src, Model: model})
	tool, _ := d.Registry().Lookup(tools.SummarizerToolName)

	// Bound docs are ignored by the summarizer.
	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "summarize"}, stateWithDocs(parisDoc))
	msg, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.SummarizerToolName, Args: args})
	require.NoError(t, err)
	assert.Equal(t, "A summary.", msg.Content)

	prompt := model.Calls()[0].Prompt
	assert.Contains(t, prompt, "Page one about Paris.")
	assert.Contains(t, prompt, "Page two about Lyon.")
	assert.Contains(t, prompt, "page=2")
}

func TestSummarizerToolWithoutDocuments(t *testing.T) {
	d := newDispatcher(t, &tools.Dependencies{Documents: testutil.NewMemorySource(), Model: testutil.NewScriptedModel()})
	tool, _ := d.Registry().Lookup(tools.SummarizerToolName)

	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "summarize"}, stateWithDocs())
	_, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.SummarizerToolName, Args: args})
	assert.ErrorIs(t, err, index.ErrNoDocumentsFound)
}

func TestDocRelatedToolUsesBoundDocs(t *testing.T) {
	model := testutil.NewScriptedModel().Text("Paris.")
	d := newDispatcher(t, &tools.Dependencies{Model: model})
	tool, _ := d.Registry().Lookup(tools.DocRelatedToolName)

	args := tools.Inject(tool, tools.Args{tools.ArgQuestion: "capital?"}, stateWithDocs(parisDoc))
	msg, err := d.Dispatch(context.Background(), models.ToolCall{Name: tools.DocRelatedToolName, Args: args})
	require.NoError(t, err)
	assert.Equal(t, "Paris.", msg.Content)
	assert.Contains(t, model.Calls()[0].Prompt, "The capital of France is Paris.")
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	deps := &tools.Dependencies{}
	_, err := tools.NewRegistry(tools.NewRetrieveTool(deps), tools.NewRetrieveTool(deps))
	assert.Error(t, err)
}
