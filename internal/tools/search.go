package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/prompts"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/raphaelgruber/docchat/internal/websearch"
)

const defaultSearchResults = 5

// NewSearchTool creates search_tool, which answers from live web search
// snippets.
func NewSearchTool(deps *Dependencies) Tool {
	return Tool{
		Name: SearchToolName,
		Description: "Search the web for current or general information that the uploaded documents " +
			"do not cover, and answer from the search results.",
		Params: []Param{questionParam},
		Run: func(ctx context.Context, args Args) (res Result, err error) {
			if deps.Searcher == nil {
				return Result{}, ErrSearchDisabled
			}
			question := args.String(ArgQuestion)
			n := deps.SearchResults
			if n <= 0 {
				n = defaultSearchResults
			}

			track := deps.Metrics.Track(metrics.OpWebSearch)
			results, err := retry.Do(ctx, deps.Policy.WithLogger(deps.logger().With("tool", SearchToolName)), "web search", func(ctx context.Context) ([]websearch.Result, error) {
				return deps.Searcher.Search(ctx, question, n)
			})
			track(&err)
			if err != nil {
				return Result{}, err
			}
			deps.logger().Info("web search completed", "results", len(results))

			answer, err := deps.Model.Generate(ctx, prompts.SynthesizeFromSearch(question, FormatSearchResults(results)))
			if err != nil {
				return Result{}, err
			}
			return Result{Text: answer}, nil
		},
	}
}

// FormatSearchResults renders search hits for the synthesis prompt.
func FormatSearchResults(results []websearch.Result) string {
	if len(results) == 0 {
		return "(no results)"
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, r.Title, r.URL, strings.TrimSpace(r.Snippet))
	}
	return b.String()
}
