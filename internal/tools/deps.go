// Package tools provides the model-callable tools and their dispatcher.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/metrics"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/retry"
	"github.com/raphaelgruber/docchat/internal/websearch"
)

// Retriever returns the chunks of a collection's index closest to a query.
type Retriever interface {
	Retrieve(ctx context.Context, key models.CollectionKey, query string, k int) ([]models.RetrievedDocument, error)
}

// Generator produces plain text completions.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SubAgent answers a question about a fixed set of documents by running
// the document sub-agent graph.
type SubAgent interface {
	Ask(ctx context.Context, key models.CollectionKey, question string, docs []models.RetrievedDocument) (string, error)
}

// Dependencies holds shared services for tools.
// Passed to tool constructors via closure capture.
type Dependencies struct {
	Retriever Retriever
	Documents index.DocumentSource
	Searcher  websearch.Searcher // nil disables search_tool
	Model     Generator
	SubAgent  SubAgent

	RetrieveK     int
	SearchResults int
	Policy        retry.Policy

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

func (d *Dependencies) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// PrimaryTools returns the tools of the primary graph.
func PrimaryTools(deps *Dependencies) []Tool {
	return []Tool{
		NewRetrieveTool(deps),
		NewSearchTool(deps),
		NewQueryTool(deps),
	}
}

// AskTools returns the tools of the document sub-agent graph.
func AskTools(deps *Dependencies) []Tool {
	return []Tool{
		NewSummarizerTool(deps),
		NewDocRelatedTool(deps),
	}
}
