package tools

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/docchat/internal/index"
	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/prompts"
)

// NewSummarizerTool creates summarizer_tool. It re-reads every page of the
// collection's raw documents and ignores the retrieved chunks.
func NewSummarizerTool(deps *Dependencies) Tool {
	return Tool{
		Name:        SummarizerToolName,
		Description: "Summarize the whole document collection with respect to the question.",
		Params:      []Param{questionParam, collectionIDParam, userIDParam},
		Run: func(ctx context.Context, args Args) (Result, error) {
			key, err := args.Key()
			if err != nil {
				return Result{}, err
			}
			pages, err := collectionPages(ctx, deps, key)
			if err != nil {
				return Result{}, err
			}
			summary, err := deps.Model.Generate(ctx, prompts.Summarize(args.String(ArgQuestion), pages))
			if err != nil {
				return Result{}, err
			}
			return Result{Text: summary}, nil
		},
	}
}

func collectionPages(ctx context.Context, deps *Dependencies, key models.CollectionKey) ([]models.RetrievedDocument, error) {
	names, err := deps.Documents.List(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var pages []models.RetrievedDocument
	for _, name := range names {
		ps, err := deps.Documents.Pages(ctx, key, name)
		if err != nil {
			deps.logger().Warn("skipping unreadable document", "key", key.String(), "document", name, "error", err)
			continue
		}
		for _, p := range ps {
			pages = append(pages, models.RetrievedDocument{
				Content:    p.Text,
				Source:     p.Source,
				Page:       p.Number,
				ChunkIndex: len(pages),
			})
		}
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", index.ErrNoDocumentsFound, key)
	}
	return pages, nil
}
