package tools

import (
	"context"

	"github.com/raphaelgruber/docchat/internal/prompts"
)

// NewDocRelatedTool creates doc_related_tool, which answers strictly from
// the documents bound to the conversation.
func NewDocRelatedTool(deps *Dependencies) Tool {
	return Tool{
		Name:        DocRelatedToolName,
		Description: "Answer a specific question using only the retrieved documents.",
		Params:      []Param{questionParam, docsParam},
		Run: func(ctx context.Context, args Args) (Result, error) {
			answer, err := deps.Model.Generate(ctx, prompts.SynthesizeFromDocuments(args.String(ArgQuestion), args.Docs()))
			if err != nil {
				return Result{}, err
			}
			return Result{Text: answer}, nil
		},
	}
}
