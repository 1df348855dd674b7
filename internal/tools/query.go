package tools

import (
	"context"
	"errors"
)

// NewQueryTool creates query_tool, which hands the question and the
// documents bound by retrieval to the document sub-agent.
func NewQueryTool(deps *Dependencies) Tool {
	return Tool{
		Name: QueryToolName,
		Description: "Answer the question from the documents already retrieved in this conversation, " +
			"including summaries and document-specific questions. Only available after retrieval.",
		Params: []Param{questionParam, collectionIDParam, userIDParam, docsParam},
		Run: func(ctx context.Context, args Args) (Result, error) {
			if deps.SubAgent == nil {
				return Result{}, errors.New("document sub-agent not configured")
			}
			key, err := args.Key()
			if err != nil {
				return Result{}, err
			}
			answer, err := deps.SubAgent.Ask(ctx, key, args.String(ArgQuestion), args.Docs())
			if err != nil {
				return Result{}, err
			}
			return Result{Text: answer}, nil
		},
	}
}
