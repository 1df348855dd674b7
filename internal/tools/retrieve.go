package tools

import (
	"context"

	"github.com/raphaelgruber/docchat/internal/prompts"
)

const defaultRetrieveK = 5

// NewRetrieveTool creates retrieve_tool, which looks the question up in the
// collection's similarity index.
func NewRetrieveTool(deps *Dependencies) Tool {
	return Tool{
		Name: RetrieveToolName,
		Description: "Retrieve passages relevant to the question from the user's uploaded documents. " +
			"Call this first for any question that may be answered by the documents.",
		Params: []Param{questionParam, collectionIDParam, userIDParam},
		Run: func(ctx context.Context, args Args) (Result, error) {
			key, err := args.Key()
			if err != nil {
				return Result{}, err
			}
			k := deps.RetrieveK
			if k <= 0 {
				k = defaultRetrieveK
			}
			docs, err := deps.Retriever.Retrieve(ctx, key, args.String(ArgQuestion), k)
			if err != nil {
				return Result{}, err
			}
			deps.logger().Info("retrieved documents", "key", key.String(), "count", len(docs))
			return Result{Text: prompts.FormatDocuments(docs), Docs: docs}, nil
		},
	}
}
