package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/docchat/internal/service"
	"github.com/spf13/cobra"
)

var askTrace bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question about a collection",
	Long: `Ask a question about a collection and print the answer.

The question continues the collection's conversation, so it may refer to
earlier questions and answers.

Examples:
  docchat ask -u alice -c geo "What is the capital of France?"
  docchat ask -u alice -c geo --trace "And of Spain?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askTrace, "trace", false, "print the steps and tools of the turn")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	turns, err := a.turnController(ctx)
	if err != nil {
		return err
	}

	res, err := turns.Turn(ctx, userID, collectionID, strings.Join(args, " "))
	if err != nil {
		return err
	}
	printTurn(newPrinter(os.Stdout), res, askTrace)
	return nil
}

func printTurn(p *printer, res *service.TurnResult, trace bool) {
	fmt.Fprintln(p.w, res.Answer)
	if !trace || res.Trace == nil {
		return
	}
	steps := make([]string, len(res.Trace.Steps))
	for i, s := range res.Trace.Steps {
		steps[i] = string(s)
	}
	fmt.Fprintln(p.w, p.hint("steps: "+strings.Join(steps, " > ")))
	if len(res.Trace.Tools) > 0 {
		fmt.Fprintln(p.w, p.hint("tools: "+strings.Join(res.Trace.Tools, ", ")))
	}
	if res.Trace.IgnoredCalls > 0 || res.Trace.Reprompts > 0 {
		fmt.Fprintln(p.w, p.hint(fmt.Sprintf("ignored calls: %d, reprompts: %d", res.Trace.IgnoredCalls, res.Trace.Reprompts)))
	}
}
