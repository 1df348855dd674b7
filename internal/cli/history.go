package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/raphaelgruber/docchat/internal/models"
	"github.com/raphaelgruber/docchat/internal/prompts"
	"github.com/spf13/cobra"
)

var historyAsk bool

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a collection's conversation",
	Long: `Print the committed conversation of a collection, including tool calls
and their results.

Examples:
  docchat history -u alice -c geo
  docchat history -u alice -c geo --ask`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().BoolVar(&historyAsk, "ask", false, "show the document sub-agent conversation")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	threads, err := a.threads(ctx)
	if err != nil {
		return err
	}

	variant := models.VariantPrimary
	if historyAsk {
		variant = models.VariantAsk
	}
	msgs, err := threads.History(ctx, userID, collectionID, variant)
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	if len(msgs) == 0 {
		fmt.Fprintln(p.w, p.hint("no conversation yet"))
		return nil
	}
	fmt.Fprint(p.w, prompts.Scratchpad(msgs))
	return nil
}
