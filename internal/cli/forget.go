package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete a collection's conversation",
	Long: `Delete the conversation of a collection, including the document
sub-agent's. Documents and the index are kept.

Examples:
  docchat forget -u alice -c geo`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := getApp(ctx)
		if err != nil {
			return err
		}
		threads, err := a.threads(ctx)
		if err != nil {
			return err
		}
		if err := threads.Forget(ctx, userID, collectionID); err != nil {
			return err
		}
		p := newPrinter(os.Stdout)
		fmt.Fprintf(p.w, "%s conversation of %s/%s\n", p.success("forgot"), userID, collectionID)
		return nil
	},
}
