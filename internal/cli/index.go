package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild a collection's index",
	Long: `Rebuild the similarity index of a collection from its PDF documents.

The whole index is replaced. Documents that cannot be read are skipped
and listed in the report.

Examples:
  docchat index -u alice -c geo`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return buildIndex(context.Background(), newPrinter(os.Stdout))
	},
}

func buildIndex(ctx context.Context, p *printer) error {
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	svc, err := a.indexService()
	if err != nil {
		return err
	}

	fmt.Fprintln(p.w, p.status(fmt.Sprintf("indexing %s/%s ...", userID, collectionID)))
	report, err := svc.Build(ctx, userID, collectionID)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	fmt.Fprintf(p.w, "%s %d documents, %d pages, %d chunks in %s\n",
		p.success("indexed"), report.Documents, report.Pages, report.Chunks,
		report.Duration.Round(time.Millisecond))
	for _, s := range report.Skipped {
		fmt.Fprintf(p.w, "  %s %s: %v\n", p.failure("skipped"), s.Name, s.Err)
	}
	return nil
}
