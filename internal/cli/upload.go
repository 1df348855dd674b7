package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var uploadBuild bool

var uploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>...",
	Short: "Add PDF documents to a collection",
	Long: `Copy PDF documents into a collection. Files with the same name are
replaced. Non-PDF files are rejected and reported.

The index is not rebuilt unless --build is given.

Examples:
  docchat upload -u alice -c geo france.pdf spain.pdf
  docchat upload -u alice -c geo --build reports/*.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().BoolVar(&uploadBuild, "build", false, "rebuild the index after uploading")
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := getApp(ctx)
	if err != nil {
		return err
	}
	svc, err := a.indexService()
	if err != nil {
		return err
	}

	report, err := svc.Upload(ctx, userID, collectionID, args)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	p := newPrinter(os.Stdout)
	for _, name := range report.Uploaded {
		fmt.Fprintf(p.w, "%s %s\n", p.success("uploaded"), name)
	}
	for _, f := range report.Failed {
		fmt.Fprintf(p.w, "%s %s: %v\n", p.failure("failed"), f.Path, f.Err)
	}
	fmt.Fprintf(p.w, "%d uploaded, %d failed\n", len(report.Uploaded), len(report.Failed))

	if uploadBuild && len(report.Uploaded) > 0 {
		return buildIndex(ctx, p)
	}
	if len(report.Uploaded) > 0 {
		fmt.Fprintln(p.w, p.hint("run 'docchat index' to make the new documents searchable"))
	}
	return nil
}
