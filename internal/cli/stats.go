package cli

import (
	"fmt"
	"io"

	"github.com/raphaelgruber/docchat/internal/metrics"
)

// printStats displays runtime statistics collected during the command.
func printStats(w io.Writer, snap metrics.Snapshot) {
	fmt.Fprintf(w, "\nRuntime Statistics\n")
	fmt.Fprintf(w, "═══════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", snap.UptimeSeconds)

	for _, op := range snap.Operations {
		fmt.Fprintf(w, "\n%s:\n", op.Name)
		fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", op.Count, op.Errors, op.TotalTimeMs)
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
		if op.InputTokens != nil && op.OutputTokens != nil {
			fmt.Fprintf(w, "  Tokens: %d in, %d out\n", *op.InputTokens, *op.OutputTokens)
		}
	}
}
