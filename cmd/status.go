package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored record counts per source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.CountsBySource(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}

		if len(counts) == 0 {
			zap.L().Info("no records stored, run an extraction stage first")
			return nil
		}

		formatCounts(os.Stdout, counts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatCounts writes the per-source tallies in fixed source-priority order.
func formatCounts(out io.Writer, counts map[model.Source]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tRECORDS")
	_, _ = fmt.Fprintln(w, "------\t-------")

	total := 0
	for _, s := range []model.Source{
		model.SourceXLSX,
		model.SourceVision,
		model.SourcePDFText,
		model.SourcePDFTable,
		model.SourcePDFOCR,
	} {
		if n, ok := counts[s]; ok {
			_, _ = fmt.Fprintf(w, "%s\t%d\n", s, n)
			total += n
		}
	}
	_, _ = fmt.Fprintf(w, "total\t%d\n", total)
	_ = w.Flush()
}
