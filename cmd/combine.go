package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fedrates-cli/internal/pipeline"
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Reconcile intermediate CSVs into the final table",
	Long: `Reads the per-stage intermediate CSVs from the output dir and keeps
the highest-priority source per survey date and panel. Runs entirely from
the intermediates; nothing is re-extracted and the store is not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Hints are best effort: combine still works without a manifest
		// or data dir.
		docs, err := loadDocs()
		if err != nil {
			docs = nil
		}

		final, err := pipeline.CombineFiles(cfg.Data.OutDir, docs, args...)
		if err != nil {
			return eris.Wrap(err, "combine")
		}

		out := filepath.Join(cfg.Data.OutDir, pipeline.FinalFile)
		fmt.Printf("Wrote %d records to %s\n", len(final), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(combineCmd)
}
