package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/extract/vision"
	"github.com/sells-group/fedrates-cli/internal/extract/xlsxextract"
	"github.com/sells-group/fedrates-cli/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the whole pipeline",
	Long: `Syncs documents, runs every extraction stage, and reconciles the
sources into the final table. The vision stages run only when an
Anthropic API key is configured; use --no-vision to skip them anyway.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
		}
		if force, _ := cmd.Flags().GetBool("force"); force {
			cfg.Fetch.Force = true
		}

		var vis *vision.Extractor
		noVision, _ := cmd.Flags().GetBool("no-vision")
		if !noVision && cfg.Anthropic.Key != "" {
			var err error
			vis, err = newVisionExtractor()
			if err != nil {
				return err
			}
		}

		docs, err := loadDocs()
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var fetch = newFetcher()
		if local, _ := cmd.Flags().GetBool("local"); local {
			fetch = nil
		}

		p := pipeline.New(cfg, st, fetch, xlsxextract.New(), newPDFExtractor(), vis)
		final, err := p.Run(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		out := filepath.Join(cfg.Data.OutDir, pipeline.FinalFile)
		zap.L().Info("run: done", zap.Int("records", len(final)), zap.String("output", out))
		fmt.Printf("Wrote %d records to %s\n", len(final), out)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("force", false, "refetch documents even when unchanged")
	runCmd.Flags().Bool("local", false, "skip the download stage, use files already on disk")
	runCmd.Flags().Bool("no-vision", false, "skip the vision stages even when a key is configured")
	rootCmd.AddCommand(runCmd)
}
