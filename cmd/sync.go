package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/manifest"
	"github.com/sells-group/fedrates-cli/internal/pipeline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download survey documents from the manifest",
	Long: `Downloads every document listed in the manifest CSV into the data dir.

Documents already on disk are skipped; documents fetched before are
refreshed only when their ETag changed. Use --force to refetch everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
		}
		if force, _ := cmd.Flags().GetBool("force"); force {
			cfg.Fetch.Force = true
		}

		docs, err := manifest.Load(cfg.Data.Manifest)
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p := pipeline.New(cfg, st, newFetcher(), nil, nil, nil)
		synced, err := p.Sync(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "sync")
		}

		zap.L().Info("sync: done", zap.Int("documents", len(synced)))
		fmt.Printf("Synced %d documents into %s\n", len(synced), cfg.Data.Dir)
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("force", false, "refetch documents even when unchanged")
	rootCmd.AddCommand(syncCmd)
}
