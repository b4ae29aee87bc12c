package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/extract/xlsxextract"
	"github.com/sells-group/fedrates-cli/internal/pipeline"
)

var extractXLSXCmd = &cobra.Command{
	Use:   "extract-xlsx",
	Short: "Extract percentiles from survey spreadsheets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
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

		p := pipeline.New(cfg, st, nil, xlsxextract.New(), nil, nil)
		recs, err := p.ExtractXLSX(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "extract-xlsx")
		}

		fmt.Printf("Extracted %d spreadsheet records\n", len(recs))
		return nil
	},
}

var extractPDFCmd = &cobra.Command{
	Use:   "extract-pdf",
	Short: "Extract percentiles from narrative PDFs",
	Long: `Reads the text layer of each results PDF, matches the longer-run
question sections, and parses percentile lines and tables. Pages the text
layer cannot resolve are reread through OCR unless disabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		if err := cfg.Validate(config.ModeLocal); err != nil {
			return err
		}
		if noOCR, _ := cmd.Flags().GetBool("no-ocr"); noOCR {
			cfg.Pipeline.AllowOCR = false
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

		p := pipeline.New(cfg, st, nil, nil, newPDFExtractor(), nil)
		recs, err := p.ExtractPDF(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "extract-pdf")
		}

		fmt.Printf("Extracted %d narrative records\n", len(recs))
		return nil
	},
}

var extractVisionCmd = &cobra.Command{
	Use:   "extract-vision",
	Short: "Extract percentiles from PDFs via the vision model",
	Long: `Submits whole PDFs to the model and asks for the longer-run
percentile table. Months already covered by spreadsheet records are
skipped before any call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		vis, err := newVisionExtractor()
		if err != nil {
			return err
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

		p := pipeline.New(cfg, st, nil, nil, nil, vis)
		recs, err := p.ExtractVision(ctx, docs)
		if err != nil {
			return eris.Wrap(err, "extract-vision")
		}

		fmt.Printf("Extracted %d vision records\n", len(recs))
		return nil
	},
}

var extractDotplotCmd = &cobra.Command{
	Use:   "extract-dotplot",
	Short: "Extract longer-run dot counts from projection materials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext(cmd)
		defer stop()

		vis, err := newVisionExtractor()
		if err != nil {
			return err
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

		p := pipeline.New(cfg, st, nil, nil, nil, vis)
		recs, err := p.ExtractDotPlots(ctx, pipeline.DotPlotDocs(docs))
		if err != nil {
			return eris.Wrap(err, "extract-dotplot")
		}

		fmt.Printf("Extracted %d dot plot records\n", len(recs))
		return nil
	},
}

func init() {
	extractPDFCmd.Flags().Bool("no-ocr", false, "skip the OCR reread stage")
	rootCmd.AddCommand(extractXLSXCmd, extractPDFCmd, extractVisionCmd, extractDotplotCmd)
}
