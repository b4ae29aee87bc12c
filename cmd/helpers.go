package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/extract/pdfextract"
	"github.com/sells-group/fedrates-cli/internal/extract/vision"
	"github.com/sells-group/fedrates-cli/internal/fetcher"
	"github.com/sells-group/fedrates-cli/internal/manifest"
	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/ocr"
	"github.com/sells-group/fedrates-cli/internal/store"
	"github.com/sells-group/fedrates-cli/pkg/anthropic"
)

// signalContext derives a context canceled on SIGINT/SIGTERM so a long
// extraction pass shuts down cleanly mid-document.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// loadDocs builds the document list from the manifest CSV when present,
// otherwise from the files already sitting in the data dir.
func loadDocs() ([]model.SourceDocument, error) {
	if _, err := os.Stat(cfg.Data.Manifest); err == nil {
		docs, err := manifest.Load(cfg.Data.Manifest)
		if err != nil {
			return nil, err
		}
		for i := range docs {
			if docs[i].LocalPath == "" {
				docs[i].LocalPath = manifest.LocalPathFor(docs[i].URL, cfg.Data.Dir)
			}
		}
		return docs, nil
	}
	return manifest.ScanDir(cfg.Data.Dir)
}

func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}

func newPDFExtractor() *pdfextract.Extractor {
	text := ocr.NewPdfToText(cfg.OCR.PdfToTextPath)
	reread := ocr.NewPixelReader(cfg.OCR.MistralKey, cfg.OCR.MistralModel)
	return pdfextract.New(text, reread)
}

// newVisionExtractor validates the vision credentials before building the
// extractor, so a missing key fails at startup rather than mid-run.
func newVisionExtractor() (*vision.Extractor, error) {
	if err := cfg.Validate(config.ModeVision); err != nil {
		return nil, eris.Wrap(err, "vision extractor")
	}
	client := anthropic.NewClient(cfg.Anthropic.Key)
	return vision.New(client, vision.Options{
		Model:        cfg.Anthropic.Model,
		CallInterval: time.Duration(cfg.Anthropic.CallIntervalSecs) * time.Second,
	}), nil
}
