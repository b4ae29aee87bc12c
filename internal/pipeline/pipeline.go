// Package pipeline wires the extraction stages together: document sync,
// spreadsheet and narrative extraction, the serialized vision pass, and
// reconciliation into the final output table.
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/dotplot"
	"github.com/sells-group/fedrates-cli/internal/extract/pdfextract"
	"github.com/sells-group/fedrates-cli/internal/extract/vision"
	"github.com/sells-group/fedrates-cli/internal/extract/xlsxextract"
	"github.com/sells-group/fedrates-cli/internal/fetcher"
	"github.com/sells-group/fedrates-cli/internal/manifest"
	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/reconcile"
	"github.com/sells-group/fedrates-cli/internal/store"
)

// Artifact names under the output directory. The four intermediate files
// are stable per-stage outputs; combine consumes them without re-running
// extraction.
const (
	XLSXExtractsFile    = "xlsx_extracts.csv"
	PDFExtractsFile     = "pdf_extracts.csv"
	VisionExtractsFile  = "vision_extracts.csv"
	DotplotExtractsFile = "dotplot_extracts.csv"
	FinalFile           = "ff_longrun_percentiles.csv"
)

const defaultWorkers = 4

// Pipeline runs the extraction stages over a set of source documents.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	fetch  fetcher.Fetcher
	xlsx   *xlsxextract.Extractor
	pdf    *pdfextract.Extractor
	vision *vision.Extractor
}

// New assembles a pipeline. fetch may be nil when the documents are
// already on disk; vis may be nil when no API key is configured, which
// disables the vision stages.
func New(
	cfg *config.Config,
	st store.Store,
	fetch fetcher.Fetcher,
	xlsx *xlsxextract.Extractor,
	pdf *pdfextract.Extractor,
	vis *vision.Extractor,
) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		fetch:  fetch,
		xlsx:   xlsx,
		pdf:    pdf,
		vision: vis,
	}
}

// Run executes the whole pipeline: sync, local extraction, the vision
// pass when configured, and reconciliation into the final table. A run
// row brackets the work so partial runs are visible in the store.
func (p *Pipeline) Run(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	runID, err := p.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: start run")
	}
	log := zap.L().With(zap.String("run_id", runID))
	log.Info("pipeline: run started", zap.Int("documents", len(docs)))

	final, runErr := p.runStages(ctx, docs)

	status := "complete"
	if runErr != nil {
		status = "failed"
	}
	if err := p.store.FinishRun(ctx, runID, status, len(final)); err != nil {
		log.Warn("pipeline: finish run", zap.Error(err))
	}
	return final, runErr
}

func (p *Pipeline) runStages(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	if p.fetch != nil {
		var err error
		docs, err = p.Sync(ctx, docs)
		if err != nil {
			return nil, err
		}
	}

	if _, err := p.ExtractXLSX(ctx, docs); err != nil {
		return nil, err
	}
	if _, err := p.ExtractPDF(ctx, docs); err != nil {
		return nil, err
	}

	if p.vision != nil {
		if _, err := p.ExtractVision(ctx, docs); err != nil {
			return nil, err
		}
		if _, err := p.ExtractDotPlots(ctx, DotPlotDocs(docs)); err != nil {
			return nil, err
		}
	} else {
		zap.L().Info("pipeline: vision stages disabled, no API key configured")
	}

	return p.Combine(ctx)
}

// Sync downloads every document that carries a URL, writing each under
// the data dir and recording its ETag so unchanged documents are skipped
// on later runs. Per-document failures are logged and the rest of the
// manifest proceeds. Returns the documents with local paths filled in.
func (p *Pipeline) Sync(ctx context.Context, docs []model.SourceDocument) ([]model.SourceDocument, error) {
	synced := make([]model.SourceDocument, 0, len(docs))
	downloaded, skipped, failed := 0, 0, 0

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return synced, eris.Wrap(err, "pipeline: sync canceled")
		}
		if doc.LocalPath == "" {
			doc.LocalPath = manifest.LocalPathFor(doc.URL, p.cfg.Data.Dir)
		}
		if doc.URL == "" {
			synced = append(synced, doc)
			continue
		}

		etag, err := p.store.DocumentETag(ctx, doc.URL)
		if err != nil {
			return synced, eris.Wrap(err, "pipeline: document etag")
		}

		_, statErr := os.Stat(doc.LocalPath)
		exists := statErr == nil
		switch {
		case p.cfg.Fetch.Force:
			etag = ""
		case exists && etag == "":
			// On disk but never fetched conditionally; leave it alone.
			skipped++
			synced = append(synced, doc)
			continue
		case !exists:
			etag = ""
		}

		// Failed documents stay in the list: the extractors turn a
		// missing file into an all-null record, so every input document
		// still yields a row.
		body, newETag, changed, err := p.fetch.DownloadIfChanged(ctx, doc.URL, etag)
		if err != nil {
			zap.L().Warn("pipeline: download failed",
				zap.String("url", doc.URL),
				zap.Error(err),
			)
			failed++
			synced = append(synced, doc)
			continue
		}
		if !changed {
			skipped++
			synced = append(synced, doc)
			continue
		}

		if err := writeBody(doc.LocalPath, body); err != nil {
			zap.L().Warn("pipeline: write download",
				zap.String("url", doc.URL),
				zap.String("path", doc.LocalPath),
				zap.Error(err),
			)
			failed++
			synced = append(synced, doc)
			continue
		}
		if err := p.store.SaveDocument(ctx, doc.URL, doc.LocalPath, newETag); err != nil {
			return synced, eris.Wrap(err, "pipeline: save document")
		}
		downloaded++
		synced = append(synced, doc)
	}

	zap.L().Info("pipeline: sync complete",
		zap.Int("downloaded", downloaded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return synced, nil
}

// ExtractXLSX runs the spreadsheet extractor over every XLSX document on
// a bounded worker pool, then persists the records and the intermediate
// artifact.
func (p *Pipeline) ExtractXLSX(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	targets := docsOfKind(docs, model.KindXLSX)
	results := make([][]model.PercentileRecord, len(targets))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, doc := range targets {
		g.Go(func() error {
			results[i] = p.xlsx.Extract(doc)
			return nil
		})
	}
	_ = g.Wait()

	recs := flatten(results)
	if err := p.persist(ctx, recs, XLSXExtractsFile); err != nil {
		return recs, err
	}
	return recs, nil
}

// ExtractPDF runs the narrative extractor over every PDF document on a
// bounded worker pool.
func (p *Pipeline) ExtractPDF(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	targets := docsOfKind(docs, model.KindPDF)
	results := make([][]model.PercentileRecord, len(targets))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, doc := range targets {
		g.Go(func() error {
			results[i] = p.pdf.Extract(gCtx, doc, p.cfg.Pipeline.AllowOCR)
			return nil
		})
	}
	_ = g.Wait()

	recs := flatten(results)
	if err := p.persist(ctx, recs, PDFExtractsFile); err != nil {
		return recs, err
	}
	return recs, nil
}

// ExtractVision runs the vision extractor over PDF documents serially.
// Months already covered by spreadsheet records are skipped before any
// model call; projection materials are left to the dot-plot stage.
func (p *Pipeline) ExtractVision(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	if p.vision == nil {
		return nil, eris.New("pipeline: vision extractor not configured")
	}

	covered, err := p.store.DatesWithSource(ctx, model.SourceXLSX)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: covered dates")
	}
	p.vision.SetCoveredDates(covered)

	var recs []model.PercentileRecord
	skipped := 0
	for _, doc := range docsOfKind(docs, model.KindPDF) {
		if err := ctx.Err(); err != nil {
			return recs, eris.Wrap(err, "pipeline: vision canceled")
		}
		if isDotPlot(doc) {
			continue
		}
		if p.vision.Skip(doc) {
			skipped++
			continue
		}
		recs = append(recs, p.vision.ExtractPercentiles(ctx, doc))
	}

	zap.L().Info("pipeline: vision pass complete",
		zap.Int("records", len(recs)),
		zap.Int("skipped_covered", skipped),
	)
	if err := p.persist(ctx, recs, VisionExtractsFile); err != nil {
		return recs, err
	}
	return recs, nil
}

// ExtractDotPlots reads the longer-run dot counts out of projection
// documents and summarizes each into a percentile record. Documents
// without a usable dot plot still yield a marker record.
func (p *Pipeline) ExtractDotPlots(ctx context.Context, docs []model.SourceDocument) ([]model.PercentileRecord, error) {
	if p.vision == nil {
		return nil, eris.New("pipeline: vision extractor not configured")
	}

	var recs []model.PercentileRecord
	for _, doc := range docsOfKind(docs, model.KindPDF) {
		if err := ctx.Err(); err != nil {
			return recs, eris.Wrap(err, "pipeline: dot plots canceled")
		}

		dc, notes := p.vision.ExtractDotCounts(ctx, doc)
		var rec model.PercentileRecord
		if dc == nil {
			rec = model.PercentileRecord{
				SurveyDate: doc.SurveyDate,
				Panel:      model.PanelCombined,
				Concept:    model.ConceptFFLongerRun,
				Source:     model.SourceVision,
				Notes:      notes,
			}
		} else {
			rec = dotplot.ToRecord(*dc, dotplot.Summarize(*dc))
		}
		rec.FileURL = doc.URL
		rec.LocalPath = doc.LocalPath
		recs = append(recs, rec)
	}

	if err := p.persist(ctx, recs, DotplotExtractsFile); err != nil {
		return recs, err
	}
	return recs, nil
}

// Combine reconciles every stored record into the final table, writes it
// to the output directory, and logs the per-source summary.
func (p *Pipeline) Combine(ctx context.Context) ([]model.PercentileRecord, error) {
	recs, err := p.store.RecordsBySource(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load records")
	}

	final := reconcile.Reconcile(recs)
	if err := WriteRecordsCSV(filepath.Join(p.cfg.Data.OutDir, FinalFile), final); err != nil {
		return final, err
	}
	logSummary(final)
	return final, nil
}

// CombineFiles reconciles previously written intermediate CSVs into the
// final table without touching the store or re-running extraction.
// Missing intermediates are skipped so partial stage runs still combine.
// docs supplies survey-type hints: a Combined record whose document is a
// single-panel survey is reassigned to that panel before grouping.
func CombineFiles(outDir string, docs []model.SourceDocument, paths ...string) ([]model.PercentileRecord, error) {
	if len(paths) == 0 {
		for _, name := range []string{XLSXExtractsFile, PDFExtractsFile, VisionExtractsFile, DotplotExtractsFile} {
			paths = append(paths, filepath.Join(outDir, name))
		}
	}

	hints := panelHints(docs)
	var all []model.PercentileRecord
	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		recs, err := ReadRecordsCSV(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			all = append(all, reconcile.ReassignPanel(rec, hints[rec.LocalPath]))
		}
	}

	final := reconcile.Reconcile(all)
	if err := WriteRecordsCSV(filepath.Join(outDir, FinalFile), final); err != nil {
		return final, err
	}
	logSummary(final)
	return final, nil
}

// panelHints maps document local paths to their survey-type hints.
func panelHints(docs []model.SourceDocument) map[string]model.Panel {
	hints := make(map[string]model.Panel, len(docs))
	for _, d := range docs {
		if d.LocalPath != "" && d.SurveyType != "" {
			hints[d.LocalPath] = d.SurveyType
		}
	}
	return hints
}

func (p *Pipeline) workers() int {
	if p.cfg.Pipeline.Workers > 0 {
		return p.cfg.Pipeline.Workers
	}
	return defaultWorkers
}

// persist upserts stage records and writes the intermediate artifact.
func (p *Pipeline) persist(ctx context.Context, recs []model.PercentileRecord, artifact string) error {
	if len(recs) == 0 {
		zap.L().Info("pipeline: stage produced no records", zap.String("artifact", artifact))
		return nil
	}
	if err := p.store.UpsertRecords(ctx, recs); err != nil {
		return eris.Wrapf(err, "pipeline: upsert %s records", artifact)
	}
	if err := WriteRecordsCSV(filepath.Join(p.cfg.Data.OutDir, artifact), recs); err != nil {
		return err
	}
	zap.L().Info("pipeline: stage complete",
		zap.String("artifact", artifact),
		zap.Int("records", len(recs)),
	)
	return nil
}

func writeBody(path string, body io.ReadCloser) error {
	defer body.Close()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "pipeline: create %s", path)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return eris.Wrapf(err, "pipeline: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "pipeline: close %s", path)
	}
	return nil
}

func docsOfKind(docs []model.SourceDocument, kind model.DocumentKind) []model.SourceDocument {
	var out []model.SourceDocument
	for _, d := range docs {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// DotPlotDocs selects committee projection materials, which carry "proj"
// or "dot" in the filename on the Board site.
func DotPlotDocs(docs []model.SourceDocument) []model.SourceDocument {
	var out []model.SourceDocument
	for _, d := range docs {
		if d.Kind == model.KindPDF && isDotPlot(d) {
			out = append(out, d)
		}
	}
	return out
}

func isDotPlot(doc model.SourceDocument) bool {
	name := doc.LocalPath
	if name == "" {
		name = doc.URL
	}
	base := strings.ToLower(filepath.Base(name))
	return strings.Contains(base, "proj") || strings.Contains(base, "dot")
}

func flatten(results [][]model.PercentileRecord) []model.PercentileRecord {
	var recs []model.PercentileRecord
	for _, rs := range results {
		recs = append(recs, rs...)
	}
	return recs
}

var summarySources = []model.Source{
	model.SourceXLSX,
	model.SourceVision,
	model.SourcePDFText,
	model.SourcePDFTable,
	model.SourcePDFOCR,
}

func logSummary(recs []model.PercentileRecord) {
	counts := make(map[model.Source]int)
	missingMedian := 0
	for _, r := range recs {
		counts[r.Source]++
		if r.Pctl50 == nil {
			missingMedian++
		}
	}

	fields := []zap.Field{
		zap.Int("total", len(recs)),
		zap.Int("missing_median", missingMedian),
	}
	for _, s := range summarySources {
		fields = append(fields, zap.Int(string(s), counts[s]))
	}
	zap.L().Info("pipeline: records by source", fields...)
}
