package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fedrates-cli/internal/config"
	"github.com/sells-group/fedrates-cli/internal/extract/pdfextract"
	"github.com/sells-group/fedrates-cli/internal/extract/vision"
	"github.com/sells-group/fedrates-cli/internal/extract/xlsxextract"
	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/ocr"
	"github.com/sells-group/fedrates-cli/internal/store"
	"github.com/sells-group/fedrates-cli/pkg/anthropic"
)

type fakeFetcher struct {
	bodies   map[string]string
	etags    map[string]string
	fail     map[string]bool
	calls    int
	lastETag string
}

func (f *fakeFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	body, _, _, err := f.DownloadIfChanged(ctx, url, "")
	return body, err
}

func (f *fakeFetcher) DownloadToFile(ctx context.Context, url, path string) (int64, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	return int64(len(data)), os.WriteFile(path, data, 0o644)
}

func (f *fakeFetcher) DownloadIfChanged(ctx context.Context, url, etag string) (io.ReadCloser, string, bool, error) {
	f.calls++
	f.lastETag = etag
	if f.fail[url] {
		return nil, "", false, io.ErrUnexpectedEOF
	}
	current := f.etags[url]
	if etag != "" && etag == current {
		return nil, current, false, nil
	}
	return io.NopCloser(strings.NewReader(f.bodies[url])), current, true, nil
}

type fakeText struct {
	pages []ocr.Page
}

func (f *fakeText) ReadPages(ctx context.Context, pdfPath string) ([]ocr.Page, error) {
	return f.pages, nil
}

type fakeAI struct {
	replies []string
	calls   int
}

func (f *fakeAI) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	reply := ""
	if f.calls < len(f.replies) {
		reply = f.replies[f.calls]
	}
	f.calls++
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: reply}},
	}, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Data: config.DataConfig{
			Dir:    t.TempDir(),
			OutDir: t.TempDir(),
		},
		Pipeline: config.PipelineConfig{Workers: 2, AllowOCR: true},
	}
}

func writeLongFormatWorkbook(t *testing.T, dir string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Results")
	require.NoError(t, err)

	header := sheet.AddRow()
	for _, c := range []string{"value_tag", "aggregation", "aggregation_value", "panel_type"} {
		header.AddCell().Value = c
	}
	for _, cells := range [][]string{
		{"fftr_modalpe_longerrun", "p25", "2.88", "Primary Dealer"},
		{"fftr_modalpe_longerrun", "median", "3.13", "Primary Dealer"},
		{"fftr_modalpe_longerrun", "p75", "3.38", "Primary Dealer"},
	} {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().Value = c
		}
	}

	path := filepath.Join(dir, "jun-2024-spd-results.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

const narrativePage = `Question 12. Longer run target federal funds rate expectations.

25th Pctl: 3.00
Median: 3.13
75th Pctl: 3.25
`

func writeFakePDF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))
	return path
}

func TestSyncDownloadsAndRecordsETag(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	fetch := &fakeFetcher{
		bodies: map[string]string{"https://www.newyorkfed.org/2024/results.xlsx": "workbook-bytes"},
		etags:  map[string]string{"https://www.newyorkfed.org/2024/results.xlsx": "v1"},
	}
	p := New(cfg, st, fetch, nil, nil, nil)

	docs := []model.SourceDocument{
		{URL: "https://www.newyorkfed.org/2024/results.xlsx", Kind: model.KindXLSX},
		{LocalPath: "/tmp/local-only.pdf", Kind: model.KindPDF},
	}

	synced, err := p.Sync(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, synced, 2)
	assert.NotEmpty(t, synced[0].LocalPath)

	data, err := os.ReadFile(synced[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "workbook-bytes", string(data))

	etag, err := st.DocumentETag(context.Background(), docs[0].URL)
	require.NoError(t, err)
	assert.Equal(t, "v1", etag)

	// The stored ETag now matches, so the next sync gets a conditional
	// not-modified and rewrites nothing.
	_, err = p.Sync(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, "v1", fetch.lastETag)
}

func TestSyncSkipsExistingWithoutETag(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	fetch := &fakeFetcher{bodies: map[string]string{}}
	p := New(cfg, st, fetch, nil, nil, nil)

	url := "https://www.newyorkfed.org/2024/results.pdf"
	local := filepath.Join(cfg.Data.Dir, "results.pdf")
	require.NoError(t, os.WriteFile(local, []byte("already here"), 0o644))

	synced, err := p.Sync(context.Background(), []model.SourceDocument{
		{URL: url, LocalPath: local, Kind: model.KindPDF},
	})
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Zero(t, fetch.calls)
}

func TestSyncForceRefetches(t *testing.T) {
	cfg := testConfig(t)
	cfg.Fetch.Force = true
	st := newTestStore(t)

	url := "https://www.newyorkfed.org/2024/results.pdf"
	require.NoError(t, st.SaveDocument(context.Background(), url, "x", "v1"))

	fetch := &fakeFetcher{
		bodies: map[string]string{url: "fresh"},
		etags:  map[string]string{url: "v2"},
	}
	p := New(cfg, st, fetch, nil, nil, nil)

	synced, err := p.Sync(context.Background(), []model.SourceDocument{{URL: url, Kind: model.KindPDF}})
	require.NoError(t, err)
	require.Len(t, synced, 1)

	assert.Empty(t, fetch.lastETag)
	data, err := os.ReadFile(synced[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestSyncDownloadFailureContinues(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)

	badURL := "https://www.newyorkfed.org/2024/broken.xlsx"
	goodURL := "https://www.newyorkfed.org/2024/results.xlsx"
	fetch := &fakeFetcher{
		bodies: map[string]string{goodURL: "ok"},
		fail:   map[string]bool{badURL: true},
	}
	p := New(cfg, st, fetch, xlsxextract.New(), nil, nil)

	synced, err := p.Sync(context.Background(), []model.SourceDocument{
		{URL: badURL, Kind: model.KindXLSX},
		{URL: goodURL, Kind: model.KindXLSX},
	})
	require.NoError(t, err)

	// The failed download stays in the list so downstream stages still
	// account for it.
	require.Len(t, synced, 2)
	assert.Equal(t, badURL, synced[0].URL)
	assert.Equal(t, goodURL, synced[1].URL)

	recs, err := p.ExtractXLSX(context.Background(), synced[:1])
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Pctl50)
	assert.Contains(t, recs[0].Notes, "open failed")
}

func TestExtractXLSXStage(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	p := New(cfg, st, nil, xlsxextract.New(), nil, nil)

	path := writeLongFormatWorkbook(t, cfg.Data.Dir)
	docs := []model.SourceDocument{{
		LocalPath:  path,
		Kind:       model.KindXLSX,
		SurveyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}}

	recs, err := p.ExtractXLSX(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.SourceXLSX, recs[0].Source)
	require.NotNil(t, recs[0].Pctl50)
	assert.Equal(t, 3.13, *recs[0].Pctl50)

	counts, err := st.CountsBySource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.SourceXLSX])

	loaded, err := ReadRecordsCSV(filepath.Join(cfg.Data.OutDir, XLSXExtractsFile))
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestExtractPDFStage(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	pdf := pdfextract.New(&fakeText{pages: []ocr.Page{{Number: 4, Text: narrativePage}}}, nil)
	p := New(cfg, st, nil, nil, pdf, nil)

	docs := []model.SourceDocument{{
		LocalPath:  "/data/jun-2024-results.pdf",
		Kind:       model.KindPDF,
		SurveyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		SurveyType: model.PanelSPD,
	}}

	recs, err := p.ExtractPDF(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.SourcePDFText, recs[0].Source)
	assert.Equal(t, model.PanelSPD, recs[0].Panel)

	_, err = os.Stat(filepath.Join(cfg.Data.OutDir, PDFExtractsFile))
	assert.NoError(t, err)
}

func TestExtractVisionSkipsCoveredMonths(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)

	// June 2024 already has spreadsheet data, so only the September
	// document should reach the model.
	require.NoError(t, st.UpsertRecords(context.Background(), []model.PercentileRecord{{
		SurveyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Panel:      model.PanelSPD,
		Concept:    model.ConceptFFLongerRun,
		Pctl50:     model.Float(3.13),
		Source:     model.SourceXLSX,
	}}))

	ai := &fakeAI{replies: []string{
		`{"found": true, "pctl25": 2.88, "pctl50": 3.00, "pctl75": 3.13, "survey_month": 9, "survey_year": 2024, "page": 11}`,
	}}
	vis := vision.New(ai, vision.Options{CallInterval: time.Millisecond})
	p := New(cfg, st, nil, nil, nil, vis)

	docs := []model.SourceDocument{
		{
			LocalPath:  writeFakePDF(t, cfg.Data.Dir, "jun-2024-results.pdf"),
			Kind:       model.KindPDF,
			SurveyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			LocalPath:  writeFakePDF(t, cfg.Data.Dir, "sep-2024-results.pdf"),
			Kind:       model.KindPDF,
			SurveyDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		},
	}

	recs, err := p.ExtractVision(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), recs[0].SurveyDate)
	require.NotNil(t, recs[0].Pctl50)
	assert.Equal(t, 3.00, *recs[0].Pctl50)
}

func TestExtractVisionLeavesProjectionsToDotPlots(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	ai := &fakeAI{}
	vis := vision.New(ai, vision.Options{CallInterval: time.Millisecond})
	p := New(cfg, st, nil, nil, nil, vis)

	recs, err := p.ExtractVision(context.Background(), []model.SourceDocument{{
		LocalPath: writeFakePDF(t, cfg.Data.Dir, "fomcprojtabl20240612.pdf"),
		Kind:      model.KindPDF,
	}})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, ai.calls)
}

func TestExtractDotPlots(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)

	ai := &fakeAI{replies: []string{
		`{"found": true, "meeting_date": "2024-06-12", "longer_run_dots": {"2.75": 4, "3.00": 6}, "total_participants": 10, "page": 4}`,
		`{"found": false, "reason": "no dot plot in document"}`,
	}}
	vis := vision.New(ai, vision.Options{CallInterval: time.Millisecond})
	p := New(cfg, st, nil, nil, nil, vis)

	docs := []model.SourceDocument{
		{
			URL:       "https://www.federalreserve.gov/fomcprojtabl20240612.pdf",
			LocalPath: writeFakePDF(t, cfg.Data.Dir, "fomcprojtabl20240612.pdf"),
			Kind:      model.KindPDF,
		},
		{
			URL:       "https://www.federalreserve.gov/fomcprojtabl20240918.pdf",
			LocalPath: writeFakePDF(t, cfg.Data.Dir, "fomcprojtabl20240918.pdf"),
			Kind:      model.KindPDF,
		},
	}

	recs, err := p.ExtractDotPlots(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	found := recs[0]
	assert.Equal(t, model.PanelCombined, found.Panel)
	assert.Equal(t, model.SourceVision, found.Source)
	assert.Equal(t, docs[0].URL, found.FileURL)
	require.NotNil(t, found.Pctl50)
	assert.Equal(t, 2.75, *found.Pctl25)
	assert.Equal(t, 3.00, *found.Pctl50)
	assert.Equal(t, 3.00, *found.Pctl75)

	missing := recs[1]
	assert.False(t, missing.HasData())
	assert.Contains(t, missing.Notes, "dot_plot_not_found")
	assert.Equal(t, docs[1].URL, missing.FileURL)
}

func TestCombinePrefersHigherPrioritySource(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	p := New(cfg, st, nil, nil, nil, nil)

	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.UpsertRecords(context.Background(), []model.PercentileRecord{
		{SurveyDate: date, Panel: model.PanelSPD, Concept: model.ConceptFFLongerRun, Pctl50: model.Float(9.99), Source: model.SourcePDFText},
		{SurveyDate: date, Panel: model.PanelSPD, Concept: model.ConceptFFLongerRun, Pctl50: model.Float(3.13), Source: model.SourceXLSX},
	}))

	final, err := p.Combine(context.Background())
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, model.SourceXLSX, final[0].Source)
	assert.Equal(t, 3.13, *final[0].Pctl50)

	loaded, err := ReadRecordsCSV(filepath.Join(cfg.Data.OutDir, FinalFile))
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestCombineFiles(t *testing.T) {
	outDir := t.TempDir()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, WriteRecordsCSV(filepath.Join(outDir, XLSXExtractsFile), []model.PercentileRecord{
		{SurveyDate: date, Panel: model.PanelSPD, Concept: model.ConceptFFLongerRun, Pctl50: model.Float(3.13), Source: model.SourceXLSX},
	}))
	require.NoError(t, WriteRecordsCSV(filepath.Join(outDir, PDFExtractsFile), []model.PercentileRecord{
		{SurveyDate: date, Panel: model.PanelSPD, Concept: model.ConceptFFLongerRun, Pctl50: model.Float(9.99), Source: model.SourcePDFText},
	}))

	// vision and dotplot intermediates are absent and must be ignored.
	final, err := CombineFiles(outDir, nil)
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, model.SourceXLSX, final[0].Source)

	_, err = os.Stat(filepath.Join(outDir, FinalFile))
	assert.NoError(t, err)
}

func TestCombineFilesAppliesPanelHints(t *testing.T) {
	outDir := t.TempDir()
	date := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, WriteRecordsCSV(filepath.Join(outDir, VisionExtractsFile), []model.PercentileRecord{
		{
			SurveyDate: date,
			Panel:      model.PanelCombined,
			Concept:    model.ConceptFFLongerRun,
			Pctl50:     model.Float(3.13),
			Source:     model.SourceVision,
			LocalPath:  "/data/jun-2024-spd-results.pdf",
		},
	}))

	docs := []model.SourceDocument{{
		LocalPath:  "/data/jun-2024-spd-results.pdf",
		Kind:       model.KindPDF,
		SurveyType: model.PanelSPD,
	}}

	final, err := CombineFiles(outDir, docs)
	require.NoError(t, err)
	require.Len(t, final, 1)
	assert.Equal(t, model.PanelSPD, final[0].Panel)
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)

	xlsxPath := writeLongFormatWorkbook(t, cfg.Data.Dir)
	pdf := pdfextract.New(&fakeText{pages: []ocr.Page{{Number: 4, Text: narrativePage}}}, nil)
	p := New(cfg, st, nil, xlsxextract.New(), pdf, nil)

	docs := []model.SourceDocument{
		{
			LocalPath:  xlsxPath,
			Kind:       model.KindXLSX,
			SurveyDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			LocalPath:  "/data/sep-2024-results.pdf",
			Kind:       model.KindPDF,
			SurveyDate: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
			SurveyType: model.PanelSPD,
		},
	}

	final, err := p.Run(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, final, 2)

	// June from the workbook, September from the narrative text.
	assert.Equal(t, model.SourceXLSX, final[0].Source)
	assert.Equal(t, model.SourcePDFText, final[1].Source)

	_, err = os.Stat(filepath.Join(cfg.Data.OutDir, FinalFile))
	assert.NoError(t, err)
}

func TestDotPlotDocSelection(t *testing.T) {
	docs := []model.SourceDocument{
		{Kind: model.KindPDF, LocalPath: "/data/fomcprojtabl20240612.pdf"},
		{Kind: model.KindPDF, LocalPath: "/data/dot-plot-sep.pdf"},
		{Kind: model.KindPDF, LocalPath: "/data/jun-2024-results.pdf"},
		{Kind: model.KindXLSX, LocalPath: "/data/proj-2024.xlsx"},
	}

	got := DotPlotDocs(docs)
	require.Len(t, got, 2)
	assert.Equal(t, "/data/fomcprojtabl20240612.pdf", got[0].LocalPath)
	assert.Equal(t, "/data/dot-plot-sep.pdf", got[1].LocalPath)
}
