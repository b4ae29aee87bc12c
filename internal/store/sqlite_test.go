package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedrates-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "fedrates.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleRecord(date string, panel model.Panel, source model.Source) model.PercentileRecord {
	d, _ := time.Parse("2006-01-02", date)
	return model.PercentileRecord{
		SurveyDate: d,
		Panel:      panel,
		Concept:    model.ConceptFFLongerRun,
		Pctl25:     model.Float(2.88),
		Pctl50:     model.Float(3.13),
		Pctl75:     model.Float(3.38),
		Source:     source,
		FileURL:    "https://www.newyorkfed.org/survey/results.xlsx",
		LocalPath:  "/data/results.xlsx",
	}
}

func TestUpsertAndQueryRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("2024-06-01", model.PanelSPD, model.SourceXLSX)
	rec.PDFPage = model.Int(4)
	rec.Notes = "clean extraction"
	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{rec}))

	got, err := st.RecordsBySource(ctx, model.SourceXLSX)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.SurveyDate, got[0].SurveyDate)
	assert.Equal(t, model.PanelSPD, got[0].Panel)
	assert.Equal(t, 3.13, *got[0].Pctl50)
	assert.Equal(t, 4, *got[0].PDFPage)
	assert.Equal(t, "clean extraction", got[0].Notes)
}

func TestUpsertReplacesSameKey(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	first := sampleRecord("2024-06-01", model.PanelSPD, model.SourceXLSX)
	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{first}))

	second := first
	second.Pctl50 = model.Float(3.25)
	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{second}))

	got, err := st.RecordsBySource(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3.25, *got[0].Pctl50)
}

func TestNullPercentilesRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("2024-06-01", model.PanelSPD, model.SourcePDFText)
	rec.Pctl25 = nil
	rec.Pctl75 = nil
	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{rec}))

	got, err := st.RecordsBySource(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Pctl25)
	assert.NotNil(t, got[0].Pctl50)
	assert.Nil(t, got[0].Pctl75)
	assert.Nil(t, got[0].PDFPage)
}

func TestRecordsBySourceFilters(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{
		sampleRecord("2024-06-01", model.PanelSPD, model.SourceXLSX),
		sampleRecord("2024-06-01", model.PanelSPD, model.SourcePDFText),
		sampleRecord("2019-09-01", model.PanelSMP, model.SourceVision),
	}))

	got, err := st.RecordsBySource(ctx, model.SourceXLSX, model.SourceVision)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Ordered by survey date.
	assert.Equal(t, model.SourceVision, got[0].Source)
	assert.Equal(t, model.SourceXLSX, got[1].Source)
}

func TestDatesWithSource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	withData := sampleRecord("2024-06-01", model.PanelSPD, model.SourceXLSX)
	empty := sampleRecord("2024-07-01", model.PanelSPD, model.SourceXLSX)
	empty.Pctl25, empty.Pctl50, empty.Pctl75 = nil, nil, nil
	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{withData, empty}))

	months, err := st.DatesWithSource(ctx, model.SourceXLSX)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"2024-06": true}, months)

	none, err := st.DatesWithSource(ctx, model.SourceVision)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCountsBySource(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertRecords(ctx, []model.PercentileRecord{
		sampleRecord("2024-06-01", model.PanelSPD, model.SourceXLSX),
		sampleRecord("2024-06-01", model.PanelSMP, model.SourceXLSX),
		sampleRecord("2024-06-01", model.PanelSPD, model.SourcePDFText),
	}))

	counts, err := st.CountsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[model.SourceXLSX])
	assert.Equal(t, 1, counts[model.SourcePDFText])
}

func TestDocumentETag(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	etag, err := st.DocumentETag(ctx, "https://example.com/a.pdf")
	require.NoError(t, err)
	assert.Empty(t, etag)

	require.NoError(t, st.SaveDocument(ctx, "https://example.com/a.pdf", "/data/a.pdf", `"v1"`))
	etag, err = st.DocumentETag(ctx, "https://example.com/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, `"v1"`, etag)

	require.NoError(t, st.SaveDocument(ctx, "https://example.com/a.pdf", "/data/a.pdf", `"v2"`))
	etag, err = st.DocumentETag(ctx, "https://example.com/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, `"v2"`, etag)
}

func TestRunLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.StartRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, st.FinishRun(ctx, id, "complete", 42))

	err = st.FinishRun(ctx, "no-such-run", "complete", 0)
	require.Error(t, err)
}
