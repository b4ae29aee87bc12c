package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fedrates-cli/internal/model"
)

func rec(date string, panel model.Panel, source model.Source, median float64) model.PercentileRecord {
	d, _ := time.Parse("2006-01-02", date)
	return model.PercentileRecord{
		SurveyDate: d,
		Panel:      panel,
		Concept:    model.ConceptFFLongerRun,
		Pctl50:     model.Float(median),
		Source:     source,
	}
}

func TestReconcilePrefersXLSXOverPDFText(t *testing.T) {
	in := []model.PercentileRecord{
		rec("2024-06-01", model.PanelSPD, model.SourcePDFText, 3.00),
		rec("2024-06-01", model.PanelSPD, model.SourceXLSX, 3.13),
	}

	out := Reconcile(in)
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceXLSX, out[0].Source)
	assert.Equal(t, 3.13, *out[0].Pctl50)
}

func TestReconcileKeepsPanelsSeparate(t *testing.T) {
	in := []model.PercentileRecord{
		rec("2024-06-01", model.PanelSPD, model.SourceXLSX, 3.13),
		rec("2024-06-01", model.PanelSMP, model.SourceXLSX, 3.00),
	}

	out := Reconcile(in)
	assert.Len(t, out, 2)
}

func TestReconcileOutputDateAscending(t *testing.T) {
	in := []model.PercentileRecord{
		rec("2024-06-01", model.PanelSPD, model.SourceXLSX, 3.13),
		rec("2014-01-01", model.PanelSPD, model.SourceXLSX, 4.25),
		rec("2019-09-01", model.PanelSPD, model.SourceXLSX, 2.50),
	}

	out := Reconcile(in)
	require.Len(t, out, 3)
	assert.True(t, out[0].SurveyDate.Before(out[1].SurveyDate))
	assert.True(t, out[1].SurveyDate.Before(out[2].SurveyDate))
}

func TestReconcileTiesBreakOnInputOrder(t *testing.T) {
	a := rec("2024-06-01", model.PanelSPD, model.SourcePDFText, 3.00)
	b := rec("2024-06-01", model.PanelSPD, model.SourcePDFText, 3.25)

	out := Reconcile([]model.PercentileRecord{a, b})
	require.Len(t, out, 1)
	assert.Equal(t, 3.00, *out[0].Pctl50)
}

func TestReconcileSourceOrdering(t *testing.T) {
	in := []model.PercentileRecord{
		rec("2024-06-01", model.PanelCombined, model.SourcePDFOCR, 1),
		rec("2024-06-01", model.PanelCombined, model.SourcePDFTable, 2),
		rec("2024-06-01", model.PanelCombined, model.SourcePDFText, 3),
		rec("2024-06-01", model.PanelCombined, model.SourceVision, 4),
		rec("2024-06-01", model.PanelCombined, model.SourceXLSX, 5),
	}

	out := Reconcile(in)
	require.Len(t, out, 1)
	assert.Equal(t, model.SourceXLSX, out[0].Source)
}

func TestReconcileIdempotent(t *testing.T) {
	in := []model.PercentileRecord{
		rec("2024-06-01", model.PanelSPD, model.SourcePDFText, 3.00),
		rec("2024-06-01", model.PanelSPD, model.SourceXLSX, 3.13),
		rec("2019-09-01", model.PanelSMP, model.SourceVision, 2.50),
	}

	once := Reconcile(in)
	twice := Reconcile(once)
	assert.Equal(t, once, twice)
}

func TestReconcileEmpty(t *testing.T) {
	assert.Empty(t, Reconcile(nil))
}

func TestReassignPanel(t *testing.T) {
	combined := rec("2024-06-01", model.PanelCombined, model.SourceVision, 3.13)

	assert.Equal(t, model.PanelSPD, ReassignPanel(combined, model.PanelSPD).Panel)
	assert.Equal(t, model.PanelCombined, ReassignPanel(combined, "").Panel)
	assert.Equal(t, model.PanelCombined, ReassignPanel(combined, model.PanelCombined).Panel)

	spd := rec("2024-06-01", model.PanelSPD, model.SourceXLSX, 3.13)
	assert.Equal(t, model.PanelSPD, ReassignPanel(spd, model.PanelSMP).Panel)
}
