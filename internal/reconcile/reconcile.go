// Package reconcile merges records from every extractor into one row per
// survey instance and panel, preferring the most reliable source.
package reconcile

import (
	"sort"

	"github.com/sells-group/fedrates-cli/internal/model"
)

// Reconcile keeps the best record per (survey date, panel). Candidates
// are ordered by date, panel, source priority, and input position, and
// the first of each group wins. The output is date-ascending. The
// function is pure and idempotent, so it can rerun over its own output.
func Reconcile(records []model.PercentileRecord) []model.PercentileRecord {
	type indexed struct {
		rec model.PercentileRecord
		pos int
	}
	ordered := make([]indexed, len(records))
	for i, r := range records {
		ordered[i] = indexed{rec: r, pos: i}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.rec.SurveyDate.Equal(b.rec.SurveyDate) {
			return a.rec.SurveyDate.Before(b.rec.SurveyDate)
		}
		if a.rec.Panel != b.rec.Panel {
			return a.rec.Panel < b.rec.Panel
		}
		if a.rec.Source.Priority() != b.rec.Source.Priority() {
			return a.rec.Source.Priority() < b.rec.Source.Priority()
		}
		return a.pos < b.pos
	})

	var out []model.PercentileRecord
	seen := make(map[string]bool)
	for _, item := range ordered {
		key := item.rec.SurveyDate.Format("2006-01-02") + "|" + string(item.rec.Panel)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item.rec)
	}
	return out
}

// ReassignPanel moves a Combined record onto the panel its source
// document belongs to, when the document carries a single-panel hint.
// Applied before reconciliation so a dealer-only document never competes
// in the Combined group.
func ReassignPanel(rec model.PercentileRecord, hint model.Panel) model.PercentileRecord {
	if rec.Panel == model.PanelCombined && hint != "" && hint != model.PanelCombined {
		rec.Panel = hint
	}
	return rec
}
