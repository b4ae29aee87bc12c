// Package xlsxextract pulls longer-run federal funds rate percentiles out
// of survey results workbooks. Workbooks vary in shape across the years,
// so each sheet is tried against a fixed list of shape strategies.
package xlsxextract

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/fetcher"
	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/survey"
)

// knownValueTags are the exact variable tags the published workbooks have
// used for the longer-run target rate question.
var knownValueTags = map[string]bool{
	"fftr_modalpe_longerrun":  true,
	"fftr_modal_pe_longerrun": true,
	"fftr_longerrun":          true,
	"fftr_longer_run":         true,
	"ffr_longerrun":           true,
}

// fuzzyTagRe catches tag variants not in the exact list.
var fuzzyTagRe = regexp.MustCompile(`(?i)fftr.*longer|longer.*fftr|fed.*fund.*longer`)

// Column header aliases, matched on normalized header text.
var (
	tagColAliases   = []string{"value_tag", "valuetag", "tag", "concept", "variable"}
	aggColAliases   = []string{"aggregation", "agg", "statistic", "stat", "percentile", "measure"}
	valueColAliases = []string{"aggregation_value", "value", "result", "estimate", "number"}
	panelColAliases = []string{"panel_type", "panel", "respondent_type", "survey_type"}
)

// Extractor reads percentile records from survey XLSX workbooks.
type Extractor struct{}

// New returns a spreadsheet extractor.
func New() *Extractor {
	return &Extractor{}
}

type sheetStrategy func(s fetcher.Sheet, doc model.SourceDocument) []model.PercentileRecord

// Extract reads every sheet of the document's workbook. A workbook that
// cannot be opened, or that yields nothing, still produces one all-null
// record so the document stays visible downstream.
func (e *Extractor) Extract(doc model.SourceDocument) []model.PercentileRecord {
	wb, err := fetcher.ReadWorkbook(doc.LocalPath)
	if err != nil {
		zap.L().Warn("xlsx extract: open failed",
			zap.String("path", doc.LocalPath),
			zap.Error(err),
		)
		return []model.PercentileRecord{nullRecord(doc, fmt.Sprintf("workbook open failed: %v", err))}
	}

	strategies := []sheetStrategy{extractLongFormat, extractWideFormat}

	var records []model.PercentileRecord
	for _, sheet := range wb.Sheets {
		recs := extractSheet(sheet, doc, strategies)
		records = append(records, recs...)
	}

	records = applyPanelHint(records, doc)
	records = dedupe(records)

	if len(records) == 0 {
		records = []model.PercentileRecord{nullRecord(doc, "no data extracted")}
	}
	return records
}

func extractSheet(s fetcher.Sheet, doc model.SourceDocument, strategies []sheetStrategy) (recs []model.PercentileRecord) {
	// A malformed sheet must not take down the rest of the workbook.
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("xlsx extract: sheet panicked, skipping",
				zap.String("path", doc.LocalPath),
				zap.String("sheet", s.Name),
				zap.Any("panic", r),
			)
			recs = nil
		}
	}()

	for _, strat := range strategies {
		if recs := strat(s, doc); len(recs) > 0 {
			return recs
		}
	}
	return nil
}

// extractLongFormat handles sheets laid out one statistic per row, with
// tag, aggregation and value columns (the post-2014 results format).
func extractLongFormat(s fetcher.Sheet, doc model.SourceDocument) []model.PercentileRecord {
	headerRow, cols := findLongHeader(s)
	if headerRow < 0 {
		return nil
	}

	// One accumulating record per panel label, in first-seen order.
	byPanel := make(map[string]*model.PercentileRecord)
	var order []string

	for i := headerRow + 1; i < len(s.Rows); i++ {
		tag := s.Cell(i, cols.tag)
		if !matchesTag(tag) {
			continue
		}

		slot := slotForToken(s.Cell(i, cols.agg))
		if slot == 0 {
			continue
		}

		val := survey.NormalizeRate(s.Cell(i, cols.value))
		if val == nil {
			continue
		}

		panelLabel := ""
		if cols.panel >= 0 {
			panelLabel = s.Cell(i, cols.panel)
		}

		rec, ok := byPanel[panelLabel]
		if !ok {
			rec = baseRecord(doc)
			rec.Panel = survey.ClassifyPanel(panelLabel, doc.SurveyDate)
			byPanel[panelLabel] = rec
			order = append(order, panelLabel)
		}

		switch slot {
		case 25:
			rec.Pctl25 = val
		case 50:
			rec.Pctl50 = val
		case 75:
			rec.Pctl75 = val
		}
	}

	var out []model.PercentileRecord
	for _, label := range order {
		if byPanel[label].HasData() {
			out = append(out, *byPanel[label])
		}
	}
	return out
}

type longCols struct {
	tag, agg, value, panel int
}

// findLongHeader scans the first rows for a header containing at least a
// tag column and a value column. Returns row index and column positions,
// or -1 when no such header exists.
func findLongHeader(s fetcher.Sheet) (int, longCols) {
	for i := 0; i < len(s.Rows) && i < 10; i++ {
		cols := longCols{tag: -1, agg: -1, value: -1, panel: -1}
		for j, h := range s.Rows[i] {
			n := normalizeHeader(h)
			switch {
			case cols.tag < 0 && matchesAlias(n, tagColAliases):
				cols.tag = j
			case cols.agg < 0 && matchesAlias(n, aggColAliases):
				cols.agg = j
			case cols.value < 0 && matchesAlias(n, valueColAliases):
				cols.value = j
			case cols.panel < 0 && matchesAlias(n, panelColAliases):
				cols.panel = j
			}
		}
		if cols.tag >= 0 && cols.agg >= 0 && cols.value >= 0 {
			return i, cols
		}
	}
	return -1, longCols{}
}

// extractWideFormat handles sheets with one row per question and one
// column per statistic (the early dealer-survey format).
func extractWideFormat(s fetcher.Sheet, doc model.SourceDocument) []model.PercentileRecord {
	headerRow, p25Col, p50Col, p75Col := findWideHeader(s)
	if headerRow < 0 {
		return nil
	}

	for i := headerRow + 1; i < len(s.Rows); i++ {
		if !rowMatchesConcept(s.Rows[i]) {
			continue
		}

		rec := baseRecord(doc)
		rec.Panel = model.PanelCombined
		if p25Col >= 0 {
			rec.Pctl25 = cellRate(s.Cell(i, p25Col))
		}
		if p50Col >= 0 {
			rec.Pctl50 = cellRate(s.Cell(i, p50Col))
		}
		if p75Col >= 0 {
			rec.Pctl75 = cellRate(s.Cell(i, p75Col))
		}

		if rec.HasData() {
			return []model.PercentileRecord{*rec}
		}
	}
	return nil
}

// cellRate parses a wide-format value cell. Wide sheets sometimes carry
// annotated text ("3.13 percent") where long sheets have bare numbers.
func cellRate(cell string) *float64 {
	if v := survey.NormalizeRate(cell); v != nil {
		return v
	}
	return survey.ExtractPercent(cell)
}

// findWideHeader locates a header row with at least two percentile
// columns, one of them the median.
func findWideHeader(s fetcher.Sheet) (row, p25, p50, p75 int) {
	for i := 0; i < len(s.Rows) && i < 10; i++ {
		p25, p50, p75 = -1, -1, -1
		for j, h := range s.Rows[i] {
			switch slotForToken(h) {
			case 25:
				if p25 < 0 {
					p25 = j
				}
			case 50:
				if p50 < 0 {
					p50 = j
				}
			case 75:
				if p75 < 0 {
					p75 = j
				}
			}
		}
		found := 0
		for _, c := range []int{p25, p50, p75} {
			if c >= 0 {
				found++
			}
		}
		if found >= 2 && p50 >= 0 {
			return i, p25, p50, p75
		}
	}
	return -1, -1, -1, -1
}

func rowMatchesConcept(row []string) bool {
	for _, cell := range row {
		if matchesTag(cell) || survey.MatchesLongerRunFF(cell) {
			return true
		}
	}
	return false
}

// matchesTag reports whether a cell value names the longer-run target
// rate question, by exact tag or fuzzy fallback.
func matchesTag(cell string) bool {
	n := normalizeHeader(cell)
	if n == "" {
		return false
	}
	if knownValueTags[n] {
		return true
	}
	return fuzzyTagRe.MatchString(cell)
}

// slotForToken maps an aggregation label to a percentile slot
// (25, 50 or 75), or 0 when unrecognized.
func slotForToken(token string) int {
	n := normalizeHeader(token)
	if n == "" {
		return 0
	}
	switch {
	case strings.Contains(n, "median"):
		return 50
	case strings.Contains(n, "25"):
		return 25
	case strings.Contains(n, "75"):
		return 75
	case strings.Contains(n, "50"):
		return 50
	}
	return 0
}

func matchesAlias(normalized string, aliases []string) bool {
	for _, a := range aliases {
		if normalized == a {
			return true
		}
	}
	return false
}

func normalizeHeader(h string) string {
	n := strings.ToLower(strings.TrimSpace(h))
	n = strings.ReplaceAll(n, " ", "_")
	n = strings.ReplaceAll(n, "-", "_")
	return n
}

// applyPanelHint overrides Combined panels when the document itself is
// known to belong to a single survey panel.
func applyPanelHint(recs []model.PercentileRecord, doc model.SourceDocument) []model.PercentileRecord {
	if doc.SurveyType == "" || doc.SurveyType == model.PanelCombined {
		return recs
	}
	for i := range recs {
		if recs[i].Panel == model.PanelCombined {
			recs[i].Panel = doc.SurveyType
		}
	}
	return recs
}

// dedupe keeps the first record per (date, panel).
func dedupe(recs []model.PercentileRecord) []model.PercentileRecord {
	seen := make(map[string]bool)
	var out []model.PercentileRecord
	for _, r := range recs {
		key := r.DateKey() + "|" + string(r.Panel)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func baseRecord(doc model.SourceDocument) *model.PercentileRecord {
	return &model.PercentileRecord{
		SurveyDate: doc.SurveyDate,
		Panel:      model.PanelCombined,
		Concept:    model.ConceptFFLongerRun,
		Source:     model.SourceXLSX,
		FileURL:    doc.URL,
		LocalPath:  doc.LocalPath,
	}
}

func nullRecord(doc model.SourceDocument, notes string) model.PercentileRecord {
	rec := baseRecord(doc)
	rec.Panel = survey.ClassifyPanel("", doc.SurveyDate)
	if doc.SurveyType != "" {
		rec.Panel = doc.SurveyType
	}
	rec.Notes = notes
	return *rec
}
