package model

import (
	"strconv"
	"time"
)

// Panel identifies the respondent population of a survey instance.
type Panel string

const (
	// PanelSPD is the Survey of Primary Dealers.
	PanelSPD Panel = "SPD"
	// PanelSMP is the Survey of Market Participants (launched January 2014).
	PanelSMP Panel = "SMP"
	// PanelCombined covers merged surveys and committee projections with no
	// panel split.
	PanelCombined Panel = "Combined"
)

// Source identifies which extraction method produced a record.
type Source string

const (
	SourceXLSX     Source = "xlsx"
	SourceVision   Source = "pdf_vision"
	SourcePDFText  Source = "pdf_text"
	SourcePDFTable Source = "pdf_table"
	SourcePDFOCR   Source = "pdf_ocr"
)

// sourceRank orders sources by trustworthiness. Lower is more trusted.
var sourceRank = map[Source]int{
	SourceXLSX:     0,
	SourceVision:   1,
	SourcePDFText:  2,
	SourcePDFTable: 3,
	SourcePDFOCR:   4,
}

// unknownSourceRank sorts unrecognized source tags after every known one.
const unknownSourceRank = 99

// Priority returns the numeric trust rank of a source. Unknown sources get
// the lowest priority.
func (s Source) Priority() int {
	if r, ok := sourceRank[s]; ok {
		return r
	}
	return unknownSourceRank
}

// ConceptFFLongerRun tags the longer-run target federal funds rate question.
// It is the only concept the pipeline currently populates; the field exists
// so additional survey concepts can share the same record shape.
const ConceptFFLongerRun = "ff_longer_run_target"

// PercentileRecord is one row of the canonical output: the 25th/50th/75th
// percentile rate for one survey date and panel.
type PercentileRecord struct {
	SurveyDate time.Time `json:"survey_date"`
	Panel      Panel     `json:"panel"`
	Concept    string    `json:"concept"`
	Pctl25     *float64  `json:"pctl25"`
	Pctl50     *float64  `json:"pctl50"`
	Pctl75     *float64  `json:"pctl75"`
	Source     Source    `json:"source"`
	FileURL    string    `json:"file_url"`
	LocalPath  string    `json:"local_path"`
	PDFPage    *int      `json:"pdf_page,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// HasData reports whether any percentile slot is filled. A record with all
// three slots empty is a valid "attempted but not found" marker.
func (r PercentileRecord) HasData() bool {
	return r.Pctl25 != nil || r.Pctl50 != nil || r.Pctl75 != nil
}

// Complete reports whether all three percentile slots are filled.
func (r PercentileRecord) Complete() bool {
	return r.Pctl25 != nil && r.Pctl50 != nil && r.Pctl75 != nil
}

// Monotonic reports whether the filled percentiles are weakly ordered
// (p25 ≤ p50 ≤ p75). Source documents are occasionally internally
// inconsistent, so a violation is flagged downstream rather than rejected.
func (r PercentileRecord) Monotonic() bool {
	if r.Pctl25 != nil && r.Pctl50 != nil && *r.Pctl25 > *r.Pctl50 {
		return false
	}
	if r.Pctl50 != nil && r.Pctl75 != nil && *r.Pctl50 > *r.Pctl75 {
		return false
	}
	if r.Pctl25 != nil && r.Pctl75 != nil && *r.Pctl25 > *r.Pctl75 {
		return false
	}
	return true
}

// DateKey returns the YYYY-MM month key used for cross-source deduplication.
func (r PercentileRecord) DateKey() string {
	return r.SurveyDate.Format("2006-01")
}

// CSVHeader returns the output column names, in order.
func CSVHeader() []string {
	return []string{
		"survey_date", "panel", "concept",
		"pctl25", "pctl50", "pctl75",
		"source", "file_url", "local_path", "pdf_page", "notes",
	}
}

// CSVRow flattens the record into output columns matching CSVHeader.
func (r PercentileRecord) CSVRow() []string {
	return []string{
		r.SurveyDate.Format("2006-01-02"),
		string(r.Panel),
		r.Concept,
		formatRate(r.Pctl25),
		formatRate(r.Pctl50),
		formatRate(r.Pctl75),
		string(r.Source),
		r.FileURL,
		r.LocalPath,
		formatPage(r.PDFPage),
		r.Notes,
	}
}

// ParseCSVRow reconstructs a record from a row produced by CSVRow. Used when
// the reconciler re-reads previously written intermediate tables.
func ParseCSVRow(row []string) (PercentileRecord, error) {
	if len(row) < len(CSVHeader()) {
		return PercentileRecord{}, errShortRow(len(row))
	}

	date, err := time.Parse("2006-01-02", row[0])
	if err != nil {
		return PercentileRecord{}, err
	}

	rec := PercentileRecord{
		SurveyDate: date,
		Panel:      Panel(row[1]),
		Concept:    row[2],
		Pctl25:     parseRate(row[3]),
		Pctl50:     parseRate(row[4]),
		Pctl75:     parseRate(row[5]),
		Source:     Source(row[6]),
		FileURL:    row[7],
		LocalPath:  row[8],
		Notes:      row[10],
	}
	if row[9] != "" {
		if page, err := strconv.Atoi(row[9]); err == nil {
			rec.PDFPage = &page
		}
	}
	return rec, nil
}

func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseRate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func formatPage(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}

type errShortRow int

func (e errShortRow) Error() string {
	return "record: csv row has " + strconv.Itoa(int(e)) + " columns, want " + strconv.Itoa(len(CSVHeader()))
}

// Float returns a pointer to v. Convenience for literal record construction.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
