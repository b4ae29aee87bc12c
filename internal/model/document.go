package model

import "time"

// DocumentKind distinguishes the two source artifact shapes.
type DocumentKind string

const (
	KindXLSX DocumentKind = "xlsx"
	KindPDF  DocumentKind = "pdf"
)

// SourceDocument describes one survey or projection artifact discovered by
// the manifest stage. Extractors consume it read-only.
type SourceDocument struct {
	URL        string       `json:"url"`
	LocalPath  string       `json:"local_path"`
	Kind       DocumentKind `json:"kind"`
	SurveyDate time.Time    `json:"survey_date"`

	// SurveyType hints the panel when the file itself is a single-panel
	// survey (e.g. an spd_*.xlsx dealer data file). Empty when unknown.
	SurveyType Panel `json:"survey_type,omitempty"`

	// DataFile marks XLSX "Data" workbooks; ResultsPDF marks PDF result
	// summaries. Other artifacts on the survey pages are ignored.
	DataFile   bool `json:"data_file,omitempty"`
	ResultsPDF bool `json:"results_pdf,omitempty"`
}

// DotCount is the sparse histogram read off a committee projection dot plot:
// participants projecting each rate level for a single meeting and horizon.
// It lives only between the vision extractor and the dot-count aggregator.
type DotCount struct {
	MeetingDate       time.Time       `json:"meeting_date"`
	Horizon           string          `json:"horizon"`
	Counts            map[float64]int `json:"counts"`
	TotalParticipants int             `json:"total_participants"`
	Page              *int            `json:"page,omitempty"`
}

// HorizonLongerRun is the only horizon the pipeline extracts from dot plots.
const HorizonLongerRun = "Longer run"

// N returns the number of individual projections in the histogram.
func (d DotCount) N() int {
	n := 0
	for _, c := range d.Counts {
		if c > 0 {
			n += c
		}
	}
	return n
}
