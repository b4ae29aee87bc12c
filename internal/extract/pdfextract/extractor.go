// Package pdfextract recovers longer-run federal funds rate percentiles
// from narrative survey PDFs. The text layer is tried first with line
// patterns, then with table shape parsing, and finally the document is
// reread through OCR when the text layer comes up short.
package pdfextract

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/ocr"
	"github.com/sells-group/fedrates-cli/internal/survey"
)

const (
	// Context window around a concept match, in runes.
	windowBefore = 500
	windowAfter  = 1500

	// OCR reread falls back to the first pages when no candidate
	// sections were found in the text layer.
	maxEarlyPages = 5
)

// Extractor reads percentile records from narrative PDFs.
type Extractor struct {
	text   ocr.PageReader
	reread ocr.PageReader // optional, nil disables the OCR stage
}

// New returns a PDF extractor. text supplies the embedded text layer and
// reread the OCR fallback; reread may be nil.
func New(text, reread ocr.PageReader) *Extractor {
	return &Extractor{text: text, reread: reread}
}

// section is a windowed slice of page text around a concept match.
type section struct {
	page int
	text string
}

// slots accumulates percentile values across stages. Each stage only
// fills what is still empty.
type slots struct {
	p25, p50, p75 *float64
	page          *int
	source        model.Source
}

func (s *slots) complete() bool {
	return s.p25 != nil && s.p50 != nil && s.p75 != nil
}

func (s *slots) any() bool {
	return s.p25 != nil || s.p50 != nil || s.p75 != nil
}

func (s *slots) fill(p25, p50, p75 *float64, page int, src model.Source) {
	filled := false
	if s.p25 == nil && p25 != nil {
		s.p25, filled = p25, true
	}
	if s.p50 == nil && p50 != nil {
		s.p50, filled = p50, true
	}
	if s.p75 == nil && p75 != nil {
		s.p75, filled = p75, true
	}
	if filled && s.source == "" {
		s.source = src
		s.page = model.Int(page)
	}
}

// Extract runs the stage chain over the document. Every document yields
// at least one record.
func (e *Extractor) Extract(ctx context.Context, doc model.SourceDocument, allowOCR bool) []model.PercentileRecord {
	var st slots
	sawSections := false

	pages, err := e.text.ReadPages(ctx, doc.LocalPath)
	if err != nil {
		zap.L().Warn("pdf extract: text layer failed",
			zap.String("path", doc.LocalPath),
			zap.Error(err),
		)
		pages = nil
	}

	sections := candidateSections(pages)
	if len(sections) > 0 {
		sawSections = true
	}
	runLocalStages(&st, sections, model.SourcePDFText, model.SourcePDFTable)

	if !st.complete() && allowOCR && e.reread != nil {
		if e.rereadStages(ctx, doc, &st, sections, pages) {
			sawSections = true
		}
	}

	rec := model.PercentileRecord{
		SurveyDate: doc.SurveyDate,
		Panel:      panelFor(doc),
		Concept:    model.ConceptFFLongerRun,
		Pctl25:     st.p25,
		Pctl50:     st.p50,
		Pctl75:     st.p75,
		Source:     st.source,
		FileURL:    doc.URL,
		LocalPath:  doc.LocalPath,
		PDFPage:    st.page,
	}

	if !st.any() {
		rec.Source = model.SourcePDFText
		rec.Notes = "question_not_present"
		if !sawSections {
			rec.Notes += "; no_matching_sections_found"
		}
		if err != nil {
			rec.Notes = fmt.Sprintf("text extraction failed: %v", err)
		}
	}

	return []model.PercentileRecord{rec}
}

// rereadStages runs the OCR fallback. Candidate pages from the text layer
// are reread first, then the early pages of the document. Reports whether
// any reread section matched the concept.
func (e *Extractor) rereadStages(ctx context.Context, doc model.SourceDocument, st *slots, prior []section, textPages []ocr.Page) bool {
	pages, err := e.reread.ReadPages(ctx, doc.LocalPath)
	if err != nil {
		zap.L().Warn("pdf extract: ocr reread failed",
			zap.String("path", doc.LocalPath),
			zap.Error(err),
		)
		return false
	}

	wanted := make(map[int]bool)
	for _, s := range prior {
		wanted[s.page] = true
	}
	var ordered []ocr.Page
	for _, p := range pages {
		if wanted[p.Number] {
			ordered = append(ordered, p)
		}
	}
	for _, p := range pages {
		if !wanted[p.Number] && p.Number <= maxEarlyPages {
			ordered = append(ordered, p)
		}
	}

	sections := candidateSections(ordered)
	runLocalStages(st, sections, model.SourcePDFOCR, model.SourcePDFOCR)
	return len(sections) > 0
}

// runLocalStages applies line patterns then table parsing over the
// sections, stopping as soon as all three slots are filled.
func runLocalStages(st *slots, sections []section, lineSrc, tableSrc model.Source) {
	for _, sec := range sections {
		p25, p50, p75 := matchLinePatterns(sec.text)
		st.fill(p25, p50, p75, sec.page, lineSrc)
		if st.complete() {
			return
		}
	}
	for _, sec := range sections {
		p25, p50, p75 := parseTables(sec.text)
		st.fill(p25, p50, p75, sec.page, tableSrc)
		if st.complete() {
			return
		}
	}
}

// candidateSections windows the text around each concept match.
func candidateSections(pages []ocr.Page) []section {
	var out []section
	for _, p := range pages {
		runes := []rune(p.Text)
		for _, idx := range survey.LongerRunIndices(p.Text) {
			start := idx - windowBefore
			if start < 0 {
				start = 0
			}
			end := idx + windowAfter
			if end > len(runes) {
				end = len(runes)
			}
			window := string(runes[start:end])
			if survey.MatchesLongerRunFF(window) {
				out = append(out, section{page: p.Number, text: window})
			}
		}
	}
	return out
}

func panelFor(doc model.SourceDocument) model.Panel {
	if doc.SurveyType != "" {
		return doc.SurveyType
	}
	return survey.ClassifyPanel("", doc.SurveyDate)
}
