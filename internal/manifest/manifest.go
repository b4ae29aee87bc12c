// Package manifest builds the list of source documents to process, either
// from a manifest CSV or by scanning an already-downloaded data directory.
package manifest

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fedrates-cli/internal/fetcher"
	"github.com/sells-group/fedrates-cli/internal/model"
	"github.com/sells-group/fedrates-cli/internal/survey"
)

var yearSegmentRe = regexp.MustCompile(`\b(20\d{2})\b`)

// ClassifyLink derives a source document from a link URL and its anchor
// text. The file extension decides the kind, filename and text markers
// decide the survey panel, and "result" markers decide whether a PDF is a
// results document.
func ClassifyLink(rawURL, linkText string) model.SourceDocument {
	doc := model.SourceDocument{URL: rawURL}

	base := strings.ToLower(path.Base(urlPath(rawURL)))
	switch {
	case strings.HasSuffix(base, ".xlsx") || strings.HasSuffix(base, ".xls"):
		doc.Kind = model.KindXLSX
		doc.DataFile = true
	case strings.HasSuffix(base, ".pdf"):
		doc.Kind = model.KindPDF
		doc.ResultsPDF = strings.Contains(base, "result") ||
			strings.Contains(strings.ToLower(linkText), "result")
	}

	if d, ok := survey.DateFromFilename(base); ok {
		doc.SurveyDate = d
	} else if d, ok := survey.ParseSurveyLabel(linkText); ok {
		doc.SurveyDate = d
	}

	doc.SurveyType = survey.ClassifyPanel(base+" "+linkText, doc.SurveyDate)
	return doc
}

// LocalPathFor maps a document URL to a path under dataDir. Generic
// basenames repeat across survey years, so when the basename carries no
// year of its own, the year from the URL path is prefixed to keep the
// downloads from overwriting each other.
func LocalPathFor(rawURL, dataDir string) string {
	p := urlPath(rawURL)
	base := path.Base(p)
	if base == "." || base == "/" || base == "" {
		base = "document"
	}

	if !yearSegmentRe.MatchString(base) {
		dir := strings.TrimSuffix(p, base)
		if m := yearSegmentRe.FindString(dir); m != "" {
			base = m + "-" + base
		}
	}

	return filepath.Join(dataDir, base)
}

// Load reads a manifest CSV of url,kind,date,survey_type rows. A header
// row is recognized and skipped; kind, date, and survey_type may be blank,
// in which case they are inferred from the URL.
func Load(csvPath string) ([]model.SourceDocument, error) {
	rows, err := fetcher.ReadCSVFile(csvPath)
	if err != nil {
		return nil, eris.Wrap(err, "manifest: load")
	}

	var docs []model.SourceDocument
	for i, row := range rows {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		if i == 0 && strings.EqualFold(row[0], "url") {
			continue
		}

		doc := ClassifyLink(row[0], "")
		if len(row) > 1 && row[1] != "" {
			doc.Kind = model.DocumentKind(strings.ToLower(row[1]))
		}
		if len(row) > 2 && row[2] != "" {
			if d, err := time.Parse("2006-01-02", row[2]); err == nil {
				doc.SurveyDate = survey.MonthStart(d)
			} else {
				zap.L().Warn("manifest: bad date, inferring from URL",
					zap.String("url", row[0]),
					zap.String("date", row[2]),
				)
			}
		}
		if len(row) > 3 && row[3] != "" {
			doc.SurveyType = survey.ClassifyPanel(row[3], doc.SurveyDate)
		}

		docs = append(docs, doc)
	}
	return docs, nil
}

// ScanDir builds documents from the XLSX and PDF files already present in
// dataDir, for running extraction without a manifest.
func ScanDir(dataDir string) ([]model.SourceDocument, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, eris.Wrapf(err, "manifest: scan %s", dataDir)
	}

	var docs []model.SourceDocument
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		doc := ClassifyLink(name, "")
		if doc.Kind == "" {
			continue
		}
		doc.URL = ""
		doc.LocalPath = filepath.Join(dataDir, name)
		docs = append(docs, doc)
	}
	return docs, nil
}

func urlPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return u.Path
	}
	return rawURL
}
