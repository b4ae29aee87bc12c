package pdfextract

import (
	"regexp"

	"github.com/sells-group/fedrates-cli/internal/survey"
)

// Line patterns for compact percentile labels as they appear in the survey
// PDFs ("25th Pctl: 3.00", "Median 3.13", "p75 = 3.25"). Each slot has its
// own ordered list; the first match wins. Label and value must share a
// line, and the value must not run into another label ("Median 75th Pctl"
// in a table header is not a median of 75).
const valueTail = `[ \t]*[:=]?[ \t]*(\d+\.?\d*)[ \t]*%?(?:[^0-9a-z]|$)`

var (
	p25LineRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)25th[ \t]*p(?:e?r)?c?t?l?\.?` + valueTail),
		regexp.MustCompile(`(?i)\bp25\b` + valueTail),
	}
	p50LineRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)median` + valueTail),
		regexp.MustCompile(`(?i)\bp50\b` + valueTail),
	}
	p75LineRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)75th[ \t]*p(?:e?r)?c?t?l?\.?` + valueTail),
		regexp.MustCompile(`(?i)\bp75\b` + valueTail),
	}
)

// matchLinePatterns scans a candidate section for labeled percentile
// values. Returns nil for any slot with no match.
func matchLinePatterns(text string) (p25, p50, p75 *float64) {
	p25 = firstMatch(p25LineRes, text)
	p50 = firstMatch(p50LineRes, text)
	p75 = firstMatch(p75LineRes, text)
	return p25, p50, p75
}

func firstMatch(patterns []*regexp.Regexp, text string) *float64 {
	for _, re := range patterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := survey.NormalizeRate(m[1]); v != nil {
			return v
		}
	}
	return nil
}
