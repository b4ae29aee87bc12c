package survey

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthsByName = map[string]time.Month{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
	"jan": 1, "feb": 2, "mar": 3, "apr": 4,
	"jun": 6, "jul": 7, "aug": 8, "sep": 9, "sept": 9,
	"oct": 10, "nov": 11, "dec": 12,
}

// Full month names before abbreviations so "march" never matches as "mar"
// inside an unrelated filename fragment.
var orderedMonthNames = []string{
	"january", "february", "march", "april", "june", "july", "august",
	"september", "october", "november", "december",
	"sept", "jan", "feb", "mar", "apr", "may", "jun", "jul", "aug",
	"sep", "oct", "nov", "dec",
}

var (
	monthYearRe = regexp.MustCompile(`(?i)(January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sept|Sep|Oct|Nov|Dec)(?:/\w+)?\s+(\d{4})`)
	numericRe   = regexp.MustCompile(`(\d{1,2})/(\d{4})`)
	compactRe   = regexp.MustCompile(`(?i)fomc(?:projtabl)?(\d{8})`)
	yearRe      = regexp.MustCompile(`20\d{2}`)
)

// ParseSurveyLabel reads a survey or meeting date out of a page label like
// "January 2025 FOMC", "Jul/Aug 2024", or "3/2024". The returned date is
// normalized to the first of the month.
func ParseSurveyLabel(label string) (time.Time, bool) {
	if m := monthYearRe.FindStringSubmatch(label); m != nil {
		month, ok := monthsByName[strings.ToLower(m[1])]
		if ok {
			year, _ := strconv.Atoi(m[2])
			return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	if m := numericRe.FindStringSubmatch(label); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	return time.Time{}, false
}

// DateFromFilename infers a survey date from document filename conventions:
// compact meeting dates first (FOMC20140319, fomcprojtabl20140319), then
// month-name plus year, then a bare year (normalized to January). Results
// are always first-of-month.
func DateFromFilename(name string) (time.Time, bool) {
	if m := compactRe.FindStringSubmatch(name); m != nil {
		if t, err := time.Parse("20060102", m[1]); err == nil {
			return MonthStart(t), true
		}
	}

	if m := monthYearRe.FindStringSubmatch(name); m != nil {
		if month, ok := monthsByName[strings.ToLower(m[1])]; ok {
			year, _ := strconv.Atoi(m[2])
			return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
		}
	}

	// Month name and year separated by other filename parts.
	lower := strings.ToLower(name)
	for _, monthName := range orderedMonthNames {
		if strings.Contains(lower, monthName) {
			if y := yearRe.FindString(name); y != "" {
				year, _ := strconv.Atoi(y)
				return time.Date(year, monthsByName[monthName], 1, 0, 0, 0, 0, time.UTC), true
			}
		}
	}

	if y := yearRe.FindString(name); y != "" {
		year, _ := strconv.Atoi(y)
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}

// MonthStart truncates a date to the first of its month, the canonical
// survey-instance key.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
