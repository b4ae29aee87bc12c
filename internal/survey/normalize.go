// Package survey holds the shared leaf logic of the extraction pipeline:
// rate normalization, panel classification, concept matching, and survey
// date parsing. Everything here is pure and total; unparsable input
// degrades to a nil/zero result.
package survey

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// decimalFractionCutoff separates percent-scale values from decimal
// fractions. Observed longer-run rates sit in roughly 0–10%, so any
// magnitude below 0.5 is read as a fraction (0.0313 → 3.13%). A genuine
// sub-0.5% rate would be misread; accepted approximation for this domain.
const decimalFractionCutoff = 0.5

var missingTokens = map[string]bool{
	"":    true,
	"na":  true,
	"n/a": true,
	"-":   true,
}

// NormalizeRate converts a raw numeric or string cell into a percent-scale
// rate. Missing tokens and unparsable input yield nil.
func NormalizeRate(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return normalizeFloat(v)
	case float32:
		return normalizeFloat(float64(v))
	case int:
		return normalizeFloat(float64(v))
	case int64:
		return normalizeFloat(float64(v))
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(v, "%", ""))
		if missingTokens[strings.ToLower(s)] {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return normalizeFloat(f)
	default:
		return nil
	}
}

func normalizeFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if math.Abs(v) < decimalFractionCutoff {
		v *= 100
	}
	v = math.Round(v*1e4) / 1e4
	return &v
}

var percentTextPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*%`),
	regexp.MustCompile(`(?i)(\d+\.?\d*)\s*percent`),
	regexp.MustCompile(`(\d+\.?\d*)`),
}

// ExtractPercent pulls the first percentage-looking value out of free text
// ("3.13", "3.13%", "3.125 percent") and normalizes it. Nil when the text
// carries no number.
func ExtractPercent(text string) *float64 {
	for _, pat := range percentTextPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return normalizeFloat(f)
	}
	return nil
}
