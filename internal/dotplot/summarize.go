// Package dotplot turns per-level dot counts from FOMC projection charts
// into percentile summaries.
package dotplot

import (
	"math"
	"sort"

	"github.com/sells-group/fedrates-cli/internal/model"
)

// Summary holds the quantiles of the implicit sample behind a dot count.
type Summary struct {
	N      int
	Pctl25 *float64
	Pctl50 *float64
	Pctl75 *float64
}

// Summarize expands the counts into the implicit sorted sample and takes
// linear-interpolation quantiles. Empty counts produce N=0 and nil
// percentiles.
func Summarize(dc model.DotCount) Summary {
	levels := make([]float64, 0, len(dc.Counts))
	for level, n := range dc.Counts {
		if n > 0 {
			levels = append(levels, level)
		}
	}
	sort.Float64s(levels)

	var sample []float64
	for _, level := range levels {
		for range dc.Counts[level] {
			sample = append(sample, level)
		}
	}

	if len(sample) == 0 {
		return Summary{}
	}

	return Summary{
		N:      len(sample),
		Pctl25: model.Float(quantile(sample, 0.25)),
		Pctl50: model.Float(quantile(sample, 0.50)),
		Pctl75: model.Float(quantile(sample, 0.75)),
	}
}

// quantile computes the p-quantile of a sorted sample by linear
// interpolation between the two nearest order statistics.
func quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}

	h := float64(n-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// ToRecord builds a percentile record from a dot count and its summary.
// Committee projections have no survey panel split, so the record is
// always Combined.
func ToRecord(dc model.DotCount, s Summary) model.PercentileRecord {
	rec := model.PercentileRecord{
		SurveyDate: dc.MeetingDate,
		Panel:      model.PanelCombined,
		Concept:    model.ConceptFFLongerRun,
		Pctl25:     s.Pctl25,
		Pctl50:     s.Pctl50,
		Pctl75:     s.Pctl75,
		Source:     model.SourceVision,
		PDFPage:    dc.Page,
	}
	if s.N == 0 {
		rec.Notes = "no_longer_run_dots"
	}
	return rec
}
