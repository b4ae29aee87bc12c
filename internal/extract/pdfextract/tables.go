package pdfextract

import (
	"regexp"
	"strings"

	"github.com/sells-group/fedrates-cli/internal/survey"
)

// Table shapes found in the layout text of candidate pages. Vertical
// tables put one percentile per line with the value trailing; horizontal
// tables put the percentile names in a header line with the values on the
// following line.

var (
	trailingValueRe = regexp.MustCompile(`(?:^|\s)(\d{1,2}(?:\.\d+)?)\s*%?\s*$`)
	lineValueRe     = regexp.MustCompile(`\d{1,2}(?:\.\d+)?`)
)

var slotMarkers = map[int][]string{
	25: {"25th", "p25", "1st quartile", "first quartile"},
	50: {"median", "50th", "p50"},
	75: {"75th", "p75", "3rd quartile", "third quartile"},
}

// parseTables tries the vertical shape then the horizontal shape.
func parseTables(text string) (p25, p50, p75 *float64) {
	p25, p50, p75 = parseVerticalTable(text)
	if p25 != nil || p50 != nil || p75 != nil {
		return p25, p50, p75
	}
	return parseHorizontalTable(text)
}

// parseVerticalTable reads lines shaped "75th Percentile      3.25".
func parseVerticalTable(text string) (p25, p50, p75 *float64) {
	for _, line := range strings.Split(text, "\n") {
		slot := slotForLine(line)
		if slot == 0 {
			continue
		}
		m := trailingValueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v := survey.NormalizeRate(m[1])
		if v == nil {
			continue
		}
		switch slot {
		case 25:
			if p25 == nil {
				p25 = v
			}
		case 50:
			if p50 == nil {
				p50 = v
			}
		case 75:
			if p75 == nil {
				p75 = v
			}
		}
	}
	return p25, p50, p75
}

// parseHorizontalTable reads a header line naming the percentiles with the
// values on the next non-empty line, assigned in header order.
func parseHorizontalTable(text string) (p25, p50, p75 *float64) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		slots := headerSlots(line)
		if len(slots) < 2 {
			continue
		}

		values := nextLineValues(lines, i+1)
		if len(values) < len(slots) {
			continue
		}

		for k, slot := range slots {
			v := survey.NormalizeRate(values[k])
			if v == nil {
				continue
			}
			switch slot {
			case 25:
				p25 = v
			case 50:
				p50 = v
			case 75:
				p75 = v
			}
		}
		return p25, p50, p75
	}
	return nil, nil, nil
}

// slotForLine maps a single table line to a percentile slot by its label.
// Lines naming more than one percentile are header material, not rows.
func slotForLine(line string) int {
	lower := strings.ToLower(line)
	found := 0
	slot := 0
	for s, markers := range slotMarkers {
		for _, m := range markers {
			if strings.Contains(lower, m) {
				found++
				slot = s
				break
			}
		}
	}
	if found != 1 {
		return 0
	}
	return slot
}

// headerSlots returns the percentile slots named in a header line, in
// column order. At most one marker per slot counts.
func headerSlots(line string) []int {
	lower := strings.ToLower(line)
	type hit struct {
		pos  int
		slot int
	}
	var hits []hit
	for slot, markers := range slotMarkers {
		best := -1
		for _, m := range markers {
			if idx := strings.Index(lower, m); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			hits = append(hits, hit{pos: best, slot: slot})
		}
	}
	for i := range hits {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].pos < hits[i].pos {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.slot
	}
	return out
}

// nextLineValues finds the first following non-empty line made mostly of
// numbers and returns its numeric tokens.
func nextLineValues(lines []string, from int) []string {
	for i := from; i < len(lines) && i < from+3; i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		values := lineValueRe.FindAllString(line, -1)
		if len(values) >= 2 {
			return values
		}
	}
	return nil
}
