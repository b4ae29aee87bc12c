package survey

import (
	"strings"
	"time"

	"github.com/sells-group/fedrates-cli/internal/model"
)

// Panel naming-era cutoffs. These encode institutional history that cannot
// be derived from the documents themselves: the market participants survey
// launched in January 2014, and until November 2016 its files carried an
// explicit "mp" marker while dealer files went unmarked.
var (
	SMPLaunch     = time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	MarkedEraEnds = time.Date(2016, 11, 1, 0, 0, 0, 0, time.UTC)
)

var dealerMarkers = []string{"spd", "dealer", "primary"}
var participantMarkers = []string{"smp", "participant", "market_participant"}
var combinedMarkers = []string{"combined", "total", "all", "merged", "sme"}

// ClassifyPanel maps a raw panel label (column value, filename, or link
// text) plus the document date onto the canonical three-panel enumeration.
// It is total: every input classifies, era fallbacks covering the unlabeled
// cases.
func ClassifyPanel(rawLabel string, docDate time.Time) model.Panel {
	label := strings.ToLower(strings.TrimSpace(rawLabel))

	for _, m := range dealerMarkers {
		if strings.Contains(label, m) {
			return model.PanelSPD
		}
	}
	if hasParticipantMarker(label) {
		return model.PanelSMP
	}
	for _, m := range combinedMarkers {
		if strings.Contains(label, m) {
			return model.PanelCombined
		}
	}

	// Before the SMP launch only the dealer survey existed.
	if !docDate.IsZero() && docDate.Before(SMPLaunch) {
		return model.PanelSPD
	}
	// In the marked era, unmarked documents are the dealer survey; SMP files
	// always announced themselves.
	if !docDate.IsZero() && docDate.Before(MarkedEraEnds) {
		return model.PanelSPD
	}

	return model.PanelCombined
}

func hasParticipantMarker(label string) bool {
	for _, m := range participantMarkers {
		if strings.Contains(label, m) {
			return true
		}
	}
	// Filename conventions from the 2014-2016 era: mp_ prefixes and -mp
	// suffixes on result files.
	return strings.HasPrefix(label, "mp-") ||
		strings.HasPrefix(label, "mp_") ||
		strings.Contains(label, "-mp_") ||
		strings.Contains(label, "-mp.pdf") ||
		strings.Contains(label, "-results-mp")
}
