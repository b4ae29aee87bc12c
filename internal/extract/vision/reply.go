package vision

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

type percentileReply struct {
	Found       bool     `json:"found"`
	Pctl25      *float64 `json:"pctl25"`
	Pctl50      *float64 `json:"pctl50"`
	Pctl75      *float64 `json:"pctl75"`
	SurveyMonth int      `json:"survey_month"`
	SurveyYear  int      `json:"survey_year"`
	Page        *int     `json:"page"`
	Reason      string   `json:"reason"`
}

type dotReply struct {
	Found             bool           `json:"found"`
	MeetingDate       string         `json:"meeting_date"`
	LongerRunDots     map[string]int `json:"longer_run_dots"`
	TotalParticipants int            `json:"total_participants"`
	Page              *int           `json:"page"`
	Reason            string         `json:"reason"`
}

// decodeReply parses a model reply into v, tolerating markdown fences and
// prose around the JSON object.
func decodeReply(raw string, v any) error {
	payload := extractJSON(raw)
	if payload == "" {
		return eris.New("vision: no JSON object in reply")
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return eris.Wrap(err, "vision: decode reply")
	}
	return nil
}

// extractJSON returns the first balanced top-level JSON object in s, with
// any markdown code fences removed.
func extractJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
