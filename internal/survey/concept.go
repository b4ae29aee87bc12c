package survey

import (
	"regexp"
	"sort"
	"unicode/utf8"
)

// Keyword families for the longer-run federal funds rate concept. A text
// block matches when at least one pattern from each family is present,
// regardless of order or distance. Survey tables routinely split the
// qualifier ("longer run") and the subject ("target federal funds rate")
// across a header and a row label.
var (
	longerRunPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)longer[\s-]*run`),
		regexp.MustCompile(`(?i)long[\s-]*run`),
		regexp.MustCompile(`(?i)longrun`),
	}
	federalFundsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)federal\s*funds`),
		regexp.MustCompile(`(?i)fed\s*funds`),
		regexp.MustCompile(`(?i)fftr`),
		regexp.MustCompile(`(?i)target\s*rate`),
	}
)

// MatchesLongerRunFF reports whether the text refers to the longer-run
// federal funds rate concept.
func MatchesLongerRunFF(text string) bool {
	return anyMatch(longerRunPatterns, text) && anyMatch(federalFundsPatterns, text)
}

// LongerRunIndices returns the rune offsets of every longer-run phrase
// occurrence in text, ascending. Callers window page text around these
// offsets to build candidate sections.
func LongerRunIndices(text string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, p := range longerRunPatterns {
		for _, loc := range p.FindAllStringIndex(text, -1) {
			runeIdx := utf8.RuneCountInString(text[:loc[0]])
			if !seen[runeIdx] {
				seen[runeIdx] = true
				out = append(out, runeIdx)
			}
		}
	}
	sort.Ints(out)
	return out
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
