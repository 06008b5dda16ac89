package filter

import (
	"strings"

	"github.com/amishk599/freshpost/internal/model"
)

// TitleAndLocationFilter matches candidates whose title contains any of the title
// keywords and whose location contains any of the location keywords, and that
// contain none of the exclude keywords. Matching is case-insensitive. Empty
// include lists are treated as "match all".
type TitleAndLocationFilter struct {
	titleKeywords        []string
	titleExcludeKeywords []string
	locations            []string
	excludeLocations     []string
}

var _ model.PostingFilter = (*TitleAndLocationFilter)(nil)

// NewTitleAndLocationFilter returns the relevance predicate used by structured
// API sources.
func NewTitleAndLocationFilter(titleKeywords, titleExcludeKeywords, locations, excludeLocations []string) *TitleAndLocationFilter {
	return &TitleAndLocationFilter{
		titleKeywords:        lowerAll(titleKeywords),
		titleExcludeKeywords: lowerAll(titleExcludeKeywords),
		locations:            lowerAll(locations),
		excludeLocations:     lowerAll(excludeLocations),
	}
}

// Match returns true if the candidate passes all four keyword lists.
// A candidate without a location passes the location allow-list: many sources
// never report one and dropping them would hide real postings.
func (f *TitleAndLocationFilter) Match(c model.RawCandidate) bool {
	titleLower := strings.ToLower(c.Text)
	locationLower := strings.ToLower(c.Location)

	if len(f.titleKeywords) > 0 && !containsAny(titleLower, f.titleKeywords) {
		return false
	}
	if containsAny(titleLower, f.titleExcludeKeywords) {
		return false
	}
	if locationLower != "" {
		if len(f.locations) > 0 && !containsAny(locationLower, f.locations) {
			return false
		}
		if containsAny(locationLower, f.excludeLocations) {
			return false
		}
	}
	return true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
