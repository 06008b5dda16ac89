// Package identity derives stable keys and display titles for postings.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength bounds cleaned titles, in runes.
const MaxTitleLength = 100

// digestLength is the number of hex characters kept from the SHA-256 digest.
const digestLength = 16

var (
	postedSuffix = regexp.MustCompile(`(?i)[\s\-–|·•,]*\b(posted|updated)\b\s+(today|yesterday|just now|(\d+\+?|a|an)\s+(minute|hour|day|week|month)s?\s+ago)\s*$`)
	separators   = []string{" | ", " · ", " • ", " — ", " – "}
	punctTrim    = " \t-–|·•,:;"
)

// CleanTitle collapses whitespace and truncates text to MaxTitleLength runes.
func CleanTitle(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	return truncate(t, MaxTitleLength)
}

// NormalizeTitle reduces a title to the form used for hashing and dedup: the
// trailing "posted X days ago" marker and the last segment after a separator
// (usually the location) are removed, the result is lowercased and truncated.
func NormalizeTitle(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	t = postedSuffix.ReplaceAllString(t, "")
	t = strings.TrimRight(t, punctTrim)
	cut := -1
	for _, sep := range separators {
		cut = max(cut, strings.LastIndex(t, sep))
	}
	if cut > 0 {
		t = t[:cut]
	}
	t = strings.TrimRight(t, punctTrim)
	return truncate(strings.ToLower(t), MaxTitleLength)
}

// ResolveKey returns the canonical key of a posting within source. Priority is
// the external id, then an absolute URL, then the normalized title.
func ResolveKey(source, title, link, externalID string) string {
	if id := strings.TrimSpace(externalID); id != "" {
		return source + ":" + id
	}
	if u := absoluteURL(link); u != "" {
		return source + ":" + Digest(u)
	}
	return source + ":" + Digest(NormalizeTitle(title))
}

// Digest is the first 16 hex characters of the SHA-256 of s.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:digestLength]
}

// absoluteURL returns link in canonical form when it is an absolute http(s) URL.
// Fragments are dropped and the host is lowercased.
func absoluteURL(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
