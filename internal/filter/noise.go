package filter

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/amishk599/freshpost/internal/config"
)

// Reason names the rule that decided a classification.
type Reason string

const (
	ReasonTooShort   Reason = "too_short"
	ReasonNavigation Reason = "navigation_phrase"
	ReasonStopword   Reason = "section_header"
	ReasonNoRole     Reason = "no_role_keyword"
	ReasonAccepted   Reason = "accepted"
)

// DefaultMinLength is the shortest trimmed text that can still be a title.
const DefaultMinLength = 6

// DefaultNoisePhrases are navigational, consent and legal fragments that show up
// in scraped career pages.
var DefaultNoisePhrases = []string{
	"cookie", "consent", "privacy policy", "privacy notice", "terms of use", "terms of service",
	"accept all", "reject all", "manage preferences", "load more", "show more", "view more",
	"see more", "view role", "view job", "view all", "learn more", "apply now", "sign in",
	"log in", "back to top", "skip to", "all rights reserved", "copyright", "©", "follow us",
	"subscribe", "search jobs", "sort by", "saved jobs", "job alerts", "contact us",
	"equal opportunity", "read more",
}

// DefaultStoplist holds single-word section headers and brand names.
var DefaultStoplist = []string{
	"engineering", "product", "program", "design", "marketing", "sales", "operations",
	"finance", "legal", "research", "careers", "jobs", "teams", "locations", "benefits",
	"google", "apple", "netflix", "meta", "amazon", "microsoft", "nvidia", "stripe",
	"openai", "anthropic", "spacex", "tesla",
}

// DefaultRoleKeywords indicate that a string names a role.
var DefaultRoleKeywords = []string{
	"product", "program", "project", "manager", "engineer", "developer", "analyst",
	"scientist", "designer", "lead", "director", "head of", "architect", "specialist",
	"coordinator", "strategist", "owner", "researcher", "consultant", "administrator",
	"technician", "associate", "intern",
}

// Verdict is the outcome of classifying one string.
type Verdict struct {
	Noise  bool
	Reason Reason
}

// NoiseClassifier decides whether extracted text is a genuine posting or UI noise.
// Rules are applied in order and the first match wins.
type NoiseClassifier struct {
	minLength int
	stoplist  map[string]bool

	mu       sync.Mutex // ahocorasick.Matcher keeps per-call scratch state
	phrases  *ahocorasick.Matcher
	roles    *ahocorasick.Matcher
	hasRoles bool
}

// NewNoiseClassifier builds a classifier from config, filling gaps with the defaults.
func NewNoiseClassifier(cfg config.ClassifierConfig) *NoiseClassifier {
	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	phrases := orDefault(cfg.NoisePhrases, DefaultNoisePhrases)
	phrases = append(append([]string(nil), phrases...), cfg.ExtraPhrases...)
	stop := orDefault(cfg.Stoplist, DefaultStoplist)
	stop = append(append([]string(nil), stop...), cfg.ExtraStopwords...)
	roles := orDefault(cfg.RoleKeywords, DefaultRoleKeywords)

	c := &NoiseClassifier{
		minLength: minLength,
		stoplist:  make(map[string]bool, len(stop)),
	}
	for _, w := range stop {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			c.stoplist[w] = true
		}
	}
	if p := lowerAll(phrases); len(p) > 0 {
		c.phrases = ahocorasick.NewStringMatcher(p)
	}
	if r := lowerAll(roles); len(r) > 0 {
		c.roles = ahocorasick.NewStringMatcher(r)
		c.hasRoles = true
	}
	return c
}

// IsNoise reports whether text should be dropped.
func (c *NoiseClassifier) IsNoise(text string) bool {
	return c.Classify(text).Noise
}

// Classify returns the verdict and the rule that produced it. The result depends
// only on text and the configured rules.
func (c *NoiseClassifier) Classify(text string) Verdict {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < c.minLength {
		return Verdict{Noise: true, Reason: ReasonTooShort}
	}

	lower := strings.ToLower(strings.Join(strings.Fields(trimmed), " "))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phrases != nil && len(c.phrases.Match([]byte(lower))) > 0 {
		return Verdict{Noise: true, Reason: ReasonNavigation}
	}

	if words := strings.Fields(lower); len(words) == 1 {
		w := strings.TrimFunc(words[0], func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if c.stoplist[w] {
			return Verdict{Noise: true, Reason: ReasonStopword}
		}
	}

	if c.hasRoles && len(c.roles.Match([]byte(lower))) == 0 {
		return Verdict{Noise: true, Reason: ReasonNoRole}
	}

	return Verdict{Noise: false, Reason: ReasonAccepted}
}

func orDefault(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
