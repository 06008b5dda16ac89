package adapter

import (
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/freshpost/internal/model"
)

// SelectorChain is an ordered list of CSS selectors. The first selector that
// matches at least one element is used exclusively; the rest are ignored.
type SelectorChain struct {
	Selectors    []string
	LinkSelector string // optional, looked up inside each matched element
	MaxItems     int    // zero means unbounded
}

// Pick returns the first selector with at least one match in doc, or "".
func (s SelectorChain) Pick(doc *goquery.Document) string {
	for _, sel := range s.Selectors {
		if strings.TrimSpace(sel) == "" {
			continue
		}
		if doc.Find(sel).Length() > 0 {
			return sel
		}
	}
	return ""
}

// Extract picks a selector and extracts candidates with it. The chosen
// selector is returned so later pages of the same listing can reuse it.
func (s SelectorChain) Extract(doc *goquery.Document, pageURL *url.URL, source string) ([]model.RawCandidate, string) {
	sel := s.Pick(doc)
	if sel == "" {
		return nil, ""
	}
	return s.ExtractWith(doc, sel, pageURL, source, s.MaxItems), sel
}

// ExtractWith extracts up to limit candidates using a fixed selector.
func (s SelectorChain) ExtractWith(doc *goquery.Document, sel string, pageURL *url.URL, source string, limit int) []model.RawCandidate {
	var out []model.RawCandidate
	page := ""
	if pageURL != nil {
		page = pageURL.String()
	}
	doc.Find(sel).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		out = append(out, model.RawCandidate{
			Source:  source,
			Text:    strings.Join(strings.Fields(el.Text()), " "),
			Link:    resolveLink(pageURL, s.linkOf(el)),
			PageURL: page,
		})
		return true
	})
	return out
}

// linkOf returns the raw href for an element: its own href, else the first
// match of LinkSelector, else the first descendant anchor.
func (s SelectorChain) linkOf(el *goquery.Selection) string {
	if href, ok := el.Attr("href"); ok && strings.TrimSpace(href) != "" {
		return href
	}
	if s.LinkSelector != "" {
		if href, ok := el.Find(s.LinkSelector).First().Attr("href"); ok {
			return href
		}
	}
	href, _ := el.Find("a[href]").First().Attr("href")
	return href
}

// resolveLink makes href absolute against base. Fragment-only and javascript
// links resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return ""
	}
	return u.String()
}

// parseDocument reads HTML into a goquery document.
func parseDocument(r io.Reader) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(r)
}
