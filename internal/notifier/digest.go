package notifier

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"text/template"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// BuildDigest groups novel postings by source. Groups are sorted by source
// name; postings keep their catalog order within a group.
func BuildDigest(novel []model.Posting, now time.Time) model.Digest {
	index := make(map[string]int)
	var groups []model.DigestGroup
	for _, p := range novel {
		i, ok := index[p.Source]
		if !ok {
			i = len(groups)
			index[p.Source] = i
			groups = append(groups, model.DigestGroup{Source: p.Source})
		}
		groups[i].Postings = append(groups[i].Postings, p)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Source < groups[b].Source })
	return model.Digest{GeneratedAt: now, Groups: groups}
}

// Subject returns the digest headline used as email subject and slack header.
func Subject(d model.Digest) string {
	return fmt.Sprintf("%d new postings found", d.Total())
}

// SampleDigest returns a one-item digest used to verify a notifier end to end.
func SampleDigest(now time.Time) model.Digest {
	return BuildDigest([]model.Posting{{
		Source:   "freshpost",
		Title:    "Test notification, integration verified",
		Key:      "freshpost:test-001",
		URL:      "https://github.com/amishk599/freshpost",
		PostedAt: &now,
		Location: "Everywhere",
	}}, now)
}

var funcs = map[string]any{
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("Jan 2, 2006")
	},
	"stamp": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 MST")
	},
}

const htmlDigest = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222; max-width: 640px;">
<h2 style="margin-bottom: 4px;">{{.Subject}}</h2>
<p style="color: #666; margin-top: 0;">{{len .Digest.Groups}} sources with new postings</p>
{{range .Digest.Groups}}
<h3 style="border-bottom: 1px solid #ddd; padding-bottom: 4px;">{{.Source}} ({{len .Postings}})</h3>
<ul style="padding-left: 18px;">
{{- range .Postings}}
<li style="margin-bottom: 6px;">
{{- if .URL}}<a href="{{.URL}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}
{{- if .Location}} <span style="color: #666;">· {{.Location}}</span>{{end}}
{{- with date .PostedAt}} <span style="color: #999;">· posted {{.}}</span>{{end}}
</li>
{{- end}}
</ul>
{{end}}
<p style="color: #999; font-size: 12px;">Generated by freshpost at {{stamp .Digest.GeneratedAt}}. Each posting is reported once.</p>
</body>
</html>
`

const textDigest = `{{.Subject}}
{{range .Digest.Groups}}
{{.Source}} ({{len .Postings}})
{{range .Postings}}- {{.Title}}{{if .Location}} [{{.Location}}]{{end}}{{with date .PostedAt}} posted {{.}}{{end}}
{{if .URL}}  {{.URL}}
{{end}}{{end}}{{end}}
Generated by freshpost at {{stamp .Digest.GeneratedAt}}.
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("digest.html").Funcs(funcs).Parse(htmlDigest))
	textTmpl = template.Must(template.New("digest.txt").Funcs(funcs).Parse(textDigest))
)

type digestView struct {
	Subject string
	Digest  model.Digest
}

// RenderHTML renders the digest as an HTML document.
func RenderHTML(d model.Digest) (string, error) {
	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, digestView{Subject: Subject(d), Digest: d}); err != nil {
		return "", fmt.Errorf("render html digest: %w", err)
	}
	return buf.String(), nil
}

// RenderText renders the plain-text alternative of the digest.
func RenderText(d model.Digest) (string, error) {
	var buf bytes.Buffer
	if err := textTmpl.Execute(&buf, digestView{Subject: Subject(d), Digest: d}); err != nil {
		return "", fmt.Errorf("render text digest: %w", err)
	}
	return buf.String(), nil
}
