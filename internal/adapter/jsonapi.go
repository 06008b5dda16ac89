package adapter

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amishk599/freshpost/internal/model"
)

// FieldMapping locates posting fields inside a JSON document using dot paths
// such as "data.jobs" or "location.name".
type FieldMapping struct {
	Items    string // path to the array of postings; empty means the document root
	ID       string
	Title    string
	URL      string
	Location string
	Posted   string
}

// JSONAdapter reads postings from an arbitrary JSON endpoint with a field mapping.
type JSONAdapter struct {
	source    string
	url       string
	fields    FieldMapping
	userAgent string
	client    *http.Client
}

// NewJSONAdapter creates an adapter for a JSON endpoint. The title field
// defaults to "title".
func NewJSONAdapter(source, url string, fields FieldMapping, client *http.Client, userAgent string) *JSONAdapter {
	if fields.Title == "" {
		fields.Title = "title"
	}
	return &JSONAdapter{
		source:    source,
		url:       url,
		fields:    fields,
		userAgent: userAgent,
		client:    client,
	}
}

// FetchCandidates fetches the document and maps each item. Items without a
// title are skipped.
func (a *JSONAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	var doc any
	if err := getJSON(ctx, a.client, a.url, a.userAgent, "json fetch for "+a.source, &doc); err != nil {
		return nil, err
	}

	items, _ := lookup(doc, a.fields.Items).([]any)
	out := make([]model.RawCandidate, 0, len(items))
	for _, item := range items {
		title := stringAt(item, a.fields.Title)
		if title == "" {
			continue
		}
		out = append(out, model.RawCandidate{
			Source:     a.source,
			Text:       extractText(title),
			Link:       stringAt(item, a.fields.URL),
			ExternalID: stringAt(item, a.fields.ID),
			Location:   stringAt(item, a.fields.Location),
			PostedAt:   timeAt(item, a.fields.Posted),
		})
	}
	return out, nil
}

// lookup walks a dot path through decoded JSON. Numeric segments index arrays.
func lookup(v any, path string) any {
	if path == "" {
		return v
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			v = node[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			v = node[i]
		default:
			return nil
		}
	}
	return v
}

func stringAt(v any, path string) string {
	if path == "" {
		return ""
	}
	switch x := lookup(v, path).(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// timeAt reads an RFC 3339 string or a Unix timestamp in seconds or milliseconds.
func timeAt(v any, path string) *time.Time {
	if path == "" {
		return nil
	}
	switch x := lookup(v, path).(type) {
	case string:
		return parseTime(x)
	case float64:
		if x <= 0 {
			return nil
		}
		var t time.Time
		if x > 1e12 {
			t = time.UnixMilli(int64(x)).UTC()
		} else {
			t = time.Unix(int64(x), 0).UTC()
		}
		return &t
	}
	return nil
}
