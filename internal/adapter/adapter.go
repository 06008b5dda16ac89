// Package adapter turns one configured source strategy (structured API,
// rendered page or static page) into raw candidates.
package adapter

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/amishk599/freshpost/internal/config"
	"github.com/amishk599/freshpost/internal/model"
)

// Options carries shared dependencies for building adapters.
type Options struct {
	Client     *http.Client
	UserAgent  string
	Horizon    time.Duration // pagination hint for dated APIs, usually the freshness window
	ChromePath string
	Transport  http.RoundTripper // static pages; nil uses colly's default
	Logger     *slog.Logger
}

// New builds the fetcher described by a.
func New(source string, a config.AdapterConfig, opts Options) (model.CandidateFetcher, error) {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: a.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch a.Kind {
	case config.KindAPI:
		switch a.API {
		case "greenhouse":
			return NewGreenhouseAdapter(source, a.BoardToken, a.URL, client, opts.UserAgent), nil
		case "lever":
			return NewLeverAdapter(source, a.BoardToken, a.URL, client, opts.UserAgent), nil
		case "ashby":
			return NewAshbyAdapter(source, a.BoardToken, a.URL, client, opts.UserAgent), nil
		case "gem":
			return NewGemAdapter(source, a.BoardToken, a.URL, client, opts.UserAgent), nil
		case "workday":
			return NewWorkdayAdapter(source, a.URL, a.Query, opts.Horizon, client, opts.UserAgent), nil
		case "microsoft":
			return NewMicrosoftAdapter(source, a.URL, a.Query, opts.Horizon, client, opts.UserAgent), nil
		case "json":
			return NewJSONAdapter(source, a.URL, FieldMapping{
				Items:    a.ItemsPath,
				ID:       a.IDField,
				Title:    a.TitleField,
				URL:      a.URLField,
				Location: a.LocationField,
				Posted:   a.PostedField,
			}, client, opts.UserAgent), nil
		default:
			return nil, fmt.Errorf("source %s: unsupported api flavor %q", source, a.API)
		}
	case config.KindRendered:
		return NewRenderedAdapter(source, a.URL, chainOf(a), RenderedOptions{
			SettleDelay:       a.SettleDelay,
			LoadMoreClicks:    deref(a.LoadMoreClicks),
			Scrolls:           deref(a.Scrolls),
			MaxPages:          deref(a.MaxPages),
			Timeout:           a.Timeout,
			ConsentSelectors:  a.ConsentSelectors,
			LoadMoreSelectors: a.LoadMoreSelectors,
			NextPageSelector:  a.NextPageSelector,
			UserAgent:         opts.UserAgent,
			ChromePath:        opts.ChromePath,
		}, logger), nil
	case config.KindStatic:
		return NewStaticAdapter(source, a.URL, chainOf(a), opts.UserAgent, a.Timeout, opts.Transport), nil
	default:
		return nil, fmt.Errorf("source %s: unsupported adapter kind %q", source, a.Kind)
	}
}

// Describe names an adapter for logs and reports, e.g. "api/greenhouse".
func Describe(a config.AdapterConfig) string {
	if a.Kind == config.KindAPI {
		return a.Kind + "/" + a.API
	}
	return a.Kind
}

// Origin is the host an adapter talks to, used as the rate-limit key.
func Origin(a config.AdapterConfig) string {
	if a.URL != "" {
		if u, err := url.Parse(a.URL); err == nil && u.Host != "" {
			return u.Host
		}
	}
	var base string
	switch a.API {
	case "greenhouse":
		base = greenhouseBaseURL
	case "lever":
		base = leverBaseURL
	case "ashby":
		base = ashbyBaseURL
	case "gem":
		base = gemBaseURL
	case "microsoft":
		base = microsoftBaseURL
	default:
		return a.Kind
	}
	u, _ := url.Parse(base)
	return u.Host
}

func chainOf(a config.AdapterConfig) SelectorChain {
	return SelectorChain{
		Selectors:    a.Selectors,
		LinkSelector: a.LinkSelector,
		MaxItems:     deref(a.MaxItems),
	}
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
