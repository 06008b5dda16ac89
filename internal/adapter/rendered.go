package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/amishk599/freshpost/internal/model"
)

// RenderedOptions bounds the interaction with a JavaScript-rendered page.
type RenderedOptions struct {
	SettleDelay       time.Duration
	LoadMoreClicks    int
	Scrolls           int
	MaxPages          int
	Timeout           time.Duration
	ConsentSelectors  []string
	LoadMoreSelectors []string // empty means buttons labelled View/Load/Show More
	NextPageSelector  string
	UserAgent         string
	ChromePath        string
}

// RenderedAdapter drives a headless Chrome through a career page: navigate,
// settle, dismiss consent banners, expand the listing, then extract with a
// selector chain.
type RenderedAdapter struct {
	source  string
	pageURL string
	chain   SelectorChain
	opts    RenderedOptions
	logger  *slog.Logger
}

// NewRenderedAdapter creates an adapter for a JavaScript-rendered page.
func NewRenderedAdapter(source, pageURL string, chain SelectorChain, opts RenderedOptions, logger *slog.Logger) *RenderedAdapter {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 1
	}
	return &RenderedAdapter{
		source:  source,
		pageURL: pageURL,
		chain:   chain,
		opts:    opts,
		logger:  logger,
	}
}

// FetchCandidates renders the page and returns at most chain.MaxItems candidates.
func (a *RenderedAdapter) FetchCandidates(ctx context.Context) ([]model.RawCandidate, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.NoSandbox,
	)
	if a.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(a.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, a.opts.Timeout)
	defer cancel()

	pages, finalURL, err := a.render(taskCtx)
	if err != nil && len(pages) == 0 {
		return nil, fmt.Errorf("rendered fetch for %s: %w", a.source, err)
	}
	if err != nil {
		a.logger.Warn("rendered page interaction cut short", "source", a.source, "pages", len(pages), "error", err)
	}

	base, _ := url.Parse(finalURL)
	if base == nil {
		base, _ = url.Parse(a.pageURL)
	}
	return a.extract(pages, base)
}

// extract applies the selector chain to the first page and reuses the chosen
// selector for later pages.
func (a *RenderedAdapter) extract(pages []string, base *url.URL) ([]model.RawCandidate, error) {
	var (
		out  []model.RawCandidate
		used string
	)
	for i, html := range pages {
		doc, err := parseDocument(strings.NewReader(html))
		if err != nil {
			return out, fmt.Errorf("rendered parse for %s: %w", a.source, err)
		}
		if i == 0 {
			used = a.chain.Pick(doc)
			if used == "" {
				return nil, nil
			}
			a.logger.Debug("selector chosen", "source", a.source, "selector", used)
		}
		limit := 0
		if a.chain.MaxItems > 0 {
			limit = a.chain.MaxItems - len(out)
			if limit <= 0 {
				break
			}
		}
		out = append(out, a.chain.ExtractWith(doc, used, base, a.source, limit)...)
	}
	return out, nil
}

// render returns the outer HTML of every visited page. Pages captured before
// an interaction error are still returned.
func (a *RenderedAdapter) render(ctx context.Context) ([]string, string, error) {
	var (
		html     string
		finalURL string
	)
	if err := chromedp.Run(ctx,
		a.networkSetup(),
		chromedp.Navigate(a.pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(a.opts.SettleDelay),
	); err != nil {
		return nil, "", err
	}

	for _, sel := range a.opts.ConsentSelectors {
		if clicked, _ := clickFirst(ctx, sel); clicked {
			a.logger.Debug("consent dismissed", "source", a.source, "selector", sel)
			_ = chromedp.Run(ctx, chromedp.Sleep(a.opts.SettleDelay/3))
		}
	}

	for i := 0; i < a.opts.LoadMoreClicks; i++ {
		clicked, err := a.clickLoadMore(ctx)
		if err != nil || !clicked {
			break
		}
		if err := chromedp.Run(ctx, chromedp.Sleep(a.opts.SettleDelay)); err != nil {
			break
		}
	}

	for i := 0; i < a.opts.Scrolls; i++ {
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(a.opts.SettleDelay/2),
		); err != nil {
			break
		}
	}

	if err := chromedp.Run(ctx,
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return nil, "", err
	}
	pages := []string{html}

	for p := 1; p < a.opts.MaxPages && a.opts.NextPageSelector != ""; p++ {
		clicked, err := clickFirst(ctx, a.opts.NextPageSelector)
		if err != nil {
			return pages, finalURL, err
		}
		if !clicked {
			break
		}
		var next string
		if err := chromedp.Run(ctx,
			chromedp.Sleep(a.opts.SettleDelay),
			chromedp.OuterHTML("html", &next, chromedp.ByQuery),
		); err != nil {
			return pages, finalURL, err
		}
		pages = append(pages, next)
	}
	return pages, finalURL, nil
}

func (a *RenderedAdapter) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if a.opts.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(a.opts.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

const loadMoreByText = `(() => {
	const re = /\b(view|load|show|see) more\b/i;
	for (const el of document.querySelectorAll('button, a[role="button"]')) {
		if (el.offsetParent !== null && re.test(el.textContent || '')) { el.click(); return true; }
	}
	return false;
})()`

func (a *RenderedAdapter) clickLoadMore(ctx context.Context) (bool, error) {
	if len(a.opts.LoadMoreSelectors) == 0 {
		var clicked bool
		err := chromedp.Run(ctx, chromedp.Evaluate(loadMoreByText, &clicked))
		return clicked, err
	}
	for _, sel := range a.opts.LoadMoreSelectors {
		clicked, err := clickFirst(ctx, sel)
		if err != nil || clicked {
			return clicked, err
		}
	}
	return false, nil
}

// clickFirst clicks the first visible element matching sel. It never waits
// for the element to appear.
func clickFirst(ctx context.Context, sel string) (bool, error) {
	quoted, err := json.Marshal(sel)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
	let el;
	try { el = document.querySelector(%s); } catch (e) { return false; }
	if (!el || el.offsetParent === null) return false;
	el.click();
	return true;
})()`, quoted)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}
