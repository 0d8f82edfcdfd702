// Package pipeline drives the acquisition cascade: direct feed, discovered
// feed, rendered page, archive API capture and archive DOM scraping, in
// that order, until one strategy yields posts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dhamsey3/poetry/feed"
	"github.com/dhamsey3/poetry/fetch"
	"github.com/dhamsey3/poetry/normalize"
	"github.com/dhamsey3/poetry/posts"
	"github.com/dhamsey3/poetry/render"
	"github.com/dhamsey3/poetry/scraper"
)

// Fetcher retrieves a document over HTTP.
type Fetcher interface {
	Fetch(ctx context.Context, url, referer string) (*fetch.Result, error)
}

// Enricher backfills missing post fields after acquisition.
type Enricher interface {
	Enrich(ctx context.Context, items []posts.Post) []posts.Post
}

// Options configures a pipeline run.
type Options struct {
	FeedURL       string
	PublicURL     string
	UserAgent     string
	MaxItems      int
	RenderTimeout time.Duration
	// SoftFail ends a run with no posts in Done instead of an error.
	SoftFail bool
	Scraper  scraper.Config
}

// Outcome is the result of a run.
type Outcome struct {
	Posts     []posts.Post
	SiteTitle string
	Succeeded bool
	NoItems   bool
	Strategy  string
	Final     State
}

// Status names the outcome for reporting.
func (o *Outcome) Status() string {
	switch {
	case o == nil || !o.Succeeded:
		return "failed"
	case o.NoItems:
		return "empty"
	default:
		return "success"
	}
}

// Pipeline runs the cascade. A nil renderer disables every state that
// needs a browser.
type Pipeline struct {
	fetcher   Fetcher
	renderer  render.Renderer
	enricher  Enricher
	opts      Options
	cascade   *scraper.Cascade
	pageState *scraper.PageState
}

// New creates a pipeline.
func New(fetcher Fetcher, renderer render.Renderer, opts Options) *Pipeline {
	opts.Scraper = opts.Scraper.WithDefaults()
	if opts.MaxItems <= 0 {
		opts.MaxItems = normalize.DefaultLimit
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetch.DefaultUserAgent
	}
	if opts.PublicURL == "" {
		opts.PublicURL = posts.Origin(opts.FeedURL) + "/"
	}

	return &Pipeline{
		fetcher:   fetcher,
		renderer:  renderer,
		opts:      opts,
		cascade:   scraper.DefaultCascade(opts.Scraper),
		pageState: scraper.NewPageState(opts.Scraper),
	}
}

// WithEnricher sets the enricher applied to accepted posts.
func (p *Pipeline) WithEnricher(e Enricher) *Pipeline {
	p.enricher = e
	return p
}

type stateFunc func(ctx context.Context, t trail) transition

func (p *Pipeline) states() map[State]stateFunc {
	return map[State]stateFunc{
		TryDirectFeed:        p.tryDirectFeed,
		TryDiscoveredFeed:    p.tryDiscoveredFeed,
		TryRenderedFeedPage:  p.tryRenderedFeedPage,
		TryArchiveAPICapture: p.tryArchiveAPICapture,
		TryArchiveDOMScrape:  p.tryArchiveDOMScrape,
	}
}

// Run executes the cascade. The returned error is a *NoItemsError when no
// strategy produced posts and SoftFail is off; the Outcome is returned in
// both cases.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	states := p.states()
	state := TryDirectFeed
	t := trail{}
	var result transition

	for !state.Terminal() {
		slog.Info("Trying strategy", "state", state)
		result = states[state](ctx, t)
		t = result.trail
		state = result.next
	}

	if state == Done {
		items := result.posts
		if p.enricher != nil {
			items = p.enricher.Enrich(ctx, items)
		}
		slog.Info("Acquired posts", "strategy", result.strategy, "count", len(items))
		return &Outcome{
			Posts:     items,
			SiteTitle: t.siteTitle(),
			Succeeded: true,
			Strategy:  result.strategy,
			Final:     Done,
		}, nil
	}

	reason := t.reason
	if reason == "" {
		reason = "no strategy produced posts"
	}
	err := &NoItemsError{Reason: reason, Causes: t.errs}

	if p.opts.SoftFail {
		slog.Warn("No posts acquired, continuing with an empty list", "error", err)
		return &Outcome{
			Posts:     []posts.Post{},
			SiteTitle: t.siteTitle(),
			Succeeded: true,
			NoItems:   true,
			Final:     Done,
		}, nil
	}

	return &Outcome{SiteTitle: t.siteTitle(), Final: Failed}, err
}

func (p *Pipeline) tryDirectFeed(ctx context.Context, t trail) transition {
	url := p.opts.FeedURL
	t = t.withTried(url)

	result, err := p.fetcher.Fetch(ctx, url, p.opts.PublicURL)
	if err != nil {
		return advance(TryDiscoveredFeed, p.fail(t, TryDirectFeed, url, err))
	}

	if fetch.IsHTMLPayload(result.Body, result.ContentType) {
		t = t.withHTML(result.HTML(), result.FinalURL)
		return advance(TryDiscoveredFeed, p.fail(t, TryDirectFeed, url, errors.New("feed URL returned HTML")))
	}

	items, title, err := p.parseFeed(result.Body)
	if err != nil {
		return advance(TryDiscoveredFeed, p.fail(t, TryDirectFeed, url, err))
	}
	return done(t.withFeedTitle(title), items, "feed")
}

func (p *Pipeline) tryDiscoveredFeed(ctx context.Context, t trail) transition {
	html, base := t.html, t.htmlURL
	if html == "" {
		result, err := p.fetcher.Fetch(ctx, p.opts.PublicURL, "")
		if err != nil {
			return advance(TryRenderedFeedPage, p.fail(t, TryDiscoveredFeed, p.opts.PublicURL, err))
		}
		html, base = result.HTML(), result.FinalURL
		t = t.withHTML(html, base)
	}
	if base == "" {
		base = p.opts.PublicURL
	}
	t = t.withPageTitle(pageSiteTitle(html))

	return p.feedFromHTML(ctx, t, html, base, TryDiscoveredFeed, TryRenderedFeedPage)
}

func (p *Pipeline) tryRenderedFeedPage(ctx context.Context, t trail) transition {
	if p.renderer == nil {
		return advance(Failed, t.withReason("rendering disabled"))
	}

	page, err := p.renderer.RenderPage(ctx, p.request(p.opts.PublicURL))
	if err != nil {
		return advance(TryArchiveAPICapture, p.fail(t, TryRenderedFeedPage, p.opts.PublicURL, err))
	}
	t.rendered = page
	t = t.withPageTitle(pageSiteTitle(page.HTML))

	return p.feedFromHTML(ctx, t, page.HTML, page.FinalURL, TryRenderedFeedPage, TryArchiveAPICapture)
}

func (p *Pipeline) tryArchiveAPICapture(ctx context.Context, t trail) transition {
	archiveURL := p.archiveURL()
	marker := p.opts.Scraper.APIMarker

	bodies, err := p.renderer.CollectNetworkJSON(ctx, p.request(archiveURL), func(u string) bool {
		return strings.Contains(u, marker)
	})
	if err != nil {
		t = p.fail(t, TryArchiveAPICapture, archiveURL, err)
	} else if items := p.accept(p.pageState.FromJSONPayloads(bodies, archiveURL)); len(items) > 0 {
		return done(t, items, "api")
	}

	page, err := p.renderer.RenderPage(ctx, p.request(archiveURL))
	if err != nil {
		return advance(TryArchiveDOMScrape, p.fail(t, TryArchiveAPICapture, archiveURL, err))
	}
	t.archive = page

	if items := p.accept(p.pageState.Extract(page.HTML, page.FinalURL)); len(items) > 0 {
		return done(t, items, p.pageState.Name())
	}
	return advance(TryArchiveDOMScrape, p.fail(t, TryArchiveAPICapture, archiveURL, errors.New("no captured posts")))
}

func (p *Pipeline) tryArchiveDOMScrape(_ context.Context, t trail) transition {
	for _, page := range []*render.Page{t.archive, t.rendered} {
		if page == nil {
			continue
		}
		raws, strategy := p.cascade.Run(page.HTML, page.FinalURL)
		if items := p.accept(raws); len(items) > 0 {
			return done(t, items, strategy)
		}
		slog.Warn("No posts in rendered page", "state", TryArchiveDOMScrape, "url", page.FinalURL)
	}
	return advance(Failed, t.withReason("no items found"))
}

// feedFromHTML discovers a feed link in html and fetches it, advancing to
// fallback unless the feed yields posts.
func (p *Pipeline) feedFromHTML(ctx context.Context, t trail, html, base string, state, fallback State) transition {
	feedURL, ok := feed.Discover(html, base)
	if !ok {
		slog.Info("No feed link advertised", "state", state, "url", base)
		return advance(fallback, t.withError(fmt.Errorf("%s: no feed link advertised at %s", state, base)))
	}
	if t.triedURL(feedURL) {
		slog.Info("Discovered feed already tried", "state", state, "url", feedURL)
		return advance(fallback, t)
	}
	t = t.withTried(feedURL)
	slog.Info("Discovered feed", "state", state, "url", feedURL)

	result, err := p.fetcher.Fetch(ctx, feedURL, p.opts.PublicURL)
	if err != nil {
		return advance(fallback, p.fail(t, state, feedURL, err))
	}
	if fetch.IsHTMLPayload(result.Body, result.ContentType) {
		return advance(fallback, p.fail(t, state, feedURL, errors.New("discovered feed returned HTML")))
	}

	items, title, err := p.parseFeed(result.Body)
	if err != nil {
		return advance(fallback, p.fail(t, state, feedURL, err))
	}
	return done(t.withFeedTitle(title), items, "discovered_feed")
}

func (p *Pipeline) parseFeed(body []byte) ([]posts.Post, string, error) {
	doc, err := feed.Parse(body)
	if err != nil {
		return nil, "", err
	}
	items := p.accept(doc.Entries)
	if len(items) == 0 {
		return nil, doc.Title, errors.New("feed has no usable entries")
	}
	return items, doc.Title, nil
}

func (p *Pipeline) accept(raws []posts.Raw) []posts.Post {
	if len(raws) == 0 {
		return nil
	}
	return normalize.Normalize(raws, p.opts.MaxItems)
}

func (p *Pipeline) fail(t trail, state State, url string, err error) trail {
	slog.Warn("Strategy failed", "state", state, "url", url, "error", err)
	return t.withError(fmt.Errorf("%s: %w", state, err))
}

func (p *Pipeline) request(url string) render.Request {
	return render.Request{
		URL:          url,
		UserAgent:    p.opts.UserAgent,
		WaitSelector: p.opts.Scraper.WaitSelector,
		Timeout:      p.opts.RenderTimeout,
	}
}

func (p *Pipeline) archiveURL() string {
	origin := posts.Origin(p.opts.PublicURL)
	if origin == "" {
		origin = posts.Origin(p.opts.FeedURL)
	}
	return p.opts.Scraper.ArchiveURL(origin)
}

// pageSiteTitle reads og:site_name, then the document title.
func pageSiteTitle(html string) string {
	meta := normalize.ReadPageMeta(html)
	if meta.SiteName != "" {
		return meta.SiteName
	}
	return meta.DocumentTitle
}
