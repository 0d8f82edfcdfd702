package normalize

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhamsey3/poetry/fetch"
	"github.com/dhamsey3/poetry/posts"
	"golang.org/x/time/rate"
)

// DefaultEnrichItems bounds how many post pages are fetched per run.
const DefaultEnrichItems = 6

// PageFetcher retrieves a single page.
type PageFetcher interface {
	Fetch(ctx context.Context, url, referer string) (*fetch.Result, error)
}

// EnrichOptions configures an Enricher.
type EnrichOptions struct {
	MaxItems int
	Referer  string
	// Interval is the minimum spacing between page fetches.
	Interval time.Duration
}

// Enricher backfills missing titles and dates from the post pages
// themselves.
type Enricher struct {
	fetcher  PageFetcher
	limiter  *rate.Limiter
	maxItems int
	referer  string
}

// NewEnricher creates an enricher. A negative MaxItems disables it.
func NewEnricher(fetcher PageFetcher, opts EnrichOptions) *Enricher {
	if opts.MaxItems == 0 {
		opts.MaxItems = DefaultEnrichItems
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}
	return &Enricher{
		fetcher:  fetcher,
		limiter:  rate.NewLimiter(rate.Every(opts.Interval), 1),
		maxItems: opts.MaxItems,
		referer:  opts.Referer,
	}
}

// Enrich fetches up to MaxItems posts that lack a title or date and fills
// in what their pages declare. Fetch failures leave the post unchanged.
// The result is re-sorted newest first.
func (e *Enricher) Enrich(ctx context.Context, items []posts.Post) []posts.Post {
	if e == nil || e.fetcher == nil || e.maxItems < 0 {
		return items
	}

	out := make([]posts.Post, len(items))
	copy(out, items)

	fetched := 0
	for i, post := range out {
		if fetched >= e.maxItems {
			break
		}
		if !post.NeedsBackfill() {
			continue
		}
		fetched++

		if err := e.limiter.Wait(ctx); err != nil {
			slog.Debug("Enrichment stopped", "error", err)
			break
		}

		result, err := e.fetcher.Fetch(ctx, post.Link, e.referer)
		if err != nil {
			slog.Debug("Enrichment fetch failed", "url", post.Link, "error", err)
			continue
		}

		meta := ReadPageMeta(result.HTML())
		out[i] = backfill(post, meta)
	}

	return SortNewestFirst(out)
}

// PageMeta holds the metadata a post page declares about itself.
type PageMeta struct {
	Title         string
	DocumentTitle string
	PublishedAt   *time.Time
	SiteName      string
}

// ReadPageMeta reads Open Graph, Twitter card and document metadata.
func ReadPageMeta(html string) PageMeta {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMeta{}
	}

	docTitle := collapse(doc.Find("title").First().Text())
	meta := PageMeta{
		Title:         firstNonEmpty(metaContent(doc, "og:title"), metaContent(doc, "twitter:title"), docTitle),
		DocumentTitle: docTitle,
		SiteName:      metaContent(doc, "og:site_name"),
	}

	candidates := []string{
		metaContent(doc, "article:published_time"),
		doc.Find("time[datetime]").First().AttrOr("datetime", ""),
	}
	meta.PublishedAt = firstDate(candidates)

	return meta
}

func backfill(post posts.Post, meta PageMeta) posts.Post {
	if post.Title == posts.DefaultTitle && meta.Title != "" {
		post.Title = meta.Title
	}
	if post.PublishedAt == nil && meta.PublishedAt != nil {
		post.PublishedAt = meta.PublishedAt
	}
	return post
}

// metaContent reads a <meta> tag by property or name.
func metaContent(doc *goquery.Document, key string) string {
	sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
	return collapse(sel.AttrOr("content", ""))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
