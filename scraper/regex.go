package scraper

import (
	"regexp"
	"strings"

	"github.com/dhamsey3/poetry/posts"
)

// relativeBoundary lists the bytes that may precede a host-less post path.
// Anything else means the match starts inside a longer URL.
const relativeBoundary = " \t\r\n\"'`=(>,;["

// Regex finds post URLs anywhere in the markup, including inline scripts.
// Records carry only a link.
type Regex struct {
	cfg     Config
	pattern *regexp.Regexp
}

func NewRegex(cfg Config) *Regex {
	cfg = cfg.WithDefaults()
	pattern := regexp.MustCompile(`(?:(?:https?:)?//[A-Za-z0-9.\-]+(?::[0-9]+)?)?` + regexp.QuoteMeta(cfg.PostPathMarker) + `[A-Za-z0-9\-_%]+`)
	return &Regex{cfg: cfg, pattern: pattern}
}

func (r *Regex) Name() string { return "regex" }

func (r *Regex) Extract(html, baseURL string) []posts.Raw {
	var raws []posts.Raw
	for _, loc := range r.pattern.FindAllStringIndex(html, -1) {
		match := html[loc[0]:loc[1]]
		if strings.HasPrefix(match, r.cfg.PostPathMarker) && !relativeStart(html, loc[0]) {
			continue
		}
		link := posts.CanonicalLink(match, baseURL)
		if link == "" || !posts.SameOrigin(link, baseURL) {
			continue
		}
		raws = append(raws, posts.Raw{Link: link, Source: "regex"})
	}
	return posts.DedupeRaws(raws, baseURL)
}

func relativeStart(html string, at int) bool {
	return at == 0 || strings.IndexByte(relativeBoundary, html[at-1]) >= 0
}
