package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhamsey3/poetry/posts"
)

// ancestorDepth is how far up from an anchor a date element is searched.
const ancestorDepth = 3

// Anchors extracts post links from the DOM using prioritized selectors.
// The first selector yielding any same-origin post link wins.
type Anchors struct {
	cfg Config
}

func NewAnchors(cfg Config) *Anchors {
	return &Anchors{cfg: cfg.WithDefaults()}
}

func (a *Anchors) Name() string { return "anchors" }

func (a *Anchors) Extract(html, baseURL string) []posts.Raw {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	for _, selector := range a.cfg.AnchorSelectors {
		var raws []posts.Raw
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if raw, ok := a.anchorToRaw(s, baseURL); ok {
				raws = append(raws, raw)
			}
		})
		if raws = posts.DedupeRaws(raws, baseURL); len(raws) > 0 {
			return raws
		}
	}
	return nil
}

func (a *Anchors) anchorToRaw(s *goquery.Selection, baseURL string) (posts.Raw, bool) {
	if !s.Is("a") {
		s = s.Find("a[href]").First()
	}
	href, ok := s.Attr("href")
	if !ok {
		return posts.Raw{}, false
	}

	link := posts.CanonicalLink(href, baseURL)
	if link == "" || !posts.SameOrigin(link, baseURL) || !isPostPath(link, a.cfg.PostPathMarker) {
		return posts.Raw{}, false
	}

	raw := posts.Raw{
		Title:  collapse(s.Text()),
		Link:   link,
		Source: "anchors",
	}
	if date := nearbyDate(s); date != "" {
		raw.Dates = []string{date}
	}
	return raw, true
}

// nearbyDate looks for a <time> element inside the anchor or one of its
// closest ancestors, preferring a datetime attribute over text.
func nearbyDate(s *goquery.Selection) string {
	scope := s
	for level := 0; level <= ancestorDepth && scope.Length() > 0; level++ {
		if t := scope.Find("time[datetime]").First(); t.Length() > 0 {
			if dt := strings.TrimSpace(t.AttrOr("datetime", "")); dt != "" {
				return dt
			}
		}
		if t := scope.Find("time").First(); t.Length() > 0 {
			if text := collapse(t.Text()); text != "" {
				return text
			}
		}
		scope = scope.Parent()
	}
	return ""
}

func isPostPath(link, marker string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	idx := strings.Index(u.Path, marker)
	return idx >= 0 && len(u.Path) > idx+len(marker)
}
