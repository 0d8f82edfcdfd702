package scraper

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhamsey3/poetry/posts"
)

var (
	postListKeys = []string{"posts", "newPosts", "items"}
	titleKeys    = []string{"title", "headline", "name"}
	linkKeys     = []string{"canonical_url", "url"}
	dateKeys     = []string{"post_date", "published_at", "datePublished", "publishedAt", "date", "updated_at"}
	summaryKeys  = []string{"description", "subtitle", "excerpt", "truncated_body_text"}

	preloadsPattern = regexp.MustCompile(`(?s)window\._preloads\s*=\s*JSON\.parse\(\s*("(?:[^"\\]|\\.)*")\s*\)`)
)

// PageState extracts posts from application state embedded in the page by
// the publication's frontend.
type PageState struct {
	cfg Config
}

// NewPageState creates the extractor. The post path marker is used to turn
// slugs into links.
func NewPageState(cfg Config) *PageState {
	return &PageState{cfg: cfg.WithDefaults()}
}

func (p *PageState) Name() string { return "pagestate" }

func (p *PageState) Extract(html, baseURL string) []posts.Raw {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var raws []posts.Raw
	doc.Find("script#__NEXT_DATA__").Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err == nil {
			raws = append(raws, p.fromState(data, baseURL, "pagestate")...)
		}
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		for _, m := range preloadsPattern.FindAllStringSubmatch(s.Text(), -1) {
			data, ok := decodePreloads(m[1])
			if ok {
				raws = append(raws, p.fromState(data, baseURL, "pagestate")...)
			}
		}
	})

	return posts.DedupeRaws(raws, baseURL)
}

// FromJSONPayloads maps captured API response bodies. A body may be a bare
// list of post objects or any document holding a post list.
func (p *PageState) FromJSONPayloads(bodies []string, baseURL string) []posts.Raw {
	var raws []posts.Raw
	for _, body := range bodies {
		var data any
		if err := json.Unmarshal([]byte(body), &data); err != nil {
			continue
		}
		if list, ok := data.([]any); ok {
			if mapped := p.fromList(list, baseURL, "api"); len(mapped) > 0 {
				raws = append(raws, mapped...)
				continue
			}
		}
		raws = append(raws, p.fromState(data, baseURL, "api")...)
	}
	return posts.DedupeRaws(raws, baseURL)
}

// decodePreloads unquotes the JavaScript string literal and parses the JSON
// document it contains.
func decodePreloads(literal string) (any, bool) {
	var text string
	if err := json.Unmarshal([]byte(literal), &text); err != nil {
		return nil, false
	}
	var data any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false
	}
	return data, true
}

func (p *PageState) fromState(data any, baseURL, source string) []posts.Raw {
	var raws []posts.Raw
	Walk(data, func(node any) bool {
		m, ok := node.(map[string]any)
		if !ok {
			return true
		}
		for _, key := range postListKeys {
			list, ok := m[key].([]any)
			if !ok {
				continue
			}
			raws = append(raws, p.fromList(list, baseURL, source)...)
		}
		return true
	})
	return raws
}

func (p *PageState) fromList(list []any, baseURL, source string) []posts.Raw {
	var raws []posts.Raw
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if raw, ok := p.postToRaw(m, baseURL, source); ok {
			raws = append(raws, raw)
		}
	}
	return raws
}

func (p *PageState) postToRaw(m map[string]any, baseURL, source string) (posts.Raw, bool) {
	link := stringField(m, linkKeys...)
	if link == "" {
		slug := strings.Trim(stringField(m, "slug"), "/")
		origin := posts.Origin(baseURL)
		if slug == "" || origin == "" {
			return posts.Raw{}, false
		}
		link = origin + p.cfg.PostPathMarker + slug
	}

	return posts.Raw{
		Title:   collapse(stringField(m, titleKeys...)),
		Link:    link,
		Summary: stringField(m, summaryKeys...),
		Dates:   stringFields(m, dateKeys...),
		Source:  source,
	}, true
}
