package scraper

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhamsey3/poetry/posts"
)

var articleTypes = []string{"Article", "BlogPosting", "NewsArticle", "SocialMediaPosting"}

// JSONLD extracts posts from structured data blocks.
type JSONLD struct{}

func (JSONLD) Name() string { return "jsonld" }

func (JSONLD) Extract(html, baseURL string) []posts.Raw {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var raws []posts.Raw
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &data); err != nil {
			return
		}
		raws = append(raws, fromJSONLD(data)...)
	})

	return posts.DedupeRaws(raws, baseURL)
}

func fromJSONLD(data any) []posts.Raw {
	var raws []posts.Raw
	Walk(data, func(node any) bool {
		m, ok := node.(map[string]any)
		if !ok {
			return true
		}

		switch {
		case hasType(m, "ItemList"):
			raws = append(raws, fromItemList(m)...)
			return false
		case hasType(m, articleTypes...):
			if raw, ok := articleToRaw(m); ok {
				raws = append(raws, raw)
			}
			return false
		case hasType(m, "Blog"):
			if list, ok := m["blogPost"].([]any); ok {
				for _, entry := range list {
					if em, ok := entry.(map[string]any); ok {
						if raw, ok := articleToRaw(em); ok {
							raws = append(raws, raw)
						}
					}
				}
			} else if em, ok := m["blogPost"].(map[string]any); ok {
				if raw, ok := articleToRaw(em); ok {
					raws = append(raws, raw)
				}
			}
			return false
		}
		return true
	})
	return raws
}

func fromItemList(m map[string]any) []posts.Raw {
	elements, _ := m["itemListElement"].([]any)

	var raws []posts.Raw
	for _, element := range elements {
		switch el := element.(type) {
		case string:
			raws = append(raws, posts.Raw{Link: el, Source: "jsonld"})
		case map[string]any:
			switch item := el["item"].(type) {
			case map[string]any:
				if raw, ok := articleToRaw(item); ok {
					raws = append(raws, raw)
					continue
				}
			case string:
				raws = append(raws, posts.Raw{Title: stringField(el, "name"), Link: item, Source: "jsonld"})
				continue
			}
			if raw, ok := articleToRaw(el); ok {
				raws = append(raws, raw)
			}
		}
	}
	return raws
}

func articleToRaw(m map[string]any) (posts.Raw, bool) {
	link := stringField(m, "url", "@id")
	if link == "" {
		switch page := m["mainEntityOfPage"].(type) {
		case string:
			link = page
		case map[string]any:
			link = stringField(page, "@id", "url")
		}
	}
	if link == "" {
		return posts.Raw{}, false
	}

	return posts.Raw{
		Title:   collapse(stringField(m, "headline", "name")),
		Link:    link,
		Summary: stringField(m, "description"),
		Dates:   stringFields(m, "datePublished", "dateCreated", "dateModified"),
		Source:  "jsonld",
	}, true
}
