// Package normalize converts raw records from any acquisition strategy into
// the bounded, deduplicated, newest-first post list the site renders.
package normalize

import (
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dhamsey3/poetry/posts"
)

const blockElements = "br, p, div, li, blockquote, h1, h2, h3, h4, h5, h6"

// DefaultLimit is the number of posts kept when no limit is given.
const DefaultLimit = 50

// Normalize canonicalizes links, drops duplicates keeping the first
// occurrence, resolves dates and titles, sorts newest first with undated
// posts last, and truncates to limit. Normalizing its own output returns
// the same list.
func Normalize(raws []posts.Raw, limit int) []posts.Post {
	if limit <= 0 {
		limit = DefaultLimit
	}

	deduped := posts.DedupeRaws(raws, "")
	out := make([]posts.Post, 0, len(deduped))
	for _, raw := range deduped {
		published := raw.Published
		if published != nil {
			utc := published.UTC()
			published = &utc
		} else {
			published = firstDate(raw.Dates)
		}

		out = append(out, posts.NewPost(collapse(raw.Title), raw.Link, published, StripHTML(raw.Summary)))
	}

	out = SortNewestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SortNewestFirst returns a copy of items ordered by publication time,
// newest first. Undated posts keep their relative order after dated ones.
func SortNewestFirst(items []posts.Post) []posts.Post {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b posts.Post) int {
		switch {
		case !a.Dated() && !b.Dated():
			return 0
		case !a.Dated():
			return 1
		case !b.Dated():
			return -1
		default:
			return b.PublishedAt.Compare(*a.PublishedAt)
		}
	})
	return sorted
}

// StripHTML returns the text content of an HTML fragment with whitespace
// collapsed.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<div>" + s + "</div>"))
	if err != nil {
		return collapse(s)
	}
	// Block boundaries separate words
	doc.Find(blockElements).Each(func(_ int, sel *goquery.Selection) {
		sel.AfterHtml(" ")
	})
	return collapse(doc.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
