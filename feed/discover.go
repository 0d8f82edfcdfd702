package feed

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Discover returns the first feed advertised by a <link rel="alternate">
// element, resolved against baseURL.
func Discover(html, baseURL string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	base, _ := url.Parse(baseURL)

	var found string
	doc.Find("link[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !hasToken(s.AttrOr("rel", ""), "alternate") {
			return true
		}
		if !isFeedType(s.AttrOr("type", "")) {
			return true
		}

		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		found = ref.String()
		return false
	})

	return found, found != ""
}

func hasToken(attr, token string) bool {
	for _, field := range strings.Fields(attr) {
		if strings.EqualFold(field, token) {
			return true
		}
	}
	return false
}

func isFeedType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.Contains(t, "rss") || strings.Contains(t, "atom") || strings.HasSuffix(t, "xml")
}
