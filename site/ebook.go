package site

import (
	"net/url"
	"strings"
)

// kindleHosts are the Amazon storefronts that sell Kindle editions.
var kindleHosts = []string{
	"amazon.com", "amazon.co.uk", "amazon.ca", "amazon.de", "amazon.fr",
	"amazon.es", "amazon.it", "amazon.com.au", "amazon.in", "amazon.co.jp",
	"amazon.com.br", "amazon.com.mx", "amazon.nl", "amazon.se", "amazon.pl",
	"amazon.sg",
}

// FeaturedEbook is the promoted book shown above the post list.
type FeaturedEbook struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	CTAText     string `yaml:"cta_text"`
	Note        string `yaml:"note"`
	Tag         string `yaml:"tag"`
	Cover       string `yaml:"cover"`
	PubDate     string `yaml:"pub_date"`
	Meta        string `yaml:"meta"`
	ShareText   string `yaml:"share_text"`
}

// DefaultEbook holds the copy used when a field is not configured.
func DefaultEbook() FeaturedEbook {
	return FeaturedEbook{
		Title:       "Torchborne Poetry eBook",
		Description: "A lovingly curated digital chapbook, now available on Amazon Kindle.",
		CTAText:     "Read eBook",
		Tag:         "Featured",
		Meta:        "Amazon Kindle Edition",
		ShareText:   "Share",
	}
}

// Merge fills empty fields of e from other.
func (e FeaturedEbook) Merge(other FeaturedEbook) FeaturedEbook {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&e.Title, other.Title)
	fill(&e.Description, other.Description)
	fill(&e.URL, other.URL)
	fill(&e.CTAText, other.CTAText)
	fill(&e.Note, other.Note)
	fill(&e.Tag, other.Tag)
	fill(&e.Cover, other.Cover)
	fill(&e.PubDate, other.PubDate)
	fill(&e.Meta, other.Meta)
	fill(&e.ShareText, other.ShareText)
	return e
}

// Featured returns the book to show, or nil when its link is not an Amazon
// Kindle store page.
func (e FeaturedEbook) Featured() *FeaturedEbook {
	if !IsKindleURL(e.URL) {
		return nil
	}
	e.Note = normalizeNewlines(e.Note)
	return &e
}

// IsKindleURL reports whether raw points at an Amazon storefront.
func IsKindleURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, k := range kindleHosts {
		if host == k || strings.HasSuffix(host, "."+k) {
			return true
		}
	}
	return false
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Trim(s, "\n")
}
