// Package scraper turns rendered publication pages into raw post records.
// Extractors never fail: a page they cannot read yields no records.
package scraper

import (
	"log/slog"

	"github.com/dhamsey3/poetry/posts"
)

// Extractor produces raw post records from an HTML document.
type Extractor interface {
	Name() string
	Extract(html, baseURL string) []posts.Raw
}

// Cascade runs extractors in order until one yields records.
type Cascade struct {
	extractors []Extractor
}

func NewCascade(extractors ...Extractor) *Cascade {
	return &Cascade{extractors: extractors}
}

// DefaultCascade orders extractors from most to least structured.
func DefaultCascade(cfg Config) *Cascade {
	return NewCascade(JSONLD{}, NewPageState(cfg), NewAnchors(cfg), NewRegex(cfg))
}

// Run returns the first non-empty extraction and the name of the extractor
// that produced it.
func (c *Cascade) Run(html, baseURL string) ([]posts.Raw, string) {
	for _, extractor := range c.extractors {
		raws := extractor.Extract(html, baseURL)
		slog.Debug("Extractor finished", "strategy", extractor.Name(), "count", len(raws))
		if len(raws) > 0 {
			return raws, extractor.Name()
		}
	}
	return nil, ""
}
