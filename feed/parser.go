// Package feed parses syndication documents into raw post records and
// finds feed links advertised by HTML pages.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dhamsey3/poetry/posts"
	"github.com/mmcdole/gofeed"
)

// ErrUnparsable is matched by every ParseError.
var ErrUnparsable = errors.New("feed unparsable")

// ParseError reports a document that yielded no entries.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrUnparsable, e.Err}
}

// Document is a parsed feed.
type Document struct {
	Title   string
	Link    string
	Entries []posts.Raw
}

// Parse decodes an RSS, Atom or JSON feed. Control bytes that break XML
// decoders are stripped first. A parser error is tolerated when at least one
// entry was recovered.
func Parse(data []byte) (*Document, error) {
	clean := Sanitize(data)

	fp := gofeed.NewParser()
	parsed, err := fp.Parse(bytes.NewReader(clean))
	if err != nil {
		if parsed == nil || len(parsed.Items) == 0 {
			return nil, &ParseError{Err: err}
		}
		slog.Warn("Feed parsed with errors", "entries", len(parsed.Items), "error", err)
	}
	if parsed == nil {
		return nil, &ParseError{Err: errors.New("empty document")}
	}

	doc := &Document{
		Title:   strings.TrimSpace(parsed.Title),
		Link:    parsed.Link,
		Entries: make([]posts.Raw, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		doc.Entries = append(doc.Entries, itemToRaw(item))
	}
	return doc, nil
}

// Sanitize removes C0 control bytes other than tab, newline and carriage
// return.
func Sanitize(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for _, b := range data {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' {
			continue
		}
		out = append(out, b)
	}
	return out
}

// itemToRaw maps a gofeed item. gofeed normalizes RSS item and Atom entry
// fields into the same structure, so both are handled here.
func itemToRaw(item *gofeed.Item) posts.Raw {
	raw := posts.Raw{
		Title:  strings.TrimSpace(item.Title),
		Link:   strings.TrimSpace(item.Link),
		Source: "feed",
	}

	// Atom entries without a primary link sometimes carry only a permalink GUID
	if raw.Link == "" && len(item.Links) > 0 {
		raw.Link = strings.TrimSpace(item.Links[0])
	}
	if raw.Link == "" && isURL(item.GUID) {
		raw.Link = strings.TrimSpace(item.GUID)
	}

	raw.Published = firstTime(item.PublishedParsed, item.UpdatedParsed)

	for _, d := range []string{item.Published, item.Updated} {
		if d = strings.TrimSpace(d); d != "" {
			raw.Dates = append(raw.Dates, d)
		}
	}
	if item.DublinCoreExt != nil {
		for _, d := range item.DublinCoreExt.Date {
			if d = strings.TrimSpace(d); d != "" {
				raw.Dates = append(raw.Dates, d)
			}
		}
	}

	raw.Summary = item.Description
	if strings.TrimSpace(raw.Summary) == "" {
		raw.Summary = item.Content
	}

	return raw
}

func firstTime(candidates ...*time.Time) *time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func isURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
