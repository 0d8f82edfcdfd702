package posts

import (
	"html"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is used when a source omits the post title.
const DefaultTitle = "Untitled"

// Post is a single normalized post. Link is the identity key: two posts
// with the same Link are the same post.
type Post struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     string     `json:"summary"`
}

// NewPost builds a Post whose ID is derived from its link, so the same
// post gets the same ID on every run.
func NewPost(title, link string, publishedAt *time.Time, summary string) Post {
	if title == "" {
		title = DefaultTitle
	}

	return Post{
		ID:          IDFor(link),
		Title:       title,
		Link:        link,
		PublishedAt: publishedAt,
		Summary:     summary,
	}
}

// IDFor returns the name-based UUID for a canonical link.
func IDFor(link string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link))
}

// Dated reports whether the post has a publication time.
func (p Post) Dated() bool {
	return p.PublishedAt != nil
}

// NeedsBackfill reports whether the post is missing its title or date. A
// post really titled "Untitled" is indistinguishable from the placeholder.
func (p Post) NeedsBackfill() bool {
	return p.Title == DefaultTitle || p.PublishedAt == nil
}

// Raw converts the post back into a raw record, which lets normalized
// output be fed through the normalizer again. The summary is plain text,
// so it is escaped to read back unchanged as HTML.
func (p Post) Raw() Raw {
	title := p.Title
	if title == DefaultTitle {
		title = ""
	}

	return Raw{
		Title:     title,
		Link:      p.Link,
		Published: p.PublishedAt,
		Summary:   html.EscapeString(p.Summary),
		Source:    "post",
	}
}

// ToRaws converts a slice of posts into raw records.
func ToRaws(items []Post) []Raw {
	raws := make([]Raw, 0, len(items))
	for _, item := range items {
		raws = append(raws, item.Raw())
	}
	return raws
}
