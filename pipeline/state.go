package pipeline

import (
	"slices"

	"github.com/dhamsey3/poetry/posts"
	"github.com/dhamsey3/poetry/render"
)

// State is a step of the acquisition cascade.
type State int

const (
	TryDirectFeed State = iota
	TryDiscoveredFeed
	TryRenderedFeedPage
	TryArchiveAPICapture
	TryArchiveDOMScrape
	Done
	Failed
)

var stateNames = map[State]string{
	TryDirectFeed:        "direct_feed",
	TryDiscoveredFeed:    "discovered_feed",
	TryRenderedFeedPage:  "rendered_feed_page",
	TryArchiveAPICapture: "archive_api_capture",
	TryArchiveDOMScrape:  "archive_dom_scrape",
	Done:                 "done",
	Failed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the cascade stops at s.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// trail carries what earlier states learned. It is passed by value and
// every update returns a copy, so a state never sees changes made by a
// later one.
type trail struct {
	html      string // public page HTML from plain retrieval
	htmlURL   string
	rendered  *render.Page
	archive   *render.Page
	tried     []string
	errs      []error
	feedTitle string
	pageTitle string
	reason    string
}

func (t trail) withHTML(html, url string) trail {
	t.html, t.htmlURL = html, url
	return t
}

func (t trail) withTried(url string) trail {
	t.tried = append(slices.Clip(t.tried), url)
	return t
}

func (t trail) withError(err error) trail {
	t.errs = append(slices.Clip(t.errs), err)
	return t
}

func (t trail) withFeedTitle(title string) trail {
	if t.feedTitle == "" {
		t.feedTitle = title
	}
	return t
}

func (t trail) withPageTitle(title string) trail {
	if t.pageTitle == "" {
		t.pageTitle = title
	}
	return t
}

// siteTitle prefers the feed's own title over one read from a page.
func (t trail) siteTitle() string {
	if t.feedTitle != "" {
		return t.feedTitle
	}
	return t.pageTitle
}

func (t trail) withReason(reason string) trail {
	t.reason = reason
	return t
}

func (t trail) triedURL(url string) bool {
	return slices.Contains(t.tried, url)
}

// transition is the result of running one state: either accepted posts
// (next is Done) or the state to advance to.
type transition struct {
	next     State
	trail    trail
	posts    []posts.Post
	strategy string
}

func advance(next State, t trail) transition {
	return transition{next: next, trail: t}
}

func done(t trail, items []posts.Post, strategy string) transition {
	return transition{next: Done, trail: t, posts: items, strategy: strategy}
}
