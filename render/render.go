// Package render drives a headless browser for pages whose content only
// exists after client-side scripts run.
package render

import (
	"context"
	"fmt"
	"time"
)

// DefaultWaitSelector is used when a request names no selector. Callers
// that know the publication's post paths pass a narrower one.
const DefaultWaitSelector = `script#__NEXT_DATA__, script[type="application/ld+json"], a[href]`

const (
	DefaultTimeout = 45 * time.Second
	DefaultScrolls = 3
)

// Request describes one browser session.
type Request struct {
	URL          string
	UserAgent    string
	WaitSelector string
	Timeout      time.Duration
	Scrolls      int
}

func (r Request) withDefaults() Request {
	if r.WaitSelector == "" {
		r.WaitSelector = DefaultWaitSelector
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if r.Scrolls <= 0 {
		r.Scrolls = DefaultScrolls
	}
	return r
}

// Page is the DOM serialized after rendering.
type Page struct {
	HTML     string
	FinalURL string
}

// Renderer renders pages and captures the JSON responses they load.
type Renderer interface {
	RenderPage(ctx context.Context, req Request) (*Page, error)
	// CollectNetworkJSON returns the bodies of JSON responses whose URL
	// satisfies match. No captures is not an error.
	CollectNetworkJSON(ctx context.Context, req Request, match func(url string) bool) ([]string, error)
}

// TimeoutError reports navigation that did not finish in time.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("render %s timed out after %s", e.URL, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}
