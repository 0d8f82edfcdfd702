package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Options configures the chromedp renderer.
type Options struct {
	DisableHeadless    bool
	ConcurrentSessions int
	// HydrationDelay is the idle period after the wait selector is ready.
	HydrationDelay time.Duration
	// ScrollDelay is the pause after each scroll during network capture.
	ScrollDelay  time.Duration
	MaxBodyBytes int64
}

// Chromedp executes headless Chrome sessions using chromedp.
type Chromedp struct {
	opts      Options
	semaphore chan struct{}
	logger    *slog.Logger
}

// NewChromedp constructs a renderer with bounded concurrency.
func NewChromedp(opts Options) *Chromedp {
	if opts.ConcurrentSessions <= 0 {
		opts.ConcurrentSessions = 1
	}
	if opts.HydrationDelay <= 0 {
		opts.HydrationDelay = 1500 * time.Millisecond
	}
	if opts.ScrollDelay <= 0 {
		opts.ScrollDelay = 800 * time.Millisecond
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}
	return &Chromedp{
		opts:      opts,
		semaphore: make(chan struct{}, opts.ConcurrentSessions),
		logger:    slog.Default(),
	}
}

// session holds a browser context and the cancel funcs that tear it down.
type session struct {
	ctx    context.Context
	cancel func()
}

func (r *Chromedp) acquire(ctx context.Context) (func(), error) {
	select {
	case r.semaphore <- struct{}{}:
		return func() { <-r.semaphore }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Chromedp) newSession(parent context.Context, req Request) session {
	ctx, cancel := context.WithTimeout(parent, req.Timeout)

	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !r.opts.DisableHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	if ua := strings.TrimSpace(req.UserAgent); ua != "" {
		execOpts = append(execOpts, chromedp.UserAgent(ua))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOpts...)
	chromeCtx, chromeCancel := chromedp.NewContext(allocCtx)

	return session{
		ctx: chromeCtx,
		cancel: func() {
			chromeCancel()
			allocCancel()
			cancel()
		},
	}
}

// RenderPage navigates to the request URL, waits for the page to hydrate
// and exports the outer HTML.
func (r *Chromedp) RenderPage(ctx context.Context, req Request) (*Page, error) {
	req = req.withDefaults()
	logger := r.logger.With("url", req.URL, "timeout", req.Timeout.String(), "wait_selector", req.WaitSelector)

	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s := r.newSession(ctx, req)
	defer s.cancel()

	start := time.Now()
	var html, finalURL string

	logger.Debug("chromedp starting render")
	err = chromedp.Run(s.ctx,
		chromedp.Navigate(req.URL),
		chromedp.WaitReady(req.WaitSelector, chromedp.ByQuery),
		chromedp.Sleep(r.opts.HydrationDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{URL: req.URL, Timeout: req.Timeout}
		}
		return nil, fmt.Errorf("chromedp run: %w", err)
	}

	if int64(len(html)) > r.opts.MaxBodyBytes {
		html = html[:r.opts.MaxBodyBytes]
	}
	if finalURL == "" {
		finalURL = req.URL
	}

	logger.Debug("chromedp render complete",
		"latency_ms", time.Since(start).Milliseconds(),
		"final_url", finalURL,
		"html_bytes", len(html),
	)
	return &Page{HTML: html, FinalURL: finalURL}, nil
}

// CollectNetworkJSON navigates to the request URL, scrolls to trigger lazy
// loading and returns the bodies of matching JSON responses seen before the
// deadline.
func (r *Chromedp) CollectNetworkJSON(ctx context.Context, req Request, match func(url string) bool) ([]string, error) {
	req = req.withDefaults()
	logger := r.logger.With("url", req.URL, "timeout", req.Timeout.String())

	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	s := r.newSession(ctx, req)
	defer s.cancel()

	capture := newCapture(s.ctx, match, r.opts.MaxBodyBytes)
	chromedp.ListenTarget(s.ctx, capture.handle)

	if err := chromedp.Run(s.ctx, network.Enable(), chromedp.Navigate(req.URL)); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("chromedp navigate: %w", err)
		}
		bodies, err := timedOutCapture(req, capture.wait())
		logger.Debug("Navigation timed out", "count", len(bodies))
		return bodies, err
	}

	for i := 0; i < req.Scrolls; i++ {
		var done bool
		err := chromedp.Run(s.ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &done),
			chromedp.Sleep(r.opts.ScrollDelay),
		)
		if err != nil {
			// Past navigation a deadline only ends the capture window
			logger.Debug("Scroll stopped", "scroll", i+1, "error", err)
			break
		}
	}

	bodies := capture.wait()
	logger.Debug("Network capture complete", "count", len(bodies))
	return bodies, nil
}

// timedOutCapture keeps what a session captured before its deadline. Only
// a session that captured nothing reports the timeout.
func timedOutCapture(req Request, bodies []string) ([]string, error) {
	if len(bodies) == 0 {
		return nil, &TimeoutError{URL: req.URL, Timeout: req.Timeout}
	}
	return bodies, nil
}

// capture records matching JSON responses and fetches their bodies once
// loading finishes. After wait starts, finished loads are ignored.
type capture struct {
	ctx      context.Context
	match    func(string) bool
	maxBytes int64

	mu      sync.Mutex
	pending map[network.RequestID]string
	bodies  []string
	closed  bool
	wg      sync.WaitGroup
}

func newCapture(ctx context.Context, match func(string) bool, maxBytes int64) *capture {
	if match == nil {
		match = func(string) bool { return true }
	}
	return &capture{
		ctx:      ctx,
		match:    match,
		maxBytes: maxBytes,
		pending:  make(map[network.RequestID]string),
	}
}

// handle runs on the CDP event loop and must not block.
func (c *capture) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventResponseReceived:
		if e.Response == nil {
			return
		}
		if !strings.Contains(strings.ToLower(e.Response.MimeType), "json") || !c.match(e.Response.URL) {
			return
		}
		c.mu.Lock()
		c.pending[e.RequestID] = e.Response.URL
		c.mu.Unlock()

	case *network.EventLoadingFinished:
		c.mu.Lock()
		url, ok := c.pending[e.RequestID]
		delete(c.pending, e.RequestID)
		if !ok || c.closed {
			c.mu.Unlock()
			return
		}
		// Add under mu so it never races the Wait in wait
		c.wg.Add(1)
		c.mu.Unlock()

		go c.fetchBody(e.RequestID, url)
	}
}

func (c *capture) fetchBody(id network.RequestID, url string) {
	defer c.wg.Done()

	var body []byte
	err := chromedp.Run(c.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		body, err = network.GetResponseBody(id).Do(ctx)
		return err
	}))
	if err != nil {
		slog.Debug("Response body unavailable", "url", url, "error", err)
		return
	}
	if int64(len(body)) > c.maxBytes {
		slog.Debug("Response body too large", "url", url, "bytes", len(body))
		return
	}

	c.mu.Lock()
	c.bodies = append(c.bodies, string(body))
	c.mu.Unlock()
}

func (c *capture) wait() []string {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.bodies))
	copy(out, c.bodies)
	return out
}
