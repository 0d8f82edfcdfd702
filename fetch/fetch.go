// Package fetch retrieves remote documents with browser-like headers and a
// retry policy for rate-limit and block responses.
package fetch

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// FetchError reports a retrieval that did not end in HTTP 200.
type FetchError struct {
	URL      string
	Status   int // last HTTP status, 0 when no response was received
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed after %d attempt(s) (status %d): %v", e.URL, e.Attempts, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s) (status %d)", e.URL, e.Attempts, e.Status)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result is the output of one successful retrieval.
type Result struct {
	Body        []byte
	ContentType string
	FinalURL    string
	Status      int
}

// HTML returns the body as UTF-8 text, transcoding from the charset named
// in the content type or sniffed from the document.
func (r *Result) HTML() string {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.ContentType)
	if err != nil {
		return string(r.Body)
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return string(r.Body)
	}
	return string(text)
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	Attempts     int
	BaseDelay    time.Duration
	Jitter       time.Duration
	MaxBodyBytes int64
}

// DefaultUserAgent is a desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultOptions returns the retry policy used against rate-limiting
// origins: 3 attempts, 1.2s base delay, up to 300ms jitter.
func DefaultOptions() Options {
	return Options{
		UserAgent:    DefaultUserAgent,
		Timeout:      20 * time.Second,
		Attempts:     3,
		BaseDelay:    1200 * time.Millisecond,
		Jitter:       300 * time.Millisecond,
		MaxBodyBytes: 10 * 1024 * 1024,
	}
}

// Client performs GET requests with retry on 403 and 429.
type Client struct {
	http *http.Client
	opts Options

	// Sleep waits between attempts. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. Zero-valued options fall back to
// DefaultOptions.
func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaults.BaseDelay
	}
	if opts.Jitter < 0 {
		opts.Jitter = 0
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaults.MaxBodyBytes
	}

	return &Client{
		http:  &http.Client{Timeout: opts.Timeout},
		opts:  opts,
		Sleep: sleepContext,
	}
}

// UserAgent returns the user agent sent on every request.
func (c *Client) UserAgent() string {
	return c.opts.UserAgent
}

// Fetch retrieves url. A 403 or 429 is retried with an increasing,
// jittered delay; any other non-200 status ends the attempt loop.
func (c *Client) Fetch(ctx context.Context, url, referer string) (*Result, error) {
	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < c.opts.Attempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			slog.Debug("Retrying fetch", "url", url, "attempt", attempt+1, "status", lastStatus, "delay", delay)
			if err := c.Sleep(ctx, delay); err != nil {
				return nil, &FetchError{URL: url, Status: lastStatus, Attempts: attempt, Err: err}
			}
		}

		result, status, err := c.fetchOnce(ctx, url, referer)
		if err == nil {
			return result, nil
		}

		lastStatus, lastErr = status, err
		if !retryable(status) {
			return nil, &FetchError{URL: url, Status: status, Attempts: attempt + 1, Err: err}
		}
	}

	return nil, &FetchError{URL: url, Status: lastStatus, Attempts: c.opts.Attempts, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, url, referer string) (*Result, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/rss+xml,application/atom+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, resp.StatusCode, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Result{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    finalURL,
		Status:      resp.StatusCode,
	}, resp.StatusCode, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", c.opts.MaxBodyBytes)
	}
	return body, nil
}

// backoff grows linearly with the attempt number, each step jittered.
func (c *Client) backoff(attempt int) time.Duration {
	step := c.opts.BaseDelay
	if c.opts.Jitter > 0 {
		step += rand.N(c.opts.Jitter)
	}
	return time.Duration(attempt) * step
}

func retryable(status int) bool {
	return status == http.StatusForbidden || status == http.StatusTooManyRequests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsStatus reports whether err is a FetchError with the given status.
func IsStatus(err error, status int) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Status == status
}
