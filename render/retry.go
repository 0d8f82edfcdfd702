package render

import (
	"context"
	"log/slog"
	"time"
)

// Retrying re-runs a failed render a fixed number of times.
type Retrying struct {
	next     Renderer
	attempts int
	backoff  time.Duration

	// Sleep waits between attempts. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// WithRetry wraps r so every error is retried up to attempts times in
// total with a fixed backoff. The last error is returned.
func WithRetry(r Renderer, attempts int, backoff time.Duration) *Retrying {
	if attempts <= 0 {
		attempts = 2
	}
	if backoff < 0 {
		backoff = 0
	}
	return &Retrying{next: r, attempts: attempts, backoff: backoff, Sleep: sleepContext}
}

func (r *Retrying) RenderPage(ctx context.Context, req Request) (*Page, error) {
	var page *Page
	err := r.do(ctx, req.URL, func() error {
		var err error
		page, err = r.next.RenderPage(ctx, req)
		return err
	})
	return page, err
}

func (r *Retrying) CollectNetworkJSON(ctx context.Context, req Request, match func(url string) bool) ([]string, error) {
	var bodies []string
	err := r.do(ctx, req.URL, func() error {
		var err error
		bodies, err = r.next.CollectNetworkJSON(ctx, req, match)
		return err
	})
	return bodies, err
}

func (r *Retrying) do(ctx context.Context, url string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == r.attempts {
			break
		}
		slog.Warn("Render failed, retrying", "url", url, "attempt", attempt, "error", err)
		if serr := r.Sleep(ctx, r.backoff); serr != nil {
			return err
		}
	}
	return err
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
