// Command poetry builds the static poetry site: it acquires the latest
// posts from the publication and renders dist/index.html.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dhamsey3/poetry/config"
	"github.com/dhamsey3/poetry/fetch"
	"github.com/dhamsey3/poetry/normalize"
	"github.com/dhamsey3/poetry/pipeline"
	"github.com/dhamsey3/poetry/posts"
	"github.com/dhamsey3/poetry/render"
	"github.com/dhamsey3/poetry/site"
	"github.com/google/uuid"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// snapshotFile is written next to index.html.
const snapshotFile = "posts.json"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if errors.Is(err, config.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	setupLogger(cfg.Debug)
	slog.Info("Starting build", "version", cfg.Version, "feed", cfg.FeedURL, "render", cfg.Render)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := build(ctx, cfg, newPipeline(cfg)); err != nil {
		slog.Error("Build failed", "error", err)
		return exitFailed
	}
	return exitOK
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger.With("run_id", uuid.New().String()))
}

func newPipeline(cfg *config.Config) *pipeline.Pipeline {
	client := fetch.NewClient(fetch.Options{UserAgent: cfg.UserAgent})

	var renderer render.Renderer
	if cfg.Render {
		renderer = render.WithRetry(render.NewChromedp(render.Options{}), 2, 2*time.Second)
	}

	p := pipeline.New(client, renderer, pipeline.Options{
		FeedURL:       cfg.FeedURL,
		PublicURL:     cfg.PublicURL,
		UserAgent:     cfg.UserAgent,
		MaxItems:      cfg.MaxItems,
		RenderTimeout: cfg.RenderTimeout,
		SoftFail:      cfg.SoftFail,
		Scraper:       cfg.Scraper,
	})

	return p.WithEnricher(normalize.NewEnricher(client, normalize.EnrichOptions{
		MaxItems: enrichLimit(cfg.EnrichLimit),
		Referer:  cfg.PublicURL,
	}))
}

// enrichLimit maps the configured count onto EnrichOptions, where zero
// means the default and a negative value disables enrichment.
func enrichLimit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

// runner is the part of the pipeline build depends on.
type runner interface {
	Run(ctx context.Context) (*pipeline.Outcome, error)
}

// build acquires posts and renders the page. When acquisition fails and
// OnFatal is "previous", the last snapshot is rendered instead.
func build(ctx context.Context, cfg *config.Config, p runner) error {
	if _, err := site.PrepareDist(distOptions(cfg)); err != nil {
		return err
	}

	store := posts.NewSnapshotStore(filepath.Join(cfg.DistDir, snapshotFile))

	outcome, err := p.Run(ctx)
	if err != nil {
		if cfg.OnFatal != config.OnFatalPrevious {
			return err
		}
		slog.Warn("Acquisition failed, rendering previous snapshot", "error", err)
		return renderPrevious(cfg, store, err)
	}

	title := cmp.Or(cfg.SiteTitle, outcome.SiteTitle, site.DefaultSiteTitle)
	now := time.Now().UTC()

	if !outcome.NoItems {
		if err := store.Save(posts.Snapshot{GeneratedAt: now, SiteTitle: title, Posts: outcome.Posts}); err != nil {
			slog.Warn("Failed to save snapshot", "path", store.Path(), "error", err)
		}
	}

	path, err := renderPage(cfg, title, outcome.Posts, now)
	if err != nil {
		return err
	}
	slog.Info("Build complete",
		"status", outcome.Status(),
		"strategy", outcome.Strategy,
		"posts", len(outcome.Posts),
		"path", path)
	return nil
}

// distOptions starts from the conventional layout and applies the
// configured directories.
func distOptions(cfg *config.Config) site.DistOptions {
	opts := site.DefaultDistOptions()
	opts.Dir = cmp.Or(cfg.DistDir, opts.Dir)
	opts.StaticDir = cmp.Or(cfg.StaticDir, opts.StaticDir)
	opts.PublicDir = cmp.Or(cfg.PublicDir, opts.PublicDir)
	return opts
}

func renderPrevious(cfg *config.Config, store *posts.SnapshotStore, cause error) error {
	snap, err := store.Load()
	if err != nil {
		return errors.Join(cause, err)
	}
	if snap == nil {
		return fmt.Errorf("no previous snapshot at %s: %w", store.Path(), cause)
	}

	title := cmp.Or(cfg.SiteTitle, snap.SiteTitle, site.DefaultSiteTitle)
	path, err := renderPage(cfg, title, snap.Posts, snap.GeneratedAt)
	if err != nil {
		return err
	}
	slog.Info("Build complete", "status", "previous", "posts", len(snap.Posts), "path", path)
	return nil
}

func renderPage(cfg *config.Config, title string, items []posts.Post, generated time.Time) (string, error) {
	renderer, err := site.NewRenderer(cfg.Template, cfg.DistDir)
	if err != nil {
		return "", err
	}
	return renderer.Render(site.NewPageData(site.PageInput{
		SiteTitle:   title,
		PublicURL:   cfg.PublicURL,
		FeedURL:     cfg.FeedURL,
		ProxyURL:    cfg.ProxyURL,
		Ebook:       cfg.Ebook,
		Posts:       items,
		MaxItems:    cfg.MaxItems,
		RSS2JSONKey: cfg.RSS2JSONKey,
		Version:     cfg.Version,
		GeneratedAt: generated,
	}))
}
