package config

import (
	"cmp"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dhamsey3/poetry/fetch"
	"github.com/dhamsey3/poetry/scraper"
	"github.com/dhamsey3/poetry/site"
	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

// OnFatal values.
const (
	OnFatalFail     = "fail"
	OnFatalPrevious = "previous"
)

type ebookOpts struct {
	KindleURL   string `long:"kindle-url" env:"KINDLE_URL" description:"Amazon Kindle store link for the featured eBook"`
	URL         string `long:"url" env:"URL" description:"Featured eBook link used when no Kindle link is set"`
	Title       string `long:"title" env:"TITLE" description:"Featured eBook title"`
	Description string `long:"description" env:"DESCRIPTION" description:"Featured eBook description"`
	Cover       string `long:"cover" env:"COVER" description:"Featured eBook cover image URL"`
	Tag         string `long:"tag" env:"TAG" description:"Label shown above the featured eBook"`
	Meta        string `long:"meta" env:"META" description:"Edition line, e.g. Amazon Kindle Edition"`
	Note        string `long:"note" env:"NOTE" description:"Poem excerpt shown with the featured eBook"`
	PubDate     string `long:"pub-date" env:"PUB_DATE" description:"Featured eBook publication date"`
	CTAText     string `long:"cta-text" env:"CTA_TEXT" description:"Call to action button text"`
	ShareText   string `long:"share-text" env:"SHARE_TEXT" description:"Share button text"`
}

type rawCfg struct {
	// Acquisition
	FeedURL       string        `long:"feed-url" env:"SUBSTACK_FEED" default:"https://versesvibez.substack.com/feed" description:"Feed URL tried first"`
	PublicURL     string        `long:"public-url" env:"PUBLIC_SUBSTACK_URL" default:"https://versesvibez.substack.com/" description:"Public publication URL, used as referer and scraping target"`
	UserAgent     string        `long:"user-agent" env:"USER_AGENT" description:"User agent sent on every request"`
	MaxItems      int           `long:"max-items" env:"MAX_ITEMS" default:"50" description:"Maximum number of posts rendered"`
	Render        bool          `long:"render" env:"USE_BROWSER" description:"Allow headless browser strategies"`
	RenderTimeout time.Duration `long:"render-timeout" env:"RENDER_TIMEOUT" default:"45s" description:"Time budget for one browser session"`
	SoftFail      bool          `long:"soft-fail" env:"SOFT_FAIL" description:"Render an empty page instead of failing when no posts are found"`
	AllowEmpty    bool          `long:"allow-empty" env:"ALLOW_EMPTY" description:"Same as --soft-fail"`
	OnFatal       string        `long:"on-fatal" env:"ON_FATAL" default:"fail" choice:"fail" choice:"previous" description:"Behaviour when acquisition fails: fail the build or render the previous snapshot"`
	EnrichLimit   int           `long:"enrich" env:"ENRICH_LIMIT" default:"6" description:"Posts missing a title or date to look up individually (0 disables)"`

	// Output
	SiteTitle   string `long:"site-title" env:"SITE_TITLE" description:"Site title; defaults to the feed title"`
	ProxyURL    string `long:"proxy-url" env:"RSS_PROXY_URL" default:"https://api.rss2json.com/v1/api.json?rss_url=" description:"Client-side feed proxy prefix"`
	RSS2JSONKey string `long:"rss2json-key" env:"RSS2JSON_API_KEY" description:"API key for the client-side feed proxy"`
	DistDir     string `long:"dist" env:"DIST_DIR" default:"dist" description:"Output directory"`
	Template    string `long:"template" env:"TEMPLATE_FILE" default:"index.html.tmpl" description:"Page template; the built-in page is used when the file is absent"`
	StaticDir   string `long:"static" env:"STATIC_DIR" default:"static" description:"Directory copied to <dist>/static"`
	PublicDir   string `long:"public" env:"PUBLIC_DIR" default:"public" description:"Directory copied to the root of <dist>"`

	ConfigFile string `long:"config" env:"POETRY_CONFIG" default:"poetry.yaml" description:"Optional YAML file with scraper and featured eBook settings"`
	Debug      bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Ebook ebookOpts `group:"Featured eBook" namespace:"ebook" env-namespace:"EBOOK"`
}

// Config is the resolved configuration for one build.
type Config struct {
	FeedURL       string
	PublicURL     string
	UserAgent     string
	MaxItems      int
	Render        bool
	RenderTimeout time.Duration
	SoftFail      bool
	OnFatal       string
	EnrichLimit   int

	SiteTitle   string
	ProxyURL    string
	RSS2JSONKey string
	DistDir     string
	Template    string
	StaticDir   string
	PublicDir   string

	ConfigFile string
	Debug      bool
	Version    string

	Scraper scraper.Config
	Ebook   site.FeaturedEbook
}

// ErrHelp is returned when usage was requested and printed.
var ErrHelp = errors.New("help requested")

// Load parses flags from args and the environment, then applies the
// optional YAML config file.
func Load(args []string) (*Config, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, ErrHelp
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Config{
		FeedURL:       strings.TrimSpace(raw.FeedURL),
		PublicURL:     strings.TrimSpace(raw.PublicURL),
		UserAgent:     cmp.Or(strings.TrimSpace(raw.UserAgent), fetch.DefaultUserAgent),
		MaxItems:      raw.MaxItems,
		Render:        raw.Render,
		RenderTimeout: raw.RenderTimeout,
		SoftFail:      raw.SoftFail || raw.AllowEmpty,
		OnFatal:       raw.OnFatal,
		EnrichLimit:   raw.EnrichLimit,
		SiteTitle:     strings.TrimSpace(raw.SiteTitle),
		ProxyURL:      strings.TrimRight(strings.TrimSpace(raw.ProxyURL), "?&"),
		RSS2JSONKey:   strings.TrimSpace(raw.RSS2JSONKey),
		DistDir:       raw.DistDir,
		Template:      raw.Template,
		StaticDir:     raw.StaticDir,
		PublicDir:     raw.PublicDir,
		ConfigFile:    raw.ConfigFile,
		Debug:         raw.Debug,
		Version:       GetVersion(),
		Scraper:       scraper.NewConfig(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	file, err := LoadConfigFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg.apply(raw.Ebook, file)

	return cfg, nil
}

func (c *Config) validate() error {
	if !absoluteHTTP(c.FeedURL) {
		return fmt.Errorf("feed URL must be an absolute http(s) URL: %q", c.FeedURL)
	}
	if c.PublicURL != "" && !absoluteHTTP(c.PublicURL) {
		return fmt.Errorf("public URL must be an absolute http(s) URL: %q", c.PublicURL)
	}
	if c.MaxItems <= 0 {
		return fmt.Errorf("max items must be positive, got %d", c.MaxItems)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("render timeout must be positive, got %s", c.RenderTimeout)
	}
	return nil
}

// apply layers the featured eBook settings: flags and environment first,
// then the config file, then built-in copy.
func (c *Config) apply(opts ebookOpts, file *FileConfig) {
	ebook := site.FeaturedEbook{
		Title:       strings.TrimSpace(opts.Title),
		Description: strings.TrimSpace(opts.Description),
		URL:         strings.TrimSpace(cmp.Or(opts.KindleURL, opts.URL)),
		CTAText:     strings.TrimSpace(opts.CTAText),
		Note:        opts.Note,
		Tag:         strings.TrimSpace(opts.Tag),
		Cover:       strings.TrimSpace(opts.Cover),
		PubDate:     strings.TrimSpace(opts.PubDate),
		Meta:        strings.TrimSpace(opts.Meta),
		ShareText:   strings.TrimSpace(opts.ShareText),
	}

	if file != nil {
		c.Scraper = file.Scraper.WithDefaults()
		ebook = ebook.Merge(file.FeaturedEbook)
	}

	defaults := site.DefaultEbook()
	if c.PublicURL != "" {
		defaults.URL = strings.TrimRight(c.PublicURL, "/") + "/p/torchborne-poetry-ebook"
	}
	c.Ebook = ebook.Merge(defaults)
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
