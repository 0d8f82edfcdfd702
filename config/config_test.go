package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dhamsey3/poetry/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noFile returns a --config flag pointing at a file that does not exist
func noFile(t *testing.T) string {
	return "--config=" + filepath.Join(t.TempDir(), "absent.yaml")
}

// TestLoad_Defaults verifies the built-in defaults
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{noFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "https://versesvibez.substack.com/feed", cfg.FeedURL)
	assert.Equal(t, "https://versesvibez.substack.com/", cfg.PublicURL)
	assert.Equal(t, "https://api.rss2json.com/v1/api.json?rss_url=", cfg.ProxyURL)
	assert.Equal(t, 50, cfg.MaxItems)
	assert.Equal(t, 45*time.Second, cfg.RenderTimeout)
	assert.Equal(t, 6, cfg.EnrichLimit)
	assert.Equal(t, OnFatalFail, cfg.OnFatal)
	assert.Equal(t, "dist", cfg.DistDir)
	assert.Equal(t, fetch.DefaultUserAgent, cfg.UserAgent)
	assert.False(t, cfg.Render)
	assert.False(t, cfg.SoftFail)
	assert.Equal(t, "/p/", cfg.Scraper.PostPathMarker)
	assert.Equal(t, "https://versesvibez.substack.com/p/torchborne-poetry-ebook", cfg.Ebook.URL)
	assert.Equal(t, "Torchborne Poetry eBook", cfg.Ebook.Title)
}

// TestLoad_Environment verifies the environment names
func TestLoad_Environment(t *testing.T) {
	t.Setenv("SUBSTACK_FEED", "https://poems.example.com/feed")
	t.Setenv("PUBLIC_SUBSTACK_URL", "https://poems.example.com/")
	t.Setenv("RSS_PROXY_URL", "https://proxy.example.com/?url=&")
	t.Setenv("SITE_TITLE", "  Poems  ")
	t.Setenv("MAX_ITEMS", "12")
	t.Setenv("USE_BROWSER", "true")
	t.Setenv("RENDER_TIMEOUT", "10s")
	t.Setenv("EBOOK_KINDLE_URL", "https://www.amazon.com/dp/B0TEST")
	t.Setenv("EBOOK_TITLE", "Embers")

	cfg, err := Load([]string{noFile(t)})
	require.NoError(t, err)

	assert.Equal(t, "https://poems.example.com/feed", cfg.FeedURL)
	assert.Equal(t, "https://proxy.example.com/?url=", cfg.ProxyURL)
	assert.Equal(t, "Poems", cfg.SiteTitle)
	assert.Equal(t, 12, cfg.MaxItems)
	assert.True(t, cfg.Render)
	assert.Equal(t, 10*time.Second, cfg.RenderTimeout)
	assert.Equal(t, "https://www.amazon.com/dp/B0TEST", cfg.Ebook.URL)
	assert.Equal(t, "Embers", cfg.Ebook.Title)
	assert.Equal(t, "Read eBook", cfg.Ebook.CTAText)
}

// TestLoad_FlagsOverrideEnvironment verifies flag precedence
func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MAX_ITEMS", "12")

	cfg, err := Load([]string{noFile(t), "--max-items=3", "--on-fatal=previous", "--ebook.title=Flagged"})
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxItems)
	assert.Equal(t, OnFatalPrevious, cfg.OnFatal)
	assert.Equal(t, "Flagged", cfg.Ebook.Title)
}

// TestLoad_AllowEmptyIsSoftFail verifies both names enable the same policy
func TestLoad_AllowEmptyIsSoftFail(t *testing.T) {
	t.Setenv("ALLOW_EMPTY", "true")

	cfg, err := Load([]string{noFile(t)})
	require.NoError(t, err)
	assert.True(t, cfg.SoftFail)

	cfg, err = Load([]string{noFile(t), "--soft-fail"})
	require.NoError(t, err)
	assert.True(t, cfg.SoftFail)
}

// TestLoad_Invalid verifies validation failures
func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"relative feed", []string{"--feed-url=/feed"}},
		{"bad public url", []string{"--public-url=mailto:someone"}},
		{"zero items", []string{"--max-items=0"}},
		{"bad on-fatal", []string{"--on-fatal=ignore"}},
		{"unknown flag", []string{"--no-such-flag"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(append(tt.args, noFile(t)))
			assert.Error(t, err)
			assert.False(t, errors.Is(err, ErrHelp))
		})
	}
}

// TestLoad_Help verifies usage is reported as ErrHelp
func TestLoad_Help(t *testing.T) {
	_, err := Load([]string{"--help"})
	assert.ErrorIs(t, err, ErrHelp)
}

// TestLoad_ConfigFile verifies scraper and eBook settings from YAML
func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poetry.yaml")
	content := `scraper:
  post_path_marker: "/poems/"
  anchor_selectors:
    - "h2 a"
featured_ebook:
  title: "From File"
  url: "https://www.amazon.co.uk/dp/B0FILE"
  note: |
    first line
      second line
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("EBOOK_TITLE", "From Env")

	cfg, err := Load([]string{"--config=" + path})
	require.NoError(t, err)

	assert.Equal(t, "/poems/", cfg.Scraper.PostPathMarker)
	assert.Equal(t, []string{"h2 a"}, cfg.Scraper.AnchorSelectors)
	assert.Equal(t, "/archive?sort=new", cfg.Scraper.ArchivePath, "unset fields keep defaults")
	assert.Equal(t, "From Env", cfg.Ebook.Title, "environment wins over the file")
	assert.Equal(t, "https://www.amazon.co.uk/dp/B0FILE", cfg.Ebook.URL)
	assert.Contains(t, cfg.Ebook.Note, "  second line")
}
