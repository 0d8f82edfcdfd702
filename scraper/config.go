package scraper

import "strings"

// Config defines how post links are recognized on a publication. It is
// loadable from the scraper section of the YAML config file.
type Config struct {
	PostPathMarker  string   `yaml:"post_path_marker" json:"post_path_marker"`
	ArchivePath     string   `yaml:"archive_path" json:"archive_path"`
	APIMarker       string   `yaml:"api_marker" json:"api_marker"`
	AnchorSelectors []string `yaml:"anchor_selectors" json:"anchor_selectors,omitempty"`
	WaitSelector    string   `yaml:"wait_selector" json:"wait_selector,omitempty"`
}

// AnchorSelectorsFor lists post-link selectors for a post path marker,
// from most to least specific.
func AnchorSelectorsFor(marker string) []string {
	href := `a[href*="` + marker + `"]`
	return []string{
		`a[data-testid="post-preview-title"]`,
		`.post-preview ` + href,
		`article ` + href,
		href,
	}
}

// WaitSelectorFor matches the markers a hydrated publication page carries.
func WaitSelectorFor(marker string) string {
	return `script#__NEXT_DATA__, script[type="application/ld+json"], a[href*="` + marker + `"]`
}

// NewConfig creates a configuration with default values.
func NewConfig() Config {
	const marker = "/p/"
	return Config{
		PostPathMarker:  marker,
		ArchivePath:     "/archive?sort=new",
		APIMarker:       "/api/v1/",
		AnchorSelectors: AnchorSelectorsFor(marker),
		WaitSelector:    WaitSelectorFor(marker),
	}
}

// WithDefaults fills empty fields from NewConfig. Selectors are derived
// from the post path marker.
func (c Config) WithDefaults() Config {
	d := NewConfig()
	if strings.TrimSpace(c.PostPathMarker) == "" {
		c.PostPathMarker = d.PostPathMarker
	}
	if strings.TrimSpace(c.ArchivePath) == "" {
		c.ArchivePath = d.ArchivePath
	}
	if strings.TrimSpace(c.APIMarker) == "" {
		c.APIMarker = d.APIMarker
	}
	if len(c.AnchorSelectors) == 0 {
		c.AnchorSelectors = AnchorSelectorsFor(c.PostPathMarker)
	}
	if strings.TrimSpace(c.WaitSelector) == "" {
		c.WaitSelector = WaitSelectorFor(c.PostPathMarker)
	}
	return c
}

// ArchiveURL joins the archive path onto a publication origin.
func (c Config) ArchiveURL(origin string) string {
	path := c.WithDefaults().ArchivePath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(origin, "/") + path
}
