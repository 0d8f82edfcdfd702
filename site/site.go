// Package site writes the static page: output directory preparation,
// asset copying and template rendering.
package site

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhamsey3/poetry/posts"
)

// DefaultSiteTitle is used when neither configuration nor the source names
// the site.
const DefaultSiteTitle = "torchborne"

//go:embed templates
var templateFS embed.FS

var tmplFuncs = template.FuncMap{
	"poemHTML": PoemHTML,
	"dateHuman": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("Jan 02, 2006")
	},
	"isoDate": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	},
}

// PageData is everything the page template sees.
type PageData struct {
	SiteTitle        string
	PublicURL        string
	FeedURL          string
	ProxyURL         string
	PostsBase        string
	SubscribeURL     string
	StaticBase       string
	StaticPublicBase string
	FeaturedEbook    *FeaturedEbook
	Posts            []posts.Post
	NoItems          bool
	GeneratedAt      time.Time
	MaxItems         int
	RSS2JSONKey      string
	Version          string
}

// PageInput is the raw material for PageData.
type PageInput struct {
	SiteTitle   string
	PublicURL   string
	FeedURL     string
	ProxyURL    string
	Ebook       FeaturedEbook
	Posts       []posts.Post
	NoItems     bool
	MaxItems    int
	RSS2JSONKey string
	Version     string
	GeneratedAt time.Time
}

// NewPageData derives the template fields from in.
func NewPageData(in PageInput) PageData {
	title := strings.TrimSpace(in.SiteTitle)
	if title == "" {
		title = DefaultSiteTitle
	}
	base := strings.TrimRight(strings.TrimSpace(in.PublicURL), "/")
	generated := in.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	items := in.Posts
	if items == nil {
		items = []posts.Post{}
	}

	data := PageData{
		SiteTitle:     title,
		PublicURL:     in.PublicURL,
		FeedURL:       in.FeedURL,
		ProxyURL:      strings.TrimRight(strings.TrimSpace(in.ProxyURL), "?&"),
		PostsBase:     base,
		StaticBase:    "./static/",
		FeaturedEbook: in.Ebook.Featured(),
		Posts:         items,
		NoItems:       in.NoItems || len(items) == 0,
		GeneratedAt:   generated.UTC(),
		MaxItems:      in.MaxItems,
		RSS2JSONKey:   in.RSS2JSONKey,
		Version:       in.Version,
	}
	if base != "" {
		data.SubscribeURL = base + "/subscribe"
		data.StaticPublicBase = base + "/static/"
	}
	return data
}

// Renderer writes index.html from a template.
type Renderer struct {
	tmpl    *template.Template
	distDir string
}

// NewRenderer loads templatePath, or the embedded default page when that
// file does not exist.
func NewRenderer(templatePath, distDir string) (*Renderer, error) {
	tmpl, err := loadTemplate(templatePath)
	if err != nil {
		return nil, err
	}
	if distDir == "" {
		distDir = "dist"
	}
	return &Renderer{tmpl: tmpl, distDir: distDir}, nil
}

func loadTemplate(path string) (*template.Template, error) {
	if path != "" {
		src, err := os.ReadFile(path)
		switch {
		case err == nil:
			tmpl, err := template.New(filepath.Base(path)).Funcs(tmplFuncs).Parse(string(src))
			if err != nil {
				return nil, fmt.Errorf("failed to parse template %s: %w", path, err)
			}
			return tmpl, nil
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read template %s: %w", path, err)
		}
	}
	return template.New("index.html.tmpl").Funcs(tmplFuncs).ParseFS(templateFS, "templates/index.html.tmpl")
}

// Render executes the template and writes <dist>/index.html. The file is
// only replaced once rendering succeeded.
func (r *Renderer) Render(data PageData) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	path := filepath.Join(r.distDir, "index.html")
	if err := os.MkdirAll(r.distDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create dist directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
