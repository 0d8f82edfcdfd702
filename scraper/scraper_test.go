package scraper

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/dhamsey3/poetry/posts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://verses.example.com/"

func links(raws []posts.Raw) []string {
	out := make([]string, 0, len(raws))
	for _, r := range raws {
		out = append(out, r.Link)
	}
	return out
}

// TestWalk_DepthCap verifies deeply nested documents stop at the cap
func TestWalk_DepthCap(t *testing.T) {
	var root any = "leaf"
	for i := 0; i < 100; i++ {
		root = []any{root}
	}

	visited := 0
	sawLeaf := false
	Walk(root, func(node any) bool {
		visited++
		if node == "leaf" {
			sawLeaf = true
		}
		return true
	})

	assert.Equal(t, MaxWalkDepth+1, visited)
	assert.False(t, sawLeaf, "leaf beyond the cap should not be visited")
}

// TestWalk_SkipChildren verifies returning false prunes a subtree
func TestWalk_SkipChildren(t *testing.T) {
	data := map[string]any{"skip": map[string]any{"inner": "x"}, "keep": []any{"y"}}

	var seen []any
	Walk(data, func(node any) bool {
		seen = append(seen, node)
		if m, ok := node.(map[string]any); ok {
			_, isSkipped := m["inner"]
			return !isSkipped
		}
		return true
	})

	assert.NotContains(t, seen, "x")
	assert.Contains(t, seen, "y")
}

// TestJSONLD_ItemList verifies ItemList elements with item objects and URLs
func TestJSONLD_ItemList(t *testing.T) {
	html := `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@type":"ItemList","itemListElement":[
 {"@type":"ListItem","position":1,"item":{"@type":"BlogPosting","headline":"First Lantern","url":"https://verses.example.com/p/first-lantern","datePublished":"2024-01-15T10:30:00Z"}},
 {"@type":"ListItem","position":2,"item":"https://verses.example.com/p/second-lantern","name":"Second Lantern"},
 {"@type":"ListItem","position":3,"url":"/p/third-lantern"}
]}
</script></head></html>`

	raws := JSONLD{}.Extract(html, base)

	require.Len(t, raws, 3)
	assert.Equal(t, "First Lantern", raws[0].Title)
	assert.Equal(t, []string{"2024-01-15T10:30:00Z"}, raws[0].Dates)
	assert.Equal(t, "Second Lantern", raws[1].Title)
	assert.Equal(t, "https://verses.example.com/p/third-lantern", raws[2].Link)
	assert.Equal(t, "jsonld", raws[0].Source)
}

// TestJSONLD_GraphAndBlog verifies @graph nesting and Blog.blogPost
func TestJSONLD_GraphAndBlog(t *testing.T) {
	html := `<script type="application/ld+json">
{"@graph":[
 {"@type":"WebSite","url":"https://verses.example.com/"},
 {"@type":"Blog","blogPost":[{"headline":"Ember","mainEntityOfPage":{"@id":"https://verses.example.com/p/ember"}}]},
 {"@type":["NewsArticle"],"name":"Ash","url":"https://verses.example.com/p/ash","description":"grey"}
]}
</script>
<script type="application/ld+json">not json</script>`

	raws := JSONLD{}.Extract(html, base)

	assert.ElementsMatch(t, []string{"https://verses.example.com/p/ember", "https://verses.example.com/p/ash"}, links(raws))
}

// TestJSONLD_NoBlocks verifies pages without structured data yield nothing
func TestJSONLD_NoBlocks(t *testing.T) {
	assert.Empty(t, JSONLD{}.Extract("<html><body></body></html>", base))
}

// TestPageState_NextData verifies post lists inside __NEXT_DATA__
func TestPageState_NextData(t *testing.T) {
	state := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"posts": []any{
					map[string]any{"title": "First Lantern", "canonical_url": "https://verses.example.com/p/first-lantern", "post_date": "2024-01-15T10:30:00.000Z", "subtitle": "light"},
					map[string]any{"headline": "Slugged", "slug": "slugged-verse", "publishedAt": float64(1705314600)},
				},
			},
		},
	}
	blob, err := json.Marshal(state)
	require.NoError(t, err)
	html := `<script id="__NEXT_DATA__" type="application/json">` + string(blob) + `</script>`

	raws := NewPageState(NewConfig()).Extract(html, base)

	require.Len(t, raws, 2)
	byLink := map[string]posts.Raw{}
	for _, r := range raws {
		byLink[r.Link] = r
	}
	first := byLink["https://verses.example.com/p/first-lantern"]
	assert.Equal(t, "First Lantern", first.Title)
	assert.Equal(t, "light", first.Summary)
	assert.Equal(t, []string{"2024-01-15T10:30:00.000Z"}, first.Dates)

	slugged := byLink["https://verses.example.com/p/slugged-verse"]
	assert.Equal(t, "Slugged", slugged.Title)
	assert.Equal(t, []string{"1705314600"}, slugged.Dates)
}

// TestPageState_Preloads verifies window._preloads JSON.parse blobs
func TestPageState_Preloads(t *testing.T) {
	inner := `{"newPosts":[{"title":"Quoted \"Verse\"","canonical_url":"https://verses.example.com/p/quoted"}]}`
	literal, err := json.Marshal(inner)
	require.NoError(t, err)
	html := `<script>window._preloads        = JSON.parse(` + string(literal) + `)</script>`

	raws := NewPageState(NewConfig()).Extract(html, base)

	require.Len(t, raws, 1)
	assert.Equal(t, `Quoted "Verse"`, raws[0].Title)
	assert.Equal(t, "https://verses.example.com/p/quoted", raws[0].Link)
}

// TestPageState_FromJSONPayloads verifies bare lists and wrapped lists
func TestPageState_FromJSONPayloads(t *testing.T) {
	bodies := []string{
		`[{"title":"A","canonical_url":"https://verses.example.com/p/a"},{"title":"B","slug":"b"}]`,
		`{"items":[{"title":"C","url":"https://verses.example.com/p/c"}]}`,
		`not json`,
	}

	raws := NewPageState(NewConfig()).FromJSONPayloads(bodies, base)

	assert.ElementsMatch(t, []string{
		"https://verses.example.com/p/a",
		"https://verses.example.com/p/b",
		"https://verses.example.com/p/c",
	}, links(raws))
	assert.Equal(t, "api", raws[0].Source)
}

// TestAnchors_FirstSelectorWins verifies selector priority and date lookup
func TestAnchors_FirstSelectorWins(t *testing.T) {
	html := `<html><body>
<div class="post-preview">
  <a data-testid="post-preview-title" href="/p/first-lantern">First   Lantern</a>
  <div><time datetime="2024-01-15T10:30:00Z">Jan 15</time></div>
</div>
<div class="post-preview"><a data-testid="post-preview-title" href="https://verses.example.com/p/second?utm_source=x">Second</a></div>
<a href="/p/footer-link">Footer</a>
<a href="https://elsewhere.example.org/p/offsite">Offsite</a>
</body></html>`

	raws := NewAnchors(NewConfig()).Extract(html, base)

	require.Len(t, raws, 2)
	assert.Equal(t, "First Lantern", raws[0].Title)
	assert.Equal(t, "https://verses.example.com/p/first-lantern", raws[0].Link)
	assert.Equal(t, []string{"2024-01-15T10:30:00Z"}, raws[0].Dates)
	assert.Equal(t, "https://verses.example.com/p/second", raws[1].Link)
}

// TestAnchors_FallsBackToGenericSelector verifies lower-priority selectors
func TestAnchors_FallsBackToGenericSelector(t *testing.T) {
	html := `<ul><li><a href="/p/one">One</a> <time>March 3, 2024</time></li>
<li><a href="https://elsewhere.example.org/p/offsite">Offsite</a></li>
<li><a href="/about">About</a></li></ul>`

	raws := NewAnchors(NewConfig()).Extract(html, base)

	require.Len(t, raws, 1)
	assert.Equal(t, "https://verses.example.com/p/one", raws[0].Link)
	assert.Equal(t, []string{"March 3, 2024"}, raws[0].Dates)
}

// TestRegex_FindsAbsoluteAndRelative verifies same-origin filtering
func TestRegex_FindsAbsoluteAndRelative(t *testing.T) {
	html := `<script>var a = "https://verses.example.com/p/alpha"; var b = '/p/beta';
var c = "https://other.example.org/p/gamma";</script>
<p>see https://verses.example.com/p/alpha again</p>`

	raws := NewRegex(NewConfig()).Extract(html, base)

	assert.Equal(t, []string{"https://verses.example.com/p/alpha", "https://verses.example.com/p/beta"}, links(raws))
	assert.Empty(t, raws[0].Title)
}

// TestRegex_IgnoresPathsInsideOtherURLs verifies a post path nested in a
// foreign URL is not rebased onto the publication
func TestRegex_IgnoresPathsInsideOtherURLs(t *testing.T) {
	html := `<img src="https://substackcdn.com/image/fetch/p/abc123">
<a href="//verses.example.com/p/protocol-relative">x</a>
<img srcset="https://cdn.example.net/w_80/p/thumb 1x">
<a href=/p/unquoted>y</a>`

	raws := NewRegex(NewConfig()).Extract(html, base)

	assert.Equal(t, []string{"https://verses.example.com/p/protocol-relative", "https://verses.example.com/p/unquoted"}, links(raws))
}

// fixedExtractor returns canned records
type fixedExtractor struct {
	name string
	raws []posts.Raw
}

func (f fixedExtractor) Name() string                       { return f.name }
func (f fixedExtractor) Extract(string, string) []posts.Raw { return f.raws }

// TestCascade_FirstNonEmptyWins verifies ordering of extractors
func TestCascade_FirstNonEmptyWins(t *testing.T) {
	c := NewCascade(
		fixedExtractor{name: "empty"},
		fixedExtractor{name: "second", raws: []posts.Raw{{Link: "https://verses.example.com/p/x"}}},
		fixedExtractor{name: "third", raws: []posts.Raw{{Link: "https://verses.example.com/p/y"}}},
	)

	raws, name := c.Run("<html></html>", base)

	assert.Equal(t, "second", name)
	require.Len(t, raws, 1)
}

// TestCascade_NothingFound verifies an empty result and no name
func TestCascade_NothingFound(t *testing.T) {
	raws, name := DefaultCascade(NewConfig()).Run("<html><body><p>nothing here</p></body></html>", base)

	assert.Empty(t, raws)
	assert.Empty(t, name)
}

// TestDefaultCascade_PrefersStructuredData verifies JSON-LD beats anchors
func TestDefaultCascade_PrefersStructuredData(t *testing.T) {
	html := `<script type="application/ld+json">{"@type":"BlogPosting","headline":"LD","url":"https://verses.example.com/p/ld"}</script>
<a href="/p/anchor">Anchor</a>`

	raws, name := DefaultCascade(NewConfig()).Run(html, base)

	assert.Equal(t, "jsonld", name)
	assert.Equal(t, []string{"https://verses.example.com/p/ld"}, links(raws))
}

// TestConfig_Defaults verifies empty fields fall back to defaults
func TestConfig_Defaults(t *testing.T) {
	cfg := Config{PostPathMarker: "/poems/"}.WithDefaults()

	assert.Equal(t, "/poems/", cfg.PostPathMarker)
	assert.Equal(t, "/archive?sort=new", cfg.ArchivePath)
	assert.Equal(t, "/api/v1/", cfg.APIMarker)
	assert.Contains(t, cfg.AnchorSelectors, `article a[href*="/poems/"]`)
	assert.Contains(t, cfg.WaitSelector, `a[href*="/poems/"]`)
	for _, selector := range cfg.AnchorSelectors {
		assert.NotContains(t, selector, `"/p/"`)
	}
	assert.Equal(t, "https://verses.example.com/archive?sort=new", cfg.ArchiveURL("https://verses.example.com/"))
	assert.True(t, strings.HasPrefix(Config{ArchivePath: "archive"}.ArchiveURL("https://a.example"), "https://a.example/archive"))
}

// TestAnchors_CustomMarker verifies the default selectors follow the post
// path marker
func TestAnchors_CustomMarker(t *testing.T) {
	html := `<article><a href="/poems/ember">Ember</a></article><article><a href="/p/other">Other</a></article>`

	raws := NewAnchors(Config{PostPathMarker: "/poems/"}).Extract(html, base)

	assert.Equal(t, []string{"https://verses.example.com/poems/ember"}, links(raws))
}
