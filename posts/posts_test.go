package posts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewPost_DefaultTitle verifies the fallback for an empty title
func TestNewPost_DefaultTitle(t *testing.T) {
	post := NewPost("", "https://example.com/p/a", nil, "")

	assert.Equal(t, DefaultTitle, post.Title)
	assert.True(t, post.NeedsBackfill())
}

// TestNewPost_StableID verifies the ID is derived from the link
func TestNewPost_StableID(t *testing.T) {
	a := NewPost("One", "https://example.com/p/a", nil, "")
	b := NewPost("Two", "https://example.com/p/a", nil, "other")
	c := NewPost("One", "https://example.com/p/b", nil, "")

	assert.Equal(t, a.ID, b.ID, "same link should give same ID")
	assert.NotEqual(t, a.ID, c.ID)
}

// TestPostRaw_RoundTrip verifies that a post converts back to a raw record
func TestPostRaw_RoundTrip(t *testing.T) {
	published := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	post := NewPost("Title", "https://example.com/p/a", &published, "Summary")

	raw := post.Raw()

	assert.Equal(t, "Title", raw.Title)
	assert.Equal(t, post.Link, raw.Link)
	require.NotNil(t, raw.Published)
	assert.Equal(t, published, *raw.Published)
	assert.Equal(t, "Summary", raw.Summary)
}

// TestPostRaw_SummaryEscaped verifies plain-text summaries are escaped so
// markup-like text survives another HTML strip
func TestPostRaw_SummaryEscaped(t *testing.T) {
	post := NewPost("Title", "https://example.com/p/a", nil, "Use <br> & rhyme")

	assert.Equal(t, "Use &lt;br&gt; &amp; rhyme", post.Raw().Summary)
}

// TestPostRaw_DefaultTitleCleared verifies the placeholder title is not
// carried back as a real title
func TestPostRaw_DefaultTitleCleared(t *testing.T) {
	post := NewPost("", "https://example.com/p/a", nil, "")

	assert.Empty(t, post.Raw().Title)
}

// TestCanonicalLink covers link canonicalization rules
func TestCanonicalLink(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		base string
		want string
	}{
		{"absolute", "https://example.com/p/a", "", "https://example.com/p/a"},
		{"relative", "/p/a", "https://example.com/archive", "https://example.com/p/a"},
		{"fragment", "https://example.com/p/a#comments", "", "https://example.com/p/a"},
		{"trailing slash", "https://example.com/p/a/", "", "https://example.com/p/a"},
		{"root kept", "https://example.com/", "", "https://example.com/"},
		{"uppercase host", "https://EXAMPLE.com/p/a", "", "https://example.com/p/a"},
		{"utm stripped", "https://example.com/p/a?utm_source=x&utm_medium=y", "", "https://example.com/p/a"},
		{"other query kept", "https://example.com/p/a?utm_source=x&page=2", "", "https://example.com/p/a?page=2"},
		{"mailto rejected", "mailto:me@example.com", "", ""},
		{"empty", "   ", "https://example.com", ""},
		{"relative without base", "/p/a", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalLink(tt.raw, tt.base))
		})
	}
}

// TestDedupeRaws_KeepsFirst verifies first-occurrence wins
func TestDedupeRaws_KeepsFirst(t *testing.T) {
	raws := []Raw{
		{Title: "first", Link: "/p/a"},
		{Title: "second", Link: "https://example.com/p/a/"},
		{Title: "other", Link: "/p/b"},
		{Title: "no link"},
	}

	out := DedupeRaws(raws, "https://example.com")

	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Title)
	assert.Equal(t, "https://example.com/p/a", out[0].Link)
	assert.Equal(t, "https://example.com/p/b", out[1].Link)
}

// TestSameOrigin verifies host comparison
func TestSameOrigin(t *testing.T) {
	assert.True(t, SameOrigin("https://example.com/p/a", "http://EXAMPLE.com/"))
	assert.False(t, SameOrigin("https://other.com/p/a", "https://example.com/"))
}

// TestOrigin verifies origin extraction
func TestOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com", Origin("https://example.com/feed?x=1"))
	assert.Empty(t, Origin("/relative"))
}

// TestSnapshotStore_SaveLoad verifies a snapshot survives a round trip
func TestSnapshotStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "posts.json")
	store := NewSnapshotStore(path)

	published := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		GeneratedAt: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		SiteTitle:   "torchborne",
		Posts: []Post{
			NewPost("A", "https://example.com/p/a", &published, ""),
			NewPost("B", "https://example.com/p/b", nil, ""),
		},
	}

	require.NoError(t, store.Save(snap))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "torchborne", loaded.SiteTitle)
	require.Len(t, loaded.Posts, 2)
	assert.Equal(t, snap.Posts[0].ID, loaded.Posts[0].ID)
	require.NotNil(t, loaded.Posts[0].PublishedAt)
	assert.True(t, published.Equal(*loaded.Posts[0].PublishedAt))
	assert.Nil(t, loaded.Posts[1].PublishedAt)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

// TestSnapshotStore_LoadMissing verifies a missing file is not an error
func TestSnapshotStore_LoadMissing(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "posts.json"))

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)
}

// TestSnapshotStore_LoadCorrupt verifies a malformed file is reported
func TestSnapshotStore_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewSnapshotStore(path).Load()
	assert.Error(t, err)
}

// TestSnapshotStore_SaveNilPosts verifies nil posts are written as a list
func TestSnapshotStore_SaveNilPosts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, NewSnapshotStore(path).Save(Snapshot{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"posts": []`)
}
