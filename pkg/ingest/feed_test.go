package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/elonfeng/patternradar/pkg/post"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>creator</title>
  <link>https://example.com</link>
  <description>posts</description>
  <item>
    <title>Morning ride #cycling #Sunrise</title>
    <link>https://example.com/p/1</link>
    <guid>post-1</guid>
    <category>Outdoors</category>
    <pubDate>Mon, 04 May 2026 07:30:00 +0200</pubDate>
    <description>New route today #cycling</description>
  </item>
  <item>
    <title>Untagged</title>
    <link>https://example.com/p/2</link>
  </item>
</channel>
</rss>`

func TestParse(t *testing.T) {
	imp := NewFeedImporter("Reel")

	posts, err := imp.Parse("u1", strings.NewReader(sampleRSS))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}

	p := posts[0]
	if p.UserID != "u1" || p.Category != post.CategoryReel {
		t.Errorf("post = %+v", p)
	}
	if !strings.HasPrefix(p.ID, "feed:") {
		t.Errorf("ID = %q, want feed: prefix", p.ID)
	}
	wantTags := []string{"cycling", "sunrise", "outdoors"}
	if strings.Join(p.Hashtags, ",") != strings.Join(wantTags, ",") {
		t.Errorf("hashtags = %v, want %v", p.Hashtags, wantTags)
	}
	wantTime := time.Date(2026, 5, 4, 5, 30, 0, 0, time.UTC)
	if !p.PublishedAt.Equal(wantTime) || p.PublishedAt.Location() != time.UTC {
		t.Errorf("PublishedAt = %v, want %v", p.PublishedAt, wantTime)
	}

	// IDs are stable across parses.
	again, err := imp.Parse("u1", strings.NewReader(sampleRSS))
	if err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	if again[0].ID != p.ID || again[1].ID != posts[1].ID {
		t.Error("post ids changed between parses")
	}
	if posts[0].ID == posts[1].ID {
		t.Error("distinct entries share an id")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := NewFeedImporter("").Parse("u1", strings.NewReader("not a feed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFetchURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	imp := NewFeedImporter(post.CategoryFeed)
	posts, err := imp.FetchURL(context.Background(), "u2", srv.URL+"/feed")
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if len(posts) != 2 || posts[0].UserID != "u2" {
		t.Errorf("posts = %+v", posts)
	}

	if _, err := imp.FetchURL(context.Background(), "u2", srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404 feed")
	}
}
