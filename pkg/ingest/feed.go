package ingest

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/patternradar/pkg/post"
)

// FeedImporter turns RSS/Atom entries from a creator's public feed into
// post records. Feeds carry no engagement counters; those are logged later.
type FeedImporter struct {
	client   *http.Client
	parser   *gofeed.Parser
	category post.Category
}

// NewFeedImporter creates an importer that assigns category to every entry.
func NewFeedImporter(category post.Category) *FeedImporter {
	return &FeedImporter{
		client:   &http.Client{Timeout: 30 * time.Second},
		parser:   gofeed.NewParser(),
		category: post.NormalizeCategory(category),
	}
}

// FetchURL downloads and parses a feed.
func (f *FeedImporter) FetchURL(ctx context.Context, userID, url string) ([]post.Post, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "patternradar/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", url, resp.StatusCode)
	}
	return f.Parse(userID, resp.Body)
}

// Parse reads a feed document and returns one post per entry.
func (f *FeedImporter) Parse(userID string, r io.Reader) ([]post.Post, error) {
	parsed, err := f.parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	now := time.Now().UTC()
	posts := make([]post.Post, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}

		key := entry.GUID
		if key == "" {
			key = entry.Link
		}
		if key == "" {
			key = entry.Title + published.Format(time.RFC3339)
		}

		tags := ExtractHashtags(entry.Title + " " + entry.Description)
		tags = NormalizeHashtags(append(tags, entry.Categories...))

		posts = append(posts, post.Post{
			ID:          "feed:" + shortHash(key),
			UserID:      userID,
			Category:    f.category,
			Title:       strings.TrimSpace(entry.Title),
			Hashtags:    tags,
			PublishedAt: published,
			LoggedAt:    now,
		})
	}
	return posts, nil
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:8])
}
