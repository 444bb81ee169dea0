package post

import (
	"strings"
	"time"
)

// Category is the coarse content type of a post.
type Category string

const (
	CategoryFeed     Category = "feed"
	CategoryReel     Category = "reel"
	CategoryStory    Category = "story"
	CategoryCarousel Category = "carousel"
	CategoryOther    Category = "other"
)

// NormalizeCategory lowercases c and maps empty values to CategoryOther.
func NormalizeCategory(c Category) Category {
	s := strings.ToLower(strings.TrimSpace(string(c)))
	if s == "" {
		return CategoryOther
	}
	return Category(s)
}

// KnownCategories returns the categories the dashboard renders natively.
func KnownCategories() []Category {
	return []Category{CategoryFeed, CategoryReel, CategoryStory, CategoryCarousel}
}

// Post is one published post with its raw engagement counters.
// The engine treats it as read-only input.
type Post struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	Category      Category  `json:"category" db:"category"`
	Title         string    `json:"title" db:"title"`
	Hashtags      []string  `json:"hashtags" db:"-"`
	PublishedAt   time.Time `json:"published_at" db:"published_at"`
	Reach         int       `json:"reach" db:"reach"`
	Impressions   int       `json:"impressions" db:"impressions"`
	Likes         int       `json:"likes" db:"likes"`
	Comments      int       `json:"comments" db:"comments"`
	Shares        int       `json:"shares" db:"shares"`
	Saves         int       `json:"saves" db:"saves"`
	FollowerCount int       `json:"follower_count" db:"follower_count"`
	WatchTimeSec  *float64  `json:"watch_time_sec,omitempty" db:"watch_time_sec"`
	LinkClicks    *int      `json:"link_clicks,omitempty" db:"link_clicks"`
	LoggedAt      time.Time `json:"logged_at" db:"logged_at"`
	HashtagsJSON  string    `json:"-" db:"hashtags"`
}

// Sentiment is the qualitative reaction attached to a feedback entry.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three known sentiments.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Feedback is an append-only user reaction to a post.
type Feedback struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	PostID    string    `json:"post_id" db:"post_id"`
	Sentiment Sentiment `json:"sentiment" db:"sentiment"`
	Comment   string    `json:"comment" db:"comment"`
	Weight    float64   `json:"weight" db:"weight"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// EffectiveWeight returns the feedback weight, defaulting to 1.0.
func (f Feedback) EffectiveWeight() float64 {
	if f.Weight <= 0 {
		return 1.0
	}
	return f.Weight
}

// ActionLog records a suggested action and whether the user applied it.
type ActionLog struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	PostID    string    `json:"post_id" db:"post_id"`
	Action    string    `json:"action" db:"action"`
	Applied   bool      `json:"applied" db:"applied"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
