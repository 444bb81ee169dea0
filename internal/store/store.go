package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/patternradar/internal/store/migrations"
	"github.com/elonfeng/patternradar/pkg/learning"
	"github.com/elonfeng/patternradar/pkg/post"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPost is returned when a post lacks an id, user or publish time.
	ErrInvalidPost = errors.New("invalid post")

	// ErrInvalidFeedback is returned for feedback with an unknown sentiment.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrInvalidInput is returned for interactions or actions missing
	// required fields.
	ErrInvalidInput = errors.New("invalid input")
)

// PostListOpts controls post listing.
type PostListOpts struct {
	UserID   string
	Since    time.Time
	Until    time.Time
	Category post.Category
	Limit    int
}

// ActionCounts summarizes a user's action log.
type ActionCounts struct {
	Logged  int `db:"logged" json:"logged"`
	Applied int `db:"applied" json:"applied"`
}

// Store is the persistence interface for the dashboard's collaborators.
type Store interface {
	UpsertPost(ctx context.Context, p *post.Post) error
	InsertPostIfAbsent(ctx context.Context, p *post.Post) (bool, error)
	GetPost(ctx context.Context, userID, id string) (*post.Post, error)
	ListPosts(ctx context.Context, opts PostListOpts) ([]post.Post, error)

	AddFeedback(ctx context.Context, f *post.Feedback) error
	ListFeedback(ctx context.Context, userID string) ([]post.Feedback, error)

	RecordInteraction(ctx context.Context, userID, key string, ragHit bool) (bool, error)
	GetCounters(ctx context.Context, userID string) (learning.CounterState, error)

	AddActionLog(ctx context.Context, a *post.ActionLog) error
	CountActions(ctx context.Context, userID string) (ActionCounts, error)

	ListBadgeAwards(ctx context.Context, userID string) (map[string]time.Time, error)
	AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func validatePost(p *post.Post) error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidPost)
	case p.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrInvalidPost)
	case p.PublishedAt.IsZero():
		return fmt.Errorf("%w: missing publish time", ErrInvalidPost)
	}
	return nil
}

func preparePost(p *post.Post) string {
	p.Category = post.NormalizeCategory(p.Category)
	p.PublishedAt = p.PublishedAt.UTC()
	if p.LoggedAt.IsZero() {
		p.LoggedAt = time.Now().UTC()
	}
	tags := p.Hashtags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)
	return string(tagsJSON)
}

// UpsertPost inserts a post or replaces its counters. Logging analytics
// again for the same post overwrites the previous snapshot.
func (s *SQLiteStore) UpsertPost(ctx context.Context, p *post.Post) error {
	if err := validatePost(p); err != nil {
		return err
	}
	tagsJSON := preparePost(p)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, category, title, hashtags, published_at, reach, impressions, likes, comments, shares, saves, follower_count, watch_time_sec, link_clicks, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			hashtags = excluded.hashtags,
			published_at = excluded.published_at,
			reach = excluded.reach,
			impressions = excluded.impressions,
			likes = excluded.likes,
			comments = excluded.comments,
			shares = excluded.shares,
			saves = excluded.saves,
			follower_count = excluded.follower_count,
			watch_time_sec = excluded.watch_time_sec,
			link_clicks = excluded.link_clicks,
			logged_at = excluded.logged_at
	`, p.ID, p.UserID, p.Category, p.Title, tagsJSON, p.PublishedAt,
		p.Reach, p.Impressions, p.Likes, p.Comments, p.Shares, p.Saves,
		p.FollowerCount, p.WatchTimeSec, p.LinkClicks, p.LoggedAt)
	if err != nil {
		return fmt.Errorf("upsert post %s: %w", p.ID, err)
	}
	return nil
}

// InsertPostIfAbsent stores a post only when no post with its id exists.
// Used by imports so existing analytics are never clobbered.
func (s *SQLiteStore) InsertPostIfAbsent(ctx context.Context, p *post.Post) (bool, error) {
	if err := validatePost(p); err != nil {
		return false, err
	}
	tagsJSON := preparePost(p)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, user_id, category, title, hashtags, published_at, reach, impressions, likes, comments, shares, saves, follower_count, watch_time_sec, link_clicks, logged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO NOTHING
	`, p.ID, p.UserID, p.Category, p.Title, tagsJSON, p.PublishedAt,
		p.Reach, p.Impressions, p.Likes, p.Comments, p.Shares, p.Saves,
		p.FollowerCount, p.WatchTimeSec, p.LinkClicks, p.LoggedAt)
	if err != nil {
		return false, fmt.Errorf("insert post %s: %w", p.ID, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLiteStore) GetPost(ctx context.Context, userID, id string) (*post.Post, error) {
	var p post.Post
	err := s.db.GetContext(ctx, &p, "SELECT * FROM posts WHERE user_id = ? AND id = ?", userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	json.Unmarshal([]byte(p.HashtagsJSON), &p.Hashtags)
	return &p, nil
}

func (s *SQLiteStore) ListPosts(ctx context.Context, opts PostListOpts) ([]post.Post, error) {
	query := "SELECT * FROM posts WHERE user_id = ?"
	args := []any{opts.UserID}

	if !opts.Since.IsZero() {
		query += " AND published_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	if !opts.Until.IsZero() {
		query += " AND published_at < ?"
		args = append(args, opts.Until.UTC())
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, post.NormalizeCategory(opts.Category))
	}

	query += " ORDER BY published_at DESC, id"

	limit := opts.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var posts []post.Post
	if err := s.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	for i := range posts {
		json.Unmarshal([]byte(posts[i].HashtagsJSON), &posts[i].Hashtags)
	}
	return posts, nil
}

// AddFeedback appends a feedback entry. Entries are never updated.
func (s *SQLiteStore) AddFeedback(ctx context.Context, f *post.Feedback) error {
	if f.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidFeedback)
	}
	f.Sentiment = post.Sentiment(strings.ToLower(string(f.Sentiment)))
	if !f.Sentiment.Valid() {
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidFeedback, f.Sentiment)
	}
	if f.ID == "" {
		f.ID = ulid.Make().String()
	}
	if f.Weight <= 0 {
		f.Weight = 1.0
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, user_id, post_id, sentiment, comment, weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.UserID, f.PostID, f.Sentiment, f.Comment, f.Weight, f.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add feedback %s: %w", f.ID, err)
	}
	return nil
}

func (s *SQLiteStore) ListFeedback(ctx context.Context, userID string) ([]post.Feedback, error) {
	var entries []post.Feedback
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM feedback WHERE user_id = ? ORDER BY created_at, id", userID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return entries, nil
}

// RecordInteraction counts one user-AI interaction. A key that was already
// recorded for the user is ignored and reported as not counted. An empty
// key always counts.
func (s *SQLiteStore) RecordInteraction(ctx context.Context, userID, key string, ragHit bool) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("record interaction: %w: missing user id", ErrInvalidInput)
	}
	if key == "" {
		key = uuid.NewString()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (user_id, idempotency_key, rag_hit, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, idempotency_key) DO NOTHING
	`, userID, key, ragHit, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("record interaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (s *SQLiteStore) GetCounters(ctx context.Context, userID string) (learning.CounterState, error) {
	var row struct {
		Total int `db:"total"`
		Hits  int `db:"hits"`
	}
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(*) AS total, COALESCE(SUM(rag_hit), 0) AS hits
		FROM interactions WHERE user_id = ?
	`, userID)
	if err != nil {
		return learning.CounterState{}, fmt.Errorf("get counters: %w", err)
	}
	return learning.CounterState{TotalInteractions: row.Total, RAGHitCount: row.Hits}, nil
}

func (s *SQLiteStore) AddActionLog(ctx context.Context, a *post.ActionLog) error {
	if a.UserID == "" || strings.TrimSpace(a.Action) == "" {
		return fmt.Errorf("add action log: %w: missing user id or action", ErrInvalidInput)
	}
	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_logs (id, user_id, post_id, action, applied, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.PostID, a.Action, a.Applied, a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("add action log %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteStore) CountActions(ctx context.Context, userID string) (ActionCounts, error) {
	var c ActionCounts
	err := s.db.GetContext(ctx, &c, `
		SELECT COUNT(*) AS logged, COALESCE(SUM(applied), 0) AS applied
		FROM action_logs WHERE user_id = ?
	`, userID)
	if err != nil {
		return ActionCounts{}, fmt.Errorf("count actions: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) ListBadgeAwards(ctx context.Context, userID string) (map[string]time.Time, error) {
	var rows []struct {
		BadgeID  string    `db:"badge_id"`
		EarnedAt time.Time `db:"earned_at"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT badge_id, earned_at FROM badge_awards WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("list badge awards: %w", err)
	}

	awards := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		awards[r.BadgeID] = r.EarnedAt
	}
	return awards, nil
}

// AwardBadge snapshots an earned badge. It reports false if the badge was
// already awarded.
func (s *SQLiteStore) AwardBadge(ctx context.Context, userID, badgeID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO badge_awards (user_id, badge_id, earned_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, badge_id) DO NOTHING
	`, userID, badgeID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("award badge %s: %w", badgeID, err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
