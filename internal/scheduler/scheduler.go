package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/elonfeng/patternradar/pkg/dashboard"
	"github.com/elonfeng/patternradar/pkg/post"
)

// Fetcher loads post metadata from a remote feed.
type Fetcher interface {
	FetchURL(ctx context.Context, userID, url string) ([]post.Post, error)
}

// Target receives imported posts and rebuilds dashboards.
type Target interface {
	ImportPosts(ctx context.Context, posts []post.Post) (dashboard.ImportResult, error)
	Build(ctx context.Context, userID string, window time.Duration) (*dashboard.Payload, error)
}

// Feed is one remote feed imported for a user.
type Feed struct {
	Name    string
	UserID  string
	URL     string
	Fetcher Fetcher
}

// Scheduler runs periodic feed imports and dashboard refreshes. Refreshing
// a dashboard records newly earned badges and sends their alerts.
type Scheduler struct {
	target     Target
	feeds      []Feed
	importInt  time.Duration
	refreshInt time.Duration
	window     time.Duration
	log        *slog.Logger
}

// New creates a new scheduler.
func New(target Target, feeds []Feed, importInt, refreshInt, window time.Duration, log *slog.Logger) *Scheduler {
	if importInt == 0 {
		importInt = time.Hour
	}
	if refreshInt == 0 {
		refreshInt = 6 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		target:     target,
		feeds:      feeds,
		importInt:  importInt,
		refreshInt: refreshInt,
		window:     window,
		log:        log,
	}
}

// Run starts the scheduler loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	importTicker := time.NewTicker(s.importInt)
	refreshTicker := time.NewTicker(s.refreshInt)
	defer importTicker.Stop()
	defer refreshTicker.Stop()

	s.ImportAll(ctx)
	s.RefreshAll(ctx)

	s.log.Info("scheduler running", "import_every", s.importInt, "refresh_every", s.refreshInt, "feeds", len(s.feeds))

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-importTicker.C:
			s.ImportAll(ctx)
		case <-refreshTicker.C:
			s.RefreshAll(ctx)
		}
	}
}

// ImportAll fetches every feed once and returns the number of new posts.
func (s *Scheduler) ImportAll(ctx context.Context) int {
	inserted := 0
	for _, f := range s.feeds {
		posts, err := f.Fetcher.FetchURL(ctx, f.UserID, f.URL)
		if err != nil {
			s.log.Warn("feed import failed", "feed", f.Name, "err", err)
			continue
		}

		res, err := s.target.ImportPosts(ctx, posts)
		if err != nil {
			s.log.Warn("feed store failed", "feed", f.Name, "err", err)
			continue
		}
		s.log.Info("feed imported", "feed", f.Name, "user_id", f.UserID, "fetched", res.Fetched, "inserted", res.Inserted)
		inserted += res.Inserted
	}
	return inserted
}

// RefreshAll rebuilds the dashboard of every user with a configured feed.
func (s *Scheduler) RefreshAll(ctx context.Context) {
	for _, userID := range s.users() {
		p, err := s.target.Build(ctx, userID, s.window)
		if err != nil {
			s.log.Warn("dashboard refresh failed", "user_id", userID, "err", err)
			continue
		}
		s.log.Debug("dashboard refreshed", "user_id", userID, "signals", len(p.Signals))
	}
}

func (s *Scheduler) users() []string {
	seen := make(map[string]bool)
	var users []string
	for _, f := range s.feeds {
		if f.UserID != "" && !seen[f.UserID] {
			seen[f.UserID] = true
			users = append(users, f.UserID)
		}
	}
	sort.Strings(users)
	return users
}
