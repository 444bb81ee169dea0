package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/elonfeng/patternradar/internal/store"
	"github.com/elonfeng/patternradar/pkg/achievement"
	"github.com/elonfeng/patternradar/pkg/alert"
	"github.com/elonfeng/patternradar/pkg/ingest"
	"github.com/elonfeng/patternradar/pkg/learning"
	"github.com/elonfeng/patternradar/pkg/pattern"
	"github.com/elonfeng/patternradar/pkg/post"
)

// EmptyMessage is reported when a user has no posts in the window.
const EmptyMessage = "no posts logged yet"

// allPostsLimit bounds the all-time post scan used for achievement stats.
const allPostsLimit = 100000

// Window is the publish-time range a dashboard covers.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Payload is the dashboard output for one user.
type Payload struct {
	UserID            string                                 `json:"user_id"`
	GeneratedAt       time.Time                              `json:"generated_at"`
	Window            Window                                 `json:"window"`
	Signals           []pattern.Signal                       `json:"signals"`
	SummariesByTag    map[pattern.Tag]pattern.PatternSummary `json:"summaries_by_tag"`
	TopHashtags       map[string]float64                     `json:"top_hashtags"`
	LearningPhase     learning.Phase                         `json:"learning_phase"`
	ProgressPercent   float64                                `json:"progress_percent"`
	RAGHitRate        float64                                `json:"rag_hit_rate"`
	TotalInteractions int                                    `json:"total_interactions"`
	RAGHitCount       int                                    `json:"rag_hit_count"`
	Achievements      []achievement.Badge                    `json:"achievements"`
	Message           string                                 `json:"message,omitempty"`
}

// Service ties the store, the pattern engine and the trackers together.
type Service struct {
	store   store.Store
	engine  *pattern.Engine
	catalog []achievement.Definition
	alerts  *alert.Manager
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAlerts broadcasts newly earned badges through m.
func WithAlerts(m *alert.Manager) Option {
	return func(s *Service) { s.alerts = m }
}

// WithCatalog replaces the built-in badge catalog.
func WithCatalog(defs []achievement.Definition) Option {
	return func(s *Service) {
		if len(defs) > 0 {
			s.catalog = defs
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a dashboard service.
func NewService(st store.Store, engine *pattern.Engine, log *slog.Logger, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		store:   st,
		engine:  engine,
		catalog: achievement.DefaultCatalog,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build assembles the dashboard for userID over the trailing window. A
// non-positive window covers all posts. Newly earned badges are recorded
// and broadcast only once the payload is complete.
func (s *Service) Build(ctx context.Context, userID string, window time.Duration) (*Payload, error) {
	if userID == "" {
		return nil, fmt.Errorf("build dashboard: %w: missing user id", store.ErrInvalidInput)
	}
	now := s.now().UTC()

	win := Window{Until: now}
	if window > 0 {
		win.Since = now.Add(-window)
	}

	posts, err := s.store.ListPosts(ctx, store.PostListOpts{UserID: userID, Since: win.Since, Limit: allPostsLimit})
	if err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	allPosts := posts
	if !win.Since.IsZero() {
		allPosts, err = s.store.ListPosts(ctx, store.PostListOpts{UserID: userID, Limit: allPostsLimit})
		if err != nil {
			return nil, fmt.Errorf("build dashboard: %w", err)
		}
	}
	feedback, err := s.store.ListFeedback(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	counters, err := s.store.GetCounters(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	actions, err := s.store.CountActions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}
	awards, err := s.store.ListBadgeAwards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("build dashboard: %w", err)
	}

	analysis := s.engine.Analyze(ctx, pattern.Input{Posts: posts, Feedback: feedback, Now: now})

	state := learning.Evaluate(counters)

	// Badges count gold posts over the whole history, not just the window.
	allSignals := analysis.Signals
	if !win.Since.IsZero() {
		allSignals = s.engine.Signals(pattern.Input{Posts: allPosts, Feedback: feedback, Now: now})
	}

	stats := achievement.Aggregate(achievement.Sources{
		Posts:          allPosts,
		Feedback:       feedback,
		ActionsLogged:  actions.Logged,
		ActionsApplied: actions.Applied,
		Counters:       counters,
		Signals:        allSignals,
		Now:            now,
	})
	badges, badErrs := achievement.Evaluate(s.catalog, stats)
	for _, err := range badErrs {
		s.log.Warn("excluding badge", "user_id", userID, "err", err)
	}

	newly := achievement.NewlyEarned(badges, awards)
	snapshot := make(map[string]time.Time, len(awards)+len(newly))
	for id, at := range awards {
		snapshot[id] = at
	}
	for _, b := range newly {
		snapshot[b.ID] = now
	}
	badges = achievement.ApplyAwards(badges, snapshot)

	p := &Payload{
		UserID:            userID,
		GeneratedAt:       now,
		Window:            win,
		Signals:           analysis.Signals,
		SummariesByTag:    analysis.SummariesByTag,
		TopHashtags:       analysis.TopHashtags,
		LearningPhase:     state.Phase,
		ProgressPercent:   state.ProgressPercent,
		RAGHitRate:        state.RAGHitRate,
		TotalInteractions: state.TotalInteractions,
		RAGHitCount:       state.RAGHitCount,
		Achievements:      badges,
	}
	if len(analysis.Signals) == 0 {
		s.log.Info("empty dashboard", "user_id", userID, "err", pattern.ErrNoPosts)
		p.Message = EmptyMessage
	}

	s.recordAwards(ctx, userID, newly, now)
	return p, nil
}

func (s *Service) recordAwards(ctx context.Context, userID string, newly []achievement.Badge, now time.Time) {
	var recorded []achievement.Badge
	for _, b := range newly {
		ok, err := s.store.AwardBadge(ctx, userID, b.ID, now)
		if err != nil {
			s.log.Warn("award badge failed", "user_id", userID, "badge", b.ID, "err", err)
			continue
		}
		if ok {
			b.EarnedAt = &now
			recorded = append(recorded, b)
		}
	}
	if len(recorded) == 0 {
		return
	}

	s.log.Info("badges earned", "user_id", userID, "count", len(recorded))
	if !s.alerts.HasNotifiers() {
		return
	}
	if err := s.alerts.Broadcast(ctx, alert.BadgesEarned(userID, recorded, now)); err != nil {
		s.log.Warn("badge alert failed", "user_id", userID, "err", err)
	}
}

// LogPost stores a post's analytics, extracting hashtags from the title
// when none are given.
func (s *Service) LogPost(ctx context.Context, p *post.Post) error {
	if len(p.Hashtags) == 0 {
		p.Hashtags = ingest.ExtractHashtags(p.Title)
	} else {
		p.Hashtags = ingest.NormalizeHashtags(p.Hashtags)
	}
	if p.LoggedAt.IsZero() {
		p.LoggedAt = s.now().UTC()
	}
	return s.store.UpsertPost(ctx, p)
}

// AddFeedback appends a feedback entry.
func (s *Service) AddFeedback(ctx context.Context, f *post.Feedback) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now().UTC()
	}
	return s.store.AddFeedback(ctx, f)
}

// RecordInteraction counts one interaction under key and returns the
// resulting learning state. counted is false for a replayed key.
func (s *Service) RecordInteraction(ctx context.Context, userID, key string, ragHit bool) (state learning.State, counted bool, err error) {
	counted, err = s.store.RecordInteraction(ctx, userID, strings.TrimSpace(key), ragHit)
	if err != nil {
		return learning.State{}, false, err
	}
	counters, err := s.store.GetCounters(ctx, userID)
	if err != nil {
		return learning.State{}, counted, err
	}
	if !counted {
		s.log.Debug("interaction replay ignored", "user_id", userID, "key", key)
	}
	return learning.Evaluate(counters), counted, nil
}

// LogAction records a suggested action and whether it was applied.
func (s *Service) LogAction(ctx context.Context, a *post.ActionLog) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	return s.store.AddActionLog(ctx, a)
}

// ImportResult reports the outcome of a feed import.
type ImportResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
}

// ImportPosts stores imported posts without overwriting existing ones.
func (s *Service) ImportPosts(ctx context.Context, posts []post.Post) (ImportResult, error) {
	res := ImportResult{Fetched: len(posts)}
	now := s.now().UTC()
	for i := range posts {
		p := &posts[i]
		if p.LoggedAt.IsZero() {
			p.LoggedAt = now
		}
		ok, err := s.store.InsertPostIfAbsent(ctx, p)
		if err != nil {
			s.log.Warn("skipping imported post", "post_id", p.ID, "err", err)
			continue
		}
		if ok {
			res.Inserted++
		}
	}
	return res, ctx.Err()
}
