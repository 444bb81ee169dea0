package achievement

import (
	"fmt"
	"time"

	"github.com/elonfeng/patternradar/pkg/pattern"
)

// Stats are the aggregated user statistics badges are measured against.
type Stats struct {
	PostsLogged       int `json:"posts_logged"`
	FeedbackCount     int `json:"feedback_count"`
	PositiveFeedback  int `json:"positive_feedback"`
	ActionsLogged     int `json:"actions_logged"`
	ActionsApplied    int `json:"actions_applied"`
	TotalInteractions int `json:"total_interactions"`
	RAGHits           int `json:"rag_hits"`
	ActiveMonths      int `json:"active_months"`
	WeeklyStreak      int `json:"weekly_streak"`
	GoldPosts         int `json:"gold_posts"`
	CategoriesUsed    int `json:"categories_used"`
}

// Metric selects one statistic from Stats.
type Metric string

const (
	MetricPostsLogged       Metric = "posts_logged"
	MetricFeedbackCount     Metric = "feedback_count"
	MetricPositiveFeedback  Metric = "positive_feedback"
	MetricActionsLogged     Metric = "actions_logged"
	MetricActionsApplied    Metric = "actions_applied"
	MetricTotalInteractions Metric = "total_interactions"
	MetricRAGHits           Metric = "rag_hits"
	MetricActiveMonths      Metric = "active_months"
	MetricWeeklyStreak      Metric = "weekly_streak"
	MetricGoldPosts         Metric = "gold_posts"
	MetricCategoriesUsed    Metric = "categories_used"
)

// Resolve returns the statistic m selects. ok is false for unknown metrics.
func (m Metric) Resolve(s Stats) (value float64, ok bool) {
	switch m {
	case MetricPostsLogged:
		return float64(s.PostsLogged), true
	case MetricFeedbackCount:
		return float64(s.FeedbackCount), true
	case MetricPositiveFeedback:
		return float64(s.PositiveFeedback), true
	case MetricActionsLogged:
		return float64(s.ActionsLogged), true
	case MetricActionsApplied:
		return float64(s.ActionsApplied), true
	case MetricTotalInteractions:
		return float64(s.TotalInteractions), true
	case MetricRAGHits:
		return float64(s.RAGHits), true
	case MetricActiveMonths:
		return float64(s.ActiveMonths), true
	case MetricWeeklyStreak:
		return float64(s.WeeklyStreak), true
	case MetricGoldPosts:
		return float64(s.GoldPosts), true
	case MetricCategoriesUsed:
		return float64(s.CategoriesUsed), true
	}
	return 0, false
}

// Icon is the display key of a badge icon.
type Icon string

const (
	IconTrophy   Icon = "trophy"
	IconStar     Icon = "star"
	IconFlame    Icon = "flame"
	IconChat     Icon = "chat"
	IconHeart    Icon = "heart"
	IconTarget   Icon = "target"
	IconCalendar Icon = "calendar"
	IconSparkles Icon = "sparkles"
	IconLayers   Icon = "layers"
)

// Definition describes one badge: what it measures and when it is earned.
type Definition struct {
	ID          string  `json:"id" yaml:"id"`
	Title       string  `json:"title" yaml:"title"`
	Description string  `json:"description" yaml:"description"`
	Icon        Icon    `json:"icon" yaml:"icon"`
	Metric      Metric  `json:"metric" yaml:"metric"`
	Target      float64 `json:"target" yaml:"target"`
}

// DefaultCatalog is the built-in badge set.
var DefaultCatalog = []Definition{
	{ID: "first_post", Title: "First Steps", Description: "Log analytics for your first post", Icon: IconSparkles, Metric: MetricPostsLogged, Target: 1},
	{ID: "weekly_streak", Title: "Consistency Streak", Description: "Post every week for 4 weeks in a row", Icon: IconFlame, Metric: MetricWeeklyStreak, Target: 4},
	{ID: "monthly_regular", Title: "Monthly Regular", Description: "Post in 3 different months", Icon: IconCalendar, Metric: MetricActiveMonths, Target: 3},
	{ID: "feedback_collector", Title: "Feedback Collector", Description: "Record 10 feedback entries", Icon: IconChat, Metric: MetricFeedbackCount, Target: 10},
	{ID: "crowd_pleaser", Title: "Crowd Pleaser", Description: "Receive 5 positive feedback entries", Icon: IconHeart, Metric: MetricPositiveFeedback, Target: 5},
	{ID: "action_taker", Title: "Action Taker", Description: "Apply 5 suggested actions", Icon: IconTarget, Metric: MetricActionsApplied, Target: 5},
	{ID: "ai_partner", Title: "AI Partner", Description: "Have 12 conversations with your assistant", Icon: IconStar, Metric: MetricTotalInteractions, Target: 12},
	{ID: "gold_rush", Title: "Gold Rush", Description: "Publish 3 gold-tagged posts", Icon: IconTrophy, Metric: MetricGoldPosts, Target: 3},
	{ID: "versatile", Title: "Versatile Creator", Description: "Post in 3 different formats", Icon: IconLayers, Metric: MetricCategoriesUsed, Target: 3},
}

// Status is the computed state of a badge.
type Status string

const (
	StatusEarned     Status = "earned"
	StatusInProgress Status = "in_progress"
)

// Badge is a definition evaluated against a user's statistics.
type Badge struct {
	Definition
	Current  float64    `json:"current"`
	Progress float64    `json:"progress"`
	Status   Status     `json:"status"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}

// Earned reports whether the badge is earned.
func (b Badge) Earned() bool { return b.Status == StatusEarned }

// Evaluate measures every definition against stats. A definition with a
// non-positive target is excluded and reported; an unknown metric counts
// as zero. One bad definition never stops the batch.
func Evaluate(catalog []Definition, stats Stats) ([]Badge, []error) {
	var (
		badges = make([]Badge, 0, len(catalog))
		errs   []error
	)
	for _, def := range catalog {
		if def.Target <= 0 {
			errs = append(errs, &pattern.IntegrityError{
				Entity: "badge",
				ID:     def.ID,
				Reason: fmt.Sprintf("target must be positive, got %v", def.Target),
			})
			continue
		}
		current, _ := def.Metric.Resolve(stats)
		badges = append(badges, measure(def, current))
	}
	return badges, errs
}

func measure(def Definition, current float64) Badge {
	if current < 0 {
		current = 0
	}
	progress := current / def.Target
	if progress > 1 {
		progress = 1
	}
	status := StatusInProgress
	if progress >= 1 {
		status = StatusEarned
	}
	return Badge{Definition: def, Current: current, Progress: progress, Status: status}
}

// ApplyAwards keeps previously awarded badges earned even when the live
// statistic has since regressed.
func ApplyAwards(badges []Badge, awards map[string]time.Time) []Badge {
	out := make([]Badge, len(badges))
	for i, b := range badges {
		if at, ok := awards[b.ID]; ok {
			at := at
			b.EarnedAt = &at
			b.Status = StatusEarned
			b.Progress = 1
		}
		out[i] = b
	}
	return out
}

// NewlyEarned returns earned badges that have no award recorded yet.
func NewlyEarned(badges []Badge, awards map[string]time.Time) []Badge {
	var out []Badge
	for _, b := range badges {
		if _, ok := awards[b.ID]; !ok && b.Earned() {
			out = append(out, b)
		}
	}
	return out
}

// Validate checks a catalog for missing and duplicate ids. Entries with bad
// targets or metrics are left to Lint and Evaluate.
func Validate(catalog []Definition) error {
	seen := make(map[string]bool, len(catalog))
	for i, def := range catalog {
		switch {
		case def.ID == "":
			return fmt.Errorf("badge %d: missing id", i)
		case seen[def.ID]:
			return fmt.Errorf("badge %q: duplicate id", def.ID)
		}
		seen[def.ID] = true
	}
	return nil
}

// Lint reports catalog entries Evaluate will exclude or never advance: a
// non-positive target or an unknown metric. Each problem is an
// IntegrityError.
func Lint(catalog []Definition) []error {
	var errs []error
	for _, def := range catalog {
		if def.Target <= 0 {
			errs = append(errs, &pattern.IntegrityError{
				Entity: "badge",
				ID:     def.ID,
				Reason: fmt.Sprintf("target must be positive, got %v", def.Target),
			})
		}
		if _, ok := def.Metric.Resolve(Stats{}); !ok {
			errs = append(errs, &pattern.IntegrityError{
				Entity: "badge",
				ID:     def.ID,
				Reason: fmt.Sprintf("unknown metric %q", def.Metric),
			})
		}
	}
	return errs
}
