package achievement

import (
	"time"

	"github.com/elonfeng/patternradar/pkg/learning"
	"github.com/elonfeng/patternradar/pkg/pattern"
	"github.com/elonfeng/patternradar/pkg/post"
)

// Sources are the raw inputs statistics are aggregated from.
type Sources struct {
	Posts          []post.Post
	Feedback       []post.Feedback
	ActionsLogged  int
	ActionsApplied int
	Counters       learning.CounterState
	Signals        []pattern.Signal
	Now            time.Time
}

// Aggregate builds the statistics struct badges are evaluated against.
func Aggregate(src Sources) Stats {
	s := Stats{
		PostsLogged:       len(src.Posts),
		FeedbackCount:     len(src.Feedback),
		ActionsLogged:     src.ActionsLogged,
		ActionsApplied:    src.ActionsApplied,
		TotalInteractions: src.Counters.TotalInteractions,
		RAGHits:           src.Counters.RAGHitCount,
	}

	for _, f := range src.Feedback {
		if f.Sentiment == post.SentimentPositive {
			s.PositiveFeedback++
		}
	}

	published := make([]time.Time, 0, len(src.Posts))
	categories := make(map[post.Category]bool)
	for _, p := range src.Posts {
		published = append(published, p.PublishedAt)
		categories[post.NormalizeCategory(p.Category)] = true
	}
	s.ActiveMonths = ActiveMonths(published)
	s.WeeklyStreak = WeeklyStreak(published, src.Now)
	s.CategoriesUsed = len(categories)

	for _, sig := range src.Signals {
		if sig.Tag == pattern.TagGold {
			s.GoldPosts++
		}
	}
	return s
}
