package achievement

import (
	"testing"
	"time"

	"github.com/elonfeng/patternradar/pkg/learning"
	"github.com/elonfeng/patternradar/pkg/pattern"
	"github.com/elonfeng/patternradar/pkg/post"
)

// 2026-05-13 is a Wednesday.
var wednesday = time.Date(2026, 5, 13, 12, 0, 0, 0, time.UTC)

func weeksAgo(n int) time.Time { return wednesday.AddDate(0, 0, -7*n) }

func TestWeeklyStreak(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"none", nil, 0},
		{"four weeks", []time.Time{weeksAgo(0), weeksAgo(1), weeksAgo(2), weeksAgo(3)}, 4},
		{"current week quiet", []time.Time{weeksAgo(1), weeksAgo(2)}, 2},
		{"gap", []time.Time{weeksAgo(0), weeksAgo(2), weeksAgo(3)}, 1},
		{"stale", []time.Time{weeksAgo(3)}, 0},
		{"future ignored", []time.Time{wednesday.AddDate(0, 0, 14)}, 0},
		{"same week twice", []time.Time{weeksAgo(0), weeksAgo(0).Add(-time.Hour)}, 1},
	}
	for _, tt := range tests {
		if got := WeeklyStreak(tt.times, wednesday); got != tt.want {
			t.Errorf("%s: WeeklyStreak = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestActiveMonths(t *testing.T) {
	times := []time.Time{
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		{},
	}
	if got := ActiveMonths(times); got != 3 {
		t.Errorf("ActiveMonths = %d, want 3", got)
	}
}

func TestAggregate(t *testing.T) {
	src := Sources{
		Posts: []post.Post{
			{ID: "a", Category: post.CategoryReel, PublishedAt: weeksAgo(0)},
			{ID: "b", Category: "REEL", PublishedAt: weeksAgo(1)},
			{ID: "c", Category: "", PublishedAt: weeksAgo(6)},
		},
		Feedback: []post.Feedback{
			{Sentiment: post.SentimentPositive},
			{Sentiment: post.SentimentPositive},
			{Sentiment: post.SentimentNegative},
		},
		ActionsLogged:  4,
		ActionsApplied: 2,
		Counters:       learning.CounterState{TotalInteractions: 12, RAGHitCount: 9},
		Signals:        []pattern.Signal{{Tag: pattern.TagGold}, {Tag: pattern.TagRed}, {Tag: pattern.TagGold}},
		Now:            wednesday,
	}

	got := Aggregate(src)
	want := Stats{
		PostsLogged:       3,
		FeedbackCount:     3,
		PositiveFeedback:  2,
		ActionsLogged:     4,
		ActionsApplied:    2,
		TotalInteractions: 12,
		RAGHits:           9,
		ActiveMonths:      2,
		WeeklyStreak:      2,
		GoldPosts:         2,
		CategoriesUsed:    2,
	}
	if got != want {
		t.Errorf("Aggregate = %+v, want %+v", got, want)
	}
}
