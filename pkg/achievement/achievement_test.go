package achievement

import (
	"errors"
	"testing"
	"time"

	"github.com/elonfeng/patternradar/pkg/pattern"
)

func TestEvaluateProgress(t *testing.T) {
	catalog := []Definition{
		{ID: "feedback_collector", Metric: MetricFeedbackCount, Target: 10},
		{ID: "first_post", Metric: MetricPostsLogged, Target: 1},
		{ID: "mystery", Metric: "unknown", Target: 2},
	}
	badges, errs := Evaluate(catalog, Stats{FeedbackCount: 7, PostsLogged: 40})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(badges) != 3 {
		t.Fatalf("got %d badges, want 3", len(badges))
	}

	tests := []struct {
		id       string
		progress float64
		status   Status
	}{
		{"feedback_collector", 0.7, StatusInProgress},
		{"first_post", 1, StatusEarned},
		{"mystery", 0, StatusInProgress},
	}
	for i, tt := range tests {
		b := badges[i]
		if b.ID != tt.id || b.Progress != tt.progress || b.Status != tt.status {
			t.Errorf("badge %d = %s %v %s, want %s %v %s", i, b.ID, b.Progress, b.Status, tt.id, tt.progress, tt.status)
		}
		if b.Progress < 0 || b.Progress > 1 {
			t.Errorf("badge %s progress %v out of [0,1]", b.ID, b.Progress)
		}
	}
}

func TestEvaluateInvalidTarget(t *testing.T) {
	catalog := []Definition{
		{ID: "broken", Metric: MetricPostsLogged, Target: 0},
		{ID: "first_post", Metric: MetricPostsLogged, Target: 1},
	}
	badges, errs := Evaluate(catalog, Stats{})

	if len(badges) != 1 || badges[0].ID != "first_post" {
		t.Errorf("badges = %+v, want only first_post", badges)
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want one", errs)
	}
	var ie *pattern.IntegrityError
	if !errors.As(errs[0], &ie) || ie.ID != "broken" {
		t.Errorf("err = %v, want IntegrityError for broken", errs[0])
	}
}

func TestAwards(t *testing.T) {
	at := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	badges, _ := Evaluate([]Definition{
		{ID: "streak", Metric: MetricWeeklyStreak, Target: 4},
		{ID: "first_post", Metric: MetricPostsLogged, Target: 1},
		{ID: "feedback", Metric: MetricFeedbackCount, Target: 10},
	}, Stats{WeeklyStreak: 1, PostsLogged: 3, FeedbackCount: 10})

	awards := map[string]time.Time{"streak": at}

	fresh := NewlyEarned(badges, awards)
	if len(fresh) != 2 || fresh[0].ID != "first_post" || fresh[1].ID != "feedback" {
		t.Errorf("NewlyEarned = %+v", fresh)
	}

	applied := ApplyAwards(badges, awards)
	streak := applied[0]
	if !streak.Earned() || streak.Progress != 1 || streak.EarnedAt == nil || !streak.EarnedAt.Equal(at) {
		t.Errorf("streak after awards = %+v", streak)
	}
	if streak.Current != 1 {
		t.Errorf("Current = %v, want live value 1", streak.Current)
	}
	if badges[0].Earned() {
		t.Error("ApplyAwards must not mutate its input")
	}
	if NewlyEarned(applied, map[string]time.Time{"streak": at, "first_post": at, "feedback": at}) != nil {
		t.Error("nothing should be newly earned once every badge is awarded")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(DefaultCatalog); err != nil {
		t.Fatalf("DefaultCatalog invalid: %v", err)
	}
	if len(DefaultCatalog) != 9 {
		t.Errorf("DefaultCatalog has %d badges, want 9", len(DefaultCatalog))
	}

	tests := []struct {
		name    string
		catalog []Definition
	}{
		{"missing id", []Definition{{Metric: MetricPostsLogged, Target: 1}}},
		{"duplicate", []Definition{
			{ID: "a", Metric: MetricPostsLogged, Target: 1},
			{ID: "a", Metric: MetricPostsLogged, Target: 2},
		}},
	}
	for _, tt := range tests {
		if err := Validate(tt.catalog); err == nil {
			t.Errorf("%s: Validate = nil, want error", tt.name)
		}
	}

	lenient := []Definition{
		{ID: "a", Metric: MetricPostsLogged},
		{ID: "b", Metric: "followers", Target: 1},
	}
	if err := Validate(lenient); err != nil {
		t.Errorf("Validate(bad targets and metrics) = %v, want nil", err)
	}
}

func TestLint(t *testing.T) {
	if errs := Lint(DefaultCatalog); len(errs) != 0 {
		t.Fatalf("Lint(DefaultCatalog) = %v", errs)
	}

	errs := Lint([]Definition{
		{ID: "zero", Metric: MetricPostsLogged},
		{ID: "mystery", Metric: "followers", Target: 1},
		{ID: "ok", Metric: MetricPostsLogged, Target: 1},
	})
	if len(errs) != 2 {
		t.Fatalf("Lint = %v, want two problems", errs)
	}
	for i, want := range []string{"zero", "mystery"} {
		var ie *pattern.IntegrityError
		if !errors.As(errs[i], &ie) || ie.ID != want {
			t.Errorf("errs[%d] = %v, want IntegrityError for %s", i, errs[i], want)
		}
	}
}
