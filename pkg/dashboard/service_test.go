package dashboard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/elonfeng/patternradar/internal/store"
	"github.com/elonfeng/patternradar/pkg/achievement"
	"github.com/elonfeng/patternradar/pkg/alert"
	"github.com/elonfeng/patternradar/pkg/learning"
	"github.com/elonfeng/patternradar/pkg/pattern"
	"github.com/elonfeng/patternradar/pkg/post"
)

var testNow = time.Date(2026, 5, 13, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	sent []*alert.Notification
}

func (r *recordingNotifier) Name() string { return "recorder" }

func (r *recordingNotifier) Send(_ context.Context, n *alert.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

func newTestService(t *testing.T, opts ...Option) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "dash.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := pattern.NewEngine(pattern.DefaultOptions(), nil, log)
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return NewService(st, engine, log, opts...), st
}

func badgeByID(p *Payload, id string) *achievement.Badge {
	for i := range p.Achievements {
		if p.Achievements[i].ID == id {
			return &p.Achievements[i]
		}
	}
	return nil
}

func TestBuildEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Build(context.Background(), "new-user", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Message != EmptyMessage {
		t.Errorf("message = %q, want %q", p.Message, EmptyMessage)
	}
	if p.Signals == nil || len(p.Signals) != 0 {
		t.Errorf("signals = %v, want empty", p.Signals)
	}
	if p.LearningPhase != learning.PhaseInitial || p.ProgressPercent != 0 || p.RAGHitRate != 0 {
		t.Errorf("learning = %s %v %v", p.LearningPhase, p.ProgressPercent, p.RAGHitRate)
	}
	if len(p.Achievements) != len(achievement.DefaultCatalog) {
		t.Fatalf("achievements = %d, want %d", len(p.Achievements), len(achievement.DefaultCatalog))
	}
	if b := badgeByID(p, "first_post"); b == nil || b.Status != achievement.StatusInProgress || b.Progress != 0 {
		t.Errorf("first_post = %+v", b)
	}
	if !p.Window.Since.Equal(testNow.Add(-30 * 24 * time.Hour)) {
		t.Errorf("window since = %v", p.Window.Since)
	}
}

func TestBuildMissingUser(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Build(context.Background(), "", 0); err == nil {
		t.Fatal("expected error for missing user id")
	}
}

func TestBuildRecordsAndBroadcastsBadges(t *testing.T) {
	rec := &recordingNotifier{}
	svc, st := newTestService(t, WithAlerts(alert.NewManager([]alert.Notifier{rec})))
	ctx := context.Background()

	err := svc.LogPost(ctx, &post.Post{
		ID: "p1", UserID: "u1", Category: post.CategoryReel, Title: "first reel #Launch",
		PublishedAt: testNow.Add(-24 * time.Hour), Reach: 500, Likes: 20,
	})
	if err != nil {
		t.Fatalf("LogPost: %v", err)
	}

	p, err := svc.Build(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Message != "" || len(p.Signals) != 1 {
		t.Fatalf("payload = %+v", p)
	}
	if got := p.Signals[0].Hashtags; len(got) != 1 || got[0] != "launch" {
		t.Errorf("hashtags = %v, want [launch]", got)
	}

	b := badgeByID(p, "first_post")
	if b == nil || !b.Earned() || b.EarnedAt == nil || !b.EarnedAt.Equal(testNow) {
		t.Fatalf("first_post = %+v", b)
	}
	if len(rec.sent) != 1 || len(rec.sent[0].Badges) != 1 || rec.sent[0].Badges[0].ID != "first_post" {
		t.Fatalf("notifications = %+v", rec.sent)
	}

	awards, _ := st.ListBadgeAwards(ctx, "u1")
	if _, ok := awards["first_post"]; !ok {
		t.Error("first_post award not persisted")
	}

	// A second build finds the award already recorded.
	if _, err := svc.Build(ctx, "u1", 0); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if len(rec.sent) != 1 {
		t.Errorf("notifications after rebuild = %d, want 1", len(rec.sent))
	}
}

func TestBuildKeepsAwardedBadges(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	earned := testNow.AddDate(0, -1, 0)

	if _, err := st.AwardBadge(ctx, "u1", "feedback_collector", earned); err != nil {
		t.Fatalf("AwardBadge: %v", err)
	}

	p, err := svc.Build(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	b := badgeByID(p, "feedback_collector")
	if b == nil || !b.Earned() || b.Current != 0 || !b.EarnedAt.Equal(earned) {
		t.Errorf("feedback_collector = %+v", b)
	}
}

func TestBuildWindowExcludesOldPostsFromSignals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.LogPost(ctx, &post.Post{ID: "old", UserID: "u1", PublishedAt: testNow.AddDate(0, 0, -60), Reach: 10})

	p, err := svc.Build(ctx, "u1", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Signals) != 0 || p.Message != EmptyMessage {
		t.Errorf("signals = %d, message = %q", len(p.Signals), p.Message)
	}
	// Achievements look at every post ever logged.
	if b := badgeByID(p, "first_post"); b == nil || !b.Earned() {
		t.Errorf("first_post = %+v", b)
	}
}

func TestBuildCountsGoldPostsOutsideWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, likes := range []int{100, 100, 100, 1, 1, 1} {
		err := svc.LogPost(ctx, &post.Post{
			ID: fmt.Sprintf("p%d", i), UserID: "u1", Category: post.CategoryFeed,
			Title: "weekly recipe", Hashtags: []string{"food", "recipe"},
			PublishedAt: testNow.AddDate(0, 0, -60).Add(time.Duration(i) * time.Minute),
			Reach:       1000, Likes: likes,
		})
		if err != nil {
			t.Fatalf("LogPost: %v", err)
		}
	}

	p, err := svc.Build(ctx, "u1", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Signals) != 0 {
		t.Errorf("signals = %d, want 0 inside the window", len(p.Signals))
	}
	b := badgeByID(p, "gold_rush")
	if b == nil || b.Current != 3 || !b.Earned() {
		t.Errorf("gold_rush = %+v, want earned with 3 gold posts", b)
	}
}

func TestBuildExcludesInvalidCatalogEntries(t *testing.T) {
	svc, _ := newTestService(t, WithCatalog([]achievement.Definition{
		{ID: "broken", Metric: achievement.MetricPostsLogged},
		{ID: "first_post", Metric: achievement.MetricPostsLogged, Target: 1},
	}))

	p, err := svc.Build(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Achievements) != 1 || p.Achievements[0].ID != "first_post" {
		t.Errorf("achievements = %+v, want only first_post", p.Achievements)
	}
}

func TestRecordInteraction(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	state, counted, err := svc.RecordInteraction(ctx, "u1", " k1 ", true)
	if err != nil || !counted || state.TotalInteractions != 1 || state.RAGHitRate != 1 {
		t.Fatalf("first = %+v %v %v", state, counted, err)
	}
	state, counted, err = svc.RecordInteraction(ctx, "u1", "k1", false)
	if err != nil || counted || state.TotalInteractions != 1 {
		t.Errorf("replay = %+v %v %v", state, counted, err)
	}

	for i := 0; i < 11; i++ {
		state, _, _ = svc.RecordInteraction(ctx, "u1", "", i < 8)
	}
	if state.Phase != learning.PhaseMaster || state.ProgressPercent != 75 || state.RAGHitRate != 0.75 {
		t.Errorf("after 12 = %+v", state)
	}
}

func TestImportPosts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	svc.LogPost(ctx, &post.Post{ID: "feed:1", UserID: "u1", PublishedAt: testNow, Likes: 9})

	res, err := svc.ImportPosts(ctx, []post.Post{
		{ID: "feed:1", UserID: "u1", PublishedAt: testNow},
		{ID: "feed:2", UserID: "u1", PublishedAt: testNow},
		{ID: "", UserID: "u1", PublishedAt: testNow},
	})
	if err != nil {
		t.Fatalf("ImportPosts: %v", err)
	}
	if res.Fetched != 3 || res.Inserted != 1 {
		t.Errorf("result = %+v, want 3 fetched / 1 inserted", res)
	}
	got, _ := st.GetPost(ctx, "u1", "feed:1")
	if got.Likes != 9 {
		t.Errorf("likes = %d, import overwrote logged analytics", got.Likes)
	}
}

func TestParseWindow(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 30 * day, false},
		{"all", 0, false},
		{"ALL", 0, false},
		{"7d", 7 * day, false},
		{"2w", 14 * day, false},
		{"36h", 36 * time.Hour, false},
		{"0d", 0, false},
		{"-3d", 0, true},
		{"-1h", 0, true},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWindow(tt.in, 30*day)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseWindow(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
