package pattern

import (
	"math"
	"testing"
	"time"

	"github.com/elonfeng/patternradar/pkg/post"
)

func TestClassifyBoundary(t *testing.T) {
	tests := []struct {
		diff float64
		want Significance
	}{
		{0.0999, Neutral},
		{0.10, Higher},
		{0.5, Higher},
		{0, Neutral},
		{-0.0999, Neutral},
		{-0.10, Lower},
		{-2, Lower},
	}
	for _, tt := range tests {
		if got := Classify(tt.diff, DefaultThreshold); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.diff, got, tt.want)
		}
	}
}

func TestRelativeDiff(t *testing.T) {
	tests := []struct {
		name            string
		value, baseline float64
		want            float64
	}{
		{"both zero", 0, 0, 0},
		{"zero baseline", 5, 0, 1.0},
		{"tiny baseline", 5, 1e-12, 1.0},
		{"equal", 3, 3, 0},
		{"ten percent", 110, 100, 0.1},
		{"half", 50, 100, -0.5},
	}
	for _, tt := range tests {
		got := RelativeDiff(tt.value, tt.baseline)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: RelativeDiff(%v, %v) = %v, want %v", tt.name, tt.value, tt.baseline, got, tt.want)
		}
	}
	if Classify(RelativeDiff(110, 100), DefaultThreshold) != Higher {
		t.Error("a 10% lift must classify as higher")
	}
}

func TestClassifyCounterDerivedBoundary(t *testing.T) {
	tests := []struct {
		name            string
		value, baseline float64
		want            Significance
	}{
		{"eleven over ten hundredths", 0.11, 0.1, Higher},
		{"twenty two over twenty hundredths", 0.22, 0.2, Higher},
		{"nine under ten hundredths", 0.09, 0.1, Lower},
		{"just inside", 0.1099, 0.1, Neutral},
	}
	for _, tt := range tests {
		if got := Classify(RelativeDiff(tt.value, tt.baseline), DefaultThreshold); got != tt.want {
			t.Errorf("%s: Classify(RelativeDiff(%v, %v)) = %s, want %s", tt.name, tt.value, tt.baseline, got, tt.want)
		}
	}
}

func TestCompareSavesRateBoundary(t *testing.T) {
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	saves := []int{11, 10, 9}
	posts := make([]post.Post, len(saves))
	for i, n := range saves {
		posts[i] = post.Post{
			ID:          string(rune('a' + i)),
			Category:    post.CategoryFeed,
			PublishedAt: now.Add(-time.Duration(i+1) * time.Hour),
			Reach:       100,
			Saves:       n,
		}
	}
	normalized := Normalize(posts, now, DefaultKPIWeights())
	clusters := BuildClusters(normalized, DefaultClusterOptions())
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}

	want := map[string]Significance{"a": Higher, "b": Neutral, "c": Lower}
	for _, np := range normalized {
		got := Compare(np.Metrics, &clusters[0]).Classifications(DefaultThreshold).SavesRate
		if got != want[np.Post.ID] {
			t.Errorf("post %s: SavesRate = %s, want %s", np.Post.ID, got, want[np.Post.ID])
		}
	}
}

func scenarioBPosts(now time.Time) []post.Post {
	engagement := []int{10, 10, 10, 10, 100}
	posts := make([]post.Post, len(engagement))
	for i, e := range engagement {
		posts[i] = post.Post{
			ID:          string(rune('a' + i)),
			Category:    post.CategoryReel,
			Title:       "weekly recipe",
			Hashtags:    []string{"food", "recipe"},
			PublishedAt: now.Add(-time.Duration(i+1) * 24 * time.Hour),
			Reach:       1000,
			Likes:       e,
		}
	}
	return posts
}

func TestCompareScenarioB(t *testing.T) {
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	normalized := Normalize(scenarioBPosts(now), now, DefaultKPIWeights())
	clusters := BuildClusters(normalized, DefaultClusterOptions())
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1", len(clusters))
	}
	c := &clusters[0]
	if c.BaselinePerformance != 28 {
		t.Fatalf("BaselinePerformance = %v, want 28", c.BaselinePerformance)
	}

	var top NormalizedPost
	for _, np := range normalized {
		if np.Metrics.TotalEngagement == 100 {
			top = np
		}
	}
	cmp := Compare(top.Metrics, c)
	want := (100.0 - 28.0) / 28.0
	if math.Abs(cmp.ClusterPerformanceDiff-want) > 1e-9 {
		t.Errorf("ClusterPerformanceDiff = %v, want %v", cmp.ClusterPerformanceDiff, want)
	}
	if got := cmp.Classifications(DefaultThreshold).ClusterPerformance; got != Higher {
		t.Errorf("ClusterPerformance = %s, want higher", got)
	}
}

func TestCompareSingleMemberCluster(t *testing.T) {
	now := time.Now()
	normalized := Normalize([]post.Post{{ID: "solo", Reach: 100, Likes: 40, PublishedAt: now}}, now, DefaultKPIWeights())
	clusters := BuildClusters(normalized, DefaultClusterOptions())

	cmp := Compare(normalized[0].Metrics, &clusters[0])
	if cmp != (Comparisons{}) {
		t.Errorf("Compare = %+v, want all zero", cmp)
	}
	set := cmp.Classifications(DefaultThreshold)
	if set.ClusterPerformance != Neutral || set.Reach != Neutral {
		t.Errorf("Classifications = %+v, want neutral", set)
	}
}

func TestSummarizeSimilarPosts(t *testing.T) {
	now := time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC)
	normalized := Normalize(scenarioBPosts(now), now, DefaultKPIWeights())
	clusters := BuildClusters(normalized, DefaultClusterOptions())

	s := Summarize(normalized[0], &clusters[0], 2)
	if s.Size != 5 {
		t.Errorf("Size = %d, want 5", s.Size)
	}
	if len(s.SimilarPosts) != 2 {
		t.Fatalf("SimilarPosts = %d, want 2", len(s.SimilarPosts))
	}
	for _, sp := range s.SimilarPosts {
		if sp.PostID == normalized[0].Post.ID {
			t.Error("a post must not list itself as similar")
		}
	}
	if s.SimilarPosts[0].Distance > s.SimilarPosts[1].Distance {
		t.Error("similar posts not sorted by distance")
	}
}
